package register_test

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"vidstream/internal/auth"
	"vidstream/internal/http_server/handlers/register"
	"vidstream/internal/models"
	"vidstream/internal/storage"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/require"
)

type memRepo struct {
	users  map[int64]models.User
	nextID int64
}

func (r *memRepo) SaveUser(_ context.Context, email, username, fullName string, passHash []byte) (int64, error) {
	for _, u := range r.users {
		if u.Email == email || u.Username == username {
			return 0, storage.ErrUserExists
		}
	}

	id := r.nextID
	r.nextID++
	r.users[id] = models.User{ID: id, Email: email, Username: username, FullName: fullName, PassHash: passHash}

	return id, nil
}

func (r *memRepo) UpdateRefreshToken(context.Context, int64, *string) error { return nil }
func (r *memRepo) UpdatePassword(context.Context, int64, []byte) error     { return nil }

func (r *memRepo) UserByLogin(_ context.Context, login string) (models.User, error) {
	for _, u := range r.users {
		if u.Email == login || u.Username == login {
			return u, nil
		}
	}

	return models.User{}, storage.ErrUserNotFound
}

func (r *memRepo) UserByID(_ context.Context, id int64) (models.User, error) {
	u, ok := r.users[id]
	if !ok {
		return models.User{}, storage.ErrUserNotFound
	}

	return u, nil
}

func newHandler() http.HandlerFunc {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo := &memRepo{users: make(map[int64]models.User), nextID: 1}
	authService := auth.New(log, repo, repo, "access-secret", "refresh-secret", time.Hour, 24*time.Hour)

	return register.New(log, validator.New(), authService)
}

func post(handler http.HandlerFunc, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/api/v1/users/register", strings.NewReader(body))
	rec := httptest.NewRecorder()
	handler(rec, req)

	return rec
}

func TestRegister_Created(t *testing.T) {
	handler := newHandler()

	rec := post(handler, `{"email":"alice@example.com","username":"alice","full_name":"Alice","password":"secret123"}`)

	require.Equal(t, http.StatusCreated, rec.Code)
	require.Contains(t, rec.Body.String(), `"user_id":1`)
}

func TestRegister_DuplicateConflict(t *testing.T) {
	handler := newHandler()

	rec := post(handler, `{"email":"alice@example.com","username":"alice","full_name":"Alice","password":"secret123"}`)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = post(handler, `{"email":"alice@example.com","username":"other","full_name":"Other","password":"secret123"}`)
	require.Equal(t, http.StatusConflict, rec.Code)
	require.Contains(t, rec.Body.String(), "user already exists")
}

func TestRegister_ValidationErrors(t *testing.T) {
	handler := newHandler()

	rec := post(handler, `{"email":"not-an-email","username":"alice","full_name":"Alice","password":"secret123"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "not a valid email")

	rec = post(handler, `{"email":"alice@example.com","username":"alice","full_name":"Alice","password":"abc"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "too short")

	rec = post(handler, `{}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestRegister_MalformedBody(t *testing.T) {
	handler := newHandler()

	rec := post(handler, `{not json`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Contains(t, rec.Body.String(), "failed to decode request")
}
