package models

import "time"

type User struct {
	ID         int64  `json:"id"`
	Email      string `json:"email"`
	Username   string `json:"username"`
	FullName   string `json:"full_name"`
	PassHash   []byte `json:"-"`
	AvatarURL  string `json:"avatar_url,omitempty"`
	CoverURL   string `json:"cover_url,omitempty"`

	// RefreshToken holds the single currently valid refresh credential,
	// nil when the user has no active session.
	RefreshToken *string `json:"-"`

	ResetTokenHash      *string    `json:"-"`
	ResetTokenExpiresAt *time.Time `json:"-"`

	CreatedAt time.Time `json:"created_at"`
}

// Sanitize clears credential material before the user leaves the service layer.
func (u *User) Sanitize() {
	u.PassHash = nil
	u.RefreshToken = nil
	u.ResetTokenHash = nil
	u.ResetTokenExpiresAt = nil
}

type Video struct {
	ID           int64     `json:"id"`
	OwnerID      int64     `json:"owner_id"`
	Title        string    `json:"title"`
	Description  string    `json:"description,omitempty"`
	VideoURL     string    `json:"video_url"`
	ThumbnailURL string    `json:"thumbnail_url,omitempty"`
	Duration     int64     `json:"duration"`
	Views        int64     `json:"views"`
	Published    bool      `json:"published"`
	CreatedAt    time.Time `json:"created_at"`
}

type EmailMessage struct {
	Email   string `json:"to"`
	Subject string `json:"subject"`
	HTML    string `json:"html"`
}
