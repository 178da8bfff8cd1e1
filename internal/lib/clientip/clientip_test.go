package clientip

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestFromRequest(t *testing.T) {
	tests := []struct {
		name       string
		remoteAddr string
		forwarded  string
		want       string
	}{
		{
			name:       "remote addr with port",
			remoteAddr: "203.0.113.7:51234",
			want:       "203.0.113.7",
		},
		{
			name:       "remote addr without port",
			remoteAddr: "203.0.113.7",
			want:       "203.0.113.7",
		},
		{
			name:       "single forwarded hop",
			remoteAddr: "10.0.0.1:1234",
			forwarded:  "198.51.100.1",
			want:       "198.51.100.1",
		},
		{
			name:       "forwarded chain takes first hop",
			remoteAddr: "10.0.0.1:1234",
			forwarded:  "198.51.100.1, 10.0.0.2, 10.0.0.1",
			want:       "198.51.100.1",
		},
		{
			name:       "forwarded hop with spaces",
			remoteAddr: "10.0.0.1:1234",
			forwarded:  " 198.51.100.1 , 10.0.0.2",
			want:       "198.51.100.1",
		},
		{
			name:       "ipv6 remote addr",
			remoteAddr: "[2001:db8::1]:443",
			want:       "2001:db8::1",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remoteAddr
			if tt.forwarded != "" {
				req.Header.Set("X-Forwarded-For", tt.forwarded)
			}

			require.Equal(t, tt.want, FromRequest(req))
		})
	}
}
