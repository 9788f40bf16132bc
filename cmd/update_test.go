package cmd

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestCheckForUpdates(t *testing.T) {
	tests := []struct {
		name    string
		current string
		status  int
		body    string
		want    bool
	}{
		{"newer release", "v1.2.0", http.StatusOK, `{"tag_name":"v1.3.0"}`, true},
		{"up to date", "v1.3.0", http.StatusOK, `{"tag_name":"v1.3.0"}`, false},
		{"ahead of release", "v2.0.0", http.StatusOK, `{"tag_name":"v1.3.0"}`, false},
		{"bad tag", "v1.2.0", http.StatusOK, `{"tag_name":"latest"}`, false},
		{"api failure", "v1.2.0", http.StatusForbidden, `{"message":"rate limited"}`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			prevURL, prevVersion := ReleaseURL, AppVersion
			ReleaseURL, AppVersion = srv.URL, tt.current
			defer func() {
				ReleaseURL, AppVersion = prevURL, prevVersion
			}()

			got := CheckForUpdates(context.Background(), srv.Client(), zap.NewNop())
			assert.Equal(t, tt.want, got)
		})
	}
}
