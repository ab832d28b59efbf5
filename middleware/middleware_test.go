package middleware

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dcode-github/agrirent/backend/controllers"
	"github.com/dcode-github/agrirent/backend/utils"
)

func TestAuth(t *testing.T) {
	tokens := utils.NewTokenManager("testsecret", time.Hour)
	other := utils.NewTokenManager("othersecret", time.Hour)

	var gotUser, gotRole any
	protected := Auth(tokens)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser = r.Context().Value(controllers.UserIDKey)
		gotRole = r.Context().Value(controllers.RoleKey)
		w.WriteHeader(http.StatusNoContent)
	}))

	good, _ := tokens.GenerateJWT("65a000000000000000000001", "owner")
	forged, _ := other.GenerateJWT("65a000000000000000000001", "owner")

	tests := []struct {
		name   string
		header string
		want   int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic " + good, http.StatusUnauthorized},
		{"foreign signature", "Bearer " + forged, http.StatusUnauthorized},
		{"garbage", "Bearer abc.def.ghi", http.StatusUnauthorized},
		{"valid", "Bearer " + good, http.StatusNoContent},
		{"lowercase scheme", "bearer " + good, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/anything", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			resp := httptest.NewRecorder()
			protected.ServeHTTP(resp, req)
			if resp.Code != tt.want {
				t.Fatalf("expected %d, got %d", tt.want, resp.Code)
			}
			if tt.want == http.StatusUnauthorized && !strings.Contains(resp.Body.String(), `"success":false`) {
				t.Fatalf("expected JSON error body, got %q", resp.Body.String())
			}
		})
	}

	if gotUser != "65a000000000000000000001" || gotRole != "owner" {
		t.Fatalf("claims not forwarded: user=%v role=%v", gotUser, gotRole)
	}
}

func TestRecoverer(t *testing.T) {
	h := Recoverer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))
	resp := httptest.NewRecorder()
	h.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))

	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", resp.Code)
	}
	if ct := resp.Header().Get("Content-Type"); ct != "application/json" {
		t.Fatalf("expected JSON response, got %q", ct)
	}
}
