package middleware

import (
	"context"
	"log"
	"net/http"
	"strings"

	"github.com/dcode-github/agrirent/backend/controllers"
	"github.com/dcode-github/agrirent/backend/models"
	"github.com/dcode-github/agrirent/backend/utils"
)

// Auth requires a valid Bearer token and puts the account id and role into
// the request context.
func Auth(tokens *utils.TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenHeader := r.Header.Get("Authorization")
			if tokenHeader == "" {
				log.Printf("Missing Authorization header from request %s %s", r.Method, r.URL)
				unauthorized(w, "Missing Authorization header")
				return
			}

			tokenParts := strings.SplitN(tokenHeader, " ", 2)
			if len(tokenParts) != 2 || !strings.EqualFold(tokenParts[0], "Bearer") {
				log.Printf("Invalid Authorization header format from request %s %s", r.Method, r.URL)
				unauthorized(w, "Invalid Authorization header format")
				return
			}

			claims, err := tokens.ValidateJWT(tokenParts[1])
			if err != nil {
				log.Printf("Invalid or expired token: %v", err)
				unauthorized(w, "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), controllers.UserIDKey, claims.UserID)
			ctx = context.WithValue(ctx, controllers.RoleKey, claims.Role)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func unauthorized(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusUnauthorized, models.APIResponse{Success: false, Message: msg})
}
