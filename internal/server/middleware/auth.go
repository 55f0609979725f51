package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/iudanet/offsync/internal/server/handlers"
)

// AuthMiddleware проверяет opaque bearer token и кладёт user_id
// владельца в контекст запроса. tokens отображает токен на user_id.
// Выпуск и ротация токенов - забота внешней подсистемы
// аутентификации, сервер синхронизации их только сопоставляет.
func AuthMiddleware(tokens map[string]string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				logger.Warn("Missing authorization header", "path", r.URL.Path)
				writeAuthError(w, "missing authorization header")
				return
			}

			token, ok := strings.CutPrefix(authHeader, "Bearer ")
			if !ok || token == "" {
				logger.Warn("Malformed authorization header", "path", r.URL.Path)
				writeAuthError(w, "malformed authorization header")
				return
			}

			userID, ok := tokens[token]
			if !ok {
				logger.Warn("Unknown token", "path", r.URL.Path)
				writeAuthError(w, "invalid token")
				return
			}

			ctx := handlers.WithUserID(r.Context(), userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeAuthError(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","message":"` + message + `"}`))
}
