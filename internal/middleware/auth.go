package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// APIKeyHeader carries the device key; browsers can use the api_key query parameter instead.
const APIKeyHeader = "X-API-Key"

// protectedPrefixes need a key when one is configured.
var protectedPrefixes = []string{"/upload", "/test", "/api/", "/logs/"}

// AuthMiddleware sprawdza klucz API dla tras urządzeń i panelu. Pusty klucz wyłącza kontrolę.
func AuthMiddleware(apiKey string, next http.Handler) http.Handler {
	if apiKey == "" {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !isProtected(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		key := r.Header.Get(APIKeyHeader)
		if key == "" {
			key = r.URL.Query().Get("api_key")
		}

		if subtle.ConstantTimeCompare([]byte(key), []byte(apiKey)) != 1 {
			errorResponse(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isProtected(path string) bool {
	for _, prefix := range protectedPrefixes {
		if path == strings.TrimSuffix(prefix, "/") || strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}
