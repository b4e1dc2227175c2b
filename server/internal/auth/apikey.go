package auth

import (
	"crypto/subtle"
	"net/http"
	"strings"
)

// APIKey returns middleware that enforces bearer API key authentication.
//
// Behaviour:
//   - If mode != "apikey" or key == "", all requests are allowed.
//   - Otherwise the key is read from "Authorization: Bearer <key>", falling
//     back to the access_token query parameter.
//   - A missing or incorrect key is answered with 401 and next is not called.
func APIKey(mode, key string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if mode != "apikey" || key == "" {
			next.ServeHTTP(w, r)
			return
		}
		if subtle.ConstantTimeCompare([]byte(presented(r)), []byte(key)) != 1 {
			w.Header().Set("WWW-Authenticate", `Bearer realm="exceptionless"`)
			http.Error(w, "invalid api key", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func presented(r *http.Request) string {
	if h := r.Header.Get("Authorization"); h != "" {
		if tok, ok := strings.CutPrefix(h, "Bearer "); ok {
			return strings.TrimSpace(tok)
		}
		return ""
	}
	return r.URL.Query().Get("access_token")
}
