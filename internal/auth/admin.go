package auth

import (
	"crypto/subtle"
	"net/http"
)

// AdminKeyHeader carries the shared admin secret. Header lookup is
// case-insensitive, so x-admin-key and X-Admin-Key are the same header.
const AdminKeyHeader = "X-Admin-Key"

// AdminKey lets a request through only when it presents the configured
// secret. An empty secret rejects everything. Rejections are answered by
// unauthorized.
func AdminKey(secret string, unauthorized http.Handler) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := KeyFromRequest(r)
			if secret == "" || key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(secret)) != 1 {
				unauthorized.ServeHTTP(w, r)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func KeyFromRequest(r *http.Request) string {
	return r.Header.Get(AdminKeyHeader)
}
