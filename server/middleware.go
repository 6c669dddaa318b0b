package server

import (
	"crypto/subtle"
	"net/http"
	"slices"
	"strings"
)

// auth enforces the static bearer tokens from configuration. No tokens
// configured means the check is off. Websocket clients can't always set
// headers, so a token query parameter is accepted as well.
func (s *Server) auth(next http.Handler) http.Handler {
	if len(s.authTokens) == 0 {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if !s.tokenAllowed(token) {
			s.writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid bearer token", "")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	header := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if len(header) > len(prefix) && strings.EqualFold(header[:len(prefix)], prefix) {
		return header[len(prefix):]
	}
	return ""
}

func (s *Server) tokenAllowed(token string) bool {
	if token == "" {
		return false
	}
	allowed := false
	for _, candidate := range s.authTokens {
		if subtle.ConstantTimeCompare([]byte(candidate), []byte(token)) == 1 {
			allowed = true
		}
	}
	return allowed
}

// cors reflects allowed origins and answers preflight requests. The
// chat UI runs on a different origin in every deployment we know of.
func (s *Server) cors(next http.Handler) http.Handler {
	allowAll := slices.Contains(s.corsOrigins, "*")
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		origin := r.Header.Get("Origin")
		if origin != "" && (allowAll || slices.Contains(s.corsOrigins, origin)) {
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Add("Vary", "Origin")
		}

		if r.Method == http.MethodOptions {
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) originAllowed(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	if origin == "" {
		return true
	}
	return slices.Contains(s.corsOrigins, "*") || slices.Contains(s.corsOrigins, origin)
}
