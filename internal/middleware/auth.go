package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/dukerupert/hearth/internal/auth"
)

type TokenVerifier interface {
	Verify(raw string) (auth.AuthContext, error)
}

// RequireAuth validates the bearer token and populates AuthContext.
func RequireAuth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return authenticate(verifier, bearerToken)
}

// RequireStreamAuth is RequireAuth for websocket upgrades. Browsers cannot
// set headers on the handshake, so the token may also arrive as the
// "token" query parameter or as the protocol after "bearer" in
// Sec-WebSocket-Protocol. The Authorization header wins when present.
func RequireStreamAuth(verifier TokenVerifier) func(http.Handler) http.Handler {
	return authenticate(verifier, func(r *http.Request) (string, bool) {
		if token, ok := bearerToken(r); ok {
			return token, true
		}
		if token, ok := subprotocolToken(r); ok {
			return token, true
		}
		token := strings.TrimSpace(r.URL.Query().Get("token"))
		return token, token != ""
	})
}

func authenticate(verifier TokenVerifier, extract func(*http.Request) (string, bool)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			raw, ok := extract(r)
			if !ok {
				writeError(w, http.StatusUnauthorized, "unauthorized", "authentication required")
				return
			}
			ac, err := verifier.Verify(raw)
			if err != nil {
				writeError(w, http.StatusUnauthorized, "unauthorized", "invalid or expired token")
				return
			}
			noteUser(r.Context(), ac)
			next.ServeHTTP(w, r.WithContext(auth.WithAuth(r.Context(), ac)))
		})
	}
}

func bearerToken(r *http.Request) (string, bool) {
	h := r.Header.Get("Authorization")
	scheme, token, ok := strings.Cut(h, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return "", false
	}
	token = strings.TrimSpace(token)
	return token, token != ""
}

// subprotocolToken reads "bearer, <token>" from Sec-WebSocket-Protocol.
func subprotocolToken(r *http.Request) (string, bool) {
	var protocols []string
	for _, v := range r.Header.Values("Sec-WebSocket-Protocol") {
		for _, p := range strings.Split(v, ",") {
			protocols = append(protocols, strings.TrimSpace(p))
		}
	}
	for i, p := range protocols {
		if strings.EqualFold(p, "bearer") && i+1 < len(protocols) && protocols[i+1] != "" {
			return protocols[i+1], true
		}
	}
	return "", false
}

func writeError(w http.ResponseWriter, status int, code, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg, "code": code})
}
