package auth

import (
	"encoding/json"
	"net/http"
	"regexp"

	"github.com/rs/zerolog/hlog"
)

const (
	msgTokenMissing  = "Token missing."
	msgTokenInvalid  = "Token invalid or expired."
	msgAdminRequired = "Admin access required."
)

var bearerTokenRE = regexp.MustCompile(`^Bearer ([^\s]+)$`)

// JWTMiddleware creates a middleware for protecting routes.
//
// A request without a well-formed bearer token is rejected with 401; a token
// that fails signature or expiry checks is rejected with 403, so clients can
// tell "log in" apart from "log in again".
func JWTMiddleware(tokens *TokenManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			log := hlog.FromRequest(r)

			tokenStr, err := ExtractBearer(r.Header.Get("Authorization"))
			if err != nil {
				log.Debug().Err(err).Msg("Rejected request without usable bearer token")
				writeAuthError(w, http.StatusUnauthorized, msgTokenMissing)
				return
			}

			claims, err := tokens.Verify(tokenStr)
			if err != nil {
				log.Warn().Err(err).Msg("Rejected bearer token")
				writeAuthError(w, http.StatusForbidden, msgTokenInvalid)
				return
			}

			ctx := WithPrincipal(r.Context(), Principal{
				UserID:    claims.UserID,
				Username:  claims.Username,
				SessionID: claims.ID,
			})
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"message": message})
}

// RequireAdmin lets through only principals whose username is in admins.
// It must run after JWTMiddleware. An empty list admits nobody.
func RequireAdmin(admins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(admins))
	for _, a := range admins {
		allowed[a] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p, ok := PrincipalFrom(r.Context())
			if !ok {
				writeAuthError(w, http.StatusUnauthorized, msgTokenMissing)
				return
			}
			if _, ok := allowed[p.Username]; !ok {
				hlog.FromRequest(r).Warn().Str("user_uuid", p.UserID).Msg("Rejected non-admin principal")
				writeAuthError(w, http.StatusForbidden, msgAdminRequired)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// TokenFromQuery moves a token passed as the param query value into the
// Authorization header when the header is absent. Browsers cannot set headers
// on websocket handshakes. The parameter is removed from the URL either way.
func TokenFromQuery(param string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			q := r.URL.Query()
			if !q.Has(param) {
				next.ServeHTTP(w, r)
				return
			}

			tok := q.Get(param)
			q.Del(param)

			r = r.Clone(r.Context())
			r.URL.RawQuery = q.Encode()
			r.RequestURI = r.URL.RequestURI()
			if tok != "" && r.Header.Get("Authorization") == "" {
				r.Header.Set("Authorization", "Bearer "+tok)
			}
			next.ServeHTTP(w, r)
		})
	}
}
