package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"warden/core"
	"warden/util"

	"github.com/golang-jwt/jwt/v5"
)

type operatorKey struct{}

// Claims are the operator token claims. Subject names the operator.
type Claims struct {
	jwt.RegisteredClaims
}

// OperatorFromContext returns the authenticated operator, or "" when auth is disabled
func OperatorFromContext(ctx context.Context) string {
	s, _ := ctx.Value(operatorKey{}).(string)
	return s
}

// jwtAuthMiddleware requires an HS256 bearer token on operator routes when a
// signing secret is configured
func (a *API) jwtAuthMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if len(a.opts.JWTSecret) == 0 {
			next.ServeHTTP(w, r)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			a.rejectToken(w, r, errors.New("missing bearer token"))
			return
		}

		claims, err := a.validateJWT(strings.TrimPrefix(authHeader, "Bearer "))
		if err != nil {
			a.rejectToken(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), operatorKey{}, claims.Subject)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// validateJWT verifies signature, method, expiry and, if configured, issuer
func (a *API) validateJWT(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(a.clock.Now),
	}
	if a.opts.JWTIssuer != "" {
		opts = append(opts, jwt.WithIssuer(a.opts.JWTIssuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		return a.opts.JWTSecret, nil
	}, opts...)
	if err != nil {
		return nil, err
	}
	if !token.Valid {
		return nil, errors.New("invalid token")
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

// rejectToken answers 401 and records the failure on the security stream
func (a *API) rejectToken(w http.ResponseWriter, r *http.Request, err error) {
	info, _ := core.RequestInfoFromContext(r.Context())
	a.logger.Warnw("Rejected operator token",
		"ip", info.IP,
		"path", r.URL.Path,
		"error", util.RedactSecrets(err.Error()))
	a.emit(r.Context(), core.CategorySecurity, core.EventTypeAuthFailure, http.StatusUnauthorized)

	w.Header().Set("WWW-Authenticate", `Bearer realm="warden"`)
	writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "Authorization required"}, a.logger)
}
