package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/boddenberg/nexo-bfa-go/internal/service"
)

type ctxKey int

const sessionUserKey ctxKey = iota

var (
	errNoToken     = errors.New("Token de autenticação não fornecido")
	errTokenFormat = errors.New("Formato de token inválido")
)

// bearerToken pulls the token out of "Authorization: Bearer <token>".
func bearerToken(r *http.Request) (string, error) {
	h := strings.TrimSpace(r.Header.Get("Authorization"))
	if h == "" {
		return "", errNoToken
	}
	scheme, token, ok := strings.Cut(h, " ")
	token = strings.TrimSpace(token)
	if !ok || !strings.EqualFold(scheme, "Bearer") || token == "" {
		return "", errTokenFormat
	}
	return token, nil
}

// JWTAuthMiddleware admits requests carrying a session token signed with the
// shared secret. The token subject becomes the owner of every read and write
// made by the request.
func JWTAuthMiddleware(authSvc *service.AuthService, logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r)
			if err == nil {
				var claims *service.JWTClaims
				if claims, err = authSvc.ValidateAccessToken(token); err == nil {
					trace.SpanFromContext(r.Context()).SetAttributes(attribute.String("user.id", claims.Sub))
					next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), sessionUserKey, claims.Sub)))
					return
				}
			}

			logger.Warn("auth: request rejected",
				zap.String("path", r.URL.Path),
				zap.String("remote_addr", r.RemoteAddr),
				zap.Error(err),
			)
			writeError(w, http.StatusUnauthorized, err.Error())
		})
	}
}

// UserIDFromContext returns the session user set by JWTAuthMiddleware, or "".
func UserIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(sessionUserKey).(string)
	return v
}
