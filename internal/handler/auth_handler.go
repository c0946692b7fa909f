package handler

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/boddenberg/nexo-bfa-go/internal/domain"
	"github.com/boddenberg/nexo-bfa-go/internal/service"
)

// devTokenHandler issues an access token for any user id. Only mounted with DEV_AUTH=true.
func devTokenHandler(authSvc *service.AuthService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/dev/token")
		defer span.End()

		var req domain.TokenRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		resp, err := authSvc.IssueAccessToken(ctx, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		logger.Warn("dev token issued", zap.String("user_id", resp.UserID))
		writeJSON(w, http.StatusOK, resp)
	}
}
