package handler

import (
	"net/http"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/boddenberg/nexo-bfa-go/internal/domain"
	"github.com/boddenberg/nexo-bfa-go/internal/service"
)

// ============================================================
// Chat: POST /v1/chat
// ============================================================

// chatHandler runs a chat message through the ingestion pipeline for the session user.
// Pipeline failures still answer 200 with success=false and a reply the app shows.
func chatHandler(svc *service.IngestService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/chat")
		defer span.End()

		userID := UserIDFromContext(ctx)
		span.SetAttributes(attribute.String("user.id", userID))

		var req domain.ChatRequest
		if err := decodeJSON(w, r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		reply, err := svc.HandleChat(ctx, userID, &req)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		reply.ID = uuid.NewString()
		writeJSON(w, http.StatusOK, reply)
	}
}
