package controllers

import (
	"context"
	"net/http"

	"github.com/angelmondragon/wacart-backend/api/responses"
	"github.com/angelmondragon/wacart-backend/api/validators"
	whatsappwebhook "github.com/angelmondragon/wacart-backend/internal/webhooks/whatsapp"
	pkgerrors "github.com/angelmondragon/wacart-backend/pkg/errors"
	"github.com/angelmondragon/wacart-backend/pkg/logger"
)

type whatsappWebhookService interface {
	Handle(ctx context.Context, payload whatsappwebhook.Payload) (*whatsappwebhook.Response, error)
}

// WhatsAppWebhook accepts provider callbacks. Designed skips still answer 200
// so the provider does not retry them.
func WhatsAppWebhook(svc whatsappWebhookService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		var payload whatsappwebhook.Payload
		if err := validators.DecodeJSONPayload(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ctx := r.Context()
		if logg != nil && payload.MessageID != "" {
			ctx = logg.WithMessageID(ctx, payload.MessageID)
		}

		resp, err := svc.Handle(ctx, payload)
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, resp)
	}
}
