package handlers

import (
	"context"
	"io"
	"net/http"

	"github.com/studypass/billing/internal/app/service/webhook"
	"github.com/studypass/billing/pkg/apperr"
	"github.com/studypass/billing/pkg/logctx"
	"github.com/studypass/billing/pkg/response"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// EventReconciler is satisfied by *webhook.Reconciler.
type EventReconciler interface {
	HandleEvent(ctx context.Context, signature string, body []byte) error
}

// @Summary      FlowPay webhook
// @Description  Handles signed provider events. Failures return non-2xx so the provider redelivers.
// @Tags         Webhook
// @Accept       json
// @Produce      json
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/webhooks/flowpay [post]
func ApiFlowPayWebhook(rec EventReconciler, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		body, err := io.ReadAll(c.Request.Body)
		if err != nil {
			c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, "unreadable body"))
			return
		}

		logctx.FromGin(c, log).Infow("webhook_received")
		if err := rec.HandleEvent(c.Request.Context(), c.GetHeader(webhook.SignatureHeader), body); err != nil {
			logctx.FromGin(c, log).Errorw("webhook_handle_error", "error", err.Error())
			status := http.StatusInternalServerError
			switch apperr.KindOf(err) {
			case apperr.KindSignature:
				status = http.StatusUnauthorized
			case apperr.KindValidation:
				status = http.StatusBadRequest
			}
			c.JSON(status, response.ErrorT[any](errCode(err), err.Error()))
			return
		}
		logctx.FromGin(c, log).Infow("webhook_handled")
		c.JSON(http.StatusOK, response.OKT[any](nil))
	}
}

func RegisterWebhookRoutes(r gin.IRouter, rec EventReconciler, log *zap.SugaredLogger) {
	r.POST("/flowpay", ApiFlowPayWebhook(rec, log))
}
