package handlers

import (
	"bytes"
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/studypass/billing/internal/app/service/webhook"
	"github.com/studypass/billing/pkg/apperr"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubReconciler struct {
	err          error
	gotSignature string
	gotBody      []byte
}

func (s *stubReconciler) HandleEvent(_ context.Context, signature string, body []byte) error {
	s.gotSignature = signature
	s.gotBody = body
	return s.err
}

func doWebhook(t *testing.T, rec EventReconciler, signature string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/v1/webhooks/flowpay", ApiFlowPayWebhook(rec, zap.NewNop().Sugar()))

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/flowpay", bytes.NewReader([]byte(`{"event":"charge.completed"}`)))
	if signature != "" {
		req.Header.Set(webhook.SignatureHeader, signature)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestApiFlowPayWebhook_PassesSignatureAndBody(t *testing.T) {
	rec := &stubReconciler{}
	w := doWebhook(t, rec, "hash-1")

	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "hash-1", rec.gotSignature)
	require.JSONEq(t, `{"event":"charge.completed"}`, string(rec.gotBody))
}

func TestApiFlowPayWebhook_SignatureFailureIs401(t *testing.T) {
	rec := &stubReconciler{err: apperr.Signaturef("webhook signature mismatch")}
	w := doWebhook(t, rec, "bad-hash")

	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestApiFlowPayWebhook_MalformedBodyIs400(t *testing.T) {
	rec := &stubReconciler{err: apperr.Validationf("malformed webhook body")}
	w := doWebhook(t, rec, "hash-1")

	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestApiFlowPayWebhook_HandlerErrorIs500(t *testing.T) {
	rec := &stubReconciler{err: apperr.NotFoundf("no payment for transaction")}
	w := doWebhook(t, rec, "hash-1")

	// Non-2xx so the provider redelivers.
	require.Equal(t, http.StatusInternalServerError, w.Code)
}
