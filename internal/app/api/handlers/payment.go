package handlers

import (
	"context"
	"net/http"

	"github.com/studypass/billing/internal/app/service/payment"
	"github.com/studypass/billing/internal/models"
	"github.com/studypass/billing/pkg/response"

	"github.com/gin-gonic/gin"
)

// PaymentManager is the slice of the payment adapter the HTTP layer uses.
// Satisfied by *payment.Service; handler tests stub it.
type PaymentManager interface {
	CreatePaymentRecord(ctx context.Context, req *payment.CreatePaymentRequest) (*payment.ChargeDescriptor, error)
	VerifyPayment(ctx context.Context, paymentID, externalTransactionID string) (*models.Payment, error)
	RequestRefund(ctx context.Context, paymentID, reason string) (*models.Payment, error)
	RetryPayment(ctx context.Context, paymentID string) (*payment.ChargeDescriptor, error)
	ScanPayments(ctx context.Context, req *payment.ScanPaymentsRequest) (*payment.ScanPaymentsResponse, error)
}

// @Summary      Create payment
// @Description  Persists a pending payment and returns the charge descriptor for out-of-band completion.
// @Tags         Payment
// @Accept       json
// @Produce      json
// @Param        request body payment.CreatePaymentRequest true "Payment creation request"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/payments [post]
func ApiCreatePayment(mgr PaymentManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req payment.CreatePaymentRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		req.UserID = identityUserID(c)

		desc, err := mgr.CreatePaymentRecord(c.Request.Context(), &req)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(desc))
	}
}

type verifyPaymentReq struct {
	PaymentID             string `json:"payment_id"`
	ExternalTransactionID string `json:"external_transaction_id"`
}

// @Summary      Verify payment
// @Description  Verifies a charge against the provider and extends the subscription on success.
// @Tags         Payment
// @Accept       json
// @Produce      json
// @Param        request body handlers.verifyPaymentReq true "Verification request"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/payments/verify [post]
func ApiVerifyPayment(mgr PaymentManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req verifyPaymentReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		p, err := mgr.VerifyPayment(c.Request.Context(), req.PaymentID, req.ExternalTransactionID)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(p))
	}
}

type refundReq struct {
	Reason string `json:"reason"`
}

// @Summary      Request refund
// @Description  Starts a provider refund for a completed payment and cancels the owning subscription.
// @Tags         Payment
// @Accept       json
// @Produce      json
// @Param        id path string true "Payment ID"
// @Param        request body handlers.refundReq true "Refund request"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/payments/{id}/refund [post]
func ApiRequestRefund(mgr PaymentManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req refundReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		p, err := mgr.RequestRefund(c.Request.Context(), c.Param("id"), req.Reason)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(p))
	}
}

// @Summary      Retry payment
// @Description  Resets a failed payment to pending and returns a fresh charge descriptor. Capped at 3 retries.
// @Tags         Payment
// @Produce      json
// @Param        id path string true "Payment ID"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/payments/{id}/retry [post]
func ApiRetryPayment(mgr PaymentManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		desc, err := mgr.RetryPayment(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(desc))
	}
}

func RegisterPaymentRoutes(r gin.IRouter, mgr PaymentManager) {
	r.POST("/payments", ApiCreatePayment(mgr))
	r.POST("/payments/verify", ApiVerifyPayment(mgr))
	r.POST("/payments/:id/refund", ApiRequestRefund(mgr))
	r.POST("/payments/:id/retry", ApiRetryPayment(mgr))
}
