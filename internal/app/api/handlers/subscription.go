package handlers

import (
	"context"
	"net/http"

	subsvc "github.com/studypass/billing/internal/app/service/subscription"
	"github.com/studypass/billing/internal/models"
	"github.com/studypass/billing/pkg/response"

	"github.com/gin-gonic/gin"
)

// SubscriptionLedger is satisfied by *subscription.Service.
type SubscriptionLedger interface {
	Create(ctx context.Context, req *subsvc.CreateRequest) (*models.Subscription, error)
	Update(ctx context.Context, subscriptionID string, req *subsvc.UpdateRequest) (*models.Subscription, *subsvc.ProrationResult, error)
	Cancel(ctx context.Context, subscriptionID, reason string) (*models.Subscription, error)
	Pause(ctx context.Context, subscriptionID string) (*models.Subscription, error)
	GetByUserID(ctx context.Context, userID string) (*models.Subscription, error)
}

// @Summary      Create subscription
// @Description  Opens the per-user subscription and provisions usage counters for the tier.
// @Tags         Subscription
// @Accept       json
// @Produce      json
// @Param        request body subscription.CreateRequest true "Subscription creation request"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/subscriptions [post]
func ApiCreateSubscription(ledger SubscriptionLedger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req subsvc.CreateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		if uid := identityUserID(c); uid != "" {
			req.UserID = uid
		}
		sub, err := ledger.Create(c.Request.Context(), &req)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(sub))
	}
}

type updateSubscriptionResp struct {
	Subscription *models.Subscription    `json:"subscription"`
	Proration    *subsvc.ProrationResult `json:"proration,omitempty"`
}

// @Summary      Update subscription
// @Description  Applies plan changes; tier changes return the informational proration delta.
// @Tags         Subscription
// @Accept       json
// @Produce      json
// @Param        id path string true "Subscription ID"
// @Param        request body subscription.UpdateRequest true "Subscription update request"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/subscriptions/{id} [patch]
func ApiUpdateSubscription(ledger SubscriptionLedger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req subsvc.UpdateRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		sub, proration, err := ledger.Update(c.Request.Context(), c.Param("id"), &req)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(updateSubscriptionResp{Subscription: sub, Proration: proration}))
	}
}

type cancelSubscriptionReq struct {
	Reason string `json:"reason"`
}

// @Summary      Cancel subscription
// @Description  Cancels the subscription and best-effort disables the provider recurring charge.
// @Tags         Subscription
// @Accept       json
// @Produce      json
// @Param        id path string true "Subscription ID"
// @Param        request body handlers.cancelSubscriptionReq true "Cancellation request"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/subscriptions/{id}/cancel [post]
func ApiCancelSubscription(ledger SubscriptionLedger) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req cancelSubscriptionReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		sub, err := ledger.Cancel(c.Request.Context(), c.Param("id"), req.Reason)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(sub))
	}
}

// @Summary      Pause subscription
// @Tags         Subscription
// @Produce      json
// @Param        id path string true "Subscription ID"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/subscriptions/{id}/pause [post]
func ApiPauseSubscription(ledger SubscriptionLedger) gin.HandlerFunc {
	return func(c *gin.Context) {
		sub, err := ledger.Pause(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(sub))
	}
}

// @Summary      My subscription
// @Description  Returns the calling user's subscription.
// @Tags         Subscription
// @Produce      json
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/subscriptions/me [get]
func ApiMySubscription(ledger SubscriptionLedger) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := identityUserID(c)
		if uid == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing user identity"))
			return
		}
		sub, err := ledger.GetByUserID(c.Request.Context(), uid)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(sub))
	}
}

func RegisterSubscriptionRoutes(r gin.IRouter, ledger SubscriptionLedger) {
	r.POST("/subscriptions", ApiCreateSubscription(ledger))
	r.GET("/subscriptions/me", ApiMySubscription(ledger))
	r.PATCH("/subscriptions/:id", ApiUpdateSubscription(ledger))
	r.POST("/subscriptions/:id/cancel", ApiCancelSubscription(ledger))
	r.POST("/subscriptions/:id/pause", ApiPauseSubscription(ledger))
}
