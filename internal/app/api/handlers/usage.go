package handlers

import (
	"context"
	"net/http"
	"strconv"

	"github.com/studypass/billing/internal/models"
	"github.com/studypass/billing/pkg/response"

	"github.com/gin-gonic/gin"
)

// UsageMeter is satisfied by *usage.Service.
type UsageMeter interface {
	CheckAndIncrement(ctx context.Context, userID, featureKey string) (*models.PremiumFeatureUsage, error)
	GetUsageHistory(ctx context.Context, userID, featureKey string, page, pageSize int) ([]*models.PremiumFeatureUsage, int64, error)
}

type usageCheckReq struct {
	FeatureKey string `json:"feature_key"`
}

// @Summary      Check and consume usage
// @Description  Consumes one usage slot for the calling user. Quota exhaustion returns a payment-required code with an upgrade hint.
// @Tags         Usage
// @Accept       json
// @Produce      json
// @Param        request body handlers.usageCheckReq true "Feature to meter"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/usage/check [post]
func ApiUsageCheck(meter UsageMeter) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req usageCheckReq
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		uid := identityUserID(c)
		if uid == "" || req.FeatureKey == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing user identity or feature_key"))
			return
		}
		row, err := meter.CheckAndIncrement(c.Request.Context(), uid, req.FeatureKey)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(row))
	}
}

type usageHistoryResp struct {
	Items []*models.PremiumFeatureUsage `json:"items"`
	Total int64                         `json:"total"`
}

// @Summary      Usage history
// @Description  Paginated usage rows for the calling user, newest activity first.
// @Tags         Usage
// @Produce      json
// @Param        feature query string false "Feature key filter"
// @Param        page query int false "1-based page"
// @Param        page_size query int false "Page size"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/usage/history [get]
func ApiUsageHistory(meter UsageMeter) gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := identityUserID(c)
		if uid == "" {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "missing user identity"))
			return
		}
		page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
		pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "20"))

		items, total, err := meter.GetUsageHistory(c.Request.Context(), uid, c.Query("feature"), page, pageSize)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(usageHistoryResp{Items: items, Total: total}))
	}
}

func RegisterUsageRoutes(r gin.IRouter, meter UsageMeter) {
	r.POST("/usage/check", ApiUsageCheck(meter))
	r.GET("/usage/history", ApiUsageHistory(meter))
}
