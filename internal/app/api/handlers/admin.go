package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/studypass/billing/internal/app/service/payment"
	"github.com/studypass/billing/internal/app/service/statistics"
	"github.com/studypass/billing/pkg/response"

	"github.com/gin-gonic/gin"
)

// BillingStats is satisfied by *statistics.Service.
type BillingStats interface {
	Summary(ctx context.Context, from, to time.Time) (*statistics.BillingSummary, error)
}

// @Summary      Scan payments
// @Description  Admin listing of payment rows with filters and pagination.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body payment.ScanPaymentsRequest true "Scan request"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/admin/payments/scan [post]
func ApiScanPayments(mgr PaymentManager) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req payment.ScanPaymentsRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, err.Error()))
			return
		}
		res, err := mgr.ScanPayments(c.Request.Context(), &req)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

// @Summary      Billing summary
// @Description  Active subscriber counts by tier plus revenue over a date range.
// @Tags         Admin
// @Produce      json
// @Param        from query string false "RFC3339 range start (default: 30 days ago)"
// @Param        to query string false "RFC3339 range end (default: now)"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/admin/statistics/summary [get]
func ApiBillingSummary(stats BillingStats) gin.HandlerFunc {
	return func(c *gin.Context) {
		to := time.Now()
		from := to.AddDate(0, 0, -30)
		if v := c.Query("from"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "invalid from"))
				return
			}
			from = t
		}
		if v := c.Query("to"); v != "" {
			t, err := time.Parse(time.RFC3339, v)
			if err != nil {
				c.JSON(http.StatusOK, response.ErrorT[any](response.APIResponseCodeBadRequest, "invalid to"))
				return
			}
			to = t
		}
		res, err := stats.Summary(c.Request.Context(), from, to)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(res))
	}
}

func RegisterAdminRoutes(r gin.IRouter, mgr PaymentManager, stats BillingStats) {
	r.POST("/payments/scan", ApiScanPayments(mgr))
	r.GET("/statistics/summary", ApiBillingSummary(stats))
}
