package handlers

import (
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

func TestRegisterRoutes_RegistersEndpoints(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	apiV1 := r.Group("/api/v1")

	RegisterSubscriptionRoutes(apiV1, nil)
	RegisterPaymentRoutes(apiV1, nil)
	RegisterUsageRoutes(apiV1, nil)
	RegisterEntitlementRoutes(apiV1, nil)
	RegisterAdminRoutes(apiV1.Group("/admin"), nil, nil)
	RegisterWebhookRoutes(apiV1.Group("/webhooks"), nil, nil)
	RegisterHealthRoutes(r)

	routes := r.Routes()
	contains := func(target string) bool {
		for _, rt := range routes {
			if rt.Method+" "+rt.Path == target {
				return true
			}
		}
		return false
	}

	require.True(t, contains("POST /api/v1/subscriptions"))
	require.True(t, contains("GET /api/v1/subscriptions/me"))
	require.True(t, contains("PATCH /api/v1/subscriptions/:id"))
	require.True(t, contains("POST /api/v1/subscriptions/:id/cancel"))
	require.True(t, contains("POST /api/v1/subscriptions/:id/pause"))
	require.True(t, contains("POST /api/v1/payments"))
	require.True(t, contains("POST /api/v1/payments/verify"))
	require.True(t, contains("POST /api/v1/payments/:id/refund"))
	require.True(t, contains("POST /api/v1/payments/:id/retry"))
	require.True(t, contains("POST /api/v1/usage/check"))
	require.True(t, contains("GET /api/v1/usage/history"))
	require.True(t, contains("GET /api/v1/features"))
	require.True(t, contains("POST /api/v1/admin/payments/scan"))
	require.True(t, contains("GET /api/v1/admin/statistics/summary"))
	require.True(t, contains("POST /api/v1/webhooks/flowpay"))
	require.True(t, contains("GET /healthz"))
}
