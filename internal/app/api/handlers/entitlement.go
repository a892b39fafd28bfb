package handlers

import (
	"context"
	"net/http"

	"github.com/studypass/billing/internal/app/service/entitlement"
	"github.com/studypass/billing/pkg/response"
	"github.com/studypass/billing/pkg/types"

	"github.com/gin-gonic/gin"
)

// EntitlementResolver is satisfied by *entitlement.Service.
type EntitlementResolver interface {
	GetFeaturesForTier(ctx context.Context, tier types.Tier) ([]*entitlement.FeatureGrant, error)
}

// @Summary      Features for tier
// @Description  Returns the feature catalog projected onto a tier, with per-feature usage limits.
// @Tags         Entitlement
// @Produce      json
// @Param        tier query string false "Tier (free, premium, professional); defaults to free"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/features [get]
func ApiFeaturesForTier(resolver EntitlementResolver) gin.HandlerFunc {
	return func(c *gin.Context) {
		tier := types.Tier(c.DefaultQuery("tier", string(types.TierFree)))
		grants, err := resolver.GetFeaturesForTier(c.Request.Context(), tier)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, response.OKT(grants))
	}
}

func RegisterEntitlementRoutes(r gin.IRouter, resolver EntitlementResolver) {
	r.GET("/features", ApiFeaturesForTier(resolver))
}
