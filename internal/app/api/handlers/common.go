package handlers

import (
	"errors"
	"net/http"

	"github.com/studypass/billing/pkg/apperr"
	"github.com/studypass/billing/pkg/response"

	"github.com/gin-gonic/gin"
)

// Identity headers populated by the upstream identity collaborator.
const (
	HeaderUserID   = "X-User-ID"
	HeaderUserRole = "X-User-Role"
)

func identityUserID(c *gin.Context) string {
	return c.GetHeader(HeaderUserID)
}

func errCode(err error) response.APIResponseCode {
	switch apperr.KindOf(err) {
	case apperr.KindValidation:
		return response.APIResponseCodeBadRequest
	case apperr.KindNotFound:
		return response.APIResponseCodeNotFound
	case apperr.KindConflict:
		return response.APIResponseCodeConflict
	case apperr.KindQuotaExceeded:
		return response.APIResponseCodePaymentRequired
	case apperr.KindSignature:
		return response.APIResponseCodeUnauthorized
	case apperr.KindGateway:
		return response.APIResponseCodeGatewayError
	default:
		return response.APIResponseCodeError
	}
}

// respondErr writes the standard error envelope. Quota errors carry the
// upgrade hint so the client can render an upsell instead of a failure.
func respondErr(c *gin.Context, err error) {
	var ae *apperr.Error
	if errors.As(err, &ae) && ae.Kind == apperr.KindQuotaExceeded {
		c.JSON(http.StatusOK, response.ErrorT(response.APIResponseCodePaymentRequired, map[string]string{
			"error":        ae.Msg,
			"upgrade_hint": ae.UpgradeHint,
		}))
		return
	}
	c.JSON(http.StatusOK, response.ErrorT[any](errCode(err), err.Error()))
}
