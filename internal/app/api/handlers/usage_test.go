package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/studypass/billing/internal/models"
	"github.com/studypass/billing/pkg/apperr"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type stubMeter struct {
	row *models.PremiumFeatureUsage
	err error
}

func (s *stubMeter) CheckAndIncrement(_ context.Context, _, _ string) (*models.PremiumFeatureUsage, error) {
	return s.row, s.err
}

func (s *stubMeter) GetUsageHistory(_ context.Context, _, _ string, _, _ int) ([]*models.PremiumFeatureUsage, int64, error) {
	panic("not used")
}

func doUsageCheck(t *testing.T, meter UsageMeter, userID string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.POST("/api/v1/usage/check", ApiUsageCheck(meter))

	body, _ := json.Marshal(map[string]string{"feature_key": "ai_sop_review"})
	req := httptest.NewRequest(http.MethodPost, "/api/v1/usage/check", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if userID != "" {
		req.Header.Set(HeaderUserID, userID)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestApiUsageCheck_QuotaExceededCarriesUpgradeHint(t *testing.T) {
	meter := &stubMeter{err: apperr.QuotaExceeded("usage limit reached for ai_sop_review", "upgrade to premium to raise this limit")}

	w := doUsageCheck(t, meter, "user-1")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Code int `json:"code"`
		Data struct {
			Error       string `json:"error"`
			UpgradeHint string `json:"upgrade_hint"`
		} `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 40299, resp.Code)
	require.Equal(t, "upgrade to premium to raise this limit", resp.Data.UpgradeHint)
	require.Contains(t, resp.Data.Error, "ai_sop_review")
}

func TestApiUsageCheck_Success(t *testing.T) {
	meter := &stubMeter{row: &models.PremiumFeatureUsage{ID: "usage-1", UserID: "user-1", FeatureKey: "ai_sop_review", UsageCount: 2}}

	w := doUsageCheck(t, meter, "user-1")
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Code int                        `json:"code"`
		Data models.PremiumFeatureUsage `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, 0, resp.Code)
	require.Equal(t, int64(2), resp.Data.UsageCount)
}

func TestApiUsageCheck_MissingIdentity(t *testing.T) {
	w := doUsageCheck(t, &stubMeter{}, "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "40000")
}
