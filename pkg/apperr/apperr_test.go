package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	require.Equal(t, KindValidation, KindOf(Validationf("bad input")))
	require.Equal(t, KindNotFound, KindOf(NotFoundf("missing %s", "row")))
	require.Equal(t, KindConflict, KindOf(Conflictf("already done")))
	require.Equal(t, KindQuotaExceeded, KindOf(QuotaExceeded("limit", "upgrade")))
	require.Equal(t, KindGateway, KindOf(Gateway("provider down", errors.New("timeout"))))
	require.Equal(t, KindSignature, KindOf(Signaturef("mismatch")))
	require.Equal(t, KindUnknown, KindOf(errors.New("plain")))
	require.Equal(t, KindUnknown, KindOf(nil))
}

func TestKindOf_SurvivesWrapping(t *testing.T) {
	err := fmt.Errorf("outer context: %w", NotFoundf("payment not found"))
	require.Equal(t, KindNotFound, KindOf(err))
}

func TestConflict_WrapsCause(t *testing.T) {
	sentinel := errors.New("retry limit exceeded")
	err := Conflict("payment p-1 exceeded 3 retries", sentinel)

	require.True(t, errors.Is(err, sentinel))
	require.Equal(t, KindConflict, KindOf(err))
	require.Contains(t, err.Error(), "payment p-1 exceeded 3 retries")
	require.Contains(t, err.Error(), "retry limit exceeded")
}

func TestQuotaExceeded_CarriesHint(t *testing.T) {
	err := QuotaExceeded("usage limit reached", "upgrade to premium")

	var ae *Error
	require.True(t, errors.As(err, &ae))
	require.Equal(t, "upgrade to premium", ae.UpgradeHint)
	require.Equal(t, "usage limit reached", err.Error())
}
