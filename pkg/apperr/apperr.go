package apperr

import (
	"errors"
	"fmt"
)

// Kind classifies billing errors so handlers can map them to response codes
// without string matching.
type Kind int

const (
	KindUnknown Kind = iota
	KindValidation
	KindNotFound
	KindConflict
	KindQuotaExceeded
	KindGateway
	KindSignature
)

type Error struct {
	Kind Kind
	Msg  string
	// UpgradeHint is set on quota errors; callers surface it as an upsell.
	UpgradeHint string
	Err         error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Msg, e.Err)
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

func Validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

func NotFoundf(format string, args ...any) *Error {
	return &Error{Kind: KindNotFound, Msg: fmt.Sprintf(format, args...)}
}

func Conflictf(format string, args ...any) *Error {
	return &Error{Kind: KindConflict, Msg: fmt.Sprintf(format, args...)}
}

func QuotaExceeded(msg, upgradeHint string) *Error {
	return &Error{Kind: KindQuotaExceeded, Msg: msg, UpgradeHint: upgradeHint}
}

func Gateway(msg string, err error) *Error {
	return &Error{Kind: KindGateway, Msg: msg, Err: err}
}

func Signaturef(format string, args ...any) *Error {
	return &Error{Kind: KindSignature, Msg: fmt.Sprintf(format, args...)}
}

// KindOf returns the Kind of err, or KindUnknown for plain errors.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// Conflict wraps cause as a conflict error so callers can match the cause
// with errors.Is while handlers map on the kind.
func Conflict(msg string, cause error) *Error {
	return &Error{Kind: KindConflict, Msg: msg, Err: cause}
}
