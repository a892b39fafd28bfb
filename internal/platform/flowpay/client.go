package flowpay

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/studypass/billing/pkg/apperr"
	cfgpkg "github.com/studypass/billing/pkg/config"

	"go.uber.org/fx"
	"go.uber.org/zap"
)

// TransactionStatusSuccessful is the provider-side terminal success status.
const TransactionStatusSuccessful = "successful"

// Customer is the customer block echoed by the provider.
type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone_number"`
}

// Authorization is the reusable charge handle returned after a card charge.
type Authorization struct {
	Token string `json:"token"`
	Last4 string `json:"last_4digits"`
	Brand string `json:"card_type"`
}

// TransactionData is the verified view of a provider transaction.
// Amount is in minor currency units.
type TransactionData struct {
	ID            string         `json:"id"`
	TxRef         string         `json:"tx_ref"`
	Status        string         `json:"status"`
	Amount        int64          `json:"amount"`
	Currency      string         `json:"currency"`
	PaymentType   string         `json:"payment_type"`
	Customer      Customer       `json:"customer"`
	Meta          map[string]any `json:"meta"`
	Authorization *Authorization `json:"authorization,omitempty"`
}

func (t *TransactionData) Successful() bool {
	return t != nil && t.Status == TransactionStatusSuccessful
}

type RecurringChargeRequest struct {
	Token    string `json:"token"`
	TxRef    string `json:"tx_ref"`
	Email    string `json:"email"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	// Interval is "monthly" or "annually" in provider vocabulary.
	Interval string `json:"interval"`
}

type RecurringCharge struct {
	ID       string `json:"id"`
	Status   string `json:"status"`
	Interval string `json:"interval"`
	Amount   int64  `json:"amount"`
}

type RecurringChargeUpdate struct {
	Amount   int64  `json:"amount"`
	Interval string `json:"interval"`
}

type apiEnvelope struct {
	Status  string          `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Client talks to the FlowPay REST API. All calls authenticate with the
// account secret key as a bearer token.
type Client struct {
	baseURL   string
	secretKey string
	hc        *http.Client
	log       *zap.SugaredLogger
}

func NewClient(cfg *cfgpkg.Config, log *zap.SugaredLogger) *Client {
	return &Client{
		baseURL:   cfg.FlowPay.BaseURL,
		secretKey: cfg.FlowPay.SecretKey,
		hc:        &http.Client{Timeout: 30 * time.Second},
		log:       log,
	}
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request body: %w", err)
		}
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rdr)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	res, err := c.hc.Do(req)
	if err != nil {
		return apperr.Gateway("provider request failed", err)
	}
	defer res.Body.Close()

	raw, err := io.ReadAll(res.Body)
	if err != nil {
		return apperr.Gateway("failed to read provider response", err)
	}
	if res.StatusCode < 200 || res.StatusCode >= 300 {
		return apperr.Gateway(fmt.Sprintf("provider returned status %d", res.StatusCode), fmt.Errorf("%s %s: %s", method, path, string(raw)))
	}

	var env apiEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return apperr.Gateway("failed to decode provider response", err)
	}
	if env.Status != "success" {
		return apperr.Gateway(fmt.Sprintf("provider error: %s", env.Message), nil)
	}
	if out != nil && len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, out); err != nil {
			return apperr.Gateway("failed to decode provider data", err)
		}
	}
	return nil
}

// VerifyTransaction fetches the authoritative status of a transaction.
func (c *Client) VerifyTransaction(ctx context.Context, externalTransactionID string) (*TransactionData, error) {
	var data TransactionData
	if err := c.do(ctx, http.MethodGet, "/transactions/"+externalTransactionID+"/verify", nil, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// CreateRecurringCharge registers a recurring charge against a saved
// authorization token.
func (c *Client) CreateRecurringCharge(ctx context.Context, req *RecurringChargeRequest) (*RecurringCharge, error) {
	var data RecurringCharge
	if err := c.do(ctx, http.MethodPost, "/recurring-charges", req, &data); err != nil {
		return nil, err
	}
	return &data, nil
}

// UpdateRecurringCharge pushes amount/interval changes to an existing handle.
func (c *Client) UpdateRecurringCharge(ctx context.Context, id string, upd *RecurringChargeUpdate) error {
	return c.do(ctx, http.MethodPut, "/recurring-charges/"+id, upd, nil)
}

// DisableRecurringCharge stops future provider-initiated charges.
func (c *Client) DisableRecurringCharge(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodPut, "/recurring-charges/"+id+"/disable", nil, nil)
}

// Refund asks the provider to refund a settled transaction.
func (c *Client) Refund(ctx context.Context, externalTransactionID string, amount int64) error {
	body := map[string]any{"amount": amount}
	return c.do(ctx, http.MethodPost, "/transactions/"+externalTransactionID+"/refund", body, nil)
}

var Module = fx.Options(
	fx.Provide(NewClient),
)
