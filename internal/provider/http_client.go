package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rewardhub/settlement-engine/internal/config"
)

// Provider wire status codes for payout orders
const (
	wireStatusPending = 0
	wireStatusSuccess = 1
	wireStatusFailed  = 2
)

type disburseResponse struct {
	Code        int    `json:"code"`
	Msg         string `json:"msg"`
	ProviderRef string `json:"provider_ref"`
}

type queryResponse struct {
	Code   int    `json:"code"`
	Status int    `json:"status"`
	Msg    string `json:"msg"`
}

// HTTPClient is the production Client implementation. Every call has a hard
// timeout; a timed-out disbursement is indeterminate and left to the
// reconciler, never retried inline.
type HTTPClient struct {
	cfg        *config.ProviderConfig
	httpClient *http.Client
	logger     *slog.Logger
}

// NewHTTPClient creates a provider client from channel configuration
func NewHTTPClient(logger *slog.Logger, cfg *config.ProviderConfig) *HTTPClient {
	return &HTTPClient{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

// Disburse submits one payout order. A code 0 response means the provider
// accepted the order for processing; any other code is a rejection surfaced
// as ErrRejected with the provider's message.
func (c *HTTPClient) Disburse(ctx context.Context, req *DisburseRequest) (*DisburseResult, error) {
	params := url.Values{}
	params.Set("merchant_no", c.cfg.MerchantNo)
	params.Set("order_no", req.OrderNo)
	params.Set("channel", c.cfg.Channel)
	params.Set("bank_code", req.BankCode)
	params.Set("account_no", req.AccountNo)
	params.Set("account_name", req.AccountName)
	params.Set("amount", formatAmount(req.Amount))

	body, err := c.signedForm(params)
	if err != nil {
		return nil, err
	}

	raw, err := c.post(ctx, "/api/payout/create", body)
	if err != nil {
		return nil, fmt.Errorf("disburse call failed: %w", err)
	}

	var resp disburseResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode disburse response: %w", err)
	}

	result := &DisburseResult{
		Accepted:    resp.Code == 0,
		ProviderRef: resp.ProviderRef,
		Message:     resp.Msg,
		RawRequest:  body,
		RawResponse: string(raw),
	}

	if !result.Accepted {
		c.logger.Warn("Provider rejected disbursement order",
			"order_no", req.OrderNo,
			"code", resp.Code,
			"msg", resp.Msg,
		)
		return result, fmt.Errorf("%w: %s", ErrRejected, resp.Msg)
	}

	return result, nil
}

// QueryStatus asks the provider for the current state of one order
func (c *HTTPClient) QueryStatus(ctx context.Context, orderNo string) (*QueryResult, error) {
	params := url.Values{}
	params.Set("merchant_no", c.cfg.MerchantNo)
	params.Set("order_no", orderNo)

	body, err := c.signedForm(params)
	if err != nil {
		return nil, err
	}

	raw, err := c.post(ctx, "/api/payout/query", body)
	if err != nil {
		return nil, fmt.Errorf("status query failed: %w", err)
	}

	var resp queryResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to decode query response: %w", err)
	}

	if resp.Code != 0 {
		return nil, fmt.Errorf("status query returned code %d: %s", resp.Code, resp.Msg)
	}

	return &QueryResult{
		Status:      mapWireStatus(resp.Status),
		Message:     resp.Msg,
		RawResponse: string(raw),
	}, nil
}

// signedForm decrypts the channel secret, signs the params and returns the
// encoded form body. The plaintext secret does not outlive this call.
func (c *HTTPClient) signedForm(params url.Values) (string, error) {
	secret, err := decryptChannelSecret(c.cfg.ChannelSecretKey, c.cfg.ChannelSecretCipher)
	if err != nil {
		return "", err
	}

	params.Set("sign", signParams(params, secret))
	return params.Encode(), nil
}

func (c *HTTPClient) post(ctx context.Context, path, body string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, strings.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build provider request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read provider response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("provider returned HTTP %d: %s", resp.StatusCode, string(raw))
	}

	return raw, nil
}

// formatAmount renders minor units as a decimal string ("50.00" for 5000)
func formatAmount(minor int64) string {
	whole := minor / 100
	frac := minor % 100
	if frac < 0 {
		frac = -frac
	}
	return strconv.FormatInt(whole, 10) + "." + fmt.Sprintf("%02d", frac)
}

func mapWireStatus(code int) Status {
	switch code {
	case wireStatusSuccess:
		return StatusSuccess
	case wireStatusFailed:
		return StatusFailed
	case wireStatusPending:
		return StatusPending
	default:
		// Unknown codes stay pending so the reconciler looks again
		return StatusPending
	}
}
