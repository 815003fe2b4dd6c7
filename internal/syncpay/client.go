package syncpay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"go.uber.org/zap"

	"afiliapix/internal/money"
)

const (
	authTokenPath = "/api/partner/v1/auth-token"
	cashInPath    = "/api/partner/v1/pix/cash-in"
	cashOutPath   = "/api/partner/v1/cash-out"

	// Refresh the cached token slightly before the provider expires it.
	tokenExpirySlack = 30 * time.Second
)

// Error is a non-success response from the payment provider. The
// caller must not assume any side effect occurred.
type Error struct {
	Status  int
	Message string
}

func (e *Error) Error() string {
	return fmt.Sprintf("syncpay: %s (status: %d)", e.Message, e.Status)
}

type Client struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	HTTPClient   *http.Client

	log *zap.Logger

	mu          sync.Mutex
	cachedToken string
	tokenExpiry time.Time
}

func NewClient(baseURL, clientID, clientSecret string, log *zap.Logger) *Client {
	return &Client{
		BaseURL:      baseURL,
		ClientID:     clientID,
		ClientSecret: clientSecret,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		log: log,
	}
}

// Authenticate exchanges the client credentials for a bearer token.
func (c *Client) Authenticate(ctx context.Context) (string, error) {
	var out authTokenResponse
	err := c.post(ctx, authTokenPath, "", authTokenRequest{
		ClientID:     c.ClientID,
		ClientSecret: c.ClientSecret,
	}, &out)
	if err != nil {
		return "", err
	}
	if out.AccessToken == "" {
		return "", &Error{Status: http.StatusOK, Message: "empty access token"}
	}

	c.mu.Lock()
	c.cachedToken = out.AccessToken
	if out.ExpiresIn > 0 {
		c.tokenExpiry = time.Now().Add(time.Duration(out.ExpiresIn)*time.Second - tokenExpirySlack)
	} else {
		c.tokenExpiry = time.Time{}
	}
	c.mu.Unlock()

	return out.AccessToken, nil
}

// CreateCharge opens a Pix cash-in for the given amount. externalID is
// echoed back in the settlement webhook as the correlation id.
func (c *Client) CreateCharge(ctx context.Context, amount money.Centavos, externalID, description string) (*CashInResponse, error) {
	var out CashInResponse
	err := c.doAuthed(ctx, cashInPath, CashInRequest{
		Amount:      amount.Reais(),
		ExternalID:  externalID,
		Description: description,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// SubmitPayout sends a Pix cash-out. The provider deduplicates on
// external_id, so a retried submission with the same idempotency key
// never pays out twice.
func (c *Client) SubmitPayout(ctx context.Context, amount money.Centavos, key, keyType, idempotencyKey string) (*CashOutResponse, error) {
	var out CashOutResponse
	err := c.doAuthed(ctx, cashOutPath, CashOutRequest{
		Amount:      amount.Reais(),
		Key:         key,
		KeyType:     keyType,
		Description: "Saque Pix Automático",
		ExternalID:  idempotencyKey,
	}, &out)
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// doAuthed runs an authenticated call, re-authenticating once if the
// cached token is stale or rejected. An invalid cached token never
// fails the caller on its own.
func (c *Client) doAuthed(ctx context.Context, path string, body, out interface{}) error {
	token, fresh, err := c.token(ctx)
	if err != nil {
		return err
	}

	err = c.post(ctx, path, token, body, out)
	var apiErr *Error
	if err != nil && !fresh && errors.As(err, &apiErr) && apiErr.Status == http.StatusUnauthorized {
		token, err = c.Authenticate(ctx)
		if err != nil {
			return err
		}
		return c.post(ctx, path, token, body, out)
	}
	return err
}

func (c *Client) token(ctx context.Context) (token string, fresh bool, err error) {
	c.mu.Lock()
	cached := c.cachedToken
	valid := cached != "" && (c.tokenExpiry.IsZero() || time.Now().Before(c.tokenExpiry))
	c.mu.Unlock()

	if valid {
		return cached, false, nil
	}
	t, err := c.Authenticate(ctx)
	return t, true, err
}

func (c *Client) post(ctx context.Context, path, bearer string, body, out interface{}) error {
	jsonBody, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+path, bytes.NewBuffer(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		var apiErr errorResponse
		_ = json.Unmarshal(respBody, &apiErr)
		msg := apiErr.Message
		if msg == "" {
			msg = string(respBody)
		}
		c.log.Warn("syncpay request failed",
			zap.String("path", path),
			zap.Int("status", resp.StatusCode),
			zap.String("message", msg))
		return &Error{Status: resp.StatusCode, Message: msg}
	}

	if out != nil {
		if err := json.Unmarshal(respBody, out); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}
	return nil
}
