package identity

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Client is an HTTP implementation of Provider.
type Client struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
}

// NewClient creates a provider client with a sane request timeout.
func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		APIKey:  apiKey,
		HTTPClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

func (c *Client) url(path string) string {
	return c.BaseURL + path
}

func (c *Client) doJSON(ctx context.Context, method, path string, reqBody, target any) error {
	var body io.Reader
	if reqBody != nil {
		raw, err := json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.url(path), body)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return parseErrorResponse(resp.StatusCode, raw)
	}
	if err := json.Unmarshal(raw, target); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// parseErrorResponse maps provider error payloads onto the package's
// sentinel errors so callers never depend on upstream error strings.
func parseErrorResponse(status int, body []byte) error {
	var errResp struct {
		Error            string `json:"error"`
		ErrorDescription string `json:"error_description"`
	}
	_ = json.Unmarshal(body, &errResp)

	switch errResp.Error {
	case "assertion_expired", "link_expired":
		return ErrAssertionExpired
	case "assertion_invalid", "invalid_grant", "invalid_token":
		return ErrAssertionInvalid
	}

	if status == http.StatusUnauthorized || status == http.StatusBadRequest {
		return ErrAssertionInvalid
	}

	desc := errResp.ErrorDescription
	if desc == "" {
		desc = http.StatusText(status)
	}
	return &UpstreamError{
		StatusCode:  status,
		Code:        errResp.Error,
		Description: desc,
	}
}

func (c *Client) CreateSignInLink(ctx context.Context, email string, ttl time.Duration) (SignInLink, error) {
	reqBody := struct {
		Email      string `json:"email"`
		TTLSeconds int64  `json:"ttl_seconds"`
	}{
		Email:      email,
		TTLSeconds: int64(ttl / time.Second),
	}

	var respBody struct {
		URL                string    `json:"url"`
		ExternalIdentityID string    `json:"identity_id"`
		ExpiresAt          time.Time `json:"expires_at"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/links", reqBody, &respBody); err != nil {
		return SignInLink{}, err
	}

	return SignInLink{
		URL:                respBody.URL,
		ExternalIdentityID: respBody.ExternalIdentityID,
		ExpiresAt:          respBody.ExpiresAt,
	}, nil
}

func (c *Client) VerifyAssertion(ctx context.Context, token string) (Assertion, error) {
	reqBody := struct {
		Assertion string `json:"assertion"`
	}{Assertion: token}

	var respBody struct {
		ExternalIdentityID string `json:"identity_id"`
		Email              string `json:"email"`
	}
	if err := c.doJSON(ctx, http.MethodPost, "/v1/assertions/verify", reqBody, &respBody); err != nil {
		return Assertion{}, err
	}

	return Assertion{
		ExternalIdentityID: respBody.ExternalIdentityID,
		Email:              respBody.Email,
	}, nil
}
