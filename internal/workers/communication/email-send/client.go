package emailsend

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"birdwatch-support/internal/common/errors"
	httpclient "birdwatch-support/internal/common/http"
)

// Client calls a remote gateway over HTTP.
type Client struct {
	http   *httpclient.Client
	url    string
	apiKey string
}

// NewClient targets baseURL, e.g. https://mail.example.com; the send path is
// appended.
func NewClient(http *httpclient.Client, baseURL, apiKey string) *Client {
	return &Client{http: http, url: baseURL + SendEmailPath, apiKey: apiKey}
}

func (c *Client) Send(ctx context.Context, req *SendRequest) (*ProviderResponse, error) {
	headers := map[string]string{}
	if c.apiKey != "" {
		headers["apikey"] = c.apiKey
	}

	resp, err := c.http.PostJSON(ctx, c.url, req, headers)
	if err != nil {
		return nil, errors.NewExternalServiceError("mail gateway", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errors.NewExternalServiceError("mail gateway", fmt.Errorf("read response: %w", err))
	}

	if resp.StatusCode == http.StatusOK {
		var out ProviderResponse
		if err := json.Unmarshal(body, &out); err != nil {
			return nil, errors.NewExternalServiceError("mail gateway", fmt.Errorf("decode response: %w", err))
		}
		return &out, nil
	}

	var gwErr ErrorResponse
	if err := json.Unmarshal(body, &gwErr); err != nil || gwErr.Error == "" {
		return nil, errors.NewExternalServiceError("mail gateway", fmt.Errorf("status %d: %s", resp.StatusCode, string(body)))
	}
	return nil, remoteError(gwErr)
}

// remoteError rebuilds the gateway's error so callers can match it with
// errors.Is.
func remoteError(gwErr ErrorResponse) error {
	switch errors.ErrorCode(gwErr.Code) {
	case errors.ErrCodeQuotaExceeded:
		e := errors.NewQuotaExceededError(0)
		e.Message = gwErr.Error
		e.Details = gwErr.Details
		return e
	case errors.ErrCodeValidationFailed:
		return errors.NewValidationError(gwErr.Error, gwErr.Details)
	default:
		return errors.NewTransportError("mail gateway", fmt.Errorf("%s: %s", gwErr.Error, gwErr.Details))
	}
}
