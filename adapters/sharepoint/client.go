// Package sharepoint fetches workbooks from SharePoint sharing links through
// the Microsoft Graph shares endpoint.
package sharepoint

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"datahub/adapters/excel"
	"datahub/internal/errors"
	"datahub/internal/retry"
	"datahub/ports"

	"github.com/rs/zerolog"
	"github.com/tidwall/gjson"
)

const (
	DefaultBaseURL = "https://graph.microsoft.com/v1.0"

	downloadURLPath = `@microsoft\.graph\.downloadUrl`
)

// Config tunes the Graph client. Zero values take defaults.
type Config struct {
	BaseURL    string
	HTTPClient *http.Client
	Retry      retry.Config
}

// Client is a WorkbookSource backed by Microsoft Graph.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  ports.TokenProvider
	retry   retry.Config
	logger  zerolog.Logger
}

var _ ports.WorkbookSource = (*Client)(nil)

func NewClient(tokens ports.TokenProvider, cfg Config, logger zerolog.Logger) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: 5 * time.Minute}
	}
	if cfg.Retry.MaxRetries == 0 && cfg.Retry.BaseDelay == 0 {
		cfg.Retry = retry.Default()
	}
	if cfg.Retry.Retryable == nil {
		cfg.Retry.Retryable = retryable
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		http:    cfg.HTTPClient,
		tokens:  tokens,
		retry:   cfg.Retry,
		logger:  logger.With().Str("component", "sharepoint").Logger(),
	}
}

// EncodeSharingURL converts a sharing link into a Graph share id:
// "u!" followed by the unpadded base64url form of the link without its query.
func EncodeSharingURL(link string) string {
	if i := strings.IndexByte(link, '?'); i >= 0 {
		link = link[:i]
	}
	return "u!" + base64.RawURLEncoding.EncodeToString([]byte(link))
}

// Fetch downloads and parses the workbook behind a sharing link.
func (c *Client) Fetch(ctx context.Context, locator string) (ports.Workbook, error) {
	logger := c.logger.With().Str("url", locator).Logger()
	ctx = logger.WithContext(ctx)
	logger.Info().Msg("Fetching file from SharePoint")

	data, err := retry.WithRetry(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		return c.download(ctx, locator)
	})
	if err != nil {
		logger.Error().Err(err).Msg("Failed to fetch file from SharePoint")
		if errors.IsCode(err, errors.CodeAuthentication) {
			return nil, err
		}
		return nil, errors.ConnectionError("failed to fetch file from SharePoint", err).
			WithDetail("url", locator)
	}
	logger.Info().Int("size", len(data)).Msg("File downloaded from SharePoint")

	wb, err := excel.Open(bytes.NewReader(data), locator, int64(len(data)))
	if err != nil {
		return nil, err
	}
	return wb, nil
}

func (c *Client) download(ctx context.Context, locator string) ([]byte, error) {
	token, err := c.tokens.Token(ctx)
	if err != nil {
		// a stalled token endpoint is retried like any other timed out attempt
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() != nil {
			return nil, err
		}
		if errors.IsCode(err, errors.CodeAuthentication) {
			return nil, retry.Stop(err)
		}
		return nil, retry.Stop(errors.AuthenticationError(err))
	}

	meta, err := c.get(ctx, c.baseURL+"/shares/"+EncodeSharingURL(locator)+"/driveItem", token)
	if err != nil {
		return nil, err
	}
	downloadURL := gjson.GetBytes(meta, downloadURLPath).String()
	if downloadURL == "" {
		return nil, retry.Stop(errors.ConnectionError("no download URL found for file", nil))
	}
	zerolog.Ctx(ctx).Debug().
		Str("name", gjson.GetBytes(meta, "name").String()).
		Int64("size", gjson.GetBytes(meta, "size").Int()).
		Msg("Downloading file content")

	// The download URL is pre-authenticated.
	return c.get(ctx, downloadURL, "")
}

// statusError is a non-2xx Graph response.
type statusError struct {
	status  int
	message string
}

func (e *statusError) Error() string {
	if e.message == "" {
		return fmt.Sprintf("graph request failed with status %d", e.status)
	}
	return fmt.Sprintf("graph request failed with status %d: %s", e.status, e.message)
}

func (c *Client) get(ctx context.Context, url, token string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, retry.Stop(fmt.Errorf("failed to build request: %w", err))
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return body, nil
	}

	serr := &statusError{status: resp.StatusCode, message: gjson.GetBytes(body, "error.message").String()}
	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden:
		return nil, retry.Stop(errors.AuthenticationError(serr))
	case http.StatusNotFound:
		return nil, retry.Stop(errors.ConnectionError("shared file not found", serr))
	}
	return nil, serr
}

// retryable retries transport failures, throttling and server errors.
func retryable(err error) bool {
	var serr *statusError
	if errors.As(err, &serr) {
		return serr.status == http.StatusTooManyRequests || serr.status == http.StatusRequestTimeout || serr.status >= 500
	}
	return true
}
