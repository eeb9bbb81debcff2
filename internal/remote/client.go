package remote

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/reviewdeck/docrelay/internal/cache"
	"github.com/reviewdeck/docrelay/internal/config"
	"github.com/reviewdeck/docrelay/pkg/logging"
)

const (
	apiKeyHeader    = "x-api-key"
	defaultFilename = "document.pdf"
	maxBodySize     = 100 * 1024 * 1024 // 100MB
	maxExcerptLen   = 200
)

// ClientConfig configures the remote fetch client.
type ClientConfig struct {
	Timeout          time.Duration `json:"timeout"`
	RequireWorkspace bool          `json:"require_workspace"`
	UserAgent        string        `json:"user_agent"`
}

// DefaultClientConfig returns sensible defaults.
func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		Timeout:   30 * time.Second,
		UserAgent: "docrelay/0.1",
	}
}

// Client retrieves document bytes from the remote API. The credential is
// sent as a request header and never logged or retained past the call.
type Client struct {
	http   *http.Client
	config *ClientConfig
}

// NewClient creates a remote fetch client.
func NewClient(cfg *ClientConfig) *Client {
	if cfg == nil {
		cfg = DefaultClientConfig()
	}
	return &Client{
		http:   &http.Client{Timeout: cfg.Timeout},
		config: cfg,
	}
}

// FetchDocument retrieves the raw bytes of a document by identifier.
func (c *Client) FetchDocument(ctx context.Context, documentID string, settings config.Settings) (*cache.DocumentBytes, error) {
	logger := logging.GetLogger("remote")

	target, err := c.contentURL(documentID, settings)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set(apiKeyHeader, settings.Credential)
	req.Header.Set("User-Agent", c.config.UserAgent)

	logger.Debug().Str("document_id", documentID).Msg("Fetching document")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, &TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return nil, &TransportError{Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &RemoteError{Status: resp.StatusCode, Body: excerpt(body)}
	}

	contentType := resp.Header.Get("Content-Type")
	if !isDocumentContentType(contentType) {
		return nil, &UnexpectedContentType{DeclaredType: contentType, Body: excerpt(body)}
	}

	name := filenameFromDisposition(resp.Header.Get("Content-Disposition"))

	logger.Info().
		Str("document_id", documentID).
		Int("size", len(body)).
		Str("filename", name).
		Msg("Document fetched")

	return &cache.DocumentBytes{Bytes: body, SuggestedName: name}, nil
}

// TestConnectivity issues a lightweight probe against the status endpoint.
// Success is any 2xx response.
func (c *Client) TestConnectivity(ctx context.Context, credential, endpointBase string) error {
	target := strings.TrimRight(endpointBase, "/") + "/status"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return &ConnectError{Detail: err.Error()}
	}
	req.Header.Set(apiKeyHeader, credential)
	req.Header.Set("User-Agent", c.config.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return &ConnectError{Detail: err.Error()}
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return &ConnectError{Status: resp.StatusCode, Detail: excerpt(body)}
	}
	return nil
}

// contentURL builds the document content URL from the configured endpoint.
func (c *Client) contentURL(documentID string, settings config.Settings) (string, error) {
	base := strings.TrimRight(settings.EndpointBase, "/")
	id := url.PathEscape(documentID)

	if settings.WorkspaceID != "" {
		return fmt.Sprintf("%s/workspaces/%s/files/%s/content", base, url.PathEscape(settings.WorkspaceID), id), nil
	}
	if c.config.RequireWorkspace {
		return "", &ConfigError{Message: "missing workspace"}
	}
	return fmt.Sprintf("%s/files/%s/content", base, id), nil
}

// isDocumentContentType accepts PDF and opaque binary declarations. Anything
// else is assumed to be a diagnostic wrapper (JSON error, login redirect).
func isDocumentContentType(declared string) bool {
	ct := strings.ToLower(declared)
	return strings.Contains(ct, "pdf") || strings.Contains(ct, "octet-stream")
}

// filenameFromDisposition extracts a suggested filename from a
// Content-Disposition header, tolerating unquoted and loosely formatted
// values. Falls back to a generic name.
func filenameFromDisposition(header string) string {
	if header == "" {
		return defaultFilename
	}

	if _, params, err := mime.ParseMediaType(header); err == nil {
		if name := params["filename"]; name != "" {
			return name
		}
	}

	// Loose fallback for headers the strict parser rejects.
	lower := strings.ToLower(header)
	idx := strings.Index(lower, "filename=")
	if idx < 0 {
		return defaultFilename
	}
	name := header[idx+len("filename="):]
	if cut := strings.IndexByte(name, ';'); cut >= 0 {
		name = name[:cut]
	}
	name = strings.Trim(strings.TrimSpace(name), `"`)
	if name == "" {
		return defaultFilename
	}
	return name
}

// excerpt truncates a response body for inclusion in error messages.
func excerpt(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > maxExcerptLen {
		return s[:maxExcerptLen] + "..."
	}
	return s
}
