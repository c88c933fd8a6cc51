package acquire

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Errors the portal can answer with. ErrAuthExpired halts a batch run;
// ErrNotFound only fails the single item.
var (
	ErrAuthExpired = errors.New("portal session expired")
	ErrNotFound    = errors.New("photo not found on portal")
)

// DefaultBaseURL is the portal endpoint serving meter photos.
const DefaultBaseURL = "https://portalapp.iconpln.co.id/acmt/DisplayBlobServlet1"

const defaultTimeout = 15 * time.Second

// ClientConfig holds portal access configuration. The two session cookies
// come from an operator's logged-in browser session.
type ClientConfig struct {
	BaseURL    string
	JSessionID string // JSESSIONID cookie value
	PoolACMT   string // Pool_ACMTJava cookie value
	Timeout    time.Duration
	UserAgent  string
}

// DefaultClientConfig returns portal defaults; session cookies must be set.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		BaseURL:   DefaultBaseURL,
		Timeout:   defaultTimeout,
		UserAgent: "Mozilla/5.0",
	}
}

// Client downloads meter photos from the billing portal.
type Client struct {
	cfg        ClientConfig
	httpClient *http.Client
}

// NewClient creates a portal client. Both session cookies are required.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.JSessionID == "" || cfg.PoolACMT == "" {
		return nil, errors.New("both session cookies are required")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = "Mozilla/5.0"
	}
	return &Client{
		cfg:        cfg,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// photoURL builds the portal URL for one account and billing period.
func (c *Client) photoURL(idpel, blth string) string {
	q := url.Values{}
	q.Set("idpel", idpel)
	q.Set("blth", blth)
	return c.cfg.BaseURL + "?" + q.Encode()
}

// FetchPhoto downloads the meter photo for one account and billing period.
// An HTML response means the session cookies no longer authenticate and the
// caller should stop the whole batch.
func (c *Client) FetchPhoto(ctx context.Context, idpel, blth string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.photoURL(idpel, blth), nil)
	if err != nil {
		return nil, fmt.Errorf("build portal request: %w", err)
	}
	req.Header.Set("User-Agent", c.cfg.UserAgent)
	req.AddCookie(&http.Cookie{Name: "JSESSIONID", Value: c.cfg.JSessionID})
	req.AddCookie(&http.Cookie{Name: "Pool_ACMTJava", Value: c.cfg.PoolACMT})

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("portal request for %s/%s: %w", idpel, blth, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("portal returned status %d for %s/%s", resp.StatusCode, idpel, blth)
	}
	// A login page instead of image bytes means the cookies expired.
	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		return nil, ErrAuthExpired
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read portal response for %s/%s: %w", idpel, blth, err)
	}
	return data, nil
}

// DownloadPhoto fetches the photo and writes it under dir as idpel_blth.jpg,
// returning the file path.
func (c *Client) DownloadPhoto(ctx context.Context, idpel, blth, dir string) (string, error) {
	data, err := c.FetchPhoto(ctx, idpel, blth)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return "", fmt.Errorf("create download dir: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("%s_%s.jpg", idpel, blth))
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", fmt.Errorf("write downloaded photo: %w", err)
	}
	return path, nil
}
