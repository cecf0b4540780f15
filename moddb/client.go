package moddb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"vslmanager/config"
	"vslmanager/logger"

	"go.uber.org/zap"
)

const (
	defaultTimeout = 10 * time.Second
)

// ErrCatalogUnavailable covers every way a catalog lookup can come back
// empty: unknown mod, bad status, network failure, timeout.
var ErrCatalogUnavailable = errors.New("mod catalog unavailable")

// Catalog is the lookup half of the client, which is all reconciliation needs.
type Catalog interface {
	QueryByModID(ctx context.Context, modid string) (*Mod, error)
}

// Client handles communication with the mod database API.
type Client struct {
	BaseURL    string
	UserAgent  string
	HTTPClient *http.Client
	Log        *zap.SugaredLogger
}

// NewClient creates a new API client using the provided configuration.
func NewClient(cfg config.Config, log *zap.SugaredLogger) (*Client, error) {
	if cfg.UserAgent == "" {
		return nil, fmt.Errorf("VSL_USERAGENT is not configured")
	}
	if cfg.ModDBURL == "" {
		return nil, fmt.Errorf("VSL_MODDB_URL is not configured")
	}
	timeout := cfg.CatalogTimeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	log = logger.OrNop(log)

	return &Client{
		BaseURL:   strings.TrimRight(cfg.ModDBURL, "/"),
		UserAgent: cfg.UserAgent,
		HTTPClient: &http.Client{
			Timeout: timeout,
		},
		Log: log,
	}, nil
}

func (c *Client) makeRequest(ctx context.Context, method, path string, target any, isBinary bool) (*http.Response, error) {
	fullURL := c.BaseURL + path
	if isBinary {
		// For binary downloads, the 'path' is expected to be the full URL already
		fullURL = path
	}

	req, err := http.NewRequestWithContext(ctx, method, fullURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", c.UserAgent)
	if !isBinary {
		req.Header.Set("Accept", "application/json")
	} else {
		req.Header.Set("Accept", "application/octet-stream")
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to execute request: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return resp, fmt.Errorf("api request failed: status %d, body: %s", resp.StatusCode, string(bodyBytes))
	}

	if target != nil && !isBinary {
		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return resp, fmt.Errorf("failed to decode json response: %w", err)
		}
	}

	return resp, nil
}

// QueryByModID fetches a mod and its releases. Any failure wraps
// ErrCatalogUnavailable.
func (c *Client) QueryByModID(ctx context.Context, modid string) (*Mod, error) {
	if modid == "" {
		return nil, fmt.Errorf("%w: empty mod id", ErrCatalogUnavailable)
	}

	var payload modResponse
	_, err := c.makeRequest(ctx, http.MethodGet, "/api/mod/"+url.PathEscape(modid), &payload, false)
	if err != nil {
		c.Log.Debugw("Catalog lookup failed", zap.String("modid", modid), zap.Error(err))
		return nil, fmt.Errorf("%w: mod '%s': %v", ErrCatalogUnavailable, modid, err)
	}
	if payload.StatusCode != "" && payload.StatusCode != "200" {
		return nil, fmt.Errorf("%w: mod '%s': status %s", ErrCatalogUnavailable, modid, payload.StatusCode)
	}
	if payload.Mod == nil {
		return nil, fmt.Errorf("%w: mod '%s': empty response", ErrCatalogUnavailable, modid)
	}
	return payload.Mod, nil
}

// DownloadModFile downloads a mod package to destinationPath. The body is
// written to a temporary sibling and renamed, so an existing package with the
// same name is only replaced by a complete download.
func (c *Client) DownloadModFile(ctx context.Context, destinationPath, downloadURL string) error {
	dir := filepath.Dir(destinationPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create target directory '%s': %w", dir, err)
	}

	resp, err := c.makeRequest(ctx, http.MethodGet, downloadURL, nil, true)
	if err != nil {
		return fmt.Errorf("failed to start download for '%s' from %s: %w", filepath.Base(destinationPath), downloadURL, err)
	}
	defer resp.Body.Close()

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(destinationPath)+".*.part")
	if err != nil {
		return fmt.Errorf("failed to create file in '%s': %w", dir, err)
	}
	tmpPath := tmp.Name()

	if _, err := io.Copy(tmp, resp.Body); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write downloaded content to '%s': %w", destinationPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to finish '%s': %w", destinationPath, err)
	}
	if err := os.Rename(tmpPath, destinationPath); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to move download into place '%s': %w", destinationPath, err)
	}

	c.Log.Infow("Downloaded mod file", zap.String("file", filepath.Base(destinationPath)), zap.String("url", downloadURL))
	return nil
}
