// Package cdn talks to the game's content-delivery endpoints: the maintenance
// service for the current bundle version, the per-version catalog, and the
// bundle payloads themselves, with candidate-URL fallback and progress
// tracking for streaming downloads.
package cdn

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/Ark-Repoleved/BDroid-X/internal/cache"
	"github.com/Ark-Repoleved/BDroid-X/internal/catalog"
	"github.com/Ark-Repoleved/BDroid-X/internal/utils"
)

const (
	BaseURL        = "https://cdn.bd2.pmang.cloud"
	maintenanceURL = "https://mt.bd2.pmang.cloud/MaintenanceInfo"
	catalogName    = "catalog_alpha.json"

	// versionRequestBody is the base64 protobuf request the game client
	// sends: a single varint field selecting the Android market.
	versionRequestBody = "EAQ="
)

const serverDataPath = "%s/ServerData/Android/%s/%s/%s"

// CatalogURL returns the catalog location for a quality/version pair.
func CatalogURL(quality, version string) string {
	return fmt.Sprintf(serverDataPath, BaseURL, quality, version, catalogName)
}

// BundleURL returns the payload location for one CDN filename.
func BundleURL(quality, version, filename string) string {
	return fmt.Sprintf(serverDataPath, BaseURL, quality, version, filename)
}

// Client downloads catalogs and bundles for one quality tier.
type Client struct {
	HTTP     *http.Client
	Cache    *cache.Cache
	Quality  string // "HD" or "SD"
	Progress bool

	// Endpoint overrides, empty for the production hosts.
	BaseURL        string
	MaintenanceURL string
}

func (c *Client) httpClient() *http.Client {
	if c.HTTP != nil {
		return c.HTTP
	}
	return http.DefaultClient
}

func (c *Client) baseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	return BaseURL
}

func (c *Client) maintenanceURL() string {
	if c.MaintenanceURL != "" {
		return c.MaintenanceURL
	}
	return maintenanceURL
}

func (c *Client) quality() string {
	if c.Quality != "" {
		return c.Quality
	}
	return "HD"
}

// Version asks the maintenance service for the current bundle version of the
// client's quality tier. One round-trip, no retry.
func (c *Client) Version(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, c.maintenanceURL(),
		strings.NewReader(versionRequestBody))
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "*/*")
	req.Header.Set("Content-Type", "multipart/form-data")

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return "", fmt.Errorf("querying maintenance service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("maintenance service returned %s", resp.Status)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading maintenance response: %w", err)
	}

	var envelope struct {
		Data string `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err != nil {
		return "", fmt.Errorf("parsing maintenance envelope: %w", err)
	}
	message, err := base64.StdEncoding.DecodeString(envelope.Data)
	if err != nil {
		return "", fmt.Errorf("decoding maintenance payload: %w", err)
	}

	hd, sd, err := bundleVersions(message)
	if err != nil {
		return "", err
	}
	if c.quality() == "SD" {
		return sd, nil
	}
	return hd, nil
}

// FetchCatalog returns the catalog content for a version, going to the CDN
// only when the store has no entry for it under the current batch key.
func (c *Client) FetchCatalog(ctx context.Context, version, batchKey string, store *catalog.Cache) (*catalog.Content, error) {
	return store.Get(version, batchKey, func(v string) (*catalog.Content, error) {
		return c.downloadCatalog(ctx, v)
	})
}

func (c *Client) downloadCatalog(ctx context.Context, version string) (*catalog.Content, error) {
	quality := c.quality()

	if err := c.Cache.EnsureDir(c.Cache.VersionDir(quality, version)); err != nil {
		return nil, fmt.Errorf("creating cache directory: %w", err)
	}
	if err := c.Cache.RemoveStaleCatalogs(quality, version); err != nil {
		slog.Warn("Removing stale catalogs failed", "error", err)
	}

	url := fmt.Sprintf(serverDataPath, c.baseURL(), quality, version, catalogName)
	slog.Info("Fetching catalog from CDN", "url", url)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, fmt.Errorf("downloading catalog: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("catalog download returned %s", resp.Status)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("reading catalog: %w", err)
	}

	// Keep a copy on disk for offline inspection.
	catalogPath := c.Cache.CatalogPath(quality, version)
	if err := os.WriteFile(catalogPath, body, 0o644); err != nil {
		slog.Warn("Writing catalog to cache failed", "path", catalogPath, "error", err)
	}

	var content catalog.Content
	if err := json.Unmarshal(body, &content); err != nil {
		return nil, fmt.Errorf("parsing catalog JSON: %w", err)
	}
	return &content, nil
}

// FetchBundle downloads one bundle by its catalog name, trying each candidate
// CDN filename in order until one succeeds. Returns the local path.
func (c *Client) FetchBundle(ctx context.Context, cat *catalog.Catalog, version, bundleName string) (string, error) {
	quality := c.quality()
	dest := c.Cache.BundlePath(quality, version, bundleName)

	if c.Cache.FileExists(dest) && c.Cache.FileSize(dest) > 0 {
		slog.Debug("Bundle already cached", "bundle", bundleName, "path", dest)
		return dest, nil
	}
	if err := c.Cache.EnsureDir(filepath.Dir(dest)); err != nil {
		return "", fmt.Errorf("creating cache directory: %w", err)
	}

	candidates := cat.DownloadCandidates(bundleName)
	if len(candidates) == 0 {
		return "", fmt.Errorf("bundle %s not found in catalog", bundleName)
	}

	progress := utils.NewProgress(bundleName, c.Progress)
	defer progress.Finish()

	var lastErr error
	for _, name := range candidates {
		url := fmt.Sprintf(serverDataPath, c.baseURL(), quality, version, name)
		slog.Debug("Trying bundle candidate", "url", url)

		written, err := utils.DownloadFile(ctx, c.httpClient(), dest, url, progress)
		if err != nil {
			lastErr = err
			continue
		}
		if written == 0 {
			os.Remove(dest)
			lastErr = fmt.Errorf("empty response for %s", name)
			continue
		}
		return dest, nil
	}
	return "", fmt.Errorf("all %d candidates failed for bundle %s: %w", len(candidates), bundleName, lastErr)
}
