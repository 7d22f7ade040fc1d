// Package release publishes the artifact through GitHub Releases and
// retrieves the previous generation for copy-forward builds and the
// stability check.
package release

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/iidx-tools/songmaster/internal/util"
)

const apiBase = "https://api.github.com/repos"

// Asset is one file attached to a release
type Asset struct {
	Name               string `json:"name"`
	URL                string `json:"url"`
	BrowserDownloadURL string `json:"browser_download_url"`
}

// Release is the subset of the GitHub release payload the pipeline uses
type Release struct {
	ID        int64   `json:"id"`
	TagName   string  `json:"tag_name"`
	UploadURL string  `json:"upload_url"`
	Assets    []Asset `json:"assets"`
}

// Config identifies the target repository and credentials
type Config struct {
	Owner   string
	Repo    string
	Token   string
	TagName string
}

// Validate checks the settings needed before any API call
func (c *Config) Validate() error {
	var missing []string
	if c.Owner == "" {
		missing = append(missing, "owner")
	}
	if c.Repo == "" {
		missing = append(missing, "repo")
	}
	if c.Token == "" {
		missing = append(missing, "token")
	}
	if c.TagName == "" {
		missing = append(missing, "tag")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: github release settings missing: %s",
			util.ErrInvalidConfig, strings.Join(missing, ", "))
	}
	return nil
}

// Client talks to the GitHub Releases REST API
type Client struct {
	config     Config
	baseURL    string
	httpClient *http.Client
	retry      *util.RetryConfig
}

// NewClient builds a release client; Validate the config first
func NewClient(config Config, timeout time.Duration) *Client {
	return &Client{
		config:     config,
		baseURL:    apiBase,
		httpClient: &http.Client{Timeout: timeout},
		retry:      util.DefaultRetryConfig(),
	}
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+c.config.Token)
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
}

// LatestRelease fetches the latest release, or nil when none exists yet
func (c *Client) LatestRelease() (*Release, error) {
	endpoint := fmt.Sprintf("%s/%s/%s/releases/latest", c.baseURL, c.config.Owner, c.config.Repo)

	var release *Release
	err := util.Retry(c.retry, func() error {
		req, err := http.NewRequest(http.MethodGet, endpoint, nil)
		if err != nil {
			return err
		}
		c.setHeaders(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch resp.StatusCode {
		case http.StatusOK:
			release = &Release{}
			return json.NewDecoder(resp.Body).Decode(release)
		case http.StatusNotFound:
			release = nil
			return nil
		default:
			return fmt.Errorf("failed to get latest release: %s", resp.Status)
		}
	})
	if err != nil {
		return nil, err
	}
	return release, nil
}

// GetOrCreateLatestRelease returns the latest release, creating one
// under the configured tag the first time the pipeline ever publishes.
func (c *Client) GetOrCreateLatestRelease() (*Release, error) {
	release, err := c.LatestRelease()
	if err != nil {
		return nil, err
	}
	if release != nil {
		return release, nil
	}
	return c.createRelease()
}

func (c *Client) createRelease() (*Release, error) {
	endpoint := fmt.Sprintf("%s/%s/%s/releases", c.baseURL, c.config.Owner, c.config.Repo)
	payload, err := json.Marshal(map[string]any{
		"tag_name":               c.config.TagName,
		"name":                   c.config.TagName,
		"draft":                  false,
		"prerelease":             false,
		"generate_release_notes": false,
	})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, fmt.Errorf("failed to create release %s: %s", c.config.TagName, resp.Status)
	}

	release := &Release{}
	if err := json.NewDecoder(resp.Body).Decode(release); err != nil {
		return nil, err
	}
	util.InfoLog("release: created %s", release.TagName)
	return release, nil
}

// DownloadAsset fetches a named asset into destPath. A missing release
// or asset returns (false, nil): the first-ever run has no previous
// artifact and that is not an error.
func (c *Client) DownloadAsset(release *Release, name, destPath string) (bool, error) {
	if release == nil {
		return false, nil
	}

	var asset *Asset
	for i := range release.Assets {
		if release.Assets[i].Name == name {
			asset = &release.Assets[i]
			break
		}
	}
	if asset == nil {
		return false, nil
	}

	err := util.Retry(c.retry, func() error {
		req, err := http.NewRequest(http.MethodGet, asset.URL, nil)
		if err != nil {
			return err
		}
		c.setHeaders(req)
		// the asset endpoint serves bytes when asked for octet-stream
		req.Header.Set("Accept", "application/octet-stream")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("failed to download asset %s: %s", name, resp.Status)
		}

		file, err := os.Create(destPath)
		if err != nil {
			return err
		}
		defer file.Close()

		_, err = io.Copy(file, resp.Body)
		return err
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// DeleteAssetIfExists removes the named asset so a re-upload under the
// same name does not fail.
func (c *Client) DeleteAssetIfExists(release *Release, name string) error {
	for _, asset := range release.Assets {
		if asset.Name != name {
			continue
		}
		if asset.URL == "" {
			return fmt.Errorf("asset %s has no delete url", name)
		}

		req, err := http.NewRequest(http.MethodDelete, asset.URL, nil)
		if err != nil {
			return err
		}
		c.setHeaders(req)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		resp.Body.Close()

		if resp.StatusCode != http.StatusNoContent {
			return fmt.Errorf("failed to delete asset %s: %s", name, resp.Status)
		}
		util.DebugLog("release: deleted stale asset %s", name)
		return nil
	}
	return nil
}

// UploadAsset attaches a file to the release under the given name,
// replacing any existing asset with that name first.
func (c *Client) UploadAsset(release *Release, name, filePath string) error {
	if err := c.DeleteAssetIfExists(release, name); err != nil {
		return err
	}

	// upload_url arrives as a URI template; everything from "{" is optional
	uploadURL := release.UploadURL
	if i := strings.Index(uploadURL, "{"); i >= 0 {
		uploadURL = uploadURL[:i]
	}
	endpoint := uploadURL + "?name=" + url.QueryEscape(name)

	data, err := os.ReadFile(filePath)
	if err != nil {
		return fmt.Errorf("failed to read asset %s: %w", filePath, err)
	}

	req, err := http.NewRequest(http.MethodPost, endpoint, bytes.NewReader(data))
	if err != nil {
		return err
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/octet-stream")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("failed to upload asset %s: %s %s", name, resp.Status, string(body))
	}

	util.SuccessLog("release: uploaded %s (%d bytes)", name, len(data))
	return nil
}
