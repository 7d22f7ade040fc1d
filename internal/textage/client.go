package textage

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/iidx-tools/songmaster/internal/util"
)

const (
	// TitleURL is the titletbl.js endpoint
	TitleURL = "https://textage.cc/score/titletbl.js"
	// DataURL is the datatbl.js endpoint
	DataURL = "https://textage.cc/score/datatbl.js"
	// ActURL is the actbl.js endpoint
	ActURL = "https://textage.cc/score/actbl.js"

	userAgent = "songmaster/1.0 (+https://github.com/iidx-tools/songmaster)"
)

// Client fetches the upstream score tables
type Client struct {
	httpClient *http.Client
	retry      *util.RetryConfig

	titleURL, dataURL, actURL string
}

// NewClient creates a table fetch client
func NewClient(timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		retry:      util.DefaultRetryConfig(),
		titleURL:   TitleURL,
		dataURL:    DataURL,
		actURL:     ActURL,
	}
}

// FetchResult bundles the parsed tables with per-source content hashes,
// used by the manifest to decide whether a rebuild is necessary at all.
type FetchResult struct {
	Tables       *Tables
	SourceHashes map[string]string
}

// FetchTables downloads and parses titletbl, datatbl and actbl
func (c *Client) FetchTables() (*FetchResult, error) {
	titleRaw, titleType, err := c.get(c.titleURL)
	if err != nil {
		return nil, err
	}
	dataRaw, dataType, err := c.get(c.dataURL)
	if err != nil {
		return nil, err
	}
	actRaw, actType, err := c.get(c.actURL)
	if err != nil {
		return nil, err
	}

	titleText, titleEnc, _ := util.DecodeJapaneseBytes(titleRaw, titleType)
	dataText, _, _ := util.DecodeJapaneseBytes(dataRaw, dataType)
	actText, _, _ := util.DecodeJapaneseBytes(actRaw, actType)
	util.DebugLog("textage: titletbl decoded as %s (%d bytes)", titleEnc, len(titleRaw))

	titles, err := ParseTitleTable(titleText)
	if err != nil {
		return nil, err
	}
	data, err := ParseDataTable(dataText)
	if err != nil {
		return nil, err
	}
	act, err := ParseActTable(actText)
	if err != nil {
		return nil, err
	}

	return &FetchResult{
		Tables: &Tables{Titles: titles, Data: data, Act: act},
		SourceHashes: map[string]string{
			"titletbl.js": sha256Hex(titleRaw),
			"datatbl.js":  sha256Hex(dataRaw),
			"actbl.js":    sha256Hex(actRaw),
		},
	}, nil
}

func (c *Client) get(url string) (body []byte, contentType string, err error) {
	err = util.Retry(c.retry, func() error {
		req, err := http.NewRequest(http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", userAgent)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status %d from %s", resp.StatusCode, url)
		}

		body, err = io.ReadAll(resp.Body)
		if err != nil {
			return err
		}
		contentType = resp.Header.Get("Content-Type")
		return nil
	})
	if err != nil {
		return nil, "", fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	return body, contentType, nil
}

func sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
