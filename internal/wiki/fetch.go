package wiki

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/iidx-tools/songmaster/internal/util"
)

// DefaultTitleAliasURL points at the conversion table page of the
// current arcade version.
const DefaultTitleAliasURL = "https://bemaniwiki.com/?beatmania+IIDX+33+Sparkle+Shower/" +
	"%B6%CA%CC%BE%C9%BD%B5%AD%A4%CB%A4%C4%A4%A4%A4%C6"

// Source modes and online failure modes, validated at config load
const (
	SourceOnline = "online"
	SourceFile   = "file"

	FailFast      = "fail_fast"
	CacheFallback = "cache_fallback"
)

// Config holds the wiki alias ingestion settings
type Config struct {
	TitleAliasURL     string
	HTTPTimeout       time.Duration
	UserAgent         string
	CachePath         string
	SourceMode        string
	SourceFilePath    string
	OnlineFailureMode string

	// UnresolvedFailThreshold aborts the build when more official titles
	// than this stay unresolved during seeding; negative disables the check.
	UnresolvedFailThreshold int
}

// Validate checks mode enums and mode-dependent requirements
func (c *Config) Validate() error {
	switch c.SourceMode {
	case SourceOnline, SourceFile:
	default:
		return fmt.Errorf("%w: wiki source mode must be %q or %q, got %q",
			util.ErrInvalidConfig, SourceOnline, SourceFile, c.SourceMode)
	}

	switch c.OnlineFailureMode {
	case FailFast, CacheFallback:
	default:
		return fmt.Errorf("%w: wiki online failure mode must be %q or %q, got %q",
			util.ErrInvalidConfig, FailFast, CacheFallback, c.OnlineFailureMode)
	}

	if c.SourceMode == SourceFile && c.SourceFilePath == "" {
		return fmt.Errorf("%w: wiki source mode %q requires a source file path",
			util.ErrInvalidConfig, SourceFile)
	}
	return nil
}

// Document is the decoded conversion table page plus provenance metadata
type Document struct {
	HTMLText         string
	Encoding         string
	Source           string // "online", "file" or "cache"
	ReplacementCount int
}

// LoadDocument fetches and decodes the conversion table page according
// to the configured source mode.
func LoadDocument(cfg *Config) (*Document, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if cfg.SourceMode == SourceFile {
		return loadFromFile(cfg.SourceFilePath, SourceFile)
	}

	doc, err := loadOnline(cfg)
	if err == nil {
		if cfg.CachePath != "" {
			if cacheErr := writeCache(cfg.CachePath, doc.HTMLText); cacheErr != nil {
				util.WarnLog("wiki: failed to write cache: %v", cacheErr)
			}
		}
		return doc, nil
	}

	if cfg.OnlineFailureMode == CacheFallback && cfg.CachePath != "" {
		util.WarnLog("wiki: online fetch failed, falling back to cache: %v", err)
		if doc, cacheErr := loadFromFile(cfg.CachePath, "cache"); cacheErr == nil {
			return doc, nil
		}
	}
	return nil, err
}

func loadOnline(cfg *Config) (*Document, error) {
	url := cfg.TitleAliasURL
	if url == "" {
		url = DefaultTitleAliasURL
	}
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 20 * time.Second
	}

	client := &http.Client{Timeout: timeout}
	var raw []byte
	var contentType string

	err := util.Retry(util.DefaultRetryConfig(), func() error {
		req, err := http.NewRequest(http.MethodGet, url, nil)
		if err != nil {
			return err
		}
		if cfg.UserAgent != "" {
			req.Header.Set("User-Agent", cfg.UserAgent)
		}

		resp, err := client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("unexpected status %d from wiki", resp.StatusCode)
		}

		raw, err = io.ReadAll(resp.Body)
		contentType = resp.Header.Get("Content-Type")
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to fetch wiki page: %w", err)
	}

	text, encodingName, replacements := util.DecodeJapaneseBytes(raw, contentType)
	return &Document{
		HTMLText:         text,
		Encoding:         encodingName,
		Source:           SourceOnline,
		ReplacementCount: replacements,
	}, nil
}

func loadFromFile(path, source string) (*Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read wiki source file: %w", err)
	}
	text, encodingName, replacements := util.DecodeJapaneseBytes(raw, "")
	return &Document{
		HTMLText:         text,
		Encoding:         encodingName,
		Source:           source,
		ReplacementCount: replacements,
	}, nil
}

func writeCache(path, htmlText string) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	return os.WriteFile(path, []byte(htmlText), 0o644)
}
