package main

import (
	"os"
	"time"

	"github.com/spf13/viper"

	"github.com/iidx-tools/songmaster/internal/release"
	"github.com/iidx-tools/songmaster/internal/wiki"
)

// GetConfigString retrieves a string config value with proper precedence:
// 1. Command-line flag (if set)
// 2. Environment variable (SONGMASTER_*)
// 3. Config file
// 4. Default value
func GetConfigString(key string, defaultValue string) string {
	val := viper.GetString(key)
	if val == "" {
		return defaultValue
	}
	return val
}

// GetConfigInt retrieves an int config value with proper precedence
func GetConfigInt(key string, defaultValue int) int {
	if !viper.IsSet(key) {
		return defaultValue
	}
	return viper.GetInt(key)
}

// GetConfigBool retrieves a bool config value
func GetConfigBool(key string) bool {
	return viper.GetBool(key)
}

// wikiConfig assembles the conversion-table settings from the config
// file, mirroring the bemaniwiki_* key family of the settings file.
func wikiConfig() *wiki.Config {
	return &wiki.Config{
		TitleAliasURL:           GetConfigString("bemaniwiki_title_alias_url", wiki.DefaultTitleAliasURL),
		HTTPTimeout:             time.Duration(GetConfigInt("bemaniwiki_http_timeout_sec", 20)) * time.Second,
		UserAgent:               GetConfigString("bemaniwiki_user_agent", ""),
		CachePath:               GetConfigString("bemaniwiki_cache_path", ""),
		SourceMode:              GetConfigString("bemaniwiki_source_mode", wiki.SourceOnline),
		SourceFilePath:          GetConfigString("bemaniwiki_source_file_path", ""),
		OnlineFailureMode:       GetConfigString("bemaniwiki_online_failure_mode", wiki.FailFast),
		UnresolvedFailThreshold: GetConfigInt("bemaniwiki_unresolved_official_title_fail_threshold", -1),
	}
}

// releaseConfig assembles the GitHub release settings. The token comes
// from the environment first (GITHUB_TOKEN, the Actions default) with a
// config-file fallback.
func releaseConfig() release.Config {
	token := os.Getenv("GITHUB_TOKEN")
	if token == "" {
		token = GetConfigString("github_token", "")
	}
	return release.Config{
		Owner:   GetConfigString("github_owner", ""),
		Repo:    GetConfigString("github_repo", ""),
		Token:   token,
		TagName: GetConfigString("github_release_tag", "latest"),
	}
}

// discordWebhookURL resolves the webhook from env first, then settings
func discordWebhookURL() string {
	if url := os.Getenv("DISCORD_WEBHOOK_URL"); url != "" {
		return url
	}
	return GetConfigString("discord_webhook_url", "")
}
