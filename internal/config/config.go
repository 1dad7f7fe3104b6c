package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// MinimumDelayMinutes is the floor for non-zero relay delays; it also backs
// the approval-retry delay when the configured value is 0.
const MinimumDelayMinutes = 3

const (
	ContentTypeAll     = "all"
	ContentTypePost    = "post"
	ContentTypeComment = "comment"

	RelayModeImmediately = "immediately"
	RelayModeFrontPage   = "front-page"
)

type Config struct {
	Reddit   RedditConfig   `toml:"reddit"`
	Discord  DiscordConfig  `toml:"discord"`
	Embed    EmbedConfig    `toml:"embed"`
	Behavior BehaviorConfig `toml:"behavior"`
	Filters  FilterConfig   `toml:"filters"`
	Store    StoreConfig    `toml:"store"`
}

type RedditConfig struct {
	Subreddits   []string `toml:"subreddits"`
	UserAgent    string   `toml:"user_agent"`
	PollInterval string   `toml:"poll_interval"`
}

type DiscordConfig struct {
	WebhookURL          string `toml:"webhook_url"`
	PingRole            bool   `toml:"ping_role"`
	PingRoleID          string `toml:"ping_role_id"`
	SuppressSubmitter   bool   `toml:"suppress_submitter"`
	SuppressAuthorEmbed bool   `toml:"suppress_author_embed"`
	SuppressItemEmbed   bool   `toml:"suppress_item_embed"`
}

type EmbedConfig struct {
	ImageCount      int    `toml:"image_count"`
	PostTemplate    string `toml:"post_template"`
	CommentTemplate string `toml:"comment_template"`
}

type BehaviorConfig struct {
	ContentType               string `toml:"content_type"`
	RelayMode                 string `toml:"relay_mode"`
	FrontPageMinScore         int    `toml:"front_page_min_score"`
	FrontPageTime             string `toml:"front_page_time"`
	PostDelay                 int    `toml:"post_delay"`
	CommentDelay              int    `toml:"comment_delay"`
	PostDelayAfterApproval    int    `toml:"post_delay_after_approval"`
	CommentDelayAfterApproval int    `toml:"comment_delay_after_approval"`
	RetryOnApproval           bool   `toml:"retry_on_approval"`
	SkipSafetyChecks          bool   `toml:"skip_safety_checks"`
	IgnoreRemoved             bool   `toml:"ignore_removed"`
}

// FilterConfig holds the inclusion and exclusion lists as the comma-separated
// strings operators enter them; parsed lowercase sets come from SplitList.
// Empty strings mean the filter is inactive.
type FilterConfig struct {
	Subreddits         string `toml:"subreddits"`
	Usernames          string `toml:"usernames"`
	UserFlair          string `toml:"user_flair"`
	PostFlair          string `toml:"post_flair"`
	IgnoreUsernames    string `toml:"ignore_usernames"`
	IgnoreUserFlair    string `toml:"ignore_user_flair"`
	IgnorePostFlair    string `toml:"ignore_post_flair"`
	ApprovedUsersOnly  bool   `toml:"approved_users_only"`
	ModeratorsOnly     bool   `toml:"moderators_only"`
	IgnoreShadowbanned bool   `toml:"ignore_shadowbanned"`
	RelayReplies       bool   `toml:"relay_replies"`
}

type StoreConfig struct {
	RedisAddr     string `toml:"redis_addr"`
	RedisDB       int    `toml:"redis_db"`
	SQLitePath    string `toml:"sqlite_path"`
	DispatchEvery string `toml:"dispatch_every"`
}

func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &config, nil
}

func validateConfig(config *Config) error {
	if config.Discord.WebhookURL == "" {
		return fmt.Errorf("discord.webhook_url must be set")
	}

	if len(config.Reddit.Subreddits) == 0 {
		return fmt.Errorf("at least one subreddit must be configured")
	}

	if config.Reddit.UserAgent == "" {
		config.Reddit.UserAgent = "modrelay (by /u/modrelay)"
	}

	if config.Reddit.PollInterval == "" {
		config.Reddit.PollInterval = "30s"
	}
	if _, err := time.ParseDuration(config.Reddit.PollInterval); err != nil {
		return fmt.Errorf("invalid poll_interval: %w", err)
	}

	if config.Behavior.ContentType == "" {
		config.Behavior.ContentType = ContentTypeAll
	}
	switch config.Behavior.ContentType {
	case ContentTypeAll, ContentTypePost, ContentTypeComment:
	default:
		return fmt.Errorf("invalid content_type %q", config.Behavior.ContentType)
	}

	if config.Behavior.RelayMode == "" {
		config.Behavior.RelayMode = RelayModeImmediately
	}
	switch config.Behavior.RelayMode {
	case RelayModeImmediately, RelayModeFrontPage:
	default:
		return fmt.Errorf("invalid relay_mode %q", config.Behavior.RelayMode)
	}

	// Empty means the plain hot listing; otherwise the top listing of the
	// given window.
	switch config.Behavior.FrontPageTime {
	case "", "hour", "day", "week", "month", "year", "all":
	default:
		return fmt.Errorf("invalid front_page_time %q", config.Behavior.FrontPageTime)
	}

	for name, delay := range map[string]int{
		"post_delay":                   config.Behavior.PostDelay,
		"comment_delay":                config.Behavior.CommentDelay,
		"post_delay_after_approval":    config.Behavior.PostDelayAfterApproval,
		"comment_delay_after_approval": config.Behavior.CommentDelayAfterApproval,
	} {
		if delay != 0 && delay < MinimumDelayMinutes {
			return fmt.Errorf("%s must be 0 or at least %d minutes", name, MinimumDelayMinutes)
		}
	}

	if config.Embed.ImageCount < 0 {
		return fmt.Errorf("embed.image_count must not be negative")
	}
	if config.Embed.ImageCount == 0 {
		config.Embed.ImageCount = 1
	}

	if config.Discord.PingRole && config.Discord.PingRoleID == "" {
		return fmt.Errorf("discord.ping_role_id must be set when ping_role is enabled")
	}

	if config.Store.SQLitePath == "" {
		config.Store.SQLitePath = "./modrelay.db"
	}

	if config.Store.DispatchEvery == "" {
		config.Store.DispatchEvery = "30s"
	}
	if _, err := time.ParseDuration(config.Store.DispatchEvery); err != nil {
		return fmt.Errorf("invalid dispatch_every: %w", err)
	}

	return nil
}

// SplitList parses a comma-separated option into trimmed lowercase entries.
// Empty input yields nil, which callers treat as "filter inactive".
func SplitList(value string) []string {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.ToLower(strings.TrimSpace(part))
		if part != "" {
			result = append(result, part)
		}
	}
	if len(result) == 0 {
		return nil
	}
	return result
}

// Delay returns the configured relay delay for an item kind, switching to the
// after-approval variant when retrying.
func (b BehaviorConfig) Delay(kind string, afterApproval bool) time.Duration {
	var minutes int
	switch {
	case kind == ContentTypePost && afterApproval:
		minutes = b.PostDelayAfterApproval
	case kind == ContentTypePost:
		minutes = b.PostDelay
	case afterApproval:
		minutes = b.CommentDelayAfterApproval
	default:
		minutes = b.CommentDelay
	}
	return time.Duration(minutes) * time.Minute
}

func (r RedditConfig) PollIntervalDuration() time.Duration {
	d, err := time.ParseDuration(r.PollInterval)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

func (s StoreConfig) DispatchEveryDuration() time.Duration {
	d, err := time.ParseDuration(s.DispatchEvery)
	if err != nil {
		return 30 * time.Second
	}
	return d
}
