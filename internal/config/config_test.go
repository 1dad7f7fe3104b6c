package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

const minimalConfig = `
[reddit]
subreddits = ["golang"]

[discord]
webhook_url = "https://discord.com/api/webhooks/1/token"
`

func TestLoad_MinimalConfigGetsDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig))
	require.NoError(t, err)

	assert.Equal(t, []string{"golang"}, cfg.Reddit.Subreddits)
	assert.Equal(t, "30s", cfg.Reddit.PollInterval)
	assert.Equal(t, ContentTypeAll, cfg.Behavior.ContentType)
	assert.Equal(t, RelayModeImmediately, cfg.Behavior.RelayMode)
	assert.Equal(t, "./modrelay.db", cfg.Store.SQLitePath)
	assert.Equal(t, "30s", cfg.Store.DispatchEvery)
	assert.NotEmpty(t, cfg.Reddit.UserAgent)
	assert.Equal(t, 1, cfg.Embed.ImageCount)
}

func TestLoad_MissingWebhookURL(t *testing.T) {
	_, err := Load(writeConfig(t, `
[reddit]
subreddits = ["golang"]
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "webhook_url")
}

func TestLoad_MissingSubreddits(t *testing.T) {
	_, err := Load(writeConfig(t, `
[discord]
webhook_url = "https://discord.com/api/webhooks/1/token"
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "subreddit")
}

func TestLoad_InvalidContentType(t *testing.T) {
	_, err := Load(writeConfig(t, minimalConfig+`
[behavior]
content_type = "video"
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "content_type")
}

func TestLoad_InvalidRelayMode(t *testing.T) {
	_, err := Load(writeConfig(t, minimalConfig+`
[behavior]
relay_mode = "sometimes"
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "relay_mode")
}

func TestLoad_InvalidFrontPageTime(t *testing.T) {
	_, err := Load(writeConfig(t, minimalConfig+`
[behavior]
relay_mode = "front-page"
front_page_time = "fortnight"
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "front_page_time")
}

func TestLoad_FrontPageTimeAccepted(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig+`
[behavior]
relay_mode = "front-page"
front_page_time = "day"
front_page_min_score = 100
`))
	require.NoError(t, err)
	assert.Equal(t, "day", cfg.Behavior.FrontPageTime)
	assert.Equal(t, 100, cfg.Behavior.FrontPageMinScore)
}

func TestLoad_DelayBelowMinimumRejected(t *testing.T) {
	_, err := Load(writeConfig(t, minimalConfig+`
[behavior]
post_delay = 1
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "post_delay")
}

func TestLoad_ZeroDelayAllowed(t *testing.T) {
	cfg, err := Load(writeConfig(t, minimalConfig+`
[behavior]
post_delay = 0
comment_delay = 5
`))
	require.NoError(t, err)
	assert.Equal(t, 0, cfg.Behavior.PostDelay)
	assert.Equal(t, 5, cfg.Behavior.CommentDelay)
}

func TestLoad_PingRoleRequiresRoleID(t *testing.T) {
	_, err := Load(writeConfig(t, `
[reddit]
subreddits = ["golang"]

[discord]
webhook_url = "https://discord.com/api/webhooks/1/token"
ping_role = true
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping_role_id")
}

func TestLoad_InvalidPollInterval(t *testing.T) {
	_, err := Load(writeConfig(t, `
[reddit]
subreddits = ["golang"]
poll_interval = "soon"

[discord]
webhook_url = "https://discord.com/api/webhooks/1/token"
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "poll_interval")
}

func TestSplitList(t *testing.T) {
	assert.Nil(t, SplitList(""))
	assert.Nil(t, SplitList("   "))
	assert.Nil(t, SplitList(" , ,"))
	assert.Equal(t, []string{"a", "b c", "d"}, SplitList("A, b C ,d"))
}

func TestDelay(t *testing.T) {
	b := BehaviorConfig{
		PostDelay:                 10,
		CommentDelay:              5,
		PostDelayAfterApproval:    20,
		CommentDelayAfterApproval: 15,
	}

	assert.Equal(t, 10*time.Minute, b.Delay(ContentTypePost, false))
	assert.Equal(t, 5*time.Minute, b.Delay(ContentTypeComment, false))
	assert.Equal(t, 20*time.Minute, b.Delay(ContentTypePost, true))
	assert.Equal(t, 15*time.Minute, b.Delay(ContentTypeComment, true))
}

func TestDurationAccessorsFallBack(t *testing.T) {
	assert.Equal(t, 30*time.Second, RedditConfig{}.PollIntervalDuration())
	assert.Equal(t, time.Minute, RedditConfig{PollInterval: "1m"}.PollIntervalDuration())
	assert.Equal(t, 30*time.Second, StoreConfig{}.DispatchEveryDuration())
	assert.Equal(t, 2*time.Minute, StoreConfig{DispatchEvery: "2m"}.DispatchEveryDuration())
}
