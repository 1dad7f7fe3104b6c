// Package reddit talks to the Reddit API. Listing discovery goes through the
// typed go-reddit client; everything whose raw fields the typed client does
// not expose (media metadata, mod log, flair templates) uses the JSON
// endpoints directly. All calls share one rate limiter.
package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"strings"
	"sync"
	"time"

	goreddit "github.com/loganintech/go-reddit/v2/reddit"
	"golang.org/x/time/rate"

	"modrelay/internal/item"
)

const (
	publicBaseURL = "https://www.reddit.com"
	oauthBaseURL  = "https://oauth.reddit.com"
	tokenURL      = "https://www.reddit.com/api/v1/access_token"
)

// Credentials are read from the environment; all four must be set for
// authenticated (moderator) endpoints to work.
type Credentials struct {
	ID       string
	Secret   string
	Username string
	Password string
}

func CredentialsFromEnv() Credentials {
	return Credentials{
		ID:       os.Getenv("REDDIT_CLIENT_ID"),
		Secret:   os.Getenv("REDDIT_CLIENT_SECRET"),
		Username: os.Getenv("REDDIT_USERNAME"),
		Password: os.Getenv("REDDIT_PASSWORD"),
	}
}

func (c Credentials) Complete() bool {
	return c.ID != "" && c.Secret != "" && c.Username != "" && c.Password != ""
}

type Client struct {
	api        *goreddit.Client
	httpClient *http.Client
	limiter    *rate.Limiter
	userAgent  string
	creds      Credentials

	mu          sync.Mutex
	token       string
	tokenExpiry time.Time
}

func NewClient(userAgent string, creds Credentials) (*Client, error) {
	var api *goreddit.Client
	var err error

	if creds.Complete() {
		api, err = goreddit.NewClient(goreddit.Credentials{
			ID:       creds.ID,
			Secret:   creds.Secret,
			Username: creds.Username,
			Password: creds.Password,
		}, goreddit.WithUserAgent(userAgent))
	} else {
		api, err = goreddit.NewReadonlyClient(goreddit.WithUserAgent(userAgent))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create reddit client: %w", err)
	}

	return &Client{
		api:        api,
		httpClient: &http.Client{Timeout: 15 * time.Second},
		// ~60 requests a minute keeps a comfortable margin under the API cap.
		limiter:   rate.NewLimiter(rate.Every(time.Second), 1),
		userAgent: userAgent,
		creds:     creds,
	}, nil
}

// NewPostIDs returns the fullnames of the newest posts in a subreddit.
func (c *Client) NewPostIDs(ctx context.Context, subreddit string, limit int) ([]string, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	posts, _, err := c.api.Subreddit.NewPosts(ctx, subreddit, &goreddit.ListOptions{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("failed to list new posts in r/%s: %w", subreddit, err)
	}

	ids := make([]string, 0, len(posts))
	for _, p := range posts {
		ids = append(ids, "t3_"+p.ID)
	}
	return ids, nil
}

// HotPost is the slice of a front-page post the sweep needs.
type HotPost struct {
	FullID string
	Score  int
}

// HotPosts returns the subreddit's current front page.
func (c *Client) HotPosts(ctx context.Context, subreddit string, limit int) ([]HotPost, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	posts, _, err := c.api.Subreddit.HotPosts(ctx, subreddit, &goreddit.ListOptions{Limit: limit})
	if err != nil {
		return nil, fmt.Errorf("failed to list hot posts in r/%s: %w", subreddit, err)
	}

	hot := make([]HotPost, 0, len(posts))
	for _, p := range posts {
		hot = append(hot, HotPost{FullID: "t3_" + p.ID, Score: p.Score})
	}
	return hot, nil
}

// TopPosts returns the subreddit's top listing for a time window ("hour",
// "day", "week", "month", "year", "all") with full raw fields.
func (c *Client) TopPosts(ctx context.Context, subreddit, timeframe string, limit int) ([]*item.Item, error) {
	var listing listingResponse
	query := url.Values{"limit": {fmt.Sprint(limit)}, "t": {timeframe}, "raw_json": {"1"}}
	if err := c.getJSON(ctx, fmt.Sprintf("/r/%s/top.json", subreddit), query, &listing); err != nil {
		return nil, fmt.Errorf("failed to list top posts in r/%s: %w", subreddit, err)
	}
	return listing.items(), nil
}

// NewComments returns the newest comments in a subreddit with full raw
// fields.
func (c *Client) NewComments(ctx context.Context, subreddit string, limit int) ([]*item.Item, error) {
	var listing listingResponse
	query := url.Values{"limit": {fmt.Sprint(limit)}, "raw_json": {"1"}}
	if err := c.getJSON(ctx, fmt.Sprintf("/r/%s/comments.json", subreddit), query, &listing); err != nil {
		return nil, fmt.Errorf("failed to list new comments in r/%s: %w", subreddit, err)
	}
	return listing.items(), nil
}

// Item fetches a post or comment by fullname with its full raw field set.
func (c *Client) Item(ctx context.Context, fullID string) (*item.Item, error) {
	var listing listingResponse
	query := url.Values{"id": {fullID}, "raw_json": {"1"}}
	if err := c.getJSON(ctx, "/api/info.json", query, &listing); err != nil {
		return nil, fmt.Errorf("failed to fetch item %s: %w", fullID, err)
	}

	items := listing.items()
	if len(items) == 0 {
		return nil, fmt.Errorf("item %s not found", fullID)
	}
	return items[0], nil
}

// Comment fetches a comment by fullname.
func (c *Client) Comment(ctx context.Context, fullID string) (*item.Item, error) {
	it, err := c.Item(ctx, fullID)
	if err != nil {
		return nil, err
	}
	if !it.IsComment() {
		return nil, fmt.Errorf("item %s is not a comment", fullID)
	}
	return it, nil
}

// PostTitle resolves a post title by fullname.
func (c *Client) PostTitle(ctx context.Context, fullID string) (string, error) {
	it, err := c.Item(ctx, fullID)
	if err != nil {
		return "", err
	}
	return it.Title, nil
}

func (c *Client) Moderators(ctx context.Context, subreddit string) ([]string, error) {
	var resp userListResponse
	if err := c.getJSON(ctx, fmt.Sprintf("/r/%s/about/moderators.json", subreddit), nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list moderators of r/%s: %w", subreddit, err)
	}
	return resp.names(), nil
}

func (c *Client) ApprovedUsers(ctx context.Context, subreddit string) ([]string, error) {
	var resp userListResponse
	if err := c.getJSON(ctx, fmt.Sprintf("/r/%s/about/contributors.json", subreddit), nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to list approved users of r/%s: %w", subreddit, err)
	}
	return resp.names(), nil
}

// UserFlairTemplates maps flair template id to flair text.
func (c *Client) UserFlairTemplates(ctx context.Context, subreddit string) (map[string]string, error) {
	var templates []struct {
		ID   string `json:"id"`
		Text string `json:"text"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("/r/%s/api/user_flair_v2.json", subreddit), nil, &templates); err != nil {
		return nil, fmt.Errorf("failed to list user flair templates of r/%s: %w", subreddit, err)
	}

	result := make(map[string]string, len(templates))
	for _, t := range templates {
		result[t.ID] = t.Text
	}
	return result, nil
}

// AuthorName resolves an author record; a fetch failure is how shadow-banned
// and deleted accounts surface.
func (c *Client) AuthorName(ctx context.Context, username string) (string, error) {
	var resp struct {
		Data struct {
			Name string `json:"name"`
		} `json:"data"`
	}
	if err := c.getJSON(ctx, fmt.Sprintf("/user/%s/about.json", username), nil, &resp); err != nil {
		return "", fmt.Errorf("failed to fetch author %s: %w", username, err)
	}
	return resp.Data.Name, nil
}

// ModAction is one mod-log entry.
type ModAction struct {
	ID             string  `json:"id"`
	Action         string  `json:"action"`
	TargetFullname string  `json:"target_fullname"`
	CreatedUTC     float64 `json:"created_utc"`
}

// ModLog returns recent moderation actions, newest first.
func (c *Client) ModLog(ctx context.Context, subreddit string, limit int) ([]ModAction, error) {
	var resp struct {
		Data struct {
			Children []struct {
				Data ModAction `json:"data"`
			} `json:"children"`
		} `json:"data"`
	}
	query := url.Values{"limit": {fmt.Sprint(limit)}}
	if err := c.getJSON(ctx, fmt.Sprintf("/r/%s/about/log.json", subreddit), query, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch mod log of r/%s: %w", subreddit, err)
	}

	actions := make([]ModAction, 0, len(resp.Data.Children))
	for _, child := range resp.Data.Children {
		actions = append(actions, child.Data)
	}
	return actions, nil
}

type listingResponse struct {
	Data struct {
		Children []struct {
			Kind string          `json:"kind"`
			Data json.RawMessage `json:"data"`
		} `json:"children"`
	} `json:"data"`
}

func (l *listingResponse) items() []*item.Item {
	var items []*item.Item
	for _, child := range l.Data.Children {
		var kind item.Kind
		switch child.Kind {
		case "t3":
			kind = item.KindPost
		case "t1":
			kind = item.KindComment
		default:
			continue
		}

		it := &item.Item{}
		if err := json.Unmarshal(child.Data, it); err != nil {
			// Malformed children are skipped, not fatal.
			continue
		}
		items = append(items, it.Normalize(kind))
	}
	return items
}

type userListResponse struct {
	Data struct {
		Children []struct {
			Name string `json:"name"`
		} `json:"children"`
	} `json:"data"`
}

func (u *userListResponse) names() []string {
	names := make([]string, 0, len(u.Data.Children))
	for _, child := range u.Data.Children {
		names = append(names, child.Name)
	}
	return names
}

func (c *Client) getJSON(ctx context.Context, path string, query url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	base := publicBaseURL
	token, err := c.accessToken(ctx)
	if err != nil {
		return err
	}
	if token != "" {
		base = oauthBaseURL
	}

	endpoint := base + path
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

// accessToken returns a valid OAuth token when credentials are configured,
// refreshing via the password grant as needed. Without credentials it
// returns "" and callers fall back to the public endpoints.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	if !c.creds.Complete() {
		return "", nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && time.Now().Before(c.tokenExpiry.Add(-time.Minute)) {
		return c.token, nil
	}

	form := url.Values{
		"grant_type": {"password"},
		"username":   {c.creds.Username},
		"password":   {c.creds.Password},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create token request: %w", err)
	}
	req.SetBasicAuth(c.creds.ID, c.creds.Secret)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("token request returned status %d", resp.StatusCode)
	}

	var tokenResp struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}

	c.token = tokenResp.AccessToken
	c.tokenExpiry = time.Now().Add(time.Duration(tokenResp.ExpiresIn) * time.Second)

	return c.token, nil
}
