// Package relay decides whether an item qualifies for relay. Inclusion
// filters are OR-combined: any single match is enough. Exclusion filters are
// strict vetoes that short-circuit the decision to false. Filters whose
// option is empty or unset contribute nothing at all.
package relay

import (
	"context"
	"fmt"
	"log"
	"slices"
	"strings"
	"time"

	"modrelay/internal/cache"
	"modrelay/internal/config"
	"modrelay/internal/item"
)

// ModeratorsToken in the username allow-list matches any subreddit moderator.
const ModeratorsToken = "moderators"

const deletedUserSentinel = "[deleted]"

// Lookup supplies the subreddit metadata the filters need. Implementations
// are expected to be network-backed; tests substitute fakes.
type Lookup interface {
	Moderators(ctx context.Context, subreddit string) ([]string, error)
	ApprovedUsers(ctx context.Context, subreddit string) ([]string, error)
	// UserFlairTemplates maps flair template id to flair text.
	UserFlairTemplates(ctx context.Context, subreddit string) (map[string]string, error)
	// AuthorName resolves an author record; an error means the record could
	// not be fetched at all.
	AuthorName(ctx context.Context, username string) (string, error)
	// Comment fetches a comment by fullname for the reply-only check.
	Comment(ctx context.Context, fullID string) (*item.Item, error)
}

type Engine struct {
	cfg    *config.Config
	lookup Lookup

	moderators *cache.TTL[[]string]
	flairs     *cache.TTL[map[string]string]
}

func NewEngine(cfg *config.Config, lookup Lookup) *Engine {
	return &Engine{
		cfg:        cfg,
		lookup:     lookup,
		moderators: cache.NewTTL[[]string](5 * time.Minute),
		flairs:     cache.NewTTL[map[string]string](5 * time.Minute),
	}
}

// ShouldRelay evaluates all active filters for one item. An error aborts
// only this decision; callers drop the event.
func (e *Engine) ShouldRelay(ctx context.Context, it *item.Item) (bool, error) {
	log.Printf("Checking if we should relay event (%s)", it.UniqueID())

	// Content-type gate comes first; it is the base decision when no
	// inclusion filter is active.
	switch e.cfg.Behavior.ContentType {
	case config.ContentTypePost:
		if !it.IsPost() {
			return false, nil
		}
	case config.ContentTypeComment:
		if !it.IsComment() {
			return false, nil
		}
	}

	author := strings.ToLower(it.Author)

	// Exclusions first: any match vetoes the relay outright.
	if excluded, err := e.excluded(ctx, it, author); err != nil {
		return false, err
	} else if excluded {
		return false, nil
	}

	var checks []bool

	if subreddits := config.SplitList(e.cfg.Filters.Subreddits); subreddits != nil {
		checks = append(checks, slices.Contains(subreddits, strings.ToLower(it.Subreddit)))
	}

	if usernames := config.SplitList(e.cfg.Filters.Usernames); usernames != nil {
		matched := slices.Contains(usernames, author)
		if !matched && slices.Contains(usernames, ModeratorsToken) {
			isMod, err := e.isModerator(ctx, it.Subreddit, author)
			if err != nil {
				return false, err
			}
			matched = isMod
		}
		checks = append(checks, matched)
	}

	if flairs := config.SplitList(e.cfg.Filters.UserFlair); flairs != nil {
		if text, ok := e.authorFlairText(ctx, it); ok {
			checks = append(checks, slices.Contains(flairs, strings.ToLower(text)))
		}
	}

	if flairs := config.SplitList(e.cfg.Filters.PostFlair); flairs != nil {
		if it.IsPost() && it.LinkFlair.Text != "" {
			checks = append(checks, slices.Contains(flairs, strings.ToLower(it.LinkFlair.Text)))
		}
	}

	if e.cfg.Filters.ApprovedUsersOnly {
		approved, err := e.lookup.ApprovedUsers(ctx, it.Subreddit)
		if err != nil {
			return false, fmt.Errorf("failed to list approved users: %w", err)
		}
		checks = append(checks, containsFold(approved, author))
	}

	if e.cfg.Filters.ModeratorsOnly {
		isMod, err := e.isModerator(ctx, it.Subreddit, author)
		if err != nil {
			return false, err
		}
		checks = append(checks, isMod)
	}

	if len(checks) == 0 {
		log.Printf("Should relay event (%s): true (no inclusion filters active)", it.UniqueID())
		return true, nil
	}

	result := slices.Contains(checks, true)
	log.Printf("Should relay event (%s): %v", it.UniqueID(), result)
	return result, nil
}

func (e *Engine) excluded(ctx context.Context, it *item.Item, author string) (bool, error) {
	if usernames := config.SplitList(e.cfg.Filters.IgnoreUsernames); usernames != nil {
		if slices.Contains(usernames, author) {
			return true, nil
		}
	}

	if flairs := config.SplitList(e.cfg.Filters.IgnoreUserFlair); flairs != nil {
		if text, ok := e.authorFlairText(ctx, it); ok {
			if slices.Contains(flairs, strings.ToLower(text)) {
				return true, nil
			}
		}
	}

	if flairs := config.SplitList(e.cfg.Filters.IgnorePostFlair); flairs != nil {
		if it.IsPost() && it.LinkFlair.Text != "" {
			if slices.Contains(flairs, strings.ToLower(it.LinkFlair.Text)) {
				return true, nil
			}
		}
	}

	if e.cfg.Filters.IgnoreShadowbanned {
		banned, err := e.isShadowBanned(ctx, it.Subreddit, author)
		if err != nil {
			return false, err
		}
		if banned {
			return true, nil
		}
	}

	if e.cfg.Filters.RelayReplies && it.IsComment() {
		qualifies := e.isReplyToTopLevelComment(ctx, it)
		if !qualifies {
			return true, nil
		}
	}

	return false, nil
}

// isShadowBanned treats an unfetchable author record, an empty resolved name
// or the deleted-user sentinel as shadow-banned. Moderators are exempt.
func (e *Engine) isShadowBanned(ctx context.Context, subreddit, author string) (bool, error) {
	isMod, err := e.isModerator(ctx, subreddit, author)
	if err != nil {
		return false, err
	}
	if isMod {
		return false, nil
	}

	name, err := e.lookup.AuthorName(ctx, author)
	if err != nil {
		log.Printf("Engine: could not resolve author %q, treating as shadow-banned: %v", author, err)
		return true, nil
	}
	return name == "" || name == deletedUserSentinel, nil
}

// isReplyToTopLevelComment reports whether a comment replies to a comment
// whose own parent is the post. Top-level comments and failed parent lookups
// do not qualify.
func (e *Engine) isReplyToTopLevelComment(ctx context.Context, it *item.Item) bool {
	if !it.ParentIsComment() {
		return false
	}
	parent, err := e.lookup.Comment(ctx, it.ParentID)
	if err != nil || parent == nil {
		log.Printf("Engine: error fetching parent comment for %s: %v", it.UniqueID(), err)
		return false
	}
	return parent.ParentID == it.LinkID
}

func (e *Engine) isModerator(ctx context.Context, subreddit, author string) (bool, error) {
	moderators, ok := e.moderators.Get(subreddit)
	if !ok {
		var err error
		moderators, err = e.lookup.Moderators(ctx, subreddit)
		if err != nil {
			return false, fmt.Errorf("failed to list moderators: %w", err)
		}
		e.moderators.Set(subreddit, moderators)
	}
	return containsFold(moderators, author), nil
}

// authorFlairText resolves the author's flair either from the item itself or
// through the cached flair-template table. The second return is false when
// the item carries no flair reference at all, meaning flair filters stay
// inactive for it.
func (e *Engine) authorFlairText(ctx context.Context, it *item.Item) (string, bool) {
	if it.AuthorFlairText != "" {
		return it.AuthorFlairText, true
	}
	if it.AuthorFlairTemplateID == "" {
		return "", false
	}

	templates, ok := e.flairs.Get(it.Subreddit)
	if !ok {
		var err error
		templates, err = e.lookup.UserFlairTemplates(ctx, it.Subreddit)
		if err != nil {
			log.Printf("Engine: error fetching user flair templates for r/%s: %v", it.Subreddit, err)
			return "", true
		}
		e.flairs.Set(it.Subreddit, templates)
	}
	return templates[it.AuthorFlairTemplateID], true
}

func containsFold(list []string, value string) bool {
	for _, entry := range list {
		if strings.EqualFold(entry, value) {
			return true
		}
	}
	return false
}
