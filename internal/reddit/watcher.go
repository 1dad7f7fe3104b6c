package reddit

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"modrelay/internal/compose"
	"modrelay/internal/config"
	"modrelay/internal/item"
	"modrelay/internal/relay"
	"modrelay/internal/schedule"
	"modrelay/internal/store"
)

const (
	listingLimit   = 25
	frontPageLimit = 50

	safetyWaitAttempts = 10
	safetyWaitPause    = 2 * time.Second
)

// Watcher polls the configured subreddits and turns unseen posts, comments
// and approval actions into relay decisions. Each poll tick stands alone: an
// error in one subreddit or one item never stops the others.
type Watcher struct {
	cfg         *config.Config
	client      *Client
	engine      *relay.Engine
	composer    *compose.Composer
	coordinator *schedule.Coordinator
	states      store.Store

	primed map[string]bool
}

func NewWatcher(cfg *config.Config, client *Client, engine *relay.Engine, composer *compose.Composer, coordinator *schedule.Coordinator, states store.Store) *Watcher {
	return &Watcher{
		cfg:         cfg,
		client:      client,
		engine:      engine,
		composer:    composer,
		coordinator: coordinator,
		states:      states,
		primed:      make(map[string]bool),
	}
}

// Run polls until the context is cancelled.
func (w *Watcher) Run(ctx context.Context) error {
	interval := w.cfg.Reddit.PollIntervalDuration()
	log.Printf("Watcher: starting with poll interval %v", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	w.poll(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.poll(ctx)
		}
	}
}

func (w *Watcher) poll(ctx context.Context) {
	for _, subreddit := range w.cfg.Reddit.Subreddits {
		if w.cfg.Behavior.ContentType != config.ContentTypeComment {
			if err := w.pollPosts(ctx, subreddit); err != nil {
				log.Printf("Watcher: error polling posts in r/%s: %v", subreddit, err)
			}
		}
		if w.cfg.Behavior.ContentType != config.ContentTypePost {
			if err := w.pollComments(ctx, subreddit); err != nil {
				log.Printf("Watcher: error polling comments in r/%s: %v", subreddit, err)
			}
		}
		if w.cfg.Behavior.RetryOnApproval {
			if err := w.pollModLog(ctx, subreddit); err != nil {
				log.Printf("Watcher: error polling mod log of r/%s: %v", subreddit, err)
			}
		}
	}
}

func (w *Watcher) pollPosts(ctx context.Context, subreddit string) error {
	ids, err := w.client.NewPostIDs(ctx, subreddit, listingLimit)
	if err != nil {
		return err
	}

	priming := w.prime("posts:" + subreddit)

	// Oldest first, so relays come out in submission order.
	for i := len(ids) - 1; i >= 0; i-- {
		fullID := ids[i]
		if skip, err := w.markSeen(ctx, fullID); err != nil || skip || priming {
			continue
		}

		it, err := w.client.Item(ctx, fullID)
		if err != nil {
			log.Printf("Watcher: error fetching post %s: %v", fullID, err)
			continue
		}

		w.handleCreate(ctx, it)
	}

	return nil
}

func (w *Watcher) pollComments(ctx context.Context, subreddit string) error {
	comments, err := w.client.NewComments(ctx, subreddit, listingLimit)
	if err != nil {
		return err
	}

	priming := w.prime("comments:" + subreddit)

	for i := len(comments) - 1; i >= 0; i-- {
		it := comments[i]
		if skip, err := w.markSeen(ctx, it.FullID()); err != nil || skip || priming {
			continue
		}

		w.handleCreate(ctx, it)
	}

	return nil
}

func (w *Watcher) handleCreate(ctx context.Context, it *item.Item) {
	log.Printf("Received %s create event (id=%s, author=%s, permalink=%s)",
		it.Kind, it.FullID(), it.Author, it.Permalink)

	ok, err := w.engine.ShouldRelay(ctx, it)
	if err != nil {
		log.Printf("Watcher: error evaluating relay rules for %s: %v", it.UniqueID(), err)
		return
	}
	if !ok {
		log.Printf("Not relaying %s due to relay rules.", it.UniqueID())
		return
	}

	if w.cfg.Behavior.RelayMode == config.RelayModeFrontPage {
		// Front-page mode relays posts from the periodic sweep instead, and
		// never relays comments.
		log.Printf("Relay mode is 'front-page'; deferring %s to the front-page sweep.", it.UniqueID())
		return
	}

	it = w.waitForSafety(ctx, it)

	payload := w.composer.Compose(ctx, it)
	delay := w.cfg.Behavior.Delay(string(it.Kind), it.Approved)

	if err := w.coordinator.Schedule(ctx, it, payload, delay); err != nil {
		log.Printf("Watcher: error scheduling relay for %s: %v", it.UniqueID(), err)
	}
}

// waitForSafety re-fetches the item a bounded number of times, giving
// automod and the safety systems a chance to act before the relay decision
// snapshot is taken. Fetch errors degrade to the last known state.
func (w *Watcher) waitForSafety(ctx context.Context, it *item.Item) *item.Item {
	if w.cfg.Behavior.SkipSafetyChecks {
		return it
	}

	log.Printf("Waiting for safety checks on %s", it.UniqueID())

	current := it
	for attempt := 0; attempt < safetyWaitAttempts; attempt++ {
		fetched, err := w.client.Item(ctx, it.FullID())
		if err != nil {
			log.Printf("Watcher: error waiting for safety checks on %s: %v", it.UniqueID(), err)
			break
		}
		current = fetched
		if !current.IsRemoved() {
			break
		}

		select {
		case <-ctx.Done():
			return current
		case <-time.After(safetyWaitPause):
		}
	}

	return current
}

func (w *Watcher) pollModLog(ctx context.Context, subreddit string) error {
	actions, err := w.client.ModLog(ctx, subreddit, listingLimit)
	if err != nil {
		return err
	}

	priming := w.prime("modlog:" + subreddit)

	for i := len(actions) - 1; i >= 0; i-- {
		action := actions[i]
		if action.Action != "approvelink" && action.Action != "approvecomment" {
			continue
		}
		if skip, err := w.markSeen(ctx, "modaction:"+action.ID); err != nil || skip || priming {
			continue
		}

		w.handleApproval(ctx, action)
	}

	return nil
}

func (w *Watcher) handleApproval(ctx context.Context, action ModAction) {
	log.Printf("Received ModAction event (action=%s, target=%s)", action.Action, action.TargetFullname)

	if !strings.HasPrefix(action.TargetFullname, "t3_") && !strings.HasPrefix(action.TargetFullname, "t1_") {
		log.Printf("ModAction target is not a post or comment. Ignoring ModAction event.")
		return
	}

	it, err := w.client.Item(ctx, action.TargetFullname)
	if err != nil {
		log.Printf("Watcher: error fetching approved item %s: %v", action.TargetFullname, err)
		return
	}

	payload := w.composer.Compose(ctx, it)
	delay := w.cfg.Behavior.Delay(string(it.Kind), true)

	if err := w.coordinator.ScheduleRetry(ctx, it, payload, delay); err != nil {
		log.Printf("Watcher: error scheduling retry for %s: %v", it.UniqueID(), err)
	}
}

// SweepFrontPage applies the relay rules to the subreddit front pages; it
// backs the front-page relay mode and runs from the cron tick.
func (w *Watcher) SweepFrontPage(ctx context.Context) {
	for _, subreddit := range w.cfg.Reddit.Subreddits {
		if err := w.sweepSubreddit(ctx, subreddit); err != nil {
			log.Printf("Watcher: error sweeping front page of r/%s: %v", subreddit, err)
		}
	}
}

func (w *Watcher) sweepSubreddit(ctx context.Context, subreddit string) error {
	// The top listing carries full raw fields, so those candidates skip the
	// extra per-post fetch the typed hot listing needs.
	if timeframe := w.cfg.Behavior.FrontPageTime; timeframe != "" {
		posts, err := w.client.TopPosts(ctx, subreddit, timeframe, frontPageLimit)
		if err != nil {
			return err
		}
		for _, it := range posts {
			if passed, err := w.frontPageGates(ctx, it.FullID(), it.Score); err != nil {
				return err
			} else if passed {
				w.relayFrontPagePost(ctx, it)
			}
		}
		return nil
	}

	hot, err := w.client.HotPosts(ctx, subreddit, frontPageLimit)
	if err != nil {
		return err
	}

	for _, post := range hot {
		passed, err := w.frontPageGates(ctx, post.FullID, post.Score)
		if err != nil {
			return err
		}
		if !passed {
			continue
		}

		it, err := w.client.Item(ctx, post.FullID)
		if err != nil {
			log.Printf("Watcher: error fetching front-page post %s: %v", post.FullID, err)
			continue
		}

		w.relayFrontPagePost(ctx, it)
	}

	return nil
}

func (w *Watcher) frontPageGates(ctx context.Context, fullID string, score int) (bool, error) {
	if w.cfg.Behavior.FrontPageMinScore > 0 && score < w.cfg.Behavior.FrontPageMinScore {
		return false, nil
	}

	state, err := w.states.State(ctx, fullID)
	if err != nil {
		return false, fmt.Errorf("failed to read relay state for %s: %w", fullID, err)
	}
	return !state.Relayed, nil
}

func (w *Watcher) relayFrontPagePost(ctx context.Context, it *item.Item) {
	ok, err := w.engine.ShouldRelay(ctx, it)
	if err != nil {
		log.Printf("Watcher: error evaluating relay rules for %s: %v", it.UniqueID(), err)
		return
	}
	if !ok {
		return
	}

	log.Printf("Post %s is on front page and has not been relayed. Scheduling relay.", it.FullID())

	payload := w.composer.Compose(ctx, it)
	if err := w.coordinator.Schedule(ctx, it, payload, 0); err != nil {
		log.Printf("Watcher: error scheduling relay for %s: %v", it.UniqueID(), err)
	}
}

// markSeen records the id in the seen set; it reports true when the id was
// already there.
func (w *Watcher) markSeen(ctx context.Context, id string) (bool, error) {
	seen, err := w.states.Seen(ctx, id)
	if err != nil {
		log.Printf("Watcher: error checking seen flag for %s: %v", id, err)
		return false, err
	}
	if seen {
		return true, nil
	}
	if err := w.states.MarkSeen(ctx, id); err != nil {
		log.Printf("Watcher: error marking %s seen: %v", id, err)
		return false, err
	}
	return false, nil
}

// prime reports whether this is the first poll of a listing since startup;
// the first pass only seeds the seen set so the existing backlog is not
// replayed.
func (w *Watcher) prime(key string) bool {
	if w.primed[key] {
		return false
	}
	w.primed[key] = true
	return true
}
