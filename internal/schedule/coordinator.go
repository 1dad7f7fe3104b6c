// Package schedule decides when a composed payload gets dispatched: right
// away, or through the persistent job queue after the configured delay.
package schedule

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"modrelay/internal/config"
	"modrelay/internal/discord"
	"modrelay/internal/item"
	"modrelay/internal/storage"
	"modrelay/internal/store"
)

// ItemFetcher re-fetches an item at dispatch time so the removed re-check
// sees its current moderation state.
type ItemFetcher interface {
	Item(ctx context.Context, fullID string) (*item.Item, error)
}

type Coordinator struct {
	cfg     *config.Config
	states  store.Store
	jobs    storage.JobStore
	webhook *discord.Webhook
	items   ItemFetcher
}

func NewCoordinator(cfg *config.Config, states store.Store, jobs storage.JobStore, webhook *discord.Webhook, items ItemFetcher) *Coordinator {
	return &Coordinator{
		cfg:     cfg,
		states:  states,
		jobs:    jobs,
		webhook: webhook,
		items:   items,
	}
}

// Schedule relays the item immediately when delay is zero, otherwise
// registers one deferred dispatch. The scheduled flag is a read-then-write
// guard: it stops repeat scheduling, but a concurrent trigger for the same
// item can still slip through, which is tolerated.
func (c *Coordinator) Schedule(ctx context.Context, it *item.Item, payload *discord.Payload, delay time.Duration) error {
	if delay == 0 {
		log.Printf("Relaying event %s", it.UniqueID())

		if c.cfg.Behavior.IgnoreRemoved && it.IsRemoved() {
			log.Printf("Not relaying due to item removed: %s", it.UniqueID())
			return nil
		}

		if err := c.dispatch(ctx, c.cfg.Discord.WebhookURL, it.FullID(), it.UniqueID(), payload); err != nil {
			return err
		}
	} else {
		runAt := time.Now().Add(delay)
		log.Printf("Scheduling relay (%s) for %v from now (%v)", it.UniqueID(), delay, runAt)

		state, err := c.states.State(ctx, it.FullID())
		if err != nil {
			return fmt.Errorf("failed to read relay state: %w", err)
		}
		if state.Scheduled {
			log.Printf("Relay job already scheduled for %s", it.UniqueID())
			return nil
		}

		if err := c.enqueue(ctx, it, payload, runAt); err != nil {
			return err
		}
	}

	if err := c.states.MarkScheduled(ctx, it.FullID()); err != nil {
		return fmt.Errorf("failed to mark %s scheduled: %w", it.UniqueID(), err)
	}

	return nil
}

// ScheduleRetry re-enters the coordinator after a moderation approval. The
// item must have been scheduled and not yet relayed; the delay is floored to
// the minimum so the approval has time to propagate.
func (c *Coordinator) ScheduleRetry(ctx context.Context, it *item.Item, payload *discord.Payload, delay time.Duration) error {
	state, err := c.states.State(ctx, it.FullID())
	if err != nil {
		return fmt.Errorf("failed to read relay state: %w", err)
	}

	if !state.Scheduled {
		log.Printf("No scheduled job found for item %s. Not scheduling retry.", it.UniqueID())
		return nil
	}
	if state.Relayed {
		log.Printf("Item %s has already been relayed. Not scheduling retry.", it.UniqueID())
		return nil
	}

	if delay == 0 {
		delay = config.MinimumDelayMinutes * time.Minute
	}

	runAt := time.Now().Add(delay)
	log.Printf("Scheduling retry relay for %s due to approval. Will run at %v.", it.UniqueID(), runAt)

	return c.enqueue(ctx, it, payload, runAt)
}

// DispatchDue drains the job queue of everything whose run-at has passed.
// Individual job failures are logged and do not stop the sweep.
func (c *Coordinator) DispatchDue(ctx context.Context, now time.Time) {
	jobs, err := c.jobs.Due(ctx, now)
	if err != nil {
		log.Printf("Coordinator: error listing due jobs: %v", err)
		return
	}

	for _, job := range jobs {
		if err := c.dispatchJob(ctx, job); err != nil {
			log.Printf("Coordinator: error dispatching job %d (%s): %v", job.ID, job.UniqueID, err)
		}
		if err := c.jobs.Delete(ctx, job.ID); err != nil {
			log.Printf("Coordinator: error deleting job %d: %v", job.ID, err)
		}
	}
}

func (c *Coordinator) dispatchJob(ctx context.Context, job *storage.Job) error {
	current, err := c.items.Item(ctx, job.ItemID)
	if err != nil {
		return fmt.Errorf("failed to re-fetch item: %w", err)
	}

	if c.cfg.Behavior.IgnoreRemoved && current.IsRemoved() {
		log.Printf("Not relaying due to item removed: %s", job.UniqueID)
		return nil
	}

	var payload discord.Payload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("failed to decode job payload: %w", err)
	}

	log.Printf("Relaying event %s", job.UniqueID)

	// The job carries the webhook URL it was scheduled with, so a config
	// change between scheduling and dispatch does not reroute it.
	return c.dispatch(ctx, job.WebhookURL, job.ItemID, job.UniqueID, &payload)
}

// dispatch performs the POST and marks the item relayed no matter how the
// POST went: delivery is at-most-one-attempt.
func (c *Coordinator) dispatch(ctx context.Context, webhookURL, itemID, uniqueID string, payload *discord.Payload) error {
	if err := c.webhook.Send(ctx, webhookURL, payload); err != nil {
		log.Printf("Coordinator: webhook delivery failed for %s: %v", uniqueID, err)
	}

	if err := c.states.MarkRelayed(ctx, itemID); err != nil {
		return fmt.Errorf("failed to mark %s relayed: %w", uniqueID, err)
	}

	return nil
}

func (c *Coordinator) enqueue(ctx context.Context, it *item.Item, payload *discord.Payload, runAt time.Time) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	job := &storage.Job{
		ItemID:     it.FullID(),
		ItemKind:   string(it.Kind),
		UniqueID:   it.UniqueID(),
		WebhookURL: c.cfg.Discord.WebhookURL,
		Payload:    body,
		RunAt:      runAt,
	}

	if err := c.jobs.Enqueue(ctx, job); err != nil {
		return fmt.Errorf("failed to enqueue relay job: %w", err)
	}

	return nil
}
