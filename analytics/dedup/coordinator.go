// SPDX-License-Identifier: ice License 1.0

package dedup

import (
	"context"
	"fmt"
	stdlibtime "time"

	"github.com/goccy/go-json"
	"github.com/imroc/req/v3"
	"github.com/pkg/errors"

	"github.com/gravityflow/ganalytics/analytics/dispatch"
	"github.com/gravityflow/ganalytics/analytics/event"
	appcfg "github.com/gravityflow/ganalytics/config"
	"github.com/gravityflow/ganalytics/log"
)

// NewCoordinator builds a coordinator bound to the given delivery provider and announces itself,
// like the companion browser dispatcher does as soon as its script loads.
func NewCoordinator(provider Provider, applicationYAMLKey string) *Coordinator {
	var cfg coordinatorConfig
	appcfg.MustLoadFromKey(applicationYAMLKey, &cfg)
	coordinator := &Coordinator{
		provider: provider,
		cfg:      cfg,
		events:   make(chan *BrowserEvent, eventsChannelCapacity),
		httpClient: req.C().
			SetJsonMarshal(json.Marshal).
			SetJsonUnmarshal(json.Unmarshal).
			SetBaseURL(cfg.BaseURL).
			SetTimeout(30 * stdlibtime.Second). //nolint:mnd,gomnd // Static config.
			SetCommonRetryCount(2),             //nolint:mnd,gomnd // Static config.
	}
	coordinator.emit(&BrowserEvent{Name: ScriptLoadedEventName})

	return coordinator
}

// Events streams the lifecycle announcements. Consumers that fall behind lose the oldest ones.
func (c *Coordinator) Events() <-chan *BrowserEvent {
	return c.events
}

// ExpectFeed registers one more feed whose event has to resolve before the submission is complete.
// Callers gate post-submission redirects on the all-events-sent announcement only when they
// expected at least one feed.
func (c *Coordinator) ExpectFeed() {
	c.countersMx.Lock()
	c.expected++
	c.countersMx.Unlock()
}

// Execute interprets one serialized delivery instruction.
func (c *Coordinator) Execute(ctx context.Context, instruction *dispatch.Instruction) error {
	switch instruction.Action {
	case dispatch.ActionIncrementFeedCount:
		c.ExpectFeed()

		return nil
	case dispatch.ActionSendUniqueToAnalytics:
		return c.SendUniqueToAnalytics(ctx, instruction.EntryID, instruction.FeedID, instruction.Parameters, instruction.EventName)
	case dispatch.ActionSendUniqueToTagManager:
		return c.SendUniqueToTagManager(ctx, instruction.EntryID, instruction.FeedID, instruction.Parameters, instruction.TriggerName)
	case dispatch.ActionSendToAnalytics:
		return errors.Wrapf(c.provider.SendToAnalytics(instruction.Parameters, instruction.EventName),
			"failed to send event `%v` to analytics", instruction.EventName)
	case dispatch.ActionSendToTagManager:
		return errors.Wrapf(c.provider.SendToTagManager(instruction.Parameters, instruction.TriggerName),
			"failed to push trigger `%v` to the data layer", instruction.TriggerName)
	default:
		return errors.Errorf("unknown instruction action `%v`", instruction.Action)
	}
}

func (c *Coordinator) SendUniqueToAnalytics(ctx context.Context, entryID, feedID string, params event.Params, eventName string) error {
	return c.sendUnique(ctx, entryID, feedID, eventName, func() error {
		if err := c.provider.SendToAnalytics(params, eventName); err != nil {
			return errors.Wrapf(err, "failed to send event `%v` to analytics", eventName)
		}
		c.logEventSent(ctx, "ga", params, eventName)

		return nil
	})
}

func (c *Coordinator) SendUniqueToTagManager(ctx context.Context, entryID, feedID string, params event.Params, triggerName string) error {
	return c.sendUnique(ctx, entryID, feedID, triggerName, func() error {
		if err := c.provider.SendToTagManager(params, triggerName); err != nil {
			return errors.Wrapf(err, "failed to push trigger `%v` to the data layer", triggerName)
		}
		c.logEventSent(ctx, "gtm", params, triggerName)

		return nil
	})
}

// sendUnique is a check-then-act sequence without any cross-coordinator lock, matching the
// historical behaviour: concurrent coordinators might both observe "not sent" and both deliver.
// Delivery is at-least-once, and the feed always counts as resolved, sent or skipped or failed.
func (c *Coordinator) sendUnique(ctx context.Context, entryID, feedID, name string, send func() error) error {
	defer c.completeFeed()
	sent, err := c.hasSent(ctx, entryID, feedID)
	if err != nil {
		return err
	}
	if sent {
		log.Debug(fmt.Sprintf("event `%v` already sent for entry `%v`, feed `%v`, skipping", name, entryID, feedID))

		return nil
	}
	if err = send(); err != nil {
		return err
	}
	c.emit(&BrowserEvent{
		Name:   EventSentEventName,
		Detail: map[string]any{"entry_id": entryID, "feed_id": feedID, "name": name},
	})

	return c.markSent(ctx, entryID, feedID)
}

// completeFeed resolves one expected feed. When the last expected one resolves the coordinator
// announces completion exactly once and resets both counters, ready for the next submission.
func (c *Coordinator) completeFeed() {
	c.countersMx.Lock()
	c.completed++
	allSent := c.expected > 0 && c.completed >= c.expected
	if allSent {
		c.expected, c.completed = 0, 0
	}
	c.countersMx.Unlock()
	if allSent {
		c.emit(&BrowserEvent{Name: AllEventsSentEventName})
	}
}

func (c *Coordinator) emit(browserEvent *BrowserEvent) {
	for {
		select {
		case c.events <- browserEvent:
			return
		default:
			select {
			case <-c.events:
			default:
			}
		}
	}
}

// logEventSent is fire and forget: a failed observation never fails the delivery it observes.
func (c *Coordinator) logEventSent(ctx context.Context, connection string, params event.Params, name string) {
	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBodyJsonMarshal(&LogEventArg{Parameters: params, Connection: connection, Name: name, Nonce: c.cfg.LoggingNonce}).
		Post(logEventPath)
	if err == nil && resp.IsErrorState() {
		err = errors.Errorf("logging `%v` returned [%v]`%v`", name, resp.GetStatusCode(), resp.String())
	}
	log.Error(errors.Wrapf(err, "failed to log the `%v` delivery over `%v`", name, connection))
}

func (c *Coordinator) hasSent(ctx context.Context, entryID, feedID string) (bool, error) {
	var resp GetEntryMetaResponse
	httpResp, err := c.httpClient.R().
		SetContext(ctx).
		SetBodyJsonMarshal(&GetEntryMetaArg{EntryID: entryID, FeedID: feedID, Nonce: c.cfg.EntryMetaNonce}).
		SetSuccessResult(&resp).
		Post(getEntryMetaPath)
	if err != nil {
		return false, errors.Wrapf(err, "failed to check entry meta for entry `%v`, feed `%v`", entryID, feedID)
	}
	if httpResp.IsErrorState() {
		return false, errors.Errorf("entry meta check for entry `%v`, feed `%v` returned [%v]`%v`", entryID, feedID, httpResp.GetStatusCode(), httpResp.String())
	}

	return resp.EventSent, nil
}

func (c *Coordinator) markSent(ctx context.Context, entryID, feedID string) error {
	var resp SaveEntryMetaResponse
	httpResp, err := c.httpClient.R().
		SetContext(ctx).
		SetBodyJsonMarshal(&SaveEntryMetaArg{EntryID: entryID, FeedID: feedID, Nonce: c.cfg.EntryMetaNonce}).
		SetSuccessResult(&resp).
		Post(saveEntryMetaPath)
	if err != nil {
		return errors.Wrapf(err, "failed to save entry meta for entry `%v`, feed `%v`", entryID, feedID)
	}
	if httpResp.IsErrorState() {
		return errors.Errorf("entry meta save for entry `%v`, feed `%v` returned [%v]`%v`", entryID, feedID, httpResp.GetStatusCode(), httpResp.String())
	}
	if !resp.MetaSaved {
		return errors.Errorf("entry meta save for entry `%v`, feed `%v` was not persisted", entryID, feedID)
	}

	return nil
}
