// SPDX-License-Identifier: ice License 1.0

package dispatch

import (
	"context"
	"net/url"

	"github.com/gravityflow/ganalytics/analytics/event"
	"github.com/gravityflow/ganalytics/analytics/mp"
	"github.com/gravityflow/ganalytics/settings"
)

// Public API.

type (
	// Store is the read-only account configuration surface consumed by the dispatcher.
	Store interface {
		Account(ctx context.Context) (*settings.Account, error)
	}
	// MeasurementIDsProvider fans one event out to multiple measurement ids. The default provider
	// returns just the configured one.
	MeasurementIDsProvider func(form *event.Form, entry event.Entry, feed *event.Feed) []string
	// Context carries the request-scoped details relevant to delivery.
	Context struct {
		Query           url.Values
		PageURL         string
		DocumentTitle   string
		UserIP          string
		AnalyticsCookie string
		IsAJAX          bool
		IsREST          bool
	}
	// Instruction is one serializable command addressed to the companion browser-side dispatcher.
	Instruction struct {
		Parameters  event.Params `json:"parameters,omitempty"`
		Action      string       `json:"action"`
		EntryID     string       `json:"entryId,omitempty"`
		FeedID      string       `json:"feedId,omitempty"`
		EventName   string       `json:"eventName,omitempty"`
		TriggerName string       `json:"triggerName,omitempty"`
		// DeferUntilScriptLoaded delays execution until the browser-side dispatcher announced itself.
		// Only ajax submissions run with the dispatcher already loaded.
		DeferUntilScriptLoaded bool `json:"deferUntilScriptLoaded,omitempty"`
	}
	// Outcome is what one dispatch call produced: browser instructions, or event details destined for
	// machine-readable response metadata when the submission came in over a REST request.
	Outcome struct {
		RESTDetails  map[string]any `json:"ga_event,omitempty"`
		Instructions []*Instruction `json:"instructions,omitempty"`
	}
	Dispatcher struct {
		store             Store
		mapper            *event.Mapper
		names             *event.NameResolver
		measurementIDs    MeasurementIDsProvider
		sendProtocolEvent func(ctx context.Context, protocolEvent *mp.Event, measurementID string) error
	}
	// Option customizes a Dispatcher with injected strategies.
	Option func(*Dispatcher)
)

const (
	ActionIncrementFeedCount     = "increment_feed_count"
	ActionSendUniqueToAnalytics  = "send_unique_to_ga"
	ActionSendUniqueToTagManager = "send_unique_to_gtm"
	ActionSendToAnalytics        = "send_to_ga"
	ActionSendToTagManager       = "send_to_gtm"
)
