// SPDX-License-Identifier: ice License 1.0

package dedup

import (
	"context"
	"sync"

	"github.com/imroc/req/v3"

	"github.com/gravityflow/ganalytics/analytics/event"
	"github.com/gravityflow/ganalytics/storage"
)

// Public API.

type (
	// Ledger records which feeds already produced a delivered event for a given entry.
	Ledger interface {
		HasSent(ctx context.Context, entryID, feedID string) (bool, error)
		MarkSent(ctx context.Context, entryID, feedID string) error
	}
	// Provider performs the actual delivery on the coordinator's behalf.
	Provider interface {
		SendToAnalytics(params event.Params, eventName string) error
		SendToTagManager(params event.Params, triggerName string) error
	}
	// BrowserEvent mirrors the DOM custom events the companion dispatcher announces.
	BrowserEvent struct {
		Detail map[string]any `json:"detail,omitempty"`
		Name   string         `json:"name"`
	}
	// Coordinator owns the per-submission feed accounting and guarantees each (entry, feed) pair is
	// delivered at most once per coordinator, best effort across concurrent coordinators.
	Coordinator struct {
		provider   Provider
		httpClient *req.Client
		events     chan *BrowserEvent
		cfg        coordinatorConfig
		countersMx sync.Mutex
		expected   uint64
		completed  uint64
	}

	GetEntryMetaArg struct {
		EntryID string `json:"entry_id" required:"true"` //nolint:tagliatelle // Historical wire format.
		FeedID  string `json:"feed_id" required:"true"`  //nolint:tagliatelle // Historical wire format.
		Nonce   string `json:"nonce" required:"true" requireNonce:"gforms_google_analytics_entry_meta"`
	}
	GetEntryMetaResponse struct {
		EventSent bool `json:"event_sent"` //nolint:tagliatelle // Historical wire format.
	}
	SaveEntryMetaArg struct {
		EntryID string `json:"entry_id" required:"true"` //nolint:tagliatelle // Historical wire format.
		FeedID  string `json:"feed_id" required:"true"`  //nolint:tagliatelle // Historical wire format.
		Nonce   string `json:"nonce" required:"true" requireNonce:"gforms_google_analytics_entry_meta"`
	}
	SaveEntryMetaResponse struct {
		MetaSaved bool `json:"meta_saved"` //nolint:tagliatelle // Historical wire format.
	}
	LogEventArg struct {
		Parameters event.Params `json:"parameters,omitempty"`
		Connection string       `json:"connection" required:"true"`
		Name       string       `json:"name" required:"true"`
		Nonce      string       `json:"nonce" required:"true" requireNonce:"gforms_google_analytics_logging"`
	}
)

const (
	ScriptLoadedEventName  = "googleanalytics/script_loaded"
	EventSentEventName     = "googleanalytics/event_sent"
	AllEventsSentEventName = "googleanalytics/all_events_sent"

	EntryMetaNonceAction = "gforms_google_analytics_entry_meta"
	LoggingNonceAction   = "gforms_google_analytics_logging"
)

// Private API.

type (
	ledger struct {
		db storage.DB
	}
	// | endpoints implements server.State for the public entry-meta surface.
	endpoints struct {
		db                 storage.DB
		ledger             Ledger
		applicationYAMLKey string
	}
	coordinatorConfig struct {
		BaseURL        string `yaml:"baseUrl"`
		EntryMetaNonce string `yaml:"entryMetaNonce"`
		LoggingNonce   string `yaml:"loggingNonce"`
	}
)

const (
	sentLedgerKeyPrefix = "googleanalytics:feeds_sent:"

	getEntryMetaPath  = "/v1/entry-meta/get"
	saveEntryMetaPath = "/v1/entry-meta/save"
	logEventPath      = "/v1/events/log"

	eventsChannelCapacity = 64
)
