// SPDX-License-Identifier: ice License 1.0

package settings

import (
	"context"
	"io"
	"sync/atomic"

	"github.com/pkg/errors"

	"github.com/gravityflow/ganalytics/analytics/event"
	"github.com/gravityflow/ganalytics/storage"
)

// Public API.

type (
	// Account is the connection configuration shared by every form.
	Account struct {
		GA4Account GA4Account `json:"ga4Account"`
		Mode       event.Mode `json:"mode"`
	}
	GA4Account struct {
		MeasurementID string `json:"measurementId"`
		GMPAPISecret  string `json:"gmpApiSecret"`
	}
	// Store persists the account connection plus the per-form tracking configuration.
	// Every Save* validates before writing, so invalid parameter maps never reach send time.
	Store interface {
		io.Closer
		Account(ctx context.Context) (*Account, error)
		SaveAccount(ctx context.Context, account *Account) error
		Feeds(ctx context.Context, formID string) ([]*event.Feed, error)
		SaveFeed(ctx context.Context, feed *event.Feed) error
		FormTracking(ctx context.Context, formID string) (*event.FormTracking, error)
		SaveFormTracking(ctx context.Context, formID string, tracking *event.FormTracking) error
	}
)

var (
	ErrNotFound    = storage.ErrNotFound
	ErrInvalidMode = errors.New("invalid event delivery mode")
)

// Private API.

type (
	store struct {
		db           storage.DB
		accountCache atomic.Pointer[Account]
	}
)

const (
	accountKey      = "googleanalytics:settings"
	accountField    = "account"
	paginationField = "pagination:"
	feedsKeyPrefix  = "googleanalytics:feeds:"
)
