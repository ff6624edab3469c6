// SPDX-License-Identifier: ice License 1.0

package settings

import (
	"context"

	"github.com/goccy/go-json"
	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/gravityflow/ganalytics/analytics/event"
	"github.com/gravityflow/ganalytics/storage"
)

func New(db storage.DB) Store {
	return &store{db: db}
}

func (s *store) Close() error {
	return errors.Wrap(s.db.Close(), "failed to close settings store")
}

func (s *store) Account(ctx context.Context) (*Account, error) {
	if cached := s.accountCache.Load(); cached != nil {
		return cached, nil
	}
	serialized, err := s.db.HGet(ctx, accountKey, accountField).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}

		return nil, errors.Wrap(err, "failed to get the account configuration")
	}
	var account Account
	if err = json.Unmarshal([]byte(serialized), &account); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal the account configuration %v", serialized)
	}
	s.accountCache.Store(&account)

	return &account, nil
}

func (s *store) SaveAccount(ctx context.Context, account *Account) error {
	switch account.Mode {
	case event.ModeMeasurementProtocol, event.ModeAnalytics, event.ModeTagManager, event.ModeUnset:
	default:
		return errors.Wrapf(ErrInvalidMode, "mode `%v` is not supported", account.Mode)
	}
	serialized, err := json.Marshal(account)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal the account configuration %#v", account)
	}
	if err = s.db.HSet(ctx, accountKey, accountField, serialized).Err(); err != nil {
		return errors.Wrap(err, "failed to save the account configuration")
	}
	s.accountCache.Store(account)

	return nil
}

func (s *store) Feeds(ctx context.Context, formID string) ([]*event.Feed, error) {
	serializedFeeds, err := s.db.HGetAll(ctx, feedsKeyPrefix+formID).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get the feeds of form `%v`", formID)
	}
	feeds := make([]*event.Feed, 0, len(serializedFeeds))
	for feedID, serialized := range serializedFeeds {
		var feed event.Feed
		if err = json.Unmarshal([]byte(serialized), &feed); err != nil {
			return nil, errors.Wrapf(err, "failed to unmarshal feed `%v` of form `%v`", feedID, formID)
		}
		feeds = append(feeds, &feed)
	}

	return feeds, nil
}

// SaveFeed rejects feeds carrying invalid parameter names or values, so events built from a
// persisted feed are always well formed.
func (s *store) SaveFeed(ctx context.Context, feed *event.Feed) error {
	if err := feed.Parameters.Validate(); err != nil {
		return errors.Wrapf(err, "invalid parameters for feed `%v`", feed.ID)
	}
	serialized, err := json.Marshal(feed)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal feed %#v", feed)
	}
	if err = s.db.HSet(ctx, feedsKeyPrefix+feed.FormID, feed.ID, serialized).Err(); err != nil {
		return errors.Wrapf(err, "failed to save feed `%v` of form `%v`", feed.ID, feed.FormID)
	}

	return nil
}

func (s *store) FormTracking(ctx context.Context, formID string) (*event.FormTracking, error) {
	serialized, err := s.db.HGet(ctx, accountKey, paginationField+formID).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, ErrNotFound
		}

		return nil, errors.Wrapf(err, "failed to get the pagination tracking of form `%v`", formID)
	}
	var tracking event.FormTracking
	if err = json.Unmarshal([]byte(serialized), &tracking); err != nil {
		return nil, errors.Wrapf(err, "failed to unmarshal the pagination tracking of form `%v`: %v", formID, serialized)
	}

	return &tracking, nil
}

func (s *store) SaveFormTracking(ctx context.Context, formID string, tracking *event.FormTracking) error {
	if err := tracking.Parameters.Validate(); err != nil {
		return errors.Wrapf(err, "invalid pagination parameters for form `%v`", formID)
	}
	serialized, err := json.Marshal(tracking)
	if err != nil {
		return errors.Wrapf(err, "failed to marshal the pagination tracking %#v", tracking)
	}
	if err = s.db.HSet(ctx, accountKey, paginationField+formID, serialized).Err(); err != nil {
		return errors.Wrapf(err, "failed to save the pagination tracking of form `%v`", formID)
	}

	return nil
}
