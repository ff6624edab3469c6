// SPDX-License-Identifier: ice License 1.0

package dedup

import (
	"context"

	"github.com/pkg/errors"

	"github.com/gravityflow/ganalytics/storage"
)

func NewLedger(db storage.DB) Ledger {
	return &ledger{db: db}
}

func (l *ledger) HasSent(ctx context.Context, entryID, feedID string) (bool, error) {
	sent, err := l.db.SIsMember(ctx, sentLedgerKeyPrefix+entryID, feedID).Result()

	return sent, errors.Wrapf(err, "failed to check whether feed `%v` already fired for entry `%v`", feedID, entryID)
}

func (l *ledger) MarkSent(ctx context.Context, entryID, feedID string) error {
	return errors.Wrapf(l.db.SAdd(ctx, sentLedgerKeyPrefix+entryID, feedID).Err(),
		"failed to mark feed `%v` as fired for entry `%v`", feedID, entryID)
}
