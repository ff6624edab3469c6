// SPDX-License-Identifier: ice License 1.0

package settings

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gravityflow/ganalytics/analytics/event"
)

func TestSaveAccountRejectsUnknownModes(t *testing.T) {
	t.Parallel()
	// Validation fires before any write, so no storage is needed here.
	testStore := New(nil)

	err := testStore.SaveAccount(context.Background(), &Account{Mode: "universal-analytics"})
	require.Error(t, err)
	require.ErrorIs(t, err, ErrInvalidMode)
}

func TestSaveFeedRejectsInvalidParameters(t *testing.T) {
	t.Parallel()
	testStore := New(nil)

	err := testStore.SaveFeed(context.Background(), feedWithParamName("_leading"))
	require.Error(t, err)
	var paramErr *event.ParamError
	require.ErrorAs(t, err, &paramErr)
	assert.Equal(t, "_leading", paramErr.Name)

	err = testStore.SaveFeed(context.Background(), feedWithParamName(strings.Repeat("n", 41)))
	require.Error(t, err)
	require.ErrorAs(t, err, &paramErr)
}

func TestSaveFormTrackingRejectsInvalidParameters(t *testing.T) {
	t.Parallel()
	testStore := New(nil)

	tracking := &event.FormTracking{Parameters: event.FieldMap{{Key: "trailing_", Value: "x"}}}
	err := testStore.SaveFormTracking(context.Background(), "7", tracking)
	require.Error(t, err)
	var paramErr *event.ParamError
	require.ErrorAs(t, err, &paramErr)
	assert.Equal(t, "trailing_", paramErr.Name)
}

func feedWithParamName(paramName string) *event.Feed {
	return &event.Feed{
		ID:         "feed-1",
		FormID:     "7",
		Parameters: event.FieldMap{{Key: paramName, Value: "first_name"}},
	}
}
