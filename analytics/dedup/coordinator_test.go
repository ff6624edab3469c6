// SPDX-License-Identifier: ice License 1.0

package dedup

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gravityflow/ganalytics/analytics/dispatch"
	"github.com/gravityflow/ganalytics/analytics/event"
)

type fakeProvider struct {
	mx              sync.Mutex
	analyticsCalls  []string
	tagManagerCalls []string
	sendErr         error
}

func (p *fakeProvider) SendToAnalytics(_ event.Params, eventName string) error {
	p.mx.Lock()
	defer p.mx.Unlock()
	if p.sendErr != nil {
		return p.sendErr
	}
	p.analyticsCalls = append(p.analyticsCalls, eventName)

	return nil
}

func (p *fakeProvider) SendToTagManager(_ event.Params, triggerName string) error {
	p.mx.Lock()
	defer p.mx.Unlock()
	if p.sendErr != nil {
		return p.sendErr
	}
	p.tagManagerCalls = append(p.tagManagerCalls, triggerName)

	return nil
}

// newEntryMetaTestServer serves the entry-meta endpoints on top of an in-memory sent-marker set.
func newEntryMetaTestServer(t *testing.T) *httptest.Server {
	t.Helper()
	var mx sync.Mutex
	sent := make(map[string]bool)
	mux := http.NewServeMux()
	mux.HandleFunc(getEntryMetaPath, func(writer http.ResponseWriter, request *http.Request) {
		var arg GetEntryMetaArg
		require.NoError(t, json.NewDecoder(request.Body).Decode(&arg))
		require.NotEmpty(t, arg.Nonce)
		mx.Lock()
		eventSent := sent[arg.EntryID+"~"+arg.FeedID]
		mx.Unlock()
		writer.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(writer).Encode(GetEntryMetaResponse{EventSent: eventSent}))
	})
	mux.HandleFunc(saveEntryMetaPath, func(writer http.ResponseWriter, request *http.Request) {
		var arg SaveEntryMetaArg
		require.NoError(t, json.NewDecoder(request.Body).Decode(&arg))
		require.NotEmpty(t, arg.Nonce)
		mx.Lock()
		sent[arg.EntryID+"~"+arg.FeedID] = true
		mx.Unlock()
		writer.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(writer).Encode(SaveEntryMetaResponse{MetaSaved: true}))
	})

	return httptest.NewServer(mux)
}

func newTestCoordinator(t *testing.T, provider Provider) *Coordinator {
	t.Helper()
	testServer := newEntryMetaTestServer(t)
	t.Cleanup(testServer.Close)
	coordinator := NewCoordinator(provider, "ganalytics/analytics/dedup")
	coordinator.httpClient.SetBaseURL(testServer.URL)

	return coordinator
}

func drainEvents(coordinator *Coordinator) []string {
	var names []string
	for {
		select {
		case browserEvent := <-coordinator.Events():
			names = append(names, browserEvent.Name)
		default:
			return names
		}
	}
}

func TestCoordinatorAnnouncesItself(t *testing.T) {
	t.Parallel()
	coordinator := newTestCoordinator(t, new(fakeProvider))
	assert.EqualValues(t, []string{ScriptLoadedEventName}, drainEvents(coordinator))
}

func TestSendUniqueDeliversOncePerEntryAndFeed(t *testing.T) {
	t.Parallel()
	provider := new(fakeProvider)
	coordinator := newTestCoordinator(t, provider)
	ctx := context.Background()
	params := event.Params{"event_category": "form"}

	require.NoError(t, coordinator.SendUniqueToAnalytics(ctx, "55", "feed-1", params, "gforms_submission"))
	require.NoError(t, coordinator.SendUniqueToAnalytics(ctx, "55", "feed-1", params, "gforms_submission"))
	assert.EqualValues(t, []string{"gforms_submission"}, provider.analyticsCalls)

	// A different feed for the same entry still fires.
	require.NoError(t, coordinator.SendUniqueToAnalytics(ctx, "55", "feed-2", params, "gforms_submission"))
	assert.Len(t, provider.analyticsCalls, 2)

	require.NoError(t, coordinator.SendUniqueToTagManager(ctx, "55", "feed-3", params, "my_trigger"))
	require.NoError(t, coordinator.SendUniqueToTagManager(ctx, "55", "feed-3", params, "my_trigger"))
	assert.EqualValues(t, []string{"my_trigger"}, provider.tagManagerCalls)
}

func TestCoordinatorCompletionAccounting(t *testing.T) {
	t.Parallel()
	provider := new(fakeProvider)
	coordinator := newTestCoordinator(t, provider)
	ctx := context.Background()
	drainEvents(coordinator)

	coordinator.ExpectFeed()
	coordinator.ExpectFeed()
	require.NoError(t, coordinator.SendUniqueToAnalytics(ctx, "55", "feed-1", event.Params{}, "gforms_submission"))
	assert.EqualValues(t, []string{EventSentEventName}, drainEvents(coordinator))
	require.NoError(t, coordinator.SendUniqueToAnalytics(ctx, "55", "feed-2", event.Params{}, "gforms_submission"))
	assert.EqualValues(t, []string{EventSentEventName, AllEventsSentEventName}, drainEvents(coordinator))

	// Counters reset after completion, so the next submission cycle starts from scratch.
	coordinator.ExpectFeed()
	require.NoError(t, coordinator.SendUniqueToAnalytics(ctx, "56", "feed-1", event.Params{}, "gforms_submission"))
	assert.EqualValues(t, []string{EventSentEventName, AllEventsSentEventName}, drainEvents(coordinator))
}

func TestCoordinatorSkippedFeedStillCompletes(t *testing.T) {
	t.Parallel()
	provider := new(fakeProvider)
	coordinator := newTestCoordinator(t, provider)
	ctx := context.Background()
	drainEvents(coordinator)

	require.NoError(t, coordinator.SendUniqueToAnalytics(ctx, "55", "feed-1", event.Params{}, "gforms_submission"))
	drainEvents(coordinator)

	// The duplicate resolves as skipped, yet still counts towards completion.
	coordinator.ExpectFeed()
	require.NoError(t, coordinator.SendUniqueToAnalytics(ctx, "55", "feed-1", event.Params{}, "gforms_submission"))
	assert.Len(t, provider.analyticsCalls, 1)
	assert.EqualValues(t, []string{AllEventsSentEventName}, drainEvents(coordinator))
}

func TestCoordinatorFailedSendStillCompletes(t *testing.T) {
	t.Parallel()
	provider := &fakeProvider{sendErr: assert.AnError}
	coordinator := newTestCoordinator(t, provider)
	ctx := context.Background()
	drainEvents(coordinator)

	coordinator.ExpectFeed()
	require.Error(t, coordinator.SendUniqueToAnalytics(ctx, "55", "feed-1", event.Params{}, "gforms_submission"))
	assert.EqualValues(t, []string{AllEventsSentEventName}, drainEvents(coordinator))

	// The failed delivery was never marked as sent, so it can fire on a retry.
	provider.sendErr = nil
	require.NoError(t, coordinator.SendUniqueToAnalytics(ctx, "55", "feed-1", event.Params{}, "gforms_submission"))
	assert.EqualValues(t, []string{"gforms_submission"}, provider.analyticsCalls)
}

func TestCoordinatorExecute(t *testing.T) {
	t.Parallel()
	provider := new(fakeProvider)
	coordinator := newTestCoordinator(t, provider)
	ctx := context.Background()
	drainEvents(coordinator)

	require.NoError(t, coordinator.Execute(ctx, &dispatch.Instruction{Action: dispatch.ActionIncrementFeedCount}))
	require.NoError(t, coordinator.Execute(ctx, &dispatch.Instruction{
		Action:    dispatch.ActionSendUniqueToAnalytics,
		EntryID:   "55",
		FeedID:    "feed-1",
		EventName: "gforms_submission",
	}))
	assert.EqualValues(t, []string{"gforms_submission"}, provider.analyticsCalls)
	assert.EqualValues(t, []string{EventSentEventName, AllEventsSentEventName}, drainEvents(coordinator))

	require.NoError(t, coordinator.Execute(ctx, &dispatch.Instruction{Action: dispatch.ActionSendToAnalytics, EventName: "gforms_pagination"}))
	assert.EqualValues(t, []string{"gforms_submission", "gforms_pagination"}, provider.analyticsCalls)
	require.NoError(t, coordinator.Execute(ctx, &dispatch.Instruction{Action: dispatch.ActionSendToTagManager, TriggerName: "paged"}))
	assert.EqualValues(t, []string{"paged"}, provider.tagManagerCalls)

	require.Error(t, coordinator.Execute(ctx, &dispatch.Instruction{Action: "bogus"}))
}
