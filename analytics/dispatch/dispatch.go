// SPDX-License-Identifier: ice License 1.0

package dispatch

import (
	"context"
	"fmt"
	"net/url"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"

	"github.com/gravityflow/ganalytics/analytics/event"
	"github.com/gravityflow/ganalytics/analytics/mp"
	"github.com/gravityflow/ganalytics/log"
	"github.com/gravityflow/ganalytics/settings"
)

func New(store Store, options ...Option) *Dispatcher {
	dispatcher := &Dispatcher{
		store:  store,
		mapper: event.NewMapper(nil),
		names:  new(event.NameResolver),
		sendProtocolEvent: func(ctx context.Context, protocolEvent *mp.Event, measurementID string) error {
			return protocolEvent.Send(ctx, measurementID)
		},
	}
	for _, option := range options {
		option(dispatcher)
	}
	if dispatcher.measurementIDs == nil {
		dispatcher.measurementIDs = func(_ *event.Form, _ event.Entry, _ *event.Feed) []string { return nil }
	}

	return dispatcher
}

func WithMapper(mapper *event.Mapper) Option {
	return func(d *Dispatcher) { d.mapper = mapper }
}

func WithNameResolver(names *event.NameResolver) Option {
	return func(d *Dispatcher) { d.names = names }
}

func WithMeasurementIDs(provider MeasurementIDsProvider) Option {
	return func(d *Dispatcher) { d.measurementIDs = provider }
}

func WithProtocolSender(send func(ctx context.Context, protocolEvent *mp.Event, measurementID string) error) Option {
	return func(d *Dispatcher) { d.sendProtocolEvent = send }
}

// DispatchSubmission delivers one feed's submission event through the configured mode.
// Delivery is best effort: a returned error never means the submission itself failed.
func (d *Dispatcher) DispatchSubmission(ctx context.Context, reqCtx *Context, feed *event.Feed, entry event.Entry, form *event.Form) (*Outcome, error) { //nolint:lll // .
	account, err := d.store.Account(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load the account configuration for form `%v`", form.ID)
	}
	params := d.mapper.MapParams(feed.Parameters, form, entry, reqCtx.Query)
	eventName := d.names.Submission(account.Mode, feed, entry, form)

	if reqCtx.IsREST && account.Mode != event.ModeMeasurementProtocol {
		return d.restOutcome(account.Mode, feed, entry, params, eventName), nil
	}

	switch account.Mode {
	case event.ModeMeasurementProtocol:
		return new(Outcome), d.sendMeasurementProtocol(ctx, reqCtx, account, params, eventName, form, entry, feed)
	case event.ModeAnalytics:
		log.Debug(fmt.Sprintf("attempting to send event via google analytics. event name: %v. page url: %v", eventName, reqCtx.PageURL))

		return &Outcome{Instructions: []*Instruction{
			{Action: ActionIncrementFeedCount},
			{
				Action:                 ActionSendUniqueToAnalytics,
				EntryID:                entry["id"],
				FeedID:                 feed.ID,
				Parameters:             params,
				EventName:              eventName,
				DeferUntilScriptLoaded: !reqCtx.IsAJAX,
			},
		}}, nil
	case event.ModeTagManager:
		triggerName := event.SubmissionTriggerName(feed)
		log.Debug(fmt.Sprintf("attempting to send event via google tag manager. trigger name: %v. page url: %v", triggerName, reqCtx.PageURL))

		return &Outcome{Instructions: []*Instruction{
			{Action: ActionIncrementFeedCount},
			{
				Action:                 ActionSendUniqueToTagManager,
				EntryID:                entry["id"],
				FeedID:                 feed.ID,
				Parameters:             params,
				TriggerName:            triggerName,
				DeferUntilScriptLoaded: !reqCtx.IsAJAX,
			},
		}}, nil
	case event.ModeUnset:
	}

	return new(Outcome), nil
}

// DispatchPagination delivers a page-transition event. There's no entry/feed pair here, so the
// browser-side paths use the plain send variant, without dedup or feed accounting.
func (d *Dispatcher) DispatchPagination(ctx context.Context, reqCtx *Context, form *event.Form, entry event.Entry, sourcePageNumber, currentPageNumber int) (*Outcome, error) { //nolint:funlen,lll // .
	if form.Pagination == nil {
		return new(Outcome), nil
	}
	account, err := d.store.Account(ctx)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load the account configuration for form `%v`", form.ID)
	}
	params := d.mapper.MapParams(form.Pagination.Parameters, form, entry, reqCtx.Query)
	params = event.ReplacePaginationTags(params, sourcePageNumber, currentPageNumber)
	eventName := d.names.Pagination(account.Mode, form)

	switch account.Mode {
	case event.ModeMeasurementProtocol:
		return new(Outcome), d.sendMeasurementProtocol(ctx, reqCtx, account, params, eventName, form, entry, nil)
	case event.ModeAnalytics:
		log.Debug(fmt.Sprintf("attempting to send pagination event via google analytics. event name: %v", eventName))

		return &Outcome{Instructions: []*Instruction{{
			Action:                 ActionSendToAnalytics,
			Parameters:             params,
			EventName:              eventName,
			DeferUntilScriptLoaded: !reqCtx.IsAJAX,
		}}}, nil
	case event.ModeTagManager:
		triggerName := event.PaginationTriggerName(form)
		log.Debug(fmt.Sprintf("attempting to send pagination event via google tag manager. trigger name: %v", triggerName))

		return &Outcome{Instructions: []*Instruction{{
			Action:                 ActionSendToTagManager,
			Parameters:             params,
			TriggerName:            triggerName,
			DeferUntilScriptLoaded: !reqCtx.IsAJAX,
		}}}, nil
	case event.ModeUnset:
	}

	return new(Outcome), nil
}

func (d *Dispatcher) restOutcome(mode event.Mode, feed *event.Feed, entry event.Entry, params event.Params, eventName string) *Outcome {
	details := make(map[string]any, 1+1+1+1)
	details["entry_id"] = entry["id"]
	details["feed_id"] = feed.ID
	details["parameters"] = params
	if mode == event.ModeTagManager {
		details["trigger_name"] = event.SubmissionTriggerName(feed)
	} else {
		details["event_name"] = eventName
	}

	return &Outcome{RESTDetails: details}
}

//nolint:revive // Dispatch needs all of it.
func (d *Dispatcher) sendMeasurementProtocol(
	ctx context.Context, reqCtx *Context, account *settings.Account, params event.Params, eventName string,
	form *event.Form, entry event.Entry, feed *event.Feed,
) error {
	protocolEvent := mp.New(account.GA4Account.GMPAPISecret, eventName, reqCtx.AnalyticsCookie)
	if parsed, pErr := url.Parse(reqCtx.PageURL); pErr == nil {
		protocolEvent.SetDocumentPath(parsed.Path)
		protocolEvent.SetDocumentHost(parsed.Host)
	}
	protocolEvent.SetDocumentLocation(reqCtx.PageURL)
	protocolEvent.SetDocumentTitle(reqCtx.DocumentTitle)
	protocolEvent.SetUserIPAddress(reqCtx.UserIP)
	protocolEvent.SetParams(params)

	measurementIDs := d.measurementIDs(form, entry, feed)
	if len(measurementIDs) == 0 {
		measurementIDs = append(make([]string, 0, 1), account.GA4Account.MeasurementID)
	}
	var errs *multierror.Error
	for _, measurementID := range measurementIDs {
		// A failure for one measurement id must not prevent attempting the remaining ones.
		if err := d.sendProtocolEvent(ctx, protocolEvent, measurementID); err != nil {
			log.Error(errors.Wrapf(err, "failed to send event `%v` to measurement id `%v` via measurement protocol", eventName, measurementID))
			errs = multierror.Append(errs, err)

			continue
		}
		log.Debug(fmt.Sprintf("successfully sent event `%v` to measurement id `%v` via measurement protocol", eventName, measurementID))
	}

	return errs.ErrorOrNil() //nolint:wrapcheck // Not needed.
}
