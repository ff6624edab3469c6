// SPDX-License-Identifier: ice License 1.0

package dedup

import (
	"context"

	"github.com/pkg/errors"

	"github.com/gravityflow/ganalytics/log"
	"github.com/gravityflow/ganalytics/server"
	"github.com/gravityflow/ganalytics/storage"
)

// NewEndpoints exposes the sent-marker ledger over HTTP for remote coordinators.
func NewEndpoints(applicationYAMLKey string) server.State {
	return &endpoints{applicationYAMLKey: applicationYAMLKey}
}

func (e *endpoints) Init(ctx context.Context, _ context.CancelFunc) {
	e.db = storage.MustConnect(ctx, e.applicationYAMLKey)
	e.ledger = NewLedger(e.db)
}

func (e *endpoints) Close(_ context.Context) error {
	return errors.Wrap(e.db.Close(), "failed to close storage")
}

func (e *endpoints) CheckHealth(ctx context.Context) error {
	return errors.Wrap(e.db.Ping(ctx).Err(), "storage ping failed")
}

func (e *endpoints) RegisterRoutes(router *server.Router) {
	router.POST(getEntryMetaPath, server.RootHandler(e.GetEntryMeta))
	router.POST(saveEntryMetaPath, server.RootHandler(e.SaveEntryMeta))
	router.POST(logEventPath, server.RootHandler(e.LogEvent))
}

// GetEntryMeta godoc
//
//	@Schemes
//	@Description	Returns whether the given feed already fired an event for the given entry.
//	@Tags			EntryMeta
//	@Accept			json
//	@Produce		json
//	@Param			request	body		GetEntryMetaArg	true	"Request params"
//	@Success		200		{object}	GetEntryMetaResponse
//	@Failure		403		{object}	server.ErrorResponse	"if the nonce is invalid"
//	@Failure		422		{object}	server.ErrorResponse	"if required fields are missing"
//	@Failure		500		{object}	server.ErrorResponse
//	@Router			/v1/entry-meta/get [POST].
func (e *endpoints) GetEntryMeta( //nolint:gocritic // False negative.
	ctx context.Context, req *server.Request[GetEntryMetaArg, GetEntryMetaResponse],
) (*server.Response[GetEntryMetaResponse], *server.Response[server.ErrorResponse]) {
	sent, err := e.ledger.HasSent(ctx, req.Data.EntryID, req.Data.FeedID)
	if err != nil {
		return nil, server.Unexpected(errors.Wrapf(err, "failed to read entry meta for %#v", req.Data))
	}

	return server.OK(&GetEntryMetaResponse{EventSent: sent}), nil
}

// SaveEntryMeta godoc
//
//	@Schemes
//	@Description	Marks the given feed as fired for the given entry.
//	@Tags			EntryMeta
//	@Accept			json
//	@Produce		json
//	@Param			request	body		SaveEntryMetaArg	true	"Request params"
//	@Success		200		{object}	SaveEntryMetaResponse
//	@Failure		403		{object}	server.ErrorResponse	"if the nonce is invalid"
//	@Failure		422		{object}	server.ErrorResponse	"if required fields are missing"
//	@Failure		500		{object}	server.ErrorResponse
//	@Router			/v1/entry-meta/save [POST].
func (e *endpoints) SaveEntryMeta( //nolint:gocritic // False negative.
	ctx context.Context, req *server.Request[SaveEntryMetaArg, SaveEntryMetaResponse],
) (*server.Response[SaveEntryMetaResponse], *server.Response[server.ErrorResponse]) {
	if err := e.ledger.MarkSent(ctx, req.Data.EntryID, req.Data.FeedID); err != nil {
		return nil, server.Unexpected(errors.Wrapf(err, "failed to save entry meta for %#v", req.Data))
	}

	return server.OK(&SaveEntryMetaResponse{MetaSaved: true}), nil
}

// LogEvent godoc
//
//	@Schemes
//	@Description	Records a successful delivery announced by a remote coordinator. Purely observational.
//	@Tags			EntryMeta
//	@Accept			json
//	@Produce		json
//	@Param			request	body	LogEventArg	true	"Request params"
//	@Success		204
//	@Failure		403	{object}	server.ErrorResponse	"if the nonce is invalid"
//	@Failure		422	{object}	server.ErrorResponse	"if required fields are missing"
//	@Router			/v1/events/log [POST].
func (e *endpoints) LogEvent( //nolint:gocritic // False negative.
	_ context.Context, req *server.Request[LogEventArg, any],
) (*server.Response[any], *server.Response[server.ErrorResponse]) {
	log.Info("event sent", "connection", req.Data.Connection, "name", req.Data.Name, "parameters", req.Data.Parameters, "clientIp", req.ClientIP.String())

	return server.NoContent(), nil
}
