// SPDX-License-Identifier: ice License 1.0

package mp

import (
	"context"
	"net/http"
	"strings"
	stdlibtime "time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/imroc/req/v3"
	"github.com/pkg/errors"

	"github.com/gravityflow/ganalytics/analytics/event"
	appcfg "github.com/gravityflow/ganalytics/config"
	"github.com/gravityflow/ganalytics/log"
)

//nolint:gochecknoinits // It's the only way to tweak the client.
func init() {
	req.DefaultClient().SetJsonMarshal(json.Marshal)
	req.DefaultClient().SetJsonUnmarshal(json.Unmarshal)
	req.DefaultClient().GetClient().Timeout = requestDeadline
	var cfg config
	appcfg.MustLoadFromKey("ganalytics/analytics/mp", &cfg)
	if cfg.Timeout > 0 {
		req.DefaultClient().GetClient().Timeout = cfg.Timeout
	}
}

// New creates an event addressed to the configured api secret, deriving the client id from the
// visitor's analytics cookie when possible. Pass the raw `_ga` cookie value, or "" when absent.
func New(apiSecret, eventName, analyticsCookie string) *Event {
	var cfg config
	appcfg.MustLoadFromKey("ganalytics/analytics/mp", &cfg)
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = collectBaseURL
	}

	return &Event{
		clientID:  deriveClientID(analyticsCookie),
		apiSecret: apiSecret,
		eventName: eventName,
		baseURL:   baseURL,
	}
}

func (e *Event) SetParams(params event.Params) {
	e.params = params
}

func (e *Event) SetUserIPAddress(userIP string) {
	e.userIPAddress = userIP
}

func (e *Event) SetDocumentPath(documentPath string) {
	e.documentPath = documentPath
}

func (e *Event) SetDocumentLocation(documentLocation string) {
	e.documentLocation = documentLocation
}

func (e *Event) SetDocumentTitle(documentTitle string) {
	e.documentTitle = documentTitle
}

func (e *Event) SetDocumentHost(documentHost string) {
	e.documentHost = documentHost
}

func (e *Event) ClientID() string {
	return e.clientID
}

// Send POSTs the event to one measurement id. The event holds no per-destination state, so serving
// multiple destinations means calling Send once per destination. Transport failures are returned to the
// caller, never escalated; analytics delivery must not block form submission.
func (e *Event) Send(ctx context.Context, measurementID string) error {
	url := e.baseURL + "measurement_id=" + measurementID + "&api_secret=" + e.apiSecret
	resp, err := e.buildHTTPRequest(ctx).SetBodyJsonMarshal(e.payload()).Post(url)
	if err != nil || resp.IsErrorState() {
		if err == nil {
			respBody, pErr := resp.ToString()
			if pErr != nil {
				err = errors.Wrapf(pErr, "measurement protocol post to measurement id `%v` failed, [1]unable to read response body", measurementID)
			} else {
				err = errors.Errorf("measurement protocol post to measurement id `%v` failed, statusCode:%v, response: %v", measurementID, resp.GetStatusCode(), respBody) //nolint:lll // .
			}
		}

		return errors.Wrapf(err, "measurement protocol post to measurement id `%v` failed", measurementID)
	}

	return nil
}

// Fields left unset are dropped from the outgoing payload rather than sent empty,
// because empty string values cause the receiving endpoint to reject the payload.
func (e *Event) payload() map[string]any {
	events := make(map[string]any, 1+1)
	events["name"] = e.eventName
	events["params"] = e.params
	body := make(map[string]any, 1+1+1)
	body["client_id"] = e.clientID
	body["events"] = events
	userProperties := make(map[string]string, 1+1+1+1+1)
	for field, value := range map[string]string{
		"dp":  e.documentPath,
		"dl":  e.documentLocation,
		"dt":  e.documentTitle,
		"dh":  e.documentHost,
		"uip": e.userIPAddress,
	} {
		if value != "" {
			userProperties[field] = value
		}
	}
	if len(userProperties) > 0 {
		body["user_properties"] = userProperties
	}

	return body
}

//nolint:mnd,gomnd // Static config.
func (e *Event) buildHTTPRequest(ctx context.Context) *req.Request {
	return req.
		SetContext(ctx).
		SetRetryBackoffInterval(10*stdlibtime.Millisecond, 1*stdlibtime.Second).
		SetRetryHook(func(resp *req.Response, err error) {
			switch { //nolint:revive // .
			case err != nil:
				log.Error(errors.Wrapf(err, "measurement protocol request failed, retrying... "))
			case resp.GetStatusCode() == http.StatusTooManyRequests:
				log.Error(errors.New("rate limit for measurement protocol request reached, retrying... "))
			case resp.GetStatusCode() >= http.StatusInternalServerError:
				log.Error(errors.New("measurement protocol request failed[internal server error], retrying... "))
			}
		}).
		SetRetryCount(2).
		SetRetryCondition(func(resp *req.Response, err error) bool {
			return err != nil || resp.GetStatusCode() == http.StatusTooManyRequests || resp.GetStatusCode() >= http.StatusInternalServerError
		}).
		SetContentType("application/json").
		SetHeader("Accept", "application/json")
}

// The verbatim UUID branch takes priority over the composite legacy form.
func deriveClientID(analyticsCookie string) string {
	if analyticsCookie != "" {
		segments := strings.Split(analyticsCookie, ".")
		if len(segments) > 2 { //nolint:mnd,gomnd // The client id starts at the 3rd segment.
			if uuidV4Rx.MatchString(segments[2]) {
				return segments[2]
			}
			if len(segments) > 3 { //nolint:mnd,gomnd // Legacy client ids span the 3rd and 4th segments.
				return segments[2] + "." + segments[3]
			}
		}
	}

	return uuid.NewString()
}
