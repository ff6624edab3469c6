// SPDX-License-Identifier: ice License 1.0

package mp

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gravityflow/ganalytics/analytics/event"
)

func TestDeriveClientID(t *testing.T) {
	t.Parallel()
	// A verbatim UUIDv4 in the 3rd cookie segment wins over the composite legacy form.
	ev := New("secret", "gforms_submission", "GA1.2.550e8400-e29b-41d4-a716-446655440000.999")
	assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000", ev.ClientID())

	ev = New("secret", "gforms_submission", "GA1.2.1896646122.1620401346")
	assert.Equal(t, "1896646122.1620401346", ev.ClientID())

	ev = New("secret", "gforms_submission", "GA1.2.123")
	_, err := uuid.Parse(ev.ClientID())
	require.NoError(t, err)

	ev = New("secret", "gforms_submission", "")
	_, err = uuid.Parse(ev.ClientID())
	require.NoError(t, err)

	ev = New("secret", "gforms_submission", "garbage")
	_, err = uuid.Parse(ev.ClientID())
	require.NoError(t, err)
}

func TestPayload(t *testing.T) {
	t.Parallel()
	ev := New("secret", "gforms_submission", "GA1.2.1896646122.1620401346")
	ev.SetParams(event.Params{"event_category": "form"})
	body := ev.payload()
	assert.Equal(t, "1896646122.1620401346", body["client_id"])
	assert.EqualValues(t, map[string]any{"name": "gforms_submission", "params": event.Params{"event_category": "form"}}, body["events"])
	_, hasUserProperties := body["user_properties"]
	assert.False(t, hasUserProperties)

	ev.SetDocumentLocation("https://example.com/contact")
	ev.SetDocumentTitle("Contact")
	body = ev.payload()
	assert.EqualValues(t, map[string]string{"dl": "https://example.com/contact", "dt": "Contact"}, body["user_properties"])

	ev.SetDocumentPath("/contact")
	ev.SetDocumentHost("example.com")
	ev.SetUserIPAddress("203.0.113.7")
	body = ev.payload()
	assert.EqualValues(t, map[string]string{
		"dp":  "/contact",
		"dl":  "https://example.com/contact",
		"dt":  "Contact",
		"dh":  "example.com",
		"uip": "203.0.113.7",
	}, body["user_properties"])
}

func TestSend(t *testing.T) {
	t.Parallel()
	type receivedRequest struct {
		body  map[string]any
		query map[string][]string
	}
	received := make(chan *receivedRequest, 1)
	testServer := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(request.Body).Decode(&body))
		received <- &receivedRequest{body: body, query: request.URL.Query()}
		writer.WriteHeader(http.StatusNoContent)
	}))
	defer testServer.Close()

	ev := New("some-api-secret", "gforms_submission", "GA1.2.1896646122.1620401346")
	ev.baseURL = testServer.URL + "/mp/collect?"
	ev.SetParams(event.Params{"event_category": "form"})
	ev.SetDocumentTitle("Contact")
	require.NoError(t, ev.Send(context.Background(), "G-12345"))

	request := <-received
	assert.EqualValues(t, []string{"G-12345"}, request.query["measurement_id"])
	assert.EqualValues(t, []string{"some-api-secret"}, request.query["api_secret"])
	assert.Equal(t, "1896646122.1620401346", request.body["client_id"])
	assert.EqualValues(t, map[string]any{"name": "gforms_submission", "params": map[string]any{"event_category": "form"}}, request.body["events"])
	assert.EqualValues(t, map[string]any{"dt": "Contact"}, request.body["user_properties"])
}

func TestSendErrorState(t *testing.T) {
	t.Parallel()
	testServer := httptest.NewServer(http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusBadRequest)
	}))
	defer testServer.Close()

	ev := New("secret", "gforms_submission", "")
	ev.baseURL = testServer.URL + "/mp/collect?"
	err := ev.Send(context.Background(), "G-12345")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "statusCode:400")
}
