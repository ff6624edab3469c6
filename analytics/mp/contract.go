// SPDX-License-Identifier: ice License 1.0

package mp

import (
	"regexp"
	stdlibtime "time"

	"github.com/gravityflow/ganalytics/analytics/event"
)

// Public API.

type (
	// Event is a single measurement protocol event. Construct it with New, populate the optional document
	// fields with the setters, then call Send once per target measurement id. Immutable once sent.
	Event struct {
		params           event.Params
		clientID         string
		apiSecret        string
		eventName        string
		documentPath     string
		documentLocation string
		documentTitle    string
		documentHost     string
		userIPAddress    string
		baseURL          string
	}
)

// Private API.

const (
	collectBaseURL = "https://www.google-analytics.com/mp/collect?"

	requestDeadline = 30 * stdlibtime.Second
)

type (
	config struct {
		BaseURL string              `yaml:"baseUrl" mapstructure:"baseUrl"`
		Timeout stdlibtime.Duration `yaml:"timeout" mapstructure:"timeout"`
	}
)

// .
var (
	//nolint:gochecknoglobals // Immutable.
	uuidV4Rx = regexp.MustCompile(`(?i)^[0-9A-F]{8}-[0-9A-F]{4}-4[0-9A-F]{3}-[89AB][0-9A-F]{3}-[0-9A-F]{12}$`)
)
