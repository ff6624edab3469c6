// SPDX-License-Identifier: ice License 1.0

package event

import (
	"regexp"

	"github.com/pkg/errors"
)

// Public API.

type (
	// Mode is the delivery mode for the whole site installation. Exactly one mode governs all events at a given time.
	Mode string
	// Params is the name->value event parameter mapping sent to Google Analytics. Built fresh per event, never persisted.
	Params map[string]string
	// Entry holds the submitted field values of one form submission, keyed by field name.
	Entry map[string]string
	Form  struct {
		ID         string        `json:"id"`
		Title      string        `json:"title"`
		Pagination *FormTracking `json:"pagination,omitempty"`
	}
	// FormTracking is the per-form pagination tracking configuration.
	FormTracking struct {
		Parameters    FieldMap `json:"parameters,omitempty"`
		Trigger       string   `json:"trigger,omitempty"`
		CustomTrigger string   `json:"customTrigger,omitempty"`
	}
	Feed struct {
		ID            string   `json:"id"`
		FormID        string   `json:"formId"`
		Name          string   `json:"name"`
		Parameters    FieldMap `json:"parameters,omitempty"`
		Trigger       string   `json:"trigger,omitempty"`
		CustomTrigger string   `json:"customTrigger,omitempty"`
	}
	// FieldMap is the configured (parameter name, field reference) pairs of a feed or form.
	FieldMap []FieldMapping
	FieldMapping struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	// FieldResolver resolves one configured field reference against the form/entry, substituting merge tags.
	FieldResolver func(form *Form, entry Entry, value string) string
	Mapper        struct {
		ResolveField FieldResolver
	}
	// NameResolver derives logical event names, honoring the injected overrides. Overrides receive every argument unmodified.
	NameResolver struct {
		SubmissionOverride func(defaultName string, mode Mode, feed *Feed, entry Entry, form *Form) string
		PaginationOverride func(defaultName string, mode Mode, form *Form) string
	}
	// ParamError is a single parameter shape violation, carrying the offending parameter name.
	ParamError struct {
		error
		Name string
	}
)

const (
	ModeUnset               Mode = ""
	ModeMeasurementProtocol Mode = "gmp"
	ModeAnalytics           Mode = "ga"
	ModeTagManager          Mode = "gtm"

	DefaultSubmissionEventName = "gforms_submission"
	DefaultPaginationEventName = "gforms_pagination"

	// CustomTriggerSentinel marks a tag manager trigger configured as a custom literal.
	CustomTriggerSentinel = "gf_custom"
)

// Private API.

const (
	maxParamNameLength  = 40
	maxParamValueLength = 100

	sourcePageNumberTag  = "{source_page_number}"
	currentPageNumberTag = "{current_page_number}"
)

// .
var (
	utmFields = [...]string{"utm_source", "utm_medium", "utm_campaign", "utm_term", "utm_content"} //nolint:gochecknoglobals // Immutable.

	paramNameRx = regexp.MustCompile(`^[A-Za-z0-9_]*$`) //nolint:gochecknoglobals // Immutable.
	mergeTagRx  = regexp.MustCompile(`\{([^{}]+)\}`)    //nolint:gochecknoglobals // Immutable.

	errNameTooLong       = errors.Errorf("parameter names must be %v characters or less", maxParamNameLength)
	errValueTooLong      = errors.Errorf("parameter values must be %v characters or less", maxParamValueLength)
	errNameBadCharacters = errors.New("parameter names cannot begin or end with an underscore, and must contain only letters, numbers, and underscores")
)
