// SPDX-License-Identifier: ice License 1.0

package event

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
)

func NewMapper(resolveField FieldResolver) *Mapper {
	if resolveField == nil {
		resolveField = ResolveEntryField
	}

	return &Mapper{ResolveField: resolveField}
}

// MapParams resolves the configured field mappings plus UTM query parameters into a flat name->value mapping.
// The entry is first augmented with the synthetic utm_* fields, populated from the request query string.
func (m *Mapper) MapParams(fields FieldMap, form *Form, entry Entry, query url.Values) Params {
	augmented := make(Entry, len(entry)+len(utmFields))
	for key, value := range entry {
		augmented[key] = value
	}
	for _, utmField := range utmFields {
		augmented[utmField] = query.Get(utmField)
	}
	params := make(Params, len(fields))
	for _, mapping := range fields {
		if mapping.Key == "" {
			continue
		}
		params[mapping.Key] = m.ResolveField(form, augmented, mapping.Value)
	}

	return params
}

// ResolveEntryField is the default field-mapping collaborator: a field reference is either a plain entry
// field name or free text with `{field_name}` merge tags resolved against the entry.
func ResolveEntryField(_ *Form, entry Entry, value string) string {
	if resolved, found := entry[value]; found {
		return resolved
	}

	return mergeTagRx.ReplaceAllStringFunc(value, func(tag string) string {
		return entry[strings.Trim(tag, "{}")]
	})
}

// ReplacePaginationTags substitutes the literal page number tokens in every parameter value.
// This is plain string replacement, not merge-tag evaluation, and happens after the generic mapping.
func ReplacePaginationTags(params Params, sourcePageNumber, currentPageNumber int) Params {
	replacer := strings.NewReplacer(
		sourcePageNumberTag, strconv.Itoa(sourcePageNumber),
		currentPageNumberTag, strconv.Itoa(currentPageNumber),
	)
	replaced := make(Params, len(params))
	for name, value := range params {
		replaced[name] = replacer.Replace(value)
	}

	return replaced
}

// Validate rejects parameter names/values violating the length/charset constraints. It is meant to run at
// configuration-save time, so that invalid mappings never reach send time. Every violation is reported.
func (p Params) Validate() error {
	var errs *multierror.Error
	for name, value := range p {
		if err := validateParam(name, value); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	return errs.ErrorOrNil() //nolint:wrapcheck // Not needed.
}

func (f FieldMap) Validate() error {
	var errs *multierror.Error
	for _, mapping := range f {
		if err := validateParam(mapping.Key, mapping.Value); err != nil {
			errs = multierror.Append(errs, err)
		}
	}

	return errs.ErrorOrNil() //nolint:wrapcheck // Not needed.
}

func validateParam(name, value string) error {
	if len(name) > maxParamNameLength {
		return NewParamError(errNameTooLong, name)
	}
	if len(value) > maxParamValueLength {
		return NewParamError(errValueTooLong, name)
	}
	if !paramNameRx.MatchString(name) || strings.HasPrefix(name, "_") || strings.HasSuffix(name, "_") {
		return NewParamError(errNameBadCharacters, name)
	}

	return nil
}

func NewParamError(err error, name string) *ParamError {
	return &ParamError{error: err, Name: name}
}

func (e *ParamError) Unwrap() error {
	return e.error
}

func (e *ParamError) Is(err error) bool {
	return errors.Is(err, e.error)
}

func (r *NameResolver) Submission(mode Mode, feed *Feed, entry Entry, form *Form) string {
	if r != nil && r.SubmissionOverride != nil {
		return r.SubmissionOverride(DefaultSubmissionEventName, mode, feed, entry, form)
	}

	return DefaultSubmissionEventName
}

func (r *NameResolver) Pagination(mode Mode, form *Form) string {
	if r != nil && r.PaginationOverride != nil {
		return r.PaginationOverride(DefaultPaginationEventName, mode, form)
	}

	return DefaultPaginationEventName
}

// SubmissionTriggerName returns the tag manager trigger for a feed, bypassing the event-name resolver.
func SubmissionTriggerName(feed *Feed) string {
	if feed.Trigger == CustomTriggerSentinel {
		return feed.CustomTrigger
	}

	return feed.Trigger
}

// PaginationTriggerName returns the tag manager trigger for a form's pagination tracking.
func PaginationTriggerName(form *Form) string {
	if form.Pagination == nil {
		return ""
	}
	if form.Pagination.Trigger == CustomTriggerSentinel {
		return form.Pagination.CustomTrigger
	}

	return form.Pagination.Trigger
}
