// SPDX-License-Identifier: ice License 1.0

package event

import (
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMapParams(t *testing.T) {
	t.Parallel()
	mapper := NewMapper(nil)
	form := &Form{ID: "7", Title: "Contact Us"}
	entry := Entry{"first_name": "jane", "email": "jane@example.com"}
	query := url.Values{"utm_source": {"newsletter"}, "utm_medium": {"email"}, "unrelated": {"nope"}}
	fields := FieldMap{
		{Key: "name", Value: "first_name"},
		{Key: "source", Value: "utm_source"},
		{Key: "medium", Value: "utm_medium"},
		{Key: "campaign", Value: "utm_campaign"},
		{Key: "greeting", Value: "hello {first_name}!"},
		{Key: "", Value: "first_name"},
	}
	params := mapper.MapParams(fields, form, entry, query)
	assert.EqualValues(t, Params{
		"name":     "jane",
		"source":   "newsletter",
		"medium":   "email",
		"campaign": "",
		"greeting": "hello jane!",
	}, params)
}

func TestMapParamsCustomResolver(t *testing.T) {
	t.Parallel()
	mapper := NewMapper(func(form *Form, _ Entry, value string) string {
		return form.Title + ":" + value
	})
	params := mapper.MapParams(FieldMap{{Key: "a", Value: "b"}}, &Form{Title: "T"}, Entry{}, url.Values{})
	assert.EqualValues(t, Params{"a": "T:b"}, params)
}

func TestResolveEntryFieldPrefersExactMatch(t *testing.T) {
	t.Parallel()
	entry := Entry{"{weird}": "exact", "weird": "tagged"}
	assert.Equal(t, "exact", ResolveEntryField(nil, entry, "{weird}"))
	delete(entry, "{weird}")
	assert.Equal(t, "tagged", ResolveEntryField(nil, entry, "{weird}"))
	assert.Equal(t, "", ResolveEntryField(nil, entry, "{missing}"))
	assert.Equal(t, "free text", ResolveEntryField(nil, entry, "free text"))
}

func TestReplacePaginationTags(t *testing.T) {
	t.Parallel()
	params := Params{
		"from":  "{source_page_number}",
		"to":    "page {current_page_number} of many",
		"both":  "{source_page_number}->{current_page_number}",
		"plain": "nothing here",
	}
	replaced := ReplacePaginationTags(params, 1, 2)
	assert.EqualValues(t, Params{
		"from":  "1",
		"to":    "page 2 of many",
		"both":  "1->2",
		"plain": "nothing here",
	}, replaced)
	assert.EqualValues(t, "{source_page_number}", params["from"])
}

//nolint:funlen // It's better to keep all the boundaries together.
func TestValidate(t *testing.T) {
	t.Parallel()
	require.NoError(t, Params{}.Validate())
	require.NoError(t, Params{"name_40_chars": "ok", "a1": strings.Repeat("v", 100)}.Validate())
	require.NoError(t, Params{strings.Repeat("n", 40): "ok"}.Validate())

	err := Params{strings.Repeat("n", 41): "ok"}.Validate()
	require.Error(t, err)
	require.ErrorIs(t, err, errNameTooLong)

	err = Params{"name": strings.Repeat("v", 101)}.Validate()
	require.Error(t, err)
	require.ErrorIs(t, err, errValueTooLong)

	for _, name := range []string{"_name", "name_", "_", "na me", "na-me", "nämé"} {
		err = Params{name: "ok"}.Validate()
		require.Error(t, err, name)
		require.ErrorIs(t, err, errNameBadCharacters, name)
	}
	// A too long value under a too long name reports the name violation first.
	err = Params{strings.Repeat("n", 41): strings.Repeat("v", 101)}.Validate()
	require.ErrorIs(t, err, errNameTooLong)

	err = Params{"_bad": "x", "good": strings.Repeat("v", 101), "fine": "y"}.Validate()
	require.Error(t, err)
	require.ErrorIs(t, err, errNameBadCharacters)
	require.ErrorIs(t, err, errValueTooLong)

	var paramErr *ParamError
	err = Params{"_bad": "x"}.Validate()
	require.ErrorAs(t, err, &paramErr)
	assert.Equal(t, "_bad", paramErr.Name)
}

func TestFieldMapValidate(t *testing.T) {
	t.Parallel()
	require.NoError(t, FieldMap{{Key: "event_category", Value: "{form_title}"}}.Validate())
	err := FieldMap{{Key: "ok", Value: "v"}, {Key: "bad_", Value: "v"}}.Validate()
	require.Error(t, err)
	require.ErrorIs(t, err, errNameBadCharacters)
}

func TestNameResolver(t *testing.T) {
	t.Parallel()
	var nilResolver *NameResolver
	assert.Equal(t, DefaultSubmissionEventName, nilResolver.Submission(ModeAnalytics, &Feed{}, Entry{}, &Form{}))
	assert.Equal(t, DefaultPaginationEventName, nilResolver.Pagination(ModeAnalytics, &Form{}))
	assert.Equal(t, DefaultSubmissionEventName, new(NameResolver).Submission(ModeAnalytics, &Feed{}, Entry{}, &Form{}))

	overridden := &NameResolver{
		SubmissionOverride: func(defaultName string, mode Mode, feed *Feed, _ Entry, form *Form) string {
			assert.Equal(t, DefaultSubmissionEventName, defaultName)
			assert.Equal(t, ModeMeasurementProtocol, mode)

			return defaultName + "_" + feed.ID + "_" + form.ID
		},
		PaginationOverride: func(defaultName string, _ Mode, form *Form) string {
			return defaultName + "_" + form.ID
		},
	}
	assert.Equal(t, "gforms_submission_f1_7", overridden.Submission(ModeMeasurementProtocol, &Feed{ID: "f1"}, Entry{}, &Form{ID: "7"}))
	assert.Equal(t, "gforms_pagination_7", overridden.Pagination(ModeMeasurementProtocol, &Form{ID: "7"}))
}

func TestTriggerNames(t *testing.T) {
	t.Parallel()
	assert.Equal(t, "form_submitted", SubmissionTriggerName(&Feed{Trigger: "form_submitted", CustomTrigger: "ignored"}))
	assert.Equal(t, "my_custom", SubmissionTriggerName(&Feed{Trigger: CustomTriggerSentinel, CustomTrigger: "my_custom"}))
	assert.Equal(t, "", PaginationTriggerName(&Form{}))
	assert.Equal(t, "paged", PaginationTriggerName(&Form{Pagination: &FormTracking{Trigger: "paged"}}))
	assert.Equal(t, "custom_paged", PaginationTriggerName(&Form{Pagination: &FormTracking{Trigger: CustomTriggerSentinel, CustomTrigger: "custom_paged"}}))
}
