package event

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseEventScraped(t *testing.T) {
	raw := []byte(`{"webhook":"w","data":{"type":"scraped","data":{"url":"http://x","results":"r"}},"headers":{}}`)

	env, err := ParseEvent(raw)
	require.NoError(t, err)

	assert.Equal(t, "w", env.Webhook)
	assert.Empty(t, env.Headers)
	assert.True(t, IsScrapedEvent(env.Event))
	assert.False(t, IsLinksEvent(env.Event))
	assert.False(t, IsExploreEvent(env.Event))

	scraped, ok := env.Scraped()
	require.True(t, ok)
	assert.Equal(t, &ScrapedEvent{URL: "http://x", Results: "r"}, scraped)
	assert.Equal(t, TypeScraped, env.Event.Type())
}

func TestParseEventVariants(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		want  Event
		check func(Event) bool
	}{
		{
			name:  "links",
			raw:   `{"webhook":"links-found","data":{"type":"links","data":{"links":["https://a.example/1","https://a.example/2"],"host":"a.example"}},"headers":{"x-request-id":"abc"}}`,
			want:  &LinksEvent{Links: []string{"https://a.example/1", "https://a.example/2"}, Host: "a.example"},
			check: IsLinksEvent,
		},
		{
			name:  "links empty list",
			raw:   `{"webhook":"links-found","data":{"type":"links","data":{"links":[],"host":"a.example"}}}`,
			want:  &LinksEvent{Links: []string{}, Host: "a.example"},
			check: IsLinksEvent,
		},
		{
			name:  "explore",
			raw:   `{"webhook":"progress","data":{"type":"explore","data":{"explored":12,"found":40}},"headers":{}}`,
			want:  &ExploreEvent{Explored: Progress{Count: 12}, Found: Progress{Count: 40}},
			check: IsExploreEvent,
		},
		{
			name: "explore url lists",
			raw:  `{"webhook":"w","data":{"type":"explore","data":{"explored":["https://a/1"],"found":["https://a/2","https://a/3"]}},"headers":{}}`,
			want: &ExploreEvent{
				Explored: Progress{URLs: []string{"https://a/1"}},
				Found:    Progress{URLs: []string{"https://a/2", "https://a/3"}},
			},
			check: IsExploreEvent,
		},
		{
			name: "explore count and list",
			raw:  `{"webhook":"w","data":{"type":"explore","data":{"explored":3,"found":[]}}}`,
			want: &ExploreEvent{
				Explored: Progress{Count: 3},
				Found:    Progress{URLs: []string{}},
			},
			check: IsExploreEvent,
		},
		{
			name:  "scraped with whitespace",
			raw:   "{\n  \"webhook\": \"done\",\n  \"data\": {\"type\": \"scraped\", \"data\": {\"results\": \"text\", \"url\": \"https://b.example\"}}\n}",
			want:  &ScrapedEvent{URL: "https://b.example", Results: "text"},
			check: IsScrapedEvent,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := ParseEvent([]byte(tt.raw))
			require.NoError(t, err)
			assert.Equal(t, tt.want, env.Event)
			assert.True(t, tt.check(env.Event))
		})
	}
}

func TestParseEventHeaders(t *testing.T) {
	env, err := ParseEvent([]byte(`{"webhook":"w","data":{"type":"explore","data":{"explored":0,"found":0}},"headers":{"a":"1","b":"2"}}`))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a": "1", "b": "2"}, env.Headers)

	_, ok := env.Links()
	assert.False(t, ok)
	explore, ok := env.Explore()
	require.True(t, ok)
	assert.Equal(t, Progress{}, explore.Explored)
	assert.Nil(t, explore.Explored.URLs)
}

func TestProgress(t *testing.T) {
	count := Progress{Count: 7}
	urls := Progress{URLs: []string{"https://a/1", "https://a/2"}}

	assert.Equal(t, 7, count.Len())
	assert.Equal(t, 2, urls.Len())

	b, err := json.Marshal(&ExploreEvent{Explored: count, Found: urls})
	require.NoError(t, err)
	assert.JSONEq(t, `{"explored":7,"found":["https://a/1","https://a/2"]}`, string(b))
}

func TestParseEventParseError(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{name: "empty", raw: ""},
		{name: "truncated", raw: `{"webhook":"w","data":`},
		{name: "not json", raw: `webhook=w`},
		{name: "array", raw: `[{"webhook":"w"}]`},
		{name: "null", raw: `null`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := ParseEvent([]byte(tt.raw))
			assert.Nil(t, env)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrParse)

			var pe *ParseError
			assert.ErrorAs(t, err, &pe)
		})
	}
}

func TestParseEventUnknownVariant(t *testing.T) {
	_, err := ParseEvent([]byte(`{"webhook":"w","data":{"type":"bogus","data":{}},"headers":{}}`))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownVariant)

	var uve *UnknownVariantError
	require.ErrorAs(t, err, &uve)
	assert.Equal(t, "bogus", uve.Type)
	assert.NotErrorIs(t, err, ErrSchemaValidation)
}

func TestParseEventSchemaValidation(t *testing.T) {
	tests := []struct {
		name  string
		raw   string
		field string
	}{
		{
			name:  "links missing host",
			raw:   `{"webhook":"w","data":{"type":"links","data":{"links":["https://a.example"]}},"headers":{}}`,
			field: "data.data.host",
		},
		{
			name:  "links not an array",
			raw:   `{"webhook":"w","data":{"type":"links","data":{"links":"https://a.example","host":"a"}}}`,
			field: "data.data.links",
		},
		{
			name:  "links element not a string",
			raw:   `{"webhook":"w","data":{"type":"links","data":{"links":["ok",7],"host":"a"}}}`,
			field: "data.data.links[1]",
		},
		{
			name:  "scraped missing results",
			raw:   `{"webhook":"w","data":{"type":"scraped","data":{"url":"http://x"}}}`,
			field: "data.data.results",
		},
		{
			name:  "scraped null url",
			raw:   `{"webhook":"w","data":{"type":"scraped","data":{"url":null,"results":"r"}}}`,
			field: "data.data.url",
		},
		{
			name:  "scraped carrying links fields",
			raw:   `{"webhook":"w","data":{"type":"scraped","data":{"url":"http://x","results":"r","host":"x"}}}`,
			field: "data.data.host",
		},
		{
			name:  "explore negative count",
			raw:   `{"webhook":"w","data":{"type":"explore","data":{"explored":-1,"found":3}}}`,
			field: "data.data.explored",
		},
		{
			name:  "explore fractional count",
			raw:   `{"webhook":"w","data":{"type":"explore","data":{"explored":1,"found":2.5}}}`,
			field: "data.data.found",
		},
		{
			name:  "explore string count",
			raw:   `{"webhook":"w","data":{"type":"explore","data":{"explored":"1","found":2}}}`,
			field: "data.data.explored",
		},
		{
			name:  "explore object",
			raw:   `{"webhook":"w","data":{"type":"explore","data":{"explored":1,"found":{"n":2}}}}`,
			field: "data.data.found",
		},
		{
			name:  "explore list with a number",
			raw:   `{"webhook":"w","data":{"type":"explore","data":{"explored":["https://a/1",2],"found":0}}}`,
			field: "data.data.explored[1]",
		},
		{
			name:  "missing payload",
			raw:   `{"webhook":"w","data":{"type":"scraped"}}`,
			field: "data.data",
		},
		{
			name:  "payload not an object",
			raw:   `{"webhook":"w","data":{"type":"scraped","data":"r"}}`,
			field: "data.data",
		},
		{
			name:  "extra field beside type",
			raw:   `{"webhook":"w","data":{"type":"scraped","id":"1","data":{"url":"http://x","results":"r"}}}`,
			field: "data.id",
		},
		{
			name:  "missing type",
			raw:   `{"webhook":"w","data":{"data":{"url":"http://x","results":"r"}}}`,
			field: "data.type",
		},
		{
			name:  "type not a string",
			raw:   `{"webhook":"w","data":{"type":3,"data":{}}}`,
			field: "data.type",
		},
		{
			name:  "missing data",
			raw:   `{"webhook":"w","headers":{}}`,
			field: "data",
		},
		{
			name:  "data not an object",
			raw:   `{"webhook":"w","data":[]}`,
			field: "data",
		},
		{
			name:  "missing webhook",
			raw:   `{"data":{"type":"scraped","data":{"url":"http://x","results":"r"}}}`,
			field: "webhook",
		},
		{
			name:  "header not a string",
			raw:   `{"webhook":"w","data":{"type":"scraped","data":{"url":"http://x","results":"r"}},"headers":{"x-count":1}}`,
			field: "headers.x-count",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env, err := ParseEvent([]byte(tt.raw))
			assert.Nil(t, env)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrSchemaValidation)

			var sve *SchemaValidationError
			require.ErrorAs(t, err, &sve)
			assert.Equal(t, tt.field, sve.Field)
			assert.Contains(t, err.Error(), tt.field)
		})
	}
}

func TestPredicatesAreExclusive(t *testing.T) {
	events := []Event{&LinksEvent{}, &ScrapedEvent{}, &ExploreEvent{}}
	for _, ev := range events {
		matches := 0
		for _, pred := range []func(Event) bool{IsLinksEvent, IsScrapedEvent, IsExploreEvent} {
			if pred(ev) {
				matches++
			}
		}
		assert.Equal(t, 1, matches, "%T should satisfy exactly one predicate", ev)
	}
	assert.False(t, IsLinksEvent(nil))
}

func TestErrorsAreDistinct(t *testing.T) {
	_, err := ParseEvent([]byte(`{`))
	assert.False(t, errors.Is(err, ErrUnknownVariant))
	assert.False(t, errors.Is(err, ErrSchemaValidation))
}
