package event

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
)

type kind int

const (
	kindInvalid kind = iota
	kindNull
	kindBool
	kindNumber
	kindString
	kindArray
	kindObject
)

// fieldSpec declares one required field of a variant payload and the JSON
// kinds it may take.
type fieldSpec struct {
	name  string
	kinds []kind
}

func (f fieldSpec) accepts(k kind) bool {
	for _, want := range f.kinds {
		if k == want {
			return true
		}
	}
	return false
}

func (f fieldSpec) expected() string {
	names := make([]string, len(f.kinds))
	for i, k := range f.kinds {
		names[i] = k.String()
	}
	return strings.Join(names, " or ")
}

func expect(name string, kinds ...kind) fieldSpec {
	return fieldSpec{name: name, kinds: kinds}
}

type variant struct {
	fields []fieldSpec
	decode func(fields map[string]json.RawMessage, path string) (Event, error)
}

var variants = map[Type]variant{
	TypeLinks: {
		fields: []fieldSpec{expect("links", kindArray), expect("host", kindString)},
		decode: decodeLinks,
	},
	TypeScraped: {
		fields: []fieldSpec{expect("url", kindString), expect("results", kindString)},
		decode: decodeScraped,
	},
	TypeExplore: {
		fields: []fieldSpec{
			expect("explored", kindNumber, kindArray),
			expect("found", kindNumber, kindArray),
		},
		decode: decodeExplore,
	},
}

// ParseEvent decodes a raw callback body into an Envelope.
//
// Errors match ErrParse, ErrUnknownVariant or ErrSchemaValidation via
// errors.Is; *SchemaValidationError carries the offending field path.
func ParseEvent(raw []byte) (*Envelope, error) {
	if !json.Valid(raw) {
		return nil, &ParseError{Err: syntaxError(raw)}
	}
	if kindOf(raw) != kindObject {
		return nil, &ParseError{Err: errors.New("top-level value is not an object")}
	}

	var top map[string]json.RawMessage
	if err := json.Unmarshal(raw, &top); err != nil {
		return nil, &ParseError{Err: err}
	}

	env := &Envelope{}

	webhookRaw, ok := top["webhook"]
	if !ok {
		return nil, missingField("webhook")
	}
	if kindOf(webhookRaw) != kindString {
		return nil, wrongType("webhook", "a string")
	}
	if err := json.Unmarshal(webhookRaw, &env.Webhook); err != nil {
		return nil, wrongType("webhook", "a string")
	}

	if headersRaw, ok := top["headers"]; ok && kindOf(headersRaw) != kindNull {
		headers, err := decodeHeaders(headersRaw)
		if err != nil {
			return nil, err
		}
		env.Headers = headers
	}

	dataRaw, ok := top["data"]
	if !ok {
		return nil, missingField("data")
	}
	ev, err := decodeData(dataRaw)
	if err != nil {
		return nil, err
	}
	env.Event = ev
	return env, nil
}

func decodeData(raw json.RawMessage) (Event, error) {
	if kindOf(raw) != kindObject {
		return nil, wrongType("data", "an object")
	}
	var data map[string]json.RawMessage
	if err := json.Unmarshal(raw, &data); err != nil {
		return nil, wrongType("data", "an object")
	}

	typeRaw, ok := data["type"]
	if !ok {
		return nil, missingField("data.type")
	}
	if kindOf(typeRaw) != kindString {
		return nil, wrongType("data.type", "a string")
	}
	var typ string
	if err := json.Unmarshal(typeRaw, &typ); err != nil {
		return nil, wrongType("data.type", "a string")
	}

	v, ok := variants[Type(typ)]
	if !ok {
		return nil, &UnknownVariantError{Type: typ}
	}

	if err := rejectExtra(data, "data", "type", "data"); err != nil {
		return nil, err
	}

	payloadRaw, ok := data["data"]
	if !ok {
		return nil, missingField("data.data")
	}
	if kindOf(payloadRaw) != kindObject {
		return nil, wrongType("data.data", "an object")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(payloadRaw, &fields); err != nil {
		return nil, wrongType("data.data", "an object")
	}

	const path = "data.data"
	allowed := make([]string, 0, len(v.fields))
	for _, f := range v.fields {
		value, ok := fields[f.name]
		if !ok {
			return nil, missingField(path + "." + f.name)
		}
		if !f.accepts(kindOf(value)) {
			return nil, wrongType(path+"."+f.name, f.expected())
		}
		allowed = append(allowed, f.name)
	}
	if err := rejectExtra(fields, path, allowed...); err != nil {
		return nil, err
	}

	return v.decode(fields, path)
}

func decodeLinks(fields map[string]json.RawMessage, path string) (Event, error) {
	links, err := decodeStrings(fields["links"], path+".links")
	if err != nil {
		return nil, err
	}

	ev := &LinksEvent{Links: links}
	if err := json.Unmarshal(fields["host"], &ev.Host); err != nil {
		return nil, wrongType(path+".host", kindString.String())
	}
	return ev, nil
}

// decodeStrings decodes an array whose every element must be a string,
// reporting the first bad element as field[i].
func decodeStrings(raw json.RawMessage, field string) ([]string, error) {
	var items []json.RawMessage
	if err := json.Unmarshal(raw, &items); err != nil {
		return nil, wrongType(field, kindArray.String())
	}
	out := make([]string, 0, len(items))
	for i, item := range items {
		elem := fmt.Sprintf("%s[%d]", field, i)
		if kindOf(item) != kindString {
			return nil, wrongType(elem, kindString.String())
		}
		var v string
		if err := json.Unmarshal(item, &v); err != nil {
			return nil, wrongType(elem, kindString.String())
		}
		out = append(out, v)
	}
	return out, nil
}

func decodeScraped(fields map[string]json.RawMessage, path string) (Event, error) {
	ev := &ScrapedEvent{}
	if err := json.Unmarshal(fields["url"], &ev.URL); err != nil {
		return nil, wrongType(path+".url", kindString.String())
	}
	if err := json.Unmarshal(fields["results"], &ev.Results); err != nil {
		return nil, wrongType(path+".results", kindString.String())
	}
	return ev, nil
}

func decodeExplore(fields map[string]json.RawMessage, path string) (Event, error) {
	explored, err := decodeProgress(fields["explored"], path+".explored")
	if err != nil {
		return nil, err
	}
	found, err := decodeProgress(fields["found"], path+".found")
	if err != nil {
		return nil, err
	}
	return &ExploreEvent{Explored: explored, Found: found}, nil
}

// decodeProgress accepts a non-negative integer count or a list of URLs.
func decodeProgress(raw json.RawMessage, field string) (Progress, error) {
	if kindOf(raw) == kindArray {
		urls, err := decodeStrings(raw, field)
		if err != nil {
			return Progress{}, err
		}
		return Progress{URLs: urls}, nil
	}

	var n int
	if err := json.Unmarshal(raw, &n); err != nil || n < 0 {
		return Progress{}, wrongType(field, "a non-negative integer or an array of strings")
	}
	return Progress{Count: n}, nil
}

func decodeHeaders(raw json.RawMessage) (map[string]string, error) {
	if kindOf(raw) != kindObject {
		return nil, wrongType("headers", "an object")
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, wrongType("headers", "an object")
	}
	headers := make(map[string]string, len(fields))
	for _, name := range sortedKeys(fields) {
		value := fields[name]
		if kindOf(value) != kindString {
			return nil, wrongType("headers."+name, kindString.String())
		}
		var s string
		if err := json.Unmarshal(value, &s); err != nil {
			return nil, wrongType("headers."+name, kindString.String())
		}
		headers[name] = s
	}
	return headers, nil
}

// rejectExtra fails on the first key, in sorted order, not listed in allowed.
func rejectExtra(fields map[string]json.RawMessage, path string, allowed ...string) error {
	for _, name := range sortedKeys(fields) {
		known := false
		for _, a := range allowed {
			if name == a {
				known = true
				break
			}
		}
		if !known {
			return unexpectedField(path + "." + name)
		}
	}
	return nil
}

func sortedKeys(fields map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func kindOf(raw json.RawMessage) kind {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return kindInvalid
	}
	switch c := trimmed[0]; {
	case c == '{':
		return kindObject
	case c == '[':
		return kindArray
	case c == '"':
		return kindString
	case c == 't' || c == 'f':
		return kindBool
	case c == 'n':
		return kindNull
	case c == '-' || (c >= '0' && c <= '9'):
		return kindNumber
	}
	return kindInvalid
}

func (k kind) String() string {
	switch k {
	case kindNull:
		return "null"
	case kindBool:
		return "a boolean"
	case kindNumber:
		return "a number"
	case kindString:
		return "a string"
	case kindArray:
		return "an array"
	case kindObject:
		return "an object"
	}
	return "valid JSON"
}

func syntaxError(raw []byte) error {
	var v any
	if err := json.Unmarshal(raw, &v); err != nil {
		return err
	}
	return errors.New("invalid JSON")
}
