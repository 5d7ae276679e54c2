// Package http provides the JSON API server and its handlers.
//
// This file turns request bodies and parameters into core input values and
// reports every rejected field at once.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"budget/internal/core"
)

const maxBodyBytes = 1 << 20

// Unix timestamps larger than this are read as milliseconds.
const unixMillisThreshold = 2e10

var (
	errBodyTooLarge = errors.New("request body too large")

	minDatetime = time.Date(1, 1, 1, 0, 0, 0, 0, time.UTC)
	maxDatetime = time.Date(9999, 12, 31, 23, 59, 59, 999999999, time.UTC)
)

// datetime layouts accepted for created_at, zone-less ones are read as UTC
var datetimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04",
	"2006-01-02",
}

func fieldError(loc, typ, msg string) core.FieldError {
	return core.FieldError{Loc: []string{loc}, Type: typ, Msg: msg}
}

func missing(loc string) core.FieldError {
	return fieldError(loc, "missing", "Field required")
}

// ItemBodyParser reads a JSON item body once and decodes it field by field.
type ItemBodyParser struct {
	fields map[string]json.RawMessage
	errs   core.ValidationErrors
}

// ParseItemInput reads and validates the body of a create request. The
// returned error is either errBodyTooLarge, an I/O error or
// core.ValidationErrors with locations under "body".
func ParseItemInput(w http.ResponseWriter, r *http.Request) (core.ItemInput, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return core.ItemInput{}, errBodyTooLarge
		}
		return core.ItemInput{}, err
	}

	p, verr := newItemBodyParser(body)
	if verr != nil {
		return core.ItemInput{}, verr.Prefix("body")
	}
	in, verr := p.Input()
	if verr != nil {
		return core.ItemInput{}, verr.Prefix("body")
	}
	return in, nil
}

func newItemBodyParser(body []byte) (*ItemBodyParser, core.ValidationErrors) {
	if len(bytes.TrimSpace(body)) == 0 {
		return nil, core.ValidationErrors{{Loc: nil, Type: "missing", Msg: "Field required"}}
	}

	var raw any
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil || dec.More() {
		return nil, core.ValidationErrors{{Loc: nil, Type: "json_invalid", Msg: "JSON decode error"}}
	}
	if _, ok := raw.(map[string]any); !ok {
		return nil, core.ValidationErrors{{
			Loc:  nil,
			Type: "model_attributes_type",
			Msg:  "Input should be a valid dictionary or object to extract fields from",
		}}
	}

	p := &ItemBodyParser{}
	if err := json.Unmarshal(body, &p.fields); err != nil {
		return nil, core.ValidationErrors{{Loc: nil, Type: "json_invalid", Msg: "JSON decode error"}}
	}
	return p, nil
}

// Input decodes every field and returns all problems together.
func (p *ItemBodyParser) Input() (core.ItemInput, core.ValidationErrors) {
	in := core.ItemInput{
		Category: p.requiredString("category"),
		Amount:   p.amount("amount"),
		Currency: p.optionalString("currency", core.DefaultCurrency),
		Type:     core.ItemType(p.requiredString("type")),
	}
	in.CreatedAt = p.datetime("created_at")

	// schema checks only for fields that decoded
	if err := in.Validate(); err != nil {
		verrs, _ := core.AsValidationErrors(err)
		for _, e := range verrs {
			if !p.hasErrorAt(e.Loc[0]) {
				p.errs = append(p.errs, e)
			}
		}
	}

	if len(p.errs) > 0 {
		return core.ItemInput{}, p.errs
	}
	return in, nil
}

func (p *ItemBodyParser) hasErrorAt(loc string) bool {
	for _, e := range p.errs {
		if len(e.Loc) > 0 && e.Loc[0] == loc {
			return true
		}
	}
	return false
}

func (p *ItemBodyParser) lookup(name string) (json.RawMessage, bool) {
	raw, ok := p.fields[name]
	return raw, ok
}

func isNull(raw json.RawMessage) bool {
	return string(bytes.TrimSpace(raw)) == "null"
}

func (p *ItemBodyParser) requiredString(name string) string {
	raw, ok := p.lookup(name)
	if !ok {
		p.errs = append(p.errs, missing(name))
		return ""
	}
	return p.decodeString(name, raw)
}

func (p *ItemBodyParser) optionalString(name, def string) string {
	raw, ok := p.lookup(name)
	if !ok {
		return def
	}
	return p.decodeString(name, raw)
}

func (p *ItemBodyParser) decodeString(name string, raw json.RawMessage) string {
	var s string
	if isNull(raw) || json.Unmarshal(raw, &s) != nil {
		p.errs = append(p.errs, fieldError(name, "string_type", "Input should be a valid string"))
		return ""
	}
	return s
}

func (p *ItemBodyParser) amount(name string) float64 {
	raw, ok := p.lookup(name)
	if !ok {
		p.errs = append(p.errs, missing(name))
		return 0
	}

	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	_ = dec.Decode(&v)

	switch val := v.(type) {
	case json.Number:
		f, err := strconv.ParseFloat(val.String(), 64)
		if err != nil || math.IsInf(f, 0) {
			p.errs = append(p.errs, fieldError(name, "finite_number", "Input should be a finite number"))
			return 0
		}
		return f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			p.errs = append(p.errs, fieldError(name, "float_parsing", "Input should be a valid number, unable to parse string as a number"))
			return 0
		}
		return f
	case bool:
		if val {
			return 1
		}
		return 0
	default:
		p.errs = append(p.errs, fieldError(name, "float_type", "Input should be a valid number"))
		return 0
	}
}

func (p *ItemBodyParser) datetime(name string) *time.Time {
	raw, ok := p.lookup(name)
	if !ok || isNull(raw) {
		return nil
	}

	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	_ = dec.Decode(&v)

	switch val := v.(type) {
	case string:
		if t, ok := parseDatetime(val); ok {
			return &t
		}
		p.errs = append(p.errs, fieldError(name, "datetime_from_date_parsing", "Input should be a valid datetime or date"))
	case json.Number:
		if t, ok := unixDatetime(val); ok {
			return &t
		}
		p.errs = append(p.errs, fieldError(name, "datetime_parsing", "Input should be a valid datetime"))
	default:
		p.errs = append(p.errs, fieldError(name, "datetime_type", "Input should be a valid datetime"))
	}
	return nil
}

func parseDatetime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range datetimeLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return inDatetimeRange(t.UTC())
		}
	}
	return time.Time{}, false
}

// unixDatetime reads n as Unix seconds, or milliseconds above
// unixMillisThreshold, and keeps microsecond precision.
func unixDatetime(n json.Number) (time.Time, bool) {
	v, err := strconv.ParseFloat(n.String(), 64)
	if err != nil || math.IsInf(v, 0) || math.IsNaN(v) {
		return time.Time{}, false
	}
	if math.Abs(v) > unixMillisThreshold {
		v /= 1000
	}
	// bounds checked before the int64 conversion
	if v < float64(minDatetime.Unix()) || v > float64(maxDatetime.Unix()) {
		return time.Time{}, false
	}
	whole, frac := math.Modf(v)
	t := time.Unix(int64(whole), int64(math.Round(frac*1e6))*int64(time.Microsecond)).UTC()
	return inDatetimeRange(t)
}

// inDatetimeRange rejects times JSON cannot render as RFC 3339.
func inDatetimeRange(t time.Time) (time.Time, bool) {
	if t.Before(minDatetime) || t.After(maxDatetime) {
		return time.Time{}, false
	}
	return t, true
}
