package http

// This file turns query strings into filters. Every handler reads its
// selection through ParseFilter so the page, the HTMX partials and the
// JSON API agree on what a query means.

import (
	"errors"
	"fmt"
	"math"
	"net/url"
	"strconv"

	"ccdash/internal/core"
)

// Query parameter names.
const (
	ParamGender    = "gender"
	ParamState     = "state"
	ParamAmountMin = "amount_min"
	ParamAmountMax = "amount_max"
	ParamAgeMin    = "age_min"
	ParamAgeMax    = "age_max"
	ParamTopN      = "top_n"
	ParamZoom      = "zoom"
)

// Limits on what a query may ask for.
const (
	maxListValues = 100
	maxZoom       = 18
)

var errInvalidRange = errors.New("minimum exceeds maximum")

// ParamError reports an invalid query parameter.
type ParamError struct {
	Param string
	Value string
	Err   error
}

func (e *ParamError) Error() string {
	return fmt.Sprintf("invalid %s %q: %v", e.Param, e.Value, e.Err)
}

func (e *ParamError) Unwrap() error { return e.Err }

// ViewParams are the per-tab controls that do not affect which rows are
// selected.
type ViewParams struct {
	TopN int
	Zoom int
}

// ParseFilter builds a filter from query, starting from defaults.
//
// gender may repeat; a gender key with only empty values is an explicit
// empty selection and matches nothing. state may repeat; empty means no
// restriction. Range bounds left out keep the default.
func ParseFilter(query url.Values, defaults core.Filter) (core.Filter, error) {
	f := defaults

	if values, ok := query[ParamGender]; ok {
		genders, err := listValues(ParamGender, values)
		if err != nil {
			return core.Filter{}, err
		}
		f.Genders = genders
	}

	if values, ok := query[ParamState]; ok {
		states, err := listValues(ParamState, values)
		if err != nil {
			return core.Filter{}, err
		}
		if len(states) > 0 {
			f.States = states
		} else {
			f.States = nil
		}
	}

	var err error
	if f.Amount, err = parseRange(query, ParamAmountMin, ParamAmountMax, defaults.Amount); err != nil {
		return core.Filter{}, err
	}
	if f.Age, err = parseRange(query, ParamAgeMin, ParamAgeMax, defaults.Age); err != nil {
		return core.Filter{}, err
	}
	return f, nil
}

// ParseViewParams reads top_n and zoom. Missing values are zero, which
// selects the default top N and unclustered markers.
func ParseViewParams(query url.Values) (ViewParams, error) {
	var p ViewParams
	var err error
	if p.TopN, err = parseInt(query, ParamTopN, 0, math.MaxInt32); err != nil {
		return ViewParams{}, err
	}
	if p.Zoom, err = parseInt(query, ParamZoom, 0, maxZoom); err != nil {
		return ViewParams{}, err
	}
	return p, nil
}

// listValues returns the non-empty sanitised values, never nil.
func listValues(param string, values []string) ([]string, error) {
	if len(values) > maxListValues {
		return nil, &ParamError{Param: param, Value: strconv.Itoa(len(values)) + " values", Err: fmt.Errorf("at most %d allowed", maxListValues)}
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = sanitizeInput(v); v != "" {
			out = append(out, v)
		}
	}
	return out, nil
}

func parseRange(query url.Values, minParam, maxParam string, def core.Range) (core.Range, error) {
	r := def
	var err error
	if r.Min, err = parseFloat(query, minParam, def.Min); err != nil {
		return core.Range{}, err
	}
	if r.Max, err = parseFloat(query, maxParam, def.Max); err != nil {
		return core.Range{}, err
	}
	if r.Min > r.Max {
		return core.Range{}, &ParamError{
			Param: minParam + "/" + maxParam,
			Value: strconv.FormatFloat(r.Min, 'g', -1, 64) + ">" + strconv.FormatFloat(r.Max, 'g', -1, 64),
			Err:   errInvalidRange,
		}
	}
	return r, nil
}

func parseFloat(query url.Values, param string, def float64) (float64, error) {
	raw := sanitizeInput(query.Get(param))
	if raw == "" {
		return def, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &ParamError{Param: param, Value: raw, Err: errors.New("not a number")}
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, &ParamError{Param: param, Value: raw, Err: errors.New("not finite")}
	}
	return v, nil
}

func parseInt(query url.Values, param string, lo, hi int) (int, error) {
	raw := sanitizeInput(query.Get(param))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, &ParamError{Param: param, Value: raw, Err: errors.New("not an integer")}
	}
	if v < lo || v > hi {
		return 0, &ParamError{Param: param, Value: raw, Err: fmt.Errorf("must be between %d and %d", lo, hi)}
	}
	return v, nil
}

// EncodeFilter is the inverse of ParseFilter: the query string that
// selects f. The page uses it for the HTMX requests it issues.
func EncodeFilter(f core.Filter) url.Values {
	q := url.Values{}
	if f.Genders != nil {
		if len(f.Genders) == 0 {
			q.Add(ParamGender, "")
		}
		for _, g := range f.Genders {
			q.Add(ParamGender, g)
		}
	}
	for _, s := range f.States {
		q.Add(ParamState, s)
	}
	q.Set(ParamAmountMin, strconv.FormatFloat(f.Amount.Min, 'g', -1, 64))
	q.Set(ParamAmountMax, strconv.FormatFloat(f.Amount.Max, 'g', -1, 64))
	q.Set(ParamAgeMin, strconv.FormatFloat(f.Age.Min, 'g', -1, 64))
	q.Set(ParamAgeMax, strconv.FormatFloat(f.Age.Max, 'g', -1, 64))
	return q
}
