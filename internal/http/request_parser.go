// This file implements utilities for parsing and validating HTTP request
// data: month selectors in query strings and JSON bodies.

package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"finboard/internal/core"
)

// maxBodyBytes bounds every JSON request body.
const maxBodyBytes = 1 << 20

// ParsePeriod reads year and month from query parameters. Missing values
// default to now; present values must be numeric and in range.
func ParsePeriod(query url.Values, now time.Time) (core.Period, error) {
	year, month := now.Year(), int(now.Month())
	verr := core.NewValidationError()

	if v := strings.TrimSpace(query.Get("year")); v != "" {
		y, err := strconv.Atoi(v)
		if err != nil {
			verr.Add("year", "must be a number")
		}
		year = y
	}
	if v := strings.TrimSpace(query.Get("month")); v != "" {
		m, err := strconv.Atoi(v)
		if err != nil {
			verr.Add("month", "must be a number")
		}
		month = m
	}
	if err := verr.OrNil(); err != nil {
		return core.Period{}, err
	}

	p, err := core.NewPeriod(year, month)
	if err != nil {
		if month < 1 || month > 12 {
			return core.Period{}, core.FieldError("month", "must be between 1 and 12")
		}
		return core.Period{}, core.FieldError("year", "is out of range")
	}
	return p, nil
}

// ParseMonths reads the months query parameter. A missing value yields zero,
// which lets the caller apply its default.
func ParseMonths(query url.Values) (int, error) {
	v := strings.TrimSpace(query.Get("months"))
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, core.FieldError("months", "must be a number")
	}
	if n == 0 {
		return 0, core.FieldError("months", "must be at least 1")
	}
	return n, nil
}

// errMalformedBody marks a body that is not the expected JSON document.
var errMalformedBody = errors.New("malformed request body")

// DecodeJSON decodes a single JSON document from the request body into dst.
// Unknown fields are ignored. Amount and date problems come back as field
// validation errors; anything else unparseable is errMalformedBody.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)

	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.Is(err, core.ErrBelowOneCent):
			return core.FieldError("amount", "must be at least one cent (0.01)")
		case errors.Is(err, core.ErrInvalidAmount):
			return core.FieldError("amount", "must be a number")
		case errors.Is(err, core.ErrInvalidDate):
			return core.FieldError("date", "must be a date in YYYY-MM-DD format")
		case errors.As(err, &maxErr):
			return fmt.Errorf("%w: body exceeds %d bytes", errMalformedBody, maxErr.Limit)
		case errors.Is(err, io.EOF):
			return fmt.Errorf("%w: empty body", errMalformedBody)
		default:
			return fmt.Errorf("%w: %v", errMalformedBody, err)
		}
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data", errMalformedBody)
	}
	return nil
}

// sanitizeInput removes control characters except tab, newline and carriage
// return, and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
