// Package http serves the JSON API.
//
// This file implements helpers for decoding request bodies and query
// strings into domain inputs.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"fintrack/internal/core"

	"github.com/araddon/dateparse"
	"github.com/shopspring/decimal"
)

const maxBodyBytes = 1 << 20

// Amount accepts a JSON number or a string, with either a dot or a comma
// as decimal separator.
type Amount struct {
	decimal.Decimal
}

func (a *Amount) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		a.Decimal = decimal.Zero
		return nil
	}
	raw := string(data)
	if unquoted, err := strconv.Unquote(raw); err == nil {
		raw = unquoted
	}
	d, err := core.ParseAmount(raw)
	if err != nil {
		return err
	}
	a.Decimal = d
	return nil
}

type accountRequest struct {
	Title   string `json:"title"`
	ForWhom string `json:"forWhom"`
	Amount  Amount `json:"amount"`
	Unit    string `json:"unit"`
	Image   string `json:"image"`
}

func (r accountRequest) input(kind core.AccountKind) core.AccountInput {
	label := r.Title
	if kind == core.KindDebt {
		label = r.ForWhom
	}
	return core.AccountInput{
		Label:    sanitizeInput(label),
		Amount:   r.Amount.Decimal,
		Unit:     r.Unit,
		ImageRef: strings.TrimSpace(r.Image),
	}
}

type entryRequest struct {
	Amount Amount `json:"amount"`
	Unit   string `json:"unit"`
}

func (r entryRequest) input() core.EntryInput {
	return core.EntryInput{Amount: r.Amount.Decimal, Unit: r.Unit}
}

type transactionRequest struct {
	Title      string `json:"title"`
	Amount     Amount `json:"amount"`
	Unit       string `json:"unit"`
	Type       string `json:"type"`
	CategoryID string `json:"categoryId"`
}

func (r transactionRequest) input() core.TransactionInput {
	return core.TransactionInput{
		CategoryID: strings.TrimSpace(r.CategoryID),
		Label:      sanitizeInput(r.Title),
		Amount:     r.Amount.Decimal,
		Unit:       r.Unit,
		Kind:       core.TransactionKind(strings.ToLower(strings.TrimSpace(r.Type))),
	}
}

type categoryRequest struct {
	Name  string `json:"name"`
	Image string `json:"image"`
}

func (r categoryRequest) input() core.CategoryInput {
	return core.CategoryInput{Name: sanitizeInput(r.Name), ImageRef: strings.TrimSpace(r.Image)}
}

// decodeJSON reads a single JSON object from the body into dst. Malformed
// bodies come back as validation errors.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	body := http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(body)
	if err := dec.Decode(dst); err != nil {
		var tooLarge *http.MaxBytesError
		switch {
		case errors.As(err, &tooLarge):
			return fmt.Errorf("request body larger than %d bytes: %w", tooLarge.Limit, core.ErrValidation)
		case errors.Is(err, io.EOF):
			return fmt.Errorf("request body is empty: %w", core.ErrValidation)
		case errors.Is(err, core.ErrValidation):
			return err
		default:
			return fmt.Errorf("malformed JSON body: %w", core.ErrValidation)
		}
	}
	if dec.More() {
		return fmt.Errorf("request body must hold a single JSON object: %w", core.ErrValidation)
	}
	return nil
}

// parseTransactionQuery reads categoryId, type, filterBy, startDate and
// endDate. A date-only endDate covers that whole day.
func parseTransactionQuery(query url.Values, loc *time.Location) (core.TransactionQuery, error) {
	q := core.TransactionQuery{
		CategoryID: strings.TrimSpace(query.Get("categoryId")),
		Period:     core.Period(strings.TrimSpace(query.Get("filterBy"))),
	}
	if v := strings.TrimSpace(query.Get("type")); v != "" {
		kind, err := core.ParseTransactionKind(v)
		if err != nil {
			return core.TransactionQuery{}, err
		}
		q.Kind = kind
	}

	var err error
	if v := strings.TrimSpace(query.Get("startDate")); v != "" {
		if q.Start, _, err = parseDate(v, loc); err != nil {
			return core.TransactionQuery{}, err
		}
	}
	if v := strings.TrimSpace(query.Get("endDate")); v != "" {
		end, dateOnly, err := parseDate(v, loc)
		if err != nil {
			return core.TransactionQuery{}, err
		}
		if dateOnly {
			end = end.AddDate(0, 0, 1).Add(-time.Nanosecond)
		}
		q.End = end
	}
	return q, nil
}

// parseDate accepts YYYY-MM-DD or anything dateparse recognises, and
// reports whether the input was a bare date.
func parseDate(s string, loc *time.Location) (time.Time, bool, error) {
	if t, err := time.ParseInLocation(time.DateOnly, s, loc); err == nil {
		return t, true, nil
	}
	t, err := dateparse.ParseIn(s, loc)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("date %q: %w", s, core.ErrValidation)
	}
	return t, !strings.Contains(s, ":"), nil
}

// parseYear reads ?year=, defaulting to the current year.
func parseYear(query url.Values, now time.Time) (int, error) {
	v := strings.TrimSpace(query.Get("year"))
	if v == "" {
		return now.Year(), nil
	}
	year, err := strconv.Atoi(v)
	if err != nil || year < 1 || year > 9999 {
		return 0, fmt.Errorf("year %q: %w", v, core.ErrValidation)
	}
	return year, nil
}

// sanitizeInput removes control characters and trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
