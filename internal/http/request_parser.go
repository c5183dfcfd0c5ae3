// Package http serves the ledger and report JSON API.
//
// This file implements utilities for parsing and validating HTTP request data.
// Bodies may be JSON objects or form-encoded; both are read through the same
// RequestBodyParser so handlers never care which one the client sent.

package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"cassa/internal/aggregate"
	"cassa/internal/core"
	"cassa/internal/ledger"
	"cassa/internal/report"
)

// maxBodyBytes bounds request bodies; ledger records are tiny.
const maxBodyBytes = 64 << 10

var errMalformedBody = errors.New("malformed request body")

// RequestBodyParser handles different content types for request body parsing.
type RequestBodyParser struct {
	body        []byte
	contentType string
	jsonData    map[string]any
	formData    url.Values
	parsed      bool
	err         error
}

// NewRequestBodyParser reads the body of r once, up to maxBodyBytes.
func NewRequestBodyParser(r *http.Request) *RequestBodyParser {
	p := &RequestBodyParser{
		contentType: r.Header.Get("Content-Type"),
	}
	if r.Body != nil {
		p.body, p.err = io.ReadAll(io.LimitReader(r.Body, maxBodyBytes+1))
		if p.err == nil && len(p.body) > maxBodyBytes {
			p.err = errors.New("request body too large")
		}
	}
	return p
}

// Parse decodes the body as a JSON object or as form data.
func (p *RequestBodyParser) Parse() error {
	if p.parsed {
		return p.err
	}
	p.parsed = true

	if p.err != nil {
		return p.err
	}

	trimmed := bytes.TrimSpace(p.body)
	if len(trimmed) == 0 {
		p.formData = url.Values{}
		return nil
	}

	if trimmed[0] == '{' || strings.HasPrefix(p.contentType, "application/json") {
		dec := json.NewDecoder(bytes.NewReader(trimmed))
		dec.UseNumber()
		p.jsonData = make(map[string]any)
		if err := dec.Decode(&p.jsonData); err != nil {
			p.err = errMalformedBody
			return p.err
		}
		return nil
	}

	p.formData, p.err = url.ParseQuery(string(trimmed))
	if p.err != nil {
		p.err = errMalformedBody
	}
	return p.err
}

// Has reports whether the body carries key, even with an empty value.
func (p *RequestBodyParser) Has(key string) bool {
	if p.jsonData != nil {
		_, ok := p.jsonData[key]
		return ok
	}
	if p.formData != nil {
		_, ok := p.formData[key]
		return ok
	}
	return false
}

// Get returns a string value from the parsed data (JSON or form).
func (p *RequestBodyParser) Get(key string) string {
	if p.jsonData != nil {
		if val, ok := p.jsonData[key]; ok {
			return sanitizeInput(stringValue(val))
		}
		return ""
	}
	if p.formData != nil {
		return sanitizeInput(p.formData.Get(key))
	}
	return ""
}

// IsJSON returns true if the parsed content was JSON.
func (p *RequestBodyParser) IsJSON() bool {
	return p.jsonData != nil
}

func stringValue(v any) string {
	switch val := v.(type) {
	case string:
		return val
	case json.Number:
		return val.String()
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(val)
	default:
		return ""
	}
}

// sanitizeInput trims and removes control characters except tab, newline and CR.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != '\t' && r != '\n' && r != '\r' {
			return -1
		}
		return r
	}, s)
}

func parseDateField(field, raw string) (core.Date, error) {
	d, err := core.ParseDate(raw)
	if err != nil {
		return core.Date{}, &core.ValidationError{Field: field, Err: err}
	}
	return d, nil
}

// parseSaleInput reads a new sale. A missing date means today.
func parseSaleInput(p *RequestBodyParser, today core.Date) (ledger.SaleInput, error) {
	in := ledger.SaleInput{Date: today, Description: p.Get("description")}
	var err error
	if v := p.Get("date"); v != "" {
		if in.Date, err = parseDateField("date", v); err != nil {
			return in, err
		}
	}
	if in.Amount, err = core.ParseAmount(p.Get("amount")); err != nil {
		return in, err
	}
	if in.PaymentMethod, err = core.ParsePaymentMethod(p.Get("payment_method")); err != nil {
		return in, err
	}
	return in, nil
}

// parseExpenseInput reads a new expense. A missing date means today.
func parseExpenseInput(p *RequestBodyParser, today core.Date) (ledger.ExpenseInput, error) {
	in := ledger.ExpenseInput{Date: today, Notes: p.Get("notes")}
	var err error
	if v := p.Get("date"); v != "" {
		if in.Date, err = parseDateField("date", v); err != nil {
			return in, err
		}
	}
	if in.Category, err = core.ParseExpenseCategory(p.Get("category")); err != nil {
		return in, err
	}
	if in.Amount, err = core.ParseAmount(p.Get("amount")); err != nil {
		return in, err
	}
	if in.PaymentMethod, err = core.ParsePaymentMethod(p.Get("payment_method")); err != nil {
		return in, err
	}
	return in, nil
}

// parseSalePatch reads the fields present in the body; absent fields stay unchanged.
func parseSalePatch(p *RequestBodyParser) (core.SalePatch, error) {
	var patch core.SalePatch
	if p.Has("date") {
		d, err := parseDateField("date", p.Get("date"))
		if err != nil {
			return patch, err
		}
		patch.Date = &d
	}
	if p.Has("amount") {
		a, err := core.ParseAmount(p.Get("amount"))
		if err != nil {
			return patch, err
		}
		patch.Amount = &a
	}
	if p.Has("payment_method") {
		m, err := core.ParsePaymentMethod(p.Get("payment_method"))
		if err != nil {
			return patch, err
		}
		patch.PaymentMethod = &m
	}
	if p.Has("description") {
		s := p.Get("description")
		patch.Description = &s
	}
	return patch, nil
}

// parseExpensePatch reads the fields present in the body; absent fields stay unchanged.
func parseExpensePatch(p *RequestBodyParser) (core.ExpensePatch, error) {
	var patch core.ExpensePatch
	if p.Has("date") {
		d, err := parseDateField("date", p.Get("date"))
		if err != nil {
			return patch, err
		}
		patch.Date = &d
	}
	if p.Has("category") {
		c, err := core.ParseExpenseCategory(p.Get("category"))
		if err != nil {
			return patch, err
		}
		patch.Category = &c
	}
	if p.Has("amount") {
		a, err := core.ParseAmount(p.Get("amount"))
		if err != nil {
			return patch, err
		}
		patch.Amount = &a
	}
	if p.Has("payment_method") {
		m, err := core.ParsePaymentMethod(p.Get("payment_method"))
		if err != nil {
			return patch, err
		}
		patch.PaymentMethod = &m
	}
	if p.Has("notes") {
		s := p.Get("notes")
		patch.Notes = &s
	}
	return patch, nil
}

// parseListRange reads optional start and end query bounds; absent bounds are open.
func parseListRange(q url.Values) (core.DateRange, error) {
	var r core.DateRange
	var err error
	if v := strings.TrimSpace(q.Get("start")); v != "" {
		if r.Start, err = parseDateField("start", v); err != nil {
			return r, err
		}
	}
	if v := strings.TrimSpace(q.Get("end")); v != "" {
		if r.End, err = parseDateField("end", v); err != nil {
			return r, err
		}
	}
	return r, r.Validate()
}

// filterValue returns the query value of key, with "all" meaning no filter.
func filterValue(q url.Values, key string) string {
	v := strings.TrimSpace(q.Get(key))
	if strings.EqualFold(v, "all") {
		return ""
	}
	return v
}

// parseSaleFilter reads ?payment_method=&q=.
func parseSaleFilter(q url.Values) (aggregate.SaleFilter, error) {
	f := aggregate.SaleFilter{Query: sanitizeInput(q.Get("q"))}
	if v := filterValue(q, "payment_method"); v != "" {
		m, err := core.ParsePaymentMethod(v)
		if err != nil {
			return f, err
		}
		f.Method = m
	}
	return f, nil
}

// parseExpenseFilter reads ?category=&payment_method=&q=.
func parseExpenseFilter(q url.Values) (aggregate.ExpenseFilter, error) {
	f := aggregate.ExpenseFilter{Query: sanitizeInput(q.Get("q"))}
	if v := filterValue(q, "category"); v != "" {
		c, err := core.ParseExpenseCategory(v)
		if err != nil {
			return f, err
		}
		f.Category = c
	}
	if v := filterValue(q, "payment_method"); v != "" {
		m, err := core.ParsePaymentMethod(v)
		if err != nil {
			return f, err
		}
		f.Method = m
	}
	return f, nil
}

// parseReportRange resolves ?range=today|week|month|custom&start&end relative to today.
func parseReportRange(q url.Values, today core.Date) (core.DateRange, error) {
	preset, err := report.ParsePreset(q.Get("range"))
	if err != nil {
		return core.DateRange{}, err
	}
	var start, end core.Date
	if preset == report.Custom {
		if v := strings.TrimSpace(q.Get("start")); v != "" {
			if start, err = parseDateField("start", v); err != nil {
				return core.DateRange{}, err
			}
		}
		if v := strings.TrimSpace(q.Get("end")); v != "" {
			if end, err = parseDateField("end", v); err != nil {
				return core.DateRange{}, err
			}
		}
	}
	return report.Resolve(preset, today, start, end)
}
