package http

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"cassa/internal/core"
	"cassa/internal/report"
)

func parserFor(t *testing.T, contentType, body string) *RequestBodyParser {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(body))
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	p := NewRequestBodyParser(req)
	if err := p.Parse(); err != nil {
		t.Fatalf("Parse() error = %v", err)
	}
	return p
}

func mustDate(t *testing.T, s string) core.Date {
	t.Helper()
	d, err := core.ParseDate(s)
	if err != nil {
		t.Fatal(err)
	}
	return d
}

func validationField(err error) string {
	var ve *core.ValidationError
	if errors.As(err, &ve) {
		return ve.Field
	}
	return ""
}

func TestRequestBodyParser_JSON(t *testing.T) {
	parser := parserFor(t, "application/json", `{"id": "123", "name": "test", "amount": 42.50, "flag": true}`)

	if !parser.IsJSON() {
		t.Error("Expected IsJSON() to be true")
	}
	if id := parser.Get("id"); id != "123" {
		t.Errorf("Get('id') = %q, want '123'", id)
	}
	if name := parser.Get("name"); name != "test" {
		t.Errorf("Get('name') = %q, want 'test'", name)
	}
	// Numbers keep their literal form.
	if amount := parser.Get("amount"); amount != "42.50" {
		t.Errorf("Get('amount') = %q, want '42.50'", amount)
	}
	if flag := parser.Get("flag"); flag != "true" {
		t.Errorf("Get('flag') = %q, want 'true'", flag)
	}
}

func TestRequestBodyParser_FormData(t *testing.T) {
	parser := parserFor(t, "application/x-www-form-urlencoded", "id=456&name=form+test&value=100")

	if parser.IsJSON() {
		t.Error("Expected IsJSON() to be false for form data")
	}
	if id := parser.Get("id"); id != "456" {
		t.Errorf("Get('id') = %q, want '456'", id)
	}
	if name := parser.Get("name"); name != "form test" {
		t.Errorf("Get('name') = %q, want 'form test'", name)
	}
}

func TestRequestBodyParser_EmptyBody(t *testing.T) {
	parser := parserFor(t, "", "")
	if val := parser.Get("nonexistent"); val != "" {
		t.Errorf("Get('nonexistent') = %q, want empty string", val)
	}
	if parser.Has("nonexistent") {
		t.Error("empty body has no keys")
	}
}

func TestRequestBodyParser_Malformed(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, "/test", strings.NewReader(`{"amount": `))
	req.Header.Set("Content-Type", "application/json")
	if err := NewRequestBodyParser(req).Parse(); !errors.Is(err, errMalformedBody) {
		t.Fatalf("Parse() error = %v, want errMalformedBody", err)
	}

	big := strings.Repeat("a", maxBodyBytes+1)
	req = httptest.NewRequest(http.MethodPost, "/test", strings.NewReader("x="+big))
	if err := NewRequestBodyParser(req).Parse(); err == nil {
		t.Fatal("oversized body must fail")
	}
}

func TestRequestBodyParser_Has(t *testing.T) {
	tests := []struct {
		name        string
		contentType string
		body        string
		key         string
		want        bool
	}{
		{"json present", "application/json", `{"notes": ""}`, "notes", true},
		{"json null", "application/json", `{"notes": null}`, "notes", true},
		{"json absent", "application/json", `{"amount": "1"}`, "notes", false},
		{"form present empty", "application/x-www-form-urlencoded", "notes=", "notes", true},
		{"form absent", "application/x-www-form-urlencoded", "amount=1", "notes", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := parserFor(t, tt.contentType, tt.body).Has(tt.key); got != tt.want {
				t.Errorf("Has(%q) = %v, want %v", tt.key, got, tt.want)
			}
		})
	}
}

func TestSanitizeInput(t *testing.T) {
	if got := sanitizeInput("  caff\x00è\x07 \n"); got != "caffè" {
		t.Errorf("sanitizeInput = %q", got)
	}
	if got := sanitizeInput("a\tb\nc"); got != "a\tb\nc" {
		t.Errorf("whitespace controls must survive, got %q", got)
	}
}

func TestParseSaleInput(t *testing.T) {
	today := mustDate(t, "2024-06-03")

	tests := []struct {
		name      string
		body      string
		wantField string
		check     func(t *testing.T, in saleCheck)
	}{
		{
			name: "defaults to today",
			body: `{"amount": "12.5", "payment_method": "cash", "description": "coffee"}`,
			check: func(t *testing.T, in saleCheck) {
				if in.date != "2024-06-03" || in.amount != "12.50" || in.method != core.Cash || in.desc != "coffee" {
					t.Errorf("unexpected input %+v", in)
				}
			},
		},
		{
			name: "explicit date",
			body: `{"date": "2024-05-31", "amount": 3, "payment_method": "BANK"}`,
			check: func(t *testing.T, in saleCheck) {
				if in.date != "2024-05-31" || in.method != core.Bank {
					t.Errorf("unexpected input %+v", in)
				}
			},
		},
		{name: "bad date", body: `{"date": "31/05/2024", "amount": 3, "payment_method": "cash"}`, wantField: "date"},
		{name: "missing amount", body: `{"payment_method": "cash"}`, wantField: "amount"},
		{name: "negative amount", body: `{"amount": "-1", "payment_method": "cash"}`, wantField: "amount"},
		{name: "unknown method", body: `{"amount": "1", "payment_method": "card"}`, wantField: "payment_method"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in, err := parseSaleInput(parserFor(t, "application/json", tt.body), today)
			if tt.wantField != "" {
				if got := validationField(err); got != tt.wantField {
					t.Fatalf("error field = %q (%v), want %q", got, err, tt.wantField)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error %v", err)
			}
			tt.check(t, saleCheck{
				date:   in.Date.String(),
				amount: core.FormatAmount(in.Amount),
				method: in.PaymentMethod,
				desc:   in.Description,
			})
		})
	}
}

type saleCheck struct {
	date, amount string
	method       core.PaymentMethod
	desc         string
}

func TestParseExpenseInput(t *testing.T) {
	today := mustDate(t, "2024-06-03")

	in, err := parseExpenseInput(parserFor(t, "application/x-www-form-urlencoded",
		"category=rent&amount=800&payment_method=bank&notes=June"), today)
	if err != nil {
		t.Fatal(err)
	}
	if in.Category != core.Rent || core.FormatAmount(in.Amount) != "800.00" || in.Notes != "June" || !in.Date.Equal(today) {
		t.Errorf("unexpected input %+v", in)
	}

	_, err = parseExpenseInput(parserFor(t, "application/x-www-form-urlencoded",
		"category=travel&amount=1&payment_method=bank"), today)
	if got := validationField(err); got != "category" {
		t.Errorf("error field = %q, want category", got)
	}
}

func TestParseSalePatch(t *testing.T) {
	patch, err := parseSalePatch(parserFor(t, "application/json", `{"amount": "9.99", "description": ""}`))
	if err != nil {
		t.Fatal(err)
	}
	if patch.Date != nil || patch.PaymentMethod != nil {
		t.Error("absent fields must stay nil")
	}
	if patch.Amount == nil || core.FormatAmount(*patch.Amount) != "9.99" {
		t.Errorf("amount = %v", patch.Amount)
	}
	if patch.Description == nil || *patch.Description != "" {
		t.Error("an explicit empty description clears it")
	}

	empty, err := parseSalePatch(parserFor(t, "application/json", `{}`))
	if err != nil || !empty.IsEmpty() {
		t.Errorf("empty body must give an empty patch, got %+v %v", empty, err)
	}

	_, err = parseSalePatch(parserFor(t, "application/json", `{"payment_method": "cheque"}`))
	if got := validationField(err); got != "payment_method" {
		t.Errorf("error field = %q, want payment_method", got)
	}
}

func TestParseExpensePatch(t *testing.T) {
	patch, err := parseExpensePatch(parserFor(t, "application/json", `{"category": "staff", "date": "2024-02-29"}`))
	if err != nil {
		t.Fatal(err)
	}
	if patch.Category == nil || *patch.Category != core.Staff {
		t.Errorf("category = %v", patch.Category)
	}
	if patch.Date == nil || patch.Date.String() != "2024-02-29" {
		t.Errorf("date = %v", patch.Date)
	}
	if patch.Amount != nil || patch.Notes != nil {
		t.Error("absent fields must stay nil")
	}

	_, err = parseExpensePatch(parserFor(t, "application/json", `{"amount": "0"}`))
	if got := validationField(err); got != "amount" {
		t.Errorf("error field = %q, want amount", got)
	}
}

func TestParseListRange(t *testing.T) {
	r, err := parseListRange(url.Values{})
	if err != nil || r != core.AllTime {
		t.Fatalf("no bounds must be all time, got %+v %v", r, err)
	}

	r, err = parseListRange(url.Values{"start": {"2024-06-01"}})
	if err != nil || r.Start.String() != "2024-06-01" || !r.End.IsZero() {
		t.Fatalf("open end range, got %+v %v", r, err)
	}

	_, err = parseListRange(url.Values{"start": {"2024-06-10"}, "end": {"2024-06-01"}})
	if got := validationField(err); got != "range" {
		t.Errorf("inverted range field = %q, want range", got)
	}

	_, err = parseListRange(url.Values{"end": {"tomorrow"}})
	if got := validationField(err); got != "end" {
		t.Errorf("bad end field = %q, want end", got)
	}
}

func TestParseListFilters(t *testing.T) {
	sf, err := parseSaleFilter(url.Values{"payment_method": {"bank"}, "q": {"  lunch "}})
	if err != nil || sf.Method != core.Bank || sf.Query != "lunch" {
		t.Fatalf("sale filter = %+v %v", sf, err)
	}
	sf, err = parseSaleFilter(url.Values{"payment_method": {"ALL"}})
	if err != nil || sf.Method != "" {
		t.Fatalf("all must clear the method, got %+v %v", sf, err)
	}
	_, err = parseSaleFilter(url.Values{"payment_method": {"card"}})
	if got := validationField(err); got != "payment_method" {
		t.Errorf("bad method field = %q, want payment_method", got)
	}

	ef, err := parseExpenseFilter(url.Values{"category": {"food"}, "payment_method": {"cash"}})
	if err != nil || ef.Category != core.Food || ef.Method != core.Cash {
		t.Fatalf("expense filter = %+v %v", ef, err)
	}
	_, err = parseExpenseFilter(url.Values{"category": {"drinks"}})
	if got := validationField(err); got != "category" {
		t.Errorf("bad category field = %q, want category", got)
	}
}

func TestParseReportRange(t *testing.T) {
	today := mustDate(t, "2024-06-05") // Wednesday

	tests := []struct {
		name      string
		query     url.Values
		start     string
		end       string
		wantField string
	}{
		{"default month", url.Values{}, "2024-06-01", "2024-06-30", ""},
		{"today", url.Values{"range": {"today"}}, "2024-06-05", "2024-06-05", ""},
		{"week", url.Values{"range": {"week"}}, "2024-06-03", "2024-06-09", ""},
		{"custom", url.Values{"range": {"custom"}, "start": {"2024-01-01"}, "end": {"2024-03-31"}}, "2024-01-01", "2024-03-31", ""},
		{"custom missing end", url.Values{"range": {"custom"}, "start": {"2024-01-01"}}, "", "", "end"},
		{"custom bad start", url.Values{"range": {"custom"}, "start": {"x"}, "end": {"2024-01-01"}}, "", "", "start"},
		{"unknown preset", url.Values{"range": {"year"}}, "", "", "range"},
		{"bounds ignored for presets", url.Values{"range": {"today"}, "start": {"junk"}}, "2024-06-05", "2024-06-05", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := parseReportRange(tt.query, today)
			if tt.wantField != "" {
				if got := validationField(err); got != tt.wantField {
					t.Fatalf("error field = %q (%v), want %q", got, err, tt.wantField)
				}
				if tt.wantField == "end" && !errors.Is(err, report.ErrMissingBound) {
					t.Errorf("expected ErrMissingBound, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if r.Start.String() != tt.start || r.End.String() != tt.end {
				t.Errorf("range = %s, want %s..%s", r.Key(), tt.start, tt.end)
			}
		})
	}
}
