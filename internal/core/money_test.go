package core

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in  string
		out int64
		ok  bool
	}{
		{"1", 100, true},
		{"1.0", 100, true},
		{"1.23", 123, true},
		{"1,23", 123, true},
		{"0.01", 1, true},
		{"1.005", 101, true}, // half-up rounding
		{" 2.50 ", 250, true},
		{"3000", 300000, true},
		{"-1", 0, false},
		{"0", 0, false},
		{"0.004", 0, false},
		{"abc", 0, false},
		{"1.2.3", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok {
			if err != nil || got != tc.out {
				t.Fatalf("%q expected %d, got %d (err=%v)", tc.in, tc.out, got, err)
			}
		} else {
			if err == nil {
				t.Fatalf("%q expected error", tc.in)
			}
		}
	}
}

func TestParseMoney_BelowOneCent(t *testing.T) {
	for _, in := range []string{"0.001", "0,004", "-0.002"} {
		_, err := ParseMoney(in)
		if !errors.Is(err, ErrBelowOneCent) || !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("ParseMoney(%q) error = %v, want ErrBelowOneCent", in, err)
		}
	}
	if m, err := ParseMoney("0.00"); err != nil || m.Cents != 0 {
		t.Errorf("ParseMoney(0.00) = %v, %v; zero is left to validation", m, err)
	}
	if m, err := ParseMoney("0.005"); err != nil || m.Cents != 1 {
		t.Errorf("ParseMoney(0.005) = %v, %v; want 1 cent", m, err)
	}
}

func TestParseMoney_AllowsSign(t *testing.T) {
	m, err := ParseMoney("-12.5")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if m.Cents != -1250 {
		t.Fatalf("expected -1250, got %d", m.Cents)
	}
}

func TestMoneyJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Amount Money `json:"amount"`
	}{Money{Cents: 260000}})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"amount":2600.00}` {
		t.Fatalf("got %s", b)
	}

	for _, in := range []string{`12.34`, `"12.34"`, `"12,34"`} {
		var m Money
		if err := json.Unmarshal([]byte(in), &m); err != nil {
			t.Fatalf("%s: %v", in, err)
		}
		if m.Cents != 1234 {
			t.Fatalf("%s: expected 1234, got %d", in, m.Cents)
		}
	}
}

func TestMoneyString(t *testing.T) {
	if got := (Money{Cents: -5}).String(); got != "-0.05" {
		t.Fatalf("got %s", got)
	}
	if got := (Money{Cents: 123456}).Euros(); got != 1234.56 {
		t.Fatalf("got %v", got)
	}
}
