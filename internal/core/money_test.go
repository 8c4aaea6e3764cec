package core

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		in  string
		out string
		ok  bool
	}{
		{"1", "1", true},
		{"1.0", "1", true},
		{"1.23", "1.23", true},
		{"1,500", "1500", true},
		{"1,500.00", "1500", true},
		{"-12,345,678.9", "-12345678.9", true},
		{"+1,000", "1000", true},
		{"1,23", "", false},
		{"12,5", "", false},
		{"1,5000", "", false},
		{",500", "", false},
		{"1500,", "", false},
		{"-1200.00", "-1200", true},
		{"0.005", "0.005", true},
		{" 2.50 ", "2.5", true},
		{"0", "0", true},
		{"abc", "", false},
		{"1.2.3", "", false},
		{"1,2.3", "", false},
		{"1.", "", false},
		{"-", "", false},
		{"1e3", "", false},
		{"", "", false},
		{"   ", "", false},
	}
	for _, tc := range cases {
		got, err := ParseAmount(tc.in)
		if tc.ok {
			if err != nil || !got.Equal(MustMoney(tc.out)) {
				t.Fatalf("%q expected %s, got %s (err=%v)", tc.in, tc.out, got, err)
			}
		} else if err == nil {
			t.Fatalf("%q expected error", tc.in)
		}
	}
}

func TestNotationParseAmount(t *testing.T) {
	tests := []struct {
		name     string
		notation Notation
		in       string
		want     string
		wantErr  bool
	}{
		{"comma decimal", CommaDecimal, "-12,5", "-12.5", false},
		{"comma grouped", CommaDecimal, "1.500,00", "1500", false},
		{"comma plain", CommaDecimal, "1500", "1500", false},
		{"comma thousands only", CommaDecimal, "1.500", "1500", false},
		{"comma rejects dot fraction", CommaDecimal, "12.5", "", true},
		{"comma rejects two marks", CommaDecimal, "1,5,0", "", true},
		{"space grouped", Notation{Decimal: ",", Group: "\u202f"}, "1 234,25", "1234.25", false},
		{"no-break space grouped", Notation{Decimal: ",", Group: "\u00a0"}, "1\u00a0234,25", "1234.25", false},
		{"lakh grouping", DotDecimal, "1,00,000", "100000", false},
		{"dot keeps every digit", DotDecimal, "0.123456789", "0.123456789", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := tt.notation.ParseAmount(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidAmount) {
					t.Fatalf("%q: expected ErrInvalidAmount, got %s (err=%v)", tt.in, got, err)
				}
				return
			}
			if err != nil || !got.Equal(MustMoney(tt.want)) {
				t.Fatalf("%q: expected %s, got %s (err=%v)", tt.in, tt.want, got, err)
			}
		})
	}
}

func TestNotationTextReadsBack(t *testing.T) {
	for _, n := range []Notation{DotDecimal, CommaDecimal} {
		for _, s := range []string{"-1234567.891", "0.5", "1500", "-0.005"} {
			m := MustMoney(s)
			back, err := n.ParseAmount(n.Text(m))
			if err != nil || !back.Equal(m) {
				t.Fatalf("%+v: %s -> %q -> %s (err=%v)", n, s, n.Text(m), back, err)
			}
		}
	}
	if got := CommaDecimal.Text(MustMoney("-12.5")); got != "-12,5" {
		t.Fatalf("Text = %q, want -12,5", got)
	}
}

func TestNotationParseInput(t *testing.T) {
	in := Input{Text: "Rent", Amount: "-1.200,50", Category: "Housing", Date: "2024-01-01"}
	d, err := CommaDecimal.ParseInput(in, nil)
	if err != nil || !d.Amount.Equal(MustMoney("-1200.5")) {
		t.Fatalf("expected -1200.5, got %s (err=%v)", d.Amount, err)
	}
	if _, err := ParseInput(in, nil); !errors.Is(err, ErrValidation) || !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("dot notation should reject %q, got %v", in.Amount, err)
	}
}

func TestMoneySign(t *testing.T) {
	if !MustMoney("1500").IsIncome() || MustMoney("1500").IsExpense() {
		t.Fatalf("positive amount should be income only")
	}
	if !MustMoney("-3").IsExpense() || MustMoney("-3").IsIncome() {
		t.Fatalf("negative amount should be expense only")
	}
	if Zero.IsIncome() || Zero.IsExpense() {
		t.Fatalf("zero should be neither income nor expense")
	}
}

func TestMoneyJSONRoundTrip(t *testing.T) {
	for _, s := range []string{"1500.00", "-1200", "0.1", "-0.005", "123456789.123456789"} {
		m := MustMoney(s)
		b, err := json.Marshal(m)
		if err != nil {
			t.Fatalf("marshal %s: %v", s, err)
		}
		var back Money
		if err := json.Unmarshal(b, &back); err != nil {
			t.Fatalf("unmarshal %s: %v", b, err)
		}
		if !back.Equal(m) {
			t.Fatalf("round trip %s -> %s -> %s", s, b, back)
		}
	}
}

func TestMoneyUnmarshalAcceptsQuotedAndRejectsNull(t *testing.T) {
	var m Money
	if err := json.Unmarshal([]byte(`"12.5"`), &m); err != nil || !m.Equal(MustMoney("12.5")) {
		t.Fatalf("quoted decimal: got %s err=%v", m, err)
	}
	if err := json.Unmarshal([]byte(`null`), &m); err == nil {
		t.Fatalf("expected error for null amount")
	}
}

func TestMoneyDisplayRounding(t *testing.T) {
	if got := MustMoney("0.125").Display(2); !got.Equal(MustMoney("0.13")) {
		t.Fatalf("expected 0.13, got %s", got)
	}
	if got := MustMoney("-0.125").Display(2); !got.Equal(MustMoney("-0.13")) {
		t.Fatalf("expected -0.13, got %s", got)
	}
}
