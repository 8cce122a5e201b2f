package util

import "testing"

func TestParseQuantity(t *testing.T) {
	cases := []struct {
		name  string
		input string
		want  string
		ok    bool
	}{
		{name: "default", input: "1", want: "1", ok: true},
		{name: "decimal dot", input: "2.5", want: "2.5", ok: true},
		{name: "decimal comma", input: "1,5", want: "1.5", ok: true},
		{name: "padded", input: "  3 ", want: "3", ok: true},
		{name: "no break space", input: "\u00A04", want: "4", ok: true},
		{name: "exponent", input: "1e3", want: "1000", ok: true},
		{name: "zero", input: "0", want: "0", ok: true},
		{name: "letters", input: "abc", want: "0", ok: false},
		{name: "empty", input: "", want: "0", ok: false},
		{name: "negative", input: "-2", want: "0", ok: false},
		{name: "two commas", input: "1,000,5", want: "0", ok: false},
		{name: "tiny exponent", input: "1e-900000000", want: "0", ok: false},
		{name: "huge exponent", input: "1E900000000", want: "0", ok: false},
		{name: "small fraction", input: "0.000000000001", want: "0.000000000001", ok: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, ok := ParseQuantity(tc.input)
			if ok != tc.ok {
				t.Fatalf("ok=%v want %v", ok, tc.ok)
			}
			if got.String() != tc.want {
				t.Fatalf("got %s want %s", got.String(), tc.want)
			}
		})
	}
}

func TestParseCoefficient(t *testing.T) {
	if v, ok := ParseCoefficient(""); !ok || !v.IsZero() {
		t.Fatalf("empty cell: %s %v", v, ok)
	}
	if v, ok := ParseCoefficient("1.23E-05"); !ok || v.String() != "0.0000123" {
		t.Fatalf("exponent: %s %v", v, ok)
	}
	if v, ok := ParseCoefficient("-0.5"); !ok || v.String() != "-0.5" {
		t.Fatalf("negative coefficient: %s %v", v, ok)
	}
	if _, ok := ParseCoefficient("n/a"); ok {
		t.Fatal("n/a should not parse")
	}
	if _, ok := ParseCoefficient("2e-99999"); ok {
		t.Fatal("out-of-range exponent should not parse")
	}
}

func TestParseFloat(t *testing.T) {
	if _, ok := ParseFloat(" "); ok {
		t.Fatal("blank should not parse")
	}
	if v, ok := ParseFloat("2.5"); !ok || v != 2.5 {
		t.Fatalf("got %v %v", v, ok)
	}
}
