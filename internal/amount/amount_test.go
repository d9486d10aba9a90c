package amount

import "testing"

func TestToBaseUnits(t *testing.T) {
	base, err := ToBaseUnits("1.25", 6)
	if err != nil {
		t.Fatalf("ToBaseUnits failed: %v", err)
	}
	if base != "1250000" {
		t.Fatalf("unexpected base units: %s", base)
	}
	if base, _ := ToBaseUnits("0", 18); base != "0" {
		t.Fatalf("unexpected zero conversion: %s", base)
	}
}

func TestToBaseUnitsRejectsBadInput(t *testing.T) {
	cases := []struct {
		name     string
		input    string
		decimals int
	}{
		{"negative", "-1", 6},
		{"non numeric", "one", 6},
		{"grouping", "1,000", 6},
		{"over precision", "1.1234567", 6},
		{"empty", "", 6},
		{"bad decimals", "1", -1},
	}
	for _, tc := range cases {
		if _, err := ToBaseUnits(tc.input, tc.decimals); err == nil {
			t.Fatalf("%s: expected error for %q", tc.name, tc.input)
		}
	}
}

func TestToDecimal(t *testing.T) {
	dec, err := ToDecimal("1250000", 6)
	if err != nil {
		t.Fatalf("ToDecimal failed: %v", err)
	}
	if dec != "1.25" {
		t.Fatalf("unexpected decimal: %s", dec)
	}
	dec, err = ToDecimal("5", 18)
	if err != nil {
		t.Fatalf("ToDecimal failed: %v", err)
	}
	if dec != "0.000000000000000005" {
		t.Fatalf("unexpected decimal: %s", dec)
	}
	if _, err := ToDecimal("-5", 18); err == nil {
		t.Fatal("expected negative base units to fail")
	}
	if _, err := ToDecimal("1.5", 18); err == nil {
		t.Fatal("expected fractional base units to fail")
	}
}

func TestRoundTripLaw(t *testing.T) {
	cases := []struct {
		amount   string
		decimals int
	}{
		{"1", 18},
		{"1.5", 18},
		{"0.000001", 6},
		{"123456.789", 9},
		{"0", 6},
		{"999999999999.999999", 6},
	}
	for _, tc := range cases {
		base, err := ToBaseUnits(tc.amount, tc.decimals)
		if err != nil {
			t.Fatalf("ToBaseUnits(%q, %d) failed: %v", tc.amount, tc.decimals, err)
		}
		back, err := ToDecimal(base, tc.decimals)
		if err != nil {
			t.Fatalf("ToDecimal(%q, %d) failed: %v", base, tc.decimals, err)
		}
		if back != tc.amount {
			t.Fatalf("round trip broke: %q -> %q -> %q", tc.amount, base, back)
		}
	}
}

func TestResolve(t *testing.T) {
	dec, base, err := Resolve("1.5", "", 6)
	if err != nil {
		t.Fatalf("Resolve decimal failed: %v", err)
	}
	if dec != "1.5" || base != "1500000" {
		t.Fatalf("unexpected result: dec=%s base=%s", dec, base)
	}

	dec, base, err = Resolve("", "1500000", 6)
	if err != nil {
		t.Fatalf("Resolve base units failed: %v", err)
	}
	if dec != "1.5" || base != "1500000" {
		t.Fatalf("unexpected result: dec=%s base=%s", dec, base)
	}

	if _, _, err := Resolve("1.5", "1500000", 6); err != nil {
		t.Fatalf("expected agreeing representations to pass: %v", err)
	}
	if _, _, err := Resolve("1.5", "1500001", 6); err == nil {
		t.Fatal("expected disagreeing representations to fail")
	}
	if _, _, err := Resolve("", "", 6); err == nil {
		t.Fatal("expected missing amount error")
	}
}

func TestResolveKeepsSuppliedSpelling(t *testing.T) {
	cases := []struct {
		decimal string
		base    string
	}{
		{"1.50", "1500000"},
		{"0.10", "100000"},
		{"2.000", "2000000"},
	}
	for _, tc := range cases {
		dec, base, err := Resolve(tc.decimal, "", 6)
		if err != nil {
			t.Fatalf("Resolve(%q) failed: %v", tc.decimal, err)
		}
		if dec != tc.decimal || base != tc.base {
			t.Fatalf("Resolve(%q) rewrote the amount: dec=%s base=%s", tc.decimal, dec, base)
		}

		dec, base, err = Resolve(tc.decimal, tc.base, 6)
		if err != nil {
			t.Fatalf("Resolve(%q, %q) failed: %v", tc.decimal, tc.base, err)
		}
		if dec != tc.decimal || base != tc.base {
			t.Fatalf("Resolve(%q, %q) rewrote the amount: dec=%s base=%s", tc.decimal, tc.base, dec, base)
		}
	}
}
