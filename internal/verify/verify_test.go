package verify

import "testing"

func TestNormalizePhone(t *testing.T) {
	cases := map[string]string{
		"+91-9876543210":   "9876543210",
		"919876543210":     "9876543210",
		"09876543210":      "9876543210",
		"9876543210":       "9876543210",
		"98765 43210":      "9876543210",
		"(987) 654-3210":   "9876543210",
		"":                 "",
		"12345":            "12345",
		"+91 98765 43210 ": "9876543210",
	}
	for raw, want := range cases {
		if got := NormalizePhone(raw); got != want {
			t.Errorf("NormalizePhone(%q) = %q, want %q", raw, got, want)
		}
	}
}

func TestPhonesMatch(t *testing.T) {
	if !PhonesMatch("+91-9876543210", "9876543210") {
		t.Error("expected country-code form to match bare number")
	}
	if !PhonesMatch("09876543210", "98765 43210") {
		t.Error("expected trunk-prefix form to match spaced number")
	}
	if PhonesMatch("9876543210", "9876543211") {
		t.Error("expected different numbers not to match")
	}
	if PhonesMatch("", "") {
		t.Error("expected empty inputs not to match")
	}
}

func TestNamesMatch(t *testing.T) {
	positives := [][2]string{
		{"Rajesh Kumar", "rajesh kumar"},
		{"Rajesh Kumar", "Kumar Rajesh"},
		{"PRIYA SHARMA", "Priya Sharma"},
	}
	for _, c := range positives {
		if !NamesMatch(c[0], c[1]) {
			t.Errorf("expected %q to match %q", c[0], c[1])
		}
	}

	negatives := [][2]string{
		{"Rajesh Kumar", "Rajesh Sharma"},
		{"Rajesh", "Priya"},
		{"", "Rajesh Kumar"},
		{"Rajesh Kumar Singh", "Amit Patel"},
	}
	for _, c := range negatives {
		if NamesMatch(c[0], c[1]) {
			t.Errorf("expected %q not to match %q", c[0], c[1])
		}
	}
}

func TestAddressesMatch(t *testing.T) {
	if !AddressesMatch("12 MG Road Bangalore", "12 mg road bangalore") {
		t.Error("expected case-insensitive match")
	}
	// One extra token out of five drops overlap to 4/5 = 0.8, still a match.
	if !AddressesMatch("12 MG Road Bangalore 560001", "12 MG Road Bangalore") {
		t.Error("expected near-identical addresses to match")
	}
	if AddressesMatch("12 MG Road Bangalore", "7 Link Road Mumbai") {
		t.Error("expected different addresses not to match")
	}
	if AddressesMatch("", "12 MG Road") {
		t.Error("expected empty address not to match")
	}
}

func TestCheck(t *testing.T) {
	record := Record{
		Name:    "Rajesh Kumar",
		Phone:   "+91-9876543210",
		Address: "12 MG Road Bangalore",
	}

	if got := Check(Claim{Name: "rajesh kumar", Phone: "9876543210"}, record); len(got) != 0 {
		t.Errorf("expected clean check, got mismatches %v", got)
	}

	got := Check(Claim{Name: "Amit Patel", Phone: "9876543210"}, record)
	if len(got) != 1 || got[0] != FieldName {
		t.Errorf("expected [name], got %v", got)
	}

	got = Check(Claim{Name: "Rajesh Kumar", Phone: "1234567890", Address: "7 Link Road Mumbai"}, record)
	if len(got) != 2 || got[0] != FieldPhone || got[1] != FieldAddress {
		t.Errorf("expected [phone address], got %v", got)
	}

	// Address absent from the claim is not checked.
	if got := Check(Claim{Name: "Rajesh Kumar", Phone: "09876543210"}, record); len(got) != 0 {
		t.Errorf("expected address to be skipped, got %v", got)
	}
}
