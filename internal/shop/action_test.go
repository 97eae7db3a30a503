package shop

import "testing"

func TestActionTokenRoundTrip(t *testing.T) {
	for kind, spec := range actionSpecs {
		id := ""
		switch {
		case spec.needsID:
			id = "0b7c6f1e-3f43-4a53-9a55-6d6f0f6c2d11"
		case spec.optionalID:
			id = "12"
		}
		a := NewAction(kind, id)
		got := ParseToken(a.Token())
		if got.Kind != kind || got.ID != id {
			t.Fatalf("round trip %q: got %+v", a.Token(), got)
		}
		if got.AdminOnly() != spec.adminOnly {
			t.Fatalf("%q: AdminOnly = %v, want %v", spec.unique, got.AdminOnly(), spec.adminOnly)
		}
		if len("\f"+a.Token()) > 64 {
			t.Fatalf("%q exceeds Telegram callback data limit", a.Token())
		}
	}
}

func TestParseActionRejectsMalformed(t *testing.T) {
	cases := []struct {
		unique, payload string
		admin           bool
	}{
		{unique: "cat", payload: "", admin: false},
		{unique: "shop", payload: "extra", admin: false},
		{unique: "bogus", payload: "1", admin: false},
		{unique: "admin_bogus", payload: "", admin: true},
		{unique: "del_everything", payload: "", admin: true},
		{unique: "new_prod_x", payload: "", admin: true},
	}
	for _, tc := range cases {
		a := ParseAction(tc.unique, tc.payload)
		if a.Kind != ActionUnknown {
			t.Fatalf("ParseAction(%q, %q) = %+v, want unknown", tc.unique, tc.payload, a)
		}
		if a.AdminOnly() != tc.admin {
			t.Fatalf("%q: AdminOnly = %v, want %v", tc.unique, a.AdminOnly(), tc.admin)
		}
	}
}

func TestParseActionOptionalPayload(t *testing.T) {
	if a := ParseAction("admin_prods", ""); a.Kind != ActionAdminProducts || a.ID != "" {
		t.Fatalf("without page: %+v", a)
	}
	if a := ParseAction("admin_prods", "3"); a.Kind != ActionAdminProducts || a.ID != "3" {
		t.Fatalf("with page: %+v", a)
	}
}

func TestParseTokenStripsTelebotPrefix(t *testing.T) {
	a := ParseToken("\fprod|42")
	if a.Kind != ActionProduct || a.ID != "42" {
		t.Fatalf("got %+v", a)
	}
}

func TestUniquesCoverEveryAction(t *testing.T) {
	if got := len(Uniques()); got != len(actionSpecs) {
		t.Fatalf("uniques = %d, want %d", got, len(actionSpecs))
	}
}

func TestParsePrice(t *testing.T) {
	cases := []struct {
		in   string
		want float64
		ok   bool
	}{
		{in: "9.99", want: 9.99, ok: true},
		{in: " 9,5 ", want: 9.5, ok: true},
		{in: "0", want: 0, ok: true},
		{in: "-1", ok: false},
		{in: "abc", ok: false},
		{in: "", ok: false},
		{in: "NaN", ok: false},
		{in: "Inf", ok: false},
		{in: "1e400", ok: false},
		{in: "1,000.5", ok: false},
	}
	for _, tc := range cases {
		got, err := ParsePrice(tc.in)
		if (err == nil) != tc.ok {
			t.Fatalf("ParsePrice(%q) err = %v, want ok=%v", tc.in, err, tc.ok)
		}
		if tc.ok && got != tc.want {
			t.Fatalf("ParsePrice(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}
