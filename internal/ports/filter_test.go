package ports

import "testing"

func TestListOptionsNormalize(t *testing.T) {
	t.Parallel()

	n := ListOptions{}.Normalize()
	if n.Page != 1 || n.PerPage != 20 {
		t.Fatalf("zero options should default to page 1, per_page 20: %+v", n)
	}

	n = ListOptions{Page: -3, PerPage: 1000}.Normalize()
	if n.Page != 1 || n.PerPage != 200 {
		t.Fatalf("out-of-range options should clamp: %+v", n)
	}

	if got := (ListOptions{Page: 3, PerPage: 10}).Offset(); got != 20 {
		t.Fatalf("offset: got %d want 20", got)
	}
}

func TestCriteriaCanonicalString(t *testing.T) {
	t.Parallel()

	if got := Eq("status", "ACTIVE").CanonicalString(); got != "status:eq:ACTIVE" {
		t.Fatalf("eq rendering: %q", got)
	}
	if got := In("status", "ACTIVE", "REVOKED").CanonicalString(); got != "status:in:ACTIVE,REVOKED" {
		t.Fatalf("in rendering: %q", got)
	}
}
