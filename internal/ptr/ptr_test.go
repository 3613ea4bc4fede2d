package ptr_test

import (
	"database/sql"
	"testing"

	"github.com/myrjola/ironbrain/internal/ptr"
)

func TestRef(t *testing.T) {
	s := "test"
	p := ptr.Ref(s)
	if p == nil || *p != s {
		t.Fatalf("Ref(%q) = %v", s, p)
	}

	// The pointer refers to a copy.
	s = "modified"
	if *p == s {
		t.Errorf("pointer value changed with the original")
	}
}

func TestNullRoundTrip(t *testing.T) {
	t.Run("nil", func(t *testing.T) {
		n := ptr.ToNull[int](nil)
		if n.Valid {
			t.Errorf("ToNull(nil) is valid")
		}
		if got := ptr.FromNull(n); got != nil {
			t.Errorf("FromNull(NULL) = %v, want nil", *got)
		}
	})

	t.Run("value", func(t *testing.T) {
		n := ptr.ToNull(ptr.Ref(7.5))
		if !n.Valid || n.V != 7.5 {
			t.Errorf("ToNull(7.5) = %+v", n)
		}
		got := ptr.FromNull(sql.Null[int]{V: 42, Valid: true})
		if got == nil || *got != 42 {
			t.Errorf("FromNull(42) = %v", got)
		}
	})
}
