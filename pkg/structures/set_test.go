package structures

import "testing"

func TestSetAddHas(t *testing.T) {
	s := make(Set[string])
	if s.Has("a") {
		t.Fatalf("empty set should not have \"a\"")
	}
	s.Add("a")
	s.Add("a")
	if !s.Has("a") {
		t.Fatalf("set should have \"a\" after Add")
	}
	if len(s) != 1 {
		t.Fatalf("adding the same element twice should not grow the set, got len %d", len(s))
	}
}

func TestSetRemove(t *testing.T) {
	s := NewSet("work", "personal")
	s.Remove("work")
	if s.Has("work") {
		t.Fatalf("\"work\" should have been removed")
	}
	if !s.Has("personal") {
		t.Fatalf("\"personal\" should still be present")
	}
}

func TestSetIntersects(t *testing.T) {
	cases := []struct {
		name string
		a, b []string
		want bool
	}{
		{"empty-vs-nonempty", nil, []string{"work"}, false},
		{"disjoint", []string{"work"}, []string{"personal"}, false},
		{"shared", []string{"work", "ci"}, []string{"ci", "personal"}, true},
		{"both-empty", nil, nil, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			a, b := NewSet(tc.a...), NewSet(tc.b...)
			if got := a.Intersects(b); got != tc.want {
				t.Fatalf("Intersects(%v, %v) = %v, want %v", tc.a, tc.b, got, tc.want)
			}
		})
	}
}
