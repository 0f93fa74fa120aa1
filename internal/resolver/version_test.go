package resolver

import "testing"

func TestParsePackageVersionRevision(t *testing.T) {
	cases := []struct {
		in       string
		wantStr  string
		wantRev  int
		hasRev   bool
	}{
		{"1.2.3", "1.2.3", 0, false},
		{"1.2.3-1", "1.2.3-1", 1, true},
		{"1.2.3-rc1", "1.2.3-rc1", 0, false},
		{"2.0.0-beta.1-2", "2.0.0-beta.1-2", 2, true},
	}
	for _, c := range cases {
		v, err := ParsePackageVersion(c.in)
		if err != nil {
			t.Fatalf("ParsePackageVersion(%q): %v", c.in, err)
		}
		if v.String() != c.wantStr {
			t.Errorf("ParsePackageVersion(%q).String() = %q, want %q", c.in, v.String(), c.wantStr)
		}
		if v.hasRev != c.hasRev || v.revision != c.wantRev {
			t.Errorf("ParsePackageVersion(%q) revision = (%d,%v), want (%d,%v)", c.in, v.revision, v.hasRev, c.wantRev, c.hasRev)
		}
	}
}

func TestPackageVersionCompareRevisionTiebreak(t *testing.T) {
	a, _ := ParsePackageVersion("1.0.0-1")
	b, _ := ParsePackageVersion("1.0.0-2")
	if !a.Less(b) {
		t.Fatalf("expected 1.0.0-1 < 1.0.0-2")
	}
	if a.Compare(b) >= 0 {
		t.Fatalf("expected negative compare")
	}
}

func TestVersionConstraintMatches(t *testing.T) {
	c, err := ParseVersionConstraint(">=1.2.0,<2.0.0")
	if err != nil {
		t.Fatalf("ParseVersionConstraint: %v", err)
	}
	match, _ := ParsePackageVersion("1.5.0")
	noMatch, _ := ParsePackageVersion("2.0.0")
	if !c.Matches(match) {
		t.Errorf("expected 1.5.0 to match %s", c)
	}
	if c.Matches(noMatch) {
		t.Errorf("expected 2.0.0 not to match %s", c)
	}
}

func TestVersionConstraintApprox(t *testing.T) {
	c, err := ParseVersionConstraint("~>1.4.0")
	if err != nil {
		t.Fatalf("ParseVersionConstraint: %v", err)
	}
	inRange, _ := ParsePackageVersion("1.4.9")
	outOfRange, _ := ParsePackageVersion("1.5.0")
	if !c.Matches(inRange) {
		t.Errorf("expected 1.4.9 to match ~>1.4.0")
	}
	if c.Matches(outOfRange) {
		t.Errorf("expected 1.5.0 not to match ~>1.4.0")
	}
}

func TestAnyMatchesEverything(t *testing.T) {
	v, _ := ParsePackageVersion("0.0.1")
	if !Any().Matches(v) {
		t.Errorf("expected Any() to match everything")
	}
}

func TestIsInterpreter(t *testing.T) {
	if !PackageName("Lua").IsInterpreter() {
		t.Errorf("expected case-insensitive match for interpreter name")
	}
	if PackageName("luasocket").IsInterpreter() {
		t.Errorf("luasocket must not be treated as the interpreter")
	}
}
