// SPDX-License-Identifier: MPL-2.0

package version

import (
	"errors"
	"slices"
	"testing"
)

func TestOf(t *testing.T) {
	t.Parallel()

	tests := []struct {
		raw  string
		want Version
	}{
		{"1.0", "1.0"},
		{"  2.3.4 ", "2.3.4"},
		{"?", Unspecified},
		{"", Unspecified},
	}

	for _, tt := range tests {
		if got := Of(tt.raw); got != tt.want {
			t.Errorf("Of(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestClassification(t *testing.T) {
	t.Parallel()

	tests := []struct {
		v           Version
		unspecified bool
		snapshot    bool
		dynamic     bool
		fixed       bool
	}{
		{"", true, false, false, false},
		{"1.0.0", false, false, false, true},
		{"1.0-SNAPSHOT", false, true, false, false},
		{"1.0-snapshot", false, true, false, false},
		{"+", false, false, true, false},
		{"^1.2", false, false, true, false},
		{">=1.0 <2.0", false, false, true, false},
		{"1.x", false, false, true, false},
		{"31.1-jre", false, false, false, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.v), func(t *testing.T) {
			t.Parallel()

			if got := tt.v.IsUnspecified(); got != tt.unspecified {
				t.Errorf("IsUnspecified() = %v, want %v", got, tt.unspecified)
			}
			if got := tt.v.IsSnapshot(); got != tt.snapshot {
				t.Errorf("IsSnapshot() = %v, want %v", got, tt.snapshot)
			}
			if got := tt.v.IsDynamic(); got != tt.dynamic {
				t.Errorf("IsDynamic() = %v, want %v", got, tt.dynamic)
			}
			if got := tt.v.IsFixed(); got != tt.fixed {
				t.Errorf("IsFixed() = %v, want %v", got, tt.fixed)
			}
		})
	}
}

func TestCompare(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		a, b Version
		want int
	}{
		{"equal", "1.0.0", "1.0.0", 0},
		{"semver minor", "1.2.0", "1.10.0", -1},
		{"semver major", "2.0.0", "1.99.99", 1},
		{"unspecified is weakest", "", "0.0.1", -1},
		{"anything beats unspecified", "0.0.1", "", 1},
		{"snapshot before release", "1.0-SNAPSHOT", "1.0", -1},
		{"four segments", "1.0.0.2", "1.0.0.10", -1},
		{"final qualifier equals release", "1.0.0.Final", "1.0.0", 0},
		{"rc before release", "5.0.0.RC1", "5.0.0.0", -1},
		{"number beats qualifier", "1.0.0.1", "1.0.0.beta", 1},
		{"jre flavours", "31.1-jre", "32.0-jre", -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			if got := tt.a.Compare(tt.b); got != tt.want {
				t.Errorf("%q.Compare(%q) = %d, want %d", tt.a, tt.b, got, tt.want)
			}
			if got := tt.b.Compare(tt.a); got != -tt.want {
				t.Errorf("%q.Compare(%q) = %d, want %d", tt.b, tt.a, got, -tt.want)
			}
		})
	}
}

func TestSort(t *testing.T) {
	t.Parallel()

	versions := []Version{"2.0.0", "1.0-SNAPSHOT", "1.0.1", "", "1.0"}
	Sort(versions)

	want := []Version{"", "1.0-SNAPSHOT", "1.0", "1.0.1", "2.0.0"}
	if !slices.Equal(versions, want) {
		t.Errorf("Sort() = %v, want %v", versions, want)
	}
}

func TestSelect(t *testing.T) {
	t.Parallel()

	published := []Version{"1.0.0", "1.4.2", "2.0.0", "2.1.0-SNAPSHOT"}

	tests := []struct {
		name      string
		requested Version
		available []Version
		want      Version
		wantErr   bool
	}{
		{"fixed passes through", "1.0.0", nil, "1.0.0", false},
		{"highest skips snapshots", Highest, published, "2.0.0", false},
		{"unspecified picks highest", Unspecified, published, "2.0.0", false},
		{"caret range", "^1.0.0", published, "1.4.2", false},
		{"tilde range", "~1.0", published, "1.0.0", false},
		{"only snapshots", Highest, []Version{"1.0-SNAPSHOT"}, "1.0-SNAPSHOT", false},
		{"nothing published", Highest, nil, Unspecified, true},
		{"range without match", "^3.0.0", published, Unspecified, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got, err := Select(tt.requested, tt.available)
			if (err != nil) != tt.wantErr {
				t.Fatalf("Select() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrNoMatchingVersion) {
				t.Errorf("Select() error = %v, want ErrNoMatchingVersion", err)
			}
			if got != tt.want {
				t.Errorf("Select() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestAdmits(t *testing.T) {
	t.Parallel()

	tests := []struct {
		requested, resolved Version
		want                bool
	}{
		{"", "1.0", true},
		{Highest, "9.9", true},
		{"1.0", "1.0", true},
		{"1.0", "2.0", false},
		{"^1.0.0", "1.5.0", true},
		{"^1.0.0", "2.0.0", false},
	}

	for _, tt := range tests {
		if got := tt.requested.Admits(tt.resolved); got != tt.want {
			t.Errorf("%q.Admits(%q) = %v, want %v", tt.requested, tt.resolved, got, tt.want)
		}
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	if err := Version("1.0").Validate(); err != nil {
		t.Errorf("Validate() unexpected error: %v", err)
	}
	for _, bad := range []Version{"1:0", "1 0", "../../etc", "1.0/..", `1.0\x`, "..", "."} {
		if err := bad.Validate(); !errors.Is(err, ErrInvalidVersion) {
			t.Errorf("Version(%q).Validate() = %v, want ErrInvalidVersion", bad, err)
		}
	}
	for _, ok := range []Version{"1..2", "^1.2", "2.0-SNAPSHOT", "+"} {
		if err := ok.Validate(); err != nil {
			t.Errorf("Version(%q).Validate() unexpected error: %v", ok, err)
		}
	}
}
