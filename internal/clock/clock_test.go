package clock

import (
	"testing"
)

func TestVersion_Compare(t *testing.T) {
	tests := []struct {
		name string
		a, b Version
		want CompareResult
	}{
		{"older", 1, 2, Before},
		{"newer", 3, 2, After},
		{"equal", 2, 2, Equal},
		{"absent before zero", Absent, 0, Before},
		{"zero after absent", 0, Absent, After},
		{"absent equals absent", Absent, Absent, Equal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Compare(tt.b); got != tt.want {
				t.Errorf("Compare(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
		})
	}
}

func TestVersion_Next(t *testing.T) {
	if got := Absent.Next(); got != 0 {
		t.Errorf("Expected first write version 0, got %d", got)
	}
	if got := Version(4).Next(); got != 5 {
		t.Errorf("Expected 5, got %d", got)
	}
	if !Version(4).Next().Dominates(4) {
		t.Error("Next version should dominate its predecessor")
	}
}

// TestVersion_Property_CompareAntisymmetric tests that a > b implies b < a
func TestVersion_Property_CompareAntisymmetric(t *testing.T) {
	for a := Absent; a < 5; a++ {
		for b := Absent; b < 5; b++ {
			ab := a.Compare(b)
			ba := b.Compare(a)
			switch ab {
			case After:
				if ba != Before {
					t.Errorf("%v after %v but reverse is %v", a, b, ba)
				}
			case Before:
				if ba != After {
					t.Errorf("%v before %v but reverse is %v", a, b, ba)
				}
			case Equal:
				if ba != Equal {
					t.Errorf("%v equal %v but reverse is %v", a, b, ba)
				}
			}
		}
	}
}

func TestVersion_String(t *testing.T) {
	if Absent.String() != "absent" {
		t.Errorf("Expected 'absent', got %q", Absent.String())
	}
	if Version(3).String() != "v3" {
		t.Errorf("Expected 'v3', got %q", Version(3).String())
	}
}
