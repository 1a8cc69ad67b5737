package catalog

import (
	"sort"
	"testing"
)

func TestClassesSorted(t *testing.T) {
	classes := Classes()
	if len(classes) != 14 {
		t.Fatalf("expected 14 classes, got %d", len(classes))
	}
	if !sort.StringsAreSorted(classes) {
		t.Errorf("classes not sorted: %v", classes)
	}
}

func TestSubjectsFor(t *testing.T) {
	subjects := SubjectsFor("Class 6")
	if len(subjects) == 0 {
		t.Fatal("expected subjects for Class 6")
	}
	if subjects[0] != "Math" {
		t.Errorf("expected Math first, got %q", subjects[0])
	}
	if got := SubjectsFor("Class 99"); got != nil {
		t.Errorf("expected nil for unknown class, got %v", got)
	}

	// Returned slice is a copy; mutating it must not leak into the catalog.
	subjects[0] = "mutated"
	if SubjectsFor("Class 6")[0] != "Math" {
		t.Error("catalog mutated through returned slice")
	}
}

func TestValidClass(t *testing.T) {
	cases := []struct {
		class string
		want  bool
	}{
		{"Class 6", true},
		{"Class 11 (Science)", true},
		{"Class 12 (Arts)", true},
		{"Class 2", false},
		{"class 6", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := ValidClass(tc.class); got != tc.want {
			t.Errorf("ValidClass(%q) = %v, want %v", tc.class, got, tc.want)
		}
	}
}

func TestHasSubject(t *testing.T) {
	if !HasSubject("Class 6", "Science") {
		t.Error("expected Science in Class 6")
	}
	if HasSubject("Class 3", "Science") {
		t.Error("Class 3 does not offer Science")
	}
	if !HasSubject("Class 11 (Commerce)", "Accountancy") {
		t.Error("expected Accountancy in Class 11 (Commerce)")
	}
	if HasSubject("Class 99", "Math") {
		t.Error("unknown class has no subjects")
	}
}

func TestLanguages(t *testing.T) {
	langs := Languages()
	if len(langs) == 0 || langs[0] != "English" {
		t.Fatalf("expected English first, got %v", langs)
	}
	if !ValidLanguage("Hindi") {
		t.Error("expected Hindi to be selectable")
	}
	if ValidLanguage("Klingon") {
		t.Error("Klingon is not selectable")
	}
}
