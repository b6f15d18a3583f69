package problems

import (
	"testing"

	appErr "eduoj/pkg/errors"
)

func strPtr(s string) *string { return &s }

func testConfig() *Config {
	return &Config{
		Puzzles: []Problem{
			{
				ID: "p1",
				TestCases: []TestCaseGroup{
					{
						Open:   []TestCase{{ID: "o1", Input: "1"}, {ID: "o2", Input: "2"}},
						Hidden: []TestCase{{ID: "h1", Input: "3", ExpectedOutput: strPtr("3")}},
					},
					{
						Open:   []TestCase{{ID: "o3", Input: "4"}},
						Hidden: []TestCase{{ID: "h2", Input: "5", ExpectedOutput: strPtr("5")}},
					},
				},
			},
			{ID: "p2"},
		},
		Students: []Student{{ID: "s1", Name: "Ada"}},
	}
}

func TestResolveFlattensOpenBeforeHiddenPerGroup(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	registry.Load(testConfig())
	resolver := NewResolver(registry)

	cases, err := resolver.Resolve("p1")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	want := []string{"o1", "o2", "h1", "o3", "h2"}
	if len(cases) != len(want) {
		t.Fatalf("expected %d cases, got %d", len(want), len(cases))
	}
	for i, id := range want {
		if cases[i].ID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, cases[i].ID)
		}
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	registry.Load(testConfig())
	resolver := NewResolver(registry)

	first, err := resolver.Resolve("p1")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	second, err := resolver.Resolve("p1")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(first) != len(second) {
		t.Fatalf("lengths differ: %d vs %d", len(first), len(second))
	}
	for i := range first {
		if first[i].ID != second[i].ID {
			t.Fatalf("position %d differs: %s vs %s", i, first[i].ID, second[i].ID)
		}
	}
}

func TestResolveUnknownProblemYieldsEmpty(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	registry.Load(testConfig())
	resolver := NewResolver(registry)

	cases, err := resolver.Resolve("nope")
	if err != nil {
		t.Fatalf("resolve failed: %v", err)
	}
	if len(cases) != 0 {
		t.Fatalf("expected no cases, got %d", len(cases))
	}
}

func TestResolveWithoutConfig(t *testing.T) {
	t.Parallel()

	resolver := NewResolver(NewRegistry())
	_, err := resolver.Resolve("p1")
	if !appErr.Is(err, appErr.ConfigNotLoaded) {
		t.Fatalf("expected ConfigNotLoaded, got %v", err)
	}
}

func TestParseConfigInvalidDocument(t *testing.T) {
	t.Parallel()

	_, err := ParseConfig([]byte("{not json"))
	if !appErr.Is(err, appErr.ConfigInvalid) {
		t.Fatalf("expected ConfigInvalid, got %v", err)
	}
}

func TestLookupStudent(t *testing.T) {
	t.Parallel()

	registry := NewRegistry()
	registry.Load(testConfig())

	student, ok, err := registry.LookupStudent("s1")
	if err != nil || !ok {
		t.Fatalf("expected roster hit, got ok=%v err=%v", ok, err)
	}
	if student.Name != "Ada" {
		t.Fatalf("unexpected student name: %s", student.Name)
	}

	_, ok, err = registry.LookupStudent("s2")
	if err != nil {
		t.Fatalf("lookup failed: %v", err)
	}
	if ok {
		t.Fatalf("expected roster miss for s2")
	}
}
