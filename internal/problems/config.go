package problems

import (
	"encoding/json"
	"sync/atomic"

	appErr "eduoj/pkg/errors"
)

// TestCase is one test case flattened out of the configuration document.
// ExpectedOutput is nil for open/exploratory cases: those are judged on the
// absence of an execution error, not on output equality.
type TestCase struct {
	ID             string  `json:"id"`
	Input          string  `json:"input"`
	ExpectedOutput *string `json:"output,omitempty"`
}

// HasExpectedOutput reports whether the case carries a known expected output.
func (t TestCase) HasExpectedOutput() bool {
	return t.ExpectedOutput != nil
}

// TestCaseGroup splits a group of test cases into the subset shown to
// students and the subset withheld for grading.
type TestCaseGroup struct {
	Open   []TestCase `json:"openTestCases"`
	Hidden []TestCase `json:"hiddenTestCases"`
}

// Problem is one gradable problem in the configuration document.
type Problem struct {
	ID         string          `json:"id"`
	Title      string          `json:"title,omitempty"`
	TestCases  []TestCaseGroup `json:"testCases"`
	Score      int             `json:"score,omitempty"`
	SourceName string          `json:"sourceName,omitempty"`
}

// Student is a roster entry of a student allowed to submit.
type Student struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Config is the system configuration document. It is loaded once (from the
// settings store or an init request) and treated as immutable afterwards.
type Config struct {
	Puzzles  []Problem `json:"puzzles"`
	Students []Student `json:"accessableUsers"`
}

// ParseConfig decodes a configuration document.
func ParseConfig(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, appErr.Wrap(err, appErr.ConfigInvalid)
	}
	return &cfg, nil
}

// Registry holds the process-wide configuration document. It is constructed
// once at startup and handed to every component that needs it; a swap only
// happens on an explicit re-initialization.
type Registry struct {
	current atomic.Pointer[Config]
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Load replaces the current configuration document.
func (r *Registry) Load(cfg *Config) {
	r.current.Store(cfg)
}

// Current returns the loaded configuration, or nil when none is loaded.
func (r *Registry) Current() *Config {
	return r.current.Load()
}

// ProblemIDs returns the configured problem ids in document order.
func (r *Registry) ProblemIDs() ([]string, error) {
	cfg := r.Current()
	if cfg == nil {
		return nil, appErr.New(appErr.ConfigNotLoaded)
	}
	ids := make([]string, 0, len(cfg.Puzzles))
	for _, p := range cfg.Puzzles {
		ids = append(ids, p.ID)
	}
	return ids, nil
}

// LookupStudent finds a roster entry by student id.
func (r *Registry) LookupStudent(studentID string) (Student, bool, error) {
	cfg := r.Current()
	if cfg == nil {
		return Student{}, false, appErr.New(appErr.ConfigNotLoaded)
	}
	for _, s := range cfg.Students {
		if s.ID == studentID {
			return s, true, nil
		}
	}
	return Student{}, false, nil
}
