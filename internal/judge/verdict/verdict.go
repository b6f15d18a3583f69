package verdict

import (
	"strings"
	"unicode"

	"eduoj/internal/judge/judge0"
	"eduoj/internal/problems"
)

// fallbackErrorMessage is reported when an errored execution produced no
// compile output, no stderr and no status description.
const fallbackErrorMessage = "Runtime Error"

// Verdict is the per-test-case outcome reported to callers and persisted to
// the scoreboard.
type Verdict struct {
	TestCaseID string `json:"id"`
	Correct    bool   `json:"correct"`
	UserOutput string `json:"userOutput"`
}

// Normalize turns one raw execution record into a verdict for its test case.
//
// An execution whose status is anything but Accepted is an error: the verdict
// is incorrect and UserOutput carries the most specific failure message
// available, trying compile output first, then stderr, then the status
// description.
//
// A clean execution is compared against the expected output with line endings
// and trailing whitespace normalized on both sides. The comparison is
// tolerant but the report is not: UserOutput is the raw stdout, untouched. A
// test case without an expected output is correct whenever execution was
// clean.
func Normalize(tc problems.TestCase, rec judge0.ExecutionRecord) Verdict {
	if rec.Status == nil || rec.Status.ID != judge0.StatusAccepted {
		return Verdict{
			TestCaseID: tc.ID,
			Correct:    false,
			UserOutput: errorMessage(rec),
		}
	}

	stdout := deref(rec.Stdout)
	correct := true
	if tc.HasExpectedOutput() {
		correct = normalizeText(stdout) == normalizeText(*tc.ExpectedOutput)
	}
	return Verdict{
		TestCaseID: tc.ID,
		Correct:    correct,
		UserOutput: stdout,
	}
}

// NormalizeBatch pairs records with test cases positionally. Callers must
// pass slices of equal length; the pipeline guarantees one record per case.
func NormalizeBatch(testCases []problems.TestCase, records []judge0.ExecutionRecord) []Verdict {
	verdicts := make([]Verdict, 0, len(testCases))
	for i, tc := range testCases {
		verdicts = append(verdicts, Normalize(tc, records[i]))
	}
	return verdicts
}

// errorMessage picks the failure text for an errored execution.
func errorMessage(rec judge0.ExecutionRecord) string {
	if msg := strings.TrimSpace(deref(rec.CompileOutput)); msg != "" {
		return msg
	}
	if msg := strings.TrimSpace(deref(rec.Stderr)); msg != "" {
		return msg
	}
	if rec.Status != nil && rec.Status.Description != "" {
		return rec.Status.Description
	}
	return fallbackErrorMessage
}

// normalizeText prepares output text for comparison: CRLF line endings
// become LF and trailing whitespace is dropped. Interior whitespace and
// leading whitespace are significant and kept as-is.
func normalizeText(s string) string {
	return strings.TrimRightFunc(strings.ReplaceAll(s, "\r\n", "\n"), unicode.IsSpace)
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
