package verdict

import (
	"testing"

	"eduoj/internal/judge/judge0"
	"eduoj/internal/problems"
)

func strPtr(s string) *string { return &s }

func accepted(stdout string) judge0.ExecutionRecord {
	return judge0.ExecutionRecord{
		Stdout: strPtr(stdout),
		Status: &judge0.Status{ID: judge0.StatusAccepted, Description: "Accepted"},
	}
}

func TestNormalizeAcceptedMatch(t *testing.T) {
	t.Parallel()

	tc := problems.TestCase{ID: "t1", ExpectedOutput: strPtr("42\n")}
	v := Normalize(tc, accepted("42\n"))
	if !v.Correct {
		t.Fatalf("expected correct verdict")
	}
	if v.UserOutput != "42\n" {
		t.Fatalf("expected raw stdout, got %q", v.UserOutput)
	}
	if v.TestCaseID != "t1" {
		t.Fatalf("unexpected test case id %q", v.TestCaseID)
	}
}

func TestNormalizeToleratesLineEndingsAndTrailingWhitespace(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		stdout   string
		expected string
	}{
		{"crlf output", "a\r\nb\r\n", "a\nb\n"},
		{"trailing newline missing", "a\nb", "a\nb\n"},
		{"trailing spaces", "a\nb  \n", "a\nb"},
		{"crlf expected", "a\nb", "a\r\nb\r\n"},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			tc := problems.TestCase{ID: "t1", ExpectedOutput: strPtr(tt.expected)}
			v := Normalize(tc, accepted(tt.stdout))
			if !v.Correct {
				t.Fatalf("expected correct verdict for stdout %q vs expected %q", tt.stdout, tt.expected)
			}
			if v.UserOutput != tt.stdout {
				t.Fatalf("expected untouched stdout %q, got %q", tt.stdout, v.UserOutput)
			}
		})
	}
}

func TestNormalizeInteriorWhitespaceStaysSignificant(t *testing.T) {
	t.Parallel()

	tc := problems.TestCase{ID: "t1", ExpectedOutput: strPtr("a b\n")}
	v := Normalize(tc, accepted("a  b\n"))
	if v.Correct {
		t.Fatalf("expected incorrect verdict for differing interior whitespace")
	}
}

func TestNormalizeWrongOutput(t *testing.T) {
	t.Parallel()

	tc := problems.TestCase{ID: "t1", ExpectedOutput: strPtr("42")}
	v := Normalize(tc, accepted("41"))
	if v.Correct {
		t.Fatalf("expected incorrect verdict")
	}
	if v.UserOutput != "41" {
		t.Fatalf("expected stdout report, got %q", v.UserOutput)
	}
}

func TestNormalizeNoExpectedOutput(t *testing.T) {
	t.Parallel()

	tc := problems.TestCase{ID: "open1"}
	v := Normalize(tc, accepted("anything at all"))
	if !v.Correct {
		t.Fatalf("open case with clean run must be correct")
	}
	if v.UserOutput != "anything at all" {
		t.Fatalf("expected stdout report, got %q", v.UserOutput)
	}

	errored := judge0.ExecutionRecord{
		Stderr: strPtr("boom\n"),
		Status: &judge0.Status{ID: 11, Description: "Runtime Error (NZEC)"},
	}
	v = Normalize(tc, errored)
	if v.Correct {
		t.Fatalf("open case with errored run must be incorrect")
	}
}

func TestNormalizeErrorMessagePrecedence(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		rec  judge0.ExecutionRecord
		want string
	}{
		{
			"compile output wins",
			judge0.ExecutionRecord{
				CompileOutput: strPtr("  SyntaxError: invalid syntax \n"),
				Stderr:        strPtr("stderr noise"),
				Status:        &judge0.Status{ID: 6, Description: "Compilation Error"},
			},
			"SyntaxError: invalid syntax",
		},
		{
			"stderr next",
			judge0.ExecutionRecord{
				CompileOutput: strPtr("   "),
				Stderr:        strPtr("Traceback (most recent call last)\n"),
				Status:        &judge0.Status{ID: 11, Description: "Runtime Error (NZEC)"},
			},
			"Traceback (most recent call last)",
		},
		{
			"status description next",
			judge0.ExecutionRecord{
				Status: &judge0.Status{ID: 5, Description: "Time Limit Exceeded"},
			},
			"Time Limit Exceeded",
		},
		{
			"fallback",
			judge0.ExecutionRecord{Status: &judge0.Status{ID: 11}},
			"Runtime Error",
		},
		{
			"missing status",
			judge0.ExecutionRecord{},
			"Runtime Error",
		},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			v := Normalize(problems.TestCase{ID: "t1", ExpectedOutput: strPtr("x")}, tt.rec)
			if v.Correct {
				t.Fatalf("errored record must yield incorrect verdict")
			}
			if v.UserOutput != tt.want {
				t.Fatalf("expected message %q, got %q", tt.want, v.UserOutput)
			}
		})
	}
}

func TestNormalizeBatchKeepsOrder(t *testing.T) {
	t.Parallel()

	cases := []problems.TestCase{
		{ID: "a", ExpectedOutput: strPtr("1")},
		{ID: "b", ExpectedOutput: strPtr("2")},
		{ID: "c", ExpectedOutput: strPtr("3")},
	}
	records := []judge0.ExecutionRecord{accepted("1"), accepted("9"), accepted("3")}

	verdicts := NormalizeBatch(cases, records)
	if len(verdicts) != 3 {
		t.Fatalf("expected 3 verdicts, got %d", len(verdicts))
	}
	for i, id := range []string{"a", "b", "c"} {
		if verdicts[i].TestCaseID != id {
			t.Fatalf("position %d: expected %s, got %s", i, id, verdicts[i].TestCaseID)
		}
	}
	if !verdicts[0].Correct || verdicts[1].Correct || !verdicts[2].Correct {
		t.Fatalf("unexpected correctness pattern: %+v", verdicts)
	}
}
