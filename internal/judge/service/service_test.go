package service

import (
	"archive/zip"
	"context"
	"os"
	"sync"
	"testing"

	"eduoj/internal/archive"
	"eduoj/internal/common/db"
	"eduoj/internal/judge/judge0"
	"eduoj/internal/judge/verdict"
	"eduoj/internal/problems"
	"eduoj/internal/realtime"
	"eduoj/internal/scoreboard"
	appErr "eduoj/pkg/errors"
)

func strPtr(s string) *string { return &s }

type fakeSubmitter struct {
	mu         sync.Mutex
	calls      int
	gotSource  string
	gotLang    int
	gotLimits  judge0.Limits
	respond    func(cases []problems.TestCase) []judge0.ExecutionRecord
	failureMsg string
}

func (f *fakeSubmitter) SubmitBatch(_ context.Context, sourceCode string, cases []problems.TestCase, languageID int, limits judge0.Limits) ([]judge0.ExecutionRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.gotSource = sourceCode
	f.gotLang = languageID
	f.gotLimits = limits
	if f.failureMsg != "" {
		records := make([]judge0.ExecutionRecord, len(cases))
		for i := range records {
			records[i] = judge0.NewFailureRecord(f.failureMsg)
		}
		return records, nil
	}
	return f.respond(cases), nil
}

type recordedScore struct {
	problemID string
	verdicts  []verdict.Verdict
}

type fakeScores struct {
	mu      sync.Mutex
	ensured map[string]string
	scores  map[string][]recordedScore
}

func newFakeScores() *fakeScores {
	return &fakeScores{ensured: map[string]string{}, scores: map[string][]recordedScore{}}
}

func (f *fakeScores) EnsureStudent(_ context.Context, _ db.Transaction, studentID, studentName string, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ensured[studentID] = studentName
	return nil
}

func (f *fakeScores) Get(_ context.Context, _ db.Transaction, studentID string) (*scoreboard.Entry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.ensured[studentID]; !ok {
		return nil, nil
	}
	return &scoreboard.Entry{StudentID: studentID, StudentName: f.ensured[studentID]}, nil
}

func (f *fakeScores) List(_ context.Context, _ db.Transaction) ([]scoreboard.Entry, error) {
	return nil, nil
}

func (f *fakeScores) RecordResults(_ context.Context, _ db.Transaction, studentID, problemID string, verdicts []verdict.Verdict, _ int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scores[studentID] = append(f.scores[studentID], recordedScore{problemID: problemID, verdicts: verdicts})
	return nil
}

func (f *fakeScores) Reset(context.Context, db.Transaction) error { return nil }

type fakeBroadcaster struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeBroadcaster) Broadcast(event string, _ any) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, event)
}

func writeSubmission(t *testing.T, store *archive.Store, studentID string, entries map[string]string) {
	t.Helper()
	f, err := os.Create(store.ArchivePath(studentID))
	if err != nil {
		t.Fatalf("create archive: %v", err)
	}
	zw := zip.NewWriter(f)
	for name, content := range entries {
		w, err := zw.Create(name)
		if err != nil {
			t.Fatalf("create entry: %v", err)
		}
		if _, err := w.Write([]byte(content)); err != nil {
			t.Fatalf("write entry: %v", err)
		}
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("finish archive: %v", err)
	}
	if err := f.Close(); err != nil {
		t.Fatalf("close archive: %v", err)
	}
}

func newTestRegistry() *problems.Registry {
	registry := problems.NewRegistry()
	registry.Load(&problems.Config{
		Puzzles: []problems.Problem{
			{
				ID: "p1",
				TestCases: []problems.TestCaseGroup{
					{
						Open:   []problems.TestCase{{ID: "o1", Input: "1"}},
						Hidden: []problems.TestCase{{ID: "h1", Input: "2", ExpectedOutput: strPtr("2")}},
					},
				},
			},
			{ID: "empty"},
		},
		Students: []problems.Student{{ID: "alice", Name: "Alice"}},
	})
	return registry
}

func newTestService(t *testing.T, submitter Submitter, scores scoreboard.Repository, bc *fakeBroadcaster) (*Service, *archive.Store) {
	t.Helper()
	store := archive.NewStore(t.TempDir())
	registry := newTestRegistry()
	resolver := problems.NewResolver(registry)

	var broadcaster realtime.Broadcaster
	if bc != nil {
		broadcaster = bc
	}
	svc, err := NewService(store, resolver, registry, submitter, scores, broadcaster, Config{
		LanguageID: 71,
		Limits:     judge0.Limits{CPUTimeMs: 10000, WallTimeMs: 15000, MemoryKB: 102400},
	})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc, store
}

func acceptedAll(cases []problems.TestCase) []judge0.ExecutionRecord {
	records := make([]judge0.ExecutionRecord, len(cases))
	for i, tc := range cases {
		out := tc.Input
		records[i] = judge0.ExecutionRecord{
			Stdout: &out,
			Status: &judge0.Status{ID: judge0.StatusAccepted, Description: "Accepted"},
		}
	}
	return records
}

func TestJudgeHappyPath(t *testing.T) {
	t.Parallel()

	submitter := &fakeSubmitter{respond: acceptedAll}
	svc, store := newTestService(t, submitter, nil, nil)
	writeSubmission(t, store, "alice", map[string]string{"p1.py": "print(input())\n"})

	verdicts, err := svc.Judge(context.Background(), "alice", "p1")
	if err != nil {
		t.Fatalf("judge failed: %v", err)
	}
	if len(verdicts) != 2 {
		t.Fatalf("expected 2 verdicts, got %d", len(verdicts))
	}
	if verdicts[0].TestCaseID != "o1" || verdicts[1].TestCaseID != "h1" {
		t.Fatalf("verdicts out of order: %+v", verdicts)
	}
	if !verdicts[0].Correct || !verdicts[1].Correct {
		t.Fatalf("expected all correct: %+v", verdicts)
	}
	if submitter.gotSource != "print(input())\n" {
		t.Fatalf("source not forwarded: %q", submitter.gotSource)
	}
	if submitter.gotLang != 71 || submitter.gotLimits.WallTimeMs != 15000 {
		t.Fatalf("config not forwarded: lang=%d limits=%+v", submitter.gotLang, submitter.gotLimits)
	}
}

func TestJudgeNoTestCasesConfigured(t *testing.T) {
	t.Parallel()

	svc, store := newTestService(t, &fakeSubmitter{respond: acceptedAll}, nil, nil)
	writeSubmission(t, store, "alice", map[string]string{"empty.py": "pass\n"})

	_, err := svc.Judge(context.Background(), "alice", "empty")
	if !appErr.Is(err, appErr.NoTestCasesConfigured) {
		t.Fatalf("expected NoTestCasesConfigured, got %v", err)
	}
}

func TestJudgeMissingArchive(t *testing.T) {
	t.Parallel()

	svc, _ := newTestService(t, &fakeSubmitter{respond: acceptedAll}, nil, nil)
	_, err := svc.Judge(context.Background(), "ghost", "p1")
	if !appErr.Is(err, appErr.SubmissionArchiveMissing) {
		t.Fatalf("expected SubmissionArchiveMissing, got %v", err)
	}
}

func TestJudgeMissingEntry(t *testing.T) {
	t.Parallel()

	svc, store := newTestService(t, &fakeSubmitter{respond: acceptedAll}, nil, nil)
	writeSubmission(t, store, "alice", map[string]string{"wrong.py": "pass\n"})

	_, err := svc.Judge(context.Background(), "alice", "p1")
	if !appErr.Is(err, appErr.SubmissionEntryNotFound) {
		t.Fatalf("expected SubmissionEntryNotFound, got %v", err)
	}
}

func TestJudgeProviderFailureBecomesVerdicts(t *testing.T) {
	t.Parallel()

	submitter := &fakeSubmitter{failureMsg: "connect ECONNREFUSED"}
	svc, store := newTestService(t, submitter, nil, nil)
	writeSubmission(t, store, "alice", map[string]string{"p1.py": "pass\n"})

	verdicts, err := svc.Judge(context.Background(), "alice", "p1")
	if err != nil {
		t.Fatalf("provider failure must not surface as error, got %v", err)
	}
	if len(verdicts) != 2 {
		t.Fatalf("expected one verdict per test case, got %d", len(verdicts))
	}
	for _, v := range verdicts {
		if v.Correct {
			t.Fatalf("expected incorrect verdicts: %+v", v)
		}
		if v.UserOutput != "connect ECONNREFUSED" {
			t.Fatalf("expected failure message as output, got %q", v.UserOutput)
		}
	}
}

func TestJudgeAndRecordPersistsAndBroadcasts(t *testing.T) {
	t.Parallel()

	scores := newFakeScores()
	bc := &fakeBroadcaster{}
	svc, store := newTestService(t, &fakeSubmitter{respond: acceptedAll}, scores, bc)
	writeSubmission(t, store, "alice", map[string]string{"p1.py": "pass\n"})

	if _, err := svc.JudgeAndRecord(context.Background(), "alice", "p1"); err != nil {
		t.Fatalf("judge and record failed: %v", err)
	}

	if scores.ensured["alice"] != "Alice" {
		t.Fatalf("student row not ensured with roster name: %+v", scores.ensured)
	}
	recorded := scores.scores["alice"]
	if len(recorded) != 1 || recorded[0].problemID != "p1" || len(recorded[0].verdicts) != 2 {
		t.Fatalf("unexpected recorded scores: %+v", recorded)
	}
	if len(bc.events) != 1 || bc.events[0] != "scoreUpdate" {
		t.Fatalf("expected one scoreUpdate event, got %v", bc.events)
	}
}

func TestJudgeAllGradesEveryPairing(t *testing.T) {
	t.Parallel()

	scores := newFakeScores()
	svc, store := newTestService(t, &fakeSubmitter{respond: acceptedAll}, scores, nil)
	writeSubmission(t, store, "alice", map[string]string{"p1.py": "pass\n"})
	writeSubmission(t, store, "bob", map[string]string{"p1.py": "pass\n"})

	summary, err := svc.JudgeAll(context.Background())
	if err != nil {
		t.Fatalf("judge all failed: %v", err)
	}
	if summary.Students != 2 || summary.Problems != 2 {
		t.Fatalf("unexpected summary scope: %+v", summary)
	}
	// Problem "empty" has no test cases, so each student fails one pairing.
	if summary.Judged != 2 || summary.Failed != 2 {
		t.Fatalf("unexpected summary counts: %+v", summary)
	}
	if len(scores.scores["alice"]) != 1 || len(scores.scores["bob"]) != 1 {
		t.Fatalf("expected one recorded problem per student: %+v", scores.scores)
	}
}
