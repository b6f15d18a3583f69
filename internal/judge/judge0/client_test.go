package judge0

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"eduoj/internal/problems"
	appErr "eduoj/pkg/errors"
)

func strPtr(s string) *string { return &s }

func threeCases() []problems.TestCase {
	return []problems.TestCase{
		{ID: "t1", Input: "1", ExpectedOutput: strPtr("1")},
		{ID: "t2", Input: "2", ExpectedOutput: strPtr("2")},
		{ID: "t3", Input: "3"},
	}
}

func TestSubmitBatchSendsOneSubmissionPerCase(t *testing.T) {
	t.Parallel()

	var gotPath, gotQuery string
	var gotBody batchRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.RawQuery
		if err := json.NewDecoder(r.Body).Decode(&gotBody); err != nil {
			t.Errorf("decode request body: %v", err)
		}
		records := []ExecutionRecord{
			{Token: "a", Stdout: strPtr("1"), Status: &Status{ID: 3, Description: "Accepted"}},
			{Token: "b", Stdout: strPtr("2"), Status: &Status{ID: 3, Description: "Accepted"}},
			{Token: "c", Stdout: strPtr("3"), Status: &Status{ID: 3, Description: "Accepted"}},
		}
		_ = json.NewEncoder(w).Encode(records)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	limits := Limits{CPUTimeMs: 10000, WallTimeMs: 15000, MemoryKB: 102400}
	records, err := client.SubmitBatch(context.Background(), "print(input())", threeCases(), 71, limits)
	if err != nil {
		t.Fatalf("submit failed: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}

	if gotPath != "/submissions" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotQuery != "base64_encoded=false&wait=true" {
		t.Fatalf("unexpected query %q", gotQuery)
	}
	if len(gotBody.Submissions) != 3 {
		t.Fatalf("expected 3 submissions, got %d", len(gotBody.Submissions))
	}

	first := gotBody.Submissions[0]
	if first.LanguageID != 71 || first.SourceCode != "print(input())" || first.Stdin != "1" {
		t.Fatalf("unexpected first submission: %+v", first)
	}
	if first.ExpectedOutput == nil || *first.ExpectedOutput != "1" {
		t.Fatalf("expected output not forwarded: %+v", first.ExpectedOutput)
	}
	if first.CPUTimeLimit == nil || *first.CPUTimeLimit != 10 {
		t.Fatalf("cpu limit not converted to seconds: %+v", first.CPUTimeLimit)
	}
	if first.WallTimeLimit == nil || *first.WallTimeLimit != 15 {
		t.Fatalf("wall limit not converted to seconds: %+v", first.WallTimeLimit)
	}
	if first.MemoryLimit == nil || *first.MemoryLimit != 102400 {
		t.Fatalf("memory limit not forwarded: %+v", first.MemoryLimit)
	}

	if gotBody.Submissions[2].ExpectedOutput != nil {
		t.Fatalf("open case must not carry expected output")
	}
}

func TestSubmitBatchNon2xxYieldsSyntheticRecords(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("queue is full"))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	records, err := client.SubmitBatch(context.Background(), "x", threeCases(), 71, Limits{})
	if err != nil {
		t.Fatalf("request failure must not surface as error, got %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 synthetic records, got %d", len(records))
	}
	for i, rec := range records {
		if rec.Status == nil || rec.Status.ID == StatusAccepted {
			t.Fatalf("record %d is not a failure record: %+v", i, rec)
		}
		if rec.Status.Description != "queue is full" {
			t.Fatalf("record %d: expected body message, got %q", i, rec.Status.Description)
		}
	}
}

func TestSubmitBatchTransportErrorYieldsSyntheticRecords(t *testing.T) {
	t.Parallel()

	// A server that is immediately closed guarantees a connection error.
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()

	client := NewClient(server.URL)
	records, err := client.SubmitBatch(context.Background(), "x", threeCases(), 71, Limits{})
	if err != nil {
		t.Fatalf("transport failure must not surface as error, got %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 synthetic records, got %d", len(records))
	}
	if records[0].Status == nil || records[0].Status.Description == "" {
		t.Fatalf("synthetic record missing error message: %+v", records[0])
	}
}

func TestSubmitBatchMalformedResponseYieldsSyntheticRecords(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("this is not json"))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	records, err := client.SubmitBatch(context.Background(), "x", threeCases(), 71, Limits{})
	if err != nil {
		t.Fatalf("malformed response must not surface as error, got %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 synthetic records, got %d", len(records))
	}
	if !strings.Contains(records[0].Status.Description, "decode judge response failed") {
		t.Fatalf("unexpected message: %q", records[0].Status.Description)
	}
}

func TestSubmitBatchCountMismatchYieldsSyntheticRecords(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		records := []ExecutionRecord{{Token: "only-one", Status: &Status{ID: 3}}}
		_ = json.NewEncoder(w).Encode(records)
	}))
	defer server.Close()

	client := NewClient(server.URL)
	records, err := client.SubmitBatch(context.Background(), "x", threeCases(), 71, Limits{})
	if err != nil {
		t.Fatalf("count mismatch must not surface as error, got %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 synthetic records, got %d", len(records))
	}
	if !strings.Contains(records[0].Status.Description, "returned 1 results for 3 submissions") {
		t.Fatalf("unexpected message: %q", records[0].Status.Description)
	}
}

func TestSubmitBatchRejectsEmptyCaseList(t *testing.T) {
	t.Parallel()

	client := NewClient("http://localhost:0")
	_, err := client.SubmitBatch(context.Background(), "x", nil, 71, Limits{})
	if !appErr.Is(err, appErr.NoTestCasesConfigured) {
		t.Fatalf("expected NoTestCasesConfigured, got %v", err)
	}
}

func TestRequestTimeoutDerivation(t *testing.T) {
	t.Parallel()

	if got := requestTimeout(Limits{}); got != defaultRequestTimeout {
		t.Fatalf("expected default timeout, got %v", got)
	}
	want := 15*time.Second + requestTimeoutMargin
	if got := requestTimeout(Limits{WallTimeMs: 15000}); got != want {
		t.Fatalf("expected %v, got %v", want, got)
	}
}
