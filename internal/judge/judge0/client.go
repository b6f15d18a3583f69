package judge0

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"eduoj/internal/problems"
	appErr "eduoj/pkg/errors"
	"eduoj/pkg/utils/logger"

	"go.uber.org/zap"
)

const (
	// defaultRequestTimeout bounds a batch request when no wall-time limit
	// is configured.
	defaultRequestTimeout = 30 * time.Second

	// requestTimeoutMargin is added on top of the configured wall-time limit
	// so the sandbox, not this client, is the one that kills slow code.
	requestTimeoutMargin = 5 * time.Second

	submissionsPath = "/submissions?base64_encoded=false&wait=true"
)

// Client submits batches of test-case executions to a Judge0-compatible
// service and waits synchronously for the results.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a client against the given service base URL, for example
// http://localhost:2358.
func NewClient(baseURL string) *Client {
	return NewClientWithHTTPClient(baseURL, &http.Client{})
}

// NewClientWithHTTPClient creates a client with a caller-supplied HTTP
// client. Used by tests; the per-request deadline still comes from the
// resource limits, not from the HTTP client.
func NewClientWithHTTPClient(baseURL string, httpClient *http.Client) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: httpClient,
	}
}

// SubmitBatch runs the given source code against every test case in one
// batch request and returns exactly one record per test case, in input order.
//
// A request-layer failure (network error, non-2xx status, malformed response
// body) never surfaces as an error: it is converted into one synthetic
// failure record per test case carrying the extracted failure message, so
// downstream verdict handling stays uniform.
func (c *Client) SubmitBatch(ctx context.Context, sourceCode string, testCases []problems.TestCase, languageID int, limits Limits) ([]ExecutionRecord, error) {
	if len(testCases) == 0 {
		return nil, appErr.New(appErr.NoTestCasesConfigured)
	}

	body, err := json.Marshal(batchRequest{Submissions: buildSubmissions(sourceCode, testCases, languageID, limits)})
	if err != nil {
		return nil, appErr.Wrap(err, appErr.JudgeRequestFailed)
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout(limits))
	defer cancel()

	records, failure := c.post(ctx, body)
	if failure != "" {
		logger.Warn(ctx, "judge batch request failed",
			zap.String("base_url", c.baseURL),
			zap.Int("test_cases", len(testCases)),
			zap.String("reason", failure),
		)
		return uniformFailure(len(testCases), failure), nil
	}
	if len(records) != len(testCases) {
		msg := fmt.Sprintf("judge service returned %d results for %d submissions", len(records), len(testCases))
		logger.Warn(ctx, "judge batch result count mismatch",
			zap.String("base_url", c.baseURL),
			zap.Int("expected", len(testCases)),
			zap.Int("got", len(records)),
		)
		return uniformFailure(len(testCases), msg), nil
	}
	return records, nil
}

// post performs the batch request. On success it returns the decoded records;
// on any request-layer failure it returns a non-empty failure message built
// from the response body when one exists, the error text otherwise.
func (c *Client) post(ctx context.Context, body []byte) ([]ExecutionRecord, string) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+submissionsPath, bytes.NewReader(body))
	if err != nil {
		return nil, err.Error()
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err.Error()
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, readErr := io.ReadAll(resp.Body)
	if readErr != nil {
		return nil, readErr.Error()
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		if msg := strings.TrimSpace(string(respBody)); msg != "" {
			return nil, msg
		}
		return nil, fmt.Sprintf("judge service returned status %d", resp.StatusCode)
	}

	var records []ExecutionRecord
	if err := json.Unmarshal(respBody, &records); err != nil {
		return nil, fmt.Sprintf("decode judge response failed: %s", err.Error())
	}
	return records, ""
}

// buildSubmissions maps test cases onto provider submissions. Judge0 takes
// time limits in seconds, so the millisecond limits are converted here.
func buildSubmissions(sourceCode string, testCases []problems.TestCase, languageID int, limits Limits) []Submission {
	subs := make([]Submission, 0, len(testCases))
	for _, tc := range testCases {
		sub := Submission{
			LanguageID:     languageID,
			SourceCode:     sourceCode,
			Stdin:          tc.Input,
			ExpectedOutput: tc.ExpectedOutput,
		}
		if limits.CPUTimeMs > 0 {
			cpu := float64(limits.CPUTimeMs) / 1000
			sub.CPUTimeLimit = &cpu
		}
		if limits.WallTimeMs > 0 {
			wall := float64(limits.WallTimeMs) / 1000
			sub.WallTimeLimit = &wall
		}
		if limits.MemoryKB > 0 {
			mem := limits.MemoryKB
			sub.MemoryLimit = &mem
		}
		subs = append(subs, sub)
	}
	return subs
}

// requestTimeout derives the request deadline from the wall-time limit. The
// whole batch runs under one request, so the limit is a floor, not a bound.
func requestTimeout(limits Limits) time.Duration {
	if limits.WallTimeMs <= 0 {
		return defaultRequestTimeout
	}
	return time.Duration(limits.WallTimeMs)*time.Millisecond + requestTimeoutMargin
}

// uniformFailure fans one failure message out to every test case slot.
func uniformFailure(n int, message string) []ExecutionRecord {
	records := make([]ExecutionRecord, n)
	for i := range records {
		records[i] = NewFailureRecord(message)
	}
	return records
}
