package judge0

// Judge0 status ids this client cares about. Any status other than Accepted
// is treated as an error outcome by the verdict normalizer.
const (
	StatusAccepted      = 3
	StatusInternalError = 13
)

// Limits holds the sandbox resource limits attached to every submission.
// Values of zero or below mean "do not send the limit".
type Limits struct {
	CPUTimeMs  int
	WallTimeMs int
	MemoryKB   int
}

// Submission is one per-test-case execution request in a batch.
// Judge0 expects time limits in seconds and the memory limit in KB.
type Submission struct {
	LanguageID     int      `json:"language_id"`
	SourceCode     string   `json:"source_code"`
	Stdin          string   `json:"stdin"`
	ExpectedOutput *string  `json:"expected_output,omitempty"`
	CPUTimeLimit   *float64 `json:"cpu_time_limit,omitempty"`
	WallTimeLimit  *float64 `json:"wall_time_limit,omitempty"`
	MemoryLimit    *int     `json:"memory_limit,omitempty"`
}

// batchRequest is the wire envelope for a batch submission.
type batchRequest struct {
	Submissions []Submission `json:"submissions"`
}

// Status is the provider's per-submission status.
type Status struct {
	ID          int    `json:"id"`
	Description string `json:"description"`
}

// ExecutionRecord is the provider's per-test-case result. Pointer fields are
// null in the provider response when the stage never produced output.
type ExecutionRecord struct {
	Token         string  `json:"token"`
	Stdout        *string `json:"stdout"`
	Stderr        *string `json:"stderr"`
	CompileOutput *string `json:"compile_output"`
	Status        *Status `json:"status"`
	Time          string  `json:"time,omitempty"`
	Memory        float64 `json:"memory,omitempty"`
}

// NewFailureRecord builds a synthetic record for a request-layer failure.
// The message rides in the status description, which is where the verdict
// normalizer looks once compile output and stderr are empty.
func NewFailureRecord(message string) ExecutionRecord {
	return ExecutionRecord{
		Status: &Status{
			ID:          StatusInternalError,
			Description: message,
		},
	}
}
