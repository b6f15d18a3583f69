package errors

// ErrorCode represents a unique error identifier
type ErrorCode int

// Error code ranges allocation:
// 10000-10999: System & Common errors
// 11000-11999: Submission archive errors
// 12000-12999: Problem configuration errors
// 13000-13999: Judging pipeline errors
// 14000-14999: Scoreboard errors
// 15000-15999: Action log & Alert errors
// 16000-16999: Admin & Auth errors

const (
	// ========== System & Common Errors (10000-10999) ==========

	// Success
	Success ErrorCode = 10000

	// Generic errors (10000-10099)
	InternalServerError ErrorCode = 10001
	InvalidParams       ErrorCode = 10002
	NotFound            ErrorCode = 10003
	Unauthorized        ErrorCode = 10004
	Forbidden           ErrorCode = 10005
	ServiceUnavailable  ErrorCode = 10006
	Timeout             ErrorCode = 10007

	// Database errors (10100-10199)
	DatabaseError  ErrorCode = 10100
	RecordNotFound ErrorCode = 10101

	// Cache errors (10200-10299)
	CacheError ErrorCode = 10200

	// Validation errors (10300-10399)
	ValidationFailed   ErrorCode = 10300
	RequiredFieldEmpty ErrorCode = 10301

	// ========== Submission Archive Errors (11000-11999) ==========

	ArchiveReadFailed        ErrorCode = 11000
	SubmissionEntryNotFound  ErrorCode = 11001
	ArchiveDecodeFailed      ErrorCode = 11002
	UploadTooLarge           ErrorCode = 11100
	UploadStoreFailed        ErrorCode = 11101
	SubmissionArchiveMissing ErrorCode = 11102

	// ========== Problem Configuration Errors (12000-12999) ==========

	ConfigNotLoaded       ErrorCode = 12000
	ConfigInvalid         ErrorCode = 12001
	ProblemNotFound       ErrorCode = 12100
	NoTestCasesConfigured ErrorCode = 12101
	StudentNotRegistered  ErrorCode = 12200
	SettingNotFound       ErrorCode = 12300
	SettingsReadFailed    ErrorCode = 12301
	SettingsWriteFailed   ErrorCode = 12302

	// ========== Judging Pipeline Errors (13000-13999) ==========

	JudgeRequestFailed    ErrorCode = 13000
	JudgeResponseInvalid  ErrorCode = 13001
	JudgeBatchEmpty       ErrorCode = 13002
	JudgeServiceUnhealthy ErrorCode = 13003

	// ========== Scoreboard Errors (14000-14999) ==========

	ScoreboardNotFound ErrorCode = 14000
	ScoreWriteFailed   ErrorCode = 14001

	// ========== Action Log & Alert Errors (15000-15999) ==========

	ActionLogWriteFailed ErrorCode = 15000
	ActionLogQueryFailed ErrorCode = 15001
	AlertNotFound        ErrorCode = 15100
	AlertCheckFailed     ErrorCode = 15101
	AlertWriteFailed     ErrorCode = 15102

	// ========== Admin & Auth Errors (16000-16999) ==========

	AdminPasswordIncorrect ErrorCode = 16000
	TokenExpired           ErrorCode = 16001
	TokenInvalid           ErrorCode = 16002
	TokenGenerationFailed  ErrorCode = 16003
)

// errorMessages maps error codes to their default English messages
var errorMessages = map[ErrorCode]string{
	// System & Common
	Success:             "Success",
	InternalServerError: "Internal server error",
	InvalidParams:       "Invalid parameters",
	NotFound:            "Resource not found",
	Unauthorized:        "Unauthorized access",
	Forbidden:           "Access forbidden",
	ServiceUnavailable:  "Service temporarily unavailable",
	Timeout:             "Request timeout",

	// Database
	DatabaseError:  "Database operation failed",
	RecordNotFound: "Record not found in database",

	// Cache
	CacheError: "Cache operation failed",

	// Validation
	ValidationFailed:   "Validation failed",
	RequiredFieldEmpty: "Required field is empty",

	// Submission archive
	ArchiveReadFailed:        "Failed to read submission archive",
	SubmissionEntryNotFound:  "Requested file not found in submission archive",
	ArchiveDecodeFailed:      "Failed to decode archive entry as text",
	UploadTooLarge:           "Uploaded archive is too large",
	UploadStoreFailed:        "Failed to store uploaded archive",
	SubmissionArchiveMissing: "Submission archive not found for student",

	// Problem configuration
	ConfigNotLoaded:       "System configuration is not loaded",
	ConfigInvalid:         "System configuration document is invalid",
	ProblemNotFound:       "Problem not found in configuration",
	NoTestCasesConfigured: "No test cases configured for problem",
	StudentNotRegistered:  "Student is not on the roster",
	SettingNotFound:       "System setting not found",
	SettingsReadFailed:    "Failed to read system settings",
	SettingsWriteFailed:   "Failed to write system settings",

	// Judging pipeline
	JudgeRequestFailed:    "Judge service request failed",
	JudgeResponseInvalid:  "Judge service returned an invalid response",
	JudgeBatchEmpty:       "Judge batch contains no test cases",
	JudgeServiceUnhealthy: "Judge service is unavailable",

	// Scoreboard
	ScoreboardNotFound: "Scoreboard entry not found",
	ScoreWriteFailed:   "Failed to record scores",

	// Action log & Alerts
	ActionLogWriteFailed: "Failed to record user action",
	ActionLogQueryFailed: "Failed to query user action logs",
	AlertNotFound:        "Alert not found",
	AlertCheckFailed:     "Security alert check failed",
	AlertWriteFailed:     "Failed to store alert",

	// Admin & Auth
	AdminPasswordIncorrect: "Incorrect admin password",
	TokenExpired:           "Token has expired",
	TokenInvalid:           "Invalid token",
	TokenGenerationFailed:  "Failed to generate token",
}

// Message returns the default message for the error code
func (c ErrorCode) Message() string {
	if msg, ok := errorMessages[c]; ok {
		return msg
	}
	return "Unknown error"
}

// HTTPStatus returns the recommended HTTP status code for the error code
func (c ErrorCode) HTTPStatus() int {
	switch {
	case c == Success:
		return 200
	case c == Unauthorized, c == TokenExpired, c == TokenInvalid, c == AdminPasswordIncorrect:
		return 401
	case c == Forbidden:
		return 403
	case c == NotFound, c == RecordNotFound, c == ProblemNotFound,
		c == SubmissionEntryNotFound, c == SubmissionArchiveMissing,
		c == ScoreboardNotFound, c == AlertNotFound, c == SettingNotFound:
		return 404
	case c == UploadTooLarge:
		return 413
	case c == ServiceUnavailable, c == JudgeServiceUnhealthy:
		return 503
	case c >= 10300 && c < 10400: // Validation errors
		return 400
	case c == InvalidParams, c == NoTestCasesConfigured, c == StudentNotRegistered:
		return 400
	default:
		return 500
	}
}
