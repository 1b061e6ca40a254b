package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// Authentication
	ErrTokenRequired ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid  ErrCode = "TOKEN_INVALID"

	// Authorization
	ErrPermissionDenied    ErrCode = "PERMISSION_DENIED"
	ErrCandidateAccessOnly ErrCode = "CANDIDATE_ACCESS_ONLY"
	ErrAdminAccessOnly     ErrCode = "ADMIN_ACCESS_ONLY"
	ErrNotSessionOwner     ErrCode = "NOT_SESSION_OWNER"

	// Validation
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// Resources
	ErrNotFound ErrCode = "NOT_FOUND"

	// Exam and session
	ErrExamNotAvailable  ErrCode = "EXAM_NOT_AVAILABLE"
	ErrNoQuestions       ErrCode = "NO_QUESTIONS"
	ErrSessionNotFound   ErrCode = "SESSION_NOT_FOUND"
	ErrSessionNotDone    ErrCode = "SESSION_NOT_FINALIZED"
	ErrUnknownFormat     ErrCode = "UNKNOWN_REPORT_FORMAT"
	ErrReportUnavailable ErrCode = "REPORT_UNAVAILABLE"

	// Rate limiting
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// Server
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

var messages = map[ErrCode]string{
	ErrTokenRequired: "Authentication token is required.",
	ErrTokenInvalid:  "Authentication token is invalid or expired.",

	ErrPermissionDenied:    "Permission denied.",
	ErrCandidateAccessOnly: "This resource is limited to candidates.",
	ErrAdminAccessOnly:     "This resource is limited to administrators.",
	ErrNotSessionOwner:     "This exam session belongs to someone else.",

	ErrValidation:     "Validation failed. Please check your input.",
	ErrInvalidID:      "Invalid ID format.",
	ErrInvalidPayload: "Invalid request payload.",

	ErrNotFound: "Resource not found.",

	ErrExamNotAvailable:  "This exam is not available.",
	ErrNoQuestions:       "This exam has no questions.",
	ErrSessionNotFound:   "Exam session not found.",
	ErrSessionNotDone:    "The exam session has not been finalized yet.",
	ErrUnknownFormat:     "Unsupported report format. Use pdf or xlsx.",
	ErrReportUnavailable: "The report could not be generated. Please try again.",

	ErrRateLimitExceeded: "Too many requests. Please try again later.",

	ErrInternal: "Internal server error.",
}

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	if msg, ok := messages[code]; ok {
		return msg
	}
	return "An unexpected error occurred."
}
