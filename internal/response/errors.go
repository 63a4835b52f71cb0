package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrTokenExpired       ErrCode = "TOKEN_EXPIRED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden         ErrCode = "FORBIDDEN"
	ErrNotAttemptOwner   ErrCode = "NOT_ATTEMPT_OWNER"
	ErrProctorAccessOnly ErrCode = "PROCTOR_ACCESS_ONLY"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound         ErrCode = "NOT_FOUND"
	ErrExamNotFound     ErrCode = "EXAM_NOT_FOUND"
	ErrAttemptNotFound  ErrCode = "ATTEMPT_NOT_FOUND"
	ErrSnapshotNotFound ErrCode = "SNAPSHOT_NOT_FOUND"

	// ─── Session state ─────────────────────────────────────────────────
	ErrExamNotActive        ErrCode = "EXAM_NOT_ACTIVE"
	ErrCategoryMismatch     ErrCode = "CATEGORY_MISMATCH"
	ErrAttemptsExhausted    ErrCode = "ATTEMPTS_EXHAUSTED"
	ErrAttemptTerminal      ErrCode = "ATTEMPT_TERMINAL"
	ErrSessionTokenMismatch ErrCode = "SESSION_TOKEN_MISMATCH"
	ErrTimeExpired          ErrCode = "TIME_EXPIRED"

	// ─── Media ─────────────────────────────────────────────────────────
	ErrFileRequired         ErrCode = "FILE_REQUIRED"
	ErrUnsupportedFile      ErrCode = "UNSUPPORTED_FILE_TYPE"
	ErrFileTooLarge         ErrCode = "FILE_TOO_LARGE"
	ErrInvalidRecordingKind ErrCode = "INVALID_RECORDING_KIND"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Email or password is incorrect."
	case ErrTokenRequired:
		return "An authentication token is required."
	case ErrTokenInvalid:
		return "The authentication token is invalid."
	case ErrTokenExpired:
		return "The authentication token has expired."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrNotAttemptOwner:
		return "This attempt belongs to another user."
	case ErrProctorAccessOnly:
		return "This resource is restricted to proctors."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "The ID format is invalid."
	case ErrInvalidPayload:
		return "The request payload is invalid."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrExamNotFound:
		return "The exam could not be found."
	case ErrAttemptNotFound:
		return "The attempt could not be found."
	case ErrSnapshotNotFound:
		return "No recent snapshot is available for this attempt."

	// ─── Session state ─────────────────────────────────────────────────
	case ErrExamNotActive:
		return "The exam is not open at this time."
	case ErrCategoryMismatch:
		return "You are not eligible for this exam."
	case ErrAttemptsExhausted:
		return "You have used all allowed attempts for this exam."
	case ErrAttemptTerminal:
		return "This attempt has already been finalized."
	case ErrSessionTokenMismatch:
		return "The session token does not match this attempt."
	case ErrTimeExpired:
		return "Time is up. The attempt has been marked as expired."

	// ─── Media ─────────────────────────────────────────────────────────
	case ErrFileRequired:
		return "A file upload is required."
	case ErrUnsupportedFile:
		return "The file type is not supported."
	case ErrFileTooLarge:
		return "The file exceeds the size limit."
	case ErrInvalidRecordingKind:
		return "Recording kind must be camera or screen."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
