package errors

// ErrorCode represents a machine-readable error code.
type ErrorCode string

// Audio request errors
const (
	// ErrCodeMissingAudio indicates no audio payload was found in the request.
	ErrCodeMissingAudio ErrorCode = "MISSING_AUDIO"
	// ErrCodeMalformedEncoding indicates the payload is not valid base64.
	ErrCodeMalformedEncoding ErrorCode = "MALFORMED_ENCODING"
	// ErrCodeAudioTooLarge indicates the decoded audio exceeds the size limit.
	ErrCodeAudioTooLarge ErrorCode = "AUDIO_TOO_LARGE"
	// ErrCodeAudioTooSmall indicates the decoded audio is below the size floor.
	ErrCodeAudioTooSmall ErrorCode = "AUDIO_TOO_SMALL"
	// ErrCodeUnsupportedModel indicates the requested model is not served.
	ErrCodeUnsupportedModel ErrorCode = "UNSUPPORTED_MODEL"
)

// Transport errors
const (
	ErrCodeInvalidInput    ErrorCode = "INVALID_INPUT"
	ErrCodeInvalidHost     ErrorCode = "INVALID_HOST"
	ErrCodePayloadTooLarge ErrorCode = "PAYLOAD_TOO_LARGE"
	ErrCodeNotFound        ErrorCode = "NOT_FOUND"
)

// Processing errors
const (
	// ErrCodeScratchWriteFailed indicates the audio could not be staged on disk.
	ErrCodeScratchWriteFailed ErrorCode = "SCRATCH_WRITE_FAILED"
	// ErrCodeEngineLoadFailed indicates a transcription engine failed to load.
	ErrCodeEngineLoadFailed ErrorCode = "ENGINE_LOAD_FAILED"
	// ErrCodeTranscriptionFailed indicates the engine failed during inference.
	ErrCodeTranscriptionFailed ErrorCode = "TRANSCRIPTION_FAILED"
)

// Availability errors (retryable)
const (
	ErrCodeServiceUnavailable ErrorCode = "SERVICE_UNAVAILABLE"
	ErrCodeConnectionFailed   ErrorCode = "CONNECTION_FAILED"
	ErrCodeTimeout            ErrorCode = "TIMEOUT"
	ErrCodeExternalService    ErrorCode = "EXTERNAL_SERVICE_ERROR"
	ErrCodeInternal           ErrorCode = "INTERNAL_ERROR"
)

var retryableCodes = map[ErrorCode]bool{
	ErrCodeServiceUnavailable: true,
	ErrCodeConnectionFailed:   true,
	ErrCodeTimeout:            true,
	ErrCodeExternalService:    true,
	ErrCodeEngineLoadFailed:   true,
	ErrCodeInternal:           false,
}

// IsRetryableCode returns true if the error code indicates a retryable error.
func IsRetryableCode(code ErrorCode) bool {
	return retryableCodes[code]
}
