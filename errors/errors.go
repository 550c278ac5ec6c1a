package errors

import (
	"fmt"
	"net/http"
)

// AppError is the error type carried from the core to the HTTP boundary.
type AppError struct {
	// Code is a machine-readable error code.
	Code ErrorCode `json:"code"`
	// Message is safe to show to the caller.
	Message string `json:"message"`
	// Retryable indicates if the request can be retried unchanged.
	Retryable bool `json:"retryable"`
	// HTTPStatus is the status code the transport should respond with.
	HTTPStatus int `json:"-"`
	// Details contains additional context for the error.
	Details map[string]any `json:"details,omitempty"`
	// Cause is logged but never serialized.
	Cause error `json:"-"`
}

// Error returns the string representation of the error.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (cause: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause of the error.
func (e *AppError) Unwrap() error { return e.Cause }

// WithCause sets the underlying cause of the error and returns the receiver.
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetails merges the provided details into the error and returns the receiver.
func (e *AppError) WithDetails(details map[string]any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any, len(details))
	}
	for k, v := range details {
		e.Details[k] = v
	}
	return e
}

// WithDetail sets a single detail key-value pair and returns the receiver.
func (e *AppError) WithDetail(key string, value any) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]any)
	}
	e.Details[key] = value
	return e
}

// IsClientError reports whether the error was caused by the caller.
func (e *AppError) IsClientError() bool {
	return e.HTTPStatus >= 400 && e.HTTPStatus < 500
}

// New creates a new AppError with automatic retryable detection.
func New(code ErrorCode, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Retryable:  IsRetryableCode(code),
	}
}

// --- Request errors ---

// MissingAudio reports a request that carries no audio payload.
func MissingAudio() *AppError {
	return New(ErrCodeMissingAudio, "Audio data is required", http.StatusBadRequest)
}

// MalformedEncoding reports an audio payload that is not valid base64.
func MalformedEncoding(cause error) *AppError {
	return New(ErrCodeMalformedEncoding, "Invalid base64 encoding", http.StatusBadRequest).WithCause(cause)
}

// AudioTooLarge reports a decoded payload above the configured limit.
func AudioTooLarge(limitMB int, size int) *AppError {
	return New(ErrCodeAudioTooLarge,
		fmt.Sprintf("Audio file too large. Maximum size is %dMB", limitMB),
		http.StatusBadRequest,
	).WithDetails(map[string]any{"max_size_mb": limitMB, "size_bytes": size})
}

// AudioTooSmall reports a decoded payload below the minimum floor.
func AudioTooSmall(minBytes int, size int) *AppError {
	return New(ErrCodeAudioTooSmall,
		fmt.Sprintf("Audio file too small. Minimum size is %dKB", minBytes/1024),
		http.StatusBadRequest,
	).WithDetails(map[string]any{"min_size_bytes": minBytes, "size_bytes": size})
}

// UnsupportedModel reports a model identifier outside the supported set.
func UnsupportedModel(model string, supported []string) *AppError {
	return New(ErrCodeUnsupportedModel,
		fmt.Sprintf("Unsupported model: %s", model),
		http.StatusBadRequest,
	).WithDetails(map[string]any{"model": model, "supported": supported})
}

// InvalidInput creates a new AppError for invalid input.
func InvalidInput(field, reason string) *AppError {
	details := make(map[string]any)
	if field != "" {
		details["field"] = field
	}
	return &AppError{
		Code: ErrCodeInvalidInput, Message: fmt.Sprintf("Invalid input: %s", reason),
		HTTPStatus: http.StatusBadRequest, Retryable: false, Details: details,
	}
}

// Validation creates a new AppError for validation errors.
func Validation(message string) *AppError {
	return &AppError{
		Code: ErrCodeInvalidInput, Message: message,
		HTTPStatus: http.StatusBadRequest, Retryable: false,
	}
}

// InvalidHost rejects a request whose Host header is not allow-listed.
func InvalidHost(host string) *AppError {
	return New(ErrCodeInvalidHost, "Invalid host header", http.StatusBadRequest).
		WithDetail("host", host)
}

// PayloadTooLarge rejects a request body above the transport limit.
func PayloadTooLarge(limit int64) *AppError {
	return New(ErrCodePayloadTooLarge,
		fmt.Sprintf("Request body exceeds %d bytes", limit),
		http.StatusRequestEntityTooLarge,
	).WithDetail("max_bytes", limit)
}

// NotFound creates a new AppError for a resource that was not found.
func NotFound(resource, id string) *AppError {
	details := map[string]any{"resource": resource}
	if id != "" {
		details["id"] = id
	}
	return &AppError{
		Code: ErrCodeNotFound, Message: fmt.Sprintf("The requested %s was not found.", resource),
		HTTPStatus: http.StatusNotFound, Retryable: false, Details: details,
	}
}

// --- Server errors ---

// ScratchWriteFailed reports a failure to stage audio on local storage.
func ScratchWriteFailed(cause error) *AppError {
	return New(ErrCodeScratchWriteFailed, "Failed to stage audio for processing",
		http.StatusInternalServerError).WithCause(cause)
}

// EngineLoadFailed reports a failure to construct a transcription engine.
func EngineLoadFailed(model string, cause error) *AppError {
	return New(ErrCodeEngineLoadFailed, "Failed to load transcription model",
		http.StatusInternalServerError).WithDetail("model", model).WithCause(cause)
}

// TranscriptionFailed reports an inference fault.
func TranscriptionFailed(cause error) *AppError {
	return New(ErrCodeTranscriptionFailed, "Transcription failed",
		http.StatusInternalServerError).WithCause(cause)
}

// ServiceUnavailable creates a new AppError for a service that is temporarily unavailable.
func ServiceUnavailable(service string) *AppError {
	return &AppError{
		Code: ErrCodeServiceUnavailable, Message: fmt.Sprintf("The %s is temporarily unavailable. Please try again.", service),
		HTTPStatus: http.StatusServiceUnavailable, Retryable: true,
		Details: map[string]any{"service": service},
	}
}

// ConnectionFailed creates a new AppError for a failed connection to a service.
func ConnectionFailed(service string) *AppError {
	return &AppError{
		Code: ErrCodeConnectionFailed, Message: fmt.Sprintf("Unable to connect to %s. Please verify the service is running.", service),
		HTTPStatus: http.StatusServiceUnavailable, Retryable: true,
		Details: map[string]any{"service": service},
	}
}

// Timeout creates a new AppError for a request that timed out.
func Timeout(operation string) *AppError {
	return &AppError{
		Code: ErrCodeTimeout, Message: "The request took too long. Please try again.",
		HTTPStatus: http.StatusGatewayTimeout, Retryable: true,
		Details: map[string]any{"operation": operation},
	}
}

// Internal creates a new AppError for an internal server error.
func Internal(cause error) *AppError {
	return &AppError{
		Code: ErrCodeInternal, Message: "An unexpected error occurred. Please try again or contact support.",
		HTTPStatus: http.StatusInternalServerError, Retryable: false, Cause: cause,
	}
}

// ExternalServiceError creates a new AppError for an error from an external service.
func ExternalServiceError(service string, cause error) *AppError {
	return &AppError{
		Code: ErrCodeExternalService, Message: fmt.Sprintf("The %s service encountered an error. Please try again.", service),
		HTTPStatus: http.StatusBadGateway, Retryable: true,
		Details: map[string]any{"service": service}, Cause: cause,
	}
}
