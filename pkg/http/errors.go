package http

import (
	"fmt"
	"net/http"
)

// Error codes returned in the response envelope.
const (
	CodeInvalidExchange   = "INVALID_EXCHANGE"
	CodeInvalidParams     = "INVALID_PARAMS"
	CodeDataFileNotFound  = "DATA_FILE_NOT_FOUND"
	CodeInvalidData       = "INVALID_DATA"
	CodeDataNotFound      = "DATA_NOT_FOUND"
	CodeModelNotTrained   = "MODEL_NOT_TRAINED"
	CodeRateLimitExceeded = "RATE_LIMIT_EXCEEDED"
	CodeServerError       = "SERVER_ERROR"
)

// AppError represents application-level error with HTTP status.
type AppError struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Field   string                 `json:"field,omitempty"`
	Params  map[string]interface{} `json:"params,omitempty"`
	Status  int                    `json:"-"`
	Err     error                  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns underlying error.
func (e *AppError) Unwrap() error {
	return e.Err
}

// NewAppError creates a new application error.
func NewAppError(code, field, message string, status int) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Field:   field,
		Status:  status,
	}
}

// WithParam sets a single error param.
func (e *AppError) WithParam(key string, value interface{}) *AppError {
	if e.Params == nil {
		e.Params = make(map[string]interface{})
	}
	e.Params[key] = value
	return e
}

// WithError wraps an underlying error.
func (e *AppError) WithError(err error) *AppError {
	e.Err = err
	return e
}

// InvalidExchangeError reports an unknown exchange name.
func InvalidExchangeError(name string) *AppError {
	return NewAppError(CodeInvalidExchange, "exchange",
		fmt.Sprintf("Invalid exchange %q, supported: binance, okx, huobi", name),
		http.StatusBadRequest)
}

// InvalidParamsError creates a 400 error for a malformed parameter.
func InvalidParamsError(field, message string) *AppError {
	return NewAppError(CodeInvalidParams, field, message, http.StatusBadRequest)
}

// InvalidParamsErrorf creates a 400 error with formatting.
func InvalidParamsErrorf(field, format string, a ...interface{}) *AppError {
	return InvalidParamsError(field, fmt.Sprintf(format, a...))
}

// DataFileNotFoundError is returned while the pipeline has not produced its first dataset.
func DataFileNotFoundError() *AppError {
	return NewAppError(CodeDataFileNotFound, "",
		"Data file not found, run the data pipeline first", http.StatusServiceUnavailable)
}

// InvalidDataError is returned when the persisted dataset is empty or unreadable.
func InvalidDataError(message string) *AppError {
	return NewAppError(CodeInvalidData, "", message, http.StatusInternalServerError)
}

// DataNotFoundError creates a 404 error.
func DataNotFoundError(message string) *AppError {
	return NewAppError(CodeDataNotFound, "", message, http.StatusNotFound)
}

// DataNotFoundErrorf creates a 404 error with formatting.
func DataNotFoundErrorf(format string, a ...interface{}) *AppError {
	return DataNotFoundError(fmt.Sprintf(format, a...))
}

// ModelNotTrainedError is returned when no classifier artifact is available.
func ModelNotTrainedError() *AppError {
	return NewAppError(CodeModelNotTrained, "",
		"Model not trained, run the trainer first", http.StatusServiceUnavailable)
}

// InternalError creates a 500 error.
func InternalError(message string) *AppError {
	return NewAppError(CodeServerError, "", message, http.StatusInternalServerError)
}
