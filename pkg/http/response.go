package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// SuccessResponse writes a 200 envelope with data.
func SuccessResponse(c echo.Context, data interface{}) error {
	return c.JSON(http.StatusOK, APIResponse{Success: true, Data: data})
}

// WarningResponse writes a 200 envelope with data and a warning, e.g. for empty results.
func WarningResponse(c echo.Context, data interface{}, warning string) error {
	return c.JSON(http.StatusOK, APIResponse{Success: true, Data: data, Warning: warning})
}

// ErrorResponse writes an error envelope with the given status.
func ErrorResponse(c echo.Context, status int, body *ErrorBody) error {
	return c.JSON(status, APIResponse{Success: false, Error: body})
}

// ValidationErrorResponse writes a 400 INVALID_PARAMS envelope with per-field details.
func ValidationErrorResponse(c echo.Context, details []ValidationError) error {
	msg := "Invalid request parameters"
	if len(details) > 0 && details[0].Message != "" {
		msg = details[0].Message
	}
	return ErrorResponse(c, http.StatusBadRequest, &ErrorBody{
		Code:    CodeInvalidParams,
		Message: msg,
		Details: details,
	})
}

// InternalServerErrorResponse writes internal server error.
func InternalServerErrorResponse(c echo.Context) error {
	return ErrorResponse(c, http.StatusInternalServerError, &ErrorBody{
		Code:    CodeServerError,
		Message: "Something went wrong",
	})
}

// AppErrorResponse writes application error response.
func AppErrorResponse(c echo.Context, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return ErrorResponse(c, appErr.Status, &ErrorBody{Code: appErr.Code, Message: appErr.Message})
	}
	return InternalServerErrorResponse(c)
}
