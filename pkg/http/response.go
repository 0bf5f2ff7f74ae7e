package http

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"
)

// DataResponse writes the standard envelope with the given status code.
func DataResponse(c echo.Context, statusCode int, data interface{}) error {
	return c.JSON(statusCode, APIResponse{
		Status:  statusCode,
		Message: http.StatusText(statusCode),
		Data:    data,
	})
}

// JSONResponse writes body as-is, without the envelope.
func JSONResponse(c echo.Context, statusCode int, body interface{}) error {
	return c.JSON(statusCode, body)
}

// SuccessResponse writes a 200 body without the envelope.
func SuccessResponse(c echo.Context, body interface{}) error {
	return JSONResponse(c, http.StatusOK, body)
}

// UnprocessableResponse writes the validation error list with 422.
func UnprocessableResponse(c echo.Context, errs []ValidationError) error {
	return DataResponse(c, http.StatusUnprocessableEntity, errs)
}

// InternalServerErrorResponse writes internal server error.
func InternalServerErrorResponse(c echo.Context) error {
	return DataResponse(c, http.StatusInternalServerError, []*AppError{InternalError("Something went wrong")})
}

// AppErrorResponse writes application error response.
func AppErrorResponse(c echo.Context, err error) error {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return DataResponse(c, appErr.Status, []*AppError{appErr})
	}
	return InternalServerErrorResponse(c)
}
