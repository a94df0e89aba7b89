// Package response defines the JSON envelope used for error responses and
// generic success messages across the HTTP API.
package response

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
)

var EmptyRequestBodyResponse = Response{
	Status:  StatusError,
	Error:   "Empty Request Body",
	Message: "Request body is empty. Please provide necessary data.",
}

var BadRequestResponse = Response{
	Status:  StatusError,
	Error:   "Bad Request",
	Message: "The request could not be processed. Please check your input.",
}

var InvalidURLResponse = Response{
	Status:  StatusError,
	Error:   "Invalid URL",
	Message: "The original URL must be an absolute http(s) URL.",
}

var InvalidAliasResponse = Response{
	Status:  StatusError,
	Error:   "Invalid Alias",
	Message: "The custom alias must be 1-50 characters of letters, digits, '-' or '_'.",
}

var AliasTakenResponse = Response{
	Status:  StatusError,
	Error:   "Alias Taken",
	Message: "The requested alias is already in use. Please choose another one.",
}

var AllocationExhaustedResponse = Response{
	Status:  StatusError,
	Error:   "Allocation Exhausted",
	Message: "A unique short code could not be allocated. Please try again.",
}

var UserExistsResponse = Response{
	Status:  StatusError,
	Error:   "User Exists",
	Message: "A user with this email is already registered.",
}

var UnauthorizedResponse = Response{
	Status:  StatusError,
	Error:   "Unauthorized",
	Message: "A valid API token is required to access this resource.",
}

var ResourceNotFoundResponse = Response{
	Status:  StatusError,
	Error:   "Resource Not Found",
	Message: "The requested resource was not found.",
}

var URLExpiredResponse = Response{
	Status:  StatusError,
	Error:   "URL Expired",
	Message: "The requested short URL has expired.",
}

var RateLimitedResponse = Response{
	Status:  StatusError,
	Error:   "Rate Limited",
	Message: "Too many requests. Please try again later.",
}

var ServerErrorResponse = Response{
	Status:  StatusError,
	Error:   "Server Error",
	Message: "An internal server error occurred. Please try again later.",
}

type Response struct {
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
	Message string `json:"message"`
	Details []any  `json:"details,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func SuccessResponse(msg string, data ...any) Response {
	resp := Response{
		Status:  StatusSuccess,
		Message: msg,
	}

	if len(data) > 0 {
		resp.Data = data[0]
	}

	return resp
}

// ValidationErrorResponse builds a 400 envelope with one detail entry per
// failed field.
func ValidationErrorResponse(err error) Response {
	resp := Response{
		Status:  StatusError,
		Error:   "Validation Error",
		Message: "The request contains invalid data.",
	}

	for _, ve := range getValidationErrors(err) {
		resp.Details = append(resp.Details, ve)
	}

	return resp
}

type validationError struct {
	Field string `json:"field"`
	Value string `json:"value"`
	Issue string `json:"issue"`
}

func getValidationErrors(err error) []validationError {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return nil
	}

	var errs []validationError

	for _, fieldErr := range validationErrs {
		ve := validationError{
			Field: fieldErr.Field(),
		}

		if value, ok := fieldErr.Value().(string); ok {
			ve.Value = value
		}

		switch fieldErr.Tag() {
		case "required":
			ve.Issue = "This field is required."
		case "url":
			ve.Issue = "Invalid url."
		case "email":
			ve.Issue = "Invalid email."
		case "max":
			ve.Issue = "Value is too long."
		case "gt", "lte":
			ve.Issue = "Value is out of range."
		default:
			ve.Issue = "Invalid value."
		}

		errs = append(errs, ve)
	}

	return errs
}
