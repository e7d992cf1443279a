// Package handlers contains the HTTP handlers for the REST API.
//
// A handler is an adapter: it decodes the HTTP request into a command or
// query, dispatches it through the bus and renders the result into the
// response envelope. All business rules live behind the bus; handlers only
// gate obviously malformed requests before they reach it.
package handlers

import (
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/Haleralex/walletcore/internal/adapters/http/common"
)

// ============================================
// Request Validation
// ============================================

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

// requestValidator returns the shared validator configured for the
// command and query structs. Field names in errors come from json tags.
func requestValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()

		validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})

		_ = validate.RegisterValidation("money_amount", validateMoneyAmount)
	})
	return validate
}

// moneyPattern matches non-negative decimal strings with at most four
// fractional digits, the scale the ledger stores.
var moneyPattern = regexp.MustCompile(`^\d+(\.\d{1,4})?$`)

// validateMoneyAmount checks the wire format of an amount. The domain
// re-parses the value; this only rejects strings that can never be valid.
func validateMoneyAmount(fl validator.FieldLevel) bool {
	return moneyPattern.MatchString(fl.Field().String())
}

// ValidateRequest runs the validate tags of a command or query and writes
// the field errors on failure. Returns true when the request passed.
func ValidateRequest(c *gin.Context, req interface{}) bool {
	if err := requestValidator().Struct(req); err != nil {
		HandleValidationErrors(c, err)
		return false
	}
	return true
}

// ============================================
// Validation Error Handling
// ============================================

// HandleValidationErrors converts validation failures into the 400
// envelope. Non-validator errors (malformed JSON, wrong field types)
// become a generic bad-request response.
func HandleValidationErrors(c *gin.Context, err error) {
	var fieldErrors []common.FieldError

	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, fieldErr := range validationErrors {
			fieldErrors = append(fieldErrors, common.FieldError{
				Field:   fieldErr.Field(),
				Message: getValidationMessage(fieldErr),
				Code:    fieldErr.Tag(),
			})
		}
	}

	if len(fieldErrors) == 0 {
		common.BadRequestResponse(c, "Invalid request body: "+err.Error())
		return
	}

	common.ValidationErrorResponse(c, fieldErrors)
}

// getValidationMessage maps a failed tag to a human-readable message.
func getValidationMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required"
	case "uuid":
		return "Invalid UUID format"
	case "min":
		return "Value is too short (minimum: " + fe.Param() + ")"
	case "max":
		return "Value is too long (maximum: " + fe.Param() + ")"
	case "money_amount":
		return "Invalid amount format (use a decimal like '100.50', at most 4 fractional digits)"
	default:
		return "Invalid value"
	}
}

// ============================================
// Request Parsing Helpers
// ============================================

// BindJSON decodes the request body into req. Returns true on success;
// on failure the error response has already been written.
func BindJSON[T any](c *gin.Context, req *T) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		HandleValidationErrors(c, err)
		return false
	}
	return true
}
