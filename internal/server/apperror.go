package server

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	clientdomain "github.com/smallbiznis/labdesk/internal/client/domain"
	invoicedomain "github.com/smallbiznis/labdesk/internal/invoice/domain"
	"github.com/smallbiznis/labdesk/internal/logger"
	paymentdomain "github.com/smallbiznis/labdesk/internal/payment/domain"
	workorderdomain "github.com/smallbiznis/labdesk/internal/workorder/domain"
	"go.uber.org/zap"
)

// apiError carries an HTTP status alongside a stable machine code. The
// code, not the message, is the contract with clients.
type apiError struct {
	Status  int    `json:"-"`
	Code    string `json:"code"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

func (e *apiError) Error() string { return e.Message }

var ErrNotFound = &apiError{Status: http.StatusNotFound, Code: "not_found", Message: "resource not found"}

func invalidRequestError() *apiError {
	return &apiError{Status: http.StatusBadRequest, Code: "invalid_request", Message: "invalid request body"}
}

func newValidationError(field, code, message string) *apiError {
	return &apiError{Status: http.StatusBadRequest, Code: code, Message: message, Field: field}
}

// AbortWithError translates domain errors into HTTP responses. Missing
// resources map to 404, rejected input to 400, operations the current
// state forbids to 409, anything unrecognised to 500.
func AbortWithError(c *gin.Context, err error) {
	var api *apiError
	if errors.As(err, &api) {
		c.AbortWithStatusJSON(api.Status, gin.H{"error": api})
		return
	}

	status := http.StatusInternalServerError
	code := "internal_error"
	message := "internal server error"

	switch {
	case isNotFoundError(err):
		status = http.StatusNotFound
		code = "not_found"
		message = err.Error()
	case isDomainValidationError(err):
		status = http.StatusBadRequest
		code = err.Error()
		message = err.Error()
	case isStateConflictError(err):
		status = http.StatusConflict
		code = err.Error()
		message = err.Error()
	}

	if status == http.StatusInternalServerError {
		logger.FromContext(c.Request.Context()).Error("unhandled request error",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
	}

	c.AbortWithStatusJSON(status, gin.H{"error": gin.H{
		"code":    code,
		"message": message,
	}})
}

func isNotFoundError(err error) bool {
	switch {
	case errors.Is(err, clientdomain.ErrClientNotFound),
		errors.Is(err, workorderdomain.ErrOrderNotFound),
		errors.Is(err, invoicedomain.ErrInvoiceNotFound),
		errors.Is(err, paymentdomain.ErrPaymentNotFound):
		return true
	default:
		return false
	}
}

func isDomainValidationError(err error) bool {
	switch {
	case errors.Is(err, invoicedomain.ErrInvalidAmount),
		errors.Is(err, paymentdomain.ErrNonPositiveAmount):
		return true
	default:
		return false
	}
}

func isStateConflictError(err error) bool {
	switch {
	case errors.Is(err, invoicedomain.ErrOrderNotReady),
		errors.Is(err, invoicedomain.ErrDuplicateInvoice),
		errors.Is(err, invoicedomain.ErrBillingPartyMissing),
		errors.Is(err, invoicedomain.ErrAmountUndetermined),
		errors.Is(err, invoicedomain.ErrAmountBelowPayments),
		errors.Is(err, invoicedomain.ErrInvoiceHasPayments),
		errors.Is(err, invoicedomain.ErrInvoiceCancelled):
		return true
	default:
		return false
	}
}
