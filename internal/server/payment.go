package server

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	paymentdomain "github.com/smallbiznis/labdesk/internal/payment/domain"
)

type recordPaymentRequest struct {
	ClientID string `json:"client_id"`
	Amount   string `json:"amount"`
	Date     string `json:"date"`
	Note     string `json:"note"`
	Provider string `json:"provider"`
}

// @Summary      Record Payment
// @Description  Record a received amount and allocate it to the client's open invoices
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        request body recordPaymentRequest true "Record Payment Request"
// @Success      200  {object}  []paymentdomain.Payment
// @Router       /payments [post]
func (s *Server) RecordPayment(c *gin.Context) {
	var req recordPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	clientID, ok := parseID(req.ClientID)
	if !ok {
		AbortWithError(c, newValidationError("client_id", "invalid_client_id", "invalid client id"))
		return
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		AbortWithError(c, newValidationError("amount", "invalid_amount", "invalid amount"))
		return
	}

	var date *time.Time
	if raw := strings.TrimSpace(req.Date); raw != "" {
		date, err = parseOptionalTime(raw, false)
		if err != nil {
			AbortWithError(c, newValidationError("date", "invalid_date", "invalid date"))
			return
		}
	}

	resp, err := s.paymentSvc.Record(c.Request.Context(), paymentdomain.RecordRequest{
		ClientID: clientID,
		Amount:   amount,
		Date:     date,
		Note:     strings.TrimSpace(req.Note),
		Provider: strings.TrimSpace(req.Provider),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      Delete Payment
// @Description  Remove a payment recorded in error
// @Tags         payments
// @Accept       json
// @Produce      json
// @Param        id   path      string  true  "Payment ID"
// @Success      200  {object}  map[string]string
// @Router       /payments/{id} [delete]
func (s *Server) DeletePayment(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		AbortWithError(c, ErrNotFound)
		return
	}

	if err := s.paymentSvc.Delete(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
