package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/shopspring/decimal"
	invoicedomain "github.com/smallbiznis/labdesk/internal/invoice/domain"
	"github.com/smallbiznis/labdesk/pkg/db/pagination"
)

type createInvoiceRequest struct {
	WorkOrderID string `json:"work_order_id"`
}

// @Summary      Create Invoice
// @Description  Generate an invoice for a completed work order
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        request body createInvoiceRequest true "Create Invoice Request"
// @Success      200  {object}  invoicedomain.Invoice
// @Router       /invoices [post]
func (s *Server) CreateInvoice(c *gin.Context) {
	var req createInvoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	orderID, ok := parseID(req.WorkOrderID)
	if !ok {
		AbortWithError(c, newValidationError("work_order_id", "invalid_work_order_id", "invalid work order id"))
		return
	}

	resp, err := s.invoiceSvc.Create(c.Request.Context(), orderID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      List Invoices
// @Description  List invoices, optionally filtered by client and status
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        client_id   query     string  false  "Client ID"
// @Param        status      query     string  false  "Status"
// @Param        page_token  query     string  false  "Page Token"
// @Param        page_size   query     int     false  "Page Size"
// @Success      200  {object}  invoicedomain.ListResponse
// @Router       /invoices [get]
func (s *Server) ListInvoices(c *gin.Context) {
	var query struct {
		pagination.Pagination
		ClientID string `form:"client_id"`
		Status   string `form:"status"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	req := invoicedomain.ListRequest{
		Pagination: query.Pagination,
		Status:     invoicedomain.Status(strings.ToUpper(strings.TrimSpace(query.Status))),
	}
	if raw := strings.TrimSpace(query.ClientID); raw != "" {
		clientID, ok := parseID(raw)
		if !ok {
			AbortWithError(c, newValidationError("client_id", "invalid_client_id", "invalid client id"))
			return
		}
		req.ClientID = clientID
	}

	resp, err := s.invoiceSvc.List(c.Request.Context(), req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      Get Invoice
// @Description  Get invoice by ID
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  invoicedomain.Invoice
// @Router       /invoices/{id} [get]
func (s *Server) GetInvoiceByID(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		AbortWithError(c, ErrNotFound)
		return
	}

	resp, err := s.invoiceSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

type editInvoiceAmountRequest struct {
	Amount   string `json:"amount"`
	Override bool   `json:"override"`
}

// @Summary      Edit Invoice Amount
// @Description  Correct the billed amount of an invoice
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        id      path  string                    true  "Invoice ID"
// @Param        request body  editInvoiceAmountRequest  true  "Edit Amount Request"
// @Success      200  {object}  invoicedomain.Invoice
// @Router       /invoices/{id}/amount [patch]
func (s *Server) EditInvoiceAmount(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		AbortWithError(c, ErrNotFound)
		return
	}

	var req editInvoiceAmountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		AbortWithError(c, newValidationError("amount", "invalid_amount", "invalid amount"))
		return
	}

	resp, err := s.invoiceSvc.EditAmount(c.Request.Context(), invoicedomain.EditAmountRequest{
		InvoiceID: id,
		NewAmount: amount,
		Override:  req.Override,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}

// @Summary      Cancel Invoice
// @Description  Withdraw an unpaid invoice
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  map[string]string
// @Router       /invoices/{id}/cancel [post]
func (s *Server) CancelInvoice(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		AbortWithError(c, ErrNotFound)
		return
	}

	if err := s.invoiceSvc.Cancel(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// @Summary      Delete Invoice
// @Description  Remove an invoice and everything that hangs off it
// @Tags         invoices
// @Accept       json
// @Produce      json
// @Param        id   path      string  true  "Invoice ID"
// @Success      200  {object}  map[string]string
// @Router       /invoices/{id} [delete]
func (s *Server) DeleteInvoice(c *gin.Context) {
	id, ok := parseID(c.Param("id"))
	if !ok {
		AbortWithError(c, ErrNotFound)
		return
	}

	if err := s.invoiceSvc.Delete(c.Request.Context(), id); err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
