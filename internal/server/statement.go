package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
	statementdomain "github.com/smallbiznis/labdesk/internal/statement/domain"
)

// @Summary      Client Statement
// @Description  Render the client's account as chronological statement lines with totals
// @Tags         statements
// @Accept       json
// @Produce      json
// @Param        id    path   string  true   "Client ID"
// @Param        from  query  string  false  "From date"
// @Param        to    query  string  false  "To date"
// @Success      200  {object}  statementdomain.Statement
// @Router       /clients/{id}/statement [get]
func (s *Server) GetClientStatement(c *gin.Context) {
	clientID, ok := parseID(c.Param("id"))
	if !ok {
		AbortWithError(c, ErrNotFound)
		return
	}

	from, err := parseOptionalTime(c.Query("from"), false)
	if err != nil {
		AbortWithError(c, newValidationError("from", "invalid_from", "invalid from date"))
		return
	}
	to, err := parseOptionalTime(c.Query("to"), true)
	if err != nil {
		AbortWithError(c, newValidationError("to", "invalid_to", "invalid to date"))
		return
	}

	resp, err := s.statementSvc.Get(c.Request.Context(), statementdomain.GetRequest{
		ClientID: clientID,
		From:     from,
		To:       to,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": resp})
}
