package handler

import (
	"net/http"
	"strings"

	"vendapos/internal/apperror"
	"vendapos/internal/service"

	"github.com/gin-gonic/gin"
)

type CashbackHandler struct{ svc service.CashbackService }

func NewCashbackHandler(svc service.CashbackService) *CashbackHandler {
	return &CashbackHandler{svc: svc}
}

// Statement godoc
// @Summary Saldo e extrato de cashback de um cliente
// @Tags cashback
// @Produce json
// @Param phone path string true "Telefone do cliente"
// @Success 200 {object} dto.CashbackStatementResponse
// @Router /v1/cashback/{phone} [get]
func (h *CashbackHandler) Statement(c *gin.Context) {
	phone := strings.TrimSpace(c.Param("phone"))
	if phone == "" {
		respondError(c, apperror.Validation("telefone obrigatório"))
		return
	}
	resp, err := h.svc.Statement(c.Request.Context(), phone)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
