package handler

import (
	"net/http"

	"vendapos/internal/dto"
	"vendapos/internal/service"

	"github.com/gin-gonic/gin"
)

// Quote godoc
// @Summary Calcula subtotal, desconto, cashback, taxa, total e troco
// @Description Não consulta o catálogo nem o banco: funciona com o backend indisponível.
// @Tags settlement
// @Accept json
// @Produce json
// @Param body body dto.QuoteRequest true "Carrinho"
// @Success 200 {object} settlement.Breakdown
// @Failure 422 {object} apierror.APIError
// @Router /v1/settlement/quote [post]
func Quote(c *gin.Context) {
	var req dto.QuoteRequest
	if !bindAndValidate(c, &req) {
		return
	}
	b, err := service.Quote(req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}
