package handler

import (
	"net/http"
	"strconv"

	"vendapos/internal/apperror"
	"vendapos/internal/dto"
	"vendapos/internal/service"

	"github.com/gin-gonic/gin"
)

type CajaHandler struct{ svc service.CajaService }

func NewCajaHandler(svc service.CajaService) *CajaHandler { return &CajaHandler{svc: svc} }

// Open godoc
// @Summary Abre o caixa da estação
// @Description Falha com register_open se já houver caixa aberto. Pedidos sem caixa são vinculados ao novo caixa.
// @Tags caja
// @Accept json
// @Produce json
// @Param body body dto.OpenRegisterRequest true "Abertura"
// @Success 201 {object} dto.RegisterReportResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/caja/abrir [post]
func (h *CajaHandler) Open(c *gin.Context) {
	var req dto.OpenRegisterRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Open(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Close godoc
// @Summary Fecha o caixa com contagem cega (arqueo)
// @Description Desvio > 5% é crítico e exige observação.
// @Tags caja
// @Accept json
// @Produce json
// @Param body body dto.CloseRegisterRequest true "Valores declarados"
// @Success 200 {object} dto.CloseRegisterResponse
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.APIError
// @Router /v1/caja/fechar [post]
func (h *CajaHandler) Close(c *gin.Context) {
	var req dto.CloseRegisterRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Close(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Movement godoc
// @Summary Registra uma entrada ou saída manual no caixa
// @Tags caja
// @Accept json
// @Produce json
// @Param body body dto.MovementRequest true "Movimento manual"
// @Success 201 {object} model.CashMovement
// @Failure 409 {object} apierror.APIError
// @Router /v1/caja/movimento [post]
func (h *CajaHandler) Movement(c *gin.Context) {
	var req dto.MovementRequest
	if !bindAndValidate(c, &req) {
		return
	}
	mv, err := h.svc.RecordMovement(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, mv)
}

// Current returns the register open at this station.
func (h *CajaHandler) Current(c *gin.Context) {
	reg, err := h.svc.Current(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if !reg.IsOpen() {
		respondError(c, apperror.NotFound("nenhum caixa aberto"))
		return
	}
	resp, err := h.svc.Report(c.Request.Context(), reg.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Report godoc
// @Summary Relatório de um caixa
// @Tags caja
// @Produce json
// @Param id path string true "ID do caixa"
// @Success 200 {object} dto.RegisterReportResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/caja/{id}/relatorio [get]
func (h *CajaHandler) Report(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Report(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// History returns the most recent closed registers of this station.
func (h *CajaHandler) History(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if limit < 1 || limit > 100 {
		limit = 20
	}
	out, err := h.svc.ListClosed(c.Request.Context(), limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"data": out, "limit": limit})
}
