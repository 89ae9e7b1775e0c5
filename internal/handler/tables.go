package handler

import (
	"net/http"

	"vendapos/internal/dto"
	"vendapos/internal/service"

	"github.com/gin-gonic/gin"
)

type TablesHandler struct{ svc service.TableService }

func NewTablesHandler(svc service.TableService) *TablesHandler { return &TablesHandler{svc: svc} }

func (h *TablesHandler) Create(c *gin.Context) {
	var req dto.CreateTableRequest
	if !bindAndValidate(c, &req) {
		return
	}
	t, err := h.svc.CreateTable(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, t)
}

func (h *TablesHandler) List(c *gin.Context) {
	out, err := h.svc.ListTables(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

// GetSale godoc
// @Summary Venda aberta da mesa
// @Tags tables
// @Produce json
// @Param id path string true "ID da mesa"
// @Success 200 {object} model.TableSession
// @Failure 404 {object} apierror.APIError
// @Router /v1/tables/{id}/sale [get]
func (h *TablesHandler) GetSale(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	s, err := h.svc.GetSale(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// Open godoc
// @Summary Abre a mesa (livre → ocupada)
// @Tags tables
// @Accept json
// @Produce json
// @Param id path string true "ID da mesa"
// @Param body body dto.OpenTableRequest true "Cliente"
// @Success 201 {object} model.TableSession
// @Failure 409 {object} apierror.APIError
// @Router /v1/tables/{id}/open [post]
func (h *TablesHandler) Open(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.OpenTableRequest
	if !bindAndValidate(c, &req) {
		return
	}
	s, err := h.svc.OpenTable(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, s)
}

func (h *TablesHandler) RequestBill(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	t, err := h.svc.RequestBill(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}

// AddItem godoc
// @Summary Adiciona um item à venda da mesa
// @Tags tables
// @Accept json
// @Produce json
// @Param id path string true "ID da mesa"
// @Param body body dto.ItemRequest true "Item"
// @Success 200 {object} model.TableSession
// @Router /v1/tables/{id}/items [post]
func (h *TablesHandler) AddItem(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.ItemRequest
	if !bindAndValidate(c, &req) {
		return
	}
	s, err := h.svc.AddItemToSale(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *TablesHandler) DeleteItem(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	itemID, ok := pathID(c, "item_id")
	if !ok {
		return
	}
	s, err := h.svc.DeleteItemFromSale(c.Request.Context(), id, itemID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// Close godoc
// @Summary Fecha a venda da mesa (→ limpeza)
// @Description Exige itens, total positivo e caixa aberto.
// @Tags tables
// @Accept json
// @Produce json
// @Param id path string true "ID da mesa"
// @Param body body dto.CloseSaleRequest true "Pagamento"
// @Success 200 {object} model.TableSession
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.APIError
// @Router /v1/tables/{id}/close [post]
func (h *TablesHandler) Close(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.CloseSaleRequest
	if !bindAndValidate(c, &req) {
		return
	}
	s, err := h.svc.CloseSale(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

func (h *TablesHandler) Cancel(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.CancelSaleRequest
	if !bindAndValidate(c, &req) {
		return
	}
	s, err := h.svc.CancelSale(c.Request.Context(), id, req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, s)
}

// Free godoc
// @Summary Libera a mesa manualmente
// @Description Qualquer estado → livre. Uma venda aberta é cancelada.
// @Tags tables
// @Produce json
// @Param id path string true "ID da mesa"
// @Success 200 {object} model.Table
// @Router /v1/tables/{id}/free [post]
func (h *TablesHandler) Free(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	t, err := h.svc.FreeTable(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, t)
}
