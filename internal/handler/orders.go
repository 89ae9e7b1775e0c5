package handler

import (
	"net/http"

	"vendapos/internal/apperror"
	"vendapos/internal/dto"
	"vendapos/internal/service"

	"github.com/gin-gonic/gin"
)

type OrdersHandler struct {
	svc      service.OrderService
	register service.RegisterReader
}

func NewOrdersHandler(svc service.OrderService, register service.RegisterReader) *OrdersHandler {
	return &OrdersHandler{svc: svc, register: register}
}

// Create godoc
// @Summary Cria um pedido (delivery, manual ou PDV)
// @Tags orders
// @Accept json
// @Produce json
// @Param body body dto.CreateOrderRequest true "Pedido"
// @Success 201 {object} model.Order
// @Failure 422 {object} apierror.ValidationError
// @Failure 503 {object} apierror.APIError
// @Router /v1/orders [post]
func (h *OrdersHandler) Create(c *gin.Context) {
	var req dto.CreateOrderRequest
	if !bindAndValidate(c, &req) {
		return
	}
	o, err := h.svc.CreateOrder(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, o)
}

// List godoc
// @Summary Lista os pedidos visíveis no caixa atual (vincula órfãos antes)
// @Tags orders
// @Produce json
// @Param status query string false "Status"
// @Param channel query string false "Canal"
// @Param limit query int false "Limite (padrão 100)"
// @Success 200 {array} model.Order
// @Router /v1/orders [get]
func (h *OrdersHandler) List(c *gin.Context) {
	var f dto.OrderFilter
	if !bindQuery(c, &f) {
		return
	}
	out, err := h.svc.Load(c.Request.Context(), f)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *OrdersHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	o, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// UpdateStatus godoc
// @Summary Muda o status de um pedido
// @Description Qualquer status não final pode ir para qualquer outro. delivered e cancelled são finais.
// @Tags orders
// @Accept json
// @Produce json
// @Param id path string true "ID do pedido"
// @Param body body dto.UpdateOrderStatusRequest true "Novo status"
// @Success 200 {object} model.Order
// @Failure 409 {object} apierror.APIError
// @Router /v1/orders/{id}/status [patch]
func (h *OrdersHandler) UpdateStatus(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateOrderStatusRequest
	if !bindAndValidate(c, &req) {
		return
	}
	o, err := h.svc.UpdateStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, o)
}

// Reconcile godoc
// @Summary Vincula pedidos sem caixa ao caixa aberto
// @Tags orders
// @Produce json
// @Success 200 {object} dto.ReconcileResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/orders/reconcile [post]
func (h *OrdersHandler) Reconcile(c *gin.Context) {
	reg, err := h.register.Current(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	if !reg.IsOpen() {
		respondError(c, apperror.Conflict(apperror.CodeRegisterClosed, "não há caixa aberto"))
		return
	}
	n, err := h.svc.ReconcileOrphans(c.Request.Context(), reg.ID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.ReconcileResponse{RegisterID: reg.ID.String(), Linked: n})
}
