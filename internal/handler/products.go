package handler

import (
	"net/http"

	"vendapos/internal/dto"
	"vendapos/internal/service"

	"github.com/gin-gonic/gin"
)

type ProductsHandler struct{ svc service.ProductService }

func NewProductsHandler(svc service.ProductService) *ProductsHandler {
	return &ProductsHandler{svc: svc}
}

// Create godoc
// @Summary Cadastra um produto (por unidade ou por peso)
// @Tags products
// @Accept json
// @Produce json
// @Param body body dto.CreateProductRequest true "Produto"
// @Success 201 {object} model.Product
// @Failure 422 {object} apierror.ValidationError
// @Router /v1/products [post]
func (h *ProductsHandler) Create(c *gin.Context) {
	var req dto.CreateProductRequest
	if !bindAndValidate(c, &req) {
		return
	}
	p, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, p)
}

// List godoc
// @Summary Lista produtos
// @Tags products
// @Produce json
// @Param all query bool false "Inclui inativos"
// @Success 200 {array} model.Product
// @Router /v1/products [get]
func (h *ProductsHandler) List(c *gin.Context) {
	activeOnly := c.Query("all") != "true"
	out, err := h.svc.List(c.Request.Context(), activeOnly)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, out)
}

func (h *ProductsHandler) Get(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	p, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}

// Update godoc
// @Summary Atualiza um produto
// @Tags products
// @Accept json
// @Produce json
// @Param id path string true "ID do produto"
// @Param body body dto.UpdateProductRequest true "Campos alterados"
// @Success 200 {object} model.Product
// @Router /v1/products/{id} [put]
func (h *ProductsHandler) Update(c *gin.Context) {
	id, ok := pathID(c, "id")
	if !ok {
		return
	}
	var req dto.UpdateProductRequest
	if !bindAndValidate(c, &req) {
		return
	}
	p, err := h.svc.Update(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, p)
}
