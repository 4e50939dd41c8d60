package handler

import (
	"net/http"

	"bersapos/internal/dto"
	"bersapos/internal/service"

	"github.com/gin-gonic/gin"
)

type VentasHandler struct{ svc service.VentaService }

func NewVentasHandler(svc service.VentaService) *VentasHandler { return &VentasHandler{svc: svc} }

// RegistrarVenta godoc
// @Summary Liquida una venta: stock, folio y pagos en una sola transaccion
// @Tags ventas
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.RegistrarVentaRequest true "Venta"
// @Success 201 {object} dto.VentaResponse
// @Failure 409 {object} apierror.APIError
// @Failure 422 {object} apierror.APIError
// @Router /v1/ventas [post]
func (h *VentasHandler) RegistrarVenta(c *gin.Context) {
	ident, ok := identidad(c)
	if !ok {
		return
	}
	var req dto.RegistrarVentaRequest
	if !bindAndValidate(c, &req) {
		return
	}

	resp, err := h.svc.RegistrarVenta(c.Request.Context(), ident, req)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// ObtenerVenta godoc
// @Summary Obtiene una venta con items y pagos
// @Tags ventas
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de venta"
// @Success 200 {object} dto.VentaResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/ventas/{id} [get]
func (h *VentasHandler) ObtenerVenta(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.ObtenerVenta(c.Request.Context(), id)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
