package handler

import (
	"net/http"

	"bersapos/internal/apierror"
	"bersapos/internal/dto"
	"bersapos/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type InventarioHandler struct{ svc service.InventarioService }

func NewInventarioHandler(svc service.InventarioService) *InventarioHandler {
	return &InventarioHandler{svc: svc}
}

// RegistrarMovimiento godoc
// @Summary Registra un movimiento en el kardex de una sucursal
// @Tags inventario
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.RegistrarMovimientoRequest true "Movimiento"
// @Success 201 {object} dto.MovimientoStockResponse
// @Router /v1/inventario/movimientos [post]
func (h *InventarioHandler) RegistrarMovimiento(c *gin.Context) {
	ident, ok := identidad(c)
	if !ok {
		return
	}
	var req dto.RegistrarMovimientoRequest
	if !bindAndValidate(c, &req) {
		return
	}

	resp, err := h.svc.RegistrarMovimiento(c.Request.Context(), ident.UsuarioID, req)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Kardex godoc
// @Summary Lista los movimientos de un producto en una sucursal
// @Tags inventario
// @Produce json
// @Security BearerAuth
// @Param producto_id query string true "Producto"
// @Param sucursal_id query string true "Sucursal"
// @Param limit query int false "Maximo de filas" default(100)
// @Success 200 {array} dto.MovimientoStockResponse
// @Router /v1/inventario/kardex [get]
func (h *InventarioHandler) Kardex(c *gin.Context) {
	var filter dto.KardexFilter
	if err := c.ShouldBindQuery(&filter); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("Parametros invalidos: "+err.Error()))
		return
	}
	if !validar(c, &filter) {
		return
	}

	movs, err := h.svc.Kardex(c.Request.Context(),
		uuid.MustParse(filter.ProductoID), uuid.MustParse(filter.SucursalID), filter.Limit)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, movs)
}
