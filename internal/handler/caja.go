package handler

import (
	"net/http"

	"bersapos/internal/dto"
	"bersapos/internal/service"

	"github.com/gin-gonic/gin"
)

type CajaHandler struct{ svc service.CajaService }

func NewCajaHandler(svc service.CajaService) *CajaHandler { return &CajaHandler{svc: svc} }

// Abrir godoc
// @Summary Abre una sesion en la caja indicada
// @Tags caja
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de caja"
// @Param body body dto.AbrirCajaRequest true "Monto inicial"
// @Success 201 {object} dto.SesionCajaResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/cajas/{id}/abrir [post]
func (h *CajaHandler) Abrir(c *gin.Context) {
	ident, ok := identidad(c)
	if !ok {
		return
	}
	var req dto.AbrirCajaRequest
	if !bindJSON(c, &req) {
		return
	}
	req.CajaID = c.Param("id")
	if !validar(c, &req) {
		return
	}

	resp, err := h.svc.Abrir(c.Request.Context(), ident, req)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Resumen godoc
// @Summary Efectivo esperado de la sesion abierta, sin cerrarla
// @Tags caja
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de caja"
// @Success 200 {object} dto.ResumenCajaResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/cajas/{id}/resumen [get]
func (h *CajaHandler) Resumen(c *gin.Context) {
	cajaID, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.ResumenEsperado(c.Request.Context(), cajaID)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Cerrar godoc
// @Summary Cierre ciego de la sesion abierta
// @Tags caja
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de caja"
// @Param body body dto.CerrarCajaRequest true "Monto declarado"
// @Success 200 {object} dto.CierreCajaResponse
// @Failure 409 {object} apierror.APIError
// @Router /v1/cajas/{id}/cerrar [post]
func (h *CajaHandler) Cerrar(c *gin.Context) {
	ident, ok := identidad(c)
	if !ok {
		return
	}
	var req dto.CerrarCajaRequest
	if !bindJSON(c, &req) {
		return
	}
	req.CajaID = c.Param("id")
	if !validar(c, &req) {
		return
	}

	resp, err := h.svc.Cerrar(c.Request.Context(), ident, req)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ObtenerSesion godoc
// @Summary Obtiene una sesion de caja
// @Tags caja
// @Produce json
// @Security BearerAuth
// @Param id path string true "ID de sesion"
// @Success 200 {object} dto.SesionCajaResponse
// @Router /v1/sesiones-caja/{id} [get]
func (h *CajaHandler) ObtenerSesion(c *gin.Context) {
	id, ok := paramUUID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.ObtenerSesion(c.Request.Context(), id)
	if err != nil {
		responderError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
