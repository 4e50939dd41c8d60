// Package authz holds the closed set of staff roles and the action policy
// that decides which role may perform which operation.
package authz

import (
	"fmt"
	"strings"

	"bersapos/internal/apierror"

	"github.com/google/uuid"
)

// Rol is a staff role. Unknown values are never permitted anything.
type Rol string

const (
	RolAdmin     Rol = "ADMIN"
	RolEncargado Rol = "ENCARGADO"
	RolCajero    Rol = "CAJERO"
	RolBodeguero Rol = "BODEGUERO"
)

// ParseRol accepts the role as written in tokens, case-insensitive.
func ParseRol(s string) (Rol, error) {
	r := Rol(strings.ToUpper(strings.TrimSpace(s)))
	switch r {
	case RolAdmin, RolEncargado, RolCajero, RolBodeguero:
		return r, nil
	}
	return "", fmt.Errorf("rol desconocido %q", s)
}

// Accion identifies an operation subject to authorization.
type Accion string

const (
	AccionAbrirCaja       Accion = "caja.abrir"
	AccionResumenCaja     Accion = "caja.resumen"
	AccionCerrarCaja      Accion = "caja.cerrar"
	AccionRegistrarVenta  Accion = "venta.registrar"
	AccionVerVenta        Accion = "venta.ver"
	AccionMovimientoStock Accion = "inventario.movimiento"
	AccionVerKardex       Accion = "inventario.kardex"
)

var (
	caja       = []Rol{RolAdmin, RolEncargado, RolCajero}
	inventario = []Rol{RolAdmin, RolEncargado, RolBodeguero}
)

var politica = map[Accion]map[Rol]bool{
	AccionAbrirCaja:       set(caja...),
	AccionResumenCaja:     set(caja...),
	AccionCerrarCaja:      set(caja...),
	AccionRegistrarVenta:  set(caja...),
	AccionVerVenta:        set(RolAdmin, RolEncargado, RolCajero, RolBodeguero),
	AccionMovimientoStock: set(inventario...),
	AccionVerKardex:       set(inventario...),
}

func set(roles ...Rol) map[Rol]bool {
	m := make(map[Rol]bool, len(roles))
	for _, r := range roles {
		m[r] = true
	}
	return m
}

// Permitido reports whether rol may perform accion.
func Permitido(accion Accion, rol Rol) bool {
	return politica[accion][rol]
}

// Identidad is the authenticated caller as resolved by the transport layer.
type Identidad struct {
	UsuarioID  uuid.UUID
	SucursalID uuid.UUID
	Rol        Rol
}

// Autorizar returns a FORBIDDEN error when the caller's role may not perform accion.
func Autorizar(accion Accion, id Identidad) error {
	if !Permitido(accion, id.Rol) {
		return apierror.Forbidden(fmt.Sprintf("el rol %q no puede realizar %s", id.Rol, accion))
	}
	return nil
}
