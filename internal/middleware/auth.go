package middleware

import (
	"net/http"
	"strings"

	"bersapos/internal/apierror"
	"bersapos/internal/authz"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	ClaimsKey    = "claims"
	IdentidadKey = "identidad"
)

// JWTClaims are the custom claims embedded in every access token. Tokens are
// issued by the staff directory service; this service only verifies them.
type JWTClaims struct {
	UserID     string `json:"user_id"`
	SucursalID string `json:"sucursal_id"`
	Rol        string `json:"rol"`
	jwt.RegisteredClaims
}

// JWTAuth validates the Bearer token on every protected route and stores the
// resolved authz.Identidad in the context.
func JWTAuth(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if header == "" || !strings.HasPrefix(header, "Bearer ") {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New("Autenticacion requerida"))
			return
		}

		tokenStr := strings.TrimPrefix(header, "Bearer ")
		claims := &JWTClaims{}
		token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
			if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
				return nil, jwt.ErrSignatureInvalid
			}
			return []byte(secret), nil
		})
		if err != nil || !token.Valid {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New("Token invalido o expirado"))
			return
		}

		ident, ok := identidadFromClaims(claims)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, apierror.New("Token sin identidad valida"))
			return
		}

		c.Set(ClaimsKey, claims)
		c.Set(IdentidadKey, ident)
		c.Next()
	}
}

func identidadFromClaims(claims *JWTClaims) (authz.Identidad, bool) {
	uid, err := uuid.Parse(claims.UserID)
	if err != nil {
		return authz.Identidad{}, false
	}
	sid, err := uuid.Parse(claims.SucursalID)
	if err != nil {
		return authz.Identidad{}, false
	}
	rol, err := authz.ParseRol(claims.Rol)
	if err != nil {
		return authz.Identidad{}, false
	}
	return authz.Identidad{UsuarioID: uid, SucursalID: sid, Rol: rol}, true
}

// RequirePermiso rejects requests whose role may not perform accion.
func RequirePermiso(accion authz.Accion) gin.HandlerFunc {
	return func(c *gin.Context) {
		ident, ok := GetIdentidad(c)
		if !ok || !authz.Permitido(accion, ident.Rol) {
			c.AbortWithStatusJSON(http.StatusForbidden, &apierror.APIError{
				Code:   apierror.CodeForbidden,
				Detail: "Permisos insuficientes",
			})
			return
		}
		c.Next()
	}
}

// GetIdentidad is a helper to retrieve the caller from the Gin context.
func GetIdentidad(c *gin.Context) (authz.Identidad, bool) {
	v, ok := c.Get(IdentidadKey)
	if !ok {
		return authz.Identidad{}, false
	}
	ident, ok := v.(authz.Identidad)
	return ident, ok
}
