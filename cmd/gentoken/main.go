// cmd/gentoken/main.go: Emite un JWT de desarrollo firmado con JWT_SECRET.
// Uso: go run ./cmd/gentoken -sucursal <uuid> -rol CAJERO
package main

import (
	"flag"
	"fmt"
	"os"
	"time"

	"bersapos/internal/authz"
	"bersapos/internal/config"
	"bersapos/internal/middleware"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func main() {
	sucursal := flag.String("sucursal", "", "sucursal del usuario (uuid)")
	usuario := flag.String("usuario", uuid.NewString(), "id del usuario (uuid)")
	rol := flag.String("rol", string(authz.RolCajero), "ADMIN | ENCARGADO | CAJERO | BODEGUERO")
	ttl := flag.Duration("ttl", 8*time.Hour, "vigencia del token")
	flag.Parse()

	if _, err := uuid.Parse(*sucursal); err != nil {
		fail("sucursal invalida: %v", err)
	}
	if _, err := authz.ParseRol(*rol); err != nil {
		fail("%v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		fail("config: %v", err)
	}
	if cfg.JWTSecret == "" {
		fail("JWT_SECRET no configurado")
	}

	claims := middleware.JWTClaims{
		UserID:     *usuario,
		SucursalID: *sucursal,
		Rol:        *rol,
		RegisteredClaims: jwt.RegisteredClaims{
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(*ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(cfg.JWTSecret))
	if err != nil {
		fail("firmar token: %v", err)
	}
	fmt.Println(token)
}

func fail(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
