package handler

import (
	"errors"
	"net/http"

	"bersapos/internal/apierror"
	"bersapos/internal/authz"
	"bersapos/internal/middleware"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

var validate = validator.New()

// bindAndValidate binds JSON body and runs go-playground/validator tags.
// Returns false and writes the error response if validation fails;
// the caller should return immediately without writing another response.
func bindAndValidate(c *gin.Context, req interface{}) bool {
	return bindJSON(c, req) && validar(c, req)
}

func bindJSON(c *gin.Context, req interface{}) bool {
	if err := c.ShouldBindJSON(req); err != nil {
		c.JSON(http.StatusBadRequest, apierror.New("JSON invalido: "+err.Error()))
		return false
	}
	return true
}

func validar(c *gin.Context, req interface{}) bool {
	if err := validate.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		fields := make(map[string]string)
		if errors.As(err, &verrs) {
			for _, fe := range verrs {
				fields[fe.Namespace()] = fe.Tag()
			}
		}
		c.JSON(http.StatusUnprocessableEntity, apierror.NewValidation(fields))
		return false
	}
	return true
}

// responderError writes err using its business classification. Unclassified
// errors are logged and answered with a generic 500.
func responderError(c *gin.Context, err error) {
	if e, ok := apierror.As(err); ok {
		c.JSON(apierror.Status(err), e.Envelope())
		return
	}
	log.Error().
		Str("request_id", c.GetString(middleware.RequestIDKey)).
		Str("path", c.FullPath()).
		Err(err).
		Msg("unhandled error")
	c.JSON(http.StatusInternalServerError, apierror.New("Error interno del servidor"))
}

func identidad(c *gin.Context) (authz.Identidad, bool) {
	ident, ok := middleware.GetIdentidad(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, apierror.New("Autenticacion requerida"))
	}
	return ident, ok
}

func paramUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		c.JSON(http.StatusBadRequest, &apierror.APIError{Code: apierror.CodeInvalidID, Detail: name + " invalido"})
		return uuid.Nil, false
	}
	return id, true
}
