package server

import (
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "github.com/kbukum/whisper-server/errors"
)

// RespondWithError writes err as the error envelope. Errors that are not
// AppErrors become a generic 500 so internals never reach the client.
func RespondWithError(c *gin.Context, err error) {
	appErr := apperrors.Wrap(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(appErr.HTTPStatus, appErr.ToResponse())
}

// RespondOK sends a 200 with data as the body.
func RespondOK(c *gin.Context, data any) {
	c.JSON(http.StatusOK, data)
}

