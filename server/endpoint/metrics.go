package endpoint

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Metrics serves the Prometheus exposition produced by h.
func Metrics(h http.Handler) gin.HandlerFunc {
	return gin.WrapH(h)
}
