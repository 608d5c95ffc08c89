package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// healthHandler reports process liveness only; it does not probe dependencies.
func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
