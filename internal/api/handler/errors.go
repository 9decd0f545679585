package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/macthinh22/my-knowledge-app/internal/api/middleware"
	"github.com/macthinh22/my-knowledge-app/internal/domain"
)

// respondError maps service errors onto status codes and writes {"error": msg}.
func respondError(c *gin.Context, err error, notFoundMsg string) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		msg := strings.TrimPrefix(err.Error(), domain.ErrInvalidInput.Error()+": ")
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
	case errors.Is(err, domain.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": notFoundMsg})
	default:
		middleware.GetLogger(c).WithError(err).Errorf("Request failed: method=%s, path=%s",
			c.Request.Method, c.FullPath())
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": msg})
}
