package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"fleetfusion/internal/middleware"
	"fleetfusion/pkg/logger"
)

// MeHandler returns the caller's resolved authorization context. Dashboards
// use it to decide which widgets to render without a second round trip.
type MeHandler struct {
	log logger.Logger
}

func NewMeHandler(log logger.Logger) *MeHandler {
	return &MeHandler{log: log}
}

func (h *MeHandler) Get(c *gin.Context) {
	authCtx := middleware.AuthContext(c)
	if authCtx == nil {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "Authentication required"})
		return
	}
	c.JSON(http.StatusOK, authCtx)
}
