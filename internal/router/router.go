package router

import (
	"tokrelay/internal/handlers"

	"github.com/gin-gonic/gin"
)

func NewRouter(h *handlers.Handler) *gin.Engine {
	r := gin.Default()

	r.POST("/download", h.Download)
	r.GET("/files/:filename", h.ServeFile)
	r.GET("/history", h.History)
	r.GET("/health", h.Health)
	return r
}
