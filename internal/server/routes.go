package server

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (s *Server) SetupRoutes() {
	s.ginEngine.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	apiV1 := s.ginEngine.Group("/v1")
	apiV1.POST("/generate", s.generateImage)
}
