package server

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// RegisterRoutes sets up all the application routes.
func (s *Server) RegisterRoutes() {
	api := s.E.Group("/api")
	api.POST("/register", s.authHandler.Register)
	api.POST("/login", s.authHandler.Login)

	s.E.GET("/ws", s.ServeWS)

	s.E.GET("/health", func(c echo.Context) error {
		return c.String(http.StatusOK, "OK")
	})
}
