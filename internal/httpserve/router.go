package httpserve

import (
	"github.com/bkralik/drydock/internal/httpserve/handlers"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

// New builds the echo instance with all routes registered.
func New(a *handlers.App) *echo.Echo {
	e := echo.New()
	e.HideBanner = true
	e.Use(middleware.Recover())

	return RegisterRoutes(e, a)
}

func RegisterRoutes(e *echo.Echo, a *handlers.App) *echo.Echo {
	e.POST("/upload", func(c echo.Context) error {
		return handlers.UploadPOST(c, a)
	})
	e.GET("/containers", func(c echo.Context) error {
		return handlers.ContainersGET(c, a)
	})
	e.GET("/images/:name", func(c echo.Context) error {
		return handlers.ImageGET(c, a)
	})
	e.GET("/healthz", handlers.HealthGET)
	return e
}
