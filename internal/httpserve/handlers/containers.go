package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// ContainersGET lists the containers this server manages.
func ContainersGET(c echo.Context, a *App) error {
	containers, err := a.Containers.ListManaged(c.Request().Context())
	if err != nil {
		a.Logger.Error("Failed to list containers", "err", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Failed to list containers"})
	}

	return c.JSON(http.StatusOK, containers)
}

func HealthGET(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}
