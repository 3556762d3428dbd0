package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type imageResponse struct {
	Name   string `json:"name"`
	Exists bool   `json:"exists"`
}

// ImageGET reports whether a managed image with the given name has been
// built, so clients can poll deploy state without triggering a rebuild.
func ImageGET(c echo.Context, a *App) error {
	name := c.Param("name")
	if name == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "No image name given"})
	}

	exists, err := a.Images.ImageExists(c.Request().Context(), name)
	if err != nil {
		a.Logger.Error("Failed to check image", "image", name, "err", err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: "Failed to check image"})
	}

	return c.JSON(http.StatusOK, imageResponse{Name: name, Exists: exists})
}
