package handlers

import (
	"errors"
	"net/http"

	"github.com/bkralik/drydock/internal/deploy"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
)

type uploadResponse struct {
	Message         string `json:"message"`
	DockerImage     string `json:"docker_image"`
	DockerContainer string `json:"docker_container"`
}

// UploadPOST handles the /upload route: one multipart file field drives
// the whole build-and-deploy pipeline.
func UploadPOST(c echo.Context, a *App) error {
	c.Request().Body = http.MaxBytesReader(c.Response(), c.Request().Body, a.MaxUploadBytes)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "No file part in the request"})
	}
	if fileHeader.Filename == "" {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "No selected file"})
	}

	src, err := fileHeader.Open()
	if err != nil {
		return c.JSON(http.StatusBadRequest, errorResponse{Error: "No file part in the request"})
	}
	defer src.Close()

	logger := a.Logger.With("deployment", uuid.NewString(), "filename", fileHeader.Filename)
	logger.Info("Deploy started")

	result, err := a.Deployer.Deploy(c.Request().Context(), fileHeader.Filename, src)
	if err != nil {
		logger.Error("Deploy failed", "err", err)

		status := http.StatusInternalServerError
		var deployErr *deploy.Error
		if errors.As(err, &deployErr) && deployErr.ClientFault() {
			status = http.StatusBadRequest
		}
		return c.JSON(status, errorResponse{Error: err.Error()})
	}

	logger.Info("Deploy finished", "image", result.Image, "container", result.Container)
	return c.JSON(http.StatusOK, uploadResponse{
		Message:         result.Message,
		DockerImage:     result.Image,
		DockerContainer: result.Container,
	})
}
