package handlers

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/farmrag/backend/internal/diagnose"
	"github.com/farmrag/backend/internal/metrics"
	"github.com/farmrag/backend/pkg/logger"
)

type DiagnoseHandler struct {
	diagnoser *diagnose.Diagnoser
}

func NewDiagnoseHandler(diagnoser *diagnose.Diagnoser) *DiagnoseHandler {
	return &DiagnoseHandler{diagnoser: diagnoser}
}

type diagnoseRequest struct {
	Image    string `json:"image"`
	Language string `json:"language"`
}

func (h *DiagnoseHandler) HandleDiagnose(c *fiber.Ctx) error {
	var req diagnoseRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	result, err := h.diagnoser.Diagnose(c.Context(), req.Image, req.Language)
	if err != nil {
		if errors.Is(err, diagnose.ErrInvalidImage) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"error": "image must be a base64 data URI",
			})
		}
		logger.Error("Diagnosis failed", zap.Error(err))
		metrics.RequestsTotal.WithLabelValues("diagnose", "error").Inc()
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Diagnosis failed",
		})
	}

	outcome := "success"
	if result.IsDemo {
		outcome = "degraded"
	}
	metrics.RequestsTotal.WithLabelValues("diagnose", outcome).Inc()

	return c.JSON(result)
}
