package handlers

import (
	"errors"
	"fmt"
	"io"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/farmrag/backend/internal/ingestion"
	"github.com/farmrag/backend/internal/metrics"
	"github.com/farmrag/backend/pkg/logger"
)

const defaultMaxUploadBytes = 10 << 20

type UploadHandler struct {
	processor *ingestion.Processor
	maxBytes  int64
}

func NewUploadHandler(processor *ingestion.Processor, maxBytes int64) *UploadHandler {
	if maxBytes <= 0 {
		maxBytes = defaultMaxUploadBytes
	}
	return &UploadHandler{processor: processor, maxBytes: maxBytes}
}

func (h *UploadHandler) HandleUpload(c *fiber.Ctx) error {
	fileHeader, err := c.FormFile("file")
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "No file provided",
		})
	}

	namespace := c.FormValue("namespace")
	if namespace == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "namespace is required",
		})
	}

	if fileHeader.Size > h.maxBytes {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   fmt.Sprintf("File exceeds the %dMB limit", h.maxBytes>>20),
		})
	}

	if !h.processor.Ready() {
		logger.Warn("Upload received without vector store credentials",
			zap.String("namespace", namespace))
		metrics.RequestsTotal.WithLabelValues("upload", "degraded").Inc()
		return c.JSON(fiber.Map{
			"success": true,
			"message": "Demo mode: document accepted but not indexed",
			"details": fiber.Map{
				"namespace":       namespace,
				"chunksProcessed": 0,
				"chunksSkipped":   0,
				"textLength":      0,
			},
		})
	}

	file, err := fileHeader.Open()
	if err != nil {
		logger.Error("Failed to open upload", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Failed to read file",
		})
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		logger.Error("Failed to read upload", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Failed to read file",
		})
	}

	mimeType := fileHeader.Header.Get("Content-Type")

	report, err := h.processor.ProcessUpload(c.Context(), fileHeader.Filename, mimeType, data, namespace)
	if err != nil {
		if errors.Is(err, ingestion.ErrNoContent) {
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
				"success": false,
				"error":   "Document contains no extractable text",
			})
		}
		logger.Error("Upload processing failed",
			zap.String("file", fileHeader.Filename),
			zap.String("namespace", namespace),
			zap.Error(err))
		metrics.RequestsTotal.WithLabelValues("upload", "error").Inc()
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"success": false,
			"error":   "Failed to process document",
		})
	}

	metrics.RequestsTotal.WithLabelValues("upload", "success").Inc()

	return c.JSON(fiber.Map{
		"success": true,
		"message": "Document processed successfully",
		"details": fiber.Map{
			"namespace":       report.Namespace,
			"chunksProcessed": report.ChunksProcessed,
			"chunksSkipped":   report.ChunksSkipped,
			"textLength":      report.TextLength,
		},
	})
}
