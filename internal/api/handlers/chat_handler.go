package handlers

import (
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/farmrag/backend/internal/metrics"
	"github.com/farmrag/backend/internal/rag"
	"github.com/farmrag/backend/internal/storage/models"
	"github.com/farmrag/backend/internal/storage/sqlite"
	"github.com/farmrag/backend/pkg/logger"
)

type ChatHandler struct {
	engine *rag.Engine
	db     *sqlite.Client
}

func NewChatHandler(engine *rag.Engine, db *sqlite.Client) *ChatHandler {
	return &ChatHandler{
		engine: engine,
		db:     db,
	}
}

type chatRequest struct {
	Message             string     `json:"message"`
	Namespace           string     `json:"namespace"`
	ConversationHistory []rag.Turn `json:"conversationHistory"`
}

func (h *ChatHandler) HandleChat(c *fiber.Ctx) error {
	start := time.Now()

	var req chatRequest
	if err := c.BodyParser(&req); err != nil {
		logger.Error("Failed to parse chat request", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   "Invalid request body",
		})
	}

	outcome := h.engine.Chat(c.Context(), rag.ChatRequest{
		Message:   req.Message,
		Namespace: req.Namespace,
		History:   req.ConversationHistory,
	})

	metrics.RequestsTotal.WithLabelValues("chat", outcome.Kind.String()).Inc()

	if outcome.Kind == rag.KindRejected {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"success": false,
			"error":   outcome.ValidationError,
		})
	}

	h.record(req, outcome, time.Since(start))

	resp := fiber.Map{
		"success":  true,
		"response": outcome.Response,
		"sources":  sourcesPayload(outcome.Sources),
	}
	if outcome.Kind == rag.KindDegraded {
		resp["degraded"] = true
	}

	return c.JSON(resp)
}

func (h *ChatHandler) GetHistory(c *fiber.Ctx) error {
	if h.db == nil {
		return c.JSON(fiber.Map{"history": []interface{}{}})
	}

	limit := c.QueryInt("limit", 20)

	records, err := h.db.GetRecentChats(limit)
	if err != nil {
		logger.Error("Failed to load chat history", zap.Error(err))
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": "Failed to load history",
		})
	}

	history := make([]fiber.Map, 0, len(records))
	for _, rec := range records {
		history = append(history, fiber.Map{
			"id":         rec.ID,
			"namespace":  rec.Namespace,
			"message":    rec.Message,
			"response":   rec.Response,
			"outcome":    rec.Outcome,
			"latency_ms": rec.LatencyMS,
			"created_at": rec.CreatedAt.Unix(),
		})
	}

	return c.JSON(fiber.Map{"history": history})
}

func (h *ChatHandler) record(req chatRequest, outcome rag.Outcome, latency time.Duration) {
	if h.db == nil {
		return
	}
	err := h.db.InsertChatRecord(&models.ChatRecord{
		ID:           uuid.New().String(),
		Namespace:    req.Namespace,
		Message:      req.Message,
		Response:     outcome.Response,
		Outcome:      outcome.Kind.String(),
		SourcesCount: len(outcome.Sources),
		LatencyMS:    int(latency.Milliseconds()),
		CreatedAt:    time.Now(),
	})
	if err != nil {
		logger.Warn("Failed to record chat", zap.Error(err))
	}
}

func sourcesPayload(sources []rag.Source) []fiber.Map {
	out := make([]fiber.Map, 0, len(sources))
	for _, s := range sources {
		out = append(out, fiber.Map{
			"source":     s.Source,
			"chunkIndex": s.ChunkIndex,
			"score":      s.Score,
		})
	}
	return out
}
