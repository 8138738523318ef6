package handlers

import (
	"context"

	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/farmrag/backend/internal/rag"
	"github.com/farmrag/backend/pkg/logger"
)

type WebSocketHandler struct {
	engine *rag.Engine
}

func NewWebSocketHandler(engine *rag.Engine) *WebSocketHandler {
	return &WebSocketHandler{
		engine: engine,
	}
}

func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")

	defer func() {
		c.Close()
		logger.Info("WebSocket connection closed")
	}()

	for {
		var msg struct {
			Type      string     `json:"type"`
			Message   string     `json:"message"`
			Namespace string     `json:"namespace"`
			History   []rag.Turn `json:"conversationHistory"`
		}

		err := c.ReadJSON(&msg)
		if err != nil {
			logger.Error("Failed to read WebSocket message", zap.Error(err))
			break
		}

		if msg.Type != "chat" {
			continue
		}

		logger.Info("Processing WebSocket chat",
			zap.String("namespace", msg.Namespace))

		err = h.streamResponse(c, rag.ChatRequest{
			Message:   msg.Message,
			Namespace: msg.Namespace,
			History:   msg.History,
		})
		if err != nil {
			logger.Error("Failed to stream response", zap.Error(err))
			h.sendError(c, "Failed to process message")
		}
	}
}

func (h *WebSocketHandler) streamResponse(c *websocket.Conn, req rag.ChatRequest) error {
	ctx := context.Background()

	h.sendChunk(c, "status", "Thinking...")

	outcome := h.engine.Chat(ctx, req)

	if outcome.Kind == rag.KindRejected {
		h.sendError(c, outcome.ValidationError)
		return nil
	}

	words := splitIntoWords(outcome.Response)
	for i, word := range words {
		chunk := word
		if i < len(words)-1 {
			chunk += " "
		}

		err := h.sendChunk(c, "chunk", chunk)
		if err != nil {
			return err
		}
	}

	return h.sendComplete(c, outcome)
}

func (h *WebSocketHandler) sendChunk(c *websocket.Conn, msgType, content string) error {
	msg := map[string]interface{}{
		"type":    msgType,
		"content": content,
	}

	return c.WriteJSON(msg)
}

func (h *WebSocketHandler) sendComplete(c *websocket.Conn, outcome rag.Outcome) error {
	msg := map[string]interface{}{
		"type":     "complete",
		"sources":  sourcesPayload(outcome.Sources),
		"degraded": outcome.Kind == rag.KindDegraded,
	}

	return c.WriteJSON(msg)
}

func (h *WebSocketHandler) sendError(c *websocket.Conn, errorMsg string) {
	msg := map[string]interface{}{
		"type":  "error",
		"error": errorMsg,
	}

	c.WriteJSON(msg)
}

func splitIntoWords(text string) []string {
	words := []string{}
	currentWord := ""

	for _, char := range text {
		if char == ' ' || char == '\n' {
			if currentWord != "" {
				words = append(words, currentWord)
				currentWord = ""
			}
			if char == '\n' {
				words = append(words, "\n")
			}
		} else {
			currentWord += string(char)
		}
	}

	if currentWord != "" {
		words = append(words, currentWord)
	}

	return words
}
