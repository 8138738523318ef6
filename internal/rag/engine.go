// Package rag runs the retrieval-augmented chat pipeline: embed the
// question, retrieve from the namespace, assemble a bounded prompt,
// generate, and map every failure to a user-safe outcome. The pipeline never
// retries itself; only individual hosted calls retry, and exhausted retries
// degrade to a canned answer instead of restarting.
package rag

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/farmrag/backend/internal/metrics"
	"github.com/farmrag/backend/internal/vector/milvus"
	"github.com/farmrag/backend/pkg/logger"
)

const (
	maxNamespaceLen = 128

	fallbackResponse = "I'm sorry, I can't reach the knowledge base right now. " +
		"Here is some general guidance: for government scheme details, visit your nearest Common Service Centre " +
		"or the official agriculture department portal. Please try asking me again in a little while."
)

type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

type Retriever interface {
	Query(ctx context.Context, namespace string, queryEmbedding []float32, topK int) ([]milvus.Result, error)
}

type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

type ChatRequest struct {
	Message   string
	Namespace string
	History   []Turn
}

type Engine struct {
	embedder      Embedder
	store         Retriever
	generator     Generator
	assembler     *Assembler
	topK          int
	maxMessageLen int
}

func NewEngine(embedder Embedder, store Retriever, generator Generator, topK, historyWindow, maxMessageLen int) *Engine {
	if topK <= 0 {
		topK = 5
	}
	if maxMessageLen <= 0 {
		maxMessageLen = 5000
	}
	return &Engine{
		embedder:      embedder,
		store:         store,
		generator:     generator,
		assembler:     NewAssembler(historyWindow),
		topK:          topK,
		maxMessageLen: maxMessageLen,
	}
}

// Ready reports whether every hosted dependency is configured.
func (e *Engine) Ready() bool {
	return e.embedder != nil && e.store != nil && e.generator != nil
}

// Chat runs one request through the pipeline. It always returns an Outcome;
// errors from hosted dependencies surface as degraded outcomes, never as
// raw failures.
func (e *Engine) Chat(ctx context.Context, req ChatRequest) Outcome {
	if msg := e.validate(req); msg != "" {
		return rejected(msg)
	}

	if !e.Ready() {
		logger.Warn("Chat served degraded, hosted dependencies not configured")
		metrics.DegradedTotal.WithLabelValues("missing_credentials").Inc()
		return degraded("missing_credentials", fallbackResponse)
	}

	timer := metrics.StageTimer("embedding")
	embedding, err := e.embedder.GenerateEmbedding(ctx, req.Message)
	timer.ObserveDuration()
	if err != nil {
		logger.Error("Query embedding failed", zap.Error(err))
		metrics.DegradedTotal.WithLabelValues("embedding_failed").Inc()
		return degraded("embedding_failed", fallbackResponse)
	}

	timer = metrics.StageTimer("retrieval")
	retrieved, err := e.store.Query(ctx, req.Namespace, embedding, e.topK)
	timer.ObserveDuration()
	if err != nil {
		logger.Error("Retrieval failed",
			zap.String("namespace", req.Namespace),
			zap.Error(err),
		)
		metrics.DegradedTotal.WithLabelValues("retrieval_failed").Inc()
		return degraded("retrieval_failed", fallbackResponse)
	}

	metrics.RetrievalResults.Observe(float64(len(retrieved)))

	prompt := e.assembler.Assemble(retrieved, req.History, req.Message)

	timer = metrics.StageTimer("generation")
	response, err := e.generator.Generate(ctx, prompt)
	timer.ObserveDuration()
	if err != nil {
		logger.Error("Generation failed", zap.Error(err))
		metrics.DegradedTotal.WithLabelValues("generation_failed").Inc()
		return degraded("generation_failed", fallbackResponse)
	}

	sources := make([]Source, 0, len(retrieved))
	for _, r := range retrieved {
		sources = append(sources, Source{
			Source:     r.Source,
			ChunkIndex: r.ChunkIndex,
			Score:      r.Score,
		})
	}

	logger.Info("Chat pipeline completed",
		zap.String("namespace", req.Namespace),
		zap.Int("retrieved", len(retrieved)),
		zap.Int("response_length", len(response)),
	)

	return success(response, sources)
}

func (e *Engine) validate(req ChatRequest) string {
	if strings.TrimSpace(req.Message) == "" {
		return "message is required"
	}
	if len(req.Message) > e.maxMessageLen {
		return "message exceeds maximum length"
	}
	if strings.TrimSpace(req.Namespace) == "" {
		return "namespace is required"
	}
	if len(req.Namespace) > maxNamespaceLen {
		return "namespace exceeds maximum length"
	}
	for _, turn := range req.History {
		if !strings.EqualFold(turn.Role, "user") && !strings.EqualFold(turn.Role, "assistant") {
			return "conversation history contains an invalid role"
		}
	}
	return ""
}
