package ingestion

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/farmrag/backend/internal/cache/redis"
	"github.com/farmrag/backend/internal/metrics"
	"github.com/farmrag/backend/internal/storage/models"
	"github.com/farmrag/backend/internal/storage/sqlite"
	"github.com/farmrag/backend/internal/vector/milvus"
	"github.com/farmrag/backend/pkg/logger"
	"github.com/farmrag/backend/pkg/utils"
)

// ErrNoContent is returned when an upload carries no text worth indexing.
// Handlers map it to an input-validation failure, not a server error.
var ErrNoContent = errors.New("no meaningful content in document")

type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

type VectorStore interface {
	Upsert(ctx context.Context, namespace string, records []milvus.Record) error
	DeleteAll(ctx context.Context, namespace string) error
}

// Processor turns an uploaded document into namespace-scoped chunk vectors:
// extract text, chunk, embed each chunk at a paced rate, clear the namespace,
// upsert. Embedding failures skip the chunk rather than aborting the upload.
type Processor struct {
	embedder   Embedder
	store      VectorStore
	chunker    *Chunker
	cache      *redis.Client
	db         *sqlite.Client
	embedDelay time.Duration
}

type Report struct {
	Namespace       string
	ChunksProcessed int
	ChunksSkipped   int
	TextLength      int
}

func NewProcessor(embedder Embedder, store VectorStore, chunker *Chunker, cache *redis.Client, db *sqlite.Client, embedDelay time.Duration) *Processor {
	return &Processor{
		embedder:   embedder,
		store:      store,
		chunker:    chunker,
		cache:      cache,
		db:         db,
		embedDelay: embedDelay,
	}
}

// Ready reports whether the hosted dependencies needed for indexing are
// configured. When false the upload route serves a degraded response.
func (p *Processor) Ready() bool {
	return p != nil && p.embedder != nil && p.store != nil
}

func (p *Processor) ProcessUpload(ctx context.Context, sourceName, mimeType string, data []byte, namespace string) (*Report, error) {
	logger.Info("Processing upload",
		zap.String("source", sourceName),
		zap.String("mime_type", mimeType),
		zap.String("namespace", namespace),
		zap.Int("bytes", len(data)),
	)

	text := extractText(mimeType, data)
	chunks := p.chunker.Chunk(text)
	if len(chunks) == 0 {
		return nil, ErrNoContent
	}

	// Older vectors go first so the namespace only ever reflects the most
	// recent upload. Clear-then-write is not atomic; a query racing this
	// re-upload may observe an empty or partial namespace.
	if err := p.store.DeleteAll(ctx, namespace); err != nil {
		logger.Warn("Failed to clear namespace before upload",
			zap.String("namespace", namespace),
			zap.Error(err),
		)
	}

	runStamp := time.Now().Unix()
	source := utils.SanitizeID(sourceName)

	records := make([]milvus.Record, 0, len(chunks))
	skipped := 0

	for i, chunk := range chunks {
		if i > 0 && p.embedDelay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(p.embedDelay):
			}
		}

		embedding, err := p.embedChunk(ctx, chunk.Text)
		if err != nil {
			logger.Warn("Skipping chunk, embedding failed",
				zap.String("source", sourceName),
				zap.Int("chunk_index", chunk.Index),
				zap.Error(err),
			)
			skipped++
			continue
		}

		records = append(records, milvus.Record{
			ID:         fmt.Sprintf("%s_%d_chunk_%d", source, runStamp, chunk.Index),
			Embedding:  embedding,
			Text:       chunk.Text,
			Source:     sourceName,
			ChunkIndex: chunk.Index,
			UploadedAt: time.Unix(runStamp, 0),
		})
	}

	if len(records) > 0 {
		if err := p.store.Upsert(ctx, namespace, records); err != nil {
			return nil, fmt.Errorf("failed to upsert vectors: %w", err)
		}
	}

	metrics.ChunksProcessed.Add(float64(len(records)))
	metrics.ChunksSkipped.Add(float64(skipped))

	report := &Report{
		Namespace:       namespace,
		ChunksProcessed: len(records),
		ChunksSkipped:   skipped,
		TextLength:      len(text),
	}

	p.recordRun(sourceName, mimeType, namespace, report)

	logger.Info("Upload processed",
		zap.String("namespace", namespace),
		zap.Int("chunks_processed", report.ChunksProcessed),
		zap.Int("chunks_skipped", report.ChunksSkipped),
	)

	return report, nil
}

func (p *Processor) embedChunk(ctx context.Context, text string) ([]float32, error) {
	key := utils.HashString(text)

	if p.cache != nil {
		if embedding, ok := p.cache.GetEmbedding(ctx, key); ok {
			metrics.CacheHits.WithLabelValues("embedding").Inc()
			return embedding, nil
		}
		metrics.CacheMisses.WithLabelValues("embedding").Inc()
	}

	embedding, err := p.embedder.GenerateEmbedding(ctx, text)
	if err != nil {
		return nil, err
	}

	p.cache.SetEmbedding(ctx, key, embedding)

	return embedding, nil
}

func (p *Processor) recordRun(sourceName, mimeType, namespace string, report *Report) {
	if p.db == nil {
		return
	}
	err := p.db.InsertUploadRun(&models.UploadRun{
		ID:              uuid.New().String(),
		SourceName:      sourceName,
		Namespace:       namespace,
		MimeType:        mimeType,
		TextLength:      report.TextLength,
		ChunksProcessed: report.ChunksProcessed,
		ChunksSkipped:   report.ChunksSkipped,
		CreatedAt:       time.Now(),
	})
	if err != nil {
		logger.Warn("Failed to record upload run", zap.Error(err))
	}
}

var whitespaceRun = regexp.MustCompile(`\s+`)

func extractText(mimeType string, data []byte) string {
	var text string

	if strings.Contains(mimeType, "text/html") {
		text = textFromHTML(string(data))
	} else {
		text = string(data)
	}

	text = whitespaceRun.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}

func textFromHTML(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return ""
	}

	doc.Find("script, style, nav, footer, header, aside").Each(func(i int, s *goquery.Selection) {
		s.Remove()
	})

	return doc.Find("body").Text()
}
