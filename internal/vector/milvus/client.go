// Package milvus adapts the vector store behind namespace-scoped upsert,
// query and delete. A namespace (one scheme or one uploaded document) maps to
// a Milvus partition, so isolation between documents comes from the store
// itself rather than from id prefixing.
package milvus

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"go.uber.org/zap"

	"github.com/farmrag/backend/pkg/logger"
	"github.com/farmrag/backend/pkg/utils"
)

const defaultUpsertBatchSize = 100

type Client struct {
	client          client.Client
	collectionName  string
	vectorDim       int
	upsertBatchSize int
}

// Record is one chunk embedding bound for the store.
type Record struct {
	ID         string
	Embedding  []float32
	Text       string
	Source     string
	ChunkIndex int
	UploadedAt time.Time
}

// Result is one retrieved neighbor, score descending across a result set.
type Result struct {
	Text       string
	Score      float32
	Source     string
	ChunkIndex int
}

func NewClient(endpoint, apiKey, collectionName string, vectorDim, upsertBatchSize int) (*Client, error) {
	c, err := client.NewClient(context.Background(), client.Config{
		Address: endpoint,
		APIKey:  apiKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create milvus client: %w", err)
	}

	if upsertBatchSize <= 0 {
		upsertBatchSize = defaultUpsertBatchSize
	}

	logger.Info("Milvus client initialized",
		zap.String("endpoint", endpoint),
		zap.String("collection", collectionName),
	)

	return &Client{
		client:          c,
		collectionName:  collectionName,
		vectorDim:       vectorDim,
		upsertBatchSize: upsertBatchSize,
	}, nil
}

func (m *Client) Close() error {
	return m.client.Close()
}

func (m *Client) EnsureCollection(ctx context.Context) error {
	has, err := m.client.HasCollection(ctx, m.collectionName)
	if err != nil {
		return fmt.Errorf("failed to check collection: %w", err)
	}

	if has {
		logger.Info("Collection already exists", zap.String("collection", m.collectionName))
		return nil
	}

	schema := &entity.Schema{
		CollectionName: m.collectionName,
		Description:    "Scheme and document chunk embeddings",
		Fields: []*entity.Field{
			{
				Name:       "chunk_id",
				DataType:   entity.FieldTypeVarChar,
				PrimaryKey: true,
				AutoID:     false,
				TypeParams: map[string]string{
					"max_length": "128",
				},
			},
			{
				Name:     "embedding",
				DataType: entity.FieldTypeFloatVector,
				TypeParams: map[string]string{
					"dim": fmt.Sprintf("%d", m.vectorDim),
				},
			},
			{
				Name:     "text",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "4096",
				},
			},
			{
				Name:     "source",
				DataType: entity.FieldTypeVarChar,
				TypeParams: map[string]string{
					"max_length": "256",
				},
			},
			{
				Name:     "chunk_index",
				DataType: entity.FieldTypeInt64,
			},
			{
				Name:     "uploaded_at",
				DataType: entity.FieldTypeInt64,
			},
		},
	}

	err = m.client.CreateCollection(ctx, schema, entity.DefaultShardNumber)
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}

	// Embeddings are unit-norm, so inner product is cosine similarity and
	// higher scores mean closer neighbors.
	idx, err := entity.NewIndexIvfFlat(entity.IP, 1024)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	err = m.client.CreateIndex(ctx, m.collectionName, "embedding", idx, false)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	err = m.client.LoadCollection(ctx, m.collectionName, false)
	if err != nil {
		return fmt.Errorf("failed to load collection: %w", err)
	}

	logger.Info("Collection created and loaded", zap.String("collection", m.collectionName))

	return nil
}

// Upsert writes records into a namespace in batches, in the order given.
// Batches are disjoint id sets, so ordering across batches is not relied on.
func (m *Client) Upsert(ctx context.Context, namespace string, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	partition := partitionName(namespace)
	if err := m.ensurePartition(ctx, partition); err != nil {
		return err
	}

	for start := 0; start < len(records); start += m.upsertBatchSize {
		end := start + m.upsertBatchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]

		chunkIDs := make([]string, len(batch))
		embeddings := make([][]float32, len(batch))
		texts := make([]string, len(batch))
		sources := make([]string, len(batch))
		chunkIndexes := make([]int64, len(batch))
		uploadedAts := make([]int64, len(batch))

		for i, rec := range batch {
			chunkIDs[i] = rec.ID
			embeddings[i] = rec.Embedding
			texts[i] = rec.Text
			sources[i] = rec.Source
			chunkIndexes[i] = int64(rec.ChunkIndex)
			uploadedAts[i] = rec.UploadedAt.Unix()
		}

		_, err := m.client.Insert(
			ctx,
			m.collectionName,
			partition,
			entity.NewColumnVarChar("chunk_id", chunkIDs),
			entity.NewColumnFloatVector("embedding", m.vectorDim, embeddings),
			entity.NewColumnVarChar("text", texts),
			entity.NewColumnVarChar("source", sources),
			entity.NewColumnInt64("chunk_index", chunkIndexes),
			entity.NewColumnInt64("uploaded_at", uploadedAts),
		)
		if err != nil {
			return fmt.Errorf("failed to insert batch at %d: %w", start, err)
		}
	}

	if err := m.client.Flush(ctx, m.collectionName, false); err != nil {
		return fmt.Errorf("failed to flush: %w", err)
	}

	logger.Info("Records upserted",
		zap.String("namespace", namespace),
		zap.Int("count", len(records)),
	)

	return nil
}

// Query returns the topK nearest neighbors in a namespace, best first.
// A namespace that was never written reads as empty, not as an error.
func (m *Client) Query(ctx context.Context, namespace string, queryEmbedding []float32, topK int) ([]Result, error) {
	partition := partitionName(namespace)

	has, err := m.client.HasPartition(ctx, m.collectionName, partition)
	if err != nil {
		return nil, fmt.Errorf("failed to check partition: %w", err)
	}
	if !has {
		return nil, nil
	}

	sp, _ := entity.NewIndexIvfFlatSearchParam(16)

	searchResult, err := m.client.Search(
		ctx,
		m.collectionName,
		[]string{partition},
		"",
		[]string{"text", "source", "chunk_index"},
		[]entity.Vector{entity.FloatVector(queryEmbedding)},
		"embedding",
		entity.IP,
		topK,
		sp,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	results := make([]Result, 0, topK)
	for _, sr := range searchResult {
		textCol := sr.Fields.GetColumn("text")
		sourceCol := sr.Fields.GetColumn("source")
		indexCol := sr.Fields.GetColumn("chunk_index")

		for i := 0; i < sr.ResultCount; i++ {
			text, _ := textCol.Get(i)
			source, _ := sourceCol.Get(i)
			chunkIndex, _ := indexCol.Get(i)

			results = append(results, Result{
				Text:       text.(string),
				Score:      sr.Scores[i],
				Source:     source.(string),
				ChunkIndex: int(chunkIndex.(int64)),
			})
		}
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	logger.Info("Vector query completed",
		zap.String("namespace", namespace),
		zap.Int("topK", topK),
		zap.Int("results", len(results)),
	)

	return results, nil
}

// DeleteAll clears a namespace before a fresh upload. A namespace that never
// existed is not an error; deletion failures are logged and swallowed so an
// upload can still proceed to write.
func (m *Client) DeleteAll(ctx context.Context, namespace string) error {
	partition := partitionName(namespace)

	has, err := m.client.HasPartition(ctx, m.collectionName, partition)
	if err != nil {
		logger.Warn("Failed to check partition before delete",
			zap.String("namespace", namespace),
			zap.Error(err),
		)
		return nil
	}
	if !has {
		return nil
	}

	if err := m.client.ReleasePartitions(ctx, m.collectionName, []string{partition}); err != nil {
		logger.Warn("Failed to release partition",
			zap.String("namespace", namespace),
			zap.Error(err),
		)
	}

	if err := m.client.DropPartition(ctx, m.collectionName, partition); err != nil {
		logger.Warn("Failed to drop partition",
			zap.String("namespace", namespace),
			zap.Error(err),
		)
		return nil
	}

	logger.Info("Namespace cleared", zap.String("namespace", namespace))

	return nil
}

func (m *Client) ensurePartition(ctx context.Context, partition string) error {
	has, err := m.client.HasPartition(ctx, m.collectionName, partition)
	if err != nil {
		return fmt.Errorf("failed to check partition: %w", err)
	}
	if has {
		return nil
	}
	if err := m.client.CreatePartition(ctx, m.collectionName, partition); err != nil {
		return fmt.Errorf("failed to create partition: %w", err)
	}
	if err := m.client.LoadPartitions(ctx, m.collectionName, []string{partition}, false); err != nil {
		return fmt.Errorf("failed to load partition: %w", err)
	}
	return nil
}

func partitionName(namespace string) string {
	return "ns_" + utils.SanitizeID(namespace)
}
