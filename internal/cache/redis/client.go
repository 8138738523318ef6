// Package redis is an optional read-through cache for embeddings and
// translations. A nil *Client is valid and behaves as a permanent miss, so
// the pipeline never depends on Redis being present.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/farmrag/backend/pkg/logger"
)

const (
	embeddingTTL   = 24 * time.Hour
	translationTTL = 12 * time.Hour
)

type Client struct {
	client *redis.Client
}

func NewClient(host string, port int, password string, db int) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", host, port),
		Password: password,
		DB:       db,
	})

	ctx := context.Background()
	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}

	logger.Info("Redis cache initialized", zap.String("addr", fmt.Sprintf("%s:%d", host, port)))

	return &Client{client: client}, nil
}

func (c *Client) Close() error {
	if c == nil || c.client == nil {
		return nil
	}
	return c.client.Close()
}

func (c *Client) GetEmbedding(ctx context.Context, textHash string) ([]float32, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}

	data, err := c.client.Get(ctx, "embedding:"+textHash).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		logger.Warn("Embedding cache read failed", zap.Error(err))
		return nil, false
	}

	var embedding []float32
	if err := json.Unmarshal(data, &embedding); err != nil {
		logger.Warn("Embedding cache entry corrupt", zap.String("text_hash", textHash))
		return nil, false
	}

	logger.Debug("Embedding cache hit", zap.String("text_hash", textHash))
	return embedding, true
}

func (c *Client) SetEmbedding(ctx context.Context, textHash string, embedding []float32) {
	if c == nil || c.client == nil {
		return
	}

	data, err := json.Marshal(embedding)
	if err != nil {
		return
	}

	if err := c.client.Set(ctx, "embedding:"+textHash, data, embeddingTTL).Err(); err != nil {
		logger.Warn("Embedding cache write failed", zap.Error(err))
	}
}

func (c *Client) GetTranslation(ctx context.Context, key string) ([]string, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}

	data, err := c.client.Get(ctx, "translation:"+key).Bytes()
	if err == redis.Nil {
		return nil, false
	}
	if err != nil {
		logger.Warn("Translation cache read failed", zap.Error(err))
		return nil, false
	}

	var texts []string
	if err := json.Unmarshal(data, &texts); err != nil {
		return nil, false
	}

	logger.Debug("Translation cache hit", zap.String("key", key))
	return texts, true
}

func (c *Client) SetTranslation(ctx context.Context, key string, texts []string) {
	if c == nil || c.client == nil {
		return
	}

	data, err := json.Marshal(texts)
	if err != nil {
		return
	}

	if err := c.client.Set(ctx, "translation:"+key, data, translationTTL).Err(); err != nil {
		logger.Warn("Translation cache write failed", zap.Error(err))
	}
}
