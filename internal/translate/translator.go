// Package translate localizes response content with one batched call per
// request. Translation is a best-effort enhancement: any failure returns the
// source-language content unchanged.
package translate

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/farmrag/backend/internal/cache/redis"
	"github.com/farmrag/backend/internal/metrics"
	"github.com/farmrag/backend/pkg/httpx"
	"github.com/farmrag/backend/pkg/logger"
	"github.com/farmrag/backend/pkg/utils"
)

type Translator struct {
	http     *httpx.Client
	endpoint string
	apiKey   string
	cache    *redis.Client
}

type translateRequest struct {
	Texts  []string `json:"q"`
	Target string   `json:"target"`
	Format string   `json:"format"`
}

type translateResponse struct {
	Data struct {
		Translations []struct {
			TranslatedText string `json:"translatedText"`
		} `json:"translations"`
	} `json:"data"`
}

func NewTranslator(client *httpx.Client, endpoint, apiKey string, cache *redis.Client) *Translator {
	return &Translator{
		http:     client,
		endpoint: endpoint,
		apiKey:   apiKey,
		cache:    cache,
	}
}

func (t *Translator) Configured() bool {
	return t != nil && t.endpoint != "" && t.apiKey != ""
}

// TranslateBatch translates texts to the target language in a single hosted
// call. The result preserves length and order. On any failure — transport,
// bad status, count mismatch — the input is returned unchanged.
func (t *Translator) TranslateBatch(ctx context.Context, texts []string, target string) []string {
	if len(texts) == 0 || target == "" || strings.EqualFold(target, "en") || !t.Configured() {
		return texts
	}

	cacheKey := utils.HashString(strings.Join(texts, "\x1f") + "|" + target)
	if cached, ok := t.cache.GetTranslation(ctx, cacheKey); ok && len(cached) == len(texts) {
		metrics.CacheHits.WithLabelValues("translation").Inc()
		return cached
	}
	metrics.CacheMisses.WithLabelValues("translation").Inc()

	body, err := json.Marshal(translateRequest{
		Texts:  texts,
		Target: target,
		Format: "text",
	})
	if err != nil {
		return t.fallback(texts, target, "marshal failed", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.endpoint, bytes.NewReader(body))
	if err != nil {
		return t.fallback(texts, target, "request build failed", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+t.apiKey)

	resp := t.http.Do(req)
	defer resp.Body.Close()

	if !httpx.Ok(resp) {
		logger.Warn("Translation returned non-2xx, keeping source language",
			zap.Int("status", resp.StatusCode),
			zap.String("target", target),
		)
		metrics.TranslationFallbacks.Inc()
		return texts
	}

	var decoded translateResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return t.fallback(texts, target, "decode failed", err)
	}

	if len(decoded.Data.Translations) != len(texts) {
		logger.Warn("Translation count mismatch, keeping source language",
			zap.Int("sent", len(texts)),
			zap.Int("received", len(decoded.Data.Translations)),
		)
		metrics.TranslationFallbacks.Inc()
		return texts
	}

	out := make([]string, len(texts))
	for i, tr := range decoded.Data.Translations {
		out[i] = tr.TranslatedText
	}

	t.cache.SetTranslation(ctx, cacheKey, out)

	return out
}

// TranslateFields translates the pointed-to strings in place, preserving the
// shape of whatever structure the pointers came from. Positional
// redistribution falls out of the pointer list: fields[i] receives
// translation i.
func (t *Translator) TranslateFields(ctx context.Context, fields []*string, target string) {
	texts := make([]string, len(fields))
	for i, f := range fields {
		texts[i] = *f
	}

	translated := t.TranslateBatch(ctx, texts, target)
	if len(translated) != len(fields) {
		return
	}

	for i, f := range fields {
		*f = translated[i]
	}
}

func (t *Translator) fallback(texts []string, target, msg string, err error) []string {
	logger.Warn("Translation failed, keeping source language",
		zap.String("target", target),
		zap.String("cause", msg),
		zap.Error(err),
	)
	metrics.TranslationFallbacks.Inc()
	return texts
}
