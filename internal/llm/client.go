package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"

	"github.com/farmrag/backend/internal/postprocess"
	"github.com/farmrag/backend/pkg/circuitbreaker"
	"github.com/farmrag/backend/pkg/logger"
	"github.com/farmrag/backend/pkg/retry"
)

// Content errors are distinct from transport failures: the call reached the
// model but the answer is unusable. They are never retried.
var (
	ErrGenerationEmpty  = errors.New("generation returned no candidates")
	ErrGenerationNoText = errors.New("generation candidate has no text")
)

const defaultCallTimeout = 60 * time.Second

type Client struct {
	client         *openai.Client
	model          string
	visionModel    string
	embeddingModel string
	temperature    float32
	maxTokens      int
	callTimeout    time.Duration
	cb             *circuitbreaker.CircuitBreaker
	retryConfig    retry.Config
}

type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float32
	MaxTokens    int
}

type CompletionResponse struct {
	Content string
	Usage   Usage
}

type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
}

// Label is one ranked hypothesis from image classification.
type Label struct {
	Name       string  `json:"name"`
	Confidence float64 `json:"confidence"`
}

func NewClient(apiKey, model, visionModel, embeddingModel string, temperature float32, maxTokens, timeoutSec int) *Client {
	client := openai.NewClient(apiKey)

	callTimeout := defaultCallTimeout
	if timeoutSec > 0 {
		callTimeout = time.Duration(timeoutSec) * time.Second
	}

	cb := circuitbreaker.NewCircuitBreaker("llm", circuitbreaker.Config{
		MaxRequests:      5,
		Interval:         time.Minute,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
		SuccessThreshold: 2,
		Logger:           logger.GetLogger(),
	})

	retryConfig := retry.Config{
		MaxAttempts:    4,
		InitialDelay:   500 * time.Millisecond,
		MaxDelay:       5 * time.Second,
		Multiplier:     2.0,
		JitterFraction: 0.1,
		IsRetryable:    isRetryableAPIError,
		Logger:         logger.GetLogger(),
	}

	logger.Info("LLM client initialized",
		zap.String("model", model),
		zap.String("vision_model", visionModel),
		zap.String("embedding_model", embeddingModel),
	)

	return &Client{
		client:         client,
		model:          model,
		visionModel:    visionModel,
		embeddingModel: embeddingModel,
		temperature:    temperature,
		maxTokens:      maxTokens,
		callTimeout:    callTimeout,
		cb:             cb,
		retryConfig:    retryConfig,
	}
}

func (c *Client) Complete(ctx context.Context, req CompletionRequest) (*CompletionResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}

	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	messages := []openai.ChatCompletionMessage{
		{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.SystemPrompt,
		},
		{
			Role:    openai.ChatMessageRoleUser,
			Content: req.UserPrompt,
		},
	}

	var result *CompletionResponse

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.client.CreateChatCompletion(
				ctx,
				openai.ChatCompletionRequest{
					Model:       c.model,
					Messages:    messages,
					Temperature: temperature,
					MaxTokens:   maxTokens,
				},
			)

			if err != nil {
				return fmt.Errorf("failed to create completion: %w", err)
			}

			if len(resp.Choices) == 0 {
				return ErrGenerationEmpty
			}
			content := resp.Choices[0].Message.Content
			if strings.TrimSpace(content) == "" {
				return ErrGenerationNoText
			}

			logger.Debug("LLM completion generated",
				zap.Int("prompt_tokens", resp.Usage.PromptTokens),
				zap.Int("completion_tokens", resp.Usage.CompletionTokens),
			)

			result = &CompletionResponse{
				Content: content,
				Usage: Usage{
					PromptTokens:     resp.Usage.PromptTokens,
					CompletionTokens: resp.Usage.CompletionTokens,
					TotalTokens:      resp.Usage.TotalTokens,
				},
			}

			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	return result, nil
}

// Generate runs a fully assembled prompt with the pipeline's fixed sampling
// parameters and returns the first candidate's text.
func (c *Client) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.Complete(ctx, CompletionRequest{
		SystemPrompt: "You are an agricultural advisor for smallholder farmers. Answer only from the provided context. Use plain, non-technical language.",
		UserPrompt:   prompt,
		Temperature:  0.2,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}

func (c *Client) GenerateEmbedding(ctx context.Context, text string) ([]float32, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	var embedding []float32

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.client.CreateEmbeddings(
				ctx,
				openai.EmbeddingRequest{
					Input: []string{text},
					Model: openai.EmbeddingModel(c.embeddingModel),
				},
			)

			if err != nil {
				return fmt.Errorf("failed to generate embedding: %w", err)
			}

			if len(resp.Data) == 0 || len(resp.Data[0].Embedding) == 0 {
				return fmt.Errorf("embedding response is empty")
			}

			embedding = make([]float32, len(resp.Data[0].Embedding))
			copy(embedding, resp.Data[0].Embedding)

			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	return embedding, nil
}

// ClassifyImage sends a data-URI image to the vision model and returns ranked
// disease hypotheses. The raw model output is narrowed to typed labels here,
// at the adapter boundary.
func (c *Client) ClassifyImage(ctx context.Context, imageDataURI string) ([]Label, error) {
	ctx, cancel := context.WithTimeout(ctx, c.callTimeout)
	defer cancel()

	systemPrompt := `You are a plant pathology classifier. Given a photo of a crop, identify the most likely diseases or pests visible.

Return ONLY a JSON array, most likely first:
[{"name": "disease name", "confidence": 0.92}]

Use 1 to 3 entries. If the image shows a healthy plant, return [{"name": "Healthy", "confidence": ...}].`

	var content string

	err := c.cb.Execute(ctx, func() error {
		return retry.Do(ctx, c.retryConfig, func() error {
			resp, err := c.client.CreateChatCompletion(
				ctx,
				openai.ChatCompletionRequest{
					Model: c.visionModel,
					Messages: []openai.ChatCompletionMessage{
						{
							Role:    openai.ChatMessageRoleSystem,
							Content: systemPrompt,
						},
						{
							Role: openai.ChatMessageRoleUser,
							MultiContent: []openai.ChatMessagePart{
								{
									Type: openai.ChatMessagePartTypeText,
									Text: "Identify the disease in this crop photo.",
								},
								{
									Type: openai.ChatMessagePartTypeImageURL,
									ImageURL: &openai.ChatMessageImageURL{
										URL: imageDataURI,
									},
								},
							},
						},
					},
					Temperature: 0.1,
					MaxTokens:   300,
				},
			)

			if err != nil {
				return fmt.Errorf("failed to classify image: %w", err)
			}

			if len(resp.Choices) == 0 {
				return ErrGenerationEmpty
			}
			content = resp.Choices[0].Message.Content
			if strings.TrimSpace(content) == "" {
				return ErrGenerationNoText
			}

			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	var labels []Label
	if err := postprocess.Unmarshal(content, &labels); err != nil {
		return nil, fmt.Errorf("failed to parse classification: %w", err)
	}
	if len(labels) == 0 {
		return nil, ErrGenerationEmpty
	}

	logger.Info("Image classified",
		zap.String("top_label", labels[0].Name),
		zap.Float64("confidence", labels[0].Confidence),
	)

	return labels, nil
}

func isRetryableAPIError(err error) bool {
	if errors.Is(err, ErrGenerationEmpty) || errors.Is(err, ErrGenerationNoText) {
		return false
	}

	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode == 429 || apiErr.HTTPStatusCode >= 500
	}

	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode == 429 || reqErr.HTTPStatusCode >= 500
	}

	// Transport-level failure without a status.
	return true
}
