package embeddings

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/time/rate"
	"google.golang.org/genai"

	"github.com/wmarzella/ronin/internal/common"
	"github.com/wmarzella/ronin/internal/interfaces"
)

// maxEmbedChars bounds the text sent to the API; job descriptions beyond
// this add little signal.
const maxEmbedChars = 8000

// Service produces embeddings via the Gemini API, falling back to the
// deterministic local embedder when no API key is configured. Every
// vector is tagged with the producing model so the store can refuse
// cross-model reads.
type Service struct {
	client   *genai.Client
	model    string
	dim      int
	limiter  *rate.Limiter
	retry    *RetryConfig
	fallback *HashEmbedder
	logger   arbor.ILogger
}

// NewService builds the embedding service from config. When no API key
// is present the service runs entirely on the local hash embedder.
func NewService(ctx context.Context, config *common.EmbeddingConfig, logger arbor.ILogger) (interfaces.EmbeddingService, error) {
	if config.APIKey == "" {
		logger.Warn().Msg("No embedding API key configured, using local hash embedder")
		return &Service{
			dim:      FallbackDimension,
			fallback: NewHashEmbedder(FallbackDimension),
			logger:   logger,
		}, nil
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize genai client: %w", err)
	}

	interval := 4 * time.Second
	if config.RateLimit != "" {
		if parsed, err := time.ParseDuration(config.RateLimit); err == nil && parsed > 0 {
			interval = parsed
		}
	}

	model := config.Model
	if model == "" {
		model = "gemini-embedding-001"
	}

	logger.Info().
		Str("model", model).
		Int("dimension", config.Dimension).
		Msg("Embedding service initialized")

	return &Service{
		client:  client,
		model:   model,
		dim:     config.Dimension,
		limiter: rate.NewLimiter(rate.Every(interval), 1),
		retry:   NewDefaultRetryConfig(),
		logger:  logger,
	}, nil
}

// Embed returns the embedding for the given text.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, common.ValidationError("text", "is empty")
	}
	if len(text) > maxEmbedChars {
		text = text[:maxEmbedChars]
	}

	if s.fallback != nil {
		return s.fallback.Embed(text), nil
	}

	var lastErr error
	for attempt := 0; attempt <= s.retry.MaxRetries; attempt++ {
		if err := s.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		vec, err := s.embedOnce(ctx, text)
		if err == nil {
			return vec, nil
		}
		lastErr = err

		if !IsRateLimitError(err) {
			return nil, err
		}

		backoff := s.retry.CalculateBackoff(attempt, ExtractRetryDelay(err))
		s.logger.Warn().
			Err(err).
			Int("attempt", attempt+1).
			Dur("backoff", backoff).
			Msg("Embedding API rate limited, backing off")

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return nil, fmt.Errorf("%w: embedding failed after %d attempts: %v", common.ErrTransient, s.retry.MaxRetries+1, lastErr)
}

func (s *Service) embedOnce(ctx context.Context, text string) ([]float32, error) {
	outputDim := int32(s.dim)
	config := &genai.EmbedContentConfig{
		OutputDimensionality: &outputDim,
	}

	result, err := s.client.Models.EmbedContent(ctx, s.model,
		[]*genai.Content{genai.NewContentFromText(text, genai.RoleUser)}, config)
	if err != nil {
		return nil, fmt.Errorf("embedding generation failed: %w", err)
	}

	var embedding []float32
	if result != nil && len(result.Embeddings) > 0 {
		embedding = result.Embeddings[0].Values
	}
	if embedding == nil {
		return nil, fmt.Errorf("no embedding returned from API")
	}

	if len(embedding) != s.dim {
		return nil, fmt.Errorf("%w: embedding dimension mismatch: expected %d, got %d", common.ErrPermanent, s.dim, len(embedding))
	}

	return embedding, nil
}

// Dimension returns the vector length this service produces.
func (s *Service) Dimension() int {
	return s.dim
}

// ModelName identifies the producing model.
func (s *Service) ModelName() string {
	if s.fallback != nil {
		return FallbackModelName
	}
	return s.model
}
