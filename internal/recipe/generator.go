package recipe

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"recipic/internal/llm"
)

// GenerationCache stores completions so repeated requests skip the provider.
type GenerationCache interface {
	GetGeneration(ctx context.Context, hash string) (*Generation, error)
	SaveGeneration(ctx context.Context, g *Generation) error
}

// Options configures a Generator.
type Options struct {
	TextModel   string
	VisionModel string
	// Choices is the number of completions requested per call.
	Choices int
	// MaxTokens and Temperature are left to the provider when zero.
	MaxTokens   int
	Temperature float64
}

// Generator turns validated requests into provider calls and normalized results.
type Generator struct {
	text   llm.Provider
	vision llm.Provider
	cache  GenerationCache
	opts   Options
	log    *zap.Logger
}

// NewGenerator creates a new Generator. vision defaults to text, and cache and
// log may be nil.
func NewGenerator(text, vision llm.Provider, cache GenerationCache, opts Options, log *zap.Logger) *Generator {
	if vision == nil {
		vision = text
	}
	if log == nil {
		log = zap.NewNop()
	}
	if opts.Choices < 1 {
		opts.Choices = 1
	}
	return &Generator{text: text, vision: vision, cache: cache, opts: opts, log: log}
}

// GenerateText generates a recipe from typed ingredients and a meal type.
func (g *Generator) GenerateText(ctx context.Context, req GenerationRequest) Result {
	if err := req.ValidateText(); err != nil {
		return Failure(KindInvalidRequest, err)
	}
	req.ImagePath = ""

	chatReq := llm.ChatRequest{
		Model:       g.opts.TextModel,
		Messages:    TextPrompt(req.Text, req.MealType),
		N:           g.opts.Choices,
		MaxTokens:   g.opts.MaxTokens,
		Temperature: g.opts.Temperature,
	}
	return g.generate(ctx, g.text, req, chatReq)
}

// AnalyzeImage generates a recipe from an ingredient photo and optional text.
func (g *Generator) AnalyzeImage(ctx context.Context, req GenerationRequest) Result {
	if err := req.ValidateImage(); err != nil {
		return Failure(KindInvalidRequest, err)
	}
	if req.MealType == "" {
		req.MealType = DefaultMealType
	}

	chatReq := llm.ChatRequest{
		Model:       g.opts.VisionModel,
		Messages:    ImagePrompt(req.Text, req.ImagePath, req.MealType),
		N:           g.opts.Choices,
		MaxTokens:   g.opts.MaxTokens,
		Temperature: g.opts.Temperature,
	}
	return g.generate(ctx, g.vision, req, chatReq)
}

func (g *Generator) generate(ctx context.Context, provider llm.Provider, req GenerationRequest, chatReq llm.ChatRequest) Result {
	hash := req.Hash()
	log := g.log.With(zap.String("hash", hash), zap.String("meal_type", string(req.MealType)), zap.Bool("image", req.HasImage()))

	if res, ok := g.cached(ctx, log, hash, req.ImagePath); ok {
		return res
	}

	start := time.Now()
	completion, err := provider.Complete(ctx, chatReq)
	if err != nil {
		log.Error("provider call failed", zap.Duration("elapsed", time.Since(start)), zap.Error(err))
		return providerFailure(err)
	}
	log.Info("provider call succeeded", zap.Duration("elapsed", time.Since(start)), zap.Int("choices", len(completion.Choices)))

	res := Normalize(completion, req.ImagePath)
	if !res.Success {
		log.Warn("provider output held no recipe", zap.Int("choices", len(completion.Choices)))
		return res
	}
	res.Hash = hash

	if g.cache != nil {
		gen := &Generation{
			Hash:       hash,
			MealType:   req.MealType,
			Text:       req.Text,
			HasImage:   req.HasImage(),
			Recipes:    Normalize(completion, "").Recipes,
			Completion: *completion,
		}
		if err := g.cache.SaveGeneration(ctx, gen); err != nil {
			log.Warn("failed to cache generation", zap.Error(err))
		}
	}

	return res
}

func (g *Generator) cached(ctx context.Context, log *zap.Logger, hash, image string) (Result, bool) {
	if g.cache == nil {
		return Result{}, false
	}
	gen, err := g.cache.GetGeneration(ctx, hash)
	if err != nil {
		log.Warn("generation cache lookup failed", zap.Error(err))
		return Result{}, false
	}
	if gen == nil {
		return Result{}, false
	}
	res := Normalize(&gen.Completion, image)
	if !res.Success {
		return Result{}, false
	}
	log.Info("generation found in cache")
	res.Hash = hash
	res.Cached = true
	return res, true
}

func providerFailure(err error) Result {
	if errors.Is(err, context.DeadlineExceeded) {
		return Failure(KindTimeout, fmt.Errorf("the recipe provider did not answer in time: %w", err))
	}
	return Failure(KindProviderError, err)
}
