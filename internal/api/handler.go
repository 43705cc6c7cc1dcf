package api

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"recipic/internal/logger"
	"recipic/internal/recipe"
	"recipic/internal/upload"
)

// MaxUploadBytes caps the size of an uploaded ingredient photo.
const MaxUploadBytes = 10 << 20

var errImageTooLarge = fmt.Errorf("image is larger than %d MB", MaxUploadBytes>>20)

// Generator defines the recipe generation operations the handlers call.
type Generator interface {
	GenerateText(ctx context.Context, req recipe.GenerationRequest) recipe.Result
	AnalyzeImage(ctx context.Context, req recipe.GenerationRequest) recipe.Result
}

// GenerationStore defines read access to cached generations.
type GenerationStore interface {
	GetGeneration(ctx context.Context, hash string) (*recipe.Generation, error)
	ListGenerations(ctx context.Context, mealType recipe.MealType) ([]*recipe.Generation, error)
}

// Handler handles HTTP requests.
type Handler struct {
	Generator Generator
	Store     GenerationStore
	Timeout   time.Duration
	log       *zap.Logger
}

// NewHandler creates a new Handler. store may be nil when no cache is configured.
func NewHandler(generator Generator, store GenerationStore, timeout time.Duration, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = 45 * time.Second
	}
	if _, err := initTrans(); err != nil {
		log.Warn("validation messages will not be translated", zap.Error(err))
	}
	return &Handler{Generator: generator, Store: store, Timeout: timeout, log: log}
}

// mealType is parsed case-insensitively after binding.
type textGenerateRequest struct {
	Text     string `json:"text" binding:"required"`
	MealType string `json:"mealType"`
}

type imageAnalyzeRequest struct {
	Text      string `json:"text"`
	ImagePath string `json:"imagePath" binding:"required"`
	MealType  string `json:"mealType"`
}

// GenerateText handles recipe generation from typed ingredients.
func (h *Handler) GenerateText(c *gin.Context) {
	var body textGenerateRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.log.Info("text generation with invalid body", zap.Error(err))
		h.respond(c, recipe.Failure(recipe.KindInvalidRequest, errors.New(bindingMessage(err))))
		return
	}

	mealType, err := recipe.ParseMealType(body.MealType)
	if err != nil {
		h.respond(c, recipe.Failure(recipe.KindInvalidRequest, err))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.Timeout)
	defer cancel()

	h.respond(c, h.Generator.GenerateText(ctx, recipe.GenerationRequest{Text: body.Text, MealType: mealType}))
}

// AnalyzeImage handles recipe generation from an ingredient photo.
func (h *Handler) AnalyzeImage(c *gin.Context) {
	var body imageAnalyzeRequest
	if err := c.ShouldBindJSON(&body); err != nil {
		h.log.Info("image analysis with invalid body", zap.Error(err))
		h.respond(c, recipe.Failure(recipe.KindInvalidRequest, errors.New(bindingMessage(err))))
		return
	}
	mealType, err := recipe.ParseMealType(body.MealType)
	if err != nil {
		h.respond(c, recipe.Failure(recipe.KindInvalidRequest, err))
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.Timeout)
	defer cancel()

	h.respond(c, h.Generator.AnalyzeImage(ctx, recipe.GenerationRequest{
		Text:      body.Text,
		ImagePath: body.ImagePath,
		MealType:  mealType,
	}))
}

// UploadImage converts an uploaded photo into a data URL the client can send
// back as imagePath.
func (h *Handler) UploadImage(c *gin.Context) {
	file, err := c.FormFile("file")
	if err != nil {
		h.respond(c, recipe.Failure(recipe.KindInvalidRequest, fmt.Errorf("get form err: %w", err)))
		return
	}
	if file.Size > MaxUploadBytes {
		h.respond(c, recipe.Failure(recipe.KindInvalidRequest, errImageTooLarge))
		return
	}
	if _, err := upload.MimeType(file.Filename); err != nil {
		h.respond(c, recipe.Failure(recipe.KindInvalidRequest, err))
		return
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("open file err: %s", err.Error())})
		return
	}
	defer src.Close()

	imageData, err := io.ReadAll(src)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("read image err: %s", err.Error())})
		return
	}

	dataURL, err := upload.EncodeDataURL(file.Filename, imageData)
	if err != nil {
		h.respond(c, recipe.Failure(recipe.KindInvalidRequest, err))
		return
	}

	c.JSON(http.StatusOK, gin.H{"dataUrl": dataURL, "imageHash": upload.ImageHash(imageData)})
}

// ListGenerations lists cached generations, optionally filtered by meal_type.
func (h *Handler) ListGenerations(c *gin.Context) {
	if h.Store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "generation history is not configured"})
		return
	}

	var mealType recipe.MealType
	if q := c.Query("meal_type"); q != "" {
		m, err := recipe.ParseMealType(q)
		if err != nil {
			h.respond(c, recipe.Failure(recipe.KindInvalidRequest, err))
			return
		}
		mealType = m
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	generations, err := h.Store.ListGenerations(ctx, mealType)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			c.JSON(http.StatusRequestTimeout, gin.H{"error": "database query timed out after 5 seconds"})
			return
		}
		h.log.Error("failed to list generations", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("database error: %s", err.Error())})
		return
	}

	c.JSON(http.StatusOK, generations)
}

// GetGeneration returns one cached generation by request hash.
func (h *Handler) GetGeneration(c *gin.Context) {
	if h.Store == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "generation history is not configured"})
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	generation, err := h.Store.GetGeneration(ctx, c.Param("hash"))
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			c.JSON(http.StatusRequestTimeout, gin.H{"error": "database query timed out after 5 seconds"})
			return
		}
		h.log.Error("failed to get generation", zap.String("hash", c.Param("hash")), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": fmt.Sprintf("database error: %s", err.Error())})
		return
	}
	if generation == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "generation not found"})
		return
	}

	c.JSON(http.StatusOK, generation)
}

// Health reports that the server is up.
func (h *Handler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) respond(c *gin.Context, res recipe.Result) {
	if !res.Success {
		h.log.Info("generation failed",
			zap.String("request_id", logger.RequestID(c)),
			zap.String("kind", string(res.Kind)),
			zap.String("error", res.Error),
		)
	}
	c.JSON(StatusFor(res), res)
}

// StatusFor maps a generation result to its HTTP status code.
func StatusFor(res recipe.Result) int {
	if res.Success {
		return http.StatusOK
	}
	switch res.Kind {
	case recipe.KindInvalidRequest:
		return http.StatusBadRequest
	case recipe.KindTimeout:
		return http.StatusRequestTimeout
	default:
		return http.StatusBadGateway
	}
}
