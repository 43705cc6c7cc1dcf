package recipe

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"strings"

	"recipic/internal/upload"
)

var (
	// ErrEmptyInput is returned when neither ingredient text nor an image was given.
	ErrEmptyInput = errors.New("add an ingredient photo or type your ingredients")
	// ErrTextRequired is returned when the text endpoint receives blank text.
	ErrTextRequired = errors.New("text must not be empty")
	// ErrInvalidImagePath is returned when the image reference is neither an http(s) URL nor an image data URL.
	ErrInvalidImagePath = errors.New("imagePath must be an http(s) URL or an image data URL")
)

// IngredientInput is what the user supplied: a photo, typed ingredients, or both.
type IngredientInput struct {
	ImagePath string
	Text      string
}

// NewIngredientInput returns the input for the given text and image reference.
func NewIngredientInput(text, imagePath string) IngredientInput {
	return IngredientInput{ImagePath: imagePath, Text: text}
}

// Empty reports whether the text is blank and no image is set.
func (in IngredientInput) Empty() bool {
	return strings.TrimSpace(in.Text) == "" && strings.TrimSpace(in.ImagePath) == ""
}

// GenerationRequest is the payload of one generation call. Only populated
// fields are sent.
type GenerationRequest struct {
	Text      string   `json:"text"`
	MealType  MealType `json:"mealType,omitempty"`
	ImagePath string   `json:"imagePath,omitempty"`
}

// BuildTextRequest shapes input for the text endpoint. It returns false, and
// no request, when the input is empty. The text is carried verbatim.
func BuildTextRequest(in IngredientInput, mealType MealType) (GenerationRequest, bool) {
	if in.Empty() {
		return GenerationRequest{}, false
	}
	if mealType == "" {
		mealType = DefaultMealType
	}
	return GenerationRequest{Text: in.Text, MealType: mealType}, true
}

// BuildImageRequest shapes input for the image endpoint. It returns false
// when no image is set.
func BuildImageRequest(in IngredientInput) (GenerationRequest, bool) {
	if in.Empty() || strings.TrimSpace(in.ImagePath) == "" {
		return GenerationRequest{}, false
	}
	return GenerationRequest{Text: in.Text, ImagePath: in.ImagePath}, true
}

// BuildRequest picks the image request when a photo is set and the text
// request otherwise. The meal type is kept on both.
func BuildRequest(in IngredientInput, mealType MealType) (GenerationRequest, bool) {
	if req, ok := BuildImageRequest(in); ok {
		if mealType == "" {
			mealType = DefaultMealType
		}
		req.MealType = mealType
		return req, true
	}
	return BuildTextRequest(in, mealType)
}

// HasImage reports whether the request targets the image endpoint.
func (r GenerationRequest) HasImage() bool {
	return r.ImagePath != ""
}

// ValidateText checks the text endpoint constraints.
func (r GenerationRequest) ValidateText() error {
	if strings.TrimSpace(r.Text) == "" {
		return ErrTextRequired
	}
	if !r.MealType.Valid() {
		return ErrInvalidMealType
	}
	return nil
}

// ValidateImage checks the image endpoint constraints. An empty meal type is
// allowed and treated as the default.
func (r GenerationRequest) ValidateImage() error {
	if !validImagePath(r.ImagePath) {
		return ErrInvalidImagePath
	}
	if r.MealType != "" && !r.MealType.Valid() {
		return ErrInvalidMealType
	}
	return nil
}

func validImagePath(p string) bool {
	if upload.IsDataURL(p) {
		_, _, err := upload.ParseDataURL(p)
		return err == nil
	}
	return strings.HasPrefix(p, "https://") || strings.HasPrefix(p, "http://")
}

// Hash identifies a request for caching.
func (r GenerationRequest) Hash() string {
	sum := sha256.Sum256([]byte(string(r.MealType) + "|" + r.Text + "|" + r.ImagePath))
	return hex.EncodeToString(sum[:])
}
