package recipe

import (
	"recipic/internal/llm"
)

// FailureKind tells callers why a generation failed.
type FailureKind string

const (
	KindInvalidRequest FailureKind = "invalid_request"
	KindProviderError  FailureKind = "provider_error"
	KindTimeout        FailureKind = "timeout"
)

// Result is the envelope returned by every generation call.
type Result struct {
	Success bool        `json:"success"`
	Kind    FailureKind `json:"kind,omitempty"`
	Error   string      `json:"error,omitempty"`
	Recipes []Recipe    `json:"recipes,omitempty"`
	// Message is the first completion choice.
	Message *llm.Choice  `json:"message,omitempty"`
	Choices []llm.Choice `json:"choices,omitempty"`
	Hash    string       `json:"hash,omitempty"`
	Cached  bool         `json:"cached,omitempty"`
}

// Failure returns a failed envelope.
func Failure(kind FailureKind, err error) Result {
	return Result{Success: false, Kind: kind, Error: err.Error()}
}

// Normalize turns a completion into a success envelope with one recipe per
// choice that carries usable text. image is attached to every recipe. A
// completion with no usable choice is a provider failure.
func Normalize(completion *llm.Completion, image string) Result {
	res := Result{Success: true, Choices: completion.Choices}
	if len(completion.Choices) > 0 {
		first := completion.Choices[0]
		res.Message = &first
	}
	if image == "" {
		image = PlaceholderImage
	}
	for _, choice := range completion.Choices {
		r, err := ParseRecipe(choice.Message.Content.String())
		if err != nil {
			continue
		}
		r.Image = image
		res.Recipes = append(res.Recipes, r)
	}
	if len(res.Recipes) == 0 {
		return Failure(KindProviderError, ErrNoRecipe)
	}
	return res
}
