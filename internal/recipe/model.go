package recipe

import (
	"errors"
	"strings"
)

// PlaceholderImage is used for recipes generated without a photo.
const PlaceholderImage = "/static/placeholder.svg"

// ErrInvalidMealType is returned for meal types other than breakfast, lunch or dinner.
var ErrInvalidMealType = errors.New("meal type must be one of breakfast, lunch or dinner")

// MealType steers the style of the generated recipe.
type MealType string

const (
	Breakfast MealType = "breakfast"
	Lunch     MealType = "lunch"
	Dinner    MealType = "dinner"
)

// DefaultMealType is the meal type selected before the user picks one.
const DefaultMealType = Breakfast

// MealTypes lists the meal types in display order.
var MealTypes = []MealType{Breakfast, Lunch, Dinner}

// ParseMealType parses s case-insensitively. A blank string yields DefaultMealType.
func ParseMealType(s string) (MealType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return DefaultMealType, nil
	}
	m := MealType(s)
	if !m.Valid() {
		return "", ErrInvalidMealType
	}
	return m, nil
}

// Valid reports whether m is one of the known meal types.
func (m MealType) Valid() bool {
	switch m {
	case Breakfast, Lunch, Dinner:
		return true
	}
	return false
}

// Title returns the capitalized label, e.g. "Breakfast".
func (m MealType) Title() string {
	if m == "" {
		return ""
	}
	return strings.ToUpper(string(m[:1])) + string(m[1:])
}

// Recipe represents the structure of a generated recipe.
type Recipe struct {
	Title        string   `json:"title"`
	Ingredients  []string `json:"ingredients"`
	Instructions []string `json:"instructions"`
	Description  string   `json:"description,omitempty"`
	Image        string   `json:"image"`
}
