// Package session models the recipe form a client drives: the input it
// collects, the one request it may have in flight, and the recipes it shows.
package session

import (
	"errors"
	"fmt"

	"recipic/internal/recipe"
)

// State is the form's position in the generation lifecycle.
type State int

const (
	Idle State = iota
	Editing
	Submitting
	Success
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Editing:
		return "editing"
	case Submitting:
		return "submitting"
	case Success:
		return "success"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

var (
	// ErrNothingToSubmit is returned when submit is triggered without text or image.
	ErrNothingToSubmit = errors.New("nothing to submit")
	// ErrInFlight is returned when an event is not allowed while a request is pending.
	ErrInFlight = errors.New("a generation is already in progress")
	// ErrUnexpectedEvent is returned for a generation outcome with no request in flight.
	ErrUnexpectedEvent = errors.New("no generation in progress")
)

// Event is an input to the form.
type Event interface {
	event()
}

// ImageSelected sets the ingredient photo. Previous results are cleared.
type ImageSelected struct{ ImagePath string }

// TextChanged replaces the typed ingredients.
type TextChanged struct{ Text string }

// MealTypeSelected changes the meal type.
type MealTypeSelected struct{ MealType recipe.MealType }

// Submitted asks for a generation.
type Submitted struct{}

// GenerationSucceeded delivers the recipes of the pending request.
type GenerationSucceeded struct{ Recipes []recipe.Recipe }

// GenerationFailed reports that the pending request failed.
type GenerationFailed struct{ Err string }

func (ImageSelected) event()       {}
func (TextChanged) event()         {}
func (MealTypeSelected) event()    {}
func (Submitted) event()           {}
func (GenerationSucceeded) event() {}
func (GenerationFailed) event()    {}

// Form holds the client's transient state. It is not safe for concurrent use.
type Form struct {
	state    State
	input    recipe.IngredientInput
	mealType recipe.MealType
	recipes  []recipe.Recipe
	err      string
}

// NewForm returns an idle form with the default meal type.
func NewForm() *Form {
	return &Form{state: Idle, mealType: recipe.DefaultMealType}
}

// Dispatch applies ev. Submitted returns the request to send when the form
// moves to Submitting; every other event returns a nil request. A rejected
// event leaves the form unchanged. Input events are rejected while a request
// is in flight.
func (f *Form) Dispatch(ev Event) (*recipe.GenerationRequest, error) {
	switch ev.(type) {
	case ImageSelected, TextChanged, MealTypeSelected, Submitted:
		if f.state == Submitting {
			return nil, ErrInFlight
		}
	}

	switch ev := ev.(type) {
	case ImageSelected:
		f.input.ImagePath = ev.ImagePath
		f.recipes = nil
		f.err = ""
		f.state = Editing
	case TextChanged:
		f.input.Text = ev.Text
		f.edit()
	case MealTypeSelected:
		if !ev.MealType.Valid() {
			return nil, recipe.ErrInvalidMealType
		}
		f.mealType = ev.MealType
		f.edit()
	case Submitted:
		req, ok := recipe.BuildRequest(f.input, f.mealType)
		if !ok {
			return nil, ErrNothingToSubmit
		}
		f.err = ""
		f.state = Submitting
		return &req, nil
	case GenerationSucceeded:
		if f.state != Submitting {
			return nil, ErrUnexpectedEvent
		}
		f.recipes = ev.Recipes
		f.state = Success
	case GenerationFailed:
		if f.state != Submitting {
			return nil, ErrUnexpectedEvent
		}
		f.recipes = nil
		f.err = ev.Err
		f.state = Failed
	default:
		return nil, fmt.Errorf("unknown event %T", ev)
	}
	return nil, nil
}

// edit moves an idle form to Editing. Other states keep their results.
func (f *Form) edit() {
	if f.state == Idle {
		f.state = Editing
	}
}

// Resolve feeds a generation result back into the form.
func (f *Form) Resolve(res recipe.Result) error {
	if res.Success {
		_, err := f.Dispatch(GenerationSucceeded{Recipes: res.Recipes})
		return err
	}
	msg := res.Error
	if msg == "" {
		msg = "recipe generation failed"
	}
	_, err := f.Dispatch(GenerationFailed{Err: msg})
	return err
}

// State returns the current state.
func (f *Form) State() State { return f.state }

// Input returns the collected ingredients.
func (f *Form) Input() recipe.IngredientInput { return f.input }

// MealType returns the selected meal type.
func (f *Form) MealType() recipe.MealType { return f.mealType }

// Recipes returns the recipes on display.
func (f *Form) Recipes() []recipe.Recipe { return f.recipes }

// Err returns the message of the last failure, if the form is in Failed.
func (f *Form) Err() string { return f.err }

// Generating reports whether a request is in flight.
func (f *Form) Generating() bool { return f.state == Submitting }

// CanSubmit reports whether the submit action is enabled.
func (f *Form) CanSubmit() bool {
	return f.state != Submitting && !f.input.Empty()
}
