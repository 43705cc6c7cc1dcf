// Command recipic asks a recipic server for recipes from the terminal.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"

	"recipic/internal/client"
	"recipic/internal/recipe"
	"recipic/internal/session"
	"recipic/internal/speech"
)

// newSpeaker is swapped in tests.
var newSpeaker = func() (speech.Speaker, error) {
	return speech.NewExecSpeaker()
}

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("recipic", flag.ContinueOnError)
	fs.SetOutput(stderr)
	server := fs.String("server", envOr("RECIPIC_SERVER", "http://localhost:8080"), "recipic server URL")
	imagePath := fs.String("image", "", "path to an ingredient photo")
	text := fs.String("text", "", "ingredients, e.g. \"2 eggs, 1 cup flour, milk\"")
	meal := fs.String("meal", string(recipe.DefaultMealType), "meal type: breakfast, lunch or dinner")
	speak := fs.Bool("speak", false, "read the first recipe aloud")
	timeout := fs.Duration("timeout", 90*time.Second, "overall request timeout")
	if err := fs.Parse(args); err != nil {
		return 2
	}
	if *text == "" && fs.NArg() > 0 {
		*text = strings.Join(fs.Args(), " ")
	}

	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	api := client.New(*server, nil)
	form := session.NewForm()

	mealType, err := recipe.ParseMealType(*meal)
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 2
	}
	if _, err := form.Dispatch(session.MealTypeSelected{MealType: mealType}); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 2
	}

	if *imagePath != "" {
		data, err := os.ReadFile(*imagePath)
		if err != nil {
			fmt.Fprintln(stderr, "error: failed to read image:", err)
			return 1
		}
		uploaded, err := api.Upload(ctx, filepath.Base(*imagePath), data)
		if err != nil {
			fmt.Fprintln(stderr, "error:", err)
			return 1
		}
		if _, err := form.Dispatch(session.ImageSelected{ImagePath: uploaded.DataURL}); err != nil {
			fmt.Fprintln(stderr, "error:", err)
			return 1
		}
	}
	if _, err := form.Dispatch(session.TextChanged{Text: *text}); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	req, err := form.Dispatch(session.Submitted{})
	if errors.Is(err, session.ErrNothingToSubmit) {
		fmt.Fprintln(stderr, "error:", recipe.ErrEmptyInput)
		return 2
	}
	if err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	fmt.Fprintf(stderr, "Generating %s recipes...\n", strings.ToLower(form.MealType().Title()))
	res, err := api.Generate(ctx, *req)
	if err != nil {
		res = recipe.Result{Success: false, Kind: recipe.KindProviderError, Error: err.Error()}
	}
	if err := form.Resolve(res); err != nil {
		fmt.Fprintln(stderr, "error:", err)
		return 1
	}

	if form.State() == session.Failed {
		fmt.Fprintln(stderr, "error:", form.Err())
		return 1
	}

	recipes := form.Recipes()
	if len(recipes) == 0 {
		fmt.Fprintln(stderr, "no recipes in the response")
		return 1
	}
	for i, r := range recipes {
		if i > 0 {
			fmt.Fprintln(stdout)
		}
		printRecipe(stdout, r)
	}

	if *speak {
		speaker, err := newSpeaker()
		if err != nil {
			fmt.Fprintln(stderr, "error:", err)
			return 1
		}
		narrator := speech.NewNarrator(speaker, zap.NewNop())
		<-narrator.Speak(ctx, recipes[0])
	}
	return 0
}

func printRecipe(w io.Writer, r recipe.Recipe) {
	fmt.Fprintln(w, r.Title)
	fmt.Fprintln(w, strings.Repeat("=", len(r.Title)))
	if r.Description != "" {
		fmt.Fprintln(w, r.Description)
	}
	if len(r.Ingredients) > 0 {
		fmt.Fprintln(w, "\nIngredients:")
		for _, ing := range r.Ingredients {
			fmt.Fprintf(w, "  - %s\n", ing)
		}
	}
	if len(r.Instructions) > 0 {
		fmt.Fprintln(w, "\nInstructions:")
		for i, step := range r.Instructions {
			fmt.Fprintf(w, "  %d. %s\n", i+1, step)
		}
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
