package recipe

import (
	"fmt"
	"strings"

	"recipic/internal/llm"
)

const textPromptTemplate = `You are an expert chef. Given a text description of available ingredients and a specified meal type, generate a recipe formatted in valid HTML.

### Input:
- Ingredients: %q
- Meal Type: %q (One of: "breakfast", "lunch", or "dinner")

### Rules:
1. The output must be strict HTML.
2. Use <h2> for the title, <ul> for ingredients, and <ol> for instructions.
3. The final dish description should be inside a <p> tag.

### Output Format:
<h2>A Creative and Appetizing Name for the Dish</h2>
<ul>
  <li>List of structured ingredients extracted from the input text</li>
</ul>
<ol>
  <li>Step-by-step cooking instructions that are clear and easy to follow</li>
</ol>
<p>A vivid description of what the dish looks like.</p>
`

const imagePromptTemplate = `You are an expert chef. Identify the ingredients visible in the photo and generate a %s recipe that uses them, formatted in valid HTML.

### Rules:
1. The output must be strict HTML.
2. Use <h2> for the title, <ul> for ingredients, and <ol> for instructions.
3. The final dish description should be inside a <p> tag.
`

const defaultImageText = "Suggest a recipe using the ingredients in this photo."

// TextPrompt builds the chat messages for the text endpoint.
func TextPrompt(text string, mealType MealType) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: llm.TextContent(fmt.Sprintf(textPromptTemplate, text, mealType))},
		{Role: llm.RoleUser, Content: llm.TextContent(text)},
	}
}

// ImagePrompt builds the multimodal chat messages for the image endpoint.
func ImagePrompt(text, imagePath string, mealType MealType) []llm.Message {
	if mealType == "" {
		mealType = DefaultMealType
	}
	if strings.TrimSpace(text) == "" {
		text = defaultImageText
	}
	return []llm.Message{
		{Role: llm.RoleSystem, Content: llm.TextContent(fmt.Sprintf(imagePromptTemplate, mealType))},
		{Role: llm.RoleUser, Content: llm.PartsContent(llm.TextPart(text), llm.ImagePart(imagePath))},
	}
}
