package recipe

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const pancakesHTML = `<h2>Fluffy Pancakes</h2>
<ul>
  <li>2 eggs</li>
  <li>1 cup   flour</li>
  <li>1/2 cup <b>milk</b></li>
</ul>
<ol>
  <li>Mix dry ingredients in a bowl.</li>
  <li>Whisk in eggs and milk.</li>
</ol>
<p>Golden, airy pancakes stacked high.</p>`

func TestParseRecipe(t *testing.T) {
	r, err := ParseRecipe(pancakesHTML)
	require.NoError(t, err)

	assert.Equal(t, "Fluffy Pancakes", r.Title)
	assert.Equal(t, []string{"2 eggs", "1 cup flour", "1/2 cup milk"}, r.Ingredients)
	assert.Equal(t, []string{"Mix dry ingredients in a bowl.", "Whisk in eggs and milk."}, r.Instructions)
	assert.Equal(t, "Golden, airy pancakes stacked high.", r.Description)
}

func TestParseRecipe_CodeFence(t *testing.T) {
	r, err := ParseRecipe("```html\n" + pancakesHTML + "\n```")
	require.NoError(t, err)
	assert.Equal(t, "Fluffy Pancakes", r.Title)
	assert.Len(t, r.Ingredients, 3)
}

func TestParseRecipe_DropsMarkup(t *testing.T) {
	r, err := ParseRecipe(`<h2 onclick="steal()">Toast<script>alert(1)</script></h2>
<ul><li><img src=x onerror=alert(1)>bread</li></ul>
<p><a href="javascript:alert(1)">Crunchy</a></p>`)
	require.NoError(t, err)

	assert.Equal(t, "Toast", r.Title)
	assert.Equal(t, []string{"bread"}, r.Ingredients)
	assert.Equal(t, "Crunchy", r.Description)
}

func TestParseRecipe_SectionHeadings(t *testing.T) {
	r, err := ParseRecipe(`<h2>Fluffy Pancakes</h2>
<h3>Ingredients</h3><ul><li>2 eggs</li><li>milk</li></ul>
<h3>Instructions</h3><ol><li>Mix</li><li>Fry</li></ol>
<p>Golden stack.</p>`)
	require.NoError(t, err)

	assert.Equal(t, "Fluffy Pancakes", r.Title)
	assert.Equal(t, []string{"2 eggs", "milk"}, r.Ingredients)
	assert.Equal(t, []string{"Mix", "Fry"}, r.Instructions)
	assert.Equal(t, "Golden stack.", r.Description)
}

func TestParseRecipe_H1Wrapper(t *testing.T) {
	r, err := ParseRecipe(`<h1>Breakfast Recipe</h1><h2>Fluffy Pancakes</h2><ul><li>2 eggs</li></ul><ol><li>Fry</li></ol>`)
	require.NoError(t, err)

	assert.Equal(t, "Fluffy Pancakes", r.Title)
	assert.Equal(t, []string{"2 eggs"}, r.Ingredients)
	assert.Equal(t, []string{"Fry"}, r.Instructions)
}

func TestParseRecipe_HeadingWithoutH2(t *testing.T) {
	r, err := ParseRecipe(`<h3>Ingredients:</h3><ul><li>rice</li></ul><h3>Steps</h3><ol><li>Boil</li></ol>`)
	require.NoError(t, err)
	assert.Equal(t, "", r.Title)
	assert.Equal(t, []string{"rice"}, r.Ingredients)

	r, err = ParseRecipe(`<h1>Fried Rice</h1><ul><li>rice</li></ul>`)
	require.NoError(t, err)
	assert.Equal(t, "Fried Rice", r.Title)
}

func TestParseRecipe_StopsAtSecondTitle(t *testing.T) {
	r, err := ParseRecipe(`<h2>First</h2><ul><li>a</li></ul><h2>Second</h2><ul><li>b</li></ul>`)
	require.NoError(t, err)
	assert.Equal(t, "First", r.Title)
	assert.Equal(t, []string{"a"}, r.Ingredients)

	// A second <h2> before any list is a label.
	r, err = ParseRecipe(`<h2>First</h2><h2>Ingredients</h2><ul><li>a</li></ul>`)
	require.NoError(t, err)
	assert.Equal(t, "First", r.Title)
	assert.Equal(t, []string{"a"}, r.Ingredients)
}

func TestParseRecipe_PlainText(t *testing.T) {
	r, err := ParseRecipe("Try a  simple omelette\nwith the eggs.")
	require.NoError(t, err)
	assert.Equal(t, "", r.Title)
	assert.Equal(t, "Try a simple omelette with the eggs.", r.Description)
}

func TestParseRecipe_Empty(t *testing.T) {
	_, err := ParseRecipe("   ")
	assert.ErrorIs(t, err, ErrNoRecipe)

	_, err = ParseRecipe("<ul><li> </li></ul>")
	assert.ErrorIs(t, err, ErrNoRecipe)
}
