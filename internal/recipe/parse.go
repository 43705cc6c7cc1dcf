package recipe

import (
	"errors"
	"fmt"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// ErrNoRecipe is returned when the provider output holds no usable text.
var ErrNoRecipe = errors.New("no recipe found in provider output")

// ParseRecipe extracts a structured recipe from provider markup. Only text
// survives: tags, attributes and scripts are dropped. The first <h2> is the
// title, falling back to the first other heading when there is no <h2>.
// Other headings are section labels. A second <h2> after the lists ends the
// recipe. Output without any of the expected elements becomes a recipe whose
// description is the plain text.
func ParseRecipe(markup string) (Recipe, error) {
	doc, err := html.Parse(strings.NewReader(stripFences(markup)))
	if err != nil {
		return Recipe{}, fmt.Errorf("failed to parse recipe markup: %w", err)
	}

	var r Recipe
	var paragraphs []string
	titleFromH2 := false
	done := false

	var walk func(n *html.Node, list atom.Atom)
	walk = func(n *html.Node, list atom.Atom) {
		if done {
			return
		}
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style:
				return
			case atom.H2:
				text := textOf(n)
				switch {
				case isSectionLabel(text):
				case !titleFromH2:
					if text != "" {
						r.Title, titleFromH2 = text, true
					}
				case len(r.Ingredients) > 0 || len(r.Instructions) > 0:
					done = true
				}
				return
			case atom.H1, atom.H3, atom.H4:
				if text := textOf(n); r.Title == "" && !isSectionLabel(text) {
					r.Title = text
				}
				return
			case atom.Ul, atom.Ol:
				list = n.DataAtom
			case atom.Li:
				item := textOf(n)
				if item == "" {
					return
				}
				if list == atom.Ol {
					r.Instructions = append(r.Instructions, item)
				} else {
					r.Ingredients = append(r.Ingredients, item)
				}
				return
			case atom.P:
				if p := textOf(n); p != "" {
					paragraphs = append(paragraphs, p)
				}
				return
			}
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			walk(child, list)
		}
	}
	walk(doc, 0)

	r.Description = strings.Join(paragraphs, " ")

	if r.Title == "" && len(r.Ingredients) == 0 && len(r.Instructions) == 0 && r.Description == "" {
		r.Description = textOf(doc)
		if r.Description == "" {
			return Recipe{}, ErrNoRecipe
		}
	}

	return r, nil
}

// sectionLabels are headings models put above the lists.
var sectionLabels = map[string]bool{
	"ingredients":  true,
	"instructions": true,
	"directions":   true,
	"method":       true,
	"steps":        true,
	"preparation":  true,
}

func isSectionLabel(text string) bool {
	return sectionLabels[strings.ToLower(strings.TrimRight(text, ": "))]
}

// textOf returns the whitespace-collapsed text below n.
func textOf(n *html.Node) string {
	var b strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.ElementNode && (n.DataAtom == atom.Script || n.DataAtom == atom.Style) {
			return
		}
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
			b.WriteByte(' ')
		}
		for child := n.FirstChild; child != nil; child = child.NextSibling {
			collect(child)
		}
	}
	collect(n)
	return strings.Join(strings.Fields(b.String()), " ")
}

// stripFences removes a surrounding markdown code fence such as ```html.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[i+1:]
	}
	return strings.TrimSuffix(strings.TrimSpace(s), "```")
}
