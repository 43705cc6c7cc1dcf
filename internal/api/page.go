package api

import (
	"context"
	"embed"
	"errors"
	"html/template"
	"io"
	"io/fs"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"recipic/internal/recipe"
	"recipic/internal/session"
	"recipic/internal/speech"
	"recipic/internal/upload"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// StaticFS returns the embedded static assets rooted at static/.
func StaticFS() http.FileSystem {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return http.FS(sub)
}

var pageTemplate = template.Must(template.New("index.html").Funcs(template.FuncMap{
	"imageSrc": imageSrc,
}).ParseFS(templateFS, "templates/index.html"))

// imageSrc marks well-formed image data URLs as safe for src attributes.
// html/template would otherwise replace them with a placeholder.
func imageSrc(s string) any {
	if upload.IsDataURL(s) {
		if _, _, err := upload.ParseDataURL(s); err == nil {
			return template.URL(s)
		}
		return recipe.PlaceholderImage
	}
	return s
}

type recipeView struct {
	recipe.Recipe
	Utterance string
}

type pageData struct {
	MealTypes  []recipe.MealType
	Selected   recipe.MealType
	Text       string
	ImagePath  string
	State      string
	Generating bool
	CanSubmit  bool
	Error      string
	Recipes    []recipeView
}

func newPageData(form *session.Form) pageData {
	data := pageData{
		MealTypes:  recipe.MealTypes,
		Selected:   form.MealType(),
		Text:       form.Input().Text,
		ImagePath:  form.Input().ImagePath,
		State:      form.State().String(),
		Generating: form.Generating(),
		CanSubmit:  form.CanSubmit(),
		Error:      form.Err(),
	}
	for _, r := range form.Recipes() {
		data.Recipes = append(data.Recipes, recipeView{Recipe: r, Utterance: speech.Utterance(r)})
	}
	return data
}

// Index renders the empty recipe form.
func (h *Handler) Index(c *gin.Context) {
	h.render(c, http.StatusOK, newPageData(session.NewForm()))
}

// SubmitForm handles the browser form post and renders the page with the
// generated recipes or the error.
func (h *Handler) SubmitForm(c *gin.Context) {
	form := session.NewForm()

	if mt := c.PostForm("meal_type"); mt != "" {
		mealType, err := recipe.ParseMealType(mt)
		if err == nil {
			_, err = form.Dispatch(session.MealTypeSelected{MealType: mealType})
		}
		if err != nil {
			h.renderError(c, form, http.StatusBadRequest, err.Error())
			return
		}
	}

	var imagePath string
	if file, err := c.FormFile("file"); err == nil && file.Size > 0 {
		imagePath, err = readUpload(file.Filename, file.Size, func() (io.ReadCloser, error) { return file.Open() })
		if err != nil {
			h.renderError(c, form, http.StatusBadRequest, err.Error())
			return
		}
	} else {
		imagePath = c.PostForm("image_path")
	}

	events := []session.Event{session.TextChanged{Text: c.PostForm("ingredients")}}
	if imagePath != "" {
		events = append(events, session.ImageSelected{ImagePath: imagePath})
	}
	for _, ev := range events {
		if _, err := form.Dispatch(ev); err != nil {
			h.renderError(c, form, http.StatusBadRequest, err.Error())
			return
		}
	}

	req, err := form.Dispatch(session.Submitted{})
	if errors.Is(err, session.ErrNothingToSubmit) {
		h.renderError(c, form, http.StatusBadRequest, recipe.ErrEmptyInput.Error())
		return
	}
	if err != nil {
		h.renderError(c, form, http.StatusConflict, err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(c.Request.Context(), h.Timeout)
	defer cancel()

	var res recipe.Result
	if req.HasImage() {
		res = h.Generator.AnalyzeImage(ctx, *req)
	} else {
		res = h.Generator.GenerateText(ctx, *req)
	}
	if err := form.Resolve(res); err != nil {
		h.log.Error("form rejected generation result", zap.Error(err))
	}

	h.render(c, StatusFor(res), newPageData(form))
}

func readUpload(filename string, size int64, open func() (io.ReadCloser, error)) (string, error) {
	if size > MaxUploadBytes {
		return "", errImageTooLarge
	}
	if _, err := upload.MimeType(filename); err != nil {
		return "", err
	}
	src, err := open()
	if err != nil {
		return "", err
	}
	defer src.Close()
	data, err := io.ReadAll(src)
	if err != nil {
		return "", err
	}
	return upload.EncodeDataURL(filename, data)
}

func (h *Handler) renderError(c *gin.Context, form *session.Form, status int, msg string) {
	data := newPageData(form)
	data.Error = strings.TrimSpace(msg)
	h.render(c, status, data)
}

func (h *Handler) render(c *gin.Context, status int, data pageData) {
	c.Status(status)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := pageTemplate.Execute(c.Writer, data); err != nil {
		h.log.Error("failed to render page", zap.Error(err))
	}
}
