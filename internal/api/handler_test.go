package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"image"
	"image/png"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"recipic/internal/logger"
	"recipic/internal/recipe"
	"recipic/internal/upload"
)

// mockGenerator is a mock of the Generator.
type mockGenerator struct {
	textCalls  int
	imageCalls int
	received   recipe.GenerationRequest
	deadline   bool
	result     recipe.Result
}

// GenerateText mocks the GenerateText method.
func (m *mockGenerator) GenerateText(ctx context.Context, req recipe.GenerationRequest) recipe.Result {
	m.textCalls++
	m.received = req
	_, m.deadline = ctx.Deadline()
	return m.result
}

// AnalyzeImage mocks the AnalyzeImage method.
func (m *mockGenerator) AnalyzeImage(ctx context.Context, req recipe.GenerationRequest) recipe.Result {
	m.imageCalls++
	m.received = req
	_, m.deadline = ctx.Deadline()
	return m.result
}

// mockGenerationStore is a mock of the GenerationStore.
type mockGenerationStore struct {
	generations map[string]*recipe.Generation
	err         error
	listedMeal  recipe.MealType
}

func newMockGenerationStore() *mockGenerationStore {
	return &mockGenerationStore{generations: make(map[string]*recipe.Generation)}
}

// GetGeneration mocks the GetGeneration method.
func (m *mockGenerationStore) GetGeneration(ctx context.Context, hash string) (*recipe.Generation, error) {
	if m.err != nil {
		return nil, m.err
	}
	return m.generations[hash], nil
}

// ListGenerations mocks the ListGenerations method.
func (m *mockGenerationStore) ListGenerations(ctx context.Context, mealType recipe.MealType) ([]*recipe.Generation, error) {
	m.listedMeal = mealType
	if m.err != nil {
		return nil, m.err
	}
	var out []*recipe.Generation
	for _, g := range m.generations {
		if mealType == "" || g.MealType == mealType {
			out = append(out, g)
		}
	}
	return out, nil
}

var pancakes = recipe.Recipe{
	Title:        "Fluffy Pancakes",
	Ingredients:  []string{"2 eggs", "1 cup flour", "milk"},
	Instructions: []string{"Whisk.", "Fry."},
	Description:  "Light and fluffy.",
	Image:        recipe.PlaceholderImage,
}

func successResult() recipe.Result {
	return recipe.Result{Success: true, Recipes: []recipe.Recipe{pancakes}, Hash: "abc"}
}

func newTestRouter(gen Generator, store GenerationStore) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewHandler(gen, store, time.Second, nil)
	r := gin.New()
	r.GET("/", h.Index)
	r.POST("/", h.SubmitForm)
	r.POST("/api/text/generate", h.GenerateText)
	r.POST("/api/image/analyze", h.AnalyzeImage)
	r.POST("/api/image/upload", h.UploadImage)
	r.GET("/api/generations", h.ListGenerations)
	r.GET("/api/generations/:hash", h.GetGeneration)
	r.GET("/api/healthz", h.Health)
	return r
}

func postJSON(r http.Handler, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	return rr
}

func decodeResult(t *testing.T, rr *httptest.ResponseRecorder) recipe.Result {
	t.Helper()
	var res recipe.Result
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &res))
	return res
}

func pngBytes(t *testing.T, width, height int) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, width, height))))
	return buf.Bytes()
}

func multipartBody(t *testing.T, fields map[string]string, filename string, data []byte) (*bytes.Buffer, string) {
	t.Helper()
	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)
	for k, v := range fields {
		require.NoError(t, writer.WriteField(k, v))
	}
	if filename != "" {
		part, err := writer.CreateFormFile("file", filename)
		require.NoError(t, err)
		_, err = part.Write(data)
		require.NoError(t, err)
	}
	require.NoError(t, writer.Close())
	return body, writer.FormDataContentType()
}

func TestGenerateText(t *testing.T) {
	gen := &mockGenerator{result: successResult()}
	r := newTestRouter(gen, nil)

	rr := postJSON(r, "/api/text/generate", `{"text":"2 eggs, 1 cup flour, milk","mealType":"breakfast"}`)

	assert.Equal(t, http.StatusOK, rr.Code)
	res := decodeResult(t, rr)
	assert.True(t, res.Success)
	require.Len(t, res.Recipes, 1)
	assert.Equal(t, "Fluffy Pancakes", res.Recipes[0].Title)

	assert.Equal(t, 1, gen.textCalls)
	assert.Equal(t, recipe.GenerationRequest{Text: "2 eggs, 1 cup flour, milk", MealType: recipe.Breakfast}, gen.received)
	assert.True(t, gen.deadline)
}

func TestGenerateText_DefaultsMealType(t *testing.T) {
	gen := &mockGenerator{result: successResult()}
	r := newTestRouter(gen, nil)

	rr := postJSON(r, "/api/text/generate", `{"text":"rice"}`)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, recipe.Breakfast, gen.received.MealType)
}

func TestGenerateText_MealTypeIgnoresCase(t *testing.T) {
	gen := &mockGenerator{result: successResult()}
	r := newTestRouter(gen, nil)

	rr := postJSON(r, "/api/text/generate", `{"text":"rice","mealType":"Lunch"}`)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, recipe.Lunch, gen.received.MealType)

	rr = postJSON(r, "/api/image/analyze", `{"imagePath":"https://example.com/fridge.jpg","mealType":" DINNER "}`)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, recipe.Dinner, gen.received.MealType)

	rr = postJSON(r, "/api/image/analyze", `{"imagePath":"https://example.com/fridge.jpg","mealType":"brunch"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, 1, gen.imageCalls)
}

func TestGenerateText_InvalidBody(t *testing.T) {
	tests := []struct {
		name    string
		body    string
		message string
	}{
		{"missing text", `{"mealType":"lunch"}`, "text is a required field"},
		{"bad meal type", `{"text":"eggs","mealType":"brunch"}`, recipe.ErrInvalidMealType.Error()},
		{"not json", `{"text":`, "invalid request body"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := &mockGenerator{result: successResult()}
			r := newTestRouter(gen, nil)

			rr := postJSON(r, "/api/text/generate", tt.body)

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			res := decodeResult(t, rr)
			assert.False(t, res.Success)
			assert.Equal(t, recipe.KindInvalidRequest, res.Kind)
			assert.Contains(t, res.Error, tt.message)
			assert.Equal(t, 0, gen.textCalls)
		})
	}
}

func TestGenerateText_FailureStatus(t *testing.T) {
	tests := []struct {
		kind   recipe.FailureKind
		status int
	}{
		{recipe.KindInvalidRequest, http.StatusBadRequest},
		{recipe.KindProviderError, http.StatusBadGateway},
		{recipe.KindTimeout, http.StatusRequestTimeout},
	}
	for _, tt := range tests {
		gen := &mockGenerator{result: recipe.Failure(tt.kind, errors.New("boom"))}
		r := newTestRouter(gen, nil)

		rr := postJSON(r, "/api/text/generate", `{"text":"eggs","mealType":"dinner"}`)

		assert.Equal(t, tt.status, rr.Code, string(tt.kind))
		res := decodeResult(t, rr)
		assert.Equal(t, "boom", res.Error)
		assert.Empty(t, res.Recipes)
	}
}

func TestGenerateText_FailureLoggedWithRequestID(t *testing.T) {
	gin.SetMode(gin.TestMode)
	core, logs := observer.New(zap.InfoLevel)
	gen := &mockGenerator{result: recipe.Failure(recipe.KindProviderError, errors.New("model overloaded"))}
	h := NewHandler(gen, nil, time.Second, zap.New(core))

	r := gin.New()
	r.Use(logger.Middleware(nil))
	r.POST("/api/text/generate", h.GenerateText)

	req := httptest.NewRequest(http.MethodPost, "/api/text/generate", strings.NewReader(`{"text":"eggs"}`))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(logger.RequestIDHeader, "req-42")
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusBadGateway, rr.Code)
	entries := logs.FilterMessage("generation failed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "req-42", fields["request_id"])
	assert.Equal(t, "provider_error", fields["kind"])
	assert.Equal(t, "model overloaded", fields["error"])
}

func TestAnalyzeImage(t *testing.T) {
	gen := &mockGenerator{result: successResult()}
	r := newTestRouter(gen, nil)

	rr := postJSON(r, "/api/image/analyze", `{"text":"what can I cook?","imagePath":"https://example.com/fridge.jpg"}`)

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, 1, gen.imageCalls)
	assert.Equal(t, 0, gen.textCalls)
	assert.Equal(t, "https://example.com/fridge.jpg", gen.received.ImagePath)
	assert.Equal(t, "what can I cook?", gen.received.Text)

	rr = postJSON(r, "/api/image/analyze", `{"text":"hi"}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, decodeResult(t, rr).Error, "imagePath is a required field")
	assert.Equal(t, 1, gen.imageCalls)
}

func TestUploadImage(t *testing.T) {
	r := newTestRouter(&mockGenerator{}, nil)
	data := pngBytes(t, 10, 10)

	body, contentType := multipartBody(t, nil, "fridge.png", data)
	req := httptest.NewRequest(http.MethodPost, "/api/image/upload", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	require.Equal(t, http.StatusOK, rr.Code)
	var resp struct {
		DataURL   string `json:"dataUrl"`
		ImageHash string `json:"imageHash"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, strings.HasPrefix(resp.DataURL, "data:image/png;base64,"))
	assert.Equal(t, upload.ImageHash(data), resp.ImageHash)
}

func TestUploadImage_InvalidFile(t *testing.T) {
	r := newTestRouter(&mockGenerator{}, nil)

	body, contentType := multipartBody(t, nil, "notes.txt", []byte("hello"))
	req := httptest.NewRequest(http.MethodPost, "/api/image/upload", body)
	req.Header.Set("Content-Type", contentType)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Equal(t, recipe.KindInvalidRequest, decodeResult(t, rr).Kind)

	body, contentType = multipartBody(t, map[string]string{"x": "y"}, "", nil)
	req = httptest.NewRequest(http.MethodPost, "/api/image/upload", body)
	req.Header.Set("Content-Type", contentType)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestGenerations(t *testing.T) {
	store := newMockGenerationStore()
	store.generations["abc"] = &recipe.Generation{Hash: "abc", MealType: recipe.Lunch, Text: "rice", Recipes: []recipe.Recipe{pancakes}}
	store.generations["def"] = &recipe.Generation{Hash: "def", MealType: recipe.Dinner, Text: "beans"}
	r := newTestRouter(&mockGenerator{}, store)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/generations?meal_type=Lunch", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var list []recipe.Generation
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &list))
	require.Len(t, list, 1)
	assert.Equal(t, "rice", list[0].Text)
	assert.Equal(t, recipe.Lunch, store.listedMeal)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/generations?meal_type=brunch", nil))
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/generations/def", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	var one recipe.Generation
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &one))
	assert.Equal(t, "beans", one.Text)

	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/generations/missing", nil))
	assert.Equal(t, http.StatusNotFound, rr.Code)

	store.err = errors.New("connection refused")
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/generations", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}

func TestGenerations_NoStore(t *testing.T) {
	r := newTestRouter(&mockGenerator{}, nil)

	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/generations", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rr.Code)
}

func TestHealth(t *testing.T) {
	r := newTestRouter(&mockGenerator{}, nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/healthz", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusOK, StatusFor(recipe.Result{Success: true}))
	assert.Equal(t, http.StatusBadGateway, StatusFor(recipe.Result{Kind: recipe.KindProviderError}))
}
