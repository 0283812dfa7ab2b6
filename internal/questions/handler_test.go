package questions

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pollsite/backend/internal/models"
)

func setupAPI(t *testing.T) (*gin.Engine, *GormRepository) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	repo := newGormRepo(t)
	h := NewHandler(repo, 0, nil)
	r := gin.New()
	r.GET("/api/questions", h.List)
	r.GET("/api/questions/:id", h.Get)
	r.POST("/api/questions", h.Create)
	r.POST("/api/questions/:id/choices", h.AddChoice)
	r.DELETE("/api/questions/:id", h.Delete)
	r.PATCH("/api/choices/:id", h.SetVotes)
	r.GET("/api/admin/questions", h.AdminList)
	return r, repo
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body interface{}) (*httptest.ResponseRecorder, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	if w.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	}
	return w, env
}

func TestAPI_ListAndGet(t *testing.T) {
	r, repo := setupAPI(t)
	past := createQuestion(t, repo, "Past question.", -30)
	future := createQuestion(t, repo, "Future question.", 30)

	w, env := doJSON(t, r, http.MethodGet, "/api/questions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Questions []models.Question `json:"questions"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, []string{"Past question."}, texts(list.Questions))

	w, _ = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/questions/%d", past.ID), nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w, env = doJSON(t, r, http.MethodGet, fmt.Sprintf("/api/questions/%d", future.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.False(t, env.Success)

	w, _ = doJSON(t, r, http.MethodGet, "/api/questions/abc", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPI_Create(t *testing.T) {
	r, repo := setupAPI(t)
	pub := time.Now().Add(-time.Hour).UTC().Truncate(time.Second)

	w, env := doJSON(t, r, http.MethodPost, "/api/questions", gin.H{
		"question_text": "What's new?",
		"pub_date":      pub,
		"choices": []gin.H{
			{"choice_text": "Not much", "votes": 1},
			{"choice_text": "The sky"},
		},
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var created models.Question
	require.NoError(t, json.Unmarshal(env.Data, &created))
	assert.NotZero(t, created.ID)

	got, err := repo.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "What's new?", got.Text)
	assert.True(t, got.PubDate.Equal(pub))
	require.Len(t, got.Choices, 2)
	assert.Equal(t, int64(1), got.Choices[0].Votes)
	assert.Equal(t, int64(0), got.Choices[1].Votes)
}

func TestAPI_CreateDefaultsPubDateToNow(t *testing.T) {
	r, repo := setupAPI(t)

	w, env := doJSON(t, r, http.MethodPost, "/api/questions", gin.H{"question_text": "Now?"})
	require.Equal(t, http.StatusCreated, w.Code)
	var created models.Question
	require.NoError(t, json.Unmarshal(env.Data, &created))

	got, err := repo.GetByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now(), got.PubDate, time.Minute)
}

func TestAPI_CreateValidation(t *testing.T) {
	r, _ := setupAPI(t)

	w, _ := doJSON(t, r, http.MethodPost, "/api/questions", gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = doJSON(t, r, http.MethodPost, "/api/questions", gin.H{"question_text": "   "})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = doJSON(t, r, http.MethodPost, "/api/questions", gin.H{
		"question_text": "Q",
		"choices":       []gin.H{{"choice_text": "A", "votes": -1}},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAPI_AddChoiceAndSetVotes(t *testing.T) {
	r, repo := setupAPI(t)
	q := createQuestion(t, repo, "Q", -1)

	w, env := doJSON(t, r, http.MethodPost, fmt.Sprintf("/api/questions/%d/choices", q.ID), gin.H{"choice_text": "A"})
	require.Equal(t, http.StatusCreated, w.Code)
	var ch models.Choice
	require.NoError(t, json.Unmarshal(env.Data, &ch))
	assert.Equal(t, q.ID, ch.QuestionID)

	w, _ = doJSON(t, r, http.MethodPost, "/api/questions/999/choices", gin.H{"choice_text": "A"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	w, env = doJSON(t, r, http.MethodPatch, fmt.Sprintf("/api/choices/%d", ch.ID), gin.H{"votes": 7})
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(env.Data, &ch))
	assert.Equal(t, int64(7), ch.Votes)

	w, _ = doJSON(t, r, http.MethodPatch, fmt.Sprintf("/api/choices/%d", ch.ID), gin.H{"votes": -1})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = doJSON(t, r, http.MethodPatch, fmt.Sprintf("/api/choices/%d", ch.ID), gin.H{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, _ = doJSON(t, r, http.MethodPatch, "/api/choices/999", gin.H{"votes": 1})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestAPI_DeleteAndAdminList(t *testing.T) {
	r, repo := setupAPI(t)
	past := createQuestion(t, repo, "Past", -1)
	createQuestion(t, repo, "Future", 1)

	w, env := doJSON(t, r, http.MethodGet, "/api/admin/questions", nil)
	require.Equal(t, http.StatusOK, w.Code)
	var list struct {
		Questions []models.Question `json:"questions"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.Equal(t, []string{"Future", "Past"}, texts(list.Questions))

	w, _ = doJSON(t, r, http.MethodDelete, fmt.Sprintf("/api/questions/%d", past.ID), nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w, _ = doJSON(t, r, http.MethodDelete, fmt.Sprintf("/api/questions/%d", past.ID), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
