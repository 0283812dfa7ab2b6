package questions

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pollsite/backend/internal/models"
	"github.com/pollsite/backend/pkg/response"
)

// ChoiceRequest is one choice in a create request and the body for POST /api/questions/:id/choices.
type ChoiceRequest struct {
	Text  string `json:"choice_text" binding:"required"`
	Votes int64  `json:"votes" binding:"min=0"`
}

// CreateRequest is the body for POST /api/questions.
type CreateRequest struct {
	Text    string          `json:"question_text" binding:"required"`
	PubDate *time.Time      `json:"pub_date"`
	Choices []ChoiceRequest `json:"choices" binding:"dive"`
}

// VotesRequest is the body for PATCH /api/choices/:id.
type VotesRequest struct {
	Votes *int64 `json:"votes" binding:"required,min=0"`
}

// Handler handles the JSON API for questions and choices.
type Handler struct {
	repo       Repository
	indexLimit int
	now        func() time.Time
	logger     *zap.Logger
}

// NewHandler creates a questions API handler.
func NewHandler(repo Repository, indexLimit int, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, indexLimit: indexLimit, now: time.Now, logger: logger}
}

// List handles GET /api/questions (published only).
func (h *Handler) List(c *gin.Context) {
	list, err := h.repo.ListPublished(c.Request.Context(), h.now(), h.indexLimit)
	if err != nil {
		h.logger.Error("list questions", zap.Error(err))
		response.Internal(c, "failed to list questions")
		return
	}
	response.OK(c, gin.H{"questions": list})
}

// Get handles GET /api/questions/:id.
func (h *Handler) Get(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	q, err := h.repo.GetPublished(c.Request.Context(), id, h.now())
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "question not found")
		return
	}
	if err != nil {
		h.logger.Error("get question", zap.Int64("id", id), zap.Error(err))
		response.Internal(c, "failed to get question")
		return
	}
	response.OK(c, q)
}

// AdminList handles GET /api/admin/questions (staff). Includes unpublished questions.
func (h *Handler) AdminList(c *gin.Context) {
	list, err := h.repo.List(c.Request.Context())
	if err != nil {
		h.logger.Error("list all questions", zap.Error(err))
		response.Internal(c, "failed to list questions")
		return
	}
	response.OK(c, gin.H{"questions": list})
}

// Create handles POST /api/questions (staff).
func (h *Handler) Create(c *gin.Context) {
	var req CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		response.BadRequest(c, "question_text must not be empty")
		return
	}
	q := &models.Question{Text: text, PubDate: h.now()}
	if req.PubDate != nil {
		q.PubDate = *req.PubDate
	}
	for _, ch := range req.Choices {
		q.Choices = append(q.Choices, models.Choice{Text: ch.Text, Votes: ch.Votes})
	}
	if err := h.repo.Create(c.Request.Context(), q); err != nil {
		if errors.Is(err, ErrInvalidVotes) {
			response.BadRequest(c, err.Error())
			return
		}
		h.logger.Error("create question", zap.Error(err))
		response.Internal(c, "failed to create question")
		return
	}
	h.logger.Info("question created", zap.Int64("id", q.ID), zap.Time("pub_date", q.PubDate))
	response.Created(c, q)
}

// AddChoice handles POST /api/questions/:id/choices (staff).
func (h *Handler) AddChoice(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req ChoiceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ch := &models.Choice{QuestionID: id, Text: req.Text, Votes: req.Votes}
	err := h.repo.AddChoice(c.Request.Context(), ch)
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, "question not found")
	case errors.Is(err, ErrInvalidVotes):
		response.BadRequest(c, err.Error())
	case err != nil:
		h.logger.Error("add choice", zap.Int64("question_id", id), zap.Error(err))
		response.Internal(c, "failed to add choice")
	default:
		response.Created(c, ch)
	}
}

// SetVotes handles PATCH /api/choices/:id (staff).
func (h *Handler) SetVotes(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req VotesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ch, err := h.repo.SetChoiceVotes(c.Request.Context(), id, *req.Votes)
	switch {
	case errors.Is(err, ErrChoiceNotFound):
		response.NotFound(c, "choice not found")
	case errors.Is(err, ErrInvalidVotes):
		response.BadRequest(c, err.Error())
	case err != nil:
		h.logger.Error("set votes", zap.Int64("choice_id", id), zap.Error(err))
		response.Internal(c, "failed to update choice")
	default:
		response.OK(c, ch)
	}
}

// Delete handles DELETE /api/questions/:id (staff).
func (h *Handler) Delete(c *gin.Context) {
	id, ok := parseID(c)
	if !ok {
		return
	}
	err := h.repo.Delete(c.Request.Context(), id)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "question not found")
		return
	}
	if err != nil {
		h.logger.Error("delete question", zap.Int64("id", id), zap.Error(err))
		response.Internal(c, "failed to delete question")
		return
	}
	response.NoContent(c)
}

func parseID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "invalid id")
		return 0, false
	}
	return id, true
}
