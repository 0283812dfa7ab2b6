// Package polls serves the public HTML pages: the question index, the detail
// page with its vote form, results, and the vote action.
package polls

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pollsite/backend/internal/middleware"
	"github.com/pollsite/backend/internal/models"
	"github.com/pollsite/backend/internal/questions"
	"github.com/pollsite/backend/internal/web"
	"github.com/pollsite/backend/pkg/metrics"
)

// Handler handles the public poll pages.
type Handler struct {
	repo       questions.Repository
	indexLimit int
	now        func() time.Time
	logger     *zap.Logger
}

// NewHandler creates a polls handler. indexLimit <= 0 lists every published question.
func NewHandler(repo questions.Repository, indexLimit int, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{repo: repo, indexLimit: indexLimit, now: time.Now, logger: logger}
}

// Index handles GET /.
func (h *Handler) Index(c *gin.Context) {
	list, err := h.repo.ListPublished(c.Request.Context(), h.now(), h.indexLimit)
	if err != nil {
		h.logger.Error("list questions", zap.Error(err))
		web.ServerError(c)
		return
	}
	c.HTML(http.StatusOK, "index.html", gin.H{
		"latest_question_list": list,
		"user":                 middleware.UserFromContext(c),
	})
}

// Detail handles GET /:id/.
func (h *Handler) Detail(c *gin.Context) {
	q, ok := h.published(c)
	if !ok {
		return
	}
	c.HTML(http.StatusOK, "detail.html", gin.H{"question": q})
}

// Results handles GET /:id/results/.
func (h *Handler) Results(c *gin.Context) {
	q, ok := h.published(c)
	if !ok {
		return
	}
	c.HTML(http.StatusOK, "results.html", gin.H{"question": q})
}

// Vote handles POST /:id/vote/. A missing or foreign choice re-renders the
// detail page with an error instead of failing the request.
func (h *Handler) Vote(c *gin.Context) {
	q, ok := h.published(c)
	if !ok {
		return
	}
	choiceID, err := strconv.ParseInt(c.PostForm("choice"), 10, 64)
	if err != nil {
		h.renderNoChoice(c, q)
		return
	}
	if _, err := h.repo.Vote(c.Request.Context(), q.ID, choiceID); err != nil {
		if errors.Is(err, questions.ErrChoiceNotFound) {
			h.renderNoChoice(c, q)
			return
		}
		h.logger.Error("vote", zap.Int64("question_id", q.ID), zap.Int64("choice_id", choiceID), zap.Error(err))
		web.ServerError(c)
		return
	}
	metrics.Votes.Inc()
	c.Redirect(http.StatusFound, fmt.Sprintf("/%d/results/", q.ID))
}

func (h *Handler) renderNoChoice(c *gin.Context, q *models.Question) {
	c.HTML(http.StatusOK, "detail.html", gin.H{"question": q, "no_choice": true})
}

// published loads the question named by the :id param. It writes the 404 or
// 500 page itself and reports false when the handler should stop.
func (h *Handler) published(c *gin.Context) (*models.Question, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		web.NotFound(c)
		return nil, false
	}
	q, err := h.repo.GetPublished(c.Request.Context(), id, h.now())
	if errors.Is(err, questions.ErrNotFound) {
		web.NotFound(c)
		return nil, false
	}
	if err != nil {
		h.logger.Error("get question", zap.Int64("id", id), zap.Error(err))
		web.ServerError(c)
		return nil, false
	}
	return q, true
}
