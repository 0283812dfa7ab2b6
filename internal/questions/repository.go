package questions

import (
	"context"
	"errors"
	"time"

	"github.com/pollsite/backend/internal/models"
)

var (
	// ErrNotFound is returned for a missing question and for one not yet published.
	ErrNotFound = errors.New("question not found")
	// ErrChoiceNotFound is returned when a choice does not exist or belongs to another question.
	ErrChoiceNotFound = errors.New("choice not found")
	// ErrInvalidVotes is returned for a negative vote count.
	ErrInvalidVotes = errors.New("votes must not be negative")
)

// Repository handles question and choice persistence.
type Repository interface {
	// Create inserts q and any choices attached to it.
	Create(ctx context.Context, q *models.Question) error
	// AddChoice inserts c under the question c.QuestionID.
	AddChoice(ctx context.Context, c *models.Choice) error
	// ListPublished returns questions with PubDate <= now, newest first.
	// limit <= 0 returns all of them.
	ListPublished(ctx context.Context, now time.Time, limit int) ([]models.Question, error)
	// GetPublished returns the question with its choices, or ErrNotFound when
	// the id is unknown or the question is dated after now.
	GetPublished(ctx context.Context, id int64, now time.Time) (*models.Question, error)
	// GetByID returns the question with its choices regardless of PubDate.
	GetByID(ctx context.Context, id int64) (*models.Question, error)
	// List returns every question, newest first.
	List(ctx context.Context) ([]models.Question, error)
	// Vote adds one vote to the choice if it belongs to the question.
	Vote(ctx context.Context, questionID, choiceID int64) (*models.Choice, error)
	// SetChoiceVotes overwrites the vote counter of a choice.
	SetChoiceVotes(ctx context.Context, choiceID, votes int64) (*models.Choice, error)
	// Delete removes the question and every choice it owns.
	Delete(ctx context.Context, id int64) error
}
