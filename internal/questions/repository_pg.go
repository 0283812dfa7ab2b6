package questions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/pollsite/backend/internal/models"
)

// PostgresRepository stores questions in PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository creates a questions repository backed by pgx.
func NewPostgresRepository(pool *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{pool: pool}
}

// Create inserts a new question and its choices in one transaction.
func (r *PostgresRepository) Create(ctx context.Context, q *models.Question) error {
	for _, c := range q.Choices {
		if c.Votes < 0 {
			return ErrInvalidVotes
		}
	}
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	const insertQuestion = `INSERT INTO polls_question (question_text, pub_date) VALUES ($1, $2) RETURNING id`
	if err := tx.QueryRow(ctx, insertQuestion, q.Text, q.PubDate).Scan(&q.ID); err != nil {
		return fmt.Errorf("insert question: %w", err)
	}

	const insertChoice = `INSERT INTO polls_choice (question_id, choice_text, votes) VALUES ($1, $2, $3) RETURNING id`
	for i := range q.Choices {
		c := &q.Choices[i]
		c.QuestionID = q.ID
		if err := tx.QueryRow(ctx, insertChoice, c.QuestionID, c.Text, c.Votes).Scan(&c.ID); err != nil {
			return fmt.Errorf("insert choice: %w", err)
		}
	}
	return tx.Commit(ctx)
}

// AddChoice inserts a choice for an existing question.
func (r *PostgresRepository) AddChoice(ctx context.Context, c *models.Choice) error {
	if c.Votes < 0 {
		return ErrInvalidVotes
	}
	const q = `INSERT INTO polls_choice (question_id, choice_text, votes)
		SELECT id, $2, $3 FROM polls_question WHERE id = $1
		RETURNING id`
	err := r.pool.QueryRow(ctx, q, c.QuestionID, c.Text, c.Votes).Scan(&c.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// ListPublished returns questions published at or before now, newest first.
func (r *PostgresRepository) ListPublished(ctx context.Context, now time.Time, limit int) ([]models.Question, error) {
	q := `SELECT id, question_text, pub_date FROM polls_question
		WHERE pub_date <= $1 ORDER BY pub_date DESC, id DESC`
	args := []interface{}{now}
	if limit > 0 {
		q += ` LIMIT $2`
		args = append(args, limit)
	}
	return r.queryQuestions(ctx, q, args...)
}

// List returns all questions, newest first.
func (r *PostgresRepository) List(ctx context.Context) ([]models.Question, error) {
	return r.queryQuestions(ctx, `SELECT id, question_text, pub_date FROM polls_question ORDER BY pub_date DESC, id DESC`)
}

func (r *PostgresRepository) queryQuestions(ctx context.Context, q string, args ...interface{}) ([]models.Question, error) {
	rows, err := r.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	list := []models.Question{}
	for rows.Next() {
		var qu models.Question
		if err := rows.Scan(&qu.ID, &qu.Text, &qu.PubDate); err != nil {
			return nil, err
		}
		list = append(list, qu)
	}
	return list, rows.Err()
}

// GetPublished returns a published question with its choices.
func (r *PostgresRepository) GetPublished(ctx context.Context, id int64, now time.Time) (*models.Question, error) {
	const q = `SELECT id, question_text, pub_date FROM polls_question WHERE id = $1 AND pub_date <= $2`
	return r.getQuestion(ctx, q, id, now)
}

// GetByID returns a question with its choices.
func (r *PostgresRepository) GetByID(ctx context.Context, id int64) (*models.Question, error) {
	const q = `SELECT id, question_text, pub_date FROM polls_question WHERE id = $1`
	return r.getQuestion(ctx, q, id)
}

func (r *PostgresRepository) getQuestion(ctx context.Context, q string, args ...interface{}) (*models.Question, error) {
	var qu models.Question
	err := r.pool.QueryRow(ctx, q, args...).Scan(&qu.ID, &qu.Text, &qu.PubDate)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	rows, err := r.pool.Query(ctx, `SELECT id, question_id, choice_text, votes FROM polls_choice
		WHERE question_id = $1 ORDER BY id`, qu.ID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var c models.Choice
		if err := rows.Scan(&c.ID, &c.QuestionID, &c.Text, &c.Votes); err != nil {
			return nil, err
		}
		qu.Choices = append(qu.Choices, c)
	}
	return &qu, rows.Err()
}

// Vote increments the choice's counter in a single statement.
func (r *PostgresRepository) Vote(ctx context.Context, questionID, choiceID int64) (*models.Choice, error) {
	const q = `UPDATE polls_choice SET votes = votes + 1
		WHERE id = $1 AND question_id = $2
		RETURNING id, question_id, choice_text, votes`
	return r.scanChoice(r.pool.QueryRow(ctx, q, choiceID, questionID))
}

// SetChoiceVotes overwrites a choice's counter.
func (r *PostgresRepository) SetChoiceVotes(ctx context.Context, choiceID, votes int64) (*models.Choice, error) {
	if votes < 0 {
		return nil, ErrInvalidVotes
	}
	const q = `UPDATE polls_choice SET votes = $2 WHERE id = $1
		RETURNING id, question_id, choice_text, votes`
	return r.scanChoice(r.pool.QueryRow(ctx, q, choiceID, votes))
}

func (r *PostgresRepository) scanChoice(row pgx.Row) (*models.Choice, error) {
	var c models.Choice
	err := row.Scan(&c.ID, &c.QuestionID, &c.Text, &c.Votes)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrChoiceNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Delete removes a question; polls_choice rows go with it through ON DELETE CASCADE.
func (r *PostgresRepository) Delete(ctx context.Context, id int64) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM polls_question WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
