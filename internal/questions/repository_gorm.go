package questions

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/pollsite/backend/internal/models"
)

type questionRow struct {
	ID           int64       `gorm:"primaryKey"`
	QuestionText string      `gorm:"size:200;not null"`
	PubDate      time.Time   `gorm:"not null;index"`
	Choices      []choiceRow `gorm:"foreignKey:QuestionID;constraint:OnDelete:CASCADE"`
}

func (questionRow) TableName() string { return "polls_question" }

type choiceRow struct {
	ID         int64  `gorm:"primaryKey"`
	QuestionID int64  `gorm:"not null;index"`
	ChoiceText string `gorm:"size:200;not null"`
	Votes      int64  `gorm:"not null;default:0"`
}

func (choiceRow) TableName() string { return "polls_choice" }

func (r questionRow) toModel() models.Question {
	q := models.Question{ID: r.ID, Text: r.QuestionText, PubDate: r.PubDate}
	for _, c := range r.Choices {
		q.Choices = append(q.Choices, c.toModel())
	}
	return q
}

func (r choiceRow) toModel() models.Choice {
	return models.Choice{ID: r.ID, QuestionID: r.QuestionID, Text: r.ChoiceText, Votes: r.Votes}
}

// GormRepository stores questions through gorm (sqlite or mysql).
// Timestamps are written in UTC so that sqlite's text comparison orders them correctly.
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a questions repository backed by gorm.
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// Migrate creates or updates the polls_question and polls_choice tables.
func (r *GormRepository) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&questionRow{}, &choiceRow{}); err != nil {
		return fmt.Errorf("migrate questions: %w", err)
	}
	return nil
}

// Create inserts a new question and its choices.
func (r *GormRepository) Create(ctx context.Context, q *models.Question) error {
	row := questionRow{QuestionText: q.Text, PubDate: q.PubDate.UTC()}
	for _, c := range q.Choices {
		if c.Votes < 0 {
			return ErrInvalidVotes
		}
		row.Choices = append(row.Choices, choiceRow{ChoiceText: c.Text, Votes: c.Votes})
	}
	if err := r.db.WithContext(ctx).Create(&row).Error; err != nil {
		return fmt.Errorf("insert question: %w", err)
	}
	q.ID = row.ID
	for i := range q.Choices {
		q.Choices[i].ID = row.Choices[i].ID
		q.Choices[i].QuestionID = row.ID
	}
	return nil
}

// AddChoice inserts a choice for an existing question.
func (r *GormRepository) AddChoice(ctx context.Context, c *models.Choice) error {
	if c.Votes < 0 {
		return ErrInvalidVotes
	}
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var owner questionRow
		if err := tx.Select("id").First(&owner, c.QuestionID).Error; err != nil {
			return translate(err, ErrNotFound)
		}
		row := choiceRow{QuestionID: owner.ID, ChoiceText: c.Text, Votes: c.Votes}
		if err := tx.Create(&row).Error; err != nil {
			return fmt.Errorf("insert choice: %w", err)
		}
		c.ID = row.ID
		return nil
	})
}

// ListPublished returns questions published at or before now, newest first.
func (r *GormRepository) ListPublished(ctx context.Context, now time.Time, limit int) ([]models.Question, error) {
	tx := r.db.WithContext(ctx).Where("pub_date <= ?", now.UTC())
	if limit > 0 {
		tx = tx.Limit(limit)
	}
	return r.findQuestions(tx)
}

// List returns all questions, newest first.
func (r *GormRepository) List(ctx context.Context) ([]models.Question, error) {
	return r.findQuestions(r.db.WithContext(ctx))
}

func (r *GormRepository) findQuestions(tx *gorm.DB) ([]models.Question, error) {
	var rows []questionRow
	if err := tx.Order("pub_date DESC").Order("id DESC").Find(&rows).Error; err != nil {
		return nil, err
	}
	list := make([]models.Question, 0, len(rows))
	for _, row := range rows {
		list = append(list, row.toModel())
	}
	return list, nil
}

// GetPublished returns a published question with its choices.
func (r *GormRepository) GetPublished(ctx context.Context, id int64, now time.Time) (*models.Question, error) {
	return r.getQuestion(r.db.WithContext(ctx).Where("pub_date <= ?", now.UTC()), id)
}

// GetByID returns a question with its choices.
func (r *GormRepository) GetByID(ctx context.Context, id int64) (*models.Question, error) {
	return r.getQuestion(r.db.WithContext(ctx), id)
}

func (r *GormRepository) getQuestion(tx *gorm.DB, id int64) (*models.Question, error) {
	var row questionRow
	err := tx.Preload("Choices", func(db *gorm.DB) *gorm.DB {
		return db.Order("id")
	}).First(&row, id).Error
	if err != nil {
		return nil, translate(err, ErrNotFound)
	}
	q := row.toModel()
	return &q, nil
}

// Vote increments the choice's counter with a single UPDATE.
func (r *GormRepository) Vote(ctx context.Context, questionID, choiceID int64) (*models.Choice, error) {
	var out *models.Choice
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&choiceRow{}).
			Where("id = ? AND question_id = ?", choiceID, questionID).
			UpdateColumn("votes", gorm.Expr("votes + ?", 1))
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrChoiceNotFound
		}
		c, err := loadChoice(tx, choiceID)
		out = c
		return err
	})
	return out, err
}

// SetChoiceVotes overwrites a choice's counter.
func (r *GormRepository) SetChoiceVotes(ctx context.Context, choiceID, votes int64) (*models.Choice, error) {
	if votes < 0 {
		return nil, ErrInvalidVotes
	}
	var out *models.Choice
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&choiceRow{}).Where("id = ?", choiceID).UpdateColumn("votes", votes)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return ErrChoiceNotFound
		}
		c, err := loadChoice(tx, choiceID)
		out = c
		return err
	})
	return out, err
}

// Delete removes the question's choices and then the question itself.
func (r *GormRepository) Delete(ctx context.Context, id int64) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("question_id = ?", id).Delete(&choiceRow{}).Error; err != nil {
			return fmt.Errorf("delete choices: %w", err)
		}
		res := tx.Delete(&questionRow{}, id)
		if res.Error != nil {
			return fmt.Errorf("delete question: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return nil
	})
}

func loadChoice(tx *gorm.DB, id int64) (*models.Choice, error) {
	var row choiceRow
	if err := tx.First(&row, id).Error; err != nil {
		return nil, translate(err, ErrChoiceNotFound)
	}
	c := row.toModel()
	return &c, nil
}

func translate(err, notFound error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return err
}
