package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/pollsite/backend/internal/models"
)

type userRow struct {
	ID         int64     `gorm:"primaryKey"`
	Username   string    `gorm:"size:150;not null;uniqueIndex"`
	Password   string    `gorm:"size:128;not null"`
	IsStaff    bool      `gorm:"not null;default:false"`
	IsActive   bool      `gorm:"not null"`
	DateJoined time.Time `gorm:"not null"`
	LastLogin  *time.Time
}

func (userRow) TableName() string { return "auth_user" }

func (r userRow) toModel() *models.User {
	return &models.User{
		ID:         r.ID,
		Username:   r.Username,
		Password:   r.Password,
		IsStaff:    r.IsStaff,
		IsActive:   r.IsActive,
		DateJoined: r.DateJoined,
		LastLogin:  r.LastLogin,
	}
}

// GormRepository stores users through gorm (sqlite or mysql).
type GormRepository struct {
	db *gorm.DB
}

// NewGormRepository creates a users repository backed by gorm.
func NewGormRepository(db *gorm.DB) *GormRepository {
	return &GormRepository{db: db}
}

// Migrate creates or updates the auth_user table.
func (r *GormRepository) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(&userRow{}); err != nil {
		return fmt.Errorf("migrate users: %w", err)
	}
	return nil
}

// Create inserts a new user. u.Password must already be hashed.
func (r *GormRepository) Create(ctx context.Context, u *models.User) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var n int64
		if err := tx.Model(&userRow{}).Where("username = ?", u.Username).Count(&n).Error; err != nil {
			return err
		}
		if n > 0 {
			return ErrUsernameTaken
		}
		row := userRow{
			Username:   u.Username,
			Password:   u.Password,
			IsStaff:    u.IsStaff,
			IsActive:   u.IsActive,
			DateJoined: time.Now().UTC(),
		}
		if err := tx.Create(&row).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrUsernameTaken
			}
			return fmt.Errorf("insert user: %w", err)
		}
		u.ID = row.ID
		u.DateJoined = row.DateJoined
		return nil
	})
}

// GetByID returns a user by ID.
func (r *GormRepository) GetByID(ctx context.Context, id int64) (*models.User, error) {
	var row userRow
	if err := r.db.WithContext(ctx).First(&row, id).Error; err != nil {
		return nil, translate(err)
	}
	return row.toModel(), nil
}

// GetByUsername returns a user by username.
func (r *GormRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	var row userRow
	if err := r.db.WithContext(ctx).Where("username = ?", username).First(&row).Error; err != nil {
		return nil, translate(err)
	}
	return row.toModel(), nil
}

// UpdateLastLogin records a successful login.
func (r *GormRepository) UpdateLastLogin(ctx context.Context, id int64, at time.Time) error {
	res := r.db.WithContext(ctx).Model(&userRow{}).Where("id = ?", id).UpdateColumn("last_login", at.UTC())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrUserNotFound
	}
	return nil
}

// List returns all users ordered by username.
func (r *GormRepository) List(ctx context.Context) ([]models.UserPublic, error) {
	var rows []userRow
	if err := r.db.WithContext(ctx).Order("username").Find(&rows).Error; err != nil {
		return nil, err
	}
	list := make([]models.UserPublic, 0, len(rows))
	for _, row := range rows {
		list = append(list, row.toModel().ToPublic())
	}
	return list, nil
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return ErrUserNotFound
	}
	return err
}
