package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Khaledaun/orion-content-sub000/internal/domain"
)

type SessionRepository struct {
	db *gorm.DB
}

func NewSessionRepository(db *gorm.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Find(ctx context.Context, sessionID string) (*domain.Session, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model SessionModel
	err := r.db.WithContext(ctx).First(&model, "id = ?", sessionID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return sessionFromModel(model), nil
}

func (r *SessionRepository) Create(ctx context.Context, session domain.Session) (domain.Session, error) {
	if r.db == nil {
		return domain.Session{}, errDBUnavailable
	}
	if session.ID == "" {
		session.ID = uuid.NewString()
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	model := SessionModel{
		ID:        session.ID,
		UserID:    session.UserID,
		ExpiresAt: session.ExpiresAt,
		RevokedAt: session.RevokedAt,
		CreatedAt: session.CreatedAt,
	}
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.Session{}, err
	}
	return session, nil
}

// Revoke marks the session dead without deleting the record, so the
// revocation time survives for audit queries.
func (r *SessionRepository) Revoke(ctx context.Context, sessionID string, at time.Time) error {
	if r.db == nil {
		return errDBUnavailable
	}
	result := r.db.WithContext(ctx).
		Model(&SessionModel{}).
		Where("id = ? AND revoked_at IS NULL", sessionID).
		Update("revoked_at", at.UTC())
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func sessionFromModel(model SessionModel) *domain.Session {
	return &domain.Session{
		ID:        model.ID,
		UserID:    model.UserID,
		ExpiresAt: model.ExpiresAt,
		RevokedAt: model.RevokedAt,
		CreatedAt: model.CreatedAt,
	}
}
