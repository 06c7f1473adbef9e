package db

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Khaledaun/orion-content-sub000/internal/domain"
)

type ScopedTokenRepository struct {
	db *gorm.DB
}

func NewScopedTokenRepository(db *gorm.DB) *ScopedTokenRepository {
	return &ScopedTokenRepository{db: db}
}

// FindByValue hashes the presented secret and looks the token up by
// digest. The raw value never reaches the database.
func (r *ScopedTokenRepository) FindByValue(ctx context.Context, tokenValue string) (*domain.ScopedToken, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var model ScopedTokenModel
	err := r.db.WithContext(ctx).
		Where("token_hash = ?", domain.HashTokenValue(tokenValue)).
		First(&model).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, err
	}
	return scopedTokenFromModel(model), nil
}

// Create stores a token record for a raw secret minted by the caller.
func (r *ScopedTokenRepository) Create(ctx context.Context, token domain.ScopedToken, rawValue string) (domain.ScopedToken, error) {
	if r.db == nil {
		return domain.ScopedToken{}, errDBUnavailable
	}
	if token.ID == "" {
		token.ID = uuid.NewString()
	}
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now().UTC()
	}
	token.TokenHash = domain.HashTokenValue(rawValue)
	model := scopedTokenModelFromDomain(token)
	if err := r.db.WithContext(ctx).Create(&model).Error; err != nil {
		return domain.ScopedToken{}, err
	}
	return token, nil
}

func (r *ScopedTokenRepository) Delete(ctx context.Context, id string) error {
	if r.db == nil {
		return errDBUnavailable
	}
	result := r.db.WithContext(ctx).Delete(&ScopedTokenModel{}, "id = ?", id)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scopedTokenModelFromDomain(token domain.ScopedToken) ScopedTokenModel {
	return ScopedTokenModel{
		ID:        token.ID,
		TokenHash: token.TokenHash,
		OwnerID:   token.OwnerID,
		SiteScope: siteScopePtr(token.SiteScope),
		ExpiresAt: token.ExpiresAt,
		CreatedAt: token.CreatedAt,
	}
}

func scopedTokenFromModel(model ScopedTokenModel) *domain.ScopedToken {
	return &domain.ScopedToken{
		ID:        model.ID,
		TokenHash: model.TokenHash,
		OwnerID:   model.OwnerID,
		SiteScope: siteScopeValue(model.SiteScope),
		ExpiresAt: model.ExpiresAt,
		CreatedAt: model.CreatedAt,
	}
}
