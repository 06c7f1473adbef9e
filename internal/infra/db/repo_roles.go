package db

import (
	"context"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Khaledaun/orion-content-sub000/internal/domain"
)

type RoleGrantRepository struct {
	db *gorm.DB
}

func NewRoleGrantRepository(db *gorm.DB) *RoleGrantRepository {
	return &RoleGrantRepository{db: db}
}

// RolesForUser loads every grant for the user. Unknown role names are
// skipped rather than failing resolution; a user with no grants gets an
// empty set, not an error.
func (r *RoleGrantRepository) RolesForUser(ctx context.Context, userID string) ([]domain.Role, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	var models []RoleGrantModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	roles := make([]domain.Role, 0, len(models))
	for _, model := range models {
		name, err := domain.ParseRoleName(model.RoleName)
		if err != nil {
			continue
		}
		roles = append(roles, domain.Role{Name: name, Scope: siteScopeValue(model.SiteScope)})
	}
	return roles, nil
}

func (r *RoleGrantRepository) Grant(ctx context.Context, userID string, role domain.Role) error {
	if r.db == nil {
		return errDBUnavailable
	}
	model := RoleGrantModel{
		ID:        uuid.NewString(),
		UserID:    userID,
		RoleName:  string(role.Name),
		SiteScope: siteScopePtr(role.Scope),
		CreatedAt: time.Now().UTC(),
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

func (r *RoleGrantRepository) Revoke(ctx context.Context, userID string, role domain.Role) error {
	if r.db == nil {
		return errDBUnavailable
	}
	query := r.db.WithContext(ctx).Where("user_id = ? AND role_name = ?", userID, string(role.Name))
	if role.Global() {
		query = query.Where("site_scope IS NULL")
	} else {
		query = query.Where("site_scope = ?", string(role.Scope))
	}
	result := query.Delete(&RoleGrantModel{})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
