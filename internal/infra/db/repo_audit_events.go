package db

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/Khaledaun/orion-content-sub000/internal/domain"
)

type AuditEventRepository struct {
	db *gorm.DB
}

func NewAuditEventRepository(db *gorm.DB) *AuditEventRepository {
	return &AuditEventRepository{db: db}
}

// Append writes one event. Events are append-only; nothing in the
// gateway updates or deletes them.
func (r *AuditEventRepository) Append(ctx context.Context, event domain.AuditEvent) error {
	if r.db == nil {
		return errDBUnavailable
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = time.Now().UTC()
	} else {
		event.CreatedAt = event.CreatedAt.UTC()
	}
	model, err := auditEventModelFromDomain(event)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(&model).Error
}

// ListRecent returns the newest events first, capped at limit.
func (r *AuditEventRepository) ListRecent(ctx context.Context, limit int) ([]domain.AuditEvent, error) {
	if r.db == nil {
		return nil, errDBUnavailable
	}
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	var models []AuditEventModel
	err := r.db.WithContext(ctx).
		Order("created_at DESC").
		Limit(limit).
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	out := make([]domain.AuditEvent, 0, len(models))
	for _, model := range models {
		event, err := auditEventFromModel(model)
		if err != nil {
			return nil, err
		}
		out = append(out, event)
	}
	return out, nil
}

func auditEventModelFromDomain(event domain.AuditEvent) (AuditEventModel, error) {
	var metadataJSON []byte
	if len(event.Metadata) > 0 {
		encoded, err := json.Marshal(event.Metadata)
		if err != nil {
			return AuditEventModel{}, err
		}
		metadataJSON = encoded
	}
	return AuditEventModel{
		ID:           event.ID,
		Route:        event.Route,
		Action:       event.Action,
		ActorType:    string(event.ActorType),
		Actor:        event.Actor,
		Success:      event.Success,
		MetadataJSON: metadataJSON,
		LatencyMs:    event.LatencyMs,
		Cost:         event.Cost,
		CreatedAt:    event.CreatedAt.UTC(),
	}, nil
}

func auditEventFromModel(model AuditEventModel) (domain.AuditEvent, error) {
	var metadata map[string]any
	if len(model.MetadataJSON) > 0 {
		if err := json.Unmarshal(model.MetadataJSON, &metadata); err != nil {
			return domain.AuditEvent{}, err
		}
	}
	return domain.AuditEvent{
		ID:        model.ID,
		Route:     model.Route,
		Action:    model.Action,
		ActorType: domain.AuditActorType(model.ActorType),
		Actor:     model.Actor,
		Success:   model.Success,
		Metadata:  metadata,
		LatencyMs: model.LatencyMs,
		Cost:      model.Cost,
		CreatedAt: model.CreatedAt.UTC(),
	}, nil
}
