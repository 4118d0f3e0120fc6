package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/example/drivethru/pkg/config"
	"github.com/example/drivethru/pkg/models"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// ArchiveRepository stores orders that left the board for good.
type ArchiveRepository struct {
	db  *gorm.DB
	now func() time.Time
}

func NewArchiveRepository(cfg *config.ArchiveConfig) (*ArchiveRepository, error) {
	var dialector gorm.Dialector
	switch cfg.Driver {
	case "mysql":
		dialector = mysql.Open(cfg.DSN)
	case "postgres":
		dialector = postgres.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported archive driver %q", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{
		Logger: logger.Default.LogMode(logger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to archive database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get archive connection pool: %w", err)
	}
	sqlDB.SetMaxIdleConns(cfg.MaxIdleConns)
	sqlDB.SetMaxOpenConns(cfg.MaxOpenConns)

	// Auto migrate
	if err := db.AutoMigrate(&models.ArchivedOrder{}); err != nil {
		return nil, fmt.Errorf("failed to migrate: %w", err)
	}

	return &ArchiveRepository{db: db, now: time.Now}, nil
}

// Archive satisfies board.Archiver.
func (r *ArchiveRepository) Archive(ctx context.Context, order models.Order, reason string) error {
	row, err := toArchived(order, reason, r.now())
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(row).Error
}

// History returns the archived rows of one session, newest first.
func (r *ArchiveRepository) History(ctx context.Context, sessionID string, limit int) ([]models.Order, error) {
	var rows []models.ArchivedOrder
	err := r.db.WithContext(ctx).
		Where("session_id = ?", sessionID).
		Order("archived_at desc").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	result := make([]models.Order, 0, len(rows))
	for i := range rows {
		order, err := fromArchived(&rows[i])
		if err != nil {
			return nil, err
		}
		result = append(result, order)
	}
	return result, nil
}

func (r *ArchiveRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func toArchived(order models.Order, reason string, at time.Time) (*models.ArchivedOrder, error) {
	items := order.Items
	if items == nil {
		items = []models.LineItem{}
	}
	itemsJSON, err := json.Marshal(items)
	if err != nil {
		return nil, fmt.Errorf("failed to serialize items: %w", err)
	}

	return &models.ArchivedOrder{
		SessionID:          order.ID,
		OrderNumber:        order.OrderNumber,
		Items:              string(itemsJSON),
		Total:              order.Total,
		ConversationStatus: string(order.ConversationStatus),
		KitchenStatus:      string(order.KitchenStatus),
		Reason:             reason,
		OrderCreatedAt:     order.CreatedAt,
		OrderUpdatedAt:     order.UpdatedAt,
		CompletedAt:        order.CompletedAt,
		KitchenCompletedAt: order.KitchenCompletedAt,
		ArchivedAt:         at,
	}, nil
}

func fromArchived(row *models.ArchivedOrder) (models.Order, error) {
	var items []models.LineItem
	if err := json.Unmarshal([]byte(row.Items), &items); err != nil {
		return models.Order{}, fmt.Errorf("failed to parse items for %s: %w", row.SessionID, err)
	}

	return models.Order{
		ID:                 row.SessionID,
		OrderNumber:        row.OrderNumber,
		Items:              items,
		Total:              row.Total,
		ConversationStatus: models.ConversationStatus(row.ConversationStatus),
		KitchenStatus:      models.KitchenStatus(row.KitchenStatus),
		CreatedAt:          row.OrderCreatedAt,
		UpdatedAt:          row.OrderUpdatedAt,
		CompletedAt:        row.CompletedAt,
		KitchenCompletedAt: row.KitchenCompletedAt,
	}, nil
}
