package repository

import (
	"context"
	"time"

	"github.com/example/drivethru/pkg/board"
	"github.com/example/drivethru/pkg/config"
	"github.com/example/drivethru/pkg/models"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type MongoRepository struct {
	client   *mongo.Client
	database *mongo.Database
	config   *config.MongoDBConfig
}

func NewMongoRepository(cfg *config.MongoDBConfig) (*MongoRepository, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.URI))
	if err != nil {
		return nil, err
	}

	return &MongoRepository{
		client:   client,
		database: client.Database(cfg.Database),
		config:   cfg,
	}, nil
}

func (m *MongoRepository) Ping(ctx context.Context) error {
	return m.client.Ping(ctx, nil)
}

func (m *MongoRepository) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}

// AuditLog is one order lifecycle entry.
type AuditLog struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	Service   string    `bson:"service" json:"service"`
	Action    string    `bson:"action" json:"action"`
	EntityID  string    `bson:"entity_id" json:"entityId"`
	Seq       uint64    `bson:"seq,omitempty" json:"seq,omitempty"`
	Data      bson.M    `bson:"data,omitempty" json:"data,omitempty"`
	CreatedAt time.Time `bson:"created_at" json:"createdAt"`
}

func (m *MongoRepository) CreateAuditLog(ctx context.Context, log *AuditLog) error {
	collection := m.database.Collection(m.config.Collection)
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	_, err := collection.InsertOne(ctx, log)
	return err
}

func (m *MongoRepository) GetAuditLogs(ctx context.Context, entityID string, limit int64) ([]*AuditLog, error) {
	collection := m.database.Collection(m.config.Collection)

	filter := bson.M{"entity_id": entityID}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}).SetLimit(limit)

	cursor, err := collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	var logs []*AuditLog
	if err = cursor.All(ctx, &logs); err != nil {
		return nil, err
	}

	return logs, nil
}

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *AuditLog) error
}

// AuditTrail records every order mutation and every archived order.
// Snapshot events carry no mutation and are skipped.
type AuditTrail struct {
	writer  auditWriter
	service string
}

func NewAuditTrail(writer auditWriter, service string) *AuditTrail {
	return &AuditTrail{writer: writer, service: service}
}

func (a *AuditTrail) Name() string { return "mongo-audit" }

func (a *AuditTrail) HandleEvent(ctx context.Context, ev board.Event) error {
	if ev.Type == board.EventInit {
		return nil
	}
	entry := &AuditLog{
		ID:        uuid.New().String(),
		Service:   a.service,
		Action:    string(ev.Type),
		EntityID:  ev.SessionID(),
		Seq:       ev.Seq,
		CreatedAt: ev.OccurredAt,
	}
	if ev.Order != nil {
		entry.Data = auditData(*ev.Order)
	}
	return a.writer.CreateAuditLog(ctx, entry)
}

// Archive satisfies board.Archiver.
func (a *AuditTrail) Archive(ctx context.Context, order models.Order, reason string) error {
	data := auditData(order)
	data["reason"] = reason
	return a.writer.CreateAuditLog(ctx, &AuditLog{
		ID:       uuid.New().String(),
		Service:  a.service,
		Action:   "order:archive",
		EntityID: order.ID,
		Data:     data,
	})
}

func auditData(order models.Order) bson.M {
	items := make(bson.A, 0, len(order.Items))
	for _, item := range order.Items {
		entry := bson.M{
			"name":       item.Name,
			"quantity":   item.Quantity,
			"unit_price": item.UnitPrice,
		}
		if item.Size != nil {
			entry["size"] = *item.Size
		}
		if len(item.Modifiers) > 0 {
			entry["modifiers"] = item.Modifiers
		}
		items = append(items, entry)
	}

	data := bson.M{
		"order_number":        order.OrderNumber,
		"items":               items,
		"total":               order.Total,
		"conversation_status": string(order.ConversationStatus),
		"kitchen_status":      string(order.KitchenStatus),
	}
	if order.CompletedAt != nil {
		data["completed_at"] = *order.CompletedAt
	}
	if order.KitchenCompletedAt != nil {
		data["kitchen_completed_at"] = *order.KitchenCompletedAt
	}
	return data
}
