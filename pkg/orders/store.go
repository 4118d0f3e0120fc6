// Package orders holds the authoritative in-memory order table.
//
// A Store has a single owner: it performs no locking, and every call is expected to
// come from one goroutine (the board actor). Records returned to callers are deep
// copies.
package orders

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/example/drivethru/pkg/models"
)

var (
	ErrDuplicateSession  = errors.New("order already exists for session")
	ErrInvalidSession    = errors.New("session id is required")
	ErrNotFound          = errors.New("order not found")
	ErrInvalidStatus     = errors.New("invalid status")
	ErrIllegalTransition = errors.New("illegal kitchen status transition")
	ErrRejectedState     = errors.New("order state rejected")
)

const DefaultRetention = time.Hour

// OrderState is the full order content sent by the agent on every turn.
// It replaces the stored items, total and conversation status as a whole.
type OrderState struct {
	Items  []models.LineItem
	Total  float64
	Status models.ConversationStatus
}

type Store struct {
	orders     map[string]*models.Order
	nextNumber int
	now        func() time.Time
	retention  time.Duration
	validate   Validator
	strict     bool

	// Agent activity stamps. Kitchen changes do not touch them, so Latest
	// follows the conversation rather than the kitchen. Stamps survive
	// Delete so a restored order keeps its place.
	agentSeq   uint64
	agentStamp map[string]uint64
}

type Option func(*Store)

func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		if now != nil {
			s.now = now
		}
	}
}

func WithRetention(d time.Duration) Option {
	return func(s *Store) {
		if d > 0 {
			s.retention = d
		}
	}
}

func WithValidator(v Validator) Option {
	return func(s *Store) { s.validate = v }
}

// WithStrictTransitions only allows forward-adjacent kitchen status changes.
func WithStrictTransitions() Option {
	return func(s *Store) { s.strict = true }
}

func NewStore(opts ...Option) *Store {
	s := &Store{
		orders:     make(map[string]*models.Order),
		agentStamp: make(map[string]uint64),
		nextNumber: 1,
		now:        time.Now,
		retention:  DefaultRetention,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Store) Retention() time.Duration {
	return s.retention
}

// Create opens the order for a new session. Calling it twice for the same id is a
// caller bug and is rejected.
func (s *Store) Create(sessionID string) (models.Order, error) {
	if sessionID == "" {
		return models.Order{}, ErrInvalidSession
	}
	if _, exists := s.orders[sessionID]; exists {
		return models.Order{}, fmt.Errorf("%w: %s", ErrDuplicateSession, sessionID)
	}

	now := s.now()
	order := &models.Order{
		ID:                 sessionID,
		OrderNumber:        s.nextNumber,
		Items:              []models.LineItem{},
		Total:              0,
		ConversationStatus: models.ConversationInProgress,
		KitchenStatus:      models.KitchenWaiting,
		CreatedAt:          now,
		UpdatedAt:          now,
	}
	s.nextNumber++
	s.orders[sessionID] = order
	s.touch(sessionID)

	return order.Clone(), nil
}

// Update replaces items, total and conversation status wholesale. The total is
// stored as given; it is never recomputed here.
func (s *Store) Update(sessionID string, state OrderState) (models.Order, error) {
	order, ok := s.orders[sessionID]
	if !ok {
		return models.Order{}, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}

	status := state.Status
	if status == "" {
		status = models.ConversationInProgress
	}
	if !status.Valid() {
		return models.Order{}, fmt.Errorf("%w: conversation status %q", ErrInvalidStatus, state.Status)
	}
	if s.validate != nil {
		if err := s.validate(state); err != nil {
			return models.Order{}, fmt.Errorf("%w: %v", ErrRejectedState, err)
		}
	}

	now := s.now()
	order.Items = models.CloneItems(state.Items)
	order.Total = state.Total
	order.ConversationStatus = status
	order.UpdatedAt = now
	if status == models.ConversationComplete && order.CompletedAt == nil {
		completedAt := now
		order.CompletedAt = &completedAt
	}
	s.touch(sessionID)

	return order.Clone(), nil
}

// SetKitchenStatus moves the order to any valid kitchen status unless strict
// transitions are enabled.
func (s *Store) SetKitchenStatus(sessionID string, status models.KitchenStatus) (models.Order, error) {
	if !status.Valid() {
		return models.Order{}, fmt.Errorf("%w: kitchen status %q", ErrInvalidStatus, status)
	}
	order, ok := s.orders[sessionID]
	if !ok {
		return models.Order{}, fmt.Errorf("%w: %s", ErrNotFound, sessionID)
	}
	if s.strict && !CanTransition(order.KitchenStatus, status) {
		return models.Order{}, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, order.KitchenStatus, status)
	}

	now := s.now()
	order.KitchenStatus = status
	order.UpdatedAt = now
	if status == models.KitchenCompleted && order.KitchenCompletedAt == nil {
		completedAt := now
		order.KitchenCompletedAt = &completedAt
	}

	return order.Clone(), nil
}

func (s *Store) Get(sessionID string) (models.Order, bool) {
	order, ok := s.orders[sessionID]
	if !ok {
		return models.Order{}, false
	}
	return order.Clone(), true
}

// ListActive returns every order still relevant to the kitchen, oldest first.
// Kitchen-completed orders stay listed until the retention window has passed.
func (s *Store) ListActive() []models.Order {
	cutoff := s.now().Add(-s.retention)

	result := make([]models.Order, 0, len(s.orders))
	for _, order := range s.orders {
		if s.expired(order, cutoff) {
			continue
		}
		result = append(result, order.Clone())
	}
	sortByCreation(result)
	return result
}

// Latest returns the order the agent created or updated most recently, of any
// status. Kitchen status changes do not count.
func (s *Store) Latest() (models.Order, bool) {
	var latest *models.Order
	var best uint64
	for id, order := range s.orders {
		if stamp := s.agentStamp[id]; latest == nil || stamp > best {
			latest, best = order, stamp
		}
	}
	if latest == nil {
		return models.Order{}, false
	}
	return latest.Clone(), true
}

func (s *Store) Delete(sessionID string) (models.Order, bool) {
	order, ok := s.orders[sessionID]
	if !ok {
		return models.Order{}, false
	}
	delete(s.orders, sessionID)
	return order.Clone(), true
}

// Restore puts back a record removed by Delete, keeping its id, number and timestamps.
func (s *Store) Restore(order models.Order) error {
	if order.ID == "" {
		return ErrInvalidSession
	}
	if _, exists := s.orders[order.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateSession, order.ID)
	}
	restored := order.Clone()
	s.orders[order.ID] = &restored
	if order.OrderNumber >= s.nextNumber {
		s.nextNumber = order.OrderNumber + 1
	}
	return nil
}

// Evict removes kitchen-completed orders whose retention window has passed and
// returns them oldest first.
func (s *Store) Evict() []models.Order {
	cutoff := s.now().Add(-s.retention)

	var evicted []models.Order
	for id, order := range s.orders {
		if !s.expired(order, cutoff) {
			continue
		}
		evicted = append(evicted, order.Clone())
		delete(s.orders, id)
		delete(s.agentStamp, id)
	}
	sortByCreation(evicted)
	return evicted
}

// Forget drops what the store still remembers about a deleted order that will
// not be restored.
func (s *Store) Forget(sessionID string) {
	if _, live := s.orders[sessionID]; !live {
		delete(s.agentStamp, sessionID)
	}
}

func (s *Store) touch(sessionID string) {
	s.agentSeq++
	s.agentStamp[sessionID] = s.agentSeq
}

func (s *Store) Len() int {
	return len(s.orders)
}

func (s *Store) expired(order *models.Order, cutoff time.Time) bool {
	if order.KitchenStatus != models.KitchenCompleted || order.KitchenCompletedAt == nil {
		return false
	}
	return order.KitchenCompletedAt.Before(cutoff)
}

func sortByCreation(list []models.Order) {
	sort.Slice(list, func(i, j int) bool {
		if list[i].CreatedAt.Equal(list[j].CreatedAt) {
			return list[i].OrderNumber < list[j].OrderNumber
		}
		return list[i].CreatedAt.Before(list[j].CreatedAt)
	})
}
