package orders

import (
	"fmt"
	"math"

	"github.com/example/drivethru/pkg/models"
)

// Validator inspects agent-supplied state before it replaces an order.
// The store trusts the agent's arithmetic unless a validator says otherwise.
type Validator func(state OrderState) error

// Chain runs validators in order and stops at the first failure.
func Chain(validators ...Validator) Validator {
	return func(state OrderState) error {
		for _, v := range validators {
			if v == nil {
				continue
			}
			if err := v(state); err != nil {
				return err
			}
		}
		return nil
	}
}

// RejectNegative rejects negative totals and prices and quantities below one.
func RejectNegative() Validator {
	return func(state OrderState) error {
		if state.Total < 0 {
			return fmt.Errorf("negative total %.2f", state.Total)
		}
		for i, item := range state.Items {
			if item.Quantity < 1 {
				return fmt.Errorf("item %d (%s): quantity %d", i, item.Name, item.Quantity)
			}
			if item.UnitPrice < 0 {
				return fmt.Errorf("item %d (%s): negative unit price %.2f", i, item.Name, item.UnitPrice)
			}
		}
		return nil
	}
}

func MaxItems(n int) Validator {
	return func(state OrderState) error {
		if n > 0 && len(state.Items) > n {
			return fmt.Errorf("%d line items exceeds limit of %d", len(state.Items), n)
		}
		return nil
	}
}

// TotalMatchesItems rejects a total that differs from the line-item sum by more than epsilon.
func TotalMatchesItems(epsilon float64) Validator {
	return func(state OrderState) error {
		sum := models.ItemsTotal(state.Items)
		if math.Abs(sum-state.Total) > epsilon {
			return fmt.Errorf("total %.2f does not match line items %.2f", state.Total, sum)
		}
		return nil
	}
}

// Forward-adjacent kitchen transitions used in strict mode.
var allowed = map[models.KitchenStatus]map[models.KitchenStatus]bool{
	models.KitchenWaiting:   {models.KitchenPreparing: true},
	models.KitchenPreparing: {models.KitchenReady: true},
	models.KitchenReady:     {models.KitchenCompleted: true},
	models.KitchenCompleted: {},
}

// CanTransition reports whether from->to is allowed in strict mode.
// Setting the current status again is always allowed.
func CanTransition(from, to models.KitchenStatus) bool {
	if from == to {
		return true
	}
	nexts := allowed[from]
	return nexts != nil && nexts[to]
}
