// Package orders resolves orders across linked order chains.
package orders

import (
	"errors"
	"fmt"

	"vrpadapter/internal/errs"
	"vrpadapter/internal/model"
)

var ErrChainCycle = errors.New("order chain cycle")

// Locator is a read-only index over a forest of order chains. Every order
// reachable through SubsequentOrder appears exactly once, in first-visit order.
type Locator struct {
	orders []*model.Order
	byID   map[string]*model.Order
	byLoc  map[string]*model.Order
}

// NewLocator walks each root's chain iteratively. A chain that revisits one of
// its own orders is rejected with ErrChainCycle. Orders repeated across roots
// (for example a dropoff listed both on its own and behind its pickup) are kept once.
func NewLocator(roots []*model.Order) (*Locator, error) {
	l := &Locator{
		byID:  make(map[string]*model.Order, len(roots)),
		byLoc: make(map[string]*model.Order, len(roots)),
	}
	for _, root := range roots {
		inChain := map[string]bool{}
		for o := root; o != nil; o = o.SubsequentOrder {
			if o.OrderID == "" {
				return nil, errs.NewValueIsRequiredError("orderId")
			}
			if inChain[o.OrderID] {
				return nil, fmt.Errorf("%w: order %q", ErrChainCycle, o.OrderID)
			}
			inChain[o.OrderID] = true
			if _, seen := l.byID[o.OrderID]; seen {
				continue
			}
			locID := o.Location.LocationID
			if other, dup := l.byLoc[locID]; dup {
				return nil, errs.NewValueIsInvalidError("locationId",
					fmt.Sprintf("%q is shared by orders %q and %q", locID, other.OrderID, o.OrderID))
			}
			l.byID[o.OrderID] = o
			l.byLoc[locID] = o
			l.orders = append(l.orders, o)
		}
	}
	return l, nil
}

// Find returns the first order, in chain order, that satisfies pred.
func (l *Locator) Find(pred func(*model.Order) bool) (*model.Order, bool) {
	for _, o := range l.orders {
		if pred(o) {
			return o, true
		}
	}
	return nil, false
}

// ByLocationID resolves the order that owns a location.
func (l *Locator) ByLocationID(id string) (*model.Order, error) {
	if o, ok := l.byLoc[id]; ok {
		return o, nil
	}
	return nil, errs.NewObjectNotFoundError("locationId", id)
}

func (l *Locator) ByOrderID(id string) (*model.Order, bool) {
	o, ok := l.byID[id]
	return o, ok
}

// All returns every distinct order.
func (l *Locator) All() []*model.Order {
	return append([]*model.Order(nil), l.orders...)
}

func (l *Locator) Len() int { return len(l.orders) }
