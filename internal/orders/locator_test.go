package orders

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vrpadapter/internal/errs"
	"vrpadapter/internal/model"
)

func order(id, loc string) *model.Order {
	return &model.Order{OrderID: id, Location: model.Location{LocationID: loc}}
}

func TestLocatorWalksChains(t *testing.T) {
	p1, d1 := order("o1", "P-1"), order("o1-d", "D-1")
	p1.SubsequentOrder = d1
	p2 := order("o2", "P-2")

	l, err := NewLocator([]*model.Order{p1, p2})
	require.NoError(t, err)
	assert.Equal(t, 3, l.Len())

	got, err := l.ByLocationID("D-1")
	require.NoError(t, err)
	assert.Same(t, d1, got)

	found, ok := l.Find(func(o *model.Order) bool { return o.Location.LocationID == "P-2" })
	require.True(t, ok)
	assert.Same(t, p2, found)

	_, ok = l.Find(func(o *model.Order) bool { return o.OrderID == "nope" })
	assert.False(t, ok)
}

func TestLocatorKeepsSharedOrdersOnce(t *testing.T) {
	p, d := order("p", "P-1"), order("d", "D-1")
	p.SubsequentOrder = d
	dAgain := order("d", "D-1")

	l, err := NewLocator([]*model.Order{p, dAgain})
	require.NoError(t, err)
	assert.Equal(t, 2, l.Len())
	got, ok := l.ByOrderID("d")
	require.True(t, ok)
	assert.Same(t, d, got)
}

func TestLocatorRejectsCycles(t *testing.T) {
	a, b, c := order("a", "A"), order("b", "B"), order("c", "C")
	a.SubsequentOrder = b
	b.SubsequentOrder = c
	c.SubsequentOrder = a

	_, err := NewLocator([]*model.Order{a})
	assert.ErrorIs(t, err, ErrChainCycle)

	self := order("s", "S")
	self.SubsequentOrder = self
	_, err = NewLocator([]*model.Order{self})
	assert.ErrorIs(t, err, ErrChainCycle)
}

func TestLocatorLookupFailures(t *testing.T) {
	l, err := NewLocator([]*model.Order{order("a", "A")})
	require.NoError(t, err)

	_, err = l.ByLocationID("missing")
	assert.ErrorIs(t, err, errs.ErrObjectNotFound)

	_, err = NewLocator([]*model.Order{order("a", "A"), order("b", "A")})
	assert.ErrorIs(t, err, errs.ErrValueIsInvalid)

	_, err = NewLocator([]*model.Order{order("", "A")})
	assert.ErrorIs(t, err, errs.ErrValueIsRequired)
}
