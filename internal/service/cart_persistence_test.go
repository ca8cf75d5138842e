package service

import (
	"context"
	"fmt"
	"testing"

	"github.com/saleshop/internal/models"
	"github.com/saleshop/internal/repository"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type failingSlot struct{}

func (failingSlot) Get(context.Context, string) ([]byte, bool, error) {
	return nil, false, fmt.Errorf("storage unavailable")
}

func (failingSlot) Put(context.Context, string, []byte) error {
	return fmt.Errorf("storage unavailable")
}

func TestPersistenceRoundTrip(t *testing.T) {
	ctx := context.Background()
	persistence := NewCartPersistence(repository.NewMemoryCartSlot(), "cart:s1")
	items := []models.LineItem{
		{ProductID: "7", Name: "Seven", UnitPrice: models.NewMoney(decimal.RequireFromString("19.99")), ImageURL: "7.png", Quantity: 3},
		{ProductID: "2", Name: "Two", UnitPrice: models.NewMoneyFromInt(5), Quantity: 1},
	}
	require.NoError(t, persistence.Save(ctx, items))

	loaded := persistence.Load(ctx)
	require.Len(t, loaded, 2)
	for i := range items {
		assert.Equal(t, items[i].ProductID, loaded[i].ProductID)
		assert.Equal(t, items[i].Name, loaded[i].Name)
		assert.Equal(t, items[i].ImageURL, loaded[i].ImageURL)
		assert.Equal(t, items[i].Quantity, loaded[i].Quantity)
		assert.True(t, items[i].UnitPrice.Equal(loaded[i].UnitPrice.Decimal))
	}
}

func TestPersistenceCorruptDataYieldsEmptyLedger(t *testing.T) {
	cases := map[string]string{
		"invalid json":   `{not json`,
		"object":         `{"id":"1"}`,
		"zero quantity":  `[{"id":"1","name":"a","price":"1","quantity":0}]`,
		"duplicate ids":  `[{"id":"1","quantity":1},{"id":"1","quantity":2}]`,
		"missing id":     `[{"name":"a","price":"1","quantity":1}]`,
		"negative price": `[{"id":"1","price":"-1","quantity":1}]`,
		"non numeric":    `[{"id":"1","price":"abc","quantity":1}]`,
		"boolean id":     `[{"id":true,"quantity":1}]`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			slot := repository.NewMemoryCartSlot()
			slot.Raw("cart", []byte(raw))
			loaded := NewCartPersistence(slot, "cart").Load(context.Background())
			assert.NotNil(t, loaded)
			assert.Empty(t, loaded)
		})
	}
}

func TestPersistenceAcceptsLegacyNumericPayload(t *testing.T) {
	slot := repository.NewMemoryCartSlot()
	slot.Raw("cart", []byte(`[{"id":1,"name":"Runner","price":80,"image":"r.png","quantity":2}]`))
	loaded := NewCartPersistence(slot, "cart").Load(context.Background())
	require.Len(t, loaded, 1)
	assert.Equal(t, models.ProductID("1"), loaded[0].ProductID)
	assert.Equal(t, "80", loaded[0].UnitPrice.String())
}

func TestPersistenceMissingOrUnreadableSlot(t *testing.T) {
	ctx := context.Background()
	assert.Empty(t, NewCartPersistence(repository.NewMemoryCartSlot(), "cart").Load(ctx))
	assert.Empty(t, NewCartPersistence(failingSlot{}, "cart").Load(ctx))
	assert.ErrorIs(t, NewCartPersistence(failingSlot{}, "cart").Save(ctx, nil), ErrPersistence)
}

func TestPersistenceSavesEmptyArray(t *testing.T) {
	ctx := context.Background()
	slot := repository.NewMemoryCartSlot()
	require.NoError(t, NewCartPersistence(slot, "cart").Save(ctx, nil))
	payload, found, err := slot.Get(ctx, "cart")
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, "[]", string(payload))
}
