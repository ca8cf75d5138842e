package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/saleshop/internal/constants"
	"github.com/saleshop/internal/models"
	"github.com/saleshop/internal/repository"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticCatalogSource struct {
	payload *CatalogPayload
	err     error
}

func (s staticCatalogSource) FetchCatalog(ctx context.Context) (*CatalogPayload, error) {
	return s.payload, s.err
}

func newTestManager(t *testing.T, slot CartSlot, onEvent func(Event)) *SessionManager {
	t.Helper()
	return NewSessionManager(SessionDeps{
		Slot:        slot,
		CartKey:     "cart",
		Catalog:     staticCatalogSource{payload: &CatalogPayload{Products: sampleRawCatalog()}},
		Submitter:   &recordingSubmitter{},
		Policy:      testPolicy(t),
		Currency:    "USD",
		IdleTimeout: time.Minute,
		OnEvent:     onEvent,
	})
}

func TestSessionAddToCartResolvesCatalog(t *testing.T) {
	ctx := context.Background()
	var mu sync.Mutex
	var names []string
	manager := newTestManager(t, repository.NewMemoryCartSlot(), func(e Event) {
		mu.Lock()
		names = append(names, e.Name)
		mu.Unlock()
	})
	session := manager.Create(ctx)

	_, err := session.AddToCart(ctx, "1")
	require.ErrorIs(t, err, ErrProductNotFound)

	products, err := session.LoadCatalog(ctx)
	require.NoError(t, err)
	require.Len(t, products, 2)

	item, err := session.AddToCart(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, "Runner", item.Name)
	assert.Equal(t, "80", item.UnitPrice.String())

	_, err = session.AddToCart(ctx, "1")
	require.NoError(t, err)
	view := session.CartView()
	assert.Equal(t, 2, view.TotalQuantity)
	assert.Equal(t, "160", view.Summary.Subtotal.String())
	assert.True(t, view.Summary.FreeShipping)

	mu.Lock()
	defer mu.Unlock()
	assert.Contains(t, names, constants.EventCatalogLoaded)
	assert.Contains(t, names, constants.EventCartChanged)
}

func TestSessionCatalogFailurePublishesEvent(t *testing.T) {
	var failed bool
	manager := NewSessionManager(SessionDeps{
		Slot:    repository.NewMemoryCartSlot(),
		Catalog: staticCatalogSource{err: ErrNetwork},
		Policy:  testPolicy(t),
		OnEvent: func(e Event) {
			if e.Name == constants.EventCatalogFailed {
				failed = true
			}
		},
	})
	session := manager.Create(context.Background())
	_, err := session.LoadCatalog(context.Background())
	assert.ErrorIs(t, err, ErrNetwork)
	assert.True(t, failed)
}

func TestSessionResumeReloadsPersistedCart(t *testing.T) {
	ctx := context.Background()
	slot := repository.NewMemoryCartSlot()
	manager := newTestManager(t, slot, nil)

	session := manager.Create(ctx)
	_, err := session.LoadCatalog(ctx)
	require.NoError(t, err)
	_, err = session.AddToCart(ctx, "2")
	require.NoError(t, err)
	session.IncrementItem(ctx, "2")

	manager.Remove(session.ID)
	_, err = manager.Get(session.ID)
	require.ErrorIs(t, err, ErrSessionNotFound)

	restored, err := manager.Resume(ctx, session.ID)
	require.NoError(t, err)
	assert.NotSame(t, session, restored)
	items := restored.Cart.Items()
	require.Len(t, items, 1)
	assert.Equal(t, models.ProductID("2"), items[0].ProductID)
	assert.Equal(t, 2, items[0].Quantity)

	again, err := manager.Resume(ctx, session.ID)
	require.NoError(t, err)
	assert.Same(t, restored, again)

	_, err = manager.Resume(ctx, "not-a-uuid")
	assert.True(t, errors.Is(err, ErrSessionNotFound))
}

func TestSessionCartsAreIsolated(t *testing.T) {
	ctx := context.Background()
	manager := newTestManager(t, repository.NewMemoryCartSlot(), nil)
	first := manager.Create(ctx)
	second := manager.Create(ctx)
	_, err := first.LoadCatalog(ctx)
	require.NoError(t, err)
	_, err = first.AddToCart(ctx, "1")
	require.NoError(t, err)

	assert.Equal(t, 1, first.CartView().TotalQuantity)
	assert.Equal(t, 0, second.CartView().TotalQuantity)
	assert.Equal(t, 2, manager.Len())
}

func TestSessionCartMutationRefreshesOpenCheckout(t *testing.T) {
	ctx := context.Background()
	manager := newTestManager(t, repository.NewMemoryCartSlot(), nil)
	session := manager.Create(ctx)
	_, err := session.LoadCatalog(ctx)
	require.NoError(t, err)
	_, err = session.AddToCart(ctx, "1")
	require.NoError(t, err)
	_, err = session.Checkout.Open()
	require.NoError(t, err)

	_, err = session.AddToCart(ctx, "2")
	require.NoError(t, err)
	assert.Len(t, session.Checkout.View().Items, 2)

	session.ClearCart(ctx)
	assert.Empty(t, session.Checkout.View().Items)
}

func TestSweepIdleSessions(t *testing.T) {
	ctx := context.Background()
	manager := newTestManager(t, repository.NewMemoryCartSlot(), nil)
	current := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	manager.now = func() time.Time { return current }

	idle := manager.Create(ctx)
	active := manager.Create(ctx)

	current = current.Add(2 * time.Minute)
	_, err := manager.Get(active.ID)
	require.NoError(t, err)

	assert.Equal(t, 1, manager.SweepIdle())
	_, err = manager.Get(idle.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = manager.Get(active.ID)
	assert.NoError(t, err)
}

func TestSweepIdleKeepsSessionsWithSubscribers(t *testing.T) {
	ctx := context.Background()
	hooked := 0
	manager := newTestManager(t, repository.NewMemoryCartSlot(), func(Event) { hooked++ })
	current := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	manager.now = func() time.Time { return current }

	streaming := manager.Create(ctx)
	quiet := manager.Create(ctx)
	assert.Equal(t, 0, quiet.Notifier.Subscribers(), "internal hook is not a subscriber")
	unsubscribe := streaming.Notifier.Subscribe(func(Event) {})

	current = current.Add(2 * time.Minute)
	assert.Equal(t, 1, manager.SweepIdle())
	_, err := manager.Get(quiet.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	_, err = manager.Get(streaming.ID)
	require.NoError(t, err)

	streaming.Notifier.Publish("ping", nil)
	assert.Equal(t, 1, hooked)

	unsubscribe()
	current = current.Add(2 * time.Minute)
	assert.Equal(t, 1, manager.SweepIdle())
}

func TestSessionCartViewDisplaysSymbol(t *testing.T) {
	ctx := context.Background()
	manager := NewSessionManager(SessionDeps{
		Slot:    repository.NewMemoryCartSlot(),
		Catalog: staticCatalogSource{payload: &CatalogPayload{Products: sampleRawCatalog()}},
		Policy:  testPolicy(t),
		Symbol:  "Ksh",
	})
	session := manager.Create(ctx)
	_, err := session.LoadCatalog(ctx)
	require.NoError(t, err)
	_, err = session.AddToCart(ctx, "2")
	require.NoError(t, err)

	view := session.CartView()
	// 45 + 10 shipping + 3.6 tax
	assert.Equal(t, "Ksh58.60", view.TotalDisplay)
	assert.Equal(t, 0, session.Notifier.Subscribers())
}
