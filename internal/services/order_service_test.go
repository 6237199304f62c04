package services

import (
	"context"
	"errors"
	"math"
	"order_engine/internal/models"
	"order_engine/internal/realtime"
	"order_engine/internal/repository"
	"order_engine/internal/repository/repotest"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type notifierMock struct {
	mock.Mock
}

func (m *notifierMock) Broadcast(tenantID string, order *models.Order, kind realtime.MessageType) {
	m.Called(tenantID, order, kind)
}

type fixture struct {
	store    *repotest.Store
	notifier *notifierMock
	svc      *orderService
	manager  Manager
	kitchen  Kitchen
	rider    Rider
	rider2   Rider
	itemA    models.MenuItem
	itemB    models.MenuItem
	itemC    models.MenuItem
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store := repotest.New()
	store.SeedTenant("t1")
	m := store.SeedUser("t1", "manager1", models.RoleManager)
	k := store.SeedUser("t1", "kitchen1", models.RoleKitchen)
	r1 := store.SeedUser("t1", "rider1", models.RoleRider)
	r2 := store.SeedUser("t1", "rider2", models.RoleRider)

	n := &notifierMock{}
	n.On("Broadcast", mock.Anything, mock.Anything, mock.Anything).Return()

	return &fixture{
		store:    store,
		notifier: n,
		svc:      NewOrderService(store, n, zaptest.NewLogger(t)).(*orderService),
		manager:  Manager{UserID: m.ID, Username: m.Username},
		kitchen:  Kitchen{UserID: k.ID, Username: k.Username},
		rider:    Rider{UserID: r1.ID, Username: r1.Username},
		rider2:   Rider{UserID: r2.ID, Username: r2.Username},
		itemA:    store.SeedMenuItem("t1", "A", "9.50", 5),
		itemB:    store.SeedMenuItem("t1", "B", "2.00", 10),
		itemC:    store.SeedMenuItem("t1", "C", "4.25", 10),
	}
}

func (f *fixture) create(t *testing.T, input CreateOrderInput) *models.Order {
	t.Helper()
	order, err := f.svc.CreateOrder(context.Background(), "t1", f.manager, input)
	require.NoError(t, err)
	return order
}

// completedDelivery creates a delivery order and walks it to completed.
func (f *fixture) completedDelivery(t *testing.T) *models.Order {
	t.Helper()
	order := f.create(t, CreateOrderInput{
		Items:            []ItemInput{{ItemID: f.itemB.ID, Quantity: 1}},
		CustomerName:     "Ana",
		CustomerPhone:    "555-0100",
		IsDelivery:       true,
		CustomerLocation: "12 Main St",
	})
	order, err := f.svc.UpdateOrder(context.Background(), "t1", order.ID, f.kitchen, UpdateOrderInput{
		Items:  []ItemInput{{ItemID: f.itemB.ID, Quantity: 1}},
		Status: models.OrderCompleted,
	})
	require.NoError(t, err)
	return order
}

func requireReason(t *testing.T, err error, kind ErrorKind, reason string) {
	t.Helper()
	require.Error(t, err)
	svcErr := AsError(err)
	assert.Equal(t, kind, svcErr.Kind, svcErr.Error())
	assert.Equal(t, reason, svcErr.Reason, svcErr.Error())
}

func TestCreateOrderReservesStock(t *testing.T) {
	f := newFixture(t)

	order := f.create(t, CreateOrderInput{
		Items:         []ItemInput{{ItemID: f.itemA.ID, Quantity: 5}},
		CustomerName:  "Ana",
		CustomerPhone: "555-0100",
	})

	assert.Equal(t, 0, f.store.Stock(f.itemA.ID))
	assert.Equal(t, models.OrderPending, order.Status)
	assert.True(t, decimal.RequireFromString("47.50").Equal(order.TotalPrice))

	stored := f.store.Order(order.ID)
	require.NotNil(t, stored)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, "A", stored.Items[0].Name)
	assert.True(t, stored.TotalPrice.Equal(stored.ItemsTotal()))

	history := f.store.History()
	require.Len(t, history, 1)
	assert.Equal(t, models.AuditCreated, history[0].Action)
	assert.Equal(t, "manager1", history[0].ChangedBy)

	f.notifier.AssertCalled(t, "Broadcast", "t1", mock.MatchedBy(func(o *models.Order) bool {
		return o.ID == order.ID
	}), realtime.NewOrder)
}

func TestCreateOrderInsufficientStock(t *testing.T) {
	f := newFixture(t)
	f.create(t, CreateOrderInput{Items: []ItemInput{{ItemID: f.itemA.ID, Quantity: 5}}})

	_, err := f.svc.CreateOrder(context.Background(), "t1", f.manager, CreateOrderInput{
		Items: []ItemInput{{ItemID: f.itemA.ID, Quantity: 1}},
	})

	requireReason(t, err, KindConflict, ReasonInsufficientStock)
	assert.Equal(t, "Insufficient stock for A. Available: 0", AsError(err).Message)
	assert.Equal(t, 0, f.store.Stock(f.itemA.ID))
	assert.Equal(t, 1, f.store.OrderCount())
	assert.Len(t, f.store.History(), 1)
	f.notifier.AssertNumberOfCalls(t, "Broadcast", 1)
}

func TestCreateOrderOneOverStockLeavesStockUnchanged(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.CreateOrder(context.Background(), "t1", f.manager, CreateOrderInput{
		Items: []ItemInput{{ItemID: f.itemB.ID, Quantity: 2}, {ItemID: f.itemA.ID, Quantity: 6}},
	})

	requireReason(t, err, KindConflict, ReasonInsufficientStock)
	assert.Equal(t, 5, f.store.Stock(f.itemA.ID))
	assert.Equal(t, 10, f.store.Stock(f.itemB.ID))
	assert.Equal(t, 0, f.store.OrderCount())
	assert.Equal(t, 0, f.store.LineCount())
}

func TestCreateOrderMergesRepeatedItems(t *testing.T) {
	f := newFixture(t)

	order := f.create(t, CreateOrderInput{
		Items: []ItemInput{{ItemID: f.itemB.ID, Quantity: 2}, {ItemID: f.itemB.ID, Quantity: 3}},
	})

	require.Len(t, order.Items, 1)
	assert.Equal(t, 5, order.Items[0].Quantity)
	assert.Equal(t, 5, f.store.Stock(f.itemB.ID))
}

func TestMergedQuantitiesCannotOverflow(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name  string
		items []ItemInput
	}{
		{"max int lines", []ItemInput{{ItemID: f.itemA.ID, Quantity: math.MaxInt64}, {ItemID: f.itemA.ID, Quantity: 2}}},
		{"line over cap", []ItemInput{{ItemID: f.itemA.ID, Quantity: MaxLineQuantity + 1}}},
		{"merged over cap", []ItemInput{{ItemID: f.itemA.ID, Quantity: MaxLineQuantity}, {ItemID: f.itemA.ID, Quantity: 1}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.CreateOrder(context.Background(), "t1", f.manager, CreateOrderInput{Items: tt.items})
			requireReason(t, err, KindValidation, ReasonInvalidQuantity)
			assert.Equal(t, 5, f.store.Stock(f.itemA.ID))
			assert.Equal(t, 0, f.store.OrderCount())
		})
	}

	order := f.create(t, CreateOrderInput{Items: []ItemInput{{ItemID: f.itemA.ID, Quantity: 1}}})
	_, err := f.svc.UpdateOrder(context.Background(), "t1", order.ID, f.manager, UpdateOrderInput{
		Items: []ItemInput{{ItemID: f.itemA.ID, Quantity: math.MaxInt64}, {ItemID: f.itemA.ID, Quantity: math.MaxInt64}},
	})
	requireReason(t, err, KindValidation, ReasonInvalidQuantity)
	assert.Equal(t, 4, f.store.Stock(f.itemA.ID))
	assert.Equal(t, 1, f.store.Order(order.ID).Items[0].Quantity)
}

func TestCreateOrderValidation(t *testing.T) {
	riderID := uint(3)
	tests := []struct {
		name   string
		tenant string
		actor  func(f *fixture) Actor
		input  func(f *fixture) CreateOrderInput
		kind   ErrorKind
		reason string
	}{
		{
			name:   "empty items",
			input:  func(f *fixture) CreateOrderInput { return CreateOrderInput{} },
			kind:   KindValidation,
			reason: ReasonEmptyItems,
		},
		{
			name: "zero quantity",
			input: func(f *fixture) CreateOrderInput {
				return CreateOrderInput{Items: []ItemInput{{ItemID: f.itemA.ID, Quantity: 0}}}
			},
			kind:   KindValidation,
			reason: ReasonInvalidQuantity,
		},
		{
			name:   "missing item id",
			input:  func(f *fixture) CreateOrderInput { return CreateOrderInput{Items: []ItemInput{{Quantity: 1}}} },
			kind:   KindValidation,
			reason: ReasonInvalidItem,
		},
		{
			name:   "unknown item",
			input:  func(f *fixture) CreateOrderInput { return CreateOrderInput{Items: []ItemInput{{ItemID: 999, Quantity: 1}}} },
			kind:   KindNotFound,
			reason: ReasonMenuItemNotFound,
		},
		{
			name: "delivery without location",
			input: func(f *fixture) CreateOrderInput {
				return CreateOrderInput{Items: []ItemInput{{ItemID: f.itemA.ID, Quantity: 1}}, IsDelivery: true}
			},
			kind:   KindValidation,
			reason: ReasonLocationRequired,
		},
		{
			name: "created canceled",
			input: func(f *fixture) CreateOrderInput {
				return CreateOrderInput{Items: []ItemInput{{ItemID: f.itemA.ID, Quantity: 1}}, Status: models.OrderCanceled}
			},
			kind:   KindValidation,
			reason: ReasonInvalidStatus,
		},
		{
			name: "enroute without rider",
			input: func(f *fixture) CreateOrderInput {
				return CreateOrderInput{
					Items:            []ItemInput{{ItemID: f.itemA.ID, Quantity: 1}},
					Status:           models.OrderEnroute,
					IsDelivery:       true,
					CustomerLocation: "x",
				}
			},
			kind:   KindValidation,
			reason: ReasonRiderRequired,
		},
		{
			name: "rider on pickup order",
			input: func(f *fixture) CreateOrderInput {
				return CreateOrderInput{Items: []ItemInput{{ItemID: f.itemA.ID, Quantity: 1}}, RiderID: &riderID}
			},
			kind:   KindValidation,
			reason: ReasonInvalidInput,
		},
		{
			name:   "unknown tenant",
			tenant: "nope",
			input: func(f *fixture) CreateOrderInput {
				return CreateOrderInput{Items: []ItemInput{{ItemID: f.itemA.ID, Quantity: 1}}}
			},
			kind:   KindNotFound,
			reason: ReasonTenantNotFound,
		},
		{
			name:  "rider cannot create",
			actor: func(f *fixture) Actor { return f.rider },
			input: func(f *fixture) CreateOrderInput {
				return CreateOrderInput{Items: []ItemInput{{ItemID: f.itemA.ID, Quantity: 1}}}
			},
			kind:   KindForbidden,
			reason: ReasonActionNotPermitted,
		},
		{
			name:  "customer without phone",
			actor: func(f *fixture) Actor { return Customer{} },
			input: func(f *fixture) CreateOrderInput {
				return CreateOrderInput{Items: []ItemInput{{ItemID: f.itemA.ID, Quantity: 1}}, CustomerName: "Ana"}
			},
			kind:   KindValidation,
			reason: ReasonCustomerRequired,
		},
		{
			name:  "customer choosing status",
			actor: func(f *fixture) Actor { return Customer{} },
			input: func(f *fixture) CreateOrderInput {
				return CreateOrderInput{
					Items:         []ItemInput{{ItemID: f.itemA.ID, Quantity: 1}},
					CustomerName:  "Ana",
					CustomerPhone: "555",
					Status:        models.OrderCompleted,
				}
			},
			kind:   KindForbidden,
			reason: ReasonActionNotPermitted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			tenant := "t1"
			if tt.tenant != "" {
				tenant = tt.tenant
			}
			var actor Actor = f.manager
			if tt.actor != nil {
				actor = tt.actor(f)
			}

			_, err := f.svc.CreateOrder(context.Background(), tenant, actor, tt.input(f))

			requireReason(t, err, tt.kind, tt.reason)
			assert.Equal(t, 5, f.store.Stock(f.itemA.ID))
			assert.Equal(t, 0, f.store.OrderCount())
			assert.Empty(t, f.store.History())
			f.notifier.AssertNotCalled(t, "Broadcast", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestCustomerCreatesPendingOrder(t *testing.T) {
	f := newFixture(t)

	order, err := f.svc.CreateOrder(context.Background(), "t1", Customer{}, CreateOrderInput{
		Items:         []ItemInput{{ItemID: f.itemC.ID, Quantity: 2}},
		CustomerName:  " Ana ",
		CustomerPhone: "555-0100",
	})

	require.NoError(t, err)
	assert.Equal(t, models.OrderPending, order.Status)
	assert.Equal(t, "Ana", order.CustomerName)
	assert.Equal(t, "customer", f.store.History()[0].ChangedBy)
}

// The in-memory store serializes transactions; the conditional decrement that settles a real race
// is covered against sqlite in the repository package.
func TestParallelCreatesForLastUnit(t *testing.T) {
	f := newFixture(t)
	last := f.store.SeedMenuItem("t1", "Last", "1.00", 1)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.svc.CreateOrder(context.Background(), "t1", f.kitchen, CreateOrderInput{
				Items: []ItemInput{{ItemID: last.ID, Quantity: 1}},
			})
		}(i)
	}
	wg.Wait()

	succeeded := 0
	for _, err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.Equal(t, ReasonInsufficientStock, AsError(err).Reason, err.Error())
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 0, f.store.Stock(last.ID))
	assert.Equal(t, 1, f.store.OrderCount())
}

func TestCancelOrderRestoresStock(t *testing.T) {
	f := newFixture(t)
	order := f.create(t, CreateOrderInput{
		Items: []ItemInput{{ItemID: f.itemA.ID, Quantity: 5}, {ItemID: f.itemB.ID, Quantity: 4}},
	})
	require.Equal(t, 0, f.store.Stock(f.itemA.ID))

	canceled, err := f.svc.CancelOrder(context.Background(), "t1", order.ID, f.manager)

	require.NoError(t, err)
	assert.Equal(t, models.OrderCanceled, canceled.Status)
	assert.Equal(t, 5, f.store.Stock(f.itemA.ID))
	assert.Equal(t, 10, f.store.Stock(f.itemB.ID))
	assert.Nil(t, f.store.Order(order.ID))
	assert.Equal(t, 0, f.store.LineCount())

	history := f.store.History()
	require.Len(t, history, 2)
	assert.Equal(t, models.AuditCanceled, history[1].Action)
	details, ok := history[1].Details.(models.CanceledDetails)
	require.True(t, ok)
	assert.Equal(t, models.OrderPending, details.PreviousStatus)
	require.Len(t, details.Items, 2)
	assert.Equal(t, f.itemA.ID, details.Items[0].ItemID)
	assert.Equal(t, 5, details.Items[0].Quantity)
	assert.Equal(t, []models.StockDelta{{ItemID: f.itemA.ID, Delta: -5}, {ItemID: f.itemB.ID, Delta: -4}}, details.ReleasedStock)

	f.notifier.AssertCalled(t, "Broadcast", "t1", mock.MatchedBy(func(o *models.Order) bool {
		return o.ID == order.ID && o.Status == models.OrderCanceled
	}), realtime.OrderUpdated)
}

func TestCancelOrderRequiresManager(t *testing.T) {
	f := newFixture(t)
	order := f.create(t, CreateOrderInput{Items: []ItemInput{{ItemID: f.itemA.ID, Quantity: 1}}})

	_, err := f.svc.CancelOrder(context.Background(), "t1", order.ID, f.kitchen)

	requireReason(t, err, KindForbidden, ReasonActionNotPermitted)
	assert.NotNil(t, f.store.Order(order.ID))
	assert.Equal(t, 4, f.store.Stock(f.itemA.ID))
}

func TestUpdateToCanceledCancels(t *testing.T) {
	f := newFixture(t)
	order := f.create(t, CreateOrderInput{Items: []ItemInput{{ItemID: f.itemA.ID, Quantity: 2}}})

	result, err := f.svc.UpdateOrder(context.Background(), "t1", order.ID, f.manager, UpdateOrderInput{
		Items:  []ItemInput{{ItemID: f.itemA.ID, Quantity: 2}},
		Status: models.OrderCanceled,
	})

	require.NoError(t, err)
	assert.Equal(t, models.OrderCanceled, result.Status)
	assert.Equal(t, 5, f.store.Stock(f.itemA.ID))
	assert.Nil(t, f.store.Order(order.ID))
}

func TestUpdateOrderUnchangedItemsKeepsStock(t *testing.T) {
	f := newFixture(t)
	order := f.create(t, CreateOrderInput{
		Items: []ItemInput{{ItemID: f.itemA.ID, Quantity: 2}, {ItemID: f.itemB.ID, Quantity: 3}},
	})

	_, err := f.svc.UpdateOrder(context.Background(), "t1", order.ID, f.kitchen, UpdateOrderInput{
		Items: []ItemInput{{ItemID: f.itemB.ID, Quantity: 3}, {ItemID: f.itemA.ID, Quantity: 2}},
	})

	require.NoError(t, err)
	assert.Equal(t, 3, f.store.Stock(f.itemA.ID))
	assert.Equal(t, 7, f.store.Stock(f.itemB.ID))
	history := f.store.History()
	require.Len(t, history, 2)
	details := history[1].Details.(models.UpdatedDetails)
	assert.Empty(t, details.StockDeltas)
}

func TestUpdateOrderAppliesItemDiff(t *testing.T) {
	f := newFixture(t)
	order := f.create(t, CreateOrderInput{
		Items: []ItemInput{{ItemID: f.itemA.ID, Quantity: 2}, {ItemID: f.itemB.ID, Quantity: 1}},
	})

	updated, err := f.svc.UpdateOrder(context.Background(), "t1", order.ID, f.kitchen, UpdateOrderInput{
		Items: []ItemInput{{ItemID: f.itemA.ID, Quantity: 1}, {ItemID: f.itemC.ID, Quantity: 3}},
	})

	require.NoError(t, err)
	assert.Equal(t, 4, f.store.Stock(f.itemA.ID))
	assert.Equal(t, 10, f.store.Stock(f.itemB.ID))
	assert.Equal(t, 7, f.store.Stock(f.itemC.ID))
	assert.True(t, decimal.RequireFromString("22.25").Equal(updated.TotalPrice))

	stored := f.store.Order(order.ID)
	assert.Equal(t, map[uint]int{f.itemA.ID: 1, f.itemC.ID: 3}, stored.ItemQuantities())
	assert.True(t, stored.TotalPrice.Equal(stored.ItemsTotal()))

	details := f.store.History()[1].Details.(models.UpdatedDetails)
	assert.Equal(t, []models.StockDelta{
		{ItemID: f.itemA.ID, Delta: -1},
		{ItemID: f.itemB.ID, Delta: -1},
		{ItemID: f.itemC.ID, Delta: 3},
	}, details.StockDeltas)
}

func TestUpdateOrderRepricesFromCatalog(t *testing.T) {
	f := newFixture(t)
	order := f.create(t, CreateOrderInput{Items: []ItemInput{{ItemID: f.itemB.ID, Quantity: 2}}})

	repriced := f.itemB
	repriced.Name = "B2"
	repriced.Price = decimal.RequireFromString("3.00")
	repriced.StockQuantity = f.store.Stock(f.itemB.ID)
	f.store.SetMenuItem(repriced)

	updated, err := f.svc.UpdateOrder(context.Background(), "t1", order.ID, f.kitchen, UpdateOrderInput{
		Items: []ItemInput{{ItemID: f.itemB.ID, Quantity: 2}},
	})

	require.NoError(t, err)
	assert.Equal(t, "B2", updated.Items[0].Name)
	assert.True(t, decimal.RequireFromString("6.00").Equal(updated.TotalPrice))
}

func TestUpdateOrderInsufficientStockRollsBack(t *testing.T) {
	f := newFixture(t)
	order := f.create(t, CreateOrderInput{
		Items: []ItemInput{{ItemID: f.itemA.ID, Quantity: 1}, {ItemID: f.itemB.ID, Quantity: 5}},
	})

	_, err := f.svc.UpdateOrder(context.Background(), "t1", order.ID, f.kitchen, UpdateOrderInput{
		Items: []ItemInput{{ItemID: f.itemA.ID, Quantity: 6}},
	})

	requireReason(t, err, KindConflict, ReasonInsufficientStock)
	assert.Equal(t, 4, f.store.Stock(f.itemA.ID))
	assert.Equal(t, 5, f.store.Stock(f.itemB.ID))
	assert.Equal(t, map[uint]int{f.itemA.ID: 1, f.itemB.ID: 5}, f.store.Order(order.ID).ItemQuantities())
	assert.Len(t, f.store.History(), 1)
}

func TestUpdateOrderPersistenceFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	order := f.create(t, CreateOrderInput{Items: []ItemInput{{ItemID: f.itemA.ID, Quantity: 1}}})
	f.store.FailOn("history.append", errors.New("disk full"))

	_, err := f.svc.UpdateOrder(context.Background(), "t1", order.ID, f.kitchen, UpdateOrderInput{
		Items:  []ItemInput{{ItemID: f.itemA.ID, Quantity: 3}, {ItemID: f.itemC.ID, Quantity: 1}},
		Status: models.OrderPreparing,
	})

	requireReason(t, err, KindInternal, ReasonPersistenceFailure)
	assert.Equal(t, 4, f.store.Stock(f.itemA.ID))
	assert.Equal(t, 10, f.store.Stock(f.itemC.ID))
	stored := f.store.Order(order.ID)
	assert.Equal(t, models.OrderPending, stored.Status)
	assert.Nil(t, stored.PreparationStartTime)
	assert.Equal(t, map[uint]int{f.itemA.ID: 1}, stored.ItemQuantities())
}

func TestCreateOrderPersistenceFailureRollsBack(t *testing.T) {
	f := newFixture(t)
	f.store.FailOn("order_items.create", errors.New("connection reset"))

	_, err := f.svc.CreateOrder(context.Background(), "t1", f.manager, CreateOrderInput{
		Items: []ItemInput{{ItemID: f.itemA.ID, Quantity: 2}},
	})

	requireReason(t, err, KindInternal, ReasonPersistenceFailure)
	assert.Equal(t, 5, f.store.Stock(f.itemA.ID))
	assert.Equal(t, 0, f.store.OrderCount())
	assert.Empty(t, f.store.History())
	f.notifier.AssertNotCalled(t, "Broadcast", mock.Anything, mock.Anything, mock.Anything)
}

func TestUpdateOrderStampsTimestampsOnce(t *testing.T) {
	f := newFixture(t)
	clock := time.Date(2026, 5, 1, 10, 0, 0, 0, time.UTC)
	f.svc.now = func() time.Time {
		clock = clock.Add(time.Minute)
		return clock
	}
	order := f.create(t, CreateOrderInput{Items: []ItemInput{{ItemID: f.itemA.ID, Quantity: 1}}})
	items := []ItemInput{{ItemID: f.itemA.ID, Quantity: 1}}

	preparing, err := f.svc.UpdateOrder(context.Background(), "t1", order.ID, f.kitchen, UpdateOrderInput{Items: items, Status: models.OrderPreparing})
	require.NoError(t, err)
	require.NotNil(t, preparing.PreparationStartTime)
	started := *preparing.PreparationStartTime

	again, err := f.svc.UpdateOrder(context.Background(), "t1", order.ID, f.kitchen, UpdateOrderInput{Items: items, Status: models.OrderPreparing})
	require.NoError(t, err)
	assert.Equal(t, started, *again.PreparationStartTime)

	completed, err := f.svc.UpdateOrder(context.Background(), "t1", order.ID, f.kitchen, UpdateOrderInput{Items: items, Status: models.OrderCompleted})
	require.NoError(t, err)
	assert.Equal(t, started, *completed.PreparationStartTime)
	require.NotNil(t, completed.PreparationEndTime)
	assert.True(t, completed.PreparationEndTime.After(started))
	assert.Nil(t, completed.DeliveryStartTime)
}

func TestUpdateOrderRejectsBackwardTransition(t *testing.T) {
	f := newFixture(t)
	order := f.completedDelivery(t)

	_, err := f.svc.UpdateOrder(context.Background(), "t1", order.ID, f.kitchen, UpdateOrderInput{
		Items:  []ItemInput{{ItemID: f.itemB.ID, Quantity: 1}},
		Status: models.OrderPreparing,
	})

	requireReason(t, err, KindValidation, ReasonInvalidTransition)
}

func TestUpdateOrderNotFound(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.UpdateOrder(context.Background(), "t1", 404, f.kitchen, UpdateOrderInput{
		Items: []ItemInput{{ItemID: f.itemB.ID, Quantity: 1}},
	})

	requireReason(t, err, KindNotFound, ReasonOrderNotFound)
}

func TestRiderDeliveryLifecycle(t *testing.T) {
	f := newFixture(t)
	first := f.completedDelivery(t)
	second := f.completedDelivery(t)
	ctx := context.Background()

	enroute, err := f.svc.UpdateOrder(ctx, "t1", first.ID, f.rider, UpdateOrderInput{Status: models.OrderEnroute})
	require.NoError(t, err)
	require.NotNil(t, enroute.RiderID)
	assert.Equal(t, f.rider.UserID, *enroute.RiderID)
	assert.NotNil(t, enroute.DeliveryStartTime)

	_, err = f.svc.UpdateOrder(ctx, "t1", second.ID, f.rider, UpdateOrderInput{Status: models.OrderEnroute})
	requireReason(t, err, KindConflict, ReasonRiderBusy)
	assert.Nil(t, f.store.Order(second.ID).RiderID)

	delivered, err := f.svc.UpdateOrder(ctx, "t1", first.ID, f.rider, UpdateOrderInput{Status: models.OrderDelivered})
	require.NoError(t, err)
	assert.NotNil(t, delivered.DeliveryEndTime)

	_, err = f.svc.UpdateOrder(ctx, "t1", second.ID, f.rider, UpdateOrderInput{Status: models.OrderEnroute})
	require.NoError(t, err)

	for _, actor := range []Actor{f.manager, f.kitchen, f.rider} {
		_, err = f.svc.UpdateOrder(ctx, "t1", first.ID, actor, UpdateOrderInput{
			Items:  []ItemInput{{ItemID: f.itemB.ID, Quantity: 1}},
			Status: models.OrderDelivered,
		})
		requireReason(t, err, KindConflict, ReasonOrderDelivered)
	}
	_, err = f.svc.CancelOrder(ctx, "t1", first.ID, f.manager)
	requireReason(t, err, KindConflict, ReasonOrderDelivered)
}

func TestRiderTransitionRules(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("order bound to another rider", func(t *testing.T) {
		order := f.completedDelivery(t)
		_, err := f.svc.UpdateOrder(ctx, "t1", order.ID, f.kitchen, UpdateOrderInput{
			Items:   []ItemInput{{ItemID: f.itemB.ID, Quantity: 1}},
			RiderID: &f.rider2.UserID,
		})
		require.NoError(t, err)

		_, err = f.svc.UpdateOrder(ctx, "t1", order.ID, f.rider, UpdateOrderInput{Status: models.OrderEnroute})
		requireReason(t, err, KindForbidden, ReasonRiderNotAuthorized)
	})

	t.Run("order not completed", func(t *testing.T) {
		order := f.create(t, CreateOrderInput{
			Items:            []ItemInput{{ItemID: f.itemB.ID, Quantity: 1}},
			IsDelivery:       true,
			CustomerLocation: "12 Main St",
		})
		_, err := f.svc.UpdateOrder(ctx, "t1", order.ID, f.rider, UpdateOrderInput{Status: models.OrderEnroute})
		requireReason(t, err, KindForbidden, ReasonRiderNotAuthorized)
	})

	t.Run("delivering an order never claimed", func(t *testing.T) {
		order := f.completedDelivery(t)
		_, err := f.svc.UpdateOrder(ctx, "t1", order.ID, f.rider, UpdateOrderInput{Status: models.OrderDelivered})
		requireReason(t, err, KindForbidden, ReasonRiderNotAuthorized)
	})

	t.Run("assigning someone else", func(t *testing.T) {
		order := f.completedDelivery(t)
		_, err := f.svc.UpdateOrder(ctx, "t1", order.ID, f.rider, UpdateOrderInput{
			Status:  models.OrderEnroute,
			RiderID: &f.rider2.UserID,
		})
		requireReason(t, err, KindForbidden, ReasonRiderNotAuthorized)
	})

	t.Run("changing items", func(t *testing.T) {
		order := f.completedDelivery(t)
		_, err := f.svc.UpdateOrder(ctx, "t1", order.ID, f.rider, UpdateOrderInput{
			Items:  []ItemInput{{ItemID: f.itemB.ID, Quantity: 4}},
			Status: models.OrderEnroute,
		})
		requireReason(t, err, KindForbidden, ReasonActionNotPermitted)
	})
}

func TestStaffRiderAssignment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	items := []ItemInput{{ItemID: f.itemB.ID, Quantity: 1}}

	t.Run("unknown rider", func(t *testing.T) {
		order := f.completedDelivery(t)
		missing := uint(999)
		_, err := f.svc.UpdateOrder(ctx, "t1", order.ID, f.kitchen, UpdateOrderInput{Items: items, RiderID: &missing})
		requireReason(t, err, KindNotFound, ReasonRiderNotFound)
	})

	t.Run("user who is not a rider", func(t *testing.T) {
		order := f.completedDelivery(t)
		_, err := f.svc.UpdateOrder(ctx, "t1", order.ID, f.kitchen, UpdateOrderInput{Items: items, RiderID: &f.kitchen.UserID})
		requireReason(t, err, KindNotFound, ReasonRiderNotFound)
	})

	t.Run("enroute requires a rider", func(t *testing.T) {
		order := f.completedDelivery(t)
		_, err := f.svc.UpdateOrder(ctx, "t1", order.ID, f.kitchen, UpdateOrderInput{Items: items, Status: models.OrderEnroute})
		requireReason(t, err, KindValidation, ReasonRiderRequired)
	})

	t.Run("pre-bound rider who went out meanwhile", func(t *testing.T) {
		first := f.completedDelivery(t)
		second := f.completedDelivery(t)
		_, err := f.svc.UpdateOrder(ctx, "t1", second.ID, f.manager, UpdateOrderInput{Items: items, RiderID: &f.rider2.UserID})
		require.NoError(t, err)
		_, err = f.svc.UpdateOrder(ctx, "t1", first.ID, f.rider2, UpdateOrderInput{Status: models.OrderEnroute})
		require.NoError(t, err)

		_, err = f.svc.UpdateOrder(ctx, "t1", second.ID, f.manager, UpdateOrderInput{Items: items, Status: models.OrderEnroute})
		requireReason(t, err, KindConflict, ReasonRiderBusy)
	})

	t.Run("create already enroute", func(t *testing.T) {
		order, err := f.svc.CreateOrder(ctx, "t1", f.manager, CreateOrderInput{
			Items:            items,
			Status:           models.OrderEnroute,
			IsDelivery:       true,
			CustomerLocation: "Dock 4",
			RiderID:          &f.rider.UserID,
		})
		require.NoError(t, err)
		assert.Equal(t, f.rider.UserID, *order.RiderID)
		assert.NotNil(t, order.DeliveryStartTime)

		_, err = f.svc.CreateOrder(ctx, "t1", f.manager, CreateOrderInput{
			Items:            items,
			Status:           models.OrderEnroute,
			IsDelivery:       true,
			CustomerLocation: "Dock 5",
			RiderID:          &f.rider.UserID,
		})
		requireReason(t, err, KindConflict, ReasonRiderBusy)
	})
}

func TestGetOrderStatusMatchesPhone(t *testing.T) {
	f := newFixture(t)
	order := f.create(t, CreateOrderInput{
		Items:         []ItemInput{{ItemID: f.itemA.ID, Quantity: 1}},
		CustomerName:  "Ana",
		CustomerPhone: "555-0100",
	})
	ctx := context.Background()

	found, err := f.svc.GetOrderStatus(ctx, "t1", order.ID, "555-0100")
	require.NoError(t, err)
	assert.Equal(t, order.ID, found.ID)

	_, err = f.svc.GetOrderStatus(ctx, "t1", order.ID, "555-9999")
	requireReason(t, err, KindNotFound, ReasonOrderNotFound)

	_, err = f.svc.GetOrderStatus(ctx, "t1", order.ID, "")
	requireReason(t, err, KindValidation, ReasonInvalidInput)
}

func TestListHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	first := f.create(t, CreateOrderInput{Items: []ItemInput{{ItemID: f.itemA.ID, Quantity: 1}}})
	f.create(t, CreateOrderInput{Items: []ItemInput{{ItemID: f.itemB.ID, Quantity: 1}}})
	_, err := f.svc.CancelOrder(ctx, "t1", first.ID, f.manager)
	require.NoError(t, err)

	all, err := f.svc.ListHistory(ctx, "t1", 0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, models.AuditCanceled, all[0].Action)

	trail, err := f.svc.ListHistory(ctx, "t1", first.ID)
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, models.AuditCreated, trail[0].Action)
	assert.Equal(t, models.AuditCanceled, trail[1].Action)
}

func TestListOrdersRejectsUnknownStatus(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.ListOrders(context.Background(), "t1", repository.OrderFilter{Status: "archived"})

	requireReason(t, err, KindValidation, ReasonInvalidStatus)
}

func TestStaffMayMove(t *testing.T) {
	tests := []struct {
		from, to models.OrderStatus
		want     bool
	}{
		{models.OrderPending, models.OrderPending, true},
		{models.OrderPending, models.OrderCompleted, true},
		{models.OrderPending, models.OrderEnroute, false},
		{models.OrderPreparing, models.OrderPending, false},
		{models.OrderPreparing, models.OrderEnroute, false},
		{models.OrderCompleted, models.OrderEnroute, true},
		{models.OrderCompleted, models.OrderDelivered, false},
		{models.OrderEnroute, models.OrderDelivered, true},
		{models.OrderEnroute, models.OrderCanceled, false},
		{models.OrderCanceled, models.OrderPending, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, staffMayMove(tt.from, tt.to), "%s -> %s", tt.from, tt.to)
	}
}

func TestSummary(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	summary, err := f.svc.Summary(ctx, "t1")
	require.NoError(t, err)
	assert.Zero(t, summary.TotalOrders)
	assert.True(t, summary.TotalRevenue.IsZero())
	assert.Empty(t, summary.LowStockItems)

	f.create(t, CreateOrderInput{Items: []ItemInput{{ItemID: f.itemA.ID, Quantity: 4}, {ItemID: f.itemC.ID, Quantity: 2}}})
	canceled := f.create(t, CreateOrderInput{Items: []ItemInput{{ItemID: f.itemB.ID, Quantity: 2}}})
	_, err = f.svc.CancelOrder(ctx, "t1", canceled.ID, f.manager)
	require.NoError(t, err)

	summary, err = f.svc.Summary(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, int64(1), summary.TotalOrders)
	assert.Equal(t, "46.5", summary.TotalRevenue.String())
	require.Len(t, summary.LowStockItems, 1)
	assert.Equal(t, f.itemA.ID, summary.LowStockItems[0].ID)

	_, err = f.svc.Summary(ctx, "missing")
	requireReason(t, err, KindNotFound, ReasonTenantNotFound)
}
