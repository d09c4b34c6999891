package order

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memRepo is an in-memory Repository with the same transactional
// semantics as the Postgres implementation: a commit either applies the
// order, the item rows, every stock decrement and the cart clear, or
// nothing at all. Used to exercise the engine's contract without a
// database.
type memRepo struct {
	mu      sync.Mutex
	stock   map[string]int
	orders  map[string]*Order
	items   map[string][]Item
	byIdem  map[string]*Receipt
	cleared map[string]int
}

func newMemRepo(stock map[string]int) *memRepo {
	s := make(map[string]int, len(stock))
	for k, v := range stock {
		s[k] = v
	}
	return &memRepo{
		stock:   s,
		orders:  map[string]*Order{},
		items:   map[string][]Item{},
		byIdem:  map[string]*Receipt{},
		cleared: map[string]int{},
	}
}

func (m *memRepo) Commit(_ context.Context, d *Draft, userID, orderNumber, idemKey string) (*Receipt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if idemKey != "" {
		if rc, ok := m.byIdem[idemKey]; ok {
			return rc, nil
		}
	}

	var shortages []StockShortage
	for _, it := range d.Items {
		if avail := m.stock[it.ProductID]; avail < it.Quantity {
			shortages = append(shortages, StockShortage{ProductID: it.ProductID, Requested: it.Quantity, Available: avail})
		}
	}
	if len(shortages) > 0 {
		return nil, &InsufficientStockError{Shortages: shortages}
	}

	orderID := uuid.NewString()
	for _, it := range d.Items {
		m.stock[it.ProductID] -= it.Quantity
		m.items[orderID] = append(m.items[orderID], Item{
			ID:          uuid.NewString(),
			OrderID:     orderID,
			ProductID:   it.ProductID,
			ProductName: it.ProductName,
			Quantity:    it.Quantity,
			UnitPrice:   it.UnitPrice,
			TotalPrice:  it.TotalPrice,
			Variant:     it.Variant,
		})
	}
	m.orders[orderID] = &Order{
		ID:             orderID,
		OrderNumber:    orderNumber,
		UserID:         userID,
		Status:         StatusPending,
		Subtotal:       d.Subtotal,
		TaxAmount:      d.TaxAmount,
		ShippingAmount: d.ShippingAmount,
		TotalAmount:    d.TotalAmount,
	}
	m.cleared[userID]++

	rc := &Receipt{OrderID: orderID, OrderNumber: orderNumber, Total: d.TotalAmount}
	if idemKey != "" {
		m.byIdem[idemKey] = rc
	}
	return rc, nil
}

func (m *memRepo) Cancel(_ context.Context, orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	o, ok := m.orders[orderID]
	if !ok {
		return ErrOrderNotFound
	}
	if o.Status == StatusCancelled {
		return ErrAlreadyCancelled
	}
	if !Cancellable(o.Status) {
		return ErrInvalidTransition
	}
	o.Status = StatusCancelled
	for _, it := range m.items[orderID] {
		m.stock[it.ProductID] += it.Quantity
	}
	return nil
}

func (m *memRepo) GetByID(_ context.Context, id string) (*Order, []Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return nil, nil, ErrOrderNotFound
	}
	cp := *o
	return &cp, append([]Item(nil), m.items[id]...), nil
}

func (m *memRepo) GetItems(_ context.Context, orderID string) ([]Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Item(nil), m.items[orderID]...), nil
}

func (m *memRepo) ListByUser(_ context.Context, userID string, _, _ int) ([]Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Order
	for _, o := range m.orders {
		if o.UserID == userID {
			out = append(out, *o)
		}
	}
	return out, nil
}

func (m *memRepo) UpdateStatus(_ context.Context, id string, next Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	o, ok := m.orders[id]
	if !ok {
		return ErrOrderNotFound
	}
	if next == StatusCancelled || !CanTransition(o.Status, next) {
		return ErrInvalidTransition
	}
	o.Status = next
	return nil
}

func (m *memRepo) stockOf(pid string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.stock[pid]
}

func (m *memRepo) orderCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

func singleItemInput(t *testing.T, pid string, qty int) CheckoutInput {
	in := validCheckoutInput(t)
	in.Items = []CartItem{{ProductID: pid, Name: pid, UnitPrice: dec(t, "10.00"), Quantity: qty}}
	return in
}

func TestEngine_ConcurrentCheckoutsNeverOversell(t *testing.T) {
	const initialStock = 10
	const attempts = 25

	repo := newMemRepo(map[string]int{"P1": initialStock})
	svc := NewService(repo, testPricing(t))

	in := singleItemInput(t, "P1", 1)

	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.Checkout(context.Background(), "u1", in)
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	committed := 0
	for err := range results {
		if err == nil {
			committed++
			continue
		}
		var stockErr *InsufficientStockError
		require.ErrorAs(t, err, &stockErr)
	}
	assert.Equal(t, initialStock, committed)
	assert.Equal(t, 0, repo.stockOf("P1"))
}

func TestEngine_CommitCancelSymmetry(t *testing.T) {
	repo := newMemRepo(map[string]int{"P1": 7, "P2": 3})
	svc := NewService(repo, testPricing(t))

	in := validCheckoutInput(t)
	in.Items = []CartItem{
		{ProductID: "P1", Name: "p1", UnitPrice: dec(t, "10.00"), Quantity: 2},
		{ProductID: "P2", Name: "p2", UnitPrice: dec(t, "5.00"), Quantity: 1},
	}
	rc, err := svc.Checkout(context.Background(), "u1", in)
	require.NoError(t, err)
	assert.Equal(t, 5, repo.stockOf("P1"))
	assert.Equal(t, 2, repo.stockOf("P2"))

	require.NoError(t, svc.Cancel(context.Background(), rc.OrderID, Actor{UserID: "u1"}))
	assert.Equal(t, 7, repo.stockOf("P1"))
	assert.Equal(t, 3, repo.stockOf("P2"))
}

func TestEngine_SecondCancelRejectedWithoutRestock(t *testing.T) {
	repo := newMemRepo(map[string]int{"P1": 5})
	svc := NewService(repo, testPricing(t))

	rc, err := svc.Checkout(context.Background(), "u1", singleItemInput(t, "P1", 2))
	require.NoError(t, err)

	require.NoError(t, svc.Cancel(context.Background(), rc.OrderID, Actor{UserID: "u1"}))
	require.Equal(t, 5, repo.stockOf("P1"))

	err = svc.Cancel(context.Background(), rc.OrderID, Actor{UserID: "u1"})
	require.ErrorIs(t, err, ErrAlreadyCancelled)
	assert.Equal(t, 5, repo.stockOf("P1"), "second cancel must not restock again")
}

func TestEngine_InsufficientStockLeavesNothingBehind(t *testing.T) {
	repo := newMemRepo(map[string]int{"P1": 10, "P2": 1})
	svc := NewService(repo, testPricing(t))

	in := validCheckoutInput(t)
	in.Items = []CartItem{
		{ProductID: "P1", Name: "p1", UnitPrice: dec(t, "10.00"), Quantity: 2},
		{ProductID: "P2", Name: "p2", UnitPrice: dec(t, "5.00"), Quantity: 5},
	}
	_, err := svc.Checkout(context.Background(), "u1", in)

	var stockErr *InsufficientStockError
	require.ErrorAs(t, err, &stockErr)
	require.Len(t, stockErr.Shortages, 1)
	assert.Equal(t, "P2", stockErr.Shortages[0].ProductID)
	assert.Equal(t, 5, stockErr.Shortages[0].Requested)
	assert.Equal(t, 1, stockErr.Shortages[0].Available)

	// nothing partially applied: stock, including the sufficient P1, untouched
	assert.Equal(t, 10, repo.stockOf("P1"))
	assert.Equal(t, 1, repo.stockOf("P2"))
	assert.Equal(t, 0, repo.orderCount())
}

func TestEngine_CancelDeliveredRejected(t *testing.T) {
	repo := newMemRepo(map[string]int{"P1": 5})
	svc := NewService(repo, testPricing(t))

	rc, err := svc.Checkout(context.Background(), "u1", singleItemInput(t, "P1", 1))
	require.NoError(t, err)

	require.NoError(t, repo.UpdateStatus(context.Background(), rc.OrderID, StatusProcessing))
	require.NoError(t, repo.UpdateStatus(context.Background(), rc.OrderID, StatusShipped))
	require.NoError(t, repo.UpdateStatus(context.Background(), rc.OrderID, StatusDelivered))

	err = svc.Cancel(context.Background(), rc.OrderID, Actor{UserID: "u1"})
	require.ErrorIs(t, err, ErrInvalidTransition)
	assert.Equal(t, 4, repo.stockOf("P1"), "delivered order keeps its stock reserved")
}

func TestEngine_IdempotencyKeyReplaysReceipt(t *testing.T) {
	repo := newMemRepo(map[string]int{"P1": 5})
	svc := NewService(repo, testPricing(t))

	in := singleItemInput(t, "P1", 2)
	in.IdempotencyKey = "key-1"

	first, err := svc.Checkout(context.Background(), "u1", in)
	require.NoError(t, err)
	require.Equal(t, 3, repo.stockOf("P1"))

	second, err := svc.Checkout(context.Background(), "u1", in)
	require.NoError(t, err)
	assert.Equal(t, first.OrderID, second.OrderID)
	assert.Equal(t, first.OrderNumber, second.OrderNumber)
	assert.Equal(t, 3, repo.stockOf("P1"), "replay must not decrement again")
	assert.Equal(t, 1, repo.orderCount())
}
