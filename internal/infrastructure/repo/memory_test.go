package repo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"gmart-backend/internal/domain"
)

func TestMemoryProductRepo(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryProductRepo()
	require.NoError(t, r.PutProduct(ctx, &domain.Product{ID: "b", Name: "Basil", Price: 250}))
	require.NoError(t, r.PutProduct(ctx, &domain.Product{ID: "a", Name: "Apple", Price: 100}))

	list, err := r.ListProducts(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "Apple", list[0].Name)

	found, err := r.FindProducts(ctx, []string{"a", "zzz"})
	require.NoError(t, err)
	assert.Len(t, found, 1)
	assert.Equal(t, int64(100), found["a"].Price)

	ok, err := r.DeleteProduct(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	ok, _ = r.DeleteProduct(ctx, "a")
	assert.False(t, ok)
	_, ok = r.GetProduct(ctx, "a")
	assert.False(t, ok)
}

func TestMemoryOrderRepo_MarkPaid(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryOrderRepo()
	created := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	o := &domain.Order{
		OrderID:         "o1",
		ExternalOrderID: "PP-1",
		Items:           []domain.OrderItem{{ProductID: "p1", UnitPrice: 500, Qty: 2}},
		AmountTotal:     1000,
		Status:          domain.OrderPending,
		CreatedAt:       created,
		UpdatedAt:       created,
	}
	require.NoError(t, r.PutOrder(ctx, o))

	missing, err := r.MarkPaid(ctx, "PP-404", time.Now())
	require.NoError(t, err)
	assert.Nil(t, missing)

	paidAt := created.Add(time.Hour)
	got, err := r.MarkPaid(ctx, "PP-1", paidAt)
	require.NoError(t, err)
	assert.Equal(t, domain.OrderPaid, got.Status)
	assert.Equal(t, paidAt, got.UpdatedAt)

	again, err := r.MarkPaid(ctx, "PP-1", paidAt.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, paidAt, again.UpdatedAt, "second transition is a no-op")
	assert.Equal(t, int64(1000), again.AmountTotal)
}

func TestMemoryOrderRepo_ReturnsCopies(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryOrderRepo()
	o := &domain.Order{OrderID: "o1", ExternalOrderID: "PP-1", Items: []domain.OrderItem{{ProductID: "p1", Qty: 1}}}
	require.NoError(t, r.PutOrder(ctx, o))
	o.Items[0].Qty = 99

	got, ok := r.GetOrder(ctx, "o1")
	require.True(t, ok)
	assert.Equal(t, 1, got.Items[0].Qty)
	got.Items[0].Qty = 42

	byExt, ok := r.GetOrderByExternalID(ctx, "PP-1")
	require.True(t, ok)
	assert.Equal(t, 1, byExt.Items[0].Qty)
}

func TestMemoryOrderRepo_ListNewestFirst(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryOrderRepo()
	base := time.Now().UTC()
	for i, id := range []string{"o1", "o2", "o3"} {
		require.NoError(t, r.PutOrder(ctx, &domain.Order{OrderID: id, CreatedAt: base.Add(time.Duration(i) * time.Minute)}))
	}
	page, total := r.ListOrders(ctx, 1, 2)
	assert.Equal(t, 3, total)
	require.Len(t, page, 2)
	assert.Equal(t, "o3", page[0].OrderID)

	page, _ = r.ListOrders(ctx, 5, 2)
	assert.Empty(t, page)
}

func TestMemoryUserRepo_EmailCaseInsensitive(t *testing.T) {
	ctx := context.Background()
	r := NewMemoryUserRepo()
	require.NoError(t, r.PutUser(ctx, &domain.User{UserID: "u1", Email: "Ada@Example.com"}))
	u, ok := r.GetUserByEmail(ctx, "ada@example.com")
	require.True(t, ok)
	assert.Equal(t, "u1", u.UserID)
}
