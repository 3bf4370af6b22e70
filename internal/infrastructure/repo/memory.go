package repo

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"gmart-backend/internal/domain"
)

type MemoryProductRepo struct {
	mu sync.RWMutex
	m  map[string]domain.Product
}

func NewMemoryProductRepo() *MemoryProductRepo {
	return &MemoryProductRepo{m: make(map[string]domain.Product)}
}

func (r *MemoryProductRepo) PutProduct(_ context.Context, p *domain.Product) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[p.ID] = *p
	return nil
}

func (r *MemoryProductRepo) GetProduct(_ context.Context, id string) (*domain.Product, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.m[id]
	if !ok {
		return nil, false
	}
	return &p, true
}

func (r *MemoryProductRepo) FindProducts(_ context.Context, ids []string) (map[string]domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]domain.Product, len(ids))
	for _, id := range ids {
		if p, ok := r.m[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

func (r *MemoryProductRepo) ListProducts(_ context.Context) ([]domain.Product, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Product, 0, len(r.m))
	for _, p := range r.m {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *MemoryProductRepo) DeleteProduct(_ context.Context, id string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.m[id]; !ok {
		return false, nil
	}
	delete(r.m, id)
	return true, nil
}

type MemoryOrderRepo struct {
	mu         sync.RWMutex
	m          map[string]*domain.Order
	byExternal map[string]string
}

func NewMemoryOrderRepo() *MemoryOrderRepo {
	return &MemoryOrderRepo{m: make(map[string]*domain.Order), byExternal: make(map[string]string)}
}

func (r *MemoryOrderRepo) PutOrder(_ context.Context, o *domain.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[o.OrderID] = cloneOrder(o)
	if o.ExternalOrderID != "" {
		r.byExternal[o.ExternalOrderID] = o.OrderID
	}
	return nil
}

func (r *MemoryOrderRepo) GetOrder(_ context.Context, id string) (*domain.Order, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	o, ok := r.m[id]
	if !ok {
		return nil, false
	}
	return cloneOrder(o), true
}

func (r *MemoryOrderRepo) GetOrderByExternalID(_ context.Context, externalID string) (*domain.Order, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	id, ok := r.byExternal[externalID]
	if !ok {
		return nil, false
	}
	return cloneOrder(r.m[id]), true
}

func (r *MemoryOrderRepo) MarkPaid(_ context.Context, externalID string, at time.Time) (*domain.Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id, ok := r.byExternal[externalID]
	if !ok {
		return nil, nil
	}
	o := r.m[id]
	if o.Status != domain.OrderPaid {
		o.Status = domain.OrderPaid
		o.UpdatedAt = at
	}
	return cloneOrder(o), nil
}

func (r *MemoryOrderRepo) ListOrders(_ context.Context, page, pageSize int) ([]domain.Order, int) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := make([]domain.Order, 0, len(r.m))
	for _, o := range r.m {
		all = append(all, *cloneOrder(o))
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	total := len(all)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return all[start:end], total
}

func cloneOrder(o *domain.Order) *domain.Order {
	cp := *o
	cp.Items = append([]domain.OrderItem(nil), o.Items...)
	return &cp
}

type MemoryUserRepo struct {
	mu sync.RWMutex
	m  map[string]domain.User
}

func NewMemoryUserRepo() *MemoryUserRepo {
	return &MemoryUserRepo{m: make(map[string]domain.User)}
}

func (r *MemoryUserRepo) PutUser(_ context.Context, u *domain.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.m[strings.ToLower(u.Email)] = *u
	return nil
}

func (r *MemoryUserRepo) GetUserByEmail(_ context.Context, email string) (*domain.User, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	u, ok := r.m[strings.ToLower(email)]
	if !ok {
		return nil, false
	}
	return &u, true
}
