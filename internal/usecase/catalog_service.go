package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	"gmart-backend/internal/domain"
)

type CatalogService struct {
	Products ProductRepo
	Now      func() time.Time
}

func (s *CatalogService) List(ctx context.Context) ([]domain.Product, error) {
	list, err := s.Products.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	if list == nil {
		list = []domain.Product{}
	}
	return list, nil
}

func (s *CatalogService) Get(ctx context.Context, id string) (*domain.Product, error) {
	p, ok := s.Products.GetProduct(ctx, id)
	if !ok {
		return nil, ErrNotFound("product")
	}
	return p, nil
}

func (s *CatalogService) Create(ctx context.Context, name, description string, price int64) (*domain.Product, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, ErrBadRequest("name is required")
	}
	if price < 0 {
		return nil, ErrBadRequest("price must not be negative")
	}
	now := time.Now().UTC()
	if s.Now != nil {
		now = s.Now().UTC()
	}
	p := &domain.Product{
		ID:          uuid.NewString(),
		Name:        name,
		Description: strings.TrimSpace(description),
		Price:       price,
		CreatedAt:   now,
	}
	if err := s.Products.PutProduct(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *CatalogService) Delete(ctx context.Context, id string) error {
	ok, err := s.Products.DeleteProduct(ctx, id)
	if err != nil {
		return err
	}
	if !ok {
		return ErrNotFound("product")
	}
	return nil
}
