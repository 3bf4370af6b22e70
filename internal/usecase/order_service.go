package usecase

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"

	"gmart-backend/internal/domain"
	"gmart-backend/internal/infrastructure/paypal"
	"gmart-backend/internal/logging"
	"gmart-backend/internal/metrics"
)

var tracer = otel.Tracer("gmart-backend/usecase")

// postCaptureTimeout bounds the order update and hooks after a completed
// capture. They no longer follow the caller's cancellation.
const postCaptureTimeout = 30 * time.Second

type ProductRepo interface {
	PutProduct(ctx context.Context, p *domain.Product) error
	GetProduct(ctx context.Context, id string) (*domain.Product, bool)
	FindProducts(ctx context.Context, ids []string) (map[string]domain.Product, error)
	ListProducts(ctx context.Context) ([]domain.Product, error)
	DeleteProduct(ctx context.Context, id string) (bool, error)
}

type OrderRepo interface {
	PutOrder(ctx context.Context, o *domain.Order) error
	GetOrder(ctx context.Context, id string) (*domain.Order, bool)
	GetOrderByExternalID(ctx context.Context, externalID string) (*domain.Order, bool)
	// MarkPaid returns (nil, nil) when no order carries externalID.
	MarkPaid(ctx context.Context, externalID string, at time.Time) (*domain.Order, error)
	ListOrders(ctx context.Context, page, pageSize int) ([]domain.Order, int)
}

type PaymentGateway interface {
	CreateRemoteOrder(ctx context.Context, lines []paypal.LineItem, total int64, currency string) (string, error)
	CaptureRemoteOrder(ctx context.Context, externalOrderID string) (paypal.CaptureResult, error)
}

type InvoiceStore interface {
	SaveInvoice(ctx context.Context, orderID string, data []byte) (string, error)
	LoadInvoice(ctx context.Context, orderID string) ([]byte, error)
}

type CartItem struct {
	ProductID string
	Qty       int
}

type OrderService struct {
	Products ProductRepo
	Orders   OrderRepo
	Gateway  PaymentGateway
	Invoices InvoiceStore
	Hooks    []PostCaptureHook
	Currency string
	Logger   *zap.Logger
	Metrics  *metrics.Metrics
	Now      func() time.Time
}

func (s *OrderService) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func (s *OrderService) log(ctx context.Context) *zap.Logger {
	return logging.FromContext(ctx, s.Logger)
}

// Create prices the cart against the catalog, opens a remote order for the
// total and then stores the order as pending. Nothing is stored when the
// gateway call fails.
func (s *OrderService) Create(ctx context.Context, items []CartItem, customerEmail string) (o *domain.Order, err error) {
	ctx, span := tracer.Start(ctx, "OrderService.Create")
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	merged, err := mergeCart(items)
	if err != nil {
		s.Metrics.OrderCreated("invalid")
		return nil, err
	}
	ids := make([]string, len(merged))
	for i, it := range merged {
		ids[i] = it.ProductID
	}
	catalog, err := s.Products.FindProducts(ctx, ids)
	if err != nil {
		return nil, err
	}
	snapshot := make([]domain.OrderItem, 0, len(merged))
	lines := make([]paypal.LineItem, 0, len(merged))
	for _, it := range merged {
		p, ok := catalog[it.ProductID]
		if !ok {
			s.Metrics.OrderCreated("unknown_product")
			return nil, ErrProductNotFound(it.ProductID)
		}
		snapshot = append(snapshot, domain.OrderItem{ProductID: p.ID, Name: p.Name, UnitPrice: p.Price, Qty: it.Qty})
		lines = append(lines, paypal.LineItem{Name: p.Name, UnitPrice: p.Price, Qty: it.Qty})
	}
	total, ok := domain.SumItems(snapshot)
	if !ok {
		s.Metrics.OrderCreated("invalid")
		return nil, ErrBadRequest("order total too large")
	}
	span.SetAttributes(attribute.Int64("order.amount_total", total))

	externalID, err := s.Gateway.CreateRemoteOrder(ctx, lines, total, s.Currency)
	if err != nil {
		var te *paypal.TimeoutError
		if errors.As(err, &te) {
			s.Metrics.OrderCreated("timeout")
			s.log(ctx).Warn("create order timed out; a remote order may exist without a local record",
				zap.String("op", te.Op), zap.Int64("amount_total", total))
		} else {
			s.Metrics.OrderCreated("gateway_error")
			s.log(ctx).Error("create remote order failed", zap.Error(err))
		}
		return nil, err
	}

	now := s.now()
	o = &domain.Order{
		OrderID:         uuid.NewString(),
		ExternalOrderID: externalID,
		CustomerEmail:   strings.TrimSpace(customerEmail),
		Items:           snapshot,
		AmountTotal:     total,
		Currency:        s.Currency,
		Status:          domain.OrderPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := s.Orders.PutOrder(ctx, o); err != nil {
		s.Metrics.OrderCreated("store_error")
		s.log(ctx).Error("remote order created but not stored",
			zap.String("external_order_id", externalID), zap.Error(err))
		return nil, err
	}
	s.Metrics.OrderCreated("ok")
	s.log(ctx).Info("order created",
		zap.String("order_id", o.OrderID),
		zap.String("external_order_id", externalID),
		zap.Int64("amount_total", total))
	return o, nil
}

func mergeCart(items []CartItem) ([]CartItem, error) {
	if len(items) == 0 {
		return nil, ErrBadRequest("at least one item is required")
	}
	out := make([]CartItem, 0, len(items))
	pos := make(map[string]int, len(items))
	for _, it := range items {
		id := strings.TrimSpace(it.ProductID)
		if id == "" {
			return nil, ErrBadRequest("productId is required")
		}
		if it.Qty < 1 {
			return nil, ErrBadRequest("qty must be at least 1")
		}
		if it.Qty > domain.MaxLineQty {
			return nil, ErrBadRequest(fmt.Sprintf("qty must be at most %d", domain.MaxLineQty))
		}
		if i, ok := pos[id]; ok {
			if out[i].Qty > domain.MaxLineQty-it.Qty {
				return nil, ErrBadRequest(fmt.Sprintf("qty for %s must be at most %d", id, domain.MaxLineQty))
			}
			out[i].Qty += it.Qty
			continue
		}
		pos[id] = len(out)
		out = append(out, CartItem{ProductID: id, Qty: it.Qty})
	}
	return out, nil
}

// Capture finalizes payment with the provider and always hands back the
// provider's answer. A decline comes back with a *paypal.GatewayError next to
// the body. Post-capture hooks never change the result. Once the provider
// reports completion the order update and hooks run to completion even if ctx
// is cancelled.
func (s *OrderService) Capture(ctx context.Context, externalOrderID string) (res paypal.CaptureResult, err error) {
	ctx, span := tracer.Start(ctx, "OrderService.Capture")
	defer func() {
		span.SetAttributes(attribute.Int("paypal.status_code", res.StatusCode))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()
	span.SetAttributes(attribute.String("order.external_id", externalOrderID))
	log := s.log(ctx).With(zap.String("external_order_id", externalOrderID))

	res, err = s.Gateway.CaptureRemoteOrder(ctx, externalOrderID)
	if err != nil {
		var ge *paypal.GatewayError
		var te *paypal.TimeoutError
		switch {
		case errors.As(err, &ge):
			s.Metrics.Capture("declined")
			log.Info("capture declined", zap.Int("status", ge.StatusCode))
		case errors.As(err, &te):
			s.Metrics.Capture("timeout")
			log.Warn("capture timed out; provider state unknown", zap.String("op", te.Op))
		default:
			s.Metrics.Capture("error")
			log.Error("capture failed", zap.Error(err))
		}
		return res, err
	}
	if !res.Completed() {
		s.Metrics.Capture("not_completed")
		log.Warn("capture answered without completion", zap.String("status", res.Status))
		return res, nil
	}

	// Detached so a client hang-up cannot leave a captured order pending.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), postCaptureTimeout)
	defer cancel()
	o, err := s.Orders.MarkPaid(ctx, externalOrderID, s.now())
	if err != nil {
		s.Metrics.Capture("store_error")
		log.Error("payment captured but order not updated", zap.Error(err))
		return res, nil
	}
	if o == nil {
		s.Metrics.Capture("unknown_order")
		log.Warn("payment captured for unknown order")
		return res, nil
	}
	s.Metrics.Capture("paid")
	log.Info("order paid", zap.String("order_id", o.OrderID))
	s.runHooks(ctx, o)
	return res, nil
}

func (s *OrderService) runHooks(ctx context.Context, o *domain.Order) {
	for _, h := range s.Hooks {
		s.runHook(ctx, h, o)
	}
}

func (s *OrderService) runHook(ctx context.Context, h PostCaptureHook, o *domain.Order) {
	log := s.log(ctx).With(zap.String("hook", h.Name()), zap.String("order_id", o.OrderID))
	defer func() {
		if r := recover(); r != nil {
			s.Metrics.SideEffectFailed(h.Name())
			log.Error("post-capture hook panicked", zap.Any("panic", r))
		}
	}()
	if err := h.Run(ctx, o); err != nil {
		s.Metrics.SideEffectFailed(h.Name())
		log.Error("post-capture hook failed", zap.Error(err))
	}
}

// GetInvoice accepts either the local order id or the provider's id.
func (s *OrderService) GetInvoice(ctx context.Context, orderID string) ([]byte, error) {
	o, ok := s.Orders.GetOrder(ctx, orderID)
	if !ok {
		o, ok = s.Orders.GetOrderByExternalID(ctx, orderID)
	}
	if !ok {
		return nil, ErrNotFound("order")
	}
	data, err := s.Invoices.LoadInvoice(ctx, o.OrderID)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound("invoice")
	}
	if err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, ErrNotFound("invoice")
	}
	return data, nil
}

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// NormalizePage returns the paging ListOrders actually applies.
func NormalizePage(page, pageSize int) (int, int) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}
	return page, pageSize
}

func (s *OrderService) ListOrders(ctx context.Context, page, pageSize int) ([]domain.Order, int) {
	page, pageSize = NormalizePage(page, pageSize)
	return s.Orders.ListOrders(ctx, page, pageSize)
}
