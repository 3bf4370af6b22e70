package usecase

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"gmart-backend/internal/domain"
	"gmart-backend/internal/infrastructure/invoice"
	"gmart-backend/internal/logging"
)

// PostCaptureHook is a side effect that runs after an order turned paid.
// A failing hook is logged and counted; it never changes the capture result.
type PostCaptureHook interface {
	Name() string
	Run(ctx context.Context, o *domain.Order) error
}

type InvoiceRenderer interface {
	Render(o *domain.Order) ([]byte, error)
}

type InvoiceSender interface {
	SendInvoice(ctx context.Context, to, orderID string, pdf []byte) error
}

// InvoiceHook renders the invoice and stores it under the order id.
type InvoiceHook struct {
	Renderer InvoiceRenderer
	Store    InvoiceStore
}

func (h *InvoiceHook) Name() string { return "invoice" }

func (h *InvoiceHook) Run(ctx context.Context, o *domain.Order) error {
	pdf, err := h.Renderer.Render(o)
	if err != nil {
		return err
	}
	if _, err := h.Store.SaveInvoice(ctx, o.OrderID, pdf); err != nil {
		return &invoice.RenderError{OrderID: o.OrderID, Err: err}
	}
	return nil
}

// EmailHook mails the stored invoice. It expects InvoiceHook to have run first.
type EmailHook struct {
	Store  InvoiceStore
	Sender InvoiceSender
	Logger *zap.Logger
}

func (h *EmailHook) Name() string { return "email" }

func (h *EmailHook) Run(ctx context.Context, o *domain.Order) error {
	if o.CustomerEmail == "" {
		logging.FromContext(ctx, h.Logger).Info("no customer email; invoice not sent", zap.String("order_id", o.OrderID))
		return nil
	}
	if h.Sender == nil {
		return errors.New("no mail transport configured")
	}
	pdf, err := h.Store.LoadInvoice(ctx, o.OrderID)
	if err != nil {
		return err
	}
	return h.Sender.SendInvoice(ctx, o.CustomerEmail, o.OrderID, pdf)
}
