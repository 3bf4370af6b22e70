package invoice

import (
	"bytes"
	"fmt"

	"github.com/go-pdf/fpdf"

	"gmart-backend/internal/domain"
)

const Title = "G Mart - Invoice"

type RenderError struct {
	OrderID string
	Err     error
}

func (e *RenderError) Error() string {
	return fmt.Sprintf("render invoice %s: %v", e.OrderID, e.Err)
}

func (e *RenderError) Unwrap() error { return e.Err }

type Renderer struct {
	// Compress deflates page streams. Off keeps the text greppable.
	Compress bool
}

func NewRenderer() *Renderer {
	return &Renderer{Compress: true}
}

// LineText is the printed form of one item, e.g. "Tea x2 - $10.00 ($5.00 each)".
func LineText(it domain.OrderItem, currency string) string {
	return fmt.Sprintf("%s x%d - %s (%s each)", it.Name, it.Qty,
		domain.FormatMoney(it.LineTotal(), currency), domain.FormatMoney(it.UnitPrice, currency))
}

func (r *Renderer) Render(o *domain.Order) ([]byte, error) {
	pdf := fpdf.New("P", "mm", "A4", "")
	pdf.SetCompression(r.Compress)
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 18)
	pdf.Cell(0, 12, Title)
	pdf.Ln(16)

	pdf.SetFont("Arial", "", 11)
	pdf.Cell(0, 7, "Order: "+o.OrderID)
	pdf.Ln(7)
	pdf.Cell(0, 7, "Date: "+o.CreatedAt.Format("2006-01-02 15:04"))
	pdf.Ln(7)
	pdf.Cell(0, 7, tr("Customer: "+o.CustomerEmail))
	pdf.Ln(12)

	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, "Items")
	pdf.Ln(9)
	pdf.SetFont("Arial", "", 11)
	for _, it := range o.Items {
		pdf.Cell(0, 7, tr(LineText(it, o.Currency)))
		pdf.Ln(7)
	}

	pdf.Ln(4)
	pdf.SetFont("Arial", "B", 12)
	pdf.Cell(0, 8, tr("Total: "+domain.FormatMoney(o.AmountTotal, o.Currency)))

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, &RenderError{OrderID: o.OrderID, Err: err}
	}
	return buf.Bytes(), nil
}
