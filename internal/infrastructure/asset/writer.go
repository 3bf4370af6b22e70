package asset

import (
	"context"
	"os"
	"path/filepath"
	"strings"
)

// FSWriter stores invoices as <InvoicesDir>/<orderId>.pdf.
type FSWriter struct {
	InvoicesDir   string
	PublicBaseURL string
}

func NewFSWriter(invoicesDir string, publicBaseURL string) *FSWriter {
	return &FSWriter{InvoicesDir: invoicesDir, PublicBaseURL: strings.TrimRight(publicBaseURL, "/")}
}

// SaveInvoice overwrites any earlier rendering for the same order. Readers
// see either the old file or the new one, never a partial write.
func (w *FSWriter) SaveInvoice(_ context.Context, orderID string, data []byte) (string, error) {
	if err := os.MkdirAll(w.InvoicesDir, 0o755); err != nil {
		return "", err
	}
	name := invoiceName(orderID)
	if err := writeAtomic(filepath.Join(w.InvoicesDir, name), data); err != nil {
		return "", err
	}
	return w.buildURL("/invoices/" + name), nil
}

func writeAtomic(path string, data []byte) (err error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+"-*")
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()
	if _, err = tmp.Write(data); err != nil {
		return err
	}
	if err = tmp.Chmod(0o644); err != nil {
		return err
	}
	if err = tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}

// LoadInvoice returns an error matching fs.ErrNotExist when nothing was rendered.
func (w *FSWriter) LoadInvoice(_ context.Context, orderID string) ([]byte, error) {
	return os.ReadFile(filepath.Join(w.InvoicesDir, invoiceName(orderID)))
}

func (w *FSWriter) buildURL(path string) string {
	if w.PublicBaseURL == "" {
		return path
	}
	return w.PublicBaseURL + path
}

func invoiceName(orderID string) string {
	return filepath.Base(orderID) + ".pdf"
}
