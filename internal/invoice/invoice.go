// Package invoice renders plain-text invoices for delivered, paid orders.
package invoice

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"storefront/internal/domain"
)

// Writer renders invoices into a directory on local disk.
type Writer struct {
	dir string
}

func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

// Generate writes the invoice for an order and returns the file path.
// Calling it again for the same order overwrites the previous file.
func (w *Writer) Generate(o *domain.Order, customerName string) (string, error) {
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return "", fmt.Errorf("create invoice dir: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "INVOICE\n")
	fmt.Fprintf(&b, "Order:    %s\n", o.ID)
	fmt.Fprintf(&b, "Customer: %s\n", customerName)
	fmt.Fprintf(&b, "Date:     %s\n\n", time.Now().Format("2006-01-02"))

	for _, l := range o.Lines {
		fmt.Fprintf(&b, "%-40s %3d x %s = %s\n",
			l.ProductName, l.Quantity, rupees(l.UnitPricePaise), rupees(int64(l.Quantity)*l.UnitPricePaise))
	}
	fmt.Fprintf(&b, "\nSubtotal: %s\n", rupees(o.SubtotalPaise))
	if o.DiscountPaise > 0 {
		fmt.Fprintf(&b, "Discount: -%s\n", rupees(o.DiscountPaise))
	}
	fmt.Fprintf(&b, "Total:    %s\n", rupees(o.TotalPaise))
	fmt.Fprintf(&b, "Payment:  %s (%s)\n", o.PaymentMethod, o.PaymentStatus)

	path := filepath.Join(w.dir, fmt.Sprintf("invoice_%s.txt", o.ID))
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return "", fmt.Errorf("write invoice: %w", err)
	}
	return path, nil
}

func rupees(paise int64) string {
	return fmt.Sprintf("Rs %d.%02d", paise/100, paise%100)
}
