package invoice

import (
	"os"
	"strings"
	"testing"

	"storefront/internal/domain"
)

func TestGenerate(t *testing.T) {
	w := NewWriter(t.TempDir())
	o := &domain.Order{
		ID:            "ord-1",
		SubtotalPaise: 250000,
		DiscountPaise: 25000,
		TotalPaise:    225000,
		PaymentMethod: domain.PaymentMethodGateway,
		PaymentStatus: domain.PaymentPaid,
		Lines: []domain.OrderLine{
			{ProductName: "Walnut Desk Organizer", Quantity: 2, UnitPricePaise: 125000},
		},
	}

	path, err := w.Generate(o, "Asha Rao")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read invoice: %v", err)
	}
	body := string(raw)
	for _, want := range []string{"ord-1", "Asha Rao", "Walnut Desk Organizer", "Rs 2500.00", "Discount: -Rs 250.00", "Total:    Rs 2250.00"} {
		if !strings.Contains(body, want) {
			t.Fatalf("invoice missing %q:\n%s", want, body)
		}
	}
}
