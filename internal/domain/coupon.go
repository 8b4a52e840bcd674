package domain

import "time"

type DiscountType string

const (
	DiscountPercent DiscountType = "PERCENT"
	DiscountFlat    DiscountType = "FLAT"
)

// Coupon is an admin-managed discount code. Codes are stored uppercased
// and matched case-insensitively. used_count moves only inside a
// successful checkout transaction.
type Coupon struct {
	ID            string       `json:"id"`
	Code          string       `json:"code"`
	DiscountType  DiscountType `json:"discountType"`
	DiscountValue int64        `json:"discountValue"`
	MinOrderPaise int64        `json:"minOrderPaise"`
	UsageLimit    int          `json:"usageLimit"`
	UsedCount     int          `json:"usedCount"`
	ExpiryDate    *time.Time   `json:"expiryDate,omitempty"`
	IsActive      bool         `json:"isActive"`
	CreatedAt     time.Time    `json:"createdAt"`
}
