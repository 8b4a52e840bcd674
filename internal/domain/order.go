package domain

import "time"

type PaymentMethod string

const (
	PaymentMethodCOD     PaymentMethod = "COD"
	PaymentMethodGateway PaymentMethod = "GATEWAY"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
)

type OrderStatus string

const (
	OrderPlaced    OrderStatus = "PLACED"
	OrderConfirmed OrderStatus = "CONFIRMED"
	OrderShipped   OrderStatus = "SHIPPED"
	OrderDelivered OrderStatus = "DELIVERED"
	OrderCancelled OrderStatus = "CANCELLED"
)

// orderStatusNext encodes the strict forward chain. CANCELLED is only
// reachable before shipping; DELIVERED and CANCELLED are terminal.
var orderStatusNext = map[OrderStatus]map[OrderStatus]bool{
	OrderPlaced:    {OrderConfirmed: true, OrderCancelled: true},
	OrderConfirmed: {OrderShipped: true, OrderCancelled: true},
	OrderShipped:   {OrderDelivered: true},
	OrderDelivered: {},
	OrderCancelled: {},
}

// CanTransition reports whether an order may move from one status to another.
func CanTransition(from, to OrderStatus) bool {
	return orderStatusNext[from][to]
}

// Terminal reports whether no further order status transitions are possible.
func (s OrderStatus) Terminal() bool {
	return len(orderStatusNext[s]) == 0
}

// Cancellable reports whether an order in this status may still be cancelled.
func (s OrderStatus) Cancellable() bool {
	return orderStatusNext[s][OrderCancelled]
}

// ValidOrderStatus reports whether s is one of the known statuses.
func ValidOrderStatus(s OrderStatus) bool {
	_, ok := orderStatusNext[s]
	return ok
}

// ShippingAddress is snapshotted onto the order at checkout.
type ShippingAddress struct {
	FullName string `json:"fullName"`
	Phone    string `json:"phone"`
	Address  string `json:"address"`
	City     string `json:"city"`
	State    string `json:"state"`
	Pincode  string `json:"pincode"`
}

// Order is the aggregate root: the order row plus its line items and
// status history are persisted and locked as one unit.
type Order struct {
	ID             string          `json:"id"`
	UserID         string          `json:"userId"`
	SubtotalPaise  int64           `json:"subtotalPaise"`
	DiscountPaise  int64           `json:"discountPaise"`
	TotalPaise     int64           `json:"totalPaise"`
	CouponID       *string         `json:"couponId,omitempty"`
	PaymentMethod  PaymentMethod   `json:"paymentMethod"`
	PaymentStatus  PaymentStatus   `json:"paymentStatus"`
	OrderStatus    OrderStatus     `json:"orderStatus"`
	GatewayOrderID *string         `json:"gatewayOrderId,omitempty"`
	Shipping       ShippingAddress `json:"shipping"`
	CreatedAt      time.Time       `json:"createdAt"`
	Lines          []OrderLine     `json:"lines,omitempty"`
}

// OrderLine holds immutable snapshots taken at checkout; later product
// edits or deletes never change historical orders.
type OrderLine struct {
	ID             string `json:"id"`
	OrderID        string `json:"orderId"`
	ProductID      string `json:"productId"`
	ProductName    string `json:"productName"`
	Quantity       int    `json:"quantity"`
	UnitPricePaise int64  `json:"unitPricePaise"`
}

// OrderStatusEvent is one append-only history row per accepted transition.
type OrderStatusEvent struct {
	ID        string      `json:"id"`
	OrderID   string      `json:"orderId"`
	Status    OrderStatus `json:"status"`
	Message   string      `json:"message"`
	CreatedAt time.Time   `json:"createdAt"`
}
