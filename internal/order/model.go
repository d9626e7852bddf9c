package order

import "time"

type OrderStatus string

const (
	StatusPending  OrderStatus = "pending"
	StatusPaid     OrderStatus = "paid"
	StatusFailed   OrderStatus = "failed"
	StatusRefunded OrderStatus = "refunded"
)

type TransactionStatus string

const (
	TransactionPending   TransactionStatus = "pending"
	TransactionSucceeded TransactionStatus = "succeeded"
	TransactionFailed    TransactionStatus = "failed"
	TransactionRefunded  TransactionStatus = "refunded"
)

// Order is immutable once placed. Total is an integer count of minor
// units (hundredths), even though TWD settles in whole units.
type Order struct {
	ID        uint
	InvoiceID string
	Total     int64
	TotalPaid int64
	Currency  string
	Status    OrderStatus
	CreatedAt time.Time
	UpdatedAt time.Time
	Items     []LineItem
}

type LineItem struct {
	ID        uint
	OrderID   uint
	Title     string
	Quantity  int
	UnitPrice int64
}

// Transaction is one payment attempt against an Order. UUID is the
// local identifier embedded in callback URLs; VendorChargeID is LINE
// Pay's transaction id, empty until initiation succeeds.
type Transaction struct {
	ID             uint
	UUID           string
	OrderID        uint
	Status         TransactionStatus
	VendorChargeID string
	Meta           map[string]interface{}
	CreatedAt      time.Time
	UpdatedAt      time.Time
}
