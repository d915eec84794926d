package model

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentMethod string

const (
	PaymentMethodCOD          PaymentMethod = "cod"
	PaymentMethodCard         PaymentMethod = "card"
	PaymentMethodBankTransfer PaymentMethod = "bank_transfer"
)

func (m PaymentMethod) Valid() bool {
	switch m {
	case PaymentMethodCOD, PaymentMethodCard, PaymentMethodBankTransfer:
		return true
	default:
		return false
	}
}

type PaymentStatus string

const (
	PaymentStatusPending  PaymentStatus = "pending"
	PaymentStatusPaid     PaymentStatus = "paid"
	PaymentStatusFailed   PaymentStatus = "failed"
	PaymentStatusRefunded PaymentStatus = "refunded"
)

type ShippingAddress struct {
	Recipient  string `gorm:"not null;type:varchar(100)" json:"recipient"`
	Phone      string `gorm:"not null;type:varchar(30)" json:"phone"`
	Line1      string `gorm:"not null;type:varchar(200)" json:"line1"`
	Line2      string `gorm:"type:varchar(200)" json:"line2,omitempty"`
	City       string `gorm:"not null;type:varchar(100)" json:"city"`
	PostalCode string `gorm:"type:varchar(20)" json:"postal_code,omitempty"`
	Country    string `gorm:"type:varchar(60)" json:"country,omitempty"`
}

// Order 結帳當下的快照, 建立後 items 與金額不可再變動
// 之後只有狀態、狀態歷程與時間欄位會被訂單生命週期修改
type Order struct {
	OrderID         string               `gorm:"primaryKey;type:varchar(64)" json:"order_id"`
	OrderNumber     string               `gorm:"not null;type:varchar(32);uniqueIndex" json:"order_number"`
	UserID          int                  `gorm:"not null;index;uniqueIndex:idx_order_user_idem,where:idempotency_key <> ''" json:"user_id"`
	Items           []OrderItem          `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	Subtotal        decimal.Decimal      `gorm:"not null;type:decimal(12,2)" json:"subtotal"`
	ShippingCost    decimal.Decimal      `gorm:"not null;type:decimal(12,2)" json:"shipping_cost"`
	TotalAmount     decimal.Decimal      `gorm:"not null;type:decimal(12,2)" json:"total_amount"`
	ShippingAddress ShippingAddress      `gorm:"embedded;embeddedPrefix:ship_" json:"shipping_address"`
	PaymentMethod   PaymentMethod        `gorm:"not null;type:varchar(20)" json:"payment_method"`
	PaymentStatus   PaymentStatus        `gorm:"not null;type:varchar(20);default:pending" json:"payment_status"`
	Status          OrderStatus          `gorm:"not null;type:varchar(20);default:pending;index" json:"status"`
	Notes           string               `gorm:"type:text" json:"notes,omitempty"`
	IdempotencyKey  string               `gorm:"type:varchar(100);uniqueIndex:idx_order_user_idem,where:idempotency_key <> ''" json:"-"`
	StatusHistory   []OrderStatusHistory `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"status_history"`
	CancelledAt     *time.Time           `json:"cancelled_at,omitempty"`
	DeliveredAt     *time.Time           `json:"delivered_at,omitempty"`
	BaseModel
}

type OrderItem struct {
	OrderID   string          `gorm:"primaryKey;type:varchar(64)" json:"-"`
	ProductID uint            `gorm:"primaryKey" json:"product_id"`
	Name      string          `gorm:"not null;type:varchar(200)" json:"name"`
	Price     decimal.Decimal `gorm:"not null;type:decimal(12,2)" json:"price"`
	Quantity  int             `gorm:"not null" json:"quantity"`
	Image     string          `gorm:"type:varchar(500)" json:"image,omitempty"`
}

// OrderStatusHistory 只能新增, 不提供修改與刪除
type OrderStatusHistory struct {
	ID        uint        `gorm:"primaryKey" json:"-"`
	OrderID   string      `gorm:"not null;type:varchar(64);index" json:"-"`
	Status    OrderStatus `gorm:"not null;type:varchar(20)" json:"status"`
	Note      string      `gorm:"type:text" json:"note,omitempty"`
	Actor     string      `gorm:"not null;type:varchar(64)" json:"actor"`
	Override  bool        `gorm:"not null;default:false" json:"override,omitempty"`
	CreatedAt time.Time   `gorm:"not null;default:now()" json:"created_at"`
}

func (OrderStatusHistory) TableName() string {
	return "order_status_histories"
}

// Clone 深拷貝 items 與歷程
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	cp := *o
	cp.Items = append([]OrderItem(nil), o.Items...)
	cp.StatusHistory = append([]OrderStatusHistory(nil), o.StatusHistory...)
	if o.CancelledAt != nil {
		t := *o.CancelledAt
		cp.CancelledAt = &t
	}
	if o.DeliveredAt != nil {
		t := *o.DeliveredAt
		cp.DeliveredAt = &t
	}
	return &cp
}
