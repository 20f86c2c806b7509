package model

// OrderStatus は注文ステータスを表す。
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusPaid       OrderStatus = "paid"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
	OrderStatusRefunded   OrderStatus = "refunded"
)

// Valid は定義済みのステータスかどうかを返す。
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusPaid, OrderStatusProcessing,
		OrderStatusShipped, OrderStatusDelivered, OrderStatusCancelled, OrderStatusRefunded:
		return true
	default:
		return false
	}
}

// OrderItem は注文明細を表す。価格は購入時点のもの。
type OrderItem struct {
	ID           string `json:"id"`
	ProductID    string `json:"product_id"`
	ProductName  string `json:"product_name"`
	ProductImage string `json:"product_image,omitempty"`
	Quantity     int    `json:"quantity"`
	Price        Price  `json:"price"`
}

// Order はストアAPIの注文を表す。
type Order struct {
	ID                    string         `json:"id"`
	UserID                string         `json:"user_id"`
	OrderNumber           string         `json:"order_number"`
	TotalAmount           Price          `json:"total_amount"`
	Subtotal              Price          `json:"subtotal"`
	DiscountAmount        Price          `json:"discount_amount"`
	TaxAmount             Price          `json:"tax_amount"`
	ShippingCost          Price          `json:"shipping_cost"`
	Status                OrderStatus    `json:"status"`
	PaymentMethod         string         `json:"payment_method,omitempty"`
	StripePaymentIntentID string         `json:"stripe_payment_intent_id,omitempty"`
	ShippingAddress       map[string]any `json:"shipping_address"`
	BillingAddress        map[string]any `json:"billing_address,omitempty"`
	Notes                 string         `json:"notes,omitempty"`
	TrackingNumber        string         `json:"tracking_number,omitempty"`
	CreatedAt             *Timestamp     `json:"created_at,omitempty"`
	PaidAt                *Timestamp     `json:"paid_at,omitempty"`
	ShippedAt             *Timestamp     `json:"shipped_at,omitempty"`
	DeliveredAt           *Timestamp     `json:"delivered_at,omitempty"`
	Items                 []OrderItem    `json:"items"`
}

// OrderLine は注文作成・決済インテント作成でAPIへ送る明細。
type OrderLine struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

// OrderRequest は注文作成でAPIへ送る内容を表す。
type OrderRequest struct {
	Items           []OrderLine    `json:"items"`
	ShippingAddress map[string]any `json:"shipping_address"`
	BillingAddress  map[string]any `json:"billing_address,omitempty"`
	Notes           string         `json:"notes,omitempty"`
	PaymentIntentID string         `json:"payment_intent_id,omitempty"`
}

// PaymentIntentRequest は決済インテント作成でAPIへ送る内容を表す。
type PaymentIntentRequest struct {
	Items           []OrderLine    `json:"items"`
	ShippingAddress map[string]any `json:"shipping_address"`
}

// PaymentIntent は決済インテント作成APIのレスポンスを表す。
type PaymentIntent struct {
	ClientSecret    string `json:"clientSecret"`
	PaymentIntentID string `json:"paymentIntentId"`
	Amount          Price  `json:"amount"`
	Subtotal        Price  `json:"subtotal"`
	Shipping        Price  `json:"shipping"`
	Tax             Price  `json:"tax"`
}

// OrderStatusUpdate は管理画面からの注文更新内容を表す。
type OrderStatusUpdate struct {
	Status         OrderStatus `json:"status,omitempty"`
	TrackingNumber string      `json:"tracking_number,omitempty"`
	Notes          string      `json:"notes,omitempty"`
}

// DashboardStats は管理ダッシュボードの集計値を表す。
type DashboardStats struct {
	TotalRevenue  Price `json:"totalRevenue"`
	TotalOrders   int   `json:"totalOrders"`
	TotalProducts int   `json:"totalProducts"`
	TotalUsers    int   `json:"totalUsers"`
}

// RevenuePoint は日別売上を表す。
type RevenuePoint struct {
	Date    string `json:"date"`
	Revenue Price  `json:"revenue"`
}

// Dashboard は管理ダッシュボードAPIのレスポンスを表す。
type Dashboard struct {
	Stats        DashboardStats `json:"stats"`
	RecentOrders []Order        `json:"recentOrders"`
	RevenueTrend []RevenuePoint `json:"revenuetrend"`
}
