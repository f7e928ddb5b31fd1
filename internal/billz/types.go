package billz

// rpcRequest is the method/params envelope the backend's rpc-style endpoints
// expect on POST /v1/orders.
type rpcRequest struct {
	Method string `json:"method"`
	Params any    `json:"params"`
}

type createClientRequest struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	PhoneNumber string `json:"phone_number"`
}

type createOrderParams struct {
	ShopID string `json:"shop_id"`
}

type addItemRequest struct {
	ProductID            string   `json:"product_id"`
	SoldMeasurementValue float64  `json:"sold_measurement_value"`
	UseFreePrice         bool     `json:"use_free_price"`
	IsManual             bool     `json:"is_manual"`
	ResponseType         string   `json:"response_type"`
	SellerIDs            []string `json:"seller_ids,omitempty"`
}

type addCustomerParams struct {
	CustomerID string `json:"customer_id"`
	OrderID    string `json:"order_id"`
}

type postponeParams struct {
	OrderID string `json:"order_id"`
	Comment string `json:"comment,omitempty"`
	Time    string `json:"time,omitempty"`
}

type discountRequest struct {
	DiscountUnit  string  `json:"discount_unit"`
	DiscountValue float64 `json:"discount_value"`
}

type paymentEntry struct {
	ID                   string  `json:"id"`
	CompanyPaymentTypeID string  `json:"company_payment_type_id"`
	PaidAmount           float64 `json:"paid_amount"`
}

type makePaymentParams struct {
	Payments []paymentEntry `json:"payments"`
	OrderID  string         `json:"order_id"`
}

// Customer is the remote representation returned when a client is created.
type Customer struct {
	ID          string `json:"id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	PhoneNumber string `json:"phone_number"`
}

// OrderRef identifies a freshly created remote order.
type OrderRef struct {
	ID string `json:"id"`
}

// Order is the remote order snapshot returned by the order read endpoint.
// ParkStatusCompleted on ParkStatus marks an order that has already been paid.
type Order struct {
	ID         string  `json:"id"`
	ParkStatus string  `json:"park_status"`
	TotalPrice float64 `json:"total_price"`
	CustomerID string  `json:"customer_id,omitempty"`
}

// ParkStatusCompleted is the backend's marker for an order that was already
// paid and closed.
const ParkStatusCompleted = "completed"

// AddItemParams carries one item addition for AddItem.
type AddItemParams struct {
	ProductID  string
	Qty        float64
	OrderID    string
	EmployeeID string
}
