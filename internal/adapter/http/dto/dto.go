package dto

// Amounts travel as decimal strings so no precision is lost in JSON.

// CreditRequest is the request body for an admin credit.
type CreditRequest struct {
	UserID      string  `json:"user_id" binding:"required,uuid"`
	Asset       string  `json:"asset" binding:"required,asset"`
	Amount      string  `json:"amount" binding:"required,amount"`
	Kind        string  `json:"kind" binding:"required"`
	Description *string `json:"description,omitempty" binding:"omitempty,max=255"`
}

// DebitRequest is the request body for an admin debit.
type DebitRequest struct {
	UserID      string  `json:"user_id" binding:"required,uuid"`
	Asset       string  `json:"asset" binding:"required,asset"`
	Amount      string  `json:"amount" binding:"required,amount"`
	Kind        string  `json:"kind" binding:"required"`
	Description *string `json:"description,omitempty" binding:"omitempty,max=255"`
}

// DepositRequest is the request body for a user deposit awaiting
// confirmation.
type DepositRequest struct {
	Asset             string  `json:"asset" binding:"required,asset"`
	Amount            string  `json:"amount" binding:"required,amount"`
	Destination       *string `json:"destination,omitempty" binding:"omitempty,max=128"`
	Network           *string `json:"network,omitempty" binding:"omitempty,max=32"`
	ExternalReference *string `json:"external_reference,omitempty" binding:"omitempty,max=128"`
	Description       *string `json:"description,omitempty" binding:"omitempty,max=255"`
}

// WithdrawalRequest is the request body for a user withdrawal awaiting
// confirmation.
type WithdrawalRequest struct {
	Asset       string  `json:"asset" binding:"required,asset"`
	Amount      string  `json:"amount" binding:"required,amount"`
	Destination string  `json:"destination" binding:"required,max=128"`
	Network     *string `json:"network,omitempty" binding:"omitempty,max=32"`
	Description *string `json:"description,omitempty" binding:"omitempty,max=255"`
}

// TransferRequest is the request body for moving funds between two of the
// caller's balances.
type TransferRequest struct {
	FromAsset   string  `json:"from_asset" binding:"required,asset"`
	ToAsset     string  `json:"to_asset" binding:"required,asset"`
	Amount      string  `json:"amount" binding:"required,amount"`
	Description *string `json:"description,omitempty" binding:"omitempty,max=255"`
}

// PlaceOrderRequest is the request body for a new buy or sell order.
type PlaceOrderRequest struct {
	Side         string `json:"side" binding:"required,oneof=BUY SELL"`
	Asset        string `json:"asset" binding:"required,asset"`
	Currency     string `json:"currency" binding:"required,asset"`
	Quantity     string `json:"quantity" binding:"required,amount"`
	PricePerUnit string `json:"price_per_unit" binding:"required,amount"`
}

// LinkPaymentMethodRequest is the request body for linking a bank account
// or wallet.
type LinkPaymentMethodRequest struct {
	Type    string  `json:"type" binding:"required,oneof=BANK_ACCOUNT CRYPTO_WALLET"`
	Label   string  `json:"label" binding:"required,min=1,max=100"`
	Asset   string  `json:"asset" binding:"required,asset"`
	Details string  `json:"details" binding:"required,min=1,max=128"`
	Network *string `json:"network,omitempty" binding:"omitempty,max=32"`
}

// UpdatePaymentMethodRequest is the request body for editing a payment
// method that has not been approved.
type UpdatePaymentMethodRequest struct {
	Label   string  `json:"label" binding:"required,min=1,max=100"`
	Details string  `json:"details" binding:"required,min=1,max=128"`
	Network *string `json:"network,omitempty" binding:"omitempty,max=32"`
}

// StatusRequest is the request body for admin status transitions.
type StatusRequest struct {
	Status string `json:"status" binding:"required,max=32"`
}

// TransactionListQuery holds the query string of GET /transactions.
type TransactionListQuery struct {
	Asset    string `form:"asset" binding:"omitempty,asset"`
	Kind     string `form:"kind"`
	Status   string `form:"status"`
	From     string `form:"from" binding:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	To       string `form:"to" binding:"omitempty,datetime=2006-01-02T15:04:05Z07:00"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// OrderListQuery holds the query string of GET /orders.
type OrderListQuery struct {
	Status   string `form:"status" binding:"omitempty,oneof=PENDING COMPLETED CANCELLED"`
	Page     int    `form:"page" binding:"omitempty,min=1"`
	PageSize int    `form:"page_size" binding:"omitempty,min=1,max=100"`
}

// BalanceResponse is the public view of a balance.
type BalanceResponse struct {
	Asset           string  `json:"asset"`
	Class           string  `json:"class"`
	Amount          string  `json:"amount"`
	ExternalAddress *string `json:"external_address,omitempty"`
	UpdatedAt       *string `json:"updated_at,omitempty"`
}

// TransactionResponse is the public view of a ledger entry.
type TransactionResponse struct {
	ID                string  `json:"id"`
	ReferenceID       string  `json:"reference_id"`
	Asset             string  `json:"asset"`
	Kind              string  `json:"kind"`
	Amount            string  `json:"amount"`
	Status            string  `json:"status"`
	Description       *string `json:"description,omitempty"`
	Destination       *string `json:"destination,omitempty"`
	Network           *string `json:"network,omitempty"`
	ExternalReference *string `json:"external_reference,omitempty"`
	BalanceAfter      *string `json:"balance_after,omitempty"`
	CounterpartID     *string `json:"counterpart_id,omitempty"`
	OrderID           *string `json:"order_id,omitempty"`
	CreatedAt         string  `json:"created_at"`
	ProcessedAt       *string `json:"processed_at,omitempty"`
}

// TransferResponse carries both legs of a transfer.
type TransferResponse struct {
	From TransactionResponse `json:"from"`
	To   TransactionResponse `json:"to"`
}

// OrderResponse is the public view of an order.
type OrderResponse struct {
	ID           string `json:"id"`
	Side         string `json:"side"`
	Asset        string `json:"asset"`
	Currency     string `json:"currency"`
	Quantity     string `json:"quantity"`
	PricePerUnit string `json:"price_per_unit"`
	TotalAmount  string `json:"total_amount"`
	Status       string `json:"status"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

// PaymentMethodResponse is the public view of a payment method.
type PaymentMethodResponse struct {
	ID        string  `json:"id"`
	Type      string  `json:"type"`
	Label     string  `json:"label"`
	Asset     string  `json:"asset"`
	Details   string  `json:"details"`
	Network   *string `json:"network,omitempty"`
	Status    string  `json:"status"`
	CreatedAt string  `json:"created_at"`
}
