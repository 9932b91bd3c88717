package funding

// AirdropRequest captures the faucet credit requested by an operator.
type AirdropRequest struct {
	To     string `json:"to"`
	Amount uint64 `json:"amount"`
}

// AirdropResponse represents the API response for a faucet credit.
type AirdropResponse struct {
	TransactionID string `json:"transaction_id"`
	To            string `json:"to"`
	Amount        uint64 `json:"amount"`
	Balance       uint64 `json:"balance"`
}
