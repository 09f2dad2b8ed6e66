package views

// AmountRequest carries the raw decimal-string amount for deposit/withdraw.
// Presence/shape validation happens here; precision and sign validation
// happens in pkg/money before any store is touched.
type AmountRequest struct {
	Amount string `json:"amount" binding:"required"`
}

// MutationResult is the response of a successful deposit/withdraw.
type MutationResult struct {
	AccountID string `json:"accountId"`
	Balance   string `json:"balance"`
	OpID      int64  `json:"opId"`
}

// TransactionView is one history row rendered for clients.
type TransactionView struct {
	ID        int64  `json:"id"`
	Type      string `json:"type"`
	Amount    string `json:"amount"`
	Balance   string `json:"balance"`
	CreatedAt string `json:"createdAt"`
}
