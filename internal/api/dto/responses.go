package dto

type PayoutResponse struct {
	RoundID      uint64 `json:"round_id"`
	UserID       string `json:"userId"`
	AmountMicros int64  `json:"amount_micros"`
	Status       string `json:"status"` // "CLAIMED" | "REFUNDED"
}

type ErrorResponse struct {
	Error string `json:"error"`
}
