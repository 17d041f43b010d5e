package events

// FeesCollected é emitido junto com a resolução, após a transferência da taxa.
type FeesCollected struct {
	RoundID      uint64 `json:"round_id"`
	Recipient    string `json:"recipient"`
	AmountMicros int64  `json:"amount_micros"`
}

// WinningsClaimed é emitido quando um vencedor saca sua parte do pote.
type WinningsClaimed struct {
	RoundID      uint64 `json:"round_id"`
	UserID       string `json:"user_id"`
	AmountMicros int64  `json:"amount_micros"`
}

// RefundIssued é emitido quando uma aposta é estornada.
type RefundIssued struct {
	RoundID      uint64 `json:"round_id"`
	UserID       string `json:"user_id"`
	AmountMicros int64  `json:"amount_micros"`
}

// FeeRecipientChanged é emitido na troca do recebedor da taxa da plataforma.
type FeeRecipientChanged struct {
	Recipient string `json:"recipient"`
}
