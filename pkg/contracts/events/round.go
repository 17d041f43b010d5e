package events

// RoundCreated é emitido na criação de uma rodada.
type RoundCreated struct {
	RoundID      uint64   `json:"round_id"`
	Symbols      []string `json:"symbols"`
	DeadlineUnix int64    `json:"deadline_unix"`
	Mode         string   `json:"mode"` // "admin" | "commit-reveal" | "oracle"
}

// PricesSnapshotted é emitido quando os preços iniciais são registrados (modo oracle).
// Preços em ponto fixo de 18 casas, serializados como string decimal.
type PricesSnapshotted struct {
	RoundID     uint64   `json:"round_id"`
	StartPrices []string `json:"start_prices"`
}

// WagerPlaced é emitido a cada aposta aceita.
type WagerPlaced struct {
	RoundID        uint64 `json:"round_id"`
	UserID         string `json:"user_id"`
	CoinIndex      int    `json:"coin_index"`
	AmountMicros   int64  `json:"amount_micros"`
	TotalPotMicros int64  `json:"total_pot_micros"`
}

// WinnerCommitted é emitido quando o commitment é publicado (modo commit-reveal).
type WinnerCommitted struct {
	RoundID       uint64 `json:"round_id"`
	CommitmentHex string `json:"commitment_hex"`
}

// RoundResolved é emitido na resolução da rodada.
// WinningBps só é preenchido no modo oracle.
type RoundResolved struct {
	RoundID            uint64 `json:"round_id"`
	WinnerIndex        int    `json:"winner_index"`
	WinnerSymbol       string `json:"winner_symbol"`
	WinningBps         *int64 `json:"winning_bps,omitempty"`
	TotalPotMicros     int64  `json:"total_pot_micros"`
	FeeMicros          int64  `json:"fee_micros"`
	PotAfterFeesMicros int64  `json:"pot_after_fees_micros"`
	WinningPoolMicros  int64  `json:"winning_pool_micros"`
}

// RoundCancelled é emitido no cancelamento (explícito ou via fallback sem apostadores).
type RoundCancelled struct {
	RoundID uint64 `json:"round_id"`
	Reason  string `json:"reason"` // "operator" | "no_stakers"
}
