package dto

// CreateRoundRequest abre uma rodada. Feeds só é usado no modo oracle e
// precisa ter o mesmo tamanho de Symbols.
type CreateRoundRequest struct {
	Symbols      []string `json:"symbols"`
	Feeds        []string `json:"feeds,omitempty"`
	DurationSecs int64    `json:"duration_secs"`
}

type PlaceWagerRequest struct {
	UserID       string `json:"userId"`
	CoinIndex    int    `json:"coin_index"`
	AmountMicros int64  `json:"amount_micros"`
}

// SnapshotRequest registra os preços iniciais (modo oracle). UpdateData em
// base64; PaidFeeMicros é o pagamento da taxa do oráculo, o troco volta
// para Payer.
type SnapshotRequest struct {
	UpdateData    []string `json:"update_data"`
	PaidFeeMicros int64    `json:"paid_fee_micros"`
	Payer         string   `json:"payer"`
}

// CommitmentRequest publica o hash de compromisso (modo commit-reveal).
type CommitmentRequest struct {
	CommitmentHex string `json:"commitment_hex"` // 32 bytes em hex
}

// ResolveRequest carrega a evidência da variante ativa:
//   - admin:         winner
//   - commit-reveal: winner + salt_hex
//   - oracle:        update_data + paid_fee_micros + payer
type ResolveRequest struct {
	Winner        *int     `json:"winner,omitempty"`
	SaltHex       string   `json:"salt_hex,omitempty"` // 32 bytes em hex
	UpdateData    []string `json:"update_data,omitempty"`
	PaidFeeMicros int64    `json:"paid_fee_micros,omitempty"`
	Payer         string   `json:"payer,omitempty"`
}

type ClaimRequest struct {
	UserID string `json:"userId"`
}

type RefundRequest struct {
	UserID string `json:"userId"`
}

type FeeRecipientRequest struct {
	Recipient string `json:"recipient"`
}
