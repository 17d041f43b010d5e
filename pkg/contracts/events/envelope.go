package events

import (
	"encoding/json"
	"time"
)

// Tipos de evento emitidos pelo settlement engine.
// Cada operação mutadora emite exatamente um evento principal,
// na ordem em que os efeitos acontecem.
const (
	TypeRoundCreated       = "round_created"
	TypePricesSnapshotted  = "prices_snapshotted"
	TypeWagerPlaced        = "wager_placed"
	TypeWinnerCommitted    = "winner_committed"
	TypeRoundResolved      = "round_resolved"
	TypeFeesCollected      = "fees_collected"
	TypeWinningsClaimed    = "winnings_claimed"
	TypeRefundIssued       = "refund_issued"
	TypeFeeRecipientChange = "fee_recipient_changed"
	TypeRoundCancelled     = "round_cancelled"
)

// Envelope é o formato publicado no tópico round_events.
// Payload carrega o evento concreto serializado em JSON.
type Envelope struct {
	Type     string          `json:"type"`
	RoundID  uint64          `json:"round_id"`
	TsUnixMs int64           `json:"ts_unix_ms"`
	Payload  json.RawMessage `json:"payload"`
}

// Wrap monta um Envelope serializando o payload do evento.
func Wrap(evType string, roundID uint64, payload any) Envelope {
	b, _ := json.Marshal(payload)
	return Envelope{
		Type:     evType,
		RoundID:  roundID,
		TsUnixMs: time.Now().UnixMilli(),
		Payload:  b,
	}
}
