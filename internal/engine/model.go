package engine

import (
	"math/big"
	"time"
)

// coin é uma opção da rodada. Preços só existem no modo oracle e, uma vez
// gravados, nunca mudam.
type coin struct {
	symbol     string
	feedID     string
	startPrice *big.Int // escala fixa 1e18; nil até o snapshot
	endPrice   *big.Int // escala fixa 1e18; nil até a resolução
}

// round é o estado interno de uma rodada. Mutação só acontece com o mutex do
// engine em mãos; resolved e cancelled são terminais e mutuamente exclusivos.
type round struct {
	id         uint64
	coins      []coin
	deadline   time.Time
	totalPot   int64
	coinTotals []int64

	snapshotted bool
	committed   bool
	commitment  [32]byte

	resolved    bool
	cancelled   bool
	winnerIndex int
	winningBps  *int64 // só no modo oracle
	winningPool int64  // total apostado na moeda vencedora, congelado na resolução
}

// wager é a aposta acumulada de um usuário em uma rodada. coinIndex é fixado
// na primeira aposta; claimed e refunded são terminais e mutuamente exclusivos.
type wager struct {
	coinIndex int
	amount    int64
	claimed   bool
	refunded  bool
}

type wagerKey struct {
	roundID uint64
	userID  string
}

// CoinInfo é a visão externa de uma moeda. Preços na escala 1e18 serializados
// como string decimal (vazia enquanto não gravados).
type CoinInfo struct {
	Symbol     string `json:"symbol"`
	FeedID     string `json:"feed_id,omitempty"`
	StartPrice string `json:"start_price,omitempty"`
	EndPrice   string `json:"end_price,omitempty"`
}

// RoundInfo é o snapshot de leitura de uma rodada.
type RoundInfo struct {
	ID                uint64     `json:"id"`
	Coins             []CoinInfo `json:"coins"`
	Deadline          time.Time  `json:"deadline"`
	TotalPotMicros    int64      `json:"total_pot_micros"`
	CoinTotalsMicros  []int64    `json:"coin_totals_micros"`
	PricesSnapshotted bool       `json:"prices_snapshotted"`
	WinnerCommitted   bool       `json:"winner_committed"`
	Resolved          bool       `json:"resolved"`
	Cancelled         bool       `json:"cancelled"`
	WinnerIndex       *int       `json:"winner_index,omitempty"`
	WinningBps        *int64     `json:"winning_bps,omitempty"`
	WinningPoolMicros int64      `json:"winning_pool_micros,omitempty"`
}

// WagerInfo é a visão externa de uma aposta.
type WagerInfo struct {
	RoundID      uint64 `json:"round_id"`
	UserID       string `json:"user_id"`
	CoinIndex    int    `json:"coin_index"`
	AmountMicros int64  `json:"amount_micros"`
	Claimed      bool   `json:"claimed"`
	Refunded     bool   `json:"refunded"`
}

func (r *round) view() RoundInfo {
	info := RoundInfo{
		ID:                r.id,
		Coins:             make([]CoinInfo, len(r.coins)),
		Deadline:          r.deadline,
		TotalPotMicros:    r.totalPot,
		CoinTotalsMicros:  append([]int64(nil), r.coinTotals...),
		PricesSnapshotted: r.snapshotted,
		WinnerCommitted:   r.committed,
		Resolved:          r.resolved,
		Cancelled:         r.cancelled,
	}
	for i, c := range r.coins {
		ci := CoinInfo{Symbol: c.symbol, FeedID: c.feedID}
		if c.startPrice != nil {
			ci.StartPrice = c.startPrice.String()
		}
		if c.endPrice != nil {
			ci.EndPrice = c.endPrice.String()
		}
		info.Coins[i] = ci
	}
	if r.resolved {
		idx := r.winnerIndex
		info.WinnerIndex = &idx
		info.WinningBps = r.winningBps
		info.WinningPoolMicros = r.winningPool
	}
	return info
}
