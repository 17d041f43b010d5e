package engine

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"github.com/radieske/coin-battle-poc/pkg/contracts/events"
)

// ClaimWinnings paga a parte proporcional de uma aposta vencedora:
// amount × potAfterFees / winningPool, com divisão inteira. A flag claimed é
// marcada antes da transferência e desfeita se ela falhar — o chamador pode
// tentar de novo. Claim e refund são mutuamente exclusivos por aposta.
func (e *Engine) ClaimWinnings(ctx context.Context, userID string, roundID uint64) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, ok := e.rounds[roundID]
	if !ok {
		return 0, ErrRoundNotFound
	}
	if r.cancelled {
		return 0, ErrRoundCancelled
	}
	if !r.resolved {
		return 0, ErrRoundNotResolved
	}

	key := wagerKey{roundID: roundID, userID: userID}
	w, ok := e.wagers[key]
	if !ok || w.amount == 0 {
		return 0, ErrNothingStaked
	}
	if w.coinIndex != r.winnerIndex {
		return 0, ErrNotWinner
	}
	if w.claimed {
		return 0, ErrAlreadyClaimed
	}
	if w.refunded {
		return 0, ErrAlreadyRefunded
	}

	fee := platformFee(r.totalPot, e.params.FeeBps)
	share := payoutShare(w.amount, r.totalPot-fee, r.winningPool)

	w.claimed = true
	if err := e.bank.Transfer(ctx, userID, share, transferRef("claim", roundID)); err != nil {
		w.claimed = false
		metricTransferFailures.Inc()
		return 0, errors.Join(ErrTransferFailed, err)
	}

	metricClaimsPaid.Inc()
	e.log.Info("winnings claimed",
		zap.Uint64("round_id", roundID),
		zap.String("user_id", userID),
		zap.Int64("amount_micros", share),
	)
	e.emit(ctx, events.TypeWinningsClaimed, roundID, events.WinningsClaimed{
		RoundID:      roundID,
		UserID:       userID,
		AmountMicros: share,
	})
	return share, nil
}

// EmergencyRefund devolve o valor integral de uma aposta quando a rodada foi
// cancelada, ou quando o prazo de resolução estourou (deadline + timeout) sem
// resolução. Mesma disciplina do claim: marca refunded, transfere, desfaz em
// caso de falha.
func (e *Engine) EmergencyRefund(ctx context.Context, userID string, roundID uint64) (int64, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, ok := e.rounds[roundID]
	if !ok {
		return 0, ErrRoundNotFound
	}
	if r.resolved {
		return 0, ErrRoundResolved
	}

	key := wagerKey{roundID: roundID, userID: userID}
	w, ok := e.wagers[key]
	if !ok || w.amount == 0 {
		return 0, ErrNothingStaked
	}
	if w.refunded {
		return 0, ErrAlreadyRefunded
	}
	if w.claimed {
		return 0, ErrAlreadyClaimed
	}
	if !r.cancelled && e.now().Before(r.deadline.Add(e.params.RefundTimeout)) {
		return 0, ErrRefundTooEarly
	}

	w.refunded = true
	if err := e.bank.Transfer(ctx, userID, w.amount, transferRef("refund", roundID)); err != nil {
		w.refunded = false
		metricTransferFailures.Inc()
		return 0, errors.Join(ErrTransferFailed, err)
	}

	metricRefundsPaid.Inc()
	e.log.Info("refund issued",
		zap.Uint64("round_id", roundID),
		zap.String("user_id", userID),
		zap.Int64("amount_micros", w.amount),
	)
	e.emit(ctx, events.TypeRefundIssued, roundID, events.RefundIssued{
		RoundID:      roundID,
		UserID:       userID,
		AmountMicros: w.amount,
	})
	return w.amount, nil
}
