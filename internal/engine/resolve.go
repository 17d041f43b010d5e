package engine

import (
	"context"
	"encoding/hex"
	"errors"
	"math/big"

	"go.uber.org/zap"

	"github.com/radieske/coin-battle-poc/internal/engine/pricemath"
	"github.com/radieske/coin-battle-poc/pkg/contracts/events"
)

// CommitWinner publica o compromisso do vencedor (modo commit-reveal), uma
// única vez por rodada, antes do deadline. Operação privilegiada: vincula o
// resolvedor a uma escolha antes do fechamento das apostas sem revelá-la.
func (e *Engine) CommitWinner(ctx context.Context, operatorKey string, roundID uint64, commitment [32]byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.resolver.Mode() != modeCommitReveal {
		return ErrUnsupportedMode
	}
	if !e.gate.IsAuthorized(operatorKey) {
		return ErrNotAuthorized
	}
	r, ok := e.rounds[roundID]
	if !ok {
		return ErrRoundNotFound
	}
	if r.cancelled {
		return ErrRoundCancelled
	}
	if r.resolved {
		return ErrRoundResolved
	}
	if !e.now().Before(r.deadline) {
		return ErrBettingClosed
	}
	if r.committed {
		return ErrAlreadyCommitted
	}

	r.commitment = commitment
	r.committed = true

	e.log.Info("winner committed", zap.Uint64("round_id", roundID))
	e.emit(ctx, events.TypeWinnerCommitted, roundID, events.WinnerCommitted{
		RoundID:       roundID,
		CommitmentHex: hex.EncodeToString(commitment[:]),
	})
	return nil
}

// SnapshotPrices grava os preços iniciais de todas as moedas (modo oracle).
// Permissionless, uma vez por rodada, antes do deadline. Cobra a taxa de
// atualização do oráculo e devolve o troco do pagamento; exige amostra
// fresca de todos os feeds.
func (e *Engine) SnapshotPrices(ctx context.Context, roundID uint64, ev Evidence) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	or, ok := e.resolver.(*oracleResolver)
	if !ok {
		return ErrUnsupportedMode
	}
	r, exists := e.rounds[roundID]
	if !exists {
		return ErrRoundNotFound
	}
	if r.cancelled {
		return ErrRoundCancelled
	}
	if r.resolved {
		return ErrRoundResolved
	}
	if !e.now().Before(r.deadline) {
		return ErrBettingClosed
	}
	if r.snapshotted {
		return ErrAlreadySnapshotted
	}

	excess, err := or.chargeUpdate(ctx, ev)
	if err != nil {
		return err
	}

	startPrices := make([]*big.Int, len(r.coins))
	for i, c := range r.coins {
		pd, err := or.cli.PriceNoOlderThan(ctx, c.feedID, or.maxAge)
		if err != nil {
			return err
		}
		p, err := pricemath.Normalize(pd.Price, pd.Expo)
		if err != nil {
			return err
		}
		startPrices[i] = p
	}

	// troco antes do commit: se a devolução falhar, nada é gravado
	if excess > 0 && ev.Payer != "" {
		if err := e.bank.Transfer(ctx, ev.Payer, excess, transferRef("oracle-change", roundID)); err != nil {
			metricTransferFailures.Inc()
			return errors.Join(ErrTransferFailed, err)
		}
	}

	priceStrs := make([]string, len(startPrices))
	for i, p := range startPrices {
		r.coins[i].startPrice = p
		priceStrs[i] = p.String()
	}
	r.snapshotted = true

	e.log.Info("prices snapshotted", zap.Uint64("round_id", roundID))
	e.emit(ctx, events.TypePricesSnapshotted, roundID, events.PricesSnapshotted{
		RoundID:     roundID,
		StartPrices: priceStrs,
	})
	return nil
}

// ResolveRound determina o vencedor pela estratégia da implantação e comita,
// no mesmo passo atômico, o índice vencedor, o pool vencedor e a taxa da
// plataforma. Se a transferência da taxa falhar a resolução inteira aborta e
// a rodada continua resolvível. No modo oracle a estratégia pode, em vez de
// resolver, cancelar a rodada (nenhuma moeda com apostador) — válvula de
// escape permissionless, auditada como round_cancelled reason=no_stakers.
func (e *Engine) ResolveRound(ctx context.Context, roundID uint64, ev Evidence) (RoundInfo, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	r, ok := e.rounds[roundID]
	if !ok {
		return RoundInfo{}, ErrRoundNotFound
	}
	if r.cancelled {
		return RoundInfo{}, ErrRoundCancelled
	}
	if r.resolved {
		return RoundInfo{}, ErrRoundResolved
	}
	if e.now().Before(r.deadline) {
		return RoundInfo{}, ErrBettingOpen
	}

	out, err := e.resolver.resolve(ctx, e, r, ev)
	if err != nil {
		return RoundInfo{}, err
	}

	// troco da taxa do oráculo: devolvido em todo caminho sem erro,
	// inclusive no cancelamento
	if out.refundMicros > 0 && out.refundTo != "" {
		if err := e.bank.Transfer(ctx, out.refundTo, out.refundMicros, transferRef("oracle-change", roundID)); err != nil {
			metricTransferFailures.Inc()
			return RoundInfo{}, errors.Join(ErrTransferFailed, err)
		}
	}

	if out.cancel {
		r.cancelled = true
		metricRoundsCancelled.Inc()
		e.log.Info("round cancelled", zap.Uint64("round_id", roundID), zap.String("reason", "no_stakers"))
		e.emit(ctx, events.TypeRoundCancelled, roundID, events.RoundCancelled{RoundID: roundID, Reason: "no_stakers"})
		return r.view(), nil
	}

	// taxa paga no mesmo passo atômico que marca resolved: transferência
	// primeiro, estado gravado só depois do sucesso
	fee := platformFee(r.totalPot, e.params.FeeBps)
	if fee > 0 {
		if err := e.bank.Transfer(ctx, e.feeRecipient, fee, transferRef("fee", roundID)); err != nil {
			metricTransferFailures.Inc()
			return RoundInfo{}, errors.Join(ErrTransferFailed, err)
		}
	}

	r.winnerIndex = out.winner
	r.winningBps = out.winningBps
	r.winningPool = r.coinTotals[out.winner]
	for i, p := range out.endPrices {
		r.coins[i].endPrice = p
	}
	r.resolved = true

	metricRoundsResolved.Inc()
	e.log.Info("round resolved",
		zap.Uint64("round_id", roundID),
		zap.Int("winner_index", out.winner),
		zap.String("winner_symbol", r.coins[out.winner].symbol),
		zap.Int64("fee_micros", fee),
	)
	e.emit(ctx, events.TypeRoundResolved, roundID, events.RoundResolved{
		RoundID:            roundID,
		WinnerIndex:        out.winner,
		WinnerSymbol:       r.coins[out.winner].symbol,
		WinningBps:         out.winningBps,
		TotalPotMicros:     r.totalPot,
		FeeMicros:          fee,
		PotAfterFeesMicros: r.totalPot - fee,
		WinningPoolMicros:  r.winningPool,
	})
	e.emit(ctx, events.TypeFeesCollected, roundID, events.FeesCollected{
		RoundID:      roundID,
		Recipient:    e.feeRecipient,
		AmountMicros: fee,
	})
	return r.view(), nil
}
