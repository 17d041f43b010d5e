package engine

import (
	"context"
	"errors"
	"testing"
	"time"
)

func resolvedRound(t *testing.T, f *fixture, stakes map[string]struct {
	coin   int
	amount int64
}, winner int) uint64 {
	t.Helper()
	r := f.createRound(t, []string{"A", "B"}, nil)
	for user, s := range stakes {
		f.wager(t, user, r.ID, s.coin, s.amount)
	}
	f.clock.Advance(3 * time.Hour)
	if _, err := f.eng.ResolveRound(context.Background(), r.ID, Evidence{OperatorKey: opKey, Winner: winner}); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	return r.ID
}

func TestClaimWinnings(t *testing.T) {
	f := newFixture(t, modeAdmin)
	ctx := context.Background()

	// três apostas de 1 unidade, duas na vencedora: pote líquido 2.85, cada
	// vencedor leva metade
	id := resolvedRound(t, f, map[string]struct {
		coin   int
		amount int64
	}{
		"alice": {0, unit},
		"bob":   {0, unit},
		"carol": {1, unit},
	}, 0)

	paid, err := f.eng.ClaimWinnings(ctx, "alice", id)
	if err != nil {
		t.Fatalf("claim alice: %v", err)
	}
	if paid != 1_425_000 {
		t.Fatalf("payout alice: %d", paid)
	}
	if got := f.bank.total("alice"); got != 1_425_000 {
		t.Fatalf("crédito no banco: %d", got)
	}

	// claim duplicado não gera segunda transferência
	before := f.bank.count()
	if _, err := f.eng.ClaimWinnings(ctx, "alice", id); !errors.Is(err, ErrAlreadyClaimed) {
		t.Fatalf("esperado ErrAlreadyClaimed, veio %v", err)
	}
	if f.bank.count() != before {
		t.Fatal("transferência extra em claim duplicado")
	}

	if _, err := f.eng.ClaimWinnings(ctx, "carol", id); !errors.Is(err, ErrNotWinner) {
		t.Fatalf("esperado ErrNotWinner, veio %v", err)
	}
	if _, err := f.eng.ClaimWinnings(ctx, "dave", id); !errors.Is(err, ErrNothingStaked) {
		t.Fatalf("esperado ErrNothingStaked, veio %v", err)
	}
	if _, err := f.eng.ClaimWinnings(ctx, "bob", 99); !errors.Is(err, ErrRoundNotFound) {
		t.Fatalf("esperado ErrRoundNotFound, veio %v", err)
	}
}

func TestClaimBeforeResolution(t *testing.T) {
	f := newFixture(t, modeAdmin)
	r := f.createRound(t, []string{"A", "B"}, nil)
	f.wager(t, "alice", r.ID, 0, unit)

	if _, err := f.eng.ClaimWinnings(context.Background(), "alice", r.ID); !errors.Is(err, ErrRoundNotResolved) {
		t.Fatalf("esperado ErrRoundNotResolved, veio %v", err)
	}
}

// Falha na transferência desfaz a flag claimed; retry paga normalmente.
func TestClaimTransferFailureRollback(t *testing.T) {
	f := newFixture(t, modeAdmin)
	ctx := context.Background()
	id := resolvedRound(t, f, map[string]struct {
		coin   int
		amount int64
	}{"alice": {0, unit}}, 0)

	f.bank.failures = 1
	if _, err := f.eng.ClaimWinnings(ctx, "alice", id); !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("esperado ErrTransferFailed, veio %v", err)
	}
	w, _ := f.eng.GetWager(id, "alice")
	if w.Claimed {
		t.Fatal("flag claimed não desfeita após falha")
	}

	paid, err := f.eng.ClaimWinnings(ctx, "alice", id)
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if paid != 950_000 {
		t.Fatalf("payout: %d", paid)
	}
}

// A divisão inteira trunca cada parte: a sobra fica retida, nunca é paga a mais.
func TestClaimTruncation(t *testing.T) {
	f := newFixture(t, modeAdmin)
	ctx := context.Background()
	id := resolvedRound(t, f, map[string]struct {
		coin   int
		amount int64
	}{
		"alice": {0, 1000},
		"bob":   {0, 1000},
		"carol": {0, 1000},
		"dave":  {1, 7001},
	}, 0)

	// pote 10001, taxa 5% = 500 (trunca), líquido 9501; cada vencedor:
	// 1000×9501/3000 = 3167 (trunca)
	total := int64(0)
	for _, u := range []string{"alice", "bob", "carol"} {
		paid, err := f.eng.ClaimWinnings(ctx, u, id)
		if err != nil {
			t.Fatalf("claim %s: %v", u, err)
		}
		if paid != 3167 {
			t.Fatalf("payout %s: %d", u, paid)
		}
		total += paid
	}
	if total > 9501 {
		t.Fatalf("payouts excedem o pote líquido: %d", total)
	}
}

func TestRefundAfterCancel(t *testing.T) {
	f := newFixture(t, modeAdmin)
	ctx := context.Background()
	r := f.createRound(t, []string{"A", "B"}, nil)
	f.wager(t, "alice", r.ID, 0, 3*unit)
	f.wager(t, "bob", r.ID, 1, unit)

	if err := f.eng.CancelRound(ctx, opKey, r.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	// cancelamento libera o estorno na hora, sem esperar timeout
	got, err := f.eng.EmergencyRefund(ctx, "alice", r.ID)
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if got != 3*unit {
		t.Fatalf("estorno: %d", got)
	}

	before := f.bank.count()
	if _, err := f.eng.EmergencyRefund(ctx, "alice", r.ID); !errors.Is(err, ErrAlreadyRefunded) {
		t.Fatalf("esperado ErrAlreadyRefunded, veio %v", err)
	}
	if f.bank.count() != before {
		t.Fatal("transferência extra em estorno duplicado")
	}

	if _, err := f.eng.EmergencyRefund(ctx, "carol", r.ID); !errors.Is(err, ErrNothingStaked) {
		t.Fatalf("esperado ErrNothingStaked, veio %v", err)
	}
}

func TestRefundTimeout(t *testing.T) {
	f := newFixture(t, modeAdmin)
	ctx := context.Background()
	r := f.createRound(t, []string{"A", "B"}, nil)
	f.wager(t, "alice", r.ID, 0, unit)

	// rodada viva, prazo ainda correndo
	if _, err := f.eng.EmergencyRefund(ctx, "alice", r.ID); !errors.Is(err, ErrRefundTooEarly) {
		t.Fatalf("esperado ErrRefundTooEarly, veio %v", err)
	}
	f.clock.Advance(2*time.Hour + 6*24*time.Hour)
	if _, err := f.eng.EmergencyRefund(ctx, "alice", r.ID); !errors.Is(err, ErrRefundTooEarly) {
		t.Fatalf("antes de deadline+timeout: %v", err)
	}

	// passou deadline + timeout sem resolução: estorno liberado
	f.clock.Advance(25 * time.Hour)
	got, err := f.eng.EmergencyRefund(ctx, "alice", r.ID)
	if err != nil {
		t.Fatalf("refund: %v", err)
	}
	if got != unit {
		t.Fatalf("estorno: %d", got)
	}
}

func TestRefundResolvedRoundRejected(t *testing.T) {
	f := newFixture(t, modeAdmin)
	ctx := context.Background()
	id := resolvedRound(t, f, map[string]struct {
		coin   int
		amount int64
	}{"alice": {0, unit}}, 0)

	// rodada resolvida nunca estorna, nem depois do timeout
	f.clock.Advance(30 * 24 * time.Hour)
	if _, err := f.eng.EmergencyRefund(ctx, "alice", id); !errors.Is(err, ErrRoundResolved) {
		t.Fatalf("esperado ErrRoundResolved, veio %v", err)
	}
}

func TestRefundTransferFailureRollback(t *testing.T) {
	f := newFixture(t, modeAdmin)
	ctx := context.Background()
	r := f.createRound(t, []string{"A", "B"}, nil)
	f.wager(t, "alice", r.ID, 0, unit)
	if err := f.eng.CancelRound(ctx, opKey, r.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}

	f.bank.failures = 1
	if _, err := f.eng.EmergencyRefund(ctx, "alice", r.ID); !errors.Is(err, ErrTransferFailed) {
		t.Fatalf("esperado ErrTransferFailed, veio %v", err)
	}
	w, _ := f.eng.GetWager(r.ID, "alice")
	if w.Refunded {
		t.Fatal("flag refunded não desfeita após falha")
	}

	if _, err := f.eng.EmergencyRefund(ctx, "alice", r.ID); err != nil {
		t.Fatalf("retry: %v", err)
	}
	if got := f.bank.total("alice"); got != unit {
		t.Fatalf("crédito: %d", got)
	}
}

// Depois do claim não há estorno, e vice-versa.
func TestClaimRefundExclusive(t *testing.T) {
	f := newFixture(t, modeAdmin)
	ctx := context.Background()
	r := f.createRound(t, []string{"A", "B"}, nil)
	f.wager(t, "alice", r.ID, 0, unit)
	f.wager(t, "bob", r.ID, 0, unit)
	f.clock.Advance(3 * time.Hour)
	if _, err := f.eng.ResolveRound(ctx, r.ID, Evidence{OperatorKey: opKey, Winner: 0}); err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if _, err := f.eng.ClaimWinnings(ctx, "alice", r.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}
	if _, err := f.eng.EmergencyRefund(ctx, "alice", r.ID); !errors.Is(err, ErrRoundResolved) {
		t.Fatalf("estorno pós-claim: %v", err)
	}
}
