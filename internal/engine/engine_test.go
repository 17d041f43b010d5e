package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/radieske/coin-battle-poc/internal/auth"
	"github.com/radieske/coin-battle-poc/internal/oracle"
	"github.com/radieske/coin-battle-poc/pkg/contracts/events"
)

const (
	opKey = "op-test"
	unit  = int64(1_000_000) // 1 unidade nativa em micros
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Unix(1_700_000_000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

type transferRec struct {
	to     string
	amount int64
	ref    string
}

type fakeBank struct {
	mu        sync.Mutex
	transfers []transferRec
	failures  int // próximas N transferências falham
}

func (b *fakeBank) Transfer(_ context.Context, to string, amount int64, ref string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failures > 0 {
		b.failures--
		return errors.New("bank unavailable")
	}
	b.transfers = append(b.transfers, transferRec{to: to, amount: amount, ref: ref})
	return nil
}

func (b *fakeBank) total(to string) int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	var sum int64
	for _, tr := range b.transfers {
		if tr.to == to {
			sum += tr.amount
		}
	}
	return sum
}

func (b *fakeBank) count() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.transfers)
}

type fakeOracle struct {
	mu     sync.Mutex
	fee    int64
	prices map[string]oracle.PriceData
	fail   map[string]error
}

func newFakeOracle() *fakeOracle {
	return &fakeOracle{
		fee:    10,
		prices: make(map[string]oracle.PriceData),
		fail:   make(map[string]error),
	}
}

func (o *fakeOracle) setPrice(feed string, price int64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.prices[feed] = oracle.PriceData{Price: price, Expo: 0}
}

func (o *fakeOracle) UpdateFee(context.Context, [][]byte) (int64, error) {
	return o.fee, nil
}

func (o *fakeOracle) ApplyUpdate(_ context.Context, _ [][]byte, feeMicros int64) error {
	if feeMicros < o.fee {
		return oracle.ErrFeeTooLow
	}
	return nil
}

func (o *fakeOracle) PriceNoOlderThan(_ context.Context, feedID string, _ time.Duration) (oracle.PriceData, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if err, ok := o.fail[feedID]; ok {
		return oracle.PriceData{}, err
	}
	pd, ok := o.prices[feedID]
	if !ok {
		return oracle.PriceData{}, oracle.ErrFeedNotFound
	}
	return pd, nil
}

type recPub struct {
	mu   sync.Mutex
	envs []events.Envelope
}

func (p *recPub) PublishRoundEvent(_ context.Context, env events.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.envs = append(p.envs, env)
	return nil
}

func (p *recPub) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.envs))
	for i, e := range p.envs {
		out[i] = e.Type
	}
	return out
}

type fixture struct {
	eng   *Engine
	clock *fakeClock
	bank  *fakeBank
	orc   *fakeOracle
	pub   *recPub
}

func newFixture(t *testing.T, mode string) *fixture {
	t.Helper()
	clock := newFakeClock()
	bk := &fakeBank{}
	orc := newFakeOracle()
	pub := &recPub{}

	res, err := NewResolver(mode, orc, time.Hour)
	if err != nil {
		t.Fatalf("resolver: %v", err)
	}
	maxCoins := 20
	if mode == modeOracle {
		maxCoins = 10
	}
	eng := New(Params{
		Mode:             mode,
		FeeBps:           500,
		MinRoundDuration: time.Hour,
		RefundTimeout:    7 * 24 * time.Hour,
		MaxCoins:         maxCoins,
		MinStakeMicros:   1000,
	}, auth.NewStaticGate([]string{opKey}), bk, res, pub, "treasury", zap.NewNop())
	eng.WithClock(clock.Now)

	return &fixture{eng: eng, clock: clock, bank: bk, orc: orc, pub: pub}
}

func (f *fixture) createRound(t *testing.T, symbols, feeds []string) RoundInfo {
	t.Helper()
	info, err := f.eng.CreateRound(context.Background(), opKey, symbols, feeds, 2*time.Hour)
	if err != nil {
		t.Fatalf("create round: %v", err)
	}
	return info
}

func (f *fixture) wager(t *testing.T, user string, roundID uint64, coin int, amount int64) {
	t.Helper()
	if _, err := f.eng.PlaceWager(context.Background(), user, roundID, coin, amount); err != nil {
		t.Fatalf("wager %s: %v", user, err)
	}
}

func TestCreateRoundValidation(t *testing.T) {
	f := newFixture(t, modeAdmin)
	ctx := context.Background()

	if _, err := f.eng.CreateRound(ctx, "intruso", []string{"A", "B"}, nil, 2*time.Hour); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("esperado ErrNotAuthorized, veio %v", err)
	}
	if _, err := f.eng.CreateRound(ctx, opKey, []string{"A", "B"}, nil, 30*time.Minute); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("esperado ErrInvalidDuration, veio %v", err)
	}
	if _, err := f.eng.CreateRound(ctx, opKey, []string{"A"}, nil, 2*time.Hour); !errors.Is(err, ErrCoinCount) {
		t.Fatalf("esperado ErrCoinCount, veio %v", err)
	}
	many := make([]string, 21)
	for i := range many {
		many[i] = "C"
	}
	if _, err := f.eng.CreateRound(ctx, opKey, many, nil, 2*time.Hour); !errors.Is(err, ErrCoinCount) {
		t.Fatalf("esperado ErrCoinCount, veio %v", err)
	}

	a := f.createRound(t, []string{"A", "B"}, nil)
	b := f.createRound(t, []string{"C", "D"}, nil)
	if a.ID != 1 || b.ID != 2 {
		t.Fatalf("ids não monotônicos: %d, %d", a.ID, b.ID)
	}
}

func TestCreateRoundFeedMismatch(t *testing.T) {
	f := newFixture(t, modeOracle)
	ctx := context.Background()

	if _, err := f.eng.CreateRound(ctx, opKey, []string{"A", "B"}, []string{"fa"}, 2*time.Hour); !errors.Is(err, ErrFeedMismatch) {
		t.Fatalf("esperado ErrFeedMismatch, veio %v", err)
	}
	if _, err := f.eng.CreateRound(ctx, opKey, []string{"A", "B"}, []string{"fa", ""}, 2*time.Hour); !errors.Is(err, ErrFeedMismatch) {
		t.Fatalf("esperado ErrFeedMismatch, veio %v", err)
	}
	if _, err := f.eng.CreateRound(ctx, opKey, []string{"A", "B"}, []string{"fa", "fb"}, 2*time.Hour); err != nil {
		t.Fatalf("create: %v", err)
	}
}

func TestPlaceWagerValidation(t *testing.T) {
	f := newFixture(t, modeAdmin)
	ctx := context.Background()
	r := f.createRound(t, []string{"A", "B", "C"}, nil)

	if _, err := f.eng.PlaceWager(ctx, "alice", 99, 0, unit); !errors.Is(err, ErrRoundNotFound) {
		t.Fatalf("esperado ErrRoundNotFound, veio %v", err)
	}
	if _, err := f.eng.PlaceWager(ctx, "alice", r.ID, 3, unit); !errors.Is(err, ErrInvalidCoinIndex) {
		t.Fatalf("esperado ErrInvalidCoinIndex, veio %v", err)
	}
	if _, err := f.eng.PlaceWager(ctx, "alice", r.ID, 0, 999); !errors.Is(err, ErrStakeTooSmall) {
		t.Fatalf("esperado ErrStakeTooSmall, veio %v", err)
	}

	f.wager(t, "alice", r.ID, 0, unit)
	// segunda aposta na mesma moeda acumula; em moeda diferente rejeita
	f.wager(t, "alice", r.ID, 0, unit)
	if _, err := f.eng.PlaceWager(ctx, "alice", r.ID, 1, unit); !errors.Is(err, ErrCoinMismatch) {
		t.Fatalf("esperado ErrCoinMismatch, veio %v", err)
	}

	w, err := f.eng.GetWager(r.ID, "alice")
	if err != nil {
		t.Fatalf("get wager: %v", err)
	}
	if w.AmountMicros != 2*unit || w.CoinIndex != 0 {
		t.Fatalf("wager acumulado errado: %+v", w)
	}

	f.clock.Advance(3 * time.Hour)
	if _, err := f.eng.PlaceWager(ctx, "bob", r.ID, 1, unit); !errors.Is(err, ErrBettingClosed) {
		t.Fatalf("esperado ErrBettingClosed, veio %v", err)
	}
}

// Aposta rejeitada não pode alterar nenhum total.
func TestRejectedWagerChangesNothing(t *testing.T) {
	f := newFixture(t, modeAdmin)
	r := f.createRound(t, []string{"A", "B"}, nil)
	f.wager(t, "alice", r.ID, 0, unit)

	if _, err := f.eng.PlaceWager(context.Background(), "bob", r.ID, 1, 1); !errors.Is(err, ErrStakeTooSmall) {
		t.Fatalf("esperado ErrStakeTooSmall, veio %v", err)
	}

	info, _ := f.eng.GetRound(r.ID)
	if info.TotalPotMicros != unit {
		t.Fatalf("pote mudou após rejeição: %d", info.TotalPotMicros)
	}
	if _, err := f.eng.GetWager(r.ID, "bob"); !errors.Is(err, ErrNothingStaked) {
		t.Fatalf("wager fantasma para bob: %v", err)
	}
}

// Conservação: totalPot == Σ coinTotals em todo momento.
func TestPotConservation(t *testing.T) {
	f := newFixture(t, modeAdmin)
	r := f.createRound(t, []string{"A", "B", "C"}, nil)

	stakes := []struct {
		user   string
		coin   int
		amount int64
	}{
		{"alice", 0, 3 * unit},
		{"bob", 1, unit},
		{"carol", 2, 2 * unit},
		{"alice", 0, unit},
		{"dave", 1, 5 * unit},
	}
	for _, s := range stakes {
		f.wager(t, s.user, r.ID, s.coin, s.amount)

		info, _ := f.eng.GetRound(r.ID)
		var sum int64
		for _, ct := range info.CoinTotalsMicros {
			sum += ct
		}
		if sum != info.TotalPotMicros {
			t.Fatalf("conservação violada: pote %d, soma %d", info.TotalPotMicros, sum)
		}
	}

	info, _ := f.eng.GetRound(r.ID)
	if info.TotalPotMicros != 12*unit {
		t.Fatalf("pote final %d, esperado %d", info.TotalPotMicros, 12*unit)
	}
}

func TestCancelRound(t *testing.T) {
	f := newFixture(t, modeAdmin)
	ctx := context.Background()
	r := f.createRound(t, []string{"A", "B"}, nil)
	f.wager(t, "alice", r.ID, 0, unit)

	if err := f.eng.CancelRound(ctx, "intruso", r.ID); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("esperado ErrNotAuthorized, veio %v", err)
	}
	// cancelamento vale mesmo antes do deadline
	if err := f.eng.CancelRound(ctx, opKey, r.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if err := f.eng.CancelRound(ctx, opKey, r.ID); !errors.Is(err, ErrRoundCancelled) {
		t.Fatalf("esperado ErrRoundCancelled, veio %v", err)
	}
	if _, err := f.eng.PlaceWager(ctx, "bob", r.ID, 1, unit); !errors.Is(err, ErrRoundCancelled) {
		t.Fatalf("aposta em rodada cancelada: %v", err)
	}

	f.clock.Advance(3 * time.Hour)
	if _, err := f.eng.ResolveRound(ctx, r.ID, Evidence{OperatorKey: opKey, Winner: 0}); !errors.Is(err, ErrRoundCancelled) {
		t.Fatalf("resolução de rodada cancelada: %v", err)
	}
}

func TestSetFeeRecipient(t *testing.T) {
	f := newFixture(t, modeAdmin)
	ctx := context.Background()

	if err := f.eng.SetFeeRecipient(ctx, "intruso", "nova-conta"); !errors.Is(err, ErrNotAuthorized) {
		t.Fatalf("esperado ErrNotAuthorized, veio %v", err)
	}
	if err := f.eng.SetFeeRecipient(ctx, opKey, ""); !errors.Is(err, ErrInvalidRecipient) {
		t.Fatalf("esperado ErrInvalidRecipient, veio %v", err)
	}
	if err := f.eng.SetFeeRecipient(ctx, opKey, "nova-conta"); err != nil {
		t.Fatalf("set fee recipient: %v", err)
	}

	// taxa da próxima resolução vai pra conta nova
	r := f.createRound(t, []string{"A", "B"}, nil)
	f.wager(t, "alice", r.ID, 0, 2*unit)
	f.clock.Advance(3 * time.Hour)
	if _, err := f.eng.ResolveRound(ctx, r.ID, Evidence{OperatorKey: opKey, Winner: 0}); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if got := f.bank.total("nova-conta"); got != 2*unit*500/10000 {
		t.Fatalf("taxa na conta nova: %d", got)
	}
}

// Ciclo completo emite os eventos na ordem dos efeitos.
func TestEventOrdering(t *testing.T) {
	f := newFixture(t, modeAdmin)
	ctx := context.Background()
	r := f.createRound(t, []string{"A", "B"}, nil)
	f.wager(t, "alice", r.ID, 0, unit)
	f.clock.Advance(3 * time.Hour)
	if _, err := f.eng.ResolveRound(ctx, r.ID, Evidence{OperatorKey: opKey, Winner: 0}); err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if _, err := f.eng.ClaimWinnings(ctx, "alice", r.ID); err != nil {
		t.Fatalf("claim: %v", err)
	}

	want := []string{
		events.TypeRoundCreated,
		events.TypeWagerPlaced,
		events.TypeRoundResolved,
		events.TypeFeesCollected,
		events.TypeWinningsClaimed,
	}
	got := f.pub.types()
	if len(got) != len(want) {
		t.Fatalf("eventos: %v", got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("evento %d: %s, esperado %s", i, got[i], want[i])
		}
	}
}
