package engine

import "testing"

func TestPlatformFee(t *testing.T) {
	cases := []struct {
		name   string
		pot    int64
		feeBps int64
		want   int64
	}{
		{"5% redondo", 3_000_000, 500, 150_000},
		{"trunca", 10_001, 500, 500},
		{"pote pequeno vira zero", 19, 500, 0},
		{"taxa zero", 1_000_000, 0, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := platformFee(tc.pot, tc.feeBps); got != tc.want {
				t.Fatalf("got %d, want %d", got, tc.want)
			}
		})
	}
}

func TestPayoutShare(t *testing.T) {
	cases := []struct {
		name                          string
		amount, potAfterFees, winning int64
		want                          int64
	}{
		{"vencedor único leva tudo", 1_000_000, 2_850_000, 1_000_000, 2_850_000},
		{"meio a meio", 1_000_000, 1_900_000, 2_000_000, 950_000},
		{"trunca", 1000, 9501, 3000, 3167},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := payoutShare(tc.amount, tc.potAfterFees, tc.winning); got != tc.want {
				t.Fatalf("got %d, want %d", got, tc.want)
			}
		})
	}
}

// amount × pote estoura int64 com valores realistas; a conta tem que passar.
func TestPayoutShareNoOverflow(t *testing.T) {
	// pote de 9 bilhões de unidades, aposta de 4 bilhões
	const pot = int64(9_000_000_000_000_000)
	got := payoutShare(4_000_000_000_000_000, pot, 4_000_000_000_000_000)
	if got != pot {
		t.Fatalf("got %d, want %d", got, pot)
	}
}
