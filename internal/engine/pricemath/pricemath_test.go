package pricemath

import (
	"math/big"
	"testing"
)

func mustNormalize(t *testing.T, price int64, expo int32) *big.Int {
	t.Helper()
	p, err := Normalize(price, expo)
	if err != nil {
		t.Fatalf("normalize(%d, %d): %v", price, expo, err)
	}
	return p
}

func TestNormalize(t *testing.T) {
	cases := []struct {
		name  string
		price int64
		expo  int32
		want  string
	}{
		{"expo zero", 5, 0, "5000000000000000000"},
		{"expo positivo", 5, 2, "500000000000000000000"},
		{"expo -2 (centavos)", 6512345, -2, "65123450000000000000000"},
		{"expo -8 (estilo pyth)", 6512345678901, -8, "65123456789010000000000"},
		{"expo -18 exato", 7, -18, "7"},
		{"expo -20 trunca", 123, -20, "1"},
		{"expo -20 trunca pra zero", 99, -20, "0"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := mustNormalize(t, tc.price, tc.expo)
			if got.String() != tc.want {
				t.Fatalf("got %s, want %s", got, tc.want)
			}
		})
	}
}

func TestNormalizeInvalidPrice(t *testing.T) {
	for _, price := range []int64{0, -1, -6512345} {
		if _, err := Normalize(price, -2); err != ErrInvalidPrice {
			t.Fatalf("price %d: esperado ErrInvalidPrice, veio %v", price, err)
		}
	}
}

func TestChangeBps(t *testing.T) {
	cases := []struct {
		name       string
		start, end int64
		want       int64
	}{
		{"ganho de 50%", 100, 150, 5000},
		{"ganho de 25%", 200, 250, 2500},
		{"ganho de 10%", 50, 55, 1000},
		{"perda de 20%", 100, 80, -2000},
		{"perda de 10%", 200, 180, -1000},
		{"sem variação", 100, 100, 0},
		{"trunca ganho", 3, 4, 3333},
		{"trunca perda em direção a zero", 3, 2, -3333},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			start := mustNormalize(t, tc.start, 0)
			end := mustNormalize(t, tc.end, 0)
			if got := ChangeBps(start, end); got != tc.want {
				t.Fatalf("got %d, want %d", got, tc.want)
			}
		})
	}
}

// Variação precisa ser idêntica independentemente do expoente de origem:
// 100 → 150 publicado em -2 ou -8 dá os mesmos 5000 bps.
func TestChangeBpsExponentInvariant(t *testing.T) {
	a := ChangeBps(mustNormalize(t, 10000, -2), mustNormalize(t, 15000, -2))
	b := ChangeBps(mustNormalize(t, 10000000000, -8), mustNormalize(t, 15000000000, -8))
	if a != b || a != 5000 {
		t.Fatalf("expo -2: %d, expo -8: %d, esperado 5000", a, b)
	}
}
