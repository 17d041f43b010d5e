package engine

import "math/big"

// Aritmética de liquidação. Funções puras sobre os dados do ledger; toda
// divisão é inteira e trunca em direção a zero. As contas passam por big.Int
// porque amount × pote estoura int64 muito antes dos valores estourarem.

const bpsDenominator = 10000

// platformFee calcula a taxa da plataforma sobre o pote total.
func platformFee(totalPot, feeBps int64) int64 {
	f := big.NewInt(totalPot)
	f.Mul(f, big.NewInt(feeBps))
	f.Quo(f, big.NewInt(bpsDenominator))
	return f.Int64()
}

// payoutShare calcula a parte proporcional de uma aposta vencedora:
// amount × potAfterFees / winningPool.
func payoutShare(amount, potAfterFees, winningPool int64) int64 {
	s := big.NewInt(amount)
	s.Mul(s, big.NewInt(potAfterFees))
	s.Quo(s, big.NewInt(winningPool))
	return s.Int64()
}
