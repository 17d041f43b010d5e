package pricemath

import (
	"errors"
	"math/big"
)

// Escala de ponto fixo usada internamente: 18 casas fracionárias.
const FixedDecimals = 18

var ErrInvalidPrice = errors.New("invalid price")

var ten = big.NewInt(10)

// pow10 retorna 10^n como big.Int (n >= 0).
func pow10(n int64) *big.Int {
	return new(big.Int).Exp(ten, big.NewInt(n), nil)
}

// Normalize converte um preço cru (price × 10^expo, formato típico dos feeds)
// para a escala fixa de 18 casas fracionárias, permitindo comparar preços
// publicados com expoentes heterogêneos.
//
// Regras:
//   - expo >= 0              → multiplica por 10^(18+expo)
//   - -18 <= expo < 0        → multiplica por 10^(18-|expo|)
//   - |expo| > 18            → divide (inteiro, truncando) por 10^(|expo|-18)
//
// Preço não positivo é inválido: um feed de oráculo saudável nunca publica
// zero ou negativo, então isso precisa abortar a operação do chamador.
func Normalize(price int64, expo int32) (*big.Int, error) {
	if price <= 0 {
		return nil, ErrInvalidPrice
	}

	p := big.NewInt(price)
	e := int64(expo)

	if e >= 0 {
		return p.Mul(p, pow10(FixedDecimals+e)), nil
	}
	if -e <= FixedDecimals {
		return p.Mul(p, pow10(FixedDecimals+e)), nil
	}
	// |expo| > 18: reduz escala truncando em direção a zero
	return p.Quo(p, pow10(-e-FixedDecimals)), nil
}

// ChangeBps calcula a variação percentual de start até end em basis points
// (1/10000), com divisão inteira truncando: ((end-start) * 10000) / start.
// Positivo para ganho, negativo para perda. start deve ser > 0 (garantido
// pelo Normalize na gravação do preço inicial).
func ChangeBps(start, end *big.Int) int64 {
	diff := new(big.Int).Sub(end, start)
	diff.Mul(diff, big.NewInt(10000))
	diff.Quo(diff, start)
	return diff.Int64()
}
