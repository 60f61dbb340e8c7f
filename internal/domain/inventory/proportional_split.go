package inventory

import (
	"github.com/jhoicas/stock-ledger/internal/domain"
	"github.com/shopspring/decimal"
)

// splitPlaces decimales usados para la parte proporcional; el residuo se reparte en orden.
const splitPlaces int32 = 4

// SplitProportionally reparte total entre capacities en proporción a cada capacidad.
// Cada parte se trunca a splitPlaces decimales y nunca excede su capacidad; el residuo
// se asigna en orden a las primeras posiciones con holgura, de modo que la suma es exactamente total.
func SplitProportionally(total decimal.Decimal, capacities []decimal.Decimal) ([]decimal.Decimal, error) {
	sum := decimal.Zero
	for _, c := range capacities {
		if c.IsNegative() {
			return nil, domain.ErrInvalidInput
		}
		sum = sum.Add(c)
	}
	if total.IsNegative() || total.GreaterThan(sum) {
		return nil, domain.ErrInvalidInput
	}
	shares := make([]decimal.Decimal, len(capacities))
	if total.Equal(sum) {
		copy(shares, capacities)
		return shares, nil
	}
	assigned := decimal.Zero
	for i, c := range capacities {
		if sum.IsZero() {
			shares[i] = decimal.Zero
			continue
		}
		s := c.Mul(total).Div(sum).Truncate(splitPlaces)
		shares[i] = decimal.Min(s, c)
		assigned = assigned.Add(shares[i])
	}
	leftover := total.Sub(assigned)
	for i, c := range capacities {
		if !leftover.IsPositive() {
			break
		}
		room := c.Sub(shares[i])
		add := decimal.Min(room, leftover)
		shares[i] = shares[i].Add(add)
		leftover = leftover.Sub(add)
	}
	return shares, nil
}
