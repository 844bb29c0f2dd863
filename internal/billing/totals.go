package billing

import "math"

// CalculateLineTotals computes a line's base amount, tax amount and total
// from quantity, unit price and a percentage tax rate. Amounts are rounded
// to the cent.
func CalculateLineTotals(quantite, prixUnitaire, tauxTVA float64) (base, tax, total float64) {
	base = round2(quantite * prixUnitaire)
	tax = round2(base * tauxTVA / 100)
	total = round2(base + tax)
	return base, tax, total
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
