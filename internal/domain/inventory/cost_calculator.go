package inventory

import "github.com/shopspring/decimal"

// CostPrecision dígitos fraccionarios con que se acumula el costo promedio.
// Se redondea a la unidad monetaria sólo al reportar (RoundForReport).
const CostPrecision int32 = 8

// ReportPrecision dígitos de la unidad monetaria menor.
const ReportPrecision int32 = 2

// CostCalculator implementa la lógica de costo promedio ponderado (servicio de dominio).
// NuevoCosto = ((StockActual * CostoActual) + (CantEntrada * CostoEntrada)) / (StockActual + CantEntrada)
// Si la suma de cantidades no es positiva, el nuevo costo es el de la entrada.
func CostCalculator(stockActual, costoActual, cantEntrada, costoEntrada decimal.Decimal) decimal.Decimal {
	sum := stockActual.Add(cantEntrada)
	if sum.LessThanOrEqual(decimal.Zero) {
		return costoEntrada
	}
	num := stockActual.Mul(costoActual).Add(cantEntrada.Mul(costoEntrada))
	return num.DivRound(sum, CostPrecision)
}

// RoundForReport redondea un costo a la unidad monetaria menor.
func RoundForReport(cost decimal.Decimal) decimal.Decimal {
	return cost.Round(ReportPrecision)
}
