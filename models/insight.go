package models

// InsightReport summarises a set of collected transactions.
type InsightReport struct {
	TotalTransactions  int
	PricedTransactions int

	AveragePrice        float64
	MinPrice            float64
	MaxPrice            float64
	AveragePricePerArea float64
	MostExpensive       *TransactionRecord

	ByPropertyType map[string]int
	ByYear         map[string]int
}
