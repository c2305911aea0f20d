package services

import "nadlan-scraper/models"

// Positions of the fields inside a main table row. Cell 0 is the expand arrow.
const (
	cellAddress = iota + 1
	cellArea
	cellTransactionDate
	cellPrice
	cellParcelRef
	cellPropertyType
	cellRooms
	cellFloor
)

// Positions inside the expanded detail panel.
const (
	detailBuildYear        = 3
	detailPricePerArea     = 4
	detailFloorsInBuilding = 5
	// Additional (date, price) pairs begin here: pair i sits at
	// pairOffset+2i and pairOffset+2i+1. Anything stored past the fixed
	// detail fields is assumed to be such a pair.
	pairOffset = 8
)

// BaseFields maps a raw table row onto a record. Missing cells become "".
func BaseFields(row models.RawRow) models.TransactionRecord {
	return models.TransactionRecord{
		Address:         cell(row.Cells, cellAddress),
		Area:            cell(row.Cells, cellArea),
		TransactionDate: cell(row.Cells, cellTransactionDate),
		Price:           cell(row.Cells, cellPrice),
		ParcelRef:       cell(row.Cells, cellParcelRef),
		PropertyType:    cell(row.Cells, cellPropertyType),
		Rooms:           cell(row.Cells, cellRooms),
		Floor:           cell(row.Cells, cellFloor),
	}
}

// Extract expands one row into its transactions: the base transaction first,
// then one clone per additional (date, price) pair in pair order. A pair with
// both values empty ends the expansion. A nil detail slice yields just the base.
func Extract(base models.TransactionRecord, detail []string) []models.TransactionRecord {
	if detail != nil {
		base.BuildYear = cell(detail, detailBuildYear)
		base.PricePerArea = cell(detail, detailPricePerArea)
		base.FloorsInBuilding = cell(detail, detailFloorsInBuilding)
	}

	out := []models.TransactionRecord{base}
	for i := 0; ; i++ {
		date := cell(detail, pairOffset+2*i)
		price := cell(detail, pairOffset+2*i+1)
		if date == "" && price == "" {
			break
		}

		tx := base
		if date != "" {
			tx.TransactionDate = date
		}
		if price != "" {
			tx.Price = price
		}
		out = append(out, tx)
	}
	return out
}

func cell(cells []string, idx int) string {
	if idx < len(cells) {
		return cells[idx]
	}
	return ""
}
