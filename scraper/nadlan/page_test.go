package nadlan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nadlan-scraper/models"
	"nadlan-scraper/services"
	"nadlan-scraper/utils"
)

const tableFixture = `<div class="mainTable">
  <div class="mainTable__row">
    <div class="mainTable__cell"></div>
    <div class="mainTable__cell">כתובת</div>
    <div class="mainTable__cell">מ"ר</div>
  </div>
  <div class="mainTable__row">
    <div class="mainTable__cell"><span class="collapseArrow"></span></div>
    <div class="mainTable__cell">  הרצל
        12  </div>
    <div class="mainTable__cell">80</div>
    <div class="mainTable__cell">01.02.2024</div>
    <div class="mainTable__cell">1,950,000</div>
    <div class="mainTable__cell">10870-5-12</div>
    <div class="mainTable__cell">דירה</div>
    <div class="mainTable__cell">3.5</div>
    <div class="mainTable__cell">2</div>
  </div>
</div>`

func TestParseRows(t *testing.T) {
	rows, err := parseRows(tableFixture)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, 0, rows[0].Index)
	assert.Equal(t, 1, rows[1].Index)
	assert.Len(t, rows[1].Cells, 9)

	rec := services.BaseFields(rows[1])
	assert.Equal(t, models.TransactionRecord{
		Address:         "הרצל 12",
		Area:            "80",
		TransactionDate: "01.02.2024",
		Price:           "1,950,000",
		ParcelRef:       "10870-5-12",
		PropertyType:    "דירה",
		Rooms:           "3.5",
		Floor:           "2",
	}, rec)
}

func TestParseRowsEmptyTable(t *testing.T) {
	rows, err := parseRows(`<div class="mainTable"></div>`)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestParseDetail(t *testing.T) {
	html := `<div class="innerTablesContainer"><div class="innerTable">
	  <div class="innerTable__cell">גוש</div>
	  <div class="innerTable__cell">חלקה</div>
	  <div class="innerTable__cell">תת חלקה</div>
	  <div class="innerTable__cell">1995</div>
	  <div class="innerTable__cell">24,375</div>
	  <div class="innerTable__cell">8</div>
	  <div class="innerTable__cell"></div>
	  <div class="innerTable__cell"></div>
	  <div class="innerTable__cell">03.03.2019</div>
	  <div class="innerTable__cell">1,400,000</div>
	</div></div>`

	cells, err := parseDetail(html)
	require.NoError(t, err)
	require.Len(t, cells, 10)

	base := models.TransactionRecord{Address: "הרצל 12", TransactionDate: "01.02.2024", Price: "1,950,000"}
	recs := services.Extract(base, cells)
	require.Len(t, recs, 2)
	assert.Equal(t, "1995", recs[0].BuildYear)
	assert.Equal(t, "03.03.2019", recs[1].TransactionDate)
	assert.Equal(t, "1,400,000", recs[1].Price)
}

func TestDealsURL(t *testing.T) {
	opts := Options{View: "settlement"}
	opts.withDefaults()
	d := &Driver{opts: opts}
	assert.Equal(t, "https://www.nadlan.gov.il/?id=4000&page=deals&view=settlement",
		d.DealsURL(models.Entity{ID: "4000", Name: "Haifa"}))
}

func TestExpandResult(t *testing.T) {
	tests := []struct {
		status    string
		opened    bool
		transient bool
		wantErr   bool
	}{
		{"clicked", true, false, false},
		{"noarrow", false, false, false},
		{"norow", false, true, true},
		// a panel left open by the previous row must never be read as this row's
		{"open", false, true, true},
		{"bogus", false, false, true},
	}
	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			opened, err := expandResult(7, tt.status)
			assert.Equal(t, tt.opened, opened)
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.transient, utils.IsTransient(err))
		})
	}
}
