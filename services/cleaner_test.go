package services

import (
	"testing"

	"nadlan-scraper/models"
	"nadlan-scraper/utils"
)

func newTestLogger() *utils.Logger { return utils.Discard() }

func TestCleanerDeduplicatesIdentity(t *testing.T) {
	c := NewCleaner(newTestLogger())
	records := []models.TransactionRecord{
		{Address: "A", TransactionDate: "2024-01-01", Price: "100", ParcelRef: "1", Rooms: "3"},
		{Address: "A", TransactionDate: "2024-01-01", Price: "100", ParcelRef: "1", Rooms: "4"},
		{Address: "A", TransactionDate: "2024-01-01", Price: "200", ParcelRef: "1"},
	}

	cleaned := c.Clean(records)
	if len(cleaned) != 2 {
		t.Fatalf("expected 2 records after deduplication, got %d", len(cleaned))
	}
	if cleaned[0].Rooms != "3" {
		t.Errorf("first occurrence should win: got rooms %q", cleaned[0].Rooms)
	}
	if cleaned[1].Price != "200" {
		t.Errorf("order not preserved: got price %q at index 1", cleaned[1].Price)
	}
}

func TestCleanerKeepsDistinctRecords(t *testing.T) {
	c := NewCleaner(newTestLogger())
	records := []models.TransactionRecord{
		{Address: "A", Price: "1"},
		{Address: "B", Price: "1"},
	}
	if got := len(c.Clean(records)); got != 2 {
		t.Errorf("got %d, want 2", got)
	}
}

func TestNormaliseText(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"  Herzl   1 ", "Herzl 1"},
		{"\n1,200,000\t", "1,200,000"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := NormaliseText(tt.raw); got != tt.want {
			t.Errorf("NormaliseText(%q) = %q; want %q", tt.raw, got, tt.want)
		}
	}
}
