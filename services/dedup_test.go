package services

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"nadlan-scraper/models"
)

func TestDedupIndexAddIsIdempotent(t *testing.T) {
	idx := NewDedupIndex(nil)
	assert.False(t, idx.Seen("a"))

	idx.Add("a")
	idx.Add("a")
	assert.True(t, idx.Seen("a"))
	assert.Equal(t, 1, idx.Len())
}

func TestDedupIndexSeededFromSnapshot(t *testing.T) {
	rec := models.TransactionRecord{Address: "Herzl 1", TransactionDate: "2024-01-01", Price: "100"}
	snap := &models.Snapshot{
		Records:    []models.TransactionRecord{rec},
		SeenHashes: map[string]struct{}{"legacy-md5": {}},
	}

	idx := NewDedupIndex(snap)
	assert.True(t, idx.Seen("legacy-md5"))
	assert.True(t, idx.Seen(rec.Hash()), "record hashes are folded in even when absent from the stored set")
	assert.Equal(t, 2, idx.Len())
}

func TestDedupIndexHashesIsACopy(t *testing.T) {
	idx := NewDedupIndex(nil)
	idx.Add("a")

	hs := idx.Hashes()
	hs["b"] = struct{}{}
	assert.False(t, idx.Seen("b"))
}

func TestHashIdentityIndependence(t *testing.T) {
	a := models.TransactionRecord{Address: "Herzl 1", TransactionDate: "2024-01-01", Price: "100", ParcelRef: "1/2/3", PropertyType: "apartment"}
	b := a
	b.PropertyType = "penthouse"
	b.Rooms = "5"
	assert.Equal(t, a.Hash(), b.Hash(), "descriptive fields must not affect the hash")

	c := a
	c.Price = "101"
	assert.NotEqual(t, a.Hash(), c.Hash(), "price is part of the identity")
}

func TestHashFieldBoundaries(t *testing.T) {
	a := models.TransactionRecord{Address: "a-b", TransactionDate: "c"}
	b := models.TransactionRecord{Address: "a", TransactionDate: "b-c"}
	assert.NotEqual(t, a.Hash(), b.Hash())
}
