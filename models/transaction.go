package models

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"time"
)

// Entity is one settlement or neighborhood: the unit of crawl work.
type Entity struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Key namespaces checkpoints and dedup state. The id wins when present.
func (e Entity) Key() string {
	if e.ID != "" {
		return e.ID
	}
	return e.Name
}

// Label is the human-readable form used in logs and reports.
func (e Entity) Label() string {
	switch {
	case e.Name != "" && e.ID != "":
		return e.Name + " (" + e.ID + ")"
	case e.Name != "":
		return e.Name
	default:
		return e.ID
	}
}

// RawRow is one rendered table row as read by the page driver.
// Cell positions are driver-defined; Index is the row's position in the table.
type RawRow struct {
	Index int
	Cells []string
}

// TransactionRecord is the canonical shape of one real-estate transaction.
// All values are kept as the raw text shown on the page.
type TransactionRecord struct {
	Address          string `json:"address"`
	Area             string `json:"area"`
	TransactionDate  string `json:"transactionDate"`
	Price            string `json:"price"`
	ParcelRef        string `json:"parcelRef"`
	PropertyType     string `json:"propertyType"`
	Rooms            string `json:"rooms"`
	Floor            string `json:"floor"`
	BuildYear        string `json:"buildYear"`
	PricePerArea     string `json:"pricePerArea"`
	FloorsInBuilding string `json:"floorsInBuilding"`
}

// Identity holds the fields that jointly identify a real-world transaction.
type Identity struct {
	Address         string
	TransactionDate string
	Price           string
	ParcelRef       string
}

// Identity returns the identifying subset of the record.
func (r TransactionRecord) Identity() Identity {
	return Identity{
		Address:         r.Address,
		TransactionDate: r.TransactionDate,
		Price:           r.Price,
		ParcelRef:       r.ParcelRef,
	}
}

// Hash returns the record's dedup key. Only identity fields contribute.
func (r TransactionRecord) Hash() string {
	return r.Identity().Hash()
}

// Hash digests the identity tuple. Each field is length-prefixed so that
// values containing separators cannot shift into a neighbouring field.
func (id Identity) Hash() string {
	h := sha256.New()
	for _, f := range []string{id.Address, id.TransactionDate, id.Price, id.ParcelRef} {
		h.Write([]byte(strconv.Itoa(len(f))))
		h.Write([]byte{':'})
		h.Write([]byte(f))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// RecordColumns is the export column order.
var RecordColumns = []string{
	"address", "area", "transactionDate", "price", "parcelRef", "propertyType",
	"rooms", "floor", "buildYear", "pricePerArea", "floorsInBuilding",
}

// Values returns the record's fields in RecordColumns order.
func (r TransactionRecord) Values() []string {
	return []string{
		r.Address, r.Area, r.TransactionDate, r.Price, r.ParcelRef, r.PropertyType,
		r.Rooms, r.Floor, r.BuildYear, r.PricePerArea, r.FloorsInBuilding,
	}
}

// legacyKeys maps each field to the column name written by the older
// collection scripts, so their checkpoints still decode.
var legacyKeys = map[string]string{
	"address":          "כתובת",
	"area":             `מ"ר`,
	"transactionDate":  "תאריך עסקה",
	"price":            "מחיר",
	"parcelRef":        "גוש/חלקה/תת-חלקה",
	"propertyType":     "סוג נכס",
	"rooms":            "חדרים",
	"floor":            "קומה",
	"buildYear":        "שנת בנייה",
	"pricePerArea":     `מחיר למ"ר`,
	"floorsInBuilding": "קומות במבנה",
}

// UnmarshalJSON accepts both the current keys and the legacy column names.
func (r *TransactionRecord) UnmarshalJSON(b []byte) error {
	var raw map[string]any
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}

	get := func(key string) string {
		v, ok := raw[key]
		if !ok {
			v, ok = raw[legacyKeys[key]]
		}
		if !ok || v == nil {
			return ""
		}
		if s, isStr := v.(string); isStr {
			return s
		}
		return fmt.Sprint(v)
	}

	*r = TransactionRecord{
		Address:          get("address"),
		Area:             get("area"),
		TransactionDate:  get("transactionDate"),
		Price:            get("price"),
		ParcelRef:        get("parcelRef"),
		PropertyType:     get("propertyType"),
		Rooms:            get("rooms"),
		Floor:            get("floor"),
		BuildYear:        get("buildYear"),
		PricePerArea:     get("pricePerArea"),
		FloorsInBuilding: get("floorsInBuilding"),
	}
	return nil
}

// Snapshot is a persisted, resumable capture of one entity's crawl.
type Snapshot struct {
	Records    []TransactionRecord
	SeenHashes map[string]struct{}
	Sequence   int
	SavedAt    time.Time
	RunID      string
}

// HashRecords returns the set of hashes of the given records.
func HashRecords(records []TransactionRecord) map[string]struct{} {
	set := make(map[string]struct{}, len(records))
	for _, r := range records {
		set[r.Hash()] = struct{}{}
	}
	return set
}
