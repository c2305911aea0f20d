package services

import (
	"strings"
	"unicode"

	"nadlan-scraper/models"
	"nadlan-scraper/utils"
)

// Cleaner prepares an entity's collected records for export.
type Cleaner struct {
	logger *utils.Logger
}

// NewCleaner creates a Cleaner with the given logger.
func NewCleaner(logger *utils.Logger) *Cleaner {
	return &Cleaner{logger: logger}
}

// Clean drops records whose identity tuple was already emitted, keeping the
// first occurrence and the original order. This runs on the field values
// themselves rather than on hashes, as a backstop against index bugs.
func (c *Cleaner) Clean(records []models.TransactionRecord) []models.TransactionRecord {
	seen := make(map[models.Identity]struct{}, len(records))
	result := make([]models.TransactionRecord, 0, len(records))

	for _, r := range records {
		id := r.Identity()
		if _, dup := seen[id]; dup {
			c.logger.Debug("[cleaner] Duplicate transaction skipped: %s %s %s", r.Address, r.TransactionDate, r.Price)
			continue
		}
		seen[id] = struct{}{}
		result = append(result, r)
	}

	if dropped := len(records) - len(result); dropped > 0 {
		c.logger.Warn("[cleaner] Export dedup removed %d of %d records", dropped, len(records))
	}
	return result
}

// NormaliseText strips leading/trailing whitespace and collapses internal whitespace.
func NormaliseText(s string) string {
	s = strings.TrimSpace(s)
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r)
	})
	return strings.Join(fields, " ")
}
