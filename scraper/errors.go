package scraper

import (
	"errors"
	"fmt"
)

// errPageNotReady is reported when the listing table never rendered.
var errPageNotReady = errors.New("listing table did not render")

// RowExtractionError is a failure confined to one row. The row is skipped.
type RowExtractionError struct {
	Page int
	Row  int
	Err  error
}

func (e *RowExtractionError) Error() string {
	return fmt.Sprintf("page %d row %d: %v", e.Page, e.Row, e.Err)
}

func (e *RowExtractionError) Unwrap() error { return e.Err }

// SearchFailure means the entity's listing could not be opened at all.
type SearchFailure struct {
	Entity string
	Err    error
}

func (e *SearchFailure) Error() string {
	return fmt.Sprintf("search %s: %v", e.Entity, e.Err)
}

func (e *SearchFailure) Unwrap() error { return e.Err }

// NavigationFailure means a page past the first could not be reached or read.
type NavigationFailure struct {
	Page int
	Err  error
}

func (e *NavigationFailure) Error() string {
	return fmt.Sprintf("navigate to page %d: %v", e.Page, e.Err)
}

func (e *NavigationFailure) Unwrap() error { return e.Err }

// EntityFailure is anything else that ended an entity's crawl, panics included.
type EntityFailure struct {
	Entity string
	Err    error
}

func (e *EntityFailure) Error() string {
	return fmt.Sprintf("entity %s: %v", e.Entity, e.Err)
}

func (e *EntityFailure) Unwrap() error { return e.Err }
