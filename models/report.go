package models

import "time"

// EntityResult is the outcome of one entity's crawl as seen by the scheduler.
type EntityResult struct {
	Entity Entity
	// Records is the entity's reported count: the exported unique count when
	// the crawl finished, otherwise whatever was persisted.
	Records         int
	NewRecords      int
	Duplicates      int
	RemovedOnExport int
	Pages           int
	State           string
	Err             error
	Duration        time.Duration
}

// CrawlReport aggregates every entity result of one run.
type CrawlReport struct {
	RunID        string
	Results      []EntityResult
	TotalRecords int
	TotalNew     int
	Failed       int
	Elapsed      time.Duration
}
