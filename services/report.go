package services

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"nadlan-scraper/models"
	"nadlan-scraper/utils"
)

// ReportService summarises a crawl run.
type ReportService struct {
	logger *utils.Logger
}

func NewReportService(logger *utils.Logger) *ReportService {
	return &ReportService{logger: logger}
}

// Generate builds a report listing every entity, failures included with
// whatever count they reached. Rows are ordered by entity label so the
// output is stable regardless of completion order.
func (s *ReportService) Generate(runID string, results []models.EntityResult, elapsed time.Duration) *models.CrawlReport {
	report := &models.CrawlReport{
		RunID:   runID,
		Results: make([]models.EntityResult, len(results)),
		Elapsed: elapsed,
	}
	copy(report.Results, results)

	sort.SliceStable(report.Results, func(i, j int) bool {
		return report.Results[i].Entity.Label() < report.Results[j].Entity.Label()
	})

	for _, r := range report.Results {
		report.TotalRecords += r.Records
		report.TotalNew += r.NewRecords
		if r.Err != nil {
			report.Failed++
		}
	}
	return report
}

// Counts flattens the report into entity key -> record count.
func (s *ReportService) Counts(r *models.CrawlReport) map[string]int {
	out := make(map[string]int, len(r.Results))
	for _, res := range r.Results {
		out[res.Entity.Key()] = res.Records
	}
	return out
}

func (s *ReportService) Print(w io.Writer, r *models.CrawlReport) {
	sep := strings.Repeat("═", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  CRAWL SUMMARY  run %s\033[0m\n", r.RunID)
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Entity", "State", "Pages", "Records", "New", "Duplicates", "Export dedup", "Took", "Error"})
	for _, res := range r.Results {
		errText := ""
		if res.Err != nil {
			errText = truncate(res.Err.Error(), 48)
		}
		t.AppendRow(table.Row{
			res.Entity.Label(), res.State, res.Pages, res.Records, res.NewRecords,
			res.Duplicates, res.RemovedOnExport, res.Duration.Round(time.Second), errText,
		})
	}
	t.AppendFooter(table.Row{"Total", "", "", r.TotalRecords, r.TotalNew, "", "", r.Elapsed.Round(time.Second),
		fmt.Sprintf("%d failed", r.Failed)})
	t.Render()

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
