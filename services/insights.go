package services

import (
	"fmt"
	"io"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"nadlan-scraper/models"
	"nadlan-scraper/utils"
)

var (
	nonDigits = regexp.MustCompile(`[^\d.]`)
	yearRe    = regexp.MustCompile(`(19|20)\d{2}`)
)

type InsightService struct {
	logger *utils.Logger
}

func NewInsightService(logger *utils.Logger) *InsightService {
	return &InsightService{logger: logger}
}

// Generate computes price and volume statistics. Records keep the raw page
// text, so prices are parsed leniently here and unparseable ones are skipped.
func (s *InsightService) Generate(records []models.TransactionRecord) *models.InsightReport {
	report := &models.InsightReport{
		ByPropertyType: make(map[string]int),
		ByYear:         make(map[string]int),
	}

	if len(records) == 0 {
		return report
	}

	report.TotalTransactions = len(records)

	var total, perAreaTotal float64
	var perAreaCount int
	for i := range records {
		r := &records[i]
		if r.PropertyType != "" {
			report.ByPropertyType[r.PropertyType]++
		}
		if year := yearRe.FindString(r.TransactionDate); year != "" {
			report.ByYear[year]++
		}
		if ppa, ok := ParseAmount(r.PricePerArea); ok {
			perAreaTotal += ppa
			perAreaCount++
		}

		price, ok := ParseAmount(r.Price)
		if !ok {
			continue
		}
		if report.PricedTransactions == 0 || price < report.MinPrice {
			report.MinPrice = price
		}
		if report.PricedTransactions == 0 || price > report.MaxPrice {
			report.MaxPrice = price
			report.MostExpensive = r
		}
		total += price
		report.PricedTransactions++
	}

	if report.PricedTransactions > 0 {
		report.AveragePrice = round2(total / float64(report.PricedTransactions))
	}
	if perAreaCount > 0 {
		report.AveragePricePerArea = round2(perAreaTotal / float64(perAreaCount))
	}

	s.logger.Debug("[insights] %d transactions, %d with a price", report.TotalTransactions, report.PricedTransactions)
	return report
}

// ParseAmount reads a displayed amount such as "1,950,000 ₪".
func ParseAmount(s string) (float64, bool) {
	digits := nonDigits.ReplaceAllString(s, "")
	if digits == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(digits, 64)
	if err != nil || f <= 0 {
		return 0, false
	}
	return f, true
}

func (s *InsightService) Print(w io.Writer, title string, r *models.InsightReport) {
	sep := strings.Repeat("═", 54)
	thin := strings.Repeat("─", 54)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n", sep)
	fmt.Fprintf(w, "\033[1;35m  📊 TRANSACTION INSIGHTS  %s\033[0m\n", title)
	fmt.Fprintf(w, "\033[1;35m%s\033[0m\n\n", sep)

	// Overview
	fmt.Fprintf(w, "\033[1;33m  Overview\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	fmt.Fprintf(w, "  Transactions collected : \033[1m%d\033[0m\n", r.TotalTransactions)
	fmt.Fprintf(w, "  With a price           : \033[1m%d\033[0m\n", r.PricedTransactions)
	fmt.Fprintln(w)

	// Price Stats
	fmt.Fprintf(w, "\033[1;33m  Price Statistics (₪)\033[0m\n")
	fmt.Fprintf(w, "  %s\n", thin)
	if r.PricedTransactions > 0 {
		fmt.Fprintf(w, "  Average price : \033[1;32m%s\033[0m\n", formatAmount(r.AveragePrice))
		fmt.Fprintf(w, "  Minimum price : \033[1;32m%s\033[0m\n", formatAmount(r.MinPrice))
		fmt.Fprintf(w, "  Maximum price : \033[1;32m%s\033[0m\n", formatAmount(r.MaxPrice))
		if r.AveragePricePerArea > 0 {
			fmt.Fprintf(w, "  Average per m²: \033[1;32m%s\033[0m\n", formatAmount(r.AveragePricePerArea))
		}
	} else {
		fmt.Fprintf(w, "  No price data available\n")
	}
	fmt.Fprintln(w)

	if r.MostExpensive != nil {
		fmt.Fprintf(w, "\033[1;33m  Most Expensive Transaction\033[0m\n")
		fmt.Fprintf(w, "  %s\n", thin)
		fmt.Fprintf(w, "  %s\n", truncate(r.MostExpensive.Address, 50))
		fmt.Fprintf(w, "  Date  : %s\n", r.MostExpensive.TransactionDate)
		fmt.Fprintf(w, "  Price : \033[1;31m%s\033[0m\n", r.MostExpensive.Price)
		fmt.Fprintln(w)
	}

	printCounts(w, "Transactions by Property Type", thin, r.ByPropertyType, false)
	printCounts(w, "Transactions by Year", thin, r.ByYear, true)

	fmt.Fprintf(w, "\n\033[1;35m%s\033[0m\n\n", sep)
}

// printCounts renders a bar per key, by count descending or by key.
func printCounts(w io.Writer, heading, thin string, counts map[string]int, byKey bool) {
	fmt.Fprintf(w, "\033[1;33m  %s\033[0m\n", heading)
	fmt.Fprintf(w, "  %s\n", thin)
	if len(counts) == 0 {
		fmt.Fprintf(w, "  No data\n\n")
		return
	}

	type keyCount struct {
		key   string
		count int
	}
	var kcs []keyCount
	top := 0
	for k, c := range counts {
		kcs = append(kcs, keyCount{k, c})
		if c > top {
			top = c
		}
	}
	sort.Slice(kcs, func(i, j int) bool {
		if byKey || kcs[i].count == kcs[j].count {
			return kcs[i].key < kcs[j].key
		}
		return kcs[i].count > kcs[j].count
	})
	for _, kc := range kcs {
		// scale bars to at most 30 cells
		bar := strings.Repeat("█", (kc.count*30+top-1)/top)
		fmt.Fprintf(w, "  %-20s %s (%d)\n", truncate(kc.key, 18), bar, kc.count)
	}
	fmt.Fprintln(w)
}

func formatAmount(f float64) string {
	s := strconv.FormatInt(int64(f+0.5), 10)
	var b strings.Builder
	for i, c := range s {
		if i > 0 && (len(s)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(c)
	}
	return b.String()
}

func round2(f float64) float64 {
	return float64(int(f*100+0.5)) / 100
}
