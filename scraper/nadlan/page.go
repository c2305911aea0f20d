package nadlan

import (
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"nadlan-scraper/models"
	"nadlan-scraper/services"
	"nadlan-scraper/utils"
)

// Scripts evaluated in the page. Row indices match those returned by
// parseRows: the position among .mainTable__row elements.
const (
	jsTableHTML = `(function() {
		var t = document.querySelector('.mainTable');
		return t ? t.outerHTML : '';
	})()`

	jsDetailHTML = `(function() {
		var c = document.querySelector('.mainTable .innerTablesContainer');
		return c ? c.outerHTML : '';
	})()`

	// Clicking an arrow toggles its panel, so a panel left open by an earlier
	// row is closed first and this row is reported as not yet expanded.
	jsExpand = `(function() {
		var rows = document.querySelectorAll('.mainTable .mainTable__row');
		var row = rows[%d];
		if (!row) return 'norow';
		var arrow = row.querySelector('.collapseArrow');
		if (!arrow) return 'noarrow';
		var open = document.querySelectorAll('.mainTable .innerTablesContainer');
		if (open.length > 0) {
			open.forEach(function(c) {
				var owner = c.closest('.mainTable__row') || c.previousElementSibling;
				var a = owner && owner.querySelector('.collapseArrow');
				if (a) a.click();
			});
			return 'open';
		}
		arrow.scrollIntoView({block: 'center'});
		arrow.click();
		return 'clicked';
	})()`

	jsCollapse = `(function() {
		var rows = document.querySelectorAll('.mainTable .mainTable__row');
		var row = rows[%d];
		if (!row) return 'norow';
		if (!document.querySelector('.mainTable .innerTablesContainer')) return 'closed';
		var arrow = row.querySelector('.collapseArrow');
		if (arrow) arrow.click();
		return 'clicked';
	})()`

	jsHasNext = `(function() {
		var b = document.getElementById('next');
		if (!b) return false;
		var st = window.getComputedStyle(b);
		if (st.display === 'none' || st.visibility === 'hidden' || b.offsetParent === null) return false;
		return !b.disabled && b.getAttribute('aria-disabled') !== 'true';
	})()`

	jsClickNext = `(function() {
		var b = document.getElementById('next');
		if (!b) return false;
		b.scrollIntoView(true);
		b.click();
		return true;
	})()`
)

// expandResult interprets jsExpand's status. It reports whether this row's
// panel was opened; only then may the open panel be read as its details.
func expandResult(index int, status string) (bool, error) {
	switch status {
	case "clicked":
		return true, nil
	case "noarrow":
		return false, nil
	case "norow":
		return false, fmt.Errorf("nadlan: row %d: %w", index, utils.ErrStaleElement)
	case "open":
		return false, fmt.Errorf("nadlan: row %d: another detail panel was open: %w", index, utils.ErrStaleElement)
	default:
		return false, fmt.Errorf("nadlan: row %d: unexpected expand status %q", index, status)
	}
}

// parseRows splits the listing table markup into rows of normalised cell text.
func parseRows(html string) ([]models.RawRow, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("nadlan: parse table: %w", err)
	}

	var rows []models.RawRow
	doc.Find(".mainTable__row").Each(func(i int, s *goquery.Selection) {
		rows = append(rows, models.RawRow{Index: i, Cells: cellTexts(s.Find(".mainTable__cell"))})
	})
	return rows, nil
}

// parseDetail returns the cells of an expanded detail panel.
func parseDetail(html string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("nadlan: parse details: %w", err)
	}
	return cellTexts(doc.Find(".innerTable__cell")), nil
}

func cellTexts(s *goquery.Selection) []string {
	return s.Map(func(_ int, c *goquery.Selection) string {
		return services.NormaliseText(c.Text())
	})
}
