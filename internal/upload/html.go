package upload

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/set-night/agentchat/internal/domain"
)

// parseHTML reads the first <table>, as found in broker statement exports.
// The header comes from <th> cells, or the first row when there are none.
func parseHTML(data []byte) (domain.Resource, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: parse html: %v", domain.ErrInvalidPayload, err)
	}

	table := doc.Find("table").First()
	if table.Length() == 0 {
		return nil, fmt.Errorf("%w: no table found", domain.ErrInvalidPayload)
	}

	var header []string
	var rows [][]string
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		if header == nil && tr.Find("th").Length() > 0 {
			header = cellTexts(tr.Find("th"))
			return
		}
		cells := cellTexts(tr.Find("td"))
		if len(cells) == 0 {
			return
		}
		if header == nil {
			header = cells
			return
		}
		rows = append(rows, cells)
	})

	if len(header) == 0 {
		return nil, fmt.Errorf("%w: table has no rows", domain.ErrInvalidPayload)
	}
	return tabular(header, rows, SourceHTML), nil
}

func cellTexts(sel *goquery.Selection) []string {
	out := make([]string, 0, sel.Length())
	sel.Each(func(_ int, s *goquery.Selection) {
		out = append(out, strings.Join(strings.Fields(s.Text()), " "))
	})
	return out
}
