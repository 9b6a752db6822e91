package ingest

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/PuerkitoBio/goquery"
	"github.com/xuri/excelize/v2"
	"golang.org/x/time/rate"

	"github.com/AngelCh415/adrecon/internal/models"
	"github.com/AngelCh415/adrecon/internal/utils"
)

// Export is one channel export as read. Headers is kept even when the
// export has no data rows; nil means the source cannot tell its columns.
type Export struct {
	Headers []string
	Rows    []models.RawRow
}

// Source yields one channel export. The first line of a tabular export is
// its header row.
type Source interface {
	Fetch(ctx context.Context) (Export, error)
}

var errNoHeader = errors.New("export has no header row")

func toExport(lines [][]string) (Export, error) {
	if len(lines) == 0 {
		return Export{}, errNoHeader
	}
	headers := make([]string, len(lines[0]))
	for i, h := range lines[0] {
		headers[i] = strings.TrimSpace(strings.TrimPrefix(h, "\ufeff"))
	}
	out := Export{Headers: headers, Rows: make([]models.RawRow, 0, len(lines)-1)}
	for _, cells := range lines[1:] {
		if blank(cells) {
			continue
		}
		out.Rows = append(out.Rows, models.NewRawRow(headers, cells))
	}
	return out, nil
}

func blank(cells []string) bool {
	for _, c := range cells {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

type CSVSource struct {
	Path  string
	Comma rune
}

func (s CSVSource) Fetch(ctx context.Context) (Export, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return Export{}, err
	}
	defer f.Close()
	return s.read(ctx, f)
}

func (s CSVSource) read(ctx context.Context, r io.Reader) (Export, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	if s.Comma != 0 {
		cr.Comma = s.Comma
	}
	var lines [][]string
	for {
		if err := ctx.Err(); err != nil {
			return Export{}, err
		}
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Export{}, fmt.Errorf("csv %s: %w", s.Path, err)
		}
		lines = append(lines, rec)
	}
	return toExport(lines)
}

// XLSXSource reads one worksheet; the first sheet when Sheet is empty.
type XLSXSource struct {
	Path  string
	Sheet string
}

func (s XLSXSource) Fetch(ctx context.Context) (Export, error) {
	f, err := excelize.OpenFile(s.Path)
	if err != nil {
		return Export{}, err
	}
	defer f.Close()
	sheet := s.Sheet
	if sheet == "" {
		list := f.GetSheetList()
		if len(list) == 0 {
			return Export{}, fmt.Errorf("xlsx %s: no sheets", s.Path)
		}
		sheet = list[0]
	}
	lines, err := f.GetRows(sheet)
	if err != nil {
		return Export{}, fmt.Errorf("xlsx %s sheet %q: %w", s.Path, sheet, err)
	}
	if err := ctx.Err(); err != nil {
		return Export{}, err
	}
	return toExport(lines)
}

// HTMLTableSource reads the first table matched by Selector from a saved
// report page.
type HTMLTableSource struct {
	Path     string
	Selector string
}

func (s HTMLTableSource) Fetch(ctx context.Context) (Export, error) {
	f, err := os.Open(s.Path)
	if err != nil {
		return Export{}, err
	}
	defer f.Close()
	return s.read(ctx, f)
}

func (s HTMLTableSource) read(ctx context.Context, r io.Reader) (Export, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return Export{}, fmt.Errorf("html %s: %w", s.Path, err)
	}
	sel := s.Selector
	if sel == "" {
		sel = "table"
	}
	table := doc.Find(sel).First()
	if table.Length() == 0 {
		return Export{}, fmt.Errorf("html %s: no element matches %q", s.Path, sel)
	}
	var lines [][]string
	table.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		var cells []string
		tr.Find("th, td").Each(func(_ int, c *goquery.Selection) {
			cells = append(cells, strings.TrimSpace(c.Text()))
		})
		if len(cells) > 0 {
			lines = append(lines, cells)
		}
	})
	if err := ctx.Err(); err != nil {
		return Export{}, err
	}
	return toExport(lines)
}

// HTTPSource fetches a JSON array of flat objects. Object keys become the
// headers, sorted; numbers keep their literal text. An empty array carries
// no headers.
type HTTPSource struct {
	URL     string
	Client  HTTPClient
	Backoff utils.Backoff
	Limiter *rate.Limiter
}

func (s HTTPSource) Fetch(ctx context.Context) (Export, error) {
	var objs []map[string]any
	if err := GetJSONWithRetry(ctx, s.Client, s.Backoff, s.Limiter, s.URL, &objs); err != nil {
		return Export{}, err
	}
	if len(objs) == 0 {
		return Export{}, nil
	}
	keys := map[string]struct{}{}
	for _, o := range objs {
		for k := range o {
			keys[k] = struct{}{}
		}
	}
	headers := make([]string, 0, len(keys))
	for k := range keys {
		headers = append(headers, k)
	}
	// orden determinista
	sort.Strings(headers)

	out := Export{Headers: headers, Rows: make([]models.RawRow, 0, len(objs))}
	for _, o := range objs {
		cells := make([]string, len(headers))
		for i, h := range headers {
			cells[i] = cellText(o[h])
		}
		out.Rows = append(out.Rows, models.NewRawRow(headers, cells))
	}
	return out, nil
}

func cellText(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case json.Number:
		return x.String()
	case bool:
		if x {
			return "true"
		}
		return "false"
	default:
		b, _ := json.Marshal(x)
		return string(b)
	}
}

func delimiter(s string) rune {
	if s == "" {
		return 0
	}
	if s == `\t` {
		return '\t'
	}
	r, _ := utf8.DecodeRuneInString(s)
	return r
}
