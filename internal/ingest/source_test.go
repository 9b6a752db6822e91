package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/AngelCh415/adrecon/internal/models"
	"github.com/AngelCh415/adrecon/internal/utils"
)

func TestCSVSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "yt.csv")
	body := "\ufeffDia;Custo;Cliques\n01/08/2025;\"R$ 1.000,50\";12\n;;\n02/08/2025;;7\n"
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	exp, err := CSVSource{Path: path, Comma: ';'}.Fetch(context.Background())
	require.NoError(t, err)
	rows := exp.Rows
	require.Len(t, rows, 2, "blank lines are dropped")
	assert.Equal(t, []string{"Dia", "Custo", "Cliques"}, rows[0].Headers)
	v, ok := rows[0].Get("Custo")
	assert.True(t, ok)
	assert.Equal(t, "R$ 1.000,50", v)
	v, _ = rows[1].Get("Custo")
	assert.Equal(t, "", v)
}

func TestCSVSourceEmpty(t *testing.T) {
	_, err := CSVSource{}.read(context.Background(), strings.NewReader(""))
	assert.ErrorIs(t, err, errNoHeader)
}

func TestCSVSourceHeaderOnly(t *testing.T) {
	exp, err := CSVSource{Comma: ';'}.read(context.Background(), strings.NewReader("Dia;Custo;Cliques\n"))
	require.NoError(t, err)
	assert.Empty(t, exp.Rows)
	assert.Equal(t, []string{"Dia", "Custo", "Cliques"}, exp.Headers)
}

func TestXLSXSource(t *testing.T) {
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetRow("Sheet1", "A1", &[]any{"Date", "Spend", "Impr"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A2", &[]any{"2025-08-01", "10.5", "1000"}))
	require.NoError(t, f.SetSheetRow("Sheet1", "A3", &[]any{"2025-08-02", "4"}))
	path := filepath.Join(t.TempDir(), "dv.xlsx")
	require.NoError(t, f.SaveAs(path))
	require.NoError(t, f.Close())

	exp, err := XLSXSource{Path: path}.Fetch(context.Background())
	require.NoError(t, err)
	rows := exp.Rows
	require.Len(t, rows, 2)
	v, ok := rows[0].Get("Impr")
	assert.True(t, ok)
	assert.Equal(t, "1000", v)
	v, ok = rows[1].Get("Impr")
	assert.True(t, ok, "short rows still carry every header")
	assert.Equal(t, "", v)

	_, err = XLSXSource{Path: path, Sheet: "Missing"}.Fetch(context.Background())
	assert.Error(t, err)
}

func TestHTMLTableSource(t *testing.T) {
	page := `<html><body>
<table id="other"><tr><td>ignore</td></tr></table>
<table class="report">
  <thead><tr><th>Canal</th><th> Custo </th></tr></thead>
  <tbody>
    <tr><td>meta</td><td>R$ 10,00</td></tr>
    <tr><td>tiktok</td><td>R$ 2,50</td></tr>
  </tbody>
</table></body></html>`
	exp, err := HTMLTableSource{Selector: "table.report"}.read(context.Background(), strings.NewReader(page))
	require.NoError(t, err)
	rows := exp.Rows
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"Canal", "Custo"}, rows[0].Headers)
	v, _ := rows[1].Get("Custo")
	assert.Equal(t, "R$ 2,50", v)

	_, err = HTMLTableSource{Selector: "#nope"}.read(context.Background(), strings.NewReader(page))
	assert.Error(t, err)
}

func TestHTTPSource(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`[{"spend": 12.50, "views": 300, "date": "2025-08-01"}, {"spend": null, "views": 7, "creative": "c-1"}]`))
	}))
	defer srv.Close()

	src := HTTPSource{URL: srv.URL, Client: NewHTTPClient(2 * time.Second), Backoff: utils.NewBackoff(time.Millisecond, 1)}
	exp, err := src.Fetch(context.Background())
	require.NoError(t, err)
	rows := exp.Rows
	require.Len(t, rows, 2)
	assert.Equal(t, []string{"creative", "date", "spend", "views"}, rows[0].Headers)
	assert.Equal(t, models.NewRawRow(rows[0].Headers, []string{"", "2025-08-01", "12.50", "300"}), rows[0])
	assert.Equal(t, []string{"c-1", "", "", "7"}, rows[1].Cells)
}

func TestHTTPSourceEmptyArray(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	src := HTTPSource{URL: srv.URL, Client: NewHTTPClient(2 * time.Second), Backoff: utils.NewBackoff(time.Millisecond, 0)}
	exp, err := src.Fetch(context.Background())
	require.NoError(t, err)
	assert.Nil(t, exp.Headers, "no objects, no known columns")
	assert.Empty(t, exp.Rows)
}

func TestGetJSONRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`[]`))
	}))
	defer srv.Close()

	var out []map[string]any
	err := GetJSONWithRetry(context.Background(), NewHTTPClient(2*time.Second), utils.NewBackoff(time.Millisecond, 3), nil, srv.URL, &out)
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())
}

func TestGetJSONDoesNotRetry404(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	var out []map[string]any
	err := GetJSONWithRetry(context.Background(), NewHTTPClient(2*time.Second), utils.NewBackoff(time.Millisecond, 3), nil, srv.URL, &out)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Equal(t, int32(1), calls.Load())
}

func TestGetJSONTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	var out []map[string]any
	err := GetJSONWithRetry(context.Background(), NewHTTPClient(50*time.Millisecond), utils.NewBackoff(time.Millisecond, 0), nil, srv.URL, &out)
	assert.Error(t, err)
}

func TestGetJSONEmptyURL(t *testing.T) {
	var out any
	assert.EqualError(t, GetJSONWithRetry(context.Background(), nil, utils.NewBackoff(time.Millisecond, 0), nil, "", &out), "empty url")
}
