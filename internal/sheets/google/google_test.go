package google

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	goption "google.golang.org/api/option"
	gsheet "google.golang.org/api/sheets/v4"

	"finboard/internal/core"
)

// fakeSheets serves the handful of Sheets v4 endpoints the client uses,
// backed by an in-memory grid.
type fakeSheets struct {
	mu      sync.Mutex
	rows    [][]any
	deletes int
}

func (f *fakeSheets) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/v4/spreadsheets/sid")
	w.Header().Set("Content-Type", "application/json")

	switch {
	case r.Method == http.MethodGet && path == "":
		_ = json.NewEncoder(w).Encode(map[string]any{
			"spreadsheetId": "sid",
			"sheets":        []any{map[string]any{"properties": map[string]any{"sheetId": 7, "title": "Ledger"}}},
		})

	case r.Method == http.MethodGet && strings.HasPrefix(path, "/values/"):
		col := make([][]any, 0, len(f.rows))
		for _, row := range f.rows {
			if len(row) == 0 {
				col = append(col, []any{})
				continue
			}
			col = append(col, []any{row[0]})
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"range": "Ledger!A:A", "values": col})

	case r.Method == http.MethodPut && strings.HasPrefix(path, "/values/"):
		rng := strings.TrimPrefix(path, "/values/")
		start := strings.Index(rng, "!A") + 2
		end := strings.Index(rng[start:], ":") + start
		n, err := strconv.Atoi(rng[start:end])
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		var vr gsheet.ValueRange
		if err := json.NewDecoder(r.Body).Decode(&vr); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for len(f.rows) < n {
			f.rows = append(f.rows, nil)
		}
		f.rows[n-1] = vr.Values[0]
		_ = json.NewEncoder(w).Encode(map[string]any{"updatedRange": rng})

	case r.Method == http.MethodPost && path == ":batchUpdate":
		var req gsheet.BatchUpdateSpreadsheetRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		for _, rq := range req.Requests {
			d := rq.DeleteDimension.Range
			if d.SheetId != 7 {
				http.Error(w, "unknown sheet", http.StatusBadRequest)
				return
			}
			f.rows = append(f.rows[:d.StartIndex], f.rows[d.EndIndex:]...)
			f.deletes++
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"spreadsheetId": "sid"})

	default:
		http.Error(w, "unexpected "+r.Method+" "+path, http.StatusNotFound)
	}
}

func (f *fakeSheets) ids() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.rows))
	for i, row := range f.rows {
		out[i] = row[0].(string)
	}
	return out
}

func newTestClient(t *testing.T) (*Client, *fakeSheets) {
	t.Helper()
	fake := &fakeSheets{}
	srv := httptest.NewServer(fake)
	t.Cleanup(srv.Close)

	svc, err := gsheet.NewService(context.Background(),
		goption.WithEndpoint(srv.URL+"/"),
		goption.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return New(svc, "sid", "Ledger", nil), fake
}

func sampleTx(id string, cents int64) core.Transaction {
	return core.Transaction{
		ID:         id,
		OwnerID:    "user-1",
		Kind:       core.KindExpense,
		Title:      "Groceries",
		Amount:     core.Money{Cents: cents},
		Category:   "Food",
		OccurredOn: core.NewDate(2025, time.March, 2),
		CreatedAt:  time.Date(2025, 3, 2, 10, 0, 0, 0, time.UTC),
	}
}

func TestClient_UpsertAppendsAndReplaces(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()

	ref, err := c.Upsert(ctx, sampleTx("a", 1000))
	require.NoError(t, err)
	assert.Equal(t, "Ledger!A2:I2", ref)

	ref, err = c.Upsert(ctx, sampleTx("b", 2000))
	require.NoError(t, err)
	assert.Equal(t, "Ledger!A3:I3", ref)

	ref, err = c.Upsert(ctx, sampleTx("a", 1500))
	require.NoError(t, err)
	assert.Equal(t, "Ledger!A2:I2", ref, "same id rewrites its row")

	assert.Equal(t, []string{"ID", "a", "b"}, fake.ids())
	assert.Equal(t, 15.0, fake.rows[1][6])
	assert.Equal(t, "2025-03-02", fake.rows[1][2])
}

func TestClient_Delete(t *testing.T) {
	c, fake := newTestClient(t)
	ctx := context.Background()

	for _, id := range []string{"a", "b", "c"} {
		_, err := c.Upsert(ctx, sampleTx(id, 100))
		require.NoError(t, err)
	}

	require.NoError(t, c.Delete(ctx, "b"))
	assert.Equal(t, []string{"ID", "a", "c"}, fake.ids())

	// Unknown ids and the header itself are left alone.
	require.NoError(t, c.Delete(ctx, "missing"))
	require.NoError(t, c.Delete(ctx, "ID"))
	assert.Equal(t, 1, fake.deletes)
}

func TestClient_UpsertRequiresID(t *testing.T) {
	c, _ := newTestClient(t)
	_, err := c.Upsert(context.Background(), sampleTx("", 100))
	assert.Error(t, err)
}

func TestCredentials(t *testing.T) {
	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", "")

	_, err := credentials(Config{})
	assert.ErrorContains(t, err, "missing service account credentials")

	b, err := credentials(Config{CredentialsJSON: ` {"type":"service_account"} `})
	require.NoError(t, err)
	assert.Equal(t, `{"type":"service_account"}`, string(b))

	path := filepath.Join(t.TempDir(), "sa.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"from":"file"}`), 0o600))
	b, err = credentials(Config{CredentialsFile: path})
	require.NoError(t, err)
	assert.Equal(t, `{"from":"file"}`, string(b))

	t.Setenv("GOOGLE_APPLICATION_CREDENTIALS", path)
	b, err = credentials(Config{})
	require.NoError(t, err)
	assert.Equal(t, `{"from":"file"}`, string(b))

	_, err = credentials(Config{CredentialsFile: filepath.Join(t.TempDir(), "nope.json")})
	assert.ErrorContains(t, err, "read service account file")
}

func TestNewClient_MissingSpreadsheetID(t *testing.T) {
	_, err := NewClient(context.Background(), Config{CredentialsJSON: "{}"}, nil)
	assert.EqualError(t, err, "missing GOOGLE_SPREADSHEET_ID")
}
