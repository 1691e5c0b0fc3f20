package driver

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pagedQuery serves rows pageSize at a time, linked by nextRecordsUrl
type pagedQuery struct {
	mu       sync.Mutex
	rows     []map[string]any
	pageSize int
	// failures[page] answers that many attempts of the page with status
	failures map[int]int
	status   int
	attempts map[int]int
	headers  []string
}

func (p *pagedQuery) register(fake *fakeSalesforce) {
	serve := func(page int) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			p.mu.Lock()
			p.attempts[page]++
			failing := p.attempts[page] <= p.failures[page]
			p.headers = append(p.headers, r.Header.Get("Sforce-Query-Options"))
			p.mu.Unlock()

			if failing {
				writeJSON(w, p.status, []map[string]string{{"message": "try again", "errorCode": "SERVER_UNAVAILABLE"}})
				return
			}

			start := (page - 1) * p.pageSize
			end := min(start+p.pageSize, len(p.rows))
			body := map[string]any{
				"totalSize": len(p.rows),
				"done":      end == len(p.rows),
				"records":   p.rows[start:end],
			}
			if end < len(p.rows) {
				body["nextRecordsUrl"] = dataPath(fmt.Sprintf("query/01gD0000002HU6KIAW-%d", end))
			}
			writeJSON(w, http.StatusOK, body)
		}
	}

	fake.handle(http.MethodGet, dataPath("query"), serve(1))
	for page := 2; (page-1)*p.pageSize < len(p.rows); page++ {
		fake.handle(http.MethodGet, dataPath(fmt.Sprintf("query/01gD0000002HU6KIAW-%d", (page-1)*p.pageSize)), serve(page))
	}
}

func accountRows(n int) []map[string]any {
	rows := make([]map[string]any, 0, n)
	for i := 1; i <= n; i++ {
		rows = append(rows, map[string]any{
			"attributes":     map[string]any{"type": "Account", "url": fmt.Sprintf("/services/data/v60.0/sobjects/Account/001%d", i)},
			"Id":             fmt.Sprintf("001%d", i),
			"SystemModstamp": fmt.Sprintf("2024-02-0%dT00:00:00.000+0000", i),
		})
	}
	return rows
}

func newPagedDriver(t *testing.T, query *pagedQuery) (*fakeSalesforce, *PaginatedQueryDriver) {
	t.Helper()

	fake := newFakeSalesforce(t)
	if query.attempts == nil {
		query.attempts = map[int]int{}
	}
	query.register(fake)

	config := fake.config()
	config.PageSize = query.pageSize
	driver := NewPaginatedQueryDriver(fake.client(config), config)
	driver.retryPolicy = zeroBackOff

	return fake, driver
}

func collectIDs(t *testing.T, it *RowIterator) []string {
	t.Helper()

	var ids []string
	for it.Next() {
		ids = append(ids, it.Row()["Id"].(string))
	}
	return ids
}

func TestRowIteratorReadsEveryPageInOrder(t *testing.T) {
	query := &pagedQuery{rows: accountRows(5), pageSize: 2}
	_, driver := newPagedDriver(t, query)

	it := driver.Query(context.Background(), "SELECT Id FROM Account")
	ids := collectIDs(t, it)

	require.NoError(t, it.Err())
	assert.Equal(t, []string{"0011", "0012", "0013", "0014", "0015"}, ids)
	assert.Equal(t, 3, it.Pages())
	for _, header := range query.headers {
		assert.Equal(t, "batchSize=2", header)
	}

	// exhausted iterators stay exhausted
	assert.False(t, it.Next())
}

func TestRowIteratorStopsAtFailingPage(t *testing.T) {
	query := &pagedQuery{
		rows:     accountRows(5),
		pageSize: 2,
		failures: map[int]int{3: 10},
		status:   http.StatusServiceUnavailable,
	}
	_, driver := newPagedDriver(t, query)

	it := driver.Query(context.Background(), "SELECT Id FROM Account")
	ids := collectIDs(t, it)

	// nothing past page two is yielded and no page is skipped
	assert.Equal(t, []string{"0011", "0012", "0013", "0014"}, ids)

	var pageErr *PageFetchError
	require.True(t, errors.As(it.Err(), &pageErr))
	assert.Equal(t, 3, pageErr.Page)
	assert.Equal(t, 3, pageErr.Attempts)
	assert.Equal(t, 3, query.attempts[3])
}

func TestRowIteratorRetriesTransientFailures(t *testing.T) {
	query := &pagedQuery{
		rows:     accountRows(5),
		pageSize: 2,
		failures: map[int]int{2: 2},
		status:   http.StatusInternalServerError,
	}
	_, driver := newPagedDriver(t, query)

	it := driver.Query(context.Background(), "SELECT Id FROM Account")
	ids := collectIDs(t, it)

	require.NoError(t, it.Err())
	assert.Len(t, ids, 5)
	assert.Equal(t, 3, query.attempts[2])
}

func TestRowIteratorDoesNotRetryClientErrors(t *testing.T) {
	query := &pagedQuery{
		rows:     accountRows(2),
		pageSize: 2,
		failures: map[int]int{1: 10},
		status:   http.StatusBadRequest,
	}
	_, driver := newPagedDriver(t, query)

	it := driver.Query(context.Background(), "SELECT Bogus FROM Account")
	assert.Empty(t, collectIDs(t, it))

	var pageErr *PageFetchError
	require.True(t, errors.As(it.Err(), &pageErr))
	assert.Equal(t, 1, pageErr.Attempts)
}

func TestDeletedClampsToAvailableWindow(t *testing.T) {
	fake := newFakeSalesforce(t)
	now := time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)

	var gotStart, gotEnd string
	fake.handle(http.MethodGet, dataPath("sobjects/Account/deleted/"), func(w http.ResponseWriter, r *http.Request) {
		gotStart = r.URL.Query().Get("start")
		gotEnd = r.URL.Query().Get("end")
		writeJSON(w, http.StatusOK, map[string]any{
			"deletedRecords": []map[string]string{
				{"id": "001B", "deletedDate": "2024-05-20T08:00:00.000+0000"},
				{"id": "001A", "deletedDate": "2024-05-10T08:00:00.000+0000"},
			},
			"earliestDateAvailable": "2024-05-01T00:00:00.000+0000",
			"latestDateCovered":     "2024-05-31T00:00:00.000+0000",
		})
	})

	config := fake.config()
	driver := NewPaginatedQueryDriver(fake.client(config), config)
	driver.now = func() time.Time { return now }
	driver.retryPolicy = zeroBackOff

	rows, err := driver.Deleted(context.Background(), "Account", Window{
		Start: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:   now,
	})
	require.NoError(t, err)

	assert.Equal(t, "2024-05-01T00:01:00.000Z", gotStart)
	assert.Equal(t, "2024-05-31T00:00:00.000Z", gotEnd)
	require.Len(t, rows, 2)
	assert.Equal(t, "001A", rows[0]["Id"])
	assert.Equal(t, true, rows[0]["IsDeleted"])
	assert.Equal(t, "2024-05-20T08:00:00.000+0000", rows[1]["deletedDate"])
}

func TestDeletedEmptyWindowSkipsRequest(t *testing.T) {
	fake := newFakeSalesforce(t)
	config := fake.config()
	driver := NewPaginatedQueryDriver(fake.client(config), config)
	now := time.Date(2024, 5, 31, 0, 0, 0, 0, time.UTC)
	driver.now = func() time.Time { return now }

	rows, err := driver.Deleted(context.Background(), "Account", Window{Start: now, End: now})
	require.NoError(t, err)
	assert.Empty(t, rows)
	assert.Zero(t, fake.count(http.MethodGet, dataPath("sobjects/Account/deleted/")))
}
