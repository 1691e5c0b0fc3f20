package driver

import (
	"context"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/datazip-inc/olake-salesforce/constants"
	"github.com/datazip-inc/olake-salesforce/utils/logger"
	"github.com/datazip-inc/olake-salesforce/utils/typeutils"
)

type queryPage struct {
	TotalSize      int              `json:"totalSize"`
	Done           bool             `json:"done"`
	NextRecordsURL string           `json:"nextRecordsUrl"`
	Records        []map[string]any `json:"records"`
}

type deletedPage struct {
	DeletedRecords []struct {
		ID          string `json:"id"`
		DeletedDate string `json:"deletedDate"`
	} `json:"deletedRecords"`
	EarliestDateAvailable string `json:"earliestDateAvailable"`
	LatestDateCovered     string `json:"latestDateCovered"`
}

// PaginatedQueryDriver drives the REST query endpoint page by page
type PaginatedQueryDriver struct {
	client      *Client
	pageSize    int
	attempts    int
	now         func() time.Time
	retryPolicy func() backoff.BackOff
}

func NewPaginatedQueryDriver(client *Client, config *Config) *PaginatedQueryDriver {
	return &PaginatedQueryDriver{
		client:      client,
		pageSize:    config.PageSize,
		attempts:    config.MaxPageAttempts,
		now:         time.Now,
		retryPolicy: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}
}

// Query returns a lazy iterator over every row of soql; pages are fetched
// on demand and never skipped
func (p *PaginatedQueryDriver) Query(ctx context.Context, soql string) *RowIterator {
	return &RowIterator{ctx: ctx, driver: p, soql: soql}
}

// Deleted lists records deleted inside window, oldest first. The endpoint
// only serves the last 30 days so older starts are clamped.
func (p *PaginatedQueryDriver) Deleted(ctx context.Context, stream string, window Window) ([]map[string]any, error) {
	earliest := p.now().UTC().Add(-constants.DeletedRecordsWindow).Add(time.Minute)
	if window.Start.Before(earliest) {
		logger.Debugf("clamping deleted records window of stream[%s] to %s", stream, earliest)
		window.Start = earliest
	}
	if !window.Start.Before(window.End) {
		return nil, nil
	}

	var page deletedPage
	attempts := 0
	err := retryTransient(ctx, p.retryPolicy(), p.attempts, func() error {
		attempts++
		return p.client.JSON(ctx, Request{
			Method: http.MethodGet,
			Path:   p.client.DataPath("sobjects", stream, "deleted", ""),
			Query: url.Values{
				"start": []string{typeutils.FormatSOQL(window.Start)},
				"end":   []string{typeutils.FormatSOQL(window.End)},
			},
			Surface: "rest",
		}, &page)
	})
	if err != nil {
		return nil, &PageFetchError{Page: 1, Attempts: attempts, Err: err}
	}

	rows := make([]map[string]any, 0, len(page.DeletedRecords))
	for _, deleted := range page.DeletedRecords {
		rows = append(rows, map[string]any{
			"Id":          deleted.ID,
			"IsDeleted":   true,
			"deletedDate": deleted.DeletedDate,
		})
	}
	sort.SliceStable(rows, func(i, j int) bool {
		return typeutils.Compare(rows[i]["deletedDate"], rows[j]["deletedDate"]) < 0
	})

	return rows, nil
}

// RowIterator is a finite, non-restartable sequence of raw REST rows
type RowIterator struct {
	ctx    context.Context
	driver *PaginatedQueryDriver
	soql   string

	nextURL string
	page    int
	done    bool
	rows    []map[string]any
	idx     int
	row     map[string]any
	err     error
}

func (it *RowIterator) Next() bool {
	for {
		if it.err != nil {
			return false
		}
		if it.idx < len(it.rows) {
			it.row = it.rows[it.idx]
			it.idx++
			return true
		}
		if it.done {
			return false
		}
		it.fetch()
	}
}

func (it *RowIterator) Row() map[string]any {
	return it.row
}

func (it *RowIterator) Err() error {
	return it.err
}

// Pages reports how many pages were fetched so far
func (it *RowIterator) Pages() int {
	return it.page
}

func (it *RowIterator) fetch() {
	it.page++
	request := Request{
		Method:  http.MethodGet,
		Header:  map[string]string{constants.QueryOptionsHeader: "batchSize=" + strconv.Itoa(it.driver.pageSize)},
		Surface: "rest",
	}
	if it.page == 1 {
		request.Path = it.driver.client.DataPath("query")
		request.Query = url.Values{"q": []string{it.soql}}
	} else {
		request.Path = it.nextURL
	}

	var page queryPage
	attempts := 0
	err := retryTransient(it.ctx, it.driver.retryPolicy(), it.driver.attempts, func() error {
		attempts++
		page = queryPage{}
		return it.driver.client.JSON(it.ctx, request, &page)
	})
	if err != nil {
		it.err = &PageFetchError{Page: it.page, Attempts: attempts, Err: err}
		return
	}

	it.rows, it.idx = page.Records, 0
	it.nextURL = page.NextRecordsURL
	it.done = page.Done || page.NextRecordsURL == ""
}

// retryTransient repeats fn up to attempts times while it fails with a
// transient error
func retryTransient(ctx context.Context, policy backoff.BackOff, attempts int, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	bounded := backoff.WithContext(backoff.WithMaxRetries(policy, uint64(attempts-1)), ctx)
	return backoff.RetryNotify(func() error {
		err := fn()
		if err != nil && !IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}, bounded, func(err error, wait time.Duration) {
		logger.Warnf("retrying salesforce request in %s: %s", wait, err)
	})
}
