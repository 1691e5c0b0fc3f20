package driver

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"

	"github.com/datazip-inc/olake-salesforce/constants"
	"github.com/datazip-inc/olake-salesforce/telemetry"
	"github.com/datazip-inc/olake-salesforce/utils"
	"github.com/datazip-inc/olake-salesforce/utils/logger"
)

// JobState is the local lifecycle of one Bulk 2.0 query job
type JobState string

const (
	JobCreated          JobState = "Created"
	JobSubmitted        JobState = "Submitted"
	JobPolling          JobState = "Polling"
	JobInProgress       JobState = "InProgress"
	JobComplete         JobState = "JobComplete"
	JobBatchesRetrieved JobState = "BatchesRetrieved"
	JobClosed           JobState = "Closed"
	JobFailed           JobState = "Failed"
	JobAborted          JobState = "Aborted"
)

// Aborted is reachable from every state that is not terminal
var jobTransitions = map[JobState][]JobState{
	JobCreated:          {JobSubmitted},
	JobSubmitted:        {JobPolling, JobFailed},
	JobPolling:          {JobInProgress, JobComplete, JobFailed},
	JobInProgress:       {JobPolling, JobFailed},
	JobComplete:         {JobBatchesRetrieved},
	JobBatchesRetrieved: {JobClosed},
	JobFailed:           {},
}

func (s JobState) Terminal() bool {
	return s == JobClosed || s == JobAborted
}

type Job struct {
	ID               string
	State            JobState
	Query            string
	// Sforce-Locator values of the result pages after the first
	Locators         []string
	CreatedAt        time.Time
	LastPollAt       time.Time
	RecordsProcessed int64
}

func (j *Job) transition(to JobState) error {
	if to == JobAborted && !j.State.Terminal() {
		j.State = to
		return nil
	}

	for _, allowed := range jobTransitions[j.State] {
		if allowed == to {
			j.State = to
			return nil
		}
	}

	return fmt.Errorf("illegal bulk job transition %s -> %s for job[%s]", j.State, to, j.ID)
}

// remote job status payload
type jobStatus struct {
	ID                     string      `json:"id"`
	State                  string      `json:"state"`
	ErrorMessage           string      `json:"errorMessage"`
	NumberRecordsProcessed json.Number `json:"numberRecordsProcessed"`
}

// BulkJobDriver drives Bulk 2.0 query jobs: submit, poll, stream results
// and always close or abort the remote job on the way out
type BulkJobDriver struct {
	client      *Client
	chunkSize   int
	pollTimeout time.Duration
	attempts    int

	now         func() time.Time
	sleep       func(ctx context.Context, d time.Duration) error
	retryPolicy func() backoff.BackOff
}

func NewBulkJobDriver(client *Client, config *Config) *BulkJobDriver {
	return &BulkJobDriver{
		client:      client,
		chunkSize:   config.BulkChunkSize,
		pollTimeout: config.PollTimeout(),
		attempts:    config.MaxPageAttempts,
		now:         time.Now,
		sleep:       sleepContext,
		retryPolicy: func() backoff.BackOff { return backoff.NewExponentialBackOff() },
	}
}

// Run executes query as one bulk job and hands every result row to fn in
// the order Salesforce returns them
func (b *BulkJobDriver) Run(ctx context.Context, query string, fn func(row map[string]any) error) error {
	return b.execute(ctx, &Job{State: JobCreated, Query: query, CreatedAt: b.now()}, fn)
}

func (b *BulkJobDriver) execute(ctx context.Context, job *Job, fn func(row map[string]any) error) (err error) {
	if err := b.submit(ctx, job); err != nil {
		return err
	}

	defer func() {
		if finalizeErr := b.finalize(ctx, job, err); finalizeErr != nil && err == nil {
			err = finalizeErr
		}
	}()

	if err := b.poll(ctx, job); err != nil {
		return err
	}

	return b.retrieve(ctx, job, fn)
}

func (b *BulkJobDriver) submit(ctx context.Context, job *Job) error {
	var created jobStatus
	err := retryTransient(ctx, b.retryPolicy(), b.attempts, func() error {
		return b.client.JSON(ctx, Request{
			Method: http.MethodPost,
			Path:   b.client.DataPath("jobs", "query"),
			Body: map[string]string{
				"operation":       "query",
				"query":           job.Query,
				"contentType":     "CSV",
				"columnDelimiter": "COMMA",
				"lineEnding":      "LF",
			},
			Surface: "bulk",
		}, &created)
	})
	if err != nil {
		return fmt.Errorf("failed to submit bulk job: %w", err)
	}

	job.ID = created.ID
	logger.Debugf("submitted bulk job[%s]", job.ID)
	return job.transition(JobSubmitted)
}

func (b *BulkJobDriver) poll(ctx context.Context, job *Job) error {
	interval := backoff.NewExponentialBackOff()
	interval.InitialInterval = constants.BulkPollInitialInterval
	interval.MaxInterval = constants.BulkPollMaxInterval
	interval.MaxElapsedTime = 0
	interval.Reset()

	deadline := job.CreatedAt.Add(b.pollTimeout)
	if err := job.transition(JobPolling); err != nil {
		return err
	}

	for {
		var status jobStatus
		err := b.client.JSON(ctx, Request{
			Method:  http.MethodGet,
			Path:    b.client.DataPath("jobs", "query", job.ID),
			Surface: "bulk",
		}, &status)
		job.LastPollAt = b.now()

		switch {
		case err != nil && !IsTransient(err):
			return fmt.Errorf("failed to poll bulk job[%s]: %w", job.ID, err)
		case err != nil:
			logger.Warnf("transient error polling bulk job[%s]: %s", job.ID, err)
		default:
			telemetry.JobPolls.WithLabelValues(status.State).Inc()
			switch status.State {
			case "JobComplete":
				processed, err := strconv.ParseInt(status.NumberRecordsProcessed.String(), 10, 64)
				// unknown count: read the results rather than assume none
				job.RecordsProcessed = utils.Ternary(err != nil, int64(-1), processed).(int64)
				return job.transition(JobComplete)
			case "Failed", "Aborted":
				if err := job.transition(JobFailed); err != nil {
					return err
				}
				return &JobFailedError{JobID: job.ID, State: status.State, Message: status.ErrorMessage}
			default:
				if job.State == JobPolling {
					if err := job.transition(JobInProgress); err != nil {
						return err
					}
				}
			}
		}

		if !b.now().Before(deadline) {
			return &JobTimeoutError{JobID: job.ID, Timeout: b.pollTimeout}
		}
		if err := b.sleep(ctx, interval.NextBackOff()); err != nil {
			return err
		}
		if job.State == JobInProgress {
			if err := job.transition(JobPolling); err != nil {
				return err
			}
		}
	}
}

func (b *BulkJobDriver) retrieve(ctx context.Context, job *Job, fn func(row map[string]any) error) error {
	if job.RecordsProcessed == 0 {
		logger.Debugf("bulk job[%s] produced no records", job.ID)
		return job.transition(JobBatchesRetrieved)
	}

	locator := ""
	for {
		query := url.Values{"maxRecords": []string{strconv.Itoa(b.chunkSize)}}
		if locator != "" {
			query.Set("locator", locator)
		}

		var resp *http.Response
		err := retryTransient(ctx, b.retryPolicy(), b.attempts, func() error {
			var err error
			resp, err = b.client.Do(ctx, Request{
				Method:  http.MethodGet,
				Path:    b.client.DataPath("jobs", "query", job.ID, "results"),
				Query:   query,
				Header:  map[string]string{"Accept": "text/csv"},
				Surface: "bulk",
			})
			return err
		})
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
				return &JobExpiredError{JobID: job.ID}
			}
			return fmt.Errorf("failed to fetch results of bulk job[%s]: %w", job.ID, err)
		}

		err = readCSV(resp.Body, fn)
		resp.Body.Close()
		if err != nil {
			return err
		}

		next := resp.Header.Get(constants.LocatorHeader)
		if next == "" || next == "null" {
			break
		}
		locator = next
		job.Locators = append(job.Locators, locator)
	}

	return job.transition(JobBatchesRetrieved)
}

// finalize closes a drained job and aborts anything else, on a context that
// outlives the cancelled run
func (b *BulkJobDriver) finalize(ctx context.Context, job *Job, runErr error) error {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Minute)
	defer cancel()

	if runErr == nil && job.State == JobBatchesRetrieved {
		if err := job.transition(JobClosed); err != nil {
			return err
		}
		err := retryTransient(ctx, b.retryPolicy(), b.attempts, func() error {
			return b.client.JSON(ctx, Request{
				Method:  http.MethodDelete,
				Path:    b.client.DataPath("jobs", "query", job.ID),
				Surface: "bulk",
			}, nil)
		})
		if err != nil {
			logger.Warnf("failed to close bulk job[%s]: %s", job.ID, err)
		}
		return nil
	}

	if err := job.transition(JobAborted); err != nil {
		return err
	}
	err := retryTransient(ctx, b.retryPolicy(), b.attempts, func() error {
		return b.client.JSON(ctx, Request{
			Method:  http.MethodPatch,
			Path:    b.client.DataPath("jobs", "query", job.ID),
			Body:    map[string]string{"state": "Aborted"},
			Surface: "bulk",
		}, nil)
	})
	if err != nil {
		logger.Warnf("failed to abort bulk job[%s]: %s", job.ID, err)
	}

	return nil
}

// readCSV streams rows; empty cells become nulls
func readCSV(body io.Reader, fn func(row map[string]any) error) error {
	reader := csv.NewReader(body)
	reader.ReuseRecord = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read csv header: %s", err)
	}
	columns := append([]string(nil), header...)

	for {
		record, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return fmt.Errorf("failed to read csv row: %s", err)
		}

		row := make(map[string]any, len(columns))
		for idx, column := range columns {
			if record[idx] == "" {
				row[column] = nil
				continue
			}
			row[column] = record[idx]
		}

		if err := fn(row); err != nil {
			return err
		}
	}
}
