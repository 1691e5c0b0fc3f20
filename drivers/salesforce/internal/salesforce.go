package driver

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/datazip-inc/olake-salesforce/constants"
	"github.com/datazip-inc/olake-salesforce/drivers/abstract"
	"github.com/datazip-inc/olake-salesforce/types"
	"github.com/datazip-inc/olake-salesforce/utils/logger"
)

const defaultHTTPTimeout = 5 * time.Minute

type Salesforce struct {
	config     *Config
	httpClient *http.Client
	now        func() time.Time

	session  *Session
	governor *Governor
	client   *Client
	bulk     *BulkJobDriver
	rest     *PaginatedQueryDriver
	// bounds every query of the run unless end_date is set
	runStart time.Time
}

func (s *Salesforce) Setup(ctx context.Context) error {
	if err := s.config.Validate(); err != nil {
		return err
	}
	if s.httpClient == nil {
		s.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	if s.now == nil {
		s.now = time.Now
	}

	session, err := NewSession(s.config, s.httpClient)
	if err != nil {
		return err
	}
	s.session = session
	s.governor = NewGovernor(s.config.RequestsPerSecond, s.config.QuotaPercentTotal)
	s.client = NewClient(s.httpClient, s.session, s.governor, s.config)
	s.bulk = NewBulkJobDriver(s.client, s.config)
	s.rest = NewPaginatedQueryDriver(s.client, s.config)
	s.runStart = s.now().UTC()

	if _, _, err := s.session.Credential(ctx); err != nil {
		return fmt.Errorf("failed to authenticate: %w", err)
	}

	return nil
}

func (s *Salesforce) GetConfigRef() abstract.Config {
	s.config = &Config{}
	return s.config
}

func (s *Salesforce) Spec() any {
	return Config{}
}

func (s *Salesforce) Type() string {
	return string(constants.Salesforce)
}

func (s *Salesforce) CloseConnection() {
	if s.httpClient != nil {
		s.httpClient.CloseIdleConnections()
	}
	if s.governor != nil {
		used, limit := s.governor.Usage()
		logger.Infof("salesforce api calls this run: %d, org usage %d/%d", s.governor.Calls(), used, limit)
	}
}

func (s *Salesforce) MaxConnections() int {
	return s.config.MaxWorkers
}

func (s *Salesforce) MaxRetries() int {
	return s.config.RetryCount
}

func (s *Salesforce) StateThreshold() int {
	return s.config.StateMessageThreshold
}

func (s *Salesforce) Flatten() bool {
	return s.config.Flatten()
}

func (s *Salesforce) GetStreamNames(ctx context.Context) ([]string, error) {
	logger.Infof("Starting discover for salesforce instance")
	return listSObjects(ctx, s.client, s.config.StreamsToDiscover)
}

func (s *Salesforce) ProduceSchema(ctx context.Context, streamName string) (*types.Stream, error) {
	logger.Infof("producing type schema for stream [%s]", streamName)

	stream, err := describeStream(ctx, s.client, streamName, s.config.Mode())
	if err != nil && !IsTransient(err) {
		return nil, fmt.Errorf("%w: %w", constants.ErrNonRetryable, err)
	}

	return stream, err
}

func (s *Salesforce) StreamRecords(ctx context.Context, stream types.StreamInterface, since any, fn abstract.RecordFn) error {
	window, err := s.window(stream, since)
	if err != nil {
		return err
	}
	if stream.Cursor() != "" && !window.Start.Before(window.End) {
		logger.Infof("stream[%s] is up to date at %s", stream.ID(), window.Start)
		return nil
	}

	soql := buildSOQL(stream, stream.Mode(), window)
	logger.Debugf("stream[%s] query: %s", stream.ID(), soql)

	if stream.Mode() == types.BulkMode {
		return s.bulk.Run(ctx, soql, func(row map[string]any) error {
			return fn(ctx, row)
		})
	}

	rows := s.rest.Query(ctx, soql)
	for rows.Next() {
		if err := fn(ctx, rows.Row()); err != nil {
			return err
		}
	}
	logger.Debugf("stream[%s] read %d pages", stream.ID(), rows.Pages())

	return rows.Err()
}

func (s *Salesforce) StreamDeleted(ctx context.Context, stream types.StreamInterface, since any, fn abstract.RecordFn) error {
	window, err := s.window(stream, since)
	if err != nil {
		return err
	}

	rows, err := s.rest.Deleted(ctx, stream.Name(), window)
	if err != nil {
		return err
	}
	for _, row := range rows {
		if err := fn(ctx, row); err != nil {
			return err
		}
	}

	return nil
}

func (s *Salesforce) window(stream types.StreamInterface, since any) (Window, error) {
	window, err := resolveWindow(since, s.config.StartTime(), s.config.EndTime(s.runStart))
	if err != nil {
		return window, fmt.Errorf("stream[%s]: %s", stream.ID(), err)
	}

	return window, nil
}
