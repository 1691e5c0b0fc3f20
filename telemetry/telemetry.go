package telemetry

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/viper"

	"github.com/datazip-inc/olake-salesforce/constants"
	"github.com/datazip-inc/olake-salesforce/utils/logger"
)

const syncMetricsFileName = "sync_metrics.json"

// Registry holds every collector exported by the connector
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

var (
	APICalls = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "olake_salesforce",
		Name:      "api_calls_total",
		Help:      "Salesforce API requests sent, by surface and response status class",
	}, []string{"surface", "status"})

	RecordsEmitted = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "olake_salesforce",
		Name:      "records_emitted_total",
		Help:      "Records written to the destination",
	}, []string{"stream"})

	TranslationWarnings = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "olake_salesforce",
		Name:      "translation_warnings_total",
		Help:      "Fields emitted untyped after failing coercion",
	}, []string{"stream"})

	StreamFailures = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "olake_salesforce",
		Name:      "stream_failures_total",
		Help:      "Streams excluded from a sync after a stream fatal error",
	}, []string{"stream"})

	Checkpoints = factory.NewCounter(prometheus.CounterOpts{
		Namespace: "olake_salesforce",
		Name:      "checkpoints_total",
		Help:      "Combined checkpoints flushed to the destination",
	})

	JobPolls = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "olake_salesforce",
		Name:      "bulk_job_polls_total",
		Help:      "Bulk job status polls, by observed job state",
	}, []string{"state"})

	SyncResults = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: "olake_salesforce",
		Name:      "sync_results_total",
		Help:      "Finished syncs, by result",
	}, []string{"result"})

	QuotaUsed = factory.NewGauge(prometheus.GaugeOpts{
		Namespace: "olake_salesforce",
		Name:      "api_quota_used_ratio",
		Help:      "Share of the org's daily API budget reported by Sforce-Limit-Info",
	})
)

// Serve exposes Registry on addr until ctx is done
func Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(Registry, promhttp.HandlerOpts{}))

	server := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 10 * time.Second}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(shutdownCtx)
	}()

	logger.Infof("serving metrics on %s/metrics", addr)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server failed: %s", err)
	}

	return nil
}

type SyncMetrics struct {
	Total   int            `json:"total"`
	Success int            `json:"success"`
	Failed  int            `json:"failed"`
	Weeks   map[string]int `json:"weeks"`
}

// ComputeConfigHash identifies a connection by the contents of its config files
func ComputeConfigHash(paths ...string) string {
	hasher := sha256.New()
	for _, path := range paths {
		if path == "" {
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		hasher.Write(data)
	}

	return hex.EncodeToString(hasher.Sum(nil))
}

// TrackSyncResult tallies sync outcomes per config hash and ISO week in the
// config folder. Best effort: failures are logged and ignored.
func TrackSyncResult(configHash string, success bool) *SyncMetrics {
	SyncResults.WithLabelValues(syncResultLabel(success)).Inc()

	folder := viper.GetString(constants.ConfigFolder)
	if configHash == "" || folder == "" || viper.GetBool(constants.NoSave) {
		return nil
	}

	metricsPath := filepath.Join(folder, syncMetricsFileName)
	metrics := make(map[string]SyncMetrics)
	if data, err := os.ReadFile(metricsPath); err == nil {
		_ = json.Unmarshal(data, &metrics)
	}

	year, week := time.Now().ISOWeek()
	weekKey := fmt.Sprintf("%d-W%02d", year, week)

	configMetrics, exists := metrics[configHash]
	if !exists || configMetrics.Weeks == nil {
		configMetrics.Weeks = make(map[string]int)
	}
	configMetrics.Total++
	if success {
		configMetrics.Success++
	} else {
		configMetrics.Failed++
	}
	configMetrics.Weeks[weekKey]++
	metrics[configHash] = configMetrics

	data, err := json.Marshal(metrics)
	if err != nil {
		logger.Warnf("failed to encode sync metrics: %s", err)
		return &configMetrics
	}
	if err := os.WriteFile(metricsPath, data, 0600); err != nil {
		logger.Warnf("failed to save sync metrics: %s", err)
	}

	return &configMetrics
}

func syncResultLabel(success bool) string {
	if success {
		return "success"
	}
	return "failed"
}
