package protocol

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/datazip-inc/olake-salesforce/constants"
	"github.com/datazip-inc/olake-salesforce/destination"
	"github.com/datazip-inc/olake-salesforce/drivers/abstract"
	"github.com/datazip-inc/olake-salesforce/telemetry"
	"github.com/datazip-inc/olake-salesforce/types"
	"github.com/datazip-inc/olake-salesforce/utils"
	"github.com/datazip-inc/olake-salesforce/utils/logger"
)

// syncCmd extracts the selected streams into the destination
var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Salesforce sync command",
	Long:  `Sync command extracts the selected streams incrementally and writes records and checkpoints to the destination`,
	Example: `
// Base command:
olake-salesforce sync --config path/to/config --destination path/to/destination/config --streams path/to/streams

// With State:
olake-salesforce sync --config path/to/config --destination path/to/destination/config --streams path/to/streams --state /path/to/state
`,
	PreRunE: func(_ *cobra.Command, _ []string) error {
		if configPath == "" {
			return fmt.Errorf("--config not passed")
		} else if streamsPath == "" {
			return fmt.Errorf("--streams not passed")
		}

		if err := utils.UnmarshalFile(configPath, connector.GetConfigRef(), true); err != nil {
			return err
		}

		// no destination means records are printed on stdout
		destinationConfig = nil
		if destinationConfigPath != "" {
			destinationConfig = &types.WriterConfig{}
			if err := utils.UnmarshalFile(destinationConfigPath, destinationConfig, true); err != nil {
				return err
			}
		}

		catalog = &types.Catalog{}
		if err := utils.UnmarshalFile(streamsPath, catalog, false); err != nil {
			return err
		}

		var err error
		state, err = loadState(statePath)
		return err
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()
		ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()

		if metricsAddr != "" {
			metricsCtx, stopMetrics := context.WithCancel(ctx)
			defer stopMetrics()
			go func() {
				if err := telemetry.Serve(metricsCtx, metricsAddr); err != nil {
					logger.Warnf("metrics server stopped: %s", err)
				}
			}()
		}

		configHash := telemetry.ComputeConfigHash(configPath, streamsPath)
		err := runSync(ctx)

		var partial *abstract.PartialSyncError
		if errors.As(err, &partial) {
			// the surviving streams are checkpointed; a rerun retries the rest
			logger.Warnf("sync finished with failed streams: %s", partial)
			telemetry.TrackSyncResult(configHash, false)
			return nil
		}

		telemetry.TrackSyncResult(configHash, err == nil)
		return err
	},
}

func runSync(ctx context.Context) (err error) {
	if err := connector.Setup(ctx); err != nil {
		return err
	}

	// the catalog carries the discovered schema; streams are checked against it
	source := make([]*types.Stream, 0, len(catalog.Streams))
	for _, configured := range catalog.Streams {
		if configured.Stream != nil {
			source = append(source, configured.Stream)
		}
	}
	streams, err := catalog.Selected(source)
	if err != nil {
		return err
	}

	writer, err := destination.NewWriter(ctx, destinationConfig)
	if err != nil {
		return err
	}
	if err := writer.Setup(ctx, streams); err != nil {
		return fmt.Errorf("failed to setup destination: %s", err)
	}

	emitter := destination.NewEmitter(writer)
	defer func() {
		if closeErr := emitter.Close(ctx); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	// bookmarks of streams no longer selected are dropped
	selectedIDs := make([]string, 0, len(streams))
	for _, stream := range streams {
		selectedIDs = append(selectedIDs, stream.ID())
	}
	state.Retain(selectedIDs...)
	connector.SetupState(state)

	startTime := time.Now()
	err = connector.Read(ctx, emitter, streams)
	logger.Infof("synced %d records across %d streams in %s", emitter.SyncedRecords(), len(streams), time.Since(startTime).Round(time.Millisecond))

	return err
}

// loadState reads the prior checkpoint; a missing path starts from scratch
func loadState(path string) (*types.State, error) {
	loaded := types.NewState()
	if path == "" {
		return loaded, nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		logger.Infof("state file %s not found, starting from start_date", path)
		return loaded, nil
	}

	if err := utils.UnmarshalFile(path, loaded, false); err != nil {
		return nil, err
	}
	if loaded.Version > constants.LatestStateVersion {
		return nil, fmt.Errorf("state version %d is newer than supported version %d", loaded.Version, constants.LatestStateVersion)
	}

	return loaded, nil
}
