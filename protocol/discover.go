package protocol

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/datazip-inc/olake-salesforce/types"
	"github.com/datazip-inc/olake-salesforce/utils"
	"github.com/datazip-inc/olake-salesforce/utils/logger"
)

// discoverCmd represents the discover command
var discoverCmd = &cobra.Command{
	Use:   "discover",
	Short: "discover command",
	PreRunE: func(_ *cobra.Command, _ []string) error {
		if configPath == "" {
			return fmt.Errorf("--config not passed")
		}

		return utils.UnmarshalFile(configPath, connector.GetConfigRef(), true)
	},
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx, cancel := commandContext(cmd)
		defer cancel()

		startTime := time.Now()
		if err := connector.Setup(ctx); err != nil {
			return err
		}

		streams, err := connector.Discover(ctx)
		if err != nil {
			return err
		}
		if len(streams) == 0 {
			return errors.New("no streams found in connector")
		}

		logger.Infof("discover of %s finished in %s", connector.Type(), time.Since(startTime).Round(time.Millisecond))
		types.LogCatalog(streams)
		return nil
	},
}
