package protocol

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/datazip-inc/olake-salesforce/types"
	"github.com/datazip-inc/olake-salesforce/utils"
	"github.com/datazip-inc/olake-salesforce/utils/logger"
)

// clearCmd drops the bookmarks of the selected streams so the next sync
// reads them again from start_date
var clearCmd = &cobra.Command{
	Use:   "clear-state",
	Short: "Olake clear command to reset the state of selected streams",
	PreRunE: func(_ *cobra.Command, _ []string) error {
		if streamsPath == "" {
			return fmt.Errorf("--streams not passed")
		} else if statePath == "" {
			return fmt.Errorf("--state not passed")
		}

		catalog = &types.Catalog{}
		if err := utils.UnmarshalFile(streamsPath, catalog, false); err != nil {
			return err
		}

		var err error
		state, err = loadState(statePath)
		return err
	},
	RunE: func(_ *cobra.Command, _ []string) error {
		selected, err := catalog.Selected(nil)
		if err != nil {
			return fmt.Errorf("failed to get selected streams for clearing: %w", err)
		}

		cleared := clearBookmarks(state, selected)
		if cleared == 0 {
			logger.Infof("No bookmarks of selected streams found in state")
			return nil
		}

		state.LogState()
		logger.Infof("Cleared bookmarks of %d streams", cleared)
		return nil
	},
}

// clearBookmarks removes the bookmarks of streams and returns how many existed
func clearBookmarks(state *types.State, streams []types.StreamInterface) int {
	drop := types.NewSet[string]()
	for _, stream := range streams {
		drop.Insert(stream.ID())
	}

	var keep []string
	cleared := 0
	for _, stream := range state.Snapshot().Streams {
		if drop.Exists(stream.Stream) {
			cleared++
			continue
		}
		keep = append(keep, stream.Stream)
	}
	state.Retain(keep...)

	return cleared
}
