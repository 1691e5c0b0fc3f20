package constants

// State files carry a version so a newer binary can tell how an older one
// wrote its bookmarks.
//
// Version History:
//   - Version 1: Current Version
//     * every stream bookmark records its replication key alongside the value
//     * deleted-records progress is stored separately as `deleted_value`

const (
	LatestStateVersion = 1
)
