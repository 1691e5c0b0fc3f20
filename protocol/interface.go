package protocol

import "github.com/datazip-inc/olake-salesforce/drivers/abstract"

// Driver is a source connector the command line can run
type Driver interface {
	abstract.DriverInterface
}
