package olake

import (
	_ "github.com/datazip-inc/olake-salesforce/destination/parquet" // registering local parquet writer
	_ "github.com/datazip-inc/olake-salesforce/destination/stdout"  // registering stdout writer
	"github.com/datazip-inc/olake-salesforce/protocol"
	"github.com/datazip-inc/olake-salesforce/utils/logger"
	"github.com/datazip-inc/olake-salesforce/utils/safego"
)

func RegisterDriver(driver protocol.Driver) {
	defer safego.Recovery(true)

	// Execute the root command
	err := protocol.CreateRootCommand(driver).Execute()
	if err != nil {
		logger.Fatal(err)
	}
}
