package main

import (
	olake "github.com/datazip-inc/olake-salesforce"
	driver "github.com/datazip-inc/olake-salesforce/drivers/salesforce/internal"
)

func main() {
	driver := &driver.Salesforce{}
	defer driver.CloseConnection()
	olake.RegisterDriver(driver)
}
