package parquet

import (
	"fmt"
	"strings"

	goparquet "github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress"

	"github.com/datazip-inc/olake-salesforce/utils"
)

type Config struct {
	// Path is the local directory receiving one folder per stream
	Path string `json:"local_path" validate:"required" jsonschema:"required"`
	// Compression codec: snappy (default), gzip, zstd, none
	Compression string `json:"compression,omitempty"`
}

var codecs = map[string]compress.Codec{
	"snappy":       &goparquet.Snappy,
	"gzip":         &goparquet.Gzip,
	"zstd":         &goparquet.Zstd,
	"none":         &goparquet.Uncompressed,
	"uncompressed": &goparquet.Uncompressed,
}

func (c *Config) Validate() error {
	c.Compression = strings.ToLower(utils.Ternary(c.Compression == "", "snappy", c.Compression).(string))
	if _, found := codecs[c.Compression]; !found {
		return fmt.Errorf("invalid compression codec: %s. Valid options are: snappy, gzip, zstd, none, uncompressed", c.Compression)
	}

	return utils.Validate(c)
}

func (c *Config) codec() compress.Codec {
	return codecs[c.Compression]
}
