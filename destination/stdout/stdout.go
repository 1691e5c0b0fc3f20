package stdout

import (
	"context"
	"time"

	"github.com/datazip-inc/olake-salesforce/destination"
	"github.com/datazip-inc/olake-salesforce/types"
	"github.com/datazip-inc/olake-salesforce/utils/logger"
)

type Config struct{}

func (c *Config) Validate() error {
	return nil
}

// Stdout prints RECORD and STATE messages as JSON lines
type Stdout struct {
	config *Config
	now    func() time.Time
}

func (s *Stdout) GetConfigRef() destination.Config {
	return s.config
}

func (s *Stdout) Spec() any {
	return Config{}
}

func (s *Stdout) Type() string {
	return string(types.Stdout)
}

func (s *Stdout) Check(_ context.Context) error {
	return nil
}

func (s *Stdout) Setup(_ context.Context, _ []types.StreamInterface) error {
	return nil
}

func (s *Stdout) WriteRecord(_ context.Context, stream string, record types.Record) error {
	return logger.LogMessage(types.NewRecordMessage(stream, record, s.now().UTC()))
}

func (s *Stdout) WriteState(_ context.Context, state *types.State) error {
	return logger.LogMessage(&types.Message{
		Type:  types.StateMessage,
		State: state,
	})
}

func (s *Stdout) Close(_ context.Context) error {
	return nil
}

func init() {
	destination.RegisteredWriters[types.Stdout] = func() destination.Writer {
		return &Stdout{config: &Config{}, now: time.Now}
	}
}
