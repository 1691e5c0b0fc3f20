package protocol

import (
	"fmt"
	"strings"

	"github.com/goccy/go-json"
	"github.com/invopop/jsonschema"
	"github.com/spf13/cobra"

	"github.com/datazip-inc/olake-salesforce/destination"
	"github.com/datazip-inc/olake-salesforce/types"
	"github.com/datazip-inc/olake-salesforce/utils/logger"
)

// specCmd prints the JSON schema of the connector or destination config
var specCmd = &cobra.Command{
	Use:   "spec",
	Short: "spec command",
	RunE: func(_ *cobra.Command, _ []string) error {
		var config any
		if destinationType == "" {
			config = connector.Spec()
		} else {
			writerType := types.DestinationType(strings.ToUpper(destinationType))
			newFunc, found := destination.RegisteredWriters[writerType]
			if !found {
				return fmt.Errorf("invalid destination type has been passed [%s]", writerType)
			}
			config = newFunc().Spec()
		}

		spec, err := specSchema(config)
		if err != nil {
			return err
		}

		logger.FileLogger(types.Message{Type: types.SpecMessage, Spec: spec}, "spec", ".json")
		return nil
	},
}

// specSchema reflects config into a JSON schema; only fields tagged
// jsonschema:"required" are listed as required
func specSchema(config any) (map[string]any, error) {
	reflector := &jsonschema.Reflector{
		ExpandedStruct:             true,
		DoNotReference:             true,
		RequiredFromJSONSchemaTags: true,
	}

	encoded, err := json.Marshal(reflector.Reflect(config))
	if err != nil {
		return nil, fmt.Errorf("failed to reflect config: %s", err)
	}

	var spec map[string]any
	if err := json.Unmarshal(encoded, &spec); err != nil {
		return nil, fmt.Errorf("failed to decode config schema: %s", err)
	}

	return spec, nil
}
