package protocol

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/datazip-inc/olake-salesforce/constants"
	"github.com/datazip-inc/olake-salesforce/drivers/abstract"
	"github.com/datazip-inc/olake-salesforce/types"
	"github.com/datazip-inc/olake-salesforce/utils"
	"github.com/datazip-inc/olake-salesforce/utils/logger"
)

var (
	configPath            string
	destinationConfigPath string
	destinationType       string
	statePath             string
	streamsPath           string
	noSave                bool
	encryptionKey         string
	logLevel              string
	metricsAddr           string
	timeout               int64 // timeout in seconds
	catalog               *types.Catalog
	state                 *types.State
	destinationConfig     *types.WriterConfig

	commands  = []*cobra.Command{}
	connector *abstract.AbstractDriver
)

// RootCmd represents the base command when called without any subcommands
var RootCmd = &cobra.Command{
	Use:   "olake-salesforce",
	Short: "Salesforce source connector",
	PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
		// set global variables
		viper.SetDefault(constants.ConfigFolder, os.TempDir())
		viper.SetDefault(constants.StatePath, filepath.Join(os.TempDir(), constants.StateFileName))
		viper.SetDefault(constants.StreamsPath, filepath.Join(os.TempDir(), "streams.json"))
		viper.Set(constants.NoSave, noSave)
		if !noSave {
			configFolder := utils.Ternary(configPath == "", filepath.Dir(destinationConfigPath), filepath.Dir(configPath)).(string)
			viper.Set(constants.ConfigFolder, configFolder)
			viper.Set(constants.StatePath, utils.Ternary(statePath == "", filepath.Join(configFolder, constants.StateFileName), statePath).(string))
			viper.Set(constants.StreamsPath, utils.Ternary(streamsPath == "", filepath.Join(configFolder, "streams.json"), streamsPath).(string))
		}

		if encryptionKey != "" {
			viper.Set(constants.EncryptionKey, encryptionKey)
		}
		_ = viper.BindEnv(constants.LogLevel)
		if logLevel != "" {
			viper.Set(constants.LogLevel, logLevel)
		}

		// logger uses CONFIG_FOLDER
		logger.Init()
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(args) == 0 {
			return cmd.Help()
		}

		if ok := utils.IsValidSubcommand(commands, args[0]); !ok {
			return fmt.Errorf("'%s' is an invalid command. Use 'olake-salesforce --help' to display usage guide", args[0])
		}

		return nil
	},
}

func CreateRootCommand(driver Driver) *cobra.Command {
	RootCmd.AddCommand(commands...)
	connector = abstract.NewAbstractDriver(RootCmd.Context(), driver)

	return RootCmd
}

// commandContext bounds a command by --timeout when it is set
func commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout > 0 {
		return context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
	}

	return context.WithCancel(ctx)
}

func init() {
	commands = append(commands, specCmd, checkCmd, discoverCmd, syncCmd, clearCmd)
	RootCmd.PersistentFlags().StringVarP(&configPath, "config", "", "", "(Required) Config for connector")
	RootCmd.PersistentFlags().StringVarP(&destinationConfigPath, "destination", "", "", "Destination config for connector; records go to stdout when omitted")
	RootCmd.PersistentFlags().StringVarP(&destinationType, "destination-type", "", "", "Destination type for spec")
	RootCmd.PersistentFlags().StringVarP(&streamsPath, "catalog", "", "", "Path to the streams file for the connector")
	RootCmd.PersistentFlags().StringVarP(&streamsPath, "streams", "", "", "Path to the streams file for the connector")
	RootCmd.PersistentFlags().StringVarP(&statePath, "state", "", "", "(Optional) State for connector")
	RootCmd.PersistentFlags().BoolVarP(&noSave, "no-save", "", false, "(Optional) Flag to skip logging artifacts in file")
	RootCmd.PersistentFlags().StringVarP(&encryptionKey, "encryption-key", "", "", "(Optional) Decryption key. Provide the ARN of a KMS key, a UUID, or a custom string based on your encryption configuration.")
	RootCmd.PersistentFlags().StringVarP(&logLevel, "log-level", "", "", "(Optional) Log level; overrides the LOG_LEVEL environment variable")
	RootCmd.PersistentFlags().StringVarP(&metricsAddr, "metrics-addr", "", "", "(Optional) Address to serve prometheus metrics on during sync, e.g. :9090")
	RootCmd.PersistentFlags().Int64VarP(&timeout, "timeout", "", -1, "(Optional) Timeout to override default timeouts (in seconds)")
	// Disable Cobra CLI's built-in usage and error handling
	RootCmd.SilenceUsage = true
	RootCmd.SilenceErrors = true
}
