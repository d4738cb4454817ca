package main

import (
	"os"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hotgluexyz/target-dynamics-onprem/dynamics"
)

var (
	configPath string
	cfg        dynamics.Config
)

var rootCmd = &cobra.Command{
	Use:   "target-dynamics-onprem",
	Short: "Write vendors, items, purchase orders and invoices to Dynamics NAV / Business Central",
	Long: "Reads Singer messages, maps each record to the Dynamics entity for its stream and " +
		"writes it through the OData web services or the Business Central API. Final state is written to stdout.",
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if configPath == "" {
			return eris.New("--config is required")
		}
		c, err := loadConfig(cmd)
		if err != nil {
			return err
		}
		cfg = c

		if _, err := dynamics.InitLogger(cfg.Log); err != nil {
			return eris.Wrap(err, "init logger")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = zap.L().Sync()
	},
	RunE: runTarget,
}

// loadConfig validates credentials unless the command only documents mappings.
func loadConfig(cmd *cobra.Command) (dynamics.Config, error) {
	if cmd.Annotations["config"] == "mappings-only" {
		configFile, err := dynamics.ReadMappingFile(configPath)
		if err != nil {
			return dynamics.Config{}, err
		}
		defaults, err := dynamics.DefaultMappings.MustFindDefaultsMappingFile()
		if err != nil {
			return dynamics.Config{}, err
		}
		env := dynamics.ChainedEnvVar{dynamics.JSONCompositeEnvVar{Parent: dynamics.ConfigEnvVar}, dynamics.ProcessEnvVar{}}
		return dynamics.YAMLConfigUnmarshaler{}.Unmarshal(env, defaults, configFile)
	}
	return dynamics.LoadConfigFile(configPath)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "config file (JSON or YAML)")
	rootCmd.Flags().StringP("input", "i", "", "read messages from this file instead of stdin")
	rootCmd.AddCommand(fieldsCmd, checkCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
