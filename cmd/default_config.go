package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/paint-sequencer/paint-sequencer/sim"
)

// writeDefaults renders the effective configuration as YAML.
func writeDefaults(w io.Writer, cfg sim.Config) error {
	data, err := cfg.Marshal()
	if err != nil {
		return err
	}
	_, err = fmt.Fprint(w, string(data))
	return err
}

// defaultsCmd prints the configuration a run would use.
var defaultsCmd = &cobra.Command{
	Use:   "defaults",
	Short: "Print the effective configuration as YAML",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()
		cfg, err := loadConfig()
		if err != nil {
			logrus.Fatalf("Config: %v", err)
		}
		if err := writeDefaults(os.Stdout, cfg); err != nil {
			logrus.Fatalf("Failed to render config: %v", err)
		}
	},
}
