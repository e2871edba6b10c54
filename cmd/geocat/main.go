package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/spatialworks/geocat/cmd/geocat/commands"
	"github.com/spatialworks/geocat/logger"
)

var rootCmd = &cobra.Command{
	Use:   "geocat",
	Short: "geocat - Geospatial metadata harvesting and cataloguing",
	Long: `geocat - Harvest ISO-19139 metadata documents into a catalog.

geocat ingests geospatial metadata documents from remote sources or
local files, validates them, and maps them into normalized catalog
records with tags, extras, resources and spatial extents.

Available commands:
  import  - Import a metadata document from a file or URL
  watch   - Watch a drop directory and import documents as they arrive
  source  - Manage harvest sources
  object  - Inspect harvest objects and their errors
  db      - Manage the geocat database
  version - Show version information

Examples:
  geocat import dataset.xml            # Import a local document
  geocat import https://example.org/md.xml --source-id csw-prod
  geocat watch ./incoming              # Import documents dropped into a directory
  geocat db stats                      # Show database statistics`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := logger.Initialize(false); err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		verbosity, _ := cmd.Flags().GetCount("verbose")
		if verbosity > 0 {
			return logger.SetLevel(zapcore.DebugLevel)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().CountP("verbose", "v", "Increase output verbosity (repeat for more detail: -v, -vv)")

	rootCmd.AddCommand(commands.ImportCmd)
	rootCmd.AddCommand(commands.WatchCmd)
	rootCmd.AddCommand(commands.SourceCmd)
	rootCmd.AddCommand(commands.ObjectCmd)
	rootCmd.AddCommand(commands.DbCmd)
	rootCmd.AddCommand(commands.VersionCmd)
}

func main() {
	defer logger.Sync()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
