package commands

import (
	"database/sql"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/spatialworks/geocat/config"
	"github.com/spatialworks/geocat/errors"
)

// DbCmd represents the db (database) command
var DbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the geocat database",
	Long: `Manage database operations including migration and statistics.

Examples:
  geocat db stats      # Show harvest and catalog statistics
  geocat db migrate    # Apply pending schema migrations`,
}

var dbStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show harvest and catalog statistics",
	RunE:  runDbStats,
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE:  runDbMigrate,
}

func init() {
	DbCmd.AddCommand(dbStatsCmd)
	DbCmd.AddCommand(dbMigrateCmd)
}

func runDbStats(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return errors.Wrap(err, "failed to load configuration")
	}

	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	var sources, jobs, objects, currentObjects, objectErrors int
	var records, activeRecords, organizations int

	counts := []struct {
		query string
		dest  *int
	}{
		{`SELECT COUNT(*) FROM harvest_sources`, &sources},
		{`SELECT COUNT(*) FROM harvest_jobs`, &jobs},
		{`SELECT COUNT(*) FROM harvest_objects`, &objects},
		{`SELECT COUNT(*) FROM harvest_objects WHERE current = 1`, &currentObjects},
		{`SELECT COUNT(*) FROM harvest_object_errors`, &objectErrors},
		{`SELECT COUNT(*) FROM records`, &records},
		{`SELECT COUNT(*) FROM records WHERE state = 'active'`, &activeRecords},
		{`SELECT COUNT(*) FROM organizations`, &organizations},
	}
	for _, c := range counts {
		if err := database.QueryRow(c.query).Scan(c.dest); err != nil && err != sql.ErrNoRows {
			return errors.Wrapf(err, "failed to run %q", c.query)
		}
	}

	fmt.Println("Database Statistics")
	fmt.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	fmt.Println()
	fmt.Printf("Database Path:    %s\n", cfg.Database.Path)
	fmt.Printf("Harvest Sources:  %d\n", sources)
	fmt.Printf("Harvest Jobs:     %d\n", jobs)
	fmt.Printf("Harvest Objects:  %d (%d current)\n", objects, currentObjects)
	fmt.Printf("Object Errors:    %d\n", objectErrors)
	fmt.Println()
	fmt.Printf("Catalog Records:  %d (%d active)\n", records, activeRecords)
	fmt.Printf("Organizations:    %d\n", organizations)
	return nil
}

func runDbMigrate(cmd *cobra.Command, args []string) error {
	// openDatabase migrates as a side effect
	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	fmt.Println("Database schema is up to date")
	return nil
}
