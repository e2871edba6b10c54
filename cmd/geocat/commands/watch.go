package commands

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"github.com/spatialworks/geocat/config"
	"github.com/spatialworks/geocat/errors"
	"github.com/spatialworks/geocat/logger"
)

// watchSettleDelay lets a file finish being written before import.
const watchSettleDelay = 500 * time.Millisecond

// WatchCmd watches a drop directory and imports documents as they
// arrive.
var WatchCmd = &cobra.Command{
	Use:   "watch <directory>",
	Short: "Watch a drop directory and import documents as they arrive",
	Long: `Watch a directory for new XML metadata documents and import each one.

Files are imported once writes to them settle. Already-present files
are imported on startup unless --no-initial is set.

Examples:
  geocat watch ./incoming
  geocat watch ./incoming --source-id drop-dir --force`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

var (
	watchSourceID    string
	watchSourceTitle string
	watchForce       bool
	watchNoInitial   bool
)

func init() {
	WatchCmd.Flags().StringVar(&watchSourceID, "source-id", "drop-dir", "Harvest source to file documents under")
	WatchCmd.Flags().StringVar(&watchSourceTitle, "source-title", "Drop directory", "Title used when creating the source")
	WatchCmd.Flags().BoolVar(&watchForce, "force", false, "Reimport documents even when they appear unchanged")
	WatchCmd.Flags().BoolVar(&watchNoInitial, "no-initial", false, "Skip importing files already present in the directory")
}

func runWatch(cmd *cobra.Command, args []string) error {
	dir := args[0]
	info, err := os.Stat(dir)
	if err != nil {
		return errors.Wrapf(err, "cannot watch %s", dir)
	}
	if !info.IsDir() {
		return errors.Newf("%s is not a directory", dir)
	}

	database, err := openDatabase("")
	if err != nil {
		return err
	}
	defer database.Close()

	p, err := buildPipeline(database)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Pick up accepted-format and validator changes without a restart.
	if configPath := config.ProjectConfigPath(); configPath != "" {
		cw, err := config.NewConfigWatcher(configPath)
		if err != nil {
			logger.Warnw("Could not watch config file", "path", configPath, "error", err)
		} else {
			cw.OnReload(p.applyConfig)
			cw.Start()
			defer cw.Stop()
		}
	}

	if !watchNoInitial {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return errors.Wrapf(err, "reading %s", dir)
		}
		for _, entry := range entries {
			if entry.IsDir() || !isMetadataFile(entry.Name()) {
				continue
			}
			importDropped(ctx, p, filepath.Join(dir, entry.Name()))
		}
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return errors.Wrap(err, "creating directory watcher")
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return errors.Wrapf(err, "watching %s", dir)
	}

	pterm.Info.Printfln("Watching %s for metadata documents (Ctrl+C to stop)", dir)

	pending := map[string]*time.Timer{}

	for {
		select {
		case <-ctx.Done():
			pterm.Info.Println("Stopping watcher")
			return nil

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if event.Op&(fsnotify.Create|fsnotify.Write) == 0 {
				continue
			}
			path := event.Name
			if !isMetadataFile(path) {
				continue
			}
			// Debounce per file so a stream of writes imports once.
			if timer, exists := pending[path]; exists {
				timer.Stop()
			}
			pending[path] = time.AfterFunc(watchSettleDelay, func() {
				importDropped(ctx, p, path)
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Errorw("Watcher error", "error", err)
		}
	}
}

func importDropped(ctx context.Context, p *pipeline, path string) {
	pterm.Info.Printfln("Importing %s", path)
	if err := importDocument(ctx, p, path, watchSourceID, watchSourceTitle, "", watchForce); err != nil {
		pterm.Error.Printfln("Import of %s failed: %v", path, err)
	}
}

func isMetadataFile(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	return ext == ".xml"
}
