package cli

import (
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/recall-kb/recall-cli/internal/core/domain"
	"github.com/recall-kb/recall-cli/internal/logger"
)

// watchSettle is how long a file must stay quiet before it is ingested,
// so half-written files are not picked up mid-copy.
const watchSettle = 500 * time.Millisecond

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Add content to the knowledge base",
}

var ingestItemCmd = &cobra.Command{
	Use:   "item [file] [kind]",
	Short: "Ingest a single document",
	Long: `Reads one front-matter document, splits it according to the kind's
chunking policy, embeds the chunks, and stores them.`,
	Args: cobra.ExactArgs(2),
	RunE: runIngestItem,
}

var ingestBulkCmd = &cobra.Command{
	Use:   "bulk [kind] [dir]",
	Short: "Ingest every document in a directory",
	Long: `Ingests all regular files in the directory, in name order. Documents
that fail to parse or embed are reported and skipped; the rest of the
batch continues.`,
	Args: cobra.ExactArgs(2),
	RunE: runIngestBulk,
}

var ingestWatchCmd = &cobra.Command{
	Use:   "watch [kind] [dir]",
	Short: "Watch a directory and ingest new documents",
	Long: `Watches the directory and ingests files as they are created or
modified. Runs until interrupted.`,
	Args: cobra.ExactArgs(2),
	RunE: runIngestWatch,
}

func init() {
	ingestCmd.AddCommand(ingestItemCmd)
	ingestCmd.AddCommand(ingestBulkCmd)
	ingestCmd.AddCommand(ingestWatchCmd)
	rootCmd.AddCommand(ingestCmd)
}

func runIngestItem(cmd *cobra.Command, args []string) error {
	path := args[0]
	kind, err := domain.ParseSourceKind(args[1])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if err := ensureServices(ctx); err != nil {
		return err
	}

	id, err := ingestService.IngestFile(ctx, path, kind)
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}

	cmd.Printf("Ingested %s as %s\n", path, id)
	return nil
}

func runIngestBulk(cmd *cobra.Command, args []string) error {
	kind, err := domain.ParseSourceKind(args[0])
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if err := ensureServices(ctx); err != nil {
		return err
	}

	ingested, failed, err := ingestService.IngestDir(ctx, args[1], kind)
	if err != nil {
		return fmt.Errorf("bulk ingest failed: %w", err)
	}

	cmd.Printf("Ingested %d documents (%d failed)\n", ingested, failed)
	return nil
}

func runIngestWatch(cmd *cobra.Command, args []string) error {
	kind, err := domain.ParseSourceKind(args[0])
	if err != nil {
		return err
	}
	dir := args[1]

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := ensureServices(ctx); err != nil {
		return err
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()

	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	cmd.Printf("Watching %s for %s documents. Press Ctrl+C to stop.\n", dir, kind)

	var mu sync.Mutex
	pending := make(map[string]*time.Timer)

	ingestLater := func(path string) {
		mu.Lock()
		defer mu.Unlock()

		if timer, ok := pending[path]; ok {
			timer.Stop()
		}
		pending[path] = time.AfterFunc(watchSettle, func() {
			mu.Lock()
			delete(pending, path)
			mu.Unlock()

			id, err := ingestService.IngestFile(ctx, path, kind)
			if err != nil {
				logger.Warn("skipping %s: %v", path, err)
				return
			}
			cmd.Printf("Ingested %s as %s\n", path, id)
		})
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if strings.HasPrefix(filepath.Base(event.Name), ".") {
				continue
			}
			if info, err := os.Stat(event.Name); err != nil || info.IsDir() {
				continue
			}
			ingestLater(event.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			logger.Warn("watch error: %v", err)
		}
	}
}
