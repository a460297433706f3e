package main

import (
	"context"
	"fmt"
	"log/slog"
	"mime"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"designmuse/internal/api"
	"designmuse/internal/blob"
	"designmuse/internal/board"
	"designmuse/internal/client"
	"designmuse/internal/config"
	"designmuse/internal/curator"
	"designmuse/internal/fetcher"
	"designmuse/internal/journal"
	"designmuse/internal/search"
	"designmuse/internal/store"
)

var (
	configPath  string
	apiOverride string
	verbose     bool
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "muse",
		Short: "Personal visual journal of design inspiration",
	}

	rootCmd.PersistentFlags().StringVar(&configPath, "config", config.DefaultPath(), "config file path")
	rootCmd.PersistentFlags().StringVar(&apiOverride, "api", "", "store API base URL (overrides config)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(weekCmd())
	rootCmd.AddCommand(uploadCmd())
	rootCmd.AddCommand(clipCmd())
	rootCmd.AddCommand(noteCmd())
	rootCmd.AddCommand(searchCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newLogger() *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// newClient resolves the store base URL and returns a client for it.
// An unresolvable URL is an error up front rather than on first use.
func newClient() (*client.Client, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	url, source := config.BaseURL(apiOverride, cfg)
	if url == "" {
		return nil, fmt.Errorf("no store configured: set api_url in %s, MUSE_API_URL, or pass --api", configPath)
	}
	if verbose {
		fmt.Fprintf(os.Stderr, "using store %s (from %s)\n", url, source)
	}
	return client.New(url), nil
}

// newBoard wires a board over the configured store. Enrichment is
// best-effort: without a GEMINI_API_KEY entries keep their
// placeholder caption.
func newBoard(logger *slog.Logger) (*board.Board, error) {
	c, err := newClient()
	if err != nil {
		return nil, err
	}

	var cur board.Curator
	if g, err := curator.New(); err == nil {
		cur = g
	} else {
		logger.Debug("enrichment disabled", "reason", err)
	}

	return board.New(c, cur, logger), nil
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the persistence store server",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := newLogger()

			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			baseDir := filepath.Dir(configPath)
			srvCfg := cfg.ServerDefaults(baseDir)
			if addr != "" {
				srvCfg.Addr = addr
			}
			if srvCfg.Blob.Type == "" {
				srvCfg.Blob = config.BlobConfig{Type: "filesystem", Root: filepath.Join(baseDir, "images")}
			}

			if err := os.MkdirAll(baseDir, 0755); err != nil {
				return fmt.Errorf("create data dir: %w", err)
			}

			st, err := store.New(srvCfg.DBPath)
			if err != nil {
				return err
			}

			idx, err := search.Open(srvCfg.IndexPath)
			if err != nil {
				return err
			}
			if err := rebuildIndex(st, idx); err != nil {
				return err
			}

			blobs, err := blob.NewFromConfig(cmd.Context(), srvCfg.Blob)
			if err != nil {
				return err
			}

			return api.New(st, idx, blobs, logger, srvCfg.Addr).Run()
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "listen address (default :3001)")
	return cmd
}

// rebuildIndex makes the search index consistent with the database on
// startup, covering writes that happened while indexing was down.
func rebuildIndex(st *store.Store, idx *search.Index) error {
	entries, err := st.AllEntries()
	if err != nil {
		return err
	}
	notes, err := st.AllNotes()
	if err != nil {
		return err
	}
	return idx.Rebuild(entries, notes)
}

func weekCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "week [offset]",
		Short: "Show a week's board (offset in weeks from now, e.g. -1)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			offset := 0
			if len(args) == 1 {
				n, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("invalid offset %q", args[0])
				}
				offset = n
			}

			b, err := newBoard(newLogger())
			if err != nil {
				return err
			}

			anchor := journal.AddWeeks(time.Now(), offset)
			weekID := journal.WeekID(anchor)

			if err := b.LoadWeek(cmd.Context(), weekID); err != nil {
				return err
			}
			printWeek(weekID, anchor, b.Week(weekID))
			return nil
		},
	}
}

func printWeek(weekID string, anchor time.Time, snap board.WeekSnapshot) {
	fmt.Printf("%s  (%s)\n", weekID, journal.WeekRangeDisplay(anchor))

	if snap.Bucket.Len() == 0 {
		fmt.Println("  no entries")
	}
	for _, day := range snap.Bucket.Days {
		fmt.Printf("  %s\n", day)
		for _, e := range snap.Bucket.Day(day) {
			tags := ""
			if len(e.Tags) > 0 {
				tags = "  [" + strings.Join(e.Tags, ", ") + "]"
			}
			fmt.Printf("    %s  %s%s\n", e.ID[:8], e.Caption, tags)
		}
	}
	if snap.Notes != "" {
		fmt.Printf("  notes: %s\n", snap.Notes)
	}
}

func uploadCmd() *cobra.Command {
	var day string

	cmd := &cobra.Command{
		Use:   "upload [file]",
		Short: "Add an image to a day's board",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			mimeType := mime.TypeByExtension(filepath.Ext(args[0]))
			if !strings.HasPrefix(mimeType, "image/") {
				mimeType = "image/png"
			}
			return addEntry(cmd.Context(), day, data, mimeType)
		},
	}

	cmd.Flags().StringVarP(&day, "day", "d", "", "day to add to (default today)")
	return cmd
}

func clipCmd() *cobra.Command {
	var day string

	cmd := &cobra.Command{
		Use:   "clip [url]",
		Short: "Clip the primary image from a web page",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !fetcher.IsURL(args[0]) {
				return fmt.Errorf("not a URL: %s", args[0])
			}

			img, err := fetcher.New().Clip(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Printf("Clipped %s (%d bytes)\n", img.Source, len(img.Data))
			return addEntry(cmd.Context(), day, img.Data, img.MIMEType)
		},
	}

	cmd.Flags().StringVarP(&day, "day", "d", "", "day to add to (default today)")
	return cmd
}

func addEntry(ctx context.Context, day string, data []byte, mimeType string) error {
	if day == "" {
		day = journal.DayKey(time.Now())
	}
	weekID, err := journal.WeekIDForDayKey(day)
	if err != nil {
		return err
	}

	b, err := newBoard(newLogger())
	if err != nil {
		return err
	}

	entry, err := b.CreateEntry(ctx, weekID, day, data, mimeType)
	if err != nil {
		return err
	}

	fmt.Printf("Added entry %s to %s\n", entry.ID[:8], day)
	if cached := b.Week(weekID).Bucket.Day(day); len(cached) > 0 {
		last := cached[len(cached)-1]
		for _, e := range cached {
			if e.ID == entry.ID {
				last = e
			}
		}
		fmt.Printf("Caption: %s\n", last.Caption)
		if len(last.Tags) > 0 {
			fmt.Printf("Tags:    %s\n", strings.Join(last.Tags, ", "))
		}
	}
	return nil
}

func noteCmd() *cobra.Command {
	var week string

	cmd := &cobra.Command{
		Use:   "note [text]",
		Short: "Write the weekly reflection note",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if week == "" {
				week = journal.WeekID(time.Now())
			}

			b, err := newBoard(newLogger())
			if err != nil {
				return err
			}

			b.SaveNote(week, strings.Join(args, " "))
			b.FlushNotes()
			fmt.Printf("Saved note for %s\n", week)
			return nil
		},
	}

	cmd.Flags().StringVarP(&week, "week", "w", "", "week to note (default current)")
	return cmd
}

func searchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "search [query]",
		Short: "Search captions, tags, and notes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := newClient()
			if err != nil {
				return err
			}

			hits, err := c.Search(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if len(hits) == 0 {
				fmt.Println("No matches.")
				return nil
			}

			for _, h := range hits {
				where := h.WeekID
				if h.DayKey != "" {
					where = h.DayKey
				}
				fmt.Printf("%-10s  %.2f  %s\n", where, h.Score, h.Caption)
			}
			return nil
		},
	}
}
