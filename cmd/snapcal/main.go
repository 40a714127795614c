package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/pbaille/snapcal/internal/api"
	"github.com/pbaille/snapcal/internal/domain"
	"github.com/pbaille/snapcal/internal/extract"
	"github.com/pbaille/snapcal/internal/fetch"
	"github.com/pbaille/snapcal/internal/ics"
	"github.com/pbaille/snapcal/internal/reconcile"
	"github.com/pbaille/snapcal/internal/store"
	"github.com/pbaille/snapcal/internal/timeparse"
)

var (
	dbPath string
	tzName string
)

func main() {
	_ = godotenv.Load()

	home, _ := os.UserHomeDir()
	defaultDB := filepath.Join(home, ".snapcal", "snapcal.db")

	rootCmd := &cobra.Command{
		Use:   "snapcal",
		Short: "Turn recognized text into calendar events",
	}

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", defaultDB, "database path")
	rootCmd.PersistentFlags().StringVar(&tzName, "tz", "", "IANA timezone for zone-naive input (default: local)")

	rootCmd.AddCommand(extractCmd())
	rootCmd.AddCommand(addCmd())
	rootCmd.AddCommand(listCmd())
	rootCmd.AddCommand(showCmd())
	rootCmd.AddCommand(calendarsCmd())
	rootCmd.AddCommand(exportCmd())
	rootCmd.AddCommand(serveCmd())

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func getStore() (*store.Store, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	return store.New(dbPath)
}

func location() (*time.Location, error) {
	if tzName == "" {
		return time.Local, nil
	}
	loc, err := time.LoadLocation(tzName)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone %q: %w", tzName, err)
	}
	return loc, nil
}

// buildPipeline assembles the extraction stages: the model stage when
// credentials are configured, then the heuristic fallback.
func buildPipeline(loc *time.Location, noModel bool, logger *slog.Logger) *extract.Pipeline {
	norm := timeparse.NewNormalizer(loc)
	detector := timeparse.NewDetector(loc, nil)
	heuristic := extract.NewHeuristicStage(detector, loc)

	var stages []extract.Stage
	if !noModel {
		model, err := extract.NewModelStage(extract.ModelConfigFromEnv(), norm, logger)
		if err == nil {
			stages = append(stages, model)
		} else {
			fmt.Printf("(model stage disabled: %v)\n", err)
		}
	}
	stages = append(stages, heuristic)

	return extract.NewPipeline(logger, stages...)
}

// readInput resolves the raw text from args, a file, a URL or stdin.
func readInput(args []string, file, url string) (string, error) {
	switch {
	case url != "":
		return fetch.Text(url)
	case file != "":
		b, err := os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read file: %w", err)
		}
		return string(b), nil
	case len(args) > 0:
		text := strings.Join(args, " ")
		if fetch.IsURL(text) {
			return fetch.Text(text)
		}
		return text, nil
	default:
		b, err := io.ReadAll(os.Stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
		return string(b), nil
	}
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func extractCmd() *cobra.Command {
	var file, url string
	var noModel bool

	cmd := &cobra.Command{
		Use:   "extract [text]",
		Short: "Extract an event candidate without saving it",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(args, file, url)
			if err != nil {
				return err
			}

			loc, err := location()
			if err != nil {
				return err
			}

			pipe := buildPipeline(loc, noModel, quietLogger())
			cand, err := pipe.Run(cmd.Context(), text)
			if err != nil {
				return err
			}

			fmt.Printf("Title: %s\n", cand.Title)
			if cand.Venue != "" {
				fmt.Printf("Venue: %s\n", cand.Venue)
			}
			if cand.DateOnly != nil {
				fmt.Printf("Date:  %s\n", cand.DateOnly.Format("2006-01-02"))
			}
			if cand.StartTime != nil {
				fmt.Printf("Start: %s\n", cand.StartTime.Format("2006-01-02 15:04"))
			}
			if cand.EndTime != nil {
				fmt.Printf("End:   %s\n", cand.EndTime.Format("2006-01-02 15:04"))
			}

			ev, err := reconcile.Reconcile(cand, loc)
			if err != nil {
				fmt.Println("(could not determine start and end)")
				return nil
			}
			fmt.Printf("Reconciled: %s - %s\n",
				ev.Start.Format("2006-01-02 15:04"), ev.End.Format("2006-01-02 15:04"))

			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "read text from file")
	cmd.Flags().StringVarP(&url, "url", "u", "", "fetch text from URL")
	cmd.Flags().BoolVar(&noModel, "no-model", false, "skip the generative model stage")
	return cmd
}

func addCmd() *cobra.Command {
	var file, url, calendarID string
	var noModel bool

	cmd := &cobra.Command{
		Use:   "add [text]",
		Short: "Extract, reconcile and save an event",
		RunE: func(cmd *cobra.Command, args []string) error {
			text, err := readInput(args, file, url)
			if err != nil {
				return err
			}

			loc, err := location()
			if err != nil {
				return err
			}

			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			pipe := buildPipeline(loc, noModel, quietLogger())
			cand, err := pipe.Run(cmd.Context(), text)
			if err != nil {
				return err
			}

			ev, err := reconcile.Reconcile(cand, loc)
			if err != nil {
				return fmt.Errorf("could not determine start and end: %w", err)
			}

			saved, err := s.SaveEvent(ev, calendarID)
			if err != nil {
				return err
			}

			fmt.Printf("Added event: %s\n", saved.ID[:8])
			fmt.Printf("Title: %s\n", saved.Title)
			if saved.Venue != "" {
				fmt.Printf("Venue: %s\n", saved.Venue)
			}
			fmt.Printf("When:  %s - %s\n",
				saved.Start.Format("2006-01-02 15:04"), saved.End.Format("15:04"))

			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "read text from file")
	cmd.Flags().StringVarP(&url, "url", "u", "", "fetch text from URL")
	cmd.Flags().StringVarP(&calendarID, "calendar", "c", "", "target calendar ID")
	cmd.Flags().BoolVar(&noModel, "no-model", false, "skip the generative model stage")
	return cmd
}

func listCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved events",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			events, err := s.ListEvents(limit, 0)
			if err != nil {
				return err
			}

			if len(events) == 0 {
				fmt.Println("No events yet. Use 'snapcal add' to create one.")
				return nil
			}

			for _, e := range events {
				fmt.Printf("%s  %s  %s\n",
					e.ID[:8], e.Start.Format("2006-01-02 15:04"), truncate(e.Title, 50))
			}

			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of events to show")
	return cmd
}

func showCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [id]",
		Short: "Show event details",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			ev, err := findEvent(s, args[0])
			if err != nil {
				return err
			}

			fmt.Printf("ID:      %s\n", ev.ID)
			fmt.Printf("Title:   %s\n", ev.Title)
			fmt.Printf("Start:   %s\n", ev.Start.Format("2006-01-02 15:04:05"))
			fmt.Printf("End:     %s\n", ev.End.Format("2006-01-02 15:04:05"))
			if ev.Venue != "" {
				fmt.Printf("Venue:   %s\n", ev.Venue)
			}
			if ev.Notes != "" {
				fmt.Printf("Notes:\n%s\n", ev.Notes)
			}

			return nil
		},
	}
}

// findEvent resolves an event by full ID or unique prefix.
func findEvent(s *store.Store, id string) (*domain.Event, error) {
	ev, err := s.GetEvent(id)
	if err == nil {
		return ev, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	events, err := s.ListEvents(100, 0)
	if err != nil {
		return nil, err
	}
	for i := range events {
		if strings.HasPrefix(events[i].ID, id) {
			return &events[i], nil
		}
	}

	return nil, fmt.Errorf("event not found: %s", id)
}

func calendarsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "calendars",
		Short: "List calendars",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			cals, err := s.ListCalendars()
			if err != nil {
				return err
			}

			for _, c := range cals {
				marker := " "
				if c.IsDefault {
					marker = "*"
				}
				access := "writable"
				if !c.Writable {
					access = "read-only"
				}
				fmt.Printf("%s %s  %s (%s)\n", marker, c.ID[:8], c.Name, access)
			}

			return nil
		},
	}

	cmd.AddCommand(calendarsAddCmd())
	cmd.AddCommand(calendarsAccessCmd())
	return cmd
}

func calendarsAccessCmd() *cobra.Command {
	var readOnly bool

	cmd := &cobra.Command{
		Use:   "access [id]",
		Short: "Change whether a calendar accepts new events",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.SetCalendarWritable(args[0], !readOnly); err != nil {
				return err
			}

			access := "writable"
			if readOnly {
				access = "read-only"
			}
			fmt.Printf("Calendar %s is now %s\n", args[0][:8], access)
			return nil
		},
	}

	cmd.Flags().BoolVar(&readOnly, "read-only", false, "stop accepting new events")
	return cmd
}

func calendarsAddCmd() *cobra.Command {
	var readOnly, isDefault bool

	cmd := &cobra.Command{
		Use:   "add [name]",
		Short: "Add a calendar",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			cal, err := s.AddCalendar(args[0], !readOnly, isDefault)
			if err != nil {
				return err
			}

			fmt.Printf("Added calendar: %s (%s)\n", cal.Name, cal.ID[:8])
			return nil
		},
	}

	cmd.Flags().BoolVar(&readOnly, "read-only", false, "calendar does not accept new events")
	cmd.Flags().BoolVar(&isDefault, "default", false, "make this the default calendar")
	return cmd
}

func exportCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "export [id...]",
		Short: "Export events as an iCalendar file",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := getStore()
			if err != nil {
				return err
			}
			defer s.Close()

			return exportEvents(s, args, out)
		},
	}

	cmd.Flags().StringVarP(&out, "out", "o", "", "output file (default: stdout)")
	return cmd
}

func exportEvents(s *store.Store, ids []string, out string) error {
	var events []domain.Event

	if len(ids) == 0 {
		all, err := s.ListEvents(1000, 0)
		if err != nil {
			return err
		}
		events = all
	} else {
		for _, id := range ids {
			ev, err := findEvent(s, id)
			if err != nil {
				return err
			}
			events = append(events, *ev)
		}
	}

	if len(events) == 0 {
		return fmt.Errorf("no events to export")
	}

	w := os.Stdout
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("create output file: %w", err)
		}
		defer f.Close()
		w = f
	}

	return ics.Encode(w, events)
}

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the REST API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := getStore()
			if err != nil {
				return err
			}

			loc, err := location()
			if err != nil {
				return err
			}

			logger := slog.New(slog.NewTextHandler(os.Stderr, nil))
			pipe := buildPipeline(loc, false, logger)

			server := api.New(s, pipe, loc, logger, addr)
			return server.Run()
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", ":8080", "server address")
	return cmd
}

func truncate(s string, max int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
