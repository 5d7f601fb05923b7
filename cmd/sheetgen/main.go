// sheetgen generates printable sign-in sheets for bridge classes. The
// event id printed in the QR code is what the backend later uses to route
// photographed sheets back to their class occurrence.
package main

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"bridgesheet/internal/event"
	"bridgesheet/internal/sheet"
)

type options struct {
	name        string
	teacher     string
	date        string
	location    string
	rows        int
	mailingRows int
	noMailing   bool
	rosterPath  string
	output      string
	eventID     string
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	opts := &options{}

	cmd := &cobra.Command{
		Use:           "sheetgen",
		Short:         "Generate attendance sheets for bridge classes",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVarP(&opts.name, "name", "n", "", "class/event name")
	flags.StringVarP(&opts.teacher, "teacher", "t", "Rick", "teacher name")
	flags.StringVarP(&opts.date, "date", "d", "", "date (YYYY-MM-DD, defaults to today)")
	flags.StringVarP(&opts.location, "location", "l", "", "location")
	flags.IntVarP(&opts.rows, "rows", "r", 32, "number of blank rows for students")
	flags.IntVar(&opts.mailingRows, "mailing-rows", 4, "number of mailing list signup rows")
	flags.BoolVar(&opts.noMailing, "no-mailing-list", false, "disable mailing list signup section")
	flags.StringVar(&opts.rosterPath, "roster", "", "student roster file (JSON array of {name})")
	flags.StringVarP(&opts.output, "output", "o", "", "output filename (defaults to attendance-{date}.pdf)")
	flags.StringVar(&opts.eventID, "event-id", "", "event id (8 uppercase hex chars, generated when empty)")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func run(opts *options) error {
	date, err := parseDate(opts.date)
	if err != nil {
		return err
	}

	eventID := opts.eventID
	if eventID == "" {
		eventID = event.GenerateID()
	} else if !event.ValidID(eventID) {
		return fmt.Errorf("invalid event id %q: want 8 uppercase hex characters", eventID)
	}

	roster, err := loadRoster(opts.rosterPath)
	if err != nil {
		return err
	}

	cfg := sheet.Config{
		ClassName:   opts.name,
		Teacher:     opts.teacher,
		Date:        date,
		Location:    opts.location,
		EventID:     eventID,
		Roster:      roster,
		BlankRows:   opts.rows,
		MailingList: !opts.noMailing,
		MailingRows: opts.mailingRows,
	}

	output := opts.output
	if output == "" {
		output = fmt.Sprintf("attendance-%s.pdf", date.Format("2006-01-02"))
	}

	f, err := os.Create(output)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := sheet.Generate(cfg, f); err != nil {
		return err
	}

	fmt.Printf("Generated: %s\n", output)
	fmt.Printf("  Class: %s\n", cfg.ClassName)
	fmt.Printf("  Date: %s\n", sheet.FormatDateDisplay(cfg.Date))
	fmt.Printf("  Event ID: %s\n", cfg.EventID)
	return nil
}

func parseDate(s string) (time.Time, error) {
	if s == "" {
		return time.Now(), nil
	}
	date, err := time.Parse("2006-01-02", s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date format: %s", s)
	}
	return date, nil
}

// loadRoster reads a JSON array of {"name": ...} entries.
func loadRoster(path string) ([]string, error) {
	if path == "" {
		return nil, nil
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read roster file %s: %w", path, err)
	}
	var entries []struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(content, &entries); err != nil {
		return nil, fmt.Errorf("invalid roster JSON in %s: %w", path, err)
	}
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name)
	}
	return names, nil
}
