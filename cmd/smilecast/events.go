package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ayusman/smilecast/internal/store"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "List recorded smile transitions",
	Args:  cobra.NoArgs,
	RunE:  runEvents,
}

func init() {
	rootCmd.AddCommand(eventsCmd)
	eventsCmd.Flags().IntP("limit", "n", store.DefaultListLimit, "number of events to show")
	eventsCmd.Flags().Bool("json", false, "output as JSON")
	eventsCmd.Flags().Bool("uploads", false, "list uploaded files instead of events")
}

func runEvents(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if cfg.Store.Path == "" {
		return fmt.Errorf("no database configured")
	}

	st, err := store.New(cfg.Store.Path)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	limit := mustGetInt(cmd, "limit")
	asJSON := mustGetBool(cmd, "json")

	if mustGetBool(cmd, "uploads") {
		records, err := st.Uploads().List(limit)
		if err != nil {
			return err
		}
		if asJSON {
			return printJSON(records)
		}
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "UPLOADED\tFILE\tDRIVE ID\tLINK")
		for _, r := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", r.UploadedAt.Format("2006-01-02 15:04:05"), r.FileName, r.DriveID, r.Link)
		}
		return w.Flush()
	}

	events, err := st.Events().List(limit)
	if err != nil {
		return err
	}
	if asJSON {
		return printJSON(events)
	}
	if len(events) == 0 {
		fmt.Println("No events recorded")
		return nil
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tSESSION SECS\tSMILING\tIMAGE")
	for _, e := range events {
		fmt.Fprintf(w, "%s\t%.2f\t%t\t%s\n", e.CreatedAt.Format("2006-01-02 15:04:05"), e.Monotonic, e.Detected, e.ImagePath)
	}
	return w.Flush()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
