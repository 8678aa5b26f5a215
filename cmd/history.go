package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"sensor-dashboard/internal/dashboard"
	"sensor-dashboard/internal/ingest"
	"sensor-dashboard/internal/trigger"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect and record sensor history",
}

var historyListCmd = &cobra.Command{
	Use:   "list <mac>",
	Short: "List the most recent history entries of a sensor",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		limit, _ := cmd.Flags().GetInt("limit")
		if limit <= 0 {
			limit = cfg.HistoryLimit
		}

		entries, err := provider.ListHistory(ctx, args[0], limit)
		if err != nil {
			slog.Error("Failed to list history", "mac", args[0], "error", err)
			os.Exit(1)
		}
		if len(entries) == 0 {
			fmt.Printf("No history for %s\n", args[0])
			return
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "UPDATED AT\tTEMP\tHUMIDITY\tDUST\tBATTERY\tLOCATION")
		for _, e := range entries {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
				e.UpdatedAt.Format(time.RFC3339),
				optional(e.Temperature, oneDecimal),
				optional(e.Humidity, oneDecimal),
				optional(e.Dust, oneDecimal),
				optional(e.Battery, oneDecimal),
				optional(e.Location, func(v string) string { return v }),
			)
		}
		w.Flush()

		summary := dashboard.SummarizeHistory(entries)
		fmt.Printf("\nEntries: %d  Latest temperature: %s  Average temperature: %s\n",
			summary.Count, summary.LatestTemperature, summary.AverageTemperature)
	},
}

// readingFromFlags fills only the fields whose flags were given.
func readingFromFlags(flags *pflag.FlagSet) ingest.Reading {
	var r ingest.Reading
	float := func(name string) *float64 {
		if !flags.Changed(name) {
			return nil
		}
		v, _ := flags.GetFloat64(name)
		return &v
	}
	r.Temperature = float("temperature")
	r.Humidity = float("humidity")
	r.Dust = float("dust")
	r.Battery = float("battery")
	r.Latitude = float("latitude")
	r.Longitude = float("longitude")
	if flags.Changed("location") {
		v, _ := flags.GetString("location")
		r.Location = &v
	}
	return r
}

var historyAddCmd = &cobra.Command{
	Use:   "add <mac> [json]",
	Short: "Record a reading as if the device had published it",
	Long: `Record a reading for a sensor. The reading is given either as flags or as
the JSON payload devices publish, e.g. '{"temperature": 24.1, "humidity": 61}'.
The sensor row is updated with the new reading.`,
	Args: cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		reading := readingFromFlags(cmd.Flags())
		if len(args) == 2 {
			var err error
			if reading, err = ingest.DecodeReading([]byte(args[1])); err != nil {
				fmt.Fprintln(os.Stderr, err)
				os.Exit(1)
			}
		}

		recorder := ingest.NewRecorder(provider, nil, nil).OnCreate(trigger.NewMirror(provider, nil, nil).Handle)
		entry, err := recorder.Record(ctx, ingest.SourceCLI, args[0], reading)
		if entry == nil {
			slog.Error("Failed to record reading", "mac", args[0], "error", err)
			os.Exit(1)
		}
		if err != nil {
			slog.Error("Reading stored but sensor row not updated", "mac", entry.MAC, "error", err)
			os.Exit(1)
		}
		fmt.Printf("Recorded %s for %s at %s\n", entry.ID, entry.MAC, entry.UpdatedAt.Format(time.RFC3339))
	},
}

func init() {
	historyListCmd.Flags().IntP("limit", "n", 0, "Number of entries (default history_limit)")

	flags := historyAddCmd.Flags()
	flags.Float64("temperature", 0, "Temperature in °C")
	flags.Float64("humidity", 0, "Relative humidity in %")
	flags.Float64("dust", 0, "Dust (PM) in µg/m³")
	flags.Float64("battery", 0, "Battery level in %")
	flags.Float64("latitude", 0, "Latitude")
	flags.Float64("longitude", 0, "Longitude")
	flags.String("location", "", "Location label")

	historyCmd.AddCommand(historyListCmd)
	historyCmd.AddCommand(historyAddCmd)
	rootCmd.AddCommand(historyCmd)
}
