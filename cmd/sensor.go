package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/user"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"sensor-dashboard/internal/dashboard"
	"sensor-dashboard/internal/importer"
	"sensor-dashboard/internal/routes"
	"sensor-dashboard/internal/storage"

	"github.com/spf13/cobra"
)

var sensorCmd = &cobra.Command{
	Use:   "sensor",
	Short: "Manage sensors",
	Long:  `Add, bind, archive, restore and locate sensors, or import them from a device list.`,
}

// getActiveUser returns a string identifying who is performing the action
// Format: username@hostname
func getActiveUser() string {
	username := "unknown"
	if currentUser, err := user.Current(); err == nil {
		username = currentUser.Username
	}

	hostname := "unknown"
	// Check environment variable first for SSH sessions
	if h := os.Getenv("SSH_CLIENT"); h != "" {
		ssh_client := strings.Split(h, " ")
		if len(ssh_client) > 0 {
			hostname = ssh_client[0]
		}
	} else if h, err := os.Hostname(); err == nil {
		hostname = h
	}

	return fmt.Sprintf("%s@%s", username, hostname)
}

func optional[T any](v *T, format func(T) string) string {
	if v == nil {
		return "-"
	}
	return format(*v)
}

func oneDecimal(v float64) string {
	return strconv.FormatFloat(v, 'f', 1, 64)
}

var sensorListCmd = &cobra.Command{
	Use:   "list",
	Short: "List sensors with their mirrored readings",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		all, _ := cmd.Flags().GetBool("all")

		sensors, err := provider.ListSensors(ctx)
		if err != nil {
			slog.Error("Failed to list sensors", "error", err)
			os.Exit(1)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "MAC\tNAME\tSTATUS\tTEMP\tHUMIDITY\tDUST\tBATTERY\tLOCATION\tUPDATED AT")
		shown := 0
		for _, s := range sensors {
			if s.Archived() && !all {
				continue
			}
			status := string(s.Status)
			if status == "" {
				status = "-"
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
				s.MAC,
				dashboard.DisplayName(s),
				status,
				optional(s.Temperature, oneDecimal),
				optional(s.Humidity, oneDecimal),
				optional(s.Dust, oneDecimal),
				optional(s.Battery, oneDecimal),
				optional(s.Location, func(v string) string { return v }),
				optional(s.UpdatedAt, func(v time.Time) string { return v.Format("2006-01-02 15:04:05") }),
			)
			shown++
		}
		w.Flush()
		fmt.Printf("\nTotal sensors: %d\n", shown)
	},
}

var sensorAddCmd = &cobra.Command{
	Use:   "add <mac> [alias]",
	Short: "Add a sensor by MAC address",
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		mac := strings.TrimSpace(args[0])
		if mac == "" {
			fmt.Fprintln(os.Stderr, "MAC address is required")
			os.Exit(1)
		}
		alias := ""
		if len(args) > 1 {
			alias = args[1]
		}

		by := getActiveUser()
		if err := provider.MergeSensor(ctx, mac, routes.AddSensorPatch(mac, alias, by)); err != nil {
			slog.Error("Failed to add sensor", "mac", mac, "error", err)
			os.Exit(1)
		}
		fmt.Printf("Sensor %s added by %s\n", mac, by)
	},
}

var sensorBindCmd = &cobra.Command{
	Use:   "bind <mac> [alias]",
	Short: "Name a MAC address that already reports history",
	Args:  cobra.RangeArgs(1, 2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		mac := strings.TrimSpace(args[0])
		alias := ""
		if len(args) > 1 {
			alias = args[1]
		}
		if err := provider.MergeSensor(ctx, mac, routes.BindSensorPatch(mac, alias)); err != nil {
			slog.Error("Failed to bind sensor", "mac", mac, "error", err)
			os.Exit(1)
		}
		fmt.Printf("Sensor %s bound\n", mac)
	},
}

func statusCommand(use, short string, status storage.SensorStatus) *cobra.Command {
	return &cobra.Command{
		Use:   use + " <mac>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			ctx := context.Background()
			mac := args[0]

			// Check if sensor exists
			sensor, err := provider.GetSensor(ctx, mac)
			if err != nil {
				slog.Error("Sensor not found", "mac", mac, "error", err)
				os.Exit(1)
			}
			if sensor.Status == status {
				fmt.Printf("Sensor %s is already %s\n", mac, status)
				return
			}

			if err := provider.UpdateSensor(ctx, mac, routes.StatusPatch(status)); err != nil {
				slog.Error("Failed to update sensor", "mac", mac, "status", status, "error", err)
				os.Exit(1)
			}
			fmt.Printf("Sensor %s is now %s (by %s)\n", mac, status, getActiveUser())
		},
	}
}

var sensorLocateCmd = &cobra.Command{
	Use:   "locate <mac> <latitude> <longitude>",
	Short: "Set the coordinates of a sensor",
	Args:  cobra.ExactArgs(3),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		mac := args[0]

		lat, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid latitude: %v\n", err)
			os.Exit(1)
		}
		lng, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Invalid longitude: %v\n", err)
			os.Exit(1)
		}

		patch, err := routes.LocationPatch(&lat, &lng)
		if err != nil {
			fmt.Fprintln(os.Stderr, err)
			os.Exit(1)
		}
		if err := provider.UpdateSensor(ctx, mac, patch); err != nil {
			slog.Error("Failed to locate sensor", "mac", mac, "error", err)
			os.Exit(1)
		}
		fmt.Printf("Sensor %s located at %s\n", mac, patch["location"])
	},
}

var sensorImportCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Bind MAC addresses from a CSV or TSV device list",
	Long: `Bind MAC addresses from a spreadsheet export. The header must name a MAC
column and may name a name column, in English or Thai. UTF-16 exports with a
byte order mark are accepted.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		delimiter, _ := cmd.Flags().GetString("delimiter")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		var comma rune
		switch delimiter {
		case "", "auto":
		case "tab", `\t`:
			comma = '\t'
		default:
			comma = []rune(delimiter)[0]
		}

		bindings, err := importer.ReadFile(args[0], comma)
		if err != nil {
			slog.Error("Failed to read device list", "file", args[0], "error", err)
			os.Exit(1)
		}

		if dryRun {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "LINE\tMAC\tNAME")
			for _, b := range bindings {
				fmt.Fprintf(w, "%d\t%s\t%s\n", b.Line, b.MAC, b.Name)
			}
			w.Flush()
			return
		}

		n, err := importer.Apply(ctx, provider, bindings)
		if err != nil {
			slog.Error("Import stopped", "imported", n, "error", err)
			os.Exit(1)
		}
		fmt.Printf("Imported %d sensor(s) from %s\n", n, args[0])
	},
}

func init() {
	sensorListCmd.Flags().BoolP("all", "a", false, "Include archived sensors")
	sensorImportCmd.Flags().StringP("delimiter", "d", "auto", "Field delimiter: auto, tab or a single character")
	sensorImportCmd.Flags().Bool("dry-run", false, "Print the parsed list without writing")

	sensorCmd.AddCommand(sensorListCmd)
	sensorCmd.AddCommand(sensorAddCmd)
	sensorCmd.AddCommand(sensorBindCmd)
	sensorCmd.AddCommand(statusCommand("archive", "Archive a sensor, hiding it from the dashboard", storage.SensorStatusArchived))
	sensorCmd.AddCommand(statusCommand("restore", "Restore an archived sensor", storage.SensorStatusActive))
	sensorCmd.AddCommand(sensorLocateCmd)
	sensorCmd.AddCommand(sensorImportCmd)
	rootCmd.AddCommand(sensorCmd)
}
