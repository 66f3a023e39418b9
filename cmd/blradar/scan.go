package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/srg/blradar/internal/bledb"
	"github.com/srg/blradar/internal/device"
	"github.com/srg/blradar/internal/engine"
	"github.com/srg/blradar/internal/profile"
	"github.com/srg/blradar/internal/store"
	"github.com/srg/blradar/internal/vendor"
	"github.com/srg/blradar/pkg/config"
	"github.com/srg/blradar/scanner"
)

// scanCmd represents the scan command
var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Scan and report devices matching detection profiles",
	Long: `Scan for BLE advertisements and evaluate the detection profiles against
every device seen in a scan window.

Each window is one evaluation pass. Devices are remembered across windows, so
profiles can react to devices reappearing after being lost or moving along
with you (--location sets your current position). With --watch, windows run
back to back until interrupted.`,
	Example: `  blradar scan --profiles profiles.yaml
  blradar scan --profiles profiles.yaml --watch --duration 30s --location 52.52,13.405
  blradar scan --config blradar.yaml --format json`,
	RunE: runScan,
}

var (
	scanDuration    time.Duration
	scanFormat      string
	scanProfiles    string
	scanConfigPath  string
	scanLocation    string
	scanWatch       bool
	scanNoDuplicate bool
)

func init() {
	scanCmd.Flags().DurationVarP(&scanDuration, "duration", "d", 10*time.Second, "Scan window duration")
	scanCmd.Flags().StringVarP(&scanFormat, "format", "f", "table", "Output format (table, json)")
	scanCmd.Flags().StringVarP(&scanProfiles, "profiles", "p", "", "Profile file (YAML or JSON)")
	scanCmd.Flags().StringVarP(&scanConfigPath, "config", "c", "", "Configuration file")
	scanCmd.Flags().StringVar(&scanLocation, "location", "", "Current position as lat,lng")
	scanCmd.Flags().BoolVarP(&scanWatch, "watch", "w", false, "Scan continuously, one pass per window")
	scanCmd.Flags().BoolVar(&scanNoDuplicate, "no-duplicates", true, "Filter duplicate advertisements")
}

func runScan(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(scanConfigPath)
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("duration") {
		cfg.ScanWindow = scanDuration
	}
	if cmd.Flags().Changed("format") {
		cfg.OutputFormat = scanFormat
	}
	if scanProfiles != "" {
		cfg.ProfilesPath = scanProfiles
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.ProfilesPath == "" {
		return fmt.Errorf("%w configured", ErrNoProfiles)
	}

	var location *device.LocationPoint
	if scanLocation != "" {
		loc, err := parseLocation(scanLocation)
		if err != nil {
			return err
		}
		location = &loc
	}

	// --log-level wins over the config file
	logger, err := configureLogger(cmd, "")
	if err != nil {
		return err
	}
	if scanConfigPath != "" && !cmd.Flags().Changed("log-level") {
		logger.SetLevel(cfg.Level())
	}

	profiles, err := profile.Load(cfg.ProfilesPath)
	if err != nil {
		return err
	}
	if profiles.Len() == 0 {
		return fmt.Errorf("%w in %s", ErrNoProfiles, cfg.ProfilesPath)
	}

	// All arguments validated - don't show usage on runtime errors
	cmd.SilenceUsage = true

	if len(profiles.Active()) == 0 {
		logger.WithField("profiles", profiles.Len()).Warn("No active profiles, nothing will match")
	}

	history := store.NewLocationHistory(cfg.HistoryRetention)
	lookup := vendor.NewCachedLookup(bledb.Companies(), cfg.VendorCacheTTL)
	eng := engine.New(cfg.EngineConfig(), store.NewDeviceStore(logger), history, profiles, lookup, logger)

	s, err := scanner.NewScanner(logger)
	if err != nil {
		return fmt.Errorf("failed to create BLE scanner: %w", err)
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			fmt.Fprintln(cmd.ErrOrStderr(), "\nCtrl+C pressed, stopping scan...")
			cancel()
		case <-ctx.Done():
		}
	}()

	out := cmd.OutOrStdout()
	interactive := isTerminal(out)
	printer := newMatchPrinter(out, cfg.OutputFormat, eng.Devices(), interactive)
	opts := &scanner.ScanOptions{Duration: cfg.ScanWindow, DuplicateFilter: scanNoDuplicate}

	for pass := 1; ; pass++ {
		if location != nil {
			location.TimestampMs = time.Now().UnixMilli()
			history.SetCurrent(*location)
		}

		seen, err := runScanWindow(ctx, s, eng, opts, out, interactive && cfg.OutputFormat == "table", logger)
		if err != nil {
			return err
		}

		if scanWatch && interactive && cfg.OutputFormat == "table" {
			clearScreen(out)
			fmt.Fprintf(out, "Pass %d, %d devices in window, %d tracked\n\n", pass, seen, eng.Devices().Len())
		}
		if err := printer.Print(eng.Drain(), seen); err != nil {
			return err
		}

		if !scanWatch {
			return nil
		}
	}
}

// runScanWindow scans one window and runs the engine over it. It returns
// how many devices the window saw.
func runScanWindow(ctx context.Context, s *scanner.Scanner, eng *engine.Engine, opts *scanner.ScanOptions, out io.Writer, showProgress bool, logger *logrus.Logger) (int, error) {
	var callback scanner.ProgressCallback
	if showProgress {
		progress := NewCountdownProgressPrinter(out, "Scanning for BLE devices", "Scanning", opts.Duration, "Processing results")
		progress.Start()
		defer progress.Stop()
		callback = progress.Callback()
	}

	observations, err := s.Scan(ctx, opts, callback)
	if err != nil {
		return 0, err
	}

	if _, err := eng.Process(ctx, observations); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return 0, ctxErr
		}
		// Failed profiles are reported; the others still matched.
		logger.WithError(err).Warn("Some profiles could not be evaluated")
	}
	return len(observations), nil
}

// parseLocation parses "lat,lng" in decimal degrees.
func parseLocation(s string) (device.LocationPoint, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return device.LocationPoint{}, fmt.Errorf("%w %q: expected lat,lng", ErrInvalidLocation, s)
	}
	lat, err := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	if err != nil {
		return device.LocationPoint{}, fmt.Errorf("%w %q: bad latitude: %w", ErrInvalidLocation, s, err)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err != nil {
		return device.LocationPoint{}, fmt.Errorf("%w %q: bad longitude: %w", ErrInvalidLocation, s, err)
	}
	if lat < -90 || lat > 90 || lng < -180 || lng > 180 {
		return device.LocationPoint{}, fmt.Errorf("%w %q: out of range", ErrInvalidLocation, s)
	}
	return device.LocationPoint{Lat: lat, Lng: lng}, nil
}

// matchOutput is the JSON form of a match, with the matched devices.
type matchOutput struct {
	engine.Match
	Devices []*device.Record `json:"devices"`
}

type matchPrinter struct {
	w       io.Writer
	format  string
	devices *store.DeviceStore
	profile *color.Color
	dim     *color.Color
}

func newMatchPrinter(w io.Writer, format string, devices *store.DeviceStore, colorize bool) *matchPrinter {
	p := &matchPrinter{
		w:       w,
		format:  format,
		devices: devices,
		profile: color.New(color.FgRed, color.Bold),
		dim:     color.New(color.Faint),
	}
	if !colorize {
		p.profile.DisableColor()
		p.dim.DisableColor()
	}
	return p
}

// Print writes the matches of one pass.
func (p *matchPrinter) Print(matches []engine.Match, seen int) error {
	if p.format == "json" {
		return p.printJSON(matches)
	}
	return p.printTable(matches, seen)
}

func (p *matchPrinter) printJSON(matches []engine.Match) error {
	out := make([]matchOutput, 0, len(matches))
	for _, m := range matches {
		mo := matchOutput{Match: m, Devices: make([]*device.Record, 0, len(m.Addresses))}
		for _, addr := range m.Addresses {
			if rec, ok := p.devices.Lookup(addr); ok {
				mo.Devices = append(mo.Devices, rec)
			}
		}
		out = append(out, mo)
	}

	encoder := json.NewEncoder(p.w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

func (p *matchPrinter) printTable(matches []engine.Match, seen int) error {
	if len(matches) == 0 {
		fmt.Fprintln(p.w, p.dim.Sprintf("No profile matched (%d devices seen)", seen))
		return nil
	}

	w := tabwriter.NewWriter(p.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tPROFILE\tADDRESS\tNAME\tVENDOR\tRSSI")

	for _, m := range matches {
		at := time.UnixMilli(m.AtMs).Format(time.TimeOnly)
		for _, addr := range m.Addresses {
			name, vendorName, rssi := "", "", ""
			if rec, ok := p.devices.Lookup(addr); ok {
				name = truncate(rec.DisplayName(), 20)
				if rec.VendorInfo != nil {
					vendorName = truncate(rec.VendorInfo.Name, 24)
				}
				rssi = fmt.Sprintf("%d dBm", rec.RSSI)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n", at, p.profile.Sprint(m.ProfileName), addr, name, vendorName, rssi)
		}
	}
	return w.Flush()
}

// truncate shortens s to at most n runes, marking the cut with "...".
func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) > n {
		return string(runes[:n-3]) + "..."
	}
	return s
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func clearScreen(w io.Writer) {
	fmt.Fprint(w, "\033[2J\033[H")
}
