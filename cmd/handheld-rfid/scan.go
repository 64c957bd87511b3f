package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"handheld_rfid_go/internal/config"
	"handheld_rfid_go/internal/discovery"
	"handheld_rfid_go/internal/driver"
)

type transportReport struct {
	Transport string                    `json:"transport"`
	Devices   []driver.DeviceDescriptor `json:"devices"`
	Error     string                    `json:"error,omitempty"`
}

type scanReport struct {
	Driver     string            `json:"driver"`
	Prefix     string            `json:"prefix"`
	Transports []transportReport `json:"transports"`
	Selected   string            `json:"selected,omitempty"`
	Duration   time.Duration     `json:"duration_ns"`
}

func newScanCmd(opts *rootOptions) *cobra.Command {
	var (
		asJSON  bool
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "List readers per transport and the one discovery would pick",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			closeLog, err := setupLogging(cfg, false)
			if err != nil {
				return err
			}
			defer closeLog()

			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()

			report, err := runScan(ctx, cfg)
			if err != nil {
				return err
			}
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(report)
			}
			printScan(cmd.OutOrStdout(), report)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print the report as JSON")
	cmd.Flags().DurationVar(&timeout, "timeout", 25*time.Second, "overall discovery timeout")
	return cmd
}

// runScan queries every transport, unlike discovery which stops at the first hit.
func runScan(ctx context.Context, cfg config.Config) (scanReport, error) {
	factory, err := enumeratorFactory(cfg)
	if err != nil {
		return scanReport{}, err
	}
	enum, err := factory()
	if err != nil {
		return scanReport{}, driver.Fail("create enumerator", err)
	}
	defer enum.Dispose()

	transports, err := cfg.TransportOrder()
	if err != nil {
		return scanReport{}, err
	}

	start := time.Now()
	report := scanReport{Driver: cfg.Driver, Prefix: cfg.Reader.Prefix}
	for _, t := range transports {
		devices, err := enum.Available(ctx, t)
		tr := transportReport{Transport: string(t), Devices: devices}
		if err != nil {
			tr.Error = driver.Describe(err)
		}
		report.Transports = append(report.Transports, tr)
	}

	res, err := discovery.Enumerate(ctx, enum, transports)
	if err == nil {
		if desc, ok := discovery.Select(res.Devices, cfg.Reader.Prefix); ok {
			report.Selected = desc.Name
		}
	}
	report.Duration = time.Since(start)
	return report, nil
}

func printScan(w io.Writer, r scanReport) {
	fmt.Fprintf(w, "driver: %s  prefix: %q\n", r.Driver, r.Prefix)
	for _, tr := range r.Transports {
		switch {
		case tr.Error != "":
			fmt.Fprintf(w, "%-12s error: %s\n", tr.Transport, tr.Error)
		case len(tr.Devices) == 0:
			fmt.Fprintf(w, "%-12s none\n", tr.Transport)
		default:
			fmt.Fprintf(w, "%-12s %d device(s)\n", tr.Transport, len(tr.Devices))
			for i, d := range tr.Devices {
				fmt.Fprintf(w, "  %2d) %s  %s\n", i+1, d.Name, d.Address)
			}
		}
	}
	if r.Selected == "" {
		fmt.Fprintln(w, "selected: none (Failed to find reader)")
	} else {
		fmt.Fprintf(w, "selected: %s\n", r.Selected)
	}
	fmt.Fprintf(w, "scan duration: %s\n", r.Duration.Round(time.Millisecond))
}
