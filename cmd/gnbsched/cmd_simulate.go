package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/friendsincode/gnb_scheduler/internal/config"
	"github.com/friendsincode/gnb_scheduler/internal/diag"
	"github.com/friendsincode/gnb_scheduler/internal/driver"
	"github.com/friendsincode/gnb_scheduler/internal/logging"
	"github.com/friendsincode/gnb_scheduler/internal/models"
	"github.com/friendsincode/gnb_scheduler/internal/scheduler"
	"github.com/friendsincode/gnb_scheduler/internal/slot"
)

// firstSimulatedRNTI keeps simulated terminals clear of the TC-RNTI range.
const firstSimulatedRNTI models.RNTI = 0x1001

type simulateOptions struct {
	CellsFile  string
	Cells      int
	Numerology uint8
	PRBs       int
	Slots      int
	Start      uint32
	Rach       []string
	UEs        int
	Workers    int
	All        bool
	Output     string
}

var simOpts simulateOptions

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Run the scheduler offline for a number of slots",
	Long: `Drive the scheduler without a wall clock and print the slot results as YAML.

Examples:
  # One 52 PRB cell, a preamble detected in slot 4, 20 slots
  gnbsched simulate --rach 0:4:12

  # Cells from a file with two terminals each, results written to a file
  gnbsched simulate --cells-file cells.yaml --ues 2 --slots 100 --output run.yaml
`,
	RunE: func(cmd *cobra.Command, args []string) error {
		log, err := logging.New(logging.Options{Environment: "production", Level: "warn", Out: os.Stderr})
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		if simOpts.Output != "" && simOpts.Output != "-" {
			f, err := os.Create(simOpts.Output)
			if err != nil {
				return fmt.Errorf("create output: %w", err)
			}
			defer f.Close()
			out = f
		}
		return simulate(cmd.Context(), simOpts, out, log)
	},
}

func init() {
	f := simulateCmd.Flags()
	f.StringVar(&simOpts.CellsFile, "cells-file", "", "YAML cell definitions (overrides --cells)")
	f.IntVar(&simOpts.Cells, "cells", 1, "Number of generated cells")
	f.Uint8Var(&simOpts.Numerology, "numerology", 1, "Numerology of generated cells")
	f.IntVar(&simOpts.PRBs, "prbs", 52, "Carrier width of generated cells in PRBs")
	f.IntVar(&simOpts.Slots, "slots", 20, "Number of clock ticks to run")
	f.Uint32Var(&simOpts.Start, "start", 0, "First clock tick")
	f.StringArrayVar(&simOpts.Rach, "rach", nil, "Preamble detection as cell:slot:preamble[:timing_advance] (repeatable)")
	f.IntVar(&simOpts.UEs, "ues", 0, "Connected terminals added to every cell")
	f.IntVar(&simOpts.Workers, "workers", 1, "Driver worker goroutines")
	f.BoolVar(&simOpts.All, "all", false, "Include slots without grants")
	f.StringVarP(&simOpts.Output, "output", "o", "-", "Output file")
	rootCmd.AddCommand(simulateCmd)
}

type simulationReport struct {
	Cells       []models.CellConfigRequest `yaml:"cells"`
	Summary     simulationSummary          `yaml:"summary"`
	Results     []*models.SlotResult       `yaml:"results"`
	Diagnostics []diag.Entry               `yaml:"diagnostics,omitempty"`
}

type simulationSummary struct {
	Slots  int                      `yaml:"slots"`
	Grants map[models.GrantKind]int `yaml:"grants"`
}

func simulate(ctx context.Context, opts simulateOptions, out io.Writer, logger zerolog.Logger) error {
	if ctx == nil {
		ctx = context.Background()
	}
	cells, err := simulatedCells(opts)
	if err != nil {
		return err
	}
	rachs, err := parseRachFlags(opts.Rach)
	if err != nil {
		return err
	}

	buf := diag.New(0)
	maxCells := scheduler.DefaultConfig().MaxCells
	var clock uint8
	for _, c := range cells {
		maxCells = max(maxCells, int(c.Index)+1)
		clock = max(clock, c.Numerology)
	}
	sched := scheduler.New(scheduler.Config{MaxCells: maxCells}, diag.Multi{buf, diag.NewLogger(logger)}, nil, logger)

	numerology := make(map[models.CellIndex]uint8, len(cells))
	for _, c := range cells {
		if err := sched.Configure(c); err != nil {
			return fmt.Errorf("configure cell %d: %w", c.Index, err)
		}
		numerology[c.Index] = c.Numerology
		for i := 0; i < opts.UEs; i++ {
			sched.SubmitUEEvent(models.UEEvent{
				Kind: models.UEAdd,
				Cell: c.Index,
				Config: models.UEConfig{
					RNTI:   firstSimulatedRNTI + models.RNTI(i),
					DLPRBs: 8,
					ULPRBs: 8,
					MCS:    16,
				},
			})
		}
	}

	for _, r := range rachs {
		mu, ok := numerology[r.cell]
		if !ok {
			return fmt.Errorf("rach for unconfigured cell %d", r.cell)
		}
		sched.SubmitRandomAccess(models.RachIndication{
			Cell:      r.cell,
			Slot:      slot.NewPoint(mu, r.slot),
			Preambles: []models.Preamble{r.preamble},
		})
	}

	collector := &driver.Collector{}
	drv := driver.New(driver.Config{Numerology: clock, Workers: opts.Workers}, sched, collector, logger)
	for n := uint64(opts.Start); n < uint64(opts.Start)+uint64(opts.Slots); n++ {
		if err := drv.Tick(ctx, n); err != nil {
			return err
		}
	}

	report := simulationReport{
		Cells:       cells,
		Summary:     simulationSummary{Grants: map[models.GrantKind]int{}},
		Diagnostics: buf.GetAll(),
	}
	for _, res := range collector.Results() {
		report.Summary.Slots++
		for _, g := range res.Downlink {
			report.Summary.Grants[g.Kind]++
		}
		for _, g := range res.Uplink {
			report.Summary.Grants[g.Kind]++
		}
		if opts.All || len(res.Downlink) > 0 || len(res.Uplink) > 0 {
			report.Results = append(report.Results, res)
		}
	}

	enc := yaml.NewEncoder(out)
	enc.SetIndent(2)
	if err := enc.Encode(report); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return enc.Close()
}

func simulatedCells(opts simulateOptions) ([]models.CellConfigRequest, error) {
	if opts.CellsFile != "" {
		return config.LoadCells(opts.CellsFile, opts.Numerology)
	}
	if opts.Cells < 1 {
		return nil, fmt.Errorf("at least one cell is required")
	}
	cells := make([]models.CellConfigRequest, opts.Cells)
	for i := range cells {
		cells[i] = models.CellConfigRequest{
			Index:      models.CellIndex(i),
			PCI:        uint16(i + 1),
			Numerology: opts.Numerology,
			NumPRBs:    opts.PRBs,
			RA:         models.DefaultRAConfig(),
		}
	}
	return cells, nil
}

// scriptedRach is one preamble detection given on the command line.
type scriptedRach struct {
	cell     models.CellIndex
	slot     uint32
	preamble models.Preamble
}

// parseRachFlags parses cell:slot:preamble[:timing_advance] flag values.
func parseRachFlags(flags []string) ([]scriptedRach, error) {
	out := make([]scriptedRach, 0, len(flags))
	for _, raw := range flags {
		parts := strings.Split(raw, ":")
		if len(parts) < 3 || len(parts) > 4 {
			return nil, fmt.Errorf("rach %q: want cell:slot:preamble[:timing_advance]", raw)
		}
		var nums [4]uint64
		for i, p := range parts {
			n, err := strconv.ParseUint(p, 10, 32)
			if err != nil {
				return nil, fmt.Errorf("rach %q: %w", raw, err)
			}
			nums[i] = n
		}
		if nums[0] > 0xFFFF || nums[2] > 63 || nums[3] > 0xFFFF {
			return nil, fmt.Errorf("rach %q: value out of range", raw)
		}
		out = append(out, scriptedRach{
			cell: models.CellIndex(nums[0]),
			slot: uint32(nums[1]),
			preamble: models.Preamble{
				Index:         uint8(nums[2]),
				TimingAdvance: uint16(nums[3]),
			},
		})
	}
	return out, nil
}
