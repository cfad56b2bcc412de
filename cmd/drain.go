package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"slices"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/paint-sequencer/paint-sequencer/sim"
	"github.com/paint-sequencer/paint-sequencer/sim/solver"
	"github.com/paint-sequencer/paint-sequencer/sim/workload"
)

var (
	fillFraction  float64 // Demo plant fill level before draining
	useExact      bool    // Try the exact solver first
	exactEngine   string  // Exact solver engine override
	compareGreedy bool    // Also drain a copy of the plant with the greedy planner
)

// drainReport summarizes one offline drain.
type drainReport struct {
	Result      sim.DrainResult
	Jobs        int
	Picks       int
	Changeovers int
	Sequence    []string
}

// fillDemoPlant queues random jobs into every buffer up to fraction of its
// usable capacity. Each buffer is filled from the first oven listing it as primary.
func fillDemoPlant(p *sim.PlantState, cfg sim.Config, fraction float64) error {
	rng := sim.NewPartitionedRNG(sim.NewSimulationKey(seed))
	names := make([]string, len(cfg.Simulation.Colors))
	weights := make([]float64, len(cfg.Simulation.Colors))
	for i, cw := range cfg.Simulation.Colors {
		names[i], weights[i] = cw.Color, cw.Weight
	}
	colors, err := workload.NewColorSampler(names, weights, rng.ForSubsystem(sim.SubsystemColors))
	if err != nil {
		return err
	}
	ids := workload.NewIDSource(rng.Reader(sim.SubsystemJobIDs))

	for _, b := range p.Buffers() {
		origin := sim.OvenID("")
		for _, oven := range p.OvenIDs() {
			if r, _ := p.Route(oven); slices.Contains(r.Primary, b.ID) {
				origin = oven
				break
			}
		}
		n := int(fraction * float64(b.Capacity-b.ReserveHeadroom))
		for i := 0; i < n && b.HasRoom(); i++ {
			id, err := ids.Next()
			if err != nil {
				return err
			}
			if err := b.Push(sim.NewJob(id, colors.Next(), origin, 0)); err != nil {
				return err
			}
		}
	}
	return nil
}

// runDrain enters drain mode on plant and withdraws until nothing is left.
func runDrain(ctx context.Context, plant *sim.PlantState, cfg sim.Config, exact bool) (drainReport, error) {
	clock := &sim.ManualClock{}
	ctl := sim.NewController(plant, cfg, sim.WithClock(clock))
	report := drainReport{Jobs: plant.TotalOccupancy()}
	report.Result = ctl.EnterDrain(ctx, exact)
	defer ctl.ExitDrain()

	for plant.TotalOccupancy() > 0 {
		d, ok := ctl.DecidePick()
		if !ok {
			break
		}
		clock.Set(clock.Now() + sim.TicksPerSecond)
		jobs, err := ctl.ExecutePick(d.BufferID, d.Count, string(d.Mode))
		if err != nil {
			return report, err
		}
		report.Picks++
		for _, j := range jobs {
			report.Sequence = append(report.Sequence, j.Color)
		}
	}
	report.Changeovers = sim.ChangeoverCount(report.Sequence)
	return report, nil
}

// compareDrains drains a copy of plant with the greedy planner, then plant
// itself with the exact solver.
func compareDrains(ctx context.Context, plant *sim.PlantState, cfg sim.Config) (exact, greedy drainReport, err error) {
	greedy, err = runDrain(ctx, plant.Clone(), cfg, false)
	if err != nil {
		return exact, greedy, err
	}
	exact, err = runDrain(ctx, plant, cfg, true)
	return exact, greedy, err
}

func (r drainReport) print(w io.Writer) {
	fmt.Fprintln(w, "=== Drain ===")
	fmt.Fprintf(w, "Plan                 : %s (%d entries)\n", r.Result.Status, r.Result.PlanLength)
	if r.Result.SolverStatus != "" {
		fmt.Fprintf(w, "Solver               : %s in %v\n", r.Result.SolverStatus, r.Result.SolverTime)
	}
	fmt.Fprintf(w, "Jobs                 : %d\n", r.Jobs)
	fmt.Fprintf(w, "Picks                : %d\n", r.Picks)
	fmt.Fprintf(w, "Changeovers          : %d\n", r.Changeovers)
	fmt.Fprintf(w, "Sequence             : %v\n", r.Sequence)
}

// drainCmd fills a demo plant and drains it offline.
var drainCmd = &cobra.Command{
	Use:   "drain",
	Short: "Fill a demo plant and drain it, reporting changeovers",
	Run: func(cmd *cobra.Command, args []string) {
		setupLogging()
		cfg, err := loadConfig()
		if err != nil {
			logrus.Fatalf("Config: %v", err)
		}
		if cmd.Flags().Changed("engine") {
			cfg.Exact.Engine = solver.Engine(exactEngine)
			if err := cfg.Validate(); err != nil {
				logrus.Fatalf("Config: %v", err)
			}
		}
		plant := sim.NewPlant(cfg.Plant)
		if err := fillDemoPlant(plant, cfg, fillFraction); err != nil {
			logrus.Fatalf("Demo plant: %v", err)
		}
		if compareGreedy && useExact {
			exact, greedy, err := compareDrains(cmd.Context(), plant, cfg)
			if err != nil {
				logrus.Fatalf("Drain aborted: %v", err)
			}
			exact.print(os.Stdout)
			fmt.Printf("Greedy Changeovers   : %d\n", greedy.Changeovers)
			return
		}
		report, err := runDrain(cmd.Context(), plant, cfg, useExact)
		if err != nil {
			logrus.Fatalf("Drain aborted: %v", err)
		}
		report.print(os.Stdout)
	},
}

func init() {
	drainCmd.Flags().Float64Var(&fillFraction, "fill", 0.6, "Fill level of the demo plant (fraction of usable capacity)")
	drainCmd.Flags().BoolVar(&useExact, "exact", true, "Try the exact solver before the greedy planner")
	drainCmd.Flags().StringVar(&exactEngine, "engine", string(solver.EnginePortfolio), "Exact solver engine (portfolio, branch_and_bound, pseudo_boolean)")
	drainCmd.Flags().BoolVar(&compareGreedy, "compare", false, "Also drain a copy of the plant with the greedy planner and report its changeovers")
}
