// Aggregates run-level statistics of a simulation.

package sim

import (
	"fmt"
	"io"
	"math"

	"gonum.org/v1/gonum/stat"
)

// Stats aggregates statistics about a simulation run for final reporting.
type Stats struct {
	Arrivals          int // jobs generated by enabled ovens
	Throughput        int // jobs whose conveyor trip completed
	Picks             int // conveyor trips started
	Changeovers       int // color changes between consecutive trips
	CrossSends        int // placements outside the primary tier
	Holds             int // arrivals that had to wait at their oven
	EmergencyReleases int // held jobs force-released after the hold limit
	MeanHoldSeconds   float64
	MeanBatchSize     float64
	EndedSeconds      float64
	Drain             *DrainResult // set when drain mode was entered

	holdSeconds []float64
	batchSizes  []float64
}

func (s *Stats) observeHold(seconds float64) { s.holdSeconds = append(s.holdSeconds, seconds) }
func (s *Stats) observeBatch(n int)          { s.batchSizes = append(s.batchSizes, float64(n)) }

// finalize computes the derived means.
func (s *Stats) finalize(end int64) {
	s.EndedSeconds = TicksToSeconds(end)
	s.MeanHoldSeconds = meanOrZero(s.holdSeconds)
	s.MeanBatchSize = meanOrZero(s.batchSizes)
}

func meanOrZero(xs []float64) float64 {
	if len(xs) == 0 {
		return 0
	}
	m := stat.Mean(xs, nil)
	if math.IsNaN(m) {
		return 0
	}
	return m
}

// ChangeoverRate returns changeovers per withdrawn job.
func (s *Stats) ChangeoverRate() float64 {
	if s.Throughput == 0 {
		return 0
	}
	return float64(s.Changeovers) / float64(s.Throughput)
}

// Print writes the run summary.
func (s *Stats) Print(w io.Writer) {
	fmt.Fprintln(w, "=== Simulation Metrics ===")
	fmt.Fprintf(w, "Simulated Time       : %.1f s\n", s.EndedSeconds)
	fmt.Fprintf(w, "Arrivals             : %d\n", s.Arrivals)
	fmt.Fprintf(w, "Throughput           : %d\n", s.Throughput)
	fmt.Fprintf(w, "Picks                : %d\n", s.Picks)
	fmt.Fprintf(w, "Changeovers          : %d\n", s.Changeovers)
	if s.Throughput > 0 {
		fmt.Fprintf(w, "Changeovers per Job  : %.3f\n", s.ChangeoverRate())
		fmt.Fprintf(w, "Mean Batch Size      : %.2f\n", s.MeanBatchSize)
	}
	fmt.Fprintf(w, "Cross-tier Sends     : %d\n", s.CrossSends)
	fmt.Fprintf(w, "Holds                : %d\n", s.Holds)
	fmt.Fprintf(w, "Emergency Releases   : %d\n", s.EmergencyReleases)
	if s.EmergencyReleases > 0 {
		fmt.Fprintf(w, "Mean Hold Time       : %.2f s\n", s.MeanHoldSeconds)
	}
	if s.Drain != nil {
		fmt.Fprintf(w, "Drain Plan           : %s (%d entries)\n", s.Drain.Status, s.Drain.PlanLength)
	}
}
