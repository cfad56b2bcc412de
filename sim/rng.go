package sim

import (
	"encoding/binary"
	"fmt"
	"hash/fnv"
	"io"
	"math/rand/v2"
)

// === SimulationKey ===

// SimulationKey uniquely identifies a reproducible simulation run.
// Two simulations with the same SimulationKey and identical configuration
// MUST produce bit-for-bit identical results.
type SimulationKey int64

// NewSimulationKey creates a SimulationKey from a seed value.
func NewSimulationKey(seed int64) SimulationKey {
	return SimulationKey(seed)
}

// === Subsystem Constants ===

const (
	// SubsystemColors is the RNG subsystem for job colors.
	SubsystemColors = "colors"

	// SubsystemJobIDs seeds the job ID reader.
	SubsystemJobIDs = "job_ids"
)

// SubsystemOven returns the subsystem name for an oven's arrival process.
func SubsystemOven(oven OvenID) string {
	return fmt.Sprintf("oven_%s", oven)
}

// === PartitionedRNG ===

// PartitionedRNG provides deterministic, isolated RNG instances per subsystem.
//
// Derivation formula: each subsystem is a PCG stream seeded with
// (masterSeed, fnv1a64(subsystemName)), so drawing from one subsystem never
// shifts another.
//
// Thread-safety: NOT thread-safe. Must be called from single goroutine.
type PartitionedRNG struct {
	key        SimulationKey
	subsystems map[string]*rand.Rand
}

// NewPartitionedRNG creates a PartitionedRNG from a SimulationKey.
func NewPartitionedRNG(key SimulationKey) *PartitionedRNG {
	return &PartitionedRNG{
		key:        key,
		subsystems: make(map[string]*rand.Rand),
	}
}

// ForSubsystem returns a deterministically-seeded RNG for the named subsystem.
// The same subsystem name always returns the same *rand.Rand instance (cached).
// Never returns nil. A *rand.Rand is also a rand.Source, so it can feed
// gonum distributions directly.
func (p *PartitionedRNG) ForSubsystem(name string) *rand.Rand {
	if rng, ok := p.subsystems[name]; ok {
		return rng
	}
	rng := rand.New(rand.NewPCG(uint64(p.key), fnv1a64(name)))
	p.subsystems[name] = rng
	return rng
}

// Reader returns a deterministic byte stream for the named subsystem.
// Each call starts a fresh stream; callers keep the reader.
func (p *PartitionedRNG) Reader(name string) io.Reader {
	var seed [32]byte
	binary.LittleEndian.PutUint64(seed[0:], uint64(p.key))
	binary.LittleEndian.PutUint64(seed[8:], fnv1a64(name))
	return rand.NewChaCha8(seed)
}

// Key returns the SimulationKey used to create this PartitionedRNG.
func (p *PartitionedRNG) Key() SimulationKey {
	return p.key
}

// fnv1a64 computes a 64-bit FNV-1a hash of the input string.
func fnv1a64(s string) uint64 {
	h := fnv.New64a()
	h.Write([]byte(s))
	return h.Sum64()
}
