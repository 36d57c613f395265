package simharness

import (
	"errors"
	"os"
	"sync"

	"github.com/ruleforge/engine/internal/storage"
)

// FaultInjector deterministically decides, via a DeterministicRand, whether
// each filesystem operation a FaultyFileSystem intercepts should fail.
type FaultInjector struct {
	mu   sync.RWMutex
	rand *DeterministicRand

	DiskFullProbability     float64
	CorruptionProbability   float64
	PartialWriteProbability float64

	DiskFullCount     int
	CorruptionCount   int
	PartialWriteCount int

	Enabled bool
}

// NewFaultInjector creates a disabled-by-default fault injector driven by rand.
func NewFaultInjector(rand *DeterministicRand) *FaultInjector {
	return &FaultInjector{rand: rand}
}

// ApplyProfile configures the injector's fault probabilities from profile.
func (f *FaultInjector) ApplyProfile(profile FaultProfile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Enabled = true
	f.DiskFullProbability = profile.DiskFullProbability
	f.CorruptionProbability = profile.CorruptionProbability
	f.PartialWriteProbability = profile.PartialWriteProbability
}

func (f *FaultInjector) shouldInjectDiskFull() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.Enabled {
		return false
	}
	if f.rand.Chance(f.DiskFullProbability) {
		f.DiskFullCount++
		return true
	}
	return false
}

func (f *FaultInjector) shouldInjectCorruption() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.Enabled {
		return false
	}
	if f.rand.Chance(f.CorruptionProbability) {
		f.CorruptionCount++
		return true
	}
	return false
}

func (f *FaultInjector) shouldInjectPartialWrite() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.Enabled {
		return false
	}
	if f.rand.Chance(f.PartialWriteProbability) {
		f.PartialWriteCount++
		return true
	}
	return false
}

// Stats reports how many faults of each kind have been injected so far.
func (f *FaultInjector) Stats() FaultStats {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return FaultStats{
		DiskFullCount:     f.DiskFullCount,
		CorruptionCount:   f.CorruptionCount,
		PartialWriteCount: f.PartialWriteCount,
		TotalFaults:       f.DiskFullCount + f.CorruptionCount + f.PartialWriteCount,
	}
}

// FaultStats tallies fault injection counts.
type FaultStats struct {
	DiskFullCount     int
	CorruptionCount   int
	PartialWriteCount int
	TotalFaults       int
}

// FaultyFileSystem wraps a storage.MockFileSystem and injects faults into its
// operations, implementing storage.FileSystem so it can back a DiskRuleStore.
type FaultyFileSystem struct {
	fs       *storage.MockFileSystem
	injector *FaultInjector
}

// NewFaultyFileSystem creates a fault-injecting filesystem over a fresh
// in-memory MockFileSystem.
func NewFaultyFileSystem(injector *FaultInjector) *FaultyFileSystem {
	return &FaultyFileSystem{
		fs:       storage.NewMockFileSystem(),
		injector: injector,
	}
}

func (ffs *FaultyFileSystem) ReadFile(path string) ([]byte, error) {
	data, err := ffs.fs.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if len(data) > 0 && ffs.injector.shouldInjectCorruption() {
		idx := ffs.injector.rand.Intn(len(data))
		data[idx] = ^data[idx]
	}
	return data, nil
}

func (ffs *FaultyFileSystem) WriteFile(path string, data []byte, perm os.FileMode) error {
	if ffs.injector.shouldInjectDiskFull() {
		return errors.New("simharness: no space left on device")
	}
	if len(data) > 0 && ffs.injector.shouldInjectPartialWrite() {
		data = data[:ffs.injector.rand.Intn(len(data))]
	}
	return ffs.fs.WriteFile(path, data, perm)
}

func (ffs *FaultyFileSystem) Rename(oldpath, newpath string) error {
	return ffs.fs.Rename(oldpath, newpath)
}

func (ffs *FaultyFileSystem) MkdirAll(path string, perm os.FileMode) error {
	return ffs.fs.MkdirAll(path, perm)
}

func (ffs *FaultyFileSystem) Remove(path string) error {
	return ffs.fs.Remove(path)
}

func (ffs *FaultyFileSystem) Stat(path string) (os.FileInfo, error) {
	return ffs.fs.Stat(path)
}

// FaultProfile names a set of fault probabilities for a fault injector.
type FaultProfile struct {
	Name                    string
	DiskFullProbability     float64
	CorruptionProbability   float64
	PartialWriteProbability float64
}

// ConservativeProfile is a low fault rate suitable for most soak runs.
func ConservativeProfile() FaultProfile {
	return FaultProfile{Name: "conservative", DiskFullProbability: 0.01, CorruptionProbability: 0.005, PartialWriteProbability: 0.01}
}

// ChaosProfile is a high fault rate for stress-testing crash recovery.
func ChaosProfile() FaultProfile {
	return FaultProfile{Name: "chaos", DiskFullProbability: 0.15, CorruptionProbability: 0.08, PartialWriteProbability: 0.1}
}
