// Package probe reads individual inventory attributes from the operating system.
//
// Every attribute is read by an independent method of a PlatformProbe, a
// failure of one method never affects another. Probes return raw readings,
// the collector package normalizes them into a model.Snapshot.
package probe

import (
	"context"
	"runtime"

	"github.com/metal-toolbox/inventory/internal/model"
	"github.com/pkg/errors"
)

// Platform is the operating system family a probe implementation supports.
type Platform string

const (
	PlatformWindows Platform = "windows"
	PlatformLinux   Platform = "linux"
	PlatformOther   Platform = "other"
)

var (
	// ErrNotApplicable is returned by probes for attributes the platform does not have.
	ErrNotApplicable = errors.New("not applicable on this platform")
	// ErrProbe is returned when an attribute could not be read.
	ErrProbe = errors.New("probe failed")
)

// Partition is a mounted filesystem as reported by the OS.
type Partition struct {
	Device     string
	Mountpoint string
	Fstype     string
	Opts       []string
}

// PlatformProbe reads inventory attributes on one platform.
//
// Methods are safe to call in any order, each returns its own error.
type PlatformProbe interface {
	Platform() Platform
	SerialNumber(ctx context.Context) (string, error)
	DeviceModel(ctx context.Context) (string, error)
	OSName(ctx context.Context) (string, error)
	Architecture(ctx context.Context) (string, error)
	CPUModel(ctx context.Context) (string, error)
	CPUCores(ctx context.Context, logical bool) (int, error)
	RAMTotalBytes(ctx context.Context) (uint64, error)
	// RAMSlots returns the number of occupied memory slots.
	RAMSlots(ctx context.Context) (int, error)
	Partitions(ctx context.Context) ([]Partition, error)
	Usage(ctx context.Context, mountpoint string) (total, used uint64, err error)
	MACAddress(ctx context.Context) (string, error)
	IPAddress(ctx context.Context) (string, error)
	StorageHealth(ctx context.Context) (string, error)
	GPUs(ctx context.Context) ([]string, error)
	// InstalledUpdates returns the number of OS patches installed.
	InstalledUpdates(ctx context.Context) (int, error)
	InstalledSoftware(ctx context.Context) ([]string, error)
	Monitors(ctx context.Context) ([]model.Monitor, error)
}

// Detect returns the platform family for a GOOS value.
func Detect(goos string) Platform {
	switch goos {
	case "windows":
		return PlatformWindows
	case "linux":
		return PlatformLinux
	default:
		return PlatformOther
	}
}

// New returns the PlatformProbe for the platform the binary runs on.
func New() PlatformProbe {
	return ForPlatform(Detect(runtime.GOOS), NewExecRunner())
}

// ForPlatform returns the PlatformProbe for the given platform, commands are executed with runner.
func ForPlatform(p Platform, runner Runner) PlatformProbe {
	switch p {
	case PlatformWindows:
		return NewWindows(runner)
	case PlatformLinux:
		return NewLinux(runner, nil)
	default:
		return &Other{}
	}
}

func errProbe(attr string, err error) error {
	if err == nil {
		return errors.Wrap(ErrProbe, attr+": no data")
	}

	if errors.Is(err, ErrNotApplicable) {
		return err
	}

	return errors.Wrap(ErrProbe, attr+": "+err.Error())
}
