package probe

import (
	"context"

	"github.com/metal-toolbox/inventory/internal/model"
)

// Other is the probe of unsupported platforms, every attribute is not applicable.
type Other struct{}

func (o *Other) Platform() Platform { return PlatformOther }

func (o *Other) SerialNumber(context.Context) (string, error)  { return "", ErrNotApplicable }
func (o *Other) DeviceModel(context.Context) (string, error)   { return "", ErrNotApplicable }
func (o *Other) OSName(context.Context) (string, error)        { return "", ErrNotApplicable }
func (o *Other) Architecture(context.Context) (string, error)  { return "", ErrNotApplicable }
func (o *Other) CPUModel(context.Context) (string, error)      { return "", ErrNotApplicable }
func (o *Other) CPUCores(context.Context, bool) (int, error)   { return 0, ErrNotApplicable }
func (o *Other) RAMTotalBytes(context.Context) (uint64, error) { return 0, ErrNotApplicable }
func (o *Other) RAMSlots(context.Context) (int, error)         { return 0, ErrNotApplicable }
func (o *Other) Partitions(context.Context) ([]Partition, error) {
	return nil, ErrNotApplicable
}

func (o *Other) Usage(context.Context, string) (total, used uint64, err error) {
	return 0, 0, ErrNotApplicable
}

func (o *Other) MACAddress(context.Context) (string, error)    { return "", ErrNotApplicable }
func (o *Other) IPAddress(context.Context) (string, error)     { return "", ErrNotApplicable }
func (o *Other) StorageHealth(context.Context) (string, error) { return "", ErrNotApplicable }
func (o *Other) GPUs(context.Context) ([]string, error)        { return nil, ErrNotApplicable }
func (o *Other) InstalledUpdates(context.Context) (int, error) { return 0, ErrNotApplicable }
func (o *Other) InstalledSoftware(context.Context) ([]string, error) {
	return nil, ErrNotApplicable
}

func (o *Other) Monitors(context.Context) ([]model.Monitor, error) {
	return nil, ErrNotApplicable
}
