package fixtures

import (
	"context"

	"github.com/metal-toolbox/inventory/internal/model"
	"github.com/metal-toolbox/inventory/internal/probe"
)

// FakeProbe is a PlatformProbe returning canned readings.
//
// Errs maps a probe method name to the error it returns, Panics lists the methods that panic.
type FakeProbe struct {
	OS probe.Platform

	Serial          string
	Model           string
	OperatingSystem string
	Arch            string
	CPU             string
	PhysicalCores   int
	LogicalCores    int
	RAMBytes        uint64
	Slots           int
	Parts           []probe.Partition
	Usages          map[string][2]uint64
	MAC             string
	IP              string
	Health          string
	GPUList         []string
	Updates         int
	Software        []string
	MonitorList     []model.Monitor

	Errs   map[string]error
	Panics map[string]bool
	Calls  []string
}

// NewFakeProbe returns a FakeProbe of a healthy Linux workstation.
func NewFakeProbe() *FakeProbe {
	return &FakeProbe{
		OS:              probe.PlatformLinux,
		Serial:          "PF2ABCDE",
		Model:           "LENOVO 20S0CTO1WW",
		OperatingSystem: "debian 12.4",
		Arch:            "x86_64",
		CPU:             "Intel(R) Core(TM) i7-10610U CPU @ 1.80GHz",
		PhysicalCores:   4,
		LogicalCores:    8,
		RAMBytes:        16 << 30,
		Slots:           2,
		Parts: []probe.Partition{
			{Device: "/dev/nvme0n1p2", Mountpoint: "/", Fstype: "ext4", Opts: []string{"rw", "relatime"}},
			{Device: "/dev/nvme0n1p1", Mountpoint: "/boot/efi", Fstype: "vfat", Opts: []string{"rw"}},
		},
		Usages: map[string][2]uint64{
			"/":         {500 << 30, 125 << 30},
			"/boot/efi": {512 << 20, 6 << 20},
		},
		MAC:         "3c:52:82:aa:bb:cc",
		IP:          "10.0.4.17",
		Health:      "nvme0n1: PASSED",
		GPUList:     []string{"00:02.0 VGA compatible controller: Intel Corporation CometLake-U GT2"},
		Software:    []string{"bash", "coreutils", "openssh-client"},
		MonitorList: []model.Monitor{{Manufacturer: "DEL", Model: "DELL P2419H", SerialNumber: "CFV9N93"}},
	}
}

func (f *FakeProbe) enter(name string) error {
	f.Calls = append(f.Calls, name)

	if f.Panics[name] {
		panic(name + " exploded")
	}

	return f.Errs[name]
}

func (f *FakeProbe) Platform() probe.Platform { return f.OS }

func (f *FakeProbe) SerialNumber(context.Context) (string, error) {
	return f.Serial, f.enter("SerialNumber")
}

func (f *FakeProbe) DeviceModel(context.Context) (string, error) {
	return f.Model, f.enter("DeviceModel")
}

func (f *FakeProbe) OSName(context.Context) (string, error) {
	return f.OperatingSystem, f.enter("OSName")
}

func (f *FakeProbe) Architecture(context.Context) (string, error) {
	return f.Arch, f.enter("Architecture")
}

func (f *FakeProbe) CPUModel(context.Context) (string, error) {
	return f.CPU, f.enter("CPUModel")
}

func (f *FakeProbe) CPUCores(_ context.Context, logical bool) (int, error) {
	if logical {
		return f.LogicalCores, f.enter("CPUCoresLogical")
	}

	return f.PhysicalCores, f.enter("CPUCoresPhysical")
}

func (f *FakeProbe) RAMTotalBytes(context.Context) (uint64, error) {
	return f.RAMBytes, f.enter("RAMTotalBytes")
}

func (f *FakeProbe) RAMSlots(context.Context) (int, error) {
	return f.Slots, f.enter("RAMSlots")
}

func (f *FakeProbe) Partitions(context.Context) ([]probe.Partition, error) {
	return f.Parts, f.enter("Partitions")
}

func (f *FakeProbe) Usage(_ context.Context, mountpoint string) (total, used uint64, err error) {
	if err := f.enter("Usage " + mountpoint); err != nil {
		return 0, 0, err
	}

	u, ok := f.Usages[mountpoint]
	if !ok {
		return 0, 0, probe.ErrProbe
	}

	return u[0], u[1], nil
}

func (f *FakeProbe) MACAddress(context.Context) (string, error) {
	return f.MAC, f.enter("MACAddress")
}

func (f *FakeProbe) IPAddress(context.Context) (string, error) {
	return f.IP, f.enter("IPAddress")
}

func (f *FakeProbe) StorageHealth(context.Context) (string, error) {
	return f.Health, f.enter("StorageHealth")
}

func (f *FakeProbe) GPUs(context.Context) ([]string, error) {
	return f.GPUList, f.enter("GPUs")
}

func (f *FakeProbe) InstalledUpdates(context.Context) (int, error) {
	return f.Updates, f.enter("InstalledUpdates")
}

func (f *FakeProbe) InstalledSoftware(context.Context) ([]string, error) {
	return f.Software, f.enter("InstalledSoftware")
}

func (f *FakeProbe) Monitors(context.Context) ([]model.Monitor, error) {
	return f.MonitorList, f.enter("Monitors")
}

// FailingProbe returns a FakeProbe on which every method fails with err.
func FailingProbe(platform probe.Platform, err error) *FakeProbe {
	f := &FakeProbe{OS: platform, Errs: map[string]error{}}

	for _, m := range []string{
		"SerialNumber", "DeviceModel", "OSName", "Architecture", "CPUModel",
		"CPUCoresLogical", "CPUCoresPhysical", "RAMTotalBytes", "RAMSlots", "Partitions",
		"MACAddress", "IPAddress", "StorageHealth", "GPUs", "InstalledUpdates",
		"InstalledSoftware", "Monitors",
	} {
		f.Errs[m] = err
	}

	return f
}
