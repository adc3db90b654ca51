package probe

import (
	"context"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/metal-toolbox/inventory/internal/model"
)

const (
	dmiPath = "class/dmi/id"
	drmGlob = "class/drm/*/edid"
)

// skipped block device name prefixes when looking for SMART capable disks.
var virtualBlockDevices = []string{"loop", "ram", "zram", "dm-", "sr", "md", "nbd"}

// Linux reads attributes from sysfs, gopsutil and the usual system tools.
type Linux struct {
	hostProbe

	runner Runner
	sysfs  fs.FS
}

// NewLinux returns a Linux probe, sysfs defaults to /sys when nil.
func NewLinux(runner Runner, sysfs fs.FS) *Linux {
	if sysfs == nil {
		sysfs = os.DirFS("/sys")
	}

	return &Linux{runner: runner, sysfs: sysfs}
}

func (l *Linux) Platform() Platform {
	return PlatformLinux
}

func (l *Linux) readDMI(name string) (string, error) {
	b, err := fs.ReadFile(l.sysfs, path.Join(dmiPath, name))
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(string(b)), nil
}

func (l *Linux) SerialNumber(ctx context.Context) (string, error) {
	serial, err := l.readDMI("product_serial")
	if err == nil && serial != "" {
		return serial, nil
	}

	// product_serial is readable by root only, dmidecode may still work through sudo rules.
	out, cerr := l.runner.Run(ctx, "dmidecode", "-s", "system-serial-number")
	if cerr != nil {
		return "", errProbe("serial number", cerr)
	}

	if v := lines(out); len(v) > 0 {
		return v[0], nil
	}

	return "", errProbe("serial number", err)
}

func (l *Linux) DeviceModel(_ context.Context) (string, error) {
	vendor, err := l.readDMI("sys_vendor")
	if err != nil {
		return "", errProbe("device model", err)
	}

	product, err := l.readDMI("product_name")
	if err != nil {
		return "", errProbe("device model", err)
	}

	return strings.TrimSpace(vendor + " " + product), nil
}

func (l *Linux) RAMSlots(ctx context.Context) (int, error) {
	out, err := l.runner.Run(ctx, "dmidecode", "-t", "memory")
	if err != nil {
		return 0, errProbe("ram slots", err)
	}

	return parseDmidecodeMemory(out), nil
}

// StorageHealth returns the SMART verdict of each physical disk, as "<device>: <verdict>" joined by "; ".
func (l *Linux) StorageHealth(ctx context.Context) (string, error) {
	entries, err := fs.ReadDir(l.sysfs, "block")
	if err != nil {
		return "", errProbe("storage health", err)
	}

	verdicts := []string{}

	for _, e := range entries {
		if isVirtualBlockDevice(e.Name()) {
			continue
		}

		// smartctl exit status is a bit mask, the report is parsed regardless
		out, _ := l.runner.Run(ctx, "smartctl", "-H", "/dev/"+e.Name())
		if verdict, ok := parseSmartHealth(out); ok {
			verdicts = append(verdicts, e.Name()+": "+verdict)
		}
	}

	if len(verdicts) == 0 {
		return "", errProbe("storage health", nil)
	}

	return strings.Join(verdicts, "; "), nil
}

func isVirtualBlockDevice(name string) bool {
	for _, p := range virtualBlockDevices {
		if strings.HasPrefix(name, p) {
			return true
		}
	}

	return false
}

func (l *Linux) GPUs(ctx context.Context) ([]string, error) {
	out, err := l.runner.Run(ctx, "lspci")
	if err != nil {
		return nil, errProbe("gpu", err)
	}

	return parseLspciDisplay(out), nil
}

func (l *Linux) InstalledUpdates(_ context.Context) (int, error) {
	return 0, ErrNotApplicable
}

// InstalledSoftware lists installed packages from dpkg, falling back to rpm.
func (l *Linux) InstalledSoftware(ctx context.Context) ([]string, error) {
	out, err := l.runner.Run(ctx, "dpkg-query", "-W", "-f=${binary:Package}\n")
	if err == nil {
		return lines(out), nil
	}

	out, rerr := l.runner.Run(ctx, "rpm", "-qa", "--qf", "%{NAME}\n")
	if rerr != nil {
		return nil, errProbe("installed software", err)
	}

	return lines(out), nil
}

// Monitors decodes the EDID of every connected DRM connector.
func (l *Linux) Monitors(_ context.Context) ([]model.Monitor, error) {
	paths, err := fs.Glob(l.sysfs, drmGlob)
	if err != nil {
		return nil, errProbe("monitors", err)
	}

	monitors := []model.Monitor{}

	for _, p := range paths {
		b, err := fs.ReadFile(l.sysfs, p)
		if err != nil || len(b) == 0 {
			// disconnected connectors expose an empty edid
			continue
		}

		m, err := parseEDID(b)
		if err != nil {
			continue
		}

		monitors = append(monitors, m)
	}

	return monitors, nil
}
