package model

import (
	"math"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const bytesPerGiB = 1 << 30

var (
	ErrSnapshot = errors.New("invalid snapshot")
	ErrDisk     = errors.New("invalid disk entry")
)

// Snapshot is one normalized inventory reading of a host, the collected
// attributes of an AssetRecord.
//
// nolint:govet // fieldalignment - struct is better readable in its current form.
type Snapshot struct {
	Hostname          string          `json:"hostname" yaml:"hostname"`
	SerialNumber      string          `json:"serial_number" yaml:"serial_number"`
	DeviceModel       string          `json:"device_model" yaml:"device_model"`
	OS                string          `json:"os" yaml:"os"`
	Architecture      string          `json:"architecture" yaml:"architecture"`
	CPUModel          string          `json:"cpu_model" yaml:"cpu_model"`
	CPUCoresPhysical  Number[int]     `json:"cpu_cores_physical" yaml:"cpu_cores_physical"`
	CPUCoresLogical   Number[int]     `json:"cpu_cores_logical" yaml:"cpu_cores_logical"`
	RAMTotalGB        Number[float64] `json:"ram_total_gb" yaml:"ram_total_gb"`
	RAMSlots          string          `json:"ram_slots" yaml:"ram_slots"`
	Disks             []Disk          `json:"disks" yaml:"disks"`
	MACAddress        string          `json:"mac_address" yaml:"mac_address"`
	IPAddress         string          `json:"ip_address" yaml:"ip_address"`
	CollectedAt       time.Time       `json:"last_updated" yaml:"last_updated"`
	StorageHealth     string          `json:"storage_health" yaml:"storage_health"`
	GPUInfo           string          `json:"gpu_info" yaml:"gpu_info"`
	PatchStatus       string          `json:"windows_update_status" yaml:"windows_update_status"`
	InstalledSoftware string          `json:"installed_software" yaml:"installed_software"`
	Monitors          []Monitor       `json:"monitors" yaml:"monitors"`
}

// SnapshotKeys lists the wire keys every Snapshot carries.
func SnapshotKeys() []string {
	return []string{
		"hostname", "serial_number", "device_model", "os", "architecture", "cpu_model",
		"cpu_cores_physical", "cpu_cores_logical", "ram_total_gb", "ram_slots", "disks",
		"mac_address", "ip_address", "last_updated", "storage_health", "gpu_info",
		"windows_update_status", "installed_software", "monitors",
	}
}

// Disk is a mounted partition with its usage in GB.
type Disk struct {
	Device      string  `json:"device" yaml:"device"`
	Mountpoint  string  `json:"mountpoint" yaml:"mountpoint"`
	TotalGB     float64 `json:"total_gb" yaml:"total_gb"`
	UsedGB      float64 `json:"used_gb" yaml:"used_gb"`
	PercentUsed float64 `json:"percent_used" yaml:"percent_used"`
}

// Monitor is a display attached to the host.
type Monitor struct {
	Manufacturer string `json:"manufacturer" yaml:"manufacturer"`
	Model        string `json:"model" yaml:"model"`
	SerialNumber string `json:"serial_number" yaml:"serial_number"`
}

// Round2 rounds to two decimals, the precision of every GB and percentage value.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// BytesToGB converts a byte count to GiB rounded to two decimals.
func BytesToGB(b uint64) float64 {
	return Round2(float64(b) / bytesPerGiB)
}

// NewDisk returns a Disk from byte counts, used bytes are clamped to the total.
func NewDisk(device, mountpoint string, totalBytes, usedBytes uint64) Disk {
	if usedBytes > totalBytes {
		usedBytes = totalBytes
	}

	var percent float64
	if totalBytes > 0 {
		percent = Round2(float64(usedBytes) / float64(totalBytes) * 100)
	}

	return Disk{
		Device:      device,
		Mountpoint:  mountpoint,
		TotalGB:     BytesToGB(totalBytes),
		UsedGB:      BytesToGB(usedBytes),
		PercentUsed: percent,
	}
}

// Validate checks the disk usage figures are consistent.
func (d Disk) Validate() error {
	switch {
	case d.TotalGB < 0 || d.UsedGB < 0:
		return errors.Wrapf(ErrDisk, "%s: negative size", d.Mountpoint)
	case d.UsedGB > d.TotalGB:
		return errors.Wrapf(ErrDisk, "%s: used_gb %.2f exceeds total_gb %.2f", d.Mountpoint, d.UsedGB, d.TotalGB)
	case d.PercentUsed < 0 || d.PercentUsed > 100:
		return errors.Wrapf(ErrDisk, "%s: percent_used %.2f out of range", d.Mountpoint, d.PercentUsed)
	}

	return nil
}

// WithDefaults returns the monitor with empty attributes set to the placeholder.
func (m Monitor) WithDefaults(placeholder string) Monitor {
	if placeholder == "" {
		placeholder = DefaultPlaceholder
	}

	for _, f := range []*string{&m.Manufacturer, &m.Model, &m.SerialNumber} {
		if strings.TrimSpace(*f) == "" {
			*f = placeholder
		}
	}

	return m
}

// Validate checks the snapshot can be reconciled into an AssetRecord.
func (s *Snapshot) Validate() error {
	if s == nil || strings.TrimSpace(s.Hostname) == "" {
		return errors.Wrap(ErrSnapshot, "hostname is required")
	}

	for _, d := range s.Disks {
		if err := d.Validate(); err != nil {
			return errors.Wrap(ErrSnapshot, err.Error())
		}
	}

	return nil
}

// Normalize fills the sub-lists so they always serialize as JSON arrays and
// sets missing monitor attributes to the placeholder.
func (s *Snapshot) Normalize(placeholder string) {
	if s.Disks == nil {
		s.Disks = []Disk{}
	}

	if s.Monitors == nil {
		s.Monitors = []Monitor{}
	}

	for i := range s.Monitors {
		s.Monitors[i] = s.Monitors[i].WithDefaults(placeholder)
	}
}

// Clone returns a copy of the snapshot which shares no slices with the original.
func (s *Snapshot) Clone() Snapshot {
	c := *s
	c.Disks = append([]Disk{}, s.Disks...)
	c.Monitors = append([]Monitor{}, s.Monitors...)

	return c
}
