// Package collector builds inventory snapshots from platform probes.
package collector

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/metal-toolbox/inventory/internal/model"
	"github.com/metal-toolbox/inventory/internal/probe"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

const (
	// NoneValue is recorded for list attributes the probe found empty.
	NoneValue = "none"

	defaultSoftwareLimit  = 20
	defaultSoftwareMarker = " ..."
	defaultProbeTimeout   = 15 * time.Second
	listSeparator         = "; "
)

var ErrProbePanic = errors.New("probe panic")

// Options configures the Builder.
type Options struct {
	// Hostname overrides the OS hostname when set.
	Hostname string
	// Placeholder is recorded for attributes that could not be read.
	Placeholder string
	// NotApplicable is recorded for attributes the platform does not have.
	NotApplicable string
	// SoftwareLimit caps the number of installed software entries recorded.
	SoftwareLimit int
	// SoftwareMarker is appended to the installed software list when it was capped.
	SoftwareMarker string
	// ProbeTimeout bounds each probe call.
	ProbeTimeout time.Duration
}

func (o *Options) setDefaults() {
	if o.Placeholder == "" {
		o.Placeholder = model.DefaultPlaceholder
	}

	if o.NotApplicable == "" {
		o.NotApplicable = model.DefaultNotApplicable
	}

	if o.SoftwareLimit <= 0 {
		o.SoftwareLimit = defaultSoftwareLimit
	}

	if o.SoftwareMarker == "" {
		o.SoftwareMarker = defaultSoftwareMarker
	}

	if o.ProbeTimeout <= 0 {
		o.ProbeTimeout = defaultProbeTimeout
	}
}

// Builder turns probe readings into a normalized Snapshot.
type Builder struct {
	probe    probe.PlatformProbe
	opts     Options
	logger   *logrus.Logger
	now      func() time.Time
	hostname func() (string, error)
}

// Option sets optional Builder attributes.
type Option func(*Builder)

// WithClock sets the clock the collection timestamp is read from.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) { b.now = now }
}

// WithHostnameFunc sets the function returning the OS hostname.
func WithHostnameFunc(fn func() (string, error)) Option {
	return func(b *Builder) { b.hostname = fn }
}

// New returns a Builder reading attributes through p.
func New(p probe.PlatformProbe, opts Options, logger *logrus.Logger, options ...Option) *Builder {
	opts.setDefaults()

	b := &Builder{
		probe:    p,
		opts:     opts,
		logger:   logger,
		now:      time.Now,
		hostname: os.Hostname,
	}

	for _, o := range options {
		o(b)
	}

	return b
}

// BuildSnapshot returns the snapshot of the host, it never fails.
//
// Attributes whose probe failed carry the placeholder, the probe errors are logged.
func (b *Builder) BuildSnapshot(ctx context.Context) *model.Snapshot {
	s, err := b.Collect(ctx)
	if err != nil {
		b.logger.WithFields(logrus.Fields{
			"hostname": s.Hostname,
			"err":      err.Error(),
		}).Debug("snapshot collected with probe failures")
	}

	return s
}

// Collect returns the snapshot of the host and the probe failures as a multierror.
//
// The returned snapshot is always complete and transmittable, errors are diagnostics only.
func (b *Builder) Collect(ctx context.Context) (*model.Snapshot, error) {
	var diag *multierror.Error

	s := b.base()

	if b.probe.Platform() == probe.PlatformOther {
		b.notApplicable(s)

		return s, nil
	}

	record := func(err error) {
		if err != nil && !errors.Is(err, probe.ErrNotApplicable) {
			diag = multierror.Append(diag, err)
		}
	}

	record(b.text(ctx, "serial_number", &s.SerialNumber, b.probe.SerialNumber))
	record(b.text(ctx, "device_model", &s.DeviceModel, b.probe.DeviceModel))
	record(b.text(ctx, "os", &s.OS, b.probe.OSName))
	record(b.text(ctx, "architecture", &s.Architecture, b.probe.Architecture))
	record(b.text(ctx, "cpu_model", &s.CPUModel, b.probe.CPUModel))
	record(b.cores(ctx, "cpu_cores_physical", &s.CPUCoresPhysical, false))
	record(b.cores(ctx, "cpu_cores_logical", &s.CPUCoresLogical, true))
	record(b.ram(ctx, s))
	record(b.ramSlots(ctx, s))
	record(b.disks(ctx, s))
	record(b.text(ctx, "mac_address", &s.MACAddress, b.probe.MACAddress))
	record(b.text(ctx, "ip_address", &s.IPAddress, b.probe.IPAddress))
	record(b.text(ctx, "storage_health", &s.StorageHealth, b.probe.StorageHealth))
	record(b.gpus(ctx, s))
	record(b.patchStatus(ctx, s))
	record(b.software(ctx, s))
	record(b.monitors(ctx, s))

	s.Normalize(b.opts.Placeholder)

	return s, diag.ErrorOrNil()
}

// base returns a snapshot with every attribute set to the placeholder,
// the hostname and the collection timestamp.
func (b *Builder) base() *model.Snapshot {
	ph := b.opts.Placeholder

	return &model.Snapshot{
		Hostname:          b.resolveHostname(),
		SerialNumber:      ph,
		DeviceModel:       ph,
		OS:                ph,
		Architecture:      ph,
		CPUModel:          ph,
		CPUCoresPhysical:  model.Unknown[int](ph),
		CPUCoresLogical:   model.Unknown[int](ph),
		RAMTotalGB:        model.Unknown[float64](ph),
		RAMSlots:          ph,
		Disks:             []model.Disk{},
		MACAddress:        ph,
		IPAddress:         ph,
		CollectedAt:       b.now().UTC().Truncate(time.Second),
		StorageHealth:     ph,
		GPUInfo:           ph,
		PatchStatus:       ph,
		InstalledSoftware: ph,
		Monitors:          []model.Monitor{},
	}
}

func (b *Builder) resolveHostname() string {
	if h := strings.TrimSpace(b.opts.Hostname); h != "" {
		return h
	}

	h, err := b.hostname()
	if err != nil || strings.TrimSpace(h) == "" {
		b.logger.WithError(err).Warn("unable to read hostname")
		return b.opts.Placeholder
	}

	return strings.TrimSpace(h)
}

func (b *Builder) notApplicable(s *model.Snapshot) {
	na := b.opts.NotApplicable

	for _, f := range []*string{
		&s.SerialNumber, &s.DeviceModel, &s.OS, &s.Architecture, &s.CPUModel,
		&s.RAMSlots, &s.MACAddress, &s.IPAddress, &s.StorageHealth, &s.GPUInfo,
		&s.PatchStatus, &s.InstalledSoftware,
	} {
		*f = na
	}

	s.CPUCoresPhysical = model.Unknown[int](na)
	s.CPUCoresLogical = model.Unknown[int](na)
	s.RAMTotalGB = model.Unknown[float64](na)
}

// fallback returns the text recorded for a failed probe.
func (b *Builder) fallback(err error) string {
	if errors.Is(err, probe.ErrNotApplicable) {
		return b.opts.NotApplicable
	}

	return b.opts.Placeholder
}

func (b *Builder) text(ctx context.Context, name string, dst *string, fn func(context.Context) (string, error)) error {
	v, err := call(ctx, b, name, fn)
	if err != nil {
		*dst = b.fallback(err)
		return err
	}

	if v = strings.TrimSpace(v); v == "" {
		return nil
	}

	*dst = v

	return nil
}

func (b *Builder) cores(ctx context.Context, name string, dst *model.Number[int], logical bool) error {
	n, err := call(ctx, b, name, func(ctx context.Context) (int, error) {
		return b.probe.CPUCores(ctx, logical)
	})
	if err != nil {
		*dst = model.Unknown[int](b.fallback(err))
		return err
	}

	*dst = model.Known(n)

	return nil
}

func (b *Builder) ram(ctx context.Context, s *model.Snapshot) error {
	total, err := call(ctx, b, "ram_total_gb", b.probe.RAMTotalBytes)
	if err != nil {
		s.RAMTotalGB = model.Unknown[float64](b.fallback(err))
		return err
	}

	s.RAMTotalGB = model.Known(model.BytesToGB(total))

	return nil
}

func (b *Builder) ramSlots(ctx context.Context, s *model.Snapshot) error {
	n, err := call(ctx, b, "ram_slots", b.probe.RAMSlots)
	if err != nil {
		s.RAMSlots = b.fallback(err)
		return err
	}

	s.RAMSlots = fmt.Sprintf("%d slots occupied", n)

	return nil
}

// disks records the usage of every real, stat-able partition.
func (b *Builder) disks(ctx context.Context, s *model.Snapshot) error {
	partitions, err := call(ctx, b, "disks", b.probe.Partitions)
	if err != nil {
		return err
	}

	for _, p := range partitions {
		if skipPartition(p) {
			continue
		}

		type usage struct{ total, used uint64 }

		u, err := call(ctx, b, "disk_usage", func(ctx context.Context) (usage, error) {
			total, used, err := b.probe.Usage(ctx, p.Mountpoint)
			return usage{total, used}, err
		})
		if err != nil {
			// partitions the collector may not stat are skipped
			b.logger.WithFields(logrus.Fields{
				"mountpoint": p.Mountpoint,
				"err":        err.Error(),
			}).Trace("partition skipped")

			continue
		}

		if u.total == 0 {
			continue
		}

		s.Disks = append(s.Disks, model.NewDisk(p.Device, p.Mountpoint, u.total, u.used))
	}

	return nil
}

func skipPartition(p probe.Partition) bool {
	if p.Fstype == "" || strings.HasPrefix(p.Device, "/dev/loop") {
		return true
	}

	for _, o := range p.Opts {
		if o == "loop" {
			return true
		}
	}

	return false
}

func (b *Builder) gpus(ctx context.Context, s *model.Snapshot) error {
	gpus, err := call(ctx, b, "gpu_info", b.probe.GPUs)
	if err != nil {
		s.GPUInfo = b.fallback(err)
		return err
	}

	s.GPUInfo = joinOrNone(gpus)

	return nil
}

func (b *Builder) patchStatus(ctx context.Context, s *model.Snapshot) error {
	n, err := call(ctx, b, "windows_update_status", b.probe.InstalledUpdates)
	if err != nil {
		s.PatchStatus = b.fallback(err)
		return err
	}

	s.PatchStatus = fmt.Sprintf("%d updates installed", n)

	return nil
}

func (b *Builder) software(ctx context.Context, s *model.Snapshot) error {
	list, err := call(ctx, b, "installed_software", b.probe.InstalledSoftware)
	if err != nil {
		s.InstalledSoftware = b.fallback(err)
		return err
	}

	s.InstalledSoftware = CapList(list, b.opts.SoftwareLimit, b.opts.SoftwareMarker)

	return nil
}

func (b *Builder) monitors(ctx context.Context, s *model.Snapshot) error {
	monitors, err := call(ctx, b, "monitors", b.probe.Monitors)
	if err != nil {
		return err
	}

	s.Monitors = append(s.Monitors, monitors...)

	return nil
}

// CapList joins at most limit entries, appending marker when entries were left out.
//
// An empty list is recorded as NoneValue.
func CapList(list []string, limit int, marker string) string {
	if len(list) == 0 {
		return NoneValue
	}

	if limit > 0 && len(list) > limit {
		return strings.Join(list[:limit], listSeparator) + marker
	}

	return strings.Join(list, listSeparator)
}

func joinOrNone(list []string) string {
	if len(list) == 0 {
		return NoneValue
	}

	return strings.Join(list, listSeparator)
}

// call runs one probe with its own timeout, a panic in the probe is returned as an error.
func call[T any](ctx context.Context, b *Builder, name string, fn func(context.Context) (T, error)) (v T, err error) {
	ctx, cancel := context.WithTimeout(ctx, b.opts.ProbeTimeout)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrap(ErrProbePanic, fmt.Sprintf("%s: %v", name, r))
		}

		if err != nil && !errors.Is(err, probe.ErrNotApplicable) {
			b.logger.WithFields(logrus.Fields{
				"probe": name,
				"err":   err.Error(),
			}).Debug("probe failed")
		}
	}()

	v, err = fn(ctx)
	if err == nil && ctx.Err() != nil {
		err = errors.Wrap(probe.ErrProbe, name+": "+ctx.Err().Error())
	}

	return v, err
}
