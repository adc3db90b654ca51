package ingest

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/metal-toolbox/inventory/internal/events"
	"github.com/metal-toolbox/inventory/internal/metrics"
	"github.com/metal-toolbox/inventory/internal/model"
	"github.com/metal-toolbox/inventory/internal/store"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
)

const pkgName = "internal/ingest"

var (
	ErrValidation = errors.New("validation error")

	// ErrInternal is returned in place of persistence errors, its message
	// carries no detail of the failure.
	ErrInternal = errors.New("internal error, the request was not applied")
)

// rejectedError is a status change the lifecycle does not allow,
// it matches both ErrValidation and the ErrTransition it wraps.
type rejectedError struct {
	err error
}

func (e *rejectedError) Error() string {
	return ErrValidation.Error() + ": " + e.err.Error()
}

func (e *rejectedError) Unwrap() error {
	return e.err
}

func (e *rejectedError) Is(target error) bool {
	return target == ErrValidation
}

// Ack acknowledges an ingested snapshot.
type Ack struct {
	Hostname string `json:"hostname"`
	Created  bool   `json:"created"`
}

// Service reconciles snapshots into the asset store and applies operator updates.
//
// Every write for a hostname runs under the lock of that hostname.
type Service struct {
	repo        store.Repository
	publisher   events.Publisher
	lifecycle   *Lifecycle
	locks       *hostLocks
	logger      *logrus.Logger
	now         func() time.Time
	placeholder string
}

// Option sets a Service parameter.
type Option func(*Service)

// WithPublisher sets the publisher notified of record changes.
func WithPublisher(p events.Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithClock sets the clock maintenance entries are dated with.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		s.now = now
	}
}

// WithPlaceholder sets the value of collected fields missing from a snapshot.
func WithPlaceholder(placeholder string) Option {
	return func(s *Service) {
		s.placeholder = placeholder
	}
}

// WithTerminalDecommissioned makes decommissioned a terminal status.
func WithTerminalDecommissioned(terminal bool) Option {
	return func(s *Service) {
		s.lifecycle = NewLifecycle(terminal)
	}
}

// New returns an ingest Service over repo.
func New(repo store.Repository, logger *logrus.Logger, options ...Option) *Service {
	s := &Service{
		repo:        repo,
		publisher:   events.Noop{},
		lifecycle:   NewLifecycle(false),
		locks:       newHostLocks(),
		logger:      logger,
		now:         time.Now,
		placeholder: model.DefaultPlaceholder,
	}

	for _, opt := range options {
		opt(s)
	}

	return s
}

// Lifecycle returns the asset status state machine of the service.
func (s *Service) Lifecycle() *Lifecycle {
	return s.lifecycle
}

// Ingest validates the raw snapshot and upserts it into the store.
//
// A snapshot which fails validation returns ErrValidation and nothing is
// recorded, a store failure is logged with the payload and returns ErrInternal.
func (s *Service) Ingest(ctx context.Context, raw []byte) (*Ack, error) {
	ctx, span := otel.Tracer(pkgName).Start(ctx, "Service.Ingest")
	defer span.End()

	started := time.Now()

	snapshot, err := s.decode(raw)
	if err != nil {
		registerIngest("invalid", started)

		s.logger.WithError(err).Debug("snapshot rejected")

		return nil, err
	}

	unlock, err := s.locks.Lock(ctx, snapshot.Hostname)
	if err != nil {
		registerIngest("failed", started)
		return nil, s.internal(err, snapshot.Hostname, raw)
	}
	defer unlock()

	created, err := s.repo.UpsertSnapshot(ctx, snapshot)
	if err != nil {
		registerIngest("failed", started)
		return nil, s.internal(err, snapshot.Hostname, raw)
	}

	result, kind := "updated", model.EventAssetUpdated
	if created {
		result, kind = "created", model.EventAssetCreated
	}

	registerIngest(result, started)

	s.logger.WithFields(logrus.Fields{
		"hostname": snapshot.Hostname,
		"result":   result,
	}).Info("snapshot ingested")

	s.publish(ctx, &model.AssetEvent{Kind: kind, Hostname: snapshot.Hostname})

	return &Ack{Hostname: snapshot.Hostname, Created: created}, nil
}

// decode returns the validated snapshot of the raw payload, collected
// fields missing from the payload are set to the placeholder.
func (s *Service) decode(raw []byte) (*model.Snapshot, error) {
	fields := map[string]json.RawMessage{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, errors.Wrap(ErrValidation, "payload must be a JSON object")
	}

	var hostname string
	if v, ok := fields["hostname"]; ok {
		if err := json.Unmarshal(v, &hostname); err != nil {
			return nil, errors.Wrap(ErrValidation, "hostname must be a string")
		}
	}

	hostname = strings.TrimSpace(hostname)
	if hostname == "" {
		return nil, errors.Wrap(ErrValidation, "hostname is required")
	}

	snapshot := placeholderSnapshot(s.placeholder)
	if err := json.Unmarshal(raw, snapshot); err != nil {
		return nil, errors.Wrap(ErrValidation, "snapshot: "+err.Error())
	}

	snapshot.Hostname = hostname

	if snapshot.CollectedAt.IsZero() {
		snapshot.CollectedAt = s.now().UTC().Truncate(time.Second)
	}

	if err := snapshot.Validate(); err != nil {
		return nil, errors.Wrap(ErrValidation, err.Error())
	}

	snapshot.Normalize(s.placeholder)

	return snapshot, nil
}

func placeholderSnapshot(placeholder string) *model.Snapshot {
	return &model.Snapshot{
		SerialNumber:      placeholder,
		DeviceModel:       placeholder,
		OS:                placeholder,
		Architecture:      placeholder,
		CPUModel:          placeholder,
		CPUCoresPhysical:  model.Unknown[int](placeholder),
		CPUCoresLogical:   model.Unknown[int](placeholder),
		RAMTotalGB:        model.Unknown[float64](placeholder),
		RAMSlots:          placeholder,
		Disks:             []model.Disk{},
		MACAddress:        placeholder,
		IPAddress:         placeholder,
		StorageHealth:     placeholder,
		GPUInfo:           placeholder,
		PatchStatus:       placeholder,
		InstalledSoftware: placeholder,
		Monitors:          []model.Monitor{},
	}
}

// UpdateStatus sets the status of the asset, recording a maintenance log
// entry dated with the server clock when a description is given.
func (s *Service) UpdateStatus(ctx context.Context, hostname string, req *model.StatusRequest) (*model.StatusAck, error) {
	ctx, span := otel.Tracer(pkgName).Start(ctx, "Service.UpdateStatus")
	defer span.End()

	hostname = strings.TrimSpace(hostname)

	if req == nil {
		return nil, errors.Wrap(ErrValidation, "status is required")
	}

	status, err := model.ParseAssetStatus(req.Status)
	if err != nil {
		registerStatusUpdate("", "invalid")
		return nil, errors.Wrap(ErrValidation, err.Error())
	}

	var entry *model.MaintenanceLogEntry

	description := strings.TrimSpace(req.Description)
	technician := strings.TrimSpace(req.Technician)

	if description != "" {
		if technician == "" {
			registerStatusUpdate(string(status), "invalid")
			return nil, errors.Wrap(ErrValidation, "technician is required with a maintenance description")
		}

		entry = &model.MaintenanceLogEntry{
			Date:        s.now().UTC().Format(model.MaintenanceDateLayout),
			Description: description,
			Technician:  technician,
		}
	}

	unlock, err := s.locks.Lock(ctx, hostname)
	if err != nil {
		return nil, s.internal(err, hostname, nil)
	}
	defer unlock()

	record, err := s.repo.AssetByHostname(ctx, hostname)
	if err != nil {
		registerStatusUpdate(string(status), "failed")
		return nil, s.storeError(err, hostname)
	}

	current, err := model.ParseAssetStatus(record.Status)
	if err != nil {
		// values outside the lifecycle, written by an operator or an older release
		current = model.StatusUnassigned
	}

	subject := &asset{hostname: hostname, status: current}

	err = s.lifecycle.Run(subject, &statusTransition{
		ctx:    ctx,
		status: status,
		entry:  entry,
		persist: func(ctx context.Context, status model.AssetStatus, entry *model.MaintenanceLogEntry) error {
			return s.repo.UpdateStatus(ctx, hostname, status, entry)
		},
		notify: func(ctx context.Context, status model.AssetStatus) {
			s.publish(ctx, &model.AssetEvent{Kind: model.EventAssetStatus, Hostname: hostname, Status: status})
		},
	})

	switch {
	case errors.Is(err, ErrTransition):
		registerStatusUpdate(string(status), "rejected")
		return nil, &rejectedError{err: err}
	case err != nil:
		registerStatusUpdate(string(status), "failed")
		return nil, s.storeError(err, hostname)
	}

	registerStatusUpdate(string(status), "updated")

	s.logger.WithFields(logrus.Fields{
		"hostname": hostname,
		"from":     current,
		"status":   status,
		"logged":   entry != nil,
	}).Info("asset status updated")

	return &model.StatusAck{Hostname: hostname, Status: subject.status, Entry: entry}, nil
}

// UpdateManual applies an operator edit of manual asset fields.
func (s *Service) UpdateManual(ctx context.Context, hostname string, update *model.ManualUpdate) error {
	ctx, span := otel.Tracer(pkgName).Start(ctx, "Service.UpdateManual")
	defer span.End()

	hostname = strings.TrimSpace(hostname)

	if update == nil || update.Empty() {
		registerManualUpdate("invalid")
		return errors.Wrap(ErrValidation, "no asset fields given")
	}

	if err := update.Validate(); err != nil {
		registerManualUpdate("invalid")
		return errors.Wrap(ErrValidation, err.Error())
	}

	unlock, err := s.locks.Lock(ctx, hostname)
	if err != nil {
		return s.internal(err, hostname, nil)
	}
	defer unlock()

	if err := s.repo.UpdateManual(ctx, hostname, update); err != nil {
		registerManualUpdate("failed")
		return s.storeError(err, hostname)
	}

	registerManualUpdate("updated")

	s.logger.WithField("hostname", hostname).Info("asset fields updated")

	s.publish(ctx, &model.AssetEvent{Kind: model.EventAssetEdited, Hostname: hostname})

	return nil
}

// Asset returns the record of hostname.
func (s *Service) Asset(ctx context.Context, hostname string) (*model.AssetRecord, error) {
	hostname = strings.TrimSpace(hostname)

	record, err := s.repo.AssetByHostname(ctx, hostname)
	if err != nil {
		return nil, s.storeError(err, hostname)
	}

	return record, nil
}

// Assets returns the records whose hostname contains the given value, every record when it is empty.
func (s *Service) Assets(ctx context.Context, hostnameContains string) ([]*model.AssetRecord, error) {
	records, err := s.repo.Assets(ctx, &store.Filter{HostnameContains: hostnameContains})
	if err != nil {
		return nil, s.storeError(err, "")
	}

	return records, nil
}

// MaintenanceLog returns the maintenance history of hostname.
func (s *Service) MaintenanceLog(ctx context.Context, hostname string) ([]*model.MaintenanceLogEntry, error) {
	hostname = strings.TrimSpace(hostname)

	entries, err := s.repo.MaintenanceLog(ctx, hostname)
	if err != nil {
		return nil, s.storeError(err, hostname)
	}

	return entries, nil
}

// storeError returns not found errors as is and any other error as ErrInternal.
func (s *Service) storeError(err error, hostname string) error {
	if errors.Is(err, store.ErrAssetNotFound) {
		return err
	}

	return s.internal(err, hostname, nil)
}

// internal logs err with its stack trace and returns ErrInternal.
func (s *Service) internal(err error, hostname string, payload []byte) error {
	entry := s.logger.WithField("hostname", hostname)
	if payload != nil {
		entry = entry.WithField("payload", string(payload))
	}

	entry.Errorf("%+v", err)

	return ErrInternal
}

func (s *Service) publish(ctx context.Context, event *model.AssetEvent) {
	event.Timestamp = s.now().UTC()

	if err := s.publisher.Publish(ctx, event); err != nil {
		s.logger.WithError(err).WithFields(logrus.Fields{
			"hostname": event.Hostname,
			"kind":     event.Kind,
		}).Warn("asset event not published")
	}
}

func registerIngest(result string, started time.Time) {
	metrics.IngestCounter.With(prometheus.Labels{"result": result}).Inc()
	metrics.IngestRunTimeSummary.With(prometheus.Labels{"result": result}).Observe(time.Since(started).Seconds())
}

func registerStatusUpdate(status, result string) {
	metrics.StatusUpdateCounter.With(prometheus.Labels{"status": status, "result": result}).Inc()
}

func registerManualUpdate(result string) {
	metrics.ManualUpdateCounter.With(prometheus.Labels{"result": result}).Inc()
}
