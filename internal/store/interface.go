package store

import (
	"context"

	"github.com/metal-toolbox/inventory/internal/model"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
)

var (
	ErrStore         = errors.New("store error")
	ErrAssetNotFound = errors.New("asset not found")
	ErrStoreKind     = errors.New("unsupported store kind")
)

//go:generate mockgen -source interface.go -destination=../fixtures/mock_repository.go -package=fixtures

// Repository is the asset store, the single source of truth for asset records and their maintenance log.
//
// Implementations apply every write atomically, a failed write leaves no partial record.
type Repository interface {
	// UpsertSnapshot creates the record of the snapshot hostname or merges the
	// snapshot into the existing record, manual fields are left untouched.
	UpsertSnapshot(ctx context.Context, snapshot *model.Snapshot) (created bool, err error)

	// AssetByHostname returns the record of hostname, or ErrAssetNotFound.
	AssetByHostname(ctx context.Context, hostname string) (*model.AssetRecord, error)

	// Assets returns the records matching filter ordered by hostname.
	Assets(ctx context.Context, filter *Filter) ([]*model.AssetRecord, error)

	// UpdateStatus sets the asset status, when entry is not nil it is appended
	// to the maintenance log and its date becomes the last maintenance date.
	// The entry ID is set on success.
	UpdateStatus(ctx context.Context, hostname string, status model.AssetStatus, entry *model.MaintenanceLogEntry) error

	// UpdateManual applies an operator edit of manual fields.
	UpdateManual(ctx context.Context, hostname string, update *model.ManualUpdate) error

	// MaintenanceLog returns the log entries of hostname in the order they were recorded.
	MaintenanceLog(ctx context.Context, hostname string) ([]*model.MaintenanceLogEntry, error)

	// Count returns the number of asset records.
	Count(ctx context.Context) (int, error)

	Close() error
}

// Filter narrows an asset listing.
type Filter struct {
	// HostnameContains matches records whose hostname contains the value, case insensitive.
	HostnameContains string
}

// New returns the Repository of the given kind, path is the database file of the sqlite store.
func New(ctx context.Context, kind model.StoreKind, path string, logger *logrus.Logger) (Repository, error) {
	switch kind {
	case model.StoreKindSQLite:
		return NewSQLite(ctx, path, logger)
	case model.StoreKindMemory:
		return NewMemStore(), nil
	default:
		return nil, errors.Wrap(ErrStoreKind, string(kind))
	}
}
