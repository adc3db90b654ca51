package model

import (
	"strings"
	"time"

	"github.com/pkg/errors"
)

// AssetStatus is the lifecycle state of an asset.
type AssetStatus string

const (
	// StatusUnassigned is the state of a record no operator has curated yet.
	StatusUnassigned       AssetStatus = ""
	StatusInUse            AssetStatus = "in-use"
	StatusUnderMaintenance AssetStatus = "under-maintenance"
	StatusInStock          AssetStatus = "in-stock"
	StatusDamaged          AssetStatus = "damaged"
	StatusDecommissioned   AssetStatus = "decommissioned"

	// MaintenanceDateLayout is the layout of MaintenanceLogEntry.Date and ultima_manutencao.
	MaintenanceDateLayout = time.RFC3339
)

var ErrStatus = errors.New("invalid asset status")

// AssetStatuses returns the statuses an operator may set.
func AssetStatuses() []AssetStatus {
	return []AssetStatus{
		StatusInUse,
		StatusUnderMaintenance,
		StatusInStock,
		StatusDamaged,
		StatusDecommissioned,
	}
}

// ParseAssetStatus returns the AssetStatus for s.
func ParseAssetStatus(s string) (AssetStatus, error) {
	want := AssetStatus(strings.ToLower(strings.TrimSpace(s)))
	for _, status := range AssetStatuses() {
		if status == want {
			return status, nil
		}
	}

	return "", errors.Wrap(ErrStatus, s)
}

// MaintenanceLogEntry is a service event recorded for an asset, entries are never updated or removed.
type MaintenanceLogEntry struct {
	ID          int64  `json:"id" yaml:"id"`
	Hostname    string `json:"hostname" yaml:"hostname"`
	Date        string `json:"date" yaml:"date"`
	Description string `json:"description" yaml:"description"`
	Technician  string `json:"technician" yaml:"technician"`
	// Status is the asset status the entry was recorded with.
	Status AssetStatus `json:"status" yaml:"status"`
}
