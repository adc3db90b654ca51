package store

import (
	"context"
	"sort"
	"strings"
	"sync"

	"github.com/jinzhu/copier"
	"github.com/metal-toolbox/inventory/internal/model"
	"github.com/pkg/errors"
)

// MemStore is a Repository held in memory, records are lost when the process exits.
type MemStore struct {
	mu *sync.RWMutex

	// assets is a map of hostnames to records
	assets map[string]*model.AssetRecord
	// log is the maintenance log in insertion order
	log    []*model.MaintenanceLogEntry
	nextID int64
}

func NewMemStore() *MemStore {
	return &MemStore{
		assets: map[string]*model.AssetRecord{},
		mu:     &sync.RWMutex{},
		nextID: 1,
	}
}

// cloneRecord returns a copy which shares no slices with r.
func cloneRecord(r *model.AssetRecord) *model.AssetRecord {
	return &model.AssetRecord{Snapshot: r.Snapshot.Clone(), ManualFields: r.ManualFields}
}

// UpsertSnapshot implements the Repository interface.
func (c *MemStore) UpsertSnapshot(_ context.Context, snapshot *model.Snapshot) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	existing, exists := c.assets[snapshot.Hostname]
	if !exists {
		c.assets[snapshot.Hostname] = model.NewAssetRecord(snapshot)
		return true, nil
	}

	existing.Merge(snapshot)

	return false, nil
}

// AssetByHostname implements the Repository interface.
func (c *MemStore) AssetByHostname(_ context.Context, hostname string) (*model.AssetRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	r, exists := c.assets[hostname]
	if !exists {
		return nil, errors.Wrap(ErrAssetNotFound, hostname)
	}

	return cloneRecord(r), nil
}

// Assets implements the Repository interface.
func (c *MemStore) Assets(_ context.Context, filter *Filter) ([]*model.AssetRecord, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var contains string
	if filter != nil {
		contains = strings.ToLower(filter.HostnameContains)
	}

	records := []*model.AssetRecord{}

	for hostname, r := range c.assets {
		if contains != "" && !strings.Contains(strings.ToLower(hostname), contains) {
			continue
		}

		records = append(records, cloneRecord(r))
	}

	sort.Slice(records, func(i, j int) bool { return records[i].Hostname < records[j].Hostname })

	return records, nil
}

// UpdateStatus implements the Repository interface.
func (c *MemStore) UpdateStatus(_ context.Context, hostname string, status model.AssetStatus, entry *model.MaintenanceLogEntry) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, exists := c.assets[hostname]
	if !exists {
		return errors.Wrap(ErrAssetNotFound, hostname)
	}

	r.Status = string(status)

	if entry == nil {
		return nil
	}

	entry.ID = c.nextID
	entry.Hostname = hostname
	entry.Status = status
	c.nextID++

	stored := *entry
	c.log = append(c.log, &stored)
	r.LastMaintenance = entry.Date

	return nil
}

// UpdateManual implements the Repository interface.
func (c *MemStore) UpdateManual(_ context.Context, hostname string, update *model.ManualUpdate) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	r, exists := c.assets[hostname]
	if !exists {
		return errors.Wrap(ErrAssetNotFound, hostname)
	}

	update.Apply(&r.ManualFields)

	return nil
}

// MaintenanceLog implements the Repository interface.
func (c *MemStore) MaintenanceLog(_ context.Context, hostname string) ([]*model.MaintenanceLogEntry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if _, exists := c.assets[hostname]; !exists {
		return nil, errors.Wrap(ErrAssetNotFound, hostname)
	}

	matching := []*model.MaintenanceLogEntry{}

	for _, e := range c.log {
		if e.Hostname == hostname {
			matching = append(matching, e)
		}
	}

	entries := []*model.MaintenanceLogEntry{}
	if err := copier.CopyWithOption(&entries, &matching, copier.Option{DeepCopy: true}); err != nil {
		return nil, errors.Wrap(ErrStore, "copy maintenance log: "+err.Error())
	}

	return entries, nil
}

// Count implements the Repository interface.
func (c *MemStore) Count(context.Context) (int, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.assets), nil
}

// Close implements the Repository interface.
func (c *MemStore) Close() error {
	return nil
}
