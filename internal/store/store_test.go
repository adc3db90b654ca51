package store_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/metal-toolbox/inventory/internal/fixtures"
	"github.com/metal-toolbox/inventory/internal/model"
	"github.com/metal-toolbox/inventory/internal/store"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func strptr(s string) *string { return &s }

// repositories returns each Repository implementation, freshly created.
func repositories(t *testing.T) map[string]store.Repository {
	t.Helper()

	logger := logrus.New()
	logger.Level = logrus.TraceLevel

	sqlite, err := store.NewSQLite(context.Background(), filepath.Join(t.TempDir(), "db", "inventory.db"), logger)
	require.NoError(t, err)

	memDB, err := store.NewSQLite(context.Background(), store.MemoryDSN, logger)
	require.NoError(t, err)

	t.Cleanup(func() {
		sqlite.Close()
		memDB.Close()
	})

	return map[string]store.Repository{
		"sqlite":        sqlite,
		"sqlite memory": memDB,
		"mem":           store.NewMemStore(),
	}
}

// curate sets every manual field of hostname to the values of fixtures.NewManualFields.
func curate(t *testing.T, repo store.Repository, hostname string) model.ManualFields {
	t.Helper()

	want := fixtures.NewManualFields()

	update := &model.ManualUpdate{
		AssetTag:       strptr(want.AssetTag),
		Manufacturer:   strptr(want.Manufacturer),
		PurchaseDate:   strptr(want.PurchaseDate),
		Supplier:       strptr(want.Supplier),
		Cost:           strptr(want.Cost),
		WarrantyExpiry: strptr(want.WarrantyExpiry),
		Location:       strptr(want.Location),
		CostCenter:     strptr(want.CostCenter),
		AssignedUser:   strptr(want.AssignedUser),
		Department:     strptr(want.Department),
	}

	ctx := context.Background()
	require.NoError(t, repo.UpdateManual(ctx, hostname, update))

	entry := &model.MaintenanceLogEntry{Date: want.LastMaintenance, Description: "initial setup", Technician: "J.Doe"}
	require.NoError(t, repo.UpdateStatus(ctx, hostname, model.AssetStatus(want.Status), entry))

	return want
}

func TestUpsertSnapshot(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			created, err := repo.UpsertSnapshot(ctx, fixtures.NewSnapshot(fixtures.Host1))
			require.NoError(t, err)
			assert.True(t, created)

			got, err := repo.AssetByHostname(ctx, fixtures.Host1)
			require.NoError(t, err)
			assert.Equal(t, *fixtures.NewSnapshot(fixtures.Host1), got.Snapshot)
			assert.Equal(t, model.ManualFields{}, got.ManualFields)

			count, err := repo.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, count)
		})
	}
}

func TestUpsertSnapshotKeepsCollectedAt(t *testing.T) {
	collectedAt := time.Date(2024, 3, 1, 9, 30, 0, 123456789, time.FixedZone("BRT", -3*60*60))

	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			snapshot := fixtures.NewSnapshot(fixtures.Host1)
			_, err := repo.UpsertSnapshot(ctx, snapshot)
			require.NoError(t, err)

			snapshot.CollectedAt = collectedAt
			_, err = repo.UpsertSnapshot(ctx, snapshot)
			require.NoError(t, err)

			got, err := repo.AssetByHostname(ctx, fixtures.Host1)
			require.NoError(t, err)
			assert.True(t, collectedAt.Equal(got.CollectedAt), got.CollectedAt)
			assert.Equal(t, "2024-03-01T09:30:00.123456789-03:00", got.CollectedAt.Format(time.RFC3339Nano))
		})
	}
}

func TestUpsertSnapshotPreservesManualFields(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := repo.UpsertSnapshot(ctx, fixtures.NewSnapshot(fixtures.Host1))
			require.NoError(t, err)

			manual := curate(t, repo, fixtures.Host1)

			next := fixtures.NewSnapshot(fixtures.Host1)
			next.OS = "Microsoft Windows 11 Pro 10.0.22635"
			next.IPAddress = "10.0.8.99"
			next.RAMTotalGB = model.Unknown[float64](model.DefaultPlaceholder)
			next.Disks = []model.Disk{}
			next.Monitors = []model.Monitor{}
			next.CollectedAt = fixtures.CollectedAt.Add(24 * time.Hour)

			created, err := repo.UpsertSnapshot(ctx, next)
			require.NoError(t, err)
			assert.False(t, created)

			got, err := repo.AssetByHostname(ctx, fixtures.Host1)
			require.NoError(t, err)
			assert.Equal(t, manual, got.ManualFields)
			assert.Equal(t, *next, got.Snapshot)

			count, err := repo.Count(ctx)
			require.NoError(t, err)
			assert.Equal(t, 1, count)
		})
	}
}

func TestUpdateStatus(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := repo.UpsertSnapshot(ctx, fixtures.NewSnapshot(fixtures.Host1))
			require.NoError(t, err)

			// status without evidence
			require.NoError(t, repo.UpdateStatus(ctx, fixtures.Host1, model.StatusInStock, nil))

			got, err := repo.AssetByHostname(ctx, fixtures.Host1)
			require.NoError(t, err)
			assert.Equal(t, string(model.StatusInStock), got.Status)
			assert.Empty(t, got.LastMaintenance)

			entry := &model.MaintenanceLogEntry{Date: "2024-03-02T10:00:00Z", Description: "screen cracked", Technician: "J.Doe"}
			require.NoError(t, repo.UpdateStatus(ctx, fixtures.Host1, model.StatusDamaged, entry))
			assert.NotZero(t, entry.ID)
			assert.Equal(t, fixtures.Host1, entry.Hostname)

			got, err = repo.AssetByHostname(ctx, fixtures.Host1)
			require.NoError(t, err)
			assert.Equal(t, string(model.StatusDamaged), got.Status)
			assert.Equal(t, entry.Date, got.LastMaintenance)

			second := &model.MaintenanceLogEntry{Date: "2024-03-05T16:20:00Z", Description: "screen replaced", Technician: "A.Silva"}
			require.NoError(t, repo.UpdateStatus(ctx, fixtures.Host1, model.StatusInUse, second))

			log, err := repo.MaintenanceLog(ctx, fixtures.Host1)
			require.NoError(t, err)
			require.Len(t, log, 2)
			assert.Equal(t, *entry, *log[0])
			assert.Equal(t, *second, *log[1])
			assert.Equal(t, model.StatusDamaged, log[0].Status)
			assert.Less(t, log[0].ID, log[1].ID)
		})
	}
}

func TestNotFound(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := repo.AssetByHostname(ctx, "missing")
			assert.ErrorIs(t, err, store.ErrAssetNotFound)

			entry := &model.MaintenanceLogEntry{Date: "2024-03-02T10:00:00Z", Description: "x", Technician: "y"}
			err = repo.UpdateStatus(ctx, "missing", model.StatusInUse, entry)
			assert.ErrorIs(t, err, store.ErrAssetNotFound)
			assert.Zero(t, entry.ID)

			err = repo.UpdateManual(ctx, "missing", &model.ManualUpdate{Location: strptr("B2")})
			assert.ErrorIs(t, err, store.ErrAssetNotFound)

			_, err = repo.MaintenanceLog(ctx, "missing")
			assert.ErrorIs(t, err, store.ErrAssetNotFound)

			count, err := repo.Count(ctx)
			require.NoError(t, err)
			assert.Zero(t, count)
		})
	}
}

func TestUpdateManualPartial(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			_, err := repo.UpsertSnapshot(ctx, fixtures.NewSnapshot(fixtures.Host1))
			require.NoError(t, err)

			manual := curate(t, repo, fixtures.Host1)

			require.NoError(t, repo.UpdateManual(ctx, fixtures.Host1, &model.ManualUpdate{Location: strptr(" Building C ")}))

			got, err := repo.AssetByHostname(ctx, fixtures.Host1)
			require.NoError(t, err)

			manual.Location = "Building C"
			assert.Equal(t, manual, got.ManualFields)
			assert.Equal(t, *fixtures.NewSnapshot(fixtures.Host1), got.Snapshot)
		})
	}
}

func TestAssetsFilter(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			for _, h := range []string{"ws-0042", "nb-0117", "WS-0100", "srv_01"} {
				_, err := repo.UpsertSnapshot(ctx, fixtures.NewSnapshot(h))
				require.NoError(t, err)
			}

			tests := []struct {
				filter *store.Filter
				want   []string
			}{
				{nil, []string{"WS-0100", "nb-0117", "srv_01", "ws-0042"}},
				{&store.Filter{}, []string{"WS-0100", "nb-0117", "srv_01", "ws-0042"}},
				{&store.Filter{HostnameContains: "ws-"}, []string{"WS-0100", "ws-0042"}},
				{&store.Filter{HostnameContains: "_"}, []string{"srv_01"}},
				{&store.Filter{HostnameContains: "%"}, []string{}},
			}

			for _, tt := range tests {
				records, err := repo.Assets(ctx, tt.filter)
				require.NoError(t, err)

				got := []string{}
				for _, r := range records {
					got = append(got, r.Hostname)
				}

				assert.Equal(t, tt.want, got, fmt.Sprintf("%+v", tt.filter))
			}
		})
	}
}

func TestConcurrentUpsertsOfDifferentHosts(t *testing.T) {
	for name, repo := range repositories(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			const hosts = 8

			var wg sync.WaitGroup

			errs := make(chan error, hosts*3)

			for i := 0; i < hosts; i++ {
				wg.Add(1)

				go func(i int) {
					defer wg.Done()

					s := fixtures.NewSnapshot(fmt.Sprintf("host-%02d", i))
					s.SerialNumber = fmt.Sprintf("SN-%02d", i)

					for n := 0; n < 3; n++ {
						_, err := repo.UpsertSnapshot(ctx, s)
						errs <- err
					}
				}(i)
			}

			wg.Wait()
			close(errs)

			for err := range errs {
				require.NoError(t, err)
			}

			records, err := repo.Assets(ctx, nil)
			require.NoError(t, err)
			require.Len(t, records, hosts)

			for i, r := range records {
				assert.Equal(t, fmt.Sprintf("host-%02d", i), r.Hostname)
				assert.Equal(t, fmt.Sprintf("SN-%02d", i), r.SerialNumber)
			}
		})
	}
}

func TestReturnedRecordsAreCopies(t *testing.T) {
	repo := store.NewMemStore()
	ctx := context.Background()

	_, err := repo.UpsertSnapshot(ctx, fixtures.NewSnapshot(fixtures.Host1))
	require.NoError(t, err)

	got, err := repo.AssetByHostname(ctx, fixtures.Host1)
	require.NoError(t, err)

	got.Disks[0].Device = "changed"
	got.Location = "changed"

	again, err := repo.AssetByHostname(ctx, fixtures.Host1)
	require.NoError(t, err)
	assert.Equal(t, `C:`, again.Disks[0].Device)
	assert.Empty(t, again.Location)

	entry := &model.MaintenanceLogEntry{Date: "2024-03-02T10:00:00Z", Description: "x", Technician: "y"}
	require.NoError(t, repo.UpdateStatus(ctx, fixtures.Host1, model.StatusInUse, entry))

	log, err := repo.MaintenanceLog(ctx, fixtures.Host1)
	require.NoError(t, err)
	log[0].Description = "changed"

	log, err = repo.MaintenanceLog(ctx, fixtures.Host1)
	require.NoError(t, err)
	assert.Equal(t, "x", log[0].Description)
}

func TestSQLitePersists(t *testing.T) {
	path := filepath.Join(t.TempDir(), "inventory.db")
	ctx := context.Background()

	repo, err := store.NewSQLite(ctx, path, logrus.New())
	require.NoError(t, err)

	_, err = repo.UpsertSnapshot(ctx, fixtures.NewSnapshot(fixtures.Host1))
	require.NoError(t, err)

	manual := curate(t, repo, fixtures.Host1)
	require.NoError(t, repo.Close())

	repo, err = store.NewSQLite(ctx, path, logrus.New())
	require.NoError(t, err)

	defer repo.Close()

	got, err := repo.AssetByHostname(ctx, fixtures.Host1)
	require.NoError(t, err)
	assert.Equal(t, manual, got.ManualFields)

	log, err := repo.MaintenanceLog(ctx, fixtures.Host1)
	require.NoError(t, err)
	assert.Len(t, log, 1)
}

func TestNew(t *testing.T) {
	ctx := context.Background()

	repo, err := store.New(ctx, model.StoreKindMemory, "", logrus.New())
	require.NoError(t, err)
	assert.IsType(t, &store.MemStore{}, repo)

	repo, err = store.New(ctx, model.StoreKindSQLite, filepath.Join(t.TempDir(), "inventory.db"), logrus.New())
	require.NoError(t, err)
	assert.IsType(t, &store.SQLite{}, repo)
	require.NoError(t, repo.Close())

	_, err = store.New(ctx, "postgres", "", logrus.New())
	assert.ErrorIs(t, err, store.ErrStoreKind)
}

func TestExport(t *testing.T) {
	repo := store.NewMemStore()
	ctx := context.Background()

	for _, h := range []string{fixtures.Host1, fixtures.Host2} {
		_, err := repo.UpsertSnapshot(ctx, fixtures.NewSnapshot(h))
		require.NoError(t, err)
	}

	manual := curate(t, repo, fixtures.Host1)

	t.Run("json", func(t *testing.T) {
		buf := bytes.Buffer{}
		require.NoError(t, store.Export(ctx, repo, nil, store.ExportFormatJSON, &buf))

		var got []map[string]any
		require.NoError(t, json.Unmarshal(buf.Bytes(), &got))
		require.Len(t, got, 2)

		assert.Equal(t, fixtures.Host2, got[0]["hostname"])
		assert.Empty(t, got[0]["maintenance"])

		assert.Equal(t, fixtures.Host1, got[1]["hostname"])
		assert.Equal(t, manual.AssetTag, got[1]["id_patrimonio"])
		assert.Len(t, got[1]["maintenance"], 1)
	})

	t.Run("yaml filtered", func(t *testing.T) {
		buf := bytes.Buffer{}
		require.NoError(t, store.Export(ctx, repo, &store.Filter{HostnameContains: "ws"}, store.ExportFormatYAML, &buf))

		var got []map[string]any
		require.NoError(t, yaml.Unmarshal(buf.Bytes(), &got))
		require.Len(t, got, 1)

		assert.Equal(t, fixtures.Host1, got[0]["hostname"])
		assert.Equal(t, manual.Location, got[0]["local_fisico"])
		assert.Equal(t, 15.73, got[0]["ram_total_gb"])
	})

	t.Run("unsupported", func(t *testing.T) {
		err := store.Export(ctx, repo, nil, "xml", &bytes.Buffer{})
		assert.ErrorIs(t, err, store.ErrExportFormat)
	})
}
