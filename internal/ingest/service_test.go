package ingest

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/metal-toolbox/inventory/internal/fixtures"
	"github.com/metal-toolbox/inventory/internal/model"
	"github.com/metal-toolbox/inventory/internal/store"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/mock/gomock"
)

var serverNow = time.Date(2024, 3, 2, 13, 4, 5, 0, time.UTC)

func strptr(s string) *string { return &s }

// recorder is an events.Publisher keeping what it was given.
type recorder struct {
	mu     sync.Mutex
	events []*model.AssetEvent
	err    error
}

func (r *recorder) Publish(_ context.Context, e *model.AssetEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.events = append(r.events, e)

	return r.err
}

func (r *recorder) Close() error { return nil }

func (r *recorder) kinds() []model.EventKind {
	r.mu.Lock()
	defer r.mu.Unlock()

	kinds := []model.EventKind{}
	for _, e := range r.events {
		kinds = append(kinds, e.Kind)
	}

	return kinds
}

func newTestService(repo store.Repository, options ...Option) (*Service, *recorder) {
	logger := logrus.New()
	logger.Level = logrus.TraceLevel

	rec := &recorder{}
	options = append([]Option{WithPublisher(rec), WithClock(func() time.Time { return serverNow })}, options...)

	return New(repo, logger, options...), rec
}

func payload(t *testing.T, s *model.Snapshot) []byte {
	t.Helper()

	b, err := json.Marshal(s)
	require.NoError(t, err)

	return b
}

func TestIngest(t *testing.T) {
	repo := store.NewMemStore()
	svc, rec := newTestService(repo)
	ctx := context.Background()

	ack, err := svc.Ingest(ctx, payload(t, fixtures.NewSnapshot(fixtures.Host1)))
	require.NoError(t, err)
	assert.Equal(t, &Ack{Hostname: fixtures.Host1, Created: true}, ack)

	got, err := repo.AssetByHostname(ctx, fixtures.Host1)
	require.NoError(t, err)
	assert.Equal(t, *fixtures.NewSnapshot(fixtures.Host1), got.Snapshot)

	ack, err = svc.Ingest(ctx, payload(t, fixtures.NewSnapshot(fixtures.Host1)))
	require.NoError(t, err)
	assert.False(t, ack.Created)

	assert.Equal(t, []model.EventKind{model.EventAssetCreated, model.EventAssetUpdated}, rec.kinds())
}

func TestIngestPreservesManualFields(t *testing.T) {
	repo := store.NewMemStore()
	svc, _ := newTestService(repo)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, payload(t, fixtures.NewSnapshot(fixtures.Host1)))
	require.NoError(t, err)

	require.NoError(t, svc.UpdateManual(ctx, fixtures.Host1, &model.ManualUpdate{
		AssetTag:     strptr("PAT-004211"),
		Location:     strptr("Building B"),
		AssignedUser: strptr("mlopes"),
		Cost:         strptr("5299.00"),
	}))

	_, err = svc.UpdateStatus(ctx, fixtures.Host1, &model.StatusRequest{Status: "in-use", Description: "deployed", Technician: "J.Doe"})
	require.NoError(t, err)

	before, err := repo.AssetByHostname(ctx, fixtures.Host1)
	require.NoError(t, err)

	next := fixtures.NewSnapshot(fixtures.Host1)
	next.IPAddress = "10.0.9.4"
	next.InstalledSoftware = "none"
	next.CollectedAt = fixtures.CollectedAt.Add(time.Hour)

	_, err = svc.Ingest(ctx, payload(t, next))
	require.NoError(t, err)

	after, err := repo.AssetByHostname(ctx, fixtures.Host1)
	require.NoError(t, err)

	assert.Equal(t, before.ManualFields, after.ManualFields)
	assert.Equal(t, *next, after.Snapshot)
}

func TestIngestValidation(t *testing.T) {
	tests := []struct {
		name    string
		payload string
	}{
		{"not json", `hostname=ws-0042`},
		{"array", `[{"hostname": "ws-0042"}]`},
		{"string", `"ws-0042"`},
		{"null", `null`},
		{"missing hostname", `{"os": "debian 12"}`},
		{"empty hostname", `{"hostname": ""}`},
		{"blank hostname", `{"hostname": "   "}`},
		{"numeric hostname", `{"hostname": 42}`},
		{"disks as text", `{"hostname": "ws-0042", "disks": "[{'device': 'C:'}]"}`},
		{"disk over capacity", `{"hostname": "ws-0042", "disks": [{"device": "C:", "mountpoint": "C:\\", "total_gb": 10, "used_gb": 11, "percent_used": 100}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			repo := fixtures.NewMockRepository(ctrl)

			// nothing is recorded
			repo.EXPECT().UpsertSnapshot(gomock.Any(), gomock.Any()).Times(0)

			svc, rec := newTestService(repo)

			ack, err := svc.Ingest(context.Background(), []byte(tt.payload))
			assert.Nil(t, ack)
			assert.ErrorIs(t, err, ErrValidation)
			assert.Empty(t, rec.kinds())
		})
	}
}

func TestIngestPartialPayload(t *testing.T) {
	repo := store.NewMemStore()
	svc, _ := newTestService(repo, WithPlaceholder("Desconhecido"))
	ctx := context.Background()

	_, err := svc.Ingest(ctx, []byte(`{"hostname": " kiosk-7 ", "os": "Linux 6.1", "gpu_info": null, "monitors": [{"model": "P2419H"}]}`))
	require.NoError(t, err)

	got, err := repo.AssetByHostname(ctx, "kiosk-7")
	require.NoError(t, err)

	assert.Equal(t, "Linux 6.1", got.OS)
	assert.Equal(t, "Desconhecido", got.SerialNumber)
	assert.Equal(t, "Desconhecido", got.GPUInfo)
	assert.Equal(t, model.Unknown[float64]("Desconhecido"), got.RAMTotalGB)
	assert.Equal(t, serverNow, got.CollectedAt)
	assert.Equal(t, []model.Disk{}, got.Disks)
	assert.Equal(t, []model.Monitor{{Manufacturer: "Desconhecido", Model: "P2419H", SerialNumber: "Desconhecido"}}, got.Monitors)
}

func TestIngestStoreFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := fixtures.NewMockRepository(ctrl)

	repo.EXPECT().
		UpsertSnapshot(gomock.Any(), gomock.Any()).
		Return(false, errors.Wrap(store.ErrStore, "UpdateAsset: disk I/O error on table assets")).
		Times(1)

	svc, rec := newTestService(repo)

	ack, err := svc.Ingest(context.Background(), payload(t, fixtures.NewSnapshot(fixtures.Host1)))
	assert.Nil(t, ack)
	assert.Equal(t, ErrInternal, err)
	assert.NotContains(t, err.Error(), "assets")
	assert.Empty(t, rec.kinds())
}

func TestIngestPublishFailureIsNotFatal(t *testing.T) {
	repo := store.NewMemStore()
	svc, rec := newTestService(repo)
	rec.err = errors.New("nats: connection closed")

	ack, err := svc.Ingest(context.Background(), payload(t, fixtures.NewSnapshot(fixtures.Host1)))
	require.NoError(t, err)
	assert.True(t, ack.Created)
}

func TestIngestConcurrentHosts(t *testing.T) {
	defer goleak.VerifyNone(t)

	repo := store.NewMemStore()
	svc, _ := newTestService(repo)
	ctx := context.Background()

	hosts := []string{fixtures.Host1, fixtures.Host2}

	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		for _, h := range hosts {
			wg.Add(1)

			go func(h string, i int) {
				defer wg.Done()

				s := fixtures.NewSnapshot(h)
				s.SerialNumber = "SN-" + h
				s.InstalledSoftware = fmt.Sprintf("%s run %d", h, i)

				_, err := svc.Ingest(ctx, payload(t, s))
				assert.NoError(t, err)
			}(h, i)
		}
	}

	wg.Wait()

	for _, h := range hosts {
		got, err := repo.AssetByHostname(ctx, h)
		require.NoError(t, err)
		assert.Equal(t, "SN-"+h, got.SerialNumber)
		assert.Contains(t, got.InstalledSoftware, h+" run ")
	}

	assert.Zero(t, svc.locks.len())
}

func TestUpdateStatusWithMaintenanceEntry(t *testing.T) {
	repo := store.NewMemStore()
	svc, rec := newTestService(repo)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, payload(t, fixtures.NewSnapshot(fixtures.Host1)))
	require.NoError(t, err)

	ack, err := svc.UpdateStatus(ctx, fixtures.Host1, &model.StatusRequest{Status: "damaged", Description: "screen cracked", Technician: "J.Doe"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusDamaged, ack.Status)
	require.NotNil(t, ack.Entry)
	assert.Equal(t, "2024-03-02T13:04:05Z", ack.Entry.Date)

	got, err := repo.AssetByHostname(ctx, fixtures.Host1)
	require.NoError(t, err)
	assert.Equal(t, "damaged", got.Status)
	assert.Equal(t, ack.Entry.Date, got.LastMaintenance)

	log, err := svc.MaintenanceLog(ctx, fixtures.Host1)
	require.NoError(t, err)
	require.Len(t, log, 1)
	assert.Equal(t, "screen cracked", log[0].Description)
	assert.Equal(t, "J.Doe", log[0].Technician)
	assert.Equal(t, ack.Entry.Date, log[0].Date)

	assert.Equal(t, []model.EventKind{model.EventAssetCreated, model.EventAssetStatus}, rec.kinds())
}

func TestUpdateStatusWithoutEntry(t *testing.T) {
	repo := store.NewMemStore()
	svc, _ := newTestService(repo)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, payload(t, fixtures.NewSnapshot(fixtures.Host1)))
	require.NoError(t, err)

	// a technician without a description records nothing
	ack, err := svc.UpdateStatus(ctx, fixtures.Host1, &model.StatusRequest{Status: " In-Stock ", Technician: "J.Doe"})
	require.NoError(t, err)
	assert.Nil(t, ack.Entry)

	got, err := repo.AssetByHostname(ctx, fixtures.Host1)
	require.NoError(t, err)
	assert.Equal(t, "in-stock", got.Status)
	assert.Empty(t, got.LastMaintenance)

	log, err := svc.MaintenanceLog(ctx, fixtures.Host1)
	require.NoError(t, err)
	assert.Empty(t, log)
}

func TestUpdateStatusValidation(t *testing.T) {
	tests := []struct {
		name string
		req  *model.StatusRequest
	}{
		{"nil request", nil},
		{"unknown status", &model.StatusRequest{Status: "lost"}},
		{"empty status", &model.StatusRequest{}},
		{"description without technician", &model.StatusRequest{Status: "in-stock", Description: "x"}},
		{"blank technician", &model.StatusRequest{Status: "in-stock", Description: "x", Technician: "  "}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctrl := gomock.NewController(t)
			repo := fixtures.NewMockRepository(ctrl)

			repo.EXPECT().UpdateStatus(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Times(0)
			repo.EXPECT().AssetByHostname(gomock.Any(), gomock.Any()).Times(0)

			svc, _ := newTestService(repo)

			_, err := svc.UpdateStatus(context.Background(), fixtures.Host1, tt.req)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestUpdateStatusRejectedLeavesRecord(t *testing.T) {
	repo := store.NewMemStore()
	svc, _ := newTestService(repo)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, payload(t, fixtures.NewSnapshot(fixtures.Host1)))
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, fixtures.Host1, &model.StatusRequest{Status: "in-use"})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, fixtures.Host1, &model.StatusRequest{Status: "in-stock", Description: "x"})
	require.ErrorIs(t, err, ErrValidation)

	got, err := repo.AssetByHostname(ctx, fixtures.Host1)
	require.NoError(t, err)
	assert.Equal(t, "in-use", got.Status)

	log, err := svc.MaintenanceLog(ctx, fixtures.Host1)
	require.NoError(t, err)
	assert.Empty(t, log)
}

func TestUpdateStatusUnknownHost(t *testing.T) {
	svc, rec := newTestService(store.NewMemStore())

	_, err := svc.UpdateStatus(context.Background(), "missing", &model.StatusRequest{Status: "in-use"})
	assert.ErrorIs(t, err, store.ErrAssetNotFound)
	assert.Empty(t, rec.kinds())
}

func TestUpdateStatusStoreFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := fixtures.NewMockRepository(ctrl)

	record := model.NewAssetRecord(fixtures.NewSnapshot(fixtures.Host1))

	repo.EXPECT().AssetByHostname(gomock.Any(), fixtures.Host1).Return(record, nil).Times(1)
	repo.EXPECT().
		UpdateStatus(gomock.Any(), fixtures.Host1, model.StatusDamaged, gomock.Any()).
		Return(errors.Wrap(store.ErrStore, "InsertMaintenanceLog: database is locked")).
		Times(1)

	svc, rec := newTestService(repo)

	_, err := svc.UpdateStatus(context.Background(), fixtures.Host1, &model.StatusRequest{Status: "damaged", Description: "x", Technician: "y"})
	assert.Equal(t, ErrInternal, err)
	assert.Empty(t, rec.kinds())
}

func TestUpdateStatusTerminalDecommissioned(t *testing.T) {
	repo := store.NewMemStore()
	svc, _ := newTestService(repo, WithTerminalDecommissioned(true))
	ctx := context.Background()

	_, err := svc.Ingest(ctx, payload(t, fixtures.NewSnapshot(fixtures.Host1)))
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, fixtures.Host1, &model.StatusRequest{Status: "decommissioned", Description: "retired", Technician: "J.Doe"})
	require.NoError(t, err)

	_, err = svc.UpdateStatus(ctx, fixtures.Host1, &model.StatusRequest{Status: "in-use"})
	require.ErrorIs(t, err, ErrValidation)
	assert.ErrorIs(t, err, ErrTransition)
	assert.Contains(t, err.Error(), "from state 'decommissioned'")

	// further evidence may still be recorded
	_, err = svc.UpdateStatus(ctx, fixtures.Host1, &model.StatusRequest{Status: "decommissioned", Description: "disk wiped", Technician: "A.Silva"})
	require.NoError(t, err)

	got, err := repo.AssetByHostname(ctx, fixtures.Host1)
	require.NoError(t, err)
	assert.Equal(t, "decommissioned", got.Status)

	log, err := svc.MaintenanceLog(ctx, fixtures.Host1)
	require.NoError(t, err)
	assert.Len(t, log, 2)
}

func TestHostnameIsTrimmed(t *testing.T) {
	repo := store.NewMemStore()
	svc, _ := newTestService(repo)
	ctx := context.Background()

	snapshot := fixtures.NewSnapshot(fixtures.Host1)
	snapshot.Hostname = "  " + fixtures.Host1 + " "

	ack, err := svc.Ingest(ctx, payload(t, snapshot))
	require.NoError(t, err)
	assert.Equal(t, fixtures.Host1, ack.Hostname)

	status, err := svc.UpdateStatus(ctx, " "+fixtures.Host1, &model.StatusRequest{Status: "damaged", Description: "hinge broken", Technician: "J.Doe"})
	require.NoError(t, err)
	assert.Equal(t, fixtures.Host1, status.Hostname)

	location := "Room 12"
	require.NoError(t, svc.UpdateManual(ctx, " "+fixtures.Host1+" ", &model.ManualUpdate{Location: &location}))

	got, err := svc.Asset(ctx, fixtures.Host1+"\t")
	require.NoError(t, err)
	assert.Equal(t, fixtures.Host1, got.Hostname)
	assert.Equal(t, "damaged", got.Status)
	assert.Equal(t, location, got.Location)

	log, err := svc.MaintenanceLog(ctx, "  "+fixtures.Host1)
	require.NoError(t, err)
	assert.Len(t, log, 1)
}

func TestUpdateStatusDecommissionedReactivation(t *testing.T) {
	repo := store.NewMemStore()
	svc, _ := newTestService(repo)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, payload(t, fixtures.NewSnapshot(fixtures.Host1)))
	require.NoError(t, err)

	for _, status := range []string{"decommissioned", "in-use"} {
		_, err = svc.UpdateStatus(ctx, fixtures.Host1, &model.StatusRequest{Status: status})
		require.NoError(t, err)
	}
}

func TestUpdateStatusFromLegacyValue(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := fixtures.NewMockRepository(ctrl)

	record := model.NewAssetRecord(fixtures.NewSnapshot(fixtures.Host1))
	record.Status = "Em uso"

	repo.EXPECT().AssetByHostname(gomock.Any(), fixtures.Host1).Return(record, nil)
	repo.EXPECT().UpdateStatus(gomock.Any(), fixtures.Host1, model.StatusInUse, nil).Return(nil)

	svc, _ := newTestService(repo, WithTerminalDecommissioned(true))

	ack, err := svc.UpdateStatus(context.Background(), fixtures.Host1, &model.StatusRequest{Status: "in-use"})
	require.NoError(t, err)
	assert.Equal(t, model.StatusInUse, ack.Status)
}

func TestUpdateManual(t *testing.T) {
	repo := store.NewMemStore()
	svc, rec := newTestService(repo)
	ctx := context.Background()

	_, err := svc.Ingest(ctx, payload(t, fixtures.NewSnapshot(fixtures.Host1)))
	require.NoError(t, err)

	require.NoError(t, svc.UpdateManual(ctx, fixtures.Host1, &model.ManualUpdate{Department: strptr("Finance")}))

	got, err := svc.Asset(ctx, fixtures.Host1)
	require.NoError(t, err)
	assert.Equal(t, "Finance", got.Department)

	assert.Equal(t, []model.EventKind{model.EventAssetCreated, model.EventAssetEdited}, rec.kinds())

	tests := []struct {
		name   string
		update *model.ManualUpdate
		want   error
	}{
		{"nil", nil, ErrValidation},
		{"empty", &model.ManualUpdate{}, ErrValidation},
		{"bad cost", &model.ManualUpdate{Cost: strptr("R$ 10")}, ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, svc.UpdateManual(ctx, fixtures.Host1, tt.update), tt.want)
		})
	}

	err = svc.UpdateManual(ctx, "missing", &model.ManualUpdate{Department: strptr("IT")})
	assert.ErrorIs(t, err, store.ErrAssetNotFound)
}

func TestQueries(t *testing.T) {
	repo := store.NewMemStore()
	svc, _ := newTestService(repo)
	ctx := context.Background()

	for _, h := range []string{fixtures.Host1, fixtures.Host2} {
		_, err := svc.Ingest(ctx, payload(t, fixtures.NewSnapshot(h)))
		require.NoError(t, err)
	}

	records, err := svc.Assets(ctx, "")
	require.NoError(t, err)
	assert.Len(t, records, 2)

	records, err = svc.Assets(ctx, "NB-")
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, fixtures.Host2, records[0].Hostname)

	_, err = svc.Asset(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrAssetNotFound)

	_, err = svc.MaintenanceLog(ctx, "missing")
	assert.ErrorIs(t, err, store.ErrAssetNotFound)
}

func TestQueriesStoreFailure(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := fixtures.NewMockRepository(ctrl)

	repo.EXPECT().Assets(gomock.Any(), &store.Filter{HostnameContains: "ws"}).Return(nil, errors.Wrap(store.ErrStore, "ListAssets: no such table"))

	svc, _ := newTestService(repo)

	_, err := svc.Assets(context.Background(), "ws")
	assert.Equal(t, ErrInternal, err)
}

func TestSupportStatus(t *testing.T) {
	svc, _ := newTestService(store.NewMemStore())

	tests := []struct {
		serial    string
		supported bool
		err       error
	}{
		{"5CG1234XY4", true, nil},
		{"5CG1234XY0", true, nil},
		{"5CG1234XY7", false, nil},
		{"5CG1234XYZ", false, nil},
		{" 8 ", true, nil},
		{"", false, ErrValidation},
		{"   ", false, ErrValidation},
	}

	for _, tt := range tests {
		t.Run(tt.serial, func(t *testing.T) {
			got, err := svc.SupportStatus(tt.serial)
			if tt.err != nil {
				assert.ErrorIs(t, err, tt.err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.supported, got.Supported)
			assert.NotEmpty(t, got.Message)
		})
	}
}
