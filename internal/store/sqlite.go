package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/metal-toolbox/inventory/internal/metrics"
	"github.com/metal-toolbox/inventory/internal/model"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"

	// registers the "sqlite" database/sql driver
	_ "modernc.org/sqlite"
)

const (
	pkgName = "internal/store"

	// MemoryDSN keeps the database in memory for the lifetime of the store.
	MemoryDSN = ":memory:"

	busyTimeoutMS = 5000
)

var collectedColumns = []string{
	"serial_number", "device_model", "os", "architecture", "cpu_model",
	"cpu_cores_physical", "cpu_cores_logical", "ram_total_gb", "ram_slots", "disks",
	"mac_address", "ip_address", "last_updated", "storage_health", "gpu_info",
	"windows_update_status", "installed_software", "monitors",
}

var manualColumns = []string{
	"id_patrimonio", "fabricante", "data_compra", "fornecedor", "custo",
	"garantia_venc", "local_fisico", "centro_custo", "usuario_designado",
	"departamento", "status", "ultima_manutencao",
}

const schema = `
CREATE TABLE IF NOT EXISTS assets (
	hostname TEXT PRIMARY KEY,
	serial_number TEXT,
	device_model TEXT,
	os TEXT,
	architecture TEXT,
	cpu_model TEXT,
	cpu_cores_physical,
	cpu_cores_logical,
	ram_total_gb,
	ram_slots TEXT,
	disks TEXT NOT NULL DEFAULT '[]',
	mac_address TEXT,
	ip_address TEXT,
	last_updated TEXT,
	storage_health TEXT,
	gpu_info TEXT,
	windows_update_status TEXT,
	installed_software TEXT,
	monitors TEXT NOT NULL DEFAULT '[]',
	id_patrimonio TEXT NOT NULL DEFAULT '',
	fabricante TEXT NOT NULL DEFAULT '',
	data_compra TEXT NOT NULL DEFAULT '',
	fornecedor TEXT NOT NULL DEFAULT '',
	custo TEXT NOT NULL DEFAULT '',
	garantia_venc TEXT NOT NULL DEFAULT '',
	local_fisico TEXT NOT NULL DEFAULT '',
	centro_custo TEXT NOT NULL DEFAULT '',
	usuario_designado TEXT NOT NULL DEFAULT '',
	departamento TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT '',
	ultima_manutencao TEXT NOT NULL DEFAULT ''
);

CREATE TABLE IF NOT EXISTS maintenance_log (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	hostname TEXT NOT NULL REFERENCES assets(hostname),
	date TEXT NOT NULL,
	description TEXT NOT NULL,
	technician TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_maintenance_log_hostname ON maintenance_log(hostname);
`

// SQLite is the Repository persisting assets in a SQLite database.
type SQLite struct {
	db     *sql.DB
	logger *logrus.Logger
}

// queryer is satisfied by *sql.DB and *sql.Tx.
type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// NewSQLite opens, and creates when missing, the database at path.
func NewSQLite(ctx context.Context, path string, logger *logrus.Logger) (*SQLite, error) {
	var dsn string

	if path == MemoryDSN {
		dsn = MemoryDSN
	} else {
		if dir := filepath.Dir(path); dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, errors.Wrap(ErrStore, "database directory: "+err.Error())
			}
		}

		// writers take the database lock when the transaction begins, so a
		// read-modify-write never fails on lock upgrade
		dsn = fmt.Sprintf(
			"file:%s?_pragma=busy_timeout(%d)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_txlock=immediate",
			path,
			busyTimeoutMS,
		)
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrap(ErrStore, "open "+path+": "+err.Error())
	}

	if path == MemoryDSN {
		// every connection to :memory: is a distinct database
		db.SetMaxOpenConns(1)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(ErrStore, "connect "+path+": "+err.Error())
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, errors.Wrap(ErrStore, "schema: "+err.Error())
	}

	if path == MemoryDSN {
		if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys = ON"); err != nil {
			db.Close()
			return nil, errors.Wrap(ErrStore, "foreign keys: "+err.Error())
		}
	}

	logger.WithField("path", path).Debug("sqlite store ready")

	return &SQLite{db: db, logger: logger}, nil
}

func (s *SQLite) registerMetric(queryKind string) {
	metrics.StoreQueryErrorCount.With(
		prometheus.Labels{
			"storeKind": string(model.StoreKindSQLite),
			"queryKind": queryKind,
		},
	).Inc()
}

func (s *SQLite) queryError(queryKind string, err error) error {
	s.registerMetric(queryKind)

	return errors.Wrap(ErrStore, queryKind+": "+err.Error())
}

// UpsertSnapshot implements the Repository interface.
//
// The update statement writes collected columns only, manual columns are never part of it.
func (s *SQLite) UpsertSnapshot(ctx context.Context, snapshot *model.Snapshot) (created bool, err error) {
	ctx, span := otel.Tracer(pkgName).Start(ctx, "SQLite.UpsertSnapshot")
	defer span.End()

	values, err := collectedValues(snapshot)
	if err != nil {
		return false, errors.Wrap(ErrStore, err.Error())
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, s.queryError("BeginTx", err)
	}
	// no-op after commit
	defer tx.Rollback() // nolint:errcheck // rollback error is of no use once committed

	exists, err := s.exists(ctx, tx, snapshot.Hostname)
	if err != nil {
		return false, err
	}

	if exists {
		assignments := make([]string, 0, len(collectedColumns))
		for _, c := range collectedColumns {
			assignments = append(assignments, c+" = ?")
		}

		query := "UPDATE assets SET " + strings.Join(assignments, ", ") + " WHERE hostname = ?"
		if _, err := tx.ExecContext(ctx, query, append(values, snapshot.Hostname)...); err != nil {
			return false, s.queryError("UpdateAsset", err)
		}
	} else {
		columns := append([]string{"hostname"}, collectedColumns...)
		query := "INSERT INTO assets (" + strings.Join(columns, ", ") + ") VALUES (" + placeholders(len(columns)) + ")"

		if _, err := tx.ExecContext(ctx, query, append([]any{snapshot.Hostname}, values...)...); err != nil {
			return false, s.queryError("InsertAsset", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, s.queryError("Commit", err)
	}

	return !exists, nil
}

// AssetByHostname implements the Repository interface.
func (s *SQLite) AssetByHostname(ctx context.Context, hostname string) (*model.AssetRecord, error) {
	ctx, span := otel.Tracer(pkgName).Start(ctx, "SQLite.AssetByHostname")
	defer span.End()

	return s.asset(ctx, s.db, hostname)
}

// Assets implements the Repository interface.
func (s *SQLite) Assets(ctx context.Context, filter *Filter) ([]*model.AssetRecord, error) {
	ctx, span := otel.Tracer(pkgName).Start(ctx, "SQLite.Assets")
	defer span.End()

	query := "SELECT " + selectColumns() + " FROM assets"
	args := []any{}

	if filter != nil && filter.HostnameContains != "" {
		query += ` WHERE hostname LIKE ? ESCAPE '\'`
		args = append(args, "%"+escapeLike(filter.HostnameContains)+"%")
	}

	query += " ORDER BY hostname"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, s.queryError("ListAssets", err)
	}
	defer rows.Close()

	records := []*model.AssetRecord{}

	for rows.Next() {
		r, err := scanAsset(rows)
		if err != nil {
			return nil, s.queryError("ScanAsset", err)
		}

		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, s.queryError("ListAssets", err)
	}

	return records, nil
}

// UpdateStatus implements the Repository interface.
func (s *SQLite) UpdateStatus(ctx context.Context, hostname string, status model.AssetStatus, entry *model.MaintenanceLogEntry) error {
	ctx, span := otel.Tracer(pkgName).Start(ctx, "SQLite.UpdateStatus")
	defer span.End()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.queryError("BeginTx", err)
	}
	defer tx.Rollback() // nolint:errcheck // rollback error is of no use once committed

	exists, err := s.exists(ctx, tx, hostname)
	if err != nil {
		return err
	}

	if !exists {
		return errors.Wrap(ErrAssetNotFound, hostname)
	}

	if entry == nil {
		if _, err := tx.ExecContext(ctx, "UPDATE assets SET status = ? WHERE hostname = ?", string(status), hostname); err != nil {
			return s.queryError("UpdateStatus", err)
		}

		return s.commit(tx)
	}

	if _, err := tx.ExecContext(
		ctx,
		"UPDATE assets SET status = ?, ultima_manutencao = ? WHERE hostname = ?",
		string(status),
		entry.Date,
		hostname,
	); err != nil {
		return s.queryError("UpdateStatus", err)
	}

	res, err := tx.ExecContext(
		ctx,
		"INSERT INTO maintenance_log (hostname, date, description, technician, status) VALUES (?, ?, ?, ?, ?)",
		hostname,
		entry.Date,
		entry.Description,
		entry.Technician,
		string(status),
	)
	if err != nil {
		return s.queryError("InsertMaintenanceLog", err)
	}

	id, err := res.LastInsertId()
	if err != nil {
		return s.queryError("InsertMaintenanceLog", err)
	}

	if err := s.commit(tx); err != nil {
		return err
	}

	entry.ID = id
	entry.Hostname = hostname
	entry.Status = status

	return nil
}

// UpdateManual implements the Repository interface.
func (s *SQLite) UpdateManual(ctx context.Context, hostname string, update *model.ManualUpdate) error {
	ctx, span := otel.Tracer(pkgName).Start(ctx, "SQLite.UpdateManual")
	defer span.End()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return s.queryError("BeginTx", err)
	}
	defer tx.Rollback() // nolint:errcheck // rollback error is of no use once committed

	record, err := s.asset(ctx, tx, hostname)
	if err != nil {
		return err
	}

	update.Apply(&record.ManualFields)

	m := record.ManualFields
	if _, err := tx.ExecContext(
		ctx,
		`UPDATE assets SET id_patrimonio = ?, fabricante = ?, data_compra = ?, fornecedor = ?, custo = ?,
		garantia_venc = ?, local_fisico = ?, centro_custo = ?, usuario_designado = ?, departamento = ?
		WHERE hostname = ?`,
		m.AssetTag, m.Manufacturer, m.PurchaseDate, m.Supplier, m.Cost,
		m.WarrantyExpiry, m.Location, m.CostCenter, m.AssignedUser, m.Department,
		hostname,
	); err != nil {
		return s.queryError("UpdateManual", err)
	}

	return s.commit(tx)
}

// MaintenanceLog implements the Repository interface.
func (s *SQLite) MaintenanceLog(ctx context.Context, hostname string) ([]*model.MaintenanceLogEntry, error) {
	ctx, span := otel.Tracer(pkgName).Start(ctx, "SQLite.MaintenanceLog")
	defer span.End()

	exists, err := s.exists(ctx, s.db, hostname)
	if err != nil {
		return nil, err
	}

	if !exists {
		return nil, errors.Wrap(ErrAssetNotFound, hostname)
	}

	rows, err := s.db.QueryContext(
		ctx,
		"SELECT id, hostname, date, description, technician, status FROM maintenance_log WHERE hostname = ? ORDER BY id",
		hostname,
	)
	if err != nil {
		return nil, s.queryError("ListMaintenanceLog", err)
	}
	defer rows.Close()

	entries := []*model.MaintenanceLogEntry{}

	for rows.Next() {
		var (
			e      model.MaintenanceLogEntry
			status string
		)

		if err := rows.Scan(&e.ID, &e.Hostname, &e.Date, &e.Description, &e.Technician, &status); err != nil {
			return nil, s.queryError("ScanMaintenanceLog", err)
		}

		e.Status = model.AssetStatus(status)
		entries = append(entries, &e)
	}

	if err := rows.Err(); err != nil {
		return nil, s.queryError("ListMaintenanceLog", err)
	}

	return entries, nil
}

// Count implements the Repository interface.
func (s *SQLite) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM assets").Scan(&n); err != nil {
		return 0, s.queryError("CountAssets", err)
	}

	return n, nil
}

// Close implements the Repository interface.
func (s *SQLite) Close() error {
	return s.db.Close()
}

func (s *SQLite) commit(tx *sql.Tx) error {
	if err := tx.Commit(); err != nil {
		return s.queryError("Commit", err)
	}

	return nil
}

func (s *SQLite) exists(ctx context.Context, q queryer, hostname string) (bool, error) {
	var one int

	err := q.QueryRowContext(ctx, "SELECT 1 FROM assets WHERE hostname = ?", hostname).Scan(&one)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		return false, nil
	case err != nil:
		return false, s.queryError("AssetExists", err)
	}

	return true, nil
}

func (s *SQLite) asset(ctx context.Context, q queryer, hostname string) (*model.AssetRecord, error) {
	row := q.QueryRowContext(ctx, "SELECT "+selectColumns()+" FROM assets WHERE hostname = ?", hostname)

	record, err := scanAsset(row)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, errors.Wrap(ErrAssetNotFound, hostname)
	case err != nil:
		return nil, s.queryError("GetAsset", err)
	}

	return record, nil
}

func selectColumns() string {
	columns := append([]string{"hostname"}, collectedColumns...)
	return strings.Join(append(columns, manualColumns...), ", ")
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

// collectedValues returns the column values of the snapshot in collectedColumns order.
func collectedValues(s *model.Snapshot) ([]any, error) {
	disks := s.Disks
	if disks == nil {
		disks = []model.Disk{}
	}

	monitors := s.Monitors
	if monitors == nil {
		monitors = []model.Monitor{}
	}

	disksJSON, err := json.Marshal(disks)
	if err != nil {
		return nil, errors.Wrap(err, "disks")
	}

	monitorsJSON, err := json.Marshal(monitors)
	if err != nil {
		return nil, errors.Wrap(err, "monitors")
	}

	return []any{
		s.SerialNumber,
		s.DeviceModel,
		s.OS,
		s.Architecture,
		s.CPUModel,
		s.CPUCoresPhysical,
		s.CPUCoresLogical,
		s.RAMTotalGB,
		s.RAMSlots,
		string(disksJSON),
		s.MACAddress,
		s.IPAddress,
		s.CollectedAt.Format(time.RFC3339Nano),
		s.StorageHealth,
		s.GPUInfo,
		s.PatchStatus,
		s.InstalledSoftware,
		string(monitorsJSON),
	}, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAsset(row scanner) (*model.AssetRecord, error) {
	var (
		r                 model.AssetRecord
		disks, monitors   string
		physical, logical model.Number[int]
		ram               model.Number[float64]
	)

	// collected text columns, NULL only in rows written by older agents
	var serial, deviceModel, osName, arch, cpu, slots, mac, ip, collectedAt, health, gpu, patch, software sql.NullString

	m := &r.ManualFields

	err := row.Scan(
		&r.Hostname,
		&serial, &deviceModel, &osName, &arch, &cpu,
		&physical, &logical, &ram, &slots, &disks,
		&mac, &ip, &collectedAt, &health, &gpu,
		&patch, &software, &monitors,
		&m.AssetTag, &m.Manufacturer, &m.PurchaseDate, &m.Supplier, &m.Cost,
		&m.WarrantyExpiry, &m.Location, &m.CostCenter, &m.AssignedUser,
		&m.Department, &m.Status, &m.LastMaintenance,
	)
	if err != nil {
		return nil, err
	}

	r.SerialNumber = serial.String
	r.DeviceModel = deviceModel.String
	r.OS = osName.String
	r.Architecture = arch.String
	r.CPUModel = cpu.String
	r.CPUCoresPhysical = physical
	r.CPUCoresLogical = logical
	r.RAMTotalGB = ram
	r.RAMSlots = slots.String
	r.MACAddress = mac.String
	r.IPAddress = ip.String
	r.StorageHealth = health.String
	r.GPUInfo = gpu.String
	r.PatchStatus = patch.String
	r.InstalledSoftware = software.String

	if collectedAt.String != "" {
		if r.CollectedAt, err = time.Parse(time.RFC3339Nano, collectedAt.String); err != nil {
			return nil, errors.Wrap(err, "last_updated")
		}
	}

	if err := json.Unmarshal([]byte(disks), &r.Disks); err != nil {
		return nil, errors.Wrap(err, "disks")
	}

	if err := json.Unmarshal([]byte(monitors), &r.Monitors); err != nil {
		return nil, errors.Wrap(err, "monitors")
	}

	return &r, nil
}
