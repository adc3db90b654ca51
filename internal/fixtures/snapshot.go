package fixtures

import (
	"time"

	"github.com/metal-toolbox/inventory/internal/model"
)

var (
	Host1 = "ws-0042"
	Host2 = "nb-0117"

	CollectedAt = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)
)

// NewSnapshot returns a complete snapshot for hostname.
func NewSnapshot(hostname string) *model.Snapshot {
	return &model.Snapshot{
		Hostname:         hostname,
		SerialNumber:     "5CG1234XYZ",
		DeviceModel:      "HP EliteBook 840 G8",
		OS:               "Microsoft Windows 11 Pro 10.0.22631",
		Architecture:     "x86_64",
		CPUModel:         "11th Gen Intel(R) Core(TM) i5-1135G7 @ 2.40GHz",
		CPUCoresPhysical: model.Known(4),
		CPUCoresLogical:  model.Known(8),
		RAMTotalGB:       model.Known(15.73),
		RAMSlots:         "2 slots occupied",
		Disks: []model.Disk{
			model.NewDisk(`C:`, `C:\`, 511101108224, 201326592000),
		},
		MACAddress:        "a4:bb:6d:01:02:03",
		IPAddress:         "10.0.8.21",
		CollectedAt:       CollectedAt,
		StorageHealth:     "SAMSUNG MZVLB512HBJQ: OK",
		GPUInfo:           "Intel(R) Iris(R) Xe Graphics",
		PatchStatus:       "12 updates installed",
		InstalledSoftware: "7-Zip 23.01; Mozilla Firefox; Microsoft Office",
		Monitors: []model.Monitor{
			{Manufacturer: "DEL", Model: "P2419H", SerialNumber: "CFV9N93"},
		},
	}
}

// NewManualFields returns operator curated attributes.
func NewManualFields() model.ManualFields {
	return model.ManualFields{
		AssetTag:        "PAT-004211",
		Manufacturer:    "HP",
		PurchaseDate:    "2022-05-03",
		Supplier:        "ACME Distribuidora",
		Cost:            "5299.00",
		WarrantyExpiry:  "2025-05-03",
		Location:        "Building B, 2nd floor",
		CostCenter:      "CC-310",
		AssignedUser:    "mlopes",
		Department:      "Finance",
		Status:          string(model.StatusInUse),
		LastMaintenance: "2024-01-10T08:00:00Z",
	}
}
