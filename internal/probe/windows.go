package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/metal-toolbox/inventory/internal/model"
)

const (
	psQuerySerial    = `Get-CimInstance Win32_BIOS | Select-Object SerialNumber`
	psQueryModel     = `Get-CimInstance Win32_ComputerSystem | Select-Object Manufacturer,Model`
	psQueryMemory    = `Get-CimInstance Win32_PhysicalMemory | Select-Object BankLabel`
	psQueryDisks     = `Get-CimInstance Win32_DiskDrive | Select-Object Model,Status`
	psQueryVideo     = `Get-CimInstance Win32_VideoController | Select-Object Name`
	psQueryHotfixes  = `Get-CimInstance Win32_QuickFixEngineering | Select-Object HotFixID`
	psQueryMonitors  = `Get-CimInstance -Namespace root\wmi -ClassName WmiMonitorID | Select-Object ManufacturerName,UserFriendlyName,SerialNumberID`
	psQuerySoftware  = `Get-ItemProperty HKLM:\Software\Microsoft\Windows\CurrentVersion\Uninstall\* | Where-Object DisplayName | Select-Object DisplayName`
	psJSONConversion = `ConvertTo-Json -Compress -Depth 3 -InputObject @(%s)`
)

// Windows reads attributes through CIM queries run by PowerShell, and gopsutil.
type Windows struct {
	hostProbe

	runner Runner
}

func NewWindows(runner Runner) *Windows {
	return &Windows{runner: runner}
}

func (w *Windows) Platform() Platform {
	return PlatformWindows
}

// query runs the PowerShell pipeline and decodes its output as a JSON array into v.
func (w *Windows) query(ctx context.Context, pipeline string, v any) error {
	script := fmt.Sprintf(psJSONConversion, pipeline)

	out, err := w.runner.Run(ctx, "powershell", "-NoProfile", "-NonInteractive", "-Command", script)
	if err != nil {
		return err
	}

	return json.Unmarshal(out, v)
}

func (w *Windows) SerialNumber(ctx context.Context) (string, error) {
	var rows []struct{ SerialNumber string }
	if err := w.query(ctx, psQuerySerial, &rows); err != nil || len(rows) == 0 {
		return "", errProbe("serial number", err)
	}

	return strings.TrimSpace(rows[0].SerialNumber), nil
}

func (w *Windows) DeviceModel(ctx context.Context) (string, error) {
	var rows []struct{ Manufacturer, Model string }
	if err := w.query(ctx, psQueryModel, &rows); err != nil || len(rows) == 0 {
		return "", errProbe("device model", err)
	}

	return strings.TrimSpace(strings.TrimSpace(rows[0].Manufacturer) + " " + strings.TrimSpace(rows[0].Model)), nil
}

func (w *Windows) RAMSlots(ctx context.Context) (int, error) {
	var rows []struct{ BankLabel string }
	if err := w.query(ctx, psQueryMemory, &rows); err != nil {
		return 0, errProbe("ram slots", err)
	}

	return len(rows), nil
}

// StorageHealth returns the status of each disk drive, as "<model>: <status>" joined by "; ".
func (w *Windows) StorageHealth(ctx context.Context) (string, error) {
	var rows []struct{ Model, Status string }
	if err := w.query(ctx, psQueryDisks, &rows); err != nil || len(rows) == 0 {
		return "", errProbe("storage health", err)
	}

	health := make([]string, 0, len(rows))
	for _, r := range rows {
		status := strings.TrimSpace(r.Status)
		if status == "" {
			status = model.DefaultPlaceholder
		}

		health = append(health, strings.TrimSpace(r.Model)+": "+status)
	}

	return strings.Join(health, "; "), nil
}

func (w *Windows) GPUs(ctx context.Context) ([]string, error) {
	var rows []struct{ Name string }
	if err := w.query(ctx, psQueryVideo, &rows); err != nil {
		return nil, errProbe("gpu", err)
	}

	gpus := make([]string, 0, len(rows))
	for _, r := range rows {
		if name := strings.TrimSpace(r.Name); name != "" {
			gpus = append(gpus, name)
		}
	}

	return gpus, nil
}

func (w *Windows) InstalledUpdates(ctx context.Context) (int, error) {
	var rows []struct{ HotFixID string }
	if err := w.query(ctx, psQueryHotfixes, &rows); err != nil {
		return 0, errProbe("updates", err)
	}

	return len(rows), nil
}

func (w *Windows) InstalledSoftware(ctx context.Context) ([]string, error) {
	var rows []struct{ DisplayName string }
	if err := w.query(ctx, psQuerySoftware, &rows); err != nil {
		return nil, errProbe("installed software", err)
	}

	names := make([]string, 0, len(rows))
	for _, r := range rows {
		if name := strings.TrimSpace(r.DisplayName); name != "" {
			names = append(names, name)
		}
	}

	return names, nil
}

func (w *Windows) Monitors(ctx context.Context) ([]model.Monitor, error) {
	var rows []struct {
		ManufacturerName []int
		UserFriendlyName []int
		SerialNumberID   []int
	}

	if err := w.query(ctx, psQueryMonitors, &rows); err != nil {
		return nil, errProbe("monitors", err)
	}

	monitors := make([]model.Monitor, 0, len(rows))
	for _, r := range rows {
		monitors = append(monitors, model.Monitor{
			Manufacturer: wmiString(r.ManufacturerName),
			Model:        wmiString(r.UserFriendlyName),
			SerialNumber: wmiString(r.SerialNumberID),
		})
	}

	return monitors, nil
}
