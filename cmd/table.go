package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/metal-toolbox/inventory/internal/model"
	"github.com/pterm/pterm"
)

var assetHeaders = []string{"hostname", "model", "os", "ip", "mac", "cpu", "ram (GB)", "disks", "status", "last update"}

func assetRows(records []*model.AssetRecord) [][]string {
	rows := make([][]string, 0, len(records))

	for _, r := range records {
		rows = append(rows, []string{
			r.Hostname,
			r.DeviceModel,
			r.OS,
			r.IPAddress,
			r.MACAddress,
			fmt.Sprintf("%s (%s/%s)", r.CPUModel, r.CPUCoresPhysical, r.CPUCoresLogical),
			r.RAMTotalGB.String(),
			diskSummary(r.Disks),
			r.Status,
			r.CollectedAt.Local().Format(time.DateTime),
		})
	}

	return rows
}

// diskSummary lists disks as <device> <used>/<total> GB.
func diskSummary(disks []model.Disk) string {
	if len(disks) == 0 {
		return "-"
	}

	parts := make([]string, 0, len(disks))
	for _, d := range disks {
		parts = append(parts, fmt.Sprintf("%s %.1f/%.1f GB", d.Device, d.UsedGB, d.TotalGB))
	}

	return strings.Join(parts, ", ")
}

var maintenanceHeaders = []string{"id", "date", "status", "technician", "description"}

func maintenanceRows(entries []*model.MaintenanceLogEntry) [][]string {
	rows := make([][]string, 0, len(entries))

	for _, e := range entries {
		rows = append(rows, []string{fmt.Sprint(e.ID), e.Date, string(e.Status), e.Technician, e.Description})
	}

	return rows
}

func renderTable(headers []string, rows [][]string) error {
	if len(rows) == 0 {
		pterm.Warning.Println("no records found.")
		return nil
	}

	data := pterm.TableData{headers}
	data = append(data, rows...)

	return pterm.DefaultTable.
		WithHasHeader(true).
		WithBoxed(false).
		WithData(data).
		Render()
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")

	return enc.Encode(v)
}
