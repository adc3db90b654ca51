package store

import (
	"context"
	"encoding/json"
	"io"

	"github.com/metal-toolbox/inventory/internal/model"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

const (
	ExportFormatJSON = "json"
	ExportFormatYAML = "yaml"
)

var ErrExportFormat = errors.New("unsupported export format")

// ExportedAsset is an asset record with its maintenance log.
type ExportedAsset struct {
	model.AssetRecord `yaml:",inline"`
	Maintenance       []*model.MaintenanceLogEntry `json:"maintenance" yaml:"maintenance"`
}

// Export writes every record matching filter, with its maintenance log, to w.
func Export(ctx context.Context, repo Repository, filter *Filter, format string, w io.Writer) error {
	records, err := repo.Assets(ctx, filter)
	if err != nil {
		return err
	}

	exported := make([]*ExportedAsset, 0, len(records))

	for _, r := range records {
		entries, err := repo.MaintenanceLog(ctx, r.Hostname)
		if err != nil {
			return err
		}

		exported = append(exported, &ExportedAsset{AssetRecord: *r, Maintenance: entries})
	}

	switch format {
	case ExportFormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		return enc.Encode(exported)
	case ExportFormatYAML:
		enc := yaml.NewEncoder(w)
		defer enc.Close()

		return enc.Encode(exported)
	default:
		return errors.Wrap(ErrExportFormat, format)
	}
}
