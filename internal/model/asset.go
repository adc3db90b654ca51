package model

import (
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var ErrManualFields = errors.New("invalid asset fields")

// ManualFields are the asset-management attributes curated by operators.
//
// A snapshot never changes these, Status and LastMaintenance are changed only
// through a status update which records a maintenance log entry.
//
// nolint:govet // fieldalignment - struct is better readable in its current form.
type ManualFields struct {
	AssetTag        string `json:"id_patrimonio" yaml:"id_patrimonio"`
	Manufacturer    string `json:"fabricante" yaml:"fabricante"`
	PurchaseDate    string `json:"data_compra" yaml:"data_compra"`
	Supplier        string `json:"fornecedor" yaml:"fornecedor"`
	Cost            string `json:"custo" yaml:"custo"`
	WarrantyExpiry  string `json:"garantia_venc" yaml:"garantia_venc"`
	Location        string `json:"local_fisico" yaml:"local_fisico"`
	CostCenter      string `json:"centro_custo" yaml:"centro_custo"`
	AssignedUser    string `json:"usuario_designado" yaml:"usuario_designado"`
	Department      string `json:"departamento" yaml:"departamento"`
	Status          string `json:"status" yaml:"status"`
	LastMaintenance string `json:"ultima_manutencao" yaml:"ultima_manutencao"`
}

// AssetRecord is the persisted state of one host, keyed by hostname.
//
// The JSON form is flat, collected and manual attributes side by side.
type AssetRecord struct {
	Snapshot     `yaml:",inline"`
	ManualFields `yaml:",inline"`
}

// NewAssetRecord returns the record created on the first ingest of a host,
// manual attributes are empty.
func NewAssetRecord(s *Snapshot) *AssetRecord {
	return &AssetRecord{Snapshot: s.Clone()}
}

// Merge reconciles a newer snapshot into the record: every collected
// attribute is replaced by the snapshot's value and every manual attribute
// is kept as is.
func (r *AssetRecord) Merge(s *Snapshot) {
	manual := r.ManualFields
	r.Snapshot = s.Clone()
	r.ManualFields = manual
}

// ManualUpdate is an operator edit of manual attributes; nil fields are left unchanged.
//
// Status and LastMaintenance are absent here, they change only with a status update.
type ManualUpdate struct {
	AssetTag       *string `json:"id_patrimonio,omitempty"`
	Manufacturer   *string `json:"fabricante,omitempty"`
	PurchaseDate   *string `json:"data_compra,omitempty"`
	Supplier       *string `json:"fornecedor,omitempty"`
	Cost           *string `json:"custo,omitempty"`
	WarrantyExpiry *string `json:"garantia_venc,omitempty"`
	Location       *string `json:"local_fisico,omitempty"`
	CostCenter     *string `json:"centro_custo,omitempty"`
	AssignedUser   *string `json:"usuario_designado,omitempty"`
	Department     *string `json:"departamento,omitempty"`
}

// Empty returns true when the update sets no attribute.
func (u *ManualUpdate) Empty() bool {
	for _, f := range u.fields() {
		if f.src != nil {
			return false
		}
	}

	return true
}

// Validate checks the values set in the update.
func (u *ManualUpdate) Validate() error {
	if u.Cost != nil && strings.TrimSpace(*u.Cost) != "" {
		if _, err := strconv.ParseFloat(strings.TrimSpace(*u.Cost), 64); err != nil {
			return errors.Wrap(ErrManualFields, "custo must be a decimal number: "+*u.Cost)
		}
	}

	return nil
}

// Apply sets the attributes present in the update on m.
func (u *ManualUpdate) Apply(m *ManualFields) {
	for _, f := range u.fieldsOf(m) {
		if f.src != nil {
			*f.dst = strings.TrimSpace(*f.src)
		}
	}
}

type manualField struct {
	src *string
	dst *string
}

func (u *ManualUpdate) fields() []manualField {
	return u.fieldsOf(&ManualFields{})
}

func (u *ManualUpdate) fieldsOf(m *ManualFields) []manualField {
	return []manualField{
		{u.AssetTag, &m.AssetTag},
		{u.Manufacturer, &m.Manufacturer},
		{u.PurchaseDate, &m.PurchaseDate},
		{u.Supplier, &m.Supplier},
		{u.Cost, &m.Cost},
		{u.WarrantyExpiry, &m.WarrantyExpiry},
		{u.Location, &m.Location},
		{u.CostCenter, &m.CostCenter},
		{u.AssignedUser, &m.AssignedUser},
		{u.Department, &m.Department},
	}
}
