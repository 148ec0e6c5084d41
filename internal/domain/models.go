// Package domain defines the persistence models for uploaded structure files,
// calculation sets, cached charge calculations, and per-file molecule
// statistics. These types are mapped with GORM and form the core data layer
// of the charge calculation backend.
package domain

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Charges maps a molecule name to its ordered list of per-atom partial
// charges, in file atom order. It is persisted as a JSON column.
type Charges map[string][]float64

// FileRecord represents an uploaded molecular structure file. Identity is the
// content hash: re-uploading identical bytes must not create a second stored
// copy for the same owner.
//
// Fields:
//   - ID: stable UUID primary key (char(36)).
//   - Hash: content hash of the raw file bytes (hex-encoded SHA-256).
//   - Name: original display name of the upload.
//   - UserID: owner id, empty string for guest uploads.
//   - Size: file size in bytes (used for quota accounting).
//   - UploadedAt: time of first upload of these bytes.
type FileRecord struct {
	ID         string         `json:"id"          gorm:"type:char(36);primaryKey"`
	Hash       string         `json:"hash"        gorm:"type:varchar(64);not null;uniqueIndex:ux_file_hash_owner,priority:1"`
	Name       string         `json:"name"        gorm:"type:varchar(255);not null"`
	UserID     string         `json:"user_id"     gorm:"type:varchar(64);not null;index;uniqueIndex:ux_file_hash_owner,priority:2"`
	Size       int64          `json:"size"        gorm:"not null"`
	UploadedAt time.Time      `json:"uploaded_at"`
	DeletedAt  gorm.DeletedAt `json:"-"           gorm:"index"`
}

// TableName returns the database table name for FileRecord.
func (FileRecord) TableName() string { return "files" }

// AdvancedSettings is an immutable value describing how input files are
// parsed before charge calculation. Rows are deduplicated by a uniqueness
// constraint on the triple, so two calculation sets with equal settings share
// one row.
type AdvancedSettings struct {
	ID              string `json:"id"               gorm:"type:char(36);primaryKey"`
	ReadHetatm      bool   `json:"read_hetatm"      gorm:"not null;uniqueIndex:ux_settings_values,priority:1"`
	IgnoreWater     bool   `json:"ignore_water"     gorm:"not null;uniqueIndex:ux_settings_values,priority:2"`
	PermissiveTypes bool   `json:"permissive_types" gorm:"not null;uniqueIndex:ux_settings_values,priority:3"`
}

// TableName returns the database table name for AdvancedSettings.
func (AdvancedSettings) TableName() string { return "advanced_settings" }

// CalculationConfig is an immutable (method, parameters) pair, deduplicated by
// a uniqueness constraint. Parameters is the empty string for parameter-free
// methods: a NULL column would compare distinct under SQLite unique indexes
// and allow duplicate parameter-free rows, which in turn would break the
// calculation cache key (it is keyed on config id).
type CalculationConfig struct {
	ID         string `json:"id"         gorm:"type:char(36);primaryKey"`
	Method     string `json:"method"     gorm:"type:varchar(32);not null;uniqueIndex:ux_config_values,priority:1"`
	Parameters string `json:"parameters" gorm:"type:varchar(64);not null;uniqueIndex:ux_config_values,priority:2"`
}

// TableName returns the database table name for CalculationConfig.
func (CalculationConfig) TableName() string { return "calculation_configs" }

// ParametersPtr returns the parameter-set name, nil for parameter-free
// methods. API views use the pointer form so parameter-free configs serialize
// as null rather than "".
func (c CalculationConfig) ParametersPtr() *string {
	if c.Parameters == "" {
		return nil
	}
	p := c.Parameters
	return &p
}

// MoleculeSetStats holds cached metadata about the molecules parsed from a
// file. It is computed once per distinct content hash, independently of any
// calculation config, and never mutated afterwards.
type MoleculeSetStats struct {
	FileHash       string          `json:"file_hash"        gorm:"type:varchar(64);primaryKey"`
	TotalMolecules int             `json:"total_molecules"  gorm:"not null"`
	TotalAtoms     int             `json:"total_atoms"      gorm:"not null"`
	AtomTypeCounts []AtomTypeCount `json:"atom_type_counts" gorm:"foreignKey:FileHash;references:FileHash;constraint:OnDelete:CASCADE"`
}

// TableName returns the database table name for MoleculeSetStats.
func (MoleculeSetStats) TableName() string { return "molecule_set_stats" }

// AtomTypeCount is one row of the atom-type histogram of a molecule set
// (element symbol -> number of atoms).
type AtomTypeCount struct {
	ID       string `json:"-"      gorm:"type:char(36);primaryKey"`
	FileHash string `json:"-"      gorm:"type:varchar(64);not null;index"`
	Symbol   string `json:"symbol" gorm:"type:varchar(8);not null"`
	Count    int    `json:"count"  gorm:"not null"`
}

// TableName returns the database table name for AtomTypeCount.
func (AtomTypeCount) TableName() string { return "atom_type_counts" }

// Calculation is the atomic cached unit: the charges computed for one file
// under one config and one settings value. At most one row exists for a given
// (file_hash, config, settings) tuple; that composite key is the cache key.
// Calculations are created once computed, never updated in place, and removed
// only when their owning set is deleted.
type Calculation struct {
	ID         string                      `json:"id"        gorm:"type:char(36);primaryKey"`
	SetID      string                      `json:"-"         gorm:"type:char(36);not null;index"`
	FileName   string                      `json:"file"      gorm:"type:varchar(255);not null"`
	FileHash   string                      `json:"file_hash" gorm:"type:varchar(64);not null;uniqueIndex:ux_calc_cache_key,priority:1"`
	Charges    datatypes.JSONType[Charges] `json:"charges"   gorm:"not null"`
	ConfigID   string                      `json:"-"         gorm:"type:char(36);not null;uniqueIndex:ux_calc_cache_key,priority:2"`
	SettingsID string                      `json:"-"         gorm:"type:char(36);not null;uniqueIndex:ux_calc_cache_key,priority:3"`
	CreatedAt  time.Time                   `json:"created_at"`

	// Config and Settings are shared value rows, never owned by the
	// calculation. The owning set cascades deletes down to here.
	Set      CalculationSet    `json:"-" gorm:"foreignKey:SetID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
	Config   CalculationConfig `json:"-" gorm:"foreignKey:ConfigID;references:ID"`
	Settings AdvancedSettings  `json:"-" gorm:"foreignKey:SettingsID;references:ID"`
}

// TableName returns the database table name for Calculation.
func (Calculation) TableName() string { return "calculations" }

// CalculationSet is a named computation batch. It exclusively owns its
// Calculations (cascade delete) and shares configs, settings, and molecule
// stats with other sets.
type CalculationSet struct {
	ID         string    `json:"id"      gorm:"type:char(36);primaryKey"`
	UserID     string    `json:"user_id" gorm:"type:varchar(64);not null;index"`
	SettingsID string    `json:"-"       gorm:"type:char(36);not null"`
	CreatedAt  time.Time `json:"created_at"`

	Settings     AdvancedSettings    `json:"settings"     gorm:"foreignKey:SettingsID;references:ID"`
	Configs      []CalculationConfig `json:"configs"      gorm:"many2many:calculation_set_configs"`
	Stats        []MoleculeSetStats  `json:"stats"        gorm:"many2many:calculation_set_stats"`
	Calculations []Calculation       `json:"calculations" gorm:"foreignKey:SetID;references:ID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE"`
}

// TableName returns the database table name for CalculationSet.
func (CalculationSet) TableName() string { return "calculation_sets" }
