// Package services – ComputationService
//
// This file implements ComputationService, which materializes read views of
// stored calculation sets: a full per-computation view (settings, config
// manifest, input-file statistics, and results grouped by config) and a
// paginated listing of a user's non-empty computations.
//
// Service-level errors (e.g., ErrComputationNotFound) are returned for
// predictable cases so handlers can map them to HTTP results consistently.
package services

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/acctwo/charges-backend/internal/domain"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// CalculationSetRepo defines the repository contract required by
// ComputationService. Implementations are responsible for persistence of
// calculation-set aggregates.
type CalculationSetRepo interface {
	// GetSet fetches a fully-preloaded calculation set, or (nil, nil) when
	// the id does not exist.
	GetSet(ctx context.Context, db *gorm.DB, id string) (*domain.CalculationSet, error)

	// CountSets returns the number of non-empty sets owned by the user.
	CountSets(ctx context.Context, db *gorm.DB, userID string) (int64, error)

	// ListSetsPage returns a page of the user's non-empty sets, newest first.
	ListSetsPage(ctx context.Context, db *gorm.DB, userID string, offset, limit int) ([]domain.CalculationSet, error)

	// SetsStats returns aggregate metadata (count, latest CreatedAt) for
	// ETag generation on list endpoints.
	SetsStats(ctx context.Context, db *gorm.DB, userID string) (int64, *time.Time, error)
}

// FileStats is the per-file statistics block of a computation view.
type FileStats struct {
	FileHash       string         `json:"file_hash"`
	TotalMolecules int            `json:"total_molecules"`
	TotalAtoms     int            `json:"total_atoms"`
	AtomTypeCounts map[string]int `json:"atom_type_counts"`
}

// ComputationView is the full materialized view of one calculation set.
type ComputationView struct {
	ID        string              `json:"id"`
	Settings  SettingsValue       `json:"settings"`
	Configs   []ConfigValue       `json:"configs"`
	Files     []FileStats         `json:"files"`
	Results   []CalculationResult `json:"results"`
	CreatedAt time.Time           `json:"created_at"`
}

// ComputationPreview is the compact listing entry for one calculation set.
type ComputationPreview struct {
	ID           string    `json:"id"`
	Methods      []string  `json:"methods"`
	Files        []string  `json:"files"`
	Calculations int       `json:"calculations"`
	CreatedAt    time.Time `json:"created_at"`
}

// ComputationService provides read access to stored calculation sets.
type ComputationService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Repo is the calculation-set repository used by this service.
	Repo CalculationSetRepo
}

// NewComputationService constructs a ComputationService.
func NewComputationService(db *gorm.DB, r CalculationSetRepo) *ComputationService {
	return &ComputationService{DB: db, Repo: r}
}

// Get returns the full view of one computation, ensuring it exists and
// belongs to the given user.
func (s *ComputationService) Get(ctx context.Context, userID, computationID string) (*ComputationView, error) {
	tr := otel.Tracer("services/ComputationService")
	ctx, span := tr.Start(ctx, "Get",
		trace.WithAttributes(
			attribute.String("computation.id", computationID),
			attribute.String("user.id", userID),
		),
	)
	defer span.End()

	set, err := s.Repo.GetSet(ctx, s.DB, computationID)
	if err != nil {
		return nil, err
	}
	if set == nil || set.UserID != userID {
		return nil, ErrComputationNotFound
	}
	return viewFromSet(set), nil
}

// ListPage returns a page of the user's computations (paginated previews).
// It applies defaults for invalid page/pageSize and returns total count.
func (s *ComputationService) ListPage(ctx context.Context, userID string, page, pageSize int) ([]ComputationPreview, int64, error) {
	tr := otel.Tracer("services/ComputationService")
	ctx, span := tr.Start(ctx, "ListPage",
		trace.WithAttributes(
			attribute.String("user.id", userID),
			attribute.Int("page", page),
			attribute.Int("page_size", pageSize),
		),
	)
	defer span.End()

	if page < 1 {
		page = 1
	}
	if pageSize <= 0 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	total, err := s.Repo.CountSets(ctx, s.DB, userID)
	if err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []ComputationPreview{}, 0, nil
	}

	sets, err := s.Repo.ListSetsPage(ctx, s.DB, userID, offset, pageSize)
	if err != nil {
		return nil, 0, err
	}
	out := make([]ComputationPreview, 0, len(sets))
	for i := range sets {
		out = append(out, previewFromSet(&sets[i]))
	}
	return out, total, nil
}

// Stats returns aggregate listing metadata used for ETag generation.
func (s *ComputationService) Stats(ctx context.Context, userID string) (int64, *time.Time, error) {
	return s.Repo.SetsStats(ctx, s.DB, userID)
}

// viewFromSet flattens a preloaded calculation set into its view form.
// Results are grouped by the set's config manifest in manifest order; within
// a config, calculations follow their stored order.
func viewFromSet(set *domain.CalculationSet) *ComputationView {
	v := &ComputationView{
		ID: set.ID,
		Settings: SettingsValue{
			ReadHetatm:      set.Settings.ReadHetatm,
			IgnoreWater:     set.Settings.IgnoreWater,
			PermissiveTypes: set.Settings.PermissiveTypes,
		},
		Configs:   make([]ConfigValue, 0, len(set.Configs)),
		Files:     make([]FileStats, 0, len(set.Stats)),
		Results:   make([]CalculationResult, 0, len(set.Configs)),
		CreatedAt: set.CreatedAt,
	}

	for _, st := range set.Stats {
		counts := make(map[string]int, len(st.AtomTypeCounts))
		for _, c := range st.AtomTypeCounts {
			counts[c.Symbol] = c.Count
		}
		v.Files = append(v.Files, FileStats{
			FileHash:       st.FileHash,
			TotalMolecules: st.TotalMolecules,
			TotalAtoms:     st.TotalAtoms,
			AtomTypeCounts: counts,
		})
	}

	byConfig := make(map[string][]FileResult, len(set.Configs))
	for _, c := range set.Calculations {
		byConfig[c.ConfigID] = append(byConfig[c.ConfigID], FileResult{
			File:          c.FileName,
			FileHash:      c.FileHash,
			CalculationID: c.ID,
			Charges:       c.Charges.Data(),
		})
	}

	for _, cfg := range set.Configs {
		cv := ConfigValue{Method: cfg.Method, Parameters: cfg.ParametersPtr()}
		v.Configs = append(v.Configs, cv)
		v.Results = append(v.Results, CalculationResult{
			Config:       cv,
			Calculations: byConfig[cfg.ID],
		})
	}
	return v
}

// previewFromSet reduces a preloaded calculation set to its listing entry.
func previewFromSet(set *domain.CalculationSet) ComputationPreview {
	p := ComputationPreview{
		ID:           set.ID,
		Methods:      make([]string, 0, len(set.Configs)),
		Files:        make([]string, 0, len(set.Calculations)),
		Calculations: len(set.Calculations),
		CreatedAt:    set.CreatedAt,
	}
	for _, cfg := range set.Configs {
		p.Methods = append(p.Methods, cfg.Method)
	}
	seen := make(map[string]struct{}, len(set.Calculations))
	for _, c := range set.Calculations {
		if _, ok := seen[c.FileName]; ok {
			continue
		}
		seen[c.FileName] = struct{}{}
		p.Files = append(p.Files, c.FileName)
	}
	return p
}
