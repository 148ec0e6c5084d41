// Package services – ChargeService
//
// This file implements ChargeService, the application-level component that
// owns partial-charge computation batches. It resolves file hashes to stored
// files, partitions the requested (config, file) pairs into cache hits served
// from the store and misses dispatched to the charge engine under a global
// concurrency limiter, and persists new results transactionally alongside
// their configuration, associated with a calculation set.
//
// The persistent store is the single source of truth for deduplication: at
// most one Calculation row exists per (file_hash, method, parameters,
// settings) tuple. Two concurrent batches may both miss the cache and both
// compute; the loser of the insert race reuses the winner's row. There is no
// in-flight lock table — duplicate work is acceptable, duplicate rows are not.
//
// Observability: all public methods are OpenTelemetry-instrumented; spans
// include computation/user identifiers and batch sizes where applicable.
package services

import (
	"context"
	"errors"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	cache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/acctwo/charges-backend/internal/chem"
	"github.com/acctwo/charges-backend/internal/domain"
	"github.com/acctwo/charges-backend/internal/repo"
	"github.com/acctwo/charges-backend/internal/storage"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// DefaultMaxConcurrent is the default capacity of the global limiter gating
// charge-engine invocations across an entire batch.
const DefaultMaxConcurrent = 4

// SettingsValue is the caller-facing advanced-settings triple shared by every
// config of a computation.
type SettingsValue struct {
	ReadHetatm      bool `json:"read_hetatm"`
	IgnoreWater     bool `json:"ignore_water"`
	PermissiveTypes bool `json:"permissive_types"`
}

// parseOptions maps the settings triple onto engine parse options.
func (v SettingsValue) parseOptions() chem.ParseOptions {
	return chem.ParseOptions{
		ReadHetatm:      v.ReadHetatm,
		IgnoreWater:     v.IgnoreWater,
		PermissiveTypes: v.PermissiveTypes,
	}
}

// ConfigValue is the caller-facing (method, parameters) pair. Parameters is
// nil for parameter-free methods. An empty Method asks the service to select
// the most suitable method for the batch.
type ConfigValue struct {
	Method     string  `json:"method"`
	Parameters *string `json:"parameters"`
}

// WorkItem pairs one config with the file hashes it should be applied to.
// The slice order of a batch's work items and of each item's Files is the
// order results are returned in.
type WorkItem struct {
	Config ConfigValue `json:"config"`
	Files  []string    `json:"files"`
}

// FileResult is the per-file outcome within one config pass. Exactly one of
// (Charges, Error) is populated.
type FileResult struct {
	File          string         `json:"file"`
	FileHash      string         `json:"file_hash"`
	CalculationID string         `json:"calculation_id,omitempty"`
	Charges       domain.Charges `json:"charges,omitempty"`
	Error         string         `json:"error,omitempty"`
}

// CalculationResult groups the per-file calculations of one config pass.
type CalculationResult struct {
	Config       ConfigValue  `json:"config"`
	Calculations []FileResult `json:"calculations"`
}

// SuitableMethods is the intersection of methods (and their parameter sets)
// applicable to every file of a batch. Methods preserves first-sighting
// order; Parameters lists only parameter sets valid for all files.
type SuitableMethods struct {
	Methods    []string            `json:"methods"`
	Parameters map[string][]string `json:"parameters"`
}

// ChargeService coordinates charge computation, caching, and suitability
// resolution. Construct with NewChargeService or as a struct literal (the
// limiter is initialized lazily from MaxConcurrent).
type ChargeService struct {
	// DB is the GORM handle used for persistence.
	DB *gorm.DB
	// Engine is the charge-calculation capability.
	Engine chem.Engine
	// Store resolves file hashes to stored files.
	Store *storage.Store

	// MaxConcurrent caps concurrent engine invocations batch-wide. Values
	// <= 0 default to DefaultMaxConcurrent.
	MaxConcurrent int

	// Suitability caches suitable-method responses per (owner, files) for a
	// short TTL; nil disables caching.
	Suitability *cache.Cache

	semOnce sync.Once
	sem     *semaphore.Weighted
}

// NewChargeService constructs a ChargeService with the given limiter capacity
// and a suitability cache with the given TTL (0 disables caching).
func NewChargeService(db *gorm.DB, engine chem.Engine, store *storage.Store, maxConcurrent int, suitabilityTTL time.Duration) *ChargeService {
	s := &ChargeService{
		DB:            db,
		Engine:        engine,
		Store:         store,
		MaxConcurrent: maxConcurrent,
	}
	if suitabilityTTL > 0 {
		s.Suitability = cache.New(suitabilityTTL, 2*suitabilityTTL)
	}
	return s
}

// limiter returns the global engine-invocation semaphore, initializing it on
// first use so struct-literal construction works in tests.
func (s *ChargeService) limiter() *semaphore.Weighted {
	s.semOnce.Do(func() {
		n := s.MaxConcurrent
		if n <= 0 {
			n = DefaultMaxConcurrent
		}
		s.sem = semaphore.NewWeighted(int64(n))
	})
	return s.sem
}

// Calculate runs a computation batch: for each (config, files) work item it
// serves already-computed calculations from the store and dispatches the rest
// to the engine under the global limiter, then persists new results and their
// config transactionally, attached to the calculation set identified by
// computationID (created on first use, reused on resubmission).
//
// The returned results are grouped by config in work order; within a config,
// files appear in input order. Files whose hash does not resolve to a stored
// file and files the engine rejects are included with an error marker rather
// than aborting the pass.
func (s *ChargeService) Calculate(ctx context.Context, owner, computationID string, settings SettingsValue, work []WorkItem) (string, []CalculationResult, error) {
	tr := otel.Tracer("services/ChargeService")
	ctx, span := tr.Start(ctx, "Calculate",
		trace.WithAttributes(
			attribute.String("computation.id", computationID),
			attribute.String("user.id", owner),
			attribute.Int("work.configs", len(work)),
		),
	)
	defer span.End()

	if len(work) == 0 {
		return "", nil, ErrEmptyWork
	}
	if computationID == "" {
		computationID = uuid.NewString()
	}

	work, err := s.resolveDefaultMethod(ctx, owner, settings, work)
	if err != nil {
		return "", nil, err
	}

	settingsRow, err := repo.GetOrCreateSettings(ctx, s.DB, settings.ReadHetatm, settings.IgnoreWater, settings.PermissiveTypes)
	if err != nil {
		return "", nil, err
	}

	set, err := s.ensureSet(ctx, owner, computationID, settingsRow.ID)
	if err != nil {
		return "", nil, err
	}

	results := make([]CalculationResult, len(work))
	g, gctx := errgroup.WithContext(ctx)
	for i, item := range work {
		g.Go(func() error {
			res, err := s.runPass(gctx, owner, set, settingsRow, settings, item)
			if err != nil {
				return err
			}
			results[i] = *res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return "", nil, err
	}
	return computationID, results, nil
}

// resolveDefaultMethod replaces work items carrying an empty method with the
// first method suitable for every file of the batch (and its first suitable
// parameter set, when the method is parameterized).
func (s *ChargeService) resolveDefaultMethod(ctx context.Context, owner string, settings SettingsValue, work []WorkItem) ([]WorkItem, error) {
	needsDefault := false
	for _, item := range work {
		if item.Config.Method == "" {
			needsDefault = true
			break
		}
	}
	if !needsDefault {
		return work, nil
	}

	all := make([]string, 0)
	seen := make(map[string]struct{})
	for _, item := range work {
		for _, h := range item.Files {
			if _, ok := seen[h]; ok {
				continue
			}
			seen[h] = struct{}{}
			all = append(all, h)
		}
	}

	sm, err := s.Suitable(ctx, owner, all, settings.PermissiveTypes)
	if err != nil {
		return nil, err
	}
	if len(sm.Methods) == 0 {
		return nil, ErrNoSuitableMethod
	}
	selected := ConfigValue{Method: sm.Methods[0]}
	if params := sm.Parameters[selected.Method]; len(params) > 0 {
		p := params[0]
		selected.Parameters = &p
	}

	out := make([]WorkItem, len(work))
	copy(out, work)
	for i := range out {
		if out[i].Config.Method == "" {
			out[i].Config = selected
		}
	}
	return out, nil
}

// ensureSet loads the calculation set for id or creates it, verifying the
// owner on resubmission.
func (s *ChargeService) ensureSet(ctx context.Context, owner, id, settingsID string) (*domain.CalculationSet, error) {
	set, err := repo.GetSet(ctx, s.DB, id)
	if err != nil {
		return nil, err
	}
	if set == nil {
		set, err = repo.CreateSet(ctx, s.DB, id, owner, settingsID)
		if errors.Is(err, repo.ErrConflict) {
			// Another request created it between our read and insert.
			set, err = repo.GetSet(ctx, s.DB, id)
		}
		if err != nil {
			return nil, err
		}
	}
	if set == nil || set.UserID != owner {
		return nil, ErrComputationNotFound
	}
	return set, nil
}

// fileOutcome carries the per-file state of a pass between the compute and
// persist phases.
type fileOutcome struct {
	res   FileResult
	calc  *domain.Calculation      // pending insert when newly computed
	stats *domain.MoleculeSetStats // pending insert when computed this pass
}

// runPass executes one (config, files) work item: cache lookups, bounded
// engine computation for misses, then a single transaction persisting new
// calculations, the config manifest entry, and the stats associations.
func (s *ChargeService) runPass(ctx context.Context, owner string, set *domain.CalculationSet, settingsRow *domain.AdvancedSettings, settings SettingsValue, item WorkItem) (*CalculationResult, error) {
	outcomes := make([]fileOutcome, len(item.Files))

	g, gctx := errgroup.WithContext(ctx)
	for i, hash := range item.Files {
		g.Go(func() error {
			out, err := s.computeOne(gctx, owner, settingsRow, settings, item.Config, hash)
			if err != nil {
				return err
			}
			outcomes[i] = *out
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// A cancelled batch must not persist partial results past the point
	// cancellation was observed.
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		cfg, err := repo.GetOrCreateConfig(ctx, tx, item.Config.Method, item.Config.Parameters)
		if err != nil {
			return err
		}
		if err := repo.AddSetConfig(ctx, tx, set.ID, cfg.ID); err != nil {
			return err
		}

		for i := range outcomes {
			o := &outcomes[i]
			if o.stats != nil {
				if _, err := repo.CreateStats(ctx, tx, o.stats); err != nil {
					return err
				}
			}
			if o.calc != nil {
				o.calc.SetID = set.ID
				o.calc.ConfigID = cfg.ID
				if err := repo.CreateCalculation(ctx, tx, o.calc); err != nil {
					if !errors.Is(err, repo.ErrConflict) {
						return err
					}
					// A concurrent batch stored the same tuple first; reuse it.
					won, gerr := repo.GetCalculation(ctx, tx, repo.CalculationKey{
						FileHash:        o.calc.FileHash,
						Method:          item.Config.Method,
						Parameters:      item.Config.Parameters,
						ReadHetatm:      settings.ReadHetatm,
						IgnoreWater:     settings.IgnoreWater,
						PermissiveTypes: settings.PermissiveTypes,
					})
					if gerr != nil {
						return gerr
					}
					o.calc = won
				}
				o.res.CalculationID = o.calc.ID
				o.res.Charges = o.calc.Charges.Data()
			}
			if o.res.Error == "" && o.res.FileHash != "" {
				if err := repo.AddSetStats(ctx, tx, set.ID, o.res.FileHash); err != nil {
					return err
				}
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	res := &CalculationResult{Config: item.Config, Calculations: make([]FileResult, 0, len(outcomes))}
	for i := range outcomes {
		res.Calculations = append(res.Calculations, outcomes[i].res)
	}
	return res, nil
}

// computeOne resolves one file hash and produces its outcome: a cache hit, a
// freshly computed (unpersisted) calculation, or an error marker. Only
// infrastructure failures (store, context) propagate as errors; per-file
// resolution and engine failures are recorded in the result.
func (s *ChargeService) computeOne(ctx context.Context, owner string, settingsRow *domain.AdvancedSettings, settings SettingsValue, cfg ConfigValue, hash string) (*fileOutcome, error) {
	out := &fileOutcome{res: FileResult{FileHash: hash}}

	f, err := s.Store.Resolve(owner, hash)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			log.Warn().Str("file_hash", hash).Msg("skipping unresolved file hash")
			out.res.Error = ErrFileNotFound.Error()
			return out, nil
		}
		return nil, err
	}
	out.res.File = f.Name

	hit, err := repo.GetCalculation(ctx, s.DB, repo.CalculationKey{
		FileHash:        hash,
		Method:          cfg.Method,
		Parameters:      cfg.Parameters,
		ReadHetatm:      settings.ReadHetatm,
		IgnoreWater:     settings.IgnoreWater,
		PermissiveTypes: settings.PermissiveTypes,
	})
	if err == nil {
		out.res.CalculationID = hit.ID
		out.res.Charges = hit.Charges.Data()
		return out, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, err
	}

	// Cache miss: one limiter slot covers the load and the computation, so
	// at most MaxConcurrent engine interactions are in flight batch-wide.
	if err := s.limiter().Acquire(ctx, 1); err != nil {
		return nil, err
	}
	ms, lerr := s.Engine.Parse(ctx, f.Path, settings.parseOptions())
	var charges chem.Charges
	if lerr == nil {
		charges, lerr = s.Engine.Calculate(ctx, ms, cfg.Method, cfg.Parameters)
	}
	s.limiter().Release(1)

	if lerr != nil {
		log.Warn().
			Str("file", f.Name).
			Str("method", cfg.Method).
			Err(lerr).
			Msg("charge calculation failed for file")
		out.res.Error = lerr.Error()
		return out, nil
	}

	if existing, err := repo.GetStats(ctx, s.DB, hash); err != nil {
		return nil, err
	} else if existing == nil {
		out.stats = statsFromMoleculeSet(hash, ms)
	}

	out.calc = &domain.Calculation{
		ID:         uuid.NewString(),
		FileName:   f.Name,
		FileHash:   hash,
		SettingsID: settingsRow.ID,
		Charges:    datatypes.NewJSONType(domain.Charges(charges)),
		CreatedAt:  time.Now().UTC(),
	}
	return out, nil
}

// Suitable computes the intersection of (method, parameter-set) pairs valid
// for every resolvable file in hashes. Unresolvable hashes are skipped with a
// warning and excluded from the denominator. Responses are cached per
// (owner, permissive, files) when a suitability cache is configured.
func (s *ChargeService) Suitable(ctx context.Context, owner string, hashes []string, permissiveTypes bool) (*SuitableMethods, error) {
	tr := otel.Tracer("services/ChargeService")
	ctx, span := tr.Start(ctx, "Suitable",
		trace.WithAttributes(
			attribute.String("user.id", owner),
			attribute.Int("files", len(hashes)),
		),
	)
	defer span.End()

	distinct := make([]string, 0, len(hashes))
	seen := make(map[string]struct{}, len(hashes))
	for _, h := range hashes {
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		distinct = append(distinct, h)
	}

	key := suitabilityKey(owner, permissiveTypes, distinct)
	if s.Suitability != nil {
		if v, ok := s.Suitability.Get(key); ok {
			if sm, ok := v.(*SuitableMethods); ok {
				return sm, nil
			}
		}
	}

	opts := chem.ParseOptions{ReadHetatm: true, PermissiveTypes: permissiveTypes}

	methodCount := make(map[string]int)
	methodOrder := make([]string, 0)
	paramCount := make(map[string]map[string]int)
	paramOrder := make(map[string][]string)
	examined := 0

	for _, h := range distinct {
		f, err := s.Store.Resolve(owner, h)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				log.Warn().Str("file_hash", h).Msg("skipping unresolved file hash in suitability check")
				continue
			}
			return nil, err
		}
		ms, err := s.Engine.Parse(ctx, f.Path, opts)
		if err != nil {
			log.Warn().Str("file", f.Name).Err(err).Msg("skipping unparsable file in suitability check")
			continue
		}
		pairs, err := s.Engine.SuitableMethods(ctx, ms)
		if err != nil {
			return nil, err
		}
		examined++

		for _, p := range pairs {
			if methodCount[p.Method] == 0 {
				methodOrder = append(methodOrder, p.Method)
			}
			methodCount[p.Method]++
			for _, param := range p.Parameters {
				if paramCount[p.Method] == nil {
					paramCount[p.Method] = make(map[string]int)
				}
				if paramCount[p.Method][param] == 0 {
					paramOrder[p.Method] = append(paramOrder[p.Method], param)
				}
				paramCount[p.Method][param]++
			}
		}
	}

	out := &SuitableMethods{Methods: []string{}, Parameters: map[string][]string{}}
	for _, m := range methodOrder {
		if examined == 0 || methodCount[m] != examined {
			continue
		}
		out.Methods = append(out.Methods, m)
		params := make([]string, 0)
		for _, p := range paramOrder[m] {
			if paramCount[m][p] == examined {
				params = append(params, p)
			}
		}
		if len(params) > 0 {
			out.Parameters[m] = params
		}
	}

	if s.Suitability != nil {
		s.Suitability.SetDefault(key, out)
	}
	return out, nil
}

// SuitableForComputation resolves suitability over the input files recorded
// on an existing computation's stats manifest.
func (s *ChargeService) SuitableForComputation(ctx context.Context, owner, computationID string) (*SuitableMethods, error) {
	set, err := repo.GetSet(ctx, s.DB, computationID)
	if err != nil {
		return nil, err
	}
	if set == nil || set.UserID != owner {
		return nil, ErrComputationNotFound
	}
	hashes := make([]string, 0, len(set.Stats))
	for _, st := range set.Stats {
		hashes = append(hashes, st.FileHash)
	}
	permissive := set.Settings.PermissiveTypes
	return s.Suitable(ctx, owner, hashes, permissive)
}

// Methods lists every method identifier the engine supports.
func (s *ChargeService) Methods(ctx context.Context) ([]string, error) {
	return s.Engine.AvailableMethods(ctx)
}

// Parameters lists the parameter sets published for one method.
func (s *ChargeService) Parameters(ctx context.Context, method string) ([]string, error) {
	return s.Engine.AvailableParameters(ctx, method)
}

// Info returns the molecule statistics for each file hash, computing and
// storing them on first request. Stats are computed once per distinct hash
// and never mutated afterwards.
func (s *ChargeService) Info(ctx context.Context, owner string, hashes []string) ([]domain.MoleculeSetStats, error) {
	tr := otel.Tracer("services/ChargeService")
	ctx, span := tr.Start(ctx, "Info",
		trace.WithAttributes(
			attribute.String("user.id", owner),
			attribute.Int("files", len(hashes)),
		),
	)
	defer span.End()

	out := make([]domain.MoleculeSetStats, 0, len(hashes))
	for _, h := range hashes {
		existing, err := repo.GetStats(ctx, s.DB, h)
		if err != nil {
			return nil, err
		}
		if existing != nil {
			out = append(out, *existing)
			continue
		}

		f, err := s.Store.Resolve(owner, h)
		if err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				return nil, ErrFileNotFound
			}
			return nil, err
		}
		ms, err := s.Engine.Parse(ctx, f.Path, chem.ParseOptions{ReadHetatm: true})
		if err != nil {
			return nil, ErrLoadFailed
		}
		stored, err := repo.CreateStats(ctx, s.DB, statsFromMoleculeSet(h, ms))
		if err != nil {
			return nil, err
		}
		out = append(out, *stored)
	}
	return out, nil
}

// DeleteComputation removes a computation: its calculation set (cascading to
// owned calculations) and its artifact directory. Deleting a computation that
// does not exist or belongs to someone else fails with
// ErrComputationNotFound.
func (s *ChargeService) DeleteComputation(ctx context.Context, owner, computationID string) error {
	tr := otel.Tracer("services/ChargeService")
	ctx, span := tr.Start(ctx, "DeleteComputation",
		trace.WithAttributes(
			attribute.String("computation.id", computationID),
			attribute.String("user.id", owner),
		),
	)
	defer span.End()

	set, err := repo.GetSet(ctx, s.DB, computationID)
	if err != nil {
		return err
	}
	if set == nil || set.UserID != owner {
		return ErrComputationNotFound
	}
	if err := repo.DeleteSet(ctx, s.DB, computationID); err != nil {
		return err
	}
	return s.Store.RemoveComputation(owner, computationID)
}

// statsFromMoleculeSet builds the persistent stats row for a parsed file.
func statsFromMoleculeSet(hash string, ms *chem.MoleculeSet) *domain.MoleculeSetStats {
	counts := chem.NormalizeCounts(ms.AtomCounts)
	symbols := make([]string, 0, len(counts))
	for sym := range counts {
		symbols = append(symbols, sym)
	}
	sort.Strings(symbols)

	rows := make([]domain.AtomTypeCount, 0, len(symbols))
	for _, sym := range symbols {
		rows = append(rows, domain.AtomTypeCount{
			ID:       uuid.NewString(),
			FileHash: hash,
			Symbol:   sym,
			Count:    counts[sym],
		})
	}
	return &domain.MoleculeSetStats{
		FileHash:       hash,
		TotalMolecules: len(ms.Names),
		TotalAtoms:     ms.TotalAtoms,
		AtomTypeCounts: rows,
	}
}

// suitabilityKey builds the cache key for a suitability response.
func suitabilityKey(owner string, permissive bool, hashes []string) string {
	sorted := make([]string, len(hashes))
	copy(sorted, hashes)
	sort.Strings(sorted)
	return owner + "|" + strconv.FormatBool(permissive) + "|" + strings.Join(sorted, ",")
}
