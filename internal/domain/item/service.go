// Package item orchestrates the read and write pipelines over registered
// models: filter validation, counting, cursor advancement, query translation
// and execution, display mapping and tree aggregation on the read side;
// validation, auto field maintenance and write reporting on the write side.
package item

import (
	"context"
	"time"

	"publica/internal/core/apperror"
	"publica/internal/core/id"
	"publica/internal/domain/cursor"
	"publica/internal/domain/filter"
	"publica/internal/domain/mapping"
	"publica/internal/domain/render"
	"publica/internal/infrastructure/storage"
	"publica/internal/metadata"
	"publica/pkg/logger"
)

// Service runs the item pipelines for every registered model against one
// storage engine.
type Service struct {
	registry *metadata.Registry
	store    storage.Translator
	log      *logger.Logger

	aggregators map[string]*render.Aggregator
}

// Config tunes the service.
type Config struct {
	// RecentWindow controls the recent row flag. Zero uses the default.
	RecentWindow time.Duration

	// ResolveLabel supplies display labels for item references. Nil falls
	// back to raw ids.
	ResolveLabel mapping.LabelResolver
}

// NewService builds the per-model display tables and aggregators up front so
// that request handling never constructs them.
func NewService(registry *metadata.Registry, store storage.Translator, log *logger.Logger, cfg Config) (*Service, error) {
	s := &Service{
		registry:    registry,
		store:       store,
		log:         log.WithComponent("item"),
		aggregators: make(map[string]*render.Aggregator),
	}
	for _, def := range registry.List() {
		table, err := mapping.NewDense(def, registry.Atoms(), cfg.ResolveLabel)
		if err != nil {
			return nil, apperror.NewInternal(err)
		}
		s.aggregators[def.Name] = render.NewAggregator(table, cfg.RecentWindow)
	}
	return s, nil
}

// EnsureCollections prepares backing storage for every registered model.
func (s *Service) EnsureCollections(ctx context.Context) error {
	for _, def := range s.registry.List() {
		if err := s.store.EnsureCollection(ctx, def); err != nil {
			return err
		}
	}
	return nil
}

func (s *Service) model(name string) (*metadata.ModelDef, *render.Aggregator, error) {
	def, ok := s.registry.Get(name)
	if !ok {
		return nil, nil, apperror.NewNotFound("model", name)
	}
	return def, s.aggregators[name], nil
}

// effectiveFilter narrows the submitted filter to active items unless the
// cursor asks for inactive ones too.
func effectiveFilter(f filter.Filter, includeInactive bool) filter.Filter {
	if includeInactive {
		return f
	}
	for _, e := range f {
		if e.Field == metadata.FieldActive {
			return f
		}
	}
	return f.With(metadata.FieldActive, filter.Eq, true)
}

// Find runs the page pipeline: validate the filter, count the matches,
// advance the cursor, translate and execute, then map and aggregate.
func (s *Service) Find(ctx context.Context, model string, cur cursor.Cursor) (*render.Tree, error) {
	def, agg, err := s.model(model)
	if err != nil {
		return nil, err
	}
	if err := cur.Filter.Validate(def.HasField); err != nil {
		return nil, err
	}

	eff := effectiveFilter(cur.Filter, cur.IncludeInactive)
	count, err := s.store.Count(ctx, def, eff)
	if err != nil {
		return nil, err
	}
	cur = cur.Advance(count)

	q, err := s.store.Translate(def, eff, cur)
	if err != nil {
		return nil, err
	}
	recs, err := s.store.Execute(ctx, q)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	tree, err := agg.Aggregate(recs, agg.RecentFlags(recs, now), cur)
	if err != nil {
		return nil, err
	}
	s.log.WithContext(ctx).Debugw("page rendered",
		"model", model, "skip", cur.Skip, "count", count, "items", len(recs))
	return tree, nil
}

// Get renders a single item as a one-node tree.
func (s *Service) Get(ctx context.Context, model, itemID string) (*render.Tree, error) {
	def, agg, err := s.model(model)
	if err != nil {
		return nil, err
	}
	rec, err := s.store.Get(ctx, def, itemID)
	if err != nil {
		return nil, err
	}
	return agg.Item(rec, time.Now().UTC()), nil
}

// Raw returns the stored document unmapped, for edit forms.
func (s *Service) Raw(ctx context.Context, model, itemID string) (storage.RawRecord, error) {
	def, _, err := s.model(model)
	if err != nil {
		return nil, err
	}
	return s.store.Get(ctx, def, itemID)
}

// Create validates and stores a new document. Auto fields are set here; a
// document failing validation never reaches the engine.
func (s *Service) Create(ctx context.Context, model string, doc map[string]any) (storage.WriteReport, error) {
	def, _, err := s.model(model)
	if err != nil {
		return storage.NotWritten("unknown model"), err
	}
	rec, err := coerce(def, s.registry.Atoms(), doc)
	if err != nil {
		return storage.NotWritten(err.Error()), err
	}
	if err := def.Validate(rec); err != nil {
		return storage.NotWritten("validation failed"), err
	}

	now := time.Now().UTC()
	rec[metadata.FieldID] = id.NewString()
	rec[metadata.FieldCtime] = now
	rec[metadata.FieldMtime] = now
	rec[metadata.FieldActive] = true

	report, err := s.store.Insert(ctx, def, rec)
	if err == nil {
		s.log.WithContext(ctx).Infow("item created", "model", model, "id", report.ID)
	}
	return report, err
}

// Replace validates and overwrites a whole document, keeping the stored
// identity fields (id, ctime, active).
func (s *Service) Replace(ctx context.Context, model, itemID string, doc map[string]any) (storage.WriteReport, error) {
	def, _, err := s.model(model)
	if err != nil {
		return storage.NotWritten("unknown model"), err
	}
	old, err := s.store.Get(ctx, def, itemID)
	if err != nil {
		return storage.NotWritten("item not found"), err
	}
	rec, err := coerce(def, s.registry.Atoms(), doc)
	if err != nil {
		return storage.NotWritten(err.Error()), err
	}
	if err := def.Validate(rec); err != nil {
		return storage.NotWritten("validation failed"), err
	}

	rec[metadata.FieldID] = itemID
	rec[metadata.FieldCtime] = old[metadata.FieldCtime]
	rec[metadata.FieldMtime] = time.Now().UTC()
	rec[metadata.FieldActive] = old[metadata.FieldActive]

	report, err := s.store.Replace(ctx, def, itemID, rec)
	if err == nil {
		s.log.WithContext(ctx).Infow("item replaced", "model", model, "id", itemID)
	}
	return report, err
}

// Update applies only the fields that differ from the stored document. The
// merged document is validated before anything is written.
func (s *Service) Update(ctx context.Context, model, itemID string, doc map[string]any) (storage.WriteReport, error) {
	def, _, err := s.model(model)
	if err != nil {
		return storage.NotWritten("unknown model"), err
	}
	old, err := s.store.Get(ctx, def, itemID)
	if err != nil {
		return storage.NotWritten("item not found"), err
	}
	next, err := coerce(def, s.registry.Atoms(), doc)
	if err != nil {
		return storage.NotWritten(err.Error()), err
	}

	changes := storage.Diff(old, next)
	delete(changes, metadata.FieldID)
	delete(changes, metadata.FieldCtime)
	if len(changes) == 0 {
		return storage.NotUpdated(itemID, 1, "nothing changed"), nil
	}

	merged := storage.Clone(old)
	for k, v := range changes {
		merged[k] = v
	}
	if err := def.Validate(merged); err != nil {
		return storage.NotWritten("validation failed"), err
	}

	changes[metadata.FieldMtime] = time.Now().UTC()
	report, err := s.store.PartialUpdate(ctx, def, itemID, changes)
	if err == nil {
		s.log.WithContext(ctx).Infow("item updated", "model", model, "id", itemID, "fields", len(changes))
	}
	return report, err
}

// Delete deactivates an item (soft delete). The document stays in storage
// and remains reachable with the include-inactive cursor flag.
func (s *Service) Delete(ctx context.Context, model, itemID string) (storage.WriteReport, error) {
	def, _, err := s.model(model)
	if err != nil {
		return storage.NotWritten("unknown model"), err
	}
	report, err := s.store.PartialUpdate(ctx, def, itemID, storage.RawRecord{
		metadata.FieldActive: false,
		metadata.FieldMtime:  time.Now().UTC(),
	})
	if err != nil {
		return report, err
	}
	if report.Outcome == storage.OutcomeUpdated {
		s.log.WithContext(ctx).Infow("item deactivated", "model", model, "id", itemID)
		return storage.Deleted(itemID), nil
	}
	return report, nil
}

// Purge removes an item physically.
func (s *Service) Purge(ctx context.Context, model, itemID string) (storage.WriteReport, error) {
	def, _, err := s.model(model)
	if err != nil {
		return storage.NotWritten("unknown model"), err
	}
	report, err := s.store.Delete(ctx, def, itemID)
	if err == nil && report.Outcome == storage.OutcomeDeleted {
		s.log.WithContext(ctx).Infow("item purged", "model", model, "id", itemID)
	}
	return report, err
}
