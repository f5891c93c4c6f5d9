package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/internal/scheduler"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
	"github.com/noah-isme/timetable-api/pkg/export"
	"github.com/noah-isme/timetable-api/pkg/jobs"
)

// GenerateJobType tags queued generator runs.
const GenerateJobType = "timetable.generate"

const generatedMessage = "Timetable generated successfully"

type courseReader interface {
	ListSchedulable(ctx context.Context) ([]models.Course, error)
}

type facultyReader interface {
	List(ctx context.Context) ([]models.Faculty, error)
}

type classroomReader interface {
	List(ctx context.Context) ([]models.Classroom, error)
}

type timetableRepository interface {
	AcquireRunLock(ctx context.Context, exec sqlx.ExtContext) error
	DeleteAll(ctx context.Context, exec sqlx.ExtContext) (int64, error)
	CreateGeneration(ctx context.Context, exec sqlx.ExtContext, generation *models.TimetableGeneration) error
	ListGenerations(ctx context.Context, limit int) ([]models.TimetableGeneration, error)
	LatestGeneration(ctx context.Context) (int, error)
	BulkInsert(ctx context.Context, exec sqlx.ExtContext, entries []models.TimetableEntry) error
	ListByGeneration(ctx context.Context, exec sqlx.ExtContext, generation int) ([]models.TimetableEntry, error)
	List(ctx context.Context, filter models.TimetableFilter) ([]models.TimetableEntry, error)
	UpdateSpan(ctx context.Context, exec sqlx.ExtContext, id string, startHour, endHour int) error
}

type txProvider interface {
	BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error)
}

type timetableCache interface {
	Get(ctx context.Context, key string, dest interface{}) bool
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration)
	Invalidate(ctx context.Context, pattern string) error
}

type jobQueue interface {
	Enqueue(job jobs.Job) error
	Status(id string) (jobs.Status, bool)
}

type csvRenderer interface {
	Render(rows []export.Row) ([]byte, error)
}

type pdfRenderer interface {
	Render(rows []export.Row, title string) ([]byte, error)
}

// TimetableServiceConfig governs generator behaviour.
type TimetableServiceConfig struct {
	SlotHours  []int
	RunTimeout time.Duration
	CacheTTL   time.Duration
}

// TimetableService runs the generator and serves the stored timetable.
type TimetableService struct {
	courses    courseReader
	faculty    facultyReader
	classrooms classroomReader
	timetables timetableRepository
	tx         txProvider
	engine     *scheduler.Engine
	cache      timetableCache
	metrics    *MetricsService
	csv        csvRenderer
	pdf        pdfRenderer
	queue      jobQueue
	validator  *validator.Validate
	logger     *zap.Logger
	cfg        TimetableServiceConfig

	runMu sync.Mutex
	phase atomic.Int32
}

// NewTimetableService wires generator dependencies.
func NewTimetableService(
	courses courseReader,
	faculty facultyReader,
	classrooms classroomReader,
	timetables timetableRepository,
	tx txProvider,
	cache timetableCache,
	metrics *MetricsService,
	validate *validator.Validate,
	logger *zap.Logger,
	cfg TimetableServiceConfig,
) *TimetableService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if cache == nil {
		cache = (*CacheService)(nil)
	}
	return &TimetableService{
		courses:    courses,
		faculty:    faculty,
		classrooms: classrooms,
		timetables: timetables,
		tx:         tx,
		engine:     scheduler.NewEngine(logger.Named("scheduler")),
		cache:      cache,
		metrics:    metrics,
		csv:        export.NewCSVExporter(),
		pdf:        export.NewPDFExporter(),
		validator:  validate,
		logger:     logger,
		cfg:        cfg,
	}
}

// AttachQueue enables asynchronous generation through the provided queue.
func (s *TimetableService) AttachQueue(queue jobQueue) {
	s.queue = queue
}

// Phase reports the phase of the run in flight, or idle.
func (s *TimetableService) Phase() scheduler.Phase {
	return scheduler.Phase(s.phase.Load())
}

func (s *TimetableService) setPhase(phase scheduler.Phase) {
	s.phase.Store(int32(phase))
}

// Generate replaces the stored timetable with a freshly generated one. Runs
// are serialised: a second caller gets GENERATION_IN_PROGRESS while one is in
// flight, and concurrent processes queue on a database advisory lock.
func (s *TimetableService) Generate(ctx context.Context) (*dto.GenerateTimetableResponse, error) {
	if !s.runMu.TryLock() {
		s.metrics.RecordGenerationRun(runResultBusy)
		return nil, appErrors.Clone(appErrors.ErrGenerationBusy, "")
	}
	defer s.runMu.Unlock()
	defer s.setPhase(scheduler.PhaseIdle)

	if s.cfg.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.RunTimeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := s.generate(ctx)
	if err != nil {
		s.metrics.RecordGenerationRun(runResultFailed)
		s.logger.Error("timetable generation failed", zap.Error(err), zap.Duration("elapsed", time.Since(start)))
		return nil, err
	}
	s.metrics.RecordGenerationRun(runResultSuccess)

	if err := s.cache.Invalidate(ctx, "*"); err != nil {
		s.logger.Warn("timetable cache not invalidated", zap.Error(err))
	}

	elapsed := time.Since(start)
	resp.Duration = elapsed.String()
	s.metrics.RecordGeneration(resp.Generation, resp.Placed, dropCounts(resp.Outcomes), resp.Moved, elapsed)
	s.logger.Info("timetable generated",
		zap.Int("generation", resp.Generation),
		zap.Int("placed", resp.Placed),
		zap.Int("dropped", resp.Dropped),
		zap.Int("moved", resp.Moved),
		zap.Duration("elapsed", elapsed),
	)
	return resp, nil
}

func (s *TimetableService) generate(ctx context.Context) (resp *dto.GenerateTimetableResponse, err error) {
	input, err := s.loadInput(ctx)
	if err != nil {
		return nil, err
	}
	if s.tx == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "transaction provider missing")
	}

	tx, err := s.tx.BeginTxx(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = s.timetables.AcquireRunLock(ctx, tx); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to acquire generator lock")
	}

	phaseStart := s.enter(scheduler.PhaseClearing, time.Time{})
	deleted, err := s.timetables.DeleteAll(ctx, tx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear timetable")
	}

	phaseStart = s.enter(scheduler.PhaseScheduling, phaseStart)
	result, err := s.engine.Assign(ctx, input)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "timetable generation interrupted")
	}
	dropped := result.Dropped()

	phaseStart = s.enter(scheduler.PhasePersisting, phaseStart)
	meta, marshalErr := json.Marshal(map[string]any{
		"replaced": deleted,
		"courses":  len(input.Courses),
		"hours":    result.Grid.Hours(),
		"days":     result.Grid.Days(),
		"dropped":  dropped,
	})
	if marshalErr != nil {
		err = appErrors.Wrap(marshalErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to encode generation metadata")
		return nil, err
	}
	generation := &models.TimetableGeneration{
		PlacedCount:  len(result.Placements),
		DroppedCount: len(dropped),
		Meta:         types.JSONText(meta),
	}
	if err = s.timetables.CreateGeneration(ctx, tx, generation); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create generation")
	}
	if err = s.timetables.BulkInsert(ctx, tx, result.Entries(generation.ID)); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to persist timetable entries")
	}

	phaseStart = s.enter(scheduler.PhaseCompacting, phaseStart)
	stored, err := s.timetables.ListByGeneration(ctx, tx, generation.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload timetable entries")
	}
	moves := scheduler.Compact(result.Grid, stored)
	for _, move := range moves {
		entry := stored[move.Index]
		if err = s.timetables.UpdateSpan(ctx, tx, entry.ID, entry.StartHour, entry.EndHour); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to compact timetable")
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to commit timetable transaction")
	}
	s.enter(scheduler.PhaseDone, phaseStart)

	return &dto.GenerateTimetableResponse{
		Success:    true,
		Message:    generatedMessage,
		Generation: generation.ID,
		Placed:     len(result.Placements),
		Dropped:    len(dropped),
		Moved:      len(moves),
		Outcomes:   result.Outcomes,
	}, nil
}

// enter switches the run to the next phase, timing the one that just ended.
func (s *TimetableService) enter(next scheduler.Phase, since time.Time) time.Time {
	now := time.Now()
	if !since.IsZero() {
		s.metrics.ObservePhase(s.Phase().String(), now.Sub(since))
	}
	s.setPhase(next)
	s.logger.Debug("generation phase", zap.String("phase", next.String()))
	return now
}

func (s *TimetableService) loadInput(ctx context.Context) (scheduler.Input, error) {
	start := time.Now()
	courses, err := s.courses.ListSchedulable(ctx)
	if err != nil {
		return scheduler.Input{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load courses")
	}
	if len(courses) == 0 {
		return scheduler.Input{}, appErrors.Clone(appErrors.ErrPreconditionFailed, "no courses with both faculty and classroom assigned")
	}
	faculty, err := s.faculty.List(ctx)
	if err != nil {
		return scheduler.Input{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load faculty")
	}
	classrooms, err := s.classrooms.List(ctx)
	if err != nil {
		return scheduler.Input{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load classrooms")
	}
	s.metrics.ObserveDBQuery("timetable_load_input", time.Since(start))

	return scheduler.Input{
		Courses:    courses,
		Faculty:    faculty,
		Classrooms: classrooms,
		Hours:      s.cfg.SlotHours,
	}, nil
}

// Enqueue schedules an asynchronous generator run and returns its job id.
func (s *TimetableService) Enqueue(ctx context.Context) (*dto.EnqueueTimetableResponse, error) {
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrUnavailable, "asynchronous generation is not enabled")
	}
	job := jobs.Job{ID: uuid.NewString(), Type: GenerateJobType}
	if err := s.queue.Enqueue(job); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnavailable.Code, appErrors.ErrUnavailable.Status, "failed to enqueue generation")
	}
	return &dto.EnqueueTimetableResponse{JobID: job.ID, Status: string(jobs.StateQueued)}, nil
}

// JobStatus returns the state of a queued generator run.
func (s *TimetableService) JobStatus(ctx context.Context, id string) (*jobs.Status, error) {
	if s.queue == nil {
		return nil, appErrors.Clone(appErrors.ErrUnavailable, "asynchronous generation is not enabled")
	}
	status, ok := s.queue.Status(id)
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "generation job not found")
	}
	return &status, nil
}

// HandleJob is the queue handler for asynchronous runs.
func (s *TimetableService) HandleJob(ctx context.Context, job jobs.Job) (any, error) {
	if job.Type != GenerateJobType {
		return nil, fmt.Errorf("unsupported job type %q", job.Type)
	}
	return s.Generate(ctx)
}

// List returns entries of one generation ordered by day, hour and commit order.
func (s *TimetableService) List(ctx context.Context, query dto.TimetableQuery) (*dto.TimetableListResponse, bool, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid timetable query")
	}
	generation, err := s.resolveGeneration(ctx, query.Generation)
	if err != nil {
		return nil, false, err
	}
	if generation == 0 {
		return &dto.TimetableListResponse{Entries: []models.TimetableEntry{}}, false, nil
	}

	key := timetableCacheKey("list", generation, query.Department, query.Semester)
	var cached dto.TimetableListResponse
	if s.cache.Get(ctx, key, &cached) {
		return &cached, true, nil
	}

	start := time.Now()
	entries, err := s.timetables.List(ctx, models.TimetableFilter{
		Generation: generation,
		Department: query.Department,
		Semester:   query.Semester,
	})
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetable")
	}
	s.metrics.ObserveDBQuery("timetable_list", time.Since(start))
	if entries == nil {
		entries = []models.TimetableEntry{}
	}
	sortEntries(entries)

	resp := &dto.TimetableListResponse{Generation: generation, Entries: entries}
	s.cache.Set(ctx, key, resp, s.cfg.CacheTTL)
	return resp, false, nil
}

// Groups returns the listing split by department and semester.
func (s *TimetableService) Groups(ctx context.Context, query dto.TimetableQuery) (*dto.TimetableGroupsResponse, bool, error) {
	listing, cacheHit, err := s.List(ctx, query)
	if err != nil {
		return nil, false, err
	}

	index := make(map[scheduler.Cohort]int)
	groups := make([]dto.TimetableGroup, 0)
	for _, entry := range listing.Entries {
		cohort := scheduler.Cohort{Department: entry.Department, Semester: entry.Semester}
		i, ok := index[cohort]
		if !ok {
			i = len(groups)
			index[cohort] = i
			groups = append(groups, dto.TimetableGroup{Department: entry.Department, Semester: entry.Semester})
		}
		groups[i].Entries = append(groups[i].Entries, entry)
	}
	sort.SliceStable(groups, func(i, j int) bool {
		if groups[i].Department != groups[j].Department {
			return groups[i].Department < groups[j].Department
		}
		return groups[i].Semester < groups[j].Semester
	})

	return &dto.TimetableGroupsResponse{Generation: listing.Generation, Groups: groups}, cacheHit, nil
}

// Conflicts checks a stored generation for double bookings.
func (s *TimetableService) Conflicts(ctx context.Context, generation int) (*dto.ConflictReport, error) {
	if generation < 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "generation must be positive")
	}
	resolved, err := s.resolveGeneration(ctx, generation)
	if err != nil {
		return nil, err
	}
	if resolved == 0 {
		return &dto.ConflictReport{Clean: true, Conflicts: []scheduler.Conflict{}}, nil
	}
	entries, err := s.timetables.ListByGeneration(ctx, nil, resolved)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable entries")
	}
	conflicts := scheduler.DetectConflicts(entries)
	if len(conflicts) > 0 {
		s.logger.Warn("timetable conflicts detected", zap.Int("generation", resolved), zap.Int("conflicts", len(conflicts)))
	}
	return &dto.ConflictReport{Generation: resolved, Clean: len(conflicts) == 0, Conflicts: conflicts}, nil
}

// Clear deletes every entry. Generation history is kept so ids keep growing.
func (s *TimetableService) Clear(ctx context.Context) (*dto.ClearTimetableResponse, error) {
	if !s.runMu.TryLock() {
		return nil, appErrors.Clone(appErrors.ErrGenerationBusy, "")
	}
	defer s.runMu.Unlock()

	deleted, err := s.timetables.DeleteAll(ctx, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear timetable")
	}
	if err := s.cache.Invalidate(ctx, "*"); err != nil {
		s.logger.Warn("timetable cache not invalidated", zap.Error(err))
	}
	s.logger.Info("timetable cleared", zap.Int64("deleted", deleted))
	return &dto.ClearTimetableResponse{Deleted: deleted}, nil
}

// Generations lists the generation history, newest first.
func (s *TimetableService) Generations(ctx context.Context, limit int) ([]dto.GenerationSummary, error) {
	records, err := s.timetables.ListGenerations(ctx, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list generations")
	}
	summaries := make([]dto.GenerationSummary, 0, len(records))
	for _, record := range records {
		summary := dto.GenerationSummary{
			ID:           record.ID,
			PlacedCount:  record.PlacedCount,
			DroppedCount: record.DroppedCount,
			CreatedAt:    record.CreatedAt,
		}
		if len(record.Meta) > 0 {
			if err := record.Meta.Unmarshal(&summary.Meta); err != nil {
				s.logger.Warn("generation meta unreadable", zap.Int("generation", record.ID), zap.Error(err))
			}
		}
		summaries = append(summaries, summary)
	}
	return summaries, nil
}

// Export renders a listing as CSV or PDF.
func (s *TimetableService) Export(ctx context.Context, query dto.ExportQuery) (*dto.ExportFile, error) {
	if err := s.validator.Struct(query); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid export query")
	}
	listing, _, err := s.List(ctx, query.TimetableQuery)
	if err != nil {
		return nil, err
	}
	rows := export.RowsFromEntries(listing.Entries)
	base := fmt.Sprintf("timetable-gen%d", listing.Generation)

	switch query.Format {
	case dto.ExportFormatPDF:
		content, err := s.pdf.Render(rows, fmt.Sprintf("Timetable generation %d", listing.Generation))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
		}
		return &dto.ExportFile{Filename: base + ".pdf", ContentType: "application/pdf", Content: content}, nil
	default:
		content, err := s.csv.Render(rows)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render csv")
		}
		return &dto.ExportFile{Filename: base + ".csv", ContentType: "text/csv", Content: content}, nil
	}
}

func (s *TimetableService) resolveGeneration(ctx context.Context, requested int) (int, error) {
	if requested > 0 {
		return requested, nil
	}
	latest, err := s.timetables.LatestGeneration(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil
		}
		return 0, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve latest generation")
	}
	return latest, nil
}

func sortEntries(entries []models.TimetableEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if da, db := scheduler.DayIndex(scheduler.Day(a.Day)), scheduler.DayIndex(scheduler.Day(b.Day)); da != db {
			return da < db
		}
		if a.StartHour != b.StartHour {
			return a.StartHour < b.StartHour
		}
		return a.Seq < b.Seq
	})
}

func dropCounts(outcomes []scheduler.Outcome) map[string]int {
	counts := make(map[string]int)
	for _, outcome := range outcomes {
		if outcome.Status != scheduler.OutcomePlaced {
			counts[string(outcome.Status)]++
		}
	}
	return counts
}
