package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"

	"github.com/noah-isme/timetable-api/internal/models"
)

// generatorLockKey identifies the advisory lock serialising generator runs
// across processes.
const generatorLockKey int64 = 0x7469_6d65

const entryColumns = `id, generation, seq, course_id, faculty_id, classroom_id, day, start_hour, end_hour, department, semester, created_at, updated_at`

// TimetableRepository persists generated timetables and the generation counter.
type TimetableRepository struct {
	db *sqlx.DB
}

// NewTimetableRepository constructs repository.
func NewTimetableRepository(db *sqlx.DB) *TimetableRepository {
	return &TimetableRepository{db: db}
}

func (r *TimetableRepository) exec(exec sqlx.ExtContext) sqlx.ExtContext {
	if exec != nil {
		return exec
	}
	return r.db
}

// AcquireRunLock takes a transaction scoped advisory lock. It blocks until
// any other generator run commits or rolls back.
func (r *TimetableRepository) AcquireRunLock(ctx context.Context, exec sqlx.ExtContext) error {
	if _, err := r.exec(exec).ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, generatorLockKey); err != nil {
		return fmt.Errorf("acquire generator lock: %w", err)
	}
	return nil
}

// DeleteAll removes every timetable entry. Generation rows are kept.
func (r *TimetableRepository) DeleteAll(ctx context.Context, exec sqlx.ExtContext) (int64, error) {
	result, err := r.exec(exec).ExecContext(ctx, `DELETE FROM timetable_entries`)
	if err != nil {
		return 0, fmt.Errorf("delete timetable entries: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("timetable entries rows affected: %w", err)
	}
	return affected, nil
}

// CreateGeneration inserts a generation row assigning the next id.
func (r *TimetableRepository) CreateGeneration(ctx context.Context, exec sqlx.ExtContext, generation *models.TimetableGeneration) error {
	if generation == nil {
		return fmt.Errorf("generation payload is nil")
	}
	if len(generation.Meta) == 0 {
		generation.Meta = types.JSONText(`{}`)
	}
	if generation.CreatedAt.IsZero() {
		generation.CreatedAt = time.Now().UTC()
	}

	target := r.exec(exec)

	const nextIDQuery = `SELECT COALESCE(MAX(id), 0) + 1 FROM timetable_generations`
	if err := sqlx.GetContext(ctx, target, &generation.ID, nextIDQuery); err != nil {
		return fmt.Errorf("compute next generation: %w", err)
	}

	const insertQuery = `
INSERT INTO timetable_generations (id, placed_count, dropped_count, meta, created_at)
VALUES (:id, :placed_count, :dropped_count, :meta, :created_at)`
	if _, err := sqlx.NamedExecContext(ctx, target, insertQuery, generation); err != nil {
		return fmt.Errorf("insert timetable generation: %w", err)
	}
	return nil
}

// ListGenerations returns the most recent generation rows, newest first.
func (r *TimetableRepository) ListGenerations(ctx context.Context, limit int) ([]models.TimetableGeneration, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	const query = `SELECT id, placed_count, dropped_count, meta, created_at FROM timetable_generations ORDER BY id DESC LIMIT $1`
	var generations []models.TimetableGeneration
	if err := r.db.SelectContext(ctx, &generations, query, limit); err != nil {
		return nil, fmt.Errorf("list timetable generations: %w", err)
	}
	return generations, nil
}

// LatestGeneration returns the highest generation that still has entries, or
// zero when the timetable is empty.
func (r *TimetableRepository) LatestGeneration(ctx context.Context) (int, error) {
	var generation int
	if err := r.db.GetContext(ctx, &generation, `SELECT COALESCE(MAX(generation), 0) FROM timetable_entries`); err != nil {
		return 0, fmt.Errorf("latest timetable generation: %w", err)
	}
	return generation, nil
}

// BulkInsert stores entries in slice order, filling ids and timestamps in place.
func (r *TimetableRepository) BulkInsert(ctx context.Context, exec sqlx.ExtContext, entries []models.TimetableEntry) error {
	if len(entries) == 0 {
		return nil
	}
	target := r.exec(exec)
	now := time.Now().UTC()

	const query = `
INSERT INTO timetable_entries (id, generation, seq, course_id, faculty_id, classroom_id, day, start_hour, end_hour, department, semester, created_at, updated_at)
VALUES (:id, :generation, :seq, :course_id, :faculty_id, :classroom_id, :day, :start_hour, :end_hour, :department, :semester, :created_at, :updated_at)`

	for i := range entries {
		entry := &entries[i]
		if entry.ID == "" {
			entry.ID = uuid.NewString()
		}
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = now
		}
		entry.UpdatedAt = now
		if _, err := sqlx.NamedExecContext(ctx, target, query, entry); err != nil {
			return fmt.Errorf("insert timetable entry %d: %w", entry.Seq, err)
		}
	}
	return nil
}

// ListByGeneration returns a generation's entries in commit order.
func (r *TimetableRepository) ListByGeneration(ctx context.Context, exec sqlx.ExtContext, generation int) ([]models.TimetableEntry, error) {
	query := `SELECT ` + entryColumns + ` FROM timetable_entries WHERE generation = $1 ORDER BY seq ASC`
	var entries []models.TimetableEntry
	if err := sqlx.SelectContext(ctx, r.exec(exec), &entries, query, generation); err != nil {
		return nil, fmt.Errorf("list timetable entries: %w", err)
	}
	return entries, nil
}

// List returns entries of one generation narrowed by the optional cohort filter.
func (r *TimetableRepository) List(ctx context.Context, filter models.TimetableFilter) ([]models.TimetableEntry, error) {
	conditions := []string{"generation = $1"}
	args := []interface{}{filter.Generation}

	if filter.Department != "" {
		args = append(args, strings.ToLower(filter.Department))
		conditions = append(conditions, fmt.Sprintf("LOWER(department) = $%d", len(args)))
	}
	if filter.Semester > 0 {
		args = append(args, filter.Semester)
		conditions = append(conditions, fmt.Sprintf("semester = $%d", len(args)))
	}

	query := fmt.Sprintf("SELECT %s FROM timetable_entries WHERE %s ORDER BY seq ASC", entryColumns, strings.Join(conditions, " AND "))
	var entries []models.TimetableEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list timetable entries: %w", err)
	}
	return entries, nil
}

// UpdateSpan moves an entry to a new start and end hour on the same day.
func (r *TimetableRepository) UpdateSpan(ctx context.Context, exec sqlx.ExtContext, id string, startHour, endHour int) error {
	const query = `UPDATE timetable_entries SET start_hour = $1, end_hour = $2, updated_at = $3 WHERE id = $4`
	result, err := r.exec(exec).ExecContext(ctx, query, startHour, endHour, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("update timetable entry span: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("timetable entry span rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
