package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/internal/scheduler"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
	"github.com/noah-isme/timetable-api/pkg/jobs"
)

func TestTimetableServiceGenerateReplacesSchedule(t *testing.T) {
	fx := newTimetableFixture(t)

	fx.mock.ExpectBegin()
	fx.mock.ExpectCommit()
	first, err := fx.service.Generate(context.Background())
	require.NoError(t, err)
	assert.True(t, first.Success)
	assert.Equal(t, "Timetable generated successfully", first.Message)
	assert.Equal(t, 1, first.Generation)
	assert.Equal(t, len(fx.courses.items), first.Placed+first.Dropped)
	assert.Len(t, first.Outcomes, len(fx.courses.items))

	fx.mock.ExpectBegin()
	fx.mock.ExpectCommit()
	second, err := fx.service.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, second.Generation)

	require.Len(t, fx.repo.entries, second.Placed)
	for _, entry := range fx.repo.entries {
		assert.Equal(t, 2, entry.Generation)
	}
	assert.Empty(t, scheduler.DetectConflicts(fx.repo.entries))
	assert.Equal(t, 2, fx.repo.locks)
	assert.Equal(t, first.Moved+second.Moved, fx.repo.updates)
	assert.Equal(t, scheduler.PhaseIdle, fx.service.Phase())
	assert.NoError(t, fx.mock.ExpectationsWereMet())
}

func TestTimetableServiceGenerateReportsDroppedCourses(t *testing.T) {
	fx := newTimetableFixture(t)
	fx.courses.items = append(fx.courses.items, course("orphan", "ghost", "r1", "cse", 1, 1))

	fx.mock.ExpectBegin()
	fx.mock.ExpectCommit()
	resp, err := fx.service.Generate(context.Background())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, resp.Dropped, 1)

	last := resp.Outcomes[len(resp.Outcomes)-1]
	assert.Equal(t, "orphan", last.CourseID)
	assert.Equal(t, scheduler.OutcomeNoFaculty, last.Status)
	assert.Equal(t, resp.Dropped, fx.repo.generations[0].DroppedCount)
}

func TestTimetableServiceGenerateWithoutCourses(t *testing.T) {
	fx := newTimetableFixture(t)
	fx.courses.items = nil

	_, err := fx.service.Generate(context.Background())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPreconditionFailed.Code, appErrors.FromError(err).Code)
	assert.NoError(t, fx.mock.ExpectationsWereMet())
}

func TestTimetableServiceGenerateRollsBackOnPersistFailure(t *testing.T) {
	fx := newTimetableFixture(t)
	fx.repo.insertErr = errors.New("disk full")

	fx.mock.ExpectBegin()
	fx.mock.ExpectRollback()
	_, err := fx.service.Generate(context.Background())
	require.Error(t, err)

	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErr.Code)
	assert.Equal(t, "failed to persist timetable entries", appErr.Message)
	assert.NoError(t, fx.mock.ExpectationsWereMet())
}

func TestTimetableServiceGenerateRejectsConcurrentRun(t *testing.T) {
	fx := newTimetableFixture(t)
	fx.service.runMu.Lock()
	defer fx.service.runMu.Unlock()

	_, err := fx.service.Generate(context.Background())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrGenerationBusy.Code, appErrors.FromError(err).Code)
}

func TestTimetableServiceGenerationsKeepGrowingAfterClear(t *testing.T) {
	fx := newTimetableFixture(t)

	fx.mock.ExpectBegin()
	fx.mock.ExpectCommit()
	_, err := fx.service.Generate(context.Background())
	require.NoError(t, err)

	cleared, err := fx.service.Clear(context.Background())
	require.NoError(t, err)
	assert.Positive(t, cleared.Deleted)
	assert.Empty(t, fx.repo.entries)

	fx.mock.ExpectBegin()
	fx.mock.ExpectCommit()
	resp, err := fx.service.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, resp.Generation)

	history, err := fx.service.Generations(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, 2, history[0].ID)
	assert.Contains(t, history[0].Meta, "replaced")
}

func TestTimetableServiceListUsesCache(t *testing.T) {
	fx := newTimetableFixture(t)
	fx.mock.ExpectBegin()
	fx.mock.ExpectCommit()
	_, err := fx.service.Generate(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, fx.cache.invalidations)

	listing, hit, err := fx.service.List(context.Background(), dto.TimetableQuery{})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, 1, listing.Generation)
	require.NotEmpty(t, listing.Entries)
	for i := 1; i < len(listing.Entries); i++ {
		prev, cur := listing.Entries[i-1], listing.Entries[i]
		pd, cd := scheduler.DayIndex(scheduler.Day(prev.Day)), scheduler.DayIndex(scheduler.Day(cur.Day))
		assert.True(t, pd < cd || (pd == cd && prev.StartHour <= cur.StartHour), "entries ordered by day then hour")
	}

	cached, hit, err := fx.service.List(context.Background(), dto.TimetableQuery{})
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, len(listing.Entries), len(cached.Entries))
}

func TestTimetableServiceListEmptyTimetable(t *testing.T) {
	fx := newTimetableFixture(t)

	listing, hit, err := fx.service.List(context.Background(), dto.TimetableQuery{})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Zero(t, listing.Generation)
	assert.NotNil(t, listing.Entries)
	assert.Empty(t, listing.Entries)
}

func TestTimetableServiceListValidatesQuery(t *testing.T) {
	fx := newTimetableFixture(t)

	_, _, err := fx.service.List(context.Background(), dto.TimetableQuery{Semester: 40})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTimetableServiceGroups(t *testing.T) {
	fx := newTimetableFixture(t)
	fx.mock.ExpectBegin()
	fx.mock.ExpectCommit()
	_, err := fx.service.Generate(context.Background())
	require.NoError(t, err)

	resp, _, err := fx.service.Groups(context.Background(), dto.TimetableQuery{})
	require.NoError(t, err)
	require.NotEmpty(t, resp.Groups)

	total := 0
	for i, group := range resp.Groups {
		if i > 0 {
			prev := resp.Groups[i-1]
			assert.True(t, prev.Department < group.Department || (prev.Department == group.Department && prev.Semester < group.Semester))
		}
		for _, entry := range group.Entries {
			assert.Equal(t, group.Department, entry.Department)
			assert.Equal(t, group.Semester, entry.Semester)
		}
		total += len(group.Entries)
	}
	assert.Len(t, fx.repo.entries, total)
}

func TestTimetableServiceConflicts(t *testing.T) {
	fx := newTimetableFixture(t)
	fx.repo.entries = []models.TimetableEntry{
		{ID: "a", Generation: 3, Seq: 1, FacultyID: "f1", ClassroomID: "r1", Day: "Monday", StartHour: 10, EndHour: 12, Department: "cse", Semester: 1},
		{ID: "b", Generation: 3, Seq: 2, FacultyID: "f1", ClassroomID: "r2", Day: "Monday", StartHour: 11, EndHour: 12, Department: "ece", Semester: 1},
	}

	report, err := fx.service.Conflicts(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, 3, report.Generation)
	assert.False(t, report.Clean)
	require.Len(t, report.Conflicts, 1)
	assert.Equal(t, scheduler.ConflictFaculty, report.Conflicts[0].Dimension)
}

func TestTimetableServiceExport(t *testing.T) {
	fx := newTimetableFixture(t)
	fx.mock.ExpectBegin()
	fx.mock.ExpectCommit()
	_, err := fx.service.Generate(context.Background())
	require.NoError(t, err)

	csvFile, err := fx.service.Export(context.Background(), dto.ExportQuery{})
	require.NoError(t, err)
	assert.Equal(t, "timetable-gen1.csv", csvFile.Filename)
	assert.Equal(t, "text/csv", csvFile.ContentType)
	assert.True(t, strings.HasPrefix(string(csvFile.Content), "generation,day,start,end"))

	pdfFile, err := fx.service.Export(context.Background(), dto.ExportQuery{Format: dto.ExportFormatPDF})
	require.NoError(t, err)
	assert.Equal(t, "application/pdf", pdfFile.ContentType)
	assert.NotEmpty(t, pdfFile.Content)

	_, err = fx.service.Export(context.Background(), dto.ExportQuery{Format: "xlsx"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestTimetableServiceEnqueue(t *testing.T) {
	fx := newTimetableFixture(t)

	_, err := fx.service.Enqueue(context.Background())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnavailable.Code, appErrors.FromError(err).Code)

	queue := jobs.NewQueue("timetable", fx.service.HandleJob, jobs.QueueConfig{Workers: 1})
	queue.Start(context.Background())
	defer queue.Stop()
	fx.service.AttachQueue(queue)

	fx.mock.ExpectBegin()
	fx.mock.ExpectCommit()
	ack, err := fx.service.Enqueue(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "queued", ack.Status)

	require.Eventually(t, func() bool {
		status, err := fx.service.JobStatus(context.Background(), ack.JobID)
		return err == nil && status.State == jobs.StateSucceeded
	}, 2*time.Second, 10*time.Millisecond)

	_, err = fx.service.JobStatus(context.Background(), "missing")
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestTimetableServiceHandleJobRejectsUnknownType(t *testing.T) {
	fx := newTimetableFixture(t)
	_, err := fx.service.HandleJob(context.Background(), jobs.Job{Type: "report.export"})
	assert.Error(t, err)
}

// --- Fixtures ---

type timetableFixture struct {
	service *TimetableService
	courses *courseRepoStub
	repo    *timetableRepoStub
	cache   *timetableCacheStub
	mock    sqlmock.Sqlmock
}

func newTimetableFixture(t *testing.T) *timetableFixture {
	tx, mock := newTxProviderMock(t)
	courses := &courseRepoStub{items: []models.Course{
		course("algo", "f1", "r1", "cse", 3, 1),
		course("os", "f1", "r1", "cse", 3, 1),
		course("circuits-lab", "f2", "r2", "ece", 5, 2),
		course("signals", "f2", "r2", "ece", 5, 1),
		course("thermo", "f3", "r1", "me", 1, 1),
		course("mechanics", "f3", "r3", "me", 1, 1),
	}}
	faculty := facultyRepoStub{items: []models.Faculty{
		{ID: "f1", Name: "Dr. Rao", Availability: "Mon,Wed 9:00-17:00"},
		{ID: "f2", Name: "Dr. Iyer", Availability: "Tue Thu"},
		{ID: "f3", Name: "Dr. Sen", Availability: "monday friday"},
	}}
	classrooms := classroomRepoStub{items: []models.Classroom{
		{ID: "r1", Name: "LH-1", Capacity: 60},
		{ID: "r2", Name: "Lab-2", Capacity: 30, Type: models.ClassroomTypeLab},
		{ID: "r3", Name: "Seminar-3", Capacity: 20, Type: models.ClassroomTypeSeminar},
	}}
	repo := &timetableRepoStub{}
	cache := newTimetableCacheStub()

	svc := NewTimetableService(courses, faculty, classrooms, repo, tx, cache, NewMetricsService(), nil, nil, TimetableServiceConfig{})
	return &timetableFixture{service: svc, courses: courses, repo: repo, cache: cache, mock: mock}
}

func course(id, faculty, classroom, department string, semester, duration int) models.Course {
	return models.Course{ID: id, Name: id, FacultyID: &faculty, ClassroomID: &classroom, Department: department, Semester: semester, Duration: duration}
}

type courseRepoStub struct {
	items []models.Course
}

func (s *courseRepoStub) ListSchedulable(ctx context.Context) ([]models.Course, error) {
	return s.items, nil
}

type facultyRepoStub struct {
	items []models.Faculty
}

func (s facultyRepoStub) List(ctx context.Context) ([]models.Faculty, error) {
	return s.items, nil
}

type classroomRepoStub struct {
	items []models.Classroom
}

func (s classroomRepoStub) List(ctx context.Context) ([]models.Classroom, error) {
	return s.items, nil
}

type timetableRepoStub struct {
	mu          sync.Mutex
	entries     []models.TimetableEntry
	generations []models.TimetableGeneration
	insertErr   error
	locks       int
	updates     int
}

func (s *timetableRepoStub) AcquireRunLock(ctx context.Context, exec sqlx.ExtContext) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.locks++
	return nil
}

func (s *timetableRepoStub) DeleteAll(ctx context.Context, exec sqlx.ExtContext) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	deleted := int64(len(s.entries))
	s.entries = nil
	return deleted, nil
}

func (s *timetableRepoStub) CreateGeneration(ctx context.Context, exec sqlx.ExtContext, generation *models.TimetableGeneration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	next := 1
	for _, g := range s.generations {
		if g.ID >= next {
			next = g.ID + 1
		}
	}
	generation.ID = next
	generation.CreatedAt = time.Now()
	s.generations = append(s.generations, *generation)
	return nil
}

func (s *timetableRepoStub) ListGenerations(ctx context.Context, limit int) ([]models.TimetableGeneration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.TimetableGeneration, 0, len(s.generations))
	for i := len(s.generations) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.generations[i])
	}
	return out, nil
}

func (s *timetableRepoStub) LatestGeneration(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	latest := 0
	for _, e := range s.entries {
		if e.Generation > latest {
			latest = e.Generation
		}
	}
	return latest, nil
}

func (s *timetableRepoStub) BulkInsert(ctx context.Context, exec sqlx.ExtContext, entries []models.TimetableEntry) error {
	if s.insertErr != nil {
		return s.insertErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range entries {
		if entries[i].ID == "" {
			entries[i].ID = fmt.Sprintf("g%d-e%d", entries[i].Generation, entries[i].Seq)
		}
		s.entries = append(s.entries, entries[i])
	}
	return nil
}

func (s *timetableRepoStub) ListByGeneration(ctx context.Context, exec sqlx.ExtContext, generation int) ([]models.TimetableEntry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.TimetableEntry
	for _, e := range s.entries {
		if e.Generation == generation {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seq < out[j].Seq })
	return out, nil
}

func (s *timetableRepoStub) List(ctx context.Context, filter models.TimetableFilter) ([]models.TimetableEntry, error) {
	all, _ := s.ListByGeneration(ctx, nil, filter.Generation)
	var out []models.TimetableEntry
	for _, e := range all {
		if filter.Department != "" && !strings.EqualFold(filter.Department, e.Department) {
			continue
		}
		if filter.Semester > 0 && filter.Semester != e.Semester {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

func (s *timetableRepoStub) UpdateSpan(ctx context.Context, exec sqlx.ExtContext, id string, startHour, endHour int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.entries {
		if s.entries[i].ID == id {
			s.entries[i].StartHour = startHour
			s.entries[i].EndHour = endHour
			s.updates++
			return nil
		}
	}
	return sql.ErrNoRows
}

type timetableCacheStub struct {
	store         map[string][]byte
	invalidations int
}

func newTimetableCacheStub() *timetableCacheStub {
	return &timetableCacheStub{store: make(map[string][]byte)}
}

func (c *timetableCacheStub) Get(ctx context.Context, key string, dest interface{}) bool {
	raw, ok := c.store[key]
	if !ok {
		return false
	}
	return json.Unmarshal(raw, dest) == nil
}

func (c *timetableCacheStub) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) {
	raw, err := json.Marshal(value)
	if err == nil {
		c.store[key] = raw
	}
}

func (c *timetableCacheStub) Invalidate(ctx context.Context, pattern string) error {
	c.invalidations++
	c.store = make(map[string][]byte)
	return nil
}

type txProviderMock struct {
	db   *sqlx.DB
	mock sqlmock.Sqlmock
}

func newTxProviderMock(t *testing.T) (txProvider, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	t.Cleanup(func() { db.Close() })
	return &txProviderMock{db: sqlxdb, mock: mock}, mock
}

func (t *txProviderMock) BeginTxx(ctx context.Context, opts *sql.TxOptions) (*sqlx.Tx, error) {
	return t.db.BeginTxx(ctx, opts)
}
