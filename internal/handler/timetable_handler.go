package handler

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/dto"
	"github.com/noah-isme/timetable-api/internal/middleware"
	appErrors "github.com/noah-isme/timetable-api/pkg/errors"
	"github.com/noah-isme/timetable-api/pkg/jobs"
	"github.com/noah-isme/timetable-api/pkg/response"
)

const defaultGenerationHistory = 20

type timetableService interface {
	Generate(ctx context.Context) (*dto.GenerateTimetableResponse, error)
	Enqueue(ctx context.Context) (*dto.EnqueueTimetableResponse, error)
	JobStatus(ctx context.Context, id string) (*jobs.Status, error)
	List(ctx context.Context, query dto.TimetableQuery) (*dto.TimetableListResponse, bool, error)
	Groups(ctx context.Context, query dto.TimetableQuery) (*dto.TimetableGroupsResponse, bool, error)
	Conflicts(ctx context.Context, generation int) (*dto.ConflictReport, error)
	Clear(ctx context.Context) (*dto.ClearTimetableResponse, error)
	Generations(ctx context.Context, limit int) ([]dto.GenerationSummary, error)
	Export(ctx context.Context, query dto.ExportQuery) (*dto.ExportFile, error)
}

// TimetableHandler exposes timetable generation and retrieval endpoints.
type TimetableHandler struct {
	service timetableService
	logger  *zap.Logger
}

// NewTimetableHandler constructs the handler.
func NewTimetableHandler(svc timetableService, logger *zap.Logger) *TimetableHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimetableHandler{service: svc, logger: logger}
}

// Generate godoc
// @Summary Generate a new timetable
// @Description Replaces the stored timetable with a new generation. With async=true the run is queued and a job id returned.
// @Tags Timetable
// @Produce json
// @Param async query bool false "Queue the run instead of waiting"
// @Success 200 {object} response.Envelope
// @Success 202 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /timetables/generate [post]
func (h *TimetableHandler) Generate(c *gin.Context) {
	log := requestLogger(c, h.logger)
	if async, _ := strconv.ParseBool(c.Query("async")); async {
		ack, err := h.service.Enqueue(c.Request.Context())
		if err != nil {
			response.Error(c, err)
			return
		}
		log.Info("timetable generation queued", zap.String("job_id", ack.JobID))
		response.Accepted(c, ack)
		return
	}

	result, err := h.service.Generate(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	log.Info("timetable generation requested", zap.Int("generation", result.Generation))
	middleware.SetGeneration(c, result.Generation)
	response.JSON(c, http.StatusOK, result, middleware.ExtractMeta(c))
}

// Job godoc
// @Summary Get the state of a queued generation
// @Tags Timetable
// @Produce json
// @Param id path string true "Job ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /timetables/jobs/{id} [get]
func (h *TimetableHandler) Job(c *gin.Context) {
	status, err := h.service.JobStatus(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, status)
}

// List godoc
// @Summary List timetable entries
// @Tags Timetable
// @Produce json
// @Param generation query int false "Generation, latest when omitted"
// @Param department query string false "Department"
// @Param semester query int false "Semester"
// @Success 200 {object} response.Envelope
// @Router /timetables [get]
func (h *TimetableHandler) List(c *gin.Context) {
	query, ok := bindTimetableQuery(c)
	if !ok {
		return
	}
	result, cacheHit, err := h.service.List(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	middleware.SetGeneration(c, result.Generation)
	response.JSON(c, http.StatusOK, result, middleware.ExtractMeta(c))
}

// Groups godoc
// @Summary List timetable entries grouped by department and semester
// @Tags Timetable
// @Produce json
// @Param generation query int false "Generation, latest when omitted"
// @Param department query string false "Department"
// @Param semester query int false "Semester"
// @Success 200 {object} response.Envelope
// @Router /timetables/groups [get]
func (h *TimetableHandler) Groups(c *gin.Context) {
	query, ok := bindTimetableQuery(c)
	if !ok {
		return
	}
	result, cacheHit, err := h.service.Groups(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, cacheHit)
	middleware.SetGeneration(c, result.Generation)
	response.JSON(c, http.StatusOK, result, middleware.ExtractMeta(c))
}

// Conflicts godoc
// @Summary Check a generation for double bookings
// @Tags Timetable
// @Produce json
// @Param generation query int false "Generation, latest when omitted"
// @Success 200 {object} response.Envelope
// @Router /timetables/conflicts [get]
func (h *TimetableHandler) Conflicts(c *gin.Context) {
	generation, ok := intQuery(c, "generation", 0)
	if !ok {
		return
	}
	report, err := h.service.Conflicts(c.Request.Context(), generation)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, report)
}

// Clear godoc
// @Summary Delete every timetable entry
// @Tags Timetable
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /timetables [delete]
func (h *TimetableHandler) Clear(c *gin.Context) {
	result, err := h.service.Clear(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	requestLogger(c, h.logger).Info("timetable cleared", zap.Int64("deleted", result.Deleted))
	response.JSON(c, http.StatusOK, result)
}

// Generations godoc
// @Summary List generation history, newest first
// @Tags Timetable
// @Produce json
// @Param limit query int false "Maximum records (1-100)"
// @Success 200 {object} response.Envelope
// @Router /timetables/generations [get]
func (h *TimetableHandler) Generations(c *gin.Context) {
	limit, ok := intQuery(c, "limit", defaultGenerationHistory)
	if !ok {
		return
	}
	history, err := h.service.Generations(c.Request.Context(), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, history)
}

// Export godoc
// @Summary Download the timetable as CSV or PDF
// @Tags Timetable
// @Produce text/csv
// @Produce application/pdf
// @Param generation query int false "Generation, latest when omitted"
// @Param department query string false "Department"
// @Param semester query int false "Semester"
// @Param format query string false "csv or pdf" Enums(csv, pdf)
// @Success 200 {file} file
// @Router /timetables/export [get]
func (h *TimetableHandler) Export(c *gin.Context) {
	var query dto.ExportQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid export query"))
		return
	}
	file, err := h.service.Export(c.Request.Context(), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Content)
}

func bindTimetableQuery(c *gin.Context) (dto.TimetableQuery, bool) {
	var query dto.TimetableQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid timetable query"))
		return query, false
	}
	return query, true
}

func intQuery(c *gin.Context, name string, fallback int) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return fallback, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, name+" must be an integer"))
		return 0, false
	}
	return value, true
}
