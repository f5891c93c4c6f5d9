// Command timetable-cli runs the generator offline against CSV inputs and
// mints access tokens for operators.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/timetable-api/internal/csvio"
	"github.com/noah-isme/timetable-api/internal/models"
	"github.com/noah-isme/timetable-api/internal/scheduler"
	"github.com/noah-isme/timetable-api/internal/service"
	"github.com/noah-isme/timetable-api/pkg/config"
	"github.com/noah-isme/timetable-api/pkg/export"
	"github.com/noah-isme/timetable-api/pkg/logger"
	"github.com/noah-isme/timetable-api/pkg/storage"
)

const usage = `usage:
  timetable-cli generate -in DIR [-outdir .] [-out schedule.csv] [-pdf schedule.pdf] [-hours 10,11,12] [-delim ,]
  timetable-cli token -user ID -role ADMIN|FACULTY|STUDENT|SUPERADMIN`

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logr, err := logger.New(cfg)
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logr.Sync() //nolint:errcheck

	switch os.Args[1] {
	case "generate":
		err = runGenerate(cfg, logr, os.Args[2:])
	case "token":
		err = runToken(cfg, logr, os.Args[2:])
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		logr.Fatal("command failed", zap.String("command", os.Args[1]), zap.Error(err))
	}
}

func runGenerate(cfg *config.Config, logr *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("generate", flag.ExitOnError)
	in := fs.String("in", ".", "Directory holding courses.csv, faculty.csv and classrooms.csv")
	outDir := fs.String("outdir", ".", "Directory receiving the outputs")
	out := fs.String("out", "schedule.csv", "CSV output name")
	pdfOut := fs.String("pdf", "", "Optional PDF output name")
	hours := fs.String("hours", "", "Slot hours, overriding SCHEDULER_SLOT_HOURS")
	delim := fs.String("delim", ",", "Input CSV delimiter")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if len(*delim) != 1 {
		return fmt.Errorf("delimiter must be a single character, got %q", *delim)
	}

	slotHours := cfg.Scheduler.SlotHours
	if *hours != "" {
		slotHours = config.ParseHours(*hours)
	}

	input, err := csvio.NewLoader(rune((*delim)[0])).LoadDir(*in, slotHours)
	if err != nil {
		return err
	}

	ctx := context.Background()
	if cfg.Scheduler.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, cfg.Scheduler.RunTimeout)
		defer cancel()
	}

	start := time.Now()
	result, err := scheduler.NewEngine(logr.Named("scheduler")).Assign(ctx, input)
	if err != nil {
		return err
	}
	entries := result.Entries(1)
	moves := scheduler.Compact(result.Grid, entries)
	if conflicts := scheduler.DetectConflicts(entries); len(conflicts) > 0 {
		return fmt.Errorf("schedule has %d conflicts", len(conflicts))
	}

	for _, outcome := range result.Dropped() {
		logr.Warn("course dropped", zap.String("course_id", outcome.CourseID), zap.String("reason", string(outcome.Status)))
	}

	store, err := storage.NewLocalStorage(*outDir)
	if err != nil {
		return err
	}
	rows := export.RowsFromEntries(entries)
	content, err := export.NewCSVExporter().Render(rows)
	if err != nil {
		return err
	}
	csvPath, err := store.Save(*out, content)
	if err != nil {
		return err
	}
	if *pdfOut != "" {
		doc, err := export.NewPDFExporter().Render(rows, "Timetable")
		if err != nil {
			return err
		}
		if _, err := store.Save(*pdfOut, doc); err != nil {
			return err
		}
	}

	logr.Info("timetable written",
		zap.String("out", csvPath),
		zap.Int("placed", len(result.Placements)),
		zap.Int("dropped", len(result.Dropped())),
		zap.Int("moved", len(moves)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return nil
}

func runToken(cfg *config.Config, logr *zap.Logger, args []string) error {
	fs := flag.NewFlagSet("token", flag.ExitOnError)
	user := fs.String("user", "", "Subject user id")
	role := fs.String("role", string(models.RoleAdmin), "Role claim")
	expiry := fs.Duration("expiry", cfg.JWT.Expiry, "Token lifetime")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *user == "" {
		return fmt.Errorf("-user is required")
	}
	switch models.UserRole(*role) {
	case models.RoleSuperAdmin, models.RoleAdmin, models.RoleFaculty, models.RoleStudent:
	default:
		return fmt.Errorf("unknown role %q", *role)
	}

	tokens := service.NewTokenService(service.TokenConfig{
		Secret: cfg.JWT.Secret,
		Issuer: cfg.JWT.Issuer,
		Expiry: *expiry,
	}, logr)
	token, expiresAt, err := tokens.Issue(*user, models.UserRole(*role))
	if err != nil {
		return err
	}
	logr.Info("token issued", zap.String("user_id", *user), zap.String("role", *role), zap.Time("expires_at", expiresAt))
	fmt.Println(token)
	return nil
}
