package integration

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/ehr/ehrapp/internal/domain/billing"
	"github.com/ehr/ehrapp/internal/domain/careteam"
	"github.com/ehr/ehrapp/internal/domain/clinical"
	"github.com/ehr/ehrapp/internal/domain/identity"
	"github.com/ehr/ehrapp/internal/domain/inbox"
	"github.com/ehr/ehrapp/internal/domain/medication"
	"github.com/ehr/ehrapp/internal/domain/scheduling"
	"github.com/ehr/ehrapp/internal/platform/auth"
	"github.com/ehr/ehrapp/internal/platform/blobstore"
	"github.com/ehr/ehrapp/internal/platform/db"
	"github.com/ehr/ehrapp/internal/platform/notification"
)

// globalPool points at a schema created for this run with every migration
// applied. It is nil when no database is available.
var globalPool *pgxpool.Pool

// TestMain uses EHR_TEST_DATABASE_URL when set and otherwise starts a
// throwaway Postgres container. Without either the suite is skipped.
func TestMain(m *testing.M) {
	ctx := context.Background()

	connStr := os.Getenv("EHR_TEST_DATABASE_URL")
	cleanup := func() {}
	if connStr == "" {
		var err error
		connStr, cleanup, err = startPostgresContainer(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "skipping integration tests: %v\n", err)
			os.Exit(0)
		}
	}

	pool, dropSchema, err := openSchema(ctx, connStr)
	if err != nil {
		cleanup()
		fmt.Fprintf(os.Stderr, "failed to prepare database: %v\n", err)
		os.Exit(1)
	}

	globalPool = pool
	code := m.Run()
	pool.Close()
	dropSchema()
	cleanup()
	os.Exit(code)
}

// openSchema creates an isolated schema, points every pooled connection at
// it and runs the migrations there.
func openSchema(ctx context.Context, connStr string) (*pgxpool.Pool, func(), error) {
	schema := "it_" + strings.ReplaceAll(uuid.NewString()[:8], "-", "")

	admin, err := pgxpool.New(ctx, connStr)
	if err != nil {
		return nil, nil, fmt.Errorf("connect: %w", err)
	}
	if _, err := admin.Exec(ctx, "CREATE SCHEMA "+schema); err != nil {
		admin.Close()
		return nil, nil, fmt.Errorf("create schema: %w", err)
	}
	drop := func() {
		_, _ = admin.Exec(context.Background(), "DROP SCHEMA IF EXISTS "+schema+" CASCADE")
		admin.Close()
	}

	cfg, err := pgxpool.ParseConfig(connStr)
	if err != nil {
		drop()
		return nil, nil, fmt.Errorf("parse database url: %w", err)
	}
	cfg.ConnConfig.RuntimeParams["search_path"] = schema
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		drop()
		return nil, nil, fmt.Errorf("create pool: %w", err)
	}

	if _, err := db.NewMigrator(pool, findMigrationsDir()).Up(ctx); err != nil {
		pool.Close()
		drop()
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return pool, drop, nil
}

// findMigrationsDir locates the migrations directory relative to this test file.
func findMigrationsDir() string {
	_, filename, _, _ := runtime.Caller(0)
	return filepath.Join(filepath.Dir(filename), "..", "..", "migrations")
}

type stack struct {
	identity   *identity.Service
	inbox      *inbox.Service
	careteam   *careteam.Service
	scheduling *scheduling.Service
	billing    *billing.Service
	medication *medication.Service
	clinical   *clinical.Service
	links      careteam.LinkRepository
}

func newStack(t *testing.T) *stack {
	t.Helper()
	if globalPool == nil {
		t.Skip("no database")
	}
	logger := zerolog.Nop()
	tx := db.NewTransactor(globalPool)
	templates := notification.NewTemplateEngine()
	tokens := auth.NewTokenIssuer([]byte("integration-secret-integration-secret"), 0)

	inboxSvc := inbox.NewService(inbox.NewNotificationRepoPG(globalPool), nil, logger)
	links := careteam.NewLinkRepoPG(globalPool)
	return &stack{
		identity: identity.NewService(identity.NewUserRepoPG(globalPool), tokens, blobstore.NewPGStore(globalPool),
			identity.Options{ResetTokenTTL: time.Hour, ResetURLBase: "http://localhost:3000/reset-password"}, logger),
		inbox:      inboxSvc,
		careteam:   careteam.NewService(links, tx, inboxSvc, templates, logger),
		scheduling: scheduling.NewService(scheduling.NewAppointmentRepoPG(globalPool), tx, inboxSvc, templates, logger),
		billing:    billing.NewService(billing.NewBillRepoPG(globalPool), logger),
		medication: medication.NewService(medication.NewPrescriptionRepoPG(globalPool), logger),
		clinical:   clinical.NewService(clinical.NewRecordRepoPG(globalPool), logger),
		links:      links,
	}
}

// register creates an account with a unique email and returns its identity.
func (s *stack) register(t *testing.T, name string, role auth.Role) auth.Identity {
	t.Helper()
	u, err := s.identity.Register(context.Background(), identity.RegisterRequest{
		Name:     name,
		Email:    fmt.Sprintf("%s.%s@example.com", strings.ToLower(strings.ReplaceAll(name, " ", ".")), uuid.NewString()[:8]),
		Password: "correct-horse-battery",
		Role:     string(role),
	}, nil)
	if err != nil {
		t.Fatalf("register %s: %v", name, err)
	}
	return auth.Identity{UserID: u.ID, Role: u.Role}
}
