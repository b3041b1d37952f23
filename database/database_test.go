package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"gorm.io/gorm"

	apperrors "github.com/kbukum/speakerhub/errors"
	"github.com/kbukum/speakerhub/logger"
)

type widget struct {
	BaseModel
	Label string
}

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := New(context.Background(), Config{Driver: DriverSQLite, DSN: ":memory:", MaxRetries: 1}, logger.Nop())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	if err := db.AutoMigrate(&widget{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func TestConfigDefaultsAndValidate(t *testing.T) {
	cfg := Config{Enabled: true}
	cfg.ApplyDefaults()
	if cfg.Driver != DriverSQLite || cfg.DSN == "" || cfg.LogLevel != "warn" {
		t.Errorf("defaults = %+v", cfg)
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("validate: %v", err)
	}

	bad := cfg
	bad.Driver = "mysql"
	if err := bad.Validate(); err == nil {
		t.Error("expected unsupported driver error")
	}
	bad = cfg
	bad.SlowQueryThreshold = "soon"
	if err := bad.Validate(); err == nil || !strings.Contains(err.Error(), "slow_query_threshold") {
		t.Errorf("got %v", err)
	}
	bad = cfg
	bad.MaxIdleConns = 100
	if err := bad.Validate(); err == nil {
		t.Error("expected idle > open error")
	}
}

func TestBaseModelGeneratesID(t *testing.T) {
	db := openTestDB(t)
	w := widget{Label: "a"}
	if err := db.WithContext(context.Background()).Create(&w).Error; err != nil {
		t.Fatal(err)
	}
	if len(w.ID) != 36 {
		t.Errorf("id = %q", w.ID)
	}
}

func TestWithTransactionRollback(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()

	err := db.WithTransaction(ctx, func(tx *gorm.DB) error {
		if err := tx.Create(&widget{Label: "x"}).Error; err != nil {
			return err
		}
		return errors.New("abort")
	})
	if err == nil || err.Error() != "abort" {
		t.Fatalf("got %v", err)
	}
	var n int64
	db.WithContext(ctx).Model(&widget{}).Count(&n)
	if n != 0 {
		t.Errorf("rows after rollback = %d", n)
	}

	if err := db.WithTransaction(ctx, func(tx *gorm.DB) error {
		return tx.Create(&widget{Label: "y"}).Error
	}); err != nil {
		t.Fatal(err)
	}
	db.WithContext(ctx).Model(&widget{}).Count(&n)
	if n != 1 {
		t.Errorf("rows after commit = %d", n)
	}
}

func TestWithTransactionPanic(t *testing.T) {
	db := openTestDB(t)
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic to propagate")
		}
		var n int64
		db.WithContext(context.Background()).Model(&widget{}).Count(&n)
		if n != 0 {
			t.Errorf("rows after panic = %d", n)
		}
	}()
	_ = db.WithTransaction(context.Background(), func(tx *gorm.DB) error {
		tx.Create(&widget{Label: "z"})
		panic("boom")
	})
}

func TestFromDatabase(t *testing.T) {
	if FromDatabase(nil, "speaker") != nil {
		t.Error("nil should map to nil")
	}
	nf := FromDatabase(fmt.Errorf("find: %w", gorm.ErrRecordNotFound), "speaker")
	if nf.Code != apperrors.ErrCodeNotFound {
		t.Errorf("code = %s", nf.Code)
	}
	pf := FromDatabase(errors.New("connection refused"), "segments")
	if pf.Code != apperrors.ErrCodePersistenceFailure || pf.Details["connection"] != true {
		t.Errorf("got %+v", pf)
	}
	orig := apperrors.Validation("bad")
	if FromDatabase(orig, "x") != orig {
		t.Error("existing AppError should pass through")
	}
}

func TestComponentLifecycle(t *testing.T) {
	c := NewComponent(Config{Enabled: true, DSN: ":memory:", AutoMigrate: true, MaxRetries: 1}, logger.Nop()).
		WithAutoMigrate(&widget{})
	ctx := context.Background()
	if h := c.Health(ctx); h.Status != "unhealthy" {
		t.Errorf("health before start = %s", h.Status)
	}
	if err := c.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if !c.DB().GormDB.Migrator().HasTable(&widget{}) {
		t.Error("expected widget table")
	}
	if h := c.Health(ctx); h.Status != "healthy" {
		t.Errorf("health = %+v", h)
	}
	if err := c.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(c.Describe().Details, "driver=sqlite") {
		t.Errorf("describe = %+v", c.Describe())
	}
}

func TestComponentVersionedMigrations(t *testing.T) {
	ctx := context.Background()
	cfg := Config{Enabled: true, DSN: ":memory:", AutoMigrate: true, Migrations: MigrationsVersioned, MaxRetries: 1}

	bare := NewComponent(cfg, logger.Nop()).WithAutoMigrate(&widget{})
	if err := bare.Start(ctx); err == nil || !strings.Contains(err.Error(), "no migrator") {
		t.Fatalf("start without migrator = %v", err)
	}
	_ = bare.Stop(ctx)

	var ran bool
	c := NewComponent(cfg, logger.Nop()).
		WithAutoMigrate(&widget{}).
		WithMigrator(func(_ context.Context, db *DB) error {
			ran = true
			return db.GormDB.Exec("CREATE TABLE widgets (id varchar(36) PRIMARY KEY, created_at datetime, updated_at datetime, label text)").Error
		})
	if err := c.Start(ctx); err != nil {
		t.Fatal(err)
	}
	defer func() { _ = c.Stop(ctx) }()
	if !ran {
		t.Fatal("migrator not called")
	}
	if err := c.DB().GormDB.Create(&widget{Label: "a"}).Error; err != nil {
		t.Fatalf("insert into migrated table: %v", err)
	}
	if !strings.Contains(c.Describe().Details, "migrations=versioned") {
		t.Errorf("describe = %+v", c.Describe())
	}
}
