package service

import (
	"context"
	"errors"
	"testing"

	"rejectionlog/internal/database"
	"rejectionlog/internal/model"
	"rejectionlog/internal/repository"
	"rejectionlog/internal/workflow"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// openTestDB creates an in-memory sqlite DB with the full schema migrated.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// An in-memory sqlite database lives per connection.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

type testEnv struct {
	svc     LogEntryService
	db      *gorm.DB
	audits  repository.AuditRepository
	entries repository.LogEntryRepository
	prod    model.User
	prod2   model.User
	stores  model.User
	qa      model.User
	hod     model.User
	product model.Product
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db := openTestDB(t)

	env := &testEnv{
		db:      db,
		prod:    model.User{ID: uuid.New(), Username: "prod1", Name: "John Production", Password: "x", Role: model.RoleProduction},
		prod2:   model.User{ID: uuid.New(), Username: "prod2", Name: "Jane Production", Password: "x", Role: model.RoleProduction},
		stores:  model.User{ID: uuid.New(), Username: "store1", Name: "Mike Stores", Password: "x", Role: model.RoleStores},
		qa:      model.User{ID: uuid.New(), Username: "qa1", Name: "Sarah QA", Password: "x", Role: model.RoleQA},
		hod:     model.User{ID: uuid.New(), Username: "hod1", Name: "Robert HOD", Password: "x", Role: model.RoleHOD},
		product: model.Product{ID: uuid.New(), Name: "Paracetamol 500mg", BatchNo: "PCT001", LineNo: "Line-A1"},
	}
	for _, u := range []model.User{env.prod, env.prod2, env.stores, env.qa, env.hod} {
		if err := db.Create(&u).Error; err != nil {
			t.Fatalf("seed user %s: %v", u.Username, err)
		}
	}
	if err := db.Create(&env.product).Error; err != nil {
		t.Fatalf("seed product: %v", err)
	}

	env.entries = repository.NewLogEntryRepository(db)
	env.audits = repository.NewAuditRepository(db)
	env.svc = NewLogEntryService(
		env.entries,
		env.audits,
		repository.NewProductRepository(db),
		repository.NewUserRepository(db),
		repository.NewTransactionManager(db),
		workflow.NewEngine(),
		nil, // no websocket hub under test
	)
	return env
}

func (e *testEnv) createConfirmedEntry(t *testing.T) *model.LogEntry {
	t.Helper()
	weight := decimal.NewFromFloat(12.5)
	entry, err := e.svc.Create(context.Background(), e.prod.ID, CreateLogEntryRequest{
		Date:                "2026-03-12",
		ProductID:           e.product.ID.String(),
		AssignedStoresUser:  e.stores.ID.String(),
		PolyBagNo:           "PB-101",
		GrossWeight:         &weight,
		ProductionConfirmed: true,
	})
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}
	return entry
}

func (e *testEnv) auditTrail(t *testing.T, entryID uuid.UUID) []model.AuditLog {
	t.Helper()
	logs, _, err := e.audits.List(context.Background(), repository.AuditFilter{LogEntryID: &entryID})
	if err != nil {
		t.Fatalf("list audits: %v", err)
	}
	return logs
}

func TestPipelineProductionToApproval(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	entry := env.createConfirmedEntry(t)
	if entry.Status != model.StatusStoresPending {
		t.Fatalf("after create status = %s, want %s", entry.Status, model.StatusStoresPending)
	}
	if entry.ProductName != "Paracetamol 500mg" || entry.BatchNo != "PCT001" {
		t.Errorf("product fields not denormalized: %s / %s", entry.ProductName, entry.BatchNo)
	}

	observed := decimal.NewFromFloat(12.45)
	entry2, err := env.svc.SaveStage(ctx, env.stores.ID, entry.ID, SaveStageRequest{
		GrossWeightObserved:   &observed,
		DestructionDoneBy:     "Mike Stores",
		DestructionVerifiedBy: "Robert HOD",
		StoresConfirmed:       true,
		HasVariations:         true,
		VariationDetails:      "0.05kg short on scale B",
	})
	if err != nil {
		t.Fatalf("stores save: %v", err)
	}
	if entry2.Status != model.StatusQAPending {
		t.Fatalf("after stores save status = %s, want %s", entry2.Status, model.StatusQAPending)
	}
	if entry2.RecordedBy != "Mike Stores" {
		t.Errorf("recorded by = %q", entry2.RecordedBy)
	}

	entry3, err := env.svc.Approve(ctx, env.qa.ID, entry.ID, "Verified against batch record")
	if err != nil {
		t.Fatalf("approve: %v", err)
	}
	if entry3.Status != model.StatusApproved || !entry3.QASignedOff {
		t.Fatalf("after approve status = %s signedOff = %v", entry3.Status, entry3.QASignedOff)
	}
	if entry3.QAApprovalStatus != model.QAOutcomeApproved {
		t.Errorf("qa outcome = %q", entry3.QAApprovalStatus)
	}

	entry4, err := env.svc.Reopen(ctx, env.hod.ID, entry.ID)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	if entry4.Status != model.StatusReopened {
		t.Fatalf("after reopen status = %s, want %s", entry4.Status, model.StatusReopened)
	}

	trail := env.auditTrail(t, entry.ID)
	if len(trail) != 4 {
		t.Fatalf("audit trail length = %d, want 4", len(trail))
	}
	got := map[model.AuditAction]bool{}
	for _, rec := range trail {
		got[rec.Action] = true
	}
	for _, want := range []model.AuditAction{model.ActionCreate, model.ActionUpdate, model.ActionApprove, model.ActionReopen} {
		if !got[want] {
			t.Errorf("audit trail missing action %s", want)
		}
	}
}

func TestSaveStageValidationFailureLeavesEntryUntouched(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	entry := env.createConfirmedEntry(t)

	// Confirming the stores stage without the destruction fields must fail.
	_, err := env.svc.SaveStage(ctx, env.stores.ID, entry.ID, SaveStageRequest{
		StoresConfirmed: true,
	})
	if !workflow.IsValidation(err) {
		t.Fatalf("err = %v, want validation error", err)
	}

	reloaded, err := env.entries.FindByID(ctx, entry.ID)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Status != model.StatusStoresPending || reloaded.StoresConfirmed {
		t.Errorf("entry mutated by failed save: status=%s confirmed=%v", reloaded.Status, reloaded.StoresConfirmed)
	}

	// A failed transition writes no audit record.
	if trail := env.auditTrail(t, entry.ID); len(trail) != 1 {
		t.Errorf("audit trail length = %d, want 1 (create only)", len(trail))
	}
}

func TestApprovalNeedsQARole(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	entry := env.createConfirmedEntry(t)

	_, err := env.svc.Approve(ctx, env.stores.ID, entry.ID, "looks fine")
	if !errors.Is(err, workflow.ErrPermissionDenied) {
		t.Fatalf("err = %v, want ErrPermissionDenied", err)
	}
}

func TestCreateRejectsAssigneeWithWrongRole(t *testing.T) {
	env := newTestEnv(t)
	weight := decimal.NewFromFloat(3)

	// QA user assigned to the stores stage has the wrong role.
	_, err := env.svc.Create(context.Background(), env.prod.ID, CreateLogEntryRequest{
		ProductID:           env.product.ID.String(),
		AssignedStoresUser:  env.qa.ID.String(),
		PolyBagNo:           "PB-1",
		GrossWeight:         &weight,
		ProductionConfirmed: true,
	})
	if !workflow.IsValidation(err) {
		t.Fatalf("err = %v, want validation error", err)
	}
}

func TestListScopesEntriesByRole(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	entry := env.createConfirmedEntry(t)

	// An entry created by the other production user, invisible to the first.
	weight := decimal.NewFromFloat(5)
	other, err := env.svc.Create(ctx, env.prod2.ID, CreateLogEntryRequest{
		ProductID:           env.product.ID.String(),
		AssignedStoresUser:  env.stores.ID.String(),
		PolyBagNo:           "PB-202",
		GrossWeight:         &weight,
		ProductionConfirmed: true,
	})
	if err != nil {
		t.Fatalf("create second entry: %v", err)
	}

	mine, total, err := env.svc.List(ctx, env.prod.ID, ListLogEntriesRequest{Tab: "all"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 1 || len(mine) != 1 || mine[0].ID != entry.ID {
		t.Fatalf("production list = %d entries (total %d), want only own entry", len(mine), total)
	}

	// QA sees nothing while both entries still sit with stores.
	qaList, _, err := env.svc.List(ctx, env.qa.ID, ListLogEntriesRequest{Tab: "all"})
	if err != nil {
		t.Fatalf("qa list: %v", err)
	}
	if len(qaList) != 0 {
		t.Fatalf("qa list = %d entries, want 0 before qa_pending", len(qaList))
	}

	// HOD sees everything.
	all, total, err := env.svc.List(ctx, env.hod.ID, ListLogEntriesRequest{Tab: "all"})
	if err != nil {
		t.Fatalf("hod list: %v", err)
	}
	if total != 2 || len(all) != 2 {
		t.Fatalf("hod list = %d entries (total %d), want 2", len(all), total)
	}
	_ = other
}

func TestGetByIDReportsCapabilities(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	entry := env.createConfirmedEntry(t)

	detail, err := env.svc.GetByID(ctx, env.stores.ID, entry.ID)
	if err != nil {
		t.Fatalf("get as stores: %v", err)
	}
	if !detail.CanEdit || detail.CanApprove || detail.CanReopen {
		t.Errorf("stores capabilities = edit:%v approve:%v reopen:%v", detail.CanEdit, detail.CanApprove, detail.CanReopen)
	}

	detail, err = env.svc.GetByID(ctx, env.qa.ID, entry.ID)
	if err != nil {
		t.Fatalf("get as qa: %v", err)
	}
	if detail.CanEdit || detail.CanApprove {
		t.Errorf("qa should have no rights while entry is with stores")
	}

	if _, err := env.svc.GetByID(ctx, env.qa.ID, uuid.New()); !errors.Is(err, ErrEntryNotFound) {
		t.Errorf("missing entry err = %v, want ErrEntryNotFound", err)
	}
}
