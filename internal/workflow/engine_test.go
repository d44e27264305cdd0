package workflow

import (
	"errors"
	"testing"
	"time"

	"rejectionlog/internal/model"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var fixedNow = time.Date(2025, 11, 3, 9, 30, 0, 0, time.UTC)

func newTestEngine() *Engine {
	return NewEngineWithClock(func() time.Time { return fixedNow })
}

func testUser(role model.Role) model.User {
	return model.User{ID: uuid.New(), Username: string(role) + "1", Name: "Test " + string(role), Role: role}
}

func testProduct() model.Product {
	return model.Product{ID: uuid.New(), Name: "Paracetamol Tablets 500mg", BatchNo: "PCT001", LineNo: "Line-A1"}
}

func weight(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

// pendingEntry builds an entry sitting at the given status with the given
// users assigned to their stages.
func pendingEntry(status model.Status, prodUser, storesUser model.User) model.LogEntry {
	p := testProduct()
	prodID, storesID := prodUser.ID, storesUser.ID
	return model.LogEntry{
		ID:                     uuid.New(),
		Date:                   "2025-11-03",
		ProductID:              p.ID,
		ProductName:            p.Name,
		BatchNo:                p.BatchNo,
		LineNo:                 p.LineNo,
		CreatedBy:              prodID,
		CreatedByRole:          model.RoleProduction,
		Status:                 status,
		AssignedProductionUser: &prodID,
		AssignedStoresUser:     &storesID,
	}
}

func TestCanEdit(t *testing.T) {
	prod := testUser(model.RoleProduction)
	stores := testUser(model.RoleStores)
	qa := testUser(model.RoleQA)
	hod := testUser(model.RoleHOD)
	admin := testUser(model.RoleAdmin)
	otherProd := testUser(model.RoleProduction)

	e := newTestEngine()

	tests := []struct {
		name   string
		user   model.User
		status model.Status
		want   bool
	}{
		{"hod always", hod, model.StatusApproved, true},
		{"admin always", admin, model.StatusRejected, true},
		{"assigned production at production_pending", prod, model.StatusProductionPending, true},
		{"assigned production past own stage", prod, model.StatusStoresPending, false},
		{"unassigned production", otherProd, model.StatusProductionPending, false},
		{"assigned stores at stores_pending", stores, model.StatusStoresPending, true},
		{"stores before own stage", stores, model.StatusProductionPending, false},
		{"qa at qa_pending", qa, model.StatusQAPending, true},
		{"qa at terminal", qa, model.StatusApproved, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := pendingEntry(tt.status, prod, stores)
			if got := e.CanEdit(tt.user, entry); got != tt.want {
				t.Fatalf("CanEdit(%s, %s) = %v, want %v", tt.user.Role, tt.status, got, tt.want)
			}
		})
	}
}

func TestCanApproveAndReopen(t *testing.T) {
	prod := testUser(model.RoleProduction)
	stores := testUser(model.RoleStores)
	qa := testUser(model.RoleQA)
	hod := testUser(model.RoleHOD)

	e := newTestEngine()

	if e.CanApprove(stores, pendingEntry(model.StatusQAPending, prod, stores)) {
		t.Fatal("stores role must not approve a qa_pending entry")
	}
	if !e.CanApprove(qa, pendingEntry(model.StatusQAPending, prod, stores)) {
		t.Fatal("qa role must approve a qa_pending entry")
	}
	if e.CanApprove(qa, pendingEntry(model.StatusStoresPending, prod, stores)) {
		t.Fatal("qa must not approve before the stores stage completes")
	}
	if !e.CanReopen(hod, pendingEntry(model.StatusApproved, prod, stores)) {
		t.Fatal("hod must reopen an approved entry")
	}
	if !e.CanReopen(hod, pendingEntry(model.StatusRejected, prod, stores)) {
		t.Fatal("hod must reopen a rejected entry")
	}
	if e.CanReopen(hod, pendingEntry(model.StatusQAPending, prod, stores)) {
		t.Fatal("hod must not reopen a pending entry")
	}
	if e.CanReopen(qa, pendingEntry(model.StatusApproved, prod, stores)) {
		t.Fatal("qa must not reopen")
	}
}

func TestNewEntryByProductionUser(t *testing.T) {
	e := newTestEngine()
	prod := testUser(model.RoleProduction)
	stores := testUser(model.RoleStores)
	storesID := stores.ID

	entry, audit, err := e.NewEntry(prod, CreateInput{
		Product:             testProduct(),
		AssignedStoresUser:  &storesID,
		PolyBagNo:           "PB1",
		GrossWeight:         weight("12.5"),
		ProductionConfirmed: true,
	})
	if err != nil {
		t.Fatalf("NewEntry: %v", err)
	}
	if entry.Status != model.StatusStoresPending {
		t.Fatalf("status = %s, want stores_pending", entry.Status)
	}
	if entry.ProductionTimestamp == nil || !entry.ProductionTimestamp.Equal(fixedNow) {
		t.Fatalf("production timestamp not stamped: %v", entry.ProductionTimestamp)
	}
	if entry.AssignedProductionUser == nil || *entry.AssignedProductionUser != prod.ID {
		t.Fatal("creator not self-assigned to the production stage")
	}
	if audit.Action != model.ActionCreate || audit.NewStatus != model.StatusStoresPending {
		t.Fatalf("audit mismatch: %+v", audit)
	}
	if audit.PreviousStatus != "" {
		t.Fatalf("create audit must have empty previous status, got %s", audit.PreviousStatus)
	}
}

func TestNewEntryByHOD(t *testing.T) {
	e := newTestEngine()
	hod := testUser(model.RoleHOD)
	prod := testUser(model.RoleProduction)
	stores := testUser(model.RoleStores)
	prodID, storesID := prod.ID, stores.ID

	entry, _, err := e.NewEntry(hod, CreateInput{
		Product:                testProduct(),
		AssignedProductionUser: &prodID,
		AssignedStoresUser:     &storesID,
	})
	if err != nil {
		t.Fatalf("NewEntry: %v", err)
	}
	if entry.Status != model.StatusProductionPending {
		t.Fatalf("status = %s, want production_pending", entry.Status)
	}
	if entry.ProductionConfirmed {
		t.Fatal("production must not be confirmed on an unconfirmed HOD creation")
	}

	// HOD must assign both stage users.
	_, _, err = e.NewEntry(hod, CreateInput{Product: testProduct(), AssignedStoresUser: &storesID})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestNewEntryDeniedForStoresAndQA(t *testing.T) {
	e := newTestEngine()
	for _, role := range []model.Role{model.RoleStores, model.RoleQA} {
		if _, _, err := e.NewEntry(testUser(role), CreateInput{Product: testProduct()}); !errors.Is(err, ErrPermissionDenied) {
			t.Fatalf("role %s: expected ErrPermissionDenied, got %v", role, err)
		}
	}
}

func TestApplySaveProductionStage(t *testing.T) {
	e := newTestEngine()
	prod := testUser(model.RoleProduction)
	stores := testUser(model.RoleStores)

	tests := []struct {
		name       string
		in         SaveInput
		wantFields []string
	}{
		{"missing poly bag", SaveInput{GrossWeight: weight("12.5"), ProductionConfirmed: true}, []string{"poly_bag_no"}},
		{"missing weight", SaveInput{PolyBagNo: "PB1", ProductionConfirmed: true}, []string{"gross_weight"}},
		{"unconfirmed", SaveInput{PolyBagNo: "PB1", GrossWeight: weight("12.5")}, []string{"production_confirmed"}},
		{"everything missing", SaveInput{}, []string{"poly_bag_no", "gross_weight", "production_confirmed"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			entry := pendingEntry(model.StatusProductionPending, prod, stores)
			got, _, err := e.ApplySave(prod, entry, tt.in)
			var ve *ValidationError
			if !errors.As(err, &ve) {
				t.Fatalf("expected ValidationError, got %v", err)
			}
			if len(ve.Fields) != len(tt.wantFields) {
				t.Fatalf("fields = %v, want %v", ve.Fields, tt.wantFields)
			}
			if got.Status != model.StatusProductionPending || got.PolyBagNo != "" || got.ProductionConfirmed {
				t.Fatalf("entry mutated on validation failure: %+v", got)
			}
		})
	}

	entry := pendingEntry(model.StatusProductionPending, prod, stores)
	got, audit, err := e.ApplySave(prod, entry, SaveInput{
		PolyBagNo: "PB1", GrossWeight: weight("12.5"), ProductionConfirmed: true, ProductionRemarks: "torn bag",
	})
	if err != nil {
		t.Fatalf("ApplySave: %v", err)
	}
	if got.Status != model.StatusStoresPending {
		t.Fatalf("status = %s, want stores_pending", got.Status)
	}
	if got.ProductionUser == nil || *got.ProductionUser != prod.ID {
		t.Fatal("acting production user not stamped")
	}
	if got.LastModifiedBy != prod.Name || got.LastModifiedAt == nil {
		t.Fatal("last modified stamp missing")
	}
	if audit.PreviousStatus != model.StatusProductionPending || audit.NewStatus != model.StatusStoresPending {
		t.Fatalf("audit status pair wrong: %+v", audit)
	}
	if audit.Action != model.ActionUpdate {
		t.Fatalf("audit action = %s, want UPDATE", audit.Action)
	}
}

func TestApplySaveStoresStage(t *testing.T) {
	e := newTestEngine()
	prod := testUser(model.RoleProduction)
	stores := testUser(model.RoleStores)

	entry := pendingEntry(model.StatusStoresPending, prod, stores)
	_, _, err := e.ApplySave(stores, entry, SaveInput{
		GrossWeightObserved:   weight("12.4"),
		DestructionDoneBy:     "",
		DestructionVerifiedBy: "S. Verifier",
		StoresConfirmed:       true,
	})
	var ve *ValidationError
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	// hasVariations=true demands non-empty details.
	_, _, err = e.ApplySave(stores, entry, SaveInput{
		GrossWeightObserved:   weight("12.4"),
		DestructionDoneBy:     "M. Stores",
		DestructionVerifiedBy: "S. Verifier",
		StoresConfirmed:       true,
		HasVariations:         true,
		VariationDetails:      "   ",
	})
	if !errors.As(err, &ve) {
		t.Fatalf("expected ValidationError for empty variation details, got %v", err)
	}

	got, audit, err := e.ApplySave(stores, entry, SaveInput{
		GrossWeightObserved:   weight("12.4"),
		DestructionDoneBy:     "M. Stores",
		DestructionVerifiedBy: "S. Verifier",
		StoresConfirmed:       true,
		HasVariations:         true,
		VariationDetails:      "0.1 kg short of production figure",
	})
	if err != nil {
		t.Fatalf("ApplySave: %v", err)
	}
	if got.Status != model.StatusQAPending {
		t.Fatalf("status = %s, want qa_pending", got.Status)
	}
	if got.RecordedBy != stores.Name || got.RecordedTimestamp == nil {
		t.Fatal("stores recording stamp missing")
	}
	if !got.HasVariations || got.VariationDetails == "" {
		t.Fatal("variation flag/details not stamped")
	}
	if audit.PreviousStatus != model.StatusStoresPending || audit.NewStatus != model.StatusQAPending {
		t.Fatalf("audit status pair wrong: %+v", audit)
	}
}

func TestApplySaveQARemarksIsIdempotentOnStatus(t *testing.T) {
	e := newTestEngine()
	prod := testUser(model.RoleProduction)
	stores := testUser(model.RoleStores)
	qa := testUser(model.RoleQA)

	entry := pendingEntry(model.StatusQAPending, prod, stores)
	first, audit1, err := e.ApplySave(qa, entry, SaveInput{QARemarks: "checking weights"})
	if err != nil {
		t.Fatalf("first save: %v", err)
	}
	second, audit2, err := e.ApplySave(qa, first, SaveInput{QARemarks: "checking weights"})
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if first.Status != model.StatusQAPending || second.Status != model.StatusQAPending {
		t.Fatal("qa remarks-only save must not change status")
	}
	if second.QARemarks != "checking weights" {
		t.Fatalf("remarks = %q", second.QARemarks)
	}
	if audit1.ID == audit2.ID {
		t.Fatal("each save must build its own audit record")
	}
	if audit1.PreviousStatus != audit1.NewStatus {
		t.Fatalf("remarks-only audit must keep status pair equal: %+v", audit1)
	}
}

func TestApplySaveHODStandIn(t *testing.T) {
	e := newTestEngine()
	prod := testUser(model.RoleProduction)
	stores := testUser(model.RoleStores)
	hod := testUser(model.RoleHOD)

	entry := pendingEntry(model.StatusStoresPending, prod, stores)
	got, _, err := e.ApplySave(hod, entry, SaveInput{
		GrossWeightObserved:   weight("11.9"),
		DestructionDoneBy:     "M. Stores",
		DestructionVerifiedBy: "S. Verifier",
		StoresConfirmed:       true,
	})
	if err != nil {
		t.Fatalf("hod stand-in save: %v", err)
	}
	if got.Status != model.StatusQAPending {
		t.Fatalf("status = %s, want qa_pending", got.Status)
	}
	if got.RecordedBy != hod.Name {
		t.Fatal("stand-in must be recorded as the acting user")
	}

	// No branch applies to a terminal entry, even for HOD.
	terminal := pendingEntry(model.StatusApproved, prod, stores)
	if _, _, err := e.ApplySave(hod, terminal, SaveInput{}); !errors.Is(err, ErrNoEditableStage) {
		t.Fatalf("expected ErrNoEditableStage, got %v", err)
	}
}

func TestApplySaveDeniedOutsideAssignment(t *testing.T) {
	e := newTestEngine()
	prod := testUser(model.RoleProduction)
	stores := testUser(model.RoleStores)
	intruder := testUser(model.RoleProduction)

	entry := pendingEntry(model.StatusProductionPending, prod, stores)
	if _, _, err := e.ApplySave(intruder, entry, SaveInput{}); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	// Stores role ahead of its stage.
	if _, _, err := e.ApplySave(stores, entry, SaveInput{}); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}

func TestApproveAndReject(t *testing.T) {
	e := newTestEngine()
	prod := testUser(model.RoleProduction)
	stores := testUser(model.RoleStores)
	qa := testUser(model.RoleQA)

	entry := pendingEntry(model.StatusQAPending, prod, stores)

	for _, remarks := range []string{"", "   \t"} {
		got, _, err := e.Approve(qa, entry, remarks)
		var ve *ValidationError
		if !errors.As(err, &ve) {
			t.Fatalf("remarks %q: expected ValidationError, got %v", remarks, err)
		}
		if got.Status != model.StatusQAPending || got.QASignedOff {
			t.Fatal("entry mutated on rejected validation")
		}
		if _, _, err := e.Reject(qa, entry, remarks); !errors.As(err, &ve) {
			t.Fatalf("reject with remarks %q: expected ValidationError, got %v", remarks, err)
		}
	}

	approved, audit, err := e.Approve(qa, entry, "weights reconciled")
	if err != nil {
		t.Fatalf("Approve: %v", err)
	}
	if approved.Status != model.StatusApproved || !approved.QASignedOff || approved.QAApprovalStatus != model.QAOutcomeApproved {
		t.Fatalf("approve stamps wrong: %+v", approved)
	}
	if approved.QAUser == nil || *approved.QAUser != qa.ID || approved.QATimestamp == nil {
		t.Fatal("qa identity/timestamp not stamped")
	}
	if audit.Action != model.ActionApprove || audit.PreviousStatus != model.StatusQAPending || audit.NewStatus != model.StatusApproved {
		t.Fatalf("approve audit wrong: %+v", audit)
	}

	rejected, audit, err := e.Reject(qa, entry, "Weight mismatch")
	if err != nil {
		t.Fatalf("Reject: %v", err)
	}
	if rejected.Status != model.StatusRejected || rejected.QASignedOff || rejected.QAApprovalStatus != model.QAOutcomeRejected {
		t.Fatalf("reject stamps wrong: %+v", rejected)
	}
	if audit.Action != model.ActionReject || audit.NewStatus != model.StatusRejected {
		t.Fatalf("reject audit wrong: %+v", audit)
	}

	// Terminal entries are closed to QA.
	if _, _, err := e.Approve(qa, approved, "again"); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied on approved entry, got %v", err)
	}
}

func TestReopen(t *testing.T) {
	e := newTestEngine()
	prod := testUser(model.RoleProduction)
	stores := testUser(model.RoleStores)
	hod := testUser(model.RoleHOD)

	entry := pendingEntry(model.StatusApproved, prod, stores)
	got, audit, err := e.Reopen(hod, entry)
	if err != nil {
		t.Fatalf("Reopen: %v", err)
	}
	if got.Status != model.StatusReopened {
		t.Fatalf("status = %s, want reopened", got.Status)
	}
	if got.ReopenedBy == nil || *got.ReopenedBy != hod.ID || got.ReopenedAt == nil {
		t.Fatal("reopen stamps missing")
	}
	if audit.Action != model.ActionReopen || audit.PreviousStatus != model.StatusApproved || audit.NewStatus != model.StatusReopened {
		t.Fatalf("reopen audit wrong: %+v", audit)
	}

	if _, _, err := e.Reopen(hod, got); !errors.Is(err, ErrPermissionDenied) {
		t.Fatalf("reopening a reopened entry must be denied, got %v", err)
	}
	if _, _, err := e.Reopen(testUser(model.RoleAdmin), entry); !errors.Is(err, ErrPermissionDenied) {
		t.Fatal("admin must not reopen")
	}
}
