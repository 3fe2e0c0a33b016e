package address

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/vendorahq/vendora-backend/pkg/db/models"
	pkgerrors "github.com/vendorahq/vendora-backend/pkg/errors"
)

type testTxRunner struct {
	db *gorm.DB
}

func (r testTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return r.db.WithContext(ctx).Transaction(fn)
}

func TestCreateSetsSingleDefault(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	customerID := uuid.New()

	first, err := svc.Create(ctx, customerID, validInput(true))
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	if !first.IsDefault {
		t.Fatal("first address should be default")
	}

	second, err := svc.Create(ctx, customerID, validInput(true))
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if !second.IsDefault {
		t.Fatal("second address should be default")
	}

	addrs, err := svc.List(ctx, customerID)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(addrs) != 2 {
		t.Fatalf("expected 2 addresses, got %d", len(addrs))
	}
	defaults := 0
	for _, a := range addrs {
		if a.IsDefault {
			defaults++
		}
	}
	if defaults != 1 {
		t.Fatalf("expected exactly one default, got %d", defaults)
	}
	if !addrs[0].IsDefault || addrs[0].ID != second.ID {
		t.Fatal("default address should list first")
	}
}

func TestCreateValidatesRequiredFields(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)

	input := validInput(false)
	input.Line1 = ""
	input.City = " "

	_, err := svc.Create(context.Background(), uuid.New(), input)
	if pkgerrors.As(err).Code() != pkgerrors.CodeValidation {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateIsScopedToOwner(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	owner := uuid.New()

	addr, err := svc.Create(ctx, owner, validInput(false))
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.Update(ctx, addr.ID, uuid.New(), validInput(false)); pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found for foreign customer, got %v", err)
	}

	input := validInput(false)
	input.City = "Pune"
	updated, err := svc.Update(ctx, addr.ID, owner, input)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.City != "Pune" {
		t.Fatalf("city not updated, got %s", updated.City)
	}
}

func TestDeleteRemovesAddress(t *testing.T) {
	t.Parallel()

	db := newTestDB(t)
	svc := newTestService(t, db)
	ctx := context.Background()
	owner := uuid.New()

	addr, err := svc.Create(ctx, owner, validInput(false))
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := svc.Delete(ctx, addr.ID, owner); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := svc.Get(ctx, addr.ID, owner); pkgerrors.As(err).Code() != pkgerrors.CodeNotFound {
		t.Fatalf("expected not found after delete, got %v", err)
	}
}

func validInput(isDefault bool) Input {
	return Input{
		Name:       "Asha Rao",
		Phone:      "9876543210",
		Line1:      "12 MG Road",
		City:       "Bengaluru",
		State:      "Karnataka",
		PostalCode: "560001",
		IsDefault:  isDefault,
	}
}

func newTestService(t *testing.T, db *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(NewRepository(db), testTxRunner{db: db})
	if err != nil {
		t.Fatalf("build service: %v", err)
	}
	return svc
}

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:address_" + uuid.NewString() + "?mode=memory&cache=shared"
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := db.AutoMigrate(&models.CustomerAddress{}); err != nil {
		t.Fatalf("migrate addresses: %v", err)
	}
	return db
}
