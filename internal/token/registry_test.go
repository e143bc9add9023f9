package token

import (
	"errors"
	"fmt"
	"testing"

	"github.com/Klingon-tech/tokenfactory/internal/state"
	"github.com/Klingon-tech/tokenfactory/internal/storage"
)

func recordFor(symbol string) *Record {
	r := testRecord()
	r.TokenID = TokenIDFromSymbol(symbol)
	r.Metadata.Symbol = symbol
	return r
}

func TestRegister_LookupCount(t *testing.T) {
	db := storage.NewMemory()
	tx := state.Begin(db)

	if n, _ := Count(tx); n != 0 {
		t.Fatalf("Count on empty = %d", n)
	}
	if err := Register(tx, recordFor("ABC")); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := tx.Commit(); err != nil {
		t.Fatalf("Commit: %v", err)
	}

	n, err := Count(db)
	if err != nil || n != 1 {
		t.Fatalf("Count = %d, %v; want 1", n, err)
	}
	rec, found, err := Lookup(db, "abc")
	if err != nil || !found {
		t.Fatalf("Lookup = found %v, err %v", found, err)
	}
	if rec.Metadata.Symbol != "ABC" {
		t.Fatalf("Lookup symbol = %q", rec.Metadata.Symbol)
	}
	if _, ok, _ := Lookup(db, "abc"); !ok {
		t.Fatal("Lookup(abc) found = false")
	}

	_, found, err = Lookup(db, "nope")
	if err != nil || found {
		t.Fatalf("Lookup(missing) = found %v, err %v", found, err)
	}
}

func TestRegister_Duplicate(t *testing.T) {
	db := storage.NewMemory()
	tx := state.Begin(db)
	Register(tx, recordFor("ABC"))
	tx.Commit()

	tx = state.Begin(db)
	dup := recordFor("abc")
	dup.OwnerID = "mallory.near"
	err := Register(tx, dup)
	if !errors.Is(err, ErrDuplicateTokenID) {
		t.Fatalf("Register(dup) = %v, want ErrDuplicateTokenID", err)
	}
	if tx.UsageDelta() != 0 {
		t.Fatalf("failed Register wrote %d bytes", tx.UsageDelta())
	}
	tx.Discard()

	rec, _, _ := Lookup(db, "abc")
	if rec.OwnerID != "alice.near" {
		t.Fatalf("existing record changed owner to %q", rec.OwnerID)
	}
}

func TestList_Pagination(t *testing.T) {
	db := storage.NewMemory()
	tx := state.Begin(db)
	// Register out of lexical order to check insertion ordering.
	symbols := []string{"ZED", "ALPHA", "MID", "B2", "C3"}
	for _, s := range symbols {
		if err := Register(tx, recordFor(s)); err != nil {
			t.Fatalf("Register(%s): %v", s, err)
		}
	}
	tx.Commit()

	tests := []struct {
		from, limit uint64
		want        []string
	}{
		{0, 10, []string{"zed", "alpha", "mid", "b2", "c3"}},
		{1, 2, []string{"alpha", "mid"}},
		{3, 100, []string{"b2", "c3"}},
		{5, 1, []string{}},
		{9, 1, []string{}},
		{0, 0, []string{}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("from=%d,limit=%d", tt.from, tt.limit), func(t *testing.T) {
			got, err := List(db, tt.from, tt.limit)
			if err != nil {
				t.Fatalf("List: %v", err)
			}
			if got == nil {
				t.Fatal("List returned nil slice")
			}
			if len(got) != len(tt.want) {
				t.Fatalf("List len = %d, want %d", len(got), len(tt.want))
			}
			for i, rec := range got {
				if rec.TokenID != tt.want[i] {
					t.Fatalf("List[%d] = %s, want %s", i, rec.TokenID, tt.want[i])
				}
			}
		})
	}
}

func TestRegister_VisibleInsideTxnOnly(t *testing.T) {
	db := storage.NewMemory()
	tx := state.Begin(db)
	Register(tx, recordFor("ABC"))

	if _, ok, _ := Lookup(tx, "abc"); !ok {
		t.Fatal("record not visible inside txn")
	}
	if _, ok, _ := Lookup(db, "abc"); ok {
		t.Fatal("record visible before commit")
	}
	tx.Discard()
	if n, _ := Count(db); n != 0 {
		t.Fatalf("Count after discard = %d", n)
	}
}
