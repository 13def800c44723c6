package seed

import (
	"context"
	"testing"

	"gatehouse/internal/models"
	"gatehouse/internal/testutil"
)

func TestLoadFixture(t *testing.T) {
	fx, err := LoadFixture("testdata/societies.yml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(fx.Societies) != 2 {
		t.Fatalf("societies = %d", len(fx.Societies))
	}
	green := fx.Societies[0]
	if got := green.Flats(); len(got) != 2 || got[0] != "A-101" || got[1] != "B-202" {
		t.Fatalf("flats = %v", got)
	}
	if green.Guards[0].Phone != "+91 98450 00001" {
		t.Fatalf("guard phone = %q", green.Guards[0].Phone)
	}
}

func TestParseFixture_Invalid(t *testing.T) {
	cases := map[string]string{
		"empty":          "societies: []",
		"no name":        "societies: [{guards: [{name: x}]}]",
		"duplicate":      "societies: [{name: A}, {name: a}]",
		"resident flat":  "societies: [{name: A, residents: [{name: Meera}]}]",
		"negative count": "societies: [{name: A, visitors_per_flat: -1}]",
		"not yaml":       "societies: [",
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := ParseFixture([]byte(raw)); err == nil {
				t.Fatal("expected error")
			}
		})
	}
}

func TestApplyFixture(t *testing.T) {
	db := testutil.NewSQLiteDB(t)
	fx, err := LoadFixture("testdata/societies.yml")
	if err != nil {
		t.Fatalf("load: %v", err)
	}

	s := NewSeeder(db, Options{VisitorsPerFlat: 1, RandSeed: 3})
	sum, err := s.ApplyFixture(context.Background(), fx)
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	if sum.Users != 9 {
		t.Fatalf("users = %d, want 9", sum.Users)
	}
	// Green Acres: 2 flats x 2; Blue Hills falls back to 1 per flat.
	if sum.Visits != 5 {
		t.Fatalf("visits = %d, want 5", sum.Visits)
	}

	var ravi models.User
	if err := db.Where("full_name = ?", "Ravi Kumar").First(&ravi).Error; err != nil {
		t.Fatalf("find guard: %v", err)
	}
	if ravi.Role != models.RoleGuard || ravi.SocietyName != "Green Acres" {
		t.Fatalf("unexpected guard row: %+v", ravi)
	}

	var foreign int64
	db.Model(&models.VisitorRecord{}).
		Where("society_name = ? AND flat_number NOT IN ?", "Green Acres", []string{"A-101", "B-202"}).
		Count(&foreign)
	if foreign != 0 {
		t.Fatalf("%d visits for unknown flats", foreign)
	}

	var visit models.VisitorRecord
	if err := db.Where("society_name = ? AND flat_number = ?", "Green Acres", "A-101").
		Order("id").First(&visit).Error; err != nil {
		t.Fatalf("find visit: %v", err)
	}
	if visit.GuardName != "Ravi Kumar" {
		t.Fatalf("first visit logged by %q, want the first guard", visit.GuardName)
	}
}
