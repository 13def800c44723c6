package seed

import (
	"context"
	"fmt"
	"log"

	"gatehouse/internal/models"

	"gorm.io/gorm"
)

// Options configures the seeder.
type Options struct {
	Societies        int
	FlatsPerSociety  int
	GuardsPerSociety int
	VisitorsPerFlat  int
	// MaxDays is how far back visit timestamps are spread.
	MaxDays   int
	BatchSize int
	RandSeed  int64
	DryRun    bool
}

// DefaultOptions is what cmd/seed uses without flags.
var DefaultOptions = Options{
	Societies:        2,
	FlatsPerSociety:  12,
	GuardsPerSociety: 2,
	VisitorsPerFlat:  3,
	MaxDays:          30,
	BatchSize:        100,
}

// Summary counts what a run created.
type Summary struct {
	Users         int
	Visits        int
	Notifications int
}

func (s Summary) String() string {
	return fmt.Sprintf("%d users, %d visits, %d notifications", s.Users, s.Visits, s.Notifications)
}

// Seeder populates societies.
type Seeder struct {
	db      *gorm.DB
	opts    Options
	factory *Factory
}

// NewSeeder returns a seeder writing to db.
func NewSeeder(db *gorm.DB, opts Options) *Seeder {
	return &Seeder{db: db, opts: opts, factory: NewFactory(db, opts)}
}

// ClearAll deletes every engine row. Users go last.
func (s *Seeder) ClearAll() error {
	if s.opts.DryRun {
		log.Println("[dry-run] ClearAll skipped")
		return nil
	}
	tx := s.db.Session(&gorm.Session{AllowGlobalUpdate: true})
	for _, m := range []interface{}{
		&models.NotificationRecord{},
		&models.ActivityLog{},
		&models.VisitorRecord{},
		&models.User{},
	} {
		if err := tx.Delete(m).Error; err != nil {
			return fmt.Errorf("clear %T: %w", m, err)
		}
	}
	return nil
}

// SeedRandom generates opts.Societies societies with gofakeit names.
func (s *Seeder) SeedRandom(ctx context.Context) (Summary, error) {
	fx := &Fixture{}
	for i := 0; i < s.opts.Societies; i++ {
		society := SocietyFixture{
			Name:            fmt.Sprintf("%s %s", s.factory.fake.LastName(), s.factory.fake.RandomString([]string{"Heights", "Residency", "Gardens", "Towers", "Enclave"})),
			Admins:          []PersonFixture{{}},
			Businesses:      []PersonFixture{{}},
			VisitorsPerFlat: s.opts.VisitorsPerFlat,
		}
		for g := 0; g < s.opts.GuardsPerSociety; g++ {
			society.Guards = append(society.Guards, PersonFixture{})
		}
		for f := 0; f < s.opts.FlatsPerSociety; f++ {
			society.Residents = append(society.Residents, PersonFixture{Flat: FlatNumber(f)})
		}
		fx.Societies = append(fx.Societies, society)
	}
	return s.ApplyFixture(ctx, fx)
}

// FlatNumber names the i-th flat: A-101, A-102, ... with four flats a floor
// and three floors a block.
func FlatNumber(i int) string {
	block := 'A' + rune(i/12)
	floor := 1 + (i%12)/4
	unit := 1 + i%4
	return fmt.Sprintf("%c-%d%02d", block, floor, unit)
}

// ApplyFixture creates the fixture's people, filling blanks with fake data,
// then seeds visits for every flat.
func (s *Seeder) ApplyFixture(ctx context.Context, fx *Fixture) (Summary, error) {
	var sum Summary
	for _, society := range fx.Societies {
		got, err := s.seedSociety(ctx, society)
		sum.Users += got.Users
		sum.Visits += got.Visits
		sum.Notifications += got.Notifications
		if err != nil {
			return sum, fmt.Errorf("seed %s: %w", society.Name, err)
		}
		log.Printf("✓ %s: %s", society.Name, got)
	}
	return sum, nil
}

func (s *Seeder) seedSociety(ctx context.Context, fx SocietyFixture) (Summary, error) {
	var sum Summary
	create := func(role models.Role, p PersonFixture) (*models.User, error) {
		u, err := s.factory.CreateUser(role, fx.Name, p.Flat, func(u *models.User) {
			if p.Name != "" {
				u.FullName = p.Name
			}
			if p.Phone != "" {
				u.Phone = p.Phone
			}
			if p.Email != "" {
				u.Email = p.Email
			}
		})
		if err == nil {
			sum.Users++
		}
		return u, err
	}

	for _, p := range fx.Admins {
		if _, err := create(models.RoleAdmin, p); err != nil {
			return sum, err
		}
	}
	for _, p := range fx.Businesses {
		if _, err := create(models.RoleBusiness, p); err != nil {
			return sum, err
		}
	}
	var guards []*models.User
	for _, p := range fx.Guards {
		g, err := create(models.RoleGuard, p)
		if err != nil {
			return sum, err
		}
		guards = append(guards, g)
	}
	residents := map[string]*models.User{}
	for _, p := range fx.Residents {
		r, err := create(models.RoleResident, p)
		if err != nil {
			return sum, err
		}
		if _, ok := residents[r.FlatNumber]; !ok {
			residents[r.FlatNumber] = r
		}
	}

	perFlat := fx.VisitorsPerFlat
	if perFlat == 0 {
		perFlat = s.opts.VisitorsPerFlat
	}
	var visits []*models.VisitorRecord
	var prompts []*models.User
	n := 0
	for _, flat := range fx.Flats() {
		for i := 0; i < perFlat; i++ {
			cast := Cast{Resident: residents[flat]}
			if len(guards) > 0 {
				cast.Guard = guards[n%len(guards)]
			}
			rec, err := s.factory.BuildVisit(fx.Name, flat, cast, Scripts[n%len(Scripts)])
			if err != nil {
				return sum, err
			}
			n++
			visits = append(visits, rec)
			prompts = append(prompts, cast.Resident)
		}
	}
	if err := ctx.Err(); err != nil {
		return sum, err
	}
	if err := s.factory.CreateVisitsBatch(visits); err != nil {
		return sum, fmt.Errorf("create visits: %w", err)
	}
	sum.Visits += len(visits)

	for i, rec := range visits {
		if prompts[i] == nil || rec.PermissionStatus != models.PermissionPending {
			continue
		}
		if err := s.factory.CreatePrompt(prompts[i], rec); err != nil {
			return sum, fmt.Errorf("create prompt: %w", err)
		}
		if !s.opts.DryRun {
			sum.Notifications++
		}
	}
	return sum, nil
}
