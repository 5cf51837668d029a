// Package seed registers generated sample customers through the directory
// service, so every uniqueness and range rule applies to them as well.
package seed

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"strings"

	"github.com/google/uuid"

	"customers/internal/customer/models"
	dErrors "customers/pkg/domain-errors"
	"customers/pkg/email"
)

const (
	emailDomain = "example.com"
	minSeedAge  = 18
	maxSeedAge  = 80
)

var (
	firstNames = []string{"ada", "grace", "alan", "edsger", "barbara", "donald", "frances", "ken", "radia", "tim"}
	lastNames  = []string{"lovelace", "hopper", "turing", "dijkstra", "liskov", "knuth", "allen", "thompson", "perlman", "berners-lee"}
)

// Registrar is the slice of the directory service the seeder needs.
type Registrar interface {
	Register(ctx context.Context, req *models.RegistrationRequest) error
}

// Seeder generates and registers sample customers.
type Seeder struct {
	customers Registrar
	logger    *slog.Logger
	rand      *rand.Rand
	newSuffix func() string
}

type Option func(*Seeder)

// WithRand fixes the random source, for reproducible seeds in tests.
func WithRand(r *rand.Rand) Option {
	return func(s *Seeder) {
		s.rand = r
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(s *Seeder) {
		s.logger = logger
	}
}

func New(customers Registrar, opts ...Option) *Seeder {
	s := &Seeder{
		customers: customers,
		rand:      rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64())),
		newSuffix: func() string { return uuid.NewString()[:8] },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Seed registers count customers and returns how many were created. A
// generated email that is already taken is skipped; any other failure stops
// the run.
func (s *Seeder) Seed(ctx context.Context, count int) (int, error) {
	created := 0
	for range count {
		if err := ctx.Err(); err != nil {
			return created, err
		}
		req := s.next()
		if err := s.customers.Register(ctx, req); err != nil {
			if dErrors.HasCode(err, dErrors.CodeDuplicateEmail) {
				s.log(ctx, "seed email already taken, skipping", "email", *req.Email)
				continue
			}
			return created, fmt.Errorf("seed customer %d: %w", created+1, err)
		}
		created++
	}
	s.log(ctx, "seeded customers", "count", created)
	return created, nil
}

func (s *Seeder) next() *models.RegistrationRequest {
	first := firstNames[s.rand.IntN(len(firstNames))]
	last := lastNames[s.rand.IntN(len(lastNames))]
	addr := fmt.Sprintf("%s.%s-%s@%s", first, last, s.newSuffix(), emailDomain)

	givenName, _ := email.DeriveNameFromEmail(first + "@" + emailDomain)
	familyName := capitalizeParts(last)
	name := givenName + " " + familyName
	age := minSeedAge + s.rand.IntN(maxSeedAge-minSeedAge)

	return &models.RegistrationRequest{Name: &name, Email: &addr, Age: &age}
}

// capitalizeParts turns "berners-lee" into "Berners-Lee".
func capitalizeParts(s string) string {
	parts := strings.Split(s, "-")
	for i, p := range parts {
		parts[i], _ = email.DeriveNameFromEmail(p)
	}
	return strings.Join(parts, "-")
}

func (s *Seeder) log(ctx context.Context, msg string, args ...any) {
	if s.logger != nil {
		s.logger.InfoContext(ctx, msg, args...)
	}
}
