package service

import (
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Kerhoff/fitrooms/internal/dates"
	"github.com/Kerhoff/fitrooms/internal/metrics"
	"github.com/Kerhoff/fitrooms/internal/recurrence"
	"github.com/Kerhoff/fitrooms/internal/repository"
)

// Options tunes a Service. Zero values select production defaults.
type Options struct {
	// Now replaces the wall clock.
	Now func() time.Time
	// ReferenceZone is the zone behind system-wide date defaults.
	ReferenceZone *time.Location
	Parser        recurrence.Parser
	Metrics       *metrics.Metrics
}

// Service is the central business logic layer that holds all repositories
// and provides high-level methods for the application.
type Service struct {
	logger        *logrus.Logger
	repos         *repository.Repositories
	tx            repository.Transactor
	expander      *recurrence.Expander
	metrics       *metrics.Metrics
	clock         func() time.Time
	referenceZone *time.Location
}

// New creates a new Service with all required dependencies.
func New(repos *repository.Repositories, tx repository.Transactor, logger *logrus.Logger, opts Options) *Service {
	s := &Service{
		logger:        logger,
		repos:         repos,
		tx:            tx,
		expander:      recurrence.NewExpander(opts.Parser, logger),
		metrics:       opts.Metrics,
		clock:         opts.Now,
		referenceZone: opts.ReferenceZone,
	}
	if s.clock == nil {
		s.clock = time.Now
	}
	if s.referenceZone == nil {
		s.referenceZone = dates.ReferenceZone
	}
	if s.metrics == nil {
		s.metrics = metrics.New(nil)
	}
	return s
}

func (s *Service) now() time.Time {
	return s.clock()
}

// Today returns the current date in the reference zone.
func (s *Service) Today() dates.Date {
	return dates.InZone(s.now(), s.referenceZone)
}
