package profile

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/vnykmshr/goslew/pkg/common/errors"
	"github.com/vnykmshr/goslew/pkg/common/validation"
	"github.com/vnykmshr/goslew/pkg/metrics"
)

// Profile is a named pair of slew rates.
type Profile struct {
	Name     string
	RiseRate float64
	FallRate float64
}

// RateSetter receives profile switches. loop.Loop implements it.
type RateSetter interface {
	SetRates(ctx context.Context, riseRate, fallRate float64) error
}

// Config holds scheduler configuration.
type Config struct {
	// Name identifies the scheduler in logs and metrics. Defaults to "profile".
	Name string

	// Target receives the rates of every applied profile.
	Target RateSetter

	// Location is used to evaluate cron expressions. Defaults to time.Local.
	Location *time.Location

	// Timeout bounds each scheduled switch. Defaults to one second.
	Timeout time.Duration

	// Logger receives switch and failure events. If nil, nothing is logged.
	Logger *zerolog.Logger

	// Metrics configures Prometheus collection.
	Metrics metrics.Config
}

type entry struct {
	profile  Profile
	expr     string
	schedule cron.Schedule
	id       cron.EntryID
}

// Scheduler switches a target between rate profiles on cron schedules.
// It is safe for concurrent use.
type Scheduler struct {
	name     string
	target   RateSetter
	location *time.Location
	timeout  time.Duration
	logger   zerolog.Logger
	registry *metrics.Registry
	cron     *cron.Cron

	mu      sync.RWMutex
	entries map[string]*entry
	active  string
	closed  bool
}

// parser accepts six fields with seconds plus descriptors such as @hourly.
var parser = cron.NewParser(cron.Second | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

// Validate checks a cron expression without scheduling it.
func Validate(expr string) error {
	_, err := parse(expr)
	return err
}

func parse(expr string) (cron.Schedule, error) {
	if err := validation.ValidateNotEmpty("profile", "cron", expr); err != nil {
		return nil, err
	}
	schedule, err := parser.Parse(expr)
	if err != nil {
		return nil, errors.NewValidationError("profile", "cron", expr, err.Error()).
			WithHint("use six fields with seconds, e.g. \"0 30 6 * * *\", or a descriptor like @hourly")
	}
	return schedule, nil
}

// New creates a Scheduler. It does not run schedules until Start.
func New(config Config) (*Scheduler, error) {
	if err := validation.ValidateNotNil("profile", "target", config.Target); err != nil {
		return nil, err
	}
	if config.Name == "" {
		config.Name = "profile"
	}
	if config.Location == nil {
		config.Location = time.Local
	}
	if config.Timeout <= 0 {
		config.Timeout = time.Second
	}

	logger := zerolog.Nop()
	if config.Logger != nil {
		logger = *config.Logger
	}
	logger = logger.With().Str("scheduler", config.Name).Logger()

	s := &Scheduler{
		name:     config.Name,
		target:   config.Target,
		location: config.Location,
		timeout:  config.Timeout,
		logger:   logger,
		entries:  make(map[string]*entry),
	}
	adapter := cronLogger{logger}
	s.cron = cron.New(
		cron.WithParser(parser),
		cron.WithLocation(config.Location),
		cron.WithLogger(adapter),
		cron.WithChain(cron.Recover(adapter)),
	)
	if config.Metrics.Enabled {
		s.registry = metrics.For(config.Metrics)
	}
	return s, nil
}

// Register adds a profile that is only applied on demand through Apply.
func (s *Scheduler) Register(p Profile) error {
	return s.add(p, "", nil)
}

// Add registers a profile and applies it whenever expr fires.
func (s *Scheduler) Add(expr string, p Profile) error {
	schedule, err := parse(expr)
	if err != nil {
		return err
	}
	return s.add(p, expr, schedule)
}

func (s *Scheduler) add(p Profile, expr string, schedule cron.Schedule) error {
	if err := validation.ValidateNotEmpty("profile", "name", p.Name); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.entries[p.Name]; exists {
		return fmt.Errorf("profile %q already exists, remove it first", p.Name)
	}

	e := &entry{profile: p, expr: expr, schedule: schedule}
	if schedule != nil {
		name := p.Name
		e.id = s.cron.Schedule(schedule, cron.FuncJob(func() { s.fire(name) }))
	}
	s.entries[p.Name] = e
	return nil
}

// Remove unregisters a profile. It reports whether the profile existed.
func (s *Scheduler) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[name]
	if !ok {
		return false
	}
	if e.schedule != nil {
		s.cron.Remove(e.id)
	}
	delete(s.entries, name)
	return true
}

// Apply sends the named profile's rates to the target now.
func (s *Scheduler) Apply(ctx context.Context, name string) error {
	s.mu.RLock()
	e, ok := s.entries[name]
	closed := s.closed
	s.mu.RUnlock()

	if closed {
		return errors.NewOperationError("profile", "Apply", errors.ErrClosed)
	}
	if !ok {
		return errors.NewOperationError("profile", "Apply", fmt.Errorf("unknown profile %q", name))
	}

	p := e.profile
	if err := s.target.SetRates(ctx, p.RiseRate, p.FallRate); err != nil {
		if s.registry != nil {
			s.registry.ProfileFailures.WithLabelValues(s.name, p.Name).Inc()
		}
		s.logger.Error().Err(err).Str("profile", p.Name).Msg("profile switch failed")
		return errors.NewOperationError("profile", "Apply", err).WithContext("profile=" + p.Name)
	}

	s.mu.Lock()
	s.active = p.Name
	s.mu.Unlock()

	if s.registry != nil {
		s.registry.ProfileSwitches.WithLabelValues(s.name, p.Name).Inc()
	}
	s.logger.Info().
		Str("profile", p.Name).
		Float64("rise_rate", p.RiseRate).
		Float64("fall_rate", p.FallRate).
		Msg("profile applied")
	return nil
}

func (s *Scheduler) fire(name string) {
	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	// Failures are logged and counted by Apply.
	_ = s.Apply(ctx, name)
}

// Next returns the next time the named profile is scheduled to apply.
func (s *Scheduler) Next(name string) (time.Time, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	e, ok := s.entries[name]
	if !ok {
		return time.Time{}, fmt.Errorf("unknown profile %q", name)
	}
	if e.schedule == nil {
		return time.Time{}, fmt.Errorf("profile %q has no schedule", name)
	}
	return e.schedule.Next(time.Now().In(s.location)), nil
}

// Profiles returns the registered profiles sorted by name.
func (s *Scheduler) Profiles() []Profile {
	s.mu.RLock()
	defer s.mu.RUnlock()

	profiles := make([]Profile, 0, len(s.entries))
	for _, e := range s.entries {
		profiles = append(profiles, e.profile)
	}
	sort.Slice(profiles, func(i, j int) bool {
		return profiles[i].Name < profiles[j].Name
	})
	return profiles
}

// Active returns the name of the most recently applied profile.
func (s *Scheduler) Active() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.active
}

// Start runs the schedules in the background. A stopped scheduler can be
// started again.
func (s *Scheduler) Start() {
	s.mu.Lock()
	s.closed = false
	s.mu.Unlock()

	s.logger.Info().Int("profiles", len(s.Profiles())).Msg("profile scheduler started")
	s.cron.Start()
}

// Stop halts the schedules and rejects further Apply calls. The returned
// context is done once running switches have finished.
func (s *Scheduler) Stop() context.Context {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	ctx := s.cron.Stop()
	s.logger.Info().Msg("profile scheduler stopped")
	return ctx
}
