package service

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/Astemirdum/library-circulation/circulation/internal/model"
	"github.com/Astemirdum/library-circulation/circulation/internal/repository"
	"github.com/Astemirdum/library-circulation/pkg/kafka"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

var SystemClock = ClockFunc(func() time.Time { return time.Now().UTC() })

type IDGenerator interface {
	NewID() uuid.UUID
	// Number returns a human-facing identifier such as TXN-20260315-9F2C41AB.
	Number(prefix string, now time.Time) string
}

const (
	PrefixTransaction = "TXN"
	PrefixFine        = "FIN"
	PrefixReservation = "RES"
	PrefixMember      = "MEM"
)

type RandomIDs struct{}

func (RandomIDs) NewID() uuid.UUID { return uuid.New() }

func (RandomIDs) Number(prefix string, now time.Time) string {
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", "")[:8])
	return fmt.Sprintf("%s-%s-%s", prefix, now.Format("20060102"), suffix)
}

type SettingsProvider interface {
	Settings(ctx context.Context) model.LibrarySettings
}

// StaticSettings serves settings that can be swapped at runtime.
type StaticSettings struct {
	mu sync.RWMutex
	s  model.LibrarySettings
}

func NewStaticSettings(s model.LibrarySettings) *StaticSettings {
	return &StaticSettings{s: s}
}

func (p *StaticSettings) Settings(context.Context) model.LibrarySettings {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.s
}

func (p *StaticSettings) Set(s model.LibrarySettings) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.s = s
}

type Publisher interface {
	Publish(ctx context.Context, event kafka.Event) error
}

type Service struct {
	repo      repository.Repository
	clock     Clock
	ids       IDGenerator
	settings  SettingsProvider
	publisher Publisher
	tracer    trace.Tracer
	log       *zap.Logger
}

type Option func(*Service)

func WithClock(c Clock) Option {
	return func(s *Service) { s.clock = c }
}

func WithIDGenerator(g IDGenerator) Option {
	return func(s *Service) { s.ids = g }
}

func WithSettings(p SettingsProvider) Option {
	return func(s *Service) { s.settings = p }
}

func WithPublisher(p Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

func NewService(repo repository.Repository, log *zap.Logger, opts ...Option) *Service {
	s := &Service{
		repo:      repo,
		clock:     SystemClock,
		ids:       RandomIDs{},
		settings:  NewStaticSettings(model.DefaultSettings()),
		publisher: kafka.NopPublisher{},
		tracer:    otel.Tracer("circulation/service"),
		log:       log.Named("service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return s.tracer.Start(ctx, "Service."+name)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func days(n int) time.Duration {
	return time.Duration(n) * 24 * time.Hour
}

func appendNote(notes, note string) string {
	switch {
	case note == "":
		return notes
	case notes == "":
		return note
	default:
		return notes + "\n" + note
	}
}
