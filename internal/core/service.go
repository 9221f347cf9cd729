package core

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/xlsx2marc/internal/history"
	"github.com/JonMunkholm/xlsx2marc/internal/marc"
	"github.com/JonMunkholm/xlsx2marc/internal/sheet"
)

var (
	// ErrNoFile is returned when a request carries no file or an empty name.
	ErrNoFile = errors.New("no file provided")
	// ErrBadExtension is returned for files not named *.xlsx.
	ErrBadExtension = errors.New("file is not an .xlsx workbook")
	// ErrUnreadableWorkbook wraps workbook decoding failures.
	ErrUnreadableWorkbook = errors.New("unreadable workbook")
	// ErrSerialization wraps failures while rendering MARC text.
	ErrSerialization = errors.New("serialization failed")
)

// DefaultConvertTimeout bounds one conversion when WithTimeout is not used.
const DefaultConvertTimeout = 2 * time.Minute

// exportLayout names downloaded files.
const exportLayout = "20060102_150405"

// Service runs conversions and keeps their history.
type Service struct {
	limiter *ConversionLimiter
	history history.Store
	keys    marc.KeyBuilder
	lang    string
	timeout time.Duration
	now     func() time.Time
	log     *slog.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLimiter bounds concurrent conversions.
func WithLimiter(l *ConversionLimiter) Option {
	return func(s *Service) { s.limiter = l }
}

// WithHistory records every conversion attempt in store.
func WithHistory(store history.Store) Option {
	return func(s *Service) { s.history = store }
}

// WithDefaultLanguage sets the 008 language used when a request has none.
func WithDefaultLanguage(lang string) Option {
	return func(s *Service) {
		if lang = marc.CleanText(lang); lang != "" {
			s.lang = lang
		}
	}
}

// WithTimeout bounds each conversion once it holds a slot.
// Non-positive values keep the default.
func WithTimeout(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.timeout = d
		}
	}
}

// WithClock overrides time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the service logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Service) { s.log = log }
}

// NewService creates a Service. Without options it converts with no
// concurrency bound and keeps no history.
func NewService(opts ...Option) *Service {
	s := &Service{
		keys:    marc.DefaultKeyBuilder(),
		lang:    marc.DefaultLanguage,
		timeout: DefaultConvertTimeout,
		now:     time.Now,
		log:     slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ConvertRequest is one uploaded workbook.
type ConvertRequest struct {
	FileName string
	File     io.Reader
	Language string
}

// Conversion is a finished, fully rendered export.
type Conversion struct {
	ID       uuid.UUID
	FileName string
	Language string
	Body     []byte
	Stats    marc.Stats
}

// Convert validates req, converts its active sheet and renders the MARC
// text. Nothing is returned unless rendering completed. Every attempt is
// recorded in the history store.
func (s *Service) Convert(ctx context.Context, req ConvertRequest) (conv *Conversion, err error) {
	id := uuid.New()
	started := s.now()
	log := s.log.With("conversion_id", id.String())

	lang := marc.CleanText(req.Language)
	if lang == "" {
		lang = s.lang
	}
	entry := history.Entry{
		ID:         id,
		SourceFile: marc.CleanText(req.FileName),
		Language:   lang,
		IPAddress:  IPAddressFromContext(ctx),
		UserAgent:  UserAgentFromContext(ctx),
		CreatedAt:  started,
	}
	defer func() {
		entry.DurationMS = s.now().Sub(started).Milliseconds()
		entry.Status = history.StatusSucceeded
		if err != nil {
			entry.Status = history.StatusFailed
			entry.ErrorCode = MapError(err).Code
		}
		if conv != nil {
			entry.OutputFile = conv.FileName
			entry.Stats = conv.Stats
		}
		s.record(ctx, log, entry)
	}()

	if req.File == nil || entry.SourceFile == "" {
		return nil, ErrNoFile
	}
	if !strings.HasSuffix(strings.ToLower(entry.SourceFile), ".xlsx") {
		return nil, fmt.Errorf("%s: %w", entry.SourceFile, ErrBadExtension)
	}

	if s.limiter != nil {
		if !s.limiter.TryAcquire() {
			log.Info("waiting for conversion slot", "active", s.limiter.ActiveCount())
			if err := s.limiter.Acquire(ctx); err != nil {
				return nil, err
			}
		}
		defer s.limiter.Release()
	}

	// The deadline is checked between passes; a pass in progress is not
	// interrupted.
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	wb, err := sheet.Open(req.File)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnreadableWorkbook, err)
	}
	defer wb.Close()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	log.Info("converting workbook",
		"file", entry.SourceFile,
		"sheet", wb.SheetName(),
		"rows", len(wb.Rows()),
		"language", lang,
	)

	res, err := marc.Convert(wb, marc.Options{
		Language: lang,
		Keys:     &s.keys,
		Now:      s.now,
		Logger:   log,
	})
	if err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	body, err := res.Bytes()
	if err != nil {
		log.Error("render failed", "error", err)
		return nil, fmt.Errorf("%w: %w", ErrSerialization, err)
	}

	conv = &Conversion{
		ID:       id,
		FileName: "export_" + started.Format(exportLayout) + ".mrk",
		Language: lang,
		Body:     body,
		Stats:    res.Stats,
	}
	log.Info("conversion complete",
		"records", conv.Stats.Records,
		"holdings_items", conv.Stats.HoldingsItems,
		"bytes", len(conv.Body),
	)
	return conv, nil
}

func (s *Service) record(ctx context.Context, log *slog.Logger, e history.Entry) {
	if s.history == nil {
		return
	}
	// The request context may already be cancelled; history is still wanted.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.history.Record(ctx, e); err != nil {
		log.Warn("failed to record conversion history", "error", err)
	}
}

// History returns up to limit recent conversions, newest first. It returns
// nil when the service keeps no history.
func (s *Service) History(ctx context.Context, limit int) ([]history.Entry, error) {
	if s.history == nil {
		return nil, nil
	}
	return s.history.Recent(ctx, limit)
}

// LimiterStatus reports conversion slot usage. The zero value is returned
// when conversions are unbounded.
func (s *Service) LimiterStatus() LimiterStatus {
	if s.limiter == nil {
		return LimiterStatus{}
	}
	return s.limiter.Status()
}

// Drain waits for running conversions to finish.
func (s *Service) Drain(ctx context.Context) error {
	if s.limiter == nil {
		return nil
	}
	return s.limiter.WaitForDrain(ctx)
}

// DefaultLanguage returns the language used for requests without one.
func (s *Service) DefaultLanguage() string { return s.lang }
