package credstore

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"courtwatch/lib/retry"
	"courtwatch/lib/telemetry"
	"courtwatch/lib/timezone"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

var tracer = telemetry.Tracer("courtwatch.lib.credstore")

var (
	ErrNotFound   = errors.New("no usable credential record")
	ErrSaveFailed = errors.New("credential record was not saved")
)

type Kind string

const (
	KindSession Kind = "session"
	KindToken   Kind = "token"
)

type Validity int

const (
	Valid Validity = iota
	Stale
	Malformed
	// Absent is only reported by Describe, for a kind with no file.
	Absent
)

func (v Validity) String() string {
	switch v {
	case Valid:
		return "VALID"
	case Stale:
		return "STALE"
	case Absent:
		return "ABSENT"
	default:
		return "MALFORMED"
	}
}

const DefaultMaxAge = 7 * 24 * time.Hour

type Options struct {
	Dir    string
	MaxAge time.Duration
	// Restore is the policy used by RestoreWithRetry.
	Restore retry.Policy
	Now     func() time.Time
}

// Store persists one file per record kind in a directory.
type Store struct {
	dir      string
	maxAge   time.Duration
	restore  retry.Policy
	now      func() time.Time
	rename   func(oldpath, newpath string) error
	readFile func(name string) ([]byte, error)
}

func NewStore(opts Options) (Store, error) {
	err := os.MkdirAll(opts.Dir, 0700)
	if err != nil {
		return Store{}, err
	}
	s := Store{
		dir:      opts.Dir,
		maxAge:   opts.MaxAge,
		restore:  opts.Restore,
		now:      opts.Now,
		rename:   os.Rename,
		readFile: os.ReadFile,
	}
	if s.maxAge <= 0 {
		s.maxAge = DefaultMaxAge
	}
	if s.restore.Attempts <= 0 {
		s.restore = retry.SessionRestore
	}
	if s.now == nil {
		s.now = timezone.Now
	}
	return s, nil
}

func (s Store) Path(kind Kind) string {
	return filepath.Join(s.dir, string(kind)+".json")
}

func (s Store) MaxAge() time.Duration {
	return s.maxAge
}

// Validate checks well-formedness then freshness. A record that can
// never authenticate (no cookies, no token) is malformed.
func (s Store) Validate(r Record) Validity {
	if r.IssuedAt.IsZero() || r.TargetOrigin == "" || !r.Usable() {
		return Malformed
	}
	if s.now().Sub(r.IssuedAt) > s.maxAge {
		return Stale
	}
	return Valid
}

// Load fails closed: anything short of a well-formed record is
// ErrNotFound. Freshness is left to Validate.
func (s Store) Load(kind Kind) (Record, error) {
	contents, err := os.ReadFile(s.Path(kind))
	if err != nil {
		if !os.IsNotExist(err) {
			slog.Warn("failed to read credential record", "kind", kind, "err", err)
		}
		return Record{}, ErrNotFound
	}
	r, ok := decode(contents)
	if !ok || s.Validate(r) == Malformed {
		slog.Warn("ignoring malformed credential record", "kind", kind, "path", s.Path(kind))
		return Record{}, ErrNotFound
	}
	return r, nil
}

// RestoreWithRetry loads and validates a record, retrying to ride out a
// concurrent writer. Only a VALID record is returned.
func (s Store) RestoreWithRetry(ctx context.Context, kind Kind) (Record, error) {
	ctx, span := tracer.Start(ctx, "RestoreWithRetry")
	defer span.End()
	span.SetAttributes(attribute.String("kind", string(kind)))

	attempt := 0
	r, err := retry.DoValue(ctx, s.restore, func(ctx context.Context) (Record, error) {
		attempt++
		r, err := s.Load(kind)
		if err != nil {
			return Record{}, err
		}
		if v := s.Validate(r); v != Valid {
			return Record{}, fmt.Errorf("%w: record is %s", ErrNotFound, v)
		}
		return r, nil
	})
	span.SetAttributes(attribute.Int("attempts", attempt))
	if err != nil {
		span.SetStatus(codes.Error, "no valid record")
		slog.InfoContext(ctx, "no valid credential record", "kind", kind, "attempts", attempt, "err", err)
		return Record{}, ErrNotFound
	}
	slog.DebugContext(ctx, "restored credential record", "kind", kind, "issued_at", r.IssuedAt)
	return r, nil
}

// Save writes r to a temp file in the store directory, reads it back,
// and only then renames it over the live record. On any failure the
// previous record is left as it was.
func (s Store) Save(ctx context.Context, kind Kind, r Record) error {
	ctx, span := tracer.Start(ctx, "Save")
	defer span.End()
	span.SetAttributes(attribute.String("kind", string(kind)))

	err := s.save(kind, r)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "failed to save credential record")
		slog.ErrorContext(ctx, "failed to save credential record", "kind", kind, "err", err)
		return err
	}
	slog.InfoContext(ctx, "saved credential record", "kind", kind, "cookies", len(r.Cookies), "has_token", r.Token != "")
	return nil
}

func (s Store) save(kind Kind, r Record) error {
	if s.Validate(r) == Malformed {
		return fmt.Errorf("%w: refusing to save a malformed record", ErrSaveFailed)
	}
	contents, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}

	live := s.Path(kind)
	tmp, err := os.CreateTemp(s.dir, filepath.Base(live)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSaveFailed, err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	_, err = tmp.Write(contents)
	if err == nil {
		err = tmp.Sync()
	}
	closeErr := tmp.Close()
	if err == nil {
		err = closeErr
	}
	if err != nil {
		return fmt.Errorf("%w: write temp file: %w", ErrSaveFailed, err)
	}

	written, err := s.readFile(tmpPath)
	if err != nil {
		return fmt.Errorf("%w: read back: %w", ErrSaveFailed, err)
	}
	if !bytes.Equal(written, contents) {
		return fmt.Errorf("%w: read back mismatch", ErrSaveFailed)
	}

	err = s.rename(tmpPath, live)
	if err != nil {
		return fmt.Errorf("%w: rename: %w", ErrSaveFailed, err)
	}
	return nil
}

// Describe summarizes a kind for display.
type Description struct {
	Kind     Kind
	Present  bool
	Validity Validity
	Age      time.Duration
	Record   Record
}

func (s Store) Describe(kind Kind) Description {
	_, err := os.Stat(s.Path(kind))
	if os.IsNotExist(err) {
		return Description{Kind: kind, Validity: Absent}
	}
	r, err := s.Load(kind)
	if err != nil {
		return Description{Kind: kind, Present: true, Validity: Malformed}
	}
	return Description{
		Kind:     kind,
		Present:  true,
		Validity: s.Validate(r),
		Age:      s.now().Sub(r.IssuedAt),
		Record:   r,
	}
}
