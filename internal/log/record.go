// internal/log/record.go
package log

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/solatis/querykit/internal/types"
)

/*
 * Persistent log records.
 *
 * A Record is one structured log entry kept for later querying: the record
 * store persists them and the query service filters and sorts them with the
 * rules engine, so every scalar field is a filterable member (Level is an
 * ordered enum). Properties carry the free-form key/value payload.
 *
 * Writers are the sinks records go to. ZapWriter forwards to a Logger; the
 * store writer lives with the store. Writers must be safe for concurrent use.
 */

// Level is the severity of a record. Ordered: Debug < Info < Warn < Error < Fatal.
type Level int

const (
	LevelDebug Level = iota
	LevelInfo
	LevelWarn
	LevelError
	LevelFatal
)

var levelNames = []string{"Debug", "Info", "Warn", "Error", "Fatal"}

// EnumNames makes Level filterable as an enum member.
func (Level) EnumNames() []string { return levelNames }

func (l Level) String() string {
	if l < 0 || int(l) >= len(levelNames) {
		return fmt.Sprintf("Level(%d)", int(l))
	}
	return levelNames[l]
}

// MarshalText implements encoding.TextMarshaler.
func (l Level) MarshalText() ([]byte, error) {
	if l < 0 || int(l) >= len(levelNames) {
		return nil, fmt.Errorf("invalid log level %d", int(l))
	}
	return []byte(levelNames[l]), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (l *Level) UnmarshalText(text []byte) error {
	v, err := ParseLevel(string(text))
	if err != nil {
		return err
	}
	*l = v
	return nil
}

// ParseLevel parses a level name, case-insensitively.
func ParseLevel(s string) (Level, error) {
	for i, name := range levelNames {
		if strings.EqualFold(name, s) {
			return Level(i), nil
		}
	}
	return 0, fmt.Errorf("unknown log level %q", s)
}

// Record is one persisted log entry.
type Record struct {
	ID         types.RecordID `json:"id" msgpack:"id" yaml:"id"`
	Time       time.Time      `json:"time" msgpack:"time" yaml:"time"`
	Level      Level          `json:"level" msgpack:"level" yaml:"level"`
	Logger     string         `json:"logger" msgpack:"logger" yaml:"logger"`
	Message    string         `json:"message" msgpack:"message" yaml:"message"`
	Properties map[string]any `json:"properties,omitempty" msgpack:"properties,omitempty" yaml:"properties,omitempty"`
}

// NewRecord creates a record stamped with a fresh ID and the current UTC time.
func NewRecord(level Level, logger, message string, properties map[string]any) Record {
	return Record{
		ID:         types.NewRecordID(),
		Time:       time.Now().UTC(),
		Level:      level,
		Logger:     logger,
		Message:    message,
		Properties: properties,
	}
}

// KeyValues flattens the record's properties into sorted key/value pairs.
func (r Record) KeyValues() []interface{} {
	keys := slices.Sorted(maps.Keys(r.Properties))
	out := make([]interface{}, 0, 2*len(keys))
	for _, k := range keys {
		out = append(out, k, r.Properties[k])
	}
	return out
}

// Writer is a sink for records.
type Writer interface {
	Write(ctx context.Context, rec Record) error
}

// ZapWriter writes records through a Logger. Fatal records are logged at
// error level so a writer never terminates the process.
type ZapWriter struct {
	logger Logger
}

// NewZapWriter creates a writer over logger. A nil logger discards output.
func NewZapWriter(logger Logger) *ZapWriter {
	return &ZapWriter{logger: OrNop(logger)}
}

func (w *ZapWriter) Write(_ context.Context, rec Record) error {
	kv := append([]interface{}{"record_id", string(rec.ID), "logger", rec.Logger}, rec.KeyValues()...)
	switch rec.Level {
	case LevelDebug:
		w.logger.Debug(rec.Message, kv...)
	case LevelInfo:
		w.logger.Info(rec.Message, kv...)
	case LevelWarn:
		w.logger.Warn(rec.Message, kv...)
	default:
		w.logger.Error(rec.Message, kv...)
	}
	return nil
}

// MultiWriter writes every record to all writers, in order, and joins their
// errors.
type MultiWriter []Writer

func (m MultiWriter) Write(ctx context.Context, rec Record) error {
	var errs []error
	for _, w := range m {
		if err := w.Write(ctx, rec); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
