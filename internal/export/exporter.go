// internal/export/exporter.go
package export

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/solatis/querykit/internal/ftp"
	"github.com/solatis/querykit/internal/log"
	"github.com/solatis/querykit/internal/rules"
	"github.com/solatis/querykit/internal/types"
)

/*
 * Filtered record exports.
 *
 * Export loads the log record dataset, runs the query spec through the Where
 * and Sort engines, encodes the matches and uploads the file through the FTP
 * client. The whole file is built in memory before upload: exports are
 * bounded by the store's list limit.
 *
 * File names: the caller's base name (an empty name becomes
 * "records-<UTC timestamp>") plus the format extension, plus ".zst" when
 * compressed.
 */

// Source lists the records to export, newest first.
type Source interface {
	List(ctx context.Context, limit int) ([]log.Record, error)
}

// Options controls encoding.
type Options struct {
	Format   Format `mapstructure:"format"`
	Compress bool   `mapstructure:"compress"`
}

// Result describes one finished export.
type Result struct {
	Name    string
	Records int
	Bytes   int
}

// Exporter runs filtered exports to an FTP drop.
type Exporter struct {
	source Source
	engine *rules.Engine
	client ftp.Client
	opts   Options
	logger log.Logger
	now    func() time.Time
}

// New creates an exporter. A nil engine uses default options.
func New(source Source, engine *rules.Engine, client ftp.Client, opts Options, logger log.Logger) (*Exporter, error) {
	format, err := ParseFormat(string(opts.Format))
	if err != nil {
		return nil, err
	}
	opts.Format = format
	if engine == nil {
		engine = rules.NewEngine(rules.Options{}, logger)
	}
	return &Exporter{
		source: source,
		engine: engine,
		client: client,
		opts:   opts,
		logger: log.OrNop(logger),
		now:    time.Now,
	}, nil
}

// FileName is the remote name for base under the exporter's options.
func (e *Exporter) FileName(base string) string {
	if base == "" {
		base = "records-" + e.now().UTC().Format("20060102T150405Z")
	}
	ext := e.opts.Format.Ext(e.opts.Compress)
	if strings.HasSuffix(base, ext) {
		return base
	}
	return base + ext
}

// Export runs spec over the dataset and uploads the result as name.
func (e *Exporter) Export(ctx context.Context, spec types.QuerySpec, name string) (Result, error) {
	records, err := e.source.List(ctx, 0)
	if err != nil {
		return Result{}, fmt.Errorf("export: load records: %w", err)
	}
	matched, err := rules.RunSpec(e.engine, records, spec)
	if err != nil {
		return Result{}, fmt.Errorf("export: %w", err)
	}

	var buf bytes.Buffer
	if err := Encode(&buf, matched, e.opts.Format, e.opts.Compress); err != nil {
		return Result{}, fmt.Errorf("export: %w", err)
	}

	res := Result{Name: e.FileName(name), Records: len(matched), Bytes: buf.Len()}
	if err := e.client.Upload(ctx, res.Name, &buf); err != nil {
		return Result{}, fmt.Errorf("export: %w", err)
	}

	e.logger.Info("export uploaded", "name", res.Name, "records", res.Records, "bytes", res.Bytes)
	return res, nil
}
