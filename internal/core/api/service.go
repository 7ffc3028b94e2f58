// Package api provides the gRPC query service over registered record datasets.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/solatis/querykit/internal/log"
	"github.com/solatis/querykit/internal/rules"
	"github.com/solatis/querykit/internal/types"
)

// DefaultDataset is served when a request names no dataset.
const DefaultDataset = "log_records"

// DefaultMaxResults caps responses when the service is built without a limit.
const DefaultMaxResults = 1000

// Source loads the full record set of one dataset, newest first.
type Source interface {
	List(ctx context.Context, limit int) ([]log.Record, error)
}

// QueryService implements QueryServer.
// Thin orchestration layer delegating to the rules engine and dataset sources.
type QueryService struct {
	engine     *rules.Engine
	logger     log.Logger
	maxResults int

	mu       sync.RWMutex
	datasets map[string]Source
}

// NewQueryService creates the service. maxResults <= 0 uses DefaultMaxResults.
func NewQueryService(engine *rules.Engine, maxResults int, logger log.Logger) (*QueryService, error) {
	if engine == nil {
		return nil, fmt.Errorf("engine cannot be nil")
	}
	if maxResults <= 0 {
		maxResults = DefaultMaxResults
	}
	return &QueryService{
		engine:     engine,
		logger:     log.OrNop(logger),
		maxResults: maxResults,
		datasets:   make(map[string]Source),
	}, nil
}

// Register serves src under name, replacing any previous source.
func (s *QueryService) Register(name string, src Source) error {
	if name == "" {
		return fmt.Errorf("dataset name cannot be empty")
	}
	if src == nil {
		return fmt.Errorf("dataset %q: source cannot be nil", name)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.datasets[name] = src
	return nil
}

// Datasets lists the registered dataset names in order.
func (s *QueryService) Datasets() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.datasets))
	for name := range s.datasets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (s *QueryService) source(name string) (Source, error) {
	if name == "" {
		name = DefaultDataset
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	src, ok := s.datasets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownDataset, name)
	}
	return src, nil
}

// Query decodes the request into a QuerySpec, runs it over the named dataset
// and returns {"dataset", "total", "truncated", "records"}. total counts every
// match; records holds at most min(limit, max results) of them.
func (s *QueryService) Query(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request cannot be nil")
	}
	spec, err := rules.DecodeSpecMap(req.AsMap())
	if err != nil {
		return nil, queryStatus(err)
	}

	src, err := s.source(spec.Dataset)
	if err != nil {
		return nil, status.Error(codes.NotFound, err.Error())
	}
	records, err := src.List(ctx, 0)
	if err != nil {
		s.logger.Warn("dataset load failed", "dataset", spec.Dataset, "error", err)
		return nil, sourceStatus(err)
	}

	limit := spec.Limit
	if limit <= 0 || limit > s.maxResults {
		limit = s.maxResults
	}
	spec.Limit = 0
	matched, err := rules.RunSpec(s.engine, records, spec)
	if err != nil {
		return nil, queryStatus(err)
	}

	total := len(matched)
	if total > limit {
		matched = matched[:limit]
	}
	s.logger.Debug("query served", "dataset", spec.Dataset, "scanned", len(records), "matched", total)

	return response(spec, matched, total)
}

func response(spec types.QuerySpec, matched []log.Record, total int) (*structpb.Struct, error) {
	out := make([]any, len(matched))
	for i, rec := range matched {
		m, err := recordMap(rec)
		if err != nil {
			return nil, status.Errorf(codes.Internal, "failed to encode record %s: %v", rec.ID, err)
		}
		out[i] = m
	}
	dataset := spec.Dataset
	if dataset == "" {
		dataset = DefaultDataset
	}
	resp, err := structpb.NewStruct(map[string]any{
		"dataset":   dataset,
		"total":     total,
		"truncated": len(matched) < total,
		"records":   out,
	})
	if err != nil {
		return nil, status.Errorf(codes.Internal, "failed to encode response: %v", err)
	}
	return resp, nil
}

// recordMap goes through the record's JSON form so properties of any Go
// type become structpb-compatible values.
func recordMap(rec log.Record) (map[string]any, error) {
	data, err := json.Marshal(rec)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}
