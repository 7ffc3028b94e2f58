package api

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/solatis/querykit/internal/types"
)

// ErrUnknownDataset indicates a request naming a dataset nobody registered.
var ErrUnknownDataset = errors.New("unknown dataset")

// Error mapping:
// Filter validation and malformed requests map to INVALID_ARGUMENT.
// Unknown datasets map to NOT_FOUND.
// Context timeouts map to DEADLINE_EXCEEDED.
// Dataset (store) errors map to UNAVAILABLE.

var invalidArgument = []error{
	types.ErrInvalidFilterInput,
	types.ErrUnresolvedMember,
	types.ErrInvalidOperator,
	types.ErrInvalidLiteral,
	types.ErrPathTooDeep,
	types.ErrGroupTooDeep,
	types.ErrTooManyValues,
}

// queryStatus maps an error from spec decoding or the rules engine.
func queryStatus(err error) error {
	var verrs types.ValidationErrors
	if errors.As(err, &verrs) {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	for _, target := range invalidArgument {
		if errors.Is(err, target) {
			return status.Error(codes.InvalidArgument, err.Error())
		}
	}
	return status.Error(codes.Internal, err.Error())
}

// sourceStatus maps an error from loading a dataset.
func sourceStatus(err error) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Errorf(codes.Unavailable, "failed to load dataset: %v", err)
	}
}
