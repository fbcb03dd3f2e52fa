package adminrpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"dynamokv/internal/sim"
)

// toStatus maps an error of the simulation to a gRPC status error.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	return status.Error(codeOf(err), err.Error())
}

func codeOf(err error) codes.Code {
	switch {
	case errors.Is(err, sim.ErrInvalidNodeID), errors.Is(err, sim.ErrDuplicateNodeID):
		return codes.InvalidArgument
	case errors.Is(err, sim.ErrUnknownNode), errors.Is(err, sim.ErrUnknownTicket):
		return codes.NotFound
	case errors.Is(err, sim.ErrNodeCrashed), errors.Is(err, sim.ErrNodeNotCrashed):
		return codes.FailedPrecondition
	case errors.Is(err, sim.ErrNoAvailablePeer):
		return codes.Unavailable
	case errors.Is(err, context.DeadlineExceeded):
		return codes.DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return codes.Canceled
	default:
		return codes.Internal
	}
}

var (
	errNegativeDelay = errors.New("delay cannot be negative")
	errNegativeKey   = errors.New("key cannot be negative")
)

func invalidArgument(err error) error {
	return status.Error(codes.InvalidArgument, err.Error())
}
