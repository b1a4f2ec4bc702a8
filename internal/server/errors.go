package server

import (
	"go.uber.org/zap"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/lotusgame/duel-server-go/internal/errors"
)

// grpcCode maps an error code to the gRPC status code reported to clients.
func grpcCode(code errors.Code) codes.Code {
	switch code {
	case errors.ErrNotFound:
		return codes.NotFound
	case errors.ErrForbidden:
		return codes.PermissionDenied
	case errors.ErrInvalidState:
		return codes.FailedPrecondition
	case errors.ErrInsufficientResource:
		return codes.ResourceExhausted
	case errors.ErrRulesViolation, errors.ErrBadRequest:
		return codes.InvalidArgument
	case errors.ErrCommunication:
		return codes.Unavailable
	default:
		return codes.Internal
	}
}

// toStatus logs err and converts it into a gRPC status. Internal failures are
// reported without their details.
func toStatus(logger *zap.Logger, err error) error {
	if err == nil {
		return nil
	}
	errors.Log(logger, err)
	e, _ := errors.Cast(err)
	code := grpcCode(e.Code)
	if code == codes.Internal {
		return status.Error(code, "internal error")
	}
	msg := e.Message
	if e.Kind != "" {
		msg = string(e.Kind) + ": " + msg
	}
	return status.Error(code, msg)
}
