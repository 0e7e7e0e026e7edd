package grpcsvc

import (
	"errors"

	log "github.com/sirupsen/logrus"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

// codeOf сопоставляет ошибку предметной области коду gRPC.
func codeOf(err error) codes.Code {
	switch {
	case errors.Is(err, domain.ErrStatusRegistryUnavailable),
		errors.Is(err, domain.ErrStorageFailure):
		return codes.Unavailable
	case errors.Is(err, domain.ErrValidationFailed):
		return codes.InvalidArgument
	case errors.Is(err, domain.ErrInvalidTransition),
		errors.Is(err, domain.ErrCartFinalized):
		return codes.FailedPrecondition
	case errors.Is(err, domain.ErrOwnershipViolation):
		return codes.PermissionDenied
	case errors.Is(err, domain.ErrCartAlreadyOrdered),
		errors.Is(err, domain.ErrActiveCartExists):
		return codes.AlreadyExists
	case errors.Is(err, domain.ErrVersionConflict):
		return codes.Aborted
	case domain.IsNotFound(err):
		return codes.NotFound
	default:
		return codes.Internal
	}
}

// toStatus переводит ошибку сервиса в gRPC status. Сообщение ValidationError
// содержит все нарушения. Неожиданные ошибки логируются и скрываются.
func toStatus(logger *log.Entry, method string, err error) error {
	if err == nil {
		return nil
	}
	if _, ok := status.FromError(err); ok {
		return err
	}
	code := codeOf(err)
	if code == codes.Internal {
		logger.WithError(err).WithField("method", method).Error("unexpected service error")
		return status.Error(codes.Internal, "internal error")
	}
	return status.Error(code, err.Error())
}
