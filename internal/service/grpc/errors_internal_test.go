package grpcsvc

import (
	"errors"
	"fmt"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/vladislavdragonenkov/storefront/internal/domain"
)

func TestCodeOf(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{err: domain.ErrOrderNotFound, want: codes.NotFound},
		{err: domain.NewValidationError([]error{domain.ErrItemsRequired}), want: codes.InvalidArgument},
		{err: &domain.TransitionError{Entity: domain.EntityOrder, From: "shipped", To: "pending"}, want: codes.FailedPrecondition},
		{err: fmt.Errorf("%w: x", domain.ErrOwnershipViolation), want: codes.PermissionDenied},
		{err: domain.ErrCartAlreadyOrdered, want: codes.AlreadyExists},
		{err: domain.ErrVersionConflict, want: codes.Aborted},
		{err: fmt.Errorf("%w: %w", domain.ErrStatusRegistryUnavailable, errors.New("db down")), want: codes.Unavailable},
		{err: fmt.Errorf("save order: %w", domain.ErrStorageFailure), want: codes.Unavailable},
		{err: errors.New("boom"), want: codes.Internal},
	}
	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			require.Equal(t, tt.want, codeOf(tt.err))
		})
	}
}

func TestToStatus_HidesInternalErrors(t *testing.T) {
	logger := logrus.New().WithField("component", "test")

	err := toStatus(logger, "GetOrder", errors.New("pq: password authentication failed"))
	require.Equal(t, codes.Internal, status.Code(err))
	require.NotContains(t, status.Convert(err).Message(), "password")

	passthrough := status.Error(codes.PermissionDenied, "nope")
	require.Equal(t, passthrough, toStatus(logger, "GetOrder", passthrough))
	require.NoError(t, toStatus(logger, "GetOrder", nil))
}
