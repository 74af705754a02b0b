package grpc

import (
	"context"
	"errors"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/Saltoleto/consulta-produtos/internal/application/dto"
	"github.com/Saltoleto/consulta-produtos/internal/domain/model"
	"github.com/Saltoleto/consulta-produtos/pkg/auth"
)

// Importer runs one import.
type Importer interface {
	Execute(ctx context.Context, req dto.ImportAccountsRequest) (dto.ImportAccountsResponse, error)
}

var _ ImportServiceServer = (*ImportHandler)(nil)

// ImportHandler implements the gRPC import service handler.
type ImportHandler struct {
	UnimplementedImportServiceServer
	importer Importer
}

// NewImportHandler creates a new gRPC import handler.
func NewImportHandler(importer Importer) *ImportHandler {
	return &ImportHandler{importer: importer}
}

// ImportAccounts handles the ImportAccounts RPC.
func (h *ImportHandler) ImportAccounts(ctx context.Context, req *ImportAccountsRequest) (*ImportAccountsResponse, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	if claims, ok := auth.ClaimsFromContext(ctx); ok {
		trace.SpanFromContext(ctx).SetAttributes(attribute.String("enduser.id", claims.Subject))
	}

	resp, err := h.importer.Execute(ctx, *req)
	if err != nil {
		return nil, toStatus(err)
	}
	return &resp, nil
}

func toStatus(err error) error {
	switch {
	case errors.Is(err, model.ErrValidation):
		return status.Error(codes.InvalidArgument, err.Error())
	case errors.Is(err, model.ErrTimeout), errors.Is(err, context.DeadlineExceeded):
		return status.Error(codes.DeadlineExceeded, err.Error())
	case errors.Is(err, context.Canceled):
		return status.Error(codes.Canceled, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}
