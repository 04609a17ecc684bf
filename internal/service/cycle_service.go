package service

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"
	"github.com/go-playground/validator/v10"

	"github.com/mmynk/ajo/internal/auth"
	"github.com/mmynk/ajo/internal/engine"
	"github.com/mmynk/ajo/internal/storage"
)

const (
	// CycleServiceName is the fully-qualified name of the CycleService.
	CycleServiceName = "ajo.v1.CycleService"

	ProcessContributionsProcedure = "/ajo.v1.CycleService/ProcessContributions"
	ProcessPayoutsProcedure       = "/ajo.v1.CycleService/ProcessPayouts"
	ChargeContributionProcedure   = "/ajo.v1.CycleService/ChargeContribution"
	GetCycleStatusProcedure       = "/ajo.v1.CycleService/GetCycleStatus"
	ResetRetryCountProcedure      = "/ajo.v1.CycleService/ResetRetryCount"
)

// ProcedureRoles lists procedures that need more than the scheduler role.
var ProcedureRoles = map[string]auth.Role{
	ResetRetryCountProcedure: auth.RoleAdmin,
}

// CycleEngine is what the service needs from the engine.
type CycleEngine interface {
	CollectContributions(ctx context.Context, opts engine.RunOptions) (*engine.Summary, error)
	ProcessPayouts(ctx context.Context, opts engine.RunOptions) (*engine.Summary, error)
	ChargeMembership(ctx context.Context, membershipID, instrumentID string) (engine.Outcome, error)
	CycleStatus(ctx context.Context, groupID string) (*engine.CycleStatus, error)
	ResetRetryCount(ctx context.Context, membershipID string) error
}

// CycleService implements the Connect CycleService, the trigger surface for
// the scheduler and operators.
type CycleService struct {
	engine   CycleEngine
	validate *validator.Validate
	logger   *slog.Logger
}

// NewCycleService creates a new CycleService backed by the engine.
func NewCycleService(e CycleEngine, logger *slog.Logger) *CycleService {
	if logger == nil {
		logger = slog.Default()
	}
	return &CycleService{
		engine:   e,
		validate: validator.New(),
		logger:   logger,
	}
}

// ProcessContributions charges every due membership.
func (s *CycleService) ProcessContributions(ctx context.Context, req *connect.Request[RunRequest]) (*connect.Response[ContributionRunResponse], error) {
	s.logger.Info("ProcessContributions request received", "group_id", req.Msg.GroupID)
	if err := s.validate.Struct(req.Msg); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	summary, err := s.engine.CollectContributions(ctx, engine.RunOptions{GroupID: req.Msg.GroupID})
	if err != nil {
		s.logger.Error("ProcessContributions failed", "group_id", req.Msg.GroupID, "error", err)
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&ContributionRunResponse{
		Success:    true,
		Processed:  summary.Processed,
		Successful: summary.Succeeded,
		Skipped:    summary.Skipped,
		Failed:     summary.Failed,
		Errors:     nonNil(summary.Errors),
	}), nil
}

// ProcessPayouts disburses every group whose cycle is complete.
func (s *CycleService) ProcessPayouts(ctx context.Context, req *connect.Request[RunRequest]) (*connect.Response[PayoutRunResponse], error) {
	s.logger.Info("ProcessPayouts request received", "group_id", req.Msg.GroupID)
	if err := s.validate.Struct(req.Msg); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	summary, err := s.engine.ProcessPayouts(ctx, engine.RunOptions{GroupID: req.Msg.GroupID})
	if err != nil {
		s.logger.Error("ProcessPayouts failed", "group_id", req.Msg.GroupID, "error", err)
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&PayoutRunResponse{
		Success:          true,
		Processed:        summary.Processed,
		PayoutsInitiated: summary.Succeeded,
		Skipped:          summary.Skipped,
		Failed:           summary.Failed,
		Errors:           nonNil(summary.Errors),
	}), nil
}

// ChargeContribution charges one membership on demand.
func (s *CycleService) ChargeContribution(ctx context.Context, req *connect.Request[ChargeContributionRequest]) (*connect.Response[ChargeContributionResponse], error) {
	s.logger.Info("ChargeContribution request received", "membership_id", req.Msg.MembershipID)
	if err := s.validate.Struct(req.Msg); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	outcome, err := s.engine.ChargeMembership(ctx, req.Msg.MembershipID, req.Msg.InstrumentID)
	if err != nil {
		s.logger.Error("ChargeContribution failed", "membership_id", req.Msg.MembershipID, "error", err)
		return nil, toConnectError(err)
	}

	res := &ChargeContributionResponse{
		Status:    string(outcome.Status),
		Reference: outcome.Reference,
	}
	if outcome.Err != nil {
		res.Error = outcome.Err.Error()
	}
	return connect.NewResponse(res), nil
}

// GetCycleStatus reports the current cycle of a group.
func (s *CycleService) GetCycleStatus(ctx context.Context, req *connect.Request[GetCycleStatusRequest]) (*connect.Response[CycleStatusResponse], error) {
	if err := s.validate.Struct(req.Msg); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	status, err := s.engine.CycleStatus(ctx, req.Msg.GroupID)
	if err != nil {
		s.logger.Error("GetCycleStatus failed", "group_id", req.Msg.GroupID, "error", err)
		return nil, toConnectError(err)
	}

	return connect.NewResponse(&CycleStatusResponse{
		GroupID:        status.GroupID,
		GroupStatus:    string(status.GroupStatus),
		CurrentCycle:   status.CurrentCycle,
		ActiveMembers:  status.ActiveMembers,
		Contributed:    nonNil(status.Contributed),
		Outstanding:    nonNil(status.Outstanding),
		Complete:       status.Complete,
		NextRecipient:  status.NextRecipient,
		RecipientError: status.RecipientError,
		GrossAmount:    status.Gross,
		FeeAmount:      status.Fee,
		NetAmount:      status.Net,
		PayoutStatus:   string(status.PayoutStatus),
		PayoutRef:      status.PayoutReference,
		FailedPayouts:  status.PayoutFailedTimes,
	}), nil
}

// ResetRetryCount re-enables collection for a membership that exhausted its
// retries.
func (s *CycleService) ResetRetryCount(ctx context.Context, req *connect.Request[ResetRetryCountRequest]) (*connect.Response[ResetRetryCountResponse], error) {
	s.logger.Info("ResetRetryCount request received", "membership_id", req.Msg.MembershipID)
	if err := s.validate.Struct(req.Msg); err != nil {
		return nil, connect.NewError(connect.CodeInvalidArgument, err)
	}

	if err := s.engine.ResetRetryCount(ctx, req.Msg.MembershipID); err != nil {
		s.logger.Error("ResetRetryCount failed", "membership_id", req.Msg.MembershipID, "error", err)
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&ResetRetryCountResponse{MembershipID: req.Msg.MembershipID}), nil
}

// NewCycleServiceHandler builds an HTTP handler for every CycleService
// procedure. It returns the path to mount it on.
func NewCycleServiceHandler(svc *CycleService, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{connect.WithCodec(Codec())}, opts...)

	mux := http.NewServeMux()
	mux.Handle(ProcessContributionsProcedure, connect.NewUnaryHandler(ProcessContributionsProcedure, svc.ProcessContributions, opts...))
	mux.Handle(ProcessPayoutsProcedure, connect.NewUnaryHandler(ProcessPayoutsProcedure, svc.ProcessPayouts, opts...))
	mux.Handle(ChargeContributionProcedure, connect.NewUnaryHandler(ChargeContributionProcedure, svc.ChargeContribution, opts...))
	mux.Handle(GetCycleStatusProcedure, connect.NewUnaryHandler(GetCycleStatusProcedure, svc.GetCycleStatus, opts...))
	mux.Handle(ResetRetryCountProcedure, connect.NewUnaryHandler(ResetRetryCountProcedure, svc.ResetRetryCount, opts...))
	return "/" + CycleServiceName + "/", mux
}

// toConnectError maps engine errors onto Connect codes.
func toConnectError(err error) error {
	var verr *engine.ValidationError
	switch {
	case errors.As(err, &verr):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case engine.IsFatal(err):
		return connect.NewError(connect.CodeUnavailable, err)
	case errors.Is(err, storage.ErrNotFound):
		return connect.NewError(connect.CodeNotFound, err)
	default:
		return connect.NewError(connect.CodeInternal, err)
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
