package rpc

import (
	"context"
	"errors"

	"github.com/Klingon-tech/klingnet-consolidator/internal/consolidate"
	"github.com/Klingon-tech/klingnet-consolidator/internal/rpcclient"
)

// ── Consolidate handlers ────────────────────────────────────────────────

func (s *Server) handleConsolidate(ctx context.Context, req *Request) (interface{}, *Error) {
	args, rpcErr := parseArgs(req)
	if rpcErr != nil {
		return nil, rpcErr
	}

	ctx, cancel := s.withCallTimeout(ctx)
	defer cancel()

	receipt, err := s.exec.Execute(ctx, args)
	if err != nil {
		return nil, mapError(err)
	}
	return receipt, nil
}

func (s *Server) handleConsolidateBelow(req *Request) (interface{}, *Error) {
	args, rpcErr := parseArgs(req)
	if rpcErr != nil {
		return nil, rpcErr
	}

	if err := s.sched.Start(args); err != nil {
		return nil, mapError(err)
	}
	s.logger.Info().Str("job", args.String()).Msg("consolidate-below accepted")
	return &StatusResult{Status: "accepted", Job: &args}, nil
}

func (s *Server) handleConsolidateCancel(req *Request) (interface{}, *Error) {
	running := s.sched.Cancel()
	if running {
		s.logger.Info().Msg("consolidate-below cancel requested")
	}
	return &StatusResult{Status: "cancelled", Running: &running}, nil
}

func (s *Server) handleConsolidateStatus(req *Request) (interface{}, *Error) {
	st := s.sched.Status()
	return &st, nil
}

func (s *Server) handleConsolidatePreview(ctx context.Context, req *Request) (interface{}, *Error) {
	args, rpcErr := parseArgs(req)
	if rpcErr != nil {
		return nil, rpcErr
	}

	ctx, cancel := s.withCallTimeout(ctx)
	defer cancel()

	plan, err := s.exec.Preview(ctx, args)
	if err != nil {
		return nil, mapError(err)
	}

	sel := plan.Selection
	res := &PreviewResult{
		FeeRate:      plan.FeeRate,
		MinUTXOs:     plan.MinUTXOs,
		ReserveFloor: plan.ReserveFloor,
		Count:        len(sel.Coins),
		TotalMsat:    sel.Total,
		Outpoints:    make([]string, len(sel.Coins)),
		SelectionID:  sel.Fingerprint().String(),
	}
	for i, c := range sel.Coins {
		res.Outpoints[i] = c.Outpoint.String()
	}
	if sel.Reserve != nil {
		res.Reserve = sel.Reserve.Outpoint.String()
	}
	return res, nil
}

func (s *Server) withCallTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.callTimeout)
}

// mapError converts a consolidation error into a JSON-RPC error.
func mapError(err error) *Error {
	var ic *consolidate.InsufficientCoinsError
	switch {
	case consolidate.IsValidation(err):
		return &Error{Code: CodeInvalidParams, Message: err.Error()}
	case errors.As(err, &ic):
		return &Error{
			Code:    CodeInsufficientCoins,
			Message: err.Error(),
			Data:    InsufficientData{Found: ic.Found, Wanted: ic.Wanted},
		}
	case errors.Is(err, consolidate.ErrAlreadyRunning):
		return &Error{Code: CodeAlreadyRunning, Message: err.Error()}
	case errors.Is(err, consolidate.ErrOracleUnavailable),
		errors.Is(err, consolidate.ErrEstimateMissing),
		rpcclient.IsTransport(err),
		errors.Is(err, context.DeadlineExceeded):
		return &Error{Code: CodeNodeUnavailable, Message: err.Error()}
	default:
		return &Error{Code: CodeInternalError, Message: err.Error()}
	}
}
