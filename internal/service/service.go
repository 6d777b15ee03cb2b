package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mExOms/execsim/internal/execution"
	"github.com/mExOms/execsim/internal/marketdata"
	natsclient "github.com/mExOms/execsim/pkg/nats"
	"github.com/mExOms/execsim/pkg/types"
	"github.com/sirupsen/logrus"
)

// Server is the subset of the NATS client the service needs
type Server interface {
	Serve(subject string, handler natsclient.RequestHandler) (*natsclient.Subscription, error)
}

// Service answers cost and planning requests over NATS
type Service struct {
	planner  *execution.Planner
	source   marketdata.DepthSource
	subjects natsclient.Subjects
	timeout  time.Duration
	subs     []*natsclient.Subscription
	logger   *logrus.Entry
}

// New creates a service. source may be nil, in which case every request
// must carry its own depth.
func New(planner *execution.Planner, source marketdata.DepthSource, prefix string) *Service {
	return &Service{
		planner:  planner,
		source:   source,
		subjects: natsclient.NewSubjects(prefix),
		timeout:  5 * time.Second,
		logger:   logrus.WithField("component", "execsim-service"),
	}
}

// Start subscribes every operation on server
func (s *Service) Start(server Server) error {
	for _, op := range natsclient.Operations {
		subject := s.subjects.For(op)
		sub, err := server.Serve(subject, s.Handle)
		if err != nil {
			s.Stop()
			return fmt.Errorf("failed to serve %s: %w", subject, err)
		}
		s.subs = append(s.subs, sub)
	}
	s.logger.WithField("prefix", s.subjects.Prefix).Info("Service started")
	return nil
}

// Stop removes all subscriptions
func (s *Service) Stop() {
	for _, sub := range s.subs {
		if sub == nil {
			continue
		}
		if err := sub.Unsubscribe(); err != nil {
			s.logger.WithError(err).Warn("Unsubscribe failed")
		}
	}
	s.subs = nil
}

// Handle dispatches one request by subject
func (s *Service) Handle(subject string, data []byte) (interface{}, error) {
	op, err := s.subjects.Operation(subject)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	switch op {
	case natsclient.OpEstimate:
		return s.handleEstimate(ctx, data)
	case natsclient.OpPlan:
		return s.handlePlan(ctx, data)
	case natsclient.OpSimulate:
		return s.handleSimulate(ctx, data)
	case natsclient.OpExit:
		return s.handleExit(ctx, data)
	case natsclient.OpMetrics:
		return s.planner.Metrics(), nil
	default:
		return nil, fmt.Errorf("unknown operation: %s", op)
	}
}

func (s *Service) handleEstimate(ctx context.Context, data []byte) (interface{}, error) {
	var msg natsclient.EstimateMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("invalid estimate request: %w", err)
	}
	if !msg.Side.IsValid() {
		return nil, fmt.Errorf("invalid side: %q", msg.Side)
	}

	depth, err := s.depth(ctx, msg.Symbol, msg.Depth)
	if err != nil {
		return nil, err
	}

	estimate := s.planner.EstimateFill(msg.Side, msg.Quantity, depth)
	impact := s.planner.EstimateImpactCost(float64(msg.Quantity), float64(msg.DailyVolume), msg.Volatility)

	return natsclient.EstimateResult{
		Symbol:       msg.Symbol,
		AveragePrice: estimate.AveragePrice,
		Filled:       estimate.Walk.Filled,
		Shortfall:    estimate.Walk.Shortfall(),
		Cost:         types.NewExecutionCost(estimate.Slippage, impact),
		Warning:      estimate.Warning,
	}, nil
}

func (s *Service) handlePlan(ctx context.Context, data []byte) (interface{}, error) {
	var req execution.PlanRequest
	if err := json.Unmarshal(data, &req); err != nil {
		return nil, fmt.Errorf("invalid plan request: %w", err)
	}

	depth, err := s.depth(ctx, req.Symbol, req.Depth)
	if err != nil {
		return nil, err
	}
	req.Depth = depth

	return s.planner.PlanExecution(req)
}

func (s *Service) handleSimulate(ctx context.Context, data []byte) (interface{}, error) {
	var msg natsclient.SimulateMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("invalid simulate request: %w", err)
	}

	depth, err := s.depth(ctx, msg.Symbol, msg.Depth)
	if err != nil {
		return nil, err
	}
	return s.planner.SimulatePlan(msg.Schedule, depth)
}

func (s *Service) handleExit(ctx context.Context, data []byte) (interface{}, error) {
	var msg natsclient.ExitMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("invalid exit request: %w", err)
	}

	depth := msg.Depth
	if depth == nil && s.source != nil && len(msg.Positions) > 0 {
		// a missing book is allowed here; orders fall back to position prices
		fetched, err := s.source.Depth(ctx, msg.Positions[0].Symbol)
		if err != nil {
			s.logger.WithError(err).Warn("No depth for emergency exit, pricing from positions")
		} else {
			depth = fetched
		}
	}
	if depth != nil {
		if err := depth.Validate(); err != nil {
			return nil, err
		}
	}

	return s.planner.PlanEmergencyExit(msg.Positions, msg.Condition, depth), nil
}

// depth returns the request's own book, or fetches one from the source
func (s *Service) depth(ctx context.Context, symbol string, given *types.MarketDepth) (*types.MarketDepth, error) {
	if given != nil {
		if err := given.Validate(); err != nil {
			return nil, err
		}
		return given, nil
	}
	if s.source == nil {
		return nil, fmt.Errorf("no depth supplied for %s and no depth source configured", symbol)
	}
	depth, err := s.source.Depth(ctx, symbol)
	if err != nil {
		return nil, fmt.Errorf("failed to load depth for %s: %w", symbol, err)
	}
	return depth, nil
}
