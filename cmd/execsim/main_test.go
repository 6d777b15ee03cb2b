package main

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mExOms/execsim/internal/config"
	"github.com/mExOms/execsim/internal/execution"
	"github.com/mExOms/execsim/internal/service"
	natsclient "github.com/mExOms/execsim/pkg/nats"
	"github.com/mExOms/execsim/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// inProcess answers requests with a service running in the same process
type inProcess struct {
	svc *service.Service
}

func (p inProcess) Request(ctx context.Context, subject string, req, resp interface{}) error {
	payload, err := json.Marshal(req)
	if err != nil {
		return err
	}
	return natsclient.DecodeReply(natsclient.HandleRequest(p.svc.Handle, subject, payload), resp)
}

func newInProcess(t *testing.T) inProcess {
	t.Helper()
	planner, err := execution.NewPlanner(config.Default())
	require.NoError(t, err)
	t.Cleanup(planner.Close)
	return inProcess{svc: service.New(planner, nil, "")}
}

func testRequest(t *testing.T) execution.PlanRequest {
	t.Helper()
	depth, err := types.NewMarketDepth("TEST",
		[]decimal.Decimal{decimal.RequireFromString("9.95"), decimal.RequireFromString("9.94")}, []int64{1000, 1500},
		[]decimal.Decimal{decimal.RequireFromString("9.96"), decimal.RequireFromString("9.97")}, []int64{800, 1200},
		time.Unix(1700000000, 0))
	require.NoError(t, err)
	return execution.PlanRequest{
		Symbol:      "TEST",
		Side:        types.OrderSideBuy,
		Quantity:    1200,
		DailyVolume: 100000,
		Volatility:  0.02,
		Depth:       depth,
	}
}

func TestRemoteCall_Estimate(t *testing.T) {
	client := newInProcess(t)
	req := testRequest(t)

	result, err := remoteCall(context.Background(), client, natsclient.NewSubjects(""), "estimate", req, nil, "")
	require.NoError(t, err)

	estimate, ok := result.(natsclient.EstimateResult)
	require.True(t, ok)
	assert.Equal(t, int64(1200), estimate.Filled)
	assert.InDelta(t, 9.963333, estimate.AveragePrice.InexactFloat64(), 1e-6)
	assert.InDelta(t, 0.000335, estimate.Cost.Slippage, 1e-6)
}

func TestRemoteCall_PlanSimulateAndMetrics(t *testing.T) {
	client := newInProcess(t)
	subjects := natsclient.NewSubjects("")
	req := testRequest(t)

	result, err := remoteCall(context.Background(), client, subjects, "plan", req, nil, "")
	require.NoError(t, err)
	plan := result.(execution.ExecutionPlan)
	assert.Equal(t, types.MethodMarket, plan.Method)
	assert.Equal(t, int64(1200), plan.Entries.TotalQuantity())

	result, err = remoteCall(context.Background(), client, subjects, "simulate", req, nil, "")
	require.NoError(t, err)
	sim := result.(execution.SimulationResult)
	assert.Equal(t, int64(1200), sim.Filled)
	assert.InDelta(t, 0.000335, sim.RealizedSlippage, 1e-6)

	result, err = remoteCall(context.Background(), client, subjects, "metrics", req, nil, "")
	require.NoError(t, err)
	metrics := result.(execution.PlanMetrics)
	assert.Equal(t, int64(2), metrics.TotalPlans)
	assert.Equal(t, int64(1), metrics.TotalSimulations)
}

func TestRemoteCall_Exit(t *testing.T) {
	client := newInProcess(t)
	req := testRequest(t)
	positions := []types.Position{{Symbol: "TEST", Quantity: 1000, CurrentPrice: decimal.RequireFromString("9.95")}}

	result, err := remoteCall(context.Background(), client, natsclient.NewSubjects(""), "exit", req, positions, execution.ConditionPanic)
	require.NoError(t, err)
	exit := result.(execution.ExitResult)
	require.Len(t, exit.Orders, 1)
	assert.Equal(t, types.OrderSideSell, exit.Orders[0].Side)
	assert.True(t, exit.TotalNotional.Equal(decimal.NewFromInt(9950)), exit.TotalNotional.String())
}

func TestRemoteCall_Errors(t *testing.T) {
	client := newInProcess(t)
	req := testRequest(t)
	req.Depth = nil

	_, err := remoteCall(context.Background(), client, natsclient.NewSubjects(""), "plan", req, nil, "")
	var remote *natsclient.RemoteError
	require.ErrorAs(t, err, &remote)
	assert.Contains(t, remote.Message, "no depth supplied")

	_, err = remoteCall(context.Background(), client, natsclient.NewSubjects(""), "impact", req, nil, "")
	assert.ErrorContains(t, err, "not served remotely")
}
