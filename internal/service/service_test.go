package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/mExOms/execsim/internal/config"
	"github.com/mExOms/execsim/internal/execution"
	"github.com/mExOms/execsim/internal/marketdata"
	natsclient "github.com/mExOms/execsim/pkg/nats"
	"github.com/mExOms/execsim/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const bookJSON = `{"symbol":"TEST","bids":[{"price":"9.95","volume":1000},{"price":"9.94","volume":1500}],"asks":[{"price":"9.96","volume":800},{"price":"9.97","volume":1200}]}`

type fakeServer struct {
	subjects []string
	failOn   string
}

func (f *fakeServer) Serve(subject string, handler natsclient.RequestHandler) (*natsclient.Subscription, error) {
	if subject == f.failOn {
		return nil, errors.New("subscribe refused")
	}
	f.subjects = append(f.subjects, subject)
	return nil, nil
}

type failingSource struct{}

func (failingSource) Depth(ctx context.Context, symbol string) (*types.MarketDepth, error) {
	return nil, errors.New("exchange unavailable")
}

func newTestService(t *testing.T, source marketdata.DepthSource) *Service {
	t.Helper()
	planner, err := execution.NewPlanner(config.Default())
	require.NoError(t, err)
	t.Cleanup(planner.Close)
	return New(planner, source, "execsim")
}

func staticSource(t *testing.T) marketdata.DepthSource {
	t.Helper()
	source, err := marketdata.ParseDepthJSON([]byte(bookJSON))
	require.NoError(t, err)
	return source
}

// call runs a request through the reply envelope the way the NATS client does
func call(t *testing.T, svc *Service, subject string, req interface{}, resp interface{}) error {
	t.Helper()
	payload, err := json.Marshal(req)
	require.NoError(t, err)
	return natsclient.DecodeReply(natsclient.HandleRequest(svc.Handle, subject, payload), resp)
}

func TestService_StartSubscribesEveryOperation(t *testing.T) {
	svc := newTestService(t, nil)
	server := &fakeServer{}

	require.NoError(t, svc.Start(server))
	assert.Equal(t, []string{"execsim.estimate", "execsim.plan", "execsim.simulate", "execsim.exit", "execsim.metrics"}, server.subjects)

	err := newTestService(t, nil).Start(&fakeServer{failOn: "execsim.exit"})
	assert.ErrorContains(t, err, "execsim.exit")
}

func TestService_Estimate(t *testing.T) {
	svc := newTestService(t, staticSource(t))

	var result natsclient.EstimateResult
	err := call(t, svc, "execsim.estimate", natsclient.EstimateMessage{
		Symbol:      "TEST",
		Side:        types.OrderSideBuy,
		Quantity:    1200,
		DailyVolume: 120000,
		Volatility:  0.2,
	}, &result)
	require.NoError(t, err)

	assert.InDelta(t, 9.963333, result.AveragePrice.InexactFloat64(), 1e-6)
	assert.InDelta(t, 0.000335, result.Cost.Slippage, 1e-6)
	assert.InDelta(t, 0.02*0.1/0.99, result.Cost.ImpactCost, 1e-12)
	assert.Equal(t, int64(1200), result.Filled)
	assert.Empty(t, result.Warning)

	// deeper than the book
	err = call(t, svc, "execsim.estimate", natsclient.EstimateMessage{Symbol: "TEST", Side: types.OrderSideBuy, Quantity: 5000}, &result)
	require.NoError(t, err)
	assert.Equal(t, int64(3000), result.Shortfall)
	assert.NotEmpty(t, result.Warning)
}

func TestService_EstimateErrors(t *testing.T) {
	svc := newTestService(t, nil)

	err := call(t, svc, "execsim.estimate", natsclient.EstimateMessage{Symbol: "TEST", Side: "HOLD", Quantity: 1}, nil)
	assert.ErrorContains(t, err, "invalid side")

	err = call(t, svc, "execsim.estimate", natsclient.EstimateMessage{Symbol: "TEST", Side: types.OrderSideBuy, Quantity: 1}, nil)
	assert.ErrorContains(t, err, "no depth supplied")

	reply := natsclient.HandleRequest(svc.Handle, "execsim.estimate", []byte("{"))
	assert.ErrorContains(t, natsclient.DecodeReply(reply, nil), "invalid estimate request")

	_, err = svc.Handle("execsim.unknown", nil)
	assert.Error(t, err)
	_, err = svc.Handle("other.plan", nil)
	assert.Error(t, err)
}

func TestService_PlanAndMetrics(t *testing.T) {
	svc := newTestService(t, staticSource(t))

	var plan execution.ExecutionPlan
	err := call(t, svc, "execsim.plan", execution.PlanRequest{
		Symbol:      "TEST",
		Side:        types.OrderSideSell,
		Quantity:    2000,
		OrderValue:  decimal.NewFromInt(250000),
		DailyVolume: 100000,
	}, &plan)
	require.NoError(t, err)
	assert.Equal(t, types.MethodTWAP, plan.Method)
	assert.Equal(t, int64(2000), plan.Entries.TotalQuantity())
	require.NotNil(t, plan.Projection)
	assert.Equal(t, int64(2000), plan.Projection.Filled)

	var metrics execution.PlanMetrics
	require.NoError(t, call(t, svc, "execsim.metrics", struct{}{}, &metrics))
	assert.Equal(t, int64(1), metrics.TotalPlans)

	err = call(t, svc, "execsim.plan", execution.PlanRequest{Symbol: "NOPE", Side: types.OrderSideBuy, Quantity: 10}, nil)
	assert.ErrorContains(t, err, "NOPE")
}

func TestService_Simulate(t *testing.T) {
	svc := newTestService(t, nil)

	var depth types.MarketDepth
	require.NoError(t, json.Unmarshal([]byte(bookJSON), &depth))

	var result execution.SimulationResult
	err := call(t, svc, "execsim.simulate", natsclient.SimulateMessage{
		Symbol: "TEST",
		Schedule: types.Schedule{
			{SliceIndex: 0, Quantity: 600, Side: types.OrderSideBuy},
			{SliceIndex: 1, Quantity: 600, Side: types.OrderSideBuy},
		},
		Depth: &depth,
	}, &result)
	require.NoError(t, err)
	assert.Equal(t, int64(1200), result.Filled)
	assert.InDelta(t, 0.000335, result.RealizedSlippage, 1e-6)

	depth.Asks[0].Price = decimal.Zero
	err = call(t, svc, "execsim.simulate", natsclient.SimulateMessage{Symbol: "TEST", Depth: &depth}, nil)
	assert.ErrorContains(t, err, types.ErrMalformedDepth.Error())
}

func TestService_Exit(t *testing.T) {
	positions := []types.Position{{Symbol: "TEST", Side: types.OrderSideBuy, Quantity: 1000, CurrentPrice: decimal.RequireFromString("9.9")}}

	var result execution.ExitResult
	err := call(t, newTestService(t, staticSource(t)), "execsim.exit", natsclient.ExitMessage{
		Condition: execution.ConditionNormal,
		Positions: positions,
	}, &result)
	require.NoError(t, err)
	require.Len(t, result.Orders, 1)
	assert.True(t, result.Orders[0].Price.Equal(decimal.RequireFromString("9.9102")), result.Orders[0].Price.String())

	// unavailable book falls back to position prices
	err = call(t, newTestService(t, failingSource{}), "execsim.exit", natsclient.ExitMessage{
		Condition: execution.ConditionNormal,
		Positions: positions,
	}, &result)
	require.NoError(t, err)
	assert.True(t, result.Orders[0].Price.Equal(decimal.RequireFromString("9.8505")), result.Orders[0].Price.String())
}
