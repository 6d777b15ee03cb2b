package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/mExOms/execsim/internal/config"
	"github.com/mExOms/execsim/internal/execution"
	"github.com/mExOms/execsim/internal/marketdata"
	natsclient "github.com/mExOms/execsim/pkg/nats"
	"github.com/mExOms/execsim/pkg/types"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

func main() {
	var (
		configFile  = flag.String("config", "", "Config file path (optional)")
		op          = flag.String("op", "plan", "Operation (estimate, impact, plan, simulate, exit, metrics)")
		remote      = flag.Bool("nats", false, "Send the operation to a running execsim-server over NATS")
		depthFile   = flag.String("depth", "", "Depth snapshot JSON file")
		live        = flag.Bool("binance", false, "Fetch depth from Binance instead of a file")
		synthetic   = flag.Int("synthetic", 0, "Generate a synthetic book with this many levels")
		seed        = flag.Int64("seed", 1, "Seed for the synthetic book")
		symbol      = flag.String("symbol", "BTCUSDT", "Symbol")
		side        = flag.String("side", "BUY", "Order side (BUY, SELL)")
		quantity    = flag.Int64("qty", 0, "Order quantity in units (lots for -binance books)")
		orderValue  = flag.String("value", "", "Order value (defaults to qty x best price)")
		dailyVolume = flag.Int64("daily-volume", 0, "Average daily volume in units")
		volatility  = flag.Float64("volatility", 0, "Volatility as a fraction")
		method      = flag.String("method", "", "Force an execution method")
		window      = flag.Int("window", 0, "Override the schedule window in minutes")
		condition   = flag.String("condition", execution.ConditionNormal, "Exit condition (panic, flash_crash, normal)")
		price       = flag.String("price", "", "Current price for exit positions")
	)
	flag.Parse()

	cfg := config.Default()
	if *configFile != "" {
		loaded, err := config.Load(*configFile)
		if err != nil {
			logrus.Fatalf("Failed to load config: %v", err)
		}
		cfg = loaded
	}
	if err := config.ConfigureLogging(cfg.Log); err != nil {
		logrus.Fatalf("Failed to configure logging: %v", err)
	}

	depth, err := loadDepth(cfg, *symbol, *depthFile, *live, *synthetic, *seed)
	if err != nil {
		logrus.Fatalf("Failed to load depth: %v", err)
	}

	orderSide := types.OrderSide(*side)
	planReq := execution.PlanRequest{
		Symbol:        *symbol,
		Side:          orderSide,
		Quantity:      *quantity,
		DailyVolume:   *dailyVolume,
		Volatility:    *volatility,
		Depth:         depth,
		WindowMinutes: *window,
		Method:        types.ExecutionMethod(*method),
	}
	if *orderValue != "" {
		value, err := decimal.NewFromString(*orderValue)
		if err != nil {
			logrus.Fatalf("Invalid order value: %v", err)
		}
		planReq.OrderValue = value
	}
	currentPrice := decimal.Zero
	if *price != "" {
		currentPrice, err = decimal.NewFromString(*price)
		if err != nil {
			logrus.Fatalf("Invalid price: %v", err)
		}
	} else if depth != nil {
		currentPrice, _ = depth.MidPrice()
	}
	positions := []types.Position{{
		Symbol:       *symbol,
		Side:         orderSide,
		Quantity:     *quantity,
		CurrentPrice: currentPrice,
	}}

	if *remote {
		result, err := runRemote(cfg.NATS, *op, planReq, positions, *condition)
		if err != nil {
			logrus.Fatalf("Remote %s failed: %v", *op, err)
		}
		printJSON(result)
		return
	}

	planner, err := execution.NewPlanner(cfg)
	if err != nil {
		logrus.Fatalf("Failed to create planner: %v", err)
	}
	defer planner.Close()

	var result interface{}

	switch *op {
	case "estimate":
		if depth == nil {
			logrus.Fatal("estimate needs a book: use -depth, -binance or -synthetic")
		}
		result = planner.EstimateFill(orderSide, *quantity, depth)

	case "impact":
		result = map[string]float64{
			"impact_cost": planner.EstimateImpactCost(float64(*quantity), float64(*dailyVolume), *volatility),
		}

	case "plan", "simulate":
		plan, err := planner.PlanExecution(planReq)
		if err != nil {
			logrus.Fatalf("Planning failed: %v", err)
		}
		result = plan

		if *op == "simulate" {
			if depth == nil {
				logrus.Fatal("simulate needs a book: use -depth, -binance or -synthetic")
			}
			sim, err := planner.SimulatePlan(plan.Entries, depth)
			if err != nil {
				logrus.Fatalf("Simulation failed: %v", err)
			}
			result = sim
		}

	case "exit":
		result = planner.PlanEmergencyExit(positions, *condition, depth)

	case "metrics":
		result = planner.Metrics()

	default:
		fmt.Fprintf(os.Stderr, "unknown operation %q\n", *op)
		flag.Usage()
		os.Exit(2)
	}

	printJSON(result)
}

func printJSON(result interface{}) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(result); err != nil {
		logrus.Fatalf("Failed to encode result: %v", err)
	}
}

// runRemote sends op to execsim-server. Requests without a book let the
// server fetch one from its own depth source.
func runRemote(cfg config.NATSConfig, op string, req execution.PlanRequest, positions []types.Position, condition string) (interface{}, error) {
	client, err := natsclient.NewClient(&natsclient.Config{
		URL:      cfg.URL,
		ClientID: cfg.ClientID + "-cli",
	})
	if err != nil {
		return nil, err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	return remoteCall(ctx, client, natsclient.NewSubjects(cfg.SubjectPrefix), op, req, positions, condition)
}

// requester is the request side of the NATS client
type requester interface {
	Request(ctx context.Context, subject string, req, resp interface{}) error
}

func remoteCall(ctx context.Context, client requester, subjects natsclient.Subjects, op string, req execution.PlanRequest, positions []types.Position, condition string) (interface{}, error) {
	switch op {
	case "estimate":
		var result natsclient.EstimateResult
		err := client.Request(ctx, subjects.Estimate(), natsclient.EstimateMessage{
			Symbol:      req.Symbol,
			Side:        req.Side,
			Quantity:    req.Quantity,
			DailyVolume: req.DailyVolume,
			Volatility:  req.Volatility,
			Depth:       req.Depth,
		}, &result)
		return result, err

	case "plan", "simulate":
		var plan execution.ExecutionPlan
		if err := client.Request(ctx, subjects.Plan(), req, &plan); err != nil {
			return nil, err
		}
		if op == "plan" {
			return plan, nil
		}
		var sim execution.SimulationResult
		err := client.Request(ctx, subjects.Simulate(), natsclient.SimulateMessage{
			Symbol:   req.Symbol,
			Schedule: plan.Entries,
			Depth:    req.Depth,
		}, &sim)
		return sim, err

	case "exit":
		var result execution.ExitResult
		err := client.Request(ctx, subjects.Exit(), natsclient.ExitMessage{
			Condition: condition,
			Positions: positions,
			Depth:     req.Depth,
		}, &result)
		return result, err

	case "metrics":
		var metrics execution.PlanMetrics
		err := client.Request(ctx, subjects.Metrics(), struct{}{}, &metrics)
		return metrics, err

	default:
		return nil, fmt.Errorf("operation %q is not served remotely", op)
	}
}

func loadDepth(cfg *config.Config, symbol, path string, live bool, levels int, seed int64) (*types.MarketDepth, error) {
	var source marketdata.DepthSource

	switch {
	case path != "":
		static, err := marketdata.LoadDepthFile(path)
		if err != nil {
			return nil, err
		}
		source = static
	case live:
		binanceSource, err := marketdata.NewBinanceDepthSource(cfg.Binance)
		if err != nil {
			return nil, err
		}
		defer binanceSource.Close()
		source = binanceSource
	case levels > 0:
		source = marketdata.NewSyntheticSource(seed, levels)
	default:
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return source.Depth(ctx, symbol)
}
