// Package tradingsim builds a demonstration processor hosting a four-layer
// trading DAG: data loading at the base, feature extraction and market
// analysis above it, signal and risk computation next, and portfolio
// optimisation feeding a final trading strategy. Every algorithm simulates
// its work with randomized data, making the processor useful for exercising
// Orca Core scheduling end to end without real market feeds.
package tradingsim

import (
	"context"
	"math/rand/v2"
	"time"

	orca "github.com/orcalabs/orca-go"
)

// Window type every tradingsim algorithm is triggered by.
const (
	WindowName    = "WindowA"
	WindowVersion = "1.0.0"
)

const algorithmVersion = "1.0.0"

// New builds a processor named name with the full tradingsim DAG registered.
func New(name string, options ...orca.ProcessorOption) (*orca.Processor, error) {
	p, err := orca.NewProcessor(name, options...)
	if err != nil {
		return nil, err
	}

	// Base layer: no dependencies.
	if err := register(p, "DataLoader", loadData); err != nil {
		return nil, err
	}
	if err := register(p, "MarketData", fetchMarketData); err != nil {
		return nil, err
	}
	if err := register(p, "ConfigLoader", loadConfig); err != nil {
		return nil, err
	}

	// Second layer: single dependencies.
	if err := register(p, "FeatureExtractor", extractFeatures,
		orca.WithDependsOn(loadData)); err != nil {
		return nil, err
	}
	if err := register(p, "MarketAnalyser", analyseMarket,
		orca.WithDependsOn(fetchMarketData)); err != nil {
		return nil, err
	}

	// Third layer: multiple dependencies.
	if err := register(p, "SignalGenerator", generateSignals,
		orca.WithDependsOn(extractFeatures, analyseMarket, loadConfig)); err != nil {
		return nil, err
	}
	if err := register(p, "RiskCalculator", calculateRisk,
		orca.WithDependsOn(analyseMarket, loadConfig)); err != nil {
		return nil, err
	}

	// Fourth layer: aggregation.
	if err := register(p, "PortfolioOptimiser", optimisePortfolio,
		orca.WithDependsOn(generateSignals, calculateRisk)); err != nil {
		return nil, err
	}
	if err := register(p, "TradingStrategy", executeStrategy,
		orca.WithDependsOn(optimisePortfolio, calculateRisk, generateSignals)); err != nil {
		return nil, err
	}

	return p, nil
}

func register(p *orca.Processor, name string, fn orca.AlgorithmFunc, options ...orca.AlgorithmOption) error {
	return p.Algorithm(name, algorithmVersion, WindowName, WindowVersion, fn, options...)
}

// simulateWork sleeps for d unless ctx ends first.
func simulateWork(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func loadData(ctx context.Context, _ orca.Dependencies) (any, error) {
	if err := simulateWork(ctx, 500*time.Millisecond); err != nil {
		return nil, err
	}
	features := make([]any, 100)
	timestamps := make([]any, 100)
	now := float64(time.Now().Unix())
	for i := range features {
		row := make([]any, 10)
		for j := range row {
			row[j] = rand.NormFloat64()
		}
		features[i] = row
		timestamps[i] = now - float64(i)
	}
	return map[string]any{
		"features":   features,
		"timestamps": timestamps,
	}, nil
}

func fetchMarketData(ctx context.Context, _ orca.Dependencies) (any, error) {
	if err := simulateWork(ctx, 300*time.Millisecond); err != nil {
		return nil, err
	}
	prices := make([]any, 50)
	volume := make([]any, 50)
	for i := range prices {
		prices[i] = 10 + rand.Float64()*90
		volume[i] = float64(1000 + rand.IntN(9000))
	}
	return map[string]any{
		"prices": prices,
		"volume": volume,
	}, nil
}

func loadConfig(_ context.Context, _ orca.Dependencies) (any, error) {
	return map[string]any{
		"threshold":   0.75,
		"window_size": 20,
		"min_samples": 50,
	}, nil
}

func extractFeatures(ctx context.Context, _ orca.Dependencies) (any, error) {
	if err := simulateWork(ctx, 800*time.Millisecond); err != nil {
		return nil, err
	}
	indicators := make([]any, 100)
	for i := range indicators {
		row := make([]any, 5)
		for j := range row {
			row[j] = rand.NormFloat64()
		}
		indicators[i] = row
	}
	return map[string]any{
		"technical_indicators": indicators,
		"metadata": map[string]any{
			"processing_time": float64(time.Now().Unix()),
		},
	}, nil
}

var marketTrends = []string{"bullish", "bearish", "neutral"}

func analyseMarket(ctx context.Context, _ orca.Dependencies) (any, error) {
	if err := simulateWork(ctx, 400*time.Millisecond); err != nil {
		return nil, err
	}
	return map[string]any{
		"trend":      marketTrends[rand.IntN(len(marketTrends))],
		"confidence": 0.6 + rand.Float64()*0.3,
	}, nil
}

func generateSignals(ctx context.Context, _ orca.Dependencies) (any, error) {
	if err := simulateWork(ctx, time.Second); err != nil {
		return nil, err
	}
	signals := make([]any, 10)
	for i := range signals {
		signals[i] = float64(rand.IntN(3) - 1)
	}
	return map[string]any{
		"signals":  signals,
		"strength": 0.1 + rand.Float64()*0.9,
	}, nil
}

func calculateRisk(ctx context.Context, _ orca.Dependencies) (any, error) {
	if err := simulateWork(ctx, 600*time.Millisecond); err != nil {
		return nil, err
	}
	return map[string]any{
		"var":          0.1 + rand.Float64()*0.2,
		"sharpe":       0.5 + rand.Float64()*1.5,
		"max_drawdown": 0.1 + rand.Float64()*0.3,
	}, nil
}

func optimisePortfolio(ctx context.Context, _ orca.Dependencies) (any, error) {
	if err := simulateWork(ctx, 1500*time.Millisecond); err != nil {
		return nil, err
	}
	weights := make([]any, 5)
	for i := range weights {
		weights[i] = rand.Float64()
	}
	return map[string]any{
		"weights":              weights,
		"expected_return":      0.05 + rand.Float64()*0.1,
		"risk_adjusted_return": 0.1 + rand.Float64()*0.1,
	}, nil
}

var tradeActions = []string{"buy", "sell", "hold"}

func executeStrategy(ctx context.Context, _ orca.Dependencies) (any, error) {
	if err := simulateWork(ctx, 700*time.Millisecond); err != nil {
		return nil, err
	}
	actions := make([]any, 5)
	for i := range actions {
		actions[i] = map[string]any{
			"asset":  float64(i),
			"action": tradeActions[rand.IntN(len(tradeActions))],
		}
	}
	return map[string]any{
		"actions":          actions,
		"execution_time":   float64(time.Now().Unix()),
		"confidence_score": 0.5 + rand.Float64()*0.5,
	}, nil
}
