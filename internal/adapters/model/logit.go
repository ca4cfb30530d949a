// Package model loads per-symbol trained classifier weights and scores live
// feature rows. The training pipeline exports one JSON file per symbol; what
// happens inside training is not this process's business — only the weights
// and the probability are.
package model

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"

	"github.com/alejandrodnm/sniperbot/internal/domain"
)

// weightsFile is the exported artifact for one symbol.
type weightsFile struct {
	Weights []float64 `json:"weights"`
	Bias    float64   `json:"bias"`
}

type scorer struct {
	weights []float64
	bias    float64
}

// Store implements ports.Classifier from a directory of <SYMBOL>.json files.
// Symbols without a file simply have no model; the entry gate rejects them.
type Store struct {
	scorers map[string]scorer
}

// Load reads every symbol's weights file from dir. Missing files are fine;
// malformed ones are skipped with a warning so one bad export doesn't take
// down the rest of the watchlist.
func Load(dir string, symbols []string) (*Store, error) {
	st := &Store{scorers: make(map[string]scorer, len(symbols))}

	for _, symbol := range symbols {
		path := filepath.Join(dir, symbol+".json")
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("model.Load: read %q: %w", path, err)
		}

		var wf weightsFile
		if err := json.Unmarshal(data, &wf); err != nil {
			slog.Warn("model: skipping malformed weights file", "path", path, "err", err)
			continue
		}
		if len(wf.Weights) == 0 {
			slog.Warn("model: skipping empty weights file", "path", path)
			continue
		}

		st.scorers[symbol] = scorer{weights: wf.Weights, bias: wf.Bias}
		slog.Info("model loaded", "symbol", symbol, "features", len(wf.Weights))
	}

	return st, nil
}

// Has reports whether a trained model exists for the symbol.
func (s *Store) Has(symbol string) bool {
	_, ok := s.scorers[symbol]
	return ok
}

// Probability scores the row with the symbol's logistic weights.
func (s *Store) Probability(symbol string, row domain.FeatureRow) (float64, error) {
	sc, ok := s.scorers[symbol]
	if !ok {
		return 0, fmt.Errorf("model.Probability: no model for %s", symbol)
	}

	x := row.Vector()
	if len(x) != len(sc.weights) {
		return 0, fmt.Errorf("model.Probability: %s: %d features, model wants %d",
			symbol, len(x), len(sc.weights))
	}

	z := sc.bias
	for i := range x {
		z += sc.weights[i] * x[i]
	}
	return sigmoid(z), nil
}

// sigmoid returns 1/(1+e^-x) with clamping for numerical stability.
func sigmoid(x float64) float64 {
	if x > 20 {
		return 1
	}
	if x < -20 {
		return 0
	}
	return 1 / (1 + math.Exp(-x))
}
