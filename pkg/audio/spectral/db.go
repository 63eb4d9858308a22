package spectral

import (
	"fmt"
	"math"
)

// DBConfig controls power-to-decibel conversion
type DBConfig struct {
	Ref    float64 `json:"ref"`     // reference power; ignored when RefMax is set
	RefMax bool    `json:"ref_max"` // use the peak of the input as reference
	AMin   float64 `json:"amin"`    // floor applied before taking the log
	TopDB  float64 `json:"top_db"`  // dynamic range kept below the peak; 0 disables
}

// DefaultDBConfig returns ref=1, amin=1e-10, top_db=80
func DefaultDBConfig() DBConfig {
	return DBConfig{
		Ref:   1.0,
		AMin:  1e-10,
		TopDB: 80.0,
	}
}

// PowerToDB converts a power spectrogram to decibels relative to the
// configured reference: 10*log10(max(amin, S)) - 10*log10(max(amin, ref)).
func PowerToDB(s [][]float64, cfg DBConfig) ([][]float64, error) {
	if cfg.AMin <= 0 {
		return nil, fmt.Errorf("amin must be strictly positive, got %g", cfg.AMin)
	}
	if cfg.TopDB < 0 {
		return nil, fmt.Errorf("top_db must be non-negative, got %g", cfg.TopDB)
	}

	ref := cfg.Ref
	if cfg.RefMax {
		ref = 0
		for _, row := range s {
			for _, v := range row {
				ref = math.Max(ref, math.Abs(v))
			}
		}
	}
	refDB := 10 * math.Log10(math.Max(cfg.AMin, math.Abs(ref)))

	peak := math.Inf(-1)
	out := make([][]float64, len(s))
	for i, row := range s {
		out[i] = make([]float64, len(row))
		for j, v := range row {
			db := 10*math.Log10(math.Max(cfg.AMin, v)) - refDB
			out[i][j] = db
			peak = math.Max(peak, db)
		}
	}

	if cfg.TopDB > 0 {
		floor := peak - cfg.TopDB
		for _, row := range out {
			for j, db := range row {
				row[j] = math.Max(db, floor)
			}
		}
	}

	return out, nil
}
