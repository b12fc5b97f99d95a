package instruments

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"tickstore/logger"

	"github.com/gocarina/gocsv"
)

// Instrument is one row of the broker's daily instrument master dump.
type Instrument struct {
	Token        string  `csv:"instrument_token"`
	Symbol       string  `csv:"tradingsymbol"`
	Name         string  `csv:"name"`
	Expiry       string  `csv:"expiry"`
	Strike       float64 `csv:"strike"`
	ContractType string  `csv:"instrument_type"` // FUT, CE or PE
	LotSize      int     `csv:"lot_size"`
	Exchange     string  `csv:"exchange"`
}

// Registry is the in-memory token lookup built from the instrument master.
type Registry struct {
	mu      sync.RWMutex
	byToken map[string]Instrument
}

// LoadFromFile parses an instrument master CSV into a fresh registry.
func LoadFromFile(path string) (*Registry, error) {
	log := logger.GetLogger()

	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open instrument file: %w", err)
	}
	defer file.Close()

	var rows []Instrument
	if err := gocsv.UnmarshalFile(file, &rows); err != nil {
		return nil, fmt.Errorf("failed to parse instrument file: %w", err)
	}

	r := &Registry{
		byToken: make(map[string]Instrument, len(rows)),
	}
	for _, row := range rows {
		if row.Token == "" {
			continue
		}
		r.byToken[row.Token] = row
	}

	log.Info("Loaded instrument master", map[string]interface{}{
		"path":        path,
		"instruments": len(r.byToken),
	})
	return r, nil
}

// LatestFile finds the newest instrument CSV in dir, relying on the
// YYYYMMDD_ file naming of the daily dumps.
func LatestFile(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read instruments directory: %w", err)
	}

	var csvFiles []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.HasSuffix(entry.Name(), ".csv") {
			csvFiles = append(csvFiles, entry.Name())
		}
	}
	if len(csvFiles) == 0 {
		return "", fmt.Errorf("no instrument CSV files in %s", dir)
	}

	sort.Sort(sort.Reverse(sort.StringSlice(csvFiles)))
	return filepath.Join(dir, csvFiles[0]), nil
}

// Lookup returns the instrument for a token.
func (r *Registry) Lookup(token string) (Instrument, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	inst, ok := r.byToken[token]
	return inst, ok
}

// TokensByType returns all tokens of one contract type, sorted.
func (r *Registry) TokensByType(contractType string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var tokens []string
	for token, inst := range r.byToken {
		if inst.ContractType == contractType {
			tokens = append(tokens, token)
		}
	}
	sort.Strings(tokens)
	return tokens
}

// Count reports the number of loaded instruments.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byToken)
}
