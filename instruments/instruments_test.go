package instruments

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleCSV = `instrument_token,tradingsymbol,name,expiry,strike,instrument_type,lot_size,exchange
424961,CRUDEOIL24AUGFUT,CRUDEOIL,2024-08-19,0,FUT,100,MCX
424962,CRUDEOIL24AUG6300CE,CRUDEOIL,2024-08-16,6300,CE,100,MCX
424963,CRUDEOIL24AUG6300PE,CRUDEOIL,2024-08-16,6300,PE,100,MCX
,BROKENROW,X,2024-08-16,0,FUT,100,MCX
`

func writeCSV(t *testing.T, dir, name, content string) string {
	t.Helper()

	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFromFileBuildsLookup(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "20240812_instruments.csv", sampleCSV)

	r, err := LoadFromFile(path)
	require.NoError(t, err)

	// Row without a token is skipped
	assert.Equal(t, 3, r.Count())

	inst, ok := r.Lookup("424962")
	require.True(t, ok)
	assert.Equal(t, "CRUDEOIL24AUG6300CE", inst.Symbol)
	assert.Equal(t, "CE", inst.ContractType)
	assert.Equal(t, 6300.0, inst.Strike)
	assert.Equal(t, 100, inst.LotSize)

	_, ok = r.Lookup("999999")
	assert.False(t, ok)
}

func TestTokensByType(t *testing.T) {
	dir := t.TempDir()
	path := writeCSV(t, dir, "20240812_instruments.csv", sampleCSV)

	r, err := LoadFromFile(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"424961"}, r.TokensByType("FUT"))
	assert.Len(t, r.TokensByType("CE"), 1)
	assert.Empty(t, r.TokensByType("XX"))
}

func TestLatestFilePicksNewestDump(t *testing.T) {
	dir := t.TempDir()
	writeCSV(t, dir, "20240810_instruments.csv", sampleCSV)
	newest := writeCSV(t, dir, "20240812_instruments.csv", sampleCSV)
	writeCSV(t, dir, "20240811_instruments.csv", sampleCSV)
	writeCSV(t, dir, "notes.txt", "ignore me")

	path, err := LatestFile(dir)
	require.NoError(t, err)
	assert.Equal(t, newest, path)
}

func TestLatestFileFailsOnEmptyDir(t *testing.T) {
	_, err := LatestFile(t.TempDir())
	assert.Error(t, err)
}
