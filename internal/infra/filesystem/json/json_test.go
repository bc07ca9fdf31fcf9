package json

import (
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriterReaderRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "networks", "development", "contracts.json")

	payload := map[string]any{
		"chainInfo": map[string]any{"chainId": 8996},
		"addresses": map[string]string{"BPool": "0x0000000000000000000000000000000000000001"},
	}
	require.NoError(t, NewWriter().WriteJSON(path, payload))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, byte('\n'), raw[len(raw)-1])

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)

	var decoded struct {
		ChainInfo struct {
			ChainID int `json:"chainId"`
		} `json:"chainInfo"`
		Addresses map[string]string `json:"addresses"`
	}
	require.NoError(t, NewReader().ReadJSON(path, &decoded))
	assert.Equal(t, 8996, decoded.ChainInfo.ChainID)
	assert.Equal(t, "0x0000000000000000000000000000000000000001", decoded.Addresses["BPool"])
}

func TestWriter_WriteBytesUsesUniqueTempFiles(t *testing.T) {
	path := filepath.Join(t.TempDir(), "deployment.json")

	// a stale fixed-name temp path must not block the write
	require.NoError(t, os.Mkdir(path+".tmp", 0755))

	writer := NewWriter()
	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = writer.WriteBytes(path, []byte(`{"run":"same"}`))
		}()
	}
	wg.Wait()

	for _, err := range errs {
		assert.NoError(t, err)
	}

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, `{"run":"same"}`, string(raw))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0644), info.Mode().Perm())

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(path), ".deployment.json.*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestReader_Errors(t *testing.T) {
	dir := t.TempDir()

	err := NewReader().ReadJSON(filepath.Join(dir, "missing.json"), &struct{}{})
	assert.ErrorContains(t, err, "failed to read file")

	broken := filepath.Join(dir, "broken.json")
	require.NoError(t, os.WriteFile(broken, []byte("{"), 0644))
	err = NewReader().ReadJSON(broken, &struct{}{})
	assert.ErrorContains(t, err, "failed to unmarshal JSON")
}
