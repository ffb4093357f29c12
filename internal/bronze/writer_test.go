package bronze

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"orangebook/internal/source"
)

func TestJSONLWriter(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bronze", "records.jsonl")
	w, err := NewJSONLWriter(path)
	require.NoError(t, err)

	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	for i := 1; i <= 3; i++ {
		require.NoError(t, w.Write(Record{
			SourceFile:  "exclusivity.txt",
			IngestionTS: ts,
			SourceHash:  "h",
			Role:        source.RoleExclusivity,
			RawContent:  RawContent{LineNumber: i, Data: "N~020702~001~<ODE>"},
		}))
	}
	require.NoError(t, w.Close())
	assert.Equal(t, 3, w.Count())
	assert.Equal(t, path, w.Path())

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()

	var lines []map[string]interface{}
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		var m map[string]interface{}
		require.NoError(t, json.Unmarshal(sc.Bytes(), &m))
		lines = append(lines, m)
	}
	require.Len(t, lines, 3)

	raw := lines[2]["raw_content"].(map[string]interface{})
	assert.Equal(t, 3.0, raw["line_number"])
	assert.Equal(t, "N~020702~001~<ODE>", raw["data"])
	assert.Equal(t, "exclusivity", lines[0]["role"])
	assert.Equal(t, "2024-01-02T03:04:05Z", lines[0]["ingestion_ts"])
}
