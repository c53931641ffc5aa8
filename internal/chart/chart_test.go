package chart

import (
	"context"
	"grid-trader-go/internal/models"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteData(t *testing.T) {
	dir := t.TempDir()
	r := NewRenderer(filepath.Join(dir, "grid.dat"), filepath.Join(dir, "grid.png"))

	rows := []models.SnapshotRow{
		{GridLevel: 2990, Side: models.Buy, Price: 2991, Quantity: 0.1},
		{GridLevel: 3010, Side: models.Sell, Price: 3009.5, Quantity: 0.1},
	}
	require.NoError(t, r.WriteData(rows))

	data, err := os.ReadFile(filepath.Join(dir, "grid.dat"))
	require.NoError(t, err)
	assert.Equal(t, "2990 2991 0.1\n3010 3009.5 0.1\n", string(data))

	// 再次写入会覆盖旧内容
	require.NoError(t, r.WriteData(nil))
	data, err = os.ReadFile(filepath.Join(dir, "grid.dat"))
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestWriteDataBadPath(t *testing.T) {
	r := NewRenderer(filepath.Join(t.TempDir(), "missing", "grid.dat"), "out.png")
	assert.Error(t, r.WriteData(nil))
}

func TestRenderMissingTool(t *testing.T) {
	dir := t.TempDir()
	r := NewRenderer(filepath.Join(dir, "grid.dat"), filepath.Join(dir, "grid.png"))
	r.gnuplot = filepath.Join(dir, "no-such-gnuplot")

	err := r.Render(context.Background(), []models.SnapshotRow{{GridLevel: 1, Price: 1, Quantity: 1}})
	assert.Error(t, err)
	_, statErr := os.Stat(filepath.Join(dir, "grid.dat"))
	assert.NoError(t, statErr, "data file is written before the tool runs")
}
