package main

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kiteco/backdoor-sweep/internal/cmdline"
)

const smallConfig = `
lengths: [1, 5]
angle_count: 2
total: 4
test_size: 200
estimator:
  bandwidth: normal_reference
`

func dispatch(t *testing.T, args ...string) {
	var out bytes.Buffer
	err := cmdline.Dispatch(&out, args, sweepCmd, summarizeCmd, plotCmd, plotDataCmd, statusCmd)
	require.NoError(t, err, out.String())
}

func TestCommands(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "experiment.yaml")
	require.NoError(t, ioutil.WriteFile(cfg, []byte(smallConfig), 0644))
	results := filepath.Join(dir, "results")
	ledger := filepath.Join(dir, "ledger")

	dispatch(t, "sweep", "--config", cfg, "--out", results, "--workers", "2", "--ledger", ledger, "--ext", ".json.gz")

	files, err := filepath.Glob(filepath.Join(results, "*.json.gz"))
	require.NoError(t, err)
	assert.Len(t, files, 4)
	assert.FileExists(t, filepath.Join(results, "length_5_angle_180.json.gz"))

	csv := filepath.Join(dir, "summary.csv")
	dispatch(t, "summarize", results, "--ext", ".json.gz", "--csv", csv)
	buf, err := ioutil.ReadFile(csv)
	require.NoError(t, err)
	assert.Equal(t, 5, bytes.Count(buf, []byte("\n")))

	png := filepath.Join(dir, "rates.png")
	dispatch(t, "plot", results, "--ext", ".json.gz", "--out", png)
	assert.FileExists(t, png)

	data := filepath.Join(dir, "data.png")
	dispatch(t, "plot-data", "--config", cfg, "--length", "5", "--angle", "180", "--out", data)
	assert.FileExists(t, data)

	dispatch(t, "status", ledger)
	dispatch(t, "status", ledger, "--list")
}

func TestPlotDataRejectsUnknownCell(t *testing.T) {
	args := &plotDataArgs{Length: 2, AngleDegrees: 90, Out: filepath.Join(t.TempDir(), "x.png")}
	assert.Error(t, args.Handle())
	_, err := os.Stat(args.Out)
	assert.True(t, os.IsNotExist(err))
}

func TestSweepArgsValidate(t *testing.T) {
	assert.Error(t, (&sweepArgs{Workers: 0}).Validate())
	assert.NoError(t, (&sweepArgs{Workers: 3}).Validate())
}
