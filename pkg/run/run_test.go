package run

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tonglil/buflogr"
	"gopkg.in/yaml.v3"

	"github.com/encops/updatectl/pkg/downtime"
	"github.com/encops/updatectl/pkg/enc"
	"github.com/encops/updatectl/pkg/policy"
	"github.com/encops/updatectl/pkg/store"
	"github.com/encops/updatectl/pkg/types"
)

var today = time.Date(2026, time.June, 15, 0, 0, 0, 0, time.UTC)

func seedFleet(t *testing.T, policies map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for host, p := range policies {
		doc := map[string]any{
			"classes":     map[string]any{"profile::base": map[string]any{}},
			"environment": "production",
			"properties":  map[string]any{"datacenter": "zrh1", "updates": p},
		}
		raw, err := yaml.Marshal(doc)
		require.NoError(t, err)
		require.NoError(t, os.WriteFile(filepath.Join(dir, host+".yaml"), raw, 0o644))
	}
	return dir
}

func readPolicy(t *testing.T, dir, host string) string {
	t.Helper()
	raw, err := os.ReadFile(filepath.Join(dir, host+".yaml"))
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, yaml.Unmarshal(raw, &doc))
	props, ok := doc["properties"].(map[string]any)
	require.True(t, ok)
	value, _ := props["updates"].(string)
	return value
}

func newRunner(dir string, log logr.Logger) *Runner {
	return &Runner{Dir: enc.NewDir(dir, log), Log: log}
}

func TestOffDisablesWholeFleet(t *testing.T) {
	dir := seedFleet(t, map[string]string{
		"web01": "security",
		"web02": "none",
		"db01":  "security_off",
	})
	r := newRunner(dir, logr.Discard())

	result, err := r.Execute(Context{Mode: types.ModeOff, Today: today})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Changed()) // web02 was already none
	for _, host := range []string{"web01", "web02", "db01"} {
		assert.Equal(t, "none", readPolicy(t, dir, host))
	}
	assert.Equal(t, 3, result.Histogram.Buckets()[0].Count)
}

func TestOnEnablesSecurity(t *testing.T) {
	dir := seedFleet(t, map[string]string{"web01": "none", "db01": "security_off"})
	r := newRunner(dir, logr.Discard())

	result, err := r.Execute(Context{Mode: types.ModeOn, Today: today})
	require.NoError(t, err)

	assert.False(t, result.Refused)
	assert.Equal(t, "security", readPolicy(t, dir, "web01"))
	assert.Equal(t, "security", readPolicy(t, dir, "db01"))
}

func TestUpdateRoundTripsThroughDowntime(t *testing.T) {
	dir := seedFleet(t, map[string]string{"web01": "security"})
	r := newRunner(dir, logr.Discard())

	// downtime active: security is suspended
	result, err := r.Execute(Context{
		Mode:      types.ModeUpdate,
		Today:     today,
		Downtimes: []string{"10.06.-20.06."},
	})
	require.NoError(t, err)
	require.NotNil(t, result.Active)
	assert.Equal(t, "security_off", readPolicy(t, dir, "web01"))

	// downtime over: the suspension is lifted again
	result, err = r.Execute(Context{Mode: types.ModeUpdate, Today: today})
	require.NoError(t, err)
	assert.Nil(t, result.Active)
	assert.Equal(t, "security", readPolicy(t, dir, "web01"))
}

func TestOnDuringDowntimeIsRefused(t *testing.T) {
	dir := seedFleet(t, map[string]string{"web01": "security_off", "db01": "none"})
	var buf bytes.Buffer
	r := newRunner(dir, buflogr.NewWithBuffer(&buf))

	result, err := r.Execute(Context{
		Mode:      types.ModeOn,
		Today:     today,
		Downtimes: []string{"01.04.2026-03.04.2026", "10.06.-20.06."},
	})

	require.ErrorIs(t, err, policy.ErrRefused)
	require.NotNil(t, result)
	assert.True(t, result.Refused)
	assert.Equal(t, "10.06.-20.06.", result.Active.Raw)

	// nothing was written, and the histogram reflects the untouched state
	assert.Equal(t, "security_off", readPolicy(t, dir, "web01"))
	assert.Equal(t, "none", readPolicy(t, dir, "db01"))
	assert.Zero(t, result.Changed())
	buckets := result.Histogram.Buckets()
	assert.Equal(t, 1, buckets[0].Count) // none
	assert.Equal(t, 1, buckets[2].Count) // security_off
	assert.Contains(t, buf.String(), "cannot be enabled in a downtime")
}

func TestStatusNeverMutates(t *testing.T) {
	dir := seedFleet(t, map[string]string{"web01": "security_off"})
	r := newRunner(dir, logr.Discard())

	result, err := r.Execute(Context{
		Mode:      types.ModeStatus,
		Today:     today,
		Downtimes: []string{"10.06.-20.06."},
	})
	require.NoError(t, err)

	assert.Zero(t, result.Changed())
	assert.Equal(t, "security_off", readPolicy(t, dir, "web01"))
	assert.Equal(t, 1, result.Histogram.Buckets()[2].Count)
}

func TestDryRunComputesWithoutWriting(t *testing.T) {
	dir := seedFleet(t, map[string]string{"web01": "security"})
	r := newRunner(dir, logr.Discard())

	result, err := r.Execute(Context{Mode: types.ModeOff, Today: today, DryRun: true})
	require.NoError(t, err)

	assert.Equal(t, 1, result.Changed())
	assert.Equal(t, "security", readPolicy(t, dir, "web01"))
	assert.Equal(t, 1, result.Histogram.Buckets()[0].Count)
}

func TestAbsentAttributeIsLeftAlone(t *testing.T) {
	dir := t.TempDir()
	raw := []byte("classes:\n  profile::base: {}\nproperties:\n  datacenter: gva2\n")
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bare01.yaml"), raw, 0o644))
	r := newRunner(dir, logr.Discard())

	result, err := r.Execute(Context{Mode: types.ModeOn, Today: today})
	require.NoError(t, err)

	assert.Zero(t, result.Changed())
	assert.Equal(t, "", readPolicy(t, dir, "bare01"))
	assert.Equal(t, []string{"bare01"}, result.Histogram.Unmanaged)
	for _, b := range result.Histogram.Buckets() {
		assert.Zero(t, b.Count)
	}
}

func TestInvalidDowntimeConfigurationAborts(t *testing.T) {
	dir := seedFleet(t, map[string]string{"web01": "security"})
	r := newRunner(dir, logr.Discard())

	result, err := r.Execute(Context{
		Mode:      types.ModeOff,
		Today:     today,
		Downtimes: []string{"10.06.2026-20.06."},
	})

	assert.ErrorIs(t, err, downtime.ErrInconsistentYears)
	assert.Nil(t, result)
	assert.Equal(t, "security", readPolicy(t, dir, "web01"))
}

func TestRunIsAudited(t *testing.T) {
	dir := seedFleet(t, map[string]string{"web01": "security", "db01": "none"})
	history, err := store.NewHistoryStore(":memory:")
	require.NoError(t, err)
	defer history.CloseDB()
	require.NoError(t, history.InitializeDB())

	r := newRunner(dir, logr.Discard())
	r.History = history

	_, err = r.Execute(Context{Mode: types.ModeOff, Today: today})
	require.NoError(t, err)

	runs, err := history.ListRuns(today.Add(-time.Hour), today.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, types.ModeOff, runs[0].Mode)
	assert.Equal(t, 1, runs[0].Changed)
	assert.Equal(t, 2, runs[0].Total)
	assert.False(t, runs[0].Refused)
	assert.NotEmpty(t, runs[0].ID)
}

func TestHistoryFailureDoesNotFailRun(t *testing.T) {
	dir := seedFleet(t, map[string]string{"web01": "security"})
	// store without an initialized schema: inserts fail
	history, err := store.NewHistoryStore(":memory:")
	require.NoError(t, err)
	defer history.CloseDB()

	var buf bytes.Buffer
	r := newRunner(dir, buflogr.NewWithBuffer(&buf))
	r.History = history

	_, err = r.Execute(Context{Mode: types.ModeOff, Today: today})
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "unable to record run history")
	assert.Equal(t, "none", readPolicy(t, dir, "web01"))
}
