package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AmazingeventParis/SEOproject-sub001/internal/config"
	"github.com/AmazingeventParis/SEOproject-sub001/internal/lifecycle"
	"github.com/AmazingeventParis/SEOproject-sub001/internal/router"
	"github.com/AmazingeventParis/SEOproject-sub001/internal/seo"
	"github.com/AmazingeventParis/SEOproject-sub001/internal/status"
	"github.com/AmazingeventParis/SEOproject-sub001/internal/workitem"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	dir := t.TempDir()
	cfg := config.DefaultConfig()
	cfg.Store.Path = filepath.Join(dir, "seopipe.db")
	cfg.Log.Path = filepath.Join(dir, "seopipe.log")
	return cfg
}

func TestNewApp(t *testing.T) {
	app, err := NewApp(testConfig(t))
	require.NoError(t, err)
	assert.NotNil(t, app.Items)
	assert.NotNil(t, app.Executor)
	assert.NotNil(t, app.Costs)
	require.NoError(t, app.Close())
	assert.NoError(t, app.Close(), "closing twice is a no-op")
}

func TestNewApp_Errors(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(cfg *config.Config)
		wantErr error
	}{
		{
			name:    "invalid seo rule",
			mutate:  func(cfg *config.Config) { cfg.SEO.Rules = []string{"word_count >="} },
			wantErr: seo.ErrInvalidRule,
		},
		{
			name:   "refresh target after published",
			mutate: func(cfg *config.Config) { cfg.Pipeline.RefreshTarget = "refresh_needed" },
		},
		{
			name:   "missing manifest",
			mutate: func(cfg *config.Config) { cfg.Pipeline.ManifestPath = filepath.Join(t.TempDir(), "nope.csv") },
		},
		{
			name:   "unsupported provider",
			mutate: func(cfg *config.Config) { cfg.AI.Provider = "carrier-pigeon" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(cfg)

			_, err := NewApp(cfg)
			require.Error(t, err)
			if tt.wantErr != nil {
				assert.True(t, errors.Is(err, tt.wantErr))
			}
		})
	}
}

func TestBuildRouter_Manifest(t *testing.T) {
	path := writeFile(t, "pipeline.csv", `step,capability,trigger_status,next_status
analyze,ai,draft,analyzing
plan,ai,analyzing,planning
write-block,ai,planning,writing
write-block,ai,writing,writing
media,ai,writing,media
seo-check,ai,media,reviewing
seo-check,ai,seo_check,reviewing
publish,publishing,reviewing,published
refresh,ai,published,analyzing
`)

	r, err := buildRouter(config.PipelineConfig{ManifestPath: path, RefreshTarget: "planning"})
	require.NoError(t, err)

	// The manifest drops analyze from analyzing.
	assert.ErrorIs(t, r.Allows(router.StepAnalyze, status.StatusAnalyzing), router.ErrIllegalTransition)
	target, err := r.Target(router.StepRefresh)
	require.NoError(t, err)
	assert.Equal(t, status.StatusPlanning, target)
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: nil, want: ExitOK},
		{err: workitem.ErrNotFound, want: ExitNotFound},
		{err: fmt.Errorf("get: %w", workitem.ErrNotFound), want: ExitNotFound},
		{err: lifecycle.ErrBlockNotFound, want: ExitNotFound},
		{err: router.ErrIllegalTransition, want: ExitIllegalTransition},
		{err: workitem.ErrConflict, want: ExitIllegalTransition},
		{err: &lifecycle.StepFailedError{Step: router.StepPlan, Message: "bad"}, want: ExitStepFailed},
		{err: fmt.Errorf("%w: word_count >= 800", lifecycle.ErrSEORulesFailed), want: ExitStepFailed},
		{err: lifecycle.ErrNoPendingBlocks, want: ExitStepFailed},
		{err: lifecycle.ErrNotImageBlock, want: ExitStepFailed},
		{err: errors.New("disk full"), want: ExitFailure},
	}

	for _, tt := range tests {
		name := "nil"
		if tt.err != nil {
			name = tt.err.Error()
		}
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestIsExitError(t *testing.T) {
	code, ok := IsExitError(NewExitError(ExitNotFound))
	assert.True(t, ok)
	assert.Equal(t, ExitNotFound, code)

	code, ok = IsExitError(fmt.Errorf("wrapped: %w", NewExitError(ExitStepFailed)))
	assert.True(t, ok)
	assert.Equal(t, ExitStepFailed, code)

	_, ok = IsExitError(errors.New("plain"))
	assert.False(t, ok)
	_, ok = IsExitError(nil)
	assert.False(t, ok)
}

func TestRun_UnknownCommand(t *testing.T) {
	app := newTestApp(t)

	res := app.execute("frobnicate")
	assert.Equal(t, ExitFailure, res.ExitCode)
	assert.Contains(t, app.out.String(), "Error:")
}
