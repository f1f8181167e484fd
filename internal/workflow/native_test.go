package workflow

import (
	"bytes"
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/javanstorm/toolchainqa/internal/build"
	"github.com/javanstorm/toolchainqa/internal/logging"
	"github.com/javanstorm/toolchainqa/internal/testutil"
)

func newNativeSuite(f *testutil.Fixture, report io.Writer) *NativeSuite {
	return &NativeSuite{
		Exec:    f.Exec,
		Stepper: Stepper{Now: f.Clock.Now},
		Report:  report,
		Log:     logging.Discard(),
	}
}

func TestNativeSuiteSuccess(t *testing.T) {
	f := testutil.NewFixture()
	f.Exec.Durations["llvm-native -c check_llvm"] = 10 * time.Second
	f.Exec.Durations["clang-native -c check_clang"] = 20 * time.Second
	f.Exec.Durations["lld-native -c check_lld"] = 30 * time.Second

	var report bytes.Buffer
	outcome, err := newNativeSuite(f, &report).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "native", outcome.Name)
	assert.Equal(t, 60*time.Second, outcome.Total)
	require.Len(t, outcome.Steps, 3)
	for i, want := range []int64{10, 20, 30} {
		assert.True(t, outcome.Steps[i].Succeeded)
		assert.Equal(t, want, outcome.Steps[i].Seconds())
	}
	assert.Equal(t, DefaultNativeChecks, f.Exec.Calls())

	assert.Contains(t, report.String(), "llvm-native -c check_llvm")
	assert.Contains(t, report.String(), "60 s")
}

func TestNativeSuiteStopsAtFirstFailure(t *testing.T) {
	for i, failing := range DefaultNativeChecks {
		t.Run(failing.Target, func(t *testing.T) {
			f := testutil.NewFixture()
			f.Exec.Failures[failing.String()] = errors.New("check failed")

			var report bytes.Buffer
			outcome, err := newNativeSuite(f, &report).Run(context.Background())
			require.Error(t, err)
			assert.Equal(t, Outcome{}, outcome)
			assert.Equal(t, KindBuild, KindOf(err))
			assert.Equal(t, failing.String(), StepOf(err))
			assert.Equal(t, DefaultNativeChecks[:i+1], f.Exec.Calls(), "no step after the failing one runs")
			assert.Empty(t, report.String(), "no summary on failure")
		})
	}
}

func TestNativeSuiteCustomChecks(t *testing.T) {
	f := testutil.NewFixture()
	checks := []build.TargetSpec{{Target: "compiler-rt-native", Task: "check_compiler_rt"}}

	suite := newNativeSuite(f, nil)
	suite.Checks = checks
	outcome, err := suite.Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, outcome.Steps, 1)
	assert.Equal(t, checks, f.Exec.Calls())
}
