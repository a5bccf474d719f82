package metrics

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestCountersAndTextfile(t *testing.T) {
	before := testutil.ToFloat64(ChartOutcomes.WithLabelValues("fallback:no_data"))
	ChartOutcomes.WithLabelValues("fallback:no_data").Inc()
	require.Equal(t, before+1, testutil.ToFloat64(ChartOutcomes.WithLabelValues("fallback:no_data")))

	LLMRequests.WithLabelValues("ollama", Outcome(errors.New("x"))).Inc()
	require.GreaterOrEqual(t, testutil.ToFloat64(LLMRequests.WithLabelValues("ollama", ResultError)), 1.0)

	path := filepath.Join(t.TempDir(), "querylens.prom")
	require.NoError(t, WriteTextfile(path))
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(b), "querylens_chart_outcomes_total"))
}

func TestOutcome(t *testing.T) {
	require.Equal(t, ResultOK, Outcome(nil))
	require.Equal(t, ResultError, Outcome(errors.New("boom")))
}
