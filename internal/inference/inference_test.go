package inference

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/namikmesic/sidekick-stream/internal/transport"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type timeoutError struct{}

func (timeoutError) Error() string   { return "i/o wait exceeded" }
func (timeoutError) Timeout() bool   { return true }
func (timeoutError) Temporary() bool { return true }

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Category
	}{
		{"deadline", context.DeadlineExceeded, CategoryTimeout},
		{"wrapped deadline", fmt.Errorf("call: %w", context.DeadlineExceeded), CategoryTimeout},
		{"net timeout", timeoutError{}, CategoryTimeout},
		{"status 408", &transport.StatusError{Code: http.StatusRequestTimeout}, CategoryTimeout},
		{"status 504", &transport.StatusError{Code: http.StatusGatewayTimeout}, CategoryTimeout},
		{"timeout text", errors.New("upstream timed out"), CategoryTimeout},
		{"status 429", &transport.StatusError{Code: http.StatusTooManyRequests}, CategoryRateLimit},
		{"wrapped 429", fmt.Errorf("complete: %w", &transport.StatusError{Code: 429}), CategoryRateLimit},
		{"rate limit text", errors.New("Rate limit reached for model"), CategoryRateLimit},
		{"timeout beats rate limit", &transport.StatusError{Code: 429, Body: "request timeout"}, CategoryTimeout},
		{"server error", &transport.StatusError{Code: 500, Body: "boom"}, CategoryOther},
		{"plain", errors.New("connection refused"), CategoryOther},
		{"nil", nil, CategoryOther},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Classify(tt.err))
		})
	}
}

func TestClassify_DoesNotModifyInput(t *testing.T) {
	err := &transport.StatusError{Code: 429, Body: "slow down"}
	Classify(err)
	assert.Equal(t, &transport.StatusError{Code: 429, Body: "slow down"}, err)
}

type fakeRecorder struct {
	successes int
	failures  []Category
	panicWith any
}

func (f *fakeRecorder) RecordSuccess(model string, d time.Duration) {
	f.successes++
	if f.panicWith != nil {
		panic(f.panicWith)
	}
}

func (f *fakeRecorder) RecordFailure(model string, c Category, d time.Duration, err error) {
	f.failures = append(f.failures, c)
	if f.panicWith != nil {
		panic(f.panicWith)
	}
}

func TestCall_ReturnsIdenticalError(t *testing.T) {
	for _, failure := range []error{
		&transport.StatusError{Code: 429},
		&transport.StatusError{Code: 504},
		errors.New("other"),
	} {
		for _, rec := range []Recorder{nil, &fakeRecorder{}, &fakeRecorder{panicWith: "metrics exploded"}} {
			_, err := Call(context.Background(), "m", rec, func(context.Context) (string, error) {
				return "", failure
			})
			assert.True(t, err == failure, "got %v want %v", err, failure)
		}
	}
}

func TestCall_RecordsCategory(t *testing.T) {
	rec := &fakeRecorder{}

	out, err := Call(context.Background(), "m", rec, func(context.Context) (int, error) { return 7, nil })
	require.NoError(t, err)
	assert.Equal(t, 7, out)

	_, err = Call(context.Background(), "m", rec, func(context.Context) (int, error) {
		return 0, &transport.StatusError{Code: 429}
	})
	require.Error(t, err)

	assert.Equal(t, 1, rec.successes)
	assert.Equal(t, []Category{CategoryRateLimit}, rec.failures)
}

func TestCall_RecorderPanicOnSuccess(t *testing.T) {
	rec := &fakeRecorder{panicWith: errors.New("registry gone")}
	out, err := Call(context.Background(), "m", rec, func(context.Context) (string, error) { return "ok", nil })
	require.NoError(t, err)
	assert.Equal(t, "ok", out)
}

func TestRecorders_IsolatesEachRecorder(t *testing.T) {
	bad := &fakeRecorder{panicWith: "bad"}
	good := &fakeRecorder{}
	rs := Recorders{bad, good}

	rs.RecordFailure("m", CategoryTimeout, time.Second, errors.New("x"))
	rs.RecordSuccess("m", time.Second)

	assert.Equal(t, []Category{CategoryTimeout}, good.failures)
	assert.Equal(t, 1, good.successes)
}

func TestPrometheusRecorder(t *testing.T) {
	const model = "prom-test-model"
	var rec PrometheusRecorder

	_, err := Call(context.Background(), model, rec, func(context.Context) (string, error) {
		return "", &transport.StatusError{Code: 429}
	})
	require.Error(t, err)
	_, err = Call(context.Background(), model, rec, func(context.Context) (string, error) { return "ok", nil })
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(inferenceFailures.WithLabelValues(model, string(CategoryRateLimit))))
	assert.Equal(t, 1.0, testutil.ToFloat64(inferenceRequests.WithLabelValues(model, "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(inferenceRequests.WithLabelValues(model, "success")))
}
