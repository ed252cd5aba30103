/*
Copyright © 2024 Acronis International GmbH.

Released under MIT license.
*/

package service

import (
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

type mockUnit struct {
	name           string
	runningCounter *int32
	stop           chan struct{}
	startErr       error
	stopErr        error

	startCalled               atomic.Int32
	stopCalled                atomic.Int32
	stopGracefullyCalled      atomic.Int32
	mustRegisterMetricsCalled atomic.Int32
	unregisterMetricsCalled   atomic.Int32
}

var _ MetricsRegisterer = (*mockUnit)(nil)

func newMockUnit(name string, runningCounter *int32) *mockUnit {
	return &mockUnit{name: name, runningCounter: runningCounter, stop: make(chan struct{}, 1)}
}

func (u *mockUnit) Start(fatalError chan<- error) {
	u.startCalled.Add(1)
	if u.startErr != nil {
		fatalError <- u.startErr
		return
	}
	atomic.AddInt32(u.runningCounter, 1)
	<-u.stop
	atomic.AddInt32(u.runningCounter, -1)
}

func (u *mockUnit) Stop(gracefully bool) error {
	u.stopCalled.Add(1)
	if gracefully {
		u.stopGracefullyCalled.Add(1)
	}
	select {
	case u.stop <- struct{}{}:
	default:
	}
	return u.stopErr
}

func (u *mockUnit) MustRegisterMetrics(_ prometheus.Registerer) {
	u.mustRegisterMetricsCalled.Add(1)
}

func (u *mockUnit) UnregisterMetrics(_ prometheus.Registerer) {
	u.unregisterMetricsCalled.Add(1)
}

func waitTrue(trueFunc func() bool, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	for !trueFunc() {
		if time.Now().After(deadline) {
			return errors.New("waiting true timed out")
		}
		time.Sleep(time.Millisecond * 10)
	}
	return nil
}

func makeMockUnits(n int, runningCounter *int32) ([]*mockUnit, *CompositeUnit) {
	mocks := make([]*mockUnit, n)
	units := make([]Unit, n)
	for i := range mocks {
		mocks[i] = newMockUnit(fmt.Sprintf("unit#%d", i), runningCounter)
		units[i] = mocks[i]
	}
	return mocks, NewCompositeUnit(units...)
}

func TestCompositeUnit_StartAndStop(t *testing.T) {
	t.Run("stop without errors", func(t *testing.T) {
		const unitsNum = 20
		var runningCounter int32
		_, compositeUnit := makeMockUnits(unitsNum, &runningCounter)

		startExit := make(chan struct{})
		fatalErr := make(chan error, 1)
		go func() {
			defer close(startExit)
			compositeUnit.Start(fatalErr)
		}()
		require.NoError(t, waitTrue(func() bool { return atomic.LoadInt32(&runningCounter) == unitsNum }, 3*time.Second))

		require.NoError(t, compositeUnit.Stop(true))
		select {
		case <-startExit:
		case <-time.After(3 * time.Second):
			require.Fail(t, "waiting finish of Start() is timed out")
		}
		require.Zero(t, atomic.LoadInt32(&runningCounter))
		require.Empty(t, fatalErr)
	})

	t.Run("stop with errors", func(t *testing.T) {
		const unitsNum = 10
		var runningCounter int32
		mocks, compositeUnit := makeMockUnits(unitsNum, &runningCounter)
		stopErr := errors.New("close storage")
		for i := 0; i < 4; i++ {
			mocks[i].stopErr = stopErr
		}

		go compositeUnit.Start(make(chan error, 1))
		require.NoError(t, waitTrue(func() bool { return atomic.LoadInt32(&runningCounter) == unitsNum }, 3*time.Second))

		err := compositeUnit.Stop(true)
		var cuErr *CompositeUnitError
		require.ErrorAs(t, err, &cuErr)
		require.Len(t, cuErr.UnitErrors, 4)
		require.ErrorIs(t, err, stopErr)
	})

	t.Run("fatal error of one unit stops others", func(t *testing.T) {
		var runningCounter int32
		mocks, compositeUnit := makeMockUnits(3, &runningCounter)
		startErr := errors.New("listen tcp: address already in use")
		mocks[1].startErr = startErr

		fatalErr := make(chan error, 1)
		compositeUnit.Start(fatalErr)

		err := <-fatalErr
		require.ErrorIs(t, err, startErr)
		for _, m := range mocks {
			require.EqualValues(t, 1, m.stopCalled.Load())
			require.Zero(t, m.stopGracefullyCalled.Load())
		}
	})
}

func TestCompositeUnit_Metrics(t *testing.T) {
	var runningCounter int32
	mocks, compositeUnit := makeMockUnits(2, &runningCounter)
	nested := NewCompositeUnit(compositeUnit, NewWorkerUnit(WorkerFunc(nil)))

	reg := prometheus.NewRegistry()
	nested.MustRegisterMetrics(reg)
	nested.UnregisterMetrics(reg)
	for _, m := range mocks {
		require.EqualValues(t, 1, m.mustRegisterMetricsCalled.Load())
		require.EqualValues(t, 1, m.unregisterMetricsCalled.Load())
	}
}
