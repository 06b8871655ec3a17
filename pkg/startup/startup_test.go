package startup

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Gobusters/ectologger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func silentLogger() ectologger.Logger {
	return ectologger.NewEctoLogger(func(_ ectologger.EctoLogMessage) {})
}

type recorder struct {
	events []string
}

func (r *recorder) dep(name string, needs ...string) Func {
	return Func{
		Name:      name,
		Needs:     needs,
		StartFunc: func(context.Context) error { r.events = append(r.events, "start "+name); return nil },
		StopFunc:  func(context.Context) error { r.events = append(r.events, "stop "+name); return nil },
	}
}

func TestStartup_StartsInDependencyOrderAndStopsInReverse(t *testing.T) {
	r := &recorder{}
	s := NewStartup(silentLogger(), 1)
	s.AddDependency(r.dep("http", "processor"))
	s.AddDependency(r.dep("processor", "database", "redis"))
	s.AddDependency(r.dep("database"))
	s.AddDependency(r.dep("redis"))

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, []string{"start database", "start redis", "start processor", "start http"}, r.events)
	assert.Equal(t, StartupStatusStarted, s.Status("http"))

	r.events = nil
	require.NoError(t, s.Stop(context.Background()))
	assert.Equal(t, []string{"stop http", "stop processor", "stop redis", "stop database"}, r.events)
	assert.Equal(t, StartupStatusStopped, s.Status("database"))
}

func TestStartup_RetriesFailedDependency(t *testing.T) {
	r := &recorder{}
	attempts := 0
	s := NewStartup(silentLogger(), 3)
	s.backoffUnit = time.Millisecond
	s.AddDependency(r.dep("database"))
	s.AddDependency(Func{
		Name:  "kafka",
		Needs: []string{"database"},
		StartFunc: func(context.Context) error {
			attempts++
			if attempts < 3 {
				return errors.New("broker not ready")
			}
			return nil
		},
	})

	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, 3, attempts)
	assert.Equal(t, []string{"start database"}, r.events)
}

func TestStartup_GivesUp(t *testing.T) {
	s := NewStartup(silentLogger(), 2)
	s.backoffUnit = time.Millisecond
	s.AddDependency(Func{Name: "database", StartFunc: func(context.Context) error { return errors.New("refused") }})

	err := s.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "after 2 attempts")
	assert.Equal(t, StartupStatusFailed, s.Status("database"))
}

func TestStartup_UnknownAndCyclicDependencies(t *testing.T) {
	s := NewStartup(silentLogger(), 1)
	s.AddDependency(Func{Name: "a", Needs: []string{"missing"}})
	assert.ErrorContains(t, s.Start(context.Background()), "unknown dependency 'missing'")

	s = NewStartup(silentLogger(), 1)
	s.AddDependency(Func{Name: "a", Needs: []string{"b"}})
	s.AddDependency(Func{Name: "b", Needs: []string{"a"}})
	assert.ErrorContains(t, s.Start(context.Background()), "dependency cycle")
}

func TestStartup_StopContinuesAfterError(t *testing.T) {
	r := &recorder{}
	s := NewStartup(silentLogger(), 1)
	s.AddDependency(r.dep("database"))
	s.AddDependency(Func{Name: "kafka", Needs: []string{"database"}, StopFunc: func(context.Context) error { return errors.New("close failed") }})

	require.NoError(t, s.Start(context.Background()))
	r.events = nil

	assert.Error(t, s.Stop(context.Background()))
	assert.Equal(t, []string{"stop database"}, r.events)
}
