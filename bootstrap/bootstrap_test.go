// Package bootstrap provides tests for the bootstrap module
package bootstrap

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/najoast/litebus/actorsys"
	"github.com/najoast/litebus/aid"
	"github.com/najoast/litebus/config"
	"github.com/najoast/litebus/timer"
)

func TestContainer(t *testing.T) {
	container := NewContainer()

	err := container.Register("test-service", func(c Container) (interface{}, error) {
		return "test-instance", nil
	})
	require.NoError(t, err)

	instance, err := container.Resolve("test-service")
	require.NoError(t, err)
	require.Equal(t, "test-instance", instance)

	require.True(t, container.Has("test-service"))
	require.Equal(t, []string{"test-service"}, container.Names())
}

func TestLifecycleManager(t *testing.T) {
	container := NewContainer()
	lm := NewLifecycleManager(container)

	testService := &TestService{name: "test"}
	require.NoError(t, lm.Register("test", testService))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, lm.Start(ctx))
	require.True(t, testService.started)

	health, err := lm.Health(ctx)
	require.NoError(t, err)
	require.Equal(t, HealthHealthy, health["test"].State)

	require.NoError(t, lm.Stop(ctx))
	require.True(t, testService.stopped)
}

func TestApplication(t *testing.T) {
	app := NewApplication(nil)

	cfg := config.DefaultConfig()
	cfg.Network.HTTPBindURL = "tcp://127.0.0.1:0"

	require.NoError(t, app.Configure(cfg))

	require.NotNil(t, app.Container())
	require.NotNil(t, app.LifecycleManager())

	services := app.LifecycleManager().Services()
	require.ElementsMatch(t, []string{"actor-system", "timer-service", "http-server", "wire-server"}, services)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, app.LifecycleManager().Start(ctx))
	require.NoError(t, app.LifecycleManager().Stop(ctx))
}

// TestConfigureSpawnsTimerAfterActor guards against timer.Service.Schedule
// silently dropping every delivery: Configure must spawn timer.AfterTarget
// on the actor system before the timer service ever schedules anything
// against it.
func TestConfigureSpawnsTimerAfterActor(t *testing.T) {
	app := NewApplication(nil).(*DefaultApplication)

	cfg := config.DefaultConfig()
	require.NoError(t, app.Configure(cfg))

	reached := make(chan struct{})
	status := app.actorSystem.Send(&aid.Message{
		To:   timer.AfterTarget,
		Kind: aid.KindAsyncThunk,
		Name: "__probe__",
		Thunk: func(interface{}) {
			close(reached)
		},
	})
	require.Equal(t, actorsys.StatusOK, status)

	select {
	case <-reached:
	case <-time.After(time.Second):
		t.Fatal("timer.AfterTarget actor was never spawned")
	}
}

func TestApplicationBuilder(t *testing.T) {
	builder := NewApplicationBuilder(nil)

	app, err := builder.
		WithThreadCount(2).
		WithHTTPBindURL("tcp://127.0.0.1:0").
		WithServiceFactory("test-factory", func(c Container) (interface{}, error) {
			return "factory-instance", nil
		}).
		Build()
	require.NoError(t, err)

	require.True(t, app.Container().Has("test-factory"))
}

func TestScopedContainer(t *testing.T) {
	container := NewScopedContainer()

	err := container.RegisterScoped("singleton", func(c Container) (interface{}, error) {
		return &TestService{name: "singleton"}, nil
	}, ScopeSingleton)
	require.NoError(t, err)

	instance1, err := container.Resolve("singleton")
	require.NoError(t, err)
	instance2, err := container.Resolve("singleton")
	require.NoError(t, err)
	require.Same(t, instance1, instance2)

	err = container.RegisterScoped("transient", func(c Container) (interface{}, error) {
		return &TestService{name: "transient"}, nil
	}, ScopeTransient)
	require.NoError(t, err)

	instance3, err := container.Resolve("transient")
	require.NoError(t, err)
	instance4, err := container.Resolve("transient")
	require.NoError(t, err)
	require.NotSame(t, instance3, instance4)
}

// TestService is a simple Service implementation for testing the
// lifecycle manager and container in isolation from the real litebus
// subsystems.
type TestService struct {
	name    string
	started bool
	stopped bool
}

func (s *TestService) Name() string { return s.name }

func (s *TestService) Start(ctx context.Context) error {
	s.started = true
	return nil
}

func (s *TestService) Stop(ctx context.Context) error {
	s.stopped = true
	return nil
}

func (s *TestService) Health(ctx context.Context) (HealthStatus, error) {
	if s.started && !s.stopped {
		return HealthStatus{State: HealthHealthy, Message: "service is running"}, nil
	}
	return HealthStatus{State: HealthUnhealthy, Message: "service is not running"}, nil
}
