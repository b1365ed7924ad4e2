package cmd

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	coreconfig "github.com/m3rciful/appealbot/core/config"
	coretelegram "github.com/m3rciful/appealbot/core/telegram"
)

type testConfig struct{ core coreconfig.Config }

func (c *testConfig) CoreConfig() *coreconfig.Config { return &c.core }

type testApp struct {
	services []Service
	closed   bool
}

func (a *testApp) TelegramRunOptions() (coretelegram.RunOptions, error) {
	return coretelegram.RunOptions{}, nil
}

func (a *testApp) Services() []Service { return a.services }

func (a *testApp) Close() error {
	a.closed = true
	return nil
}

func runWith(t *testing.T, app *testApp, bot func(ctx context.Context, opts coretelegram.RunOptions) error) error {
	t.Helper()
	t.Setenv("CONFIG_PATH", "")
	return Run(Options{
		DefaultConfigPath: "config.yml",
		LoadConfig: func(path string) (ConfigCarrier, error) {
			require.Equal(t, "config.yml", path)
			return &testConfig{}, nil
		},
		Bootstrap:      func(ConfigCarrier) (TelegramApp, error) { return app, nil },
		ShutdownLogger: func() error { return nil },
		RunTelegram:    bot,
	})
}

func TestRunStopsBotWhenServiceFails(t *testing.T) {
	boom := errors.New("listen: address in use")
	app := &testApp{services: []Service{{
		Name: "relay",
		Run:  func(context.Context) error { return boom },
	}}}

	var botStopped bool
	err := runWith(t, app, func(ctx context.Context, opts coretelegram.RunOptions) error {
		require.NoError(t, opts.OnStart(ctx, coretelegram.Runtime{}))
		<-ctx.Done()
		botStopped = true
		return nil
	})
	require.ErrorIs(t, err, boom)
	require.ErrorContains(t, err, "relay")
	require.True(t, botStopped)
	require.True(t, app.closed)
}

func TestRunStopsServicesWhenBotEnds(t *testing.T) {
	var serviceStopped bool
	app := &testApp{services: []Service{{
		Name: "bridge",
		Run: func(ctx context.Context) error {
			<-ctx.Done()
			serviceStopped = true
			return nil
		},
	}}}

	err := runWith(t, app, func(context.Context, coretelegram.RunOptions) error { return nil })
	require.NoError(t, err)
	require.True(t, serviceStopped)
}

func TestRunRequiresHooks(t *testing.T) {
	require.Error(t, Run(Options{}))
	require.Error(t, Run(Options{LoadConfig: func(string) (ConfigCarrier, error) { return &testConfig{}, nil }}))
}
