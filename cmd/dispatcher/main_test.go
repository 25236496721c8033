package main

import (
	"bytes"
	"context"
	"os"
	"syscall"
	"testing"
	"time"

	"aci-dispatcher/internal/config"
	"aci-dispatcher/internal/naming"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVersionCmd(t *testing.T) {
	root := newRootCmd()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetArgs([]string{"version"})

	require.NoError(t, root.Execute())
	assert.Contains(t, out.String(), "aci-dispatcher version dev")
}

func TestSendCmd_RequiresPayload(t *testing.T) {
	root := newRootCmd()
	root.SetOut(&bytes.Buffer{})
	root.SetErr(&bytes.Buffer{})
	root.SetArgs([]string{"send"})

	assert.Error(t, root.Execute())
}

func TestNewNameGenerator(t *testing.T) {
	assert.IsType(t, naming.UUIDGenerator{}, newNameGenerator(config.NameStrategyUUID))
	assert.IsType(t, &naming.Generator{}, newNameGenerator(config.NameStrategyRandom))
}

func TestOpenProvisioner_LogBackend(t *testing.T) {
	p, err := openProvisioner(&config.Config{ProvisionerBackend: config.ProvisionerBackendLog}, newLogger("error"))
	require.NoError(t, err)
	assert.NotNil(t, p)
}

func TestSetupGracefulShutdown_CancelsOnSignal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := setupGracefulShutdown(ctx, cancel, newLogger("error"))
	defer stop()

	require.NoError(t, syscall.Kill(os.Getpid(), syscall.SIGTERM))

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context not cancelled after SIGTERM")
	}
}
