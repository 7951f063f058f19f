package cli

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithInterrupt_Signal(t *testing.T) {
	ctx, cancel := WithInterrupt(context.Background())
	defer cancel()

	self, err := os.FindProcess(os.Getpid())
	require.NoError(t, err)
	require.NoError(t, self.Signal(os.Interrupt))

	select {
	case <-ctx.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("context was not cancelled by the interrupt")
	}
	assert.Equal(t, os.Interrupt, InterruptSignal(ctx))
	assert.ErrorContains(t, context.Cause(ctx), "interrupted by interrupt")
}

func TestWithInterrupt_Cancel(t *testing.T) {
	ctx, cancel := WithInterrupt(context.Background())
	cancel()

	<-ctx.Done()
	assert.Nil(t, InterruptSignal(ctx))
	assert.ErrorIs(t, context.Cause(ctx), context.Canceled)
}
