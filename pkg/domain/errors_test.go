package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/aretw0/sketchy/pkg/domain"
	"github.com/stretchr/testify/assert"
)

func TestError_MatchesByKind(t *testing.T) {
	err := domain.RemoteFailure("provider timeout", nil)

	assert.ErrorIs(t, err, domain.ErrRemoteFailure)
	assert.NotErrorIs(t, err, domain.ErrTransportFailure)
	assert.Equal(t, "provider timeout", err.Error())

	wrapped := fmt.Errorf("regenerate: %w", err)
	assert.ErrorIs(t, wrapped, domain.ErrRemoteFailure)
}

func TestError_TransportKeepsCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := domain.TransportFailure(domain.StepAnalyze.FailureMessage(), cause)

	assert.Equal(t, "Analysis failed", err.Error())
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, domain.ErrTransportFailure)
}

func TestError_InFlight(t *testing.T) {
	err := domain.InFlight(domain.StepRegenerate)

	assert.ErrorIs(t, err, domain.ErrStepInFlight)
	assert.ErrorIs(t, err, domain.ErrPreconditionFailed)
	assert.Equal(t, "Regeneration already in progress", err.Error())
}
