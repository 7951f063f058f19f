package domain_test

import (
	"errors"
	"fmt"
	"math/rand"
	"testing"

	"github.com/aretw0/sketchy/pkg/domain"
	"github.com/aretw0/sketchy/pkg/domain/domaintest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var refs = domaintest.Refs

// throughRegeneration drives a state up to a committed regeneration "r1".
func throughRegeneration(t *testing.T) domain.State {
	t.Helper()
	s, err := domain.NewState().RecordUpload(refs("a", "b"))
	require.NoError(t, err)
	s, err = s.SelectImage("b")
	require.NoError(t, err)
	s, err = s.RecordAnalysis(domain.Analysis{ID: "an1", PromptDescription: "a cat"})
	require.NoError(t, err)
	s, err = s.RecordRegeneration(domain.Regeneration{ID: "r1", ImageData: []byte("png"), Prompt: "a cat"})
	require.NoError(t, err)
	return s
}

func TestRecordUpload(t *testing.T) {
	t.Run("Empty batch", func(t *testing.T) {
		_, err := domain.NewState().RecordUpload(nil)
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("Duplicate ids", func(t *testing.T) {
		_, err := domain.NewState().RecordUpload(refs("a", "a"))
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("Replaces downstream pipeline", func(t *testing.T) {
		s := throughRegeneration(t)
		s, err := s.RecordImprovement(domain.ChainLink{ID: "i1"})
		require.NoError(t, err)

		next, err := s.RecordUpload(refs("c"))
		require.NoError(t, err)

		assert.Len(t, next.Session().Images, 1)
		assert.Empty(t, next.Session().SelectedID)
		_, ok := next.Analysis()
		assert.False(t, ok)
		_, ok = next.Regeneration()
		assert.False(t, ok)
		_, ok = next.Chain()
		assert.False(t, ok)
		assert.Empty(t, next.Prompt())
	})

	t.Run("Does not alias the caller slice", func(t *testing.T) {
		images := refs("a")
		s, err := domain.NewState().RecordUpload(images)
		require.NoError(t, err)
		images[0].ID = "mutated"
		assert.Equal(t, "a", s.Session().Images[0].ID)
	})
}

func TestSelectImage(t *testing.T) {
	s, err := domain.NewState().RecordUpload(refs("a", "b"))
	require.NoError(t, err)

	_, err = s.SelectImage("zzz")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	s = throughRegeneration(t)
	reselected, err := s.SelectImage("a")
	require.NoError(t, err)
	assert.Equal(t, "a", reselected.Session().SelectedID)

	// Selecting keeps downstream results.
	_, ok := reselected.Analysis()
	assert.True(t, ok)
	tip, err := reselected.CurrentTip()
	require.NoError(t, err)
	assert.Equal(t, "r1", tip)

	// Original value is untouched.
	assert.Equal(t, "b", s.Session().SelectedID)
}

func TestRecordAnalysis(t *testing.T) {
	s, err := domain.NewState().RecordUpload(refs("a"))
	require.NoError(t, err)

	_, err = s.RecordAnalysis(domain.Analysis{ID: "an1"})
	assert.ErrorIs(t, err, domain.ErrPreconditionFailed)

	s = throughRegeneration(t)
	s, err = s.EditPrompt("a dog")
	require.NoError(t, err)

	next, err := s.RecordAnalysis(domain.Analysis{ID: "an2", PromptDescription: "a bird"})
	require.NoError(t, err)
	a, ok := next.Analysis()
	require.True(t, ok)
	assert.Equal(t, "an2", a.ID)
	assert.Equal(t, "a bird", next.Prompt(), "override is cleared by a new analysis")
	_, ok = next.Regeneration()
	assert.False(t, ok)
	_, ok = next.Chain()
	assert.False(t, ok)
}

func TestEditPrompt(t *testing.T) {
	_, err := domain.NewState().EditPrompt("x")
	assert.ErrorIs(t, err, domain.ErrPreconditionFailed)

	s := throughRegeneration(t)
	for _, blank := range []string{"", "   ", "\t\n"} {
		_, err = s.EditPrompt(blank)
		assert.ErrorIs(t, err, domain.ErrInvalidInput, "%q", blank)
	}

	edited, err := s.EditPrompt("a cat, blue background")
	require.NoError(t, err)
	assert.Equal(t, "a cat, blue background", edited.Prompt())

	a, _ := edited.Analysis()
	assert.Equal(t, "a cat", a.PromptDescription, "analysis stays immutable")
}

func TestRecordRegeneration(t *testing.T) {
	s, err := domain.NewState().RecordUpload(refs("a"))
	require.NoError(t, err)
	s, err = s.SelectImage("a")
	require.NoError(t, err)

	_, err = s.RecordRegeneration(domain.Regeneration{ID: "r1"})
	assert.ErrorIs(t, err, domain.ErrPreconditionFailed)

	s = throughRegeneration(t)
	s, err = s.RecordImprovement(domain.ChainLink{ID: "i1"})
	require.NoError(t, err)

	next, err := s.RecordRegeneration(domain.Regeneration{ID: "r2"})
	require.NoError(t, err)
	chain, ok := next.Chain()
	require.True(t, ok)
	assert.Equal(t, "r2", chain.OriginID)
	assert.Empty(t, chain.Links)
}

func TestRecordImprovement(t *testing.T) {
	s, err := domain.NewState().RecordUpload(refs("a"))
	require.NoError(t, err)
	_, err = s.RecordImprovement(domain.ChainLink{ID: "i1"})
	assert.ErrorIs(t, err, domain.ErrPreconditionFailed)

	s = throughRegeneration(t)
	first, err := s.RecordImprovement(domain.ChainLink{ID: "i1", ImageData: []byte("one")})
	require.NoError(t, err)
	second, err := first.RecordImprovement(domain.ChainLink{ID: "i2", ImageData: []byte("two")})
	require.NoError(t, err)

	chain, _ := second.Chain()
	assert.Equal(t, []string{"i1", "i2"}, []string{chain.Links[0].ID, chain.Links[1].ID})

	// Earlier values do not observe later appends.
	firstChain, _ := first.Chain()
	assert.Len(t, firstChain.Links, 1)

	img, ok := second.LatestImage()
	require.True(t, ok)
	assert.Equal(t, []byte("two"), img)
}

func TestCurrentTip(t *testing.T) {
	_, err := domain.NewState().CurrentTip()
	assert.ErrorIs(t, err, domain.ErrPreconditionFailed)

	s := throughRegeneration(t)
	tip, err := s.CurrentTip()
	require.NoError(t, err)
	assert.Equal(t, "r1", tip)

	for i := 1; i <= 5; i++ {
		id := fmt.Sprintf("i%d", i)
		s, err = s.RecordImprovement(domain.ChainLink{ID: id})
		require.NoError(t, err)
		tip, err = s.CurrentTip()
		require.NoError(t, err)
		assert.Equal(t, id, tip)
	}
}

func TestRestore(t *testing.T) {
	t.Run("Round trip", func(t *testing.T) {
		s := throughRegeneration(t)
		s, err := s.RecordImprovement(domain.ChainLink{ID: "i1"})
		require.NoError(t, err)

		restored, err := domain.Restore(s.Snapshot())
		require.NoError(t, err)
		assert.Equal(t, s.Snapshot(), restored.Snapshot())
	})

	t.Run("Rejects regeneration without analysis", func(t *testing.T) {
		_, err := domain.Restore(domain.Snapshot{Regeneration: &domain.Regeneration{ID: "r1"}})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("Rejects mismatched chain origin", func(t *testing.T) {
		_, err := domain.Restore(domain.Snapshot{
			Analysis:     &domain.Analysis{ID: "an1"},
			Regeneration: &domain.Regeneration{ID: "r1"},
			Chain:        &domain.ImprovementChain{OriginID: "r0"},
		})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("Rejects dangling selection", func(t *testing.T) {
		_, err := domain.Restore(domain.Snapshot{Session: domain.Session{SelectedID: "x"}})
		assert.ErrorIs(t, err, domain.ErrInvalidInput)
	})

	t.Run("Regeneration without chain gets an empty one", func(t *testing.T) {
		s, err := domain.Restore(domain.Snapshot{
			Analysis:     &domain.Analysis{ID: "an1"},
			Regeneration: &domain.Regeneration{ID: "r1"},
		})
		require.NoError(t, err)
		tip, err := s.CurrentTip()
		require.NoError(t, err)
		assert.Equal(t, "r1", tip)
	})
}

// checkInvariants asserts the structural rules every reachable state obeys.
func checkInvariants(t *testing.T, s domain.State) {
	t.Helper()
	sess := s.Session()
	if sess.SelectedID != "" {
		_, ok := sess.Image(sess.SelectedID)
		assert.True(t, ok, "selection must reference an uploaded image")
	}
	_, hasAnalysis := s.Analysis()
	regen, hasRegen := s.Regeneration()
	chain, hasChain := s.Chain()
	if hasRegen {
		assert.True(t, hasAnalysis, "regeneration requires analysis")
		assert.True(t, hasChain, "regeneration always has a chain")
		assert.Equal(t, regen.ID, chain.OriginID)
		_, err := s.CurrentTip()
		assert.NoError(t, err)
	} else {
		assert.False(t, hasChain, "chain requires regeneration")
	}
}

func TestInvariants_RandomWalk(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for run := 0; run < 200; run++ {
		s := domain.NewState()
		for step := 0; step < 30; step++ {
			next, err := domaintest.Step(rng, s, fmt.Sprintf("%d-%d", run, step))
			if err != nil {
				var werr *domain.Error
				require.True(t, errors.As(err, &werr), "transitions only fail with *domain.Error")
				assert.Equal(t, s.Snapshot(), next.Snapshot(), "failed transition must not change state")
				continue
			}
			checkInvariants(t, next)
			s = next
		}
	}
}

func TestReattachFiles(t *testing.T) {
	live := throughRegeneration(t)
	live, err := live.RecordImprovement(domain.ChainLink{ID: "i1", ImageData: []byte("png")})
	require.NoError(t, err)

	snap := live.Snapshot()
	for i := range snap.Session.Images {
		snap.Session.Images[i].File = nil
	}
	detached, err := domain.Restore(snap)
	require.NoError(t, err)

	t.Run("Matched", func(t *testing.T) {
		b := &domaintest.File{FileName: "b.png", Type: "image/png"}
		next := detached.ReattachFiles(map[string]domain.FileHandle{"b": b})

		images := next.Session().Images
		require.Len(t, images, 1, "detached images without a file are dropped")
		assert.Equal(t, "b", images[0].ID)
		assert.Same(t, b, images[0].File)
		assert.Equal(t, "b", next.Session().SelectedID)

		tip, err := next.CurrentTip()
		require.NoError(t, err)
		assert.Equal(t, "i1", tip, "downstream results are kept")
		assert.Equal(t, detached.Prompt(), next.Prompt())
	})

	t.Run("Selection Dropped", func(t *testing.T) {
		a := &domaintest.File{FileName: "a.png", Type: "image/png"}
		next := detached.ReattachFiles(map[string]domain.FileHandle{"a": a})

		assert.Empty(t, next.Session().SelectedID)
		_, ok := next.Regeneration()
		assert.True(t, ok)
		checkInvariants(t, next)
	})

	t.Run("Attached Images Stay", func(t *testing.T) {
		next := live.ReattachFiles(nil)
		assert.Equal(t, live.Snapshot(), next.Snapshot())
	})
}
