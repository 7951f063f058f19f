package domain_test

import (
	"testing"

	"github.com/aretw0/sketchy/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDiff(t *testing.T) {
	empty := domain.NewState()
	uploaded, err := empty.RecordUpload(refs("a", "b"))
	require.NoError(t, err)
	selected, err := uploaded.SelectImage("a")
	require.NoError(t, err)
	regenerated := throughRegeneration(t)
	improved, err := regenerated.RecordImprovement(domain.ChainLink{ID: "i1"})
	require.NoError(t, err)

	tests := []struct {
		name     string
		old, new domain.State
		want     domain.Changes
	}{
		{
			name: "No Changes",
			old:  selected,
			new:  selected,
			want: domain.Changes{},
		},
		{
			name: "Upload",
			old:  empty,
			new:  uploaded,
			want: domain.Changes{Session: true},
		},
		{
			name: "Selection",
			old:  uploaded,
			new:  selected,
			want: domain.Changes{Selection: true},
		},
		{
			name: "Improvement only touches the chain",
			old:  regenerated,
			new:  improved,
			want: domain.Changes{Chain: true},
		},
		{
			name: "New upload clears everything downstream",
			old:  improved,
			new:  uploaded,
			want: domain.Changes{Selection: true, Analysis: true, Prompt: true, Regeneration: true, Chain: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := domain.Diff(tt.old, tt.new)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, tt.want != domain.Changes{}, got.Any())
		})
	}
}
