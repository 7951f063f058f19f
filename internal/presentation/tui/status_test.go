package tui

import (
	"bytes"
	"testing"

	"github.com/aretw0/sketchy/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_Empty(t *testing.T) {
	out := Status(domain.NewState(), nil)

	assert.Contains(t, out, "_No images uploaded._")
	assert.NotContains(t, out, "## Next")
}

func TestStatus_Pipeline(t *testing.T) {
	s, err := domain.NewState().RecordUpload([]domain.UploadedImageRef{
		{ID: "1", DisplayName: "a|b.png", MIMEType: "image/png"},
		{ID: "2", DisplayName: "c.png", MIMEType: "image/png"},
	})
	require.NoError(t, err)
	s, err = s.SelectImage("2")
	require.NoError(t, err)
	s, err = s.RecordAnalysis(domain.Analysis{ID: "an", PromptDescription: "A fox"})
	require.NoError(t, err)
	s, err = s.RecordRegeneration(domain.Regeneration{ID: "r1", Prompt: "A fox", ImageData: []byte{1}})
	require.NoError(t, err)
	s, err = s.RecordImprovement(domain.ChainLink{ID: "l1", Prompt: "brighter", ImageData: []byte{2}})
	require.NoError(t, err)

	out := Status(s, func(step domain.Step) bool { return step != domain.StepUpload })

	assert.Contains(t, out, `a\|b.png (detached)`)
	assert.Contains(t, out, "| 2 | c.png (detached) | image/png | ✔ |")
	assert.Contains(t, out, "> A fox")
	assert.Contains(t, out, "`r1`")
	assert.Contains(t, out, "1. `l1` brighter")
	assert.Contains(t, out, "- [ ] upload")
	assert.Contains(t, out, "- [x] improve")
}

func TestNewRenderer_NonTerminal(t *testing.T) {
	var buf bytes.Buffer
	assert.False(t, IsTerminal(&buf))

	out, err := NewRenderer(&buf)("# Title")

	require.NoError(t, err)
	assert.Equal(t, "# Title", out)
}

func TestPrintBanner(t *testing.T) {
	var buf bytes.Buffer
	PrintBanner(&buf, "v1.0.0")

	assert.Contains(t, buf.String(), "v1.0.0")
	assert.Contains(t, buf.String(), "|___/")
}
