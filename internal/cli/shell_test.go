package cli

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/aretw0/sketchy/internal/presentation/tui"
	"github.com/aretw0/sketchy/internal/server"
	"github.com/aretw0/sketchy/pkg/adapters/memory"
	"github.com/aretw0/sketchy/pkg/domain"
	"github.com/aretw0/sketchy/pkg/persistence"
	"github.com/aretw0/sketchy/pkg/ports"
	"github.com/aretw0/sketchy/pkg/recovery"
	"github.com/aretw0/sketchy/pkg/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	sketchyhttp "github.com/aretw0/sketchy/pkg/adapters/http"
)

type fixture struct {
	backend ports.Backend
	store   ports.RecordStore
	dir     string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	srv := httptest.NewServer(server.New(memory.NewStore()).Handler())
	t.Cleanup(srv.Close)

	f := &fixture{
		backend: sketchyhttp.New(srv.URL+"/api/v1", sketchyhttp.WithTimeout(5*time.Second)),
		store:   memory.NewStore(),
		dir:     t.TempDir(),
	}
	f.writeImage(t, "a.png", color.RGBA{R: 255, A: 255})
	f.writeImage(t, "b.png", color.RGBA{B: 255, A: 255})
	return f
}

func (f *fixture) writeImage(t *testing.T, name string, c color.Color) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, name), buf.Bytes(), 0o644))
}

func (f *fixture) path(name string) string {
	return filepath.Join(f.dir, name)
}

func (f *fixture) adapter() *persistence.Adapter {
	return persistence.NewAdapter(f.store)
}

// shell builds a Shell reading the given lines.
func (f *fixture) shell(lines ...string) (*Shell, *workflow.Orchestrator, *bytes.Buffer) {
	orch := workflow.New(f.backend, workflow.WithPersistence(f.adapter()))
	out := &bytes.Buffer{}
	sh := NewShell(orch, ShellOptions{
		In:       strings.NewReader(strings.Join(lines, "\n") + "\n"),
		Out:      out,
		Renderer: tui.Plain,
	})
	return sh, orch, out
}

func TestShell_Pipeline(t *testing.T) {
	f := newFixture(t)
	saved := filepath.Join(f.dir, "out.png")

	sh, orch, out := f.shell(
		"upload "+f.path("a.png")+" "+f.path("b.png"),
		"select 2",
		"analyze",
		"prompt A brand new prompt",
		"regenerate",
		"improve warmer",
		"improve sharper",
		"status",
		"save "+saved,
		"quit",
	)

	require.NoError(t, sh.Run(context.Background()))

	text := out.String()
	assert.Contains(t, text, "  2. b.png [image/png]")
	assert.Contains(t, text, "Selected b.png.")
	assert.Contains(t, text, "Prompt: A ")
	assert.Contains(t, text, "Improvement 2:")
	assert.Contains(t, text, "Saved "+saved)

	state := orch.State()
	regen, ok := state.Regeneration()
	require.True(t, ok)
	assert.Equal(t, "A brand new prompt", regen.Prompt)
	chain, ok := state.Chain()
	require.True(t, ok)
	assert.Len(t, chain.Links, 2)

	latest, _ := state.LatestImage()
	written, err := os.ReadFile(saved)
	require.NoError(t, err)
	assert.Equal(t, latest, written)

	rec, err := f.adapter().Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Len(t, rec.Chain.Links, 2, "every commit is persisted")
}

func TestShell_Errors(t *testing.T) {
	f := newFixture(t)
	sh, _, out := f.shell(
		"analyze",
		"regenerate",
		"improve",
		"save",
		"select 1",
		"upload",
		"upload "+f.path("missing.png"),
		"frobnicate",
	)

	require.NoError(t, sh.Run(context.Background()), "end of input leaves the shell")

	text := out.String()
	assert.Contains(t, text, "Error: Select an image to analyze first.")
	assert.Contains(t, text, "Error: Analyze an image before regenerating.")
	assert.Contains(t, text, "Error: no regenerated image to improve")
	assert.Contains(t, text, "Error: Nothing to save yet.")
	assert.Contains(t, text, `Error: image "1" was not uploaded in this session`)
	assert.Contains(t, text, "Error: Select at least one image to upload.")
	assert.Contains(t, text, "missing.png")
	assert.Contains(t, text, `Error: Unknown command "frobnicate"`)
}

func TestShell_SaveDefaultName(t *testing.T) {
	f := newFixture(t)
	sh, _, out := f.shell("upload "+f.path("a.png"), "select 1", "analyze", "regenerate")
	require.NoError(t, sh.Run(context.Background()))

	t.Chdir(t.TempDir())
	sh.now = func() time.Time { return time.UnixMilli(1700000000000) }
	require.NoError(t, sh.Exec(context.Background(), "save"))

	assert.Contains(t, out.String(), "Saved sketchy-image-1700000000000.png")
	_, err := os.Stat("sketchy-image-1700000000000.png")
	assert.NoError(t, err)
}

func TestShell_Reset(t *testing.T) {
	f := newFixture(t)
	sh, orch, _ := f.shell("upload "+f.path("a.png"), "select 1", "reset")
	require.NoError(t, sh.Run(context.Background()))

	assert.True(t, orch.State().IsEmpty())
	rec, err := f.adapter().Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, rec)
}

// seed runs a first session so a record is stored.
func seed(t *testing.T, f *fixture) domain.State {
	t.Helper()
	sh, orch, _ := f.shell(
		"upload "+f.path("a.png")+" "+f.path("b.png"),
		"select 1",
		"analyze",
		"regenerate",
	)
	require.NoError(t, sh.Run(context.Background()))
	return orch.State()
}

func TestShell_Recover(t *testing.T) {
	f := newFixture(t)
	before := seed(t, f)

	sh, orch, out := f.shell(f.path("a.png"), "quit")
	require.NoError(t, sh.Recover(context.Background(), recovery.New(f.adapter())))
	require.NoError(t, sh.Run(context.Background()))

	text := out.String()
	assert.Contains(t, text, recovery.Prompt)
	assert.Contains(t, text, "  - b.png [image/png]")
	assert.Contains(t, text, "Session restored: 1 image(s) re-attached.")
	assert.Contains(t, text, "dropped b.png [image/png]: no matching file")

	state := orch.State()
	require.Len(t, state.Session().Images, 1)
	assert.NotNil(t, state.Session().Images[0].File)
	wantAnalysis, _ := before.Analysis()
	gotAnalysis, ok := state.Analysis()
	require.True(t, ok)
	assert.Equal(t, wantAnalysis, gotAnalysis)
	wantRegen, _ := before.Regeneration()
	gotRegen, _ := state.Regeneration()
	assert.Equal(t, wantRegen.ID, gotRegen.ID)
}

func TestShell_RecoverSkippedThenReattach(t *testing.T) {
	f := newFixture(t)
	seed(t, f)

	sh, orch, out := f.shell(
		"",
		"list",
		"upload "+f.path("b.png")+" "+f.path("a.png"),
		"list",
	)
	require.NoError(t, sh.Recover(context.Background(), recovery.New(f.adapter())))

	images := orch.State().Session().Images
	require.Len(t, images, 2)
	assert.Nil(t, images[0].File, "skipped restore keeps the images detached")

	require.NoError(t, sh.Run(context.Background()))

	text := out.String()
	assert.Contains(t, text, "Restore skipped.")
	assert.Contains(t, text, "* 1. a.png [image/png] (no file)")
	assert.Contains(t, text, "Session restored: 2 image(s) re-attached.")
	for _, img := range orch.State().Session().Images {
		assert.NotNil(t, img.File)
	}
	assert.False(t, sh.reattach)
}

func TestShell_ReattachKeepsLaterWork(t *testing.T) {
	f := newFixture(t)
	before := seed(t, f)
	oldRegen, _ := before.Regeneration()

	sh, orch, out := f.shell(
		"",
		"select 2",
		"analyze",
		"regenerate",
		"upload "+f.path("a.png")+" "+f.path("b.png"),
	)
	require.NoError(t, sh.Recover(context.Background(), recovery.New(f.adapter())))
	require.NoError(t, sh.Run(context.Background()))
	assert.Contains(t, out.String(), "Session restored: 2 image(s) re-attached.")

	state := orch.State()
	regen, ok := state.Regeneration()
	require.True(t, ok)
	assert.NotEqual(t, oldRegen.ID, regen.ID, "the regeneration made after the skipped restore survives")
	selected, ok := state.Session().Selected()
	require.True(t, ok)
	assert.Equal(t, "b.png", selected.DisplayName)
	for _, img := range state.Session().Images {
		assert.NotNil(t, img.File)
	}

	rec, err := f.adapter().Load(context.Background())
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, persistence.Snapshot(state), *rec, "memory and store agree")
}

func TestShell_NothingToRecover(t *testing.T) {
	f := newFixture(t)
	sh, orch, out := f.shell()

	require.NoError(t, sh.Recover(context.Background(), recovery.New(f.adapter())))

	assert.True(t, orch.State().IsEmpty())
	assert.NotContains(t, out.String(), recovery.Prompt)
}

type stubPicker struct {
	got []ports.ExpectedFile
	err error
}

func (p *stubPicker) PickFiles(ctx context.Context, expected []ports.ExpectedFile) ([]domain.FileHandle, error) {
	p.got = expected
	return nil, p.err
}

func TestShell_RecoverWithPicker(t *testing.T) {
	f := newFixture(t)
	seed(t, f)

	picker := &stubPicker{err: fmt.Errorf("no display")}
	orch := workflow.New(f.backend)
	sh := NewShell(orch, ShellOptions{In: strings.NewReader(""), Out: &bytes.Buffer{}, Renderer: tui.Plain, Picker: picker})

	err := sh.Recover(context.Background(), recovery.New(f.adapter()))

	assert.ErrorContains(t, err, "no display")
	require.Len(t, picker.got, 2)
	assert.Equal(t, "a.png", picker.got[0].Name)
}

func TestShell_CancelledInput(t *testing.T) {
	f := newFixture(t)
	orch := workflow.New(f.backend)
	blocked, w := io.Pipe()
	defer w.Close()
	sh := NewShell(orch, ShellOptions{In: blocked, Out: &bytes.Buffer{}, Renderer: tui.Plain})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	assert.ErrorIs(t, sh.Run(ctx), context.Canceled)
}

func TestShell_CancelStopsReader(t *testing.T) {
	f := newFixture(t)
	sh := NewShell(workflow.New(f.backend), ShellOptions{
		In:       strings.NewReader("one\ntwo\nthree\n"),
		Out:      &bytes.Buffer{},
		Renderer: tui.Plain,
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	for {
		if _, err := sh.readLine(ctx); err != nil {
			break
		}
	}

	assert.Eventually(t, func() bool {
		select {
		case <-sh.scanned:
			return true
		default:
			return false
		}
	}, time.Second, 10*time.Millisecond, "scanner goroutine must not stay blocked on an unread line")
}
