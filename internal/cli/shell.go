package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/aretw0/sketchy/internal/logging"
	"github.com/aretw0/sketchy/internal/presentation/tui"
	"github.com/aretw0/sketchy/pkg/adapters/local"
	"github.com/aretw0/sketchy/pkg/domain"
	"github.com/aretw0/sketchy/pkg/ports"
	"github.com/aretw0/sketchy/pkg/recovery"
	"github.com/aretw0/sketchy/pkg/workflow"
)

const helpText = `# Commands

| Command | Description |
|---|---|
| upload <file>... | Upload a new batch of images (re-attaches files while a restore is pending) |
| list | List the uploaded images |
| select <n or id> | Select the image to analyze |
| analyze | Analyze the selected image |
| prompt [text] | Show or edit the regeneration prompt |
| regenerate [text] | Generate an image from the prompt |
| improve <text> | Refine the latest image |
| status | Show the whole workflow |
| save [path] | Write the latest image as PNG |
| reset | Start over and forget the stored session |
| quit | Leave the shell |
`

var errQuit = errors.New("quit")

// ShellOptions configures a Shell. Zero fields get terminal defaults.
type ShellOptions struct {
	In       io.Reader
	Out      io.Writer
	Renderer tui.Renderer

	// Picker asks for files during recovery. Nil prompts on the shell input.
	Picker ports.FilePicker

	Logger *slog.Logger
}

// Shell is the interactive front end of the workflow.
type Shell struct {
	orch    *workflow.Orchestrator
	out     io.Writer
	render  tui.Renderer
	picker  ports.FilePicker
	logger  *slog.Logger
	scanner *bufio.Scanner
	now     func() time.Time

	// lines carries scanned input until stop is closed; scanned is closed
	// once the scanner goroutine returns.
	lines    chan string
	stop     chan struct{}
	stopOnce sync.Once
	scanned  chan struct{}

	// reattach is set while recovered images still wait for their files.
	reattach bool
}

var _ ports.FilePicker = (*Shell)(nil)

// NewShell creates a Shell driving orch.
func NewShell(orch *workflow.Orchestrator, opts ShellOptions) *Shell {
	if opts.In == nil {
		opts.In = os.Stdin
	}
	if opts.Out == nil {
		opts.Out = os.Stdout
	}
	if opts.Renderer == nil {
		opts.Renderer = tui.NewRenderer(opts.Out)
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNop()
	}
	s := &Shell{
		orch:    orch,
		out:     opts.Out,
		render:  opts.Renderer,
		picker:  opts.Picker,
		logger:  opts.Logger,
		scanner: bufio.NewScanner(opts.In),
		now:     time.Now,
	}
	if s.picker == nil {
		s.picker = s
	}
	return s
}

// Recover restores a stored session, asking for its files first.
func (s *Shell) Recover(ctx context.Context, r *recovery.Recoverer) error {
	outcome, err := r.Resume(ctx, &announcingPicker{out: s.out, next: s.picker})
	if err != nil {
		return err
	}
	if outcome.State.IsEmpty() {
		return nil
	}
	s.orch.Adopt(outcome.State)

	if outcome.Pending != nil {
		s.reattach = true
		s.printf("Restore skipped. Images stay listed without their files; run 'upload <file>...' to re-attach them.\n")
		return nil
	}
	s.printReport(outcome.Report)
	return nil
}

// PickFiles reads space separated paths from the shell input.
// An empty line skips.
func (s *Shell) PickFiles(ctx context.Context, expected []ports.ExpectedFile) ([]domain.FileHandle, error) {
	s.printf("Enter the paths separated by spaces, or press Enter to skip:\n> ")
	line, err := s.readLine(ctx)
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	paths := strings.Fields(line)
	if len(paths) == 0 {
		return nil, nil
	}
	return local.OpenAll(paths)
}

// Run reads commands until quit, end of input or cancellation.
func (s *Shell) Run(ctx context.Context) error {
	s.printf("Type 'help' for the list of commands.\n")
	for {
		s.printf("sketchy> ")
		line, err := s.readLine(ctx)
		if err != nil {
			if errors.Is(err, io.EOF) {
				s.printf("\n")
				return nil
			}
			return err
		}

		err = s.Exec(ctx, line)
		if errors.Is(err, errQuit) {
			return nil
		}
		if err != nil {
			s.printError(err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// Exec runs a single command line.
func (s *Shell) Exec(ctx context.Context, line string) error {
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return nil
	}
	cmd, args := strings.ToLower(fields[0]), fields[1:]
	rest := strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(line), fields[0]))

	switch cmd {
	case "help", "?":
		s.markdown(helpText)
	case "upload":
		return s.upload(ctx, args)
	case "list", "ls":
		s.list()
	case "select":
		return s.selectImage(ctx, args)
	case "analyze":
		s.printf("Analyzing...\n")
		a, err := s.orch.Analyze(ctx)
		if err != nil {
			return err
		}
		s.printf("Prompt: %s\n", a.PromptDescription)
	case "prompt":
		if rest == "" {
			s.printf("Prompt: %s\n", s.orch.State().Prompt())
			return nil
		}
		return s.orch.EditPrompt(ctx, rest)
	case "regenerate":
		prompt := rest
		if prompt == "" {
			prompt = s.orch.State().Prompt()
		}
		s.printf("Regenerating...\n")
		r, err := s.orch.Regenerate(ctx, prompt)
		if err != nil {
			return err
		}
		s.printf("Regenerated image %s (%d bytes). Use 'save' to write it.\n", r.ID, len(r.ImageData))
	case "improve":
		s.printf("Improving...\n")
		link, err := s.orch.Improve(ctx, rest)
		if err != nil {
			return err
		}
		chain, _ := s.orch.State().Chain()
		s.printf("Improvement %d: %s (%d bytes)\n", len(chain.Links), link.ID, len(link.ImageData))
	case "status":
		s.markdown(tui.Status(s.orch.State(), s.orch.Enabled))
	case "save":
		return s.save(args)
	case "reset":
		s.orch.Reset(ctx)
		s.reattach = false
		s.printf("Workflow cleared.\n")
	case "quit", "exit":
		return errQuit
	default:
		return domain.InvalidInput(fmt.Sprintf("Unknown command %q. Type 'help' for the list of commands.", cmd))
	}
	return nil
}

func (s *Shell) upload(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return domain.InvalidInput("Select at least one image to upload.")
	}
	files, err := local.OpenAll(paths)
	if err != nil {
		return domain.InvalidInput(err.Error())
	}

	if s.reattach {
		handles, report := recovery.Match(detachedImages(s.orch.State()), files)
		if err := s.orch.Reattach(ctx, handles); err != nil {
			return err
		}
		s.reattach = false
		s.printReport(report)
		return nil
	}

	s.printf("Uploading %d image(s)...\n", len(files))
	if _, err := s.orch.Upload(ctx, files); err != nil {
		return err
	}
	s.list()
	return nil
}

func (s *Shell) selectImage(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return domain.InvalidInput("Usage: select <n or id>")
	}
	id := args[0]
	images := s.orch.State().Session().Images
	if n, err := strconv.Atoi(id); err == nil && n >= 1 && n <= len(images) {
		id = images[n-1].ID
	}
	if err := s.orch.Select(ctx, id); err != nil {
		return err
	}
	img, _ := s.orch.State().Session().Selected()
	s.printf("Selected %s.\n", img.DisplayName)
	return nil
}

func (s *Shell) list() {
	sess := s.orch.State().Session()
	if len(sess.Images) == 0 {
		s.printf("No images uploaded.\n")
		return
	}
	for i, img := range sess.Images {
		mark := " "
		if img.ID == sess.SelectedID {
			mark = "*"
		}
		detached := ""
		if img.File == nil {
			detached = " (no file)"
		}
		s.printf("%s %d. %s [%s]%s\n", mark, i+1, img.DisplayName, img.MIMEType, detached)
	}
}

func (s *Shell) save(args []string) error {
	data, ok := s.orch.State().LatestImage()
	if !ok {
		return domain.PreconditionFailed("Nothing to save yet. Regenerate an image first.")
	}
	path := fmt.Sprintf("sketchy-image-%d.png", s.now().UnixMilli())
	if len(args) > 0 {
		path = args[0]
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to save image: %w", err)
	}
	s.printf("Saved %s\n", path)
	return nil
}

// detachedImages lists the images of state that have no file yet.
func detachedImages(state domain.State) []ports.ExpectedFile {
	var out []ports.ExpectedFile
	for _, img := range state.Session().Images {
		if img.File == nil {
			out = append(out, ports.ExpectedFile{ID: img.ID, Name: img.DisplayName, MIMEType: img.MIMEType})
		}
	}
	return out
}

func (s *Shell) printReport(r recovery.Report) {
	s.printf("Session restored: %d image(s) re-attached.\n", len(r.Matched))
	for _, d := range r.Dropped {
		s.printf("  dropped %s [%s]: no matching file\n", d.Name, d.MIMEType)
	}
}

// readLine returns the next input line. The scanner runs in its own
// goroutine so a cancelled context does not wait for input. Cancellation
// stops the reader for good.
func (s *Shell) readLine(ctx context.Context) (string, error) {
	if s.lines == nil {
		s.lines = make(chan string)
		s.stop = make(chan struct{})
		s.scanned = make(chan struct{})
		go s.scan()
	}
	select {
	case <-ctx.Done():
		s.stopOnce.Do(func() { close(s.stop) })
		return "", ctx.Err()
	case line, ok := <-s.lines:
		if !ok {
			if err := s.scanner.Err(); err != nil {
				return "", err
			}
			return "", io.EOF
		}
		return line, nil
	}
}

func (s *Shell) scan() {
	defer close(s.scanned)
	defer close(s.lines)
	for s.scanner.Scan() {
		select {
		case s.lines <- s.scanner.Text():
		case <-s.stop:
			return
		}
	}
}

func (s *Shell) markdown(md string) {
	out, err := s.render(md)
	if err != nil {
		s.logger.Debug("Markdown rendering failed", "error", err)
		out = md
	}
	fmt.Fprint(s.out, out)
}

func (s *Shell) printf(format string, args ...any) {
	fmt.Fprintf(s.out, format, args...)
}

// printError shows the user-facing message of domain errors and the full
// chain of anything else.
func (s *Shell) printError(err error) {
	var de *domain.Error
	if errors.As(err, &de) {
		s.logger.Debug("Command failed", "kind", de.Kind, "error", err)
		s.printf("Error: %s\n", de.Error())
		return
	}
	s.printf("Error: %v\n", err)
}

// announcingPicker shows the restore prompt before delegating.
type announcingPicker struct {
	out  io.Writer
	next ports.FilePicker
}

func (p *announcingPicker) PickFiles(ctx context.Context, expected []ports.ExpectedFile) ([]domain.FileHandle, error) {
	fmt.Fprintln(p.out, recovery.Prompt)
	for _, e := range expected {
		fmt.Fprintf(p.out, "  - %s [%s]\n", e.Name, e.MIMEType)
	}
	return p.next.PickFiles(ctx, expected)
}
