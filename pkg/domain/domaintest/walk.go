// Package domaintest drives workflow states through random transitions.
package domaintest

import (
	"fmt"
	"io"
	"math/rand"
	"strings"

	"github.com/aretw0/sketchy/pkg/domain"
)

// File is an in-memory domain.FileHandle.
type File struct {
	FileName, Type, Body string
}

func (f *File) Name() string     { return f.FileName }
func (f *File) MIMEType() string { return f.Type }
func (f *File) Open() (io.ReadCloser, error) {
	return io.NopCloser(strings.NewReader(f.Body)), nil
}

// Refs builds uploaded images named <id>.png backed by in-memory files.
func Refs(ids ...string) []domain.UploadedImageRef {
	out := make([]domain.UploadedImageRef, 0, len(ids))
	for _, id := range ids {
		out = append(out, domain.UploadedImageRef{
			ID:          id,
			File:        &File{FileName: id + ".png", Type: "image/png"},
			DisplayName: id + ".png",
			MIMEType:    "image/png",
		})
	}
	return out
}

var imageIDs = []string{"a", "b", "c", "missing"}

// Step applies one random transition to s. The tag makes the ids of the
// committed results unique. Failed transitions return s unchanged with the
// error.
func Step(rng *rand.Rand, s domain.State, tag string) (domain.State, error) {
	switch rng.Intn(7) {
	case 0:
		return s.RecordUpload(Refs(imageIDs[:1+rng.Intn(3)]...))
	case 1:
		return s.SelectImage(imageIDs[rng.Intn(len(imageIDs))])
	case 2:
		return s.RecordAnalysis(domain.Analysis{ID: "an" + tag, PromptDescription: "p" + tag})
	case 3:
		return s.EditPrompt("edited " + tag)
	case 4:
		return s.RecordRegeneration(domain.Regeneration{ID: "r" + tag, ImageData: []byte("png" + tag), Prompt: "p" + tag})
	case 5:
		return s.RecordImprovement(domain.ChainLink{ID: "i" + tag, ImageData: []byte("png" + tag), Prompt: "more " + tag})
	default:
		return s.Reset(), nil
	}
}

// Walk runs random walks from an empty state and calls visit with every
// state reached by a successful transition.
func Walk(seed int64, runs, steps int, visit func(domain.State)) {
	rng := rand.New(rand.NewSource(seed))
	for run := 0; run < runs; run++ {
		s := domain.NewState()
		for step := 0; step < steps; step++ {
			next, err := Step(rng, s, fmt.Sprintf("%d-%d", run, step))
			if err != nil {
				continue
			}
			visit(next)
			s = next
		}
	}
}
