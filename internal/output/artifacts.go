package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/google/uuid"

	"github.com/polzovatel/navshot/internal/capture"
)

// ManifestName is the index file written next to the images of a run.
const ManifestName = "manifest.json"

// NewRunID returns a fresh run identifier.
func NewRunID() string {
	return uuid.NewString()
}

// Entry is one manifest record.
type Entry struct {
	Index     int            `json:"index"`
	Image     string         `json:"image"`
	Thumbnail string         `json:"thumbnail"`
	Result    capture.Result `json:"result"`
}

// Manifest describes every artifact of one run.
type Manifest struct {
	RunID     string    `json:"runId"`
	URL       string    `json:"url"`
	CreatedAt time.Time `json:"createdAt"`
	Entries   []Entry   `json:"entries"`
}

// RunDir stores the artifacts of one run under <root>/<run-id>.
type RunDir struct {
	mu       sync.Mutex
	dir      string
	manifest Manifest
}

// NewRunDir creates the run directory.
func NewRunDir(root, runID, url string) (*RunDir, error) {
	if runID == "" {
		runID = NewRunID()
	}
	dir := filepath.Join(root, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create run dir: %w", err)
	}
	return &RunDir{
		dir:      dir,
		manifest: Manifest{RunID: runID, URL: url, CreatedAt: time.Now().UTC(), Entries: []Entry{}},
	}, nil
}

func (r *RunDir) Dir() string { return r.dir }

// Write stores the image and thumbnail of res as <nn>-<slug>.png and
// <nn>-<slug>-thumb.png and records them in the manifest.
func (r *RunDir) Write(index int, res *capture.Result) (Entry, error) {
	stem := fmt.Sprintf("%02d-%s", index+1, Slug(res.Sequence))
	entry := Entry{
		Index:     index,
		Image:     stem + ".png",
		Thumbnail: stem + "-thumb.png",
		Result:    *res,
	}
	if err := os.WriteFile(filepath.Join(r.dir, entry.Image), res.Image, 0o644); err != nil {
		return Entry{}, fmt.Errorf("write image: %w", err)
	}
	if err := os.WriteFile(filepath.Join(r.dir, entry.Thumbnail), res.Thumbnail, 0o644); err != nil {
		return Entry{}, fmt.Errorf("write thumbnail: %w", err)
	}
	r.mu.Lock()
	r.manifest.Entries = append(r.manifest.Entries, entry)
	r.mu.Unlock()
	return entry, nil
}

// Close writes the manifest.
func (r *RunDir) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	data, err := json.MarshalIndent(r.manifest, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}
	if err := os.WriteFile(filepath.Join(r.dir, ManifestName), append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	return nil
}

// Manifest returns a copy of what has been recorded so far.
func (r *RunDir) Manifest() Manifest {
	r.mu.Lock()
	defer r.mu.Unlock()
	m := r.manifest
	m.Entries = append([]Entry(nil), r.manifest.Entries...)
	return m
}

// Slug turns a sequence name into a file name fragment.
func Slug(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(name) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			dash = false
			continue
		}
		if !dash && b.Len() > 0 {
			b.WriteByte('-')
			dash = true
		}
	}
	s := strings.TrimRight(b.String(), "-")
	if s == "" {
		return "page"
	}
	if r := []rune(s); len(r) > 80 {
		s = strings.TrimRight(string(r[:80]), "-")
	}
	return s
}
