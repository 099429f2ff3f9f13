package tailer

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// DefaultSearchDepth bounds how deep FindSessionFile descends below the root
// when the legacy layout misses.
const DefaultSearchDepth = 3

// Transcript describes one discovered transcript file.
type Transcript struct {
	SessionID string    `json:"session_id"`
	Path      string    `json:"path"`
	Size      int64     `json:"size"`
	ModTime   time.Time `json:"mod_time"`
}

// LegacySessionPath returns the fixed-layout location a session's transcript
// occupied before the per-project directory tree existed.
func LegacySessionPath(root, sessionID string) string {
	return filepath.Join(root, "sessions", sessionID+".jsonl")
}

// FindSessionFile resolves the transcript path for a session identifier. The
// legacy fixed layout is checked first; otherwise the root tree is searched
// down to maxDepth levels for a file named <sessionID>.jsonl. Reports false
// when no transcript exists yet.
func FindSessionFile(root, sessionID string, maxDepth int) (string, bool) {
	if maxDepth <= 0 {
		maxDepth = DefaultSearchDepth
	}

	legacy := LegacySessionPath(root, sessionID)
	if info, err := os.Stat(legacy); err == nil && !info.IsDir() {
		return legacy, true
	}

	want := sessionID + ".jsonl"
	var found string
	errFound := errors.New("found")

	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			if relDepth(root, path) >= maxDepth {
				return filepath.SkipDir
			}
			return nil
		}
		if d.Name() == want {
			found = path
			return errFound
		}
		return nil
	})

	if errors.Is(err, errFound) {
		return found, true
	}
	return "", false
}

// relDepth counts how many directory levels path sits below root.
func relDepth(root, path string) int {
	rel, err := filepath.Rel(root, path)
	if err != nil || rel == "." {
		return 0
	}
	return strings.Count(rel, string(filepath.Separator)) + 1
}

// ListTranscripts scans root/projects/<hash>/*.jsonl and returns the
// transcripts found, most recently modified first.
func ListTranscripts(root string) ([]Transcript, error) {
	projectsDir := filepath.Join(root, "projects")
	entries, err := os.ReadDir(projectsDir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var transcripts []Transcript
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dirPath := filepath.Join(projectsDir, entry.Name())

		files, err := os.ReadDir(dirPath)
		if err != nil {
			continue
		}
		for _, f := range files {
			if f.IsDir() || !strings.HasSuffix(f.Name(), ".jsonl") {
				continue
			}
			info, err := f.Info()
			if err != nil {
				continue
			}
			transcripts = append(transcripts, Transcript{
				SessionID: strings.TrimSuffix(f.Name(), ".jsonl"),
				Path:      filepath.Join(dirPath, f.Name()),
				Size:      info.Size(),
				ModTime:   info.ModTime(),
			})
		}
	}

	sort.Slice(transcripts, func(i, j int) bool {
		return transcripts[i].ModTime.After(transcripts[j].ModTime)
	})

	return transcripts, nil
}
