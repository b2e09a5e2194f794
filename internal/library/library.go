package library

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"wavedeck/internal/fileutil"
	"wavedeck/internal/services"
	"wavedeck/internal/textutil"
)

const defaultRecordingExt = ".webm"

// Library is safe for concurrent use.
type Library struct {
	root       string
	recordings string

	mu           sync.RWMutex
	lastAcquired string
	stemsSource  string
	stems        map[string]string
}

// New returns a library rooted at outputRoot with takes stored in
// recordingsDir.
func New(outputRoot, recordingsDir string) *Library {
	return &Library{
		root:       filepath.Clean(outputRoot),
		recordings: filepath.Clean(recordingsDir),
		stems:      map[string]string{},
	}
}

// Root returns the output root.
func (l *Library) Root() string {
	return l.root
}

// RecordingsDir returns the takes directory.
func (l *Library) RecordingsDir() string {
	return l.recordings
}

// SaveRecording stores an uploaded take as take_<md5[:8]><ext>. The hash is
// over the uploaded bytes, so re-uploading the same take replaces the file.
func (l *Library) SaveRecording(r io.Reader, filename string) (string, error) {
	if err := os.MkdirAll(l.recordings, 0o755); err != nil {
		return "", services.Wrap(services.ErrConfiguration, "library", "save recording", "create recordings dir", err)
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if ext == "" || len(ext) > 6 {
		ext = defaultRecordingExt
	}

	tmp, err := os.CreateTemp(l.recordings, ".upload-*")
	if err != nil {
		return "", services.Wrap(services.ErrProcessingFault, "library", "save recording", "create temp file", err)
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	hasher := md5.New()
	written, err := io.Copy(io.MultiWriter(tmp, hasher), r)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return "", services.Wrap(services.ErrProcessingFault, "library", "save recording", "write upload", err)
	}
	if written == 0 {
		return "", services.Wrap(services.ErrValidation, "library", "save recording", "empty upload", nil)
	}

	sum := hex.EncodeToString(hasher.Sum(nil))
	dest := filepath.Join(l.recordings, "take_"+sum[:8]+ext)
	if err := os.Rename(tmpPath, dest); err != nil {
		return "", services.Wrap(services.ErrProcessingFault, "library", "save recording", "move upload", err)
	}
	return dest, nil
}

// InRecordings reports whether path lives directly in the recordings dir.
func (l *Library) InRecordings(path string) bool {
	abs, err := filepath.Abs(path)
	if err != nil {
		return false
	}
	return filepath.Dir(abs) == l.recordings
}

// SetLastAcquired records the output of the most recent acquire job.
func (l *Library) SetLastAcquired(path string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lastAcquired = path
}

// LastAcquired returns the most recent acquire output, or "" when none.
func (l *Library) LastAcquired() string {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.lastAcquired
}

// SetStems replaces the current stem map.
func (l *Library) SetStems(source string, stems map[string]string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stemsSource = source
	l.stems = maps.Clone(stems)
	if l.stems == nil {
		l.stems = map[string]string{}
	}
}

// Stems returns the source file and a copy of the current stem map.
func (l *Library) Stems() (string, map[string]string) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.stemsSource, maps.Clone(l.stems)
}

// SaveStem copies a stem from the current map into the output root as
// <source>_<stem>.wav and returns the destination.
func (l *Library) SaveStem(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", services.Wrap(services.ErrValidation, "library", "save stem", "stem name is required", nil)
	}
	source, stems := l.Stems()
	path, ok := stems[name]
	if !ok {
		return "", services.Wrap(services.ErrInputNotFound, "library", "save stem", fmt.Sprintf("no current stem %q", name), nil)
	}
	if _, err := os.Stat(path); err != nil {
		return "", services.Wrap(services.ErrInputNotFound, "library", "save stem", path, err)
	}

	base := textutil.SanitizeFileName(strings.TrimSuffix(filepath.Base(source), filepath.Ext(source)))
	destName := textutil.SanitizeToken(name) + filepath.Ext(path)
	if base != "" && base != "." {
		destName = base + "_" + destName
	}
	dest := filepath.Join(l.root, destName)
	if err := fileutil.ReplaceFile(path, dest); err != nil {
		return "", services.Wrap(services.ErrProcessingFault, "library", "save stem", "copy stem", err)
	}
	return dest, nil
}

// Resolve validates that path names an existing regular file under the output
// root, after following symlinks, and returns its cleaned absolute form.
func (l *Library) Resolve(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return "", services.Wrap(services.ErrValidation, "library", "resolve", "path is required", nil)
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", services.Wrap(services.ErrValidation, "library", "resolve", path, err)
	}
	if !within(l.root, abs) {
		return "", services.Wrap(services.ErrValidation, "library", "resolve", "path is outside the output root", nil)
	}
	resolved, err := filepath.EvalSymlinks(abs)
	if err != nil {
		return "", services.Wrap(services.ErrInputNotFound, "library", "resolve", abs, err)
	}
	realRoot, err := filepath.EvalSymlinks(l.root)
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "library", "resolve", "output root", err)
	}
	if !within(realRoot, resolved) {
		return "", services.Wrap(services.ErrValidation, "library", "resolve", "path links outside the output root", nil)
	}
	info, err := os.Stat(resolved)
	if err != nil || !info.Mode().IsRegular() {
		return "", services.Wrap(services.ErrInputNotFound, "library", "resolve", abs, err)
	}
	return abs, nil
}

func within(root, path string) bool {
	rel, err := filepath.Rel(root, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
