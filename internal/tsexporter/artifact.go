package tsexporter

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"golang.org/x/sys/unix"
)

const (
	placeholderIface    = "{iface}"
	placeholderIfID     = "{ifid}"
	placeholderUnix     = "{unix}"
	placeholderUnixNano = "{unixnano}"
	placeholderSeq      = "{seq}"
)

var perFlushPlaceholders = []string{placeholderUnix, placeholderUnixNano, placeholderSeq}

func isPerFlush(tmpl string) bool {
	for _, p := range perFlushPlaceholders {
		if strings.Contains(tmpl, p) {
			return true
		}
	}

	return false
}

// pathTemplate is a Path with the interface placeholders already
// substituted.
type pathTemplate struct {
	raw      string
	perFlush bool
	hasSeq   bool
}

func parseTemplate(raw string, iface Interface) (pathTemplate, error) {
	expanded := strings.NewReplacer(
		placeholderIface, iface.Name(),
		placeholderIfID, strconv.Itoa(iface.ID()),
	).Replace(raw)

	dir, file := filepath.Split(expanded)
	if file == "" {
		return pathTemplate{}, configError("path %q names a directory", raw)
	}

	if isPerFlush(dir) {
		return pathTemplate{}, configError("path %q: time and sequence placeholders are only allowed in the file name", raw)
	}

	stripped := expanded
	for _, p := range perFlushPlaceholders {
		stripped = strings.ReplaceAll(stripped, p, "")
	}

	if strings.ContainsAny(stripped, "{}") {
		return pathTemplate{}, configError("path %q has an unknown placeholder", raw)
	}

	return pathTemplate{
		raw:      expanded,
		perFlush: isPerFlush(file),
		hasSeq:   strings.Contains(file, placeholderSeq),
	}, nil
}

func (t pathTemplate) render(at time.Time, seq uint64) string {
	if !t.perFlush {
		return t.raw
	}

	return strings.NewReplacer(
		placeholderUnixNano, strconv.FormatInt(at.UnixNano(), 10),
		placeholderUnix, strconv.FormatInt(at.Unix(), 10),
		placeholderSeq, strconv.FormatUint(seq, 10),
	).Replace(t.raw)
}

// withSuffix inserts .n before the extension of path.
func withSuffix(path string, n int) string {
	ext := filepath.Ext(path)

	return strings.TrimSuffix(path, ext) + "." + strconv.Itoa(n) + ext
}

// artifact owns the local files of one exporter. In rolling mode the file
// is opened once by openArtifact and held until close.
type artifact struct {
	tmpl    pathTemplate
	rolling *os.File
	seq     uint64
}

func openArtifact(tmpl pathTemplate) (*artifact, error) {
	dir := filepath.Dir(tmpl.raw)

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, configError("creating directory %s: %v", dir, err)
	}

	if err := unix.Access(dir, unix.W_OK); err != nil {
		return nil, configError("directory %s is not writable: %v", dir, err)
	}

	a := &artifact{tmpl: tmpl}

	if !tmpl.perFlush {
		f, err := openAppend(tmpl.raw)
		if err != nil {
			return nil, configError("opening %s: %v", tmpl.raw, err)
		}

		a.rolling = f
	}

	return a, nil
}

// write persists data and returns the file it went to.
func (a *artifact) write(at time.Time, data []byte) (string, error) {
	if a.rolling != nil {
		if _, err := a.rolling.Write(data); err != nil {
			return a.tmpl.raw, fmt.Errorf("writing %s: %w", a.tmpl.raw, err)
		}

		if err := a.rolling.Sync(); err != nil {
			return a.tmpl.raw, fmt.Errorf("syncing %s: %w", a.tmpl.raw, err)
		}

		return a.tmpl.raw, nil
	}

	f, path, err := a.create(at)
	if err != nil {
		return path, fmt.Errorf("creating %s: %w", path, err)
	}

	if _, err := f.Write(data); err != nil {
		_ = f.Close()

		return path, fmt.Errorf("writing %s: %w", path, err)
	}

	if err := f.Close(); err != nil {
		return path, fmt.Errorf("closing %s: %w", path, err)
	}

	return path, nil
}

// create opens a per-flush file that did not exist before. A taken name,
// left by an earlier run or by another flush in the same second, is never
// appended to: templates with {seq} move on to the next sequence number,
// others get a numeric suffix.
func (a *artifact) create(at time.Time) (*os.File, string, error) {
	a.seq++
	base := a.tmpl.render(at, a.seq)
	path := base

	for n := 1; ; n++ {
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if err == nil {
			return f, path, nil
		}

		if !errors.Is(err, fs.ErrExist) {
			return nil, path, err
		}

		if a.tmpl.hasSeq {
			a.seq++
			path = a.tmpl.render(at, a.seq)
		} else {
			path = withSuffix(base, n)
		}
	}
}

func (a *artifact) close() error {
	if a.rolling == nil {
		return nil
	}

	err := a.rolling.Close()
	a.rolling = nil

	return err
}

func openAppend(path string) (*os.File, error) {
	return os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
}
