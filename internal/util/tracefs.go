package util

import (
	"io/fs"

	"github.com/rustsec/cargo-audit-go/internal/logging"
)

// TraceFS logs every open against the wrapped filesystem. Debug-level runs
// wrap the advisory checkout in one to show which files a load touches.
type TraceFS struct {
	fsys fs.FS
	log  *logging.Logger
}

func NewTraceFS(fsys fs.FS, log *logging.Logger) fs.FS {
	return &TraceFS{fsys: fsys, log: log}
}

func (t *TraceFS) Open(p string) (fs.File, error) {
	f, err := t.fsys.Open(p)
	if err != nil {
		t.log.Debugf("open %s: %v", p, err)
		return f, err
	}
	if fi, err := f.Stat(); err == nil {
		if fi.IsDir() {
			t.log.Debugf("open %s: dir", p)
		} else {
			t.log.Debugf("open %s: size=%d", p, fi.Size())
		}
	}
	return f, nil
}
