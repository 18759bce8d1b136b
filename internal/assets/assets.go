// Package assets stages uploaded files on local disk, hands them to a remote
// uploader and removes the local copies when the request is done.
//
// Every staged file belongs to a Batch. The caller defers Batch.Cleanup right
// after staging; Cleanup is the only place local files are deleted and it
// runs once no matter how many times it is called.
package assets

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/rohits-web03/vidtube/internal/logging"
)

type State int

const (
	Received State = iota
	Uploading
	Uploaded
	Discarded
)

func (s State) String() string {
	switch s {
	case Received:
		return "received"
	case Uploading:
		return "uploading"
	case Uploaded:
		return "uploaded"
	case Discarded:
		return "discarded"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Uploader sends a local file to remote storage and returns its URL.
type Uploader interface {
	Upload(ctx context.Context, localPath, prefix string) (string, error)
}

// StagedAsset is a file received with a request and written to local disk.
type StagedAsset struct {
	Field    string
	Filename string
	Path     string
	Size     int64

	mu    sync.Mutex
	state State
	url   string
}

func (a *StagedAsset) State() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.state
}

// URL is the remote URL once an upload succeeded.
func (a *StagedAsset) URL() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.url
}

// finish records the terminal state once the local copy is gone.
func (a *StagedAsset) finish() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.url != "" {
		a.state = Uploaded
	} else {
		a.state = Discarded
	}
	return a.state
}

// Batch holds the assets staged for one request.
type Batch struct {
	assets []*StagedAsset
	logger logging.Logger
	once   sync.Once
}

// Get returns the asset staged for a form field, or nil.
func (b *Batch) Get(field string) *StagedAsset {
	if b == nil {
		return nil
	}
	for _, a := range b.assets {
		if a.Field == field {
			return a
		}
	}
	return nil
}

func (b *Batch) Assets() []*StagedAsset {
	if b == nil {
		return nil
	}
	return b.assets
}

// Cleanup removes every staged local file and moves each asset into its
// terminal state. Only the first call does any work.
func (b *Batch) Cleanup(ctx context.Context) {
	if b == nil {
		return
	}
	b.once.Do(func() {
		for _, a := range b.assets {
			if err := removeIfExists(a.Path); err != nil {
				b.logger.Error(ctx, "failed to remove staged file", "path", a.Path, "err", err)
			}
			state := a.finish()
			b.logger.Debug(ctx, "staged file released", "field", a.Field, "path", a.Path, "state", state.String())
		}
	})
}

type Pipeline struct {
	dir      string
	uploader Uploader
	logger   logging.Logger
}

func NewPipeline(dir string, uploader Uploader, logger logging.Logger) *Pipeline {
	return &Pipeline{dir: dir, uploader: uploader, logger: logger}
}

// Stage copies the first file of each named field into the staging
// directory. The returned Batch is never nil, even on error, so files written
// before a failure are still released by Cleanup.
func (p *Pipeline) Stage(form *multipart.Form, fields ...string) (*Batch, error) {
	batch := &Batch{logger: p.logger}
	if form == nil {
		return batch, nil
	}
	if err := os.MkdirAll(p.dir, 0o750); err != nil {
		return batch, fmt.Errorf("create upload dir: %w", err)
	}

	for _, field := range fields {
		headers := form.File[field]
		if len(headers) == 0 {
			continue
		}
		fh := headers[0]
		asset := &StagedAsset{
			Field:    field,
			Filename: filepath.Base(fh.Filename),
			Path:     filepath.Join(p.dir, uuid.NewString()+strings.ToLower(filepath.Ext(fh.Filename))),
		}
		// registered before writing so a partial file is still cleaned up
		batch.assets = append(batch.assets, asset)

		size, err := copyToFile(fh, asset.Path)
		if err != nil {
			return batch, fmt.Errorf("stage %s: %w", field, err)
		}
		asset.Size = size
	}
	return batch, nil
}

// Upload sends a staged asset to remote storage under prefix. A nil asset
// yields an empty URL and no error.
func (p *Pipeline) Upload(ctx context.Context, a *StagedAsset, prefix string) (string, error) {
	if a == nil {
		return "", nil
	}
	a.mu.Lock()
	if a.state != Received {
		state := a.state
		a.mu.Unlock()
		return "", fmt.Errorf("asset %s is %s", a.Field, state)
	}
	a.state = Uploading
	a.mu.Unlock()

	url, err := p.uploader.Upload(ctx, a.Path, prefix)
	if err != nil {
		return "", err
	}
	if url == "" {
		return "", errors.New("uploader returned an empty url")
	}

	a.mu.Lock()
	a.url = url
	a.mu.Unlock()
	return url, nil
}

func copyToFile(fh *multipart.FileHeader, dst string) (int64, error) {
	src, err := fh.Open()
	if err != nil {
		return 0, err
	}
	defer src.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0o600)
	if err != nil {
		return 0, err
	}
	size, err := io.Copy(out, src)
	if cerr := out.Close(); err == nil {
		err = cerr
	}
	return size, err
}

// removeIfExists deletes path, treating an already missing file as success.
func removeIfExists(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}
