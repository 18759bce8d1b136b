// Package testkit holds helpers shared by package tests.
package testkit

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/rohits-web03/vidtube/internal/repositories"
	"gorm.io/gorm"
)

// NewDB opens a migrated SQLite database under t.TempDir and closes it when
// the test ends.
func NewDB(t *testing.T) *gorm.DB {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	db, err := repositories.Open(sqlite.Open(path), nil)
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { _ = repositories.CloseDatabase(db) })
	return db
}

// Uploader is a scripted assets.Uploader.
type Uploader struct {
	mu      sync.Mutex
	Fail    map[string]error // prefix -> error
	Calls   []string         // local paths, in call order
	Present []bool           // whether the local file existed at call time
}

func (u *Uploader) Upload(_ context.Context, localPath, prefix string) (string, error) {
	_, statErr := os.Stat(localPath)

	u.mu.Lock()
	defer u.mu.Unlock()
	u.Calls = append(u.Calls, localPath)
	u.Present = append(u.Present, statErr == nil)
	if err := u.Fail[prefix]; err != nil {
		return "", err
	}
	return "https://cdn.test/" + prefix + "/" + filepath.Base(localPath), nil
}

// FilesIn lists regular files left in dir.
func FilesIn(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		t.Fatalf("read dir: %v", err)
	}
	var out []string
	for _, e := range entries {
		if !e.IsDir() {
			out = append(out, e.Name())
		}
	}
	return out
}
