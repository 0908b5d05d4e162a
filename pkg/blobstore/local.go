package blobstore

import (
	"encoding/base32"
	"fmt"
	"os"
	"path/filepath"

	"github.com/coremail/engine/pkg/ids"
)

var localEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// LocalBackend stores blobs under <root>/<hash[0]>/.../<base32 hash>:
// Levels directories deep (0-5, default 2), one per leading hash byte,
// each named by that byte's two lowercase hex digits.
type LocalBackend struct {
	root   string
	levels int
}

// NewLocalBackend returns a filesystem-backed Backend rooted at root,
// clamping levels to [0, 5].
func NewLocalBackend(root string, levels int) (*LocalBackend, error) {
	if levels < 0 {
		levels = 0
	}
	if levels > 5 {
		levels = 5
	}
	if err := os.MkdirAll(root, 0700); err != nil {
		return nil, ids.Wrap(ids.ServerFail, err, "blobstore: create root %s", root)
	}
	return &LocalBackend{root: root, levels: levels}, nil
}

func (l *LocalBackend) path(hash [32]byte) string {
	encoded := localEncoding.EncodeToString(hash[:])
	dir := l.root
	for i := 0; i < l.levels && i < len(hash); i++ {
		dir = filepath.Join(dir, fmt.Sprintf("%02x", hash[i]))
	}
	return filepath.Join(dir, encoded)
}

func (l *LocalBackend) Put(hash [32]byte, data []byte) error {
	p := l.path(hash)
	if err := os.MkdirAll(filepath.Dir(p), 0700); err != nil {
		return ids.Wrap(ids.ServerFail, err, "blobstore: mkdir for %x", hash)
	}
	tmp := p + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return ids.Wrap(ids.ServerFail, err, "blobstore: write %x", hash)
	}
	if err := os.Rename(tmp, p); err != nil {
		return ids.Wrap(ids.ServerFail, err, "blobstore: commit %x", hash)
	}
	return nil
}

func (l *LocalBackend) Get(hash [32]byte) ([]byte, error) {
	data, err := os.ReadFile(l.path(hash))
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, ids.Wrap(ids.ServerFail, err, "blobstore: read %x", hash)
	}
	return data, nil
}

func (l *LocalBackend) GetRange(hash [32]byte, start, end uint32) ([]byte, error) {
	data, err := l.Get(hash)
	if err != nil || data == nil {
		return data, err
	}
	if int(start) > len(data) {
		start = uint32(len(data))
	}
	if int(end) > len(data) || end == 0 {
		end = uint32(len(data))
	}
	if start > end {
		return nil, ids.New(ids.InvalidArguments, "blobstore: invalid range [%d,%d)", start, end)
	}
	return data[start:end], nil
}

func (l *LocalBackend) Delete(hash [32]byte) error {
	err := os.Remove(l.path(hash))
	if err != nil && !os.IsNotExist(err) {
		return ids.Wrap(ids.ServerFail, err, "blobstore: delete %x", hash)
	}
	return nil
}

func (l *LocalBackend) Exists(hash [32]byte) (bool, error) {
	_, err := os.Stat(l.path(hash))
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, ids.Wrap(ids.ServerFail, err, "blobstore: stat %x", hash)
	}
	return true, nil
}
