package daemon

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amerry19/heic2jpg/internal/config"
	"github.com/amerry19/heic2jpg/internal/excluder"
)

// fakeConverter implements convert.Converter for testing. It writes a canned
// JPEG placeholder at dst, or fails, depending on configuration.
type fakeConverter struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeConverter) Convert(src, dst string) error {
	f.mu.Lock()
	f.calls = append(f.calls, src)
	f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	return os.WriteFile(dst, []byte("jpeg"), 0644)
}

func (f *fakeConverter) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

// fakeRecycler implements recycle.Recycler. It deletes the path to imitate a
// move to trash, or fails, depending on configuration.
type fakeRecycler struct {
	mu    sync.Mutex
	calls []string
	err   error
}

func (f *fakeRecycler) Trash(path string) error {
	f.mu.Lock()
	f.calls = append(f.calls, path)
	f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	return os.Remove(path)
}

func writeSource(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("heic"), 0644))
	return path
}

func TestProcessFileConvertsAndKeepsSource(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "photo.heic")

	conv := &fakeConverter{}
	rec := &fakeRecycler{}
	d := New(&config.Config{WatchDirectory: dir}, conv, rec)

	assert.True(t, d.ProcessFile(src, nil))
	assert.Equal(t, []string{src}, conv.calls)
	assert.Empty(t, rec.calls)

	// Target appears next to the source; source stays put.
	assert.FileExists(t, filepath.Join(dir, "photo.jpg"))
	assert.FileExists(t, src)
}

func TestProcessFileAutoDelete(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "photo.heic")

	conv := &fakeConverter{}
	rec := &fakeRecycler{}
	d := New(&config.Config{WatchDirectory: dir, AutoDelete: true}, conv, rec)

	assert.True(t, d.ProcessFile(src, nil))
	assert.Equal(t, []string{src}, rec.calls)

	assert.FileExists(t, filepath.Join(dir, "photo.jpg"))
	assert.NoFileExists(t, src)
}

func TestProcessFileIgnoresNonSource(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "notes.txt")

	conv := &fakeConverter{}
	d := New(&config.Config{WatchDirectory: dir}, conv, &fakeRecycler{})

	assert.False(t, d.ProcessFile(path, nil))
	assert.Empty(t, conv.calls)
}

func TestProcessFileExcluded(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "photo.heic")

	ex, err := excluder.New([]string{"**/photo.heic"})
	require.NoError(t, err)

	conv := &fakeConverter{}
	d := New(&config.Config{WatchDirectory: dir}, conv, &fakeRecycler{})

	assert.False(t, d.ProcessFile(src, ex))
	assert.Empty(t, conv.calls)
}

func TestProcessFileConverterFailure(t *testing.T) {
	dir := t.TempDir()
	first := writeSource(t, dir, "first.heic")
	second := writeSource(t, dir, "second.heic")

	conv := &fakeConverter{err: errors.New("decode failed")}
	rec := &fakeRecycler{}
	d := New(&config.Config{WatchDirectory: dir, AutoDelete: true}, conv, rec)

	assert.True(t, d.ProcessFile(first, nil))
	// Source untouched, nothing trashed.
	assert.FileExists(t, first)
	assert.Empty(t, rec.calls)

	// The loop keeps reacting to later files.
	conv.err = nil
	assert.True(t, d.ProcessFile(second, nil))
	assert.FileExists(t, filepath.Join(dir, "second.jpg"))
}

func TestProcessFileRecyclerFailureKeepsConversion(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "photo.heic")

	conv := &fakeConverter{}
	rec := &fakeRecycler{err: errors.New("trash unavailable")}
	d := New(&config.Config{WatchDirectory: dir, AutoDelete: true}, conv, rec)

	assert.True(t, d.ProcessFile(src, nil))
	// Cleanup failed but the conversion stands and the source remains.
	assert.FileExists(t, filepath.Join(dir, "photo.jpg"))
	assert.FileExists(t, src)
}

func TestProcessFileSkipsPathMidConversion(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "photo.heic")

	conv := &fakeConverter{}
	d := New(&config.Config{WatchDirectory: dir}, conv, &fakeRecycler{})

	d.mu.Lock()
	d.inflight[src] = true
	d.mu.Unlock()

	assert.False(t, d.ProcessFile(src, nil))
	assert.Empty(t, conv.calls)
}

func TestRunMissingDirectory(t *testing.T) {
	d := New(&config.Config{WatchDirectory: filepath.Join(t.TempDir(), "absent")},
		&fakeConverter{}, &fakeRecycler{})

	err := d.Run(context.Background())
	require.Error(t, err)
}

func TestRunNotADirectory(t *testing.T) {
	dir := t.TempDir()
	path := writeSource(t, dir, "file.heic")

	d := New(&config.Config{WatchDirectory: path}, &fakeConverter{}, &fakeRecycler{})

	err := d.Run(context.Background())
	require.Error(t, err)
}

func TestRunConvertsCreatedFile(t *testing.T) {
	dir := t.TempDir()

	conv := &fakeConverter{}
	d := New(&config.Config{WatchDirectory: dir}, conv, &fakeRecycler{})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()

	// Give the watcher time to install before dropping files in.
	time.Sleep(200 * time.Millisecond)

	writeSource(t, dir, "notes.txt")
	writeSource(t, dir, "photo.heic")

	require.Eventually(t, func() bool {
		_, err := os.Stat(filepath.Join(dir, "photo.jpg"))
		return err == nil
	}, 5*time.Second, 50*time.Millisecond, "expected photo.jpg to appear")

	assert.FileExists(t, filepath.Join(dir, "photo.heic"))

	cancel()
	require.ErrorIs(t, <-done, context.Canceled)

	// notes.txt never reached the converter.
	conv.mu.Lock()
	defer conv.mu.Unlock()
	for _, call := range conv.calls {
		assert.NotContains(t, call, "notes.txt")
	}
}
