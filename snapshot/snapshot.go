package snapshot

import (
	"context"
	"errors"
	"fmt"
	stdhash "hash"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/hupe1980/vecache/blobstore"
	"github.com/hupe1980/vecache/internal/hash"
	"github.com/hupe1980/vecache/persistence"
	"github.com/hupe1980/vecache/vectorstore"
)

const (
	// CurrentName is the pointer blob naming the live snapshot.
	CurrentName = "CURRENT"
	// Dir holds the snapshot blobs.
	Dir = "snapshots/"

	blobExt = ".vec"
)

var (
	// ErrNoSnapshot is returned when nothing has been published yet.
	ErrNoSnapshot = errors.New("snapshot: no snapshot published")
	// ErrChecksumMismatch is returned when a snapshot blob does not match
	// the checksum recorded in CURRENT.
	ErrChecksumMismatch = errors.New("snapshot: checksum mismatch")
	// ErrInvalidPointer is returned when CURRENT cannot be parsed.
	ErrInvalidPointer = errors.New("snapshot: invalid CURRENT pointer")
)

// Info describes a published snapshot.
type Info struct {
	Version     uint64
	Name        string
	Size        int64
	Checksum    uint32
	Compression persistence.Compression
}

// Options configures a Manager.
type Options struct {
	// Compression applied to new snapshots. Restore detects the codec from
	// the blob name.
	Compression persistence.Compression
	// Retain is the number of snapshots kept after a successful Publish.
	// Zero keeps all of them.
	Retain int
}

// Manager publishes and restores snapshots in one BlobStore. It is safe
// for concurrent use; Publish calls on one Manager are serialized. Two
// Managers publishing into the same store must be coordinated by the caller.
type Manager struct {
	store blobstore.BlobStore
	opts  Options

	publishMu sync.Mutex
}

// New creates a Manager over store.
func New(store blobstore.BlobStore, optFns ...func(o *Options)) *Manager {
	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Manager{store: store, opts: opts}
}

// Store returns the underlying blob store.
func (m *Manager) Store() blobstore.BlobStore {
	return m.store
}

// BlobName returns the blob name for version under compression c.
func BlobName(version uint64, c persistence.Compression) string {
	return fmt.Sprintf("%s%020d%s%s", Dir, version, blobExt, c.Extension())
}

// ParseBlobName extracts the version and compression from a blob name.
func ParseBlobName(name string) (uint64, persistence.Compression, error) {
	base, ok := strings.CutPrefix(name, Dir)
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidPointer, name)
	}

	c := persistence.CompressionNone
	for _, candidate := range []persistence.Compression{persistence.CompressionLZ4, persistence.CompressionZstd} {
		if trimmed, ok := strings.CutSuffix(base, candidate.Extension()); ok {
			base, c = trimmed, candidate
			break
		}
	}

	digits, ok := strings.CutSuffix(base, blobExt)
	if !ok {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidPointer, name)
	}
	version, err := strconv.ParseUint(digits, 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidPointer, name)
	}
	return version, c, nil
}

// Versions returns the versions present in the store in ascending order.
// Blobs that do not look like snapshots are ignored.
func (m *Manager) Versions(ctx context.Context) ([]uint64, error) {
	names, err := m.store.List(ctx, Dir)
	if err != nil {
		return nil, err
	}

	versions := make([]uint64, 0, len(names))
	for _, name := range names {
		if v, _, err := ParseBlobName(name); err == nil {
			versions = append(versions, v)
		}
	}
	// Names are zero-padded, so List order is version order.
	return versions, nil
}

// Publish writes v as a new snapshot and points CURRENT at it. A failed
// write is aborted and leaves earlier snapshots in place.
func (m *Manager) Publish(ctx context.Context, v vectorstore.View) (Info, error) {
	m.publishMu.Lock()
	defer m.publishMu.Unlock()

	versions, err := m.Versions(ctx)
	if err != nil {
		return Info{}, err
	}

	var next uint64 = 1
	if len(versions) > 0 {
		next = versions[len(versions)-1] + 1
	}

	info := Info{
		Version:     next,
		Name:        BlobName(next, m.opts.Compression),
		Compression: m.opts.Compression,
	}

	w, err := m.store.Create(ctx, info.Name)
	if err != nil {
		return Info{}, err
	}

	cw := &checksumWriter{w: w, h: hash.NewCRC32C()}
	if err := persistence.EncodeCompressed(cw, v, m.opts.Compression); err != nil {
		_ = w.Abort()
		return Info{}, err
	}
	if err := w.Sync(); err != nil {
		_ = w.Abort()
		return Info{}, err
	}
	if err := w.Close(); err != nil {
		return Info{}, err
	}

	info.Size = cw.n
	info.Checksum = cw.h.Sum32()

	if err := m.store.Put(ctx, CurrentName, []byte(formatPointer(info))); err != nil {
		_ = m.store.Delete(ctx, info.Name)
		return Info{}, err
	}

	if m.opts.Retain > 0 {
		m.prune(ctx, append(versions, next))
	}
	return info, nil
}

// prune deletes all but the newest Retain snapshots. Failures are ignored;
// the next Publish retries them.
func (m *Manager) prune(ctx context.Context, versions []uint64) {
	if len(versions) <= m.opts.Retain {
		return
	}
	names, err := m.store.List(ctx, Dir)
	if err != nil {
		return
	}
	cutoff := versions[len(versions)-m.opts.Retain]
	for _, name := range names {
		if v, _, err := ParseBlobName(name); err == nil && v < cutoff {
			_ = m.store.Delete(ctx, name)
		}
	}
}

// Current reads and parses the CURRENT pointer.
func (m *Manager) Current(ctx context.Context) (Info, error) {
	data, err := blobstore.ReadAll(ctx, m.store, CurrentName)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return Info{}, ErrNoSnapshot
		}
		return Info{}, err
	}
	return parsePointer(string(data))
}

// Restore decodes the snapshot CURRENT points at.
func (m *Manager) Restore(ctx context.Context) (*vectorstore.Buffer, Info, error) {
	info, err := m.Current(ctx)
	if err != nil {
		return nil, Info{}, err
	}
	return m.RestoreInfo(ctx, info)
}

// RestoreInfo decodes the snapshot described by info and verifies its
// checksum. The returned Info carries the blob size.
func (m *Manager) RestoreInfo(ctx context.Context, info Info) (*vectorstore.Buffer, Info, error) {
	blob, err := m.store.Open(ctx, info.Name)
	if err != nil {
		return nil, Info{}, fmt.Errorf("open %s: %w", info.Name, err)
	}
	defer blob.Close()

	info.Size = blob.Size()

	rc, err := blobstore.NewReader(ctx, blob)
	if err != nil {
		return nil, Info{}, err
	}
	defer rc.Close()

	h := hash.NewCRC32C()
	tee := io.TeeReader(rc, h)

	buf, err := persistence.DecodeCompressed(tee, info.Compression)
	if err != nil {
		return nil, Info{}, fmt.Errorf("decode %s: %w", info.Name, err)
	}
	// Hash whatever the decoder did not consume.
	if _, err := io.Copy(io.Discard, tee); err != nil {
		return nil, Info{}, err
	}
	if h.Sum32() != info.Checksum {
		return nil, Info{}, fmt.Errorf("%w: %s", ErrChecksumMismatch, info.Name)
	}
	return buf, info, nil
}

func formatPointer(info Info) string {
	return fmt.Sprintf("%s %08x\n", info.Name, info.Checksum)
}

func parsePointer(s string) (Info, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return Info{}, fmt.Errorf("%w: %q", ErrInvalidPointer, s)
	}

	version, c, err := ParseBlobName(fields[0])
	if err != nil {
		return Info{}, err
	}
	sum, err := strconv.ParseUint(fields[1], 16, 32)
	if err != nil {
		return Info{}, fmt.Errorf("%w: %q", ErrInvalidPointer, s)
	}

	return Info{
		Version:     version,
		Name:        fields[0],
		Checksum:    uint32(sum),
		Compression: c,
	}, nil
}

// checksumWriter hashes and counts the bytes written to w.
type checksumWriter struct {
	w io.Writer
	h stdhash.Hash32
	n int64
}

func (c *checksumWriter) Write(p []byte) (int, error) {
	n, err := c.w.Write(p)
	_, _ = c.h.Write(p[:n])
	c.n += int64(n)
	return n, err
}
