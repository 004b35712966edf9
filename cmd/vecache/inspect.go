package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/vecache"
	"github.com/hupe1980/vecache/blobstore"
	"github.com/hupe1980/vecache/persistence"
	"github.com/hupe1980/vecache/snapshot"
)

func newInspectCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect [name]",
		Short: "Show the header and keys of a snapshot",
		Long: "Read a snapshot from the configured backend and print its dimension, vector count and sizes.\n" +
			"Without a name the configured snapshot name is used. --current follows the CURRENT pointer instead.",
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			name := a.cfg.SnapshotName
			if len(args) == 1 {
				name = args[0]
			}
			return a.runInspect(cmd, name)
		},
	}

	cmd.Flags().Bool("current", false, "inspect the snapshot named by CURRENT")
	cmd.Flags().Bool("versions", false, "list published snapshot versions")
	cmd.Flags().Int("keys", 0, "print up to this many keys (decodes the whole snapshot)")

	return cmd
}

func (a *app) runInspect(cmd *cobra.Command, name string) error {
	ctx := cmd.Context()
	out := cmd.OutOrStdout()

	bs, err := openBlobStore(ctx, a.cfg)
	if err != nil {
		return err
	}

	current, _ := cmd.Flags().GetBool("current")
	versions, _ := cmd.Flags().GetBool("versions")
	numKeys, _ := cmd.Flags().GetInt("keys")

	c, err := a.cfg.ParseCompression()
	if err != nil {
		return err
	}
	c = compressionFor(name, c)

	if current || versions {
		m := snapshot.New(bs)
		if versions {
			vs, err := m.Versions(ctx)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(out, "versions:    %s\n", joinUints(vs))
		}

		info, err := m.Current(ctx)
		if errors.Is(err, snapshot.ErrNoSnapshot) && !current {
			_, _ = fmt.Fprintln(out, "current:     none")
			return nil
		}
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintf(out, "current:     %d (%s, crc32c %08x)\n", info.Version, info.Name, info.Checksum)
		if !current {
			return nil
		}
		name, c = info.Name, info.Compression
	}

	h, size, err := readHeader(ctx, bs, name, c)
	if err != nil {
		return fmt.Errorf("inspect %s: %w", name, err)
	}

	_, _ = fmt.Fprintf(out, "snapshot:    %s\n", name)
	_, _ = fmt.Fprintf(out, "compression: %s\n", c)
	_, _ = fmt.Fprintf(out, "dimension:   %d\n", h.Dim)
	_, _ = fmt.Fprintf(out, "vectors:     %d\n", h.Count)
	_, _ = fmt.Fprintf(out, "stored:      %d bytes\n", size)
	_, _ = fmt.Fprintf(out, "encoded:     %d bytes\n", persistence.EncodedSize(int(h.Dim), int(h.Count)))

	if numKeys <= 0 {
		return nil
	}

	s, err := vecache.LoadBlob(ctx, bs, name, c, vecache.WithLogger(a.logger))
	if err != nil {
		return err
	}
	defer s.Close()

	keys := s.Keys()
	if len(keys) > numKeys {
		keys = keys[:numKeys]
	}
	_, _ = fmt.Fprintf(out, "keys:        %s\n", joinUints(keys))
	return nil
}

// readHeader decodes only the fixed header and returns it with the stored
// blob size.
func readHeader(ctx context.Context, bs blobstore.BlobStore, name string, c persistence.Compression) (persistence.Header, int64, error) {
	blob, err := bs.Open(ctx, name)
	if err != nil {
		return persistence.Header{}, 0, err
	}
	defer blob.Close()

	r, err := blobstore.NewReader(ctx, blob)
	if err != nil {
		return persistence.Header{}, 0, err
	}
	defer r.Close()

	dr, err := c.NewReader(r)
	if err != nil {
		return persistence.Header{}, 0, err
	}
	defer dr.Close()

	h, err := persistence.ReadHeader(dr)
	return h, blob.Size(), err
}

// compressionFor infers the compression from a blob name suffix.
func compressionFor(name string, fallback persistence.Compression) persistence.Compression {
	for _, c := range []persistence.Compression{persistence.CompressionLZ4, persistence.CompressionZstd} {
		if strings.HasSuffix(name, c.Extension()) {
			return c
		}
	}
	return fallback
}

func joinUints(vs []uint64) string {
	if len(vs) == 0 {
		return "none"
	}
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, " ")
}
