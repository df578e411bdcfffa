package docker

import (
	"archive/tar"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"time"

	"github.com/docker/docker/api/types"
)

// maxArtifactBytes caps how much of a single file is read back from a sandbox.
const maxArtifactBytes = 1 << 20

var errArtifactTooLarge = errors.New("artifact exceeds size limit")

var copyOptions = types.CopyToContainerOptions{AllowOverwriteDirWithFile: true}

type fileSpec struct {
	Name string
	Mode int64
	Data []byte
}

func makeArchive(files []fileSpec) (io.Reader, error) {
	var buf bytes.Buffer
	tw := tar.NewWriter(&buf)

	now := time.Now()
	for _, file := range files {
		mode := file.Mode
		if mode == 0 {
			mode = 0o644
		}
		header := &tar.Header{
			Typeflag: tar.TypeReg,
			Name:     file.Name,
			Mode:     mode,
			Size:     int64(len(file.Data)),
			ModTime:  now,
		}
		if err := tw.WriteHeader(header); err != nil {
			return nil, fmt.Errorf("archive %s: %w", file.Name, err)
		}
		if _, err := tw.Write(file.Data); err != nil {
			return nil, fmt.Errorf("archive %s: %w", file.Name, err)
		}
	}

	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return &buf, nil
}

// readArchivedFile returns the first regular file in a tar stream. Anything
// else the sandbox left at that path (a directory, a symlink) is rejected.
func readArchivedFile(r io.Reader) ([]byte, error) {
	tr := tar.NewReader(r)
	for {
		header, err := tr.Next()
		if errors.Is(err, io.EOF) {
			return nil, errors.New("no regular file in archive")
		}
		if err != nil {
			return nil, fmt.Errorf("read archive: %w", err)
		}
		if header.Typeflag != tar.TypeReg {
			continue
		}
		if header.Size > maxArtifactBytes {
			return nil, errArtifactTooLarge
		}
		return io.ReadAll(io.LimitReader(tr, maxArtifactBytes))
	}
}

// collect copies the named files out of a stopped container. Files the
// program never wrote, or wrote too large, are left out of the map.
func (s *sandbox) collect(ctx context.Context, id, workdir string, names []string) map[string][]byte {
	if len(names) == 0 {
		return nil
	}

	artifacts := make(map[string][]byte, len(names))
	for _, name := range names {
		rc, _, err := s.cli.CopyFromContainer(ctx, id, path.Join(workdir, name))
		if err != nil {
			continue
		}
		data, err := readArchivedFile(rc)
		rc.Close()
		if err != nil {
			continue
		}
		artifacts[name] = data
	}
	return artifacts
}
