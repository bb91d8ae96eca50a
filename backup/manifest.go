package backup

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/hupe1980/corestore/blobstore"
	"github.com/hupe1980/corestore/codec"
)

const (
	nameLayout     = "20060102T150405.000000000Z"
	dataSuffix     = "/data"
	manifestMarker = "/manifest."
)

// Manifest describes one backup. It is written next to the data blob and
// named by CURRENT once committed.
type Manifest struct {
	Format      uint32    `json:"format"`
	Name        string    `json:"name"`
	Data        string    `json:"data"`
	CreatedAt   time.Time `json:"created_at"`
	Compression string    `json:"compression"`
	FrameSize   int       `json:"frame_size"`
	Frames      int       `json:"frames"`
	Entries     int64     `json:"entries"`
	Cores       int64     `json:"cores"`
	RawBytes    int64     `json:"raw_bytes"`
	DataBytes   int64     `json:"data_bytes"`
	Checksum    uint32    `json:"checksum"`
}

func defaultName(t time.Time) string {
	return "backup-" + t.UTC().Format(nameLayout)
}

func validBackupName(name string) bool {
	return blobstore.ValidName(name) == nil && !strings.Contains(name, "/")
}

func dataName(name string) string {
	return name + dataSuffix
}

// ManifestName returns the blob name of name's manifest written with c.
func ManifestName(name string, c codec.Codec) string {
	return name + manifestMarker + c.Name()
}

// parseManifestName splits a manifest blob name into backup and codec names.
func parseManifestName(blob string) (string, string, bool) {
	i := strings.LastIndex(blob, manifestMarker)
	if i <= 0 {
		return "", "", false
	}
	name, codecName := blob[:i], blob[i+len(manifestMarker):]
	if strings.Contains(name, "/") || codecName == "" {
		return "", "", false
	}
	return name, codecName, true
}

// ReadManifest loads and validates the manifest stored at blob.
func ReadManifest(ctx context.Context, store blobstore.Store, blob string) (*Manifest, error) {
	_, codecName, ok := parseManifestName(blob)
	if !ok {
		return nil, fmt.Errorf("backup: %q is not a manifest", blob)
	}

	data, err := blobstore.ReadAll(ctx, store, blob)
	if err != nil {
		return nil, fmt.Errorf("backup: read manifest: %w", err)
	}

	var m Manifest
	if err := codec.Decode(codecName, data, &m); err != nil {
		return nil, fmt.Errorf("%w: manifest %s: %v", ErrCorrupt, blob, err)
	}
	if m.Format != FormatVersion {
		return nil, fmt.Errorf("%w: manifest format %d", ErrUnsupportedFormat, m.Format)
	}
	if _, err := ParseCompression(m.Compression); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if m.Data != dataName(m.Name) {
		return nil, fmt.Errorf("%w: manifest names data blob %q", ErrCorrupt, m.Data)
	}
	return &m, nil
}

// Current returns the manifest blob CURRENT points at.
func Current(ctx context.Context, store blobstore.Store) (string, error) {
	data, err := blobstore.ReadAll(ctx, store, blobstore.CurrentName)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return "", ErrNoBackup
		}
		return "", err
	}
	name := strings.TrimSpace(string(data))
	if name == "" {
		return "", ErrNoBackup
	}
	return name, nil
}

// List returns the manifest blob names in the store, oldest first for
// default names.
func List(ctx context.Context, store blobstore.Store) ([]string, error) {
	blobs, err := store.List(ctx, "")
	if err != nil {
		return nil, err
	}
	var manifests []string
	for _, b := range blobs {
		if _, _, ok := parseManifestName(b); ok {
			manifests = append(manifests, b)
		}
	}
	sort.Strings(manifests)
	return manifests, nil
}
