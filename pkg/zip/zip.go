package zip

import (
	"archive/zip"
	"bytes"
	"fmt"
)

// Asset is a single file destined for a story bundle.
type Asset struct {
	Filename string
	MIME     string
	Data     []byte
}

// ArchiveAssets packs the assets into an in-memory zip. Each member carries
// its MIME type as the entry comment so extracted bundles keep the type
// information the artifact endpoints serve.
func ArchiveAssets(assets []Asset) ([]byte, error) {
	buf := &bytes.Buffer{}
	zw := zip.NewWriter(buf)
	for _, asset := range assets {
		hdr := &zip.FileHeader{Name: asset.Filename, Method: zip.Deflate, Comment: asset.MIME}
		w, err := zw.CreateHeader(hdr)
		if err != nil {
			return nil, fmt.Errorf("archive %s: %w", asset.Filename, err)
		}
		if _, err := w.Write(asset.Data); err != nil {
			return nil, fmt.Errorf("archive %s: %w", asset.Filename, err)
		}
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("close archive: %w", err)
	}
	return buf.Bytes(), nil
}
