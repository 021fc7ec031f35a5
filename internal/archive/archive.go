// Package archive implements the single-entry streaming tar.gz codec used
// to package a single database dump file before upload.
package archive

import (
	"archive/tar"
	"compress/gzip"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

// CompressToTarGz streams srcPath into a tar.gz archive at dstPath,
// containing a single entry named after srcPath's base name. If srcPath
// already ends in .tar.gz it is copied through unchanged, matching the
// idempotence rule: re-archiving an already-packaged dump is a no-op.
func CompressToTarGz(srcPath, dstPath string) (string, error) {
	if strings.HasSuffix(srcPath, ".tar.gz") {
		if srcPath == dstPath {
			return srcPath, nil
		}
		return srcPath, copyFile(srcPath, dstPath)
	}

	if !strings.HasSuffix(dstPath, ".tar.gz") {
		dstPath += ".tar.gz"
	}

	srcFile, err := os.Open(srcPath)
	if err != nil {
		return "", fmt.Errorf("archive: open source: %w", err)
	}
	defer srcFile.Close()

	info, err := srcFile.Stat()
	if err != nil {
		return "", fmt.Errorf("archive: stat source: %w", err)
	}

	dstFile, err := os.Create(dstPath)
	if err != nil {
		return "", fmt.Errorf("archive: create destination: %w", err)
	}
	defer dstFile.Close()

	gz := gzip.NewWriter(dstFile)
	tw := tar.NewWriter(gz)

	hdr := &tar.Header{
		Name: filepath.Base(srcPath),
		Mode: 0644,
		Size: info.Size(),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return "", fmt.Errorf("archive: write tar header: %w", err)
	}
	if _, err := io.Copy(tw, srcFile); err != nil {
		return "", fmt.Errorf("archive: write tar entry: %w", err)
	}
	if err := tw.Close(); err != nil {
		return "", fmt.Errorf("archive: close tar writer: %w", err)
	}
	if err := gz.Close(); err != nil {
		return "", fmt.Errorf("archive: close gzip writer: %w", err)
	}

	return dstPath, nil
}

// DecompressTarGz extracts every entry inside srcPath's tar.gz archive into
// dstDir, returning the extracted paths in tar iteration order. Callers
// treat a single returned path as the payload itself; more than one means
// the archive held a whole directory tree, not a single dump file.
func DecompressTarGz(srcPath, dstDir string) ([]string, error) {
	f, err := os.Open(srcPath)
	if err != nil {
		return nil, fmt.Errorf("archive: open archive: %w", err)
	}
	defer f.Close()

	gz, err := gzip.NewReader(f)
	if err != nil {
		return nil, fmt.Errorf("archive: open gzip reader: %w", err)
	}
	defer gz.Close()

	if err := os.MkdirAll(dstDir, 0755); err != nil {
		return nil, fmt.Errorf("archive: create destination dir: %w", err)
	}

	tr := tar.NewReader(gz)
	var paths []string
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("archive: read tar entry: %w", err)
		}
		if hdr.Typeflag == tar.TypeDir {
			continue
		}

		outPath := filepath.Join(dstDir, filepath.Base(hdr.Name))
		out, err := os.Create(outPath)
		if err != nil {
			return nil, fmt.Errorf("archive: create output file: %w", err)
		}
		if _, err := io.Copy(out, tr); err != nil {
			out.Close()
			return nil, fmt.Errorf("archive: extract entry: %w", err)
		}
		out.Close()

		paths = append(paths, outPath)
	}

	if len(paths) == 0 {
		return nil, fmt.Errorf("archive: no file entries found")
	}
	return paths, nil
}

func copyFile(srcPath, dstPath string) error {
	src, err := os.Open(srcPath)
	if err != nil {
		return fmt.Errorf("archive: open source for copy: %w", err)
	}
	defer src.Close()

	dst, err := os.Create(dstPath)
	if err != nil {
		return fmt.Errorf("archive: create destination for copy: %w", err)
	}
	defer dst.Close()

	if _, err := io.Copy(dst, src); err != nil {
		return fmt.Errorf("archive: copy: %w", err)
	}
	return nil
}
