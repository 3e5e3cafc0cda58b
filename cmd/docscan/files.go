package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"docscan/internal/geom"
	"docscan/internal/imgcodec"
)

func fileExists(filename string) bool {
	_, err := os.Stat(filename)
	return !os.IsNotExist(err)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func expandDirectory(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}

	var imageFiles []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		if isImageFile(path) && !isDerived(path) {
			imageFiles = append(imageFiles, path)
		}
	}
	return imageFiles, nil
}

func isImageFile(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".jpg", ".jpeg", ".png", ".tif", ".tiff", ".bmp", ".webp":
		return true
	}
	return false
}

// isDerived reports files written by an earlier run, so rerunning over a
// folder does not scan its own output.
func isDerived(path string) bool {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	return strings.HasSuffix(base, scannedSuffix) || strings.HasSuffix(base, analysisSuffix)
}

const (
	scannedSuffix  = "_scanned"
	analysisSuffix = "-analysis"
)

// outputPath decides where the scan of filename goes and in which format.
// A relative outputDir is resolved next to the input's directory. Overwriting
// keeps the input's name, so its extension must be one Encode can write.
func outputPath(filename, outputDir string, overwrite bool, format imgcodec.Format) (string, imgcodec.Format, error) {
	ext := filepath.Ext(filename)
	switch {
	case overwrite:
		f, err := imgcodec.ParseFormat(ext)
		if err != nil {
			return "", "", fmt.Errorf("cannot overwrite %s: only jpeg and png can be written", filename)
		}
		return filename, f, nil
	case outputDir != "":
		dir := outputDir
		if !filepath.IsAbs(outputDir) {
			dir = filepath.Join(filepath.Dir(filepath.Dir(filename)), outputDir)
		}
		name := strings.TrimSuffix(filepath.Base(filename), ext) + format.Ext()
		return filepath.Join(dir, name), format, nil
	default:
		return strings.TrimSuffix(filename, ext) + scannedSuffix + format.Ext(), format, nil
	}
}

func analysisPath(filename string) string {
	return filename + analysisSuffix + ".jpg"
}

// writeCornerData stores the corners, one "x y" pair per line in TL, TR, BR,
// BL order, for tools that apply the crop themselves.
func writeCornerData(filename string, c geom.OrderedCorners) error {
	file, err := os.Create(filename)
	if err != nil {
		return err
	}
	defer file.Close()

	for _, p := range c.Array() {
		if _, err := fmt.Fprintf(file, "%f %f\r\n", p[0], p[1]); err != nil {
			return err
		}
	}
	return file.Close()
}
