package main

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"docscan/internal/geom"
	"docscan/internal/imgcodec"
)

func TestOutputPath(t *testing.T) {
	abs := filepath.Join(t.TempDir(), "out")
	tests := []struct {
		name       string
		filename   string
		outputDir  string
		overwrite  bool
		format     imgcodec.Format
		wantPath   string
		wantFormat imgcodec.Format
		wantErr    bool
	}{
		{"suffix", "photos/receipt.png", "", false, imgcodec.JPEG, "photos/receipt_scanned.jpg", imgcodec.JPEG, false},
		{"suffix png", "receipt.jpeg", "", false, imgcodec.PNG, "receipt_scanned.png", imgcodec.PNG, false},
		{"overwrite keeps extension format", "a/b.png", "", true, imgcodec.JPEG, "a/b.png", imgcodec.PNG, false},
		{"overwrite jpeg", "a/b.JPG", "", true, imgcodec.PNG, "a/b.JPG", imgcodec.JPEG, false},
		{"overwrite tiff refused", "a/b.tiff", "", true, imgcodec.JPEG, "", "", true},
		{"overwrite webp refused", "a/b.webp", "", true, imgcodec.PNG, "", "", true},
		{"tiff to suffix", "a/b.tif", "", false, imgcodec.PNG, "a/b_scanned.png", imgcodec.PNG, false},
		{"absolute dir", "in/page.jpg", abs, false, imgcodec.JPEG, filepath.Join(abs, "page.jpg"), imgcodec.JPEG, false},
		{"relative dir beside input dir", "scans/in/page.png", "done", false, imgcodec.JPEG, filepath.Join("scans", "done", "page.jpg"), imgcodec.JPEG, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, f, err := outputPath(tt.filename, tt.outputDir, tt.overwrite, tt.format)
			if (err != nil) != tt.wantErr {
				t.Fatalf("outputPath() error = %v, wantErr %v", err, tt.wantErr)
			}
			if path != tt.wantPath || f != tt.wantFormat {
				t.Errorf("outputPath() = %q, %q; want %q, %q", path, f, tt.wantPath, tt.wantFormat)
			}
		})
	}
}

func TestExpandDirectory(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{"a.jpg", "b.PNG", "c.webp", "notes.txt", "a_scanned.jpg", "a.jpg-analysis.jpg"} {
		if err := os.WriteFile(filepath.Join(dir, name), nil, 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "sub.jpg"), 0o755); err != nil {
		t.Fatal(err)
	}

	files, err := expandDirectory(dir)
	if err != nil {
		t.Fatal(err)
	}
	var names []string
	for _, f := range files {
		names = append(names, filepath.Base(f))
	}
	sort.Strings(names)
	if got, want := strings.Join(names, ","), "a.jpg,b.PNG,c.webp"; got != want {
		t.Errorf("expandDirectory() = %s, want %s", got, want)
	}
}

func TestWriteCornerData(t *testing.T) {
	path := filepath.Join(t.TempDir(), "page.jpg.txt")
	if err := writeCornerData(path, geom.Rect(1, 2, 30, 40)); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(data)), "\r\n")
	if len(lines) != 4 {
		t.Fatalf("got %d lines, want 4: %q", len(lines), data)
	}
	if lines[0] != "1.000000 2.000000" || lines[2] != "30.000000 40.000000" {
		t.Errorf("lines = %q", lines)
	}
}
