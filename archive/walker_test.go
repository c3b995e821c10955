package archive

import (
	"archive/zip"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
)

// makeExportArchive builds a zip in the shape message exports come in: message
// bodies grouped by year plus an index file at the root.
func makeExportArchive(t *testing.T, entries map[string]string) string {
	t.Helper()

	zipPath := filepath.Join(t.TempDir(), "export.zip")
	zipFile, err := os.Create(zipPath)
	if err != nil {
		t.Fatalf("Failed to create zip file: %v", err)
	}

	w := zip.NewWriter(zipFile)
	for name, content := range entries {
		fw, err := w.Create(name)
		if err != nil {
			t.Fatalf("Failed to create entry %s: %v", name, err)
		}
		if _, err := fw.Write([]byte(content)); err != nil {
			t.Fatalf("Failed to write entry %s: %v", name, err)
		}
	}
	w.Close()
	zipFile.Close()
	return zipPath
}

func exportEntries() map[string]string {
	return map[string]string{
		"2019/msg0001.html": `<p>first<br/></p>`,
		"2019/msg0002.html": `<p>second</p>`,
		"2020/msg0001.html": `<p>third</p>`,
		"index.txt":         "message index",
	}
}

func TestWalk(t *testing.T) {
	zipPath := makeExportArchive(t, exportEntries())

	t.Run("year_prefix", func(t *testing.T) {
		var visited []string
		err := Walk(zipPath, "2019/", func(archive string, file *zip.File) error {
			if archive != zipPath {
				t.Errorf("archive = %s, want %s", archive, zipPath)
			}
			visited = append(visited, file.Name)
			return nil
		})
		if err != nil {
			t.Fatalf("Walk() error = %v", err)
		}

		sort.Strings(visited)
		want := []string{"2019/msg0001.html", "2019/msg0002.html"}
		if len(visited) != len(want) {
			t.Fatalf("visited %v, want %v", visited, want)
		}
		for i := range want {
			if visited[i] != want[i] {
				t.Errorf("visited[%d] = %s, want %s", i, visited[i], want[i])
			}
		}
	})

	t.Run("empty_prefix_visits_everything", func(t *testing.T) {
		count := 0
		err := Walk(zipPath, "", func(_ string, _ *zip.File) error {
			count++
			return nil
		})
		if err != nil {
			t.Fatalf("Walk() error = %v", err)
		}
		if count != len(exportEntries()) {
			t.Errorf("visited %d entries, want %d", count, len(exportEntries()))
		}
	})

	t.Run("single_message_prefix", func(t *testing.T) {
		var content string
		err := Walk(zipPath, "2020/msg0001.html", func(_ string, file *zip.File) error {
			r, err := file.Open()
			if err != nil {
				return err
			}
			defer r.Close()
			data, err := io.ReadAll(r)
			if err != nil {
				return err
			}
			content = string(data)
			return nil
		})
		if err != nil {
			t.Fatalf("Walk() error = %v", err)
		}
		if content != `<p>third</p>` {
			t.Errorf("entry content = %q", content)
		}
	})

	t.Run("no_match", func(t *testing.T) {
		err := Walk(zipPath, "2021/", func(_ string, _ *zip.File) error {
			t.Error("walkFn called for prefix with no entries")
			return nil
		})
		if err != nil {
			t.Fatalf("Walk() error = %v", err)
		}
	})

	t.Run("os_separator_prefix", func(t *testing.T) {
		// in-archive addressing from the command line arrives with OS
		// separators, entry names always use forward slashes
		count := 0
		err := Walk(zipPath, filepath.Join("2019", "msg0001.html"), func(_ string, _ *zip.File) error {
			count++
			return nil
		})
		if err != nil {
			t.Fatalf("Walk() error = %v", err)
		}
		if count != 1 {
			t.Errorf("visited %d entries, want 1", count)
		}
	})
}

func TestWalk_CallbackError(t *testing.T) {
	zipPath := makeExportArchive(t, exportEntries())

	sentinel := errors.New("stop here")
	count := 0
	err := Walk(zipPath, "2019/", func(_ string, _ *zip.File) error {
		count++
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("Walk() error = %v, want %v", err, sentinel)
	}
	if count != 1 {
		t.Errorf("walk continued after callback error, visited %d", count)
	}
}

func TestWalk_BadArchive(t *testing.T) {
	t.Run("missing_file", func(t *testing.T) {
		if err := Walk(filepath.Join(t.TempDir(), "no-such.zip"), "", func(_ string, _ *zip.File) error { return nil }); err == nil {
			t.Error("Expected error for missing archive")
		}
	})

	t.Run("not_an_archive", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "msg.html")
		if err := os.WriteFile(path, []byte("<p>not a zip</p>"), 0644); err != nil {
			t.Fatalf("Failed to create test file: %v", err)
		}
		if err := Walk(path, "", func(_ string, _ *zip.File) error { return nil }); err == nil {
			t.Error("Expected error for non-zip input")
		}
	})
}

func TestIsSafePath(t *testing.T) {
	tests := []struct {
		name string
		path string
		want bool
	}{
		{"plain_entry", "msg0001.html", true},
		{"nested_entry", "2019/msg0001.html", true},
		{"dot_segment", "2019/./msg0001.html", true},
		{"traversal", "../msg0001.html", false},
		{"nested_traversal", "2019/../../msg0001.html", false},
		{"absolute", "/etc/passwd", false},
		{"backslash_rooted", `\msg0001.html`, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := isSafePath(tt.path); got != tt.want {
				t.Errorf("isSafePath(%q) = %v, want %v", tt.path, got, tt.want)
			}
		})
	}
}

func TestWalk_UnsafeEntry(t *testing.T) {
	// hand-build an archive with a traversal entry name, zip.Writer does not
	// validate names
	zipPath := filepath.Join(t.TempDir(), "evil.zip")
	zipFile, err := os.Create(zipPath)
	if err != nil {
		t.Fatalf("Failed to create zip file: %v", err)
	}
	w := zip.NewWriter(zipFile)
	fw, err := w.CreateHeader(&zip.FileHeader{Name: "../escape.html", Method: zip.Store})
	if err != nil {
		t.Fatalf("Failed to create entry: %v", err)
	}
	if _, err := fw.Write([]byte(`<p>x</p>`)); err != nil {
		t.Fatalf("Failed to write entry: %v", err)
	}
	w.Close()
	zipFile.Close()

	err = Walk(zipPath, "", func(_ string, _ *zip.File) error {
		t.Error("walkFn called for unsafe entry")
		return nil
	})
	if err == nil {
		t.Fatal("Expected error for archive with traversal entry")
	}
	if !strings.Contains(err.Error(), "escape.html") && !errors.Is(err, zip.ErrInsecurePath) {
		t.Errorf("Unexpected error: %v", err)
	}
}
