package process

import (
	"path/filepath"
	"testing"

	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"mfx/config"
	"mfx/message"
	"mfx/state"
)

func setupTestEnvForOutputPath(t *testing.T, noDirs, transliterate bool, template string) *state.LocalEnv {
	t.Helper()
	logger := zaptest.NewLogger(t, zaptest.WrapOptions(zap.AddCaller(), zap.AddCallerSkip(1)))
	cfg, err := config.LoadConfiguration("")
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	cfg.Document.FileNameTransliterate = transliterate
	cfg.Document.OutputNameTemplate = template

	return &state.LocalEnv{
		Log:    logger,
		Cfg:    cfg,
		NoDirs: noDirs,
	}
}

func testMessageForPath() *message.Message {
	return &message.Message{
		SrcName: "messages/2019/msg0042.html",
		ID:      "0190a6e2-1111-7222-8333-444455556666",
	}
}

func TestBuildOutputPath_SimpleCase_NoDirs(t *testing.T) {
	m := testMessageForPath()
	env := setupTestEnvForOutputPath(t, true, false, "")

	result := buildOutputPath(m, "messages/2019/msg0042.html", "/output", env)
	expected := filepath.Join("/output", "msg0042.html")

	if result != expected {
		t.Errorf("buildOutputPath() = %q, want %q", result, expected)
	}
}

func TestBuildOutputPath_SimpleCase_WithDirs(t *testing.T) {
	m := testMessageForPath()
	env := setupTestEnvForOutputPath(t, false, false, "")

	result := buildOutputPath(m, "messages/2019/msg0042.html", "/output", env)
	expected := filepath.Join("/output", "messages", "2019", "msg0042.html")

	if result != expected {
		t.Errorf("buildOutputPath() = %q, want %q", result, expected)
	}
}

func TestBuildOutputPath_Transliterate(t *testing.T) {
	m := testMessageForPath()
	env := setupTestEnvForOutputPath(t, true, true, "")

	result := buildOutputPath(m, "Автор.html", "/output", env)
	expected := filepath.Join("/output", "avtor.html")

	if result != expected {
		t.Errorf("buildOutputPath() = %q, want %q", result, expected)
	}
}

func TestBuildOutputPath_Template(t *testing.T) {
	m := testMessageForPath()
	env := setupTestEnvForOutputPath(t, true, false, "normalized/{{.SourceFile}}-{{.MessageID}}")

	result := buildOutputPath(m, "messages/2019/msg0042.html", "/output", env)
	expected := filepath.Join("/output", "normalized", "msg0042-"+m.ID+".html")

	if result != expected {
		t.Errorf("buildOutputPath() = %q, want %q", result, expected)
	}
}

func TestBuildOutputPath_BadTemplateFallsBack(t *testing.T) {
	m := testMessageForPath()
	env := setupTestEnvForOutputPath(t, true, false, "{{.NoSuchField}}")

	result := buildOutputPath(m, "msg0042.html", "/output", env)
	expected := filepath.Join("/output", "msg0042.html")

	if result != expected {
		t.Errorf("buildOutputPath() = %q, want %q", result, expected)
	}
}

func TestDetermineOutputDir(t *testing.T) {
	t.Run("nodirs", func(t *testing.T) {
		env := setupTestEnvForOutputPath(t, true, false, "")
		if result := determineOutputDir("messages/2019/msg.html", "/output", env); result != "/output" {
			t.Errorf("determineOutputDir() = %q, want %q", result, "/output")
		}
	})

	t.Run("with_dirs", func(t *testing.T) {
		env := setupTestEnvForOutputPath(t, false, false, "")
		expected := filepath.Join("/output", "messages", "2019")
		if result := determineOutputDir("messages/2019/msg.html", "/output", env); result != expected {
			t.Errorf("determineOutputDir() = %q, want %q", result, expected)
		}
	})
}

func TestBuildDefaultFileName(t *testing.T) {
	tests := []struct {
		name          string
		src           string
		transliterate bool
		expected      string
	}{
		{"simple", "msg.html", false, "msg.html"},
		{"with_path", "path/to/msg.html", false, "msg.html"},
		{"htm_extension", "msg.htm", false, "msg.html"},
		{"transliterate", "Автор.html", true, "avtor.html"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestEnvForOutputPath(t, true, tt.transliterate, "")

			result := buildDefaultFileName(tt.src, env)
			if result != tt.expected {
				t.Errorf("buildDefaultFileName() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestSplitAndCleanPath(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected []string
	}{
		{"simple_path", "year/msg", []string{"year", "msg"}},
		{"single_segment", "msg", []string{"msg"}},
		{"with_trailing_slash", "year/msg/", []string{"year", "msg"}},
		{"three_levels", "archive/year/msg", []string{"archive", "year", "msg"}},
		{"empty_path", "", []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := splitAndCleanPath(tt.path)
			if len(result) != len(tt.expected) {
				t.Errorf("splitAndCleanPath() length = %d, want %d", len(result), len(tt.expected))
				return
			}
			for i := range result {
				if result[i] != tt.expected[i] {
					t.Errorf("splitAndCleanPath()[%d] = %q, want %q", i, result[i], tt.expected[i])
				}
			}
		})
	}
}

func TestCleanPathSegment(t *testing.T) {
	tests := []struct {
		name          string
		segment       string
		transliterate bool
		expected      string
	}{
		{"simple_segment", "year", false, "year"},
		{"with_spaces", "My Messages", false, "My Messages"},
		{"transliterate_cyrillic", "Автор", true, "avtor"},
		{"special_chars", "msg:name", false, "msgname"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := setupTestEnvForOutputPath(t, true, tt.transliterate, "")

			result := cleanPathSegment(tt.segment, env)
			if result != tt.expected {
				t.Errorf("cleanPathSegment() = %q, want %q", result, tt.expected)
			}
		})
	}
}

func TestAssemblePathWithSubdirs(t *testing.T) {
	t.Run("subdirectories", func(t *testing.T) {
		env := setupTestEnvForOutputPath(t, true, false, "")
		expected := filepath.Join("/output", "year", "msg.html")
		if result := assemblePathWithSubdirs("/output", "year/msg", env); result != expected {
			t.Errorf("assemblePathWithSubdirs() = %q, want %q", result, expected)
		}
	})

	t.Run("empty_path", func(t *testing.T) {
		env := setupTestEnvForOutputPath(t, true, false, "")
		if result := assemblePathWithSubdirs("/output", "", env); result != "/output" {
			t.Errorf("assemblePathWithSubdirs() = %q, want %q", result, "/output")
		}
	})
}
