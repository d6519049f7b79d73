package dotenv

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseLine(t *testing.T) {
	cases := []struct {
		in      string
		key     string
		val     string
		skipped bool
	}{
		{in: "KEY=value", key: "KEY", val: "value"},
		{in: "  KEY = value ", key: "KEY", val: "value"},
		{in: "export KEY=value", key: "KEY", val: "value"},
		{in: `KEY="quoted value"`, key: "KEY", val: "quoted value"},
		{in: "KEY='single'", key: "KEY", val: "single"},
		{in: "KEY=", key: "KEY", val: ""},
		{in: "", skipped: true},
		{in: "# comment", skipped: true},
		{in: "=value", skipped: true},
		{in: "no equals sign", skipped: true},
	}
	for _, tc := range cases {
		key, val, ok := parseLine(tc.in)
		if tc.skipped {
			if ok {
				t.Fatalf("parseLine(%q) should be skipped, got %q=%q", tc.in, key, val)
			}
			continue
		}
		if !ok || key != tc.key || val != tc.val {
			t.Fatalf("parseLine(%q) = %q, %q, %v; want %q, %q", tc.in, key, val, ok, tc.key, tc.val)
		}
	}
}

func TestLoadFileMissingIsNoop(t *testing.T) {
	if err := LoadFile(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Fatalf("LoadFile missing file error: %v", err)
	}
}

func TestLoadFileSetsAndPreservesExisting(t *testing.T) {
	envPath := filepath.Join(t.TempDir(), ".env")
	content := "" +
		"# comment\n" +
		"DOTENV_FROM_FILE=loaded\n" +
		"DOTENV_QUOTED=\"hello world\"\n" +
		"export DOTENV_EXPORTED=ok\n" +
		"DOTENV_EXISTING=from_file\n"
	if err := os.WriteFile(envPath, []byte(content), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}

	t.Setenv("DOTENV_EXISTING", "already_set")
	for _, key := range []string{"DOTENV_FROM_FILE", "DOTENV_QUOTED", "DOTENV_EXPORTED"} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}

	if err := LoadFile(envPath); err != nil {
		t.Fatalf("LoadFile error: %v", err)
	}

	if got := os.Getenv("DOTENV_FROM_FILE"); got != "loaded" {
		t.Fatalf("DOTENV_FROM_FILE=%q, want %q", got, "loaded")
	}
	if got := os.Getenv("DOTENV_QUOTED"); got != "hello world" {
		t.Fatalf("DOTENV_QUOTED=%q, want %q", got, "hello world")
	}
	if got := os.Getenv("DOTENV_EXPORTED"); got != "ok" {
		t.Fatalf("DOTENV_EXPORTED=%q, want %q", got, "ok")
	}
	if got := os.Getenv("DOTENV_EXISTING"); got != "already_set" {
		t.Fatalf("DOTENV_EXISTING=%q, want existing value preserved", got)
	}
}
