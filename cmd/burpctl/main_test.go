package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/fatih/color"

	"github.com/vango-dev/burp/internal/config"
	"github.com/vango-dev/burp/pkg/mirror"
	"github.com/vango-dev/burp/pkg/schema"
)

func runCLI(t *testing.T, args ...string) (code int, stdout, stderr string) {
	t.Helper()
	var out, errOut bytes.Buffer
	code = run(args, &out, &errOut)
	return code, out.String(), errOut.String()
}

func TestVersionShort(t *testing.T) {
	code, out, _ := runCLI(t, "version", "--short")
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	if out != version+"\n" {
		t.Errorf("output = %q, want %q", out, version+"\n")
	}
}

func TestVersionLong(t *testing.T) {
	code, out, _ := runCLI(t, "version")
	if code != 0 {
		t.Fatalf("exit code = %d", code)
	}
	for _, want := range []string{"Version:", "Library:    burp ", "OS/Arch:"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestConfigInitAndShow(t *testing.T) {
	t.Setenv(config.AddrEnv, "")
	path := filepath.Join(t.TempDir(), "burp.yaml")

	code, out, stderr := runCLI(t, "config", "init", "10.0.0.5", "--config", path)
	if code != 0 {
		t.Fatalf("init exit code = %d, stderr:\n%s", code, stderr)
	}
	if !strings.Contains(out, "wrote "+path) {
		t.Errorf("init output = %q", out)
	}

	code, out, stderr = runCLI(t, "config", "show", "--config", path)
	if code != 0 {
		t.Fatalf("show exit code = %d, stderr:\n%s", code, stderr)
	}
	if !strings.Contains(out, "addr: 10.0.0.5") {
		t.Errorf("show output missing addr:\n%s", out)
	}

	code, _, stderr = runCLI(t, "config", "init", "--config", path)
	if code != 1 {
		t.Fatalf("second init exit code = %d, want 1", code)
	}
	if !strings.Contains(stderr, "already exists") {
		t.Errorf("stderr = %q", stderr)
	}

	code, _, stderr = runCLI(t, "config", "init", "10.0.0.6", "--force", "--config", path)
	if code != 0 {
		t.Fatalf("forced init exit code = %d, stderr:\n%s", code, stderr)
	}
	cfg, err := config.LoadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Addr != "10.0.0.6" {
		t.Errorf("Addr = %q after --force", cfg.Addr)
	}
}

func TestConfigShowFlagOverrides(t *testing.T) {
	t.Setenv(config.AddrEnv, "")
	path := filepath.Join(t.TempDir(), "burp.yaml")
	if err := os.WriteFile(path, []byte("addr: 10.0.0.5\n"), 0644); err != nil {
		t.Fatal(err)
	}

	code, out, stderr := runCLI(t, "config", "show", "--config", path, "--addr", "192.168.1.240", "--log-level", "debug")
	if code != 0 {
		t.Fatalf("exit code = %d, stderr:\n%s", code, stderr)
	}
	if !strings.Contains(out, "addr: 192.168.1.240") || !strings.Contains(out, "level: debug") {
		t.Errorf("overrides not applied:\n%s", out)
	}
}

func TestConfigErrors(t *testing.T) {
	t.Setenv(config.AddrEnv, "")
	dir := t.TempDir()

	write := func(name, body string) string {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(body), 0644); err != nil {
			t.Fatal(err)
		}
		return p
	}

	tests := []struct {
		name string
		args []string
		want []string
	}{
		{
			name: "missing file",
			args: []string{"config", "show", "--config", filepath.Join(dir, "nope.yaml")},
			want: []string{"B100"},
		},
		{
			name: "unknown key",
			args: []string{"config", "show", "--config", write("bad.yaml", "adress: 10.0.0.5\n")},
			want: []string{"B101"},
		},
		{
			name: "no address",
			args: []string{"config", "show", "--config", write("empty.yaml", "")},
			want: []string{"B102", "addr:"},
		},
		{
			name: "bad log level",
			args: []string{"config", "show", "--config", write("ok.yaml", "addr: 10.0.0.5\n"), "--log-level", "loud"},
			want: []string{"B102", "log.level:"},
		},
		{
			name: "bad source",
			args: []string{"program", "camera", "--config", write("ok2.yaml", "addr: 10.0.0.5\n")},
			want: []string{"B301", `"camera"`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, _, stderr := runCLI(t, tt.args...)
			if code != 1 {
				t.Fatalf("exit code = %d, want 1", code)
			}
			for _, want := range tt.want {
				if !strings.Contains(stderr, want) {
					t.Errorf("stderr missing %q:\n%s", want, stderr)
				}
			}
		})
	}
}

func sampleEvent() mirror.ChangeEvent {
	return mirror.ChangeEvent{
		Key: mirror.Key{Kind: "program", ID: "0"},
		Fields: []mirror.FieldChange{
			{Name: "source", Old: schema.U16(3), New: schema.U16(4), Had: true},
			{Name: "label", New: schema.String("Cam")},
		},
	}
}

func TestPrintEvent(t *testing.T) {
	color.NoColor = true

	var buf bytes.Buffer
	printEvent(&buf, sampleEvent())

	got := buf.String()
	for _, want := range []string{"program/0", "source 3 → 4", "label \"Cam\""} {
		if !strings.Contains(got, want) {
			t.Errorf("output missing %q: %q", want, got)
		}
	}
}
