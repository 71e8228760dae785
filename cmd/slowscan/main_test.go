package main

import (
	"bytes"
	"encoding/binary"
	"encoding/json"
	"image"
	"image/png"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/MrWong99/slowscan/internal/transmit"
	"github.com/MrWong99/slowscan/pkg/sstv"
)

// runCLI executes the root command with args and returns stdout and stderr.
func runCLI(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	prev := slog.Default()
	t.Cleanup(func() { slog.SetDefault(prev) })

	var stdout, stderr bytes.Buffer
	cmd := newRootCommand()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, image.NewGray(image.Rect(0, 0, w, h))); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
}

func TestRoot_Help(t *testing.T) {
	stdout, _, err := runCLI(t)
	if err != nil {
		t.Fatalf("root: %v", err)
	}
	for _, sub := range []string{"encode", "modes", "serve", "repeat"} {
		if !strings.Contains(stdout, sub) {
			t.Errorf("help does not list %q:\n%s", sub, stdout)
		}
	}
}

func TestModes_Table(t *testing.T) {
	stdout, _, err := runCLI(t, "modes")
	if err != nil {
		t.Fatalf("modes: %v", err)
	}
	for _, want := range []string{"MartinM1", "ScottieDX", "PD290", "Robot36", "320x256", "0x2C"} {
		if !strings.Contains(stdout, want) {
			t.Errorf("table missing %q:\n%s", want, stdout)
		}
	}
}

func TestModes_JSON(t *testing.T) {
	stdout, _, err := runCLI(t, "modes", "--json")
	if err != nil {
		t.Fatalf("modes --json: %v", err)
	}
	var rows []modeRow
	if err := json.Unmarshal([]byte(stdout), &rows); err != nil {
		t.Fatalf("decode: %v\n%s", err, stdout)
	}
	if len(rows) != sstv.DefaultRegistry().Len() {
		t.Errorf("got %d modes, want %d", len(rows), sstv.DefaultRegistry().Len())
	}
	for _, r := range rows {
		if r.Duration <= 0 {
			t.Errorf("%s: duration %v", r.Name, r.Duration)
		}
	}
}

func TestEncode_WritesWAV(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "pic.png")
	writePNG(t, in, 160, 120)

	stdout, _, err := runCLI(t, "encode", "--mode", "Robot8BW", "--rate", "8000", in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	out := filepath.Join(dir, "pic.wav")
	if !strings.Contains(stdout, out) {
		t.Errorf("stdout %q does not name %s", stdout, out)
	}
	data, err := os.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if rate := binary.LittleEndian.Uint32(data[24:]); rate != 8000 {
		t.Errorf("sample rate = %d, want 8000", rate)
	}
}

func TestEncode_AutoModeJSON(t *testing.T) {
	dir := t.TempDir()
	outDir := t.TempDir()
	a := filepath.Join(dir, "a_R36.png")
	b := filepath.Join(dir, "b.png")
	writePNG(t, a, 320, 240)
	writePNG(t, b, 160, 120)

	stdout, _, err := runCLI(t, "encode", "--mode", "auto", "--rate", "8000", "--out-dir", outDir, "--json", "-j", "2", a, b)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var results []transmit.Result
	if err := json.Unmarshal([]byte(stdout), &results); err != nil {
		t.Fatalf("decode: %v\n%s", err, stdout)
	}
	if len(results) != 2 {
		t.Fatalf("got %d results", len(results))
	}
	if results[0].Mode != "Robot36" {
		t.Errorf("a_R36.png mode = %q, want Robot36", results[0].Mode)
	}
	for _, r := range results {
		if filepath.Dir(r.Output) != outDir {
			t.Errorf("%s written to %s, want %s", r.Input, r.Output, outDir)
		}
	}
}

func TestEncode_Stdout(t *testing.T) {
	in := filepath.Join(t.TempDir(), "pic.png")
	writePNG(t, in, 160, 120)

	stdout, _, err := runCLI(t, "encode", "-m", "Robot8BW", "-r", "8000", "-b", "8", "--out", "-", in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.HasPrefix(stdout, "RIFF") {
		t.Fatalf("stdout is not a WAV file: %q", stdout[:min(len(stdout), 12)])
	}
	if bits := binary.LittleEndian.Uint16([]byte(stdout[34:])); bits != 8 {
		t.Errorf("bits = %d, want 8", bits)
	}
}

func TestEncode_RawSegments(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "pic.png")
	out := filepath.Join(dir, "pic.seg")
	writePNG(t, in, 160, 120)

	if _, _, err := runCLI(t, "encode", "-m", "Robot8BW", "--raw-segments", "-o", out, in); err != nil {
		t.Fatalf("encode: %v", err)
	}
	info, err := os.Stat(out)
	if err != nil {
		t.Fatal(err)
	}
	if want := int64(8 * (13 + 120*161)); info.Size() != want {
		t.Errorf("raw segments = %d bytes, want %d", info.Size(), want)
	}
}

func TestEncode_ConfigFile(t *testing.T) {
	dir := t.TempDir()
	cfgPath := filepath.Join(dir, "slowscan.toml")
	if err := os.WriteFile(cfgPath, []byte("[encode]\nmode = \"Robot8BW\"\nsample_rate = 11025\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	in := filepath.Join(dir, "pic.png")
	writePNG(t, in, 160, 120)

	stdout, _, err := runCLI(t, "--config", cfgPath, "encode", "--json", in)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	var results []transmit.Result
	if err := json.Unmarshal([]byte(stdout), &results); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if results[0].Mode != "Robot8BW" || !strings.HasPrefix(results[0].Format, "11025Hz") {
		t.Errorf("result = %+v, want config mode and rate", results[0])
	}
}

func TestEncode_Errors(t *testing.T) {
	dir := t.TempDir()
	small := filepath.Join(dir, "small.png")
	writePNG(t, small, 160, 120)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"too small", []string{"encode", "-m", "MartinM1", small}, "needs at least 320x256"},
		{"unknown mode", []string{"encode", "-m", "MartinM9", small}, "MartinM9"},
		{"bits", []string{"encode", "-b", "12", small}, "encode.bits"},
		{"missing file", []string{"encode", filepath.Join(dir, "nope.png")}, "nope.png"},
		{"out with many", []string{"encode", "-o", "x.wav", small, small}, "--out takes exactly one image"},
		{"raw both", []string{"encode", "--raw-segments", "--raw-floats", small}, "raw-floats"},
		{"no images", []string{"encode"}, "requires at least 1 arg"},
		{"log level", []string{"--log-level", "loud", "modes"}, "log.level"},
		{"config ext", []string{"--config", filepath.Join(dir, "c.ini"), "modes"}, "c.ini"},
		{"repeat dir", []string{"repeat", filepath.Join(dir, "missing")}, "missing"},
		{"repeat rate", []string{"repeat", "-r", "5", dir}, "repeater.sample_rate"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := runCLI(t, tc.args...)
			if err == nil {
				t.Fatal("expected an error")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Errorf("err = %v, want it to mention %q", err, tc.want)
			}
		})
	}
}
