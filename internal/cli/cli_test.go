package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dshills/spriteforge/internal/asset/archive"
	"github.com/dshills/spriteforge/internal/asset/aseprite"
	"github.com/dshills/spriteforge/internal/asset/aseprite/asepritetest"
	"github.com/dshills/spriteforge/internal/asset/blob"
	"github.com/dshills/spriteforge/internal/config"
	"github.com/dshills/spriteforge/internal/logging"
	"github.com/dshills/spriteforge/internal/watcher"
)

func spriteFile(red uint8) []byte {
	return asepritetest.New(4, 4, aseprite.DepthRGBA).
		Layer("body", aseprite.LayerNormal, 0).
		Tags(aseprite.Tag{Name: "walk", From: 0, To: 1, Direction: aseprite.Forward}).
		Frame(100).
		RawCel(0, 0, 0, 2, 2, asepritetest.RGBA(2, 2, red, 0, 0, 255)).
		Frame(100).
		LinkedCel(0, 0).
		Bytes()
}

func writeSprite(t *testing.T, dir, name string, red uint8) string {
	t.Helper()
	path := filepath.Join(dir, name+".aseprite")
	if err := os.WriteFile(path, spriteFile(red), 0o644); err != nil {
		t.Fatalf("WriteFile error = %v", err)
	}
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCmd("test")
	cmd.SetOut(&out)
	cmd.SetErr(io.Discard)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func spriteNames(t *testing.T, path string) []string {
	t.Helper()
	tr, _, err := archive.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile(%s) error = %v", path, err)
	}
	ids, _ := tr.Children(tr.Root())
	names := make([]string, len(ids))
	for i, id := range ids {
		n, _ := tr.Get(id)
		names[i] = n.Name()
	}
	return names
}

func TestImportCommand(t *testing.T) {
	dir := t.TempDir()
	hero := writeSprite(t, dir, "hero", 255)
	slime := writeSprite(t, dir, "slime", 10)
	out := filepath.Join(dir, "game.sfa")

	stdout, err := execute(t, "import", hero, slime, "-o", out)
	if err != nil {
		t.Fatalf("import error = %v", err)
	}
	if !strings.Contains(stdout, "Wrote 2 sprites") {
		t.Errorf("stdout = %q", stdout)
	}
	if got := spriteNames(t, out); len(got) != 2 || got[0] != "hero" || got[1] != "slime" {
		t.Errorf("sprites = %v, want [hero slime]", got)
	}
}

func TestImportCommandErrors(t *testing.T) {
	dir := t.TempDir()
	hero := writeSprite(t, dir, "hero", 255)
	bad := filepath.Join(dir, "bad.aseprite")
	if err := os.WriteFile(bad, []byte("not a sprite"), 0o644); err != nil {
		t.Fatal(err)
	}
	out := filepath.Join(dir, "game.sfa")

	tests := []struct {
		name string
		args []string
	}{
		{"no output", []string{"import", hero}},
		{"no inputs", []string{"import", "-o", out}},
		{"missing file", []string{"import", filepath.Join(dir, "ghost.aseprite"), "-o", out}},
		{"corrupt file", []string{"import", hero, bad, "-o", out}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := execute(t, tt.args...); err == nil {
				t.Error("command succeeded")
			}
			if _, err := os.Stat(out); !errors.Is(err, os.ErrNotExist) {
				t.Errorf("archive written despite failure: %v", err)
			}
		})
	}
}

func TestInspectCommand(t *testing.T) {
	dir := t.TempDir()
	out := filepath.Join(dir, "game.sfa")
	if _, err := execute(t, "import", writeSprite(t, dir, "hero", 255), "-o", out); err != nil {
		t.Fatal(err)
	}

	stdout, err := execute(t, "inspect", out)
	if err != nil {
		t.Fatalf("inspect error = %v", err)
	}
	for _, want := range []string{
		"format:  spriteforge",
		"version: 2",
		"nodes:   6",
		"kinds:   frame=2 group=2 layer=1 sprite=1",
		"blobs:   1",
		"sprite color_depth=32",
		"name=walk",
	} {
		if !strings.Contains(stdout, want) {
			t.Errorf("inspect output missing %q:\n%s", want, stdout)
		}
	}

	summary, err := execute(t, "inspect", "--summary", out)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(summary, "sprite color_depth") {
		t.Errorf("--summary printed the tree:\n%s", summary)
	}
}

func TestConvertCommand(t *testing.T) {
	dir := t.TempDir()
	hero := writeSprite(t, dir, "hero", 255)
	first := filepath.Join(dir, "hero.sfa")
	second := filepath.Join(dir, "copy.sfa")

	if _, err := execute(t, "convert", hero, first); err != nil {
		t.Fatalf("convert aseprite error = %v", err)
	}
	if _, err := execute(t, "convert", first, second); err != nil {
		t.Fatalf("convert archive error = %v", err)
	}
	a, _ := os.ReadFile(first)
	b, _ := os.ReadFile(second)
	if !bytes.Equal(a, b) {
		t.Error("converting an archive changed its bytes")
	}

	if _, err := execute(t, "convert", filepath.Join(dir, "ghost.sfa"), second); err == nil {
		t.Error("convert of a missing file succeeded")
	}
}

func TestConfigFlag(t *testing.T) {
	dir := t.TempDir()
	cfg := filepath.Join(dir, "spriteforge.toml")
	if err := os.WriteFile(cfg, []byte("[import]\nconcurrency = 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	hero := writeSprite(t, dir, "hero", 255)
	out := filepath.Join(dir, "game.sfa")

	_, err := execute(t, "--config", cfg, "import", hero, "-o", out)
	if !errors.Is(err, config.ErrValidationFailed) {
		t.Errorf("error = %v, want ErrValidationFailed", err)
	}
	if _, err := execute(t, "--log-level", "loud", "inspect", out); err == nil {
		t.Error("invalid --log-level accepted")
	}

	logFile := filepath.Join(dir, "logs", "spriteforge.log")
	if _, err := execute(t, "--log-level", "debug", "--log-file", logFile, "import", hero, "-o", out); err != nil {
		t.Fatalf("import error = %v", err)
	}
	data, err := os.ReadFile(logFile)
	if err != nil || !strings.Contains(string(data), "archive written") {
		t.Errorf("log file = %q, %v", data, err)
	}
}

type fakeSource struct {
	events chan watcher.Event
}

func (f fakeSource) Events() <-chan watcher.Event { return f.events }
func (f fakeSource) Errors() <-chan error         { return nil }

func TestWatchReload(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	hero := writeSprite(t, dir, "hero", 255)
	slime := writeSprite(t, dir, "slime", 10)
	out := filepath.Join(dir, "game.sfa")

	a := &app{cfg: config.Default(), log: logging.Discard()}
	eng := a.newEngine()
	defer eng.Close()
	r, err := a.newReloader(ctx, eng, []string{hero, slime}, out)
	if err != nil {
		t.Fatalf("newReloader error = %v", err)
	}
	heroAbs, _ := filepath.Abs(hero)
	before := r.sprites[heroAbs]

	writeSprite(t, dir, "hero", 1)
	src := fakeSource{events: make(chan watcher.Event, 4)}
	src.events <- watcher.Event{Path: filepath.Join(dir, "unknown.aseprite"), Op: watcher.OpWrite}
	src.events <- watcher.Event{Path: heroAbs, Op: watcher.OpRemove}
	src.events <- watcher.Event{Path: heroAbs, Op: watcher.OpWrite}
	close(src.events)
	if err := r.run(ctx, src); err != nil {
		t.Fatalf("run error = %v", err)
	}

	if r.sprites[heroAbs] == before {
		t.Error("sprite id unchanged after reload")
	}
	if got := spriteNames(t, out); len(got) != 2 || got[0] != "hero" || got[1] != "slime" {
		t.Errorf("sprites = %v, want [hero slime]", got)
	}
	_, blobs, err := archive.ReadFile(out)
	if err != nil {
		t.Fatal(err)
	}
	if !blobs.Has(blob.Key(asepritetest.RGBA(2, 2, 1, 0, 0, 255))) {
		t.Error("archive does not hold the reloaded pixels")
	}
	if blobs.Has(blob.Key(asepritetest.RGBA(2, 2, 255, 0, 0, 255))) {
		t.Error("archive still holds the replaced pixels")
	}
	if !eng.CanUndo() {
		t.Error("reload is not undoable")
	}
}

func TestWatchReloadFailureKeepsSprite(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	hero := writeSprite(t, dir, "hero", 255)
	out := filepath.Join(dir, "game.sfa")

	a := &app{cfg: config.Default(), log: logging.Discard()}
	eng := a.newEngine()
	defer eng.Close()
	r, err := a.newReloader(ctx, eng, []string{hero}, out)
	if err != nil {
		t.Fatal(err)
	}
	heroAbs, _ := filepath.Abs(hero)
	before := r.sprites[heroAbs]

	if err := os.WriteFile(hero, []byte("half written"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := r.reload(ctx, heroAbs); err == nil {
		t.Fatal("reload of a corrupt file succeeded")
	}
	if r.sprites[heroAbs] != before {
		t.Error("failed reload replaced the sprite")
	}
	if got := spriteNames(t, out); len(got) != 1 {
		t.Errorf("sprites = %v", got)
	}
}
