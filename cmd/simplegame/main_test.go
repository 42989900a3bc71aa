package main

import (
	"io"
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/veandco/go-sdl2/sdl"

	"github.com/oxide-engine/simplegame/assets"
	"github.com/oxide-engine/simplegame/internal/character"
)

func TestParseFlagsDefaults(t *testing.T) {
	opts, err := parseFlags(nil, io.Discard)
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}

	if opts.width != 800 || opts.height != 600 {
		t.Errorf("window = %dx%d, want 800x600", opts.width, opts.height)
	}
	if opts.cfg.Assets != assets.FS {
		t.Errorf("Assets = %v, want embedded assets", opts.cfg.Assets)
	}
	if opts.cfg.Model != "" {
		t.Errorf("Model = %q, want built-in geometry", opts.cfg.Model)
	}
	if opts.cfg.FieldOfView != 90 || opts.cfg.FollowDistance != 1 {
		t.Errorf("fov %v follow %v, want 90 and 1", opts.cfg.FieldOfView, opts.cfg.FollowDistance)
	}
}

func TestParseFlags(t *testing.T) {
	opts, err := parseFlags([]string{
		"-assets", t.TempDir(),
		"-model", "meshes/cube.obj",
		"-msaa",
		"-validation=false",
		"-fov", "60",
		"-follow", "2.5",
		"-width", "1280",
		"-height", "720",
		"-v",
	}, io.Discard)
	if err != nil {
		t.Fatalf("parseFlags: %v", err)
	}

	if opts.cfg.Assets == assets.FS {
		t.Error("Assets still embedded, want directory")
	}
	if opts.cfg.Model != "meshes/cube.obj" || !opts.cfg.Multisample || opts.cfg.Validation {
		t.Errorf("cfg = %+v, want model, msaa and no validation", opts.cfg)
	}
	if opts.cfg.FieldOfView != 60 || opts.cfg.FollowDistance != 2.5 {
		t.Errorf("fov %v follow %v, want 60 and 2.5", opts.cfg.FieldOfView, opts.cfg.FollowDistance)
	}
	if opts.width != 1280 || opts.height != 720 || !opts.verbose {
		t.Errorf("opts = %+v, want 1280x720 verbose", opts)
	}
}

func TestParseFlagsRejects(t *testing.T) {
	cases := [][]string{
		{"-width", "0"},
		{"-height", "-5"},
		{"-unknown"},
	}

	for _, args := range cases {
		if _, err := parseFlags(args, io.Discard); err == nil {
			t.Errorf("parseFlags(%v) succeeded, want error", args)
		}
	}
}

func TestKeyFor(t *testing.T) {
	cases := []struct {
		sym  sdl.Keycode
		want character.Key
	}{
		{sdl.K_LEFT, character.KeyLeft},
		{sdl.K_RIGHT, character.KeyRight},
		{sdl.K_UP, character.KeyUp},
		{sdl.K_DOWN, character.KeyDown},
		{sdl.K_SPACE, character.KeyNone},
	}

	for _, c := range cases {
		if got := keyFor(c.sym); got != c.want {
			t.Errorf("keyFor(%v) = %v, want %v", c.sym, got, c.want)
		}
	}
}

func TestHandleEventMovesCharacter(t *testing.T) {
	g := &game{}

	if !g.handleEvent(&sdl.KeyboardEvent{Type: sdl.KEYDOWN, Keysym: sdl.Keysym{Sym: sdl.K_UP}}) {
		t.Fatal("arrow key stopped the game")
	}
	if g.player.VelocityGoal[1] != character.MoveSpeed {
		t.Errorf("VelocityGoal = %v, want forward", g.player.VelocityGoal)
	}

	g.handleEvent(&sdl.KeyboardEvent{Type: sdl.KEYUP, Keysym: sdl.Keysym{Sym: sdl.K_UP}})
	if g.player.VelocityGoal[1] != 0 {
		t.Errorf("VelocityGoal after release = %v, want zero", g.player.VelocityGoal)
	}

	if g.handleEvent(&sdl.KeyboardEvent{Type: sdl.KEYDOWN, Keysym: sdl.Keysym{Sym: sdl.K_ESCAPE}}) {
		t.Error("escape did not stop the game")
	}
	if g.handleEvent(&sdl.QuitEvent{Type: sdl.QUIT}) {
		t.Error("quit event did not stop the game")
	}
}

func TestHandleEventMarksResize(t *testing.T) {
	g := &game{}

	g.handleEvent(&sdl.WindowEvent{Event: sdl.WINDOWEVENT_SIZE_CHANGED})
	if !g.resized {
		t.Error("size change did not mark the swapchain for rebuild")
	}
}

type queuedEvents struct {
	pending []sdl.Event
	waits   int
}

func (q *queuedEvents) PollEvent() sdl.Event {
	if len(q.pending) == 0 {
		return nil
	}
	event := q.pending[0]
	q.pending = q.pending[1:]
	return event
}

func (q *queuedEvents) WaitEvent() sdl.Event {
	q.waits++
	return q.PollEvent()
}

func keyDown(sym sdl.Keycode) *sdl.KeyboardEvent {
	return &sdl.KeyboardEvent{Type: sdl.KEYDOWN, Keysym: sdl.Keysym{Sym: sym}}
}

func TestPumpEventsPollsWhileVisible(t *testing.T) {
	g := &game{}
	events := &queuedEvents{pending: []sdl.Event{keyDown(sdl.K_UP), keyDown(sdl.K_LEFT)}}

	if !g.pumpEvents(events, false) {
		t.Fatal("pumpEvents stopped the game")
	}
	if events.waits != 0 {
		t.Errorf("visible window waited %d times, want 0", events.waits)
	}
	if len(events.pending) != 0 {
		t.Errorf("%d events left in the queue", len(events.pending))
	}
	want := mgl32.Vec3{-character.MoveSpeed, character.MoveSpeed, 0}
	if g.player.VelocityGoal != want {
		t.Errorf("VelocityGoal = %v, want %v", g.player.VelocityGoal, want)
	}
}

func TestPumpEventsBlocksWhileHidden(t *testing.T) {
	g := &game{}
	events := &queuedEvents{pending: []sdl.Event{keyDown(sdl.K_UP), keyDown(sdl.K_LEFT)}}

	if !g.pumpEvents(events, true) {
		t.Fatal("pumpEvents stopped the game")
	}
	if events.waits != 1 {
		t.Errorf("hidden window waited %d times, want 1", events.waits)
	}
	if len(events.pending) != 0 {
		t.Errorf("%d events left in the queue", len(events.pending))
	}

	events = &queuedEvents{pending: []sdl.Event{&sdl.QuitEvent{}, keyDown(sdl.K_UP)}}
	if g.pumpEvents(events, true) {
		t.Error("quit while hidden did not stop the game")
	}
	if len(events.pending) != 1 {
		t.Errorf("events after quit were consumed: %d left, want 1", len(events.pending))
	}
}
