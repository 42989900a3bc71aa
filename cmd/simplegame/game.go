package main

import (
	"github.com/cockroachdb/errors"
	"github.com/loov/hrtime"
	"github.com/veandco/go-sdl2/sdl"

	"github.com/oxide-engine/simplegame/internal/character"
	"github.com/oxide-engine/simplegame/internal/renderer"
)

type game struct {
	window   *sdl.Window
	renderer *renderer.Renderer
	player   character.Character

	frame   int
	resized bool
}

// eventSource is the subset of the SDL event queue the loop reads from.
type eventSource interface {
	PollEvent() sdl.Event
	WaitEvent() sdl.Event
}

type sdlEvents struct{}

func (sdlEvents) PollEvent() sdl.Event { return sdl.PollEvent() }
func (sdlEvents) WaitEvent() sdl.Event { return sdl.WaitEvent() }

func run(opts options) error {
	if err := sdl.Init(sdl.INIT_VIDEO); err != nil {
		return errors.Wrap(err, "init sdl")
	}
	defer sdl.Quit()

	window, err := sdl.CreateWindow(opts.cfg.AppName, sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED,
		int32(opts.width), int32(opts.height), sdl.WINDOW_SHOWN|sdl.WINDOW_VULKAN|sdl.WINDOW_RESIZABLE)
	if err != nil {
		return errors.Wrap(err, "create window")
	}
	defer window.Destroy()

	r, err := renderer.New(window, opts.cfg)
	if err != nil {
		return err
	}
	defer r.Destroy()

	g := &game{window: window, renderer: r}
	return g.mainLoop()
}

// keyFor maps arrow keys to character movement.
func keyFor(sym sdl.Keycode) character.Key {
	switch sym {
	case sdl.K_LEFT:
		return character.KeyLeft
	case sdl.K_RIGHT:
		return character.KeyRight
	case sdl.K_UP:
		return character.KeyUp
	case sdl.K_DOWN:
		return character.KeyDown
	}
	return character.KeyNone
}

func (g *game) drawableSize() (int, int) {
	width, height := g.window.VulkanGetDrawableSize()
	return int(width), int(height)
}

// handleEvent applies one SDL event and reports whether the game should keep running.
func (g *game) handleEvent(event sdl.Event) bool {
	switch e := event.(type) {
	case *sdl.QuitEvent:
		return false
	case *sdl.KeyboardEvent:
		if e.Keysym.Sym == sdl.K_ESCAPE {
			return false
		}
		if e.Repeat == 0 {
			g.player.HandleKey(keyFor(e.Keysym.Sym), e.Type == sdl.KEYDOWN)
		}
	case *sdl.MouseMotionEvent:
		g.player.HandleCursor(float32(e.X), float32(e.Y))
	case *sdl.WindowEvent:
		switch e.Event {
		case sdl.WINDOWEVENT_MINIMIZED:
			g.renderer.Resize(0, 0)
		case sdl.WINDOWEVENT_RESTORED:
			g.renderer.Resize(g.drawableSize())
		case sdl.WINDOWEVENT_RESIZED, sdl.WINDOWEVENT_SIZE_CHANGED:
			g.resized = true
		}
	}
	return true
}

// hidden reports whether there is nothing to draw into.
func (g *game) hidden() bool {
	if g.window.GetFlags()&sdl.WINDOW_MINIMIZED != 0 {
		return true
	}
	width, height := g.drawableSize()
	return width == 0 || height == 0
}

// pumpEvents drains pending events and reports whether the game should keep
// running. A hidden window blocks for the next event first instead of spinning.
func (g *game) pumpEvents(events eventSource, hidden bool) bool {
	if hidden && !g.handleEvent(events.WaitEvent()) {
		return false
	}

	for event := events.PollEvent(); event != nil; event = events.PollEvent() {
		if !g.handleEvent(event) {
			return false
		}
	}
	return true
}

func (g *game) mainLoop() error {
	lastTime := hrtime.Now()

	for {
		hidden := g.hidden()
		if !g.pumpEvents(sdlEvents{}, hidden) {
			return nil
		}

		now := hrtime.Now()
		if hidden {
			// Time spent minimized does not move the character.
			lastTime = now
			continue
		}
		dt := float32((now - lastTime).Seconds())
		lastTime = now

		g.player.Update(dt)

		err := g.renderer.Render(g.frame, g.resized, renderer.Camera{
			Position:  g.player.Position,
			ViewAngle: g.player.ViewAngle,
		})
		if err != nil {
			return errors.Wrapf(err, "render frame slot %d", g.frame)
		}

		g.resized = false
		g.frame = renderer.NextFrame(g.frame)
	}
}
