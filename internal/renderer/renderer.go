// Package renderer draws the scene that follows the player character. It owns
// the Vulkan instance, device, swapchain and per-frame synchronization, and
// rebuilds the swapchain in place when the window changes.
package renderer

import (
	"github.com/cockroachdb/errors"
	"github.com/veandco/go-sdl2/sdl"
)

// Renderer is the Frame Renderer. It must be used from the thread that owns the window.
type Renderer struct {
	cfg    Config
	window drawableSizer

	instance  instanceContext
	device    deviceContext
	swapchain swapchainManager
	passes    passBuilder
	resources resourceStore
	frames    frameSet

	// imagesInFlight holds, per swapchain image, the frame slot last submitted with it.
	imagesInFlight  []int
	suspended       bool
	pendingRecreate bool

	stats Stats
}

type sdlWindow struct {
	window *sdl.Window
}

func (w sdlWindow) DrawableSize() (int, int) {
	width, height := w.window.VulkanGetDrawableSize()
	return int(width), int(height)
}

// New creates a renderer presenting to window. Assets are loaded and uploaded
// before it returns, so any missing or malformed asset fails here.
func New(window *sdl.Window, cfg Config) (*Renderer, error) {
	if window == nil {
		return nil, errors.New("renderer: nil window")
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	model := builtinGeometry()
	if cfg.Model != "" {
		var err error
		model, err = loadModel(cfg.Assets, cfg.Model)
		if err != nil {
			return nil, err
		}
	}

	pixels, err := loadTexture(cfg.Assets, cfg.Texture)
	if err != nil {
		return nil, err
	}

	r := &Renderer{
		cfg:    cfg,
		window: sdlWindow{window: window},
	}

	inst, err := createInstance(window, cfg)
	if err != nil {
		return nil, err
	}
	r.instance = inst

	device, err := createDevice(inst, cfg)
	if err != nil {
		r.Destroy()
		return nil, err
	}
	r.device = device

	passes, err := newPasses(device, cfg)
	if err != nil {
		r.Destroy()
		return nil, err
	}
	r.passes = passes

	resources, err := newResources(device, passes.SetLayout(), model, pixels)
	if err != nil {
		r.Destroy()
		return nil, err
	}
	r.resources = resources

	frames, err := newFrames(device)
	if err != nil {
		r.Destroy()
		return nil, err
	}
	r.frames = frames

	r.swapchain = newSwapchain(device)

	width, height := r.window.DrawableSize()
	if width == 0 || height == 0 {
		// Started minimized: the first Render with a visible window builds the swapchain.
		r.suspended = true
		r.pendingRecreate = true
		Logger().Info("renderer ready, waiting for window area")
		return r, nil
	}

	err = r.buildSwapchain(width, height)
	if err != nil {
		r.Destroy()
		return nil, errors.Wrap(err, "build swapchain")
	}

	Logger().Info("renderer ready",
		"width", r.swapchain.Extent().Width,
		"height", r.swapchain.Extent().Height,
		"images", r.swapchain.ImageCount(),
		"indices", len(model.Indices))
	return r, nil
}

// Destroy waits for the device to go idle and releases everything in reverse
// creation order. It must be called exactly once.
func (r *Renderer) Destroy() {
	if r.device != nil {
		err := r.device.WaitIdle()
		if err != nil {
			Logger().Warn("device did not go idle before destroy", "err", err)
		}
	}

	if r.swapchain != nil {
		r.teardownSwapchain()
	}

	if r.passes != nil {
		r.passes.Destroy()
	}

	if r.resources != nil {
		r.resources.Destroy()
	}

	if r.frames != nil {
		r.frames.Destroy()
	}

	if r.device != nil {
		r.device.Destroy()
	}

	if r.instance != nil {
		r.instance.Destroy()
	}

	Logger().Debug("renderer destroyed",
		"framesPerSlot", r.stats.FramesPerSlot,
		"rebuilds", r.stats.Rebuilds)
}
