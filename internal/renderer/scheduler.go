package renderer

import (
	"github.com/cockroachdb/errors"
)

// noOwner marks a swapchain image that no frame slot is using.
const noOwner = -1

// Stats counts scheduler activity since construction.
type Stats struct {
	// FramesPerSlot counts submitted frames by slot.
	FramesPerSlot [MaxFramesInFlight]int
	// Rebuilds counts swapchain recreations.
	Rebuilds int
	// Suspended counts Render calls skipped because the window had no area.
	Suspended int
}

func (r *Renderer) Stats() Stats {
	return r.stats
}

// Resize records a new drawable size from the window layer. A zero dimension
// suspends rendering; anything else resumes it and schedules a rebuild.
func (r *Renderer) Resize(width, height int) {
	if width == 0 || height == 0 {
		r.suspended = true
		return
	}

	r.suspended = false
	r.pendingRecreate = true
}

// Render draws one frame using the given frame slot. Out-of-date and
// suboptimal swapchains are rebuilt in place and never reported; every other
// failure is returned.
func (r *Renderer) Render(frame int, resized bool, cam Camera) error {
	if frame < 0 || frame >= MaxFramesInFlight {
		return errors.AssertionFailedf("frame slot %d out of range [0, %d)", frame, MaxFramesInFlight)
	}

	if r.suspended {
		width, height := r.window.DrawableSize()
		if width == 0 || height == 0 {
			r.stats.Suspended++
			return nil
		}
		r.suspended = false
		r.pendingRecreate = true
	}

	if r.pendingRecreate {
		err := r.recreateSwapchain()
		if err != nil || r.suspended {
			return err
		}
	}

	err := r.frames.WaitInFlight(frame)
	if err != nil {
		return err
	}

	imageIndex, status, err := r.swapchain.AcquireNextImage(r.frames.ImageAvailable(frame))
	if err != nil {
		return err
	}
	if status == statusOutOfDate {
		return r.recreateSwapchain()
	}

	// Another slot may still be rendering to this image.
	if owner := r.imagesInFlight[imageIndex]; owner != noOwner && owner != frame {
		err = r.frames.WaitInFlight(owner)
		if err != nil {
			return err
		}
	}
	r.imagesInFlight[imageIndex] = frame

	err = r.frames.Record(imageIndex, r.frameTargets(imageIndex), sceneInstances(cam))
	if err != nil {
		return errors.Wrapf(err, "record image %d", imageIndex)
	}

	err = r.resources.WriteUniform(imageIndex, uniformFor(cam, r.swapchain.Extent(), r.cfg))
	if err != nil {
		return errors.Wrapf(err, "write uniform for image %d", imageIndex)
	}

	err = r.frames.ResetInFlight(frame)
	if err != nil {
		return err
	}

	err = r.frames.Submit(frame, imageIndex)
	if err != nil {
		return err
	}
	r.stats.FramesPerSlot[frame]++

	status, err = r.swapchain.Present(imageIndex, r.frames.RenderFinished(frame))
	if err != nil {
		return err
	}

	if resized || status != statusOK {
		Logger().Debug("swapchain needs rebuild", "resized", resized, "present", status)
		return r.recreateSwapchain()
	}

	return nil
}

func (r *Renderer) frameTargets(imageIndex int) frameTargets {
	vertices, indices, indexCount := r.resources.Geometry()
	return frameTargets{
		RenderPass:    r.passes.RenderPass(),
		Framebuffer:   r.swapchain.Framebuffer(imageIndex),
		Extent:        r.swapchain.Extent(),
		Pipeline:      r.passes.Pipeline(),
		Layout:        r.passes.Layout(),
		DescriptorSet: r.resources.DescriptorSet(imageIndex),
		VertexBuffer:  vertices,
		IndexBuffer:   indices,
		IndexCount:    indexCount,
		ClearColor:    r.cfg.ClearColor,
	}
}

// recreateSwapchain rebuilds everything that depends on the swapchain. A
// zero-area window defers the rebuild and suspends rendering instead.
func (r *Renderer) recreateSwapchain() error {
	width, height := r.window.DrawableSize()
	if width == 0 || height == 0 {
		r.suspended = true
		r.pendingRecreate = true
		Logger().Debug("swapchain rebuild deferred, window has no area")
		return nil
	}

	err := r.device.WaitIdle()
	if err != nil {
		return err
	}

	r.teardownSwapchain()

	err = r.buildSwapchain(width, height)
	if err != nil {
		return errors.Wrap(err, "rebuild swapchain")
	}

	r.pendingRecreate = false
	r.stats.Rebuilds++
	Logger().Debug("swapchain rebuilt", "width", width, "height", height, "rebuilds", r.stats.Rebuilds)
	return nil
}

// buildSwapchain creates the swapchain and its dependents in dependency order.
func (r *Renderer) buildSwapchain(width, height int) error {
	err := r.swapchain.Create(width, height)
	if err != nil {
		return err
	}

	err = r.passes.Build(r.swapchain.Format(), r.swapchain.Extent())
	if err != nil {
		return err
	}

	err = r.swapchain.CreateFramebuffers(r.passes.RenderPass())
	if err != nil {
		return err
	}

	imageCount := r.swapchain.ImageCount()
	err = r.resources.CreatePerImage(imageCount)
	if err != nil {
		return err
	}

	err = r.frames.Allocate(imageCount)
	if err != nil {
		return err
	}

	r.imagesInFlight = make([]int, imageCount)
	for i := range r.imagesInFlight {
		r.imagesInFlight[i] = noOwner
	}

	return nil
}

// teardownSwapchain releases the swapchain dependents in reverse dependency
// order. The device must be idle.
func (r *Renderer) teardownSwapchain() {
	r.frames.Teardown()
	r.swapchain.DestroyFramebuffers()
	r.passes.Teardown()
	r.resources.TeardownPerImage()
	r.swapchain.Teardown()
	r.imagesInFlight = nil
}
