package renderer

import (
	"github.com/vkngwrapper/core/core1_0"
)

// The Frame Renderer is assembled from the components below. Each has one
// implementation backed by vkngwrapper; the scheduling policy in scheduler.go
// only sees these interfaces.

type presentStatus int

const (
	statusOK presentStatus = iota
	statusSuboptimal
	statusOutOfDate
)

func (s presentStatus) String() string {
	switch s {
	case statusOK:
		return "ok"
	case statusSuboptimal:
		return "suboptimal"
	case statusOutOfDate:
		return "out of date"
	}
	return "unknown"
}

// instanceContext owns the surface, debug messenger and instance.
type instanceContext interface {
	Destroy()
}

// deviceContext owns the logical device and its queues.
type deviceContext interface {
	WaitIdle() error
	Destroy()
}

// swapchainManager owns the presentable images, their views, the depth and
// multisample attachments and one framebuffer per image.
type swapchainManager interface {
	Create(width, height int) error
	ImageCount() int
	Format() core1_0.Format
	Extent() core1_0.Extent2D

	CreateFramebuffers(renderPass core1_0.RenderPass) error
	Framebuffer(imageIndex int) core1_0.Framebuffer
	// DestroyFramebuffers releases the framebuffers and attachments.
	DestroyFramebuffers()

	AcquireNextImage(signal core1_0.Semaphore) (int, presentStatus, error)
	Present(imageIndex int, wait core1_0.Semaphore) (presentStatus, error)

	// Teardown releases the image views and the swapchain.
	Teardown()
}

// passBuilder owns the render pass and graphics pipeline built against the
// current swapchain, plus the descriptor-set layout that outlives them.
type passBuilder interface {
	Build(format core1_0.Format, extent core1_0.Extent2D) error
	RenderPass() core1_0.RenderPass
	Layout() core1_0.PipelineLayout
	Pipeline() core1_0.Pipeline
	Teardown()
	Destroy()
}

// resourceStore owns static geometry, the texture and the per-image uniform
// buffers with their descriptor sets.
type resourceStore interface {
	CreatePerImage(imageCount int) error
	DescriptorSet(imageIndex int) core1_0.DescriptorSet
	WriteUniform(imageIndex int, ubo UniformBufferObject) error
	Geometry() (vertices, indices core1_0.Buffer, indexCount int)
	TeardownPerImage()
	Destroy()
}

// frameTargets is everything a recorded frame binds.
type frameTargets struct {
	RenderPass    core1_0.RenderPass
	Framebuffer   core1_0.Framebuffer
	Extent        core1_0.Extent2D
	Pipeline      core1_0.Pipeline
	Layout        core1_0.PipelineLayout
	DescriptorSet core1_0.DescriptorSet
	VertexBuffer  core1_0.Buffer
	IndexBuffer   core1_0.Buffer
	IndexCount    int
	ClearColor    [4]float32
}

// frameSet owns the per-slot sync primitives and the per-image command pools.
type frameSet interface {
	WaitInFlight(slot int) error
	ResetInFlight(slot int) error
	ImageAvailable(slot int) core1_0.Semaphore
	RenderFinished(slot int) core1_0.Semaphore

	Allocate(imageCount int) error
	Record(imageIndex int, targets frameTargets, draws []DrawInstance) error
	Submit(slot, imageIndex int) error
	Teardown()
	Destroy()
}

// drawableSizer reports the window's drawable size in pixels.
type drawableSizer interface {
	DrawableSize() (width, height int)
}
