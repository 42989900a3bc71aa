package renderer

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/common"
	"github.com/vkngwrapper/core/core1_0"
)

// MaxFramesInFlight is the number of frame slots cycled round-robin.
const MaxFramesInFlight = 2

// NextFrame returns the slot after frame.
func NextFrame(frame int) int {
	return (frame + 1) % MaxFramesInFlight
}

// imageCommands is the command state of one swapchain image. The pool is
// reset before each recording, which recycles every buffer allocated from it.
type imageCommands struct {
	pool        core1_0.CommandPool
	primary     core1_0.CommandBuffer
	secondaries []core1_0.CommandBuffer
}

// vkFrames holds the Frame Sync Set and the per-image command buffers.
type vkFrames struct {
	device *vkDevice

	imageAvailable []core1_0.Semaphore
	renderFinished []core1_0.Semaphore
	inFlight       []core1_0.Fence

	images []imageCommands
}

func newFrames(device *vkDevice) (*vkFrames, error) {
	f := &vkFrames{device: device}

	for i := 0; i < MaxFramesInFlight; i++ {
		semaphore, _, err := device.device.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
		if err != nil {
			f.Destroy()
			return nil, errors.Wrap(err, "create image available semaphore")
		}
		f.imageAvailable = append(f.imageAvailable, semaphore)

		semaphore, _, err = device.device.CreateSemaphore(nil, core1_0.SemaphoreCreateInfo{})
		if err != nil {
			f.Destroy()
			return nil, errors.Wrap(err, "create render finished semaphore")
		}
		f.renderFinished = append(f.renderFinished, semaphore)

		// Signaled so the first wait on each slot returns immediately.
		fence, _, err := device.device.CreateFence(nil, core1_0.FenceCreateInfo{
			Flags: core1_0.FenceCreateSignaled,
		})
		if err != nil {
			f.Destroy()
			return nil, errors.Wrap(err, "create in-flight fence")
		}
		f.inFlight = append(f.inFlight, fence)
	}

	return f, nil
}

func (f *vkFrames) WaitInFlight(slot int) error {
	_, err := f.device.device.WaitForFences(true, common.NoTimeout, []core1_0.Fence{f.inFlight[slot]})
	return errors.Wrapf(err, "wait for frame slot %d", slot)
}

func (f *vkFrames) ResetInFlight(slot int) error {
	_, err := f.device.device.ResetFences([]core1_0.Fence{f.inFlight[slot]})
	return errors.Wrapf(err, "reset frame slot %d", slot)
}

func (f *vkFrames) ImageAvailable(slot int) core1_0.Semaphore { return f.imageAvailable[slot] }
func (f *vkFrames) RenderFinished(slot int) core1_0.Semaphore { return f.renderFinished[slot] }

// Allocate creates a command pool and primary buffer for each swapchain image.
func (f *vkFrames) Allocate(imageCount int) error {
	for i := 0; i < imageCount; i++ {
		pool, _, err := f.device.device.CreateCommandPool(nil, core1_0.CommandPoolCreateInfo{
			QueueFamilyIndex: f.device.indices.Graphics,
		})
		if err != nil {
			return errors.Wrapf(err, "create command pool for image %d", i)
		}

		buffers, _, err := f.device.device.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
			CommandPool:        pool,
			Level:              core1_0.CommandBufferLevelPrimary,
			CommandBufferCount: 1,
		})
		if err != nil {
			pool.Destroy(nil)
			return errors.Wrapf(err, "allocate primary command buffer for image %d", i)
		}

		f.images = append(f.images, imageCommands{pool: pool, primary: buffers[0]})
	}

	return nil
}

// secondary returns the index-th secondary buffer of an image, allocating it on first use.
func (f *vkFrames) secondary(imageIndex, index int) (core1_0.CommandBuffer, error) {
	commands := &f.images[imageIndex]
	for index >= len(commands.secondaries) {
		buffers, _, err := f.device.device.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
			CommandPool:        commands.pool,
			Level:              core1_0.CommandBufferLevelSecondary,
			CommandBufferCount: 1,
		})
		if err != nil {
			return nil, errors.Wrap(err, "allocate secondary command buffer")
		}
		commands.secondaries = append(commands.secondaries, buffers[0])
	}

	return commands.secondaries[index], nil
}

// Record rebuilds the primary buffer of imageIndex: one render pass whose
// contents are a secondary buffer per draw, each with its own push constants.
func (f *vkFrames) Record(imageIndex int, targets frameTargets, draws []DrawInstance) error {
	commands := f.images[imageIndex]

	_, err := commands.pool.Reset(0)
	if err != nil {
		return errors.Wrapf(err, "reset command pool for image %d", imageIndex)
	}

	primary := commands.primary
	_, err = primary.Begin(core1_0.CommandBufferBeginInfo{
		Flags: core1_0.CommandBufferUsageOneTimeSubmit,
	})
	if err != nil {
		return errors.Wrap(err, "begin primary command buffer")
	}

	err = primary.CmdBeginRenderPass(core1_0.SubpassContentsSecondaryCommandBuffers,
		core1_0.RenderPassBeginInfo{
			RenderPass:  targets.RenderPass,
			Framebuffer: targets.Framebuffer,
			RenderArea: core1_0.Rect2D{
				Offset: core1_0.Offset2D{X: 0, Y: 0},
				Extent: targets.Extent,
			},
			ClearValues: []core1_0.ClearValue{
				core1_0.ClearValueFloat(targets.ClearColor),
				core1_0.ClearValueDepthStencil{Depth: 1.0, Stencil: 0},
			},
		})
	if err != nil {
		return errors.Wrap(err, "begin render pass")
	}

	secondaries := make([]core1_0.CommandBuffer, 0, len(draws))
	for i, draw := range draws {
		buffer, err := f.recordDraw(imageIndex, i, targets, draw)
		if err != nil {
			return errors.Wrapf(err, "draw %d", i)
		}
		secondaries = append(secondaries, buffer)
	}

	if len(secondaries) > 0 {
		primary.CmdExecuteCommands(secondaries)
	}
	primary.CmdEndRenderPass()

	_, err = primary.End()
	return errors.Wrap(err, "end primary command buffer")
}

func (f *vkFrames) recordDraw(imageIndex, index int, targets frameTargets, draw DrawInstance) (core1_0.CommandBuffer, error) {
	buffer, err := f.secondary(imageIndex, index)
	if err != nil {
		return nil, err
	}

	_, err = buffer.Begin(core1_0.CommandBufferBeginInfo{
		Flags: core1_0.CommandBufferUsageRenderPassContinue,
		InheritanceInfo: &core1_0.CommandBufferInheritanceInfo{
			RenderPass:  targets.RenderPass,
			Subpass:     0,
			Framebuffer: targets.Framebuffer,
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "begin secondary command buffer")
	}

	buffer.CmdBindPipeline(core1_0.PipelineBindPointGraphics, targets.Pipeline)
	buffer.CmdBindVertexBuffers([]core1_0.Buffer{targets.VertexBuffer}, []int{0})
	buffer.CmdBindIndexBuffer(targets.IndexBuffer, 0, core1_0.IndexTypeUInt32)
	buffer.CmdBindDescriptorSets(core1_0.PipelineBindPointGraphics, targets.Layout, []core1_0.DescriptorSet{
		targets.DescriptorSet,
	}, nil)
	buffer.CmdPushConstants(targets.Layout, core1_0.StageVertex, modelConstantOffset, draw.modelBytes())
	buffer.CmdPushConstants(targets.Layout, core1_0.StageFragment, opacityConstantOffset, draw.opacityBytes())
	buffer.CmdDrawIndexed(targets.IndexCount, 1, 0, 0, 0)

	_, err = buffer.End()
	if err != nil {
		return nil, errors.Wrap(err, "end secondary command buffer")
	}
	return buffer, nil
}

// Submit queues the primary buffer of imageIndex on the graphics queue. It
// waits on the slot's image-available semaphore, signals render-finished and
// the slot's fence.
func (f *vkFrames) Submit(slot, imageIndex int) error {
	_, err := f.device.graphicsQueue.Submit(f.inFlight[slot], []core1_0.SubmitInfo{
		{
			WaitSemaphores:   []core1_0.Semaphore{f.imageAvailable[slot]},
			WaitDstStageMask: []core1_0.PipelineStageFlags{core1_0.PipelineStageColorAttachmentOutput},
			CommandBuffers:   []core1_0.CommandBuffer{f.images[imageIndex].primary},
			SignalSemaphores: []core1_0.Semaphore{f.renderFinished[slot]},
		},
	})
	return errors.Wrap(err, "submit frame")
}

// Teardown destroys the per-image command pools, freeing their buffers.
func (f *vkFrames) Teardown() {
	for _, commands := range f.images {
		commands.pool.Destroy(nil)
	}
	f.images = nil
}

func (f *vkFrames) Destroy() {
	for _, fence := range f.inFlight {
		fence.Destroy(nil)
	}
	f.inFlight = nil

	for _, semaphore := range f.renderFinished {
		semaphore.Destroy(nil)
	}
	f.renderFinished = nil

	for _, semaphore := range f.imageAvailable {
		semaphore.Destroy(nil)
	}
	f.imageAvailable = nil
}
