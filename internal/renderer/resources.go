package renderer

import (
	"encoding/binary"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/core1_0"
)

type hostBuffer struct {
	buffer core1_0.Buffer
	memory core1_0.DeviceMemory
}

func (b *hostBuffer) destroy() {
	if b.buffer != nil {
		b.buffer.Destroy(nil)
		b.buffer = nil
	}

	if b.memory != nil {
		b.memory.Free(nil)
		b.memory = nil
	}
}

// vkResources is the Resource Store.
type vkResources struct {
	device    *vkDevice
	setLayout core1_0.DescriptorSetLayout

	// transferPool backs one-shot upload command buffers.
	transferPool core1_0.CommandPool

	vertexBuffer hostBuffer
	indexBuffer  hostBuffer
	indexCount   int

	texture *imageAttachment
	sampler core1_0.Sampler

	uniformBuffers []hostBuffer
	descriptorPool core1_0.DescriptorPool
	descriptorSets []core1_0.DescriptorSet
}

func newResources(device *vkDevice, setLayout core1_0.DescriptorSetLayout, model geometry, pixels pixelData) (*vkResources, error) {
	r := &vkResources{
		device:    device,
		setLayout: setLayout,
	}

	var err error
	r.transferPool, _, err = device.device.CreateCommandPool(nil, core1_0.CommandPoolCreateInfo{
		QueueFamilyIndex: device.indices.Graphics,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create transfer command pool")
	}

	err = r.createTexture(pixels)
	if err != nil {
		r.Destroy()
		return nil, err
	}

	r.vertexBuffer.buffer, r.vertexBuffer.memory, err = r.uploadStaticBuffer(model.Vertices, core1_0.BufferUsageVertexBuffer)
	if err != nil {
		r.Destroy()
		return nil, errors.Wrap(err, "vertex buffer")
	}

	r.indexBuffer.buffer, r.indexBuffer.memory, err = r.uploadStaticBuffer(model.Indices, core1_0.BufferUsageIndexBuffer)
	if err != nil {
		r.Destroy()
		return nil, errors.Wrap(err, "index buffer")
	}
	r.indexCount = len(model.Indices)

	Logger().Debug("static resources uploaded",
		"vertexBytes", binary.Size(model.Vertices),
		"indexBytes", binary.Size(model.Indices),
		"textureWidth", pixels.Width,
		"textureHeight", pixels.Height)
	return r, nil
}

// uploadStaticBuffer copies data into a device-local buffer through a host-visible staging buffer.
func (r *vkResources) uploadStaticBuffer(data any, usage core1_0.BufferUsageFlags) (core1_0.Buffer, core1_0.DeviceMemory, error) {
	bufferSize := binary.Size(data)
	if bufferSize <= 0 {
		return nil, nil, errors.Newf("cannot upload %d bytes", bufferSize)
	}

	staging := hostBuffer{}
	var err error
	staging.buffer, staging.memory, err = r.device.createBuffer(bufferSize, core1_0.BufferUsageTransferSrc, core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent)
	if err != nil {
		return nil, nil, errors.Wrap(err, "staging buffer")
	}
	defer staging.destroy()

	err = writeData(deviceMapping{staging.memory}, 0, data)
	if err != nil {
		return nil, nil, err
	}

	buffer, memory, err := r.device.createBuffer(bufferSize, core1_0.BufferUsageTransferDst|usage, core1_0.MemoryPropertyDeviceLocal)
	if err != nil {
		return nil, nil, err
	}

	err = r.copyBuffer(staging.buffer, buffer, bufferSize)
	if err != nil {
		buffer.Destroy(nil)
		memory.Free(nil)
		return nil, nil, err
	}

	return buffer, memory, nil
}

func (r *vkResources) createTexture(pixels pixelData) error {
	staging := hostBuffer{}
	var err error
	staging.buffer, staging.memory, err = r.device.createBuffer(len(pixels.Pix), core1_0.BufferUsageTransferSrc, core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent)
	if err != nil {
		return errors.Wrap(err, "texture staging buffer")
	}
	defer staging.destroy()

	err = writeData(deviceMapping{staging.memory}, 0, pixels.Pix)
	if err != nil {
		return err
	}

	r.texture, err = r.device.createImage(imageOptions{
		Width:   pixels.Width,
		Height:  pixels.Height,
		Format:  textureFormat,
		Samples: core1_0.Samples1,
		Usage:   core1_0.ImageUsageTransferDst | core1_0.ImageUsageSampled,
		Aspect:  core1_0.ImageAspectColor,
	})
	if err != nil {
		return errors.Wrap(err, "texture image")
	}

	err = r.transitionImageLayout(r.texture.image, core1_0.ImageLayoutUndefined, core1_0.ImageLayoutTransferDstOptimal)
	if err != nil {
		return err
	}
	err = r.copyBufferToImage(staging.buffer, r.texture.image, pixels.Width, pixels.Height)
	if err != nil {
		return err
	}
	err = r.transitionImageLayout(r.texture.image, core1_0.ImageLayoutTransferDstOptimal, core1_0.ImageLayoutShaderReadOnlyOptimal)
	if err != nil {
		return err
	}

	r.sampler, _, err = r.device.device.CreateSampler(nil, core1_0.SamplerCreateInfo{
		MagFilter:    core1_0.FilterLinear,
		MinFilter:    core1_0.FilterLinear,
		AddressModeU: core1_0.SamplerAddressModeRepeat,
		AddressModeV: core1_0.SamplerAddressModeRepeat,
		AddressModeW: core1_0.SamplerAddressModeRepeat,

		AnisotropyEnable: true,
		MaxAnisotropy:    r.device.maxAnisotropy,

		BorderColor: core1_0.BorderColorIntOpaqueBlack,

		MipmapMode: core1_0.SamplerMipmapModeLinear,
	})
	return errors.Wrap(err, "create texture sampler")
}

func (r *vkResources) beginSingleTimeCommands() (core1_0.CommandBuffer, error) {
	buffers, _, err := r.device.device.AllocateCommandBuffers(core1_0.CommandBufferAllocateInfo{
		CommandPool:        r.transferPool,
		Level:              core1_0.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	})
	if err != nil {
		return nil, errors.Wrap(err, "allocate one-shot command buffer")
	}

	buffer := buffers[0]
	_, err = buffer.Begin(core1_0.CommandBufferBeginInfo{
		Flags: core1_0.CommandBufferUsageOneTimeSubmit,
	})
	if err != nil {
		r.device.device.FreeCommandBuffers(buffers)
		return nil, errors.Wrap(err, "begin one-shot command buffer")
	}
	return buffer, nil
}

func (r *vkResources) endSingleTimeCommands(buffer core1_0.CommandBuffer) error {
	defer r.device.device.FreeCommandBuffers([]core1_0.CommandBuffer{buffer})

	_, err := buffer.End()
	if err != nil {
		return errors.Wrap(err, "end one-shot command buffer")
	}

	_, err = r.device.graphicsQueue.Submit(nil, []core1_0.SubmitInfo{
		{
			CommandBuffers: []core1_0.CommandBuffer{buffer},
		},
	})
	if err != nil {
		return errors.Wrap(err, "submit one-shot command buffer")
	}

	_, err = r.device.graphicsQueue.WaitIdle()
	return errors.Wrap(err, "wait for one-shot command buffer")
}

func (r *vkResources) copyBuffer(srcBuffer core1_0.Buffer, dstBuffer core1_0.Buffer, size int) error {
	buffer, err := r.beginSingleTimeCommands()
	if err != nil {
		return err
	}

	err = buffer.CmdCopyBuffer(srcBuffer, dstBuffer, []core1_0.BufferCopy{
		{
			SrcOffset: 0,
			DstOffset: 0,
			Size:      size,
		},
	})
	if err != nil {
		r.device.device.FreeCommandBuffers([]core1_0.CommandBuffer{buffer})
		return errors.Wrap(err, "record buffer copy")
	}

	return r.endSingleTimeCommands(buffer)
}

func (r *vkResources) transitionImageLayout(image core1_0.Image, oldLayout core1_0.ImageLayout, newLayout core1_0.ImageLayout) error {
	transition, err := transitionFor(oldLayout, newLayout)
	if err != nil {
		return err
	}

	buffer, err := r.beginSingleTimeCommands()
	if err != nil {
		return err
	}

	err = buffer.CmdPipelineBarrier(transition.SrcStage, transition.DstStage, 0, nil, nil, []core1_0.ImageMemoryBarrier{
		{
			OldLayout:           oldLayout,
			NewLayout:           newLayout,
			SrcQueueFamilyIndex: -1,
			DstQueueFamilyIndex: -1,
			Image:               image,
			SubresourceRange: core1_0.ImageSubresourceRange{
				AspectMask:     core1_0.ImageAspectColor,
				BaseMipLevel:   0,
				LevelCount:     1,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
			SrcAccessMask: transition.SrcAccess,
			DstAccessMask: transition.DstAccess,
		},
	})
	if err != nil {
		r.device.device.FreeCommandBuffers([]core1_0.CommandBuffer{buffer})
		return errors.Wrap(err, "record layout transition")
	}

	return r.endSingleTimeCommands(buffer)
}

func (r *vkResources) copyBufferToImage(buffer core1_0.Buffer, image core1_0.Image, width, height int) error {
	cmdBuffer, err := r.beginSingleTimeCommands()
	if err != nil {
		return err
	}

	err = cmdBuffer.CmdCopyBufferToImage(buffer, image, core1_0.ImageLayoutTransferDstOptimal, []core1_0.BufferImageCopy{
		{
			BufferOffset:      0,
			BufferRowLength:   0,
			BufferImageHeight: 0,

			ImageSubresource: core1_0.ImageSubresourceLayers{
				AspectMask:     core1_0.ImageAspectColor,
				MipLevel:       0,
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
			ImageOffset: core1_0.Offset3D{X: 0, Y: 0, Z: 0},
			ImageExtent: core1_0.Extent3D{Width: width, Height: height, Depth: 1},
		},
	})
	if err != nil {
		r.device.device.FreeCommandBuffers([]core1_0.CommandBuffer{cmdBuffer})
		return errors.Wrap(err, "record buffer to image copy")
	}

	return r.endSingleTimeCommands(cmdBuffer)
}

var uniformBufferSize = int(unsafe.Sizeof(UniformBufferObject{}))

// CreatePerImage creates one uniform buffer and descriptor set per swapchain image.
func (r *vkResources) CreatePerImage(imageCount int) error {
	for i := 0; i < imageCount; i++ {
		buffer, memory, err := r.device.createBuffer(uniformBufferSize, core1_0.BufferUsageUniformBuffer, core1_0.MemoryPropertyHostVisible|core1_0.MemoryPropertyHostCoherent)
		if err != nil {
			return errors.Wrapf(err, "uniform buffer %d", i)
		}

		r.uniformBuffers = append(r.uniformBuffers, hostBuffer{buffer: buffer, memory: memory})
	}

	var err error
	r.descriptorPool, _, err = r.device.device.CreateDescriptorPool(nil, core1_0.DescriptorPoolCreateInfo{
		MaxSets: imageCount,
		PoolSizes: []core1_0.DescriptorPoolSize{
			{
				Type:            core1_0.DescriptorTypeUniformBuffer,
				DescriptorCount: imageCount,
			},
			{
				Type:            core1_0.DescriptorTypeCombinedImageSampler,
				DescriptorCount: imageCount,
			},
		},
	})
	if err != nil {
		return errors.Wrap(err, "create descriptor pool")
	}

	allocLayouts := make([]core1_0.DescriptorSetLayout, imageCount)
	for i := range allocLayouts {
		allocLayouts[i] = r.setLayout
	}

	r.descriptorSets, _, err = r.device.device.AllocateDescriptorSets(core1_0.DescriptorSetAllocateInfo{
		DescriptorPool: r.descriptorPool,
		SetLayouts:     allocLayouts,
	})
	if err != nil {
		return errors.Wrap(err, "allocate descriptor sets")
	}

	for i := 0; i < imageCount; i++ {
		err = r.device.device.UpdateDescriptorSets([]core1_0.WriteDescriptorSet{
			{
				DstSet:          r.descriptorSets[i],
				DstBinding:      0,
				DstArrayElement: 0,

				DescriptorType: core1_0.DescriptorTypeUniformBuffer,

				BufferInfo: []core1_0.DescriptorBufferInfo{
					{
						Buffer: r.uniformBuffers[i].buffer,
						Offset: 0,
						Range:  uniformBufferSize,
					},
				},
			},
			{
				DstSet:          r.descriptorSets[i],
				DstBinding:      1,
				DstArrayElement: 0,

				DescriptorType: core1_0.DescriptorTypeCombinedImageSampler,

				ImageInfo: []core1_0.DescriptorImageInfo{
					{
						ImageView:   r.texture.view,
						Sampler:     r.sampler,
						ImageLayout: core1_0.ImageLayoutShaderReadOnlyOptimal,
					},
				},
			},
		}, nil)
		if err != nil {
			return errors.Wrapf(err, "update descriptor set %d", i)
		}
	}

	return nil
}

func (r *vkResources) DescriptorSet(imageIndex int) core1_0.DescriptorSet {
	return r.descriptorSets[imageIndex]
}

// WriteUniform rewrites the uniform buffer of one swapchain image. The caller
// guarantees no in-flight frame reads that image.
func (r *vkResources) WriteUniform(imageIndex int, ubo UniformBufferObject) error {
	return writeData(deviceMapping{r.uniformBuffers[imageIndex].memory}, 0, &ubo)
}

func (r *vkResources) Geometry() (core1_0.Buffer, core1_0.Buffer, int) {
	return r.vertexBuffer.buffer, r.indexBuffer.buffer, r.indexCount
}

// TeardownPerImage releases the descriptor pool, which frees its sets, and the uniform buffers.
func (r *vkResources) TeardownPerImage() {
	if r.descriptorPool != nil {
		r.descriptorPool.Destroy(nil)
		r.descriptorPool = nil
	}
	r.descriptorSets = nil

	for i := range r.uniformBuffers {
		r.uniformBuffers[i].destroy()
	}
	r.uniformBuffers = nil
}

func (r *vkResources) Destroy() {
	if r.sampler != nil {
		r.sampler.Destroy(nil)
		r.sampler = nil
	}

	r.texture.destroy()
	r.texture = nil

	r.indexBuffer.destroy()
	r.vertexBuffer.destroy()

	if r.transferPool != nil {
		r.transferPool.Destroy(nil)
		r.transferPool = nil
	}
}
