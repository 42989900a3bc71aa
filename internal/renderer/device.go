package renderer

import (
	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/khr_portability_subset"
	"github.com/vkngwrapper/extensions/khr_surface"
	"github.com/vkngwrapper/extensions/khr_swapchain"
)

var deviceExtensions = []string{khr_swapchain.ExtensionName}

// QueueFamilyIndices are the queue families chosen for graphics and presentation.
type QueueFamilyIndices struct {
	Graphics *int
	Present  *int
}

func (i QueueFamilyIndices) IsComplete() bool {
	return i.Graphics != nil && i.Present != nil
}

// Unique returns each distinct family once, graphics first.
func (i QueueFamilyIndices) Unique() []int {
	unique := []int{*i.Graphics}
	if *i.Present != *i.Graphics {
		unique = append(unique, *i.Present)
	}
	return unique
}

type swapchainSupport struct {
	Capabilities *khr_surface.Capabilities
	Formats      []khr_surface.Format
	PresentModes []khr_surface.PresentMode
}

func querySwapchainSupport(surface khr_surface.Surface, device core1_0.PhysicalDevice) (swapchainSupport, error) {
	var details swapchainSupport
	var err error

	details.Capabilities, _, err = surface.PhysicalDeviceSurfaceCapabilities(device)
	if err != nil {
		return details, errors.Wrap(err, "query surface capabilities")
	}

	details.Formats, _, err = surface.PhysicalDeviceSurfaceFormats(device)
	if err != nil {
		return details, errors.Wrap(err, "query surface formats")
	}

	details.PresentModes, _, err = surface.PhysicalDeviceSurfacePresentModes(device)
	return details, errors.Wrap(err, "query present modes")
}

func findQueueFamilies(surface khr_surface.Surface, device core1_0.PhysicalDevice) (QueueFamilyIndices, error) {
	indices := QueueFamilyIndices{}

	for queueFamilyIdx, queueFamily := range device.QueueFamilyProperties() {
		if (queueFamily.QueueFlags & core1_0.QueueGraphics) != 0 {
			indices.Graphics = new(int)
			*indices.Graphics = queueFamilyIdx
		}

		supported, _, err := surface.PhysicalDeviceSurfaceSupport(device, queueFamilyIdx)
		if err != nil {
			return indices, errors.Wrap(err, "query surface support")
		}

		if supported {
			indices.Present = new(int)
			*indices.Present = queueFamilyIdx
		}

		if indices.IsComplete() {
			break
		}
	}

	return indices, nil
}

// deviceCandidate is what selection needs to know about one physical device.
type deviceCandidate struct {
	Indices           QueueFamilyIndices
	Extensions        map[string]bool
	FormatCount       int
	PresentModeCount  int
	SamplerAnisotropy bool
}

// suitability reports the first selection criterion the device fails, or nil.
func (c deviceCandidate) suitability() error {
	if c.Indices.Graphics == nil {
		return errors.Wrap(ErrUnsuitableDevice, "no graphics queue family")
	}
	if c.Indices.Present == nil {
		return errors.Wrap(ErrUnsuitableDevice, "no queue family can present to the surface")
	}

	for _, extension := range deviceExtensions {
		if !c.Extensions[extension] {
			return errors.Wrapf(ErrUnsuitableDevice, "missing extension %s", extension)
		}
	}

	if c.FormatCount == 0 {
		return errors.Wrap(ErrUnsuitableDevice, "no surface formats")
	}
	if c.PresentModeCount == 0 {
		return errors.Wrap(ErrUnsuitableDevice, "no present modes")
	}
	if !c.SamplerAnisotropy {
		return errors.Wrap(ErrUnsuitableDevice, "no sampler anisotropy")
	}

	return nil
}

func inspectDevice(surface khr_surface.Surface, device core1_0.PhysicalDevice) (deviceCandidate, error) {
	var candidate deviceCandidate
	var err error

	candidate.Indices, err = findQueueFamilies(surface, device)
	if err != nil {
		return candidate, err
	}

	extensions, _, err := device.EnumerateDeviceExtensionProperties()
	if err != nil {
		return candidate, errors.Wrap(err, "enumerate device extensions")
	}
	candidate.Extensions = make(map[string]bool, len(extensions))
	for name := range extensions {
		candidate.Extensions[name] = true
	}

	if candidate.Extensions[khr_swapchain.ExtensionName] {
		support, err := querySwapchainSupport(surface, device)
		if err != nil {
			return candidate, err
		}
		candidate.FormatCount = len(support.Formats)
		candidate.PresentModeCount = len(support.PresentModes)
	}

	candidate.SamplerAnisotropy = device.Features().SamplerAnisotropy
	return candidate, nil
}

// firstSuitable inspects devices in order and returns the index and candidate
// of the first one with no rejection reason. Devices that cannot be inspected
// or fail selection are reported through reject and skipped.
func firstSuitable(count int, inspect func(index int) (deviceCandidate, error), reject func(index int, reason error)) (int, deviceCandidate, error) {
	for i := 0; i < count; i++ {
		candidate, err := inspect(i)
		if err != nil {
			reject(i, err)
			continue
		}

		reason := candidate.suitability()
		if reason == nil {
			return i, candidate, nil
		}
		reject(i, reason)
	}
	return -1, deviceCandidate{}, ErrNoSuitableDevice
}

// maxUsableSampleCount picks the highest count in counts, which should be the
// intersection of the colour and depth framebuffer limits.
func maxUsableSampleCount(counts core1_0.SampleCountFlags) core1_0.SampleCountFlags {
	for _, samples := range []core1_0.SampleCountFlags{
		core1_0.Samples64,
		core1_0.Samples32,
		core1_0.Samples16,
		core1_0.Samples8,
		core1_0.Samples4,
		core1_0.Samples2,
	} {
		if counts&samples != 0 {
			return samples
		}
	}
	return core1_0.Samples1
}

// memoryTypeIndex returns the first memory type allowed by typeFilter that has every property.
func memoryTypeIndex(memoryTypes []core1_0.MemoryPropertyFlags, typeFilter uint32, properties core1_0.MemoryPropertyFlags) (int, error) {
	for i, flags := range memoryTypes {
		typeBit := uint32(1 << i)

		if (typeFilter&typeBit) != 0 && (flags&properties) == properties {
			return i, nil
		}
	}

	return 0, errors.Wrapf(ErrNoMemoryType, "filter %#x, properties %s", typeFilter, properties)
}

var depthFormatCandidates = []core1_0.Format{
	core1_0.FormatD32SignedFloat,
	core1_0.FormatD32SignedFloatS8UnsignedInt,
	core1_0.FormatD24UnsignedNormalizedS8UnsignedInt,
}

// vkDevice is the Device Context: physical and logical device, queues and
// the capabilities selected once at startup.
type vkDevice struct {
	physical core1_0.PhysicalDevice
	device   core1_0.Device
	surface  khr_surface.Surface

	graphicsQueue core1_0.Queue
	presentQueue  core1_0.Queue
	indices       QueueFamilyIndices

	depthFormat   core1_0.Format
	samples       core1_0.SampleCountFlags
	sampleShading bool
	maxAnisotropy float32
	memoryTypes   []core1_0.MemoryPropertyFlags
}

func pickPhysicalDevice(inst *vkInstance) (core1_0.PhysicalDevice, QueueFamilyIndices, error) {
	physicalDevices, _, err := inst.instance.EnumeratePhysicalDevices()
	if err != nil {
		return nil, QueueFamilyIndices{}, errors.Wrap(err, "enumerate physical devices")
	}

	chosen, candidate, err := firstSuitable(len(physicalDevices), func(index int) (deviceCandidate, error) {
		return inspectDevice(inst.surface, physicalDevices[index])
	}, func(index int, reason error) {
		Logger().Warn("skipping physical device", "index", index, "reason", reason)
	})
	if err != nil {
		return nil, QueueFamilyIndices{}, errors.Wrapf(err, "%d devices inspected", len(physicalDevices))
	}

	Logger().Info("physical device selected", "index", chosen,
		"graphicsFamily", *candidate.Indices.Graphics,
		"presentFamily", *candidate.Indices.Present)
	return physicalDevices[chosen], candidate.Indices, nil
}

func createDevice(inst *vkInstance, cfg Config) (*vkDevice, error) {
	physical, indices, err := pickPhysicalDevice(inst)
	if err != nil {
		return nil, err
	}

	d := &vkDevice{
		physical: physical,
		surface:  inst.surface,
		indices:  indices,
		samples:  core1_0.Samples1,
	}

	properties, err := physical.Properties()
	if err != nil {
		return nil, errors.Wrap(err, "query device properties")
	}
	d.maxAnisotropy = properties.Limits.MaxSamplerAnisotropy

	if cfg.Multisample {
		d.samples = maxUsableSampleCount(properties.Limits.FramebufferColorSampleCounts & properties.Limits.FramebufferDepthSampleCounts)
		d.sampleShading = d.samples != core1_0.Samples1 && physical.Features().SampleRateShading
	}

	for _, memoryType := range physical.MemoryProperties().MemoryTypes {
		d.memoryTypes = append(d.memoryTypes, memoryType.PropertyFlags)
	}

	d.depthFormat, err = d.findSupportedFormat(depthFormatCandidates, core1_0.ImageTilingOptimal, core1_0.FormatFeatureDepthStencilAttachment)
	if err != nil {
		return nil, errors.Wrap(err, "find depth format")
	}

	var queueFamilyOptions []core1_0.DeviceQueueCreateInfo
	queuePriority := float32(1.0)
	for _, queueFamily := range indices.Unique() {
		queueFamilyOptions = append(queueFamilyOptions, core1_0.DeviceQueueCreateInfo{
			QueueFamilyIndex: queueFamily,
			QueuePriorities:  []float32{queuePriority},
		})
	}

	var extensionNames []string
	extensionNames = append(extensionNames, deviceExtensions...)

	// Required on portability implementations such as MoltenVK.
	extensions, _, err := physical.EnumerateDeviceExtensionProperties()
	if err != nil {
		return nil, errors.Wrap(err, "enumerate device extensions")
	}

	_, supported := extensions[khr_portability_subset.ExtensionName]
	if supported {
		extensionNames = append(extensionNames, khr_portability_subset.ExtensionName)
	}

	d.device, _, err = physical.CreateDevice(nil, core1_0.DeviceCreateInfo{
		QueueCreateInfos: queueFamilyOptions,
		EnabledFeatures: &core1_0.PhysicalDeviceFeatures{
			SamplerAnisotropy: true,
			SampleRateShading: d.sampleShading,
		},
		EnabledExtensionNames: extensionNames,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create logical device")
	}

	d.graphicsQueue = d.device.GetQueue(*indices.Graphics, 0)
	d.presentQueue = d.device.GetQueue(*indices.Present, 0)

	Logger().Info("logical device created",
		"queueFamilies", len(queueFamilyOptions),
		"depthFormat", d.depthFormat,
		"samples", d.samples,
		"sampleShading", d.sampleShading)
	return d, nil
}

func (d *vkDevice) findSupportedFormat(formats []core1_0.Format, tiling core1_0.ImageTiling, features core1_0.FormatFeatureFlags) (core1_0.Format, error) {
	for _, format := range formats {
		props := d.physical.FormatProperties(format)

		if tiling == core1_0.ImageTilingLinear && (props.LinearTilingFeatures&features) == features {
			return format, nil
		} else if tiling == core1_0.ImageTilingOptimal && (props.OptimalTilingFeatures&features) == features {
			return format, nil
		}
	}

	return 0, errors.Wrapf(ErrNoSupportedFormat, "tiling %s, features %s", tiling, features)
}

func (d *vkDevice) findMemoryType(typeFilter uint32, properties core1_0.MemoryPropertyFlags) (int, error) {
	return memoryTypeIndex(d.memoryTypes, typeFilter, properties)
}

func (d *vkDevice) WaitIdle() error {
	_, err := d.device.WaitIdle()
	return errors.Wrap(err, "wait for device idle")
}

func (d *vkDevice) Destroy() {
	if d.device != nil {
		d.device.Destroy(nil)
		d.device = nil
	}
}

func (d *vkDevice) createBuffer(size int, usage core1_0.BufferUsageFlags, properties core1_0.MemoryPropertyFlags) (core1_0.Buffer, core1_0.DeviceMemory, error) {
	buffer, _, err := d.device.CreateBuffer(nil, core1_0.BufferCreateInfo{
		Size:        size,
		Usage:       usage,
		SharingMode: core1_0.SharingModeExclusive,
	})
	if err != nil {
		return nil, nil, errors.Wrap(err, "create buffer")
	}

	memRequirements := buffer.MemoryRequirements()
	memoryTypeIndex, err := d.findMemoryType(memRequirements.MemoryTypeBits, properties)
	if err != nil {
		buffer.Destroy(nil)
		return nil, nil, err
	}

	memory, _, err := d.device.AllocateMemory(nil, core1_0.MemoryAllocateInfo{
		AllocationSize:  memRequirements.Size,
		MemoryTypeIndex: memoryTypeIndex,
	})
	if err != nil {
		buffer.Destroy(nil)
		return nil, nil, errors.Wrap(err, "allocate buffer memory")
	}

	_, err = buffer.BindBufferMemory(memory, 0)
	if err != nil {
		buffer.Destroy(nil)
		memory.Free(nil)
		return nil, nil, errors.Wrap(err, "bind buffer memory")
	}

	return buffer, memory, nil
}

// imageAttachment is an image with its backing memory and a single view.
type imageAttachment struct {
	image  core1_0.Image
	memory core1_0.DeviceMemory
	view   core1_0.ImageView
}

func (a *imageAttachment) destroy() {
	if a == nil {
		return
	}

	if a.view != nil {
		a.view.Destroy(nil)
		a.view = nil
	}

	if a.image != nil {
		a.image.Destroy(nil)
		a.image = nil
	}

	if a.memory != nil {
		a.memory.Free(nil)
		a.memory = nil
	}
}

type imageOptions struct {
	Width, Height int
	Format        core1_0.Format
	Samples       core1_0.SampleCountFlags
	Usage         core1_0.ImageUsageFlags
	Aspect        core1_0.ImageAspectFlags
}

func (d *vkDevice) createImage(opts imageOptions) (*imageAttachment, error) {
	image, _, err := d.device.CreateImage(nil, core1_0.ImageCreateOptions{
		ImageType: core1_0.ImageType2D,
		Extent: core1_0.Extent3D{
			Width:  opts.Width,
			Height: opts.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        opts.Format,
		Tiling:        core1_0.ImageTilingOptimal,
		InitialLayout: core1_0.ImageLayoutUndefined,
		Usage:         opts.Usage,
		SharingMode:   core1_0.SharingModeExclusive,
		Samples:       opts.Samples,
	})
	if err != nil {
		return nil, errors.Wrap(err, "create image")
	}

	attachment := &imageAttachment{image: image}

	memReqs := image.MemoryRequirements()
	memoryIndex, err := d.findMemoryType(memReqs.MemoryTypeBits, core1_0.MemoryPropertyDeviceLocal)
	if err != nil {
		attachment.destroy()
		return nil, err
	}

	attachment.memory, _, err = d.device.AllocateMemory(nil, core1_0.MemoryAllocateInfo{
		AllocationSize:  memReqs.Size,
		MemoryTypeIndex: memoryIndex,
	})
	if err != nil {
		attachment.destroy()
		return nil, errors.Wrap(err, "allocate image memory")
	}

	_, err = image.BindImageMemory(attachment.memory, 0)
	if err != nil {
		attachment.destroy()
		return nil, errors.Wrap(err, "bind image memory")
	}

	attachment.view, err = d.createImageView(image, opts.Format, opts.Aspect)
	if err != nil {
		attachment.destroy()
		return nil, err
	}

	return attachment, nil
}

func (d *vkDevice) createImageView(image core1_0.Image, format core1_0.Format, aspect core1_0.ImageAspectFlags) (core1_0.ImageView, error) {
	imageView, _, err := d.device.CreateImageView(nil, core1_0.ImageViewCreateInfo{
		Image:    image,
		ViewType: core1_0.ImageViewType2D,
		Format:   format,
		SubresourceRange: core1_0.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	})
	return imageView, errors.Wrap(err, "create image view")
}
