package renderer

import (
	"math"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/common"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/khr_surface"
	"github.com/vkngwrapper/extensions/khr_swapchain"
)

func chooseSwapSurfaceFormat(availableFormats []khr_surface.Format) khr_surface.Format {
	for _, format := range availableFormats {
		if format.Format == core1_0.FormatB8G8R8A8SRGB && format.ColorSpace == khr_surface.ColorSpaceSRGBNonlinear {
			return format
		}
	}

	return availableFormats[0]
}

func chooseSwapPresentMode(availablePresentModes []khr_surface.PresentMode) khr_surface.PresentMode {
	for _, presentMode := range availablePresentModes {
		if presentMode == khr_surface.PresentModeMailbox {
			return presentMode
		}
	}

	return khr_surface.PresentModeFIFO
}

// undefinedExtent reports the all-ones width a surface uses when the
// swapchain decides its own size.
func undefinedExtent(width int) bool {
	return width == -1 || uint32(width) == math.MaxUint32
}

func clamp(value, low, high int) int {
	if value < low {
		return low
	}
	if value > high {
		return high
	}
	return value
}

func chooseSwapExtent(capabilities *khr_surface.Capabilities, width, height int) core1_0.Extent2D {
	if !undefinedExtent(capabilities.CurrentExtent.Width) {
		return capabilities.CurrentExtent
	}

	return core1_0.Extent2D{
		Width:  clamp(width, capabilities.MinImageExtent.Width, capabilities.MaxImageExtent.Width),
		Height: clamp(height, capabilities.MinImageExtent.Height, capabilities.MaxImageExtent.Height),
	}
}

// chooseImageCount asks for one more than the minimum. A maximum of 0 means unbounded.
func chooseImageCount(capabilities *khr_surface.Capabilities) int {
	imageCount := capabilities.MinImageCount + 1
	if capabilities.MaxImageCount > 0 && capabilities.MaxImageCount < imageCount {
		imageCount = capabilities.MaxImageCount
	}
	return imageCount
}

func chooseSharingMode(indices QueueFamilyIndices) (core1_0.SharingMode, []int) {
	if *indices.Graphics != *indices.Present {
		return core1_0.SharingModeConcurrent, []int{*indices.Graphics, *indices.Present}
	}
	return core1_0.SharingModeExclusive, nil
}

// vkSwapchain is the Swapchain Manager.
type vkSwapchain struct {
	device    *vkDevice
	extension khr_swapchain.Extension

	swapchain   khr_swapchain.Swapchain
	images      []core1_0.Image
	imageViews  []core1_0.ImageView
	imageFormat core1_0.Format
	extent      core1_0.Extent2D

	depth        *imageAttachment
	color        *imageAttachment
	framebuffers []core1_0.Framebuffer
}

func newSwapchain(device *vkDevice) *vkSwapchain {
	return &vkSwapchain{
		device:    device,
		extension: khr_swapchain.CreateExtensionFromDevice(device.device),
	}
}

func (s *vkSwapchain) Create(width, height int) error {
	support, err := querySwapchainSupport(s.device.surface, s.device.physical)
	if err != nil {
		return err
	}
	if len(support.Formats) == 0 {
		return errors.Wrap(ErrNoSupportedFormat, "surface reports no formats")
	}

	surfaceFormat := chooseSwapSurfaceFormat(support.Formats)
	presentMode := chooseSwapPresentMode(support.PresentModes)
	extent := chooseSwapExtent(support.Capabilities, width, height)
	imageCount := chooseImageCount(support.Capabilities)
	sharingMode, queueFamilyIndices := chooseSharingMode(s.device.indices)

	swapchain, _, err := s.extension.CreateSwapchain(s.device.device, nil, khr_swapchain.SwapchainCreateInfo{
		Surface: s.device.surface,

		MinImageCount:    imageCount,
		ImageFormat:      surfaceFormat.Format,
		ImageColorSpace:  surfaceFormat.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		ImageUsage:       core1_0.ImageUsageColorAttachment,

		ImageSharingMode:   sharingMode,
		QueueFamilyIndices: queueFamilyIndices,

		PreTransform:   support.Capabilities.CurrentTransform,
		CompositeAlpha: khr_surface.CompositeAlphaOpaque,
		PresentMode:    presentMode,
		Clipped:        true,
	})
	if err != nil {
		return errors.Wrap(err, "create swapchain")
	}
	s.swapchain = swapchain
	s.extent = extent
	s.imageFormat = surfaceFormat.Format

	images, _, err := swapchain.SwapchainImages()
	if err != nil {
		return errors.Wrap(err, "get swapchain images")
	}
	s.images = images

	for _, image := range images {
		view, err := s.device.createImageView(image, s.imageFormat, core1_0.ImageAspectColor)
		if err != nil {
			return err
		}
		s.imageViews = append(s.imageViews, view)
	}

	Logger().Debug("swapchain created",
		"width", extent.Width,
		"height", extent.Height,
		"images", len(images),
		"presentMode", presentMode,
		"sharing", sharingMode)
	return nil
}

func (s *vkSwapchain) ImageCount() int                       { return len(s.images) }
func (s *vkSwapchain) Format() core1_0.Format                { return s.imageFormat }
func (s *vkSwapchain) Extent() core1_0.Extent2D              { return s.extent }
func (s *vkSwapchain) Framebuffer(i int) core1_0.Framebuffer { return s.framebuffers[i] }

// CreateFramebuffers builds the depth attachment, the multisampled colour
// attachment when enabled, and one framebuffer per swapchain image.
func (s *vkSwapchain) CreateFramebuffers(renderPass core1_0.RenderPass) error {
	var err error
	s.depth, err = s.device.createImage(imageOptions{
		Width:   s.extent.Width,
		Height:  s.extent.Height,
		Format:  s.device.depthFormat,
		Samples: s.device.samples,
		Usage:   core1_0.ImageUsageDepthStencilAttachment,
		Aspect:  core1_0.ImageAspectDepth,
	})
	if err != nil {
		return errors.Wrap(err, "depth attachment")
	}

	multisampled := s.device.samples != core1_0.Samples1
	if multisampled {
		s.color, err = s.device.createImage(imageOptions{
			Width:   s.extent.Width,
			Height:  s.extent.Height,
			Format:  s.imageFormat,
			Samples: s.device.samples,
			Usage:   core1_0.ImageUsageTransientAttachment | core1_0.ImageUsageColorAttachment,
			Aspect:  core1_0.ImageAspectColor,
		})
		if err != nil {
			return errors.Wrap(err, "multisample colour attachment")
		}
	}

	for _, imageView := range s.imageViews {
		attachments := []core1_0.ImageView{imageView, s.depth.view}
		if multisampled {
			// Attachment order matches the render pass: colour, depth, resolve.
			attachments = []core1_0.ImageView{s.color.view, s.depth.view, imageView}
		}

		framebuffer, _, err := s.device.device.CreateFramebuffer(nil, core1_0.FramebufferCreateInfo{
			RenderPass:  renderPass,
			Layers:      1,
			Attachments: attachments,
			Width:       s.extent.Width,
			Height:      s.extent.Height,
		})
		if err != nil {
			return errors.Wrap(err, "create framebuffer")
		}

		s.framebuffers = append(s.framebuffers, framebuffer)
	}

	return nil
}

func (s *vkSwapchain) DestroyFramebuffers() {
	s.color.destroy()
	s.color = nil

	s.depth.destroy()
	s.depth = nil

	for _, framebuffer := range s.framebuffers {
		framebuffer.Destroy(nil)
	}
	s.framebuffers = nil
}

func (s *vkSwapchain) AcquireNextImage(signal core1_0.Semaphore) (int, presentStatus, error) {
	imageIndex, res, err := s.swapchain.AcquireNextImage(common.NoTimeout, signal, nil)
	if res == khr_swapchain.VKErrorOutOfDate {
		return imageIndex, statusOutOfDate, nil
	} else if err != nil {
		return imageIndex, statusOK, errors.Wrap(err, "acquire next image")
	}

	if res == khr_swapchain.VKSuboptimal {
		return imageIndex, statusSuboptimal, nil
	}
	return imageIndex, statusOK, nil
}

func (s *vkSwapchain) Present(imageIndex int, wait core1_0.Semaphore) (presentStatus, error) {
	res, err := s.extension.QueuePresent(s.device.presentQueue, khr_swapchain.PresentInfo{
		WaitSemaphores: []core1_0.Semaphore{wait},
		Swapchains:     []khr_swapchain.Swapchain{s.swapchain},
		ImageIndices:   []int{imageIndex},
	})
	if res == khr_swapchain.VKErrorOutOfDate {
		return statusOutOfDate, nil
	} else if err != nil {
		return statusOK, errors.Wrap(err, "present")
	}

	if res == khr_swapchain.VKSuboptimal {
		return statusSuboptimal, nil
	}
	return statusOK, nil
}

func (s *vkSwapchain) Teardown() {
	for _, imageView := range s.imageViews {
		imageView.Destroy(nil)
	}
	s.imageViews = nil
	s.images = nil

	if s.swapchain != nil {
		s.swapchain.Destroy(nil)
		s.swapchain = nil
	}
}
