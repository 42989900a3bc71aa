package renderer

import (
	"encoding/binary"
	"io/fs"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/core1_0"
	"github.com/vkngwrapper/extensions/khr_swapchain"
)

// bytesToBytecode converts a little-endian SPIR-V blob to 32-bit words.
func bytesToBytecode(b []byte) ([]uint32, error) {
	if len(b) == 0 || len(b)%4 != 0 {
		return nil, errors.Wrapf(ErrMalformedShader, "%d bytes", len(b))
	}

	byteCode := make([]uint32, len(b)/4)
	for i := range byteCode {
		byteCode[i] = binary.LittleEndian.Uint32(b[i*4:])
	}

	return byteCode, nil
}

func loadShader(fsys fs.FS, name string) ([]uint32, error) {
	shaderBytes, err := fs.ReadFile(fsys, name)
	if err != nil {
		return nil, errors.Wrap(err, "read shader")
	}

	code, err := bytesToBytecode(shaderBytes)
	return code, errors.Wrapf(err, "shader %s", name)
}

func pushConstantRanges() []core1_0.PushConstantRange {
	return []core1_0.PushConstantRange{
		{
			StageFlags: core1_0.StageVertex,
			Offset:     modelConstantOffset,
			Size:       modelConstantSize,
		},
		{
			StageFlags: core1_0.StageFragment,
			Offset:     opacityConstantOffset,
			Size:       opacityConstantSize,
		},
	}
}

// renderPassInfo describes the single-subpass pass. With more than one
// sample the colour attachment is multisampled and resolved into a third
// attachment that is presented.
func renderPassInfo(format, depthFormat core1_0.Format, samples core1_0.SampleCountFlags) core1_0.RenderPassCreateInfo {
	multisampled := samples != core1_0.Samples1

	colorAttachment := core1_0.AttachmentDescription{
		Format:         format,
		Samples:        samples,
		LoadOp:         core1_0.AttachmentLoadOpClear,
		StoreOp:        core1_0.AttachmentStoreOpStore,
		StencilLoadOp:  core1_0.AttachmentLoadOpDontCare,
		StencilStoreOp: core1_0.AttachmentStoreOpDontCare,
		InitialLayout:  core1_0.ImageLayoutUndefined,
		FinalLayout:    khr_swapchain.ImageLayoutPresentSrc,
	}
	if multisampled {
		colorAttachment.StoreOp = core1_0.AttachmentStoreOpDontCare
		colorAttachment.FinalLayout = core1_0.ImageLayoutColorAttachmentOptimal
	}

	attachments := []core1_0.AttachmentDescription{
		colorAttachment,
		{
			Format:         depthFormat,
			Samples:        samples,
			LoadOp:         core1_0.AttachmentLoadOpClear,
			StoreOp:        core1_0.AttachmentStoreOpDontCare,
			StencilLoadOp:  core1_0.AttachmentLoadOpDontCare,
			StencilStoreOp: core1_0.AttachmentStoreOpDontCare,
			InitialLayout:  core1_0.ImageLayoutUndefined,
			FinalLayout:    core1_0.ImageLayoutDepthStencilAttachmentOptimal,
		},
	}

	subpass := core1_0.SubpassDescription{
		PipelineBindPoint: core1_0.PipelineBindPointGraphics,
		ColorAttachments: []core1_0.AttachmentReference{
			{
				Attachment: 0,
				Layout:     core1_0.ImageLayoutColorAttachmentOptimal,
			},
		},
		DepthStencilAttachment: &core1_0.AttachmentReference{
			Attachment: 1,
			Layout:     core1_0.ImageLayoutDepthStencilAttachmentOptimal,
		},
	}

	if multisampled {
		attachments = append(attachments, core1_0.AttachmentDescription{
			Format:         format,
			Samples:        core1_0.Samples1,
			LoadOp:         core1_0.AttachmentLoadOpDontCare,
			StoreOp:        core1_0.AttachmentStoreOpStore,
			StencilLoadOp:  core1_0.AttachmentLoadOpDontCare,
			StencilStoreOp: core1_0.AttachmentStoreOpDontCare,
			InitialLayout:  core1_0.ImageLayoutUndefined,
			FinalLayout:    khr_swapchain.ImageLayoutPresentSrc,
		})
		subpass.ResolveAttachments = []core1_0.AttachmentReference{
			{
				Attachment: 2,
				Layout:     core1_0.ImageLayoutColorAttachmentOptimal,
			},
		}
	}

	return core1_0.RenderPassCreateInfo{
		Attachments: attachments,
		Subpasses:   []core1_0.SubpassDescription{subpass},
		// Acquisition is asynchronous: colour writes must wait until the image is actually available.
		SubpassDependencies: []core1_0.SubpassDependency{
			{
				SrcSubpass: core1_0.SubpassExternal,
				DstSubpass: 0,

				SrcStageMask:  core1_0.PipelineStageColorAttachmentOutput | core1_0.PipelineStageEarlyFragmentTests,
				SrcAccessMask: 0,

				DstStageMask:  core1_0.PipelineStageColorAttachmentOutput | core1_0.PipelineStageEarlyFragmentTests,
				DstAccessMask: core1_0.AccessColorAttachmentWrite | core1_0.AccessDepthStencilAttachmentWrite,
			},
		},
	}
}

// vkPasses is the Pipeline/Pass Builder.
type vkPasses struct {
	device *vkDevice

	vertexCode   []uint32
	fragmentCode []uint32

	descriptorSetLayout core1_0.DescriptorSetLayout
	renderPass          core1_0.RenderPass
	pipelineLayout      core1_0.PipelineLayout
	graphicsPipeline    core1_0.Pipeline
}

func newPasses(device *vkDevice, cfg Config) (*vkPasses, error) {
	p := &vkPasses{device: device}

	var err error
	p.vertexCode, err = loadShader(cfg.Assets, cfg.VertexShader)
	if err != nil {
		return nil, err
	}

	p.fragmentCode, err = loadShader(cfg.Assets, cfg.FragmentShader)
	if err != nil {
		return nil, err
	}

	p.descriptorSetLayout, _, err = device.device.CreateDescriptorSetLayout(nil, core1_0.DescriptorSetLayoutCreateInfo{
		Bindings: []core1_0.DescriptorSetLayoutBinding{
			{
				Binding:         0,
				DescriptorType:  core1_0.DescriptorTypeUniformBuffer,
				DescriptorCount: 1,

				StageFlags: core1_0.StageVertex,
			},
			{
				Binding:         1,
				DescriptorType:  core1_0.DescriptorTypeCombinedImageSampler,
				DescriptorCount: 1,

				StageFlags: core1_0.StageFragment,
			},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "create descriptor set layout")
	}

	return p, nil
}

func (p *vkPasses) RenderPass() core1_0.RenderPass         { return p.renderPass }
func (p *vkPasses) Layout() core1_0.PipelineLayout         { return p.pipelineLayout }
func (p *vkPasses) Pipeline() core1_0.Pipeline             { return p.graphicsPipeline }
func (p *vkPasses) SetLayout() core1_0.DescriptorSetLayout { return p.descriptorSetLayout }

func (p *vkPasses) Build(format core1_0.Format, extent core1_0.Extent2D) error {
	var err error
	p.renderPass, _, err = p.device.device.CreateRenderPass(nil, renderPassInfo(format, p.device.depthFormat, p.device.samples))
	if err != nil {
		return errors.Wrap(err, "create render pass")
	}

	p.pipelineLayout, _, err = p.device.device.CreatePipelineLayout(nil, core1_0.PipelineLayoutCreateInfo{
		SetLayouts: []core1_0.DescriptorSetLayout{
			p.descriptorSetLayout,
		},
		PushConstantRanges: pushConstantRanges(),
	})
	if err != nil {
		return errors.Wrap(err, "create pipeline layout")
	}

	return p.buildPipeline(extent)
}

func (p *vkPasses) buildPipeline(extent core1_0.Extent2D) error {
	vertShader, _, err := p.device.device.CreateShaderModule(nil, core1_0.ShaderModuleCreateInfo{
		Code: p.vertexCode,
	})
	if err != nil {
		return errors.Wrap(err, "create vertex shader module")
	}
	defer vertShader.Destroy(nil)

	fragShader, _, err := p.device.device.CreateShaderModule(nil, core1_0.ShaderModuleCreateInfo{
		Code: p.fragmentCode,
	})
	if err != nil {
		return errors.Wrap(err, "create fragment shader module")
	}
	defer fragShader.Destroy(nil)

	vertexInput := &core1_0.PipelineVertexInputStateCreateInfo{
		VertexBindingDescriptions:   vertexBindingDescriptions(),
		VertexAttributeDescriptions: vertexAttributeDescriptions(),
	}

	inputAssembly := &core1_0.PipelineInputAssemblyStateCreateInfo{
		Topology:               core1_0.PrimitiveTopologyTriangleList,
		PrimitiveRestartEnable: false,
	}

	vertStage := core1_0.PipelineShaderStageCreateInfo{
		Stage:  core1_0.StageVertex,
		Module: vertShader,
		Name:   "main",
	}

	fragStage := core1_0.PipelineShaderStageCreateInfo{
		Stage:  core1_0.StageFragment,
		Module: fragShader,
		Name:   "main",
	}

	viewport := &core1_0.PipelineViewportStateCreateInfo{
		Viewports: []core1_0.Viewport{
			{
				X:        0,
				Y:        0,
				Width:    float32(extent.Width),
				Height:   float32(extent.Height),
				MinDepth: 0,
				MaxDepth: 1,
			},
		},
		Scissors: []core1_0.Rect2D{
			{
				Offset: core1_0.Offset2D{X: 0, Y: 0},
				Extent: extent,
			},
		},
	}

	rasterization := &core1_0.PipelineRasterizationStateCreateInfo{
		DepthClampEnable:        false,
		RasterizerDiscardEnable: false,

		PolygonMode: core1_0.PolygonModeFill,
		CullMode:    core1_0.CullModeBack,
		FrontFace:   core1_0.FrontFaceCounterClockwise,

		DepthBiasEnable: false,

		LineWidth: 1.0,
	}

	multisample := &core1_0.PipelineMultisampleStateCreateInfo{
		SampleShadingEnable:  p.device.sampleShading,
		RasterizationSamples: p.device.samples,
		MinSampleShading:     1.0,
	}
	if p.device.sampleShading {
		multisample.MinSampleShading = 0.2
	}

	depthStencil := &core1_0.PipelineDepthStencilStateCreateInfo{
		DepthTestEnable:  true,
		DepthWriteEnable: true,
		DepthCompareOp:   core1_0.CompareOpLess,
	}

	colorBlend := &core1_0.PipelineColorBlendStateCreateInfo{
		LogicOpEnabled: false,
		LogicOp:        core1_0.LogicOpCopy,

		BlendConstants: [4]float32{0, 0, 0, 0},
		Attachments: []core1_0.PipelineColorBlendAttachmentState{
			{
				BlendEnabled:   false,
				ColorWriteMask: core1_0.ColorComponentRed | core1_0.ColorComponentGreen | core1_0.ColorComponentBlue | core1_0.ColorComponentAlpha,
			},
		},
	}

	pipelines, _, err := p.device.device.CreateGraphicsPipelines(nil, nil, []core1_0.GraphicsPipelineCreateInfo{
		{
			Stages: []core1_0.PipelineShaderStageCreateInfo{
				vertStage,
				fragStage,
			},
			VertexInputState:   vertexInput,
			InputAssemblyState: inputAssembly,
			ViewportState:      viewport,
			RasterizationState: rasterization,
			MultisampleState:   multisample,
			DepthStencilState:  depthStencil,
			ColorBlendState:    colorBlend,
			Layout:             p.pipelineLayout,
			RenderPass:         p.renderPass,
			Subpass:            0,
			BasePipelineIndex:  -1,
		},
	})
	if err != nil {
		return errors.Wrap(err, "create graphics pipeline")
	}
	p.graphicsPipeline = pipelines[0]

	return nil
}

// Teardown releases the objects that depend on the swapchain.
func (p *vkPasses) Teardown() {
	if p.graphicsPipeline != nil {
		p.graphicsPipeline.Destroy(nil)
		p.graphicsPipeline = nil
	}

	if p.pipelineLayout != nil {
		p.pipelineLayout.Destroy(nil)
		p.pipelineLayout = nil
	}

	if p.renderPass != nil {
		p.renderPass.Destroy(nil)
		p.renderPass = nil
	}
}

func (p *vkPasses) Destroy() {
	if p.descriptorSetLayout != nil {
		p.descriptorSetLayout.Destroy(nil)
		p.descriptorSetLayout = nil
	}
}
