package renderer

import (
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"

	"github.com/cockroachdb/errors"
	"github.com/vkngwrapper/core/core1_0"
	_ "golang.org/x/image/bmp"
	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

const textureFormat = core1_0.FormatR8G8B8A8SRGB

type layoutPair struct {
	Old core1_0.ImageLayout
	New core1_0.ImageLayout
}

type layoutTransition struct {
	SrcAccess core1_0.AccessFlags
	DstAccess core1_0.AccessFlags
	SrcStage  core1_0.PipelineStageFlags
	DstStage  core1_0.PipelineStageFlags
}

var layoutTransitions = map[layoutPair]layoutTransition{
	{core1_0.ImageLayoutUndefined, core1_0.ImageLayoutTransferDstOptimal}: {
		SrcAccess: 0,
		DstAccess: core1_0.AccessTransferWrite,
		SrcStage:  core1_0.PipelineStageTopOfPipe,
		DstStage:  core1_0.PipelineStageTransfer,
	},
	{core1_0.ImageLayoutTransferDstOptimal, core1_0.ImageLayoutShaderReadOnlyOptimal}: {
		SrcAccess: core1_0.AccessTransferWrite,
		DstAccess: core1_0.AccessShaderRead,
		SrcStage:  core1_0.PipelineStageTransfer,
		DstStage:  core1_0.PipelineStageFragmentShader,
	},
}

func transitionFor(oldLayout, newLayout core1_0.ImageLayout) (layoutTransition, error) {
	transition, ok := layoutTransitions[layoutPair{oldLayout, newLayout}]
	if !ok {
		return layoutTransition{}, errors.Wrapf(ErrUnsupportedTransition, "%s -> %s", oldLayout, newLayout)
	}
	return transition, nil
}

// pixelData is a decoded texture in tightly packed RGBA8.
type pixelData struct {
	Width  int
	Height int
	Pix    []byte
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Rect.Min == (image.Point{}) && rgba.Stride == 4*rgba.Rect.Dx() {
		return rgba
	}

	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	xdraw.Draw(rgba, rgba.Bounds(), img, bounds.Min, xdraw.Src)
	return rgba
}

func decodePixels(img image.Image) pixelData {
	rgba := toRGBA(img)
	return pixelData{
		Width:  rgba.Rect.Dx(),
		Height: rgba.Rect.Dy(),
		Pix:    rgba.Pix,
	}
}

// loadTexture decodes any registered image format from fsys.
func loadTexture(fsys fs.FS, name string) (pixelData, error) {
	file, err := fsys.Open(name)
	if err != nil {
		return pixelData{}, errors.Wrap(err, "open texture")
	}
	defer file.Close()

	img, format, err := image.Decode(file)
	if err != nil {
		return pixelData{}, errors.Wrapf(err, "decode texture %s", name)
	}

	pixels := decodePixels(img)
	if pixels.Width == 0 || pixels.Height == 0 {
		return pixelData{}, errors.Newf("texture %s is empty", name)
	}

	Logger().Debug("texture loaded", "path", name, "format", format, "width", pixels.Width, "height", pixels.Height)
	return pixels, nil
}
