package renderer

import (
	"bytes"
	"encoding/binary"
	"unsafe"

	"github.com/cockroachdb/errors"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/vkngwrapper/core/common"
	"github.com/vkngwrapper/core/core1_0"

	"github.com/oxide-engine/simplegame/internal/character"
)

const (
	nearPlane = 0.1
	farPlane  = 1000.0
)

var worldUp = mgl32.Vec3{0, 0, 1}

// vulkanClipCorrection maps GL clip space to Vulkan's: Y flipped and depth in [0, 1].
var vulkanClipCorrection = mgl32.Mat4{
	1, 0, 0, 0,
	0, -1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

// Camera is the snapshot of character state the renderer reads each frame.
type Camera struct {
	Position  mgl32.Vec3
	ViewAngle character.Euler
}

// UniformBufferObject is the per-image uniform block.
type UniformBufferObject struct {
	View mgl32.Mat4
	Proj mgl32.Mat4
}

// DrawInstance is the push-constant block of one draw: the model matrix for
// the vertex stage followed by the opacity for the fragment stage.
type DrawInstance struct {
	Model   mgl32.Mat4
	Opacity float32
}

const (
	modelConstantOffset   = 0
	modelConstantSize     = int(unsafe.Sizeof(mgl32.Mat4{}))
	opacityConstantOffset = modelConstantOffset + modelConstantSize
	opacityConstantSize   = int(unsafe.Sizeof(float32(0)))
)

func cameraEye(cam Camera, followDistance float32) mgl32.Vec3 {
	return cam.Position.Sub(cam.ViewAngle.Forward().Mul(followDistance))
}

func viewMatrix(cam Camera, followDistance float32) mgl32.Mat4 {
	return mgl32.LookAtV(cameraEye(cam, followDistance), cam.Position, worldUp)
}

func projectionMatrix(extent core1_0.Extent2D, fieldOfView float32) mgl32.Mat4 {
	aspect := float32(1)
	if extent.Height != 0 {
		aspect = float32(extent.Width) / float32(extent.Height)
	}

	return vulkanClipCorrection.Mul4(mgl32.Perspective(mgl32.DegToRad(fieldOfView), aspect, nearPlane, farPlane))
}

func uniformFor(cam Camera, extent core1_0.Extent2D, cfg Config) UniformBufferObject {
	return UniformBufferObject{
		View: viewMatrix(cam, cfg.FollowDistance),
		Proj: projectionMatrix(extent, cfg.FieldOfView),
	}
}

// sceneInstances places one model on the character and one at the origin.
func sceneInstances(cam Camera) []DrawInstance {
	rotation := mgl32.HomogRotate3D(mgl32.DegToRad(90), worldUp)

	return []DrawInstance{
		{
			Model:   rotation.Mul4(mgl32.Translate3D(cam.Position.X(), cam.Position.Y(), cam.Position.Z())),
			Opacity: 0.25,
		},
		{
			Model:   rotation,
			Opacity: 0.5,
		},
	}
}

func (d DrawInstance) modelBytes() []byte {
	return encodeBytes(d.Model)
}

func (d DrawInstance) opacityBytes() []byte {
	return encodeBytes(d.Opacity)
}

func encodeBytes(data any) []byte {
	buf := &bytes.Buffer{}
	// binary.Write cannot fail for fixed-size values written to a bytes.Buffer.
	_ = binary.Write(buf, common.ByteOrder, data)
	return buf.Bytes()
}

// hostMapping is host-visible memory that can be mapped for writing.
type hostMapping interface {
	Map(offset, size int) (unsafe.Pointer, error)
	Unmap()
}

type deviceMapping struct {
	memory core1_0.DeviceMemory
}

func (m deviceMapping) Map(offset, size int) (unsafe.Pointer, error) {
	ptr, _, err := m.memory.Map(offset, size, 0)
	return ptr, err
}

func (m deviceMapping) Unmap() {
	m.memory.Unmap()
}

// writeData maps size(data) bytes at offset, copies data in native byte order and unmaps.
func writeData(memory hostMapping, offset int, data any) error {
	bufferSize := binary.Size(data)
	if bufferSize < 0 {
		return errors.Newf("cannot write %T: not a fixed-size value", data)
	}

	buf := &bytes.Buffer{}
	err := binary.Write(buf, common.ByteOrder, data)
	if err != nil {
		return errors.Wrap(err, "encode host data")
	}

	memoryPtr, err := memory.Map(offset, bufferSize)
	if err != nil {
		return errors.Wrap(err, "map memory")
	}
	defer memory.Unmap()

	dataBuffer := unsafe.Slice((*byte)(memoryPtr), bufferSize)
	copy(dataBuffer, buf.Bytes())
	return nil
}
