package renderer

import (
	"io/fs"

	"github.com/cockroachdb/errors"
)

// Config controls renderer construction. Start from DefaultConfig.
type Config struct {
	AppName string

	// Validation enables the Khronos validation layer and the debug messenger.
	Validation bool
	// Multisample renders at the device's highest usable sample count and resolves into the swapchain image.
	Multisample bool

	// Assets holds shader bytecode, the texture and the optional model.
	Assets         fs.FS
	VertexShader   string
	FragmentShader string
	Texture        string
	// Model is an OBJ path inside Assets. Empty selects the built-in quads.
	Model string

	FollowDistance float32
	// FieldOfView is the vertical field of view in degrees.
	FieldOfView float32
	ClearColor  [4]float32
}

func DefaultConfig() Config {
	return Config{
		AppName:        "simplegame",
		Validation:     debugBuild,
		VertexShader:   "shaders/vert.spv",
		FragmentShader: "shaders/frag.spv",
		Texture:        "images/texture.png",
		FollowDistance: 1,
		FieldOfView:    90,
		ClearColor:     [4]float32{0, 0, 0, 1},
	}
}

func (c Config) validate() error {
	if c.Assets == nil {
		return errors.New("config: no asset filesystem")
	}
	if c.VertexShader == "" || c.FragmentShader == "" {
		return errors.New("config: shader paths are required")
	}
	if c.Texture == "" {
		return errors.New("config: texture path is required")
	}
	if c.FieldOfView <= 0 || c.FieldOfView >= 180 {
		return errors.Newf("config: field of view %v out of range (0, 180)", c.FieldOfView)
	}
	if c.FollowDistance < 0 {
		return errors.Newf("config: negative follow distance %v", c.FollowDistance)
	}
	return nil
}
