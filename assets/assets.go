// Package assets embeds the shaders, textures and meshes the game ships with.
// Run go generate after editing a shader source to rebuild its SPIR-V.
package assets

import "embed"

//go:generate glslc shaders/shader.vert -o shaders/vert.spv
//go:generate glslc shaders/shader.frag -o shaders/frag.spv

//go:embed shaders images meshes
var FS embed.FS
