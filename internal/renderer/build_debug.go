//go:build !release

package renderer

const debugBuild = true
