package renderer

import (
	"io"
	"io/fs"
	"path"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/g3n/engine/loader/obj"
	"github.com/go-gl/mathgl/mgl32"
)

// geometry is the static vertex and index data uploaded once at startup.
type geometry struct {
	Vertices []Vertex
	Indices  []uint32
}

// builtinGeometry is two stacked textured quads.
func builtinGeometry() geometry {
	return geometry{
		Vertices: []Vertex{
			{Position: mgl32.Vec3{-0.5, -0.5, 0}, Color: mgl32.Vec3{1, 0, 0}, TexCoord: mgl32.Vec2{1, 0}},
			{Position: mgl32.Vec3{0.5, -0.5, 0}, Color: mgl32.Vec3{0, 1, 0}, TexCoord: mgl32.Vec2{0, 0}},
			{Position: mgl32.Vec3{0.5, 0.5, 0}, Color: mgl32.Vec3{0, 0, 1}, TexCoord: mgl32.Vec2{0, 1}},
			{Position: mgl32.Vec3{-0.5, 0.5, 0}, Color: mgl32.Vec3{1, 1, 1}, TexCoord: mgl32.Vec2{1, 1}},

			{Position: mgl32.Vec3{-0.5, -0.5, -0.5}, Color: mgl32.Vec3{1, 0, 0}, TexCoord: mgl32.Vec2{0, 0}},
			{Position: mgl32.Vec3{0.5, -0.5, -0.5}, Color: mgl32.Vec3{0, 1, 0}, TexCoord: mgl32.Vec2{1, 0}},
			{Position: mgl32.Vec3{0.5, 0.5, -0.5}, Color: mgl32.Vec3{0, 0, 1}, TexCoord: mgl32.Vec2{1, 1}},
			{Position: mgl32.Vec3{-0.5, 0.5, -0.5}, Color: mgl32.Vec3{1, 1, 1}, TexCoord: mgl32.Vec2{0, 1}},
		},
		Indices: []uint32{
			0, 1, 2, 2, 3, 0,
			4, 5, 6, 6, 7, 4,
		},
	}
}

type meshBuilder struct {
	geometry
	unique map[Vertex]uint32
}

func newMeshBuilder() *meshBuilder {
	return &meshBuilder{unique: make(map[Vertex]uint32)}
}

// add appends the index of v, reusing an existing vertex when one is exactly equal.
func (b *meshBuilder) add(v Vertex) {
	index, exists := b.unique[v]
	if !exists {
		index = uint32(len(b.Vertices))
		b.Vertices = append(b.Vertices, v)
		b.unique[v] = index
	}

	b.Indices = append(b.Indices, index)
}

func faceVertex(decoder *obj.Decoder, face obj.Face, faceIndex int) (Vertex, error) {
	vertInd := face.Vertices[faceIndex]
	if vertInd < 0 || vertInd*3+2 >= len(decoder.Vertices) {
		return Vertex{}, errors.Newf("vertex index %d out of range", vertInd)
	}

	vert := Vertex{
		Position: mgl32.Vec3{
			decoder.Vertices[vertInd*3],
			decoder.Vertices[vertInd*3+1],
			decoder.Vertices[vertInd*3+2],
		},
		Color: mgl32.Vec3{1, 1, 1},
	}

	if faceIndex < len(face.Uvs) {
		uvInd := face.Uvs[faceIndex]
		if uvInd >= 0 && uvInd*2+1 < len(decoder.Uvs) {
			vert.TexCoord = mgl32.Vec2{
				decoder.Uvs[uvInd*2],
				1.0 - decoder.Uvs[uvInd*2+1],
			}
		}
	}

	return vert, nil
}

// decodeModel triangulates every face as a fan and deduplicates vertices.
func decodeModel(objReader, mtlReader io.Reader) (geometry, error) {
	decoder, err := obj.DecodeReader(objReader, mtlReader)
	if err != nil {
		return geometry{}, errors.Wrap(err, "decode obj")
	}

	builder := newMeshBuilder()
	for _, decodedObj := range decoder.Objects {
		for _, face := range decodedObj.Faces {
			for i := 2; i < len(face.Vertices); i++ {
				for _, corner := range [3]int{0, i - 1, i} {
					vert, err := faceVertex(decoder, face, corner)
					if err != nil {
						return geometry{}, errors.Wrapf(err, "object %s", decodedObj.Name)
					}
					builder.add(vert)
				}
			}
		}
	}

	if len(builder.Indices) == 0 {
		return geometry{}, errors.New("model has no faces")
	}

	return builder.geometry, nil
}

// loadModel reads an OBJ file and its sibling MTL, if present, from fsys.
func loadModel(fsys fs.FS, name string) (geometry, error) {
	meshFile, err := fsys.Open(name)
	if err != nil {
		return geometry{}, errors.Wrap(err, "open model")
	}
	defer meshFile.Close()

	var mtlReader io.Reader = strings.NewReader("")
	mtlName := strings.TrimSuffix(name, path.Ext(name)) + ".mtl"
	if matFile, err := fsys.Open(mtlName); err == nil {
		defer matFile.Close()
		mtlReader = matFile
	}

	model, err := decodeModel(meshFile, mtlReader)
	if err != nil {
		return geometry{}, errors.Wrapf(err, "load model %s", name)
	}

	Logger().Debug("model loaded", "path", name, "vertices", len(model.Vertices), "indices", len(model.Indices))
	return model, nil
}
