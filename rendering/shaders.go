package rendering

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"radarsweep/core"
)

// Fixed shader file names looked up in the shader directory
const (
	PointVertexFile   = "PointVertexShader.glsl"
	PointFragmentFile = "PointFragmentShader.glsl"
	QuadVertexFile    = "QuadVertexShader.glsl"
	QuadFragmentFile  = "QuadFragmentShader.glsl"
)

// ShaderSet holds the GLSL sources of the point and quad programs
type ShaderSet struct {
	PointVertex   string
	PointFragment string
	QuadVertex    string
	QuadFragment  string
}

// LoadShaders reads the four program sources from dir. Every failure is an
// InitError since the renderers cannot start without them.
func LoadShaders(dir string) (ShaderSet, error) {
	if strings.TrimSpace(dir) == "" {
		return ShaderSet{}, core.NewInitError("load shaders", core.ErrShaderDirUnset)
	}

	var set ShaderSet
	files := []struct {
		name string
		dst  *string
	}{
		{PointVertexFile, &set.PointVertex},
		{PointFragmentFile, &set.PointFragment},
		{QuadVertexFile, &set.QuadVertex},
		{QuadFragmentFile, &set.QuadFragment},
	}
	for _, f := range files {
		src, err := os.ReadFile(filepath.Join(dir, f.name))
		if err != nil {
			return ShaderSet{}, core.NewInitError("load shaders", fmt.Errorf("failed to read %s: %w", f.name, err))
		}
		*f.dst = string(src)
	}
	return set, nil
}
