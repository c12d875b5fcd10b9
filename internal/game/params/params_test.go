package params

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	c, err := Parse([]byte(`
parameters:
  - key: gravity
    description: Controls how quickly objects fall
    range: "(-1 = half gravity, 1 = double gravity)"
  - key: tilt
    description: Controls the angle of platforms
    range: "(-1 = tilted left, 1 = tilted right)"
`))
	require.NoError(t, err)

	assert.Equal(t, []string{"gravity", "tilt"}, c.Keys())
	assert.True(t, c.Known("gravity"))
	assert.False(t, c.Known("wind"))

	defs := c.All()
	require.Len(t, defs, 2)
	assert.Equal(t, "gravity", defs[0].Key)
}

func TestParse_Rejections(t *testing.T) {
	cases := map[string]string{
		"empty document": `parameters: []`,
		"missing key": `
parameters:
  - description: no key here
`,
		"duplicate key": `
parameters:
  - key: gravity
  - key: gravity
`,
		"malformed yaml": `parameters: [`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc))
			assert.Error(t, err)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "parameters.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
parameters:
  - key: gravity
    description: Controls how quickly objects fall
`), 0o644))

	c, err := LoadFile(path)
	require.NoError(t, err)
	assert.True(t, c.Known("gravity"))

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestDefaultCatalog(t *testing.T) {
	c := Default()

	for _, key := range []string{
		"gravity", "dart_speed", "dart_frequency", "dart_wall_height",
		"platform_height", "platform_width", "gap_width", "tilt",
	} {
		assert.True(t, c.Known(key), "default catalog missing %s", key)
	}
	assert.Len(t, c.All(), 14)
}

func TestClamp(t *testing.T) {
	assert.Equal(t, -1.0, Clamp(-7))
	assert.Equal(t, 1.0, Clamp(2.3))
	assert.Equal(t, 0.25, Clamp(0.25))
	assert.Equal(t, -1.0, Clamp(-1))
	assert.Equal(t, 1.0, Clamp(1))
}
