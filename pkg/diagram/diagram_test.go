package diagram

import (
	"bytes"
	"image/png"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkcurrie/regio/pkg/catalog"
)

func lookup(t *testing.T, cat, name string) *catalog.RegisterDesc {
	t.Helper()
	c, err := catalog.Builtin(cat)
	require.NoError(t, err)
	d, err := c.Get(name)
	require.NoError(t, err)
	return d
}

func TestSVG(t *testing.T) {
	d := lookup(t, "bcm2837-aux", "AUX_MU_LCR")
	v := uint64(0x43)

	var buf bytes.Buffer
	require.NoError(t, SVG(&buf, d, Options{Value: &v}))
	out := buf.String()

	assert.True(t, strings.HasPrefix(out, "<svg "))
	assert.Contains(t, out, "AUX_MU_LCR")
	assert.Contains(t, out, "DataSize=EightBit")
	assert.Contains(t, out, "Break=0x1")
	assert.Contains(t, out, "= 0x43")
	assert.Equal(t, 32, strings.Count(out, `fill="#ffffff"`))
}

func TestLayoutRows(t *testing.T) {
	d := lookup(t, "aarch64", "TTBR0_EL1")
	p := layout(d, Options{})

	// 64 bit cells plus BADDR split across both rows.
	cells := 0
	for _, r := range p.Rects {
		if r.Fill == "#ffffff" {
			cells++
		}
	}
	assert.Equal(t, 64, cells)
	assert.Equal(t, 64+1+2+1, len(p.Rects))
	assert.Equal(t, float64(2*margin+32*cellW), p.W)
}

func TestOverlappingFieldsGetLanes(t *testing.T) {
	d := lookup(t, "aarch64", "SPSR_EL3")
	lanes := assignLanes(d)

	for i := range d.Fields {
		for j := i + 1; j < len(d.Fields); j++ {
			if d.Fields[i].Mask()&d.Fields[j].Mask() != 0 {
				assert.NotEqual(t, lanes[i], lanes[j], "%s and %s", d.Fields[i].Name, d.Fields[j].Name)
			}
		}
	}
}

func TestPNG(t *testing.T) {
	d := lookup(t, "aarch32", "TTBCR")

	var buf bytes.Buffer
	require.NoError(t, PNG(&buf, d, Options{}, 2))
	img, err := png.Decode(&buf)
	require.NoError(t, err)

	b := img.Bounds()
	assert.Equal(t, 2*(2*margin+32*cellW), b.Dx())
	assert.Greater(t, b.Dy(), 0)
}
