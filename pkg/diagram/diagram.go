// Package diagram draws the bit layout of a register.
package diagram

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"
	"io"
	"text/template"

	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"

	"github.com/fkcurrie/regio/pkg/catalog"
)

const (
	cellW    = 24
	cellH    = 28
	margin   = 16
	titleH   = 28
	numberH  = 14
	laneH    = 22
	rowGap   = 14
	bitsRow  = 32
	fontSize = 11
)

var palette = []string{
	"#8ecae6", "#ffb703", "#90be6d", "#f4a261",
	"#cdb4db", "#e5989b", "#a8dadc", "#ffd166",
}

// Options control what a diagram shows.
type Options struct {
	// Value, when set, is printed bit by bit and decoded per field.
	Value *uint64
}

type rect struct {
	X, Y, W, H float64
	Fill       string
}

type text struct {
	X, Y   float64
	Anchor string
	Size   int
	Body   string
}

type page struct {
	W, H  float64
	Rects []rect
	Texts []text
}

// layout places every element of the diagram. Registers wider than 32
// bits are drawn as several rows, most significant first. Fields that
// overlap another field go to a lower lane.
func layout(d *catalog.RegisterDesc, opt Options) page {
	width := int(d.Width)
	rows := (width + bitsRow - 1) / bitsRow
	perRow := width
	if perRow > bitsRow {
		perRow = bitsRow
	}
	lanes := assignLanes(d)
	nLanes := 1
	for _, l := range lanes {
		if l+1 > nLanes {
			nLanes = l + 1
		}
	}
	rowH := float64(numberH + cellH + nLanes*laneH + rowGap)

	p := page{
		W: float64(2*margin + perRow*cellW),
		H: float64(2*margin+titleH) + float64(rows)*rowH,
	}
	title := fmt.Sprintf("%s  %s %s %s", d.Name, d.Where(), d.Width, d.Access)
	if opt.Value != nil {
		title += fmt.Sprintf("  = %#x", *opt.Value)
	}
	p.Texts = append(p.Texts, text{X: margin, Y: margin + 16, Anchor: "start", Size: fontSize + 3, Body: title})

	// x returns the left edge of bit b within its row.
	x := func(b int) float64 { return float64(margin + (perRow-1-b%bitsRow)*cellW) }
	top := func(row int) float64 { return float64(margin+titleH) + float64(row)*rowH }

	for b := width - 1; b >= 0; b-- {
		row := (width - 1 - b) / bitsRow
		y := top(row)
		p.Texts = append(p.Texts, text{
			X: x(b) + cellW/2, Y: y + numberH - 3, Anchor: "middle", Size: fontSize - 2,
			Body: fmt.Sprint(b),
		})
		p.Rects = append(p.Rects, rect{X: x(b), Y: y + numberH, W: cellW, H: cellH, Fill: "#ffffff"})
		if opt.Value != nil {
			p.Texts = append(p.Texts, text{
				X: x(b) + cellW/2, Y: y + numberH + cellH/2 + 4, Anchor: "middle", Size: fontSize,
				Body: fmt.Sprint(*opt.Value >> b & 1),
			})
		}
	}

	var decoded []uint64
	if opt.Value != nil {
		decoded = d.Decode(*opt.Value)
	}
	for i := range d.Fields {
		f := &d.Fields[i]
		fill := palette[i%len(palette)]
		lo, hi := int(f.Offset), int(f.Offset+f.Width)-1
		// One segment per row the field crosses.
		for seg := hi; seg >= lo; {
			row := (width - 1 - seg) / bitsRow
			segLo := lo
			if rowLo := width - (row+1)*bitsRow; rowLo > segLo {
				segLo = rowLo
			}
			y := top(row) + numberH + cellH + float64(lanes[i]*laneH)
			p.Rects = append(p.Rects, rect{
				X: x(seg), Y: y + 2, W: float64((seg-segLo+1)*cellW) - 2, H: laneH - 4, Fill: fill,
			})
			label := f.Name
			if decoded != nil && seg == hi {
				label = fmt.Sprintf("%s=%s", f.Name, fieldValue(f, decoded[i]))
			}
			p.Texts = append(p.Texts, text{
				X: x(seg) + float64((seg-segLo+1)*cellW)/2, Y: y + laneH/2 + 4, Anchor: "middle", Size: fontSize - 1,
				Body: label,
			})
			seg = segLo - 1
		}
	}
	return p
}

func fieldValue(f *catalog.FieldDesc, v uint64) string {
	if name, ok := f.ValueName(v); ok {
		return name
	}
	return fmt.Sprintf("%#x", v)
}

func assignLanes(d *catalog.RegisterDesc) []int {
	lanes := make([]int, len(d.Fields))
	var used []uint64
	for i := range d.Fields {
		m := d.Fields[i].Mask()
		lane := 0
		for lane < len(used) && used[lane]&m != 0 {
			lane++
		}
		if lane == len(used) {
			used = append(used, 0)
		}
		used[lane] |= m
		lanes[i] = lane
	}
	return lanes
}

var svgTemplate = template.Must(template.New("svg").Parse(
	`<svg xmlns="http://www.w3.org/2000/svg" width="{{.W}}" height="{{.H}}" viewBox="0 0 {{.W}} {{.H}}">
<rect x="0" y="0" width="{{.W}}" height="{{.H}}" fill="#fafafa"/>
{{range .Rects}}<rect x="{{.X}}" y="{{.Y}}" width="{{.W}}" height="{{.H}}" fill="{{.Fill}}" stroke="#333333" stroke-width="1"/>
{{end}}{{range .Texts}}<text x="{{.X}}" y="{{.Y}}" text-anchor="{{.Anchor}}" font-family="monospace" font-size="{{.Size}}">{{html .Body}}</text>
{{end}}</svg>
`))

// SVG writes the layout of d as an SVG document.
func SVG(w io.Writer, d *catalog.RegisterDesc, opt Options) error {
	if err := svgTemplate.Execute(w, layout(d, opt)); err != nil {
		return fmt.Errorf("failed to render %s: %w", d.Name, err)
	}
	return nil
}

// PNG rasterizes the SVG layout of d at the given scale. The rasterizer
// draws shapes only, so labels are left out of the image.
func PNG(w io.Writer, d *catalog.RegisterDesc, opt Options, scale float64) error {
	img, err := Image(d, opt, scale)
	if err != nil {
		return err
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("failed to encode %s: %w", d.Name, err)
	}
	return nil
}

// Image rasterizes the layout of d.
func Image(d *catalog.RegisterDesc, opt Options, scale float64) (*image.RGBA, error) {
	if scale <= 0 {
		scale = 1
	}
	var buf bytes.Buffer
	if err := SVG(&buf, d, opt); err != nil {
		return nil, err
	}
	icon, err := oksvg.ReadIconStream(&buf, oksvg.IgnoreErrorMode)
	if err != nil {
		return nil, fmt.Errorf("failed to parse diagram of %s: %w", d.Name, err)
	}
	wd := int(icon.ViewBox.W * scale)
	ht := int(icon.ViewBox.H * scale)
	icon.SetTarget(0, 0, float64(wd), float64(ht))

	img := image.NewRGBA(image.Rect(0, 0, wd, ht))
	draw.Draw(img, img.Bounds(), image.NewUniform(color.White), image.Point{}, draw.Src)
	scanner := rasterx.NewScannerGV(wd, ht, img, img.Bounds())
	icon.Draw(rasterx.NewDasher(wd, ht, scanner), 1)
	return img, nil
}
