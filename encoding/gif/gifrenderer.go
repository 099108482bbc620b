// Package gif renders generated sequences as animated grayscale
// heatmaps: one frame per timestep, batch rows down, features across,
// with a caption naming the step.
package gif

import (
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/gif"
	"io"
	"math"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gomono"
	"golang.org/x/image/math/fixed"
	"gorgonia.org/vecf32"
)

var tt font.Face
var regular *truetype.Font

const (
	dpi        = 144.0
	fontsize   = 12.0
	lineheight = 1.2
	frameDelay = 30 // hundredths of a second per timestep
)

func init() {
	var err error
	if regular, err = truetype.Parse(gomono.TTF); err != nil {
		panic(err)
	}

	tt = truetype.NewFace(regular, &truetype.Options{
		Size:    fontsize,
		DPI:     dpi,
		Hinting: font.HintingFull,
	})
}

func grays() color.Palette {
	p := make(color.Palette, 256)
	for i := range p {
		p[i] = color.Gray{Y: uint8(i)}
	}
	return p
}

// Encoder accumulates timestep frames and flushes them as one GIF.
type Encoder struct {
	CellW, CellH int // pixels per matrix cell
	font.Drawer

	out         *gif.GIF
	face        font.Face
	padH, padW  int
	initialized bool
	palette     color.Palette
}

// NewEncoder with the per-cell pixel size.
func NewEncoder(cellW, cellH int) *Encoder {
	return &Encoder{
		CellW:   cellW,
		CellH:   cellH,
		padH:    10,
		padW:    10,
		out:     &gif.GIF{LoopCount: -1},
		palette: grays(),
		Drawer: font.Drawer{
			Src: image.Black,
		},
	}
}

// Frame renders one [batch][dim] matrix, normalized to the frame's own
// value range, with the caption drawn underneath.
func (enc *Encoder) Frame(frame [][]float32, caption string) error {
	if len(frame) == 0 || len(frame[0]) == 0 {
		return fmt.Errorf("empty frame")
	}
	if !enc.initialized {
		enc.face = truetype.NewFace(regular, &truetype.Options{
			Size:    fontsize,
			DPI:     dpi,
			Hinting: font.HintingFull,
		})
		enc.Drawer.Src = image.Black
		enc.Drawer.Face = enc.face
		enc.initialized = true
	}

	rows, cols := len(frame), len(frame[0])
	dy := int(math.Ceil(fontsize * lineheight * dpi / 72))
	w := cols*enc.CellW + 2*enc.padW
	if tw := font.MeasureString(enc.face, caption).Ceil() + 2*enc.padW; tw > w {
		w = tw
	}
	h := rows*enc.CellH + 2*enc.padH + dy

	im := image.NewPaletted(image.Rect(0, 0, w, h), enc.palette)
	draw.Draw(im, im.Bounds(), image.White, image.ZP, draw.Src)

	flat := normalize(frame, rows, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			g := color.Gray{Y: uint8(flat[i*cols+j])}
			x0 := enc.padW + j*enc.CellW
			y0 := enc.padH + i*enc.CellH
			for y := y0; y < y0+enc.CellH; y++ {
				for x := x0; x < x0+enc.CellW; x++ {
					im.Set(x, y, g)
				}
			}
		}
	}

	enc.Dst = im
	enc.Dot = fixed.P(enc.padW, enc.padH+rows*enc.CellH+dy)
	enc.DrawString(caption)

	enc.out.Image = append(enc.out.Image, im)
	enc.out.Delay = append(enc.out.Delay, frameDelay)
	return nil
}

// Flush writes the accumulated frames into w.
func (enc *Encoder) Flush(w io.Writer) error {
	if len(enc.out.Image) == 0 {
		return fmt.Errorf("no frames rendered")
	}
	return gif.EncodeAll(w, enc.out)
}

// normalize maps a frame's values into [0, 255] against its own range.
func normalize(frame [][]float32, rows, cols int) []float32 {
	flat := make([]float32, 0, rows*cols)
	for _, row := range frame {
		flat = append(flat, row...)
	}
	min, max := flat[0], flat[0]
	for _, v := range flat {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	vecf32.Trans(flat, -min)
	if spread := max - min; spread > 0 {
		vecf32.Scale(flat, 255/spread)
	}
	return flat
}
