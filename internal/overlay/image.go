package overlay

import (
	"bytes"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"

	"github.com/pdfcpu/pdfcpu/pkg/filter"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/omofolarin/fill-pdf/internal/model"
)

// embeddedImage is an image XObject registered in the overlay.
type embeddedImage struct {
	Ref    types.IndirectRef
	Width  int
	Height int
}

// Name is the resource name pages use to draw the image.
func (e embeddedImage) Name() string {
	return fmt.Sprintf("Im%d", int(e.Ref.ObjectNumber))
}

// embedImage decodes data and stores it as an 8-bit RGB image XObject. An
// image is registered once per field identifier; later calls for the same
// identifier return the first registration.
func (a *Assembler) embedImage(fieldID string, data []byte) (embeddedImage, error) {
	if img, ok := a.images[fieldID]; ok {
		return img, nil
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return embeddedImage{}, fmt.Errorf("decode: %w", err)
	}
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	if w == 0 || h == 0 {
		return embeddedImage{}, fmt.Errorf("image has no pixels")
	}

	compressed, err := flateEncode(rgbSamples(img))
	if err != nil {
		return embeddedImage{}, err
	}

	e := embeddedImage{Ref: a.alloc.alloc(), Width: w, Height: h}
	a.doc.putStream(e.Ref, types.Dict{
		"Type":             types.Name("XObject"),
		"Subtype":          types.Name("Image"),
		"Width":            types.Integer(w),
		"Height":           types.Integer(h),
		"ColorSpace":       types.Name("DeviceRGB"),
		"BitsPerComponent": types.Integer(8),
		"Filter":           types.Name(filter.Flate),
	}, compressed)
	a.images[fieldID] = e
	return e, nil
}

// rgbSamples returns the pixels of img as packed 8-bit RGB triples, row by
// row from the top. Alpha is dropped.
func rgbSamples(img image.Image) []byte {
	b := img.Bounds()
	out := make([]byte, 0, b.Dx()*b.Dy()*3)

	if rgba, ok := img.(*image.NRGBA); ok {
		for y := b.Min.Y; y < b.Max.Y; y++ {
			row := rgba.Pix[rgba.PixOffset(b.Min.X, y):rgba.PixOffset(b.Max.X, y)]
			for i := 0; i < len(row); i += 4 {
				out = append(out, row[i], row[i+1], row[i+2])
			}
		}
		return out
	}

	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, _ := img.At(x, y).RGBA()
			out = append(out, byte(r>>8), byte(g>>8), byte(bl>>8))
		}
	}
	return out
}

func flateEncode(data []byte) ([]byte, error) {
	f, err := filter.NewFilter(filter.Flate, nil)
	if err != nil {
		return nil, err
	}
	r, err := f.Encode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("flate encode: %w", err)
	}
	return io.ReadAll(r)
}

// placement is where an image ends up inside its box, relative to the box
// origin.
type placement struct {
	X, Y          float64
	Width, Height float64
}

// fitImage computes the placement of an imgW x imgH image inside a boxW x
// boxH box for the given mode. An empty mode means contain.
func fitImage(mode model.FitMode, boxW, boxH, imgW, imgH float64) placement {
	centered := func(w, h float64) placement {
		return placement{X: (boxW - w) / 2, Y: (boxH - h) / 2, Width: w, Height: h}
	}

	switch mode {
	case model.FitFill:
		return placement{Width: boxW, Height: boxH}
	case model.FitCover:
		s := max(boxW/imgW, boxH/imgH)
		return centered(imgW*s, imgH*s)
	case model.FitScaleDown:
		if imgW <= boxW && imgH <= boxH {
			return centered(imgW, imgH)
		}
	}

	s := min(boxW/imgW, boxH/imgH)
	return centered(imgW*s, imgH*s)
}

// drawImage paints e into the box with a transform scoped by q/Q.
func drawImage(cs *contentStream, e embeddedImage, b box, mode model.FitMode) {
	p := fitImage(mode, b.Width, b.Height, float64(e.Width), float64(e.Height))
	cs.saveState()
	cs.transform(p.Width, 0, 0, p.Height, b.X+p.X, b.Y+p.Y)
	cs.drawXObject(e.Name())
	cs.restoreState()
}
