// Copyright (c) 2026 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0

package sim

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"time"

	"github.com/ManuGH/camsession/internal/camera/model"
)

// encodeStill renders a gradient test card at the reader's size.
func encodeStill(reader *Surface, seq, orientation int, now time.Time) *model.StillImage {
	res := reader.Resolution()
	if res.IsZero() {
		return nil
	}
	img := image.NewRGBA(image.Rect(0, 0, res.Width, res.Height))
	shade := uint8(seq * 37)
	for y := 0; y < res.Height; y++ {
		for x := 0; x < res.Width; x++ {
			img.SetRGBA(x, y, color.RGBA{
				R: uint8(x * 255 / res.Width),
				G: uint8(y * 255 / res.Height),
				B: shade,
				A: 0xff,
			})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: 85}); err != nil {
		return nil
	}
	return &model.StillImage{
		SequenceID:  seq,
		Format:      reader.format,
		Width:       res.Width,
		Height:      res.Height,
		Orientation: orientation,
		Timestamp:   now,
		Data:        buf.Bytes(),
	}
}
