// Package ppm encodes an rgb.Buf as an ASCII PPM (P3) image, matching
// the original crt main.rs's write_ppm byte for byte: a P3 header
// followed by the pixel matrix, each row on its own line prefixed by a
// newline (so a blank line separates the header from the first row).
package ppm

import (
	"bytes"
	"fmt"
	"io"

	"github.com/selenia-project/crt/internal/rgb"
)

// Write encodes buf as a P3 PPM image to w.
func Write(w io.Writer, buf *rgb.Buf) error {
	if _, err := fmt.Fprintf(w, "P3\n%d %d\n255\n", buf.Width(), buf.Height()); err != nil {
		return err
	}

	width, height := buf.Width(), buf.Height()

	for y := uint32(0); y < height; y++ {
		if _, err := io.WriteString(w, "\n"); err != nil {
			return err
		}

		for x := uint32(0); x < width; x++ {
			c := buf.At(x, y)
			if _, err := fmt.Fprintf(w, "%3d %3d %3d  ", c.R, c.G, c.B); err != nil {
				return err
			}
		}
	}

	return nil
}

// Encode is a convenience wrapper around Write that returns the
// encoded image as a byte slice.
func Encode(buf *rgb.Buf) ([]byte, error) {
	var b bytes.Buffer
	if err := Write(&b, buf); err != nil {
		return nil, err
	}

	return b.Bytes(), nil
}
