package animation

import (
	"bytes"
	"fmt"

	"github.com/disintegration/imaging"
	"github.com/klauspost/compress/zip"

	"github.com/aliskhannn/gif-processor/internal/model"
)

// Archive encodes every frame as a still image and packs them into a ZIP
// archive as frame_<i>.<ext>. The extension selects the image format.
func Archive(frames []Frame, ext string) ([]byte, error) {
	if len(frames) == 0 {
		return nil, &model.AssemblyError{Reason: "no frames to archive"}
	}

	imgFormat, err := imaging.FormatFromExtension(ext)
	if err != nil {
		return nil, &model.AssemblyError{Reason: fmt.Sprintf("unsupported output format %q", ext), Err: err}
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	for i, f := range frames {
		name := fmt.Sprintf("frame_%d.%s", i, ext)

		w, err := zw.CreateHeader(&zip.FileHeader{Name: name, Method: zip.Deflate})
		if err != nil {
			return nil, &model.AssemblyError{Reason: "create archive entry " + name, Err: err}
		}

		if err := imaging.Encode(w, f.Image, imgFormat); err != nil {
			return nil, &model.AssemblyError{Reason: "encode " + name, Err: err}
		}
	}

	if err := zw.Close(); err != nil {
		return nil, &model.AssemblyError{Reason: "finish archive", Err: err}
	}

	return buf.Bytes(), nil
}
