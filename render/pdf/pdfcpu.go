package pdf

import (
	"bytes"
	"fmt"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	pdftypes "github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/sigilo/go-sigilo-server/render"
	"github.com/sigilo/go-sigilo-server/types"
)

// Handler renders PDF documents with pdfcpu. Stamps are applied as
// watermarks anchored to the bottom left corner of the page with absolute
// point offsets, matching the coordinate system of stored positions.
type Handler struct {
	conf *model.Configuration
}

func NewHandler() *Handler {
	return &Handler{conf: model.NewDefaultConfiguration()}
}

func (h *Handler) PageDimensions(src []byte) ([]render.PageDim, error) {
	dims, err := api.PageDims(bytes.NewReader(src), h.conf)
	if err != nil {
		return nil, err
	}
	out := make([]render.PageDim, len(dims))
	for i, d := range dims {
		out[i] = render.PageDim{Width: d.Width, Height: d.Height}
	}
	return out, nil
}

func (h *Handler) StampImage(src []byte, position types.SignaturePosition, image []byte) ([]byte, error) {
	desc := fmt.Sprintf("pos:bl, off:%d %d, scalefactor:1.0 abs, rot:0", position.X, position.Y)
	wm, err := api.ImageWatermarkForReader(bytes.NewReader(image), desc, true, false, pdftypes.POINTS)
	if err != nil {
		return nil, err
	}
	return h.stamp(src, position.Page, wm)
}

func (h *Handler) StampText(src []byte, position types.SignaturePosition, text string, points int) ([]byte, error) {
	desc := fmt.Sprintf("points:%d, pos:bl, off:%d %d, fillcol:#000000, rot:0, scalefactor:1.0 abs", points, position.X, position.Y)
	wm, err := api.TextWatermark(text, desc, true, false, pdftypes.POINTS)
	if err != nil {
		return nil, err
	}
	return h.stamp(src, position.Page, wm)
}

func (h *Handler) stamp(src []byte, page int, wm *model.Watermark) ([]byte, error) {
	var buf bytes.Buffer
	selected := map[int]*model.Watermark{page: wm}
	if err := api.AddWatermarksMap(bytes.NewReader(src), &buf, selected, h.conf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
