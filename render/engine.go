package render

import (
	"encoding/base64"
	"fmt"
	"sort"

	"github.com/fxamacker/cbor/v2"
	"github.com/sigilo/go-sigilo-server/types"
)

// SignatureAssertion is the verifiable statement embedded into the document
// for every digital signature. A verifier decodes it, recomputes the signing
// digest from the content hash, position and signer, and checks the
// signature bytes against the public key matching the fingerprint. The
// original unsigned document is not needed.
type SignatureAssertion struct {
	ItemID         string `cbor:"1,keyasint"`
	UserID         string `cbor:"2,keyasint"`
	ContentHash    string `cbor:"3,keyasint"`
	Signature      []byte `cbor:"4,keyasint"`
	KeyFingerprint string `cbor:"5,keyasint"`
	Created        int64  `cbor:"6,keyasint"`
}

// Engine applies signatures and certificate fields to documents through a
// Renderer. It holds no state, every call is a pure transform of the input
// bytes.
type Engine struct {
	renderer Renderer
}

func NewEngine(renderer Renderer) *Engine {
	return &Engine{renderer: renderer}
}

// ApplySignatures stamps all signatures onto the source document in
// signature creation order and returns the rendered bytes. Positions are
// validated against the page dimensions before the first stamp, so a bad
// position leaves nothing half rendered.
func (e *Engine) ApplySignatures(src []byte, signatures []*types.Signature) ([]byte, error) {
	dims, err := e.renderer.PageDimensions(src)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrRenderFailed, err.Error())
	}

	ordered := make([]*types.Signature, len(signatures))
	copy(ordered, signatures)
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Created != ordered[j].Created {
			return ordered[i].Created < ordered[j].Created
		}
		return ordered[i].UserID < ordered[j].UserID
	})

	for _, sig := range ordered {
		if vErr := validatePosition(sig.Position, dims); vErr != nil {
			return nil, vErr
		}
	}

	out := src
	for _, sig := range ordered {
		stamped, sErr := e.applyOne(out, sig)
		if sErr != nil {
			return nil, sErr
		}
		out = stamped
	}
	return out, nil
}

func (e *Engine) applyOne(src []byte, sig *types.Signature) ([]byte, error) {
	var out []byte
	var err error
	if sig.ImageBase64 != "" {
		image, dErr := base64.StdEncoding.DecodeString(sig.ImageBase64)
		if dErr != nil {
			return nil, fmt.Errorf("%w: signature image is not valid base64", types.ErrRenderFailed)
		}
		out, err = e.renderer.StampImage(src, sig.Position, image)
	} else {
		out, err = e.renderer.StampText(src, sig.Position, fmt.Sprintf("Signed by %s", sig.UserID), 12)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrRenderFailed, err.Error())
	}

	if sig.Kind != types.SignatureKindDigital {
		return out, nil
	}

	assertion, aErr := e.encodeAssertion(sig)
	if aErr != nil {
		return nil, aErr
	}
	// the assertion line sits just below the visual mark
	assertionPos := types.SignaturePosition{
		X:      sig.Position.X,
		Y:      sig.Position.Y,
		Width:  sig.Position.Width,
		Height: sig.Position.Height,
		Page:   sig.Position.Page,
	}
	out, err = e.renderer.StampText(out, assertionPos, assertion, 4)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrRenderFailed, err.Error())
	}
	return out, nil
}

func (e *Engine) encodeAssertion(sig *types.Signature) (string, error) {
	signatureBytes, err := base64.StdEncoding.DecodeString(sig.SignatureBase64)
	if err != nil {
		return "", fmt.Errorf("%w: signature bytes are not valid base64", types.ErrRenderFailed)
	}
	assertion := SignatureAssertion{
		ItemID:         sig.ItemID,
		UserID:         sig.UserID,
		ContentHash:    sig.ContentHash,
		Signature:      signatureBytes,
		KeyFingerprint: sig.KeyFingerprint,
		Created:        sig.Created,
	}
	encoded, cErr := cbor.Marshal(assertion)
	if cErr != nil {
		return "", fmt.Errorf("%w: %s", types.ErrRenderFailed, cErr.Error())
	}
	return "sig:" + base64.StdEncoding.EncodeToString(encoded), nil
}

// DecodeAssertion parses an embedded assertion line back into its statement
func DecodeAssertion(line string) (*SignatureAssertion, error) {
	if len(line) < 4 || line[:4] != "sig:" {
		return nil, fmt.Errorf("not an assertion line")
	}
	raw, err := base64.StdEncoding.DecodeString(line[4:])
	if err != nil {
		return nil, err
	}
	var assertion SignatureAssertion
	if uErr := cbor.Unmarshal(raw, &assertion); uErr != nil {
		return nil, uErr
	}
	return &assertion, nil
}

// PersonalizeCertificate stamps the recipient name and serial onto the first
// page of the template artifact
func (e *Engine) PersonalizeCertificate(template []byte, name, serial string) ([]byte, error) {
	dims, err := e.renderer.PageDimensions(template)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrRenderFailed, err.Error())
	}
	if len(dims) == 0 {
		return nil, fmt.Errorf("%w: template has no pages", types.ErrRenderFailed)
	}
	page := dims[0]

	namePos := types.SignaturePosition{
		X:      int(page.Width * 0.2),
		Y:      int(page.Height * 0.5),
		Width:  int(page.Width * 0.6),
		Height: 32,
		Page:   1,
	}
	out, err := e.renderer.StampText(template, namePos, name, 24)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrRenderFailed, err.Error())
	}

	serialPos := types.SignaturePosition{
		X:      int(page.Width * 0.05),
		Y:      int(page.Height * 0.05),
		Width:  int(page.Width * 0.4),
		Height: 12,
		Page:   1,
	}
	out, err = e.renderer.StampText(out, serialPos, fmt.Sprintf("Serial: %s", serial), 8)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", types.ErrRenderFailed, err.Error())
	}
	return out, nil
}

func validatePosition(pos types.SignaturePosition, dims []PageDim) error {
	if pos.Page < 1 || pos.Page > len(dims) {
		return fmt.Errorf("%w: page %d of %d", types.ErrPositionOutOfBounds, pos.Page, len(dims))
	}
	page := dims[pos.Page-1]
	if pos.X < 0 || pos.Y < 0 || pos.Width <= 0 || pos.Height <= 0 {
		return fmt.Errorf("%w: negative or empty rectangle", types.ErrPositionOutOfBounds)
	}
	if float64(pos.X+pos.Width) > page.Width || float64(pos.Y+pos.Height) > page.Height {
		return fmt.Errorf("%w: rectangle exceeds page %d", types.ErrPositionOutOfBounds, pos.Page)
	}
	return nil
}
