package render

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/sigilo/go-sigilo-server/types"
	"github.com/tj/assert"
)

// fakeRenderer appends a marker line per stamp so tests can inspect what was
// applied and in which order
type fakeRenderer struct {
	pages []PageDim
}

func newFakeRenderer(pages ...PageDim) *fakeRenderer {
	if len(pages) == 0 {
		pages = []PageDim{{Width: 612, Height: 792}}
	}
	return &fakeRenderer{pages: pages}
}

func (r *fakeRenderer) PageDimensions(src []byte) ([]PageDim, error) {
	return r.pages, nil
}

func (r *fakeRenderer) StampImage(src []byte, pos types.SignaturePosition, image []byte) ([]byte, error) {
	marker := fmt.Sprintf("\nimage@%d:%d,%d", pos.Page, pos.X, pos.Y)
	return append(append([]byte{}, src...), []byte(marker)...), nil
}

func (r *fakeRenderer) StampText(src []byte, pos types.SignaturePosition, text string, points int) ([]byte, error) {
	marker := fmt.Sprintf("\ntext@%d:%s", pos.Page, text)
	return append(append([]byte{}, src...), []byte(marker)...), nil
}

func physicalSignature(user string, created int64) *types.Signature {
	return &types.Signature{
		ItemID:      "item1",
		UserID:      user,
		Kind:        types.SignatureKindPhysical,
		Position:    types.SignaturePosition{X: 10, Y: 10, Width: 100, Height: 40, Page: 1},
		ContentHash: "abc123",
		Created:     created,
	}
}

func TestApplySignaturesInCreationOrder(t *testing.T) {
	engine := NewEngine(newFakeRenderer())
	src := []byte("%PDF")

	out, err := engine.ApplySignatures(src, []*types.Signature{
		physicalSignature("bob", 200),
		physicalSignature("alice", 100),
	})
	if err != nil {
		t.Fatal(err)
	}
	rendered := string(out)
	aliceAt := strings.Index(rendered, "Signed by alice")
	bobAt := strings.Index(rendered, "Signed by bob")
	assert.True(t, aliceAt >= 0 && bobAt >= 0)
	assert.True(t, aliceAt < bobAt)
}

func TestApplySignaturesPure(t *testing.T) {
	engine := NewEngine(newFakeRenderer())
	src := []byte("%PDF")
	sigs := []*types.Signature{physicalSignature("alice", 100)}

	first, err := engine.ApplySignatures(src, sigs)
	if err != nil {
		t.Fatal(err)
	}
	second, err := engine.ApplySignatures(src, sigs)
	if err != nil {
		t.Fatal(err)
	}
	assert.True(t, bytes.Equal(first, second))
	// the input was never modified
	assert.Equal(t, []byte("%PDF"), src)
}

func TestApplySignaturesPageOutOfBounds(t *testing.T) {
	engine := NewEngine(newFakeRenderer())
	sig := physicalSignature("alice", 100)
	sig.Position.Page = 2

	_, err := engine.ApplySignatures([]byte("%PDF"), []*types.Signature{sig})
	assert.True(t, errors.Is(err, types.ErrPositionOutOfBounds))
}

func TestApplySignaturesRectOutOfBounds(t *testing.T) {
	engine := NewEngine(newFakeRenderer())
	sig := physicalSignature("alice", 100)
	sig.Position.X = 600
	sig.Position.Width = 100

	_, err := engine.ApplySignatures([]byte("%PDF"), []*types.Signature{sig})
	assert.True(t, errors.Is(err, types.ErrPositionOutOfBounds))
}

func TestApplySignaturesBadPositionLeavesNothing(t *testing.T) {
	engine := NewEngine(newFakeRenderer())
	good := physicalSignature("alice", 100)
	bad := physicalSignature("bob", 200)
	bad.Position.Page = 5

	_, err := engine.ApplySignatures([]byte("%PDF"), []*types.Signature{good, bad})
	assert.True(t, errors.Is(err, types.ErrPositionOutOfBounds))
}

func TestDigitalSignatureEmbedsAssertion(t *testing.T) {
	engine := NewEngine(newFakeRenderer())
	signatureBytes := []byte{0xde, 0xad, 0xbe, 0xef}
	sig := physicalSignature("alice", 100)
	sig.Kind = types.SignatureKindDigital
	sig.SignatureBase64 = base64.StdEncoding.EncodeToString(signatureBytes)
	sig.KeyFingerprint = "fp123"

	out, err := engine.ApplySignatures([]byte("%PDF"), []*types.Signature{sig})
	if err != nil {
		t.Fatal(err)
	}

	var assertionLine string
	for _, line := range strings.Split(string(out), "\n") {
		if idx := strings.Index(line, "sig:"); idx >= 0 {
			assertionLine = line[idx:]
		}
	}
	assert.NotEmpty(t, assertionLine)

	decoded, dErr := DecodeAssertion(assertionLine)
	if dErr != nil {
		t.Fatal(dErr)
	}
	assert.Equal(t, "item1", decoded.ItemID)
	assert.Equal(t, "alice", decoded.UserID)
	assert.Equal(t, "abc123", decoded.ContentHash)
	assert.Equal(t, signatureBytes, decoded.Signature)
	assert.Equal(t, "fp123", decoded.KeyFingerprint)
}

func TestPersonalizeCertificate(t *testing.T) {
	engine := NewEngine(newFakeRenderer())
	out, err := engine.PersonalizeCertificate([]byte("%PDF"), "Jane Doe", "S-001")
	if err != nil {
		t.Fatal(err)
	}
	rendered := string(out)
	assert.Contains(t, rendered, "Jane Doe")
	assert.Contains(t, rendered, "Serial: S-001")
}

func TestRendererRegistry(t *testing.T) {
	r := newFakeRenderer()
	RegisterRenderer("fake", r)
	assert.Equal(t, Renderer(r), GetRenderer("fake"))
	assert.Contains(t, Renderers(), "fake")
	assert.Nil(t, GetRenderer("missing"))

	assert.Panics(t, func() { RegisterRenderer("fake", r) })
	assert.Panics(t, func() { RegisterRenderer("nil", nil) })
}
