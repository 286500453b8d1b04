package render

import (
	"sort"
	"sync"

	"github.com/sigilo/go-sigilo-server/types"
)

// PageDim is the media box size of a single page in points
type PageDim struct {
	Width  float64
	Height float64
}

// Renderer stamps visual marks onto a document. Implementations must be
// pure: the same input bytes and stamps produce the same output bytes and
// the input is never modified.
type Renderer interface {
	// PageDimensions returns the dimensions of every page of the document
	PageDimensions(src []byte) ([]PageDim, error)
	// StampImage places an image at the position on the given page
	StampImage(src []byte, position types.SignaturePosition, image []byte) ([]byte, error)
	// StampText places a text line anchored at the position on the given page
	StampText(src []byte, position types.SignaturePosition, text string, points int) ([]byte, error)
}

var (
	renderers = make(map[string]Renderer)
	lock      sync.RWMutex
)

// RegisterRenderer makes a renderer available by the provided name. It
// panics if called twice with the same name or if the renderer is nil.
func RegisterRenderer(name string, renderer Renderer) {
	lock.Lock()
	defer lock.Unlock()
	if renderer == nil {
		panic("render: renderer is nil")
	}
	if _, dup := renderers[name]; dup {
		panic("render: renderer already registered with name " + name)
	}
	renderers[name] = renderer
}

// GetRenderer returns a registered renderer or nil
func GetRenderer(name string) Renderer {
	lock.RLock()
	defer lock.RUnlock()
	return renderers[name]
}

// Renderers returns a sorted list of the names of the registered renderers
func Renderers() []string {
	lock.RLock()
	defer lock.RUnlock()
	list := make([]string, 0, len(renderers))
	for name := range renderers {
		list = append(list, name)
	}
	sort.Strings(list)
	return list
}
