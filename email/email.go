package email

import (
	"context"
	"sort"
	"sync"
)

// Attachment is a file sent along with a delivery email
type Attachment struct {
	Filename string
	Content  []byte
}

// Handler sends a delivery email and returns the provider message ID
type Handler interface {
	Send(ctx context.Context, to, subject, body string, attachment *Attachment) (string, error)
}

var (
	handlers = make(map[string]Handler)
	lock     sync.RWMutex
)

// RegisterHandler makes an email handler available by the provider name. It
// panics if called twice with the same name or if the handler is nil.
func RegisterHandler(name string, handler Handler) {
	lock.Lock()
	defer lock.Unlock()
	if handler == nil {
		panic("email: handler is nil")
	}
	if _, dup := handlers[name]; dup {
		panic("email: handler already registered with name " + name)
	}
	handlers[name] = handler
}

// GetHandler returns a registered handler or nil
func GetHandler(name string) Handler {
	lock.RLock()
	defer lock.RUnlock()
	return handlers[name]
}

// Handlers returns a sorted list of the names of the registered handlers
func Handlers() []string {
	lock.RLock()
	defer lock.RUnlock()
	list := make([]string, 0, len(handlers))
	for name := range handlers {
		list = append(list, name)
	}
	sort.Strings(list)
	return list
}
