package checkout

import "sync"

// Previews holds decoded image bytes for display while a session is open.
// Every handle must be released once its image is gone.
type Previews struct {
	mu      sync.Mutex
	handles map[string][]byte
}

func NewPreviews() *Previews {
	return &Previews{handles: make(map[string][]byte)}
}

func (p *Previews) Create(data []byte) string {
	handle := "preview-" + newID()

	p.mu.Lock()
	p.handles[handle] = data
	p.mu.Unlock()

	return handle
}

func (p *Previews) Get(handle string) ([]byte, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	data, ok := p.handles[handle]
	return data, ok
}

func (p *Previews) Release(handle string) {
	if handle == "" {
		return
	}
	p.mu.Lock()
	delete(p.handles, handle)
	p.mu.Unlock()
}

func (p *Previews) ReleaseAll() {
	p.mu.Lock()
	p.handles = make(map[string][]byte)
	p.mu.Unlock()
}

func (p *Previews) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.handles)
}
