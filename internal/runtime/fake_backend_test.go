package runtime

import "sync"

// fakeBackend is a minimal in-memory clip.Backend for tests that never
// touches the real OS clipboard.
type fakeBackend struct {
	mu        sync.Mutex
	text      string
	textOK    bool
	image     []byte
	imageOK   bool
	writeText []string
	writeImg  [][]byte
	watchCh   chan struct{}
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{watchCh: make(chan struct{}, 1)}
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) ReadText() (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.text, f.textOK, nil
}

func (f *fakeBackend) ReadImage() ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.image, f.imageOK, nil
}

func (f *fakeBackend) WriteText(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeText = append(f.writeText, text)
	return nil
}

func (f *fakeBackend) WriteImage(png []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.writeImg = append(f.writeImg, png)
	return nil
}

func (f *fakeBackend) Watch() <-chan struct{} { return f.watchCh }

func (f *fakeBackend) Close() {}

func (f *fakeBackend) setText(s string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.text, f.textOK = s, true
}

func (f *fakeBackend) writtenTexts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.writeText))
	copy(out, f.writeText)
	return out
}
