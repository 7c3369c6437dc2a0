package clip

// headlessBackend is a no-op clipboard backend for environments without a
// display server (headless Linux servers, containers, CI, etc.).
// It never produces Watch events and silently discards writes.
type headlessBackend struct {
	watchCh chan struct{}
}

func (b *headlessBackend) Name() string                         { return "headless (no-op)" }
func (b *headlessBackend) ReadText() (string, bool, error)       { return "", false, nil }
func (b *headlessBackend) ReadImage() ([]byte, bool, error)      { return nil, false, nil }
func (b *headlessBackend) WriteText(_ string) error              { return nil }
func (b *headlessBackend) WriteImage(_ []byte) error             { return nil }
func (b *headlessBackend) Watch() <-chan struct{}                { return b.watchCh }
func (b *headlessBackend) Close()                                {}
