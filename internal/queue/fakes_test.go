package queue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

type fakeSource struct {
	files   map[string]ChannelFile
	order   []string
	configs map[string]SiteConfig
	listErr error
}

func newFakeSource() *fakeSource {
	return &fakeSource{
		files:   make(map[string]ChannelFile),
		configs: make(map[string]SiteConfig),
	}
}

func (s *fakeSource) addFile(f ChannelFile) {
	s.files[f.Path] = f
	s.order = append(s.order, f.Path)
}

func (s *fakeSource) addConfig(dir string, cfg SiteConfig) {
	s.configs[dir+"|"+cfg.Site] = cfg
}

func (s *fakeSource) ListChannelFiles(context.Context) ([]string, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	return append([]string(nil), s.order...), nil
}

func (s *fakeSource) ReadChannelFile(_ context.Context, path string) (ChannelFile, error) {
	f, ok := s.files[path]
	if !ok {
		return ChannelFile{}, fmt.Errorf("no such file %s", path)
	}
	return f, nil
}

func (s *fakeSource) ReadSiteConfig(_ context.Context, dir, site string) (SiteConfig, error) {
	cfg, ok := s.configs[dir+"|"+site]
	if !ok {
		return SiteConfig{}, errors.New("site config not found")
	}
	return cfg, nil
}

type fakeCatalog map[string]bool

func (c fakeCatalog) Has(id string) bool { return c[id] }

type fakeErrorLog struct {
	mu      sync.Mutex
	entries map[string][]ErrorEntry
	err     error
}

func newFakeErrorLog() *fakeErrorLog {
	return &fakeErrorLog{entries: make(map[string][]ErrorEntry)}
}

func (l *fakeErrorLog) Append(_ context.Context, group string, entry ErrorEntry) error {
	if l.err != nil {
		return l.err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[group] = append(l.entries[group], entry)
	return nil
}

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

type seqIDs struct {
	mu   sync.Mutex
	next int
	err  error
}

func (g *seqIDs) NewID() (string, error) {
	if g.err != nil {
		return "", g.err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.next++
	return fmt.Sprintf("id-%04d", g.next), nil
}

type fakeStore struct {
	items []Item
	calls int
	err   error
}

func (s *fakeStore) Replace(_ context.Context, items []Item) error {
	s.calls++
	if s.err != nil {
		return s.err
	}
	s.items = append([]Item(nil), items...)
	return nil
}

type fakeBlobStore struct {
	lastPath string
	lastType string
	data     []byte
	err      error
}

func (b *fakeBlobStore) PutObject(_ context.Context, path, contentType string, data []byte) (string, error) {
	if b.err != nil {
		return "", b.err
	}
	b.lastPath = path
	b.lastType = contentType
	b.data = append([]byte(nil), data...)
	return "mem://" + path, nil
}

type fakePublisher struct {
	messages []ClusterReady
	topics   []string
	err      error
}

func (p *fakePublisher) Publish(_ context.Context, topic string, payload any) (string, error) {
	if p.err != nil {
		return "", p.err
	}
	msg, ok := payload.(ClusterReady)
	if !ok {
		return "", fmt.Errorf("unexpected payload %T", payload)
	}
	p.messages = append(p.messages, msg)
	p.topics = append(p.topics, topic)
	return fmt.Sprintf("msg-%d", len(p.messages)), nil
}

type fakeObserver struct {
	stats     BuildStats
	sizes     []int
	runs      int
	lastRunOK bool
}

func (o *fakeObserver) ObserveBuild(stats BuildStats) { o.stats = stats }
func (o *fakeObserver) ObserveClusters(sizes []int) { o.sizes = sizes }
func (o *fakeObserver) ObserveRun(_ time.Duration, success bool) {
	o.runs++
	o.lastRunOK = success
}

// reverseShuffle is a deterministic stand-in for rand.Shuffle.
func reverseShuffle(n int, swap func(i, j int)) {
	for i := 0; i < n/2; i++ {
		swap(i, n-1-i)
	}
}

type fakeHasher struct{ err error }

func (h fakeHasher) Hash(data []byte) (string, error) {
	if h.err != nil {
		return "", h.err
	}
	return fmt.Sprintf("len:%d", len(data)), nil
}
