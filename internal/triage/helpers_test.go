package triage

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

func ptr[T any](v T) *T { return &v }

func equalRating(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func fmtRating(r *float64) string {
	if r == nil {
		return "<nil>"
	}
	return fmt.Sprintf("%v", *r)
}

// mockStore implements Store for testing.
type mockStore struct {
	mu       sync.Mutex
	results  map[string]*Result
	putErr   error
	namesErr error
	listErr  error
	getErr   error
	puts     int
	gets     int
}

func newMockStore() *mockStore {
	return &mockStore{results: make(map[string]*Result)}
}

func (m *mockStore) Get(_ context.Context, name string) (*Result, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gets++
	if m.getErr != nil {
		return nil, false, m.getErr
	}
	r, ok := m.results[name]
	if !ok {
		return nil, false, nil
	}
	return r.Clone(), true, nil
}

func (m *mockStore) Put(_ context.Context, r *Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	m.puts++
	m.results[r.ImageName] = r.Clone()
	return nil
}

func (m *mockStore) Names(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.namesErr != nil {
		return nil, m.namesErr
	}
	out := make([]string, 0, len(m.results))
	for n := range m.results {
		out = append(out, n)
	}
	slices.Sort(out)
	return out, nil
}

func (m *mockStore) List(_ context.Context) ([]*Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	var out []*Result
	for _, r := range m.results {
		out = append(out, r.Clone())
	}
	slices.SortFunc(out, func(a, b *Result) int { return cmp.Compare(a.ImageName, b.ImageName) })
	return RankBySeverity(out), nil
}

// mockBlobs implements BlobStore for testing.
type mockBlobs struct {
	mu      sync.Mutex
	order   []string
	data    map[string][]byte
	listErr error
	getErr  map[string]error
	putErr  error
}

func newMockBlobs() *mockBlobs {
	return &mockBlobs{data: make(map[string][]byte), getErr: make(map[string]error)}
}

func (m *mockBlobs) add(name string, data []byte) {
	m.order = append(m.order, name)
	m.data[name] = data
}

func (m *mockBlobs) List(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.listErr != nil {
		return nil, m.listErr
	}
	return slices.Clone(m.order), nil
}

func (m *mockBlobs) Get(_ context.Context, name string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.getErr[name]; err != nil {
		return nil, err
	}
	d, ok := m.data[name]
	if !ok {
		return nil, errors.New("blob not found")
	}
	return d, nil
}

func (m *mockBlobs) Put(_ context.Context, name string, data []byte, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.putErr != nil {
		return m.putErr
	}
	if _, ok := m.data[name]; !ok {
		m.order = append(m.order, name)
	}
	m.data[name] = data
	return nil
}

// mockClassifier returns canned text keyed by the base64 image payload.
type mockClassifier struct {
	mu       sync.Mutex
	replies  map[string]string
	errs     map[string]error
	requests []*ClassifyRequest
}

func newMockClassifier() *mockClassifier {
	return &mockClassifier{replies: make(map[string]string), errs: make(map[string]error)}
}

func (m *mockClassifier) Classify(_ context.Context, req *ClassifyRequest) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests = append(m.requests, req)
	if err := m.errs[req.ImageBase64]; err != nil {
		return "", err
	}
	return m.replies[req.ImageBase64], nil
}

// mockNotifier records sent results.
type mockNotifier struct {
	mu   sync.Mutex
	sent []string
	err  error
}

func (m *mockNotifier) Send(_ context.Context, r *Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, r.ImageName)
	return m.err
}
