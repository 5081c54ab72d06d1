package ingestion

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
)

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	readers map[string]io.Reader

	openNil   bool
	copyErr   error
	deleteErr error

	copies  int
	deletes int
}

func newMemStore() *memStore {
	return &memStore{
		objects: make(map[string][]byte),
		readers: make(map[string]io.Reader),
	}
}

func (s *memStore) put(bucket, key, content string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[bucket+"/"+key] = []byte(content)
}

func (s *memStore) putReader(bucket, key string, r io.Reader) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[bucket+"/"+key] = nil
	s.readers[bucket+"/"+key] = r
}

func (s *memStore) has(bucket, key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.objects[bucket+"/"+key]
	return ok
}

func (s *memStore) Open(ctx context.Context, bucket, key string) (io.ReadCloser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.openNil {
		return nil, nil
	}
	if r, ok := s.readers[bucket+"/"+key]; ok {
		return io.NopCloser(r), nil
	}
	content, ok := s.objects[bucket+"/"+key]
	if !ok {
		return nil, errors.New("NoSuchKey")
	}
	return io.NopCloser(bytes.NewReader(content)), nil
}

func (s *memStore) Copy(ctx context.Context, bucket, srcKey, dstKey string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.copies++
	if s.copyErr != nil {
		return s.copyErr
	}
	content, ok := s.objects[bucket+"/"+srcKey]
	if !ok {
		return errors.New("NoSuchKey")
	}
	s.objects[bucket+"/"+dstKey] = content
	return nil
}

func (s *memStore) Delete(ctx context.Context, bucket, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.deletes++
	if s.deleteErr != nil {
		return s.deleteErr
	}
	delete(s.objects, bucket+"/"+key)
	return nil
}

type fakePublisher struct {
	mu       sync.Mutex
	bodies   []string
	calls    int
	failCall map[int]bool
}

func (p *fakePublisher) Publish(ctx context.Context, body string) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.calls++
	if p.failCall[p.calls] {
		return errors.New("queue unavailable")
	}
	p.bodies = append(p.bodies, body)
	return nil
}

// failingReader entrega o conteúdo e depois falha com err.
type failingReader struct {
	data []byte
	err  error
}

func (r *failingReader) Read(p []byte) (int, error) {
	if len(r.data) == 0 {
		return 0, r.err
	}
	n := copy(p, r.data)
	r.data = r.data[n:]
	return n, nil
}
