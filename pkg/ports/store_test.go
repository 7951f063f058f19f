package ports_test

import (
	"context"
	"testing"

	"github.com/aretw0/sketchy/pkg/ports"
)

// MockStore is a map-backed RecordStore used to exercise the contract itself.
type MockStore struct {
	data map[string][]byte
}

func NewMockStore() *MockStore {
	return &MockStore{data: make(map[string][]byte)}
}

func (m *MockStore) Save(ctx context.Context, key string, data []byte) error {
	m.data[key] = append([]byte(nil), data...)
	return nil
}

func (m *MockStore) Load(ctx context.Context, key string) ([]byte, error) {
	data, ok := m.data[key]
	if !ok {
		return nil, ports.ErrRecordNotFound
	}
	return data, nil
}

func (m *MockStore) Delete(ctx context.Context, key string) error {
	delete(m.data, key)
	return nil
}

func (m *MockStore) List(ctx context.Context) ([]string, error) {
	keys := make([]string, 0, len(m.data))
	for k := range m.data {
		keys = append(keys, k)
	}
	return keys, nil
}

func TestRecordStore_Contract(t *testing.T) {
	ports.RunRecordStoreContract(t, NewMockStore())
}
