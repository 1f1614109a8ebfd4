package sequence

import "context"

// MockStore is a test implementation of Store.
// Use in unit tests to script failures without a backing store.
type MockStore struct {
	ReadFunc  func(ctx context.Context, name string) (int64, bool, error)
	WriteFunc func(ctx context.Context, name string, value int64) error
}

// Read implements Store.
func (m *MockStore) Read(ctx context.Context, name string) (int64, bool, error) {
	if m.ReadFunc != nil {
		return m.ReadFunc(ctx, name)
	}
	return 0, false, nil
}

// Write implements Store.
func (m *MockStore) Write(ctx context.Context, name string, value int64) error {
	if m.WriteFunc != nil {
		return m.WriteFunc(ctx, name, value)
	}
	return nil
}

// Ensure compile-time interface compliance.
var _ Store = (*MockStore)(nil)
