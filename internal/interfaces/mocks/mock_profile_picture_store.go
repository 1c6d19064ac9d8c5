package mocks

import (
	io "io"

	mock "github.com/stretchr/testify/mock"
)

// MockProfilePictureStore is a mock type for the ProfilePictureStore type
type MockProfilePictureStore struct {
	mock.Mock
}

// Load provides a mock function with given fields: username
func (_m *MockProfilePictureStore) Load(username string) ([]byte, error) {
	ret := _m.Called(username)

	var r0 []byte
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]byte)
	}

	return r0, ret.Error(1)
}

// Save provides a mock function with given fields: username, r, extension
func (_m *MockProfilePictureStore) Save(username string, r io.Reader, extension string) (string, error) {
	ret := _m.Called(username, r, extension)
	return ret.String(0), ret.Error(1)
}

// NewMockProfilePictureStore creates a new instance of MockProfilePictureStore. It also registers a testing interface on the mock and a cleanup function to assert the mocks expectations.
// The first argument is typically a *testing.T value.
func NewMockProfilePictureStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockProfilePictureStore {
	m := &MockProfilePictureStore{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
