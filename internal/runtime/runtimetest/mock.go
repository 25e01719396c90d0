// Package runtimetest provides a testify mock of the container runtime.
package runtimetest

import (
	"context"

	"github.com/stretchr/testify/mock"

	"dockertester/pkg/runtime"
)

// MockRuntime is a mock implementation of the ContainerRuntime interface
type MockRuntime struct {
	mock.Mock
}

var _ runtime.ContainerRuntime = (*MockRuntime)(nil)

func (m *MockRuntime) PullImage(ctx context.Context, image string) error {
	args := m.Called(ctx, image)
	return args.Error(0)
}

func (m *MockRuntime) StartContainer(ctx context.Context, opts runtime.RunOptions) (*runtime.Container, error) {
	args := m.Called(ctx, opts)
	c, _ := args.Get(0).(*runtime.Container)
	return c, args.Error(1)
}

func (m *MockRuntime) ContainerState(ctx context.Context, id string) (string, error) {
	args := m.Called(ctx, id)
	return args.String(0), args.Error(1)
}

func (m *MockRuntime) StopContainer(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRuntime) RemoveContainer(ctx context.Context, id string) error {
	args := m.Called(ctx, id)
	return args.Error(0)
}

func (m *MockRuntime) ListManaged(ctx context.Context) ([]string, error) {
	args := m.Called(ctx)
	ids, _ := args.Get(0).([]string)
	return ids, args.Error(1)
}

func (m *MockRuntime) Close() error {
	args := m.Called()
	return args.Error(0)
}
