// Package mocks provides test doubles for the tba client.
package mocks

import (
	"context"

	tba "github.com/sells-group/frc-county-map/pkg/tba"
	mock "github.com/stretchr/testify/mock"
)

// MockClient is a mock type for the Client interface.
type MockClient struct {
	mock.Mock
}

// Events provides a mock function with given fields: ctx, year
func (_m *MockClient) Events(ctx context.Context, year int) ([]tba.Event, error) {
	ret := _m.Called(ctx, year)

	if len(ret) == 0 {
		panic("no return value specified for Events")
	}

	var r0 []tba.Event
	if rf, ok := ret.Get(0).(func(context.Context, int) ([]tba.Event, error)); ok {
		return rf(ctx, year)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]tba.Event)
	}

	return r0, ret.Error(1)
}

// EventTeamKeys provides a mock function with given fields: ctx, eventKey
func (_m *MockClient) EventTeamKeys(ctx context.Context, eventKey string) ([]string, error) {
	ret := _m.Called(ctx, eventKey)

	if len(ret) == 0 {
		panic("no return value specified for EventTeamKeys")
	}

	var r0 []string
	if rf, ok := ret.Get(0).(func(context.Context, string) ([]string, error)); ok {
		return rf(ctx, eventKey)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]string)
	}

	return r0, ret.Error(1)
}

// Team provides a mock function with given fields: ctx, teamKey
func (_m *MockClient) Team(ctx context.Context, teamKey string) (*tba.Team, error) {
	ret := _m.Called(ctx, teamKey)

	if len(ret) == 0 {
		panic("no return value specified for Team")
	}

	var r0 *tba.Team
	if rf, ok := ret.Get(0).(func(context.Context, string) (*tba.Team, error)); ok {
		return rf(ctx, teamKey)
	}
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*tba.Team)
	}

	return r0, ret.Error(1)
}

// NewMockClient creates a new instance of MockClient. It also registers a
// testing interface on the mock and a cleanup function to assert the mocks
// expectations.
func NewMockClient(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockClient {
	m := &MockClient{}
	m.Mock.Test(t)

	t.Cleanup(func() { m.AssertExpectations(t) })

	return m
}
