package testing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/desertthunder/animx/internal/models"
	"github.com/desertthunder/animx/internal/shared"
)

// PollResult is one scripted answer of [FakeTaskClient.GetTask].
type PollResult struct {
	Status *models.TaskStatus
	Err    error
}

// Poll builds a PollResult for state with optional result URLs.
func Poll(state models.TaskState, urls ...string) PollResult {
	return PollResult{Status: &models.TaskStatus{TaskID: "task-1", State: state, Raw: string(state), ResultURLs: urls}}
}

// PollErr builds a PollResult that fails like an unreachable provider.
func PollErr(msg string) PollResult {
	return PollResult{Err: fmt.Errorf("%w: %s", shared.ErrTransientNetwork, msg)}
}

// FakeTaskClient is an in-memory provider client.
//
// Polls are consumed in order and the last one repeats. With BlockPolls set, GetTask waits for its context to end.
type FakeTaskClient struct {
	Submission    *models.Submission
	CreateErr     error
	Polls         []PollResult
	NoCredentials bool
	BlockPolls    bool

	mu      sync.Mutex
	creates int
	polls   int
	times   []time.Time
}

func (f *FakeTaskClient) Configured() bool { return !f.NoCredentials }

func (f *FakeTaskClient) CreateTask(ctx context.Context, req models.GenerationRequest) (*models.Submission, error) {
	if f.NoCredentials {
		return nil, shared.ErrMissingCredentials
	}
	f.mu.Lock()
	f.creates++
	f.mu.Unlock()

	if f.CreateErr != nil {
		return nil, f.CreateErr
	}
	if f.Submission != nil {
		return f.Submission, nil
	}
	return &models.Submission{TaskID: "task-1"}, nil
}

func (f *FakeTaskClient) GetTask(ctx context.Context, taskID string) (*models.TaskStatus, error) {
	f.mu.Lock()
	f.polls++
	f.times = append(f.times, time.Now())
	idx := f.polls - 1
	f.mu.Unlock()

	if f.BlockPolls {
		<-ctx.Done()
		return nil, fmt.Errorf("%w: %w", shared.ErrTransientNetwork, ctx.Err())
	}
	if len(f.Polls) == 0 {
		return nil, fmt.Errorf("%w: no scripted poll", shared.ErrTransientNetwork)
	}

	r := f.Polls[min(idx, len(f.Polls)-1)]
	if r.Err != nil {
		return nil, r.Err
	}
	s := *r.Status
	s.TaskID = taskID
	return &s, nil
}

// Creates returns the number of CreateTask calls that passed the credential check.
func (f *FakeTaskClient) Creates() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.creates
}

// PollCount returns the number of GetTask calls.
func (f *FakeTaskClient) PollCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.polls
}

// PollTimes returns when each GetTask call started.
func (f *FakeTaskClient) PollTimes() []time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]time.Time(nil), f.times...)
}

// MockUserStore keeps users in a map keyed by username.
type MockUserStore struct {
	mu     sync.Mutex
	users  map[string]*models.User
	Err    error // returned by every call when set
	closed bool
}

func NewMockUserStore() *MockUserStore {
	return &MockUserStore{users: make(map[string]*models.User)}
}

func (m *MockUserStore) Create(ctx context.Context, u *models.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	key := u.Username
	if _, ok := m.users[key]; ok {
		return shared.ErrUserExists
	}
	cp := *u
	m.users[key] = &cp
	return nil
}

func (m *MockUserStore) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	u, ok := m.users[username]
	if !ok {
		return nil, shared.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *MockUserStore) UpdateLastLogin(ctx context.Context, username string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	u, ok := m.users[username]
	if !ok {
		return shared.ErrUserNotFound
	}
	u.LastLoginTime = &at
	return nil
}

func (m *MockUserStore) SetVIP(ctx context.Context, username string, vip bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	u, ok := m.users[username]
	if !ok {
		return shared.ErrUserNotFound
	}
	u.IsVIP = vip
	return nil
}

func (m *MockUserStore) Close(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// Closed reports whether Close was called.
func (m *MockUserStore) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
