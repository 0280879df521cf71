package ai

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockInvoker records calls and returns per-persona canned results or errors.
type mockInvoker struct {
	mu       sync.Mutex
	calls    []string
	results  map[string]*Result
	errs     map[string]error
	delay    time.Duration
	segments [][]Segment
}

func newMockInvoker() *mockInvoker {
	return &mockInvoker{
		results: make(map[string]*Result),
		errs:    make(map[string]error),
	}
}

func (m *mockInvoker) GenerateContent(ctx context.Context, segments []Segment, persona Persona) (*Result, error) {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, persona.Name)
	m.segments = append(m.segments, segments)

	if err := m.errs[persona.Name]; err != nil {
		return nil, err
	}
	if result := m.results[persona.Name]; result != nil {
		return result, nil
	}
	return &Result{Text: persona.Name + " says hi", Raw: json.RawMessage(`{}`)}, nil
}

func (m *mockInvoker) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

func TestDispatchSinglePersona(t *testing.T) {
	invoker := newMockInvoker()
	invoker.results["therapist"] = &Result{Text: "take a breath", Raw: json.RawMessage(`{"text":"take a breath"}`)}

	d := NewDispatcher(invoker)
	segments := []Segment{{Text: "User: I feel stressed"}}

	result, err := d.Dispatch(context.Background(), AssistantTherapist, segments)
	require.NoError(t, err)

	assert.Equal(t, AssistantTherapist, result.Mode)
	assert.Equal(t, "take a breath", result.Text)
	assert.Equal(t, 1, invoker.callCount())
}

func TestDispatchBothJoinsBoth(t *testing.T) {
	invoker := newMockInvoker()
	invoker.results["therapist"] = &Result{Text: "therapist view", Raw: json.RawMessage(`{}`)}
	invoker.results["friend"] = &Result{Text: "friend view", Raw: json.RawMessage(`{}`)}

	d := NewDispatcher(invoker)
	segments := []Segment{{Text: "User: I feel stressed"}}

	result, err := d.Dispatch(context.Background(), AssistantBoth, segments)
	require.NoError(t, err)

	assert.Equal(t, AssistantBoth, result.Mode)
	assert.Equal(t, "therapist view", result.TherapistText)
	assert.Equal(t, "friend view", result.FriendText)
	assert.Empty(t, result.Text)
	assert.Equal(t, 2, invoker.callCount())

	// The same assembled content goes to both personas.
	invoker.mu.Lock()
	defer invoker.mu.Unlock()
	require.Len(t, invoker.segments, 2)
	assert.Equal(t, invoker.segments[0], invoker.segments[1])
}

func TestDispatchBothFailsWholeOnOneLeg(t *testing.T) {
	invoker := newMockInvoker()
	invoker.results["therapist"] = &Result{Text: "fine", Raw: json.RawMessage(`{}`)}
	invoker.errs["friend"] = errors.New("backend unavailable")

	d := NewDispatcher(invoker)
	result, err := d.Dispatch(context.Background(), AssistantBoth, []Segment{{Text: "User: hi"}})

	require.Error(t, err)
	assert.Nil(t, result)
	assert.Contains(t, err.Error(), "friend")
}

func TestDispatchBothTimeoutFailsWhole(t *testing.T) {
	invoker := newMockInvoker()
	invoker.delay = 200 * time.Millisecond

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	d := NewDispatcher(invoker)
	_, err := d.Dispatch(ctx, AssistantBoth, []Segment{{Text: "User: hi"}})
	require.Error(t, err)
}

func TestDispatchUnknownAssistant(t *testing.T) {
	d := NewDispatcher(newMockInvoker())
	_, err := d.Dispatch(context.Background(), Assistant("ORACLE"), []Segment{{Text: "User: hi"}})
	require.Error(t, err)
}
