package provider

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/cloo-solutions/studyforge/internal/domain"
)

// MockProvider is a mock implementation of Provider
type MockProvider struct {
	mock.Mock
	name string
}

func newMockProvider(name string) *MockProvider {
	return &MockProvider{name: name}
}

func (m *MockProvider) Name() string  { return m.name }
func (m *MockProvider) Model() string { return m.name + "-model" }

func (m *MockProvider) Complete(ctx context.Context, req Request) (string, error) {
	args := m.Called(ctx, req)
	return args.String(0), args.Error(1)
}

// slowProvider blocks until its context ends
type slowProvider struct {
	name string
}

func (p *slowProvider) Name() string  { return p.name }
func (p *slowProvider) Model() string { return "slow" }

func (p *slowProvider) Complete(ctx context.Context, req Request) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestGateway_Generate_FirstProviderAnswers(t *testing.T) {
	ctx := context.Background()
	a := newMockProvider("a")
	b := newMockProvider("b")
	a.On("Complete", mock.Anything, mock.MatchedBy(func(r Request) bool {
		return r.Prompt == "p" && r.Temperature == 0
	})).Return(`[{"question":"q","answer":"a"}]`, nil)

	gw := NewGateway([]Member{{Provider: a}, {Provider: b}}, nil, nil)

	res, err := gw.Generate(ctx, domain.ArtifactKindFlashcards, "p", Options{Temperature: 0})

	require.NoError(t, err)
	assert.Equal(t, "a", res.Provider)
	assert.Equal(t, "a-model", res.Model)
	require.Len(t, res.Attempts, 1)
	assert.Equal(t, domain.AttemptOutcomeSuccess, res.Attempts[0].Outcome)
	b.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestGateway_Generate_FallsBackInOrder(t *testing.T) {
	ctx := context.Background()
	a := newMockProvider("a")
	b := newMockProvider("b")
	c := newMockProvider("c")
	a.On("Complete", mock.Anything, mock.Anything).Return("", errors.New("401 unauthorized")).Once()
	b.On("Complete", mock.Anything, mock.Anything).Return("   ", nil).Once()
	c.On("Complete", mock.Anything, mock.Anything).Return(`{"answer":"x"}`, nil).Once()

	gw := NewGateway([]Member{{Provider: a}, {Provider: b}, {Provider: c}}, nil, nil)

	res, err := gw.Generate(ctx, domain.ArtifactKindChatAnswer, "p", Options{})

	require.NoError(t, err)
	assert.Equal(t, "c", res.Provider)
	require.Len(t, res.Attempts, 3)
	assert.Equal(t, domain.AttemptOutcomeRejected, res.Attempts[0].Outcome)
	assert.Equal(t, domain.AttemptOutcomeInvalidOutput, res.Attempts[1].Outcome)
	assert.Equal(t, domain.AttemptOutcomeSuccess, res.Attempts[2].Outcome)
	a.AssertNumberOfCalls(t, "Complete", 1)
	b.AssertNumberOfCalls(t, "Complete", 1)
}

func TestGateway_Generate_TimeoutThenSuccess(t *testing.T) {
	ctx := context.Background()
	b := newMockProvider("b")
	b.On("Complete", mock.Anything, mock.Anything).Return("ok", nil)

	gw := NewGateway([]Member{
		{Provider: &slowProvider{name: "a"}, Timeout: 10 * time.Millisecond},
		{Provider: b},
	}, nil, nil)

	res, err := gw.Generate(ctx, domain.ArtifactKindQuiz, "p", Options{})

	require.NoError(t, err)
	assert.Equal(t, "b", res.Provider)
	require.Len(t, res.Attempts, 2)
	assert.Equal(t, domain.AttemptOutcomeTimeout, res.Attempts[0].Outcome)
}

func TestGateway_Generate_AllExhausted(t *testing.T) {
	ctx := context.Background()
	a := newMockProvider("a")
	b := newMockProvider("b")
	a.On("Complete", mock.Anything, mock.Anything).Return("", errors.New("quota exceeded"))
	b.On("Complete", mock.Anything, mock.Anything).Return("", errors.New("402 insufficient balance"))

	gw := NewGateway([]Member{{Provider: a}, {Provider: b}}, nil, nil)

	res, err := gw.Generate(ctx, domain.ArtifactKindPlan, "p", Options{})

	assert.Nil(t, res)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrAllProvidersExhausted)
	var exhausted *domain.ExhaustedError
	require.ErrorAs(t, err, &exhausted)
	assert.Equal(t, domain.ArtifactKindPlan, exhausted.Kind)
	require.Len(t, exhausted.Attempts, 2)
	assert.Equal(t, "a", exhausted.Attempts[0].Provider)
	assert.Equal(t, "b", exhausted.Attempts[1].Provider)
}

func TestGateway_Generate_NeverRetriesFailedProvider(t *testing.T) {
	ctx := context.Background()
	a := newMockProvider("a")
	b := newMockProvider("b")
	a.On("Complete", mock.Anything, mock.Anything).Return("", errors.New("quota exceeded"))
	b.On("Complete", mock.Anything, mock.Anything).Return("", errors.New("quota exceeded"))

	gw := NewGateway(
		[]Member{{Provider: a}, {Provider: a}},
		map[domain.ArtifactKind][]Member{domain.ArtifactKindQuiz: {{Provider: b}, {Provider: a}, {Provider: b}}},
		nil,
	)

	assert.Equal(t, []string{"a"}, gw.Chain(domain.ArtifactKindFlashcards))
	assert.Equal(t, []string{"b", "a"}, gw.Chain(domain.ArtifactKindQuiz))

	_, err := gw.Generate(ctx, domain.ArtifactKindFlashcards, "p", Options{})
	require.ErrorIs(t, err, domain.ErrAllProvidersExhausted)
	assert.Len(t, domain.AttemptsOf(err), 1)
	a.AssertNumberOfCalls(t, "Complete", 1)

	_, err = gw.Generate(ctx, domain.ArtifactKindQuiz, "p", Options{})
	require.ErrorIs(t, err, domain.ErrAllProvidersExhausted)
	attempts := domain.AttemptsOf(err)
	require.Len(t, attempts, 2)
	assert.Equal(t, "b", attempts[0].Provider)
	assert.Equal(t, "a", attempts[1].Provider)
	b.AssertNumberOfCalls(t, "Complete", 1)
}

func TestGateway_Generate_EmptyChain(t *testing.T) {
	gw := NewGateway(nil, nil, nil)

	_, err := gw.Generate(context.Background(), domain.ArtifactKindQuiz, "p", Options{})

	assert.ErrorIs(t, err, domain.ErrAllProvidersExhausted)
	assert.Empty(t, domain.AttemptsOf(err))
}

func TestGateway_Generate_CallerDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	b := newMockProvider("b")

	gw := NewGateway([]Member{
		{Provider: &slowProvider{name: "a"}, Timeout: time.Minute},
		{Provider: b},
	}, nil, nil)

	_, err := gw.Generate(ctx, domain.ArtifactKindQuiz, "p", Options{})

	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDeadlineExceeded)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	attempts := domain.AttemptsOf(err)
	require.Len(t, attempts, 1)
	assert.Equal(t, domain.AttemptOutcomeTimeout, attempts[0].Outcome)
	b.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestGateway_Generate_CancelledBeforeStart(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	a := newMockProvider("a")

	gw := NewGateway([]Member{{Provider: a}}, nil, nil)

	_, err := gw.Generate(ctx, domain.ArtifactKindQuiz, "p", Options{})

	assert.ErrorIs(t, err, domain.ErrDeadlineExceeded)
	assert.Empty(t, domain.AttemptsOf(err))
	a.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestGateway_Generate_PerKindChain(t *testing.T) {
	ctx := context.Background()
	def := newMockProvider("default")
	quiz := newMockProvider("quiz")
	quiz.On("Complete", mock.Anything, mock.Anything).Return("ok", nil)
	def.On("Complete", mock.Anything, mock.Anything).Return("ok", nil)

	gw := NewGateway(
		[]Member{{Provider: def}},
		map[domain.ArtifactKind][]Member{domain.ArtifactKindQuiz: {{Provider: quiz}}},
		nil,
	)

	res, err := gw.Generate(ctx, domain.ArtifactKindQuiz, "p", Options{})
	require.NoError(t, err)
	assert.Equal(t, "quiz", res.Provider)

	res, err = gw.Generate(ctx, domain.ArtifactKindFlashcards, "p", Options{})
	require.NoError(t, err)
	assert.Equal(t, "default", res.Provider)

	assert.Equal(t, []string{"quiz"}, gw.Chain(domain.ArtifactKindQuiz))
	assert.Equal(t, []string{"default"}, gw.Chain(domain.ArtifactKindPlan))
}

func TestGateway_Generate_PassesOptions(t *testing.T) {
	ctx := context.Background()
	a := newMockProvider("a")
	schema := &Schema{Name: "flashcards"}
	a.On("Complete", mock.Anything, Request{
		System:      "sys",
		Prompt:      "p",
		Temperature: 0.7,
		MaxTokens:   512,
		Schema:      schema,
	}).Return("ok", nil)

	gw := NewGateway([]Member{{Provider: a}}, nil, nil)

	_, err := gw.Generate(ctx, domain.ArtifactKindQuiz, "p", Options{
		System:          "sys",
		Temperature:     0.7,
		MaxOutputTokens: 512,
		ResponseSchema:  schema,
	})

	require.NoError(t, err)
	a.AssertExpectations(t)
}
