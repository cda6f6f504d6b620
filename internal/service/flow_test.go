package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"cityforall/internal/cache"
	"cityforall/internal/config"
	"cityforall/internal/model"
	"cityforall/internal/session"
	"cityforall/internal/survey"
	"cityforall/internal/transport"
)

const flowFixture = `{
	"options_scale": ["Плохо", "Хорошо"],
	"modul_1": [
		{"id": 1, "text": "Есть ли у вас инвалидность?", "type": "single", "options": ["Да", "Нет"],
		 "if": {"Нет": {"module": "modul_2", "id": 4}}},
		{"id": 2, "text": "Какие барьеры?", "type": "multiple",
		 "options": ["Пандусы", "Лифты", "Не готов", "Другое"]},
		{"id": 3, "text": "Оцените пандус", "type": "single",
		 "levels": [
			{"height": "до 10 см", "options": "options_scale"},
			{"angle": "30 градусов", "options": ["Удобно", "Неудобно"]}
		 ]}
	],
	"modul_2": [
		{"id": 4, "text": "Ваши предложения?", "type": "text"}
	]
}`

type sentPrompt struct {
	chatID int64
	msgID  int64
	prompt transport.Prompt
}

// fakeSender records everything the flow emits.
type fakeSender struct {
	mu      sync.Mutex
	nextID  int64
	prompts []sentPrompt
	texts   []string
	edits   []int64
	deleted []int64
	sendErr error
}

func (s *fakeSender) SendPrompt(_ context.Context, chatID int64, p transport.Prompt) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return 0, s.sendErr
	}
	s.nextID++
	s.prompts = append(s.prompts, sentPrompt{chatID: chatID, msgID: s.nextID, prompt: p})
	return s.nextID, nil
}

func (s *fakeSender) EditKeyboard(_ context.Context, _ int64, messageID int64, _ *transport.Keyboard) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edits = append(s.edits, messageID)
	return nil
}

func (s *fakeSender) SendText(_ context.Context, _ int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.texts = append(s.texts, text)
	return nil
}

func (s *fakeSender) DeleteMessage(_ context.Context, _ int64, messageID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deleted = append(s.deleted, messageID)
	return nil
}

func (s *fakeSender) lastPrompt(t *testing.T) sentPrompt {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()
	require.NotEmpty(t, s.prompts)
	return s.prompts[len(s.prompts)-1]
}

// stubSink captures the frozen answer map.
type stubSink struct {
	mu      sync.Mutex
	calls   int
	answers map[string]model.Value
	err     error
}

func (s *stubSink) Reconcile(_ context.Context, _ int64, _ string, answers map[string]model.Value) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	s.answers = answers
	return 1, s.err
}

type flowFixtureEnv struct {
	flow   *FlowService
	sender *fakeSender
	sink   *stubSink
	coord  *session.Coordinator
	store  session.Store
}

func newFlowEnv(t *testing.T) *flowFixtureEnv {
	t.Helper()
	return newFlowEnvWithStore(t, session.NewMemoryStore())
}

func newFlowEnvWithStore(t *testing.T, store session.Store) *flowFixtureEnv {
	t.Helper()
	graph, err := survey.Parse([]byte(flowFixture))
	require.NoError(t, err)

	log := zap.NewNop()
	sender := &fakeSender{}
	sink := &stubSink{}
	coord := session.NewCoordinator()
	cfg := &config.Config{
		StartModule:      "modul_1",
		StartQuestion:    1,
		ExclusiveOptions: []string{"Не готов"},
		OtherOptions:     []string{"Другое"},
	}
	prompts := transport.NewPromptBuilder(cache.NewImageCache(t.TempDir(), log))
	flow := NewFlowService(survey.NewNavigator(graph), store, coord, sender, prompts, sink, cfg, log)
	return &flowFixtureEnv{flow: flow, sender: sender, sink: sink, coord: coord, store: store}
}

func (e *flowFixtureEnv) session(t *testing.T, chatID int64) *model.Session {
	t.Helper()
	sess, err := e.store.Get(context.Background(), chatID)
	require.NoError(t, err)
	return sess
}

func TestStart_SendsFirstQuestion(t *testing.T) {
	e := newFlowEnv(t)
	ctx := context.Background()

	require.NoError(t, e.flow.Start(ctx, 10, 100, "anna"))

	sess := e.session(t, 10)
	require.NotNil(t, sess)
	assert.Equal(t, "modul_1", sess.Module)
	assert.Equal(t, 1, sess.QuestionID)
	assert.Equal(t, model.PhaseInProgress, sess.Phase)

	p := e.sender.lastPrompt(t)
	assert.Equal(t, "Есть ли у вас инвалидность?", p.prompt.Text)
	require.NotNil(t, p.prompt.Keyboard)
	assert.Len(t, p.prompt.Keyboard.Buttons, 2)
}

func TestStart_ReplacesPreviousAttempt(t *testing.T) {
	e := newFlowEnv(t)
	ctx := context.Background()

	require.NoError(t, e.flow.Start(ctx, 10, 100, "anna"))
	require.NoError(t, e.flow.SingleChoice(ctx, 10, 1, 0))
	firstMsgs := len(e.sender.prompts)

	require.NoError(t, e.flow.Start(ctx, 10, 100, "anna"))

	sess := e.session(t, 10)
	assert.Equal(t, 1, sess.QuestionID)
	assert.Empty(t, sess.Answers)
	// prompts of the old attempt were deleted best-effort
	assert.Len(t, e.sender.deleted, firstMsgs)
}

func TestSingleChoice_RecordsAndAdvances(t *testing.T) {
	e := newFlowEnv(t)
	ctx := context.Background()
	require.NoError(t, e.flow.Start(ctx, 10, 100, "anna"))

	require.NoError(t, e.flow.SingleChoice(ctx, 10, 1, 0)) // "Да"

	sess := e.session(t, 10)
	assert.Equal(t, model.StringValue("Да"), sess.Answers["modul_1:1"])
	assert.Equal(t, 2, sess.QuestionID)
}

func TestSingleChoice_RoutingRuleJumps(t *testing.T) {
	e := newFlowEnv(t)
	ctx := context.Background()
	require.NoError(t, e.flow.Start(ctx, 10, 100, "anna"))

	require.NoError(t, e.flow.SingleChoice(ctx, 10, 1, 1)) // "Нет"

	sess := e.session(t, 10)
	assert.Equal(t, "modul_2", sess.Module)
	assert.Equal(t, 4, sess.QuestionID)
}

func TestSingleChoice_StaleCallbackRejected(t *testing.T) {
	e := newFlowEnv(t)
	ctx := context.Background()
	require.NoError(t, e.flow.Start(ctx, 10, 100, "anna"))

	err := e.flow.SingleChoice(ctx, 10, 99, 0)
	assert.ErrorIs(t, err, ErrValidation)

	sess := e.session(t, 10)
	assert.Equal(t, 1, sess.QuestionID)
	assert.Empty(t, sess.Answers)
}

func TestSingleChoice_BadIndexRejected(t *testing.T) {
	e := newFlowEnv(t)
	ctx := context.Background()
	require.NoError(t, e.flow.Start(ctx, 10, 100, "anna"))

	assert.ErrorIs(t, e.flow.SingleChoice(ctx, 10, 1, 7), ErrValidation)
	assert.ErrorIs(t, e.flow.SingleChoice(ctx, 10, 1, -1), ErrValidation)
}

func TestCommitGuard_RejectsWhileBusy(t *testing.T) {
	e := newFlowEnv(t)
	ctx := context.Background()
	require.NoError(t, e.flow.Start(ctx, 10, 100, "anna"))

	release, err := e.coord.Acquire(10)
	require.NoError(t, err)
	defer release()

	err = e.flow.SingleChoice(ctx, 10, 1, 0)
	assert.ErrorIs(t, err, session.ErrBusy)

	sess := e.session(t, 10)
	assert.Empty(t, sess.Answers)
}

func toMulti(t *testing.T, e *flowFixtureEnv) {
	t.Helper()
	ctx := context.Background()
	require.NoError(t, e.flow.Start(ctx, 10, 100, "anna"))
	require.NoError(t, e.flow.SingleChoice(ctx, 10, 1, 0))
	require.Equal(t, 2, e.session(t, 10).QuestionID)
}

func TestMultiToggle_UpdatesSelectionAndKeyboard(t *testing.T) {
	e := newFlowEnv(t)
	ctx := context.Background()
	toMulti(t, e)

	require.NoError(t, e.flow.MultiToggle(ctx, 10, 2, 0))
	require.NoError(t, e.flow.MultiToggle(ctx, 10, 2, 1))
	assert.Equal(t, []int{0, 1}, e.session(t, 10).Selected)

	// toggling again removes
	require.NoError(t, e.flow.MultiToggle(ctx, 10, 2, 0))
	assert.Equal(t, []int{1}, e.session(t, 10).Selected)

	// keyboard of the last prompt was re-rendered each time
	assert.Len(t, e.sender.edits, 3)
}

func TestMultiSubmit_EmptyRejected(t *testing.T) {
	e := newFlowEnv(t)
	ctx := context.Background()
	toMulti(t, e)

	err := e.flow.MultiSubmit(ctx, 10)
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, 2, e.session(t, 10).QuestionID)
	assert.Contains(t, e.sender.texts, "Выберите хотя бы один вариант.")
}

func TestMultiSubmit_ExclusiveConflictRejected(t *testing.T) {
	e := newFlowEnv(t)
	ctx := context.Background()
	toMulti(t, e)

	require.NoError(t, e.flow.MultiToggle(ctx, 10, 2, 0)) // "Пандусы"
	require.NoError(t, e.flow.MultiToggle(ctx, 10, 2, 2)) // "Не готов"

	err := e.flow.MultiSubmit(ctx, 10)
	assert.ErrorIs(t, err, ErrValidation)

	sess := e.session(t, 10)
	assert.Equal(t, 2, sess.QuestionID)
	assert.NotContains(t, sess.Answers, "modul_1:2")
}

func TestMultiSubmit_ExclusiveAloneAccepted(t *testing.T) {
	e := newFlowEnv(t)
	ctx := context.Background()
	toMulti(t, e)

	require.NoError(t, e.flow.MultiToggle(ctx, 10, 2, 2)) // "Не готов" alone
	require.NoError(t, e.flow.MultiSubmit(ctx, 10))

	sess := e.session(t, 10)
	assert.Equal(t, model.ListValue([]string{"Не готов"}), sess.Answers["modul_1:2"])
	assert.Equal(t, 3, sess.QuestionID)
}

func TestMultiSubmit_Advances(t *testing.T) {
	e := newFlowEnv(t)
	ctx := context.Background()
	toMulti(t, e)

	require.NoError(t, e.flow.MultiToggle(ctx, 10, 2, 0))
	require.NoError(t, e.flow.MultiToggle(ctx, 10, 2, 1))
	require.NoError(t, e.flow.MultiSubmit(ctx, 10))

	sess := e.session(t, 10)
	assert.Equal(t, model.ListValue([]string{"Пандусы", "Лифты"}), sess.Answers["modul_1:2"])
	assert.Equal(t, 3, sess.QuestionID)
	assert.Empty(t, sess.Selected)
}

func TestMultiSubmit_OtherWaitsForCustomText(t *testing.T) {
	e := newFlowEnv(t)
	ctx := context.Background()
	toMulti(t, e)

	require.NoError(t, e.flow.MultiToggle(ctx, 10, 2, 3)) // "Другое"
	require.NoError(t, e.flow.MultiSubmit(ctx, 10))

	sess := e.session(t, 10)
	assert.Equal(t, model.PhaseAwaitingCustom, sess.Phase)
	assert.Equal(t, "modul_1:2", sess.AwaitingCustomFor)
	assert.Equal(t, 2, sess.QuestionID) // not advanced yet

	// choices are blocked while waiting for the custom text
	assert.ErrorIs(t, e.flow.SingleChoice(ctx, 10, 2, 0), ErrValidation)

	// empty custom text rejected
	assert.ErrorIs(t, e.flow.FreeText(ctx, 10, "   "), ErrValidation)

	// real text resolves the draft and advances exactly once
	require.NoError(t, e.flow.FreeText(ctx, 10, "нет тактильной плитки"))
	sess = e.session(t, 10)
	assert.Equal(t, model.PhaseInProgress, sess.Phase)
	assert.Empty(t, sess.AwaitingCustomFor)
	assert.Equal(t, model.StringValue("нет тактильной плитки"), sess.Answers["modul_1:2:custom_answer"])
	assert.Equal(t, 3, sess.QuestionID)
}

func toLevels(t *testing.T, e *flowFixtureEnv) {
	t.Helper()
	ctx := context.Background()
	toMulti(t, e)
	require.NoError(t, e.flow.MultiToggle(ctx, 10, 2, 0))
	require.NoError(t, e.flow.MultiSubmit(ctx, 10))
	require.Equal(t, 3, e.session(t, 10).QuestionID)
}

func TestLevelChoice_WalksLevelsThenAdvances(t *testing.T) {
	e := newFlowEnv(t)
	ctx := context.Background()
	toLevels(t, e)

	// level 0 uses the shared scale
	p := e.sender.lastPrompt(t)
	require.NotNil(t, p.prompt.Keyboard)
	assert.Equal(t, "Плохо", p.prompt.Keyboard.Buttons[0].Label)

	require.NoError(t, e.flow.LevelChoice(ctx, 10, 3, 0, 1)) // "Хорошо"
	sess := e.session(t, 10)
	assert.Equal(t, model.StringValue("Хорошо"), sess.Answers["modul_1:3:level_0"])
	assert.Equal(t, 1, sess.Level)

	require.NoError(t, e.flow.LevelChoice(ctx, 10, 3, 1, 0)) // "Удобно"
	sess = e.session(t, 10)
	assert.Equal(t, model.StringValue("Удобно"), sess.Answers["modul_1:3:level_1"])

	// level list exhausted: linear successor crosses the module boundary
	assert.Equal(t, "modul_2", sess.Module)
	assert.Equal(t, 4, sess.QuestionID)
	assert.Zero(t, sess.Level)
}

func TestLevelChoice_StaleLevelRejected(t *testing.T) {
	e := newFlowEnv(t)
	ctx := context.Background()
	toLevels(t, e)

	assert.ErrorIs(t, e.flow.LevelChoice(ctx, 10, 3, 1, 0), ErrValidation)
	assert.Zero(t, e.session(t, 10).Level)
}

func finishSurvey(t *testing.T, e *flowFixtureEnv) error {
	t.Helper()
	ctx := context.Background()
	toLevels(t, e)
	require.NoError(t, e.flow.LevelChoice(ctx, 10, 3, 0, 1))
	require.NoError(t, e.flow.LevelChoice(ctx, 10, 3, 1, 0))
	return e.flow.FreeText(ctx, 10, "больше низкопольных автобусов")
}

func TestFinish_HandsAnswersToSink(t *testing.T) {
	e := newFlowEnv(t)

	require.NoError(t, finishSurvey(t, e))

	require.Equal(t, 1, e.sink.calls)
	assert.Equal(t, map[string]model.Value{
		"modul_1:1":         model.StringValue("Да"),
		"modul_1:2":         model.ListValue([]string{"Пандусы"}),
		"modul_1:3:level_0": model.StringValue("Хорошо"),
		"modul_1:3:level_1": model.StringValue("Удобно"),
		"modul_2:4":         model.StringValue("больше низкопольных автобусов"),
	}, e.sink.answers)

	// session destroyed, thank-you delivered
	assert.Nil(t, e.session(t, 10))
	require.NotEmpty(t, e.sender.texts)
	assert.Contains(t, e.sender.texts[len(e.sender.texts)-1], "Благодарим")
}

func TestFinish_PersistenceFailureStillClearsSession(t *testing.T) {
	e := newFlowEnv(t)
	e.sink.err = errors.New("database is down")

	err := finishSurvey(t, e)
	require.Error(t, err)

	assert.Nil(t, e.session(t, 10))
	require.NotEmpty(t, e.sender.texts)
	assert.Contains(t, e.sender.texts[len(e.sender.texts)-1], "ошибка")

	// a fresh attempt starts cleanly afterwards
	require.NoError(t, e.flow.Start(context.Background(), 10, 100, "anna"))
	assert.NotNil(t, e.session(t, 10))
}

func TestFreeText_OutsideSurveyGreets(t *testing.T) {
	e := newFlowEnv(t)

	err := e.flow.FreeText(context.Background(), 55, "привет")
	assert.ErrorIs(t, err, ErrNoSession)

	p := e.sender.lastPrompt(t)
	require.NotNil(t, p.prompt.Keyboard)
	assert.Equal(t, "start_survey", p.prompt.Keyboard.Buttons[0].Data)
}

func TestFreeText_ButtonsQuestionHinted(t *testing.T) {
	e := newFlowEnv(t)
	ctx := context.Background()
	require.NoError(t, e.flow.Start(ctx, 10, 100, "anna"))

	err := e.flow.FreeText(ctx, 10, "Да")
	assert.ErrorIs(t, err, ErrValidation)
	assert.Equal(t, 1, e.session(t, 10).QuestionID)
}

// slowStore holds back one session read so a duplicate handler can run
// against the same chat in the meantime.
type slowStore struct {
	session.Store
	mu      sync.Mutex
	hold    chan struct{}
	reached chan struct{}
}

// holdNextGet arms the next Get: reached closes once the read starts
// and the read then blocks until hold is closed.
func (s *slowStore) holdNextGet() (reached <-chan struct{}, hold chan struct{}) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reached = make(chan struct{})
	s.hold = make(chan struct{})
	return s.reached, s.hold
}

func (s *slowStore) Get(ctx context.Context, chatID int64) (*model.Session, error) {
	sess, err := s.Store.Get(ctx, chatID)
	s.mu.Lock()
	hold, reached := s.hold, s.reached
	s.hold, s.reached = nil, nil
	s.mu.Unlock()
	if reached != nil {
		close(reached)
	}
	if hold != nil {
		<-hold
	}
	return sess, err
}

// A typed answer delivered twice must reconcile once: the handler owns
// the session guard before it reads any state, so the duplicate is
// turned away instead of acting on a snapshot taken before the first
// commit.
func TestFreeText_ConcurrentDuplicateCommitsOnce(t *testing.T) {
	store := &slowStore{Store: session.NewMemoryStore()}
	e := newFlowEnvWithStore(t, store)
	ctx := context.Background()

	toLevels(t, e)
	require.NoError(t, e.flow.LevelChoice(ctx, 10, 3, 0, 1))
	require.NoError(t, e.flow.LevelChoice(ctx, 10, 3, 1, 0))
	// at the final text question now

	reached, hold := store.holdNextGet()
	done := make(chan error, 1)
	go func() {
		done <- e.flow.FreeText(ctx, 10, "больше низкопольных автобусов")
	}()

	// the handler reads the session only after it owns the guard, so
	// from here the duplicate must be turned away
	<-reached
	err := e.flow.FreeText(ctx, 10, "больше низкопольных автобусов")
	assert.ErrorIs(t, err, session.ErrBusy)

	close(hold)
	require.NoError(t, <-done)

	assert.Equal(t, 1, e.sink.calls)
	assert.Nil(t, e.session(t, 10))
}

func TestStart_ReplacesStateEvenWhenPromptFails(t *testing.T) {
	e := newFlowEnv(t)
	ctx := context.Background()

	require.NoError(t, e.flow.Start(ctx, 10, 100, "anna"))
	require.NoError(t, e.flow.SingleChoice(ctx, 10, 1, 0))

	e.sender.sendErr = errors.New("network down")
	require.Error(t, e.flow.Start(ctx, 10, 100, "anna"))

	// the old attempt is gone even though the new prompt never went out
	sess := e.session(t, 10)
	require.NotNil(t, sess)
	assert.Equal(t, 1, sess.QuestionID)
	assert.Empty(t, sess.Answers)
	assert.Empty(t, sess.SentMessageIDs)
}

func TestCurrentPrompt_ReadOnlyRerender(t *testing.T) {
	e := newFlowEnv(t)
	ctx := context.Background()
	require.NoError(t, e.flow.Start(ctx, 10, 100, "anna"))
	before := e.session(t, 10)

	p, err := e.flow.CurrentPrompt(ctx, 10)
	require.NoError(t, err)
	assert.Equal(t, "Есть ли у вас инвалидность?", p.Text)

	after := e.session(t, 10)
	assert.Equal(t, before.QuestionID, after.QuestionID)
	assert.Equal(t, before.Answers, after.Answers)
}

func TestCurrentPrompt_NoSessionReturnsGreeting(t *testing.T) {
	e := newFlowEnv(t)

	p, err := e.flow.CurrentPrompt(context.Background(), 77)
	require.NoError(t, err)
	require.NotNil(t, p.Keyboard)
	assert.Equal(t, "start_survey", p.Keyboard.Buttons[0].Data)
}
