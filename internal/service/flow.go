package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"cityforall/internal/config"
	"cityforall/internal/model"
	"cityforall/internal/session"
	"cityforall/internal/survey"
	"cityforall/internal/transport"
)

const (
	msgWait             = "Подождите, предыдущий ответ обрабатывается..."
	msgQuestionNotFound = "Вопрос не найден."
	msgBadOption        = "Неправильный вариант."
	msgStaleButton      = "Эта кнопка относится к прошлому вопросу."
	msgUseButtons       = "Пожалуйста, используйте кнопки под вопросом."
	msgPickAtLeastOne   = "Выберите хотя бы один вариант."
	msgExclusiveMix     = "Этот вариант нельзя совместить с другими. Снимите лишние отметки."
	msgAskCustom        = "Напишите, пожалуйста, свой вариант ответа:"
	msgEmptyCustom      = "Ответ не может быть пустым. Напишите свой вариант текстом."
	msgSaveFailed       = "Спасибо за участие! К сожалению, при сохранении ответов произошла ошибка — мы уже разбираемся."

	finishText = "Благодарим за участие в проекте «Город для всех»! 🌆\n" +
		"Ваш вклад поможет нам создавать решения, которые улучшат жизнь людей с ОВЗ.\n" +
		"Следите за обновлениями — вместе мы сделаем город доступнее!\n" +
		"Если у вас есть дополнительные комментарии или предложения, вы всегда можете связаться с нами. Группа в VK: https://vk.com/city_for_everyone?from=groups"
)

// FlowService drives a respondent through the survey: it owns the
// session transitions, delegates successor computation to the
// navigator, and hands completed answer sets to the sink. All
// state-committing operations for one session are serialized by the
// coordinator; a second commit while one is in flight is rejected with
// session.ErrBusy and the respondent is told to wait.
type FlowService struct {
	nav      *survey.Navigator
	sessions session.Store
	coord    *session.Coordinator
	sender   transport.Sender
	prompts  *transport.PromptBuilder
	sink     AnswerSink
	log      *zap.Logger

	startModule   string
	startQuestion int
	exclusive     map[string]bool
	other         map[string]bool
}

func NewFlowService(
	nav *survey.Navigator,
	sessions session.Store,
	coord *session.Coordinator,
	sender transport.Sender,
	prompts *transport.PromptBuilder,
	sink AnswerSink,
	cfg *config.Config,
	log *zap.Logger,
) *FlowService {
	return &FlowService{
		nav:           nav,
		sessions:      sessions,
		coord:         coord,
		sender:        sender,
		prompts:       prompts,
		sink:          sink,
		log:           log,
		startModule:   cfg.StartModule,
		startQuestion: cfg.StartQuestion,
		exclusive:     toSet(cfg.ExclusiveOptions),
		other:         toSet(cfg.OtherOptions),
	}
}

func toSet(items []string) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, it := range items {
		set[it] = true
	}
	return set
}

// Greet shows the invitation with the start button.
func (f *FlowService) Greet(ctx context.Context, chatID int64) error {
	_, err := f.sender.SendPrompt(ctx, chatID, f.prompts.Greeting())
	return err
}

// Start begins a new survey attempt, replacing any previous session
// wholesale. Prompts left over from the prior attempt are deleted
// best-effort before the first question goes out.
func (f *FlowService) Start(ctx context.Context, chatID, userID int64, username string) error {
	release, err := f.coord.Acquire(chatID)
	if err != nil {
		f.notify(ctx, chatID, msgWait)
		return err
	}
	defer release()

	if prev, err := f.sessions.Get(ctx, chatID); err == nil && prev != nil {
		f.cleanupMessages(ctx, prev)
	}

	// The fresh session is stored before the first prompt goes out, so
	// the old attempt's state is gone even if the send fails.
	sess := model.NewSession(chatID, userID, username, f.startModule, f.startQuestion)
	if err := f.sessions.Put(ctx, sess); err != nil {
		return err
	}
	if err := f.askCurrent(ctx, sess); err != nil {
		return err
	}
	if err := f.sessions.Put(ctx, sess); err != nil {
		return err
	}
	f.log.Info("survey started", zap.Int64("chatId", chatID), zap.Int64("userId", userID))
	return nil
}

// SingleChoice records a single-select answer and advances.
func (f *FlowService) SingleChoice(ctx context.Context, chatID int64, questionID, optionIndex int) error {
	release, err := f.coord.Acquire(chatID)
	if err != nil {
		f.notify(ctx, chatID, msgWait)
		return err
	}
	defer release()

	sess, q, err := f.currentQuestion(ctx, chatID, questionID)
	if err != nil {
		return err
	}
	if optionIndex < 0 || optionIndex >= len(q.Options) {
		f.notify(ctx, chatID, msgBadOption)
		return validationf("option index %d out of range for question %d", optionIndex, q.ID)
	}

	value := model.StringValue(q.Options[optionIndex])
	sess.Answers[sess.AnswerKey()] = value
	f.log.Info("answer recorded",
		zap.Int64("chatId", chatID),
		zap.String("key", sess.AnswerKey()),
		zap.String("value", value.One),
	)
	return f.advance(ctx, sess, value)
}

// MultiToggle flips one option in the in-progress multi-select. It is a
// non-committing mutation: no coordinate change, no commit guard. The
// keyboard of the last prompt is re-rendered to show the selection.
func (f *FlowService) MultiToggle(ctx context.Context, chatID int64, questionID, optionIndex int) error {
	sess, q, err := f.currentQuestion(ctx, chatID, questionID)
	if err != nil {
		return err
	}
	if q.Type != model.QuestionMultiple {
		f.notify(ctx, chatID, msgUseButtons)
		return validationf("question %d is not multi-select", q.ID)
	}
	if optionIndex < 0 || optionIndex >= len(q.Options) {
		f.notify(ctx, chatID, msgBadOption)
		return validationf("option index %d out of range for question %d", optionIndex, q.ID)
	}

	sess.ToggleSelected(optionIndex)
	if err := f.sessions.Put(ctx, sess); err != nil {
		return err
	}
	if n := len(sess.SentMessageIDs); n > 0 {
		kb := transport.MultiKeyboard(q, sess.Selected)
		if err := f.sender.EditKeyboard(ctx, chatID, sess.SentMessageIDs[n-1], kb); err != nil {
			f.log.Debug("keyboard re-render failed", zap.Int64("chatId", chatID), zap.Error(err))
		}
	}
	return nil
}

// MultiSubmit commits the multi-select buffer. Empty selections and
// exclusive-option conflicts are rejected without touching state. A
// selection containing an "other" option is stored as a draft and the
// session waits for the free-text variant before advancing.
func (f *FlowService) MultiSubmit(ctx context.Context, chatID int64) error {
	release, err := f.coord.Acquire(chatID)
	if err != nil {
		f.notify(ctx, chatID, msgWait)
		return err
	}
	defer release()

	sess, q, err := f.currentQuestion(ctx, chatID, 0)
	if err != nil {
		return err
	}
	if len(sess.Selected) == 0 {
		f.notify(ctx, chatID, msgPickAtLeastOne)
		return validationf("empty multi-select submission for question %d", q.ID)
	}

	texts := make([]string, 0, len(sess.Selected))
	for _, idx := range sess.Selected {
		if idx < 0 || idx >= len(q.Options) {
			f.notify(ctx, chatID, msgBadOption)
			return validationf("selected index %d out of range for question %d", idx, q.ID)
		}
		texts = append(texts, q.Options[idx])
	}
	if len(texts) > 1 && f.hasExclusive(texts) {
		f.notify(ctx, chatID, msgExclusiveMix)
		return validationf("exclusive option combined with others in question %d", q.ID)
	}

	key := sess.AnswerKey()
	value := model.ListValue(texts)
	sess.Answers[key] = value
	sess.Selected = nil

	if f.hasOther(texts) {
		// Draft saved; the coordinate stays put until the respondent
		// sends their own wording.
		sess.Phase = model.PhaseAwaitingCustom
		sess.AwaitingCustomFor = key
		if err := f.sessions.Put(ctx, sess); err != nil {
			return err
		}
		f.notify(ctx, chatID, msgAskCustom)
		return nil
	}

	f.log.Info("answer recorded",
		zap.Int64("chatId", chatID),
		zap.String("key", key),
		zap.Strings("values", texts),
	)
	return f.advance(ctx, sess, value)
}

// LevelChoice records a rating for the current level and moves to the
// next level, or past the question once the level list is exhausted.
// Level exhaustion always follows the default linear order; routing
// rules apply only to question-level transitions.
func (f *FlowService) LevelChoice(ctx context.Context, chatID int64, questionID, levelIndex, optionIndex int) error {
	release, err := f.coord.Acquire(chatID)
	if err != nil {
		f.notify(ctx, chatID, msgWait)
		return err
	}
	defer release()

	sess, q, err := f.currentQuestion(ctx, chatID, questionID)
	if err != nil {
		return err
	}
	if levelIndex != sess.Level {
		f.notify(ctx, chatID, msgStaleButton)
		return validationf("level %d is not the current level %d", levelIndex, sess.Level)
	}
	lvl, ok := f.nav.Level(sess.Module, sess.QuestionID, levelIndex)
	if !ok {
		f.notify(ctx, chatID, msgQuestionNotFound)
		return ErrNotFound
	}
	options := f.nav.OptionsForLevel(lvl)
	if optionIndex < 0 || optionIndex >= len(options) {
		f.notify(ctx, chatID, msgBadOption)
		return validationf("option index %d out of range for level %d", optionIndex, levelIndex)
	}

	key := sess.LevelKey(levelIndex)
	sess.Answers[key] = model.StringValue(options[optionIndex])
	f.log.Info("answer recorded",
		zap.Int64("chatId", chatID),
		zap.String("key", key),
		zap.String("value", options[optionIndex]),
	)

	if levelIndex+1 < len(q.Levels) {
		sess.Level = levelIndex + 1
		if err := f.askCurrent(ctx, sess); err != nil {
			return err
		}
		return f.sessions.Put(ctx, sess)
	}

	sess.Level = 0
	target, ok := f.nav.NextLinear(sess.Module, sess.QuestionID)
	return f.moveOrFinish(ctx, sess, target, ok)
}

// FreeText handles a typed message. While the session awaits the
// custom variant of an "other" selection, any non-empty text resolves
// it and advances exactly once. Free text also answers text-type
// questions. Outside a survey it triggers the greeting. The commit
// guard is taken before the session is read, like the other committing
// entry points: a phase or type check made on a pre-commit snapshot
// must never authorize a second commit.
func (f *FlowService) FreeText(ctx context.Context, chatID int64, text string) error {
	release, err := f.coord.Acquire(chatID)
	if err != nil {
		f.notify(ctx, chatID, msgWait)
		return err
	}
	defer release()

	sess, err := f.sessions.Get(ctx, chatID)
	if err != nil {
		return err
	}
	if sess == nil {
		if err := f.Greet(ctx, chatID); err != nil {
			return err
		}
		return ErrNoSession
	}

	if sess.Phase == model.PhaseAwaitingCustom {
		if strings.TrimSpace(text) == "" {
			f.notify(ctx, chatID, msgEmptyCustom)
			return validationf("empty custom answer")
		}
		draftKey := sess.AwaitingCustomFor
		sess.Answers[model.CustomAnswerKey(draftKey)] = model.StringValue(text)
		sess.AwaitingCustomFor = ""
		sess.Phase = model.PhaseInProgress
		return f.advance(ctx, sess, sess.Answers[draftKey])
	}

	q, ok := f.nav.Question(sess.Module, sess.QuestionID)
	if !ok {
		f.notify(ctx, chatID, msgQuestionNotFound)
		return ErrNotFound
	}
	if q.Type != model.QuestionText {
		f.notify(ctx, chatID, msgUseButtons)
		return validationf("question %d does not take free text", q.ID)
	}
	if strings.TrimSpace(text) == "" {
		f.notify(ctx, chatID, msgEmptyCustom)
		return validationf("empty text answer")
	}

	value := model.StringValue(text)
	sess.Answers[sess.AnswerKey()] = value
	return f.advance(ctx, sess, value)
}

// CurrentPrompt rebuilds the prompt for the session's current position,
// used to re-render after a transport reconnect. Read-only.
func (f *FlowService) CurrentPrompt(ctx context.Context, chatID int64) (transport.Prompt, error) {
	sess, err := f.sessions.Get(ctx, chatID)
	if err != nil {
		return transport.Prompt{}, err
	}
	if sess == nil {
		return f.prompts.Greeting(), nil
	}
	return f.buildPrompt(sess)
}

// Session exposes the live session for the debug API. Read-only.
func (f *FlowService) Session(ctx context.Context, chatID int64) (*model.Session, error) {
	return f.sessions.Get(ctx, chatID)
}

// --- internals ---

// currentQuestion loads the session and resolves its current question.
// questionID 0 skips the stale-button check (multi_submit carries no
// question id).
func (f *FlowService) currentQuestion(ctx context.Context, chatID int64, questionID int) (*model.Session, *model.Question, error) {
	sess, err := f.sessions.Get(ctx, chatID)
	if err != nil {
		return nil, nil, err
	}
	if sess == nil {
		if err := f.Greet(ctx, chatID); err != nil {
			return nil, nil, err
		}
		return nil, nil, ErrNoSession
	}
	if sess.Phase == model.PhaseAwaitingCustom {
		f.notify(ctx, chatID, msgAskCustom)
		return nil, nil, validationf("awaiting custom text for %s", sess.AwaitingCustomFor)
	}
	q, ok := f.nav.Question(sess.Module, sess.QuestionID)
	if !ok {
		f.log.Error("session points at unknown question",
			zap.Int64("chatId", chatID),
			zap.String("module", sess.Module),
			zap.Int("questionId", sess.QuestionID),
		)
		f.notify(ctx, chatID, msgQuestionNotFound)
		return nil, nil, ErrNotFound
	}
	if questionID != 0 && questionID != sess.QuestionID {
		f.notify(ctx, chatID, msgStaleButton)
		return nil, nil, validationf("callback for question %d but session is at %d", questionID, sess.QuestionID)
	}
	return sess, q, nil
}

// advance computes the successor for the question just answered and
// either moves there or finishes the survey.
func (f *FlowService) advance(ctx context.Context, sess *model.Session, answer model.Value) error {
	target, ok := f.nav.Next(sess.Module, sess.QuestionID, answer)
	return f.moveOrFinish(ctx, sess, target, ok)
}

func (f *FlowService) moveOrFinish(ctx context.Context, sess *model.Session, target model.Target, ok bool) error {
	if !ok {
		return f.finish(ctx, sess)
	}
	sess.MoveTo(target.Module, target.QuestionID)
	if err := f.askCurrent(ctx, sess); err != nil {
		return err
	}
	return f.sessions.Put(ctx, sess)
}

// finish freezes the answers, hands them to the sink and destroys the
// session. The session is cleared even when persistence fails: the
// conversation must not wedge on a storage outage, so the respondent
// only sees an apology while the error goes to the operator log.
func (f *FlowService) finish(ctx context.Context, sess *model.Session) error {
	f.cleanupMessages(ctx, sess)

	_, err := f.sink.Reconcile(ctx, sess.UserID, sess.Username, sess.Answers)
	if err != nil {
		f.log.Error("survey completed but answers were not persisted",
			zap.Int64("chatId", sess.ChatID),
			zap.Int64("userId", sess.UserID),
			zap.Int("answerCount", len(sess.Answers)),
			zap.Error(err),
		)
		f.notify(ctx, sess.ChatID, msgSaveFailed)
	} else {
		f.notify(ctx, sess.ChatID, finishText)
	}

	if derr := f.sessions.Delete(ctx, sess.ChatID); derr != nil {
		f.log.Warn("session delete failed", zap.Int64("chatId", sess.ChatID), zap.Error(derr))
	}
	f.coord.Forget(sess.ChatID)
	f.log.Info("survey finished",
		zap.Int64("chatId", sess.ChatID),
		zap.Int("answerCount", len(sess.Answers)),
		zap.Bool("persisted", err == nil),
	)
	return err
}

// askCurrent sends the prompt for the session's current coordinate and
// remembers the outbound message id for later cleanup.
func (f *FlowService) askCurrent(ctx context.Context, sess *model.Session) error {
	prompt, err := f.buildPrompt(sess)
	if err != nil {
		f.notify(ctx, sess.ChatID, msgQuestionNotFound)
		return err
	}
	msgID, err := f.sender.SendPrompt(ctx, sess.ChatID, prompt)
	if err != nil {
		return err
	}
	sess.SentMessageIDs = append(sess.SentMessageIDs, msgID)
	return nil
}

func (f *FlowService) buildPrompt(sess *model.Session) (transport.Prompt, error) {
	q, ok := f.nav.Question(sess.Module, sess.QuestionID)
	if !ok {
		return transport.Prompt{}, ErrNotFound
	}
	if q.HasLevels() {
		lvl, ok := f.nav.Level(sess.Module, sess.QuestionID, sess.Level)
		if !ok {
			return transport.Prompt{}, ErrNotFound
		}
		return f.prompts.Level(q, lvl, sess.Level, f.nav.OptionsForLevel(lvl)), nil
	}
	return f.prompts.Question(q, sess.Selected), nil
}

// cleanupMessages deletes previously sent prompts. Best-effort: the
// messages may already be gone.
func (f *FlowService) cleanupMessages(ctx context.Context, sess *model.Session) {
	for _, id := range sess.SentMessageIDs {
		if err := f.sender.DeleteMessage(ctx, sess.ChatID, id); err != nil {
			f.log.Debug("prompt cleanup failed",
				zap.Int64("chatId", sess.ChatID),
				zap.Int64("messageId", id),
				zap.Error(err),
			)
		}
	}
	sess.SentMessageIDs = nil
}

func (f *FlowService) notify(ctx context.Context, chatID int64, text string) {
	if err := f.sender.SendText(ctx, chatID, text); err != nil {
		f.log.Debug("notify failed", zap.Int64("chatId", chatID), zap.Error(err))
	}
}

func (f *FlowService) hasExclusive(texts []string) bool {
	for _, t := range texts {
		if f.exclusive[t] {
			return true
		}
	}
	return false
}

func (f *FlowService) hasOther(texts []string) bool {
	for _, t := range texts {
		if f.other[t] {
			return true
		}
	}
	return false
}
