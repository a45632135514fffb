package game

import (
	"time"

	"github.com/m3rciful/quizbot/internal/content"
	"github.com/m3rciful/quizbot/internal/profile"
)

const (
	wrongAnswerPenalty = -1
	speedCorrectReward = 3
)

// difficultyReward is the tiered reward for a correct trivia answer.
func difficultyReward(d content.Difficulty) int64 {
	switch d {
	case content.Hard:
		return 6
	case content.Medium:
		return 4
	default:
		return 2
	}
}

func questionPrompt(q content.Question, reward int64) Prompt {
	return Prompt{
		Text:       q.Text,
		Category:   q.Category,
		Difficulty: q.Difficulty,
		Reward:     reward,
	}
}

func firstAnswer(answers []string) string {
	if len(answers) == 0 {
		return ""
	}
	return answers[0]
}

// singleQuestion is a one-shot trivia question.
type singleQuestion struct {
	q content.Question
}

func (s *singleQuestion) prompt() Prompt {
	return questionPrompt(s.q, difficultyReward(s.q.Difficulty))
}

func (s *singleQuestion) submit(_ time.Time, input string) (step, error) {
	st := step{done: true}
	st.outcome.State = StateResolved
	st.outcome.Explanation = s.q.Explanation
	if content.Matches(s.q.Answers, input) {
		reward := difficultyReward(s.q.Difficulty)
		st.outcome.Correct = true
		st.outcome.ScoreDelta = reward
		st.delta = profile.Delta{Score: reward, Answered: 1, Correct: 1, TouchStreak: true}
		return st, nil
	}
	st.outcome.ScoreDelta = wrongAnswerPenalty
	st.outcome.Answer = firstAnswer(s.q.Answers)
	st.delta = profile.Delta{Score: wrongAnswerPenalty, Answered: 1}
	return st, nil
}

func (s *singleQuestion) cancel() step {
	return step{done: true, outcome: Outcome{State: StateCancelled, Answer: firstAnswer(s.q.Answers)}}
}

// batchQuiz walks a fixed list of questions. With a deadline it is the
// speed quiz (+3 per correct answer); without one every question pays by
// difficulty.
type batchQuiz struct {
	questions []content.Question
	index     int
	correct   int
	deadline  time.Time
}

func (b *batchQuiz) timed() bool { return !b.deadline.IsZero() }

func (b *batchQuiz) reward(q content.Question) int64 {
	if b.timed() {
		return speedCorrectReward
	}
	return difficultyReward(q.Difficulty)
}

func (b *batchQuiz) prompt() Prompt {
	q := b.questions[b.index]
	p := questionPrompt(q, b.reward(q))
	p.Index = b.index + 1
	p.Total = len(b.questions)
	p.Deadline = b.deadline
	return p
}

func (b *batchQuiz) submit(now time.Time, input string) (step, error) {
	if b.timed() && now.After(b.deadline) {
		return b.finish(StateExpired, step{}), nil
	}

	q := b.questions[b.index]
	st := step{delta: profile.Delta{Answered: 1}}
	st.outcome.Explanation = q.Explanation
	if content.Matches(q.Answers, input) {
		reward := b.reward(q)
		b.correct++
		st.outcome.Correct = true
		st.outcome.ScoreDelta = reward
		st.delta.Score = reward
		st.delta.Correct = 1
	} else {
		st.outcome.ScoreDelta = wrongAnswerPenalty
		st.outcome.Answer = firstAnswer(q.Answers)
		st.delta.Score = wrongAnswerPenalty
	}
	b.index++

	if b.index >= len(b.questions) {
		return b.finish(StateCompleted, st), nil
	}
	st.outcome.State = StateInProgress
	st.outcome.CorrectCount = b.correct
	st.outcome.Total = len(b.questions)
	next := b.prompt()
	st.outcome.Next = &next
	return st, nil
}

func (b *batchQuiz) finish(state State, st step) step {
	st.done = true
	st.delta.GamesPlayed = 1
	st.outcome.State = state
	st.outcome.CorrectCount = b.correct
	st.outcome.Total = len(b.questions)
	st.outcome.Accuracy = accuracy(b.correct, len(b.questions))
	return st
}

func (b *batchQuiz) cancel() step {
	return step{done: true, outcome: Outcome{
		State:        StateCancelled,
		CorrectCount: b.correct,
		Total:        len(b.questions),
	}}
}

func accuracy(correct, total int) float64 {
	if total <= 0 {
		return 0
	}
	return float64(correct) / float64(total) * 100
}
