// Package quiz scores answers against a generated quiz.
//
// An Attempt collects answers until it is submitted. Submission is terminal:
// later answers are rejected and resubmitting returns the same result.
// Attempts are never persisted.
package quiz

import (
	"errors"
	"fmt"
	"sync"

	"github.com/Shimizu-Technology/tubeboard-api/internal/render"
)

var (
	// ErrSubmitted is returned when answering after submission.
	ErrSubmitted = errors.New("quiz already submitted")
	// ErrUnknownQuestion is returned for an id that is not in the quiz.
	ErrUnknownQuestion = errors.New("unknown question")
)

// QuestionResult is the per-question outcome shown after submission.
type QuestionResult struct {
	ID            int    `json:"id"`
	Question      string `json:"question"`
	Answer        string `json:"answer,omitempty"`
	CorrectAnswer string `json:"correct_answer"`
	Correct       bool   `json:"correct"`
	Explanation   string `json:"explanation,omitempty"`
}

// Result is the scored attempt.
type Result struct {
	Score     int              `json:"score"`
	Total     int              `json:"total"`
	Perfect   bool             `json:"perfect"`
	Questions []QuestionResult `json:"questions"`
}

// Attempt is one user's pass over a quiz. It is safe for concurrent use.
type Attempt struct {
	mu        sync.Mutex
	questions []render.Question
	answers   map[int]string
	result    *Result
}

// NewAttempt starts an attempt over questions.
func NewAttempt(questions []render.Question) *Attempt {
	return &Attempt{
		questions: questions,
		answers:   make(map[int]string),
	}
}

// Answer records (or replaces) the answer to one question.
func (a *Attempt) Answer(questionID int, answer string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.result != nil {
		return ErrSubmitted
	}
	if !a.has(questionID) {
		return fmt.Errorf("%w: %d", ErrUnknownQuestion, questionID)
	}
	a.answers[questionID] = answer
	return nil
}

// Ready reports whether every option-based question has an answer.
// Free-text questions never block submission.
func (a *Attempt) Ready() bool {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, q := range a.questions {
		if q.FreeText() {
			continue
		}
		if _, ok := a.answers[q.ID]; !ok {
			return false
		}
	}
	return true
}

// Submitted reports whether Submit has been called.
func (a *Attempt) Submitted() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.result != nil
}

// Submit finalizes the attempt and scores it. The score counts questions
// whose stored answer equals the correct answer exactly. Calling Submit
// again returns the first result.
func (a *Attempt) Submit() Result {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.result != nil {
		return *a.result
	}

	res := Result{Total: len(a.questions), Questions: make([]QuestionResult, 0, len(a.questions))}
	for _, q := range a.questions {
		answer, answered := a.answers[q.ID]
		correct := answered && answer == q.CorrectAnswer
		if correct {
			res.Score++
		}
		res.Questions = append(res.Questions, QuestionResult{
			ID:            q.ID,
			Question:      q.Question,
			Answer:        answer,
			CorrectAnswer: q.CorrectAnswer,
			Correct:       correct,
			Explanation:   q.Explanation,
		})
	}
	res.Perfect = res.Total > 0 && res.Score == res.Total

	a.result = &res
	return res
}

func (a *Attempt) has(id int) bool {
	for _, q := range a.questions {
		if q.ID == id {
			return true
		}
	}
	return false
}
