package app

import "livequiz-service/internal/domain"

// PointsPerCorrectAnswer is the score delta for a correct submission.
const PointsPerCorrectAnswer = 10

// Result is the outcome of scoring one submission.
type Result struct {
	IsCorrect bool
	Delta     int
}

// Score decides correctness and score delta for a submitted answer.
// Correctness is exact string equality with the question's correct
// answer; the delta is PointsPerCorrectAnswer or zero. Pure, no side
// effects.
func Score(question domain.Question, answer string) Result {
	if answer == question.CorrectAnswer {
		return Result{IsCorrect: true, Delta: PointsPerCorrectAnswer}
	}
	return Result{}
}
