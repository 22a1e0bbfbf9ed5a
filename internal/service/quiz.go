package service

import (
	"context"
	"time"

	"smash-rewards/internal/eligibility"
	"smash-rewards/internal/model"
	"smash-rewards/internal/pkg/lock"
)

// QuizConfig holds the daily quiz policy.
type QuizConfig struct {
	RewardPerAnswer int64
	QuestionCount   int
	StreakBonus     int64
	StreakBonusDays int
}

// Reward returns the points for correct answers at the given streak, and the
// streak bonus part of it.
func (c QuizConfig) Reward(correct, streak int) (total, bonus int64) {
	if c.StreakBonusDays > 0 {
		bonus = int64(streak/c.StreakBonusDays) * c.StreakBonus
	}
	return int64(correct)*c.RewardPerAnswer + bonus, bonus
}

// QuizResult is a credited quiz submission.
type QuizResult struct {
	*EarningResult
	Correct     int   `json:"correct"`
	StreakBonus int64 `json:"streak_bonus"`
	Streak      int   `json:"streak"`
}

// QuizService credits the once-per-day knowledge quiz.
type QuizService struct {
	store     AccountStore
	processor *EarningProcessor
	locker    lock.Locker
	policy    eligibility.Policy
	cfg       QuizConfig
	now       func() time.Time
}

// NewQuizService creates a new QuizService instance.
func NewQuizService(
	store AccountStore,
	processor *EarningProcessor,
	locker lock.Locker,
	policy eligibility.Policy,
	cfg QuizConfig,
) *QuizService {
	return &QuizService{
		store:     store,
		processor: processor,
		locker:    locker,
		policy:    policy,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Submit credits a completed quiz with correct answers.
func (s *QuizService) Submit(ctx context.Context, accountID string, correct int) (*QuizResult, error) {
	if correct < 0 || correct > s.cfg.QuestionCount {
		return nil, ErrInvalidScore
	}

	var result *QuizResult
	err := withAccountLock(ctx, s.locker, accountID, func() error {
		acc, err := loadActivated(ctx, s.store, accountID)
		if err != nil {
			return err
		}

		now := s.now()
		if d := s.policy.CanTakeQuiz(acc, now); !d.Allowed {
			return gateError(model.ActionQuiz, d)
		}

		reward, bonus := s.cfg.Reward(correct, acc.KnowledgeStreak)
		streak := acc.KnowledgeStreak + 1

		earning, err := s.processor.Process(ctx, model.EarningEvent{
			AccountID:  accountID,
			Kind:       model.ActionQuiz,
			Reward:     reward,
			At:         now,
			QuizStreak: streak,
		})
		if err != nil {
			return err
		}

		result = &QuizResult{EarningResult: earning, Correct: correct, StreakBonus: bonus, Streak: streak}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
