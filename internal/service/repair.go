package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/mmeshcher/coursemart/internal/metrics"
)

const repairBatchSize = 100

// StartEnrollmentRepair периодически дописывает записи на курс для завершённых покупок, у которых они отсутствуют.
// Блокируется до отмены ctx. При неположительном интервале сразу возвращает управление.
func (s *Service) StartEnrollmentRepair(ctx context.Context) {
	if s.repairInterval <= 0 {
		return
	}

	ticker := time.NewTicker(s.repairInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.processRepairBatch(ctx)
		}
	}
}

func (s *Service) processRepairBatch(ctx context.Context) int {
	purchases, err := s.repo.GetPurchasesMissingEnrollment(ctx, repairBatchSize)
	if err != nil {
		s.logger.Warn("load purchases missing enrollment", zap.Error(err))
		return 0
	}

	repaired := 0
	for _, p := range purchases {
		if ctx.Err() != nil {
			return repaired
		}

		if err := s.repo.ApplyEnrollment(ctx, p.UserID, p.CourseID, s.unlockLectures); err != nil {
			metrics.EnrollmentRepairs.WithLabelValues("error").Inc()
			s.logger.Warn("repair enrollment",
				zap.String("purchaseID", p.ID),
				zap.Error(err),
			)
			continue
		}

		metrics.EnrollmentRepairs.WithLabelValues("repaired").Inc()
		repaired++
	}

	if repaired > 0 {
		s.logger.Info("enrollments repaired", zap.Int("count", repaired))
	}

	return repaired
}
