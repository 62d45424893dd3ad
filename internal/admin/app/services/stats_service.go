package services

import (
	"context"
	"time"

	"deliveryhub/internal/admin/app/core"
	"deliveryhub/internal/admin/domain/dto"
)

type StatsService struct {
	repo core.IStatsRepo
	now  func() time.Time
}

func NewStatsService(repo core.IStatsRepo) *StatsService {
	return &StatsService{repo: repo, now: time.Now}
}

// Dashboard counts today from midnight UTC.
func (ss *StatsService) Dashboard(ctx context.Context) (dto.Stats, error) {
	now := ss.now().UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	return ss.repo.Stats(ctx, midnight)
}
