package queue

import (
	"context"
	"fmt"
	"time"

	"github.com/jwalitptl/clinic-flow/internal/model"
	"github.com/jwalitptl/clinic-flow/internal/repository"
	"github.com/jwalitptl/clinic-flow/pkg/errors"
)

const DefaultPollInterval = 5 * time.Second

type QueueService interface {
	List(ctx context.Context, filter model.QueueFilter) (*model.Queue, error)
}

type Service struct {
	repo         repository.QueueRepository
	pollInterval time.Duration
	now          func() time.Time
}

func NewService(repo repository.QueueRepository, pollInterval time.Duration) *Service {
	if pollInterval <= 0 {
		pollInterval = DefaultPollInterval
	}
	return &Service{repo: repo, pollInterval: pollInterval, now: time.Now}
}

// List returns one consistent snapshot of a status queue, priority visits
// first and then by arrival.
func (s *Service) List(ctx context.Context, filter model.QueueFilter) (*model.Queue, error) {
	if !filter.Status.Valid() {
		return nil, errors.Validation(fmt.Sprintf("unknown status %q", filter.Status), nil)
	}
	at := s.now()
	entries, err := s.repo.Snapshot(ctx, filter)
	if err != nil {
		return nil, errors.Internal(err)
	}
	if entries == nil {
		entries = []*model.QueueEntry{}
	}
	return &model.Queue{
		Status:              filter.Status,
		Entries:             entries,
		SnapshotAt:          at,
		PollIntervalSeconds: int(s.pollInterval / time.Second),
	}, nil
}
