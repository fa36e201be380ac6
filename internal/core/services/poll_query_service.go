package services

import (
	"context"
	"fmt"
	"sort"

	"github.com/vncsmyrnk/pollvoter/internal/core/domain"
	"github.com/vncsmyrnk/pollvoter/internal/core/ports"
)

type pollQueryService struct {
	repo ports.PollStateRepository
}

func NewPollQueryService(repo ports.PollStateRepository) ports.PollQueryService {
	return &pollQueryService{repo: repo}
}

// ListPolls returns every tracked poll, open polls first, then by id.
func (s *pollQueryService) ListPolls(ctx context.Context) (*domain.PollListing, error) {
	doc, err := s.repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load poll state: %w", err)
	}

	listing := &domain.PollListing{
		LastUpdated: doc.LastUpdated,
		Polls:       make([]domain.PollView, 0, len(doc.Polls)),
	}
	for id, state := range doc.Polls {
		listing.Polls = append(listing.Polls, toPollView(id, state))
	}
	sort.Slice(listing.Polls, func(i, j int) bool {
		a, b := listing.Polls[i], listing.Polls[j]
		if a.Ended != b.Ended {
			return !a.Ended
		}
		return a.ID < b.ID
	})
	return listing, nil
}

func (s *pollQueryService) GetPoll(ctx context.Context, id string) (*domain.PollView, error) {
	doc, err := s.repo.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load poll state: %w", err)
	}
	state, ok := doc.Polls[id]
	if !ok {
		return nil, domain.ErrPollNotFound
	}
	view := toPollView(id, state)
	return &view, nil
}

func toPollView(id string, state *domain.PollState) domain.PollView {
	view := domain.PollView{
		ID:                 id,
		Question:           state.Question,
		Expiry:             state.Expiry,
		EndedAt:            state.EndedAt,
		Ended:              state.LoggedEnded,
		MajorityAnswerID:   state.MajorityAnswerID,
		MajorityAnswerText: state.MajorityAnswerText,
		Answers:            make([]domain.AnswerView, 0, len(state.Answers)),
	}
	for answerID, a := range state.Answers {
		voters := a.Voters
		if voters == nil {
			voters = []string{}
		}
		view.Answers = append(view.Answers, domain.AnswerView{
			ID:         answerID,
			Text:       a.Text,
			TotalCount: a.TotalCount,
			Voters:     voters,
		})
	}
	sort.Slice(view.Answers, func(i, j int) bool { return view.Answers[i].ID < view.Answers[j].ID })
	return view
}
