package blogapi

// StatsService derives dashboard figures from the Store.
type StatsService struct {
	store     *Store
	liveViews bool
}

// NewStatsService wires a StatsService. With liveViews unset, totalViews is
// the seeded static counter rather than the sum of post views.
func NewStatsService(store *Store, liveViews bool) *StatsService {
	return &StatsService{store: store, liveViews: liveViews}
}

// GetStats computes the current figures.
func (s *StatsService) GetStats() (Stats, error) {
	total, published, err := s.store.CountPosts()
	if err != nil {
		return Stats{}, err
	}
	subscribers, err := s.store.CountSubscribers()
	if err != nil {
		return Stats{}, err
	}
	comments, err := s.store.CountApprovedComments()
	if err != nil {
		return Stats{}, err
	}
	var views int
	if s.liveViews {
		views, err = s.store.SumViews()
	} else {
		views, err = s.store.settingInt(settingTotalViews)
	}
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		TotalPosts:       published,
		TotalDrafts:      total - published,
		TotalViews:       views,
		TotalSubscribers: subscribers,
		TotalComments:    comments,
	}, nil
}
