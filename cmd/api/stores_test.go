package main

import (
	"context"
	"slices"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"roadtrip/internal/domain/comments"
	"roadtrip/internal/domain/followers"
	"roadtrip/internal/domain/reviews"
	"roadtrip/internal/domain/roadtrips"
	"roadtrip/internal/domain/storage"
	"roadtrip/internal/domain/users"
)

// In-memory stores backing the handler tests. They keep insertion order and
// list newest first like the real repositories.

func newMemoryContainer() *storage.Container {
	return &storage.Container{
		Users:     &memUsers{},
		RoadTrips: &memTrips{},
		Comments:  &memComments{},
		Reviews:   &memReviews{},
		Followers: &memFollowers{},
	}
}

// clock hands out strictly increasing timestamps so newest-first ordering is
// deterministic.
var clock = struct {
	sync.Mutex
	t time.Time
}{t: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}

func tick() time.Time {
	clock.Lock()
	defer clock.Unlock()
	clock.t = clock.t.Add(time.Second)
	return clock.t
}

func page[T any](items []T, limit, offset int) []T {
	if offset >= len(items) {
		return []T{}
	}
	end := min(offset+limit, len(items))
	return slices.Clone(items[offset:end])
}

func toggle(set []string, id string) ([]string, bool) {
	if i := slices.Index(set, id); i >= 0 {
		return slices.Delete(slices.Clone(set), i, i+1), false
	}
	return append(slices.Clone(set), id), true
}

type memUsers struct {
	mu   sync.Mutex
	rows []users.User
}

func (s *memUsers) find(id string) int {
	return slices.IndexFunc(s.rows, func(u users.User) bool { return u.ID == id })
}

func (s *memUsers) Create(_ context.Context, u *users.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.Email == users.Normalize(u.Email) {
			return users.ErrDuplicateEmail
		}
		if row.Username == users.Normalize(u.Username) {
			return users.ErrDuplicateUsername
		}
	}
	u.ID = uuid.NewString()
	u.CreatedAt = tick()
	u.UpdatedAt = u.CreatedAt
	s.rows = append(s.rows, *u)
	return nil
}

func (s *memUsers) GetByID(_ context.Context, id string) (*users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.find(id); i >= 0 {
		u := s.rows[i]
		return &u, nil
	}
	return nil, users.ErrNotFound
}

func (s *memUsers) GetByEmail(_ context.Context, email string) (*users.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.Email == users.Normalize(email) {
			return &row, nil
		}
	}
	return nil, users.ErrNotFound
}

func (s *memUsers) Exists(_ context.Context, email, username string) (bool, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var emailTaken, usernameTaken bool
	for _, row := range s.rows {
		emailTaken = emailTaken || (email != "" && row.Email == users.Normalize(email))
		usernameTaken = usernameTaken || (username != "" && row.Username == users.Normalize(username))
	}
	return emailTaken, usernameTaken, nil
}

func (s *memUsers) List(_ context.Context, limit, offset int) ([]users.User, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := slices.Clone(s.rows)
	slices.Reverse(rows)
	return page(rows, limit, offset), len(rows), nil
}

func (s *memUsers) Summaries(_ context.Context, ids []string) (map[string]users.Summary, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]users.Summary, len(ids))
	for _, row := range s.rows {
		if slices.Contains(ids, row.ID) {
			out[row.ID] = row.Summary()
		}
	}
	return out, nil
}

func (s *memUsers) Update(_ context.Context, u *users.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.find(u.ID)
	if i < 0 {
		return users.ErrNotFound
	}
	for _, row := range s.rows {
		if row.ID != u.ID && row.Username == u.Username {
			return users.ErrDuplicateUsername
		}
	}
	u.UpdatedAt = tick()
	s.rows[i] = *u
	return nil
}

func (s *memUsers) SetLastLogin(_ context.Context, id string, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.find(id)
	if i < 0 {
		return users.ErrNotFound
	}
	s.rows[i].LastLogin = &at
	return nil
}

func (s *memUsers) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.find(id)
	if i < 0 {
		return users.ErrNotFound
	}
	s.rows = slices.Delete(s.rows, i, i+1)
	return nil
}

type memTrips struct {
	mu   sync.Mutex
	rows []roadtrips.RoadTrip
}

func (s *memTrips) find(id string) int {
	return slices.IndexFunc(s.rows, func(t roadtrips.RoadTrip) bool { return t.ID == id })
}

func (s *memTrips) newestFirst(keep func(roadtrips.RoadTrip) bool) []roadtrips.RoadTrip {
	var out []roadtrips.RoadTrip
	for _, t := range s.rows {
		if keep(t) {
			out = append(out, t)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (s *memTrips) Create(_ context.Context, t *roadtrips.RoadTrip) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t.ID = uuid.NewString()
	t.CreatedAt = tick()
	t.UpdatedAt = t.CreatedAt
	s.rows = append(s.rows, *t)
	return nil
}

func (s *memTrips) GetByID(_ context.Context, id string) (*roadtrips.RoadTrip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.find(id); i >= 0 {
		t := s.rows[i]
		return &t, nil
	}
	return nil, roadtrips.ErrNotFound
}

func (s *memTrips) List(_ context.Context, f roadtrips.ListFilter, limit, offset int) ([]roadtrips.RoadTrip, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.newestFirst(func(t roadtrips.RoadTrip) bool {
		if f.PublicOnly && !t.IsListed() {
			return false
		}
		return f.OwnerID == "" || t.CreatedBy == f.OwnerID
	})
	return page(rows, limit, offset), len(rows), nil
}

func (s *memTrips) Search(_ context.Context, query string, limit int) ([]roadtrips.RoadTrip, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q := strings.ToLower(query)
	rows := s.newestFirst(func(t roadtrips.RoadTrip) bool {
		if !t.IsListed() {
			return false
		}
		if strings.Contains(strings.ToLower(t.Title), q) || strings.Contains(strings.ToLower(t.Description), q) {
			return true
		}
		return slices.ContainsFunc(t.Route, func(s roadtrips.Stop) bool {
			return strings.Contains(strings.ToLower(s.LocationName), q)
		})
	})
	return page(rows, limit, 0), nil
}

func (s *memTrips) Update(_ context.Context, t *roadtrips.RoadTrip) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.find(t.ID)
	if i < 0 {
		return roadtrips.ErrNotFound
	}
	updated := *t
	updated.CreatedBy = s.rows[i].CreatedBy
	updated.Likes, updated.Saves, updated.Views = s.rows[i].Likes, s.rows[i].Saves, s.rows[i].Views
	updated.UpdatedAt = tick()
	s.rows[i] = updated
	return nil
}

func (s *memTrips) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.find(id)
	if i < 0 {
		return roadtrips.ErrNotFound
	}
	s.rows = slices.Delete(s.rows, i, i+1)
	return nil
}

func (s *memTrips) ToggleLike(_ context.Context, tripID, userID string) ([]string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.find(tripID)
	if i < 0 {
		return nil, false, roadtrips.ErrNotFound
	}
	likes, liked := toggle(s.rows[i].Likes, userID)
	s.rows[i].Likes = likes
	return likes, liked, nil
}

func (s *memTrips) ToggleSave(_ context.Context, tripID, userID string) ([]string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.find(tripID)
	if i < 0 {
		return nil, false, roadtrips.ErrNotFound
	}
	saves, saved := toggle(s.rows[i].Saves, userID)
	s.rows[i].Saves = saves
	return saves, saved, nil
}

func (s *memTrips) IncrementViews(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.find(id)
	if i < 0 {
		return roadtrips.ErrNotFound
	}
	s.rows[i].Views++
	return nil
}

func (s *memTrips) IDsByOwner(_ context.Context, ownerID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := []string{}
	for _, t := range s.rows {
		if t.CreatedBy == ownerID {
			ids = append(ids, t.ID)
		}
	}
	return ids, nil
}

func (s *memTrips) IDsSavedBy(_ context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := []string{}
	for _, t := range s.rows {
		if slices.Contains(t.Saves, userID) {
			ids = append(ids, t.ID)
		}
	}
	return ids, nil
}

func (s *memTrips) RemoveUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.rows {
		s.rows[i].Likes = slices.DeleteFunc(slices.Clone(s.rows[i].Likes), func(id string) bool { return id == userID })
		s.rows[i].Saves = slices.DeleteFunc(slices.Clone(s.rows[i].Saves), func(id string) bool { return id == userID })
	}
	return nil
}

type memComments struct {
	mu   sync.Mutex
	rows []comments.Comment
}

func (s *memComments) find(id string) int {
	return slices.IndexFunc(s.rows, func(c comments.Comment) bool { return c.ID == id })
}

func (s *memComments) Create(_ context.Context, c *comments.Comment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c.ID = uuid.NewString()
	c.CreatedAt = tick()
	c.UpdatedAt = c.CreatedAt
	if c.Likes == nil {
		c.Likes = []string{}
	}
	s.rows = append(s.rows, *c)
	return nil
}

func (s *memComments) GetByID(_ context.Context, id string) (*comments.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.find(id); i >= 0 {
		c := s.rows[i]
		return &c, nil
	}
	return nil, comments.ErrNotFound
}

func (s *memComments) ListByTrip(_ context.Context, tripID string, limit, offset int) ([]comments.Comment, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var rows []comments.Comment
	for _, c := range s.rows {
		if c.TripID == tripID && c.ParentID == nil {
			rows = append(rows, c)
		}
	}
	slices.Reverse(rows)
	return page(rows, limit, offset), len(rows), nil
}

func (s *memComments) RepliesFor(_ context.Context, parentIDs []string) (map[string][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := map[string][]string{}
	for _, c := range s.rows {
		if c.ParentID != nil && slices.Contains(parentIDs, *c.ParentID) {
			out[*c.ParentID] = append(out[*c.ParentID], c.ID)
		}
	}
	return out, nil
}

func (s *memComments) UpdateText(_ context.Context, id, text string) (*comments.Comment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.find(id)
	if i < 0 {
		return nil, comments.ErrNotFound
	}
	if s.rows[i].Text != text {
		now := tick()
		s.rows[i].Text = text
		s.rows[i].IsEdited = true
		s.rows[i].EditedAt = &now
	}
	c := s.rows[i]
	return &c, nil
}

func (s *memComments) ToggleLike(_ context.Context, id, userID string) ([]string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.find(id)
	if i < 0 {
		return nil, false, comments.ErrNotFound
	}
	likes, liked := toggle(s.rows[i].Likes, userID)
	s.rows[i].Likes = likes
	return likes, liked, nil
}

func (s *memComments) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.find(id) < 0 {
		return comments.ErrNotFound
	}
	s.rows = slices.DeleteFunc(s.rows, func(c comments.Comment) bool {
		return c.ID == id || (c.ParentID != nil && *c.ParentID == id)
	})
	return nil
}

func (s *memComments) DeleteByTrip(_ context.Context, tripID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = slices.DeleteFunc(s.rows, func(c comments.Comment) bool { return c.TripID == tripID })
	return nil
}

func (s *memComments) DeleteByUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = slices.DeleteFunc(s.rows, func(c comments.Comment) bool { return c.UserID == userID })
	return nil
}

func (s *memComments) CountByTrip(_ context.Context, tripID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.rows {
		if c.TripID == tripID {
			n++
		}
	}
	return n, nil
}

type memReviews struct {
	mu   sync.Mutex
	rows []reviews.Review
}

func (s *memReviews) find(id string) int {
	return slices.IndexFunc(s.rows, func(r reviews.Review) bool { return r.ID == id })
}

func (s *memReviews) Create(_ context.Context, r *reviews.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.TripID == r.TripID && row.UserID == r.UserID {
			return reviews.ErrDuplicateReview
		}
	}
	r.ID = uuid.NewString()
	r.CreatedAt = tick()
	r.UpdatedAt = r.CreatedAt
	if r.TravelType == "" {
		r.TravelType = reviews.Solo
	}
	if r.Helpful == nil {
		r.Helpful = []string{}
	}
	if r.Images == nil {
		r.Images = []string{}
	}
	s.rows = append(s.rows, *r)
	return nil
}

func (s *memReviews) GetByID(_ context.Context, id string) (*reviews.Review, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.find(id); i >= 0 {
		r := s.rows[i]
		return &r, nil
	}
	return nil, reviews.ErrNotFound
}

func (s *memReviews) byTrip(tripID string) []reviews.Review {
	var rows []reviews.Review
	for _, r := range s.rows {
		if r.TripID == tripID {
			rows = append(rows, r)
		}
	}
	return rows
}

func (s *memReviews) ListByTrip(_ context.Context, tripID string, limit, offset int) ([]reviews.Review, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.byTrip(tripID)
	slices.Reverse(rows)
	return page(rows, limit, offset), len(rows), nil
}

func (s *memReviews) Stats(_ context.Context, tripID string) (reviews.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rows := s.byTrip(tripID)
	if len(rows) == 0 {
		return reviews.Stats{}, nil
	}
	sum := 0
	for _, r := range rows {
		sum += r.Rating
	}
	return reviews.NewStats(float64(sum)/float64(len(rows)), len(rows)), nil
}

func (s *memReviews) HasReview(_ context.Context, tripID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.ContainsFunc(s.rows, func(r reviews.Review) bool {
		return r.TripID == tripID && r.UserID == userID
	}), nil
}

func (s *memReviews) Update(_ context.Context, r *reviews.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.find(r.ID)
	if i < 0 {
		return reviews.ErrNotFound
	}
	r.UpdatedAt = tick()
	s.rows[i] = *r
	return nil
}

func (s *memReviews) ToggleHelpful(_ context.Context, id, userID string) ([]string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.find(id)
	if i < 0 {
		return nil, false, reviews.ErrNotFound
	}
	helpful, marked := toggle(s.rows[i].Helpful, userID)
	s.rows[i].Helpful = helpful
	return helpful, marked, nil
}

func (s *memReviews) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.find(id)
	if i < 0 {
		return reviews.ErrNotFound
	}
	s.rows = slices.Delete(s.rows, i, i+1)
	return nil
}

func (s *memReviews) DeleteByTrip(_ context.Context, tripID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = slices.DeleteFunc(s.rows, func(r reviews.Review) bool { return r.TripID == tripID })
	return nil
}

func (s *memReviews) DeleteByUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows = slices.DeleteFunc(s.rows, func(r reviews.Review) bool { return r.UserID == userID })
	return nil
}

type follow struct{ follower, user string }

type memFollowers struct {
	mu    sync.Mutex
	edges []follow
}

func (s *memFollowers) Follow(_ context.Context, followerID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if followerID == userID {
		return followers.ErrSelfFollow
	}
	if slices.Contains(s.edges, follow{followerID, userID}) {
		return followers.ErrConflict
	}
	s.edges = append(s.edges, follow{followerID, userID})
	return nil
}

func (s *memFollowers) Unfollow(_ context.Context, followerID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := slices.Index(s.edges, follow{followerID, userID})
	if i < 0 {
		return followers.ErrNotFollowing
	}
	s.edges = slices.Delete(s.edges, i, i+1)
	return nil
}

func (s *memFollowers) Followers(_ context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := []string{}
	for _, e := range s.edges {
		if e.user == userID {
			ids = append(ids, e.follower)
		}
	}
	return ids, nil
}

func (s *memFollowers) Following(_ context.Context, userID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := []string{}
	for _, e := range s.edges {
		if e.follower == userID {
			ids = append(ids, e.user)
		}
	}
	return ids, nil
}

func (s *memFollowers) DeleteByUser(_ context.Context, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.edges = slices.DeleteFunc(s.edges, func(e follow) bool { return e.follower == userID || e.user == userID })
	return nil
}
