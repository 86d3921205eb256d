package bot

import (
	"sync"

	"petsitting/internal/collection"
	"petsitting/internal/models"

	"github.com/prometheus/client_golang/prometheus"
)

// chatView is the dashboard a chat is looking at plus where it is rendered.
type chatView struct {
	dashboard *collection.Dashboard

	mu        sync.Mutex
	pages     map[models.Role]int
	messageID int // message holding the list, 0 until the first render
}

func newChatView(d *collection.Dashboard) *chatView {
	return &chatView{
		dashboard: d,
		pages:     make(map[models.Role]int, len(models.Roles)),
	}
}

func (v *chatView) page(role models.Role) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.pages[role]
}

func (v *chatView) setPage(role models.Role, page int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.pages[role] = page
}

func (v *chatView) listMessage() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.messageID
}

func (v *chatView) setListMessage(id int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.messageID = id
}

// viewStore holds one dashboard per chat. Dashboards are rebuilt on login and dropped on
// logout, so a stale session never outlives the credential it was built from.
type viewStore struct {
	mu    sync.Mutex
	views map[int64]*chatView
	gauge prometheus.Gauge
}

func newViewStore(gauge prometheus.Gauge) *viewStore {
	return &viewStore{
		views: make(map[int64]*chatView),
		gauge: gauge,
	}
}

func (s *viewStore) get(chatID int64) (*chatView, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.views[chatID]
	return v, ok
}

func (s *viewStore) put(chatID int64, v *chatView) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.views[chatID] = v
	s.updateGauge()
}

func (s *viewStore) drop(chatID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.views, chatID)
	s.updateGauge()
}

// caller holds s.mu
func (s *viewStore) updateGauge() {
	if s.gauge != nil {
		s.gauge.Set(float64(len(s.views)))
	}
}
