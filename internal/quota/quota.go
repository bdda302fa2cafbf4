// Package quota tracks the daily request budget of metered search APIs.
package quota

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/config"
	"github.com/Giftson-Techy/Nigerian-Event-Pipeline/internal/store"
)

// ErrExhausted is returned when a request would dip into the safety buffer.
var ErrExhausted = errors.New("quota: daily budget exhausted")

const lowWatermark = 20

type state struct {
	Day  string `json:"day"` // UTC yyyy-mm-dd
	Used int    `json:"used"`
}

// Manager is safe for concurrent use.
type Manager struct {
	mu     sync.Mutex
	limit  int
	buffer int
	path   string
	st     state
	warned bool
	now    func() time.Time
	log    *logrus.Entry
}

// New loads persisted usage from cfg.StatePath when present.
func New(cfg config.QuotaConfig, log *logrus.Entry) (*Manager, error) {
	m := &Manager{limit: cfg.DailyLimit, buffer: cfg.SafetyBuffer, path: cfg.StatePath, now: time.Now, log: log}
	if m.log == nil {
		m.log = logrus.NewEntry(logrus.StandardLogger())
	}
	if m.path != "" {
		if err := store.LoadJSON(m.path, &m.st); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("quota: %w", err)
		}
	}
	m.rollLocked()
	return m, nil
}

// Reserve consumes n requests or returns ErrExhausted without consuming any.
func (m *Manager) Reserve(n int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollLocked()
	if m.remainingLocked() < n {
		return ErrExhausted
	}
	m.st.Used += n
	if rem := m.remainingLocked(); rem <= lowWatermark && !m.warned {
		m.warned = true
		m.log.WithFields(logrus.Fields{"remaining": rem, "used": m.st.Used}).Warn("search quota running low")
	}
	if m.path != "" {
		if err := store.SaveJSON(m.path, m.st); err != nil {
			m.log.WithError(err).Warn("persist quota state")
		}
	}
	return nil
}

// Remaining is the number of requests still available today.
func (m *Manager) Remaining() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollLocked()
	return m.remainingLocked()
}

// Used returns today's consumption.
func (m *Manager) Used() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rollLocked()
	return m.st.Used
}

func (m *Manager) remainingLocked() int {
	rem := m.limit - m.buffer - m.st.Used
	if rem < 0 {
		return 0
	}
	return rem
}

func (m *Manager) rollLocked() {
	day := m.now().UTC().Format("2006-01-02")
	if m.st.Day != day {
		m.st = state{Day: day}
		m.warned = false
	}
}
