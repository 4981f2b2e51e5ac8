package redis

import (
	"errors"
	"fmt"
	"sync"

	"github.com/redis/rueidis"
	"github.com/robalyx/sentinel/internal/setup/config"
	"go.uber.org/zap"
)

const (
	// QueueDBIndex holds the moderation case mirror in database 0.
	QueueDBIndex = 0

	// SessionDBIndex holds report dialog sessions in database 1
	// so their TTL keys never mix with case data.
	SessionDBIndex = 1
)

// ErrDisabled is returned when Redis is turned off in the config.
var ErrDisabled = errors.New("redis is disabled")

// Manager maintains a thread-safe mapping of database indices to Redis clients.
// Each database index gets its own dedicated connection pool through rueidis.
type Manager struct {
	clients map[int]rueidis.Client
	config  *config.Redis
	logger  *zap.Logger
	mu      sync.Mutex // guards clients
}

// NewManager initializes the Redis connection manager with an empty client pool.
// Clients are created lazily when first requested.
func NewManager(config *config.Redis, logger *zap.Logger) *Manager {
	return &Manager{
		clients: make(map[int]rueidis.Client),
		config:  config,
		logger:  logger.Named("redis"),
	}
}

// Enabled reports whether Redis is configured.
func (m *Manager) Enabled() bool {
	return m.config.Enabled
}

// GetClient retrieves or creates a Redis client for the specified database index.
func (m *Manager) GetClient(dbIndex int) (rueidis.Client, error) {
	if !m.config.Enabled {
		return nil, ErrDisabled
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	// Reuse the client for this database if one is open
	if client, exists := m.clients[dbIndex]; exists {
		return client, nil
	}

	// Client-side caching is off since every key is written from this process
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress:  []string{fmt.Sprintf("%s:%d", m.config.Host, m.config.Port)},
		Username:     m.config.Username,
		Password:     m.config.Password,
		SelectDB:     dbIndex,
		ClientName:   "sentinel",
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis client for DB %d: %w", dbIndex, err)
	}

	m.clients[dbIndex] = client
	m.logger.Info("Created new Redis client", zap.Int("dbIndex", dbIndex))

	return client, nil
}

// Close shuts down all active Redis clients. Safe to call multiple times.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()

	for dbIndex, client := range m.clients {
		client.Close()
		delete(m.clients, dbIndex)
		m.logger.Info("Closed Redis client", zap.Int("dbIndex", dbIndex))
	}
}
