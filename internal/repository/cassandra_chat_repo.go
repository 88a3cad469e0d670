package repository

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/gocql/gocql"

	"github.com/weiawesome/wes-io-live/stream-directory/internal/domain"
)

// CassandraSchema creates the transcript table. Message ids are ULIDs, so
// clustering by message_id keeps rows in creation order.
const CassandraSchema = `CREATE TABLE IF NOT EXISTS messages_by_stream (
	stream_id text,
	message_id text,
	wallet_address text,
	message text,
	created_at timestamp,
	PRIMARY KEY ((stream_id), message_id)
) WITH CLUSTERING ORDER BY (message_id ASC)`

// CassandraConfig holds the cluster settings of the transcript store.
type CassandraConfig struct {
	Hosts          []string
	Keyspace       string
	Consistency    string
	ConnectTimeout time.Duration
	Timeout        time.Duration
}

// CassandraChatRepository implements ChatRepository on Cassandra.
type CassandraChatRepository struct {
	session *gocql.Session
}

func NewCassandraChatRepository(cfg CassandraConfig) (*CassandraChatRepository, error) {
	cluster := gocql.NewCluster(cfg.Hosts...)
	cluster.Keyspace = cfg.Keyspace
	cluster.ConnectTimeout = cfg.ConnectTimeout
	cluster.Timeout = cfg.Timeout
	cluster.Consistency = parseConsistency(cfg.Consistency)

	session, err := cluster.CreateSession()
	if err != nil {
		return nil, fmt.Errorf("failed to create cassandra session: %w", err)
	}

	if err := session.Query(CassandraSchema).Exec(); err != nil {
		session.Close()
		return nil, fmt.Errorf("failed to create messages_by_stream: %w", err)
	}

	return &CassandraChatRepository{session: session}, nil
}

func parseConsistency(s string) gocql.Consistency {
	switch s {
	case "LOCAL_QUORUM":
		return gocql.LocalQuorum
	case "ONE":
		return gocql.One
	case "QUORUM":
		return gocql.Quorum
	default:
		return gocql.LocalOne
	}
}

func (r *CassandraChatRepository) Create(ctx context.Context, msg *domain.ChatMessage) error {
	err := r.session.Query(
		`INSERT INTO messages_by_stream (stream_id, message_id, wallet_address, message, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		msg.StreamID, msg.ID, msg.WalletAddress, msg.Message, msg.CreatedAt,
	).WithContext(ctx).Exec()
	if err != nil {
		return fmt.Errorf("failed to insert message: %w", err)
	}
	return nil
}

func (r *CassandraChatRepository) ListByStream(ctx context.Context, streamID string) ([]domain.ChatMessage, error) {
	iter := r.session.Query(
		`SELECT message_id, stream_id, wallet_address, message, created_at
		 FROM messages_by_stream
		 WHERE stream_id = ?`,
		streamID,
	).WithContext(ctx).Iter()

	var messages []domain.ChatMessage
	var msg domain.ChatMessage
	var createdAt time.Time

	for iter.Scan(
		&msg.ID,
		&msg.StreamID,
		&msg.WalletAddress,
		&msg.Message,
		&createdAt,
	) {
		msg.CreatedAt = createdAt.UTC()
		messages = append(messages, msg)
		msg = domain.ChatMessage{}
	}

	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to iterate messages: %w", err)
	}

	// Cassandra timestamps are millisecond precision; re-sort on the full key.
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].Before(&messages[j])
	})

	return messages, nil
}

func (r *CassandraChatRepository) Close() error {
	r.session.Close()
	return nil
}
