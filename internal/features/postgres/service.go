package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"

	"surveysync/internal/features/schema"

	_ "github.com/lib/pq"
	"go.uber.org/zap"
)

type PostgresService interface {
	Connect(ctx context.Context, sessionID string, creds Credentials) ([]schema.SchemaDefinition, error)
	Disconnect(sessionID string)
	Client(sessionID string) (*Client, error)
	ListSchemas(ctx context.Context, sessionID string) ([]schema.SchemaDefinition, error)
	ListTables(ctx context.Context, sessionID, schemaName string) ([]schema.TableDefinition, error)
	DescribeTable(ctx context.Context, sessionID, schemaName, tableName string) (*schema.TableDefinition, error)
	CreateTable(ctx context.Context, sessionID string, req CreateTableRequest) error
}

type PostgresServiceImpl struct {
	Logger *zap.Logger

	mu      sync.RWMutex
	clients map[string]*Client // keyed by session id
}

func NewPostgresService(logger *zap.Logger) PostgresService {
	return &PostgresServiceImpl{
		Logger:  logger,
		clients: make(map[string]*Client),
	}
}

// Connect opens a pool for the session's target database, pings it and
// returns the catalog. An earlier pool for the same session is replaced.
func (s *PostgresServiceImpl) Connect(ctx context.Context, sessionID string, creds Credentials) ([]schema.SchemaDefinition, error) {
	db, err := sql.Open("postgres", connectionString(creds))
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres connection: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)

	client := newClient(db)
	schemas, err := client.ListSchemas(ctx)
	if err != nil {
		client.Close()
		return nil, err
	}

	s.mu.Lock()
	if old, ok := s.clients[sessionID]; ok {
		old.Close()
	}
	s.clients[sessionID] = client
	s.mu.Unlock()

	s.Logger.Info("connected to target postgres",
		zap.String("host", creds.Host),
		zap.String("database", creds.Database))

	return schemas, nil
}

func (s *PostgresServiceImpl) Disconnect(sessionID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if client, ok := s.clients[sessionID]; ok {
		client.Close()
		delete(s.clients, sessionID)
	}
}

func (s *PostgresServiceImpl) Client(sessionID string) (*Client, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	client, ok := s.clients[sessionID]
	if !ok {
		return nil, ErrNotConnected
	}
	return client, nil
}

func (s *PostgresServiceImpl) ListSchemas(ctx context.Context, sessionID string) ([]schema.SchemaDefinition, error) {
	client, err := s.Client(sessionID)
	if err != nil {
		return nil, err
	}
	return client.ListSchemas(ctx)
}

func (s *PostgresServiceImpl) ListTables(ctx context.Context, sessionID, schemaName string) ([]schema.TableDefinition, error) {
	client, err := s.Client(sessionID)
	if err != nil {
		return nil, err
	}
	return client.ListTables(ctx, schemaName)
}

func (s *PostgresServiceImpl) DescribeTable(ctx context.Context, sessionID, schemaName, tableName string) (*schema.TableDefinition, error) {
	client, err := s.Client(sessionID)
	if err != nil {
		return nil, err
	}
	return client.DescribeTable(ctx, schemaName, tableName)
}

func (s *PostgresServiceImpl) CreateTable(ctx context.Context, sessionID string, req CreateTableRequest) error {
	client, err := s.Client(sessionID)
	if err != nil {
		return err
	}
	return client.CreateTable(ctx, req.SchemaName, req.TableName, req.Columns)
}

func connectionString(creds Credentials) string {
	port := creds.Port
	if port == 0 {
		port = 5432
	}
	sslMode := creds.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	parts := []string{
		fmt.Sprintf("host=%s", creds.Host),
		fmt.Sprintf("port=%d", port),
		fmt.Sprintf("user=%s", creds.Username),
		fmt.Sprintf("password=%s", creds.Password),
		fmt.Sprintf("dbname=%s", creds.Database),
		fmt.Sprintf("sslmode=%s", sslMode),
	}
	return strings.Join(parts, " ")
}
