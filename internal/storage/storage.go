package storage

import (
	"context"
	"time"

	"github.com/dshills/ctxgraph/pkg/types"
)

// Storage defines the interface for persisting and querying the knowledge base
type Storage interface {
	// Project operations
	CreateProject(ctx context.Context, project *Project) error
	GetProject(ctx context.Context, rootPath string) (*Project, error)
	GetProjectByID(ctx context.Context, projectID int64) (*Project, error)
	UpdateProject(ctx context.Context, project *Project) error

	// File operations
	UpsertFile(ctx context.Context, file *File) error
	GetFile(ctx context.Context, projectID int64, filePath string) (*File, error)
	DeleteFile(ctx context.Context, fileID int64) error
	ListFiles(ctx context.Context, projectID int64) ([]*File, error)

	// Entity operations
	UpsertEntity(ctx context.Context, projectID int64, fileID *int64, entity *types.Entity) error
	GetEntity(ctx context.Context, id string) (*types.Entity, error)
	GetEntityByName(ctx context.Context, name string) (*types.Entity, error)
	GetEntityByQualifiedName(ctx context.Context, qualifiedName string) (*types.Entity, error)
	ListEntitiesByFile(ctx context.Context, fileID int64) ([]*types.Entity, error)
	ListEntityIDs(ctx context.Context) ([]string, error)
	DeleteEntitiesByFile(ctx context.Context, fileID int64) error
	SearchEntities(ctx context.Context, query string, opts types.EntitySearchOptions) ([]types.ScoredID, error)

	// Relationship operations
	CreateRelationship(ctx context.Context, rel *types.Relationship) error
	DeleteRelationship(ctx context.Context, id string) error
	ListRelationships(ctx context.Context, filter types.RelationshipFilter) ([]*types.Relationship, error)

	// Embedding operations
	UpsertEmbedding(ctx context.Context, embedding *Embedding) error
	GetEmbedding(ctx context.Context, entityID string) (*Embedding, error)
	SearchVector(ctx context.Context, vector []float32, opts types.SimilarityOptions) ([]types.ScoredID, error)

	// Status operations
	GetStatus(ctx context.Context, projectID int64) (*ProjectStatus, error)

	// Database operations
	Close() error
	BeginTx(ctx context.Context) (Tx, error)
}

// Tx represents a database transaction
type Tx interface {
	Commit() error
	Rollback() error
	Storage // Embed Storage interface for transaction operations
}

// Project represents an indexed codebase
type Project struct {
	ID            int64
	RootPath      string
	ModuleName    string
	GoVersion     string
	TotalFiles    int
	TotalEntities int
	IndexVersion  string
	LastIndexedAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// File represents a tracked source or document file
type File struct {
	ID            int64
	ProjectID     int64
	FilePath      string // Relative to project root
	PackageName   string
	Language      string
	ContentHash   [32]byte
	ModTime       time.Time
	SizeBytes     int64
	ParseError    *string // Nullable
	LastIndexedAt time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Embedding represents a vector embedding for an entity
type Embedding struct {
	ID          int64
	EntityID    string
	Vector      []byte // Serialized float32 array
	Dimension   int
	Provider    string
	Model       string
	ContentHash [32]byte // Hash of the embedded text
	CreatedAt   time.Time
}

// ProjectStatus contains statistics about an indexed project
type ProjectStatus struct {
	Project            *Project
	FilesCount         int
	EntitiesCount      int
	RelationshipsCount int
	EmbeddingsCount    int
	IndexSizeMB        float64
	LastIndexedAt      time.Time
	Health             HealthStatus
}

// HealthStatus represents the health of the index
type HealthStatus struct {
	DatabaseAccessible  bool
	EmbeddingsAvailable bool
	FTSIndexesBuilt     bool
}
