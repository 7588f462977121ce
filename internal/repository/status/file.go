package status

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/oneshot-layer/internal/config"
	domain "github.com/oshokin/oneshot-layer/internal/domain/oneshot"
	pb "github.com/oshokin/oneshot-layer/internal/pb/v1"
)

// Repository defines persistence operations for the daemon status.
type Repository interface {
	Load(ctx context.Context) (*domain.Status, error)
	Save(ctx context.Context, status *domain.Status) error
}

// FileRepository persists the status to a JSON file on disk.
// JSON is produced via protojson over a google.protobuf.Struct, the same
// payload GetState returns.
type FileRepository struct {
	// path is the filesystem location of the JSON status file.
	path string
	// mu protects concurrent access to the status file.
	mu sync.Mutex
}

// ErrNotFound is returned when the status file does not exist yet.
var ErrNotFound = errors.New("status not found")

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Path returns the status file location.
func (r *FileRepository) Path() string {
	return r.path
}

// Load reads the status from disk.
func (r *FileRepository) Load(_ context.Context) (*domain.Status, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read status file: %w", err)
	}

	var protoStatus structpb.Struct
	if err = protojson.Unmarshal(contents, &protoStatus); err != nil {
		return nil, fmt.Errorf("decode status file: %w", err)
	}

	return pb.StatusFromProto(&protoStatus)
}

// Save writes the status to disk. The file is replaced atomically so readers
// never see a partial document.
func (r *FileRepository) Save(_ context.Context, status *domain.Status) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	protoStatus, err := pb.StatusToProto(status)
	if err != nil {
		return err
	}

	marshalOptions := protojson.MarshalOptions{
		Multiline:       true,
		EmitUnpopulated: true,
	}

	data, err := marshalOptions.Marshal(protoStatus)
	if err != nil {
		return fmt.Errorf("encode status: %w", err)
	}

	tmp := r.path + ".tmp"

	if err = os.WriteFile(tmp, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write status file: %w", err)
	}

	if err = os.Rename(tmp, r.path); err != nil {
		return fmt.Errorf("replace status file: %w", err)
	}

	return nil
}
