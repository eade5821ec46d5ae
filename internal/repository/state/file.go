package state

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/oshokin/home-security/internal/config"
	"github.com/oshokin/home-security/internal/domain/device"
)

// Repository defines persistence operations for the device state.
type Repository interface {
	Load(ctx context.Context) (*device.State, error)
	Save(ctx context.Context, state *device.State) error
}

// Field names of the persisted document.
const (
	fieldAlarmActive   = "alarm_active"
	fieldFrequency     = "frequency"
	fieldDuration      = "duration"
	fieldFlashActive   = "flash_active"
	fieldFlashFreq     = "flash_freq"
	fieldFlashDuration = "flash_duration"
	fieldUpdatedAt     = "updated_at"
)

var (
	// ErrNotFound is returned when the state file does not exist yet.
	ErrNotFound = errors.New("state not found")
	// ErrInvalidState is returned when the file holds non-positive settings.
	ErrInvalidState = errors.New("state file holds invalid settings")
)

// FileRepository persists the device state to a JSON file on disk.
type FileRepository struct {
	// path is the filesystem location of the JSON state file.
	path string
	// mu protects concurrent access to the state file.
	mu sync.Mutex
}

// NewFileRepository creates a repository that reads/writes JSON at the provided path.
func NewFileRepository(path string) *FileRepository {
	return &FileRepository{
		path: filepath.Clean(path),
	}
}

// Load reads settings and activity flags from disk. Scheduler phases are not persisted.
func (r *FileRepository) Load(_ context.Context) (*device.State, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	contents, err := os.ReadFile(r.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, ErrNotFound
		}

		return nil, fmt.Errorf("read state file: %w", err)
	}

	var doc structpb.Struct
	if err = protojson.Unmarshal(contents, &doc); err != nil {
		return nil, fmt.Errorf("decode state file: %w", err)
	}

	loaded := fromStruct(&doc)
	if !loaded.Valid() {
		return nil, ErrInvalidState
	}

	return loaded, nil
}

// Save writes the settings and activity flags to disk.
func (r *FileRepository) Save(_ context.Context, state *device.State) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	marshalOptions := protojson.MarshalOptions{
		Multiline: true,
		Indent:    "  ",
	}

	data, err := marshalOptions.Marshal(toStruct(state))
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}

	if err = os.WriteFile(r.path, data, config.DefaultFilePermissions); err != nil {
		return fmt.Errorf("write state file: %w", err)
	}

	return nil
}

// fromStruct converts the persisted document into a device state.
func fromStruct(doc *structpb.Struct) *device.State {
	fields := doc.GetFields()

	var updatedAt time.Time
	if raw := fields[fieldUpdatedAt].GetStringValue(); raw != "" {
		if parsed, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			updatedAt = parsed
		}
	}

	return &device.State{
		Settings: device.Settings{
			AlarmFrequencyHz:     int(fields[fieldFrequency].GetNumberValue()),
			AlarmDurationMs:      int(fields[fieldDuration].GetNumberValue()),
			FlashPeriodSeconds:   int(fields[fieldFlashFreq].GetNumberValue()),
			FlashDurationSeconds: int(fields[fieldFlashDuration].GetNumberValue()),
		},
		AlarmActive: fields[fieldAlarmActive].GetBoolValue(),
		FlashActive: fields[fieldFlashActive].GetBoolValue(),
		UpdatedAt:   updatedAt,
	}
}

// toStruct converts the device state into the persisted document.
func toStruct(state *device.State) *structpb.Struct {
	fields := map[string]*structpb.Value{
		fieldAlarmActive:   structpb.NewBoolValue(state.AlarmActive),
		fieldFrequency:     structpb.NewNumberValue(float64(state.AlarmFrequencyHz)),
		fieldDuration:      structpb.NewNumberValue(float64(state.AlarmDurationMs)),
		fieldFlashActive:   structpb.NewBoolValue(state.FlashActive),
		fieldFlashFreq:     structpb.NewNumberValue(float64(state.FlashPeriodSeconds)),
		fieldFlashDuration: structpb.NewNumberValue(float64(state.FlashDurationSeconds)),
	}

	if !state.UpdatedAt.IsZero() {
		fields[fieldUpdatedAt] = structpb.NewStringValue(state.UpdatedAt.UTC().Format(time.RFC3339Nano))
	}

	return &structpb.Struct{Fields: fields}
}
