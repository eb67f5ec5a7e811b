package file

import (
	"cmp"
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/dukex/flowcrm/pkg/models"
	"github.com/dukex/flowcrm/pkg/persistence"
)

// WorkflowRepository keeps one file per workflow under root/workflows. A mutex serialises every
// read-modify-write, which makes StampExecution atomic within the process.
type WorkflowRepository struct {
	root string
	mu   sync.Mutex
	now  func() time.Time
}

// NewWorkflowRepository creates a new workflow repository.
func NewWorkflowRepository(root string) *WorkflowRepository {
	return &WorkflowRepository{root: root, now: time.Now}
}

func (wr *WorkflowRepository) dir() string {
	return filepath.Join(wr.root, "workflows")
}

func (wr *WorkflowRepository) path(id int64) string {
	return filepath.Join(wr.dir(), strconv.FormatInt(id, 10)+".json")
}

func (wr *WorkflowRepository) Save(_ context.Context, workflow *models.Workflow) error {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	now := wr.now().UTC()

	if workflow.CreatedAt.IsZero() {
		workflow.CreatedAt = now
	}

	workflow.UpdatedAt = now

	if workflow.ID == 0 {
		id, err := wr.nextID()
		if err != nil {
			return err
		}

		workflow.ID = id
	} else {
		existing, err := wr.read(workflow.ID)
		if err != nil {
			return persistence.NewWorkflowError("Save", workflow.ID, err)
		}

		if existing.TenantID != workflow.TenantID {
			return persistence.NewWorkflowError("Save", workflow.ID, persistence.ErrWorkflowNotFound)
		}

		workflow.Telemetry = existing.Telemetry
		workflow.CreatedAt = existing.CreatedAt
		workflow.CreatedBy = existing.CreatedBy
	}

	for i := range workflow.Actions {
		workflow.Actions[i].ID = int64(i + 1)
	}

	return wr.write(workflow)
}

func (wr *WorkflowRepository) GetByID(_ context.Context, tenantID, id int64) (*models.Workflow, error) {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	workflow, err := wr.read(id)
	if err != nil {
		return nil, persistence.NewWorkflowError("GetByID", id, err)
	}

	if workflow.TenantID != tenantID {
		return nil, persistence.NewWorkflowError("GetByID", id, persistence.ErrWorkflowNotFound)
	}

	return workflow, nil
}

// List returns every workflow of a tenant, newest first.
func (wr *WorkflowRepository) List(_ context.Context, tenantID int64) ([]*models.Workflow, error) {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	workflows, err := wr.filter(func(w *models.Workflow) bool { return w.TenantID == tenantID })
	if err != nil {
		return nil, err
	}

	slices.SortFunc(workflows, func(a, b *models.Workflow) int {
		return cmp.Or(b.CreatedAt.Compare(a.CreatedAt), cmp.Compare(b.ID, a.ID))
	})

	return workflows, nil
}

func (wr *WorkflowRepository) FindActive(
	_ context.Context,
	tenantID int64,
	entityType models.EntityType,
	frequency models.TriggerFrequency,
) ([]*models.Workflow, error) {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	workflows, err := wr.filter(func(w *models.Workflow) bool {
		return w.Active &&
			w.TenantID == tenantID &&
			w.EntityType == entityType &&
			w.Trigger.TriggerFrequency == frequency
	})
	if err != nil {
		return nil, err
	}

	slices.SortFunc(workflows, func(a, b *models.Workflow) int { return cmp.Compare(a.ID, b.ID) })

	return workflows, nil
}

func (wr *WorkflowRepository) SetActive(_ context.Context, tenantID, id int64, active bool) error {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	workflow, err := wr.read(id)
	if err != nil {
		return persistence.NewWorkflowError("SetActive", id, err)
	}

	if workflow.TenantID != tenantID {
		return persistence.NewWorkflowError("SetActive", id, persistence.ErrWorkflowNotFound)
	}

	workflow.Active = active
	workflow.UpdatedAt = wr.now().UTC()

	return wr.write(workflow)
}

func (wr *WorkflowRepository) StampExecution(_ context.Context, id int64, at time.Time) error {
	wr.mu.Lock()
	defer wr.mu.Unlock()

	workflow, err := wr.read(id)
	if err != nil {
		return persistence.NewWorkflowError("StampExecution", id, err)
	}

	at = at.UTC()

	workflow.Telemetry.TriggerCount++
	if workflow.Telemetry.LastTriggeredAt == nil || at.After(*workflow.Telemetry.LastTriggeredAt) {
		workflow.Telemetry.LastTriggeredAt = &at
	}

	return wr.write(workflow)
}

func (wr *WorkflowRepository) read(id int64) (*models.Workflow, error) {
	body, err := os.ReadFile(wr.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, persistence.ErrWorkflowNotFound
		}

		return nil, fmt.Errorf("failed to read workflow file: %w", err)
	}

	var workflow models.Workflow

	err = json.Unmarshal(body, &workflow)
	if err != nil {
		return nil, fmt.Errorf("failed to decode workflow file: %w", err)
	}

	return &workflow, nil
}

// write replaces the file through a rename so readers never see a partial document.
func (wr *WorkflowRepository) write(workflow *models.Workflow) error {
	err := os.MkdirAll(wr.dir(), 0o750)
	if err != nil {
		return fmt.Errorf("failed to create workflows directory: %w", err)
	}

	data, err := json.MarshalIndent(workflow, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode workflow: %w", err)
	}

	tmp := wr.path(workflow.ID) + ".tmp"

	err = os.WriteFile(tmp, data, 0o600)
	if err != nil {
		return fmt.Errorf("failed to write workflow file: %w", err)
	}

	return os.Rename(tmp, wr.path(workflow.ID))
}

func (wr *WorkflowRepository) ids() ([]int64, error) {
	files, err := fs.Glob(os.DirFS(wr.dir()), "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list workflow files: %w", err)
	}

	ids := make([]int64, 0, len(files))

	for _, f := range files {
		id, err := strconv.ParseInt(strings.TrimSuffix(f, ".json"), 10, 64)
		if err != nil {
			continue
		}

		ids = append(ids, id)
	}

	return ids, nil
}

func (wr *WorkflowRepository) nextID() (int64, error) {
	ids, err := wr.ids()
	if err != nil {
		return 0, err
	}

	if len(ids) == 0 {
		return 1, nil
	}

	return slices.Max(ids) + 1, nil
}

func (wr *WorkflowRepository) filter(keep func(*models.Workflow) bool) ([]*models.Workflow, error) {
	ids, err := wr.ids()
	if err != nil {
		return nil, err
	}

	workflows := make([]*models.Workflow, 0, len(ids))

	for _, id := range ids {
		workflow, err := wr.read(id)
		if err != nil {
			return nil, fmt.Errorf("failed to load workflow %d: %w", id, err)
		}

		if keep(workflow) {
			workflows = append(workflows, workflow)
		}
	}

	return workflows, nil
}
