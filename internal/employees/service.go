package employees

import (
	"context"
	"strconv"
	"strings"

	"github.com/eureka-corp/eureka/internal/auth"
	"github.com/eureka-corp/eureka/internal/shared"
)

// SearchLimit caps the number of employees returned by a search.
const SearchLimit = 25

// RepositoryPort defines data access methods for employees.
type RepositoryPort interface {
	ListEmployees(ctx context.Context) ([]Employee, error)
	SearchEmployees(ctx context.Context, prefix string, limit int) ([]Summary, error)
	GetEmployee(ctx context.Context, id int64) (Employee, error)
	UpdateEmployee(ctx context.Context, id int64, in UpdateInput) error
	RenameUser(ctx context.Context, id int64, name string) error
	DeleteEmployee(ctx context.Context, id int64) error
}

// Registrar creates accounts with the signup rules. *auth.Service satisfies it.
type Registrar interface {
	Signup(ctx context.Context, in auth.SignupInput) (*auth.User, error)
}

// Service handles employee business logic.
type Service struct {
	repo      RepositoryPort
	registrar Registrar
	audit     shared.AuditRecorder
}

// NewService builds Service instance.
func NewService(repo RepositoryPort, registrar Registrar, audit shared.AuditRecorder) *Service {
	if audit == nil {
		audit = shared.NopAudit{}
	}
	return &Service{repo: repo, registrar: registrar, audit: audit}
}

// ListEmployees returns all employees.
func (s *Service) ListEmployees(ctx context.Context) ([]Employee, error) {
	return s.repo.ListEmployees(ctx)
}

// SearchEmployees finds employees by name prefix.
func (s *Service) SearchEmployees(ctx context.Context, q string) ([]Summary, error) {
	return s.repo.SearchEmployees(ctx, strings.TrimSpace(q), SearchLimit)
}

// GetEmployee loads one account.
func (s *Service) GetEmployee(ctx context.Context, id int64) (Employee, error) {
	return s.repo.GetEmployee(ctx, id)
}

// CreateEmployee registers a new employee account on behalf of actorID.
func (s *Service) CreateEmployee(ctx context.Context, actorID int64, in CreateInput) (Employee, error) {
	user, err := s.registrar.Signup(ctx, auth.SignupInput{Email: in.Email, Name: in.Name, Password: in.Password})
	if err != nil {
		return Employee{}, err
	}
	s.record(ctx, actorID, "create", user.ID, map[string]any{"email": user.Email})
	return Employee{ID: user.ID, Email: user.Email, Name: user.Name, CreatedAt: user.CreatedAt, UpdatedAt: user.UpdatedAt}, nil
}

// UpdateEmployee changes an employee's email and name.
func (s *Service) UpdateEmployee(ctx context.Context, actorID, id int64, in UpdateInput) error {
	in.Email = shared.NormalizeEmail(in.Email)
	in.Name = shared.NormalizeName(in.Name)
	if err := s.repo.UpdateEmployee(ctx, id, in); err != nil {
		return err
	}
	s.record(ctx, actorID, "update", id, map[string]any{"email": in.Email, "name": in.Name})
	return nil
}

// UpdateProfile renames the actor's own account.
func (s *Service) UpdateProfile(ctx context.Context, actorID int64, name string) error {
	name = shared.NormalizeName(name)
	if err := s.repo.RenameUser(ctx, actorID, name); err != nil {
		return err
	}
	s.record(ctx, actorID, "update", actorID, map[string]any{"name": name, "own": true})
	return nil
}

// DeleteEmployee removes an employee account.
func (s *Service) DeleteEmployee(ctx context.Context, actorID, id int64) error {
	if err := s.repo.DeleteEmployee(ctx, id); err != nil {
		return err
	}
	s.record(ctx, actorID, "delete", id, nil)
	return nil
}

// record persists an audit entry. Audit failures never fail the operation.
func (s *Service) record(ctx context.Context, actorID int64, action string, id int64, meta map[string]any) {
	_ = s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "user",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
}
