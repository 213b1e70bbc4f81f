package employees_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/eureka-corp/eureka/internal/auth"
	"github.com/eureka-corp/eureka/internal/employees"
	"github.com/eureka-corp/eureka/internal/rbac"
	"github.com/eureka-corp/eureka/internal/shared"
	"github.com/eureka-corp/eureka/internal/view"
	_ "github.com/eureka-corp/eureka/testing"
)

type stubRepo struct {
	employees   map[int64]employees.Employee
	searched    string
	searchLimit int
	updates     map[int64]employees.UpdateInput
	renamed     map[int64]string
	deleted     []int64
	updateErr   error
	listErr     error
}

func newStubRepo() *stubRepo {
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	return &stubRepo{
		employees: map[int64]employees.Employee{
			2: {ID: 2, Email: "lovelace@eureka.co", Name: "Ada Lovelace", CreatedAt: created},
			3: {ID: 3, Email: "hopper@eureka.co", Name: "Grace Hopper", CreatedAt: created},
		},
		updates: map[int64]employees.UpdateInput{},
		renamed: map[int64]string{},
	}
}

func (s *stubRepo) ListEmployees(context.Context) ([]employees.Employee, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	list := make([]employees.Employee, 0, len(s.employees))
	for _, e := range s.employees {
		list = append(list, e)
	}
	sort.Slice(list, func(i, j int) bool { return list[i].ID < list[j].ID })
	return list, nil
}

func (s *stubRepo) SearchEmployees(_ context.Context, prefix string, limit int) ([]employees.Summary, error) {
	s.searched, s.searchLimit = prefix, limit
	results := []employees.Summary{}
	for _, e := range s.employees {
		if strings.HasPrefix(strings.ToLower(e.Name), strings.ToLower(prefix)) {
			results = append(results, employees.Summary{ID: e.ID, Name: e.Name, Email: e.Email})
		}
	}
	return results, nil
}

func (s *stubRepo) GetEmployee(_ context.Context, id int64) (employees.Employee, error) {
	e, ok := s.employees[id]
	if !ok {
		return employees.Employee{}, shared.ErrNotFound
	}
	return e, nil
}

func (s *stubRepo) UpdateEmployee(_ context.Context, id int64, in employees.UpdateInput) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	if _, ok := s.employees[id]; !ok {
		return shared.ErrNotFound
	}
	s.updates[id] = in
	return nil
}

func (s *stubRepo) RenameUser(_ context.Context, id int64, name string) error {
	s.renamed[id] = name
	return nil
}

func (s *stubRepo) DeleteEmployee(_ context.Context, id int64) error {
	if _, ok := s.employees[id]; !ok {
		return shared.ErrNotFound
	}
	delete(s.employees, id)
	s.deleted = append(s.deleted, id)
	return nil
}

type stubRegistrar struct {
	inputs []auth.SignupInput
	err    error
}

func (s *stubRegistrar) Signup(_ context.Context, in auth.SignupInput) (*auth.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.inputs = append(s.inputs, in)
	return &auth.User{ID: 10, Email: in.Email, Name: in.Name}, nil
}

type recordingAudit struct {
	logs []shared.AuditLog
	err  error
}

func (a *recordingAudit) Record(_ context.Context, log shared.AuditLog) error {
	a.logs = append(a.logs, log)
	return a.err
}

type stubLoader map[int64]*rbac.Actor

func (s stubLoader) LoadActor(_ context.Context, id int64) (*rbac.Actor, error) {
	actor, ok := s[id]
	if !ok {
		return nil, rbac.ErrNotFound
	}
	return actor, nil
}

const (
	adminID    int64 = 1
	employeeID int64 = 2
)

func actors() stubLoader {
	return stubLoader{
		adminID: {ID: adminID, Email: "admin@eureka.co", Name: "Admin", Roles: []rbac.Role{{
			Name: rbac.RoleAdmin,
			Permissions: []rbac.Permission{
				{Entity: rbac.EntityUser, Action: rbac.ActionCreate, Access: rbac.AccessAny},
				{Entity: rbac.EntityUser, Action: rbac.ActionRead, Access: rbac.AccessAny},
				{Entity: rbac.EntityUser, Action: rbac.ActionUpdate, Access: rbac.AccessAny},
				{Entity: rbac.EntityUser, Action: rbac.ActionDelete, Access: rbac.AccessAny},
				{Entity: rbac.EntityReview, Action: rbac.ActionCreate, Access: rbac.AccessAny},
			},
		}}},
		employeeID: {ID: employeeID, Email: "lovelace@eureka.co", Name: "Ada Lovelace", Roles: []rbac.Role{{
			Name: rbac.RoleEmployee,
			Permissions: []rbac.Permission{
				{Entity: rbac.EntityUser, Action: rbac.ActionRead, Access: rbac.AccessOwn},
				{Entity: rbac.EntityUser, Action: rbac.ActionUpdate, Access: rbac.AccessOwn},
				{Entity: rbac.EntityReview, Action: rbac.ActionRead, Access: rbac.AccessOwn},
			},
		}}},
	}
}

type fixture struct {
	router    chi.Router
	repo      *stubRepo
	registrar *stubRegistrar
	audit     *recordingAudit
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	templates, err := view.NewEngine()
	require.NoError(t, err)
	f := &fixture{repo: newStubRepo(), registrar: &stubRegistrar{}, audit: &recordingAudit{}}
	service := employees.NewService(f.repo, f.registrar, f.audit)
	handler := employees.NewHandler(nil, service, templates, shared.NewCSRFManager("csrfsecret"), rbac.Middleware{Loader: actors()})
	f.router = chi.NewRouter()
	handler.MountRoutes(f.router)
	return f
}

// do serves req as userID and returns the response with the session it ran
// under.
func (f *fixture) do(req *http.Request, userID int64) (*httptest.ResponseRecorder, *shared.Session) {
	sess := &shared.Session{ID: "test-session"}
	if userID > 0 {
		sess.SetUser(strconv.FormatInt(userID, 10))
	}
	req = req.WithContext(shared.ContextWithSession(req.Context(), sess))
	res := httptest.NewRecorder()
	f.router.ServeHTTP(res, req)
	return res, sess
}

func postForm(path string, values url.Values) *http.Request {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

var errBoom = errors.New("boom")
