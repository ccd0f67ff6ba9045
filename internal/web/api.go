package web

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/wolfeidau/hrdesk/internal/actions"
	"github.com/wolfeidau/hrdesk/internal/auth"
	"github.com/wolfeidau/hrdesk/internal/store"
)

// API exposes the action service as JSON endpoints under /api.
type API struct {
	service *actions.Service
}

func NewAPI(service *actions.Service) *API {
	return &API{service: service}
}

// Register adds the API routes to mux. Every route expects the auth
// middleware to have run; anonymous requests reach the actions with a nil
// AuthContext and are rejected there.
func (a *API) Register(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/me", a.getMe)

	mux.HandleFunc("POST /api/orgs", a.createOrg)
	mux.HandleFunc("GET /api/org", a.getOrg)
	mux.HandleFunc("PATCH /api/org", a.updateOrg)
	mux.HandleFunc("POST /api/invite-codes/redeem", a.redeemInviteCode)

	mux.HandleFunc("GET /api/departments", a.listDepartments)
	mux.HandleFunc("POST /api/departments", a.createDepartment)
	mux.HandleFunc("GET /api/departments/{id}", a.getDepartment)
	mux.HandleFunc("PUT /api/departments/{id}", a.updateDepartment)
	mux.HandleFunc("DELETE /api/departments/{id}", a.deleteDepartment)

	mux.HandleFunc("GET /api/positions", a.listPositions)
	mux.HandleFunc("POST /api/positions", a.createPosition)
	mux.HandleFunc("PUT /api/positions/{id}", a.updatePosition)
	mux.HandleFunc("DELETE /api/positions/{id}", a.deletePosition)

	mux.HandleFunc("GET /api/employees", a.listEmployees)
	mux.HandleFunc("POST /api/employees", a.createEmployee)
	mux.HandleFunc("GET /api/employees/{id}", a.getEmployee)
	mux.HandleFunc("PUT /api/employees/{id}", a.updateEmployee)
	mux.HandleFunc("DELETE /api/employees/{id}", a.deleteEmployee)
	mux.HandleFunc("POST /api/employees/{id}/invite", a.resendEmployeeInvite)

	mux.HandleFunc("GET /api/roles", a.listRoles)
	mux.HandleFunc("POST /api/roles", a.createRole)
	mux.HandleFunc("PUT /api/roles/{id}", a.updateRole)
	mux.HandleFunc("DELETE /api/roles/{id}", a.deleteRole)
	mux.HandleFunc("GET /api/permissions", a.listPermissions)

	mux.HandleFunc("GET /api/users", a.listUsers)
	mux.HandleFunc("PUT /api/users/{id}/status", a.updateUserStatus)
	mux.HandleFunc("DELETE /api/users/{id}", a.removeUser)
	mux.HandleFunc("PUT /api/users/{id}/roles/{roleID}", a.assignRole)
	mux.HandleFunc("DELETE /api/users/{id}/roles/{roleID}", a.removeRole)

	mux.HandleFunc("GET /api/invite-codes", a.listInviteCodes)
	mux.HandleFunc("POST /api/invite-codes", a.createInviteCode)
	mux.HandleFunc("DELETE /api/invite-codes/{id}", a.deleteInviteCode)
}

func authContext(r *http.Request) *auth.AuthContext {
	ac, _ := auth.FromContext(r.Context())
	return ac
}

// pathID parses a UUID path value. Malformed IDs cannot match any row, so they
// are reported as not found.
func pathID(r *http.Request, name string) (uuid.UUID, error) {
	id, err := uuid.Parse(r.PathValue(name))
	if err != nil {
		return uuid.Nil, actions.ErrNotFound
	}
	return id, nil
}

func queryID(r *http.Request, name string) (*uuid.UUID, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, &actions.ValidationError{Field: name, Message: "must be a UUID"}
	}
	return &id, nil
}

type nameRequest struct {
	Name string `json:"name"`
}

type codeRequest struct {
	Code string `json:"code"`
}

type statusRequest struct {
	Status string `json:"status"`
}

func (a *API) getMe(w http.ResponseWriter, r *http.Request) {
	me, err := a.service.GetMe(r.Context(), authContext(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, me)
}

func (a *API) createOrg(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	onboarding, err := a.service.CreateOrg(r.Context(), authContext(r), req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, onboarding)
}

func (a *API) getOrg(w http.ResponseWriter, r *http.Request) {
	org, err := a.service.GetOrg(r.Context(), authContext(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, org)
}

func (a *API) updateOrg(w http.ResponseWriter, r *http.Request) {
	var req nameRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	org, err := a.service.UpdateOrg(r.Context(), authContext(r), req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, org)
}

func (a *API) redeemInviteCode(w http.ResponseWriter, r *http.Request) {
	var req codeRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	onboarding, err := a.service.RedeemInviteCode(r.Context(), authContext(r), req.Code)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, onboarding)
}

func (a *API) listDepartments(w http.ResponseWriter, r *http.Request) {
	departments, err := a.service.ListDepartments(r.Context(), authContext(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, list(departments))
}

func (a *API) getDepartment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	department, err := a.service.GetDepartment(r.Context(), authContext(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, department)
}

func (a *API) createDepartment(w http.ResponseWriter, r *http.Request) {
	var in actions.DepartmentInput
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	department, err := a.service.CreateDepartment(r.Context(), authContext(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, department)
}

func (a *API) updateDepartment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var in actions.DepartmentInput
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	department, err := a.service.UpdateDepartment(r.Context(), authContext(r), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, department)
}

func (a *API) deleteDepartment(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := a.service.DeleteDepartment(r.Context(), authContext(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusNoContent, nil)
}

func (a *API) listPositions(w http.ResponseWriter, r *http.Request) {
	departmentID, err := queryID(r, "department_id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	positions, err := a.service.ListPositions(r.Context(), authContext(r), departmentID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, list(positions))
}

func (a *API) createPosition(w http.ResponseWriter, r *http.Request) {
	var in actions.PositionInput
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	position, err := a.service.CreatePosition(r.Context(), authContext(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, position)
}

func (a *API) updatePosition(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var in actions.PositionInput
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	position, err := a.service.UpdatePosition(r.Context(), authContext(r), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, position)
}

func (a *API) deletePosition(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := a.service.DeletePosition(r.Context(), authContext(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusNoContent, nil)
}

func (a *API) listEmployees(w http.ResponseWriter, r *http.Request) {
	var (
		filter store.EmployeeFilter
		err    error
	)

	if filter.DepartmentID, err = queryID(r, "department_id"); err != nil {
		writeError(w, r, err)
		return
	}
	if filter.PositionID, err = queryID(r, "position_id"); err != nil {
		writeError(w, r, err)
		return
	}
	filter.Status = r.URL.Query().Get("status")

	employees, err := a.service.ListEmployees(r.Context(), authContext(r), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, list(employees))
}

func (a *API) getEmployee(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	employee, err := a.service.GetEmployee(r.Context(), authContext(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, employee)
}

func (a *API) createEmployee(w http.ResponseWriter, r *http.Request) {
	var in actions.EmployeeInput
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	employee, err := a.service.CreateEmployee(r.Context(), authContext(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, employee)
}

func (a *API) updateEmployee(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var in actions.EmployeeInput
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	employee, err := a.service.UpdateEmployee(r.Context(), authContext(r), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, employee)
}

func (a *API) deleteEmployee(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := a.service.DeleteEmployee(r.Context(), authContext(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusNoContent, nil)
}

func (a *API) resendEmployeeInvite(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	employee, err := a.service.ResendEmployeeInvite(r.Context(), authContext(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, employee)
}

func (a *API) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := a.service.ListRoles(r.Context(), authContext(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, list(roles))
}

func (a *API) listPermissions(w http.ResponseWriter, r *http.Request) {
	permissions, err := a.service.ListPermissions(r.Context(), authContext(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, list(permissions))
}

func (a *API) createRole(w http.ResponseWriter, r *http.Request) {
	var in actions.RoleInput
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	role, err := a.service.CreateRole(r.Context(), authContext(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, role)
}

func (a *API) updateRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var in actions.RoleInput
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	role, err := a.service.UpdateRole(r.Context(), authContext(r), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, role)
}

func (a *API) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := a.service.DeleteRole(r.Context(), authContext(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusNoContent, nil)
}

func (a *API) listUsers(w http.ResponseWriter, r *http.Request) {
	users, err := a.service.ListUsers(r.Context(), authContext(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, list(users))
}

func (a *API) updateUserStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	var req statusRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if err := a.service.UpdateUserStatus(r.Context(), authContext(r), id, req.Status); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusNoContent, nil)
}

func (a *API) removeUser(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := a.service.RemoveUser(r.Context(), authContext(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusNoContent, nil)
}

func (a *API) assignRole(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	roleID, err := pathID(r, "roleID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := a.service.AssignRoleToUser(r.Context(), authContext(r), userID, roleID); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusNoContent, nil)
}

func (a *API) removeRole(w http.ResponseWriter, r *http.Request) {
	userID, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	roleID, err := pathID(r, "roleID")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := a.service.RemoveRoleFromUser(r.Context(), authContext(r), userID, roleID); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusNoContent, nil)
}

func (a *API) listInviteCodes(w http.ResponseWriter, r *http.Request) {
	codes, err := a.service.ListInviteCodes(r.Context(), authContext(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, list(codes))
}

func (a *API) createInviteCode(w http.ResponseWriter, r *http.Request) {
	var in actions.InviteCodeInput
	if err := decode(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}

	code, err := a.service.CreateInviteCode(r.Context(), authContext(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusCreated, code)
}

func (a *API) deleteInviteCode(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}

	if err := a.service.DeleteInviteCode(r.Context(), authContext(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusNoContent, nil)
}
