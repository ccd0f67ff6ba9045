package web

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/wolfeidau/hrdesk/internal/models"
)

// invitee is the part of a pending employee shown to whoever holds the invite
// code. Salary and contact details are left out.
type invitee struct {
	EmployeeCode string  `json:"employee_code"`
	FirstName    string  `json:"first_name"`
	LastName     string  `json:"last_name"`
	Nickname     *string `json:"nickname,omitempty"`
}

func newInvitee(e *models.Employee) *invitee {
	return &invitee{
		EmployeeCode: e.EmployeeCode,
		FirstName:    e.FirstName,
		LastName:     e.LastName,
		Nickname:     e.Nickname,
	}
}

type linkRequest struct {
	EmployeeCode string `json:"employee_code"`
	InviteCode   string `json:"invite_code"`
}

// RegisterLIFF adds the mini-site routes. POST /liff/session is served by the
// token issuer and registered by the caller.
func (a *API) RegisterLIFF(mux *http.ServeMux) {
	mux.HandleFunc("GET /liff/invite/{code}", a.lookupInvite)
	mux.HandleFunc("POST /liff/link", a.linkEmployee)
}

func (a *API) lookupInvite(w http.ResponseWriter, r *http.Request) {
	employee, err := a.service.GetEmployeeByInviteCode(r.Context(), r.PathValue("code"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, newInvitee(employee))
}

func (a *API) linkEmployee(w http.ResponseWriter, r *http.Request) {
	var req linkRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(req.InviteCode) == "" {
		writeError(w, r, fmt.Errorf("%w: invite_code is required", errBadRequest))
		return
	}

	employee, err := a.service.LinkEmployeeWithLine(r.Context(), authContext(r), req.EmployeeCode, req.InviteCode)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeData(w, http.StatusOK, newInvitee(employee))
}
