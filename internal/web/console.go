package web

import (
	"net/http"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/hrdesk/internal/auth"
)

// Console routes. Page rendering lives in the frontend; the server only
// decides where a browser belongs.
const (
	LoginPath      = "/auth/login"
	AdminPath      = "/admin"
	OnboardingPath = "/onboarding"
)

// RegisterConsole adds the console gate routes. A signed-in member landing on
// the onboarding page is sent to the admin area and a signed-in principal
// without an organization is sent to onboarding.
func (a *API) RegisterConsole(mux *http.ServeMux) {
	mux.Handle("GET "+AdminPath, a.consoleGate(true))
	mux.Handle("GET "+AdminPath+"/", a.consoleGate(true))
	mux.Handle("GET "+OnboardingPath, a.consoleGate(false))
}

func (a *API) consoleGate(requireTenant bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ac, ok := auth.FromContext(r.Context())
		if !ok {
			http.Redirect(w, r, LoginPath, http.StatusFound)
			return
		}

		switch {
		case requireTenant && !ac.HasTenant():
			log.Ctx(r.Context()).Debug().Str("principal_id", ac.PrincipalID.String()).Msg("Console: onboarding required")
			http.Redirect(w, r, OnboardingPath, http.StatusFound)
			return
		case !requireTenant && ac.HasTenant():
			http.Redirect(w, r, AdminPath, http.StatusFound)
			return
		}

		me, err := a.service.GetMe(r.Context(), ac)
		if err != nil {
			writeError(w, r, err)
			return
		}
		writeData(w, http.StatusOK, me)
	}
}
