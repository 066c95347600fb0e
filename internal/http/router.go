package http

import (
	"net/http"
	"strings"
)

type RouterConfig struct {
	Auth         *AuthHandler
	Technicians  *TechnicianHandler
	Jobs         *JobHandler
	Appointments *AppointmentHandler
	Middleware   []func(http.Handler) http.Handler
}

func NewRouter(cfg RouterConfig) http.Handler {
	mux := http.NewServeMux()

	if cfg.Auth != nil {
		mux.HandleFunc("/sessions", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Auth.CreateSession(w, r)
		})
		mux.HandleFunc("/sessions/current", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodDelete {
				methodNotAllowed(w, http.MethodDelete)
				return
			}
			cfg.Auth.DeleteCurrentSession(w, r)
		})
		mux.HandleFunc("/sessions/", func(w http.ResponseWriter, r *http.Request) {
			token := strings.TrimPrefix(r.URL.Path, "/sessions/")
			if token == "" {
				http.NotFound(w, r)
				return
			}
			if r.Method != http.MethodDelete {
				methodNotAllowed(w, http.MethodDelete)
				return
			}
			cfg.Auth.DeleteSession(w, r, token)
		})
	}

	if cfg.Technicians != nil {
		mux.HandleFunc("/technicians", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Technicians.List(w, r)
			case http.MethodPost:
				cfg.Technicians.Create(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		mux.HandleFunc("/technicians/", func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimPrefix(r.URL.Path, "/technicians/")
			if id == "" {
				http.NotFound(w, r)
				return
			}
			ctx := ContextWithTechnicianID(r.Context(), id)
			r = r.WithContext(ctx)
			switch r.Method {
			case http.MethodGet:
				cfg.Technicians.Get(w, r)
			case http.MethodPut:
				cfg.Technicians.Update(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPut)
			}
		})
	}

	if cfg.Jobs != nil {
		mux.HandleFunc("/jobs", func(w http.ResponseWriter, r *http.Request) {
			switch r.Method {
			case http.MethodGet:
				cfg.Jobs.List(w, r)
			case http.MethodPost:
				cfg.Jobs.Create(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPost)
			}
		})
		mux.HandleFunc("/jobs/backlog", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Jobs.Backlog(w, r)
		})
		mux.HandleFunc("/jobs/", func(w http.ResponseWriter, r *http.Request) {
			id := strings.TrimPrefix(r.URL.Path, "/jobs/")
			if id == "" {
				http.NotFound(w, r)
				return
			}
			ctx := ContextWithJobID(r.Context(), id)
			r = r.WithContext(ctx)
			switch r.Method {
			case http.MethodGet:
				cfg.Jobs.Get(w, r)
			case http.MethodPut:
				cfg.Jobs.Update(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPut)
			}
		})
	}

	if cfg.Appointments != nil {
		mux.HandleFunc("/appointments", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Appointments.Create(w, r)
		})
		mux.HandleFunc("/appointments/", func(w http.ResponseWriter, r *http.Request) {
			rest := strings.TrimPrefix(r.URL.Path, "/appointments/")
			if rest == "" {
				http.NotFound(w, r)
				return
			}

			id, action := rest, ""
			if idx := strings.IndexByte(rest, '/'); idx >= 0 {
				id, action = rest[:idx], rest[idx+1:]
			}
			if id == "" {
				http.NotFound(w, r)
				return
			}
			ctx := ContextWithAppointmentID(r.Context(), id)
			r = r.WithContext(ctx)

			if action != "" {
				if r.Method != http.MethodPost {
					methodNotAllowed(w, http.MethodPost)
					return
				}
				switch action {
				case "commit":
					cfg.Appointments.Commit(w, r)
				case "customer-invite":
					cfg.Appointments.CustomerInvite(w, r)
				case "confirm":
					cfg.Appointments.Confirm(w, r)
				case "reset":
					cfg.Appointments.Reset(w, r)
				default:
					http.NotFound(w, r)
				}
				return
			}

			switch r.Method {
			case http.MethodGet:
				cfg.Appointments.Get(w, r)
			case http.MethodPut:
				cfg.Appointments.Move(w, r)
			case http.MethodDelete:
				cfg.Appointments.Delete(w, r)
			default:
				methodNotAllowed(w, http.MethodGet, http.MethodPut, http.MethodDelete)
			}
		})
		mux.HandleFunc("/schedule", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodGet {
				methodNotAllowed(w, http.MethodGet)
				return
			}
			cfg.Appointments.ListSchedule(w, r)
		})
		mux.HandleFunc("/conflicts/check", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Appointments.CheckConflicts(w, r)
		})
		mux.HandleFunc("/calendar/responses", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				methodNotAllowed(w, http.MethodPost)
				return
			}
			cfg.Appointments.ApplyResponses(w, r)
		})
	}

	var handler http.Handler = mux
	if len(cfg.Middleware) > 0 {
		for i := len(cfg.Middleware) - 1; i >= 0; i-- {
			if cfg.Middleware[i] != nil {
				handler = cfg.Middleware[i](handler)
			}
		}
	}

	return handler
}

func methodNotAllowed(w http.ResponseWriter, allowed ...string) {
	if len(allowed) > 0 {
		w.Header().Set("Allow", strings.Join(allowed, ", "))
	}
	http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
}
