package dispatch

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/sottey/dispatchtoo/internal/model"
	"github.com/sottey/dispatchtoo/internal/template"
)

// Handler is the JSON surface for the dispatch operations. It exposes only
// what the core exports; task/note CRUD, sessions and the assistant live in
// the surrounding application. Owner identity arrives pre-validated in the
// X-Owner-ID header.
type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeErr(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]any{"error": msg})
}

func decodeJSON(r *http.Request, out any) error {
	return json.NewDecoder(r.Body).Decode(out)
}

func writeDomainErr(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrDispatchNotFound), errors.Is(err, ErrTaskNotFound):
		writeErr(w, 404, err.Error())
	case errors.Is(err, ErrDispatchFinalized):
		writeErr(w, 409, err.Error())
	case errors.Is(err, ErrNotOwner):
		writeErr(w, 403, err.Error())
	case errors.Is(err, ErrInvalidDate):
		writeErr(w, 400, err.Error())
	default:
		writeErr(w, 500, err.Error())
	}
}

func ownerFromRequest(r *http.Request) (model.UserID, bool) {
	owner := strings.TrimSpace(r.Header.Get("X-Owner-ID"))
	return model.UserID(owner), owner != ""
}

// requireOwner guards ops on a loaded dispatch against a caller acting for
// a different owner.
func (h *Handler) requireOwner(w http.ResponseWriter, r *http.Request, id model.DispatchID) bool {
	owner, ok := ownerFromRequest(r)
	if !ok {
		writeErr(w, 401, "missing owner")
		return false
	}
	d, err := h.svc.GetDispatch(id)
	if err != nil {
		writeDomainErr(w, err)
		return false
	}
	if d.Dispatch.OwnerID != owner {
		writeErr(w, 404, ErrDispatchNotFound.Error())
		return false
	}
	return true
}

// /api/dispatches  (collection)
func (h *Handler) DispatchesRoot(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerFromRequest(r)
	if !ok {
		writeErr(w, 401, "missing owner")
		return
	}

	switch r.Method {
	case http.MethodPost:
		var in struct {
			Date string `json:"date"`
		}
		if err := decodeJSON(r, &in); err != nil {
			writeErr(w, 400, "bad json")
			return
		}
		res, err := h.svc.GetOrCreateDispatch(owner, in.Date)
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		code := 200
		if res.Created {
			code = 201
		}
		writeJSON(w, code, res)
		return

	default:
		writeErr(w, 405, "method not allowed")
		return
	}
}

// /api/dispatches/{id}[/finalize|/unfinalize|/links[/{taskId}]]
func (h *Handler) DispatchesSub(w http.ResponseWriter, r *http.Request) {
	tail := strings.TrimPrefix(r.URL.Path, "/api/dispatches/")
	tail = strings.Trim(tail, "/")
	if tail == "" {
		writeErr(w, 404, "not found")
		return
	}

	parts := strings.Split(tail, "/")
	id := model.DispatchID(parts[0])

	if !h.requireOwner(w, r, id) {
		return
	}

	// /api/dispatches/{id}
	if len(parts) == 1 {
		switch r.Method {
		case http.MethodGet:
			v, err := h.svc.GetDispatch(id)
			if err != nil {
				writeDomainErr(w, err)
				return
			}
			writeJSON(w, 200, v)
			return

		case http.MethodPatch:
			var in struct {
				Summary string `json:"summary"`
			}
			if err := decodeJSON(r, &in); err != nil {
				writeErr(w, 400, "bad json")
				return
			}
			d, err := h.svc.UpdateSummary(id, in.Summary)
			if err != nil {
				writeDomainErr(w, err)
				return
			}
			writeJSON(w, 200, d)
			return

		default:
			writeErr(w, 405, "method not allowed")
			return
		}
	}

	switch parts[1] {
	case "finalize":
		if len(parts) != 2 || r.Method != http.MethodPost {
			writeErr(w, 405, "method not allowed")
			return
		}
		res, err := h.svc.Finalize(id)
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		writeJSON(w, 200, res)
		return

	case "unfinalize":
		if len(parts) != 2 || r.Method != http.MethodPost {
			writeErr(w, 405, "method not allowed")
			return
		}
		res, err := h.svc.Unfinalize(id)
		if err != nil {
			writeDomainErr(w, err)
			return
		}
		writeJSON(w, 200, res)
		return

	case "links":
		// POST /links {taskId} | DELETE /links/{taskId}
		switch {
		case len(parts) == 2 && r.Method == http.MethodPost:
			var in struct {
				TaskID model.TaskID `json:"taskId"`
			}
			if err := decodeJSON(r, &in); err != nil || in.TaskID == "" {
				writeErr(w, 400, "bad json")
				return
			}
			if err := h.svc.LinkTask(id, in.TaskID); err != nil {
				writeDomainErr(w, err)
				return
			}
			writeJSON(w, 200, map[string]any{"linked": true})
			return

		case len(parts) == 3 && r.Method == http.MethodDelete:
			if err := h.svc.UnlinkTask(id, model.TaskID(parts[2])); err != nil {
				writeDomainErr(w, err)
				return
			}
			writeJSON(w, 200, map[string]any{"linked": false})
			return

		default:
			writeErr(w, 405, "method not allowed")
			return
		}
	}

	writeErr(w, 404, "not found")
}

// /api/template/preview — pure expansion, no writes. Lets the UI show what
// a template would produce for a date before the day exists.
func (h *Handler) TemplatePreview(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeErr(w, 405, "method not allowed")
		return
	}
	var in struct {
		Content string `json:"content"`
		Date    string `json:"date"`
	}
	if err := decodeJSON(r, &in); err != nil {
		writeErr(w, 400, "bad json")
		return
	}
	specs := h.svc.PreviewTemplate(in.Content, in.Date)
	if specs == nil {
		specs = []template.Spec{}
	}
	writeJSON(w, 200, map[string]any{"tasks": specs})
}
