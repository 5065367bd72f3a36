package engine

import (
	"encoding/json"
	"math/bits"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/pkgkitd/pkgkitd/job"
	"github.com/pkgkitd/pkgkitd/pkgenum"
)

// HTTPStatus is the read-only JSON body served at GET /status — a
// loopback introspection surface, never the daemon's control plane
// (the D-Bus/PolicyKit surface stays external per spec §1).
type HTTPStatus struct {
	Backend        string `json:"backend"`
	ReleaseVer     string `json:"release_ver"`
	SupportsAsync  bool   `json:"supports_parallelization"`
	RoleCount      int    `json:"registered_role_count"`
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// NewHTTPRouter builds the loopback introspection router: GET /status
// for a point-in-time snapshot, GET /ws/{role}?param=... to watch one
// synchronously-run job's events pushed live, mirroring the shape of
// the D-Bus signal surface the spec keeps external without actually
// implementing D-Bus (spec §1, §4.L's "--watch" CLI mode).
func (e *Engine) NewHTTPRouter() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/status", e.handleStatus).Methods(http.MethodGet)
	r.HandleFunc("/ws/{role}", e.handleWatch).Methods(http.MethodGet)
	return r
}

func (e *Engine) handleStatus(w http.ResponseWriter, r *http.Request) {
	status := HTTPStatus{
		Backend:       e.Backend.Name,
		ReleaseVer:    e.ReleaseVer,
		SupportsAsync: e.Backend.SupportsParallelization,
		RoleCount:     bits.OnesCount64(uint64(e.Backend.Roles)),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(status)
}

// wsEvent is the JSON envelope pushed for every Job emitter call, used
// by the --watch CLI mode to render live progress the same way the
// synchronous direct harness does.
type wsEvent struct {
	Kind string      `json:"kind"`
	Data interface{} `json:"data"`
}

func (e *Engine) handleWatch(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	role := pkgenum.RoleFromText(vars["role"])
	params := r.URL.Query()["param"]

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	j := job.NewJob(role, params)
	push := func(kind string, data interface{}) {
		_ = conn.WriteJSON(wsEvent{Kind: kind, Data: data})
	}
	j.OnPackage(func(p job.Package) { push("package", p) })
	j.OnStatus(func(s pkgenum.Status) { push("status", s) })
	j.OnPercentage(func(p int) { push("percentage", p) })
	j.OnItemProgress(func(p job.ItemProgress) { push("item-progress", p) })
	j.OnMessage(func(m job.Message) { push("message", m) })
	j.OnFinished(func(exit pkgenum.Exit) { push("finished", exit) })

	_ = e.RunSynchronously(r.Context(), j)
}
