package sonardb

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/tailscale/tailsql/server/tailsql"
	"tailscale.com/tsweb"

	"github.com/banshee-data/fanbeam/internal/httputil"
)

// AttachAdminRoutes mounts the /debug/ pages: live SQL through tailsql and
// JSON views of the catalog and transport stats. tsweb restricts them to
// loopback and tailnet clients.
func (db *DB) AttachAdminRoutes(mux *http.ServeMux) error {
	debug := tsweb.Debugger(mux)

	tsql, err := tailsql.NewServer(tailsql.Options{
		RoutePrefix: "/debug/tailsql/",
	})
	if err != nil {
		return fmt.Errorf("failed to create tailsql server: %w", err)
	}
	tsql.SetDB("sqlite://"+db.path, db.DB, &tailsql.DBOptions{
		Label: "Sonar DB",
	})
	debug.Handle("tailsql/", "SQL live debugging", tsql.NewMux())

	debug.Handle("recordings", "Recordings catalog (JSON)", http.HandlerFunc(db.handleRecordings))
	debug.Handle("transport", "Transport stats samples (JSON, ?session=&limit=)", http.HandlerFunc(db.handleTransport))
	return nil
}

func (db *DB) handleRecordings(w http.ResponseWriter, r *http.Request) {
	if id := r.URL.Query().Get("session"); id != "" {
		rec, err := db.Recording(id)
		if errors.Is(err, ErrNotFound) {
			httputil.NotFound(w, err.Error())
			return
		}
		if err != nil {
			httputil.InternalServerError(w, err.Error())
			return
		}
		httputil.WriteJSONOK(w, rec)
		return
	}
	limit, ok := httputil.QueryInt(w, r, "limit", 0)
	if !ok {
		return
	}
	recs, err := db.Recordings(limit)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, recs)
}

func (db *DB) handleTransport(w http.ResponseWriter, r *http.Request) {
	limit, ok := httputil.QueryInt(w, r, "limit", 0)
	if !ok {
		return
	}
	samples, err := db.TransportSamples(r.URL.Query().Get("session"), limit)
	if err != nil {
		httputil.InternalServerError(w, err.Error())
		return
	}
	httputil.WriteJSONOK(w, samples)
}
