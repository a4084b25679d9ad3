// Package decisions exposes the guidance decision log over HTTP.
package decisions

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/kilianp07/parkadvisor/core/decisionlog"
)

// NewHandler returns an HTTP handler serving GET requests on the decision
// log. Supported filters are start, end (RFC3339), vehicle_id and user_id.
// Requests must include an Authorization header with "Bearer <token>" when
// token is non-empty.
func NewHandler(store decisionlog.Store, token string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if token != "" {
			auth := r.Header.Get("Authorization")
			if subtle.ConstantTimeCompare([]byte(auth), []byte("Bearer "+token)) != 1 {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
		}
		q, err := parseQuery(r)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		records, err := store.Query(r.Context(), q)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if records == nil {
			records = []decisionlog.Record{}
		}
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(records); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	})
}

func parseQuery(r *http.Request) (decisionlog.Query, error) {
	var q decisionlog.Query
	values := r.URL.Query()
	if s := values.Get("start"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return q, err
		}
		q.Start = t
	}
	if s := values.Get("end"); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			return q, err
		}
		q.End = t
	}
	q.VehicleID = values.Get("vehicle_id")
	if s := values.Get("user_id"); s != "" {
		uid, err := strconv.Atoi(s)
		if err != nil {
			return q, err
		}
		q.UserID = &uid
	}
	return q, nil
}
