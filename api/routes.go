package api

import (
	"net/http"
	"strconv"
	"time"

	"tickstore/questdb"
)

func (s *Server) routes() {
	s.router.Use(s.loggingMiddleware)

	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
	api.HandleFunc("/stats", s.handleStats).Methods(http.MethodGet)
	api.HandleFunc("/ticks/latest", s.handleLatestTicks).Methods(http.MethodGet)
	api.HandleFunc("/ohlc", s.handleOHLC).Methods(http.MethodGet)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    s.data.Status(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data:    s.data.Stats(),
	})
}

func (s *Server) handleLatestTicks(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		s.writeError(w, http.StatusBadRequest, "token is required")
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			s.writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	rs := s.data.GetLatestTicks(token, limit)
	if rs == nil {
		s.writeError(w, http.StatusBadGateway, "tick store query failed")
		return
	}
	s.writeJSON(w, http.StatusOK, Response{Success: true, Data: rowSetPayload(rs)})
}

func (s *Server) handleOHLC(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		s.writeError(w, http.StatusBadRequest, "token is required")
		return
	}
	timeframe := r.URL.Query().Get("timeframe")

	start, err := parseTimeParam(r.URL.Query().Get("start"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "start must be RFC3339")
		return
	}
	end, err := parseTimeParam(r.URL.Query().Get("end"))
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "end must be RFC3339")
		return
	}

	rs := s.data.GetOHLC(token, timeframe, start, end)
	if rs == nil {
		s.writeError(w, http.StatusBadGateway, "tick store query failed")
		return
	}
	s.writeJSON(w, http.StatusOK, Response{Success: true, Data: rowSetPayload(rs)})
}

func parseTimeParam(raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func rowSetPayload(rs *questdb.RowSet) map[string]interface{} {
	rows := rs.Rows
	if rows == nil {
		rows = [][]interface{}{}
	}
	return map[string]interface{}{
		"columns": rs.Columns,
		"rows":    rows,
		"count":   len(rows),
	}
}
