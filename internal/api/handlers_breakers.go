package api

import (
	"net/http"
	"sort"

	"github.com/reports-aggregator/internal/circuitbreaker"
)

// handleBreakers handles GET /breakers, listing breaker statistics sorted by operation
func (s *Server) handleBreakers(w http.ResponseWriter, r *http.Request) {
	stats := []*circuitbreaker.Stats{}
	if s.breakers != nil {
		for _, st := range s.breakers.GetAllStats() {
			stats = append(stats, st)
		}
	}
	sort.Slice(stats, func(i, j int) bool { return stats[i].Name < stats[j].Name })

	respondJSON(w, http.StatusOK, map[string]interface{}{
		"breakers": stats,
	})
}
