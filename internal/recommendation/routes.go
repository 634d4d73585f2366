package recommendation

import (
	"github.com/gorilla/mux"
)

// RegisterRoutes mounts the engine's thin HTTP surface. The host app passes
// its auth middleware; handlers expect userID in the request context.
func RegisterRoutes(router *mux.Router, handler *Handler, middleware ...mux.MiddlewareFunc) {
	api := router.PathPrefix("/api/v1/recommendations").Subrouter()
	for _, m := range middleware {
		api.Use(m)
	}

	api.HandleFunc("", handler.GetRecommendations).Methods("GET")
	api.HandleFunc("/refresh", handler.RefreshRecommendations).Methods("POST")
	api.HandleFunc("/click", handler.LogClick).Methods("POST")
	api.HandleFunc("/batch", handler.TriggerBatch).Methods("POST")
}
