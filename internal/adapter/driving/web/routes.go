package web

import (
	"net/http"
)

// RegisterRoutes registers all web GUI routes on the provided mux. protect
// wraps every admin page, typically with authentication and an admin check.
func RegisterRoutes(mux *http.ServeMux, h *Handler, protect func(http.Handler) http.Handler) {
	mux.Handle("GET /admin/rotate-key", noStore(protect(http.HandlerFunc(h.RotateKeyForm))))
	mux.Handle("POST /admin/rotate-key", noStore(protect(http.HandlerFunc(h.RotateKey))))
}

func noStore(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Cache-Control", "no-store")
		next.ServeHTTP(w, r)
	})
}
