package rest

import (
	"net/http"

	"github.com/otaflow/ota-agent/internal/rest/response"
)

func (*Server) apiRoot(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		_ = response.NotFound(nil).Render(w)

		return
	}

	_ = response.SyncResponse(true, []string{"/1.0"}).Render(w)
}

func (s *Server) apiRoot10(w http.ResponseWriter, _ *http.Request) {
	status := s.status.UpdateStatus()

	resp := map[string]any{
		"environment": map[string]any{
			"firmware_version": status.Config.CurrentVersion,
			"transport":        status.Config.Transport,
		},
	}

	_ = response.SyncResponse(true, resp).Render(w)
}
