package rest

import (
	"errors"
	"net/http"

	"github.com/otaflow/ota-agent/internal/rest/response"
	"github.com/otaflow/ota-agent/internal/trigger"
)

// swagger:operation GET /1.0/update update update_get
//
//	Get update information
//
//	Returns the current update state and configuration information.
//
//	---
//	produces:
//	  - application/json
//	responses:
//	  "200":
//	    description: State and configuration for the firmware update
//	    schema:
//	      type: object
//	      description: Sync response
//	      properties:
//	        type:
//	          description: Response type
//	          example: sync
//	          type: string
//	        status:
//	          type: string
//	          description: Status description
//	          example: Success
//	        status_code:
//	          type: integer
//	          description: Status code
//	          example: 200
//	        metadata:
//	          type: json
//	          description: State and configuration for the firmware update
//	          example: {"config":{"current_version":"1.1.0-build-20231201","manifest_url":"https://updates.example.com/manifest.json","firmware_url":"https://updates.example.com/firmware.bin","transport":"ca","check_schedule":"0 */6 * * *"},"state":{"last_check":"2024-01-01T12:00:00Z","status":"Up to date","busy":false}}
func (s *Server) apiUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		_ = response.NotImplemented(nil).Render(w)

		return
	}

	_ = response.SyncResponse(true, s.status.UpdateStatus()).Render(w)
}

// swagger:operation POST /1.0/update/:check update update_post_check
//
//	Trigger update check
//
//	Starts an update cycle in the background.
//
//	---
//	produces:
//	  - application/json
//	responses:
//	  "202":
//	    description: Update cycle started
//	  "409":
//	    description: An update cycle is already running
func (s *Server) apiUpdateCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		_ = response.NotImplemented(nil).Render(w)

		return
	}

	// Trigger a manual update check.
	if !s.trigger.Go(s.ctx, trigger.SourceAPI) {
		_ = response.Conflict(errors.New("update cycle already in progress")).Render(w)

		return
	}

	_ = response.AcceptedResponse(map[string]any{}).Render(w)
}
