package api

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"agentric/internal/audit"
	"agentric/internal/gate"
	"agentric/internal/gateway"
	"agentric/internal/mission"
	"agentric/internal/provider"
	"agentric/internal/roster"
)

type settingsResponse struct {
	Providers provider.Config `json:"providers"`
	Counts    audit.Counts    `json:"counts"`
}

func (s *Server) handleSettings(c *gin.Context) {
	counts, err := s.orch.Counts(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	ok(c, http.StatusOK, settingsResponse{Providers: s.orch.Providers().Snapshot(), Counts: counts})
}

func (s *Server) handleSetText(c *gin.Context) {
	var t provider.Text
	if err := c.BindJSON(&t); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	if err := s.orch.SetTextProvider(t); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	ok(c, http.StatusOK, s.orch.Providers().Snapshot())
}

func (s *Server) handleSetImage(c *gin.Context) {
	var i provider.Image
	if err := c.BindJSON(&i); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	if err := s.orch.SetImageProvider(i); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	ok(c, http.StatusOK, s.orch.Providers().Snapshot())
}

type rosterEntry struct {
	roster.Agent
	Kind       string `json:"kind"`
	OnTeam     bool   `json:"onTeam"`
	Selectable bool   `json:"selectable"`
}

func (s *Server) handleRoster(c *gin.Context) {
	onTeam := map[string]bool{}
	for _, a := range s.orch.Team() {
		onTeam[a.ID] = true
	}
	cfg := s.orch.Providers().Snapshot()
	agents := s.orch.Agents()
	out := make([]rosterEntry, 0, len(agents))
	for _, a := range agents {
		out = append(out, rosterEntry{Agent: a, Kind: a.Kind().String(), OnTeam: onTeam[a.ID], Selectable: cfg.Selectable(a)})
	}
	ok(c, http.StatusOK, out)
}

func (s *Server) handleTeam(c *gin.Context) {
	ok(c, http.StatusOK, s.orch.Team())
}

type teamRequest struct {
	IDs []string `json:"ids"`
}

func (s *Server) handleSetTeam(c *gin.Context) {
	var req teamRequest
	if err := c.BindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	if err := s.orch.SetTeam(req.IDs); err != nil {
		fail(c, statusFor(err), err)
		return
	}
	ok(c, http.StatusOK, s.orch.Team())
}

func (s *Server) handleSelectAll(c *gin.Context) {
	ok(c, http.StatusOK, s.orch.SelectAll())
}

func (s *Server) handleToggle(c *gin.Context) {
	on, err := s.orch.ToggleTeam(c.Param("id"))
	if err != nil {
		fail(c, statusFor(err), err)
		return
	}
	ok(c, http.StatusOK, gin.H{"onTeam": on, "team": s.orch.Team()})
}

type sendRequest struct {
	Objective string `json:"objective"`
	// Image is an optional base64 attachment; encoding/json decodes it.
	Image     []byte `json:"image,omitempty"`
	ImageName string `json:"imageName,omitempty"`
	ImageMIME string `json:"imageMime,omitempty"`
}

func (s *Server) handleSend(c *gin.Context) {
	var req sendRequest
	if err := c.BindJSON(&req); err != nil {
		fail(c, http.StatusBadRequest, err)
		return
	}
	var att *gateway.Attachment
	if len(req.Image) > 0 {
		mime := req.ImageMIME
		if mime == "" {
			mime = http.DetectContentType(req.Image)
		}
		att = &gateway.Attachment{Name: req.ImageName, MIMEType: mime, Data: req.Image}
	}

	id, err := s.orch.Send(c.Request.Context(), req.Objective, att)
	if err != nil {
		fail(c, statusFor(err), err)
		return
	}
	ok(c, http.StatusAccepted, gin.H{"missionId": id})
}

type currentResponse struct {
	State   mission.State    `json:"state"`
	Mission *mission.Mission `json:"mission,omitempty"`
}

func (s *Server) handleCurrent(c *gin.Context) {
	resp := currentResponse{State: s.orch.State()}
	if m, found := s.orch.Current(); found {
		resp.Mission = &m
	}
	ok(c, http.StatusOK, resp)
}

func (s *Server) handleTranscript(c *gin.Context) {
	ok(c, http.StatusOK, s.orch.Transcript())
}

func (s *Server) handlePending(c *gin.Context) {
	req, pending := s.orch.Gate().Pending()
	if !pending {
		ok(c, http.StatusOK, nil)
		return
	}
	ok(c, http.StatusOK, req)
}

func (s *Server) handleDecision(allow bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		d := gate.Denied
		if allow {
			d = gate.Allowed
		}
		req, err := s.orch.Gate().Resolve(d)
		if err != nil {
			fail(c, statusFor(err), err)
			return
		}
		s.log.Info().Str("agent", req.Agent).Bool("allowed", allow).Msg("authorization answered")
		ok(c, http.StatusOK, req)
	}
}

func (s *Server) handleCounts(c *gin.Context) {
	counts, err := s.orch.Counts(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	ok(c, http.StatusOK, counts)
}

func (s *Server) handleMissionTrail(c *gin.Context) {
	if s.store == nil {
		fail(c, http.StatusNotFound, errAuditDisabled)
		return
	}
	trail, err := s.store.MissionTrail(c.Request.Context(), c.Param("id"))
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	ok(c, http.StatusOK, trail)
}

func (s *Server) handleAgentTrail(c *gin.Context) {
	if s.store == nil {
		fail(c, http.StatusNotFound, errAuditDisabled)
		return
	}
	trail, err := s.store.AgentTrail(c.Request.Context(), c.Param("name"))
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	ok(c, http.StatusOK, trail)
}

func (s *Server) handleClearAudit(c *gin.Context) {
	if err := s.orch.ClearMemory(c.Request.Context()); err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	counts, err := s.orch.Counts(c.Request.Context())
	if err != nil {
		fail(c, http.StatusInternalServerError, err)
		return
	}
	ok(c, http.StatusOK, counts)
}

var errAuditDisabled = errors.New("audit store is not configured")

func statusFor(err error) int {
	switch {
	case errors.Is(err, mission.ErrBusy), errors.Is(err, gate.ErrRequestOutstanding):
		return http.StatusConflict
	case errors.Is(err, mission.ErrCoolingDown):
		return http.StatusTooManyRequests
	case errors.Is(err, mission.ErrUnknownAgent), errors.Is(err, gate.ErrNoPendingRequest):
		return http.StatusNotFound
	case errors.Is(err, mission.ErrEmptyObjective), errors.Is(err, mission.ErrEmptyTeam), errors.Is(err, mission.ErrNotSelectable):
		return http.StatusUnprocessableEntity
	case errors.Is(err, mission.ErrRosterUnavailable):
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}
