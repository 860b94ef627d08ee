// Package api exposes the HTTP surface: the platform webhook endpoint
// and read endpoints for meetings, transcripts and drafts.
package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"meetdraft/internal/model"
	"meetdraft/internal/pipeline"
	"meetdraft/internal/repository"
	"meetdraft/internal/utils"
	"meetdraft/internal/webhook"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

// Server holds the handler dependencies.
type Server struct {
	repo    repository.Repository
	handler *pipeline.Handler
	log     zerolog.Logger
}

// NewServer wires the API against the repository and the pipeline.
func NewServer(repo repository.Repository, handler *pipeline.Handler, log zerolog.Logger) *Server {
	return &Server{repo: repo, handler: handler, log: log}
}

// RegisterRoutes attaches all endpoints to the engine.
func (s *Server) RegisterRoutes(r *gin.Engine) {
	r.GET("/health", s.healthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	v1 := r.Group("/api/v1")
	{
		v1.POST("/webhooks/meeting", s.receiveWebhook)
		v1.GET("/meetings/:meeting_id", s.getMeeting)
		v1.GET("/meetings/:meeting_id/transcript", s.getTranscript)
		v1.GET("/meetings/:meeting_id/draft", s.getDraft)
		v1.POST("/meetings/:meeting_id/draft/regenerate", s.regenerateDraft)
	}
}

// healthCheck returns server health status
func (s *Server) healthCheck(c *gin.Context) {
	utils.Success(c, gin.H{
		"status":  "ok",
		"service": "meetdraft-backend",
	})
}

// receiveWebhook ingests one platform notification and runs the
// pipeline inline. A non-2xx answer makes the platform redeliver, which
// is safe: handling is idempotent.
func (s *Server) receiveWebhook(c *gin.Context) {
	body, err := c.GetRawData()
	if err != nil {
		utils.Error(c, http.StatusBadRequest, "failed to read request body: "+err.Error())
		return
	}

	env, err := webhook.Decode(body)
	if err != nil {
		utils.Error(c, http.StatusBadRequest, err.Error())
		return
	}

	// Endpoint validation challenges are answered without pipeline work.
	if env.Event == model.EventURLValidation {
		var challenge struct {
			Payload struct {
				PlainToken string `json:"plainToken"`
			} `json:"payload"`
		}
		if err := json.Unmarshal(body, &challenge); err != nil {
			utils.Error(c, http.StatusBadRequest, "malformed validation challenge")
			return
		}
		c.JSON(http.StatusOK, gin.H{"plainToken": challenge.Payload.PlainToken})
		return
	}

	run := pipeline.NewRun()
	outcome, err := s.handler.Handle(c.Request.Context(), run, env)
	if err != nil {
		utils.Error(c, http.StatusInternalServerError, err.Error())
		return
	}

	utils.Success(c, gin.H{
		"action":     outcome.Action,
		"meeting_id": meetingIDOrNil(outcome.MeetingID),
	})
}

// getMeeting returns the meeting and its pipeline status. The path
// parameter accepts the internal UUID or the platform meeting id.
func (s *Server) getMeeting(c *gin.Context) {
	meeting, ok := s.lookupMeeting(c)
	if !ok {
		return
	}

	utils.Success(c, gin.H{"meeting": meeting})
}

// getTranscript returns the parsed transcript for a meeting.
func (s *Server) getTranscript(c *gin.Context) {
	meeting, ok := s.lookupMeeting(c)
	if !ok {
		return
	}

	t, err := s.repo.GetTranscriptByMeetingID(c.Request.Context(), meeting.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.Error(c, http.StatusNotFound, "transcript not found")
			return
		}
		utils.Error(c, http.StatusInternalServerError, err.Error())
		return
	}

	utils.Success(c, gin.H{"transcript": t})
}

// getDraft returns the current non-failed draft for a meeting, with the
// action items appended to the body the way the mail sender consumes it.
func (s *Server) getDraft(c *gin.Context) {
	meeting, ok := s.lookupMeeting(c)
	if !ok {
		return
	}

	d, err := s.repo.GetCurrentDraft(c.Request.Context(), meeting.ID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.Error(c, http.StatusNotFound, "no draft available for this meeting")
			return
		}
		utils.Error(c, http.StatusInternalServerError, err.Error())
		return
	}

	utils.Success(c, gin.H{
		"draft":                  d,
		"body_with_action_items": d.BodyWithActionItems(),
	})
}

// regenerateDraft re-runs generation for a meeting with a stored
// transcript.
func (s *Server) regenerateDraft(c *gin.Context) {
	meeting, ok := s.lookupMeeting(c)
	if !ok {
		return
	}

	run := pipeline.NewRun()
	draft, err := s.handler.Regenerate(c.Request.Context(), run, meeting.ID)
	if err != nil {
		switch {
		case errors.Is(err, pipeline.ErrBusy):
			utils.Error(c, http.StatusConflict, "meeting is already being processed")
		case errors.Is(err, pipeline.ErrNoTranscript):
			utils.Error(c, http.StatusBadRequest, "meeting has no ready transcript")
		case errors.Is(err, repository.ErrNotFound):
			utils.Error(c, http.StatusNotFound, "meeting not found")
		default:
			utils.Error(c, http.StatusInternalServerError, err.Error())
		}
		return
	}

	utils.Success(c, gin.H{"draft": draft})
}

// lookupMeeting resolves the :meeting_id path parameter. On failure it
// writes the error response and returns ok=false.
func (s *Server) lookupMeeting(c *gin.Context) (*model.Meeting, bool) {
	param := c.Param("meeting_id")
	if param == "" {
		utils.Error(c, http.StatusBadRequest, "meeting_id is required")
		return nil, false
	}

	var meeting *model.Meeting
	var err error
	if id, parseErr := uuid.Parse(param); parseErr == nil {
		meeting, err = s.repo.GetMeetingByID(c.Request.Context(), id)
	} else {
		meeting, err = s.repo.GetMeetingByExternalID(c.Request.Context(), param)
	}

	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			utils.Error(c, http.StatusNotFound, "meeting not found")
			return nil, false
		}
		utils.Error(c, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	return meeting, true
}

func meetingIDOrNil(id uuid.UUID) any {
	if id == uuid.Nil {
		return nil
	}
	return id.String()
}
