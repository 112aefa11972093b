package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"live-fixture-service/models"
	"live-fixture-service/pkg/common"
)

type goalRequest struct {
	Team     string  `json:"team"`
	PlayerID *string `json:"player_id,omitempty"`
}

type cardRequest struct {
	Team     string          `json:"team"`
	PlayerID *string         `json:"player_id,omitempty"`
	Card     models.CardKind `json:"card"`
}

type substitutionRequest struct {
	Team        string `json:"team"`
	PlayerOutID string `json:"player_out_id"`
	PlayerInID  string `json:"player_in_id"`
}

type scoreRequest struct {
	Team  string `json:"team"`
	Delta int    `json:"delta"`
}

type adjustClockRequest struct {
	DeltaSeconds int `json:"delta_seconds"`
}

type resetClockRequest struct {
	Confirm bool `json:"confirm"`
}

// handleGetFixture 比赛快照
func (s *Server) handleGetFixture(w http.ResponseWriter, r *http.Request) {
	snapshot, err := s.controller.Snapshot(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snapshot)
}

// handleGetEvents 事件时间线
func (s *Server) handleGetEvents(w http.ResponseWriter, r *http.Request) {
	fixtureID := mux.Vars(r)["id"]
	events, err := s.controller.Events(r.Context(), fixtureID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"fixture_id": fixtureID,
		"events":     events,
	})
}

// handleGetConsistency 比分与账本是否一致
func (s *Server) handleGetConsistency(w http.ResponseWriter, r *http.Request) {
	report, err := s.controller.CheckConsistency(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, report)
}

// handleGetTeamPlayers 球队名单
func (s *Server) handleGetTeamPlayers(w http.ResponseWriter, r *http.Request) {
	teamID := mux.Vars(r)["team"]
	players, err := s.roster.TeamPlayers(r.Context(), teamID)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"team_id": teamID,
		"players": players,
	})
}

// handleGetPlayerStats 球员赛季统计
func (s *Server) handleGetPlayerStats(w http.ResponseWriter, r *http.Request) {
	stat, err := s.controller.PlayerStat(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, stat)
}

func (s *Server) handleRecordGoal(w http.ResponseWriter, r *http.Request) {
	var req goalRequest
	if !decodeBody(w, r, &req) {
		return
	}
	team, ok := parseTeam(w, req.Team)
	if !ok {
		return
	}

	event, err := s.controller.RecordGoal(r.Context(), mux.Vars(r)["id"], team, req.PlayerID)
	writeEventResult(w, http.StatusCreated, event, err)
}

func (s *Server) handleCancelGoal(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	event, err := s.controller.CancelGoal(r.Context(), vars["id"], vars["event_id"])
	writeEventResult(w, http.StatusOK, event, err)
}

func (s *Server) handleRecordCard(w http.ResponseWriter, r *http.Request) {
	var req cardRequest
	if !decodeBody(w, r, &req) {
		return
	}
	team, ok := parseTeam(w, req.Team)
	if !ok {
		return
	}

	event, err := s.controller.RecordCard(r.Context(), mux.Vars(r)["id"], team, req.PlayerID, req.Card)
	writeEventResult(w, http.StatusCreated, event, err)
}

func (s *Server) handleRecordSubstitution(w http.ResponseWriter, r *http.Request) {
	var req substitutionRequest
	if !decodeBody(w, r, &req) {
		return
	}
	team, ok := parseTeam(w, req.Team)
	if !ok {
		return
	}

	event, err := s.controller.RecordSubstitution(r.Context(), mux.Vars(r)["id"], team, req.PlayerOutID, req.PlayerInID)
	writeEventResult(w, http.StatusCreated, event, err)
}

func (s *Server) handleAdjustScore(w http.ResponseWriter, r *http.Request) {
	var req scoreRequest
	if !decodeBody(w, r, &req) {
		return
	}
	team, ok := parseTeam(w, req.Team)
	if !ok {
		return
	}

	score, err := s.controller.AdjustScoreDirectly(r.Context(), mux.Vars(r)["id"], team, req.Delta)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"score":          score,
		"score_diverged": true,
	})
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	score, err := s.controller.ReconcileScore(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"score":          score,
		"score_diverged": false,
	})
}

func (s *Server) handleClockStart(w http.ResponseWriter, r *http.Request) {
	f, err := s.controller.Start(r.Context(), mux.Vars(r)["id"])
	writeFixtureResult(w, f, err)
}

func (s *Server) handleClockPause(w http.ResponseWriter, r *http.Request) {
	f, err := s.controller.Pause(r.Context(), mux.Vars(r)["id"])
	writeFixtureResult(w, f, err)
}

func (s *Server) handleClockEnd(w http.ResponseWriter, r *http.Request) {
	f, err := s.controller.End(r.Context(), mux.Vars(r)["id"])
	writeFixtureResult(w, f, err)
}

func (s *Server) handleClockAdjust(w http.ResponseWriter, r *http.Request) {
	var req adjustClockRequest
	if !decodeBody(w, r, &req) {
		return
	}
	f, err := s.controller.AdjustCheckpoint(r.Context(), mux.Vars(r)["id"], req.DeltaSeconds)
	writeFixtureResult(w, f, err)
}

func (s *Server) handleClockReset(w http.ResponseWriter, r *http.Request) {
	var req resetClockRequest
	if !decodeBody(w, r, &req) {
		return
	}
	f, err := s.controller.ResetCheckpoint(r.Context(), mux.Vars(r)["id"], req.Confirm)
	writeFixtureResult(w, f, err)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody(common.CodeValidation, "invalid request body"))
		return false
	}
	return true
}

func parseTeam(w http.ResponseWriter, raw string) (models.Team, bool) {
	team, ok := models.ParseTeam(raw)
	if !ok {
		writeJSON(w, http.StatusBadRequest, errorBody(common.CodeValidation, "team must be home or away"))
		return "", false
	}
	return team, true
}

// writeEventResult 部分失败时事件已写入, 一并返回给操作员
func writeEventResult(w http.ResponseWriter, status int, event *models.MatchEvent, err error) {
	if err != nil {
		if errors.Is(err, common.ErrPartialFailure) && event != nil {
			body := errorBody(common.CodePartialFailure, err.Error())
			body["event"] = event
			writeJSON(w, http.StatusInternalServerError, body)
			return
		}
		writeError(w, err)
		return
	}
	writeJSON(w, status, event)
}

func writeFixtureResult(w http.ResponseWriter, f *models.Fixture, err error) {
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, f)
}
