package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/google/uuid"
	"github.com/nidhogg/labwork/internal/gateway"
	"github.com/nidhogg/labwork/internal/sim"
	"go.uber.org/zap"
)

// Handler holds dependencies for HTTP handlers.
type Handler struct {
	store     sim.Store
	engine    *sim.Engine
	clock     *sim.Clock
	chatLog   *sim.ChatLog
	hub       *gateway.Hub
	relations *sim.RelationGraph
	logger    *zap.Logger
}

// NewHandler creates a new API handler. relations may be nil when the
// graph database is not configured.
func NewHandler(
	store sim.Store,
	engine *sim.Engine,
	clock *sim.Clock,
	chatLog *sim.ChatLog,
	hub *gateway.Hub,
	relations *sim.RelationGraph,
	logger *zap.Logger,
) *Handler {
	return &Handler{
		store:     store,
		engine:    engine,
		clock:     clock,
		chatLog:   chatLog,
		hub:       hub,
		relations: relations,
		logger:    logger,
	}
}

// Router builds the chi router with all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.healthCheck)

		r.Get("/agents", h.listAgents)
		r.Post("/agents", h.hireAgent)
		r.Get("/agents/{id}", h.getAgent)
		r.Delete("/agents/{id}", h.deactivateAgent)
		r.Get("/agents/{id}/relations", h.agentRelations)
		r.Post("/agents/{id}/chat", h.chatWithAgent)

		r.Get("/tasks", h.listTasks)
		r.Post("/tasks", h.createTask)
		r.Post("/tasks/{taskID}/assign/{agentID}", h.assignTask)

		r.Get("/chats", h.recentChats)
		r.Post("/messages", h.postMessage)

		r.Get("/simulation", h.simulationStatus)
		r.Post("/simulation/speed", h.setSpeed)
		r.Post("/simulation/pause", h.setPaused)
	})

	r.Get("/ws", h.serveWS)

	return r
}

func (h *Handler) healthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "world": "labwork"})
}

func (h *Handler) listAgents(w http.ResponseWriter, r *http.Request) {
	agents, err := h.store.ListAgents(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if agents == nil {
		agents = []*sim.Agent{}
	}
	writeJSON(w, http.StatusOK, agents)
}

type hireRequest struct {
	Name   string `json:"name"`
	Role   string `json:"role"`
	Skills string `json:"skills"` // comma-separated tags
}

func (h *Handler) hireAgent(w http.ResponseWriter, r *http.Request) {
	var req hireRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "name is required"})
		return
	}

	a := sim.NewAgent(uuid.New().String(), req.Name, req.Role, req.Skills)
	if err := h.store.SaveAgent(r.Context(), a); err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

func (h *Handler) getAgent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	a, err := h.store.GetAgent(r.Context(), id)
	if errors.Is(err, sim.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "agent not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (h *Handler) deactivateAgent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	err := h.store.UpdateAgent(r.Context(), id, func(a *sim.Agent) {
		a.Active = false
		a.Status = sim.StatusIdle
		a.Activity = "Off the clock"
	})
	if errors.Is(err, sim.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "agent not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
}

func (h *Handler) agentRelations(w http.ResponseWriter, r *http.Request) {
	if h.relations == nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "relation graph not configured"})
		return
	}
	id := chi.URLParam(r, "id")
	relations, err := h.relations.Relations(r.Context(), id)
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if relations == nil {
		relations = []*sim.Relation{}
	}
	writeJSON(w, http.StatusOK, relations)
}

type chatRequest struct {
	Message string `json:"message"`
}

func (h *Handler) chatWithAgent(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}

	reply, err := h.engine.Ask(r.Context(), id, req.Message)
	if errors.Is(err, sim.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "agent not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, reply)
}

func (h *Handler) listTasks(w http.ResponseWriter, r *http.Request) {
	tasks, err := h.store.ListTasks(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	if tasks == nil {
		tasks = []*sim.Task{}
	}
	writeJSON(w, http.StatusOK, tasks)
}

type taskCreateRequest struct {
	Title       string  `json:"title"`
	Description string  `json:"description"`
	AssigneeID  *string `json:"assignee_id,omitempty"`
}

func (h *Handler) createTask(w http.ResponseWriter, r *http.Request) {
	var req taskCreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.Title == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "title is required"})
		return
	}

	task, err := h.engine.CreateTask(r.Context(), req.Title, req.Description, req.AssigneeID)
	if errors.Is(err, sim.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "assignee not found"})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusCreated, task)
}

// assignTask validates synchronously and answers 202; the mood shift,
// status change, and reaction broadcast land asynchronously.
func (h *Handler) assignTask(w http.ResponseWriter, r *http.Request) {
	taskID := chi.URLParam(r, "taskID")
	agentID := chi.URLParam(r, "agentID")

	err := h.engine.AssignTask(r.Context(), taskID, agentID)
	if errors.Is(err, sim.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
		return
	}
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "assignment queued"})
}

func (h *Handler) recentChats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.chatLog.Recent(0))
}

type messageRequest struct {
	AgentID string `json:"agent_id,omitempty"`
	Text    string `json:"text"`
}

// postMessage answers 202 and runs the reply chain in the background;
// turn replies arrive over the websocket as they are generated.
func (h *Handler) postMessage(w http.ResponseWriter, r *http.Request) {
	var req messageRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.Text == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "text is required"})
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		if err := h.engine.UserMessage(ctx, req.AgentID, req.Text); err != nil {
			h.logger.Warn("user message chain failed", zap.Error(err))
		}
	}()
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "message queued"})
}

func (h *Handler) simulationStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"running":   h.clock.Running(),
		"speed":     h.clock.Speed(),
		"observers": h.hub.Count(),
	})
}

type speedRequest struct {
	Speed float64 `json:"speed"`
}

func (h *Handler) setSpeed(w http.ResponseWriter, r *http.Request) {
	var req speedRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if req.Speed <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "speed must be positive"})
		return
	}
	h.clock.SetSpeed(req.Speed)
	writeJSON(w, http.StatusOK, map[string]interface{}{"speed": h.clock.Speed()})
}

type pauseRequest struct {
	Running bool `json:"running"`
}

func (h *Handler) setPaused(w http.ResponseWriter, r *http.Request) {
	var req pauseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	h.clock.SetRunning(req.Running)
	writeJSON(w, http.StatusOK, map[string]interface{}{"running": h.clock.Running()})
}

func (h *Handler) serveWS(w http.ResponseWriter, r *http.Request) {
	obs, err := gateway.Upgrade(w, r)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", zap.Error(err))
		return
	}
	h.hub.Register(obs)
	h.logger.Info("observer connected", zap.Int("observers", h.hub.Count()))
	go func() {
		obs.ReadLoop(h.hub, h.logger)
		h.hub.Unregister(obs)
	}()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
