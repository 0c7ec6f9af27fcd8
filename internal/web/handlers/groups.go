package handlers

import (
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/tomasrezac/photo-companion/internal/database"
)

// GroupsHandler handles duplicate group review endpoints.
type GroupsHandler struct {
	groups *database.GroupStore
}

// NewGroupsHandler creates a new groups handler.
func NewGroupsHandler(groups *database.GroupStore) *GroupsHandler {
	return &GroupsHandler{groups: groups}
}

// GroupResponse is the API representation of a duplicate group.
type GroupResponse struct {
	ID                string             `json:"id"`
	Members           []string           `json:"members"`
	Representative    string             `json:"representative"`
	PairScores        map[string]float64 `json:"pair_scores"`
	AverageSimilarity float64            `json:"average_similarity"`
	Resolved          bool               `json:"resolved"`
	ResolvedAt        *time.Time         `json:"resolved_at,omitempty"`
	CreatedAt         time.Time          `json:"created_at"`
}

func toGroupResponse(g *database.DuplicateGroup) GroupResponse {
	return GroupResponse{
		ID:                g.ID,
		Members:           g.Members,
		Representative:    g.Representative(),
		PairScores:        g.PairScores,
		AverageSimilarity: g.AverageSimilarity(),
		Resolved:          g.Resolved,
		ResolvedAt:        g.ResolvedAt,
		CreatedAt:         g.CreatedAt,
	}
}

// List returns all unresolved duplicate groups, newest first.
func (h *GroupsHandler) List(w http.ResponseWriter, r *http.Request) {
	groups, err := h.groups.UnresolvedGroups(r.Context())
	if err != nil {
		log.Printf("failed to list groups: %v", err)
		respondError(w, http.StatusInternalServerError, "failed to list groups")
		return
	}

	responses := make([]GroupResponse, 0, len(groups))
	for i := range groups {
		responses = append(responses, toGroupResponse(&groups[i]))
	}
	respondJSON(w, http.StatusOK, map[string]any{
		"groups": responses,
		"count":  len(responses),
	})
}

// Get returns a single duplicate group by ID.
func (h *GroupsHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "missing group ID")
		return
	}

	group, err := h.groups.GetGroup(r.Context(), id)
	if err != nil {
		log.Printf("failed to get group %s: %v", sanitizeForLog(id), err)
		respondError(w, http.StatusInternalServerError, "failed to get group")
		return
	}
	if group == nil {
		respondError(w, http.StatusNotFound, "group not found")
		return
	}

	respondJSON(w, http.StatusOK, toGroupResponse(group))
}

// Resolve marks a group as handled by the user.
func (h *GroupsHandler) Resolve(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		respondError(w, http.StatusBadRequest, "missing group ID")
		return
	}

	if err := h.groups.MarkResolved(r.Context(), id); err != nil {
		h.respondStoreError(w, id, "resolving group", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"resolved": true})
}

// RemoveMember detaches one photo from a group.
func (h *GroupsHandler) RemoveMember(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	photoUID := chi.URLParam(r, "photoUid")
	if id == "" || photoUID == "" {
		respondError(w, http.StatusBadRequest, "missing group ID or photo UID")
		return
	}

	if err := h.groups.RemoveMember(r.Context(), id, photoUID); err != nil {
		h.respondStoreError(w, id, "removing member", err)
		return
	}

	respondJSON(w, http.StatusOK, map[string]bool{"removed": true})
}

// respondStoreError maps group store errors onto HTTP statuses. Persistence
// failures are 500s, everything else is a client mistake about the group
// or member and maps to 404.
func (h *GroupsHandler) respondStoreError(w http.ResponseWriter, id, op string, err error) {
	var pe *database.PersistenceError
	if errors.As(err, &pe) {
		log.Printf("failed %s %s: %v", op, sanitizeForLog(id), err)
		respondError(w, http.StatusInternalServerError, "failed "+op)
		return
	}
	if strings.Contains(err.Error(), "not found") || strings.Contains(err.Error(), "not a member") {
		respondError(w, http.StatusNotFound, err.Error())
		return
	}
	log.Printf("failed %s %s: %v", op, sanitizeForLog(id), err)
	respondError(w, http.StatusInternalServerError, "failed "+op)
}
