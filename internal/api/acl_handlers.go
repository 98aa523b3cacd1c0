package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/martinsuchenak/vpcd/internal/ec2"
)

func (h *Handler) registerNetworkACLRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/regions/{region}/network-acls", h.listNetworkACLs)
	mux.HandleFunc("POST /api/regions/{region}/network-acls", h.createNetworkACL)
	mux.HandleFunc("GET /api/regions/{region}/network-acls/{id}", h.getNetworkACL)
	mux.HandleFunc("DELETE /api/regions/{region}/network-acls/{id}", h.deleteNetworkACL)
	mux.HandleFunc("POST /api/regions/{region}/network-acls/{id}/entries", h.createNetworkACLEntry)
	mux.HandleFunc("PUT /api/regions/{region}/network-acls/{id}/entries", h.replaceNetworkACLEntry)
	mux.HandleFunc("DELETE /api/regions/{region}/network-acls/{id}/entries", h.deleteNetworkACLEntry)
	mux.HandleFunc("PUT /api/regions/{region}/network-acl-associations/{id}", h.replaceNetworkACLAssociation)
}

func (h *Handler) registerTagRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/regions/{region}/tags", h.listTags)
	mux.HandleFunc("POST /api/regions/{region}/tags", h.createTags)
	mux.HandleFunc("DELETE /api/regions/{region}/tags", h.deleteTags)
}

func (h *Handler) listNetworkACLs(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	acls, err := backend.DescribeNetworkACLs(queryIDs(r), queryFilters(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, acls)
}

func (h *Handler) createNetworkACL(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req vpcTagsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	acl, err := backend.CreateNetworkACL(req.VPCID, req.Tags)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, acl)
}

func (h *Handler) getNetworkACL(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	acl, err := backend.GetNetworkACL(r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, acl)
}

func (h *Handler) deleteNetworkACL(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := backend.DeleteNetworkACL(r.PathValue("id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) upsertNetworkACLEntry(w http.ResponseWriter, r *http.Request, replace bool) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var in ec2.NetworkACLEntryInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	in.NetworkACLID = r.PathValue("id")

	var entry *ec2.NetworkACLEntry
	if replace {
		entry, err = backend.ReplaceNetworkACLEntry(in)
	} else {
		entry, err = backend.CreateNetworkACLEntry(in)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	status := http.StatusCreated
	if replace {
		status = http.StatusOK
	}
	h.writeJSON(w, status, entry)
}

func (h *Handler) createNetworkACLEntry(w http.ResponseWriter, r *http.Request) {
	h.upsertNetworkACLEntry(w, r, false)
}

func (h *Handler) replaceNetworkACLEntry(w http.ResponseWriter, r *http.Request) {
	h.upsertNetworkACLEntry(w, r, true)
}

// deleteNetworkACLEntry removes the entry named by ?rule= and ?egress=.
func (h *Handler) deleteNetworkACLEntry(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	ruleNumber, err := strconv.Atoi(r.URL.Query().Get("rule"))
	if err != nil {
		h.badRequest(w, "invalid rule number")
		return
	}
	egress := r.URL.Query().Get("egress") == "true"
	if err := backend.DeleteNetworkACLEntry(r.PathValue("id"), ruleNumber, egress); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) replaceNetworkACLAssociation(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req struct {
		NetworkACLID string `json:"network_acl_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	associationID, err := backend.ReplaceNetworkACLAssociation(r.PathValue("id"), req.NetworkACLID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"association_id": associationID})
}

func (h *Handler) listTags(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	tags, err := backend.DescribeTags(queryFilters(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, tags)
}

type tagOpRequest struct {
	ResourceIDs []string          `json:"resource_ids"`
	Tags        map[string]string `json:"tags"`
}

func (h *Handler) createTags(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req tagOpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	if err := backend.CreateTags(req.ResourceIDs, req.Tags); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteTags(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req tagOpRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	if err := backend.DeleteTags(req.ResourceIDs, req.Tags); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
