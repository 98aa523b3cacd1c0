package api

import (
	"encoding/json"
	"net/http"

	"github.com/martinsuchenak/vpcd/internal/ec2"
)

func (h *Handler) registerDHCPRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/regions/{region}/dhcp-options", h.listDHCPOptions)
	mux.HandleFunc("POST /api/regions/{region}/dhcp-options", h.createDHCPOptions)
	mux.HandleFunc("GET /api/regions/{region}/dhcp-options/{id}", h.getDHCPOptions)
	mux.HandleFunc("DELETE /api/regions/{region}/dhcp-options/{id}", h.deleteDHCPOptions)
	mux.HandleFunc("POST /api/regions/{region}/dhcp-options/{id}/associate", h.associateDHCPOptions)
}

func (h *Handler) registerPeeringRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/regions/{region}/vpc-peering-connections", h.listPeeringConnections)
	mux.HandleFunc("POST /api/regions/{region}/vpc-peering-connections", h.createPeeringConnection)
	mux.HandleFunc("GET /api/regions/{region}/vpc-peering-connections/{id}", h.getPeeringConnection)
	mux.HandleFunc("DELETE /api/regions/{region}/vpc-peering-connections/{id}", h.deletePeeringConnection)
	mux.HandleFunc("POST /api/regions/{region}/vpc-peering-connections/{id}/accept", h.acceptPeeringConnection)
	mux.HandleFunc("POST /api/regions/{region}/vpc-peering-connections/{id}/reject", h.rejectPeeringConnection)
}

func (h *Handler) listDHCPOptions(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	sets, err := backend.DescribeDHCPOptions(queryIDs(r), queryFilters(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, sets)
}

func (h *Handler) createDHCPOptions(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req struct {
		Options map[string][]string `json:"options"`
		Tags    map[string]string   `json:"tags,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	set, err := backend.CreateDHCPOptions(req.Options, req.Tags)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, set)
}

func (h *Handler) getDHCPOptions(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	set, err := backend.GetDHCPOptions(r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, set)
}

func (h *Handler) deleteDHCPOptions(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := backend.DeleteDHCPOptions(r.PathValue("id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// associateDHCPOptions accepts the literal id "default" to restore a
// VPC to the region's default option set.
func (h *Handler) associateDHCPOptions(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	vpcID, ok := h.decodeVPCID(w, r)
	if !ok {
		return
	}
	if err := backend.AssociateDHCPOptions(r.PathValue("id"), vpcID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listPeeringConnections(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	connections, err := backend.DescribeVPCPeeringConnections(queryIDs(r), queryFilters(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, connections)
}

func (h *Handler) createPeeringConnection(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var in ec2.CreateVPCPeeringConnectionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	connection, err := backend.CreateVPCPeeringConnection(in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, connection)
}

func (h *Handler) getPeeringConnection(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	connection, err := backend.GetVPCPeeringConnection(r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, connection)
}

func (h *Handler) acceptPeeringConnection(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	connection, err := backend.AcceptVPCPeeringConnection(r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, connection)
}

func (h *Handler) rejectPeeringConnection(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	connection, err := backend.RejectVPCPeeringConnection(r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, connection)
}

func (h *Handler) deletePeeringConnection(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	connection, err := backend.DeleteVPCPeeringConnection(r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, connection)
}
