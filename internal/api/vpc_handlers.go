package api

import (
	"encoding/json"
	"net/http"

	"github.com/martinsuchenak/vpcd/internal/ec2"
)

// listVPCs handles GET /api/regions/{region}/vpcs
func (h *Handler) listVPCs(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	vpcs, err := backend.DescribeVPCs(queryIDs(r), queryFilters(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, vpcs)
}

// createVPC handles POST /api/regions/{region}/vpcs
func (h *Handler) createVPC(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var in ec2.CreateVPCInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	vpc, err := backend.CreateVPC(in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, vpc)
}

// getVPC handles GET /api/regions/{region}/vpcs/{id}
func (h *Handler) getVPC(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	vpc, err := backend.GetVPC(r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, vpc)
}

// deleteVPC handles DELETE /api/regions/{region}/vpcs/{id}
func (h *Handler) deleteVPC(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := backend.DeleteVPC(r.PathValue("id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// associateCIDRBlock handles POST /api/regions/{region}/vpcs/{id}/cidr-associations
func (h *Handler) associateCIDRBlock(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var in ec2.AssociateVPCCIDRBlockInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	in.VPCID = r.PathValue("id")
	assoc, err := backend.AssociateVPCCIDRBlock(in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, assoc)
}

// disassociateCIDRBlock handles DELETE /api/regions/{region}/cidr-associations/{id}
func (h *Handler) disassociateCIDRBlock(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	assoc, err := backend.DisassociateVPCCIDRBlock(r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, assoc)
}

// getVPCAttribute handles GET /api/regions/{region}/vpcs/{id}/attributes/{attr}
func (h *Handler) getVPCAttribute(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	value, err := backend.DescribeVPCAttribute(r.PathValue("id"), r.PathValue("attr"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"value": value})
}

// setVPCAttribute handles PUT /api/regions/{region}/vpcs/{id}/attributes/{attr}
func (h *Handler) setVPCAttribute(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req struct {
		Value bool `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	if err := backend.ModifyVPCAttribute(r.PathValue("id"), r.PathValue("attr"), req.Value); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// listSubnets handles GET /api/regions/{region}/subnets
func (h *Handler) listSubnets(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	subnets, err := backend.DescribeSubnets(queryIDs(r), queryFilters(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, subnets)
}

// createSubnet handles POST /api/regions/{region}/subnets
func (h *Handler) createSubnet(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var in ec2.CreateSubnetInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	subnet, err := backend.CreateSubnet(in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, subnet)
}

// getSubnet handles GET /api/regions/{region}/subnets/{id}
func (h *Handler) getSubnet(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	subnet, err := backend.GetSubnet(r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, subnet)
}

// deleteSubnet handles DELETE /api/regions/{region}/subnets/{id}
func (h *Handler) deleteSubnet(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := backend.DeleteSubnet(r.PathValue("id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// setSubnetAttribute handles PUT /api/regions/{region}/subnets/{id}/attributes/{attr}
func (h *Handler) setSubnetAttribute(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req struct {
		Value bool `json:"value"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	if err := backend.ModifySubnetAttribute(r.PathValue("id"), r.PathValue("attr"), req.Value); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
