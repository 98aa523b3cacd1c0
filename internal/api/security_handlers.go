package api

import (
	"encoding/json"
	"net/http"

	"github.com/martinsuchenak/vpcd/internal/ec2"
)

// listSecurityGroups handles GET /api/regions/{region}/security-groups
func (h *Handler) listSecurityGroups(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	groups, err := backend.DescribeSecurityGroups(queryIDs(r), r.URL.Query()["name"], queryFilters(r, "name"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, groups)
}

// createSecurityGroup handles POST /api/regions/{region}/security-groups
func (h *Handler) createSecurityGroup(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var in ec2.CreateSecurityGroupInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	group, err := backend.CreateSecurityGroup(in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, group)
}

// getSecurityGroup handles GET /api/regions/{region}/security-groups/{id}
func (h *Handler) getSecurityGroup(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	group, err := backend.GetSecurityGroup(r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, group)
}

// deleteSecurityGroup handles DELETE /api/regions/{region}/security-groups/{id}
func (h *Handler) deleteSecurityGroup(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := backend.DeleteSecurityGroup(r.PathValue("id"), r.URL.Query().Get("vpc")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) securityGroupRule(w http.ResponseWriter, r *http.Request, egress, revoke bool) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var in ec2.RulePermissionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	in.GroupID = r.PathValue("id")

	if revoke {
		if egress {
			err = backend.RevokeSecurityGroupEgress(in)
		} else {
			err = backend.RevokeSecurityGroupIngress(in)
		}
		if err != nil {
			h.writeError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
		return
	}

	var rule *ec2.SecurityRule
	if egress {
		rule, err = backend.AuthorizeSecurityGroupEgress(in)
	} else {
		rule, err = backend.AuthorizeSecurityGroupIngress(in)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, rule)
}

// authorizeIngress handles POST /api/regions/{region}/security-groups/{id}/ingress
func (h *Handler) authorizeIngress(w http.ResponseWriter, r *http.Request) {
	h.securityGroupRule(w, r, false, false)
}

// authorizeEgress handles POST /api/regions/{region}/security-groups/{id}/egress
func (h *Handler) authorizeEgress(w http.ResponseWriter, r *http.Request) {
	h.securityGroupRule(w, r, true, false)
}

// revokeIngress handles POST /api/regions/{region}/security-groups/{id}/ingress/revoke
func (h *Handler) revokeIngress(w http.ResponseWriter, r *http.Request) {
	h.securityGroupRule(w, r, false, true)
}

// revokeEgress handles POST /api/regions/{region}/security-groups/{id}/egress/revoke
func (h *Handler) revokeEgress(w http.ResponseWriter, r *http.Request) {
	h.securityGroupRule(w, r, true, true)
}

// listNetworkInterfaces handles GET /api/regions/{region}/network-interfaces
func (h *Handler) listNetworkInterfaces(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	enis, err := backend.DescribeNetworkInterfaces(queryIDs(r), queryFilters(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, enis)
}

// createNetworkInterface handles POST /api/regions/{region}/network-interfaces
func (h *Handler) createNetworkInterface(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var in ec2.CreateNetworkInterfaceInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	eni, err := backend.CreateNetworkInterface(in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, eni)
}

// getNetworkInterface handles GET /api/regions/{region}/network-interfaces/{id}
func (h *Handler) getNetworkInterface(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	eni, err := backend.GetNetworkInterface(r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, eni)
}

// deleteNetworkInterface handles DELETE /api/regions/{region}/network-interfaces/{id}
func (h *Handler) deleteNetworkInterface(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := backend.DeleteNetworkInterface(r.PathValue("id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// attachNetworkInterface handles POST /api/regions/{region}/network-interfaces/{id}/attach
func (h *Handler) attachNetworkInterface(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req struct {
		InstanceID  string `json:"instance_id"`
		DeviceIndex int    `json:"device_index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	attachmentID, err := backend.AttachNetworkInterface(r.PathValue("id"), req.InstanceID, req.DeviceIndex)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]string{"attachment_id": attachmentID})
}

// detachNetworkInterface handles POST /api/regions/{region}/network-interface-attachments/{id}/detach
func (h *Handler) detachNetworkInterface(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := backend.DetachNetworkInterface(r.PathValue("id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// modifyNetworkInterface handles PUT /api/regions/{region}/network-interfaces/{id}/attributes
func (h *Handler) modifyNetworkInterface(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var in ec2.ModifyNetworkInterfaceInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	in.NetworkInterfaceID = r.PathValue("id")
	if err := backend.ModifyNetworkInterfaceAttribute(in); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// assignPrivateAddresses handles POST /api/regions/{region}/network-interfaces/{id}/addresses
func (h *Handler) assignPrivateAddresses(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req struct {
		Addresses []string `json:"addresses,omitempty"`
		Count     int      `json:"count,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	assigned, err := backend.AssignPrivateIPAddresses(r.PathValue("id"), req.Addresses, req.Count)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string][]string{"assigned": assigned})
}

// unassignPrivateAddresses handles DELETE /api/regions/{region}/network-interfaces/{id}/addresses
func (h *Handler) unassignPrivateAddresses(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req struct {
		Addresses []string `json:"addresses"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	if err := backend.UnassignPrivateIPAddresses(r.PathValue("id"), req.Addresses); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
