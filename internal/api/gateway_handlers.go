package api

import (
	"encoding/json"
	"net/http"

	"github.com/martinsuchenak/vpcd/internal/ec2"
)

func (h *Handler) registerGatewayRoutes(mux *http.ServeMux) {
	// Internet gateways
	mux.HandleFunc("GET /api/regions/{region}/internet-gateways", h.listInternetGateways)
	mux.HandleFunc("POST /api/regions/{region}/internet-gateways", h.createInternetGateway)
	mux.HandleFunc("GET /api/regions/{region}/internet-gateways/{id}", h.getInternetGateway)
	mux.HandleFunc("DELETE /api/regions/{region}/internet-gateways/{id}", h.deleteInternetGateway)
	mux.HandleFunc("POST /api/regions/{region}/internet-gateways/{id}/attach", h.attachInternetGateway)
	mux.HandleFunc("POST /api/regions/{region}/internet-gateways/{id}/detach", h.detachInternetGateway)

	// Egress-only internet gateways
	mux.HandleFunc("GET /api/regions/{region}/egress-only-internet-gateways", h.listEgressOnlyGateways)
	mux.HandleFunc("POST /api/regions/{region}/egress-only-internet-gateways", h.createEgressOnlyGateway)
	mux.HandleFunc("DELETE /api/regions/{region}/egress-only-internet-gateways/{id}", h.deleteEgressOnlyGateway)

	// Carrier gateways
	mux.HandleFunc("GET /api/regions/{region}/carrier-gateways", h.listCarrierGateways)
	mux.HandleFunc("POST /api/regions/{region}/carrier-gateways", h.createCarrierGateway)
	mux.HandleFunc("DELETE /api/regions/{region}/carrier-gateways/{id}", h.deleteCarrierGateway)

	// VPN gateways
	mux.HandleFunc("GET /api/regions/{region}/vpn-gateways", h.listVPNGateways)
	mux.HandleFunc("POST /api/regions/{region}/vpn-gateways", h.createVPNGateway)
	mux.HandleFunc("DELETE /api/regions/{region}/vpn-gateways/{id}", h.deleteVPNGateway)
	mux.HandleFunc("POST /api/regions/{region}/vpn-gateways/{id}/attach", h.attachVPNGateway)
	mux.HandleFunc("POST /api/regions/{region}/vpn-gateways/{id}/detach", h.detachVPNGateway)

	// Customer gateways
	mux.HandleFunc("GET /api/regions/{region}/customer-gateways", h.listCustomerGateways)
	mux.HandleFunc("POST /api/regions/{region}/customer-gateways", h.createCustomerGateway)
	mux.HandleFunc("DELETE /api/regions/{region}/customer-gateways/{id}", h.deleteCustomerGateway)

	// VPN connections
	mux.HandleFunc("GET /api/regions/{region}/vpn-connections", h.listVPNConnections)
	mux.HandleFunc("POST /api/regions/{region}/vpn-connections", h.createVPNConnection)
	mux.HandleFunc("DELETE /api/regions/{region}/vpn-connections/{id}", h.deleteVPNConnection)

	// NAT gateways
	mux.HandleFunc("GET /api/regions/{region}/nat-gateways", h.listNatGateways)
	mux.HandleFunc("POST /api/regions/{region}/nat-gateways", h.createNatGateway)
	mux.HandleFunc("GET /api/regions/{region}/nat-gateways/{id}", h.getNatGateway)
	mux.HandleFunc("DELETE /api/regions/{region}/nat-gateways/{id}", h.deleteNatGateway)
}

type tagsRequest struct {
	Tags map[string]string `json:"tags,omitempty"`
}

type vpcTagsRequest struct {
	VPCID string            `json:"vpc_id"`
	Tags  map[string]string `json:"tags,omitempty"`
}

func (h *Handler) listInternetGateways(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	gateways, err := backend.DescribeInternetGateways(queryIDs(r), queryFilters(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, gateways)
}

func (h *Handler) createInternetGateway(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req tagsRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.badRequest(w, "invalid request body")
			return
		}
	}
	h.writeJSON(w, http.StatusCreated, backend.CreateInternetGateway(req.Tags))
}

func (h *Handler) getInternetGateway(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	gateway, err := backend.GetInternetGateway(r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, gateway)
}

func (h *Handler) deleteInternetGateway(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := backend.DeleteInternetGateway(r.PathValue("id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decodeVPCID reads a {"vpc_id": ...} body, used by the gateway
// attach/detach handlers.
func (h *Handler) decodeVPCID(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req struct {
		VPCID string `json:"vpc_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid request body")
		return "", false
	}
	return req.VPCID, true
}

func (h *Handler) attachInternetGateway(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	vpcID, ok := h.decodeVPCID(w, r)
	if !ok {
		return
	}
	if err := backend.AttachInternetGateway(r.PathValue("id"), vpcID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) detachInternetGateway(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	vpcID, ok := h.decodeVPCID(w, r)
	if !ok {
		return
	}
	if err := backend.DetachInternetGateway(r.PathValue("id"), vpcID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listEgressOnlyGateways(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	gateways, err := backend.DescribeEgressOnlyInternetGateways(queryIDs(r), queryFilters(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, gateways)
}

func (h *Handler) createEgressOnlyGateway(w http.ResponseWriter, r *http.Request) {
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
	gateway, err := backend.CreateEgressOnlyInternetGateway(req.VPCID, req.Tags)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, gateway)
}

func (h *Handler) deleteEgressOnlyGateway(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := backend.DeleteEgressOnlyInternetGateway(r.PathValue("id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listCarrierGateways(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	gateways, err := backend.DescribeCarrierGateways(queryIDs(r), queryFilters(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, gateways)
}

func (h *Handler) createCarrierGateway(w http.ResponseWriter, r *http.Request) {
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
	gateway, err := backend.CreateCarrierGateway(req.VPCID, req.Tags)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, gateway)
}

func (h *Handler) deleteCarrierGateway(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := backend.DeleteCarrierGateway(r.PathValue("id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listVPNGateways(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	gateways, err := backend.DescribeVPNGateways(queryIDs(r), queryFilters(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, gateways)
}

func (h *Handler) createVPNGateway(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req struct {
		Type             string            `json:"type,omitempty"`
		AvailabilityZone string            `json:"availability_zone,omitempty"`
		Tags             map[string]string `json:"tags,omitempty"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.badRequest(w, "invalid request body")
			return
		}
	}
	h.writeJSON(w, http.StatusCreated, backend.CreateVPNGateway(req.Type, req.AvailabilityZone, req.Tags))
}

func (h *Handler) deleteVPNGateway(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := backend.DeleteVPNGateway(r.PathValue("id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) attachVPNGateway(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	vpcID, ok := h.decodeVPCID(w, r)
	if !ok {
		return
	}
	attachment, err := backend.AttachVPNGateway(r.PathValue("id"), vpcID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, attachment)
}

func (h *Handler) detachVPNGateway(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	vpcID, ok := h.decodeVPCID(w, r)
	if !ok {
		return
	}
	if err := backend.DetachVPNGateway(r.PathValue("id"), vpcID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listCustomerGateways(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	gateways, err := backend.DescribeCustomerGateways(queryIDs(r), queryFilters(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, gateways)
}

func (h *Handler) createCustomerGateway(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req struct {
		Type      string            `json:"type,omitempty"`
		IPAddress string            `json:"ip_address"`
		BGPASN    int               `json:"bgp_asn,omitempty"`
		Tags      map[string]string `json:"tags,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	h.writeJSON(w, http.StatusCreated, backend.CreateCustomerGateway(req.Type, req.IPAddress, req.BGPASN, req.Tags))
}

func (h *Handler) deleteCustomerGateway(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := backend.DeleteCustomerGateway(r.PathValue("id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listVPNConnections(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	connections, err := backend.DescribeVPNConnections(queryIDs(r), queryFilters(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, connections)
}

func (h *Handler) createVPNConnection(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var in ec2.CreateVPNConnectionInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	connection, err := backend.CreateVPNConnection(in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, connection)
}

func (h *Handler) deleteVPNConnection(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := backend.DeleteVPNConnection(r.PathValue("id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listNatGateways(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	gateways, err := backend.DescribeNatGateways(queryIDs(r), queryFilters(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, gateways)
}

func (h *Handler) createNatGateway(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var in ec2.CreateNatGatewayInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	gateway, err := backend.CreateNatGateway(in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, gateway)
}

func (h *Handler) getNatGateway(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	gateway, err := backend.GetNatGateway(r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, gateway)
}

func (h *Handler) deleteNatGateway(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := backend.DeleteNatGateway(r.PathValue("id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
