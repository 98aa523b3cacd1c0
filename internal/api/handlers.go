// Package api exposes the resource graph over HTTP as a JSON API. Every
// route is scoped to a region (and optionally an account via the
// ?account= query parameter); backends are resolved lazily through the
// directory.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/martinsuchenak/vpcd/internal/ec2"
	"github.com/martinsuchenak/vpcd/internal/log"
)

// Handler handles HTTP requests.
type Handler struct {
	dir *ec2.Directory
}

// NewHandler creates a new API handler backed by a directory.
func NewHandler(dir *ec2.Directory) *Handler {
	return &Handler{dir: dir}
}

// RegisterRoutes registers all API routes.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/regions", h.listRegions)
	mux.HandleFunc("GET /api/regions/{region}/zones", h.listZones)
	mux.HandleFunc("POST /api/regions/{region}/resources/exist", h.resourcesExist)
	mux.HandleFunc("POST /api/regions/{region}/reset", h.resetBackend)

	// VPCs
	mux.HandleFunc("GET /api/regions/{region}/vpcs", h.listVPCs)
	mux.HandleFunc("POST /api/regions/{region}/vpcs", h.createVPC)
	mux.HandleFunc("GET /api/regions/{region}/vpcs/{id}", h.getVPC)
	mux.HandleFunc("DELETE /api/regions/{region}/vpcs/{id}", h.deleteVPC)
	mux.HandleFunc("POST /api/regions/{region}/vpcs/{id}/cidr-associations", h.associateCIDRBlock)
	mux.HandleFunc("DELETE /api/regions/{region}/cidr-associations/{id}", h.disassociateCIDRBlock)
	mux.HandleFunc("GET /api/regions/{region}/vpcs/{id}/attributes/{attr}", h.getVPCAttribute)
	mux.HandleFunc("PUT /api/regions/{region}/vpcs/{id}/attributes/{attr}", h.setVPCAttribute)

	// Subnets
	mux.HandleFunc("GET /api/regions/{region}/subnets", h.listSubnets)
	mux.HandleFunc("POST /api/regions/{region}/subnets", h.createSubnet)
	mux.HandleFunc("GET /api/regions/{region}/subnets/{id}", h.getSubnet)
	mux.HandleFunc("DELETE /api/regions/{region}/subnets/{id}", h.deleteSubnet)
	mux.HandleFunc("PUT /api/regions/{region}/subnets/{id}/attributes/{attr}", h.setSubnetAttribute)

	// Route tables
	mux.HandleFunc("GET /api/regions/{region}/route-tables", h.listRouteTables)
	mux.HandleFunc("POST /api/regions/{region}/route-tables", h.createRouteTable)
	mux.HandleFunc("GET /api/regions/{region}/route-tables/{id}", h.getRouteTable)
	mux.HandleFunc("DELETE /api/regions/{region}/route-tables/{id}", h.deleteRouteTable)
	mux.HandleFunc("POST /api/regions/{region}/route-tables/{id}/associations", h.associateRouteTable)
	mux.HandleFunc("DELETE /api/regions/{region}/route-table-associations/{id}", h.disassociateRouteTable)
	mux.HandleFunc("PUT /api/regions/{region}/route-table-associations/{id}", h.replaceRouteTableAssociation)
	mux.HandleFunc("POST /api/regions/{region}/route-tables/{id}/routes", h.createRoute)
	mux.HandleFunc("PUT /api/regions/{region}/route-tables/{id}/routes", h.replaceRoute)
	mux.HandleFunc("DELETE /api/regions/{region}/route-tables/{id}/routes", h.deleteRoute)

	// Security groups
	mux.HandleFunc("GET /api/regions/{region}/security-groups", h.listSecurityGroups)
	mux.HandleFunc("POST /api/regions/{region}/security-groups", h.createSecurityGroup)
	mux.HandleFunc("GET /api/regions/{region}/security-groups/{id}", h.getSecurityGroup)
	mux.HandleFunc("DELETE /api/regions/{region}/security-groups/{id}", h.deleteSecurityGroup)
	mux.HandleFunc("POST /api/regions/{region}/security-groups/{id}/ingress", h.authorizeIngress)
	mux.HandleFunc("POST /api/regions/{region}/security-groups/{id}/egress", h.authorizeEgress)
	mux.HandleFunc("POST /api/regions/{region}/security-groups/{id}/ingress/revoke", h.revokeIngress)
	mux.HandleFunc("POST /api/regions/{region}/security-groups/{id}/egress/revoke", h.revokeEgress)

	// Network interfaces
	mux.HandleFunc("GET /api/regions/{region}/network-interfaces", h.listNetworkInterfaces)
	mux.HandleFunc("POST /api/regions/{region}/network-interfaces", h.createNetworkInterface)
	mux.HandleFunc("GET /api/regions/{region}/network-interfaces/{id}", h.getNetworkInterface)
	mux.HandleFunc("DELETE /api/regions/{region}/network-interfaces/{id}", h.deleteNetworkInterface)
	mux.HandleFunc("POST /api/regions/{region}/network-interfaces/{id}/attach", h.attachNetworkInterface)
	mux.HandleFunc("POST /api/regions/{region}/network-interface-attachments/{id}/detach", h.detachNetworkInterface)
	mux.HandleFunc("PUT /api/regions/{region}/network-interfaces/{id}/attributes", h.modifyNetworkInterface)
	mux.HandleFunc("POST /api/regions/{region}/network-interfaces/{id}/addresses", h.assignPrivateAddresses)
	mux.HandleFunc("DELETE /api/regions/{region}/network-interfaces/{id}/addresses", h.unassignPrivateAddresses)

	h.registerGatewayRoutes(mux)
	h.registerDHCPRoutes(mux)
	h.registerPeeringRoutes(mux)
	h.registerEndpointRoutes(mux)
	h.registerPrefixListRoutes(mux)
	h.registerTransitGatewayRoutes(mux)
	h.registerNetworkACLRoutes(mux)
	h.registerTagRoutes(mux)
}

// backend resolves the request's region path value and optional
// ?account= parameter to a backend.
func (h *Handler) backend(r *http.Request) (*ec2.Backend, error) {
	return h.dir.Backend(r.URL.Query().Get("account"), r.PathValue("region"))
}

// queryFilters turns the query string into describe filters. Reserved
// parameters (account, id, plus any extra names the caller passes) are
// skipped; repeated parameters become multiple filter values.
func queryFilters(r *http.Request, reserved ...string) ec2.Filters {
	skip := map[string]bool{"account": true, "id": true}
	for _, name := range reserved {
		skip[name] = true
	}
	filters := ec2.Filters{}
	for name, values := range r.URL.Query() {
		if skip[name] {
			continue
		}
		filters[name] = values
	}
	if len(filters) == 0 {
		return nil
	}
	return filters
}

// queryIDs returns the repeated ?id= parameters.
func queryIDs(r *http.Request) []string {
	return r.URL.Query()["id"]
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

// writeError maps backend errors onto HTTP statuses, carrying the AWS
// error code through to the client.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var ae *ec2.APIError
	if !errors.As(err, &ae) {
		h.internalError(w, err)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusForCode(ae.Code))
	json.NewEncoder(w).Encode(map[string]string{"code": ae.Code, "error": ae.Message})
}

func statusForCode(code string) int {
	switch {
	case strings.HasSuffix(code, ".NotFound"), code == "NatGatewayNotFound":
		return http.StatusNotFound
	case strings.HasSuffix(code, ".Duplicate"),
		code == "DependencyViolation",
		code == "Resource.AlreadyAssociated",
		code == "RouteAlreadyExists",
		code == "NetworkAclEntryAlreadyExists",
		code == "InvalidStateTransition":
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

// badRequest writes a plain 400 with a message, for malformed requests
// that never reach the backend.
func (h *Handler) badRequest(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusBadRequest)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// internalError logs the error and writes a generic 500 response.
func (h *Handler) internalError(w http.ResponseWriter, err error) {
	log.Error("Internal server error", "error", err)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusInternalServerError)
	json.NewEncoder(w).Encode(map[string]string{"error": "Internal Server Error"})
}

// listRegions handles GET /api/regions
func (h *Handler) listRegions(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, ec2.Regions())
}

// listZones handles GET /api/regions/{region}/zones
func (h *Handler) listZones(w http.ResponseWriter, r *http.Request) {
	zones, err := ec2.ZonesForRegion(r.PathValue("region"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, zones)
}

// resourcesExist handles POST /api/regions/{region}/resources/exist
func (h *Handler) resourcesExist(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req struct {
		ResourceIDs []string `json:"resource_ids"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	if err := backend.ResourcesExist(req.ResourceIDs); err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"exists": true})
}

// resetBackend handles POST /api/regions/{region}/reset
func (h *Handler) resetBackend(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	backend.Reset()
	w.WriteHeader(http.StatusNoContent)
}
