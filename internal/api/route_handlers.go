package api

import (
	"encoding/json"
	"net/http"

	"github.com/martinsuchenak/vpcd/internal/ec2"
)

// listRouteTables handles GET /api/regions/{region}/route-tables
func (h *Handler) listRouteTables(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	tables, err := backend.DescribeRouteTables(queryIDs(r), queryFilters(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, tables)
}

// createRouteTable handles POST /api/regions/{region}/route-tables
func (h *Handler) createRouteTable(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req struct {
		VPCID string            `json:"vpc_id"`
		Tags  map[string]string `json:"tags,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	table, err := backend.CreateRouteTable(req.VPCID, req.Tags)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, table)
}

// getRouteTable handles GET /api/regions/{region}/route-tables/{id}
func (h *Handler) getRouteTable(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	table, err := backend.GetRouteTable(r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, table)
}

// deleteRouteTable handles DELETE /api/regions/{region}/route-tables/{id}
func (h *Handler) deleteRouteTable(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := backend.DeleteRouteTable(r.PathValue("id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// associateRouteTable handles POST /api/regions/{region}/route-tables/{id}/associations
func (h *Handler) associateRouteTable(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req struct {
		SubnetID  string `json:"subnet_id,omitempty"`
		GatewayID string `json:"gateway_id,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	assocID, err := backend.AssociateRouteTable(r.PathValue("id"), req.SubnetID, req.GatewayID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, map[string]string{"association_id": assocID})
}

// disassociateRouteTable handles DELETE /api/regions/{region}/route-table-associations/{id}
func (h *Handler) disassociateRouteTable(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := backend.DisassociateRouteTable(r.PathValue("id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// replaceRouteTableAssociation handles PUT /api/regions/{region}/route-table-associations/{id}
func (h *Handler) replaceRouteTableAssociation(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req struct {
		RouteTableID string `json:"route_table_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	assocID, err := backend.ReplaceRouteTableAssociation(r.PathValue("id"), req.RouteTableID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]string{"association_id": assocID})
}

// createRoute handles POST /api/regions/{region}/route-tables/{id}/routes
func (h *Handler) createRoute(w http.ResponseWriter, r *http.Request) {
	h.upsertRoute(w, r, false)
}

// replaceRoute handles PUT /api/regions/{region}/route-tables/{id}/routes
func (h *Handler) replaceRoute(w http.ResponseWriter, r *http.Request) {
	h.upsertRoute(w, r, true)
}

func (h *Handler) upsertRoute(w http.ResponseWriter, r *http.Request, replace bool) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var in ec2.RouteInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	in.RouteTableID = r.PathValue("id")

	var route *ec2.Route
	if replace {
		route, err = backend.ReplaceRoute(in)
	} else {
		route, err = backend.CreateRoute(in)
	}
	if err != nil {
		h.writeError(w, err)
		return
	}
	status := http.StatusCreated
	if replace {
		status = http.StatusOK
	}
	h.writeJSON(w, status, route)
}

// deleteRoute handles DELETE /api/regions/{region}/route-tables/{id}/routes
// with the destination given as ?destination=CIDR, ?destination-ipv6=CIDR
// or ?prefix-list-id=pl-...
func (h *Handler) deleteRoute(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	q := r.URL.Query()
	destination := q.Get("destination")
	destinationIPv6 := q.Get("destination-ipv6")
	prefixListID := q.Get("prefix-list-id")
	if destination == "" && destinationIPv6 == "" && prefixListID == "" {
		h.badRequest(w, "destination query parameter required")
		return
	}
	if err := backend.DeleteRoute(r.PathValue("id"), destination, destinationIPv6, prefixListID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
