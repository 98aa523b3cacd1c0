package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/martinsuchenak/vpcd/internal/ec2"
)

func (h *Handler) registerTransitGatewayRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/regions/{region}/transit-gateways", h.listTransitGateways)
	mux.HandleFunc("POST /api/regions/{region}/transit-gateways", h.createTransitGateway)
	mux.HandleFunc("GET /api/regions/{region}/transit-gateways/{id}", h.getTransitGateway)
	mux.HandleFunc("PUT /api/regions/{region}/transit-gateways/{id}", h.modifyTransitGateway)
	mux.HandleFunc("DELETE /api/regions/{region}/transit-gateways/{id}", h.deleteTransitGateway)

	mux.HandleFunc("GET /api/regions/{region}/transit-gateway-route-tables", h.listTGWRouteTables)
	mux.HandleFunc("POST /api/regions/{region}/transit-gateway-route-tables", h.createTGWRouteTable)
	mux.HandleFunc("GET /api/regions/{region}/transit-gateway-route-tables/{id}", h.getTGWRouteTable)
	mux.HandleFunc("DELETE /api/regions/{region}/transit-gateway-route-tables/{id}", h.deleteTGWRouteTable)
	mux.HandleFunc("POST /api/regions/{region}/transit-gateway-route-tables/{id}/routes", h.createTGWRoute)
	mux.HandleFunc("PUT /api/regions/{region}/transit-gateway-route-tables/{id}/routes", h.replaceTGWRoute)
	mux.HandleFunc("DELETE /api/regions/{region}/transit-gateway-route-tables/{id}/routes", h.deleteTGWRoute)
	mux.HandleFunc("POST /api/regions/{region}/transit-gateway-route-tables/{id}/search", h.searchTGWRoutes)

	mux.HandleFunc("GET /api/regions/{region}/transit-gateway-attachments", h.listTGWAttachments)
	mux.HandleFunc("POST /api/regions/{region}/transit-gateway-attachments/vpc", h.createTGWVPCAttachment)
	mux.HandleFunc("POST /api/regions/{region}/transit-gateway-attachments/peering", h.createTGWPeeringAttachment)
	mux.HandleFunc("DELETE /api/regions/{region}/transit-gateway-attachments/{id}", h.deleteTGWAttachment)
	mux.HandleFunc("POST /api/regions/{region}/transit-gateway-attachments/{id}/associate", h.associateTGWRouteTable)
	mux.HandleFunc("POST /api/regions/{region}/transit-gateway-attachments/{id}/disassociate", h.disassociateTGWRouteTable)
	mux.HandleFunc("POST /api/regions/{region}/transit-gateway-attachments/{id}/propagation/enable", h.enableTGWPropagation)
	mux.HandleFunc("POST /api/regions/{region}/transit-gateway-attachments/{id}/propagation/disable", h.disableTGWPropagation)
}

func (h *Handler) listTransitGateways(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	gateways, err := backend.DescribeTransitGateways(queryIDs(r), queryFilters(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, gateways)
}

func (h *Handler) createTransitGateway(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	in := ec2.CreateTransitGatewayInput{
		DefaultRouteTableAssociation: true,
		DefaultRouteTablePropagation: true,
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			h.badRequest(w, "invalid request body")
			return
		}
	}
	gateway, err := backend.CreateTransitGateway(in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, gateway)
}

func (h *Handler) getTransitGateway(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	gateway, err := backend.GetTransitGateway(r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, gateway)
}

func (h *Handler) modifyTransitGateway(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req struct {
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	gateway, err := backend.ModifyTransitGateway(r.PathValue("id"), req.Description)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, gateway)
}

func (h *Handler) deleteTransitGateway(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := backend.DeleteTransitGateway(r.PathValue("id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listTGWRouteTables(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	tables, err := backend.DescribeTransitGatewayRouteTables(queryIDs(r), queryFilters(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, tables)
}

func (h *Handler) createTGWRouteTable(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req struct {
		TransitGatewayID string            `json:"transit_gateway_id"`
		Tags             map[string]string `json:"tags,omitempty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	table, err := backend.CreateTransitGatewayRouteTable(req.TransitGatewayID, req.Tags)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, table)
}

func (h *Handler) getTGWRouteTable(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	table, err := backend.GetTransitGatewayRouteTable(r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, table)
}

func (h *Handler) deleteTGWRouteTable(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := backend.DeleteTransitGatewayRouteTable(r.PathValue("id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) upsertTGWRoute(w http.ResponseWriter, r *http.Request, replace bool) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var in ec2.TGWRouteInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	in.RouteTableID = r.PathValue("id")

	var route *ec2.TransitGatewayRoute
	if replace {
		route, err = backend.ReplaceTransitGatewayRoute(in)
	} else {
		route, err = backend.CreateTransitGatewayRoute(in)
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

func (h *Handler) createTGWRoute(w http.ResponseWriter, r *http.Request) {
	h.upsertTGWRoute(w, r, false)
}

func (h *Handler) replaceTGWRoute(w http.ResponseWriter, r *http.Request) {
	h.upsertTGWRoute(w, r, true)
}

func (h *Handler) deleteTGWRoute(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	destination := r.URL.Query().Get("destination")
	if destination == "" {
		h.badRequest(w, "destination query parameter is required")
		return
	}
	route, err := backend.DeleteTransitGatewayRoute(r.PathValue("id"), destination)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, route)
}

// searchTGWRoutes runs a filtered search over a route table snapshot.
// The filter set is the body; ?max= caps the result count.
func (h *Handler) searchTGWRoutes(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var req struct {
		Filters ec2.Filters `json:"filters,omitempty"`
	}
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			h.badRequest(w, "invalid request body")
			return
		}
	}
	maxResults := 0
	if raw := r.URL.Query().Get("max"); raw != "" {
		maxResults, err = strconv.Atoi(raw)
		if err != nil {
			h.badRequest(w, "invalid max")
			return
		}
	}
	routes, err := backend.SearchTransitGatewayRoutes(r.PathValue("id"), req.Filters, maxResults)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, routes)
}

func (h *Handler) listTGWAttachments(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	attachments, err := backend.DescribeTransitGatewayAttachments(queryIDs(r), queryFilters(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, attachments)
}

func (h *Handler) createTGWVPCAttachment(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var in ec2.CreateTGWVPCAttachmentInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	attachment, err := backend.CreateTransitGatewayVPCAttachment(in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, attachment)
}

func (h *Handler) createTGWPeeringAttachment(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var in ec2.CreateTGWPeeringAttachmentInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	attachment, err := backend.CreateTransitGatewayPeeringAttachment(in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, attachment)
}

func (h *Handler) deleteTGWAttachment(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := backend.DeleteTransitGatewayAttachment(r.PathValue("id")); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// decodeTGWRouteTableID reads a {"transit_gateway_route_table_id": ...}
// body for the attachment association handlers.
func (h *Handler) decodeTGWRouteTableID(w http.ResponseWriter, r *http.Request) (string, bool) {
	var req struct {
		RouteTableID string `json:"transit_gateway_route_table_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(w, "invalid request body")
		return "", false
	}
	return req.RouteTableID, true
}

func (h *Handler) associateTGWRouteTable(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	tableID, ok := h.decodeTGWRouteTableID(w, r)
	if !ok {
		return
	}
	if err := backend.AssociateTransitGatewayRouteTable(r.PathValue("id"), tableID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) disassociateTGWRouteTable(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	tableID, ok := h.decodeTGWRouteTableID(w, r)
	if !ok {
		return
	}
	if err := backend.DisassociateTransitGatewayRouteTable(r.PathValue("id"), tableID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) enableTGWPropagation(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	tableID, ok := h.decodeTGWRouteTableID(w, r)
	if !ok {
		return
	}
	if err := backend.EnableTransitGatewayRouteTablePropagation(r.PathValue("id"), tableID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) disableTGWPropagation(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	tableID, ok := h.decodeTGWRouteTableID(w, r)
	if !ok {
		return
	}
	if err := backend.DisableTransitGatewayRouteTablePropagation(r.PathValue("id"), tableID); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
