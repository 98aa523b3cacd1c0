package api

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/martinsuchenak/vpcd/internal/ec2"
)

func (h *Handler) registerEndpointRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/regions/{region}/vpc-endpoints", h.listVPCEndpoints)
	mux.HandleFunc("POST /api/regions/{region}/vpc-endpoints", h.createVPCEndpoint)
	mux.HandleFunc("GET /api/regions/{region}/vpc-endpoints/{id}", h.getVPCEndpoint)
	mux.HandleFunc("PUT /api/regions/{region}/vpc-endpoints/{id}", h.modifyVPCEndpoint)
	mux.HandleFunc("DELETE /api/regions/{region}/vpc-endpoints/{id}", h.deleteVPCEndpoint)

	mux.HandleFunc("GET /api/regions/{region}/vpc-endpoint-services", h.listEndpointServices)
	mux.HandleFunc("POST /api/regions/{region}/vpc-endpoint-services", h.createEndpointService)
	mux.HandleFunc("DELETE /api/regions/{region}/vpc-endpoint-services/{id}", h.deleteEndpointService)
}

func (h *Handler) registerPrefixListRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/regions/{region}/prefix-lists", h.listPrefixLists)
	mux.HandleFunc("POST /api/regions/{region}/prefix-lists", h.createPrefixList)
	mux.HandleFunc("GET /api/regions/{region}/prefix-lists/{id}", h.getPrefixList)
	mux.HandleFunc("PUT /api/regions/{region}/prefix-lists/{id}", h.modifyPrefixList)
	mux.HandleFunc("DELETE /api/regions/{region}/prefix-lists/{id}", h.deletePrefixList)
	mux.HandleFunc("GET /api/regions/{region}/prefix-lists/{id}/entries", h.getPrefixListEntries)
}

func (h *Handler) listVPCEndpoints(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	endpoints, err := backend.DescribeVPCEndpoints(queryIDs(r), queryFilters(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, endpoints)
}

func (h *Handler) createVPCEndpoint(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var in ec2.CreateVPCEndpointInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	endpoint, err := backend.CreateVPCEndpoint(in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, endpoint)
}

func (h *Handler) getVPCEndpoint(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	endpoint, err := backend.GetVPCEndpoint(r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, endpoint)
}

func (h *Handler) modifyVPCEndpoint(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var in ec2.ModifyVPCEndpointInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	in.VPCEndpointID = r.PathValue("id")
	if err := backend.ModifyVPCEndpoint(in); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) deleteVPCEndpoint(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := backend.DeleteVPCEndpoints([]string{r.PathValue("id")}); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listEndpointServices(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	services, err := backend.DescribeEndpointServices(r.URL.Query()["name"], queryFilters(r, "name"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, services)
}

func (h *Handler) createEndpointService(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var in ec2.CreateEndpointServiceInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	service, err := backend.CreateEndpointService(in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, service)
}

func (h *Handler) deleteEndpointService(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if err := backend.DeleteEndpointServices([]string{r.PathValue("id")}); err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listPrefixLists(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	lists, err := backend.DescribeManagedPrefixLists(queryIDs(r), queryFilters(r))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, lists)
}

func (h *Handler) createPrefixList(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var in ec2.CreateManagedPrefixListInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	list, err := backend.CreateManagedPrefixList(in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusCreated, list)
}

func (h *Handler) getPrefixList(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	list, err := backend.GetManagedPrefixList(r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, list)
}

func (h *Handler) modifyPrefixList(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var in ec2.ModifyManagedPrefixListInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.badRequest(w, "invalid request body")
		return
	}
	in.PrefixListID = r.PathValue("id")
	list, err := backend.ModifyManagedPrefixList(in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, list)
}

func (h *Handler) deletePrefixList(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	list, err := backend.DeleteManagedPrefixList(r.PathValue("id"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, list)
}

// getPrefixListEntries returns the current entries, or a prior version
// when ?version= is given.
func (h *Handler) getPrefixListEntries(w http.ResponseWriter, r *http.Request) {
	backend, err := h.backend(r)
	if err != nil {
		h.writeError(w, err)
		return
	}
	var version int64
	if raw := r.URL.Query().Get("version"); raw != "" {
		version, err = strconv.ParseInt(raw, 10, 64)
		if err != nil {
			h.badRequest(w, "invalid version")
			return
		}
	}
	entries, err := backend.GetManagedPrefixListEntries(r.PathValue("id"), version)
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeJSON(w, http.StatusOK, entries)
}
