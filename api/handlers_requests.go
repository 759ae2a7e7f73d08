package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"agrichain_go/supply"
	"agrichain_go/utils"
)

// CreateRequestHandler opens a transfer request. The authenticated caller is
// the requester: the party asking to receive the product.
func (s *Server) CreateRequestHandler(w http.ResponseWriter, r *http.Request) {
	var in supply.CreateRequestInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondBadRequest(w, "Invalid request body: "+err.Error())
		return
	}
	in.ToUserID = identityFrom(r)

	result, err := s.Service.CreateTransferRequest(r.Context(), in)
	if err != nil {
		utils.LogError("Transfer request creation failed: %v", err)
		respondError(w, err)
		return
	}

	respondMessage(w, http.StatusCreated, "Transfer request created", result)
}

// GetRequestsHandler lists the caller's transfer requests. ?type=received|sent
// filters by direction; anything else returns both sides.
func (s *Server) GetRequestsHandler(w http.ResponseWriter, r *http.Request) {
	direction := supply.RequestDirection(r.URL.Query().Get("type"))

	requests, err := s.Service.RequestsForUser(r.Context(), identityFrom(r), direction)
	if err != nil {
		respondError(w, err)
		return
	}
	respondList(w, len(requests), requests)
}

// AcceptRequestHandler settles a pending request as accepted and hands the
// product over. Only the product's current owner may call this.
func (s *Server) AcceptRequestHandler(w http.ResponseWriter, r *http.Request) {
	requestID := mux.Vars(r)["requestId"]

	var in supply.AcceptInput
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			respondBadRequest(w, "Invalid request body: "+err.Error())
			return
		}
	}

	result, err := s.Service.AcceptTransferRequest(r.Context(), requestID, identityFrom(r), in)
	if err != nil {
		utils.LogError("Accepting request %s failed: %v", requestID, err)
		respondError(w, err)
		return
	}

	respondMessage(w, http.StatusOK, "Transfer request accepted, ownership transferred", result)
}

// RejectRequestHandler settles a pending request as rejected. The product is
// untouched and no block is written.
func (s *Server) RejectRequestHandler(w http.ResponseWriter, r *http.Request) {
	requestID := mux.Vars(r)["requestId"]

	var body struct {
		Reason string `json:"reason"`
	}
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			respondBadRequest(w, "Invalid request body: "+err.Error())
			return
		}
	}

	request, err := s.Service.RejectTransferRequest(r.Context(), requestID, identityFrom(r), body.Reason)
	if err != nil {
		utils.LogError("Rejecting request %s failed: %v", requestID, err)
		respondError(w, err)
		return
	}

	respondMessage(w, http.StatusOK, "Transfer request rejected", map[string]interface{}{
		"request": request,
	})
}
