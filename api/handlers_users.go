package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"agrichain_go/supply"
	"agrichain_go/utils"
)

// RegisterUserHandler creates a new participant (farmer, distributor,
// retailer or consumer) with a generated wallet address.
func (s *Server) RegisterUserHandler(w http.ResponseWriter, r *http.Request) {
	var in supply.RegisterUserInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondBadRequest(w, "Invalid request body: "+err.Error())
		return
	}

	user, err := s.Service.RegisterUser(r.Context(), in)
	if err != nil {
		utils.LogError("User registration failed: %v", err)
		respondError(w, err)
		return
	}

	respondMessage(w, http.StatusCreated, "User registered successfully", map[string]interface{}{
		"user": user,
	})
}

// GetUsersHandler returns all users, newest first.
func (s *Server) GetUsersHandler(w http.ResponseWriter, r *http.Request) {
	users, err := s.Service.Users(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondList(w, len(users), users)
}

// GetUsersByRoleHandler returns all users with the given role.
func (s *Server) GetUsersByRoleHandler(w http.ResponseWriter, r *http.Request) {
	role := supply.Role(mux.Vars(r)["role"])

	users, err := s.Service.UsersByRole(r.Context(), role)
	if err != nil {
		respondError(w, err)
		return
	}
	respondList(w, len(users), users)
}

// GetUserByWalletHandler returns the user holding the given wallet address.
func (s *Server) GetUserByWalletHandler(w http.ResponseWriter, r *http.Request) {
	wallet := mux.Vars(r)["walletAddress"]

	user, err := s.Service.UserByWallet(r.Context(), wallet)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, user)
}
