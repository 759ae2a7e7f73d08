package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"agrichain_go/supply"
	"agrichain_go/utils"
)

// RegisterProductHandler registers a new product. Farmer only; the product is
// recorded on the ledger before the response returns.
func (s *Server) RegisterProductHandler(w http.ResponseWriter, r *http.Request) {
	var in supply.RegisterProductInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondBadRequest(w, "Invalid request body: "+err.Error())
		return
	}

	result, err := s.Service.RegisterProduct(r.Context(), in)
	if err != nil {
		utils.LogError("Product registration failed: %v", err)
		respondError(w, err)
		return
	}

	respondMessage(w, http.StatusCreated, "Product registered successfully on blockchain", result)
}

// GetProductsHandler returns all products, newest first.
func (s *Server) GetProductsHandler(w http.ResponseWriter, r *http.Request) {
	products, err := s.Service.Products(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondList(w, len(products), products)
}

// GetProductHandler returns one product with its full audit history.
func (s *Server) GetProductHandler(w http.ResponseWriter, r *http.Request) {
	productID := mux.Vars(r)["productId"]

	product, history, err := s.Service.ProductWithHistory(r.Context(), productID)
	if err != nil {
		respondError(w, err)
		return
	}

	respondData(w, http.StatusOK, map[string]interface{}{
		"product":           product,
		"history":           history,
		"totalTransactions": len(history),
	})
}

// GetProductsByOwnerHandler returns the products a user currently holds.
func (s *Server) GetProductsByOwnerHandler(w http.ResponseWriter, r *http.Request) {
	ownerID := mux.Vars(r)["ownerId"]

	products, err := s.Service.ProductsByOwner(r.Context(), ownerID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondList(w, len(products), products)
}

// UpdateProductStatusHandler applies an operational status/location/quality
// update by the product's current owner.
func (s *Server) UpdateProductStatusHandler(w http.ResponseWriter, r *http.Request) {
	productID := mux.Vars(r)["productId"]

	var in supply.StatusUpdateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		respondBadRequest(w, "Invalid request body: "+err.Error())
		return
	}

	result, err := s.Service.UpdateProductStatus(r.Context(), productID, identityFrom(r), in)
	if err != nil {
		utils.LogError("Status update failed for %s: %v", productID, err)
		respondError(w, err)
		return
	}

	respondMessage(w, http.StatusOK, "Product status updated", result)
}
