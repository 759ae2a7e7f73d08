package api

import (
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
)

const defaultBlockListLimit = 50

// OverviewHandler returns chain height, block count and the most recent
// blocks.
func (s *Server) OverviewHandler(w http.ResponseWriter, r *http.Request) {
	overview, err := s.Chain.Overview(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, overview)
}

// GetBlocksHandler lists recent blocks, newest first. ?limit= caps the page
// size (default 50).
func (s *Server) GetBlocksHandler(w http.ResponseWriter, r *http.Request) {
	limit := defaultBlockListLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			respondBadRequest(w, "limit must be a positive integer")
			return
		}
		if n < limit {
			limit = n
		}
	}

	blocks, err := s.Chain.Blocks(r.Context(), limit)
	if err != nil {
		respondError(w, err)
		return
	}
	respondList(w, len(blocks), blocks)
}

// GetBlockHandler returns a single block by height.
func (s *Server) GetBlockHandler(w http.ResponseWriter, r *http.Request) {
	number, err := strconv.ParseUint(mux.Vars(r)["blockNumber"], 10, 64)
	if err != nil {
		respondBadRequest(w, "blockNumber must be a non-negative integer")
		return
	}

	block, err := s.Chain.Block(r.Context(), number)
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, block)
}

// VerifyChainHandler re-walks the whole chain, recomputing every hash and
// checking the previous-hash links.
func (s *Server) VerifyChainHandler(w http.ResponseWriter, r *http.Request) {
	result, err := s.Chain.Verify(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	respondData(w, http.StatusOK, result)
}
