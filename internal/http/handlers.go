package http

import (
	"fmt"
	"net/http"
	"time"

	"fintrack/internal/core"
)

func handleLiveness(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (s *Server) handleReadiness(w http.ResponseWriter, r *http.Request) {
	if _, err := s.api.Count(r.Context()); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("not ready"))
		return
	}
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ready"))
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		respondBadRequest(w, err.Error())
		return
	}
	limit, offset, err := parsePagination(r.URL.Query())
	if err != nil {
		respondBadRequest(w, err.Error())
		return
	}

	txs, err := s.api.Query(r.Context(), filter, limit, offset)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondData(w, http.StatusOK, toTransactionListJSON(txs))
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var in transactionInput
	if err := decodeJSONBody(r, &in); err != nil {
		respondBadRequest(w, err.Error())
		return
	}

	t, err := in.toTransaction()
	if err != nil {
		respondBadRequest(w, err.Error())
		return
	}

	created, err := s.api.Create(r.Context(), t)
	if err != nil {
		respondError(w, r, err)
		return
	}

	s.statsCache.Purge()
	respondData(w, http.StatusCreated, toTransactionJSON(created))
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDPath(r)
	if err != nil {
		respondBadRequest(w, err.Error())
		return
	}

	t, err := s.api.Get(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondData(w, http.StatusOK, toTransactionJSON(t))
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDPath(r)
	if err != nil {
		respondBadRequest(w, err.Error())
		return
	}

	var in patchInput
	if err := decodeJSONBody(r, &in); err != nil {
		respondBadRequest(w, err.Error())
		return
	}

	patch, err := in.toPatch()
	if err != nil {
		respondBadRequest(w, err.Error())
		return
	}

	updated, err := s.api.Update(r.Context(), id, patch)
	if err != nil {
		respondError(w, r, err)
		return
	}

	s.statsCache.Purge()
	respondData(w, http.StatusOK, toTransactionJSON(updated))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDPath(r)
	if err != nil {
		respondBadRequest(w, err.Error())
		return
	}

	if err := s.api.Delete(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}

	s.statsCache.Purge()
	respondData(w, http.StatusOK, map[string]int64{"deleted": id})
}

func (s *Server) handleStatistics(w http.ResponseWriter, r *http.Request) {
	filter, err := parseFilter(r.URL.Query())
	if err != nil {
		respondBadRequest(w, err.Error())
		return
	}

	key := filter.Normalized().CacheKey()
	if summary, ok := s.statsCache.Get(key); ok {
		respondData(w, http.StatusOK, toSummaryJSON(summary))
		return
	}

	summary, err := s.api.Statistics(r.Context(), filter)
	if err != nil {
		respondError(w, r, err)
		return
	}

	s.statsCache.Set(key, summary)
	respondData(w, http.StatusOK, toSummaryJSON(summary))
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.api.Categories(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondData(w, http.StatusOK, toCategoriesByTypeJSON(cats))
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	export, err := s.api.Export(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}

	filename := fmt.Sprintf("fintrack_export_%s.json", time.Now().UTC().Format("20060102_150405"))
	w.Header().Set("Content-Disposition", `attachment; filename="`+filename+`"`)
	respondData(w, http.StatusOK, toExportJSON(export))
}

func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Transactions []transactionInput `json:"transactions"`
	}
	if err := decodeJSONBody(r, &in); err != nil {
		respondBadRequest(w, err.Error())
		return
	}
	if len(in.Transactions) == 0 {
		respondBadRequest(w, "no transactions to import")
		return
	}

	// Unparseable amounts and dates become zero values here and are
	// rejected per record by the service, so the batch is never aborted.
	txs := make([]core.Transaction, 0, len(in.Transactions))
	for _, rec := range in.Transactions {
		txs = append(txs, rec.toTransactionLenient())
	}

	result, err := s.api.Import(r.Context(), txs)
	if err != nil {
		respondError(w, r, err)
		return
	}

	s.statsCache.Purge()
	respondData(w, http.StatusOK, toImportResultJSON(result))
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	count, err := s.api.Count(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}

	version, err := s.api.Setting(r.Context(), "app_version")
	if err != nil {
		respondError(w, r, err)
		return
	}

	respondData(w, http.StatusOK, map[string]any{
		"status":            "healthy",
		"transaction_count": count,
		"version":           version,
		"timestamp":         time.Now().UTC().Format(time.RFC3339),
	})
}

func (s *Server) handleConfig(w http.ResponseWriter, r *http.Request) {
	cfg := map[string]string{}
	for _, key := range []string{"app_version", "currency", "date_format", "auto_backup"} {
		value, err := s.api.Setting(r.Context(), key)
		if err != nil {
			respondError(w, r, err)
			return
		}
		cfg[key] = value
	}

	respondData(w, http.StatusOK, cfg)
}
