// Package api exposes the transfer service over HTTP: submission, job
// lookup, and the relay deposit address.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	apperrors "github.com/stablerelay/transfer-middleware/pkg/app/errors"
	apphttp "github.com/stablerelay/transfer-middleware/pkg/app/http"
	"github.com/stablerelay/transfer-middleware/pkg/jobstore"
	"github.com/stablerelay/transfer-middleware/pkg/orchestrator"
)

const listLimit = 100

// Submitter accepts validated transfer submissions. Satisfied by
// orchestrator.Orchestrator.
type Submitter interface {
	Submit(ctx context.Context, req orchestrator.SubmitRequest) (*jobstore.Job, error)
}

// SubmitTransferRequest is the POST /transfers body
type SubmitTransferRequest struct {
	UserSourceAddress string `json:"userSourceAddress" validate:"required"`
	UserDestAddress   string `json:"userDestAddress" validate:"required"`
	Amount            string `json:"amount" validate:"required"`
	FromChain         string `json:"fromChain" validate:"required"`
	ToChain           string `json:"toChain" validate:"required"`
}

// SubmitTransferResponse is returned for an accepted submission
type SubmitTransferResponse struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
}

// RelayAddressResponse carries the deposit address users send funds to. One
// relay key signs on every chain, so the address is the same everywhere.
type RelayAddressResponse struct {
	Address string `json:"address"`
}

// HTTP wraps the orchestrator and job store to provide HTTP endpoints
type HTTP struct {
	orch     Submitter
	store    jobstore.Store
	relay    string
	validate *validator.Validate
	logger   *zap.Logger
}

// RegisterRoutes registers the transfer endpoints on the given chi router.
// relayAddress is the relay signer's deposit address.
func RegisterRoutes(r chi.Router, orch Submitter, store jobstore.Store, relayAddress string, logger *zap.Logger) {
	h := &HTTP{
		orch:     orch,
		store:    store,
		relay:    relayAddress,
		validate: validator.New(),
		logger:   logger,
	}

	r.Post("/transfers", apphttp.HandleError(h.submitTransfer))
	r.Get("/transfers", apphttp.HandleError(h.listTransfers))
	r.Get("/transfers/{jobID}", apphttp.HandleError(h.getTransfer))
	r.Get("/relay-address", apphttp.HandleError(h.getRelayAddress))
}

func (h *HTTP) submitTransfer(w http.ResponseWriter, r *http.Request) error {
	body, err := io.ReadAll(io.LimitReader(r.Body, 1<<20)) // 1MB limit
	if err != nil {
		return apperrors.BadRequestError(err, "failed to read request")
	}

	var req SubmitTransferRequest
	if err := json.Unmarshal(body, &req); err != nil {
		return apperrors.BadRequestError(err, "invalid JSON")
	}
	if err := h.validate.Struct(&req); err != nil {
		return apperrors.BadRequestError(err, "missing required fields")
	}

	job, err := h.orch.Submit(r.Context(), orchestrator.SubmitRequest{
		UserSourceAddress: req.UserSourceAddress,
		UserDestAddress:   req.UserDestAddress,
		Amount:            req.Amount,
		FromChain:         req.FromChain,
		ToChain:           req.ToChain,
	})
	if err != nil {
		return err
	}

	h.logger.Info("Transfer accepted",
		zap.String("job_id", job.ID),
		zap.String("from_chain", job.FromChain),
		zap.String("to_chain", job.ToChain))

	h.writeJSON(w, http.StatusAccepted, &SubmitTransferResponse{
		JobID:  job.ID,
		Status: string(job.Status),
	})
	return nil
}

func (h *HTTP) getTransfer(w http.ResponseWriter, r *http.Request) error {
	jobID := chi.URLParam(r, "jobID")

	job, err := h.store.Get(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, jobstore.ErrJobNotFound) {
			return apperrors.ResourceNotFoundError(err, "transfer not found")
		}
		return apperrors.GeneralError(err)
	}

	h.writeJSON(w, http.StatusOK, job)
	return nil
}

func (h *HTTP) listTransfers(w http.ResponseWriter, r *http.Request) error {
	jobs, err := h.store.List(r.Context(), listLimit)
	if err != nil {
		return apperrors.GeneralError(err)
	}
	if jobs == nil {
		jobs = []*jobstore.Job{}
	}

	h.writeJSON(w, http.StatusOK, jobs)
	return nil
}

func (h *HTTP) getRelayAddress(w http.ResponseWriter, _ *http.Request) error {
	h.writeJSON(w, http.StatusOK, &RelayAddressResponse{Address: h.relay})
	return nil
}

func (h *HTTP) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}
