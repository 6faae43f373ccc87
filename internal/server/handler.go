package server

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"

	"negofactory/internal/envelope"
	"negofactory/internal/refdata"
	"negofactory/internal/workflow"
)

const maxTurnBody = 1 << 20 // 1 MiB

// Handler routes negotiation traffic onto the orchestrator. The
// reference loader is optional; when wired it backfills tenant
// reference data for turns that do not carry their own.
type Handler struct {
	orch      *workflow.Orchestrator
	reference *refdata.Loader
	logger    *log.Logger
	locks     *chatLocks
}

func NewHandler(orch *workflow.Orchestrator, reference *refdata.Loader, logger *log.Logger) *Handler {
	if logger == nil {
		logger = log.Default()
	}
	return &Handler{
		orch:      orch,
		reference: reference,
		logger:    logger,
		locks:     newChatLocks(),
	}
}

// Routes builds the service mux.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /v1/negotiation/turn", h.handleTurn)
	mux.HandleFunc("GET /v1/negotiation/ws", h.handleWS)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	return mux
}

func (h *Handler) handleTurn(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxTurnBody))
	if err != nil {
		http.Error(w, "request body too large or unreadable", http.StatusBadRequest)
		return
	}
	req, err := workflow.Decode(body)
	if err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if req.ChatID == "" {
		http.Error(w, "chat_id is required", http.StatusBadRequest)
		return
	}

	env := h.runTurn(r.Context(), req)
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(env); err != nil {
		h.logger.Printf("server: write turn response for chat %s: %v", req.ChatID, err)
	}
}

// runTurn executes one turn under the chat's lock, loading tenant
// reference data first when the turn did not bring any.
func (h *Handler) runTurn(ctx context.Context, req *workflow.Request) *envelope.Envelope {
	if req.Reference == nil && len(req.RawReferenceData) == 0 && h.reference != nil {
		ref, err := h.reference.Load(ctx, req.TenantID)
		if err != nil {
			h.logger.Printf("server: reference data for tenant %s: %v", req.TenantID, err)
		} else {
			req.Reference = ref
		}
	}

	release := h.locks.acquire(req.ChatID)
	defer release()
	return h.orch.Turn(ctx, req)
}
