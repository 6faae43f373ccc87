package workflow

import (
	"encoding/json"
	"strings"

	"negofactory/internal/history"
	"negofactory/internal/nego"
	"negofactory/internal/refdata"
)

// Request is one user turn as submitted by the front end, plus the
// fields the orchestrator resolves before dispatch.
type Request struct {
	TenantID                string                 `json:"tenant_id"`
	ChatID                  string                 `json:"chat_id"`
	Category                string                 `json:"category"`
	UserQuery               string                 `json:"user_query"`
	Intent                  string                 `json:"intent"`
	BeforeUpdateRequestType string                 `json:"before_update_request_type"`
	Pinned                  *nego.PinnedElements   `json:"pinned_elements"`
	Selected                *nego.SelectedElements `json:"selected_elements"`
	SKUs                    []nego.SKU             `json:"skus"`
	RawReferenceData        json.RawMessage        `json:"reference_data"`
	Round                   int                    `json:"current_round"`

	// Resolved by the orchestrator, never submitted.
	Reference *refdata.Data  `json:"-"`
	History   []history.Turn `json:"-"`
	Currency  string         `json:"-"`
}

// Decode parses a turn request and applies defaults.
func Decode(raw []byte) (*Request, error) {
	var req Request
	if err := json.Unmarshal(raw, &req); err != nil {
		return nil, err
	}
	req.ApplyDefaults()
	return &req, nil
}

func (r *Request) ApplyDefaults() {
	if r.Round <= 0 {
		r.Round = 1
	}
	if r.Pinned == nil {
		r.Pinned = &nego.PinnedElements{}
	}
	if r.Currency == "" {
		r.Currency = nego.PreferredCurrency(r.TenantID)
	}
	r.Intent = strings.TrimSpace(r.Intent)
}

// SKUNames returns the names of the SKUs in scope for the turn, the
// explicit list winning over the pinned one.
func (r *Request) SKUNames() []string {
	if len(r.SKUs) > 0 {
		names := make([]string, 0, len(r.SKUs))
		for _, s := range r.SKUs {
			names = append(names, s.Name)
		}
		return names
	}
	return r.Pinned.SKUNames()
}

// SupplierName resolves the supplier in play: a turn-level override
// first, then the pinned profile.
func (r *Request) SupplierName() string {
	if r.Pinned != nil && r.Pinned.SupplierName != "" {
		return r.Pinned.SupplierName
	}
	if r.Pinned != nil && r.Pinned.SupplierProfile != nil {
		return r.Pinned.SupplierProfile.SupplierName
	}
	return ""
}

// LastResponseType is the response type of the most recent model turn.
func (r *Request) LastResponseType() string {
	for i := len(r.History) - 1; i >= 0; i-- {
		if r.History[i].Role != "user" && r.History[i].ResponseType != "" {
			return r.History[i].ResponseType
		}
	}
	return ""
}
