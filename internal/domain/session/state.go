// internal/domain/session/state.go
package session

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/your-org/storefront/internal/domain/checkout"
)

const stateVersion = 1

// State is the per-browser-session data: who owns the cart and the draft
// order awaiting payment. It is passed explicitly to the services that need it.
type State struct {
	OwnerKey string
	Draft    *checkout.Draft

	dirty bool
}

// SetOwnerKey replaces the cart owner key
func (s *State) SetOwnerKey(key string) {
	if s.OwnerKey == key {
		return
	}
	s.OwnerKey = key
	s.dirty = true
}

// SetDraft stores a draft order pending payment
func (s *State) SetDraft(d *checkout.Draft) {
	s.Draft = d
	s.dirty = true
}

// ClearDraft drops the pending draft
func (s *State) ClearDraft() {
	if s.Draft == nil {
		return
	}
	s.Draft = nil
	s.dirty = true
}

// MarkDirty flags the state for saving after an in-place change to Draft
func (s *State) MarkDirty() {
	s.dirty = true
}

// Dirty reports whether the state changed since it was loaded
func (s *State) Dirty() bool {
	return s.dirty
}

type wireState struct {
	Version  int        `json:"v"`
	OwnerKey string     `json:"owner_key,omitempty"`
	Draft    *wireDraft `json:"draft,omitempty"`
}

type wireDraft struct {
	FirstName  string `json:"first_name"`
	LastName   string `json:"last_name"`
	Address    string `json:"address"`
	City       string `json:"city"`
	Province   string `json:"province"`
	PostalCode string `json:"postal_code"`
	Phone      string `json:"phone"`
	OrderDate  string `json:"order_date"`
	UserID     string `json:"user_id"`
	Total      string `json:"total"`
	ChargeKey  string `json:"charge_key"`
}

// Encode serializes the state for the session store
func (s *State) Encode() ([]byte, error) {
	w := wireState{Version: stateVersion, OwnerKey: s.OwnerKey}
	if d := s.Draft; d != nil {
		w.Draft = &wireDraft{
			FirstName:  d.Shipping.FirstName,
			LastName:   d.Shipping.LastName,
			Address:    d.Shipping.Address,
			City:       d.Shipping.City,
			Province:   d.Shipping.Province,
			PostalCode: d.Shipping.PostalCode,
			Phone:      d.Shipping.Phone,
			OrderDate:  d.OrderDate.UTC().Format(time.RFC3339Nano),
			UserID:     d.UserID,
			Total:      d.Total.String(),
			ChargeKey:  d.ChargeKey,
		}
	}
	return json.Marshal(w)
}

// Decode parses data produced by Encode
func Decode(data []byte) (*State, error) {
	var w wireState
	if err := json.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("decode session state: %w", err)
	}
	if w.Version != stateVersion {
		return nil, fmt.Errorf("decode session state: unsupported version %d", w.Version)
	}

	state := &State{OwnerKey: w.OwnerKey}
	if wd := w.Draft; wd != nil {
		orderDate, err := time.Parse(time.RFC3339Nano, wd.OrderDate)
		if err != nil {
			return nil, fmt.Errorf("decode session state: order date: %w", err)
		}
		total, err := decimal.NewFromString(wd.Total)
		if err != nil {
			return nil, fmt.Errorf("decode session state: total: %w", err)
		}
		if wd.ChargeKey == "" {
			return nil, fmt.Errorf("decode session state: draft without charge key")
		}
		state.Draft = &checkout.Draft{
			Shipping: checkout.ShippingFields{
				FirstName:  wd.FirstName,
				LastName:   wd.LastName,
				Address:    wd.Address,
				City:       wd.City,
				Province:   wd.Province,
				PostalCode: wd.PostalCode,
				Phone:      wd.Phone,
			},
			OrderDate: orderDate,
			UserID:    wd.UserID,
			Total:     total,
			ChargeKey: wd.ChargeKey,
		}
	}
	return state, nil
}
