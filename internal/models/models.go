package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ID is an opaque catalog identifier. The remote sheet emits numbers while the
// UI sends strings, so both decode to the same decimal string token.
type ID string

// UnmarshalJSON accepts a JSON string or a JSON number
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*id = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(strings.TrimSpace(s))
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id %s: %w", string(data), err)
	}
	*id = ID(canonicalNumber(n))
	return nil
}

// canonicalNumber renders integral numbers in plain decimal so 1, 1.0 and
// 1e0 name the same product. Other numbers keep their source text.
func canonicalNumber(n json.Number) string {
	if i, err := n.Int64(); err == nil {
		return strconv.FormatInt(i, 10)
	}
	f, err := n.Float64()
	if err != nil || f != math.Trunc(f) || math.Abs(f) >= 1<<53 {
		return n.String()
	}
	return strconv.FormatInt(int64(f), 10)
}

func (id ID) String() string {
	return string(id)
}

// Product represents a beverage in the catalog
type Product struct {
	ID          ID       `json:"id"`
	Name        string   `json:"name"`
	Price       int64    `json:"price"`
	Category    string   `json:"category"`
	Volume      string   `json:"volume"`
	Image       string   `json:"image,omitempty"`
	IsNew       bool     `json:"isNew"`
	IsSale      bool     `json:"isSale"`
	IsPopular   bool     `json:"isPopular"`
	Rating      float64  `json:"rating"`
	Description string   `json:"description"`
	Tags        []string `json:"tags"`
}

// Service represents a paid add-on such as gift wrapping
type Service struct {
	ID    ID     `json:"id"`
	Name  string `json:"name"`
	Price int64  `json:"price"`
}

// CartLine is a cart item with a snapshot of the product taken when it was added
type CartLine struct {
	ProductID ID     `json:"productId"`
	Quantity  int    `json:"quantity"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Volume    string `json:"volume"`
	Image     string `json:"image,omitempty"`
}

// Total returns price times quantity
func (l CartLine) Total() int64 {
	return l.Price * int64(l.Quantity)
}

// WishlistEntry is a saved product snapshot
type WishlistEntry struct {
	ProductID ID     `json:"productId"`
	Name      string `json:"name"`
	Price     int64  `json:"price"`
	Volume    string `json:"volume"`
	Image     string `json:"image,omitempty"`
}

// DeliveryOption values match what the order sheet expects
type DeliveryOption string

const (
	DeliveryPickup DeliveryOption = "none"
	DeliveryZoneA  DeliveryOption = "iskateli"
	DeliveryZoneB  DeliveryOption = "naryan-mar"
)

// ExactTimeCost is the surcharge for an exact delivery time window
const ExactTimeCost int64 = 10

var deliveryBaseCost = map[DeliveryOption]int64{
	DeliveryPickup: 0,
	DeliveryZoneA:  15,
	DeliveryZoneB:  50,
}

// Valid reports whether d is a known delivery option
func (d DeliveryOption) Valid() bool {
	_, ok := deliveryBaseCost[d]
	return ok
}

// BaseCost returns the zone price without add-ons
func (d DeliveryOption) BaseCost() int64 {
	return deliveryBaseCost[d]
}

// RequiresAddress is true for every option except pickup
func (d DeliveryOption) RequiresAddress() bool {
	return d != DeliveryPickup
}

// Delivery is the step-2 selection
type Delivery struct {
	Option    DeliveryOption `json:"option"`
	Address   string         `json:"address"`
	ExactTime bool           `json:"exactTime"`
}

// Cost returns the zone price plus the exact-time surcharge when requested
func (d Delivery) Cost() int64 {
	cost := d.Option.BaseCost()
	if d.ExactTime {
		cost += ExactTimeCost
	}
	return cost
}

// PaymentMethod is settled on receipt; the service never charges
type PaymentMethod string

const (
	PaymentCash         PaymentMethod = "cash"
	PaymentBankTransfer PaymentMethod = "bank_transfer"
)

// Valid reports whether p is a known payment method
func (p PaymentMethod) Valid() bool {
	return p == PaymentCash || p == PaymentBankTransfer
}

// User is the authenticated-user snapshot handed over by the chat platform
type User struct {
	ID          int64  `json:"id"`
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name,omitempty"`
	Username    string `json:"username,omitempty"`
	PhoneNumber string `json:"phone_number,omitempty"`
	PhotoURL    string `json:"photo_url,omitempty"`
}

// DisplayName joins first and last name
func (u *User) DisplayName() string {
	if u == nil {
		return ""
	}
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// OrderDraft is the immutable order snapshot built at submission time.
// Field names follow the createOrder body of the remote endpoint.
type OrderDraft struct {
	UserID          string         `json:"userId"`
	UserName        string         `json:"userName"`
	UserPhone       string         `json:"userPhone"`
	Items           []CartLine     `json:"items"`
	DeliveryOption  DeliveryOption `json:"deliveryOption"`
	DeliveryAddress string         `json:"deliveryAddress"`
	DeliveryCost    int64          `json:"deliveryCost"`
	ExactTime       bool           `json:"exactTime"`
	ExactTimeCost   int64          `json:"exactTimeCost"`
	PaymentMethod   PaymentMethod  `json:"paymentMethod"`
	Services        []Service      `json:"services"`
	TotalAmount     int64          `json:"totalAmount"`
	Timestamp       time.Time      `json:"timestamp"`
}

// OrderStatus values are assigned by the external order-tracking sync
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusConfirmed OrderStatus = "confirmed"
	OrderStatusPreparing OrderStatus = "preparing"
	OrderStatusReady     OrderStatus = "ready"
	OrderStatusDelivered OrderStatus = "delivered"
	OrderStatusCancelled OrderStatus = "cancelled"
)

// Valid reports whether s is a known order status
func (s OrderStatus) Valid() bool {
	switch s {
	case OrderStatusPending, OrderStatusConfirmed, OrderStatusPreparing,
		OrderStatusReady, OrderStatusDelivered, OrderStatusCancelled:
		return true
	}
	return false
}

// SubmittedOrder is a ledger entry
type SubmittedOrder struct {
	OrderDraft
	ID            string      `json:"id"`
	RemoteOrderID string      `json:"remoteOrderId"`
	SubmittedAt   time.Time   `json:"submittedAt"`
	Status        OrderStatus `json:"status"`
}

// ActionKind names the type of a queued offline action
type ActionKind string

const ActionKindOrder ActionKind = "order"

// QueuedAction is an order waiting for connectivity
type QueuedAction struct {
	ID         string     `json:"id"`
	Kind       ActionKind `json:"kind"`
	Payload    OrderDraft `json:"payload"`
	Reference  string     `json:"reference"`
	EnqueuedAt time.Time  `json:"enqueuedAt"`
}

// CacheEntry is a persisted catalog payload
type CacheEntry struct {
	Key       string          `json:"key"`
	Payload   json.RawMessage `json:"payload"`
	FetchedAt time.Time       `json:"fetchedAt"`
	TTL       time.Duration   `json:"ttl"`
}

// Fresh reports whether the entry is still inside its TTL at now
func (e *CacheEntry) Fresh(now time.Time) bool {
	return now.Sub(e.FetchedAt) < e.TTL
}

// Subscription is the loyalty club record
type Subscription struct {
	Active    bool      `json:"active"`
	ExpiresOn time.Time `json:"expiresOn"`
}

// EntityKind names a catalog list
type EntityKind string

const (
	KindProducts EntityKind = "products"
	KindServices EntityKind = "services"
)

// Provenance marks how trustworthy a returned catalog payload is
type Provenance string

const (
	ProvenanceFresh Provenance = "fresh"
	ProvenanceStale Provenance = "stale"
	ProvenanceDemo  Provenance = "demo"
)
