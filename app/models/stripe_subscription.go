package models

import (
	"encoding/json"
	"time"

	"github.com/go-playground/validator/v10"
)

// Well-known Stripe webhook event types handled by this service.
const (
	EventCustomerSubscriptionCreated = "customer.subscription.created"
	EventCustomerSubscriptionUpdated = "customer.subscription.updated"
	EventCheckoutSessionCompleted    = "checkout.session.completed"
)

// MetadataKeyLastRenewed is the synthetic metadata key stamped when a renewal
// is detected (a previously scheduled cancellation was rescinded).
const MetadataKeyLastRenewed = "litestripe.stripesubscription.last_renewed"

// StripeSubscription is the reconciled projection of a Stripe subscription's
// lifecycle. Rows are created on first sight of a subscription id and filled
// incrementally as events arrive; fields absent from a later event never
// blank out previously stored values.
type StripeSubscription struct {
	ID                   uint       `gorm:"primaryKey" json:"id"`
	StripeSubscriptionID string     `gorm:"type:varchar(191);not null;uniqueIndex:ux_stripe_subscriptions_sub_id" json:"stripe_subscription_id" validate:"required"`
	StripeCustomerID     string     `gorm:"type:varchar(191);default:'';index" json:"stripe_customer_id"`
	ClientReferenceID    string     `gorm:"type:varchar(191);default:''" json:"client_reference_id"`
	Created              *time.Time `gorm:"type:timestamp;default:null" json:"created,omitempty"`
	StartDate            *time.Time `gorm:"type:timestamp;default:null" json:"start_date,omitempty"`
	CancelAt             *time.Time `gorm:"type:timestamp;default:null" json:"cancel_at,omitempty"`
	CancelledAt          *time.Time `gorm:"type:timestamp;default:null" json:"cancelled_at,omitempty"`
	CancelAtPeriodEnd    *bool      `gorm:"default:null" json:"cancel_at_period_end,omitempty"`
	Status               string     `gorm:"type:varchar(64);default:'';index" json:"status"`
	Metadata             string     `gorm:"type:longtext" json:"metadata"`
	DtCreated            time.Time  `gorm:"autoCreateTime" json:"dt_created"`
	DtLastUpdated        time.Time  `gorm:"autoUpdateTime" json:"dt_last_updated"`
}

func (s *StripeSubscription) Validate() error {
	v := validator.New()

	return v.Struct(s)
}

// GetMetadata parses the metadata column as JSON. An empty column yields an
// empty map, never an error.
func (s *StripeSubscription) GetMetadata() map[string]any {
	if s.Metadata == "" {
		return map[string]any{}
	}
	data := map[string]any{}
	if err := json.Unmarshal([]byte(s.Metadata), &data); err != nil {
		return map[string]any{}
	}
	return data
}

// SetMetadata writes one key into the metadata column, overwriting any prior
// value at that exact key only. Keys are never deleted.
func (s *StripeSubscription) SetMetadata(key string, value any) {
	data := s.GetMetadata()
	data[key] = value
	raw, err := json.Marshal(data)
	if err != nil {
		return
	}
	s.Metadata = string(raw)
}

// GetMetadataKey retrieves a single metadata value; the second return reports
// whether the key exists.
func (s *StripeSubscription) GetMetadataKey(key string) (any, bool) {
	v, ok := s.GetMetadata()[key]
	return v, ok
}
