package models

import (
	"time"

	"github.com/go-playground/validator/v10"
)

// OrphanedPayment stores a payment-related event that could not be correlated
// to a subscription. All checkout links must carry a client_reference_id; if
// the checkout.session.completed event arrives without a usable subscription
// id, the raw event is stashed here for manual reconciliation. Rows are
// append-only and retained indefinitely -- never leave a paying customer
// behind.
type OrphanedPayment struct {
	ID               uint      `gorm:"primaryKey" json:"id"`
	StripeCustomerID string    `gorm:"type:varchar(191);default:''" json:"stripe_customer_id"`
	CustomerEmail    string    `gorm:"type:varchar(200);default:''" json:"customer_email" validate:"omitempty,email"`
	Event            string    `gorm:"type:longtext;not null" json:"event"`
	Reason           string    `gorm:"type:varchar(255);default:''" json:"reason"`
	DtCreated        time.Time `gorm:"autoCreateTime;index" json:"dt_created"`
	DtLastUpdated    time.Time `gorm:"autoUpdateTime" json:"dt_last_updated"`
}

func (o *OrphanedPayment) Validate() error {
	v := validator.New()

	return v.Struct(o)
}
