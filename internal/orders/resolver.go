package orders

import (
	"context"
	"fmt"
)

type CustomerInput struct {
	FullName    string `json:"fullName" validate:"required"`
	Email       string `json:"email" validate:"required,email"`
	Phone       string `json:"phone" validate:"required"`
	CountryCode string `json:"countryCode" validate:"required"`
}

// CustomerResolver deduplicates customers on (phone, countryCode).
type CustomerResolver struct {
	Store CustomerStore
}

// Resolve finds or creates the customer. A repeat booking with the same phone keeps the
// stored name and country code and only refreshes the email.
func (r *CustomerResolver) Resolve(ctx context.Context, in CustomerInput) (Customer, error) {
	found, err := r.Store.FindCustomers(ctx, in.Phone, in.CountryCode)
	if err != nil {
		return Customer{}, fmt.Errorf("find customer: %w", err)
	}
	if len(found) == 0 {
		c, err := r.Store.CreateCustomer(ctx, Customer{
			FullName:    in.FullName,
			Email:       in.Email,
			Phone:       in.Phone,
			CountryCode: in.CountryCode,
		})
		if err != nil {
			return Customer{}, fmt.Errorf("create customer: %w", err)
		}
		return c, nil
	}

	c := found[0]
	if c.Phone != in.Phone {
		return c, nil
	}
	updated, err := r.Store.UpdateCustomerEmail(ctx, c.ID, in.Email)
	if err != nil {
		return Customer{}, fmt.Errorf("update customer email: %w", err)
	}
	return updated, nil
}
