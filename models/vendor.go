package models

import (
	"database/sql/driver"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type VendorStatus string

const (
	VendorActive      VendorStatus = "active"
	VendorInactive    VendorStatus = "inactive"
	VendorBlacklisted VendorStatus = "blacklisted"
)

type Address struct {
	Street  string `json:"street,omitempty"`
	City    string `json:"city,omitempty"`
	State   string `json:"state,omitempty"`
	ZipCode string `json:"zipCode,omitempty"`
	Country string `json:"country,omitempty"`
}

func (a Address) Value() (driver.Value, error) { return jsonbValue(a) }
func (a *Address) Scan(src any) error         { return jsonbScan(src, a) }

// Сущность Поставщика
type Vendor struct {
	ID        uuid.UUID      `db:"id" json:"id"`
	Name      string         `db:"name" json:"name" validate:"required,max=100"`
	Email     string         `db:"email" json:"email" validate:"required,email"`
	Company   string         `db:"company" json:"company" validate:"required"`
	Phone     string         `db:"phone" json:"phone,omitempty"`
	Address   Address        `db:"address" json:"address"`
	Category  Category       `db:"category" json:"category" validate:"required,oneof=Technology Marketing Consulting Manufacturing Services Other"`
	Status    VendorStatus   `db:"status" json:"status" validate:"required,oneof=active inactive blacklisted"`
	Rating    float64        `db:"rating" json:"rating" validate:"gte=0,lte=5"`
	Notes     string         `db:"notes" json:"notes,omitempty" validate:"max=1000"`
	Tags      pq.StringArray `db:"tags" json:"tags"`
	CreatedAt time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time      `db:"updated_at" json:"updatedAt"`
}

// Normalize приводит поля к виду, в котором они хранятся:
// email в нижнем регистре, пустые перечисления заменяются значениями по умолчанию.
func (v *Vendor) Normalize() {
	v.Name = strings.TrimSpace(v.Name)
	v.Email = strings.ToLower(strings.TrimSpace(v.Email))
	v.Company = strings.TrimSpace(v.Company)
	v.Phone = strings.TrimSpace(v.Phone)
	if v.Category == "" {
		v.Category = CategoryOther
	}
	if v.Status == "" {
		v.Status = VendorActive
	}
	if v.Address.Country == "" {
		v.Address.Country = "USA"
	}
	v.Tags = trimTags(v.Tags)
}

func (v *Vendor) Validate() []FieldError {
	return validateStruct(v)
}

// VendorRef краткое представление поставщика внутри RFP и предложений
type VendorRef struct {
	ID       uuid.UUID `db:"id" json:"id"`
	Name     string    `db:"name" json:"name"`
	Email    string    `db:"email" json:"email,omitempty"`
	Company  string    `db:"company" json:"company,omitempty"`
	Category Category  `db:"category" json:"category,omitempty"`
	Phone    string    `db:"phone" json:"phone,omitempty"`
	Rating   *float64  `db:"rating" json:"rating,omitempty"`
}

func (v *Vendor) Ref() *VendorRef {
	rating := v.Rating
	return &VendorRef{
		ID:       v.ID,
		Name:     v.Name,
		Email:    v.Email,
		Company:  v.Company,
		Category: v.Category,
		Phone:    v.Phone,
		Rating:   &rating,
	}
}

type VendorFilter struct {
	Search   string
	Category string
	Status   string
	Sort     Sort
}

type VendorStats struct {
	Total      int            `json:"total"`
	Active     int            `json:"active"`
	Inactive   int            `json:"inactive"`
	ByCategory map[string]int `json:"byCategory"`
}

func trimTags(tags []string) pq.StringArray {
	out := pq.StringArray{}
	for _, t := range tags {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}
