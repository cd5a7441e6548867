package models_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/Shreyansh0843/rfp-system/models"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func TestRFPStatusTransitions(t *testing.T) {
	cases := []struct {
		from, to models.RFPStatus
		ok       bool
	}{
		{models.RFPDraft, models.RFPPublished, true},
		{models.RFPDraft, models.RFPSent, true},
		{models.RFPPublished, models.RFPSent, true},
		{models.RFPSent, models.RFPAwarded, true},
		{models.RFPSent, models.RFPCancelled, true},
		{models.RFPSent, models.RFPSent, true},
		{models.RFPPublished, models.RFPDraft, false},
		{models.RFPSent, models.RFPPublished, false},
		{models.RFPClosed, models.RFPSent, false},
		{models.RFPAwarded, models.RFPDraft, false},
		{models.RFPClosed, models.RFPAwarded, false},
		{models.RFPDraft, models.RFPStatus("archived"), false},
	}
	for _, c := range cases {
		require.Equal(t, c.ok, c.from.CanTransitionTo(c.to), "%s -> %s", c.from, c.to)
	}
}

func TestRFPAcceptsProposals(t *testing.T) {
	require.True(t, models.RFPDraft.AcceptsProposals())
	require.True(t, models.RFPSent.AcceptsProposals())
	require.False(t, models.RFPClosed.AcceptsProposals())
	require.False(t, models.RFPAwarded.AcceptsProposals())
}

func TestDateUnmarshal(t *testing.T) {
	var v struct {
		Deadline models.Date `json:"deadline"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"deadline":"2030-05-01"}`), &v))
	require.Equal(t, 2030, v.Deadline.Year())
	require.False(t, v.Deadline.Malformed())

	require.NoError(t, json.Unmarshal([]byte(`{"deadline":"2030-05-01T10:00:00Z"}`), &v))
	require.Equal(t, 10, v.Deadline.Hour())

	require.NoError(t, json.Unmarshal([]byte(`{"deadline":"next tuesday"}`), &v))
	require.True(t, v.Deadline.Malformed())
	require.True(t, v.Deadline.IsZero())

	out, err := json.Marshal(models.Date{})
	require.NoError(t, err)
	require.Equal(t, "null", string(out))
}

func TestVendorNormalizeAndValidate(t *testing.T) {
	v := &models.Vendor{Name: " Acme ", Email: " A@Acme.COM ", Company: "Acme Co"}
	v.Normalize()
	require.Equal(t, "a@acme.com", v.Email)
	require.Equal(t, models.CategoryOther, v.Category)
	require.Equal(t, models.VendorActive, v.Status)
	require.Equal(t, "USA", v.Address.Country)
	require.Empty(t, v.Validate())

	bad := &models.Vendor{Email: "not-an-email", Rating: 7, Category: "Food", Status: models.VendorActive}
	errs := bad.Validate()
	fields := map[string]string{}
	for _, e := range errs {
		fields[e.Field] = e.Message
	}
	require.Equal(t, "Name is required", fields["name"])
	require.Equal(t, "Invalid email format", fields["email"])
	require.Equal(t, "Company is required", fields["company"])
	require.Contains(t, fields, "category")
	require.Contains(t, fields, "rating")
}

func TestRFPValidate(t *testing.T) {
	r := &models.RFP{
		Title:       "Laptops",
		Description: "Fifty laptops",
		Category:    models.CategoryTechnology,
		Deadline:    models.NewDate(time.Now().Add(72 * time.Hour)),
		Budget:      models.Budget{Min: decimal.NewFromInt(10), Max: decimal.NewFromInt(5)},
	}
	r.Normalize()
	errs := r.Validate()
	require.Len(t, errs, 1)
	require.Equal(t, "budget.max", errs[0].Field)

	r.Budget.Max = decimal.NewFromInt(50)
	r.Requirements = models.Requirements{{Title: "RAM", Priority: "critical"}}
	errs = r.Validate()
	require.Len(t, errs, 1)
	require.Equal(t, "requirements[0].priority", errs[0].Field)

	empty := &models.RFP{Status: models.RFPDraft}
	fields := map[string]bool{}
	for _, e := range empty.Validate() {
		fields[e.Field] = true
	}
	require.True(t, fields["title"])
	require.True(t, fields["description"])
	require.True(t, fields["category"])
	require.True(t, fields["deadline"])
}

func TestProposalValidateRequiresTotalAmount(t *testing.T) {
	p := &models.Proposal{Title: "P1", ExecutiveSummary: "S"}
	p.Normalize()
	fields := map[string]bool{}
	for _, e := range p.Validate() {
		fields[e.Field] = true
	}
	require.True(t, fields["rfpId"])
	require.True(t, fields["vendorId"])
	require.True(t, fields["pricing.totalAmount"])
	require.Equal(t, models.ProposalSubmitted, p.Status)
}

func TestPricingJSONRoundsAsNumber(t *testing.T) {
	var p models.Pricing
	require.NoError(t, json.Unmarshal([]byte(`{"totalAmount":1000.5}`), &p))
	require.True(t, p.Amount().Equal(decimal.RequireFromString("1000.5")))
	out, err := json.Marshal(p)
	require.NoError(t, err)
	require.Contains(t, string(out), `"totalAmount":1000.5`)
}

func TestNewPagination(t *testing.T) {
	p := models.NewPagination(models.Page{Number: 2, Limit: 10}, 15)
	require.Equal(t, models.Pagination{Current: 2, Pages: 2, Total: 15, Limit: 10}, p)
	require.Equal(t, 10, models.Page{Number: 2, Limit: 10}.Offset())
	require.Equal(t, 0, models.NewPagination(models.Page{Number: 1, Limit: 10}, 0).Pages)
}

func TestParseCategory(t *testing.T) {
	require.Equal(t, models.CategoryMarketing, models.ParseCategory("marketing"))
	require.Equal(t, models.CategoryOther, models.ParseCategory("Gardening"))
}
