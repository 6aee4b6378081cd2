package pricing

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/aravindkp/shopsphere-backend/pkg/db/models"
	"github.com/aravindkp/shopsphere-backend/pkg/enums"
	pkgerrors "github.com/aravindkp/shopsphere-backend/pkg/errors"
)

var now = time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)

func activeWindow() (time.Time, time.Time) {
	return now.Add(-time.Hour), now.Add(time.Hour)
}

func offer(scope enums.OfferScope, target uuid.UUID, percent int) models.Offer {
	start, end := activeWindow()
	return models.Offer{
		ID:              uuid.New(),
		Scope:           scope,
		TargetID:        target,
		DiscountPercent: percent,
		StartAt:         start,
		EndAt:           end,
		IsEnabled:       true,
	}
}

func TestResolveProductOfferBeatsCategory(t *testing.T) {
	productID := uuid.New()
	categoryID := uuid.New()

	quote, err := Resolve(Input{
		Lines: []Line{{
			ProductID:      productID,
			VariantID:      uuid.New(),
			CategoryID:     categoryID,
			Quantity:       2,
			BasePricePaise: 100000,
		}},
		Offers: []models.Offer{
			offer(enums.OfferScopeProduct, productID, 10),
			offer(enums.OfferScopeCategory, categoryID, 5),
		},
		Now: now,
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	line := quote.Lines[0]
	if line.OfferPercent != 10 {
		t.Fatalf("expected product offer to win, got %d%%", line.OfferPercent)
	}
	if line.FinalUnitPricePaise != 90000 {
		t.Fatalf("expected final unit price 90000, got %d", line.FinalUnitPricePaise)
	}
	if line.TotalPaise != 180000 {
		t.Fatalf("expected line total 180000, got %d", line.TotalPaise)
	}
	if quote.SubtotalPaise != 180000 {
		t.Fatalf("expected subtotal 180000, got %d", quote.SubtotalPaise)
	}
}

func TestResolveProductWinsPercentTie(t *testing.T) {
	productID := uuid.New()
	categoryID := uuid.New()

	quote, err := Resolve(Input{
		Lines: []Line{{
			ProductID:      productID,
			CategoryID:     categoryID,
			Quantity:       1,
			BasePricePaise: 10000,
		}},
		Offers: []models.Offer{
			offer(enums.OfferScopeCategory, categoryID, 10),
			offer(enums.OfferScopeProduct, productID, 10),
		},
		Now: now,
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if quote.Lines[0].OfferPercent != 10 {
		t.Fatalf("expected 10%% offer, got %d%%", quote.Lines[0].OfferPercent)
	}
	if quote.Lines[0].OfferDiscountPerUnitPaise != 1000 {
		t.Fatalf("expected 1000 off per unit, got %d", quote.Lines[0].OfferDiscountPerUnitPaise)
	}
}

func TestResolveIgnoresIneligibleOffers(t *testing.T) {
	productID := uuid.New()

	expired := offer(enums.OfferScopeProduct, productID, 40)
	expired.EndAt = now.Add(-time.Minute)
	disabled := offer(enums.OfferScopeProduct, productID, 30)
	disabled.IsEnabled = false

	quote, err := Resolve(Input{
		Lines: []Line{{
			ProductID:      productID,
			Quantity:       1,
			BasePricePaise: 5000,
		}},
		Offers: []models.Offer{expired, disabled},
		Now:    now,
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if quote.Lines[0].OfferPercent != 0 {
		t.Fatalf("expected no offer, got %d%%", quote.Lines[0].OfferPercent)
	}
	if quote.SubtotalPaise != 5000 {
		t.Fatalf("expected subtotal 5000, got %d", quote.SubtotalPaise)
	}
}

func TestResolveFlatCouponDistributesProportionally(t *testing.T) {
	coupon := &models.Coupon{
		Code:      "SAVE300",
		Type:      enums.CouponTypeFlat,
		Value:     30000,
		StartAt:   now.Add(-time.Hour),
		ExpiresAt: now.Add(time.Hour),
		IsEnabled: true,
	}

	quote, err := Resolve(Input{
		Lines: []Line{
			{ProductID: uuid.New(), Quantity: 1, BasePricePaise: 60000},
			{ProductID: uuid.New(), Quantity: 2, BasePricePaise: 60000},
		},
		Coupon: coupon,
		Now:    now,
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	if quote.CouponDiscountPaise != 30000 {
		t.Fatalf("expected coupon discount 30000, got %d", quote.CouponDiscountPaise)
	}
	if quote.Lines[0].CouponSharePaise != 10000 {
		t.Fatalf("expected first line share 10000, got %d", quote.Lines[0].CouponSharePaise)
	}
	if quote.Lines[1].CouponSharePaise != 20000 {
		t.Fatalf("expected second line share 20000, got %d", quote.Lines[1].CouponSharePaise)
	}
}

func TestResolveCouponShareRoundingTolerance(t *testing.T) {
	coupon := &models.Coupon{
		Code:      "ODD",
		Type:      enums.CouponTypeFlat,
		Value:     10001,
		StartAt:   now.Add(-time.Hour),
		ExpiresAt: now.Add(time.Hour),
		IsEnabled: true,
	}

	lines := []Line{
		{ProductID: uuid.New(), Quantity: 1, BasePricePaise: 33333},
		{ProductID: uuid.New(), Quantity: 1, BasePricePaise: 33333},
		{ProductID: uuid.New(), Quantity: 1, BasePricePaise: 33334},
	}

	quote, err := Resolve(Input{Lines: lines, Coupon: coupon, Now: now})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}

	sum := 0
	for _, line := range quote.Lines {
		sum += line.CouponSharePaise
	}
	diff := sum - quote.CouponDiscountPaise
	if diff < 0 {
		diff = -diff
	}
	if diff > len(lines) {
		t.Fatalf("share sum %d drifted more than %d paise from %d", sum, len(lines), quote.CouponDiscountPaise)
	}
}

func TestResolvePercentageCouponRespectsCap(t *testing.T) {
	cap := 5000
	coupon := &models.Coupon{
		Code:             "TEN",
		Type:             enums.CouponTypePercentage,
		Value:            10,
		MaxDiscountPaise: &cap,
		StartAt:          now.Add(-time.Hour),
		ExpiresAt:        now.Add(time.Hour),
		IsEnabled:        true,
	}

	quote, err := Resolve(Input{
		Lines:  []Line{{ProductID: uuid.New(), Quantity: 1, BasePricePaise: 100000}},
		Coupon: coupon,
		Now:    now,
	})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if quote.CouponDiscountPaise != 5000 {
		t.Fatalf("expected capped discount 5000, got %d", quote.CouponDiscountPaise)
	}
}

func TestResolveCouponRejections(t *testing.T) {
	base := models.Coupon{
		Code:             "SAVE",
		Type:             enums.CouponTypeFlat,
		Value:            5000,
		MinPurchasePaise: 200000,
		StartAt:          now.Add(-time.Hour),
		ExpiresAt:        now.Add(time.Hour),
		IsEnabled:        true,
	}

	cases := []struct {
		name     string
		mutate   func(c *models.Coupon)
		redeemed bool
	}{
		{name: "below minimum purchase", mutate: func(c *models.Coupon) {}},
		{name: "expired", mutate: func(c *models.Coupon) {
			c.MinPurchasePaise = 0
			c.ExpiresAt = now.Add(-time.Minute)
		}},
		{name: "not started", mutate: func(c *models.Coupon) {
			c.MinPurchasePaise = 0
			c.StartAt = now.Add(time.Minute)
		}},
		{name: "disabled", mutate: func(c *models.Coupon) {
			c.MinPurchasePaise = 0
			c.IsEnabled = false
		}},
		{name: "already redeemed", mutate: func(c *models.Coupon) {
			c.MinPurchasePaise = 0
		}, redeemed: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			coupon := base
			tc.mutate(&coupon)

			_, err := Resolve(Input{
				Lines:          []Line{{ProductID: uuid.New(), Quantity: 1, BasePricePaise: 100000}},
				Coupon:         &coupon,
				CouponRedeemed: tc.redeemed,
				Now:            now,
			})
			if err == nil {
				t.Fatal("expected coupon rejection")
			}
			coded := pkgerrors.As(err)
			if coded == nil || coded.Code() != pkgerrors.CodeCouponInvalid {
				t.Fatalf("expected COUPON_INVALID, got %v", err)
			}
		})
	}
}

func TestResolveNoLines(t *testing.T) {
	quote, err := Resolve(Input{Now: now})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if quote.SubtotalPaise != 0 || len(quote.Lines) != 0 {
		t.Fatalf("expected empty quote, got %+v", quote)
	}
}
