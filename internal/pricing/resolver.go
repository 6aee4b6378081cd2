package pricing

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/aravindkp/shopsphere-backend/pkg/db/models"
	"github.com/aravindkp/shopsphere-backend/pkg/enums"
	pkgerrors "github.com/aravindkp/shopsphere-backend/pkg/errors"
)

// Line is one cart line handed to the resolver, priced at the variant's
// purchase-time unit price.
type Line struct {
	ProductID      uuid.UUID
	VariantID      uuid.UUID
	CategoryID     uuid.UUID
	ProductName    string
	Quantity       int
	BasePricePaise int
}

// PricedLine carries the resolved discounts for one line.
type PricedLine struct {
	Line
	OfferPercent              int
	OfferDiscountPerUnitPaise int
	// TotalPaise is the post-offer line total; the coupon share is
	// reported separately so order-level totals never double-count it.
	TotalPaise          int
	CouponSharePaise    int
	DiscountPaise       int
	FinalUnitPricePaise int
}

// Quote is the resolver output for a whole cart.
type Quote struct {
	Lines []PricedLine
	// SubtotalPaise is the post-offer subtotal (coupon not applied).
	SubtotalPaise       int
	CouponDiscountPaise int
	AppliedCouponCode   string
}

// Input bundles everything Resolve needs. Coupon is optional; when set,
// CouponRedeemed says whether this user has already exhausted its
// per-user limit.
type Input struct {
	Lines          []Line
	Offers         []models.Offer
	Coupon         *models.Coupon
	CouponRedeemed bool
	Now            time.Time
}

// Resolve picks the best offer per line, validates the coupon and
// distributes the coupon discount proportionally across post-offer line
// totals. A coupon failure aborts with COUPON_INVALID; callers wanting
// offer-only pricing retry without the coupon.
func Resolve(in Input) (*Quote, error) {
	quote := &Quote{Lines: make([]PricedLine, 0, len(in.Lines))}

	for _, line := range in.Lines {
		priced := PricedLine{Line: line}
		if offer, ok := bestOffer(line, in.Offers, in.Now); ok {
			priced.OfferPercent = offer.DiscountPercent
			priced.OfferDiscountPerUnitPaise = roundHalfUp(line.BasePricePaise*offer.DiscountPercent, 100)
		}
		unitAfterOffer := line.BasePricePaise - priced.OfferDiscountPerUnitPaise
		if unitAfterOffer < 0 {
			unitAfterOffer = 0
		}
		priced.TotalPaise = unitAfterOffer * line.Quantity
		quote.SubtotalPaise += priced.TotalPaise
		quote.Lines = append(quote.Lines, priced)
	}

	if in.Coupon != nil {
		discount, err := couponDiscount(in.Coupon, in.CouponRedeemed, quote.SubtotalPaise, in.Now)
		if err != nil {
			return nil, err
		}
		quote.CouponDiscountPaise = discount
		quote.AppliedCouponCode = in.Coupon.Code
		distributeCoupon(quote)
	}

	for i := range quote.Lines {
		finalizeLine(&quote.Lines[i])
	}

	return quote, nil
}

// bestOffer returns the qualifying offer with the highest percent.
// Product scope wins a percent tie so the pick is deterministic.
func bestOffer(line Line, offers []models.Offer, now time.Time) (models.Offer, bool) {
	var best models.Offer
	found := false
	for _, offer := range offers {
		if !offer.Eligible(now) {
			continue
		}
		switch offer.Scope {
		case enums.OfferScopeProduct:
			if offer.TargetID != line.ProductID {
				continue
			}
		case enums.OfferScopeCategory:
			if offer.TargetID != line.CategoryID {
				continue
			}
		default:
			continue
		}
		if !found ||
			offer.DiscountPercent > best.DiscountPercent ||
			(offer.DiscountPercent == best.DiscountPercent &&
				offer.Scope == enums.OfferScopeProduct && best.Scope == enums.OfferScopeCategory) {
			best = offer
			found = true
		}
	}
	return best, found
}

func couponDiscount(coupon *models.Coupon, redeemed bool, subtotalPaise int, now time.Time) (int, error) {
	invalid := func(reason string) error {
		return pkgerrors.New(pkgerrors.CodeCouponInvalid, fmt.Sprintf("coupon %s %s", coupon.Code, reason)).
			WithDetails(map[string]any{"coupon": coupon.Code})
	}

	if !coupon.IsEnabled {
		return 0, invalid("is disabled")
	}
	if now.Before(coupon.StartAt) {
		return 0, invalid("is not active yet")
	}
	if now.After(coupon.ExpiresAt) {
		return 0, invalid("has expired")
	}
	if redeemed {
		return 0, invalid("was already used")
	}
	if subtotalPaise < coupon.MinPurchasePaise {
		return 0, invalid(fmt.Sprintf("needs a minimum purchase of %d", coupon.MinPurchasePaise))
	}

	var discount int
	switch coupon.Type {
	case enums.CouponTypePercentage:
		discount = subtotalPaise * coupon.Value / 100
	case enums.CouponTypeFlat:
		discount = coupon.Value
	default:
		return 0, invalid("has an unknown discount type")
	}

	if coupon.MaxDiscountPaise != nil && discount > *coupon.MaxDiscountPaise {
		discount = *coupon.MaxDiscountPaise
	}
	if discount > subtotalPaise {
		discount = subtotalPaise
	}
	if discount < 0 {
		discount = 0
	}
	return discount, nil
}

// distributeCoupon splits the coupon discount across lines proportionally
// to their post-offer totals, rounding half up per line. Residual paise
// from rounding are tolerated, never redistributed.
func distributeCoupon(quote *Quote) {
	if quote.CouponDiscountPaise == 0 || quote.SubtotalPaise == 0 {
		return
	}
	for i := range quote.Lines {
		line := &quote.Lines[i]
		line.CouponSharePaise = roundHalfUp(line.TotalPaise*quote.CouponDiscountPaise, quote.SubtotalPaise)
		if line.CouponSharePaise > line.TotalPaise {
			line.CouponSharePaise = line.TotalPaise
		}
	}
}

func finalizeLine(line *PricedLine) {
	line.DiscountPaise = line.OfferDiscountPerUnitPaise*line.Quantity + line.CouponSharePaise
	if line.Quantity <= 0 {
		return
	}
	final := line.BasePricePaise - line.DiscountPaise/line.Quantity
	if final < 0 {
		final = 0
	}
	line.FinalUnitPricePaise = final
}

// roundHalfUp computes round(num/den) for non-negative num and positive den.
func roundHalfUp(num, den int) int {
	return (num + den/2) / den
}
