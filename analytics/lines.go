package analytics

import (
	"github.com/cloudx-io/opentender/core"
	"github.com/cloudx-io/opentender/schema"
	"github.com/cloudx-io/opentender/store"
)

// LineFromRecord maps a priced row of any table onto the fields
// core.ComputeLineAmount reads. Tables without line-level prices expose their
// amount column as the direct total.
func LineFromRecord(rec store.Record) core.Line {
	line := core.Line{
		TotalAmount:  rec.Number("totalAmount"),
		Discount:     rec.Number("discount"),
		Tax:          rec.Number("tax"),
		OtherTaxes:   rec.Number("otherTaxes"),
		Freight:      rec.Number("freight"),
		Currency:     rec.String("currency"),
		ExchangeRate: rec.Number("exchangeRate"),
	}

	switch rec.Table {
	case schema.AwardedLine:
		line.UnitPrice = rec.Number("awardedUnitPrice")
		line.Quantity = rec.Number("awardedQuantity")
	case schema.TenderLine:
		line.UnitPrice = rec.Number("estimatedUnitPrice")
		line.Quantity = rec.Number("requestedQuantity")
	case schema.Tender:
		line.TotalAmount = rec.Number("estimatedAmount")
	case schema.Contract:
		line.TotalAmount = rec.Number("contractAmount")
	case schema.PurchaseOrder, schema.Guarantee, schema.PriceAdjustment, schema.ContractAmendment:
		line.TotalAmount = rec.Number("amount")
	case schema.Auction:
		line.TotalAmount = rec.Number("finalPrice")
	default:
		line.UnitPrice = rec.Number("unitPrice")
		line.Quantity = rec.Number("quantity")
	}
	return line
}
