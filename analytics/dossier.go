package analytics

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/cloudx-io/opentender/core"
	"github.com/cloudx-io/opentender/schema"
	"github.com/cloudx-io/opentender/store"
)

// Timeline event names.
const (
	EventPublication    = "publication"
	EventOpening        = "opening"
	EventAward          = "award"
	EventFirmAward      = "firm_award"
	EventContractSigned = "contract_signed"
	EventPurchaseOrder  = "purchase_order"
	EventReception      = "reception"
)

// TimelineEvent is one dated milestone. Reference names the contract, order or
// reception the event belongs to, when there can be several.
type TimelineEvent struct {
	Event     string    `json:"event"`
	Date      time.Time `json:"date"`
	Reference string    `json:"reference,omitempty"`
}

// Participant is a provider that offered on or was awarded the tender.
type Participant struct {
	RawID         string  `json:"raw_id"`
	ProviderID    string  `json:"provider_id"`
	Name          string  `json:"name"`
	MatchStrategy string  `json:"match_strategy,omitempty"`
	Unresolved    bool    `json:"unresolved,omitempty"`
	Offered       bool    `json:"offered"`
	Awarded       bool    `json:"awarded"`
	AwardedAmount float64 `json:"awarded_amount"`
}

// DossierKPIs are the single-tender metrics. Pointer fields are nil when the
// inputs they need are missing.
type DossierKPIs struct {
	OffersReceived     int      `json:"offers_received"`
	UniqueParticipants int      `json:"unique_participants"`
	UniqueWinners      int      `json:"unique_winners"`
	EstimatedAmount    float64  `json:"estimated_amount"`
	AwardedAmount      float64  `json:"awarded_amount"`
	SavingsPct         *float64 `json:"savings_pct"`
	TimeToAwardDays    *float64 `json:"time_to_award_days"`
	Awarded            bool     `json:"awarded"`
	Deserted           bool     `json:"deserted"`
}

// Dossier is every record tied to one tender plus derived views.
type Dossier struct {
	TenderNumber     string          `json:"tender_number"`
	Tender           store.Record    `json:"tender"`
	Institution      InstitutionInfo `json:"institution"`
	Sector           string          `json:"sector"`
	Lines            []store.Record  `json:"lines"`
	Offers           []store.Record  `json:"offers"`
	OfferedLines     []store.Record  `json:"offered_lines"`
	ReceivedLines    []store.Record  `json:"received_lines"`
	AwardedLines     []store.Record  `json:"awarded_lines"`
	FirmAwards       []store.Record  `json:"firm_awards"`
	Contracts        []store.Record  `json:"contracts"`
	ContractedLines  []store.Record  `json:"contracted_lines"`
	Amendments       []store.Record  `json:"amendments"`
	PurchaseOrders   []store.Record  `json:"purchase_orders"`
	Receptions       []store.Record  `json:"receptions"`
	Guarantees       []store.Record  `json:"guarantees"`
	Appeals          []store.Record  `json:"appeals"`
	PriceAdjustments []store.Record  `json:"price_adjustments"`
	Invitations      []store.Record  `json:"invitations"`
	Auctions         []store.Record  `json:"auctions"`
	Sanctions        []store.Record  `json:"sanctions"`
	Participants     []Participant   `json:"participants"`
	Timeline         []TimelineEvent `json:"timeline"`
	KPIs             DossierKPIs     `json:"kpis"`
}

// TenderDossier assembles the dossier for number, or returns nil when no tender
// has that number.
func (a *Analyzer) TenderDossier(number string) *Dossier {
	number = strings.TrimSpace(number)
	tender, ok := a.snap.Table(schema.Tender).ByPK(number)
	if !ok {
		return nil
	}

	byTender := func(t schema.TableType) []store.Record {
		return orEmpty(a.snap.Table(t).ByFK("tenderNumber", number))
	}

	d := &Dossier{
		TenderNumber:     number,
		Tender:           tender,
		Institution:      a.institution(tender.String("institutionCode")),
		Sector:           a.sector(tender),
		Lines:            byTender(schema.TenderLine),
		Offers:           byTender(schema.Offer),
		OfferedLines:     byTender(schema.OfferedLine),
		ReceivedLines:    byTender(schema.ReceivedLine),
		AwardedLines:     byTender(schema.AwardedLine),
		FirmAwards:       byTender(schema.FirmAward),
		Contracts:        byTender(schema.Contract),
		Guarantees:       byTender(schema.Guarantee),
		Appeals:          byTender(schema.Appeal),
		Invitations:      byTender(schema.Invitation),
		Auctions:         byTender(schema.Auction),
		ContractedLines:  []store.Record{},
		Amendments:       []store.Record{},
		PurchaseOrders:   []store.Record{},
		Receptions:       []store.Record{},
		PriceAdjustments: []store.Record{},
	}

	contractIDs := make(map[string]bool, len(d.Contracts))
	for _, c := range d.Contracts {
		id := c.String("contractId")
		if id == "" || contractIDs[id] {
			continue
		}
		contractIDs[id] = true
		d.ContractedLines = append(d.ContractedLines, a.snap.Table(schema.ContractedLine).ByFK("contractId", id)...)
		d.Amendments = append(d.Amendments, a.snap.Table(schema.ContractAmendment).ByFK("contractId", id)...)
		d.PurchaseOrders = append(d.PurchaseOrders, a.snap.Table(schema.PurchaseOrder).ByFK("contractId", id)...)
		d.PriceAdjustments = append(d.PriceAdjustments, a.snap.Table(schema.PriceAdjustment).ByFK("contractId", id)...)
		d.Receptions = append(d.Receptions, a.snap.Table(schema.Reception).ByFK("contractId", id)...)
	}
	// Receptions filed against an order without a contract reference.
	for _, o := range d.PurchaseOrders {
		for _, r := range a.snap.Table(schema.Reception).ByFK("orderId", o.String("orderId")) {
			if !contractIDs[r.String("contractId")] {
				d.Receptions = append(d.Receptions, r)
			}
		}
	}

	d.Participants = a.participants(d)
	d.Sanctions = a.sanctions(d.Participants)
	d.Timeline = a.timeline(d)
	d.KPIs = a.dossierKPIs(d)
	return d
}

func orEmpty(records []store.Record) []store.Record {
	if records == nil {
		return []store.Record{}
	}
	return records
}

// participants merges offer and award rows by resolved provider, in first
// appearance order.
func (a *Analyzer) participants(d *Dossier) []Participant {
	index := make(map[string]int)
	out := make([]Participant, 0)

	touch := func(raw string) *Participant {
		p := a.provider(raw)
		i, ok := index[p.ProviderID]
		if !ok {
			i = len(out)
			index[p.ProviderID] = i
			out = append(out, Participant{
				RawID:         strings.TrimSpace(raw),
				ProviderID:    p.ProviderID,
				Name:          p.Name,
				MatchStrategy: p.MatchStrategy,
				Unresolved:    p.Unresolved,
			})
		}
		return &out[i]
	}

	for _, rec := range d.Offers {
		if raw := rec.String("providerId"); raw != "" {
			touch(raw).Offered = true
		}
	}
	for _, rec := range d.OfferedLines {
		if raw := rec.String("providerId"); raw != "" {
			touch(raw).Offered = true
		}
	}
	for _, rec := range d.AwardedLines {
		raw := rec.String("providerId")
		if raw == "" {
			continue
		}
		p := touch(raw)
		p.Awarded = true
		p.AwardedAmount = core.SumAmounts(p.AwardedAmount, core.ComputeLineAmount(LineFromRecord(rec)))
	}
	return out
}

// sanctions returns sanction rows against any participant.
func (a *Analyzer) sanctions(participants []Participant) []store.Record {
	out := []store.Record{}
	if len(participants) == 0 {
		return out
	}
	ids := make(map[string]bool, len(participants))
	for _, p := range participants {
		ids[p.ProviderID] = true
	}
	for _, rec := range a.snap.Records(schema.Sanction) {
		if ids[a.provider(rec.String("providerId")).ProviderID] {
			out = append(out, rec)
		}
	}
	return out
}

// timeline lists the dated milestones in ascending order; undated ones are
// omitted and equal dates keep their lifecycle order.
func (a *Analyzer) timeline(d *Dossier) []TimelineEvent {
	events := make([]TimelineEvent, 0)
	add := func(event string, date time.Time, ok bool, ref string) {
		if ok {
			events = append(events, TimelineEvent{Event: event, Date: date, Reference: ref})
		}
	}

	pub, ok := d.Tender.Date("publicationDate")
	add(EventPublication, pub, ok, "")
	opening, ok := d.Tender.Date("openingDate")
	add(EventOpening, opening, ok, "")
	award, ok := a.earliestDate(d.AwardedLines, "awardDate")
	add(EventAward, award, ok, "")
	firm, ok := a.earliestDate(d.FirmAwards, "firmAwardDate")
	add(EventFirmAward, firm, ok, "")
	for _, c := range d.Contracts {
		signed, ok := c.Date("signDate")
		add(EventContractSigned, signed, ok, c.String("contractId"))
	}
	for _, o := range d.PurchaseOrders {
		ordered, ok := o.Date("orderDate")
		add(EventPurchaseOrder, ordered, ok, o.String("orderId"))
	}
	for _, r := range d.Receptions {
		received, ok := r.Date("receptionDate")
		add(EventReception, received, ok, r.String("receptionId"))
	}

	sort.SliceStable(events, func(i, j int) bool { return events[i].Date.Before(events[j].Date) })
	return events
}

func (a *Analyzer) dossierKPIs(d *Dossier) DossierKPIs {
	kpis := DossierKPIs{
		OffersReceived:  a.offersReceived(d.TenderNumber, d.ReceivedLines),
		EstimatedAmount: a.estimatedAmount(d.Tender),
		Awarded:         len(d.AwardedLines) > 0,
	}
	kpis.Deserted = a.isDeserted(d.TenderNumber, kpis.Awarded)

	for _, p := range d.Participants {
		if p.Offered {
			kpis.UniqueParticipants++
		}
		if p.Awarded {
			kpis.UniqueWinners++
		}
		kpis.AwardedAmount = core.SumAmounts(kpis.AwardedAmount, p.AwardedAmount)
	}
	// Lines without a provider still count toward the awarded amount.
	for _, rec := range d.AwardedLines {
		if rec.String("providerId") == "" {
			kpis.AwardedAmount = core.SumAmounts(kpis.AwardedAmount, core.ComputeLineAmount(LineFromRecord(rec)))
		}
	}

	if kpis.EstimatedAmount > 0 && kpis.AwardedAmount > 0 {
		est := decimal.NewFromFloat(kpis.EstimatedAmount)
		savings, _ := est.Sub(decimal.NewFromFloat(kpis.AwardedAmount)).
			Mul(decimal.NewFromInt(100)).
			DivRound(est, 4).
			Float64()
		kpis.SavingsPct = &savings
	}
	if tta, ok := a.timeToAward(d.Tender); ok {
		kpis.TimeToAwardDays = &tta
	}
	return kpis
}
