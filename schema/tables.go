// Package schema declares the procurement table types, their canonical fields and
// foreign keys, and maps raw source headers onto canonical field names.
package schema

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/cloudx-io/opentender/core"
)

// ErrUnknownTable is returned for table types outside the declared schema. It is
// the only load-time condition treated as a hard failure.
var ErrUnknownTable = errors.New("unknown table type")

// TableType names one source table.
type TableType string

const (
	Institution        TableType = "Institution"
	Provider           TableType = "Provider"
	Tender             TableType = "Tender"
	TenderLine         TableType = "TenderLine"
	Offer              TableType = "Offer"
	OfferedLine        TableType = "OfferedLine"
	ReceivedLine       TableType = "ReceivedLine"
	AwardedLine        TableType = "AwardedLine"
	FirmAward          TableType = "FirmAward"
	Contract           TableType = "Contract"
	ContractedLine     TableType = "ContractedLine"
	PurchaseOrder      TableType = "PurchaseOrder"
	Reception          TableType = "Reception"
	Guarantee          TableType = "Guarantee"
	Appeal             TableType = "Appeal"
	PriceAdjustment    TableType = "PriceAdjustment"
	Sanction           TableType = "Sanction"
	OfficialInhibition TableType = "OfficialInhibition"
	Auction            TableType = "Auction"
	Invitation         TableType = "Invitation"
	ContractAmendment  TableType = "ContractAmendment"
)

// Kind is the value type of a canonical field.
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindDate
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindDate:
		return "date"
	case KindBool:
		return "bool"
	default:
		return "unknown"
	}
}

// ResolveMode selects how a foreign key value is matched against its target.
type ResolveMode int

const (
	// ResolveExact compares trimmed strings.
	ResolveExact ResolveMode = iota
	// ResolveProvider goes through the provider identifier resolver.
	ResolveProvider
	// ResolveInstitution goes through the institution identifier resolver.
	ResolveInstitution
)

// Field is one canonical column.
type Field struct {
	Name    string
	Kind    Kind
	Aliases []string
}

// ForeignKey declares that Field references the primary key of Target.
type ForeignKey struct {
	Field   string
	Target  TableType
	Resolve ResolveMode
}

// Schema describes one table type.
type Schema struct {
	Table       TableType
	Fields      []Field
	PrimaryKey  []string
	ForeignKeys []ForeignKey
	FileAliases []string

	byName map[string]*Field
}

// Field returns the canonical field declaration for name.
func (s *Schema) Field(name string) (*Field, bool) {
	f, ok := s.byName[name]
	return f, ok
}

// Lookup returns the schema for t, or ErrUnknownTable.
func Lookup(t TableType) (*Schema, error) {
	s, ok := registry[t]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownTable, string(t))
	}
	return s, nil
}

// All returns every table type in declaration order.
func All() []TableType {
	out := make([]TableType, len(declared))
	for i, s := range declared {
		out[i] = s.Table
	}
	return out
}

// ParseTableType resolves a table name written in any case, with or without
// accents or separators, or one of the table's source file aliases.
func ParseTableType(name string) (TableType, error) {
	key := headerKey(name)
	if t, ok := tableAliases[key]; ok {
		return t, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownTable, name)
}

// TableForFile infers the table type from a source file name such as
// "LineasAdjudicadas_2024_03.csv". Trailing year/month suffixes are ignored.
func TableForFile(path string) (TableType, error) {
	base := filepath.Base(path)
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if t, err := ParseTableType(base); err == nil {
		return t, nil
	}
	parts := strings.FieldsFunc(base, func(r rune) bool { return r == '_' || r == '-' || r == ' ' || r == '.' })
	for len(parts) > 1 {
		last := parts[len(parts)-1]
		if core.DigitsOnly(last) != last {
			break
		}
		parts = parts[:len(parts)-1]
		if t, err := ParseTableType(strings.Join(parts, "_")); err == nil {
			return t, nil
		}
	}
	return "", fmt.Errorf("%w: no table for file %q", ErrUnknownTable, filepath.Base(path))
}

// headerKey folds a header or table name to lowercase ASCII alphanumerics.
func headerKey(s string) string {
	n := core.NormalizeText(s)
	var b strings.Builder
	b.Grow(len(n))
	for _, r := range n {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

var (
	registry     = make(map[TableType]*Schema)
	tableAliases = make(map[string]TableType)
)

func init() {
	for _, s := range declared {
		s.byName = make(map[string]*Field, len(s.Fields))
		for i := range s.Fields {
			s.byName[s.Fields[i].Name] = &s.Fields[i]
		}
		registry[s.Table] = s
		tableAliases[headerKey(string(s.Table))] = s.Table
		for _, alias := range s.FileAliases {
			tableAliases[headerKey(alias)] = s.Table
		}
	}
}

func str(name string, aliases ...string) Field {
	return Field{Name: name, Kind: KindString, Aliases: aliases}
}

func num(name string, aliases ...string) Field {
	return Field{Name: name, Kind: KindNumber, Aliases: aliases}
}

func date(name string, aliases ...string) Field {
	return Field{Name: name, Kind: KindDate, Aliases: aliases}
}

func flag(name string, aliases ...string) Field {
	return Field{Name: name, Kind: KindBool, Aliases: aliases}
}

// Aliases shared by several tables.
var (
	tenderNumberField    = str("tenderNumber", "nro_sicop", "numero_sicop", "nro_procedimiento", "numero_procedimiento", "numero_cartel", "nro_cartel", "numero de procedimiento", "numero_de_cartel")
	institutionCodeField = str("institutionCode", "codigo_institucion", "cod_institucion", "cedula_institucion", "cedula_juridica_institucion", "institucion_codigo")
	providerIDField      = str("providerId", "cedula_proveedor", "cedula_proveedor_adjudicado", "id_proveedor", "identificacion_proveedor", "cedula", "proveedor_id", "cedula_adjudicatario")
	lineNumberField      = str("lineNumber", "numero_linea", "nro_linea", "linea")
	offerNumberField     = str("offerNumber", "numero_oferta", "nro_oferta", "oferta")
	contractIDField      = str("contractId", "numero_contrato", "nro_contrato", "id_contrato", "contrato")
	currencyField        = str("currency", "moneda", "tipo_moneda", "codigo_moneda")
	exchangeRateField    = num("exchangeRate", "tipo_cambio", "tipo_de_cambio", "tc")
	discountField        = num("discount", "descuento", "monto_descuento")
	taxField             = num("tax", "impuesto", "iva", "monto_impuesto")
	otherTaxesField      = num("otherTaxes", "otros_impuestos", "otros_tributos")
	freightField         = num("freight", "flete", "costo_flete", "acarreo")
	totalAmountField     = num("totalAmount", "monto_total", "total", "monto_linea")
)

var declared = []*Schema{
	{
		Table: Institution,
		Fields: []Field{
			institutionCodeField,
			str("name", "nombre_institucion", "institucion", "nombre"),
			str("geoZone", "zona_geografica", "zona", "provincia"),
			str("institutionType", "tipo_institucion", "sector_institucional"),
		},
		PrimaryKey:  []string{"institutionCode"},
		FileAliases: []string{"instituciones", "institucion"},
	},
	{
		Table: Provider,
		Fields: []Field{
			providerIDField,
			str("name", "nombre_proveedor", "razon_social", "nombre"),
			str("type", "tipo_proveedor", "tipo_persona"),
			str("size", "tamano_proveedor", "tamano", "tamano_empresa"),
			str("province", "provincia"),
			str("canton", "canton"),
			str("district", "distrito"),
		},
		PrimaryKey:  []string{"providerId"},
		FileAliases: []string{"proveedores", "proveedor"},
	},
	{
		Table: Tender,
		Fields: []Field{
			tenderNumberField,
			institutionCodeField,
			str("name", "nombre_cartel", "descripcion_cartel", "titulo_cartel", "nombre_procedimiento", "descripcion"),
			str("status", "estado", "estado_cartel", "estado_procedimiento"),
			str("procedureCode", "tipo_procedimiento", "codigo_procedimiento", "modalidad", "tipo_de_procedimiento"),
			date("publicationDate", "fecha_publicacion", "fecha_invitacion", "fecha_de_publicacion"),
			date("openingDate", "fecha_apertura", "fecha_apertura_ofertas", "fecha_de_apertura"),
			num("estimatedAmount", "monto_estimado", "presupuesto", "monto_presupuestado"),
			currencyField,
			exchangeRateField,
			str("classification", "clasificacion", "clasificacion_objeto", "codigo_unspsc", "unspsc"),
		},
		PrimaryKey:  []string{"tenderNumber"},
		ForeignKeys: []ForeignKey{{Field: "institutionCode", Target: Institution, Resolve: ResolveInstitution}},
		FileAliases: []string{"carteles", "cartel", "procedimientos", "detalle_carteles"},
	},
	{
		Table: TenderLine,
		Fields: []Field{
			tenderNumberField,
			lineNumberField,
			str("lotNumber", "numero_partida", "partida", "lote"),
			num("requestedQuantity", "cantidad_solicitada", "cantidad"),
			num("estimatedUnitPrice", "precio_unitario_estimado", "monto_unitario_estimado", "precio_estimado"),
			currencyField,
			exchangeRateField,
			str("description", "descripcion_linea", "descripcion", "desc_bien_servicio"),
			str("classification", "codigo_clasificacion", "codigo_unspsc", "clasificacion"),
			str("unitOfMeasure", "unidad_medida", "unidad"),
		},
		PrimaryKey:  []string{"tenderNumber", "lineNumber"},
		ForeignKeys: []ForeignKey{{Field: "tenderNumber", Target: Tender}},
		FileAliases: []string{"lineas_cartel", "lineas_procedimiento", "detalle_lineas_cartel"},
	},
	{
		Table: Offer,
		Fields: []Field{
			tenderNumberField,
			offerNumberField,
			providerIDField,
			date("offerDate", "fecha_oferta", "fecha_presentacion"),
			currencyField,
			totalAmountField,
		},
		PrimaryKey: []string{"tenderNumber", "offerNumber"},
		ForeignKeys: []ForeignKey{
			{Field: "tenderNumber", Target: Tender},
			{Field: "providerId", Target: Provider, Resolve: ResolveProvider},
		},
		FileAliases: []string{"ofertas", "oferta"},
	},
	{
		Table: OfferedLine,
		Fields: []Field{
			tenderNumberField,
			offerNumberField,
			lineNumberField,
			providerIDField,
			num("unitPrice", "precio_unitario", "precio_unitario_ofertado", "monto_unitario"),
			num("quantity", "cantidad_ofertada", "cantidad"),
			currencyField,
			exchangeRateField,
			discountField,
			taxField,
			totalAmountField,
		},
		PrimaryKey: []string{"tenderNumber", "offerNumber", "lineNumber"},
		ForeignKeys: []ForeignKey{
			{Field: "tenderNumber", Target: Tender},
			{Field: "providerId", Target: Provider, Resolve: ResolveProvider},
		},
		FileAliases: []string{"lineas_ofertadas", "lineas_oferta"},
	},
	{
		Table: ReceivedLine,
		Fields: []Field{
			tenderNumberField,
			lineNumberField,
			num("offerCount", "cantidad_ofertas", "ofertas_recibidas", "numero_ofertas"),
			num("bestPrice", "mejor_precio", "precio_minimo"),
			num("worstPrice", "peor_precio", "precio_maximo"),
			num("averagePrice", "precio_promedio"),
			flag("isDeserted", "desierta", "desierto", "es_desierta"),
		},
		PrimaryKey:  []string{"tenderNumber", "lineNumber"},
		ForeignKeys: []ForeignKey{{Field: "tenderNumber", Target: Tender}},
		FileAliases: []string{"lineas_recibidas", "resumen_ofertas"},
	},
	{
		Table: AwardedLine,
		Fields: []Field{
			tenderNumberField,
			lineNumberField,
			offerNumberField,
			providerIDField,
			num("awardedQuantity", "cantidad_adjudicada"),
			num("awardedUnitPrice", "precio_unitario_adjudicado", "monto_unitario_adjudicado", "precio_adjudicado"),
			currencyField,
			exchangeRateField,
			discountField,
			taxField,
			otherTaxesField,
			freightField,
			num("totalAmount", "monto_adjudicado", "monto_total_adjudicado", "monto_total"),
			date("awardDate", "fecha_adjudicacion", "fecha_adj"),
		},
		PrimaryKey: []string{"tenderNumber", "lineNumber", "providerId"},
		ForeignKeys: []ForeignKey{
			{Field: "tenderNumber", Target: Tender},
			{Field: "providerId", Target: Provider, Resolve: ResolveProvider},
		},
		FileAliases: []string{"lineas_adjudicadas", "adjudicaciones", "adjudicacion"},
	},
	{
		Table: FirmAward,
		Fields: []Field{
			tenderNumberField,
			date("firmAwardDate", "fecha_adjudicacion_firme", "fecha_firmeza", "fecha_adj_firme"),
			flag("allowsAppeal", "permite_recursos", "admite_recurso"),
			flag("isDeserted", "desierto", "es_desierto", "declarado_desierto"),
			str("actNumber", "numero_acto", "nro_acto"),
		},
		PrimaryKey:  []string{"tenderNumber"},
		ForeignKeys: []ForeignKey{{Field: "tenderNumber", Target: Tender}},
		FileAliases: []string{"adjudicaciones_firmes", "adjudicacion_firme", "adj_firme"},
	},
	{
		Table: Contract,
		Fields: []Field{
			contractIDField,
			tenderNumberField,
			institutionCodeField,
			providerIDField,
			date("signDate", "fecha_firma", "fecha_elaboracion", "fecha_contrato"),
			currencyField,
			exchangeRateField,
			str("term", "plazo", "vigencia", "plazo_contrato"),
			num("contractAmount", "monto_contrato", "monto_total_contrato"),
		},
		PrimaryKey: []string{"contractId"},
		ForeignKeys: []ForeignKey{
			{Field: "tenderNumber", Target: Tender},
			{Field: "institutionCode", Target: Institution, Resolve: ResolveInstitution},
			{Field: "providerId", Target: Provider, Resolve: ResolveProvider},
		},
		FileAliases: []string{"contratos", "contrato"},
	},
	{
		Table: ContractedLine,
		Fields: []Field{
			contractIDField,
			lineNumberField,
			num("quantity", "cantidad_contratada", "cantidad"),
			num("unitPrice", "precio_unitario", "precio_unitario_contratado"),
			currencyField,
			exchangeRateField,
			discountField,
			taxField,
			otherTaxesField,
			freightField,
			num("totalAmount", "monto_contratado", "monto_total"),
		},
		PrimaryKey:  []string{"contractId", "lineNumber"},
		ForeignKeys: []ForeignKey{{Field: "contractId", Target: Contract}},
		FileAliases: []string{"lineas_contratadas", "lineas_contrato"},
	},
	{
		Table: PurchaseOrder,
		Fields: []Field{
			str("orderId", "numero_orden", "nro_orden", "orden_pedido", "numero_orden_pedido"),
			contractIDField,
			date("orderDate", "fecha_orden", "fecha_elaboracion_orden"),
			num("amount", "monto_orden", "monto"),
			str("status", "estado_orden", "estado"),
			currencyField,
			exchangeRateField,
		},
		PrimaryKey:  []string{"orderId"},
		ForeignKeys: []ForeignKey{{Field: "contractId", Target: Contract}},
		FileAliases: []string{"ordenes_pedido", "ordenes", "orden_pedido"},
	},
	{
		Table: Reception,
		Fields: []Field{
			str("receptionId", "numero_recepcion", "nro_recepcion", "id_recepcion"),
			contractIDField,
			str("orderId", "numero_orden", "nro_orden"),
			date("receptionDate", "fecha_recepcion", "fecha_recepcion_definitiva"),
			num("receivedQuantity", "cantidad_recibida"),
			flag("compliant", "conforme", "recepcion_conforme", "cumple"),
		},
		PrimaryKey: []string{"receptionId"},
		ForeignKeys: []ForeignKey{
			{Field: "contractId", Target: Contract},
			{Field: "orderId", Target: PurchaseOrder},
		},
		FileAliases: []string{"recepciones", "recepcion"},
	},
	{
		Table: Guarantee,
		Fields: []Field{
			str("guaranteeId", "numero_garantia", "nro_garantia"),
			tenderNumberField,
			contractIDField,
			providerIDField,
			str("guaranteeType", "tipo_garantia"),
			num("amount", "monto_garantia", "monto"),
			currencyField,
			date("issueDate", "fecha_emision", "fecha_rige"),
			date("expiryDate", "fecha_vencimiento", "vigencia_hasta"),
		},
		PrimaryKey: []string{"guaranteeId"},
		ForeignKeys: []ForeignKey{
			{Field: "tenderNumber", Target: Tender},
			{Field: "providerId", Target: Provider, Resolve: ResolveProvider},
		},
		FileAliases: []string{"garantias", "garantia"},
	},
	{
		Table: Appeal,
		Fields: []Field{
			str("appealId", "numero_recurso", "nro_recurso"),
			tenderNumberField,
			providerIDField,
			date("appealDate", "fecha_recurso", "fecha_presentacion"),
			str("appealType", "tipo_recurso"),
			str("result", "resultado", "resolucion"),
		},
		PrimaryKey: []string{"appealId"},
		ForeignKeys: []ForeignKey{
			{Field: "tenderNumber", Target: Tender},
			{Field: "providerId", Target: Provider, Resolve: ResolveProvider},
		},
		FileAliases: []string{"recursos", "recursos_objecion", "recurso"},
	},
	{
		Table: PriceAdjustment,
		Fields: []Field{
			str("adjustmentId", "numero_reajuste", "nro_reajuste"),
			contractIDField,
			date("requestDate", "fecha_solicitud", "fecha_reajuste"),
			num("amount", "monto_reajuste", "monto"),
			num("percentage", "porcentaje_reajuste", "porcentaje"),
			str("status", "estado"),
		},
		PrimaryKey:  []string{"adjustmentId"},
		ForeignKeys: []ForeignKey{{Field: "contractId", Target: Contract}},
		FileAliases: []string{"reajustes_precio", "reajuste_precios", "reajustes"},
	},
	{
		Table: Sanction,
		Fields: []Field{
			str("sanctionId", "numero_sancion", "nro_sancion"),
			providerIDField,
			institutionCodeField,
			str("sanctionType", "tipo_sancion"),
			date("startDate", "fecha_inicio", "inicio_sancion"),
			date("endDate", "fecha_fin", "fin_sancion"),
			str("description", "descripcion", "motivo"),
		},
		PrimaryKey: []string{"sanctionId"},
		ForeignKeys: []ForeignKey{
			{Field: "providerId", Target: Provider, Resolve: ResolveProvider},
			{Field: "institutionCode", Target: Institution, Resolve: ResolveInstitution},
		},
		FileAliases: []string{"sanciones", "sancion", "sanciones_proveedores"},
	},
	{
		Table: OfficialInhibition,
		Fields: []Field{
			str("inhibitionId", "numero_inhibicion", "nro_inhibicion"),
			institutionCodeField,
			str("officialId", "cedula_funcionario", "id_funcionario"),
			str("officialName", "nombre_funcionario", "funcionario"),
			date("startDate", "fecha_inicio"),
			date("endDate", "fecha_fin"),
		},
		PrimaryKey:  []string{"inhibitionId"},
		ForeignKeys: []ForeignKey{{Field: "institutionCode", Target: Institution, Resolve: ResolveInstitution}},
		FileAliases: []string{"inhibiciones", "funcionarios_inhibicion", "funcionarios_inhibidos"},
	},
	{
		Table: Auction,
		Fields: []Field{
			str("auctionId", "numero_remate", "nro_remate", "id_remate"),
			tenderNumberField,
			providerIDField,
			date("auctionDate", "fecha_remate"),
			num("startingPrice", "precio_base", "monto_base"),
			num("finalPrice", "precio_final", "monto_adjudicado"),
			str("status", "estado"),
		},
		PrimaryKey: []string{"auctionId"},
		ForeignKeys: []ForeignKey{
			{Field: "tenderNumber", Target: Tender},
			{Field: "providerId", Target: Provider, Resolve: ResolveProvider},
		},
		FileAliases: []string{"remates", "remate", "subastas"},
	},
	{
		Table: Invitation,
		Fields: []Field{
			tenderNumberField,
			providerIDField,
			date("invitationDate", "fecha_invitacion"),
		},
		PrimaryKey: []string{"tenderNumber", "providerId"},
		ForeignKeys: []ForeignKey{
			{Field: "tenderNumber", Target: Tender},
			{Field: "providerId", Target: Provider, Resolve: ResolveProvider},
		},
		FileAliases: []string{"invitaciones", "invitados", "proveedores_invitados"},
	},
	{
		Table: ContractAmendment,
		Fields: []Field{
			str("amendmentId", "numero_modificacion", "nro_modificacion"),
			contractIDField,
			date("amendmentDate", "fecha_modificacion"),
			str("amendmentType", "tipo_modificacion"),
			num("amount", "monto_modificacion", "monto"),
			str("newTerm", "nuevo_plazo"),
		},
		PrimaryKey:  []string{"amendmentId"},
		ForeignKeys: []ForeignKey{{Field: "contractId", Target: Contract}},
		FileAliases: []string{"modificaciones_contrato", "modificaciones", "contrataciones_modificadas"},
	},
}
