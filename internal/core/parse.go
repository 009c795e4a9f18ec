package core

import "fmt"

// ParsedRow is the outcome of the parse step for one source row: either a
// canonical record or a row error, never both.
type ParsedRow struct {
	Number int
	Record ServiceRecord
	Err    *RowError
	Blank  bool
}

// OK reports whether the row produced a usable record.
func (p ParsedRow) OK() bool {
	return p.Err == nil && !p.Blank
}

// Layout resolves source headers to canonical fields for one sheet.
type Layout struct {
	sheet   string
	aliases map[string]aliasRef
}

type aliasRef struct {
	field    string
	priority int
}

// NewLayout indexes the header aliases of a sheet definition by NormalizeKey.
// Earlier aliases take priority when a row carries more than one of them.
func NewLayout(def SheetDefinition) *Layout {
	l := &Layout{sheet: def.Key, aliases: make(map[string]aliasRef)}
	for field, names := range def.Columns {
		for i, name := range names {
			key := NormalizeKey(name)
			if _, taken := l.aliases[key]; !taken {
				l.aliases[key] = aliasRef{field: field, priority: i}
			}
		}
	}
	return l
}

// fieldValues picks, for every canonical field, the highest-priority
// non-blank cell in the row.
func (l *Layout) fieldValues(raw RawRow) map[string]any {
	values := make(map[string]any, len(Fields))
	best := make(map[string]int, len(Fields))

	for header, v := range raw {
		ref, ok := l.aliases[NormalizeKey(header)]
		if !ok || IsBlank(v) {
			continue
		}
		if p, seen := best[ref.field]; seen && p <= ref.priority {
			continue
		}
		best[ref.field] = ref.priority
		values[ref.field] = v
	}
	return values
}

// Parse converts one sheet row into a canonical record or a tagged row error.
func (l *Layout) Parse(row SheetRow) ParsedRow {
	out := ParsedRow{Number: row.Number}

	blank := true
	for _, v := range row.Values {
		if !IsBlank(v) {
			blank = false
			break
		}
	}
	if blank {
		out.Blank = true
		return out
	}

	values := l.fieldValues(row.Values)
	text := func(field string) string {
		return CollapseSpace(CellString(values[field]))
	}

	rec := ServiceRecord{ExternalID: text(FieldExternalID)}
	if rec.ExternalID == "" {
		out.Err = l.rowError(row.Number, "", "missing external id")
		return out
	}

	if rawDate, ok := values[FieldDate]; ok {
		rec.Date = ParseDate(rawDate)
		if rec.Date == nil {
			out.Err = l.rowError(row.Number, rec.ExternalID,
				fmt.Sprintf("unparseable date %q", CellString(rawDate)))
			return out
		}
	}

	rec.Time = optional(NormalizeTime(text(FieldTime)))
	rec.VesselName = text(FieldVesselName)
	rec.Address = text(FieldAddress)
	rec.Location = LocationGroup(text(FieldLocation), rec.Address)
	rec.Description = text(FieldDescription)
	rec.ContactName = optional(text(FieldContactName))
	rec.ContactPhone = optional(NormalizePhone(text(FieldContactPhone)))
	rec.Status = StatusToCanonical(text(FieldStatus))

	out.Record = rec
	return out
}

func (l *Layout) rowError(row int, externalID, msg string) *RowError {
	return &RowError{
		Sheet:      l.sheet,
		Row:        row,
		ExternalID: externalID,
		Kind:       ErrorKindValidation,
		Message:    msg,
	}
}
