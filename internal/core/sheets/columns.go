package sheets

import "github.com/JonMunkholm/sheetsync/internal/core"

// serviceColumns is the header layout shared by the appointment tabs.
// Aliases are listed in priority order; matching ignores case, diacritics
// and surrounding whitespace.
func serviceColumns() map[string][]string {
	return map[string][]string{
		core.FieldExternalID:   {"SIRA NO", "KAYIT NO", "SERVİS NO", "ID", "externalId"},
		core.FieldDate:         {"TARİH", "RANDEVU TARİHİ", "DATE"},
		core.FieldTime:         {"SAAT", "RANDEVU SAATİ", "TIME"},
		core.FieldVesselName:   {"TEKNE ADI", "TEKNE", "YAT ADI", "VESSEL", "vesselName"},
		core.FieldAddress:      {"ADRES", "ADDRESS"},
		core.FieldLocation:     {"LOKASYON", "MARİNA", "BÖLGE", "LOCATION"},
		core.FieldDescription:  {"YAPILACAK İŞ", "AÇIKLAMA", "İŞ TANIMI", "DESCRIPTION"},
		core.FieldContactName:  {"YETKİLİ", "İLGİLİ KİŞİ", "MÜŞTERİ", "CONTACT", "contactName"},
		core.FieldContactPhone: {"TELEFON", "TEL", "GSM", "PHONE", "contactPhone"},
		core.FieldStatus:       {"DURUM", "STATUS"},
	}
}
