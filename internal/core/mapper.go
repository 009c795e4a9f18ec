package core

// mapper.go canonicalizes the free-text vocabulary typed into service sheets.
//
// Operators write the same word as "İPTAL", "iptal", "Iptal" or "IPTAL", so
// every comparison goes through NormalizeKey first.

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// turkishFold replaces letters whose ASCII base is not recoverable by
// decomposition alone (dotless i has no combining mark) or whose case
// mapping differs under Turkish rules.
var turkishFold = strings.NewReplacer(
	"İ", "I", "ı", "I",
	"Ğ", "G", "ğ", "G",
	"Ü", "U", "ü", "U",
	"Ş", "S", "ş", "S",
	"Ö", "O", "ö", "O",
	"Ç", "C", "ç", "C",
)

// NormalizeKey folds s to an uppercase ASCII-based key for comparisons.
// Turkish letterforms are substituted first, remaining combining marks are
// stripped, and surrounding whitespace is removed.
func NormalizeKey(s string) string {
	s = turkishFold.Replace(strings.TrimSpace(s))
	t := transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	if stripped, _, err := transform.String(t, s); err == nil {
		s = stripped
	}
	return strings.ToUpper(s)
}

// vocabKey normalizes s and collapses any run of separators to one space,
// so "PLANLANDI - RANDEVU" and "planlandı_randevu" compare equal.
func vocabKey(s string) string {
	fields := strings.FieldsFunc(NormalizeKey(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	return strings.Join(fields, " ")
}

// ServiceStatus is the canonical status of a service appointment.
type ServiceStatus string

const (
	StatusScheduled  ServiceStatus = "SCHEDULED"
	StatusInProgress ServiceStatus = "IN_PROGRESS"
	StatusCompleted  ServiceStatus = "COMPLETED"
	StatusPostponed  ServiceStatus = "POSTPONED"
	StatusCancelled  ServiceStatus = "CANCELLED"
)

// CanonicalStatuses lists every known status in display order.
var CanonicalStatuses = []ServiceStatus{
	StatusScheduled, StatusInProgress, StatusCompleted, StatusPostponed, StatusCancelled,
}

type statusVocab struct {
	display string
	aliases []string
}

var statusTable = map[ServiceStatus]statusVocab{
	StatusScheduled:  {display: "PLANLANDI-RANDEVU", aliases: []string{"PLANLANDI", "RANDEVU", "PLANLI"}},
	StatusInProgress: {display: "DEVAM EDİYOR", aliases: []string{"DEVAM", "SERVISTE", "ISLEMDE"}},
	StatusCompleted:  {display: "TAMAMLANDI", aliases: []string{"BITTI", "YAPILDI", "TESLIM EDILDI"}},
	StatusPostponed:  {display: "ERTELENDİ", aliases: []string{"ERTELEME", "BEKLEMEDE"}},
	StatusCancelled:  {display: "İPTAL", aliases: []string{"IPTAL EDILDI", "VAZGECILDI"}},
}

// statusIndex maps every vocabKey form (canonical, display, alias) to its status.
var statusIndex = func() map[string]ServiceStatus {
	idx := make(map[string]ServiceStatus)
	for status, vocab := range statusTable {
		idx[vocabKey(string(status))] = status
		idx[vocabKey(vocab.display)] = status
		for _, a := range vocab.aliases {
			idx[vocabKey(a)] = status
		}
	}
	return idx
}()

// LookupStatus reports the canonical status for s, if s is a known spelling.
func LookupStatus(s string) (ServiceStatus, bool) {
	status, ok := statusIndex[vocabKey(s)]
	return status, ok
}

// StatusToCanonical maps free text onto a canonical status. Empty input
// means the appointment has only been scheduled. Unknown spellings are
// returned trimmed, with internal whitespace collapsed, and otherwise untouched.
func StatusToCanonical(s string) ServiceStatus {
	if strings.TrimSpace(s) == "" {
		return StatusScheduled
	}
	if status, ok := LookupStatus(s); ok {
		return status
	}
	return ServiceStatus(strings.Join(strings.Fields(s), " "))
}

// StatusToDisplay returns the sheet-facing label for a canonical status or
// any of its aliases. Unknown input passes through like StatusToCanonical.
func StatusToDisplay(s string) string {
	if status, ok := LookupStatus(s); ok {
		return statusTable[status].display
	}
	return strings.Join(strings.Fields(s), " ")
}

// IsKnown reports whether the status belongs to the closed canonical set.
func (s ServiceStatus) IsKnown() bool {
	_, ok := statusTable[s]
	return ok
}

// Location groups used by reporting.
const (
	LocationYalova = "YALOVA"
	LocationTuzla  = "TUZLA"
	LocationAtakoy = "ATAKOY"
	LocationOther  = "DIGER"
)

type locationRule struct {
	group  string
	tokens []string
}

// locationRules are evaluated in order; the first group with a matching
// token in either field wins.
var locationRules = []locationRule{
	{group: LocationYalova, tokens: []string{"YALOVA", "ALTINOVA"}},
	{group: LocationTuzla, tokens: []string{"TUZLA", "VIAPORT", "PENDIK"}},
	{group: LocationAtakoy, tokens: []string{"ATAKOY", "BAKIRKOY"}},
}

// LocationGroup classifies a record by searching the primary field, then the
// secondary field, for each group's tokens in precedence order.
func LocationGroup(primaryField, secondaryField string) string {
	primary := NormalizeKey(primaryField)
	secondary := NormalizeKey(secondaryField)

	for _, rule := range locationRules {
		for _, field := range [2]string{primary, secondary} {
			if field == "" {
				continue
			}
			for _, token := range rule.tokens {
				if strings.Contains(field, token) {
					return rule.group
				}
			}
		}
	}
	return LocationOther
}

// Role is one of the two canonical user roles.
type Role string

const (
	RoleAdmin      Role = "ADMIN"
	RoleTechnician Role = "TECHNICIAN"
)

var adminSpellings = map[string]bool{
	"ADMIN":       true,
	"YONETICI":    true,
	"MANAGER":     true,
	"SUPERADMIN":  true,
	"SUPER ADMIN": true,
}

// RoleToCanonical maps legacy role spellings onto ADMIN or TECHNICIAN.
// Anything unrecognized gets the lower privilege.
func RoleToCanonical(s string) Role {
	if adminSpellings[vocabKey(s)] {
		return RoleAdmin
	}
	return RoleTechnician
}
