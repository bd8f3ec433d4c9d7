package integration

import (
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Keys of the extractor output.
const (
	FieldContactName = "contact_name"
	FieldPhone       = "phone"
	FieldEmail       = "email"
	FieldInstagram   = "instagram"
	FieldDestination = "destination"
	FieldDates       = "dates"
	FieldPassengers  = "passengers"
	FieldBudget      = "budget"
	FieldOrigin      = "origin"

	// ExtraFieldPrefix prefixes free "Label: value" lines outside the structured block
	ExtraFieldPrefix = "attr."
)

// ExtractedFields is the flat extractor output. A missing key means the card
// carried no information for it, never that the value is empty.
type ExtractedFields map[string]string

// Get returns the value for key and whether it was extracted.
func (f ExtractedFields) Get(key string) (string, bool) {
	v, ok := f[key]
	return v, ok
}

// Value returns the value for key or "".
func (f ExtractedFields) Value(key string) string {
	return f[key]
}

// structuredField is one labeled line of the structured block.
type structuredField struct {
	key     string
	pattern *regexp.Regexp
}

// structuredLine matches "<marker> <label>: value" anchored to a whole line.
// The marker is optional, labels are case-insensitive and may be wrapped in
// markdown emphasis.
func structuredLine(markers, labels string) *regexp.Regexp {
	return regexp.MustCompile(`(?i)^[ \t]*(?:[-•][ \t]*)?(?:(?:` + markers + `)\x{FE0F}?[ \t]*)?[*_]*(?:` +
		labels + `)[*_]*[ \t]*:[*_]*[ \t]*(\S.*?)[ \t]*$`)
}

var structuredFields = []structuredField{
	{FieldDestination, structuredLine(`📍|🌎|🌍|✈`, `destino|destination`)},
	{FieldDates, structuredLine(`📅|🗓`, `fechas?|dates?`)},
	{FieldPassengers, structuredLine(`👥`, `pasajeros|pax|personas|passengers`)},
	{FieldBudget, structuredLine(`💰|💵`, `presupuesto|budget`)},
	{FieldPhone, structuredLine(`📱|📞|☎`, `whatsapp|wsp|tel[eé]fono|celular|phone|tel`)},
	{FieldEmail, structuredLine(`✉|📧|📩`, `e-?mail|correo|mail`)},
	{FieldInstagram, structuredLine(`📸|📷`, `instagram|ig`)},
	{FieldOrigin, structuredLine(`🔗|📣`, `origen|fuente|canal|source`)},
}

var (
	labeledLine   = regexp.MustCompile(`^[ \t]*(?:[^\p{L}\p{N}\s:*_]+[ \t]*)?[*_]*(\p{L}[\p{L}\p{N} ]{0,30}?)[*_]*[ \t]*:[*_]*[ \t]*(\S.*?)[ \t]*$`)
	phonePattern  = regexp.MustCompile(`\+?\d[\d \-().]{6,20}\d`)
	datePattern   = regexp.MustCompile(`(?:^|\D)(?:\d{1,2}[-./]\d{1,2}[-./](?:\d{4}|\d{2})|\d{4}[-./]\d{1,2}[-./]\d{1,2})(?:\D|$)`)
	emailPattern  = regexp.MustCompile(`[A-Za-z0-9._%+\-]+@[A-Za-z0-9.\-]+\.[A-Za-z]{2,}`)
	handlePattern = regexp.MustCompile(`(?:^|[^\w@.])@([A-Za-z0-9_](?:[A-Za-z0-9_.]{0,28}[A-Za-z0-9_])?)`)
	budgetNumber  = regexp.MustCompile(`\d[\d.,]*`)
)

const (
	minPhoneDigits = 8
	maxPhoneDigits = 15
)

// ExtractFields derives lead attributes from a card's title and description.
//
// Structured block lines always win over generic matches; generic phone,
// email and @handle patterns only run over the remaining free text and only
// for keys the block did not provide. The title is taken verbatim as the
// contact name.
func ExtractFields(name, description string) ExtractedFields {
	fields := ExtractedFields{}
	if n := strings.TrimSpace(name); n != "" {
		fields[FieldContactName] = n
	}

	description = strings.ReplaceAll(description, "\r\n", "\n")
	var free []string
	for _, line := range strings.Split(description, "\n") {
		if key, value, ok := matchStructured(line); ok {
			if _, seen := fields[key]; !seen {
				if cleaned := cleanValue(key, value); cleaned != "" {
					fields[key] = cleaned
				}
			}
			continue
		}
		if label, value, ok := matchLabeled(line); ok {
			key := ExtraFieldPrefix + label
			if _, seen := fields[key]; !seen {
				fields[key] = value
			}
		}
		free = append(free, line)
	}

	rest := strings.Join(free, "\n")
	if _, ok := fields[FieldPhone]; !ok {
		if phone := findPhone(rest); phone != "" {
			fields[FieldPhone] = phone
		}
	}
	if _, ok := fields[FieldEmail]; !ok {
		if email := emailPattern.FindString(rest); email != "" {
			fields[FieldEmail] = email
		}
	}
	if _, ok := fields[FieldInstagram]; !ok {
		if m := handlePattern.FindStringSubmatch(rest); m != nil {
			fields[FieldInstagram] = m[1]
		}
	}
	return fields
}

func matchStructured(line string) (string, string, bool) {
	for _, f := range structuredFields {
		if m := f.pattern.FindStringSubmatch(line); m != nil {
			return f.key, m[1], true
		}
	}
	return "", "", false
}

func matchLabeled(line string) (string, string, bool) {
	m := labeledLine.FindStringSubmatch(line)
	if m == nil || strings.HasPrefix(m[2], "//") {
		return "", "", false
	}
	label := strings.Join(nameWords(m[1]), "_")
	if label == "" {
		return "", "", false
	}
	return label, m[2], true
}

func cleanValue(key, value string) string {
	value = strings.TrimSpace(value)
	switch key {
	case FieldInstagram:
		value = strings.TrimPrefix(value, "@")
		if i := strings.LastIndex(value, "instagram.com/"); i >= 0 {
			value = value[i+len("instagram.com/"):]
		}
		value = strings.TrimRight(value, "/.")
	case FieldEmail:
		value = strings.TrimRight(value, ".")
	}
	return value
}

// findPhone returns the first phone-shaped run of digits. Runs holding a
// day-month-year or year-month-day date are skipped unless they start with +.
func findPhone(text string) string {
	for _, candidate := range phonePattern.FindAllString(text, -1) {
		if !strings.HasPrefix(candidate, "+") && datePattern.MatchString(candidate) {
			continue
		}
		digits := 0
		for _, r := range candidate {
			if r >= '0' && r <= '9' {
				digits++
			}
		}
		if digits >= minPhoneDigits && digits <= maxPhoneDigits {
			return strings.TrimSpace(candidate)
		}
	}
	return ""
}

// ---------------------------------------------------------------------------
// Budget
// ---------------------------------------------------------------------------

var currencyMarkers = []struct {
	code    string
	markers []string
}{
	{"USD", []string{"usd", "u$s", "us$", "u$d", "dólar", "dolar", "dollar"}},
	{"EUR", []string{"eur", "€"}},
	{"BRL", []string{"brl", "r$", "reais"}},
	{"ARS", []string{"ars", "pesos"}},
}

// ParseBudget reads an amount and currency code from free budget text such as
// "USD 1.500" or "2,500.50 dólares". currency is "" when the text names none.
func ParseBudget(text string) (amount decimal.Decimal, currency string, ok bool) {
	raw := budgetNumber.FindString(text)
	if raw == "" {
		return decimal.Zero, "", false
	}
	amount, err := decimal.NewFromString(normalizeAmount(raw))
	if err != nil {
		return decimal.Zero, "", false
	}

	lower := strings.ToLower(text)
	for _, c := range currencyMarkers {
		for _, m := range c.markers {
			if strings.Contains(lower, m) {
				return amount, c.code, true
			}
		}
	}
	return amount, "", true
}

// normalizeAmount turns "1.500", "2.500,50" or "2,500.50" into a plain decimal string.
func normalizeAmount(raw string) string {
	raw = strings.TrimRight(raw, ".,")
	lastDot := strings.LastIndex(raw, ".")
	lastComma := strings.LastIndex(raw, ",")
	switch {
	case lastDot >= 0 && lastComma >= 0:
		if lastDot > lastComma {
			return strings.ReplaceAll(raw, ",", "")
		}
		return strings.ReplaceAll(strings.ReplaceAll(raw, ".", ""), ",", ".")
	case lastComma >= 0:
		return normalizeSingleSeparator(raw, ",")
	case lastDot >= 0:
		return normalizeSingleSeparator(raw, ".")
	default:
		return raw
	}
}

func normalizeSingleSeparator(raw, sep string) string {
	parts := strings.Split(raw, sep)
	if len(parts) > 2 {
		return strings.Join(parts, "")
	}
	// A single separator followed by exactly three digits groups thousands.
	if len(parts[1]) == 3 {
		return parts[0] + parts[1]
	}
	return parts[0] + "." + parts[1]
}
