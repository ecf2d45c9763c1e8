package parser

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrNoCode indicates the text does not open with a provider reference code
// followed by the confirmation marker. This is the only hard parse failure;
// every other field takes a documented default.
var ErrNoCode = errors.New("no reference code found")

// Fields is the structured output of a successful parse. Optional fields
// that did not match carry their defaults: zero Amount, current time Date,
// "Unknown Customer" name, empty phone.
type Fields struct {
	Code          string
	Amount        decimal.Decimal
	Date          time.Time
	CustomerName  string
	CustomerPhone string
	RawText       string

	// AmountDefaulted is set when no currency amount matched and the zero
	// default was used. Callers should log it: a zero-amount receipt is
	// operationally significant.
	AmountDefaulted bool
}

var (
	codeRe   = regexp.MustCompile(`^([A-Z0-9]{10})\s+Confirmed`)
	amountRe = regexp.MustCompile(`Ksh([\d,]+\.\d{2})`)
	dateRe   = regexp.MustCompile(`on\s+(\d{1,2}/\d{1,2}/\d{2,4})\s+at\s+(\d{1,2}:\d{2}\s*[AP]M)`)
	toRe     = regexp.MustCompile(`sent to\s+(.+?)\s+on`)
	fromRe   = regexp.MustCompile(`received from\s+(.+?)\s+on`)
	phoneRe  = regexp.MustCompile(`\d{10,12}`)
)

// DefaultCustomerName is used when neither directional phrase matches.
const DefaultCustomerName = "Unknown Customer"

// Parser extracts transaction fields from raw payment notification text.
// All timestamps are localized to the fixed business time zone.
type Parser struct {
	loc *time.Location

	// now is the clock used for the date fallback; overridable in tests.
	now func() time.Time
}

// New creates a Parser that localizes timestamps to loc.
func New(loc *time.Location) *Parser {
	return &Parser{loc: loc, now: time.Now}
}

// Parse extracts structured fields from a notification message.
// It returns ErrNoCode when the leading 10-character reference code plus
// "Confirmed" marker is absent; no partial result is produced in that case.
func (p *Parser) Parse(text string) (*Fields, error) {
	text = strings.TrimSpace(text)

	m := codeRe.FindStringSubmatch(text)
	if m == nil {
		return nil, ErrNoCode
	}

	f := &Fields{
		Code:         m[1],
		CustomerName: DefaultCustomerName,
		RawText:      text,
	}

	f.Amount, f.AmountDefaulted = parseAmount(text)
	f.Date = p.parseDate(text)

	if m := toRe.FindStringSubmatch(text); m != nil {
		f.CustomerName = normalizeName(m[1])
	} else if m := fromRe.FindStringSubmatch(text); m != nil {
		f.CustomerName = normalizeName(m[1])
	}

	f.CustomerPhone = phoneRe.FindString(f.CustomerName)

	return f, nil
}

// parseAmount extracts the first Ksh-prefixed amount. A missing amount is
// not an error: the zero default is deliberate policy for degraded input.
func parseAmount(text string) (decimal.Decimal, bool) {
	m := amountRe.FindStringSubmatch(text)
	if m == nil {
		return decimal.Zero, true
	}
	amount, err := decimal.NewFromString(strings.ReplaceAll(m[1], ",", ""))
	if err != nil {
		return decimal.Zero, true
	}
	return amount, false
}

// parseDate extracts the day/month/year date and 12-hour time, localized to
// the fixed zone. A non-matching or unparseable date falls back to the
// current time in that zone.
func (p *Parser) parseDate(text string) time.Time {
	m := dateRe.FindStringSubmatch(text)
	if m == nil {
		return p.now().In(p.loc)
	}

	dateStr, timeStr := m[1], normalizeTime(m[2])

	layout := "2/1/06 3:04 PM"
	if parts := strings.Split(dateStr, "/"); len(parts[len(parts)-1]) == 4 {
		layout = "2/1/2006 3:04 PM"
	}

	dt, err := time.ParseInLocation(layout, fmt.Sprintf("%s %s", dateStr, timeStr), p.loc)
	if err != nil {
		return p.now().In(p.loc)
	}
	return dt
}

// normalizeTime ensures exactly one space before the meridiem marker so a
// single layout handles "2:30PM" and "2:30 PM" alike.
func normalizeTime(s string) string {
	s = strings.ToUpper(strings.Join(strings.Fields(s), ""))
	if len(s) < 2 {
		return s
	}
	return s[:len(s)-2] + " " + s[len(s)-2:]
}

func normalizeName(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
