/*
exchange.go - Redemption log operations

PURPOSE:
  Each balance carries an append-only, newline-delimited text log of
  redemption events ("exchanges"). This file owns the two sides of that
  sub-ledger:
  - RecordExchange appends an entry and debits the balance
  - ParseLog projects the stored text into structured entries

ENTRY FORMATS:
  Current (written):  time|item|recipient|points|operator   (5 fields)
  Legacy  (read only): "time: free text description"        (2 fields)

INVARIANTS:
  - Entries are only ever appended; prior text is preserved verbatim
  - Field order and the pipe delimiter are fixed
  - ParseLog is a pure read-side projection; it never rewrites the text
*/
package points

import (
	"context"
	"strconv"
	"strings"
)

// unknownField fills parse defaults for absent recipient/operator values.
const unknownField = "unknown"

// LogEntry is one parsed redemption event. Field values stay strings:
// legacy entries carry no structured points value and downstream display
// treats everything as text.
type LogEntry struct {
	Date       string `json:"date"`
	Item       string `json:"item"`
	Recipient  string `json:"recipient"`
	PointsUsed string `json:"pointsUsed"`
	Operator   string `json:"operator"`
	Legacy     bool   `json:"legacy,omitempty"`
}

// RecordExchange redeems points against an owner's balance.
//
// Fails with ErrInsufficientPoints when pointsUsed exceeds the current
// balance (an exchange that zeroes the balance is allowed); on failure
// neither the balance nor the log changes and no change record is
// emitted.
//
// On success one pipe-delimited entry is appended to the log — the
// caller-supplied date combined with the wall-clock time of day, so
// multiple same-day exchanges stay distinguishable — the balance is
// debited by exactly pointsUsed, and one change record is emitted with
// reason "exchanged for: {item}".
func (e *Engine) RecordExchange(ctx context.Context, kind OwnerKind, ownerID, date, item string, pointsUsed int, operator string) (Balance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	i := e.indexByOwner(kind, ownerID)
	if i < 0 {
		return Balance{}, ErrNotFound
	}
	b := e.balances[kind][i]

	current := int(b.Points)
	if pointsUsed > current {
		return Balance{}, &InsufficientPointsError{
			OwnerID:   ownerID,
			Available: current,
			Requested: pointsUsed,
		}
	}

	recipient := unknownField
	if e.names != nil {
		if name := e.names.OwnerName(kind, ownerID); name != "" {
			recipient = name
		}
	}

	when := strings.TrimSpace(date + " " + e.Clock().Format("15:04:05"))
	entry := strings.Join([]string{
		when,
		item,
		recipient,
		strconv.Itoa(pointsUsed),
		operator,
	}, "|")

	log := b.ExchangeRecord
	if log == "" {
		log = entry
	} else {
		log = log + "\n" + entry
	}

	in := BalanceInput{
		Points:         current - pointsUsed,
		StartDate:      b.StartDate,
		ExchangeRecord: log,
		Notes:          b.Notes,
	}
	return e.setBalanceLocked(ctx, kind, b.ID, in, "", CauseExchange, item)
}

// ParseLog projects raw exchange-log text into structured entries, oldest
// first (storage order). Blank lines are dropped. Lines containing the
// pipe delimiter parse as the 5-field current format with missing
// trailing fields defaulting to "unknown"/"0"; anything else parses as a
// legacy "date: description" entry.
func ParseLog(raw string) []LogEntry {
	var entries []LogEntry
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if strings.Contains(line, "|") {
			entries = append(entries, parseCurrent(line))
		} else {
			entries = append(entries, parseLegacy(line))
		}
	}
	return entries
}

func parseCurrent(line string) LogEntry {
	parts := strings.Split(line, "|")
	field := func(i int, def string) string {
		if i < len(parts) && parts[i] != "" {
			return parts[i]
		}
		return def
	}
	return LogEntry{
		Date:       field(0, ""),
		Item:       field(1, ""),
		Recipient:  field(2, unknownField),
		PointsUsed: field(3, "0"),
		Operator:   field(4, unknownField),
	}
}

func parseLegacy(line string) LogEntry {
	date := line
	desc := ""
	if idx := strings.Index(line, ": "); idx >= 0 {
		date = line[:idx]
		desc = line[idx+2:]
	}
	return LogEntry{
		Date:       date,
		Item:       desc,
		Recipient:  unknownField,
		PointsUsed: "0",
		Operator:   unknownField,
		Legacy:     true,
	}
}
