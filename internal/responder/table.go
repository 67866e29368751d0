// Package responder plays canned chat sequences. Input is matched against an
// ordered trigger table; the first matching trigger decides what happens.
package responder

import (
	"strings"
	"time"

	"github.com/kingrea/planboard/internal/board"
)

// Predicate decides whether a chat input fires a trigger.
type Predicate interface {
	Matches(input string) bool
}

// PredicateFunc adapts a function into a Predicate.
type PredicateFunc func(input string) bool

// Matches executes f(input).
func (f PredicateFunc) Matches(input string) bool {
	if f == nil {
		return false
	}
	return f(input)
}

// ExactPhrase matches when the trimmed input equals the trimmed phrase.
type ExactPhrase string

// Matches compares trimmed strings exactly; case and punctuation count.
func (p ExactPhrase) Matches(input string) bool {
	phrase := strings.TrimSpace(string(p))
	return phrase != "" && strings.TrimSpace(input) == phrase
}

// Step is one scripted agent message, emitted Delay after the previous one.
type Step struct {
	Text  string
	Delay time.Duration
}

// KPISelector picks which KPI an effect completes.
type KPISelector string

// FirstKPI selects the task's first KPI.
const FirstKPI KPISelector = "first"

// Resolve returns the KPI id the selector points at on t.
func (s KPISelector) Resolve(t *board.Task) (string, bool) {
	sel := strings.TrimSpace(string(s))
	if sel == "" || t == nil || len(t.KPIs) == 0 {
		return "", false
	}
	if KPISelector(sel) == FirstKPI {
		return t.KPIs[0].ID, true
	}
	if _, ok := t.KPI(sel); ok {
		return sel, true
	}
	return "", false
}

// Effect is what a trigger does once matched. Any field may be empty.
type Effect struct {
	Workflow    string
	Steps       []Step
	CompleteKPI KPISelector
	Evidence    string
	// Notify names a notification endpoint that receives a fire-and-forget POST.
	Notify string
}

// Trigger pairs a predicate with its effect.
type Trigger struct {
	Name   string
	Match  Predicate
	Effect Effect

	ordinal int
}

// Ordinal is the 1-based position of the trigger in its table.
func (t Trigger) Ordinal() int {
	return t.ordinal
}

// Table is an ordered trigger list. The zero value matches nothing.
type Table struct {
	triggers []Trigger
}

// NewTable builds a table; earlier triggers win.
func NewTable(triggers ...Trigger) *Table {
	out := make([]Trigger, 0, len(triggers))
	for _, t := range triggers {
		if t.Match == nil {
			continue
		}
		t.ordinal = len(out) + 1
		out = append(out, t)
	}
	return &Table{triggers: out}
}

// Match returns the first trigger whose predicate accepts input.
func (t *Table) Match(input string) (Trigger, bool) {
	if t == nil {
		return Trigger{}, false
	}
	for _, trig := range t.triggers {
		if trig.Match.Matches(input) {
			return trig, true
		}
	}
	return Trigger{}, false
}

// Len reports the number of triggers.
func (t *Table) Len() int {
	if t == nil {
		return 0
	}
	return len(t.triggers)
}

// Notifications lists the distinct notify names the table's triggers use.
func (t *Table) Notifications() []string {
	if t == nil {
		return nil
	}
	seen := map[string]bool{}
	var names []string
	for _, trig := range t.triggers {
		name := trig.Effect.Notify
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		names = append(names, name)
	}
	return names
}

// Names lists trigger names in match order.
func (t *Table) Names() []string {
	if t == nil {
		return nil
	}
	names := make([]string, 0, len(t.triggers))
	for _, trig := range t.triggers {
		names = append(names, trig.Name)
	}
	return names
}

const (
	// LuckyDrawPhrase starts the website build script.
	LuckyDrawPhrase = "Could you help me to build the lucky draw website?"
	// WhatsAppPhrase starts the WhatsApp send script.
	WhatsAppPhrase = "Who shall we send the whatsapp message to, and could you please help me to do that?"
)

// DefaultTable returns the two demo workflows.
func DefaultTable() *Table {
	return NewTable(
		Trigger{
			Name:  "build_lucky_draw_website",
			Match: ExactPhrase(LuckyDrawPhrase),
			Effect: Effect{
				Workflow:    "build_lucky_draw_website",
				CompleteKPI: FirstKPI,
				Steps: evenSteps(2*time.Second,
					"🔍 Looking for relevant project files in GitHub (metadata.json, index.html, index.tsx, types.ts, services/geminiService.ts)…",
					"🧩 Updating lucky draw components in constants.ts and types.ts…",
					"⚙️ Adjusting business logic in services/geminiService.ts…",
					"🚀 Deploying updated lucky draw website to hosting…",
					"✅ Done! The lucky draw website is now updated and live.",
				),
			},
		},
		Trigger{
			Name:  "send_whatsapp_message",
			Match: ExactPhrase(WhatsAppPhrase),
			Effect: Effect{
				Workflow:    "send_whatsapp_message",
				CompleteKPI: FirstKPI,
				Notify:      "send_whatsapp",
				Steps: evenSteps(3*time.Second,
					"👤 Identifying the correct recipient from DataLake…",
					"✏️ Framing message content based on context and intent…",
					"📤 Sending WhatsApp message via API…",
					"✅ Message successfully delivered!",
				),
			},
		},
	)
}

func evenSteps(delay time.Duration, texts ...string) []Step {
	steps := make([]Step, len(texts))
	for i, text := range texts {
		steps[i] = Step{Text: text, Delay: delay}
	}
	return steps
}
