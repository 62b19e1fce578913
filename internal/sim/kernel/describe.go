package kernel

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"tattletale/internal/sim/model"
)

// Names resolves actor ids for narrative text.
type Names interface {
	ActorName(id model.ActorID) string
}

// Description is the default narrative sentence for the kernel.
func (k *Kernel) Description(names Names) string {
	owner := names.ActorName(k.owner)
	switch p := k.payload.(type) {
	case *Resource:
		return fmt.Sprintf("%s was %s", owner, wealthAdjective(p.Value))
	case *Emotion:
		return fmt.Sprintf("%s was %s%s", owner, intensity(p.Value), p.Type.Adjective(p.Value))
	case *Relationship:
		return fmt.Sprintf("%s felt %s%s %s", owner, intensity(p.Value), p.Type.Phrase(p.Value), names.ActorName(p.Target))
	case *Goal:
		return fmt.Sprintf("%s wanted %s", owner, goalPhrase(p.Type))
	case *Trait:
		return fmt.Sprintf("%s was %s", owner, p.Name)
	case *Interaction:
		return FormatTemplate(p.Def.Prototype.Description, p.names(names, 0))
	}
	return k.Name()
}

// ActiveDescription is the interaction told from the initiator's side, with
// the other participants as arguments.
func (k *Kernel) ActiveDescription(names Names) string {
	in, ok := k.AsInteraction()
	if !ok {
		return k.Description(names)
	}
	tmpl := in.Def.Prototype.ActiveDescription
	if tmpl == "" {
		return k.Description(names)
	}
	return FormatTemplate(tmpl, in.names(names, 1))
}

// PassiveDescription is the interaction told from a non-initiator's side, with
// the initiator as the only argument.
func (k *Kernel) PassiveDescription(names Names) string {
	in, ok := k.AsInteraction()
	if !ok {
		return k.Description(names)
	}
	tmpl := in.Def.Prototype.PassiveDescription
	if tmpl == "" {
		return k.Description(names)
	}
	return FormatTemplate(tmpl, in.names(names, 0)[:1])
}

// DetailedDescription is the debugging form: "#id name (kind) owned by X".
func (k *Kernel) DetailedDescription(names Names) string {
	d := fmt.Sprintf("#%d %s (%s) owned by %s", k.id, k.Name(), k.Kind(), names.ActorName(k.owner))
	switch p := k.payload.(type) {
	case *Resource:
		d += fmt.Sprintf(" with value %.2f", p.Value)
	case *Emotion:
		d += fmt.Sprintf(" with value %.2f", p.Value)
	case *Relationship:
		d += fmt.Sprintf(" with value %.2f targeting %s", p.Value, names.ActorName(p.Target))
	case *Interaction:
		others := p.names(names, 1)
		switch len(others) {
		case 0:
		case 1:
			d += " with participant " + others[0]
		default:
			d += " with participants " + strings.Join(others, ", ")
		}
	}
	return d
}

func (p *Interaction) names(names Names, from int) []string {
	out := make([]string, 0, len(p.Participants))
	for _, a := range p.Participants[from:] {
		out = append(out, names.ActorName(a))
	}
	return out
}

// FormatTemplate substitutes "{}" with the next argument and "{N}" with
// argument N. Unknown placeholders are kept verbatim.
func FormatTemplate(tmpl string, args []string) string {
	var b strings.Builder
	next := 0
	for i := 0; i < len(tmpl); i++ {
		c := tmpl[i]
		if c != '{' {
			b.WriteByte(c)
			continue
		}
		end := strings.IndexByte(tmpl[i:], '}')
		if end < 0 {
			b.WriteString(tmpl[i:])
			break
		}
		inner := tmpl[i+1 : i+end]
		idx := next
		if inner == "" {
			next++
		} else {
			n, err := strconv.Atoi(inner)
			if err != nil {
				b.WriteString(tmpl[i : i+end+1])
				i += end
				continue
			}
			idx = n
		}
		if idx >= 0 && idx < len(args) {
			b.WriteString(args[idx])
		} else {
			b.WriteString(tmpl[i : i+end+1])
		}
		i += end
	}
	return b.String()
}

func intensity(v float64) string {
	a := math.Abs(v)
	switch {
	case a < 0.3:
		return "slightly "
	case a < 0.6:
		return ""
	case a < 1:
		return "very "
	}
	return "extremely "
}

func wealthAdjective(v float64) string {
	switch {
	case v <= -0.6:
		return "broke"
	case v < -0.2:
		return "poor"
	case v <= 0.2:
		return "getting by"
	case v < 0.6:
		return "well off"
	}
	return "rich"
}

var goalPhrases = [model.GoalCount]string{
	"to become rich",
	"to be accepted",
	"to find love",
	"to enjoy life",
	"to have power over others",
}

func goalPhrase(g model.GoalType) string {
	if g < 0 || int(g) >= model.GoalCount {
		return g.String()
	}
	return goalPhrases[g]
}
