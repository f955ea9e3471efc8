// Package rank models ranked ladder positions as ordered tier and division values.
package rank

import (
	"fmt"
	"sort"
	"strings"
)

// Tier is a ranked ladder band. Higher values are stronger.
type Tier int

// Supported tiers in ladder order.
const (
	TierUnknown Tier = iota
	Iron
	Bronze
	Silver
	Gold
	Platinum
	Emerald
	Diamond
	Master
	Grandmaster
	Challenger
)

var tierNames = map[Tier]string{
	Iron:        "IRON",
	Bronze:      "BRONZE",
	Silver:      "SILVER",
	Gold:        "GOLD",
	Platinum:    "PLATINUM",
	Emerald:     "EMERALD",
	Diamond:     "DIAMOND",
	Master:      "MASTER",
	Grandmaster: "GRANDMASTER",
	Challenger:  "CHALLENGER",
}

// Tiers returns every known tier from lowest to highest.
func Tiers() []Tier {
	return []Tier{Iron, Bronze, Silver, Gold, Platinum, Emerald, Diamond, Master, Grandmaster, Challenger}
}

// String renders the tier in the platform's upper-case form.
func (t Tier) String() string {
	if name, ok := tierNames[t]; ok {
		return name
	}
	return "UNKNOWN"
}

// Valid reports whether t is a known tier.
func (t Tier) Valid() bool {
	_, ok := tierNames[t]
	return ok
}

// ParseTier converts a case-insensitive tier name.
func ParseTier(s string) (Tier, error) {
	needle := strings.ToUpper(strings.TrimSpace(s))
	for tier, name := range tierNames {
		if name == needle {
			return tier, nil
		}
	}
	return TierUnknown, fmt.Errorf("unknown tier %q", s)
}

// Division is the position inside a tier. DivisionI is the highest.
type Division int

// Supported divisions in ascending order.
const (
	DivisionUnknown Division = iota
	DivisionV
	DivisionIV
	DivisionIII
	DivisionII
	DivisionI
)

var divisionNames = map[Division]string{
	DivisionV:   "V",
	DivisionIV:  "IV",
	DivisionIII: "III",
	DivisionII:  "II",
	DivisionI:   "I",
}

// Divisions returns every division from lowest to highest.
func Divisions() []Division {
	return []Division{DivisionV, DivisionIV, DivisionIII, DivisionII, DivisionI}
}

func (d Division) String() string {
	if name, ok := divisionNames[d]; ok {
		return name
	}
	return "?"
}

// Valid reports whether d is a known division.
func (d Division) Valid() bool {
	_, ok := divisionNames[d]
	return ok
}

// ParseDivision converts a roman numeral division.
func ParseDivision(s string) (Division, error) {
	needle := strings.ToUpper(strings.TrimSpace(s))
	for div, name := range divisionNames {
		if name == needle {
			return div, nil
		}
	}
	return DivisionUnknown, fmt.Errorf("unknown division %q", s)
}

// Rank is an immutable tier and division pair.
type Rank struct {
	Tier     Tier
	Division Division
}

// New builds a Rank.
func New(tier Tier, division Division) Rank {
	return Rank{Tier: tier, Division: division}
}

// Parse reads ranks written as "SILVER IV" or "silver 4".
func Parse(s string) (Rank, error) {
	fields := strings.Fields(s)
	if len(fields) != 2 {
		return Rank{}, fmt.Errorf("rank %q must be \"<tier> <division>\"", s)
	}
	tier, err := ParseTier(fields[0])
	if err != nil {
		return Rank{}, err
	}
	div, err := ParseDivision(arabicToRoman(fields[1]))
	if err != nil {
		return Rank{}, err
	}
	return Rank{Tier: tier, Division: div}, nil
}

func arabicToRoman(s string) string {
	switch s {
	case "1":
		return "I"
	case "2":
		return "II"
	case "3":
		return "III"
	case "4":
		return "IV"
	case "5":
		return "V"
	default:
		return s
	}
}

// Valid reports whether both tier and division are known.
func (r Rank) Valid() bool {
	return r.Tier.Valid() && r.Division.Valid()
}

// IsZero reports whether r is the zero Rank.
func (r Rank) IsZero() bool {
	return r == Rank{}
}

// Compare orders ranks tier-major, division-minor. It returns -1, 0 or +1.
func (r Rank) Compare(other Rank) int {
	switch {
	case r.Tier < other.Tier:
		return -1
	case r.Tier > other.Tier:
		return 1
	case r.Division < other.Division:
		return -1
	case r.Division > other.Division:
		return 1
	default:
		return 0
	}
}

// Less reports whether r is strictly below other.
func (r Rank) Less(other Rank) bool {
	return r.Compare(other) < 0
}

func (r Rank) String() string {
	return r.Tier.String() + " " + r.Division.String()
}

// Max returns the highest of the given ranks, or false if none were supplied.
func Max(ranks ...Rank) (Rank, bool) {
	if len(ranks) == 0 {
		return Rank{}, false
	}
	best := ranks[0]
	for _, r := range ranks[1:] {
		if best.Less(r) {
			best = r
		}
	}
	return best, true
}

// Set is an immutable collection of ranks used for filter membership.
type Set struct {
	members map[Rank]struct{}
}

// NewSet builds a Set from ranks. Duplicates collapse.
func NewSet(ranks ...Rank) Set {
	members := make(map[Rank]struct{}, len(ranks))
	for _, r := range ranks {
		members[r] = struct{}{}
	}
	return Set{members: members}
}

// Spanning returns every division of tier, the range a per-tier crawler filters on.
func Spanning(tier Tier) Set {
	divs := Divisions()
	ranks := make([]Rank, 0, len(divs))
	for _, d := range divs {
		ranks = append(ranks, Rank{Tier: tier, Division: d})
	}
	return NewSet(ranks...)
}

// Contains reports membership.
func (s Set) Contains(r Rank) bool {
	_, ok := s.members[r]
	return ok
}

// Len returns the number of members.
func (s Set) Len() int {
	return len(s.members)
}

// Ranks returns the members in ascending order.
func (s Set) Ranks() []Rank {
	out := make([]Rank, 0, len(s.members))
	for r := range s.members {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Less(out[j]) })
	return out
}

// Union returns a new Set holding members of both sets.
func (s Set) Union(other Set) Set {
	ranks := append(s.Ranks(), other.Ranks()...)
	return NewSet(ranks...)
}
