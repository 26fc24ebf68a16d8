package recordgen

import (
	"context"
	"fmt"
	"math/rand"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"

	"github.com/fabrica/fabrica/internal/schema"
)

// words feed the text-ish generators. Dull on purpose.
var words = []string{
	"alpha", "bravo", "cedar", "delta", "ember", "fjord", "grove", "harbor",
	"inlet", "juniper", "kestrel", "lumen", "meadow", "nimbus", "opal",
	"prairie", "quartz", "ridge", "summit", "thicket", "umber", "vale",
	"willow", "zenith",
}

// Local generates values from a seeded PRNG, with no external calls. The same
// seed and request sequence produce the same values, which keeps test runs
// and --seed invocations reproducible.
type Local struct {
	mu      sync.Mutex
	rng     *rand.Rand
	entropy *ulid.MonotonicEntropy
	now     func() time.Time
}

// NewLocal creates a local generator seeded with the given value.
func NewLocal(seed int64) *Local {
	rng := rand.New(rand.NewSource(seed))
	return &Local{
		rng:     rng,
		entropy: ulid.Monotonic(rand.New(rand.NewSource(seed+1)), 0),
		now:     time.Now,
	}
}

// GenerateValue produces a value for the requested field, honoring numeric
// and length constraints. Unknown types fall back to text.
func (l *Local) GenerateValue(_ context.Context, req Request) (any, error) {
	if req.Spec.Type == schema.TypeForeignKey {
		return nil, ErrForeignKeyField
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	c := req.Spec.Constraints
	switch req.Spec.Type {
	case schema.TypeInteger:
		return l.integer(c, req.Index), nil
	case schema.TypeNumber:
		return l.number(c), nil
	case schema.TypeBoolean:
		return l.rng.Intn(2) == 0, nil
	case schema.TypeDate:
		return l.pastTime().Format("2006-01-02"), nil
	case schema.TypeDateTime:
		return l.pastTime().Format(time.RFC3339), nil
	case schema.TypeTime:
		return fmt.Sprintf("%02d:%02d:%02d", l.rng.Intn(24), l.rng.Intn(60), l.rng.Intn(60)), nil
	case schema.TypeEmail:
		return fmt.Sprintf("%s.%s%d@example.com", l.word(), l.word(), req.Index), nil
	case schema.TypePhone:
		return fmt.Sprintf("+1-555-%03d-%04d", l.rng.Intn(1000), l.rng.Intn(10000)), nil
	case schema.TypeURL:
		return fmt.Sprintf("https://example.com/%s/%s", l.word(), l.word()), nil
	case schema.TypeUUID:
		id, err := uuid.NewRandomFromReader(l.rng)
		if err != nil {
			return nil, fmt.Errorf("generating uuid: %w", err)
		}
		return id.String(), nil
	case schema.TypeID:
		return ulid.MustNew(ulid.Timestamp(l.now()), l.entropy).String(), nil
	default:
		return l.text(c, req.Index), nil
	}
}

func (l *Local) word() string {
	return words[l.rng.Intn(len(words))]
}

func (l *Local) integer(c *schema.ConstraintSet, index int) int64 {
	lo, hi := int64(1), int64(10000)
	if c != nil {
		if c.Min != nil {
			lo = int64(*c.Min)
		}
		if c.Max != nil {
			hi = int64(*c.Max)
		}
	}
	if hi < lo {
		hi = lo
	}
	if c != nil && c.Unique {
		// Sequential from the floor keeps uniqueness without bookkeeping.
		return lo + int64(index)
	}
	return lo + l.rng.Int63n(hi-lo+1)
}

func (l *Local) number(c *schema.ConstraintSet) float64 {
	lo, hi := 0.0, 10000.0
	if c != nil {
		if c.Min != nil {
			lo = *c.Min
		}
		if c.Max != nil {
			hi = *c.Max
		}
	}
	if hi < lo {
		hi = lo
	}
	v := lo + l.rng.Float64()*(hi-lo)
	return float64(int(v*100)) / 100
}

func (l *Local) text(c *schema.ConstraintSet, index int) string {
	n := 2 + l.rng.Intn(3)
	parts := make([]string, n)
	for i := range parts {
		parts[i] = l.word()
	}
	s := strings.Join(parts, " ")

	if c != nil {
		if c.Pattern != "" {
			if v, ok := fromPattern(c.Pattern, l.rng); ok {
				s = v
			}
		}
		if c.Unique {
			s = fmt.Sprintf("%s %d", s, index)
		}
		if c.MinLength != nil && len(s) < *c.MinLength {
			s += strings.Repeat("x", *c.MinLength-len(s))
		}
		if c.MaxLength != nil && len(s) > *c.MaxLength {
			s = s[:*c.MaxLength]
		}
	}
	return s
}

func (l *Local) pastTime() time.Time {
	back := time.Duration(l.rng.Int63n(int64(10 * 365 * 24 * time.Hour)))
	return l.now().Add(-back)
}

// literalPattern matches anchored literal-ish patterns like ^INV-[0-9]{4}$
// closely enough to produce a conforming value for the common prefix-plus-
// digits case. Anything fancier falls back to plain text.
var literalPattern = regexp.MustCompile(`^\^?([A-Za-z0-9_-]*)\[0-9\]\{(\d+)\}\$?$`)

func fromPattern(pattern string, rng *rand.Rand) (string, bool) {
	m := literalPattern.FindStringSubmatch(pattern)
	if m == nil {
		return "", false
	}
	var digits strings.Builder
	n := 0
	fmt.Sscanf(m[2], "%d", &n)
	for i := 0; i < n; i++ {
		fmt.Fprintf(&digits, "%d", rng.Intn(10))
	}
	return m[1] + digits.String(), true
}
