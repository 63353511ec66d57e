package identity

import "errors"

// ErrNoReferences is returned when verification starts without a reference set.
var ErrNoReferences = errors.New("no reference descriptors loaded")

// Mode is the active session mode.
type Mode int

const (
	ModeIdle Mode = iota
	ModeRegistering
	ModeVerifying
)

func (m Mode) String() string {
	switch m {
	case ModeRegistering:
		return "registering"
	case ModeVerifying:
		return "verifying"
	default:
		return "idle"
	}
}

// Config holds matcher tuning.
type Config struct {
	// MaxCaptures is the number of descriptors that completes a registration.
	MaxCaptures int
	// Threshold is the distance a query must be strictly below to match.
	Threshold float64
}

// DefaultConfig returns the default matcher configuration.
func DefaultConfig() Config {
	return Config{
		MaxCaptures: 3,
		Threshold:   0.3,
	}
}

// OutcomeKind identifies a terminal matcher outcome.
type OutcomeKind int

const (
	Registered OutcomeKind = iota + 1
	Verified
)

func (k OutcomeKind) String() string {
	switch k {
	case Registered:
		return "registered"
	case Verified:
		return "verified"
	default:
		return "unknown"
	}
}

// Outcome describes a completed registration or a positive verification.
type Outcome struct {
	Kind OutcomeKind
	// Distance and Index describe the winning reference for Verified outcomes.
	Distance float64
	Index    int
	// References is the frozen reference set at the time of the outcome.
	References []Descriptor
}

// Matcher owns the reference descriptor set and the session state machine.
// It is not safe for concurrent use; the controller goroutine owns it.
type Matcher struct {
	cfg        Config
	mode       Mode
	refs       []Descriptor
	registered bool
	verified   bool
}

// NewMatcher creates a Matcher. Zero config fields fall back to defaults.
func NewMatcher(cfg Config) *Matcher {
	def := DefaultConfig()
	if cfg.MaxCaptures <= 0 {
		cfg.MaxCaptures = def.MaxCaptures
	}
	if cfg.Threshold <= 0 {
		cfg.Threshold = def.Threshold
	}
	return &Matcher{cfg: cfg}
}

// Config returns the matcher configuration.
func (m *Matcher) Config() Config {
	return m.cfg
}

// Mode returns the current session mode.
func (m *Matcher) Mode() Mode {
	return m.mode
}

// Completed reports the registration and verification completion flags.
func (m *Matcher) Completed() (registered, verified bool) {
	return m.registered, m.verified
}

// Captures returns the number of descriptors in the reference set.
func (m *Matcher) Captures() int {
	return len(m.refs)
}

// StartRegistration clears the reference set and enters registering mode.
func (m *Matcher) StartRegistration() {
	m.refs = nil
	m.registered = false
	m.verified = false
	m.mode = ModeRegistering
}

// StartVerification enters verifying mode against the current reference set.
func (m *Matcher) StartVerification() error {
	if len(m.refs) == 0 {
		return ErrNoReferences
	}
	m.verified = false
	m.mode = ModeVerifying
	return nil
}

// Cancel returns to idle without touching the reference set.
func (m *Matcher) Cancel() {
	m.mode = ModeIdle
}

// Load replaces the reference set with a copy of set.
func (m *Matcher) Load(set []Descriptor) {
	m.refs = make([]Descriptor, 0, len(set))
	for _, d := range set {
		if len(d) == 0 {
			continue
		}
		m.refs = append(m.refs, d.Clone())
	}
	m.registered = len(m.refs) >= m.cfg.MaxCaptures
	m.verified = false
}

// References returns a copy of the reference set.
func (m *Matcher) References() []Descriptor {
	out := make([]Descriptor, len(m.refs))
	for i, d := range m.refs {
		out[i] = d.Clone()
	}
	return out
}

// Register appends d to the reference set. It reports a Registered outcome
// once the set reaches MaxCaptures; after that it is a no-op.
func (m *Matcher) Register(d Descriptor) (Outcome, bool) {
	if m.registered || len(d) == 0 {
		return Outcome{}, false
	}

	m.refs = append(m.refs, d.Clone())
	if len(m.refs) < m.cfg.MaxCaptures {
		return Outcome{}, false
	}

	m.registered = true
	m.mode = ModeIdle
	return Outcome{
		Kind:       Registered,
		References: m.References(),
	}, true
}

// Verify compares d against every reference of the same length and reports
// a Verified outcome for the first distance strictly below the threshold.
// A miss leaves the matcher verifying.
func (m *Matcher) Verify(d Descriptor) (Outcome, bool) {
	if m.verified || len(d) == 0 {
		return Outcome{}, false
	}

	for i, ref := range m.refs {
		dist, ok := Distance(d, ref)
		if !ok {
			continue
		}
		if dist < m.cfg.Threshold {
			m.verified = true
			m.mode = ModeIdle
			return Outcome{
				Kind:       Verified,
				Distance:   dist,
				Index:      i,
				References: m.References(),
			}, true
		}
	}
	return Outcome{}, false
}

// Dispatch routes d according to the current mode.
func (m *Matcher) Dispatch(d Descriptor) (Outcome, bool) {
	switch m.mode {
	case ModeRegistering:
		return m.Register(d)
	case ModeVerifying:
		return m.Verify(d)
	default:
		return Outcome{}, false
	}
}
