package scenario

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"dynamokv/internal/cluster"
	"dynamokv/internal/config"
)

var (
	// ErrInvalidScenario wraps every validation failure of a script.
	ErrInvalidScenario = errors.New("invalid scenario")
	// ErrExpectation is returned when a step's outcome does not match.
	ErrExpectation = errors.New("expectation failed")
)

// Op names a scenario step.
type Op string

const (
	OpCreate  Op = "create"
	OpLeave   Op = "leave"
	OpCrash   Op = "crash"
	OpRecover Op = "recover"
	OpGet     Op = "get"
	OpUpdate  Op = "update"
	OpDelay   Op = "delay"
	OpSleep   Op = "sleep"
	OpWait    Op = "wait"
	OpCheck   Op = "check"
)

// Scenario is a scripted run.
type Scenario struct {
	Name        string        `yaml:"name"`
	Description string        `yaml:"description,omitempty"`
	Config      config.Config `yaml:"config"`
	Steps       []Step        `yaml:"steps"`
}

// Step is a single scripted action.
type Step struct {
	Op          Op     `yaml:"op"`
	Description string `yaml:"description,omitempty"`

	Node cluster.NodeID `yaml:"node"`
	// Peer is the boot or recovery peer. Unset picks the lowest running
	// member.
	Peer *cluster.NodeID `yaml:"peer,omitempty"`

	Client int         `yaml:"client,omitempty"`
	Key    cluster.Key `yaml:"key,omitempty"`
	Value  string      `yaml:"value,omitempty"`

	// Delay is the response delay for delay steps and the pause for sleep
	// steps.
	Delay time.Duration `yaml:"delay,omitempty"`

	// Async client calls run in the background, starting After into the step.
	Async bool          `yaml:"async,omitempty"`
	After time.Duration `yaml:"after,omitempty"`

	// Retries resubmits a failed client call up to this many times.
	Retries uint `yaml:"retries,omitempty"`

	Expect *Expectation `yaml:"expect,omitempty"`
}

// Expectation describes the outcome a client or check step must observe.
type Expectation struct {
	Status  string  `yaml:"status,omitempty"`
	Value   *string `yaml:"value,omitempty"`
	Version *int64  `yaml:"version,omitempty"`
	Absent  bool    `yaml:"absent,omitempty"`
	// Within bounds how long a check step polls the store.
	Within time.Duration `yaml:"within,omitempty"`
}

// Load reads and validates a scenario file.
func Load(path string) (*Scenario, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("error opening scenario file: %w", err)
	}
	defer f.Close()

	return Decode(f)
}

// Decode reads a scenario. The config section is applied on top of the
// defaults and unknown fields are rejected.
func Decode(r io.Reader) (*Scenario, error) {
	sc := &Scenario{Config: config.Default()}

	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(sc); err != nil {
		return nil, fmt.Errorf("error decoding scenario: %w", err)
	}

	if err := sc.Validate(); err != nil {
		return nil, err
	}
	return sc, nil
}

// Validate checks the configuration and every step.
func (sc *Scenario) Validate() error {
	if err := sc.Config.Validate(); err != nil {
		return err
	}
	if len(sc.Steps) == 0 {
		return fmt.Errorf("%w: no steps", ErrInvalidScenario)
	}
	for i, st := range sc.Steps {
		if err := st.validate(); err != nil {
			return fmt.Errorf("%w: step %d: %s", ErrInvalidScenario, i+1, err)
		}
	}
	return nil
}

func (st Step) validate() error {
	switch st.Op {
	case OpCreate, OpLeave, OpCrash, OpRecover, OpCheck, OpGet:
	case OpUpdate:
		if st.Value == "" {
			return errors.New("update needs a value")
		}
	case OpDelay:
		if st.Delay < 0 {
			return errors.New("delay cannot be negative")
		}
	case OpSleep:
		if st.Delay <= 0 {
			return errors.New("sleep needs a positive delay")
		}
	case OpWait:
	default:
		return fmt.Errorf("unknown op %q", st.Op)
	}

	if !st.Node.Valid() {
		return fmt.Errorf("node id %d is negative", st.Node)
	}
	if st.Async && !st.isClientCall() {
		return fmt.Errorf("%s cannot be async", st.Op)
	}
	if st.Retries > 0 && !st.isClientCall() {
		return fmt.Errorf("%s cannot be retried", st.Op)
	}
	if st.Op == OpCheck && st.Expect == nil {
		return errors.New("check needs an expectation")
	}
	if e := st.Expect; e != nil {
		if e.Status != "" && e.Status != "OK" && e.Status != "ERROR" {
			return fmt.Errorf("unknown status %q", e.Status)
		}
		if e.Absent && (e.Value != nil || e.Version != nil) {
			return errors.New("absent excludes value and version")
		}
	}
	return nil
}

func (st Step) isClientCall() bool {
	return st.Op == OpGet || st.Op == OpUpdate
}

// peer returns the requested peer, or an invalid id to let the system pick.
func (st Step) peer() cluster.NodeID {
	if st.Peer == nil {
		return -1
	}
	return *st.Peer
}

func (st Step) String() string {
	switch st.Op {
	case OpGet:
		return fmt.Sprintf("get key %d via node %d", st.Key, st.Node)
	case OpUpdate:
		return fmt.Sprintf("update key %d=%q via node %d", st.Key, st.Value, st.Node)
	case OpSleep:
		return fmt.Sprintf("sleep %s", st.Delay)
	case OpWait:
		return "wait"
	case OpDelay:
		return fmt.Sprintf("delay node %d by %s", st.Node, st.Delay)
	case OpCheck:
		return fmt.Sprintf("check key %d on node %d", st.Key, st.Node)
	default:
		return fmt.Sprintf("%s node %d", st.Op, st.Node)
	}
}
