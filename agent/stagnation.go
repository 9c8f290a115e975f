package agent

import (
	"fmt"

	"github.com/strandworks/strand"
)

// DetectorConfig tunes the stagnation detector. The defaults are
// empirically chosen; none of them is a hard invariant.
type DetectorConfig struct {
	// Window is the size of the rolling operation window.
	Window int
	// RepeatThreshold flags a key recurring this often within the window.
	RepeatThreshold int
	// FailThreshold flags a failing key recurring this often cumulatively,
	// independent of recency.
	FailThreshold int
	// RunLength is K: the last K iterations sharing one action kind, all
	// failed, flags a loop. The same K scopes the confidence average.
	RunLength int
	// ConfidenceFloor flags an average verification confidence below this
	// value over the last RunLength iterations.
	ConfidenceFloor float64
}

// DefaultDetectorConfig returns the stock thresholds.
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		Window:          5,
		RepeatThreshold: 3,
		FailThreshold:   3,
		RunLength:       3,
		ConfidenceFloor: 0.35,
	}
}

// Operation is one recorded unit of agent work: what was done, to what,
// and how it went.
type Operation struct {
	// Target identifies the resource acted on.
	Target string
	// Kind is the action type, typically the tool name.
	Kind string
	// Iteration is the loop iteration that performed the operation.
	Iteration int
	// Failed marks an error outcome.
	Failed bool
	// Confidence is the verification confidence for the operation's
	// iteration; negative means unverified.
	Confidence float64
}

// key is target + kind: two writes to the same file are the same key, a
// write and a read of it are not.
func (o Operation) key() string {
	return o.Target + "\x00" + o.Kind
}

// Detector flags repetitive or failing behavior across iterations. One
// Detector serves one loop invocation; it is not safe for concurrent use.
type Detector struct {
	cfg DetectorConfig

	window        []Operation
	failCounts    map[string]int
	lastIteration int
}

// NewDetector creates a Detector with the given thresholds.
func NewDetector(cfg DetectorConfig) *Detector {
	return &Detector{
		cfg:        cfg,
		failCounts: make(map[string]int),
	}
}

// Record adds one operation. An iteration number lower than a previously
// recorded one is a correctness bug in the caller; Record reports it as an
// error and the loop must abort immediately.
func (d *Detector) Record(op Operation) error {
	if op.Iteration < d.lastIteration {
		return &strand.LoopAbortError{
			Kind:   string(SignalStagnation),
			Reason: fmt.Sprintf("iteration regressed from %d to %d", d.lastIteration, op.Iteration),
		}
	}
	d.lastIteration = op.Iteration

	d.window = append(d.window, op)
	if len(d.window) > d.cfg.Window {
		d.window = d.window[len(d.window)-d.cfg.Window:]
	}

	if op.Failed {
		d.failCounts[op.key()]++
	}
	return nil
}

// Check reports whether the recorded history looks like a loop, with a
// human-readable reason.
func (d *Detector) Check() (string, bool) {
	if reason, ok := d.checkWindowRepeats(); ok {
		return reason, true
	}
	if reason, ok := d.checkCumulativeFailures(); ok {
		return reason, true
	}
	if reason, ok := d.checkFailingRun(); ok {
		return reason, true
	}
	if reason, ok := d.checkLowConfidence(); ok {
		return reason, true
	}
	return "", false
}

func (d *Detector) checkWindowRepeats() (string, bool) {
	counts := make(map[string]int, len(d.window))
	for _, op := range d.window {
		counts[op.key()]++
		if counts[op.key()] >= d.cfg.RepeatThreshold {
			return fmt.Sprintf("operation %s on %q repeated %d times in the last %d operations",
				op.Kind, op.Target, counts[op.key()], d.cfg.Window), true
		}
	}
	return "", false
}

// checkCumulativeFailures counts failures per key over the whole run, not
// just the window: a key may age out of the window while it keeps failing.
func (d *Detector) checkCumulativeFailures() (string, bool) {
	for key, n := range d.failCounts {
		if n >= d.cfg.FailThreshold {
			return fmt.Sprintf("%s has failed %d times", keyString(key), n), true
		}
	}
	return "", false
}

func (d *Detector) checkFailingRun() (string, bool) {
	k := d.cfg.RunLength
	if k <= 0 || len(d.window) < k {
		return "", false
	}

	tail := d.window[len(d.window)-k:]
	kind := tail[0].Kind
	for _, op := range tail {
		if op.Kind != kind || !op.Failed {
			return "", false
		}
	}
	return fmt.Sprintf("last %d operations were all failing %s calls", k, kind), true
}

func (d *Detector) checkLowConfidence() (string, bool) {
	k := d.cfg.RunLength
	if k <= 0 || len(d.window) < k {
		return "", false
	}

	sum := 0.0
	n := 0
	for _, op := range d.window[len(d.window)-k:] {
		if op.Confidence < 0 {
			continue
		}
		sum += op.Confidence
		n++
	}
	if n < k {
		return "", false
	}

	avg := sum / float64(n)
	if avg < d.cfg.ConfidenceFloor {
		return fmt.Sprintf("average verification confidence %.2f over the last %d operations is below %.2f",
			avg, k, d.cfg.ConfidenceFloor), true
	}
	return "", false
}

func keyString(key string) string {
	for i := 0; i < len(key); i++ {
		if key[i] == 0 {
			return key[i+1:] + " on " + key[:i]
		}
	}
	return key
}
