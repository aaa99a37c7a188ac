// Package conflict classifies a national ID being registered in a farm
// against every worker record that already carries it.
//
// Farms keep independent record sets, so the same person showing up in a
// second farm is routine. The resolver tells a true duplicate entry apart from
// a legitimate return (same farm) or move (other farm) and leaves the policy
// decision to the caller.
package conflict

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/dalemusser/fermehub/internal/domain/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"
)

// Disposition is the resolver's verdict.
type Disposition string

const (
	// Proceed: nobody else carries the national ID.
	Proceed Disposition = "proceed"
	// Reject: an active worker of the same farm already carries it.
	Reject Disposition = "reject"
	// CrossFarm: an active worker of another farm carries it. Nothing is
	// created; that farm must record an exit first.
	CrossFarm Disposition = "cross_farm_conflict"
	// Reactivate: an inactive worker of the same farm carries it.
	Reactivate Disposition = "reactivation_candidate"
	// Transfer: an inactive worker of another farm carries it.
	Transfer Disposition = "transfer_candidate"
)

// DefaultSimilarityThreshold is the score at which two names are flagged.
const DefaultSimilarityThreshold = 0.85

// nameCandidateLimit bounds the name-token lookup.
const nameCandidateLimit = 200

// Finder is the read access the resolver needs.
type Finder interface {
	FindWorkersByNationalID(ctx context.Context, nationalID string) ([]models.Worker, error)
	FindWorkersByNameTokens(ctx context.Context, tokens []string, limit int) ([]models.Worker, error)
}

// Candidate is the identity being registered (or edited).
type Candidate struct {
	NationalID string
	FullName   string
	FarmID     primitive.ObjectID
	// ExcludeID skips the worker being edited.
	ExcludeID primitive.ObjectID
}

// Match is a probable duplicate found by name.
type Match struct {
	Worker models.Worker `json:"worker"`
	Score  float64       `json:"score"`
}

// Decision is the classification result.
type Decision struct {
	Disposition Disposition
	// Existing is the record that drove the disposition; nil for Proceed.
	Existing *models.Worker
	// ProbableDuplicates never blocks; it is for manual confirmation.
	ProbableDuplicates []Match
}

// Blocking reports whether the decision forbids creating a new record.
func (d Decision) Blocking() bool { return d.Disposition != Proceed }

// Resolver classifies candidates.
type Resolver struct {
	log       *zap.Logger
	threshold float64
}

// New creates a Resolver. A threshold outside (0, 1] uses the default.
func New(logger *zap.Logger, threshold float64) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if threshold <= 0 || threshold > 1 {
		threshold = DefaultSimilarityThreshold
	}
	return &Resolver{log: logger, threshold: threshold}
}

// NormalizeNationalID trims and upper-cases an identity number and drops
// inner spaces so "ab 12345" and "AB12345" compare equal.
func NormalizeNationalID(id string) string {
	return strings.ToUpper(strings.Join(strings.Fields(id), ""))
}

// Classify applies the rules in order; the first rule any match satisfies
// wins:
//  1. no match → Proceed
//  2. active, same farm → Reject
//  3. active, other farm → CrossFarm
//  4. inactive, same farm → Reactivate
//  5. inactive, other farm → Transfer
func (r *Resolver) Classify(ctx context.Context, f Finder, c Candidate) (Decision, error) {
	nid := NormalizeNationalID(c.NationalID)
	var matches []models.Worker
	if nid != "" {
		found, err := f.FindWorkersByNationalID(ctx, nid)
		if err != nil {
			return Decision{}, fmt.Errorf("find by national id: %w", err)
		}
		for _, w := range found {
			if w.ID != c.ExcludeID {
				matches = append(matches, w)
			}
		}
	}

	dupes, err := r.ProbableDuplicates(ctx, f, c)
	if err != nil {
		return Decision{}, err
	}

	d := Decision{Disposition: Proceed, ProbableDuplicates: dupes}
	rules := []struct {
		disp     Disposition
		active   bool
		sameFarm bool
	}{
		{Reject, true, true},
		{CrossFarm, true, false},
		{Reactivate, false, true},
		{Transfer, false, false},
	}
	for _, rule := range rules {
		if w := pick(matches, rule.active, rule.sameFarm, c.FarmID); w != nil {
			d.Disposition = rule.disp
			d.Existing = w
			break
		}
	}

	if d.Disposition != Proceed {
		r.log.Info("national id collision",
			zap.String("disposition", string(d.Disposition)),
			zap.String("farm_id", c.FarmID.Hex()),
			zap.String("existing_worker_id", d.Existing.ID.Hex()),
			zap.String("existing_farm_id", d.Existing.FarmID.Hex()))
	}
	return d, nil
}

// pick returns the best record matching the rule. Among inactive records the
// most recently exited wins.
func pick(ws []models.Worker, active, sameFarm bool, farmID primitive.ObjectID) *models.Worker {
	var best *models.Worker
	for i := range ws {
		w := ws[i]
		if w.IsActive() != active || (w.FarmID == farmID) != sameFarm {
			continue
		}
		if best == nil || exitedAfter(w, *best) {
			best = &ws[i]
		}
	}
	return best
}

func exitedAfter(a, b models.Worker) bool {
	ea, eb := exitOf(a), exitOf(b)
	if !ea.Equal(eb) {
		return ea.After(eb)
	}
	return a.UpdatedAt.After(b.UpdatedAt)
}

func exitOf(w models.Worker) time.Time {
	if w.ExitDate == nil {
		return time.Time{}
	}
	return *w.ExitDate
}

// ProbableDuplicates returns workers with a different national ID whose name
// is similar enough to the candidate's to deserve a manual look.
func (r *Resolver) ProbableDuplicates(ctx context.Context, f Finder, c Candidate) ([]Match, error) {
	_, tokens := NameKey(c.FullName)
	if len(tokens) == 0 {
		return nil, nil
	}
	found, err := f.FindWorkersByNameTokens(ctx, tokens, nameCandidateLimit)
	if err != nil {
		return nil, fmt.Errorf("find by name: %w", err)
	}
	nid := NormalizeNationalID(c.NationalID)
	var out []Match
	for _, w := range found {
		if w.ID == c.ExcludeID || NormalizeNationalID(w.NationalID) == nid {
			continue
		}
		if score := Similarity(c.FullName, w.FullName); score >= r.threshold {
			out = append(out, Match{Worker: w, Score: score})
		}
	}
	return out, nil
}
