package scheduler

import (
	"iter"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/noah-isme/clinic-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/clinic-scheduler-api/pkg/errors"
)

const (
	baseScore       = 50.0
	preferredBonus  = 1.2
	maxScore        = 100
	minScore        = 0
	DefaultTopSlots = 5
)

// SlotCandidate is a scored candidate range. It lives only for one request.
type SlotCandidate struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
	Score int       `json:"score"`
}

// Range returns the candidate's time range.
func (c SlotCandidate) Range() TimeRange { return TimeRange{Start: c.Start, End: c.End} }

// ScoreInput is everything besides the candidate that feeds a score.
type ScoreInput struct {
	Priority          models.Priority
	PreferredWindows  []TimeRange
	RequiredEquipment []string
	ProviderEquipment []string
}

// Validate rejects unknown priorities, blank equipment tags and malformed windows.
func (in ScoreInput) Validate() error {
	if !in.Priority.Valid() {
		return appErrors.Clonef(appErrors.ErrValidation, "unknown priority %q", in.Priority)
	}
	for _, tag := range in.RequiredEquipment {
		if strings.TrimSpace(tag) == "" {
			return appErrors.Clone(appErrors.ErrValidation, "equipment tags must not be empty")
		}
	}
	for _, w := range in.PreferredWindows {
		if err := w.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// EquipmentSatisfied reports whether every required tag is offered by the provider.
func EquipmentSatisfied(required, offered []string) bool {
	if len(required) == 0 {
		return true
	}
	have := make(map[string]struct{}, len(offered))
	for _, tag := range offered {
		have[normalizeTag(tag)] = struct{}{}
	}
	for _, tag := range required {
		if _, ok := have[normalizeTag(tag)]; !ok {
			return false
		}
	}
	return true
}

func normalizeTag(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}

// Score rates a candidate from 0 to 100. ok is false when the provider lacks
// required equipment; such candidates are excluded rather than scored.
func Score(candidate TimeRange, in ScoreInput) (int, bool) {
	if !EquipmentSatisfied(in.RequiredEquipment, in.ProviderEquipment) {
		return 0, false
	}
	score := baseScore * in.Priority.Multiplier()
	for _, w := range in.PreferredWindows {
		if w.Contains(candidate) {
			score *= preferredBonus
			break
		}
	}
	rounded := int(math.Round(score))
	if rounded > maxScore {
		rounded = maxScore
	}
	if rounded < minScore {
		rounded = minScore
	}
	return rounded, true
}

// Rank orders candidates by score descending, earliest start first on ties.
func Rank(candidates []SlotCandidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Score != candidates[j].Score {
			return candidates[i].Score > candidates[j].Score
		}
		return candidates[i].Start.Before(candidates[j].Start)
	})
}

// ScoreAll scores and ranks every candidate in seq.
func ScoreAll(seq iter.Seq[TimeRange], in ScoreInput) []SlotCandidate {
	var out []SlotCandidate
	if !EquipmentSatisfied(in.RequiredEquipment, in.ProviderEquipment) {
		return out
	}
	for r := range seq {
		score, ok := Score(r, in)
		if !ok {
			continue
		}
		out = append(out, SlotCandidate{Start: r.Start, End: r.End, Score: score})
	}
	Rank(out)
	return out
}

// TopK returns the k best candidates from seq.
func TopK(seq iter.Seq[TimeRange], in ScoreInput, k int) []SlotCandidate {
	if k <= 0 {
		k = DefaultTopSlots
	}
	ranked := ScoreAll(seq, in)
	if len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked
}
