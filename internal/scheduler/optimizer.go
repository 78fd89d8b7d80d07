package scheduler

import (
	"math"
	"sort"
	"time"

	"github.com/noah-isme/clinic-scheduler-api/internal/models"
	appErrors "github.com/noah-isme/clinic-scheduler-api/pkg/errors"
)

// DefaultIterationFactor multiplies the booking count to cap optimizer work.
const DefaultIterationFactor = 3

// Move reasons.
const (
	ReasonConflict    = "conflict"
	ReasonImprovement = "improvement"
	ReasonDisplaced   = "displaced"
)

// Move relocates one booking.
type Move struct {
	BookingID string          `json:"booking_id"`
	Priority  models.Priority `json:"priority"`
	From      TimeRange       `json:"from"`
	To        TimeRange       `json:"to"`
	FromScore int             `json:"from_score"`
	ToScore   int             `json:"to_score"`
	Reason    string          `json:"reason"`
}

// Metrics summarizes a provider calendar over the optimization horizon.
type Metrics struct {
	Score       int     `json:"score"`
	Utilization float64 `json:"utilization"`
	IdleGaps    int     `json:"idle_gaps"`
	IdleMinutes int     `json:"idle_minutes"`
}

// Proposal is a descriptive set of moves; nothing is applied.
type Proposal struct {
	ProviderID string   `json:"provider_id"`
	Moves      []Move   `json:"moves"`
	Conflicts  []string `json:"conflicts"`
	Unresolved []string `json:"unresolved"`
	Before     Metrics  `json:"before"`
	After      Metrics  `json:"after"`
	Iterations int      `json:"iterations"`
}

// OptimizeInput is a consistent snapshot of one provider's calendar.
type OptimizeInput struct {
	ProviderID        string
	Bookings          []models.Booking
	Resolver          *Resolver
	Horizon           DateRange
	ProviderEquipment []string
	Step              time.Duration
	Now               time.Time
	IterationFactor   int
}

type planned struct {
	id       string
	priority models.Priority
	input    ScoreInput
	duration time.Duration
	original TimeRange
	current  TimeRange
	score    int
	seated   bool
	fixed    bool
}

// calendar is the mutable simulation state: a scratch timeline plus per-day counts.
type calendar struct {
	tl     *Timeline
	counts map[string]int
}

func (c *calendar) clone() *calendar {
	counts := make(map[string]int, len(c.counts))
	for k, v := range c.counts {
		counts[k] = v
	}
	return &calendar{tl: c.tl.Clone(), counts: counts}
}

type optimizer struct {
	in      OptimizeInput
	open    []TimeRange
	items   map[string]*planned
	order   []*planned
	cal     *calendar
	steps   []Move
	iters   int
	maxIter int
}

// Optimize proposes reschedules that raise the provider's aggregate score.
//
// It is a greedy, priority-first heuristic and not globally optimal. Bookings are
// seated in priority order on a scratch timeline; those that cannot be seated
// are relocated first. Each booking then moves only to a strictly better slot,
// and high or urgent bookings may push low or medium bookings aside when those
// can be re-seated at no loss. Work stops when a full pass makes no move or the
// iteration cap is reached.
func Optimize(in OptimizeInput) (Proposal, error) {
	if in.Resolver == nil {
		return Proposal{}, appErrors.Clone(appErrors.ErrValidation, "optimizer requires availability")
	}
	open, err := in.Resolver.OpenIntervals(in.Horizon)
	if err != nil {
		return Proposal{}, err
	}
	if in.Step <= 0 {
		in.Step = DefaultStep
	}
	if in.IterationFactor <= 0 {
		in.IterationFactor = DefaultIterationFactor
	}

	o := &optimizer{
		in:    in,
		items: make(map[string]*planned),
		cal:   &calendar{tl: NewTimeline(), counts: make(map[string]int)},
	}
	for interval := range open {
		o.open = append(o.open, interval)
	}
	o.load()
	o.maxIter = len(o.order) * in.IterationFactor

	conflicts := o.seat()
	if err := o.relocate(conflicts); err != nil {
		return Proposal{}, diverged(in.ProviderID, err)
	}
	if err := o.improve(); err != nil {
		return Proposal{}, diverged(in.ProviderID, err)
	}

	moves := collapse(o.steps, o.items)
	ordered, before, after, err := o.sequence(moves)
	if err != nil {
		return Proposal{}, diverged(in.ProviderID, err)
	}

	proposal := Proposal{
		ProviderID: in.ProviderID,
		Moves:      ordered,
		Conflicts:  idsOf(conflicts),
		Unresolved: []string{},
		Before:     before,
		After:      after,
		Iterations: o.iters,
	}
	if proposal.Moves == nil {
		proposal.Moves = []Move{}
	}
	if proposal.Conflicts == nil {
		proposal.Conflicts = []string{}
	}
	moved := make(map[string]struct{}, len(ordered))
	for _, m := range ordered {
		moved[m.BookingID] = struct{}{}
	}
	for _, p := range conflicts {
		if _, ok := moved[p.id]; !ok {
			proposal.Unresolved = append(proposal.Unresolved, p.id)
		}
	}
	return proposal, nil
}

// diverged marks a failed mutation of the simulated calendar.
func diverged(providerID string, err error) error {
	return appErrors.Wrap(err, appErrors.ErrInvariantViolation.Code, appErrors.ErrInvariantViolation.Status,
		"optimizer calendar diverged for provider "+providerID)
}

func (o *optimizer) load() {
	for _, b := range o.in.Bookings {
		if b.Status != models.BookingStatusScheduled {
			continue
		}
		r := TimeRange{Start: b.StartTime, End: b.EndTime}
		p := &planned{
			id:       b.ID,
			priority: b.Priority,
			input: ScoreInput{
				Priority:          b.Priority,
				PreferredWindows:  RangesFromWindows(b.PreferredWindows),
				RequiredEquipment: b.RequiredEquipment,
				ProviderEquipment: o.in.ProviderEquipment,
			},
			duration: r.Duration(),
			original: r,
			current:  r,
			fixed:    r.Start.Before(o.in.Now),
		}
		p.score = o.placedScore(p, r)
		o.items[p.id] = p
		o.order = append(o.order, p)
	}
	sort.SliceStable(o.order, func(i, j int) bool {
		a, b := o.order[i], o.order[j]
		if a.priority.Rank() != b.priority.Rank() {
			return a.priority.Rank() > b.priority.Rank()
		}
		if a.score != b.score {
			return a.score > b.score
		}
		if !a.current.Start.Equal(b.current.Start) {
			return a.current.Start.Before(b.current.Start)
		}
		return a.id < b.id
	})
}

// placedScore scores r; ranges outside availability score zero.
func (o *optimizer) placedScore(p *planned, r TimeRange) int {
	if !o.in.Resolver.IsOpen(r) {
		return 0
	}
	score, ok := Score(r, p.input)
	if !ok {
		return 0
	}
	return score
}

func (o *optimizer) dayKey(t time.Time) string {
	return t.In(o.in.Resolver.Location()).Format(dateLayout)
}

// seat places bookings in priority order and returns the ones that could not be placed.
func (o *optimizer) seat() []*planned {
	var conflicts []*planned
	for _, p := range o.order {
		inHours := o.in.Resolver.IsOpen(p.current)
		if (inHours || p.fixed) && o.cal.tl.Insert(p.id, p.current) == nil {
			p.seated = true
			o.cal.counts[o.dayKey(p.current.Start)]++
			continue
		}
		p.score = 0
		conflicts = append(conflicts, p)
	}
	return conflicts
}

func (o *optimizer) tick() bool {
	if o.iters >= o.maxIter {
		return false
	}
	o.iters++
	return true
}

func (o *optimizer) relocate(conflicts []*planned) error {
	for _, p := range conflicts {
		if p.fixed || !o.tick() {
			continue
		}
		if best, ok := o.bestFree(o.cal, p, -1, nil); ok {
			if err := o.place(o.cal, p, best, ReasonConflict); err != nil {
				return err
			}
			continue
		}
		if !p.priority.Displaceable() {
			if _, err := o.displace(p, -1); err != nil {
				return err
			}
		}
	}
	return nil
}

func (o *optimizer) improve() error {
	for improved := true; improved; {
		improved = false
		for _, p := range o.order {
			if !p.seated || p.fixed {
				continue
			}
			if !o.tick() {
				return nil
			}
			if best, ok := o.bestFree(o.cal, p, p.score, nil); ok {
				if err := o.place(o.cal, p, best, ReasonImprovement); err != nil {
					return err
				}
				improved = true
				continue
			}
			if p.priority.Displaceable() {
				continue
			}
			moved, err := o.displace(p, p.score)
			if err != nil {
				return err
			}
			if moved {
				improved = true
			}
		}
	}
	return nil
}

// candidates enumerates in-hours ranges for p that start after now and respect daily caps.
func (o *optimizer) candidates(cal *calendar, p *planned, yield func(TimeRange, int) bool) {
	for _, interval := range o.open {
		for start := interval.Start; !start.Add(p.duration).After(interval.End); start = start.Add(o.in.Step) {
			if start.Before(o.in.Now) {
				continue
			}
			c := NewRange(start, p.duration)
			if !o.withinCap(cal, p, c) {
				continue
			}
			score, ok := Score(c, p.input)
			if !ok {
				return
			}
			if !yield(c, score) {
				return
			}
		}
	}
}

func (o *optimizer) withinCap(cal *calendar, p *planned, c TimeRange) bool {
	limit := o.in.Resolver.DailyCap(c.Start)
	if limit <= 0 {
		return true
	}
	key := o.dayKey(c.Start)
	count := cal.counts[key]
	if p.seated && o.dayKey(p.current.Start) == key {
		count--
	}
	return count < limit
}

func free(tl *Timeline, c TimeRange, self string) bool {
	for _, hit := range tl.Overlapping(c) {
		if hit.BookingID != self {
			return false
		}
	}
	return true
}

// bestFree finds the highest scoring free candidate strictly above floor,
// earliest start first, avoiding reserved when set.
func (o *optimizer) bestFree(cal *calendar, p *planned, floor int, reserved *TimeRange) (SlotCandidate, bool) {
	var best SlotCandidate
	found := false
	o.candidates(cal, p, func(c TimeRange, score int) bool {
		if score <= floor || (found && score <= best.Score) {
			return true
		}
		if p.seated && c.Equal(p.current) {
			return true
		}
		if reserved != nil && reserved.Overlaps(c) {
			return true
		}
		if !free(cal.tl, c, p.id) {
			return true
		}
		best = SlotCandidate{Start: c.Start, End: c.End, Score: score}
		found = true
		return true
	})
	return best, found
}

// place seats p at to on cal. Nothing about p or cal changes when the timeline
// rejects the target.
func (o *optimizer) place(cal *calendar, p *planned, to SlotCandidate, reason string) error {
	target := to.Range()
	if p.seated {
		if err := cal.tl.Replace(p.id, p.id, target); err != nil {
			return err
		}
		cal.counts[o.dayKey(p.current.Start)]--
	} else if err := cal.tl.Insert(p.id, target); err != nil {
		return err
	}
	cal.counts[o.dayKey(target.Start)]++
	if cal == o.cal {
		o.steps = append(o.steps, Move{
			BookingID: p.id,
			Priority:  p.priority,
			From:      p.current,
			To:        target,
			FromScore: p.score,
			ToScore:   to.Score,
			Reason:    reason,
		})
	}
	p.current = target
	p.score = to.Score
	p.seated = true
	return nil
}

// displace tries to seat p above floor by pushing low or medium bookings to other
// slots that keep their score. Blockers move before p so the sequence stays applicable.
func (o *optimizer) displace(p *planned, floor int) (bool, error) {
	type option struct {
		slot SlotCandidate
		hits []Entry
	}
	var options []option
	o.candidates(o.cal, p, func(c TimeRange, score int) bool {
		if score <= floor || (p.seated && c.Equal(p.current)) {
			return true
		}
		var hits []Entry
		for _, hit := range o.cal.tl.Overlapping(c) {
			if hit.BookingID == p.id {
				continue
			}
			blocker := o.items[hit.BookingID]
			if blocker == nil || blocker.fixed || !blocker.priority.Displaceable() {
				return true
			}
			hits = append(hits, hit)
		}
		if len(hits) > 0 {
			options = append(options, option{slot: SlotCandidate{Start: c.Start, End: c.End, Score: score}, hits: hits})
		}
		return true
	})
	sort.SliceStable(options, func(i, j int) bool {
		if options[i].slot.Score != options[j].slot.Score {
			return options[i].slot.Score > options[j].slot.Score
		}
		return options[i].slot.Start.Before(options[j].slot.Start)
	})

	for _, opt := range options {
		scratch := o.cal.clone()
		target := opt.slot.Range()
		var plan []Move
		ok := true
		for _, hit := range opt.hits {
			blocker := o.items[hit.BookingID]
			shadow := *blocker
			slot, found := o.bestFree(scratch, &shadow, blocker.score-1, &target)
			if !found {
				ok = false
				break
			}
			if err := o.place(scratch, &shadow, slot, ReasonDisplaced); err != nil {
				return false, err
			}
			plan = append(plan, Move{
				BookingID: blocker.id,
				Priority:  blocker.priority,
				From:      blocker.current,
				To:        slot.Range(),
				FromScore: blocker.score,
				ToScore:   slot.Score,
				Reason:    ReasonDisplaced,
			})
		}
		if !ok || !free(scratch.tl, target, p.id) || !o.withinCap(scratch, p, target) {
			continue
		}
		for _, m := range plan {
			blocker := o.items[m.BookingID]
			if err := o.place(o.cal, blocker, SlotCandidate{Start: m.To.Start, End: m.To.End, Score: m.ToScore}, ReasonDisplaced); err != nil {
				return false, err
			}
		}
		reason := ReasonImprovement
		if !p.seated {
			reason = ReasonConflict
		}
		if err := o.place(o.cal, p, opt.slot, reason); err != nil {
			return false, err
		}
		return true, nil
	}
	return false, nil
}

// collapse merges repeated moves of a booking into one from-original move.
func collapse(steps []Move, items map[string]*planned) []Move {
	index := make(map[string]int)
	var out []Move
	for _, step := range steps {
		if i, ok := index[step.BookingID]; ok {
			out[i].To = step.To
			out[i].ToScore = step.ToScore
			if step.Reason == ReasonDisplaced {
				out[i].Reason = ReasonDisplaced
			}
			continue
		}
		p := items[step.BookingID]
		step.From = p.original
		index[step.BookingID] = len(out)
		out = append(out, step)
	}
	kept := out[:0]
	for _, m := range out {
		if !m.From.Equal(m.To) {
			kept = append(kept, m)
		}
	}
	return kept
}

// sequence orders moves so each target is free when applied one at a time on a
// replica of the live calendar, and measures the calendar before and after.
// Moves that cannot be ordered are dropped; a move the replica rejects after its
// target checked free is an error.
func (o *optimizer) sequence(moves []Move) ([]Move, Metrics, Metrics, error) {
	live := &calendar{tl: NewTimeline(), counts: make(map[string]int)}
	scores := make(map[string]int, len(o.order))
	for _, p := range o.order {
		if live.tl.Insert(p.id, p.original) != nil {
			continue
		}
		live.counts[o.dayKey(p.original.Start)]++
		scores[p.id] = o.placedScore(p, p.original)
	}
	before := o.measure(live.tl, scores)

	pending := append([]Move(nil), moves...)
	var ordered []Move
	for len(pending) > 0 {
		progressed := false
		for i, m := range pending {
			p := o.items[m.BookingID]
			shadow := *p
			_, shadow.seated = live.tl.Lookup(p.id)
			if shadow.seated {
				shadow.current = p.original
			}
			if !free(live.tl, m.To, p.id) || !o.withinCap(live, &shadow, m.To) {
				continue
			}
			if shadow.seated {
				if err := live.tl.Replace(p.id, p.id, m.To); err != nil {
					return nil, Metrics{}, Metrics{}, err
				}
				live.counts[o.dayKey(p.original.Start)]--
			} else if err := live.tl.Insert(p.id, m.To); err != nil {
				return nil, Metrics{}, Metrics{}, err
			}
			live.counts[o.dayKey(m.To.Start)]++
			scores[p.id] = m.ToScore
			ordered = append(ordered, m)
			pending = append(pending[:i], pending[i+1:]...)
			progressed = true
			break
		}
		if !progressed {
			break
		}
	}
	after := o.measure(live.tl, scores)
	return ordered, before, after, nil
}

// measure sums scores of seated bookings and reports utilization and unusable
// idle fragments of the open hours from now on.
func (o *optimizer) measure(tl *Timeline, scores map[string]int) Metrics {
	var m Metrics
	for _, e := range tl.Entries() {
		m.Score += scores[e.BookingID]
	}
	shortest := time.Duration(0)
	for _, p := range o.order {
		if shortest == 0 || p.duration < shortest {
			shortest = p.duration
		}
	}
	if shortest == 0 {
		shortest = o.in.Step
	}
	var openMinutes, bookedMinutes float64
	for _, interval := range o.open {
		if !interval.End.After(o.in.Now) {
			continue
		}
		if interval.Start.Before(o.in.Now) {
			interval.Start = o.in.Now
		}
		openMinutes += interval.Duration().Minutes()
		cursor := interval.Start
		for _, hit := range tl.Overlapping(interval) {
			busy := clip(hit.Range, interval)
			bookedMinutes += busy.Duration().Minutes()
			m.addGap(busy.Start.Sub(cursor), shortest)
			if busy.End.After(cursor) {
				cursor = busy.End
			}
		}
		m.addGap(interval.End.Sub(cursor), shortest)
	}
	if openMinutes > 0 {
		m.Utilization = math.Round(bookedMinutes/openMinutes*10000) / 10000
	}
	return m
}

func (m *Metrics) addGap(gap, shortest time.Duration) {
	if gap > 0 && gap < shortest {
		m.IdleGaps++
		m.IdleMinutes += int(gap.Minutes())
	}
}

func clip(r, bounds TimeRange) TimeRange {
	if r.Start.Before(bounds.Start) {
		r.Start = bounds.Start
	}
	if r.End.After(bounds.End) {
		r.End = bounds.End
	}
	return r
}

func idsOf(items []*planned) []string {
	out := make([]string, 0, len(items))
	for _, p := range items {
		out = append(out, p.id)
	}
	return out
}

// RangesFromWindows converts stored preferred windows to time ranges.
func RangesFromWindows(windows models.Windows) []TimeRange {
	out := make([]TimeRange, 0, len(windows))
	for _, w := range windows {
		out = append(out, TimeRange{Start: w.Start, End: w.End})
	}
	return out
}
