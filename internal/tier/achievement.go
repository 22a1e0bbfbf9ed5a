package tier

// Milestone status values.
const (
	StatusCompleted  = "completed"
	StatusInProgress = "in-progress"
	StatusLocked     = "locked"
)

// Milestone is one step of an achievement track.
type Milestone struct {
	Target int    `json:"target"`
	Reward int64  `json:"reward"`
	Status string `json:"status"`
	// Progress is 0-100 within the span from the previous milestone.
	Progress int `json:"progress"`
}

// Track is an achievement category evaluated against one counter.
type Track struct {
	ID         string      `json:"id"`
	Current    int         `json:"current"`
	Milestones []Milestone `json:"milestones"`
}

type trackDef struct {
	id      string
	targets []int
	rewards []int64
}

var (
	miningTrack = trackDef{
		id:      "mining-streak",
		targets: []int{3, 7, 14, 30, 50, 60},
		rewards: []int64{50, 100, 250, 500, 1000, 2000},
	}
	knowledgeTrack = trackDef{
		id:      "knowledge-streak",
		targets: []int{7, 15, 30},
		rewards: []int64{100, 250, 500},
	}
	networkTrack = trackDef{
		id:      "network-growth",
		targets: []int{1, 3, 5, 10, 25, 50, 100, 250, 500},
		rewards: []int64{200, 500, 1000, 2500, 5000, 10000, 25000, 50000, 100000},
	}
)

// Achievements evaluates the mining, knowledge and network tracks.
func Achievements(miningStreak, knowledgeStreak, totalReferrals int) []Track {
	return []Track{
		miningTrack.evaluate(miningStreak),
		knowledgeTrack.evaluate(knowledgeStreak),
		networkTrack.evaluate(totalReferrals),
	}
}

func (d trackDef) evaluate(current int) Track {
	t := Track{ID: d.id, Current: current, Milestones: make([]Milestone, len(d.targets))}
	prev := 0
	for i, target := range d.targets {
		m := Milestone{Target: target, Reward: d.rewards[i]}
		switch {
		case current >= target:
			m.Status = StatusCompleted
			m.Progress = 100
		case current > 0:
			m.Status = StatusInProgress
			if current > prev {
				m.Progress = (current - prev) * 100 / (target - prev)
			}
		default:
			m.Status = StatusLocked
		}
		t.Milestones[i] = m
		prev = target
	}
	return t
}
