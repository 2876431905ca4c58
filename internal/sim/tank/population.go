package tank

// Population is the fixed-capacity agent table for one species.
// Slots [0, active) hold live agents; the rest are empty.
type Population struct {
	species *SpeciesRuntime
	slots   []*Agent
	poses   []Pose
	active  int
}

func NewPopulation(sp *SpeciesRuntime, capacity int) *Population {
	if capacity < 0 {
		capacity = 0
	}
	return &Population{
		species: sp,
		slots:   make([]*Agent, capacity),
		poses:   make([]Pose, capacity),
	}
}

func (p *Population) Species() *SpeciesRuntime { return p.species }
func (p *Population) Capacity() int            { return len(p.slots) }
func (p *Population) ActiveCount() int         { return p.active }

// Spawn fills up to count empty slots with agents from newAgent and
// returns how many were placed.
func (p *Population) Spawn(count int, newAgent func() *Agent) int {
	n := 0
	for n < count && p.active < len(p.slots) {
		a := newAgent()
		if a == nil {
			break
		}
		a.Species = p.species
		a.slot = p.active
		p.slots[p.active] = a
		p.poses[p.active] = a.pose()
		p.active++
		n++
	}
	return n
}

// At returns the agent in slot when it is active.
func (p *Population) At(slot int) (*Agent, bool) {
	if slot < 0 || slot >= p.active {
		return nil, false
	}
	return p.slots[slot], true
}

// Active returns the live agents in slot order. The slice aliases the
// population and is only valid until the next catch.
func (p *Population) Active() []*Agent { return p.slots[:p.active] }

// Poses returns the transform buffer for active slots.
func (p *Population) Poses() []Pose { return p.poses[:p.active] }

// Catch removes the agent in slot. The last active agent moves into the
// freed slot and the tail is cleared. Inactive slots are a no-op.
func (p *Population) Catch(slot int) (*Agent, bool) {
	if slot < 0 || slot >= p.active {
		return nil, false
	}
	last := p.active - 1
	caught := p.slots[slot]
	if slot != last {
		moved := p.slots[last]
		moved.slot = slot
		p.slots[slot] = moved
		p.poses[slot] = moved.pose()
	}
	p.slots[last] = nil
	p.poses[last] = Pose{}
	p.active--
	caught.slot = -1
	return caught, true
}

func (p *Population) syncPoses() {
	for i, a := range p.slots[:p.active] {
		p.poses[i] = a.pose()
	}
}

// restore replaces the table contents; extra agents beyond capacity are dropped.
func (p *Population) restore(agents []*Agent) {
	for i := range p.slots {
		p.slots[i] = nil
		p.poses[i] = Pose{}
	}
	p.active = 0
	i := 0
	p.Spawn(len(agents), func() *Agent {
		a := agents[i]
		i++
		return a
	})
}
