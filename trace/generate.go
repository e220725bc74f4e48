package trace

import "math/rand/v2"

// Profile defines characteristics for generated traces.
type Profile struct {
	// Ops is the number of operations. Default: 1000
	Ops int

	// IDs bounds the number of distinct block ids. Default: 100
	IDs int

	// MinSize and MaxSize bound request sizes. Defaults: 1 and 4096
	MinSize int
	MaxSize int

	// ReallocPct and FreePct are the chances (0.0-1.0) that an operation on
	// a live id is a realloc or a free. Defaults: 0.2 and 0.4
	ReallocPct float64
	FreePct    float64

	// WritePct is the chance of a write op on a live id. Default: 0
	WritePct float64

	// Seed for reproducibility
	Seed uint64
}

func (p *Profile) setDefaults() {
	if p.Ops <= 0 {
		p.Ops = 1000
	}
	if p.IDs <= 0 {
		p.IDs = 100
	}
	if p.MinSize <= 0 {
		p.MinSize = 1
	}
	if p.MaxSize < p.MinSize {
		p.MaxSize = max(4096, p.MinSize)
	}
	if p.ReallocPct == 0 && p.FreePct == 0 {
		p.ReallocPct, p.FreePct = 0.2, 0.4
	}
}

// Generate builds a valid random trace. The same profile always yields the
// same trace. Live blocks left at the end are freed, so the trace may hold a
// few more operations than p.Ops.
func Generate(p Profile) *Trace {
	p.setDefaults()
	rng := rand.New(rand.NewPCG(p.Seed, p.Seed^0x9E3779B97F4A7C15))

	t := &Trace{
		NumIDs: p.IDs,
		Weight: 1,
		Ops:    make([]Op, 0, p.Ops+p.IDs),
	}
	size := func() int { return p.MinSize + rng.IntN(p.MaxSize-p.MinSize+1) }

	var live, dead []int
	for id := p.IDs - 1; id >= 0; id-- {
		dead = append(dead, id)
	}
	sizes := make([]int, p.IDs)
	cur, peak := 0, 0

	for range p.Ops {
		roll := rng.Float64()
		if len(live) == 0 || (len(dead) > 0 && roll >= p.ReallocPct+p.FreePct+p.WritePct) {
			id := dead[len(dead)-1]
			dead = dead[:len(dead)-1]
			live = append(live, id)
			sizes[id] = size()
			cur += sizes[id]
			t.Ops = append(t.Ops, Op{Kind: OpAlloc, ID: id, Size: sizes[id]})
		} else {
			i := rng.IntN(len(live))
			id := live[i]
			switch {
			case roll < p.ReallocPct:
				n := size()
				cur += n - sizes[id]
				sizes[id] = n
				t.Ops = append(t.Ops, Op{Kind: OpRealloc, ID: id, Size: n})
			case roll < p.ReallocPct+p.WritePct:
				t.Ops = append(t.Ops, Op{Kind: OpWrite, ID: id, Size: rng.IntN(sizes[id] + 1)})
			default:
				cur -= sizes[id]
				live[i] = live[len(live)-1]
				live = live[:len(live)-1]
				dead = append(dead, id)
				t.Ops = append(t.Ops, Op{Kind: OpFree, ID: id})
			}
		}
		peak = max(peak, cur)
	}
	for _, id := range live {
		t.Ops = append(t.Ops, Op{Kind: OpFree, ID: id})
	}
	t.HeapHint = peak
	return t
}
