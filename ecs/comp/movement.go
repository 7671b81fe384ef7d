package comp

import (
	"github.com/df-mc/lattice/ecs"
	"github.com/go-gl/mathgl/mgl64"
)

// Movement integrates Velocity into Transform each tick. Dt is the fixed
// timestep applied per run, in seconds.
type Movement struct {
	Dt float64
}

// Run implements ecs.System.
func (m Movement) Run(ctx *ecs.SystemContext) any {
	transforms := &ecs.Write[Transform]{}
	velocities := &ecs.Read[Velocity]{}
	ctx.Lock(transforms, velocities).Execute(func() {
		velocities.Each(func(e ecs.Entity, v Velocity) bool {
			tr, ok := transforms.Get(e)
			if !ok {
				return true
			}
			tr.Translation = tr.Translation.Add(v.Linear.Mul(m.Dt))
			if angle := v.Angular.Len(); angle > 1e-12 {
				spin := mgl64.QuatRotate(angle*m.Dt, v.Angular.Normalize())
				tr.Rotation = spin.Mul(tr.Rotation).Normalize()
			}
			return true
		})
	})
	return nil
}
