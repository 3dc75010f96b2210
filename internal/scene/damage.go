package scene

import (
	"github.com/bnema/waycomp/internal/geom"
)

// damageTile is the edge length of one damage tile in output pixels.
const damageTile = 64

func (o *Output) tileColumns() int32 {
	return (o.mode.Width + damageTile - 1) / damageTile
}

// addDamage marks every tile that r (global) touches.
func (o *Output) addDamage(r geom.Rect) bool {
	local := r.Intersect(o.Area())
	if local.Empty() {
		return false
	}
	local = local.Translate(-o.x, -o.y)
	cols := o.tileColumns()
	tx0, tx1 := local.X/damageTile, (local.X2()-1)/damageTile
	ty0, ty1 := local.Y/damageTile, (local.Y2()-1)/damageTile
	for ty := ty0; ty <= ty1; ty++ {
		o.damage.AddRange(uint64(ty*cols+tx0), uint64(ty*cols+tx1+1))
	}
	return true
}

// HasDamage reports whether the output has pending damage.
func (o *Output) HasDamage() bool { return !o.damage.IsEmpty() }

// Damage returns pending damage as a global region without consuming it.
func (o *Output) Damage() geom.Region {
	var region geom.Region
	cols := uint32(o.tileColumns())
	if cols == 0 {
		return region
	}
	area := o.Area()
	it := o.damage.Iterator()
	var (
		runStart, runEnd uint32
		open             bool
	)
	flush := func() {
		if !open {
			return
		}
		row := runStart / cols
		x0 := int32(runStart%cols) * damageTile
		x1 := int32(runEnd%cols+1) * damageTile
		r := geom.Rect{X: area.X + x0, Y: area.Y + int32(row)*damageTile, W: x1 - x0, H: damageTile}
		region.AddRect(r.Intersect(area))
		open = false
	}
	for it.HasNext() {
		tile := it.Next()
		if open && tile == runEnd+1 && tile/cols == runStart/cols {
			runEnd = tile
			continue
		}
		flush()
		runStart, runEnd, open = tile, tile, true
	}
	flush()
	return region
}

// takeDamage returns and clears pending damage.
func (o *Output) takeDamage() geom.Region {
	region := o.Damage()
	o.damage.Clear()
	return region
}

// damageRect damages every output r overlaps and schedules their repaint.
func (c *Compositor) damageRect(r geom.Rect) {
	if r.Empty() {
		return
	}
	for _, o := range c.outputs {
		if o.addDamage(r) {
			c.ScheduleRepaint(o)
		}
	}
}

// damageView damages the view's current bounding box.
func (c *Compositor) damageView(v *View) {
	if v.mapped {
		c.damageRect(v.bbox)
	}
	for _, child := range v.children {
		c.damageView(child)
	}
}

// damageSurface maps surface-local damage through every mapped view.
func (c *Compositor) damageSurface(s *Surface, damage geom.Region) {
	bounds := geom.Rect{W: s.width, H: s.height}
	for _, v := range s.views {
		if !v.mapped {
			continue
		}
		for _, r := range damage.Rects() {
			r = r.Intersect(bounds)
			if r.Empty() {
				continue
			}
			c.damageRect(v.matrix.TransformRect(r))
		}
	}
}

// DamageAll damages every output completely.
func (c *Compositor) DamageAll() {
	for _, o := range c.outputs {
		o.damageAll()
	}
}
