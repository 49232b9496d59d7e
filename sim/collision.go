package sim

import (
	"cmp"
	"slices"
)

// TieBreak chooses the victim when a non-piercing attacker overlaps several
// in the same tick.
type TieBreak string

const (
	// TieBreakFirst takes the first overlap in collection iteration order,
	// which is creation order.
	TieBreakFirst   TieBreak = "first"
	TieBreakNearest TieBreak = "nearest"
	TieBreakWeakest TieBreak = "weakest"
)

func parseTieBreak(s string) (TieBreak, bool) {
	switch TieBreak(s) {
	case TieBreakFirst, TieBreakNearest, TieBreakWeakest:
		return TieBreak(s), true
	case "":
		return TieBreakFirst, true
	}
	return "", false
}

// HitTest is the narrow-phase shape test a pairing rule uses.
type HitTest uint8

const (
	HitCircle HitTest = iota
	HitBox
)

type pairRule struct {
	attacker Kind
	victim   Kind
	test     HitTest
}

// projectileRules are the projectile pairings in priority order.
var projectileRules = []pairRule{
	{KindPlayerProjectile, KindInvader, HitCircle},
	{KindPlayerProjectile, KindBoss, HitBox},
	{KindEnemyProjectile, KindPlayer, HitCircle},
}

func ruleFor(attacker, victim Kind) (pairRule, bool) {
	for _, r := range projectileRules {
		if r.attacker == attacker && r.victim == victim {
			return r, true
		}
	}
	return pairRule{}, false
}

// gridKinds are inserted into the broad phase each pass.
var gridKinds = []Kind{KindInvader, KindBoss, KindPlayer, KindPowerUp}

// blastKinds can be hurt by area damage.
var blastKinds = []Kind{KindInvader, KindPlayer, KindBoss}

type pairKey struct {
	attacker ID
	victim   ID
}

type candidate struct {
	ref EntityRef
	e   *Entity
}

func circleHit(a, v *Entity) bool {
	r := a.Radius + v.Radius
	return DistanceSq(a.Pos, v.Pos) <= r*r
}

// boxHit tests a circle against the victim's axis-aligned box.
func boxHit(a, v *Entity) bool {
	closest := Vec{
		Clamp(a.Pos.X, v.Pos.X-v.HalfW, v.Pos.X+v.HalfW),
		Clamp(a.Pos.Y, v.Pos.Y-v.HalfH, v.Pos.Y+v.HalfH),
	}
	return DistanceSq(a.Pos, closest) <= a.Radius*a.Radius
}

func (t HitTest) hit(a, v *Entity) bool {
	if t == HitBox {
		return boxHit(a, v)
	}
	return circleHit(a, v)
}

func (w *World) buildGrid() {
	w.grid.Clear()
	for _, k := range gridKinds {
		for i, e := range w.reg.Iterate(k) {
			if e.Alive {
				w.grid.InsertCircle(e.Pos.X, e.Pos.Y, e.Extent(), EntityRef{Kind: k, Idx: i})
			}
		}
	}
}

// query returns live grid entities of kind k near e, deduplicated and in
// iteration order.
func (w *World) query(e *Entity, kinds ...Kind) []candidate {
	w.refBuf = w.grid.QueryBuf(e.Pos.X, e.Pos.Y, e.Extent(), w.refBuf[:0])
	slices.SortFunc(w.refBuf, func(a, b EntityRef) int {
		if a.Kind != b.Kind {
			return cmp.Compare(a.Kind, b.Kind)
		}
		return cmp.Compare(a.Idx, b.Idx)
	})
	w.refBuf = slices.Compact(w.refBuf)
	w.candBuf = w.candBuf[:0]
	for _, ref := range w.refBuf {
		if !slices.Contains(kinds, ref.Kind) {
			continue
		}
		coll := w.reg.Iterate(ref.Kind)
		if ref.Idx >= len(coll) {
			continue
		}
		if v := coll[ref.Idx]; v.Alive {
			w.candBuf = append(w.candBuf, candidate{ref: ref, e: v})
		}
	}
	return w.candBuf
}

// resolveCollisions is the collision pass. Each (attacker, victim) pair is
// resolved at most once per tick; entities killed earlier in the pass are
// skipped.
func (w *World) resolveCollisions() {
	clear(w.resolved)
	w.buildGrid()
	for _, k := range []Kind{KindPlayerProjectile, KindEnemyProjectile} {
		for _, a := range w.reg.Iterate(k) {
			if !a.Alive || a.Projectile.Consumed {
				continue
			}
			w.resolveProjectile(a)
		}
	}
	w.bombContacts()
	w.collectPowerUps()
}

func (w *World) resolveProjectile(a *Entity) {
	p := a.Projectile
	victims := victimKinds(a.Kind)
	hits := w.hitBuf[:0]
	for _, c := range w.query(a, victims...) {
		v := c.e
		rule, ok := ruleFor(a.Kind, v.Kind)
		if !ok || !a.Owner.hostile(v.Owner) || !targetable(v) || p.alreadyHit(v.ID) {
			continue
		}
		if _, done := w.resolved[pairKey{a.ID, v.ID}]; done {
			continue
		}
		if rule.test.hit(a, v) {
			hits = append(hits, c)
		}
	}
	w.hitBuf = hits
	if len(hits) == 0 {
		return
	}
	if !p.Piercing {
		w.projectileHit(a, w.pick(a, hits))
		return
	}
	for _, c := range hits {
		if p.Consumed {
			break
		}
		w.projectileHit(a, c.e)
	}
}

// pick applies the tie-break policy. Equal scores keep iteration order.
func (w *World) pick(a *Entity, hits []candidate) *Entity {
	best := hits[0].e
	switch w.tieBreak {
	case TieBreakNearest:
		bestD := DistanceSq(a.Pos, best.Pos)
		for _, c := range hits[1:] {
			if d := DistanceSq(a.Pos, c.e.Pos); d < bestD {
				best, bestD = c.e, d
			}
		}
	case TieBreakWeakest:
		bestH := health(best)
		for _, c := range hits[1:] {
			if h := health(c.e); h < bestH {
				best, bestH = c.e, h
			}
		}
	}
	return best
}

func health(e *Entity) float64 {
	switch e.Kind {
	case KindInvader:
		return e.Invader.Health
	case KindBoss:
		return e.Boss.Health
	case KindPlayer:
		return e.Player.Health
	}
	return 0
}

// projectileHit resolves one projectile against one victim.
func (w *World) projectileHit(a, v *Entity) {
	key := pairKey{a.ID, v.ID}
	if _, done := w.resolved[key]; done {
		return
	}
	w.resolved[key] = struct{}{}

	p := a.Projectile
	first := len(p.Pierced) == 0
	w.takeDamage(v, p.Damage, a.ID, a.Owner)
	if v.Kind == KindInvader && v.Alive {
		v.Invader.applyStatus(p.Status, p.StatusDuration)
	}
	if p.recordHit(v.ID) {
		a.Alive = false
	}
	if first && a.Kind == KindPlayerProjectile {
		if pl, ok := w.Player(); ok {
			pl.Player.ShotsHit++
		}
	}
	if first && p.Split > 0 {
		w.bus.Publish(Effect{Kind: EffectSpawnSplit, Pos: a.Pos, Source: a.ID, Target: v.ID, Value: p.Split})
	}
	if p.ExplosionRadius > 0 {
		w.bus.Publish(Effect{
			Kind:   EffectAreaDamage,
			Pos:    a.Pos,
			Amount: p.Damage * 0.5,
			Radius: p.ExplosionRadius,
			Owner:  a.Owner,
			Source: a.ID,
		})
		w.spawnParticles(a.Pos)
	}
	w.bus.sound(SoundHit, v.Pos)
}

// bombContacts arms the impact trigger of bombs touching a hostile body.
func (w *World) bombContacts() {
	for _, b := range w.reg.Iterate(KindBomb) {
		bd := b.Bomb
		if !b.Alive || !bd.ImpactTrigger || bd.Impacted || bd.Phase < BombArmed || bd.Phase >= BombExploding {
			continue
		}
		for _, c := range w.query(b, blastKinds...) {
			if b.Owner.hostile(c.e.Owner) && targetable(c.e) && circleHit(b, c.e) {
				bd.Impacted = true
				break
			}
		}
	}
}

func (w *World) collectPowerUps() {
	for _, pl := range w.reg.Iterate(KindPlayer) {
		if !pl.Alive {
			continue
		}
		for _, c := range w.query(pl, KindPowerUp) {
			if circleHit(pl, c.e) {
				w.collectPowerUp(pl, c.e)
			}
		}
	}
}

// applyAreaDamage resolves a blast intent against every hostile body whose
// extent reaches the blast circle.
func (w *World) applyAreaDamage(fx Effect) {
	for _, k := range blastKinds {
		for _, v := range w.reg.Iterate(k) {
			if !v.Alive || v.ID == fx.Source || !fx.Owner.hostile(v.Owner) || !targetable(v) {
				continue
			}
			reach := fx.Radius + v.Extent()
			if DistanceSq(fx.Pos, v.Pos) > reach*reach {
				continue
			}
			key := pairKey{fx.Source, v.ID}
			if _, done := w.resolved[key]; done {
				continue
			}
			w.resolved[key] = struct{}{}
			w.takeDamage(v, fx.Amount, fx.Source, fx.Owner)
		}
	}
}

// takeDamage is the shared damage entry point. Destroyed victims ignore
// further damage. It reports whether the hit destroyed the victim.
func (w *World) takeDamage(v *Entity, amount float64, source ID, owner Owner) bool {
	if v == nil || !v.Alive {
		return false
	}
	if w.damageHook != nil {
		w.damageHook(v, amount, source)
	}
	switch v.Kind {
	case KindInvader:
		return w.damageInvader(v, amount, owner)
	case KindBoss:
		return w.damageBoss(v, amount)
	case KindPlayer:
		w.damagePlayer(v, amount)
		return !v.Alive
	}
	w.log.Warn("damage against non-damageable kind ignored", "kind", v.Kind, "id", v.ID)
	return false
}

// invaderKilled awards score, combo and a possible drop.
func (w *World) invaderKilled(e *Entity, owner Owner) {
	d := e.Invader
	w.kills++
	if owner != OwnerEnemy {
		combo := w.registerKill()
		w.addScore(e.Pos, d.Score*max(w.director.Wave, 1)*combo, e.ID)
	}
	if w.rng.Chance(d.DropChance) {
		w.bus.Publish(Effect{Kind: EffectSpawnPowerUp, Pos: e.Pos, Source: e.ID})
	}
	w.spawnParticles(e.Pos)
	w.bus.sound(SoundExplode, e.Pos)
}

func (w *World) bossKilled(e *Entity) {
	w.kills++
	w.addScore(e.Pos, w.cfg.Boss.Score, e.ID)
	w.spawnParticles(e.Pos)
	w.bus.sound(SoundExplode, e.Pos)
	w.bus.Publish(Effect{Kind: EffectScreenShake, Pos: e.Pos, Amount: 12})
	w.bus.Publish(Effect{Kind: EffectFlash, Pos: e.Pos, Amount: 1})
	w.bus.Publish(Effect{Kind: EffectBossDefeated, Pos: e.Pos, Source: e.ID})
}

// registerKill advances the combo. Kills within the combo window of the
// previous one raise the multiplier up to ComboMax.
func (w *World) registerKill() int {
	if w.combo > 0 && w.clock-w.lastKill <= w.cfg.Score.ComboWindow {
		w.combo = min(w.combo+1, max(w.cfg.Score.ComboMax, 1))
	} else {
		w.combo = 1
	}
	w.lastKill = w.clock
	return w.combo
}

func (w *World) addScore(pos Vec, points int, source ID) {
	if points <= 0 {
		return
	}
	w.score += points
	w.bus.Publish(Effect{Kind: EffectScore, Pos: pos, Amount: float64(points), Source: source})
}
