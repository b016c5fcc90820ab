package model

type BodyPart string

const (
	PartMove         BodyPart = "move"
	PartWork         BodyPart = "work"
	PartCarry        BodyPart = "carry"
	PartAttack       BodyPart = "attack"
	PartRangedAttack BodyPart = "ranged_attack"
	PartHeal         BodyPart = "heal"
	PartTough        BodyPart = "tough"
	PartClaim        BodyPart = "claim"
)

const (
	MaxCreepSize   = 50
	PartHits       = 100
	CarryCapacity  = 50
	HarvestPower   = 2
	UpgradePower   = 1
	UpgradeTickCap = 15
	MoveDecay      = 2
	HarvestRange   = 1
	UpgradeRange   = 3
)

var PartCost = map[BodyPart]int{
	PartMove:         50,
	PartWork:         100,
	PartCarry:        50,
	PartAttack:       80,
	PartRangedAttack: 150,
	PartHeal:         250,
	PartTough:        10,
	PartClaim:        600,
}

func (p BodyPart) Valid() bool {
	_, ok := PartCost[p]
	return ok
}

func BodyCost(body []BodyPart) int {
	n := 0
	for _, p := range body {
		n += PartCost[p]
	}
	return n
}

func CountParts(body []BodyPart, p BodyPart) int {
	n := 0
	for _, b := range body {
		if b == p {
			n++
		}
	}
	return n
}
