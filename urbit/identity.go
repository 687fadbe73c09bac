// Package urbit derives Urbit identity metadata from Azimuth point numbers: the canonical @p
// name, the clan (size class) and the sponsoring parent.
package urbit

import (
	"encoding/json"
	"fmt"
	"math/big"
	"strings"
)

// Clan is the size class of an Urbit identity.
type Clan int

const (
	Galaxy Clan = iota
	Star
	Planet
	Moon
	Comet
)

var (
	maxGalaxy = big.NewInt(0xff)
	maxStar   = big.NewInt(0xffff)
	maxPlanet = new(big.Int).SetUint64(0xffffffff)
	maxMoon   = new(big.Int).SetUint64(0xffffffffffffffff)
)

func (c Clan) String() string {
	switch c {
	case Galaxy:
		return "galaxy"
	case Star:
		return "star"
	case Planet:
		return "planet"
	case Moon:
		return "moon"
	case Comet:
		return "comet"
	default:
		return fmt.Sprintf("clan(%d)", int(c))
	}
}

// ClanOf returns the clan of a point number.
func ClanOf(p *big.Int) Clan {
	switch {
	case p.Cmp(maxGalaxy) <= 0:
		return Galaxy
	case p.Cmp(maxStar) <= 0:
		return Star
	case p.Cmp(maxPlanet) <= 0:
		return Planet
	case p.Cmp(maxMoon) <= 0:
		return Moon
	default:
		return Comet
	}
}

// Sein returns the default sponsor of a point. Galaxies are their own parent.
func Sein(p *big.Int) *big.Int {
	var bits uint
	switch ClanOf(p) {
	case Galaxy:
		return new(big.Int).Set(p)
	case Star:
		bits = 8
	case Planet, Comet:
		bits = 16
	case Moon:
		bits = 32
	}
	mask := new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), bits), big.NewInt(1))

	return new(big.Int).And(p, mask)
}

// Identity is the computed view over a point; it is never persisted.
type Identity struct {
	ID   *big.Int
	Patp string
	Clan Clan
}

// NewIdentity builds the identity for a point number.
func NewIdentity(id *big.Int) (Identity, error) {
	patp, err := Patp(id)
	if err != nil {
		return Identity{}, err
	}

	return Identity{ID: new(big.Int).Set(id), Patp: patp, Clan: ClanOf(id)}, nil
}

// IdentityFromUint64 is a convenience for Azimuth token IDs.
func IdentityFromUint64(id uint64) Identity {
	p := new(big.Int).SetUint64(id)

	return Identity{ID: p, Patp: MustPatp(p), Clan: ClanOf(p)}
}

// ParseIdentity accepts either a decimal point number or an @p.
func ParseIdentity(s string) (Identity, error) {
	s = strings.TrimSpace(s)
	if n, ok := new(big.Int).SetString(s, 10); ok {
		return NewIdentity(n)
	}
	id, err := ParsePatp(s)
	if err != nil {
		return Identity{}, err
	}

	return NewIdentity(id)
}

// Parent returns the identity of the default sponsor.
func (i Identity) Parent() Identity {
	parent, _ := NewIdentity(Sein(i.ID)) // sein of a valid point is a valid point

	return parent
}

// Uint32 returns the point as an Azimuth uint32 point. ok is false for moons and comets,
// which are not Azimuth NFTs.
func (i Identity) Uint32() (uint32, bool) {
	if i.ID == nil || i.ID.Cmp(maxPlanet) > 0 {
		return 0, false
	}

	return uint32(i.ID.Uint64()), true
}

func (i Identity) String() string {
	return i.Patp
}

// MarshalJSON renders the identity as {"id": "...", "patp": "~...", "clan": "..."}.
func (i Identity) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		ID   string `json:"id"`
		Patp string `json:"patp"`
		Clan string `json:"clan"`
	}{ID: i.ID.String(), Patp: i.Patp, Clan: i.Clan.String()})
}
