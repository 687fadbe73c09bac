package urbit

import (
	"math/big"

	"github.com/spaolacci/murmur3"
)

// The scrambler is a four round Feistel cipher over the planet space [0x10000, 0xffffffff]. It
// leaves galaxies, stars and anything wider than 64 bits untouched; moons are scrambled in their
// low 32 bits only.
const (
	feistelA    = 65535
	feistelB    = 65536
	feistelK    = 0xffffffff
	planetFloor = 0x10000
	planetCeil  = 0xffffffff
	rounds      = 4
)

var raku = [rounds]uint32{0xb76d5eed, 0xee281300, 0x85bcae01, 0x4b387af7}

func roundFunc(j int, arg uint64) uint64 {
	key := []byte{byte(arg & 0xff), byte((arg >> 8) & 0xff)}

	return uint64(murmur3.Sum32WithSeed(key, raku[j]))
}

// Fein scrambles a point into the value rendered by Patp.
func Fein(p *big.Int) *big.Int {
	if !p.IsUint64() {
		return new(big.Int).Set(p)
	}

	return new(big.Int).SetUint64(fein(p.Uint64()))
}

// Fynd is the inverse of Fein.
func Fynd(p *big.Int) *big.Int {
	if !p.IsUint64() {
		return new(big.Int).Set(p)
	}

	return new(big.Int).SetUint64(fynd(p.Uint64()))
}

func fein(pyn uint64) uint64 {
	switch {
	case pyn >= planetFloor && pyn <= planetCeil:
		return planetFloor + cycleWalk(pyn-planetFloor, encipher)
	case pyn > planetCeil:
		return (pyn & 0xffffffff00000000) | fein(pyn&0xffffffff)
	default:
		return pyn
	}
}

func fynd(cry uint64) uint64 {
	switch {
	case cry >= planetFloor && cry <= planetCeil:
		return planetFloor + cycleWalk(cry-planetFloor, decipher)
	case cry > planetCeil:
		return (cry & 0xffffffff00000000) | fynd(cry&0xffffffff)
	default:
		return cry
	}
}

func cycleWalk(m uint64, f func(uint64) uint64) uint64 {
	c := f(m)
	if c < feistelK {
		return c
	}

	return f(c)
}

func encipher(m uint64) uint64 {
	left, right := m%feistelA, m/feistelA
	for j := 1; j <= rounds; j++ {
		eff := roundFunc(j-1, right)
		var tmp uint64
		if j%2 != 0 {
			tmp = (left + eff) % feistelA
		} else {
			tmp = (left + eff) % feistelB
		}
		left, right = right, tmp
	}
	if right == feistelA {
		return feistelA*right + left
	}

	return feistelA*left + right
}

func decipher(m uint64) uint64 {
	ahh, ale := m%feistelA, m/feistelA
	left, right := ale, ahh
	if ale == feistelA {
		left, right = ahh, ale
	}
	for j := rounds; j >= 1; j-- {
		eff := roundFunc(j-1, left)
		var tmp uint64
		if j%2 != 0 {
			tmp = (right + feistelA - (eff % feistelA)) % feistelA
		} else {
			tmp = (right + feistelB - (eff % feistelB)) % feistelB
		}
		left, right = tmp, left
	}

	return feistelA*right + left
}
