package urbit

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
)

const (
	prefixes = "" +
		"dozmarbinwansamlitsighidfidlissogdirwacsabwissib" +
		"rigsoldopmodfoglidhopdardorlorhodfolrintogsilmir" +
		"holpaslacrovlivdalsatlibtabhanticpidtorbolfosdot" +
		"losdilforpilramtirwintadbicdifrocwidbisdasmidlop" +
		"rilnardapmolsanlocnovsitnidtipsicropwitnatpanmin" +
		"ritpodmottamtolsavposnapnopsomfinfonbanmorworsip" +
		"ronnorbotwicsocwatdolmagpicdavbidbaltimtasmallig" +
		"sivtagpadsaldivdactansidfabtarmonranniswolmispal" +
		"lasdismaprabtobrollatlonnodnavfignomnibpagsopral" +
		"bilhaddocridmocpacravripfaltodtiltinhapmicfanpat" +
		"taclabmogsimsonpinlomrictapfirhasbosbatpochactid" +
		"havsaplindibhosdabbitbarracparloddosbortochilmac" +
		"tomdigfilfasmithobharmighinradmashalraglagfadtop" +
		"mophabnilnosmilfopfamdatnoldinhatnacrisfotribhoc" +
		"nimlarfitwalrapsarnalmoslandondanladdovrivbacpol" +
		"laptalpitnambonrostonfodponsovnocsorlavmatmipfip"

	suffixes = "" +
		"zodnecbudwessevpersutletfulpensytdurwepserwylsun" +
		"rypsyxdyrnuphebpeglupdepdysputlughecryttyvsydnex" +
		"lunmeplutseppesdelsulpedtemledtulmetwenbynhexfeb" +
		"pyldulhetmevruttylwydtepbesdexsefwycburderneppur" +
		"rysrebdennutsubpetrulsynregtydsupsemwynrecmegnet" +
		"secmulnymtevwebsummutnyxrextebfushepbenmuswyxsym" +
		"selrucdecwexsyrwetdylmynmesdetbetbeltuxtugmyrpel" +
		"syptermebsetdutdegtexsurfeltudnuxruxrenwytnubmed" +
		"lytdusnebrumtynseglyxpunresredfunrevrefmectedrus" +
		"bexlebduxrynnumpyxrygryxfeptyrtustyclegnemfermer" +
		"tenlusnussyltecmexpubrymtucfyllepdebbermughuttun" +
		"bylsudpemdevlurdefbusbeprunmelpexdytbyttyplevmyl" +
		"wedducfurfexnulluclennerlexrupnedlecrydlydfenwel" +
		"nydhusrelrudneshesfetdesretdunlernyrsebhulryllud" +
		"remlysfynwerrycsugnysnyllyndyndemluxfedsedbecmun" +
		"lyrtesmudnytbyrsenwegfyrmurtelreptegpecnelnevfes"
)

var (
	prefixSyllables, prefixIndex = syllables(prefixes)
	suffixSyllables, suffixIndex = syllables(suffixes)

	// ErrInvalidPatp is returned when a string is not a canonical @p.
	ErrInvalidPatp = errors.New("invalid @p")
	// ErrNegativePoint is returned for negative point numbers.
	ErrNegativePoint = errors.New("point must not be negative")

	mask16 = big.NewInt(0xffff)
)

func syllables(s string) ([256]string, map[string]int) {
	var out [256]string
	index := make(map[string]int, len(out))
	for i := range out {
		out[i] = s[i*3 : i*3+3]
		index[out[i]] = i
	}

	return out, index
}

// Patp renders a point number in its canonical @p form, e.g. 256 → "~marzod".
func Patp(p *big.Int) (string, error) {
	if p == nil || p.Sign() < 0 {
		return "", ErrNegativePoint
	}

	sxz := Fein(p)
	if sxz.BitLen() <= 8 {
		return "~" + suffixSyllables[sxz.Uint64()], nil
	}

	words := make([]uint16, 0, (sxz.BitLen()+15)/16)
	rest := new(big.Int).Set(sxz)
	for rest.Sign() > 0 {
		words = append(words, uint16(new(big.Int).And(rest, mask16).Uint64()))
		rest.Rsh(rest, 16)
	}

	var b strings.Builder
	b.WriteByte('~')
	for i := len(words) - 1; i >= 0; i-- {
		w := words[i]
		b.WriteString(prefixSyllables[w>>8])
		b.WriteString(suffixSyllables[w&0xff])
		if i == 0 {
			break
		}
		if i%4 == 0 {
			b.WriteString("--")
		} else {
			b.WriteByte('-')
		}
	}

	return b.String(), nil
}

// MustPatp is like Patp but panics on error. Intended for constants and tests.
func MustPatp(p *big.Int) string {
	s, err := Patp(p)
	if err != nil {
		panic(err)
	}

	return s
}

// ParsePatp converts a canonical @p (with or without the leading sig) back into its point
// number. Non-canonical spellings, such as a galaxy padded into a star-width name, are rejected.
func ParsePatp(s string) (*big.Int, error) {
	name := strings.TrimPrefix(strings.TrimSpace(strings.ToLower(s)), "~")
	if name == "" {
		return nil, fmt.Errorf("%w: empty name", ErrInvalidPatp)
	}

	n := new(big.Int)
	if len(name) == 3 {
		idx, ok := suffixIndex[name]
		if !ok {
			return nil, fmt.Errorf("%w: unknown suffix %q", ErrInvalidPatp, name)
		}
		n.SetInt64(int64(idx))
	} else {
		for _, word := range strings.Split(name, "-") {
			if word == "" {
				continue
			}
			if len(word) != 6 {
				return nil, fmt.Errorf("%w: malformed word %q", ErrInvalidPatp, word)
			}
			hi, ok := prefixIndex[word[:3]]
			if !ok {
				return nil, fmt.Errorf("%w: unknown prefix %q", ErrInvalidPatp, word[:3])
			}
			lo, ok := suffixIndex[word[3:]]
			if !ok {
				return nil, fmt.Errorf("%w: unknown suffix %q", ErrInvalidPatp, word[3:])
			}
			n.Lsh(n, 16)
			n.Or(n, big.NewInt(int64(hi<<8|lo)))
		}
	}

	point := Fynd(n)
	canonical, err := Patp(point)
	if err != nil {
		return nil, err
	}
	if canonical != "~"+name {
		return nil, fmt.Errorf("%w: %q is not canonical (expected %s)", ErrInvalidPatp, s, canonical)
	}

	return point, nil
}

// IsValidPatp reports whether s is a canonical @p.
func IsValidPatp(s string) bool {
	_, err := ParsePatp(s)
	return err == nil
}
