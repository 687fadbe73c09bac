package provider

import (
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"os"
	"strings"
	"sync"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// SignerGenerator produces geth *bind.TransactOpts for a chain and signs arbitrary digests with
// the same key.
type SignerGenerator interface {
	Generate(chainID *big.Int) (*bind.TransactOpts, error)
	SignHash(hash []byte) ([]byte, error)
	Address() (common.Address, error)
}

var _ SignerGenerator = (*transactorFromKey)(nil)

// GeneratorOptions contains configuration options for the SignerGenerator.
type GeneratorOptions struct {
	gasLimit uint64
}

// GeneratorOption is a function that modifies GeneratorOptions.
type GeneratorOption func(*GeneratorOptions)

func WithGasLimit(gasLimit uint64) GeneratorOption {
	return func(opts *GeneratorOptions) {
		opts.gasLimit = gasLimit
	}
}

// transactorFromKey lazily loads a private key and signs with it.
type transactorFromKey struct {
	load     func() (*ecdsa.PrivateKey, error)
	gasLimit uint64

	once sync.Once
	key  *ecdsa.PrivateKey
	err  error
}

func newTransactorFromKey(load func() (*ecdsa.PrivateKey, error), opts []GeneratorOption) *transactorFromKey {
	o := &GeneratorOptions{}
	for _, opt := range opts {
		opt(o)
	}

	return &transactorFromKey{load: load, gasLimit: o.gasLimit}
}

func (g *transactorFromKey) privateKey() (*ecdsa.PrivateKey, error) {
	g.once.Do(func() {
		g.key, g.err = g.load()
	})

	return g.key, g.err
}

// Generate returns the bind transactor options for chainID.
func (g *transactorFromKey) Generate(chainID *big.Int) (*bind.TransactOpts, error) {
	key, err := g.privateKey()
	if err != nil {
		return nil, err
	}

	transactor, err := bind.NewKeyedTransactorWithChainID(key, chainID)
	if err != nil {
		return nil, err
	}
	if g.gasLimit > 0 {
		transactor.GasLimit = g.gasLimit
	}

	return transactor, nil
}

// SignHash signs a 32 byte digest. The recovery id of the signature is 0 or 1.
func (g *transactorFromKey) SignHash(hash []byte) ([]byte, error) {
	key, err := g.privateKey()
	if err != nil {
		return nil, err
	}

	sig, err := crypto.Sign(hash, key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign hash: %w", err)
	}

	return sig, nil
}

// Address returns the address of the key.
func (g *transactorFromKey) Address() (common.Address, error) {
	key, err := g.privateKey()
	if err != nil {
		return common.Address{}, err
	}

	return crypto.PubkeyToAddress(key.PublicKey), nil
}

// TransactorFromRaw returns a generator which signs with a hex encoded private key.
func TransactorFromRaw(privKey string, opts ...GeneratorOption) SignerGenerator {
	return newTransactorFromKey(func() (*ecdsa.PrivateKey, error) {
		key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privKey), "0x"))
		if err != nil {
			return nil, fmt.Errorf("failed to convert private key to ECDSA: %w", err)
		}

		return key, nil
	}, opts)
}

// TransactorFromKeystore returns a generator which signs with the key of an encrypted JSON
// keystore file.
func TransactorFromKeystore(path, passphrase string, opts ...GeneratorOption) SignerGenerator {
	return newTransactorFromKey(func() (*ecdsa.PrivateKey, error) {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read keystore %s: %w", path, err)
		}
		key, err := keystore.DecryptKey(b, passphrase)
		if err != nil {
			return nil, fmt.Errorf("failed to decrypt keystore %s: %w", path, err)
		}

		return key.PrivateKey, nil
	}, opts)
}

// TransactorRandom returns a generator with a random key, created on first use.
func TransactorRandom() SignerGenerator {
	return newTransactorFromKey(func() (*ecdsa.PrivateKey, error) {
		key, err := crypto.GenerateKey()
		if err != nil {
			return nil, fmt.Errorf("failed to generate random private key: %w", err)
		}

		return key, nil
	}, nil)
}

// TransactorFromECDSA returns a generator for an already loaded key.
func TransactorFromECDSA(key *ecdsa.PrivateKey, opts ...GeneratorOption) SignerGenerator {
	return newTransactorFromKey(func() (*ecdsa.PrivateKey, error) {
		return key, nil
	}, opts)
}
